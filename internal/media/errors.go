package media

import "errors"

var (
	ErrIO             = errors.New("io error")
	ErrStreamNotFound = errors.New("audio stream not found")
	ErrCodec          = errors.New("codec error")
	ErrResample       = errors.New("resample error")
	ErrMux            = errors.New("mux error")

	// ErrDrain means the codec has no output ready and wants more input.
	ErrDrain = errors.New("codec needs more input")
	// ErrFlushed means a draining codec has emitted everything it buffered.
	ErrFlushed = errors.New("codec flushed")
)
