package media

import (
	"errors"
	"fmt"
	"io"

	"github.com/asticode/go-astiav"
)

// Reader demultiplexes an input container into compressed packets.
type Reader struct {
	path   string
	fc     *astiav.FormatContext
	stream *astiav.Stream
	closed bool
}

func OpenReader(path string) (*Reader, error) {
	fc := astiav.AllocFormatContext()
	if fc == nil {
		return nil, fmt.Errorf("%w: alloc format context", ErrIO)
	}

	if err := fc.OpenInput(path, nil, nil); err != nil {
		fc.Free()
		return nil, fmt.Errorf("%w: open input %q: %w", ErrIO, path, err)
	}

	if err := fc.FindStreamInfo(nil); err != nil {
		fc.CloseInput()
		fc.Free()
		return nil, fmt.Errorf("%w: find stream info: %w", ErrIO, err)
	}

	return &Reader{path: path, fc: fc}, nil
}

// FindAudioStream selects the best audio stream of the input and returns its
// index along with the decoder-side descriptor.
func (r *Reader) FindAudioStream() (int, StreamDescriptor, error) {
	st, _, err := r.fc.FindBestStream(astiav.MediaTypeAudio, -1, -1)
	if err != nil || st == nil {
		if errors.Is(err, astiav.ErrDecoderNotFound) {
			return -1, StreamDescriptor{}, fmt.Errorf("%w: no decoder for audio stream in %q", ErrCodec, r.path)
		}
		return -1, StreamDescriptor{}, fmt.Errorf("%w: %q", ErrStreamNotFound, r.path)
	}
	r.stream = st

	cp := st.CodecParameters()
	return st.Index(), StreamDescriptor{
		SampleRate:      cp.SampleRate(),
		ChannelLayout:   normalizeLayout(cp.ChannelLayout()),
		SampleFormat:    cp.SampleFormat(),
		TimeBase:        st.TimeBase(),
		codecParameters: cp,
	}, nil
}

// ReadPacket reads the next packet of any stream into pkt. It returns io.EOF
// once the input is exhausted.
func (r *Reader) ReadPacket(pkt *astiav.Packet) error {
	pkt.Unref()
	if err := r.fc.ReadFrame(pkt); err != nil {
		if errors.Is(err, astiav.ErrEof) {
			return io.EOF
		}
		return fmt.Errorf("%w: read frame: %w", ErrIO, err)
	}
	return nil
}

// Duration returns the container's reported duration in microseconds, or 0
// when unknown.
func (r *Reader) Duration() int64 {
	d := r.fc.Duration()
	if d < 0 {
		return 0
	}
	return d
}

func (r *Reader) Close() {
	if r.closed {
		return
	}
	r.closed = true
	r.fc.CloseInput()
	r.fc.Free()
}
