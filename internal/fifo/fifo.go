// Package fifo is an elastic queue of PCM samples sitting between the
// resampler and the encoder. It absorbs the difference between the number
// of samples a resampler produces per call and the fixed number an encoder
// consumes per call.
//
// Samples are held in an FFmpeg audio fifo, so frames go in and come out
// without being copied through Go memory.
package fifo

import (
	"errors"
	"fmt"

	"github.com/asticode/go-astiav"
)

var (
	ErrUnderrun    = errors.New("fifo underrun")
	ErrInvalidData = errors.New("fifo invalid data")
)

// initialSamples is the starting capacity; writes grow the fifo as needed.
const initialSamples = 4096

type Fifo struct {
	af       *astiav.AudioFifo
	format   astiav.SampleFormat
	channels int
}

// New allocates a fifo for samples of the given format and channel count.
// Packed and planar formats are both supported.
func New(format astiav.SampleFormat, channels int) (*Fifo, error) {
	if format == astiav.SampleFormatNone || channels <= 0 {
		return nil, fmt.Errorf("%w: format %s, channels %d", ErrInvalidData, format.Name(), channels)
	}
	af := astiav.AllocAudioFifo(format, channels, initialSamples)
	if af == nil {
		return nil, errors.New("alloc audio fifo")
	}
	return &Fifo{af: af, format: format, channels: channels}, nil
}

// Size returns the number of samples (per channel) currently queued.
func (f *Fifo) Size() int { return f.af.Size() }

func (f *Fifo) check(frame *astiav.Frame) error {
	if frame.SampleFormat() != f.format || frame.ChannelLayout().Channels() != f.channels {
		return fmt.Errorf("%w: frame %s/%dch does not match fifo %s/%dch", ErrInvalidData,
			frame.SampleFormat().Name(), frame.ChannelLayout().Channels(), f.format.Name(), f.channels)
	}
	return nil
}

// Append queues every sample of frame. Capacity grows as needed.
func (f *Fifo) Append(frame *astiav.Frame) error {
	n := frame.NbSamples()
	if n < 0 {
		return fmt.Errorf("%w: negative sample count %d", ErrInvalidData, n)
	}
	if n == 0 {
		return nil
	}
	if err := f.check(frame); err != nil {
		return err
	}
	written, err := f.af.Write(frame)
	if err != nil {
		return fmt.Errorf("fifo write: %w", err)
	}
	if written != n {
		return fmt.Errorf("%w: wrote %d of %d samples", ErrInvalidData, written, n)
	}
	return nil
}

// PopExact moves exactly n samples from the front of the queue into dst,
// whose buffer must hold at least n samples. dst's sample count is set to n.
// Nothing is consumed when fewer than n samples are queued.
func (f *Fifo) PopExact(dst *astiav.Frame, n int) error {
	if n < 0 {
		return fmt.Errorf("%w: negative sample count %d", ErrInvalidData, n)
	}
	if size := f.af.Size(); n > size {
		return fmt.Errorf("%w: want %d samples, have %d", ErrUnderrun, n, size)
	}
	if err := f.check(dst); err != nil {
		return err
	}
	dst.SetNbSamples(n)
	read, err := f.af.Read(dst)
	if err != nil {
		return fmt.Errorf("fifo read: %w", err)
	}
	if read != n {
		return fmt.Errorf("%w: read %d of %d samples", ErrUnderrun, read, n)
	}
	return nil
}

// Close releases the fifo. It is safe to call more than once.
func (f *Fifo) Close() {
	if f.af == nil {
		return
	}
	f.af.Free()
	f.af = nil
}
