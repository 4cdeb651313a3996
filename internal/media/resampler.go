package media

import (
	"fmt"

	"github.com/asticode/go-astiav"
)

// Resampler converts decoded frames from the decoder's rate, layout and
// sample format to the encoder's. It keeps interpolation history between
// calls, so frames must be fed in arrival order and a Resampler must not be
// shared between streams.
type Resampler struct {
	src, dst StreamDescriptor
	swr      *astiav.SoftwareResampleContext
	out      *astiav.Frame
	started  bool
	closed   bool
}

func NewResampler(src, dst StreamDescriptor) (*Resampler, error) {
	if src.SampleRate <= 0 || dst.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: invalid sample rates %d -> %d", ErrResample, src.SampleRate, dst.SampleRate)
	}
	swr := astiav.AllocSoftwareResampleContext()
	if swr == nil {
		return nil, fmt.Errorf("%w: alloc swr", ErrResample)
	}
	out := astiav.AllocFrame()
	if out == nil {
		swr.Free()
		return nil, fmt.Errorf("%w: alloc frame", ErrResample)
	}
	return &Resampler{src: src, dst: dst, swr: swr, out: out}, nil
}

// capacity returns how many output samples n more input samples can yield,
// counting what the resampler already holds.
func (r *Resampler) capacity(n int) int {
	var delay int64
	if r.started {
		delay = r.swr.Delay(int64(r.src.SampleRate))
	}
	in := delay + int64(n)
	sr, dr := int64(r.src.SampleRate), int64(r.dst.SampleRate)
	return int((in*dr + sr - 1) / sr)
}

func (r *Resampler) prepare(capacity int) error {
	r.out.Unref()
	r.out.SetChannelLayout(r.dst.ChannelLayout)
	r.out.SetSampleRate(r.dst.SampleRate)
	r.out.SetSampleFormat(r.dst.SampleFormat)
	r.out.SetNbSamples(capacity)
	if err := r.out.AllocBuffer(0); err != nil {
		return fmt.Errorf("%w: dst alloc buffer: %w", ErrResample, err)
	}
	return nil
}

// Convert resamples src. The returned frame holds the converted samples and
// is reused by the next call; it is nil when nothing was produced.
func (r *Resampler) Convert(src *astiav.Frame) (*astiav.Frame, error) {
	if src.SampleRate() != r.src.SampleRate ||
		src.SampleFormat() != r.src.SampleFormat ||
		src.ChannelLayout().Channels() != r.src.Channels() {
		return nil, fmt.Errorf("%w: frame %dHz/%dch/%s does not match source %s", ErrResample,
			src.SampleRate(), src.ChannelLayout().Channels(), src.SampleFormat().Name(), r.src)
	}
	if src.NbSamples() == 0 {
		return nil, nil
	}
	if err := r.prepare(r.capacity(src.NbSamples())); err != nil {
		return nil, err
	}
	if err := r.swr.ConvertFrame(src, r.out); err != nil {
		return nil, fmt.Errorf("%w: swr convert: %w", ErrResample, err)
	}
	r.started = true
	return r.converted(), nil
}

// Flush returns whatever the resampler still holds in its history, or nil
// when nothing is left.
func (r *Resampler) Flush() (*astiav.Frame, error) {
	if !r.started {
		return nil, nil
	}
	capacity := r.capacity(0)
	if capacity <= 0 {
		return nil, nil
	}
	if err := r.prepare(capacity); err != nil {
		return nil, err
	}
	if err := r.swr.ConvertFrame(nil, r.out); err != nil {
		return nil, fmt.Errorf("%w: swr flush: %w", ErrResample, err)
	}
	return r.converted(), nil
}

func (r *Resampler) converted() *astiav.Frame {
	if r.out.NbSamples() <= 0 {
		return nil
	}
	return r.out
}

func (r *Resampler) Close() {
	if r.closed {
		return
	}
	r.closed = true
	r.out.Free()
	r.swr.Free()
}
