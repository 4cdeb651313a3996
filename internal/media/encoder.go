package media

import (
	"errors"
	"fmt"

	"github.com/asticode/go-astiav"
)

// EncoderConfig fixes the target the encoder is opened with. Nothing about
// it is negotiated with the input.
type EncoderConfig struct {
	CodecName    string
	SampleRate   int
	Channels     int
	SampleFormat astiav.SampleFormat
	BitRate      int64
	// GlobalHeader is set when the output container wants codec extradata in
	// its header rather than in-band.
	GlobalHeader bool
}

type Encoder struct {
	codec  *astiav.Codec
	cc     *astiav.CodecContext
	frame  *astiav.Frame
	target StreamDescriptor
	state  CodecState
	closed bool
}

func NewEncoder(cfg EncoderConfig) (*Encoder, error) {
	codec := astiav.FindEncoderByName(cfg.CodecName)
	if codec == nil {
		return nil, fmt.Errorf("%w: %s encoder not found (check ffmpeg installation)", ErrCodec, cfg.CodecName)
	}
	if !codec.IsEncoder() {
		return nil, fmt.Errorf("%w: %s is not an encoder", ErrCodec, cfg.CodecName)
	}
	layout, err := LayoutForChannels(cfg.Channels)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCodec, err)
	}

	cc := astiav.AllocCodecContext(codec)
	if cc == nil {
		return nil, fmt.Errorf("%w: alloc codec context for %s", ErrCodec, cfg.CodecName)
	}
	timeBase := astiav.NewRational(1, cfg.SampleRate)
	cc.SetSampleRate(cfg.SampleRate)
	cc.SetChannelLayout(layout)
	cc.SetSampleFormat(cfg.SampleFormat)
	cc.SetBitRate(cfg.BitRate)
	cc.SetTimeBase(timeBase)
	if cfg.GlobalHeader {
		cc.SetFlags(cc.Flags().Add(astiav.CodecContextFlagGlobalHeader))
	}

	frame := astiav.AllocFrame()
	if frame == nil {
		cc.Free()
		return nil, fmt.Errorf("%w: alloc audio frame for encoder", ErrCodec)
	}

	return &Encoder{
		codec: codec,
		cc:    cc,
		frame: frame,
		target: StreamDescriptor{
			SampleRate:    cfg.SampleRate,
			ChannelLayout: layout,
			SampleFormat:  cfg.SampleFormat,
			TimeBase:      timeBase,
		},
	}, nil
}

func (e *Encoder) Open() error {
	if err := e.cc.Open(e.codec, nil); err != nil {
		return fmt.Errorf("%w: open %s encoder (%s): %w", ErrCodec, e.codec.Name(), e.target, err)
	}
	return nil
}

// Descriptor reports what the encoder consumes.
func (e *Encoder) Descriptor() StreamDescriptor { return e.target }

// FrameSize is the number of samples per channel every frame but the last
// must carry. It is 0 for codecs that accept any frame length.
func (e *Encoder) FrameSize() int { return e.cc.FrameSize() }

func (e *Encoder) TimeBase() astiav.Rational { return e.cc.TimeBase() }

func (e *Encoder) State() CodecState { return e.state }

// SampleSource hands out queued samples in the encoder's format.
type SampleSource interface {
	PopExact(dst *astiav.Frame, n int) error
}

// FillFrame moves n samples from src into the encoder's frame and stamps it
// with pts. The returned frame is reused by the next call.
func (e *Encoder) FillFrame(src SampleSource, n int, pts int64) (*astiav.Frame, error) {
	e.frame.Unref()
	e.frame.SetSampleRate(e.target.SampleRate)
	e.frame.SetChannelLayout(e.target.ChannelLayout)
	e.frame.SetSampleFormat(e.target.SampleFormat)
	e.frame.SetNbSamples(n)
	if err := e.frame.AllocBuffer(0); err != nil {
		return nil, fmt.Errorf("%w: frame alloc buffer: %w", ErrCodec, err)
	}
	if err := src.PopExact(e.frame, n); err != nil {
		return nil, fmt.Errorf("%w: fill frame: %w", ErrCodec, err)
	}
	e.frame.SetPts(pts)
	return e.frame, nil
}

// SendFrame feeds one frame to the encoder. A nil frame starts draining.
func (e *Encoder) SendFrame(frame *astiav.Frame) error {
	next, err := e.state.advance(frame == nil)
	if err != nil {
		return err
	}
	if err := e.cc.SendFrame(frame); err != nil {
		if frame != nil || !errors.Is(err, astiav.ErrEof) {
			return fmt.Errorf("%w: send frame: %w", ErrCodec, err)
		}
	}
	e.state = next
	return nil
}

// ReceivePacket fills pkt with the next encoded packet. It returns ErrDrain
// when more input is needed and ErrFlushed once a draining encoder is empty.
func (e *Encoder) ReceivePacket(pkt *astiav.Packet) error {
	pkt.Unref()
	if err := e.cc.ReceivePacket(pkt); err != nil {
		switch {
		case errors.Is(err, astiav.ErrEagain):
			return ErrDrain
		case errors.Is(err, astiav.ErrEof):
			e.state = StateFlushed
			return ErrFlushed
		}
		return fmt.Errorf("%w: receive packet: %w", ErrCodec, err)
	}
	return nil
}

func (e *Encoder) Close() {
	if e.closed {
		return
	}
	e.closed = true
	e.frame.Free()
	e.cc.Free()
}
