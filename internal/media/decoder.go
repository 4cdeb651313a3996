package media

import (
	"errors"
	"fmt"

	"github.com/asticode/go-astiav"
)

type Decoder struct {
	codec  *astiav.Codec
	cc     *astiav.CodecContext
	state  CodecState
	closed bool
}

// NewDecoder allocates a decoder for a stream discovered by a Reader.
func NewDecoder(desc StreamDescriptor) (*Decoder, error) {
	cp := desc.codecParameters
	if cp == nil {
		return nil, fmt.Errorf("%w: descriptor has no codec parameters", ErrCodec)
	}

	codec := astiav.FindDecoder(cp.CodecID())
	if codec == nil {
		return nil, fmt.Errorf("%w: no decoder for codec %s", ErrCodec, cp.CodecID())
	}
	cc := astiav.AllocCodecContext(codec)
	if cc == nil {
		return nil, fmt.Errorf("%w: alloc decoder context", ErrCodec)
	}
	if err := cc.FromCodecParameters(cp); err != nil {
		cc.Free()
		return nil, fmt.Errorf("%w: codec from params: %w", ErrCodec, err)
	}
	cc.SetTimeBase(desc.TimeBase)

	return &Decoder{codec: codec, cc: cc}, nil
}

func (d *Decoder) Open() error {
	if err := d.cc.Open(d.codec, nil); err != nil {
		return fmt.Errorf("%w: open decoder %s: %w", ErrCodec, d.codec.Name(), err)
	}
	return nil
}

// Descriptor reports what the opened decoder produces.
func (d *Decoder) Descriptor() StreamDescriptor {
	return StreamDescriptor{
		SampleRate:    d.cc.SampleRate(),
		ChannelLayout: normalizeLayout(d.cc.ChannelLayout()),
		SampleFormat:  d.cc.SampleFormat(),
		TimeBase:      d.cc.TimeBase(),
	}
}

func (d *Decoder) State() CodecState { return d.state }

// SendPacket feeds one packet to the decoder. A nil packet starts draining.
func (d *Decoder) SendPacket(pkt *astiav.Packet) error {
	next, err := d.state.advance(pkt == nil)
	if err != nil {
		return err
	}
	if err := d.cc.SendPacket(pkt); err != nil {
		// EOF on a nil packet means the decoder was already drained.
		if pkt != nil || !errors.Is(err, astiav.ErrEof) {
			return fmt.Errorf("%w: send packet: %w", ErrCodec, err)
		}
	}
	d.state = next
	return nil
}

// ReceiveFrame fills frame with the next decoded frame. It returns ErrDrain
// when more input is needed and ErrFlushed once a draining decoder is empty.
func (d *Decoder) ReceiveFrame(frame *astiav.Frame) error {
	frame.Unref()
	if err := d.cc.ReceiveFrame(frame); err != nil {
		switch {
		case errors.Is(err, astiav.ErrEagain):
			return ErrDrain
		case errors.Is(err, astiav.ErrEof):
			d.state = StateFlushed
			return ErrFlushed
		}
		return fmt.Errorf("%w: receive frame: %w", ErrCodec, err)
	}
	return nil
}

func (d *Decoder) Close() {
	if d.closed {
		return
	}
	d.closed = true
	d.cc.Free()
}
