package media

import (
	"fmt"

	"github.com/asticode/go-astiav"
)

// Writer multiplexes encoded packets of a single audio stream into an output
// container.
type Writer struct {
	path    string
	fc      *astiav.FormatContext
	pb      *astiav.IOContext
	stream  *astiav.Stream
	created bool
	closed  bool
}

// CreateWriter prepares an output container for path. The container format
// is guessed from the path when formatName is empty. Nothing is written to
// disk until WriteHeader.
func CreateWriter(path, formatName string) (*Writer, error) {
	fc, err := astiav.AllocOutputFormatContext(nil, formatName, path)
	if err != nil {
		return nil, fmt.Errorf("%w: alloc output context for %q: %w", ErrIO, path, err)
	}
	if fc == nil {
		return nil, fmt.Errorf("%w: alloc output context for %q", ErrIO, path)
	}
	return &Writer{path: path, fc: fc}, nil
}

// GlobalHeader reports whether encoders feeding this container must be
// opened with the global header flag.
func (w *Writer) GlobalHeader() bool {
	return w.fc.OutputFormat().Flags().Has(astiav.IOFormatFlagGlobalheader)
}

// AddStream declares the output audio stream with the parameters of an
// opened encoder. Its time base is one tick per sample.
func (w *Writer) AddStream(enc *Encoder) error {
	if w.stream != nil {
		return fmt.Errorf("%w: output already has a stream", ErrMux)
	}
	s := w.fc.NewStream(nil)
	if s == nil {
		return fmt.Errorf("%w: new stream", ErrMux)
	}
	if err := enc.cc.ToCodecParameters(s.CodecParameters()); err != nil {
		return fmt.Errorf("%w: codec params to stream: %w", ErrMux, err)
	}
	s.SetTimeBase(astiav.NewRational(1, enc.Descriptor().SampleRate))
	w.stream = s
	return nil
}

// WriteHeader creates the output file and writes the container header.
func (w *Writer) WriteHeader() error {
	if w.stream == nil {
		return fmt.Errorf("%w: write header without a stream", ErrMux)
	}
	if !w.fc.OutputFormat().Flags().Has(astiav.IOFormatFlagNofile) {
		pb, err := astiav.OpenIOContext(w.path, astiav.NewIOContextFlags(astiav.IOContextFlagWrite), nil, nil)
		if err != nil {
			return fmt.Errorf("%w: open output %q: %w", ErrIO, w.path, err)
		}
		w.pb = pb
		w.created = true
		w.fc.SetPb(pb)
	}
	if err := w.fc.WriteHeader(nil); err != nil {
		return fmt.Errorf("%w: write header: %w", ErrIO, err)
	}
	return nil
}

// WritePacket rescales pkt from the encoder time base tb to the stream time
// base and writes it. Packets must arrive with non-decreasing timestamps.
func (w *Writer) WritePacket(pkt *astiav.Packet, tb astiav.Rational) error {
	pkt.SetStreamIndex(w.stream.Index())
	pkt.RescaleTs(tb, w.stream.TimeBase())
	if err := w.fc.WriteInterleavedFrame(pkt); err != nil {
		return fmt.Errorf("%w: write packet: %w", ErrMux, err)
	}
	return nil
}

// WriteTrailer finalizes the container. It must be the last write.
func (w *Writer) WriteTrailer() error {
	if err := w.fc.WriteTrailer(); err != nil {
		return fmt.Errorf("%w: write trailer: %w", ErrMux, err)
	}
	return nil
}

// Created reports whether the output file has been created on disk.
func (w *Writer) Created() bool { return w.created }

func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	var err error
	if w.pb != nil {
		if cerr := w.pb.Close(); cerr != nil {
			err = fmt.Errorf("%w: close output %q: %w", ErrIO, w.path, cerr)
		}
	}
	w.fc.Free()
	return err
}
