// Package mediatest builds small media files for tests at run time, so no
// binary fixtures need to live in the repository.
package mediatest

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"

	"github.com/asticode/go-astiav"
	"github.com/sonroyaalmerol/opusify/internal/fifo"
	"github.com/sonroyaalmerol/opusify/internal/media"
)

// Tone describes a sine tone to encode.
type Tone struct {
	Codec      string
	Format     string
	SampleRate int
	Channels   int
	// SampleFormat must be one the codec accepts; float formats only.
	SampleFormat astiav.SampleFormat
	BitRate      int64
	Samples      int
	Frequency    float64
}

// AACTone is a stereo 44.1 kHz tone in an ADTS stream.
func AACTone(samples int) Tone {
	return Tone{
		Codec:        "aac",
		Format:       "adts",
		SampleRate:   44100,
		Channels:     2,
		SampleFormat: astiav.SampleFormatFltp,
		BitRate:      128_000,
		Samples:      samples,
		Frequency:    440,
	}
}

// HasEncoders reports whether the linked FFmpeg provides every named encoder.
func HasEncoders(names ...string) bool {
	for _, n := range names {
		if astiav.FindEncoderByName(n) == nil {
			return false
		}
	}
	return true
}

// WriteTone encodes tone into path using the media package's own encoder and
// writer.
func WriteTone(path string, tone Tone) error {
	w, err := media.CreateWriter(path, tone.Format)
	if err != nil {
		return err
	}
	defer w.Close()

	enc, err := media.NewEncoder(media.EncoderConfig{
		CodecName:    tone.Codec,
		SampleRate:   tone.SampleRate,
		Channels:     tone.Channels,
		SampleFormat: tone.SampleFormat,
		BitRate:      tone.BitRate,
		GlobalHeader: w.GlobalHeader(),
	})
	if err != nil {
		return err
	}
	defer enc.Close()
	if err := enc.Open(); err != nil {
		return err
	}
	if err := w.AddStream(enc); err != nil {
		return err
	}
	if err := w.WriteHeader(); err != nil {
		return err
	}

	pkt := astiav.AllocPacket()
	defer pkt.Free()
	drain := func() error {
		for {
			err := enc.ReceivePacket(pkt)
			if errors.Is(err, media.ErrDrain) || errors.Is(err, media.ErrFlushed) {
				return nil
			}
			if err != nil {
				return err
			}
			if err := w.WritePacket(pkt, enc.TimeBase()); err != nil {
				return err
			}
		}
	}

	desc := enc.Descriptor()
	queue, err := fifo.New(desc.SampleFormat, desc.Channels())
	if err != nil {
		return err
	}
	defer queue.Close()
	src := astiav.AllocFrame()
	if src == nil {
		return errors.New("mediatest: alloc frame")
	}
	defer src.Free()

	frameSize := enc.FrameSize()
	if frameSize <= 0 {
		frameSize = 1024
	}
	for pos := 0; pos < tone.Samples; pos += frameSize {
		n := min(frameSize, tone.Samples-pos)
		data, err := sine(tone, pos, n)
		if err != nil {
			return err
		}
		src.Unref()
		src.SetSampleRate(desc.SampleRate)
		src.SetChannelLayout(desc.ChannelLayout)
		src.SetSampleFormat(desc.SampleFormat)
		src.SetNbSamples(n)
		if err := src.AllocBuffer(0); err != nil {
			return err
		}
		if err := src.Data().SetBytes(data, 1); err != nil {
			return err
		}
		if err := queue.Append(src); err != nil {
			return err
		}
		frame, err := enc.FillFrame(queue, n, int64(pos))
		if err != nil {
			return err
		}
		if err := enc.SendFrame(frame); err != nil {
			return err
		}
		if err := drain(); err != nil {
			return err
		}
	}
	if err := enc.SendFrame(nil); err != nil {
		return err
	}
	if err := drain(); err != nil {
		return err
	}
	return w.WriteTrailer()
}

// sine renders n samples starting at pos, planes back to back.
func sine(tone Tone, pos, n int) ([]byte, error) {
	var bps int
	switch tone.SampleFormat {
	case astiav.SampleFormatFlt, astiav.SampleFormatFltp:
		bps = 4
	default:
		return nil, fmt.Errorf("mediatest: unsupported sample format %s", tone.SampleFormat.Name())
	}
	planar := tone.SampleFormat.IsPlanar()
	buf := make([]byte, n*tone.Channels*bps)
	for i := 0; i < n; i++ {
		v := float32(0.5 * math.Sin(2*math.Pi*tone.Frequency*float64(pos+i)/float64(tone.SampleRate)))
		for c := 0; c < tone.Channels; c++ {
			off := (i*tone.Channels + c) * bps
			if planar {
				off = (c*n + i) * bps
			}
			binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(v))
		}
	}
	return buf, nil
}

// WritePNG writes a small image, a container FFmpeg opens fine but which
// carries no audio stream.
func WritePNG(path string) error {
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for x := 0; x < 16; x++ {
		for y := 0; y < 16; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 16), G: uint8(y * 16), B: 128, A: 255})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
