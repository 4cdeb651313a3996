// Package transcode runs audio transcode jobs: demux, decode, resample,
// buffer, re-chunk, encode and mux, including the end-of-stream drain.
//
// A job is synchronous and owns every stage it opens. Jobs share nothing, so
// one Transcoder may run several jobs concurrently.
package transcode

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/asticode/go-astiav"
	"github.com/sonroyaalmerol/opusify/internal/fifo"
	"github.com/sonroyaalmerol/opusify/internal/media"
)

type Transcoder struct {
	target Target
	log    *slog.Logger
}

func New(target Target, logger *slog.Logger) *Transcoder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Transcoder{target: target, log: logger}
}

// OutputKey identifies what Transcode writes to outputPath: the target plus
// the container the output ends up in.
func (t *Transcoder) OutputKey(outputPath string) string { return t.target.OutputKey(outputPath) }

// Result describes a finished job.
type Result struct {
	FrameSize     int
	InputSamples  int64 // decoded samples at the input rate
	OutputSamples int64 // samples handed to the encoder, the final clock value
	Chunks        int
	Packets       int
	Duration      time.Duration // of the encoded audio
}

// Transcode converts the audio stream of inputPath into outputPath. Any
// failure aborts the job; an output file created by a failed job is removed.
func (t *Transcoder) Transcode(inputPath, outputPath string) (res *Result, err error) {
	j := &job{
		target: t.target,
		log:    t.log.With("input", inputPath, "output", outputPath),
	}
	defer func() {
		if cerr := j.close(); cerr != nil && err == nil {
			err = cerr
		}
		if err != nil && j.writer != nil && j.writer.Created() {
			if rerr := os.Remove(outputPath); rerr != nil && !errors.Is(rerr, os.ErrNotExist) {
				j.log.Warn("remove partial output", "err", rerr)
			}
		}
	}()

	start := time.Now()
	if err := j.open(inputPath, outputPath); err != nil {
		return nil, err
	}
	if err := j.run(); err != nil {
		return nil, err
	}

	res = j.result()
	j.log.Info("transcode done",
		"samples", res.OutputSamples,
		"chunks", res.Chunks,
		"packets", res.Packets,
		"duration", res.Duration,
		"elapsed", time.Since(start))
	return res, nil
}

type job struct {
	target Target
	log    *slog.Logger

	reader    *media.Reader
	decoder   *media.Decoder
	resampler *media.Resampler
	encoder   *media.Encoder
	writer    *media.Writer
	fifo      *fifo.Fifo

	inPkt  *astiav.Packet
	outPkt *astiav.Packet
	frame  *astiav.Frame

	audioIndex int
	frameSize  int
	clock      sampleClock

	inputSamples int64
	chunks       int
	packets      int
}

func (j *job) open(inputPath, outputPath string) error {
	var err error
	if j.reader, err = media.OpenReader(inputPath); err != nil {
		return err
	}
	idx, src, err := j.reader.FindAudioStream()
	if err != nil {
		return err
	}
	j.audioIndex = idx

	if j.decoder, err = media.NewDecoder(src); err != nil {
		return err
	}
	if err := j.decoder.Open(); err != nil {
		return err
	}

	if j.writer, err = media.CreateWriter(outputPath, j.target.Format); err != nil {
		return err
	}
	j.encoder, err = media.NewEncoder(media.EncoderConfig{
		CodecName:    j.target.Codec,
		SampleRate:   j.target.SampleRate,
		Channels:     j.target.Channels,
		SampleFormat: j.target.SampleFormat,
		BitRate:      j.target.BitRate,
		GlobalHeader: j.writer.GlobalHeader(),
	})
	if err != nil {
		return err
	}
	if err := j.encoder.Open(); err != nil {
		return err
	}
	if err := j.writer.AddStream(j.encoder); err != nil {
		return err
	}

	dst := j.encoder.Descriptor()
	if j.resampler, err = media.NewResampler(j.decoder.Descriptor(), dst); err != nil {
		return err
	}
	if j.fifo, err = fifo.New(dst.SampleFormat, dst.Channels()); err != nil {
		return err
	}

	j.frameSize = j.encoder.FrameSize()
	if j.frameSize <= 0 {
		j.frameSize = j.target.DefaultFrameSize
	}

	j.inPkt = astiav.AllocPacket()
	j.outPkt = astiav.AllocPacket()
	j.frame = astiav.AllocFrame()
	if j.inPkt == nil || j.outPkt == nil || j.frame == nil {
		return fmt.Errorf("%w: alloc packets and frame", media.ErrCodec)
	}

	j.log.Debug("pipeline opened",
		"stream", idx,
		"src", j.decoder.Descriptor().String(),
		"dst", dst.String(),
		"frameSize", j.frameSize,
		"inputDuration", time.Duration(j.reader.Duration())*time.Microsecond)
	return nil
}

func (j *job) run() error {
	if err := j.writer.WriteHeader(); err != nil {
		return err
	}

	eof := false
	for !eof {
		for j.fifo.Size() < j.frameSize {
			more, err := j.readAndDecode()
			if err != nil {
				return err
			}
			if !more {
				eof = true
				break
			}
		}
		if j.fifo.Size() < j.frameSize {
			break
		}
		if err := j.emit(false); err != nil {
			return err
		}
	}

	return j.finish()
}

// readAndDecode reads one packet and pushes it through decoder and
// resampler into the fifo. It reports false at end of input.
func (j *job) readAndDecode() (bool, error) {
	if err := j.reader.ReadPacket(j.inPkt); err != nil {
		if errors.Is(err, io.EOF) {
			return false, nil
		}
		return false, fmt.Errorf("could not read frame: %w", err)
	}
	if j.inPkt.StreamIndex() != j.audioIndex {
		return true, nil
	}
	if err := j.decoder.SendPacket(j.inPkt); err != nil {
		return false, fmt.Errorf("could not send packet for decoding: %w", err)
	}
	return true, j.receiveFrames()
}

func (j *job) receiveFrames() error {
	for {
		err := j.decoder.ReceiveFrame(j.frame)
		if errors.Is(err, media.ErrDrain) || errors.Is(err, media.ErrFlushed) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("could not decode frame: %w", err)
		}
		j.inputSamples += int64(j.frame.NbSamples())

		out, err := j.resampler.Convert(j.frame)
		if err != nil {
			return fmt.Errorf("could not convert input samples: %w", err)
		}
		if out == nil {
			continue
		}
		if err := j.fifo.Append(out); err != nil {
			return fmt.Errorf("could not write data to fifo: %w", err)
		}
	}
}

func (j *job) emit(final bool) error {
	n, err := emitChunks(j.fifo, j.frameSize, &j.clock, final, j.encodeChunk)
	j.chunks += n
	if err != nil {
		return fmt.Errorf("could not encode chunk: %w", err)
	}
	return nil
}

func (j *job) encodeChunk(n int, pts int64) error {
	frame, err := j.encoder.FillFrame(j.fifo, n, pts)
	if err != nil {
		return err
	}
	if err := j.encoder.SendFrame(frame); err != nil {
		return err
	}
	return j.receivePackets()
}

func (j *job) receivePackets() error {
	for {
		err := j.encoder.ReceivePacket(j.outPkt)
		if errors.Is(err, media.ErrDrain) || errors.Is(err, media.ErrFlushed) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("could not encode frame: %w", err)
		}
		if err := j.writer.WritePacket(j.outPkt, j.encoder.TimeBase()); err != nil {
			return fmt.Errorf("could not write frame: %w", err)
		}
		j.packets++
	}
}

// finish drains every stage in pipeline order and finalizes the output.
func (j *job) finish() error {
	if err := j.decoder.SendPacket(nil); err != nil {
		return fmt.Errorf("could not drain decoder: %w", err)
	}
	if err := j.receiveFrames(); err != nil {
		return err
	}

	for {
		out, err := j.resampler.Flush()
		if err != nil {
			return fmt.Errorf("could not flush resampler: %w", err)
		}
		if out == nil {
			break
		}
		if err := j.fifo.Append(out); err != nil {
			return fmt.Errorf("could not write data to fifo: %w", err)
		}
	}

	if err := j.emit(true); err != nil {
		return err
	}

	if err := j.encoder.SendFrame(nil); err != nil {
		return fmt.Errorf("could not flush encoder: %w", err)
	}
	if err := j.receivePackets(); err != nil {
		return err
	}

	j.log.Debug("pipeline drained", "decoder", j.decoder.State(), "encoder", j.encoder.State())
	return j.writer.WriteTrailer()
}

func (j *job) result() *Result {
	samples := j.clock.now()
	return &Result{
		FrameSize:     j.frameSize,
		InputSamples:  j.inputSamples,
		OutputSamples: samples,
		Chunks:        j.chunks,
		Packets:       j.packets,
		Duration:      time.Duration(samples) * time.Second / time.Duration(j.target.SampleRate),
	}
}

// close releases every opened stage in reverse order of acquisition.
func (j *job) close() error {
	if j.frame != nil {
		j.frame.Free()
	}
	if j.outPkt != nil {
		j.outPkt.Free()
	}
	if j.inPkt != nil {
		j.inPkt.Free()
	}
	if j.fifo != nil {
		j.fifo.Close()
	}
	if j.resampler != nil {
		j.resampler.Close()
	}
	if j.encoder != nil {
		j.encoder.Close()
	}
	var err error
	if j.writer != nil {
		err = j.writer.Close()
	}
	if j.decoder != nil {
		j.decoder.Close()
	}
	if j.reader != nil {
		j.reader.Close()
	}
	return err
}
