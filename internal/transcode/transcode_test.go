package transcode_test

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/asticode/go-astiav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/hraban/opus.v2"

	"github.com/sonroyaalmerol/opusify/internal/media"
	"github.com/sonroyaalmerol/opusify/internal/media/mediatest"
	"github.com/sonroyaalmerol/opusify/internal/transcode"
)

func newTranscoder() *transcode.Transcoder {
	astiav.SetLogLevel(astiav.LogLevelError)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return transcode.New(transcode.DefaultTarget(), logger)
}

func requireEncoders(t *testing.T, names ...string) {
	t.Helper()
	if !mediatest.HasEncoders(names...) {
		t.Skipf("ffmpeg built without %v", names)
	}
}

// decodeOpus decodes an Ogg Opus file with libopusfile and returns the
// number of samples per channel.
func decodeOpus(t *testing.T, path string) int {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	s, err := opus.NewStream(f)
	require.NoError(t, err)
	defer s.Close()

	pcm := make([]int16, 5760*2)
	total := 0
	for {
		n, err := s.Read(pcm)
		if errors.Is(err, io.EOF) {
			return total
		}
		require.NoError(t, err)
		total += n
	}
}

func TestTranscodeAACToOpus(t *testing.T) {
	requireEncoders(t, "aac", "libopus")
	dir := t.TempDir()
	in := filepath.Join(dir, "sample.aac")
	out := filepath.Join(dir, "sample.opus")

	// 2.00s at 44.1 kHz stereo
	require.NoError(t, mediatest.WriteTone(in, mediatest.AACTone(88200)))

	res, err := newTranscoder().Transcode(in, out)
	require.NoError(t, err)

	assert.Equal(t, 960, res.FrameSize)
	assert.Greater(t, res.Packets, 0)

	// Output duration matches the decoded input within one encoder frame.
	inSeconds := float64(res.InputSamples) / 44100
	outSeconds := float64(res.OutputSamples) / 48000
	assert.InDelta(t, inSeconds, outSeconds, 960.0/48000)

	// Every chunk but the last is full, and the clock covers them all.
	full := res.OutputSamples / int64(res.FrameSize)
	if res.OutputSamples%int64(res.FrameSize) == 0 {
		assert.Equal(t, int(full), res.Chunks)
	} else {
		assert.Equal(t, int(full)+1, res.Chunks)
	}

	decoded := decodeOpus(t, out)
	assert.InDelta(t, res.OutputSamples, decoded, 960)

	// The container reports the same length, within one 20 ms frame.
	r, err := media.OpenReader(out)
	require.NoError(t, err)
	defer r.Close()
	reported := time.Duration(r.Duration()) * time.Microsecond
	assert.InDelta(t, res.Duration.Seconds(), reported.Seconds(), 0.020)
}

func TestTranscodeOutputReadsBack(t *testing.T) {
	requireEncoders(t, "aac", "libopus")
	dir := t.TempDir()
	in := filepath.Join(dir, "short.aac")
	out := filepath.Join(dir, "short.opus")

	require.NoError(t, mediatest.WriteTone(in, mediatest.AACTone(10000)))
	_, err := newTranscoder().Transcode(in, out)
	require.NoError(t, err)

	r, err := media.OpenReader(out)
	require.NoError(t, err)
	defer r.Close()
	_, desc, err := r.FindAudioStream()
	require.NoError(t, err)
	assert.Equal(t, 48000, desc.SampleRate)
	assert.Equal(t, 2, desc.Channels())
}

func TestTranscodeConcurrentJobsKeepOwnClock(t *testing.T) {
	requireEncoders(t, "aac", "libopus")
	dir := t.TempDir()
	tr := newTranscoder()

	lengths := []int{22050, 44100, 30000, 5000}
	for i, n := range lengths {
		require.NoError(t, mediatest.WriteTone(filepath.Join(dir, fmt.Sprintf("in%d.aac", i)), mediatest.AACTone(n)))
	}

	results := make([]*transcode.Result, len(lengths))
	errs := make([]error, len(lengths))
	var wg sync.WaitGroup
	for i := range lengths {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = tr.Transcode(
				filepath.Join(dir, fmt.Sprintf("in%d.aac", i)),
				filepath.Join(dir, fmt.Sprintf("out%d.opus", i)))
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "job %d", i)
	}
	for i, res := range results {
		outSeconds := float64(res.OutputSamples) / 48000
		inSeconds := float64(res.InputSamples) / 44100
		assert.InDelta(t, inSeconds, outSeconds, 960.0/48000, "job %d", i)
	}
}

func TestTranscodeNoAudioStream(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "cover.png")
	out := filepath.Join(dir, "cover.opus")
	require.NoError(t, mediatest.WritePNG(in))

	_, err := newTranscoder().Transcode(in, out)
	require.ErrorIs(t, err, media.ErrStreamNotFound)

	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr), "no output file may be created")
}

func TestTranscodeMissingInput(t *testing.T) {
	dir := t.TempDir()
	_, err := newTranscoder().Transcode(filepath.Join(dir, "missing.aac"), filepath.Join(dir, "x.opus"))
	require.ErrorIs(t, err, media.ErrIO)
}

func TestTranscodeUnknownEncoder(t *testing.T) {
	requireEncoders(t, "aac")
	dir := t.TempDir()
	in := filepath.Join(dir, "in.aac")
	out := filepath.Join(dir, "out.opus")
	require.NoError(t, mediatest.WriteTone(in, mediatest.AACTone(4096)))

	target := transcode.DefaultTarget()
	target.Codec = "no-such-encoder"
	_, err := transcode.New(target, slog.New(slog.NewTextHandler(io.Discard, nil))).Transcode(in, out)
	require.ErrorIs(t, err, media.ErrCodec)

	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr))
}
