package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonroyaalmerol/opusify/internal/media/mediatest"
)

func setEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("DATA_DIR", filepath.Join(dir, "data"))
	t.Setenv("METRICS_FILE", filepath.Join(dir, "metrics.prom"))
	t.Setenv("LOG_LEVEL", "error")
	return dir
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestUsage(t *testing.T) {
	setEnv(t)
	code, _, stderr := runCLI(t)
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "usage:")

	code, _, _ = runCLI(t, "bogus")
	assert.Equal(t, 2, code)

	code, _, stderr = runCLI(t, "transcode", "only-input")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "INPUT OUTPUT pairs")
}

func TestBadConfig(t *testing.T) {
	setEnv(t)
	t.Setenv("OUTPUT_CHANNELS", "6")
	code, _, stderr := runCLI(t, "history")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "OUTPUT_CHANNELS")
}

func TestTranscodeFailureExitsNonZero(t *testing.T) {
	dir := setEnv(t)
	out := filepath.Join(dir, "out.opus")

	code, stdout, _ := runCLI(t, "transcode", filepath.Join(dir, "missing.m4a"), out)
	assert.Equal(t, 1, code)
	assert.Contains(t, stdout, "failure")
	assert.NoFileExists(t, out)
	assert.FileExists(t, filepath.Join(dir, "metrics.prom"))

	code, stdout, _ = runCLI(t, "history")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "missing.m4a")
	assert.Contains(t, stdout, "failure")
}

func TestTranscodeThenCached(t *testing.T) {
	if !mediatest.HasEncoders("aac", "libopus") {
		t.Skip("ffmpeg lacks aac or libopus encoder")
	}
	dir := setEnv(t)
	in := filepath.Join(dir, "tone.aac")
	require.NoError(t, mediatest.WriteTone(in, mediatest.AACTone(44100)))

	first := filepath.Join(dir, "first.opus")
	code, stdout, stderr := runCLI(t, "transcode", "-workers", "1", in, first)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "success")
	assert.FileExists(t, first)

	second := filepath.Join(dir, "second.opus")
	code, stdout, stderr = runCLI(t, "transcode", in, second)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "cached")

	a, err := os.ReadFile(first)
	require.NoError(t, err)
	b, err := os.ReadFile(second)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestHistoryDisabled(t *testing.T) {
	setEnv(t)
	t.Setenv("ENABLE_HISTORY", "false")
	code, _, _ := runCLI(t, "history")
	assert.Equal(t, 1, code)
}
