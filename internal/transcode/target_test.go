package transcode

import (
	"testing"

	"github.com/asticode/go-astiav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonroyaalmerol/opusify/internal/config"
)

func TestTargetFromConfig(t *testing.T) {
	tgt, err := TargetFromConfig(config.Output{
		Codec:        "libopus",
		Format:       "ogg",
		SampleRate:   48000,
		Channels:     1,
		SampleFormat: "flt",
		BitRate:      64000,
	})
	require.NoError(t, err)
	assert.Equal(t, "ogg", tgt.Format)
	assert.Equal(t, 1, tgt.Channels)
	assert.Equal(t, astiav.SampleFormatFlt, tgt.SampleFormat)
	assert.Equal(t, int64(64000), tgt.BitRate)
	assert.Equal(t, 1024, tgt.DefaultFrameSize)
}

func TestTargetFromConfigBadSampleFormat(t *testing.T) {
	_, err := TargetFromConfig(config.Output{SampleFormat: "s24"})
	var cerr config.ErrConfig
	assert.ErrorAs(t, err, &cerr)
}

func TestTargetKey(t *testing.T) {
	a := DefaultTarget()
	b := DefaultTarget()
	assert.Equal(t, a.Key(), b.Key())

	b.BitRate = 64000
	assert.NotEqual(t, a.Key(), b.Key())

	b = DefaultTarget()
	b.SampleFormat = astiav.SampleFormatFltp
	assert.NotEqual(t, a.Key(), b.Key())
}

func TestOutputKeyIncludesContainer(t *testing.T) {
	tgt := DefaultTarget()
	assert.Equal(t, tgt.OutputKey("/a/x.opus"), tgt.OutputKey("/b/y.OPUS"))
	assert.NotEqual(t, tgt.OutputKey("x.opus"), tgt.OutputKey("x.mka"))
	assert.NotEqual(t, tgt.OutputKey("x.opus"), tgt.OutputKey("x.webm"))

	tgt.Format = "ogg"
	assert.Equal(t, tgt.OutputKey("x.opus"), tgt.OutputKey("x.mka"), "forced format ignores the extension")
}
