package transcode

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/asticode/go-astiav"
	"github.com/sonroyaalmerol/opusify/internal/config"
	"github.com/sonroyaalmerol/opusify/internal/media"
)

// Target is the fixed encode target of every job run by a Transcoder.
type Target struct {
	Codec        string
	Format       string // container short name, guessed from the output path when empty
	SampleRate   int
	Channels     int
	SampleFormat astiav.SampleFormat
	BitRate      int64
	// DefaultFrameSize is used when the encoder accepts frames of any length.
	DefaultFrameSize int
}

func DefaultTarget() Target {
	return Target{
		Codec:            "libopus",
		SampleRate:       48000,
		Channels:         2,
		SampleFormat:     astiav.SampleFormatS16,
		BitRate:          96_000,
		DefaultFrameSize: 1024,
	}
}

// Key identifies the encode settings of the target.
func (t Target) Key() string {
	return fmt.Sprintf("%s/%s/%d/%d/%s/%d/%d",
		t.Codec, t.Format, t.SampleRate, t.Channels, t.SampleFormat.Name(), t.BitRate, t.DefaultFrameSize)
}

// OutputKey identifies the bytes a job writes to outputPath. When no format
// is forced the container is guessed from the file name, so the extension
// becomes part of the key. Equal keys mean identical output for one input.
func (t Target) OutputKey(outputPath string) string {
	container := t.Format
	if container == "" {
		container = "ext:" + strings.ToLower(filepath.Ext(outputPath))
	}
	return t.Key() + "|" + container
}

// TargetFromConfig builds the target described by the OUTPUT_* settings.
func TargetFromConfig(o config.Output) (Target, error) {
	sf, err := media.ParseSampleFormat(o.SampleFormat)
	if err != nil {
		return Target{}, config.ErrConfig("OUTPUT_SAMPLE_FORMAT: " + err.Error())
	}
	t := DefaultTarget()
	t.Codec = o.Codec
	t.Format = o.Format
	t.SampleRate = o.SampleRate
	t.Channels = o.Channels
	t.SampleFormat = sf
	t.BitRate = o.BitRate
	return t, nil
}
