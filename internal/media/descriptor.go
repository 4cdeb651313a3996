package media

import (
	"fmt"
	"strings"

	"github.com/asticode/go-astiav"
)

// StreamDescriptor is the PCM shape of one side of a transcode: what the
// decoder produces or what the encoder consumes.
type StreamDescriptor struct {
	SampleRate    int
	ChannelLayout astiav.ChannelLayout
	SampleFormat  astiav.SampleFormat
	TimeBase      astiav.Rational

	// codecParameters is set on descriptors discovered by a Reader and stays
	// valid while that Reader is open.
	codecParameters *astiav.CodecParameters
}

func (d StreamDescriptor) Channels() int { return d.ChannelLayout.Channels() }

func (d StreamDescriptor) String() string {
	return fmt.Sprintf("%dHz/%dch/%s", d.SampleRate, d.Channels(), d.SampleFormat.Name())
}

var sampleFormats = map[string]astiav.SampleFormat{
	"u8":   astiav.SampleFormatU8,
	"s16":  astiav.SampleFormatS16,
	"s32":  astiav.SampleFormatS32,
	"flt":  astiav.SampleFormatFlt,
	"dbl":  astiav.SampleFormatDbl,
	"s16p": astiav.SampleFormatS16P,
	"s32p": astiav.SampleFormatS32P,
	"fltp": astiav.SampleFormatFltp,
	"dblp": astiav.SampleFormatDblp,
}

func ParseSampleFormat(name string) (astiav.SampleFormat, error) {
	f, ok := sampleFormats[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return astiav.SampleFormatNone, fmt.Errorf("unknown sample format %q", name)
	}
	return f, nil
}

// LayoutForChannels returns the default layout for a channel count.
func LayoutForChannels(n int) (astiav.ChannelLayout, error) {
	switch n {
	case 1:
		return astiav.ChannelLayoutMono, nil
	case 2:
		return astiav.ChannelLayoutStereo, nil
	}
	return astiav.ChannelLayout{}, fmt.Errorf("unsupported channel count %d", n)
}

// normalizeLayout swaps a layout some demuxers leave unset for the default
// layout of its channel count.
func normalizeLayout(l astiav.ChannelLayout) astiav.ChannelLayout {
	if l.Valid() && l.Channels() > 0 {
		return l
	}
	if def, err := LayoutForChannels(l.Channels()); err == nil {
		return def
	}
	return l
}
