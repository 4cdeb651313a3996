package fifo

import (
	"testing"

	"github.com/asticode/go-astiav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seq(from, n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(from + i)
	}
	return b
}

// newFrame allocates a frame with room for n samples. When data is set it
// holds every plane back to back.
func newFrame(t *testing.T, format astiav.SampleFormat, layout astiav.ChannelLayout, n int, data []byte) *astiav.Frame {
	t.Helper()
	f := astiav.AllocFrame()
	require.NotNil(t, f)
	t.Cleanup(f.Free)
	f.SetSampleRate(48000)
	f.SetSampleFormat(format)
	f.SetChannelLayout(layout)
	f.SetNbSamples(n)
	require.NoError(t, f.AllocBuffer(0))
	if data != nil {
		require.NoError(t, f.Data().SetBytes(data, 1))
	}
	return f
}

func newFifo(t *testing.T, format astiav.SampleFormat, channels int) *Fifo {
	t.Helper()
	f, err := New(format, channels)
	require.NoError(t, err)
	t.Cleanup(f.Close)
	return f
}

func pop(t *testing.T, f *Fifo, format astiav.SampleFormat, layout astiav.ChannelLayout, n int) []byte {
	t.Helper()
	dst := newFrame(t, format, layout, n, nil)
	require.NoError(t, f.PopExact(dst, n))
	require.Equal(t, n, dst.NbSamples())
	b, err := dst.Data().Bytes(1)
	require.NoError(t, err)
	return b
}

func TestNewRejectsBadLayout(t *testing.T) {
	_, err := New(astiav.SampleFormatNone, 2)
	require.ErrorIs(t, err, ErrInvalidData)

	_, err = New(astiav.SampleFormatS16, 0)
	require.ErrorIs(t, err, ErrInvalidData)
}

func TestAppendThenPopPreservesOrder(t *testing.T) {
	// s16 stereo packed: 4 bytes per sample
	s16, stereo := astiav.SampleFormatS16, astiav.ChannelLayoutStereo
	f := newFifo(t, s16, 2)

	a := seq(0, 3*4)
	b := seq(100, 5*4)
	require.NoError(t, f.Append(newFrame(t, s16, stereo, 3, a)))
	require.NoError(t, f.Append(newFrame(t, s16, stereo, 5, b)))
	assert.Equal(t, 8, f.Size())

	first := pop(t, f, s16, stereo, 2)
	rest := pop(t, f, s16, stereo, 6)
	assert.Equal(t, 0, f.Size())

	got := append(first, rest...)
	assert.Equal(t, append(append([]byte{}, a...), b...), got)
}

func TestPlanarPopKeepsPlanesSeparate(t *testing.T) {
	// fltp stereo: two planes of 4-byte samples
	fltp, stereo := astiav.SampleFormatFltp, astiav.ChannelLayoutStereo
	f := newFifo(t, fltp, 2)

	left := seq(0, 4*4)
	right := seq(200, 4*4)
	require.NoError(t, f.Append(newFrame(t, fltp, stereo, 4, append(append([]byte{}, left...), right...))))

	out := pop(t, f, fltp, stereo, 3)
	require.Len(t, out, 2*3*4)
	assert.Equal(t, left[:12], out[:12])
	assert.Equal(t, right[:12], out[12:])

	out = pop(t, f, fltp, stereo, 1)
	assert.Equal(t, left[12:], out[:4])
	assert.Equal(t, right[12:], out[4:])
}

func TestPopExactUnderrun(t *testing.T) {
	s16, mono := astiav.SampleFormatS16, astiav.ChannelLayoutMono
	f := newFifo(t, s16, 1)
	require.NoError(t, f.Append(newFrame(t, s16, mono, 3, seq(0, 6))))

	dst := newFrame(t, s16, mono, 4, nil)
	err := f.PopExact(dst, 4)
	require.ErrorIs(t, err, ErrUnderrun)
	assert.Equal(t, 3, f.Size(), "failed pop must not consume samples")
}

func TestAppendForeignFrame(t *testing.T) {
	f := newFifo(t, astiav.SampleFormatS16, 2)

	err := f.Append(newFrame(t, astiav.SampleFormatFlt, astiav.ChannelLayoutStereo, 2, nil))
	require.ErrorIs(t, err, ErrInvalidData)
	err = f.Append(newFrame(t, astiav.SampleFormatS16, astiav.ChannelLayoutMono, 2, nil))
	require.ErrorIs(t, err, ErrInvalidData)
	assert.Equal(t, 0, f.Size())
}

func TestAppendZeroIsNoop(t *testing.T) {
	f := newFifo(t, astiav.SampleFormatS16, 2)
	empty := astiav.AllocFrame()
	require.NotNil(t, empty)
	defer empty.Free()

	require.NoError(t, f.Append(empty))
	assert.Equal(t, 0, f.Size())
}

func TestCloseTwice(t *testing.T) {
	f, err := New(astiav.SampleFormatS16, 2)
	require.NoError(t, err)
	f.Close()
	f.Close()
}

func TestInterleavedAppendPopKeepsStream(t *testing.T) {
	// Many uneven appends against fixed-size pops, the way the resampler and
	// encoder meet in a transcode job. Appends overrun the initial capacity.
	s16, stereo := astiav.SampleFormatS16, astiav.ChannelLayoutStereo
	f := newFifo(t, s16, 2)

	const frameSize = 960
	var in, out []byte
	next := 0
	for _, n := range []int{1024, 1115, 7, 2048, 960, 1, 5000} {
		chunk := make([]byte, n*4)
		for i := range chunk {
			chunk[i] = byte(next)
			next++
		}
		in = append(in, chunk...)
		require.NoError(t, f.Append(newFrame(t, s16, stereo, n, chunk)))
		for f.Size() >= frameSize {
			out = append(out, pop(t, f, s16, stereo, frameSize)...)
		}
	}
	out = append(out, pop(t, f, s16, stereo, f.Size())...)

	assert.Equal(t, in, out)
}
