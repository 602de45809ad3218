package audiofile

import (
	"os"
	"path/filepath"
	"testing"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestWAV(t *testing.T, rate, channels int, data []int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "in.wav")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	enc := wav.NewEncoder(f, rate, 16, channels, 1)
	buf := &gaudio.IntBuffer{
		Format:         &gaudio.Format{NumChannels: channels, SampleRate: rate},
		Data:           data,
		SourceBitDepth: 16,
	}
	require.NoError(t, enc.Write(buf))
	require.NoError(t, enc.Close())
	return path
}

func TestDecode_WAVMonoSameRate(t *testing.T) {
	data := make([]int, 1600)
	for i := range data {
		data[i] = 16384 // 0.5 in 16-bit
	}
	path := writeTestWAV(t, 16000, 1, data)

	pcm, err := Decode(path, 16000)
	require.NoError(t, err)
	require.Len(t, pcm, 1600)
	assert.InDelta(t, 0.5, float64(pcm[0]), 0.001)
}

func TestDecode_WAVStereoIsDownmixed(t *testing.T) {
	// Left channel at full scale, right silent: the mono mix halves it.
	data := make([]int, 200)
	for i := 0; i < len(data); i += 2 {
		data[i] = 32767
	}
	path := writeTestWAV(t, 16000, 2, data)

	pcm, err := Decode(path, 16000)
	require.NoError(t, err)
	require.Len(t, pcm, 100)
	assert.InDelta(t, 0.5, float64(pcm[0]), 0.001)
}

func TestDecode_UnsupportedFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("not audio"), 0o644))
	_, err := Decode(path, 16000)
	assert.Error(t, err)
}

func TestDecode_MissingFile(t *testing.T) {
	_, err := Decode(filepath.Join(t.TempDir(), "absent.wav"), 16000)
	assert.Error(t, err)
}

func TestDecode_SniffsWAVWithoutExtension(t *testing.T) {
	data := make([]int, 100)
	src := writeTestWAV(t, 16000, 1, data)
	dst := filepath.Join(t.TempDir(), "mystery.bin")
	raw, err := os.ReadFile(src)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(dst, raw, 0o644))

	pcm, err := Decode(dst, 16000)
	require.NoError(t, err)
	assert.Len(t, pcm, 100)
}

func TestDownmix(t *testing.T) {
	out := downmix([]float32{1, 0, 0.5, 0.5, -1, 1}, 2)
	require.Len(t, out, 3)
	assert.InDelta(t, 0.5, float64(out[0]), 1e-6)
	assert.InDelta(t, 0.5, float64(out[1]), 1e-6)
	assert.InDelta(t, 0.0, float64(out[2]), 1e-6)
}

func TestResample(t *testing.T) {
	in := make([]float32, 48000)
	for i := range in {
		in[i] = 0.25
	}
	out := resample(in, 48000, 16000)
	assert.Equal(t, 16000, len(out))
	assert.InDelta(t, 0.25, float64(out[8000]), 1e-6)

	// Same rate passes through untouched.
	same := resample(in, 48000, 48000)
	assert.Equal(t, len(in), len(same))

	up := resample([]float32{0, 1}, 1, 4)
	assert.Equal(t, 8, len(up))
}

func TestInt16ToFloat32(t *testing.T) {
	out := int16ToFloat32([]int16{0, 16384, -32768, 32767})
	assert.InDelta(t, 0.0, float64(out[0]), 1e-6)
	assert.InDelta(t, 0.5, float64(out[1]), 1e-6)
	assert.InDelta(t, -1.0, float64(out[2]), 1e-6)
	assert.InDelta(t, 1.0, float64(out[3]), 1e-3)
}
