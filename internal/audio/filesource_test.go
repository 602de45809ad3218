package audio

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSource_ReplaysInBlocks(t *testing.T) {
	pcm := make([]float32, 2500)
	for i := range pcm {
		pcm[i] = float32(i)
	}
	src := NewFileSource(pcm, testRate, 1000, false)
	require.NoError(t, src.Open())

	b1, err := src.ReadBlock()
	require.NoError(t, err)
	assert.Len(t, b1, 1000)
	assert.Equal(t, float32(0), b1[0])

	b2, err := src.ReadBlock()
	require.NoError(t, err)
	assert.Len(t, b2, 1000)
	assert.Equal(t, float32(1000), b2[0])

	// Final block is the short remainder.
	b3, err := src.ReadBlock()
	require.NoError(t, err)
	assert.Len(t, b3, 500)

	_, err = src.ReadBlock()
	assert.ErrorIs(t, err, io.EOF)
	assert.NoError(t, src.Close())
}

func TestFileSource_EmptyRecording(t *testing.T) {
	src := NewFileSource(nil, testRate, 1000, false)
	_, err := src.ReadBlock()
	assert.ErrorIs(t, err, io.EOF)
}
