package audio

import (
	"io"
	"time"
)

// FileSource replays pre-decoded PCM through the pipeline in block-size
// steps, paced at realtime speed so the chunker sees the same timing it
// would from the microphone. ReadBlock returns io.EOF once the recording
// is exhausted.
type FileSource struct {
	pcm        []float32
	pos        int
	sampleRate int
	blockSize  int
	pace       bool
}

func NewFileSource(pcm []float32, sampleRate, blockSize int, pace bool) *FileSource {
	return &FileSource{pcm: pcm, sampleRate: sampleRate, blockSize: blockSize, pace: pace}
}

func (f *FileSource) Open() error { return nil }

func (f *FileSource) ReadBlock() ([]float32, error) {
	if f.pos >= len(f.pcm) {
		return nil, io.EOF
	}
	end := f.pos + f.blockSize
	if end > len(f.pcm) {
		end = len(f.pcm)
	}
	block := f.pcm[f.pos:end]
	f.pos = end
	if f.pace && f.sampleRate > 0 {
		time.Sleep(time.Duration(float64(len(block)) / float64(f.sampleRate) * float64(time.Second)))
	}
	return block, nil
}

func (f *FileSource) Close() error { return nil }
