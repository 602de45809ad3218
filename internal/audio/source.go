package audio

import (
	"fmt"

	"github.com/gordonklaus/portaudio"
)

// BlockSource hands out fixed-size blocks of mono float32 samples. The
// microphone implementation blocks on device I/O; this is the single
// external-I/O wait the pipeline allows outside of queue waits.
type BlockSource interface {
	Open() error
	// ReadBlock returns the next block. The returned slice is only valid
	// until the next call; callers must copy what they keep.
	ReadBlock() ([]float32, error)
	Close() error
}

// MicSource reads from the default capture device via portaudio.
type MicSource struct {
	sampleRate int
	blockSize  int
	buf        []float32
	stream     *portaudio.Stream
	inited     bool
}

func NewMicSource(sampleRate, blockSize int) *MicSource {
	return &MicSource{sampleRate: sampleRate, blockSize: blockSize}
}

func (m *MicSource) Open() error {
	if !m.inited {
		if err := portaudio.Initialize(); err != nil {
			return fmt.Errorf("portaudio init: %w", err)
		}
		m.inited = true
	}
	m.buf = make([]float32, m.blockSize)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(m.sampleRate), len(m.buf), m.buf)
	if err != nil {
		return fmt.Errorf("open capture stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("start capture stream: %w", err)
	}
	m.stream = stream
	return nil
}

func (m *MicSource) ReadBlock() ([]float32, error) {
	if m.stream == nil {
		return nil, fmt.Errorf("capture stream not open")
	}
	if err := m.stream.Read(); err != nil {
		return nil, fmt.Errorf("read capture stream: %w", err)
	}
	return m.buf, nil
}

func (m *MicSource) Close() error {
	var first error
	if m.stream != nil {
		if err := m.stream.Stop(); err != nil {
			first = err
		}
		if err := m.stream.Close(); err != nil && first == nil {
			first = err
		}
		m.stream = nil
	}
	if m.inited {
		if err := portaudio.Terminate(); err != nil && first == nil {
			first = err
		}
		m.inited = false
	}
	return first
}
