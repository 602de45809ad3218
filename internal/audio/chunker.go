package audio

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// ChunkKind says which trigger closed a chunk.
type ChunkKind string

const (
	// ChunkSplit chunks are closed by silence detection and hold one
	// utterance with the trailing silence trimmed off.
	ChunkSplit ChunkKind = "split"
	// ChunkRealtime chunks are fixed-length slices cut whenever the
	// realtime ceiling is reached, bounding transcription latency while
	// speech is still going.
	ChunkRealtime ChunkKind = "realtime"
)

// Chunk is one bounded segment of microphone audio, the unit of
// transcription work.
type Chunk struct {
	ID         string
	Kind       ChunkKind
	Index      int
	Samples    []float32
	SampleRate int
}

// Duration is the chunk length in audio time.
func (c *Chunk) Duration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(c.Samples)) / float64(c.SampleRate) * float64(time.Second))
}

// Seconds is Duration as a float, the unit used in log records.
func (c *Chunk) Seconds() float64 {
	if c.SampleRate <= 0 {
		return 0
	}
	return float64(len(c.Samples)) / float64(c.SampleRate)
}

// RMS is the root-mean-square energy of the whole chunk.
func (c *Chunk) RMS() float64 { return RMS(c.Samples) }

// RMS computes root-mean-square energy of a sample block.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// ProcessorConfig tunes the two independent chunk boundary triggers.
type ProcessorConfig struct {
	SampleRate       int
	SilenceThreshold float64       // RMS below this counts as silence
	SilenceDuration  time.Duration // this much continuous silence closes a split chunk
	RealtimeChunk    time.Duration // ceiling after which a realtime chunk is cut regardless
}

// Processor turns a stream of fixed-size sample blocks into bounded chunks.
// Two triggers run independently: sustained silence closes a split chunk
// holding the utterance so far, and the realtime ceiling slices off
// fixed-length realtime chunks so continuous speech is transcribed with
// bounded delay. Not safe for concurrent use; each listener owns one.
type Processor struct {
	cfg ProcessorConfig

	current  [][]float32 // blocks of the utterance being accumulated
	realtime []float32   // rolling buffer for realtime slicing

	silenceFrames   int // continuous silent frames at the tail of current
	silentTail      int // trailing blocks of current that are pure silence
	realtimeFrames  int
	splitCount      int
	realtimeCount   int
	framesPerSplit  int
	framesPerRTSpan int
}

func NewProcessor(cfg ProcessorConfig) *Processor {
	return &Processor{
		cfg:             cfg,
		framesPerSplit:  int(cfg.SilenceDuration.Seconds() * float64(cfg.SampleRate)),
		framesPerRTSpan: int(cfg.RealtimeChunk.Seconds() * float64(cfg.SampleRate)),
	}
}

// ProcessBlock feeds one block of mono samples through both triggers and
// returns the chunks they closed, oldest first. Blocks of pure silence with
// nothing accumulated produce no output.
func (p *Processor) ProcessBlock(samples []float32) []*Chunk {
	if len(samples) == 0 {
		return nil
	}
	block := make([]float32, len(samples))
	copy(block, samples)

	p.current = append(p.current, block)
	p.realtime = append(p.realtime, block...)
	p.realtimeFrames += len(block)

	if RMS(block) < p.cfg.SilenceThreshold {
		p.silenceFrames += len(block)
		p.silentTail++
	} else {
		p.silenceFrames = 0
		p.silentTail = 0
	}

	var chunks []*Chunk

	// Realtime ceiling: cut fixed-length slices off the rolling buffer.
	for p.framesPerRTSpan > 0 && len(p.realtime) >= p.framesPerRTSpan {
		slice := make([]float32, p.framesPerRTSpan)
		copy(slice, p.realtime[:p.framesPerRTSpan])
		p.realtime = p.realtime[p.framesPerRTSpan:]
		p.realtimeCount++
		chunks = append(chunks, p.newChunk(ChunkRealtime, p.realtimeCount, slice))
	}
	p.realtimeFrames = len(p.realtime)

	// Silence boundary: close the utterance, dropping the silent tail.
	if p.framesPerSplit > 0 && p.silenceFrames >= p.framesPerSplit {
		voiced := p.current[:len(p.current)-p.silentTail]
		if len(voiced) > 0 {
			var total int
			for _, b := range voiced {
				total += len(b)
			}
			joined := make([]float32, 0, total)
			for _, b := range voiced {
				joined = append(joined, b...)
			}
			p.splitCount++
			chunks = append(chunks, p.newChunk(ChunkSplit, p.splitCount, joined))
		}
		p.current = p.current[:0]
		p.silentTail = 0
		p.silenceFrames = 0
	}

	return chunks
}

func (p *Processor) newChunk(kind ChunkKind, index int, samples []float32) *Chunk {
	return &Chunk{
		ID:         uuid.NewString(),
		Kind:       kind,
		Index:      index,
		Samples:    samples,
		SampleRate: p.cfg.SampleRate,
	}
}
