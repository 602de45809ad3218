package chat

import (
	"strings"
	"time"
)

// TurnPolicy decides when accumulated transcription fragments form one
// complete user turn. The segmentation heuristic is deliberately pluggable;
// the chunker's silence splitting already makes the immediate policy work
// well, but noisier setups can buffer across short gaps instead.
type TurnPolicy interface {
	// Add feeds one fragment. A non-empty turn with ok=true means the
	// turn completed right now.
	Add(text string, at time.Time) (turn string, ok bool)
	// Flush reports a turn completed by inactivity: buffered fragments
	// whose pause gap has elapsed by now.
	Flush(now time.Time) (turn string, ok bool)
}

// ImmediatePolicy treats every fragment as a full turn. This matches the
// silence-split chunker: one split chunk is one utterance.
type ImmediatePolicy struct{}

func (ImmediatePolicy) Add(text string, _ time.Time) (string, bool) {
	text = strings.TrimSpace(text)
	return text, text != ""
}

func (ImmediatePolicy) Flush(time.Time) (string, bool) { return "", false }

// PausePolicy buffers fragments and completes the turn once no new
// fragment arrived for the configured gap.
type PausePolicy struct {
	Gap time.Duration

	parts  []string
	lastAt time.Time
}

func NewPausePolicy(gap time.Duration) *PausePolicy {
	return &PausePolicy{Gap: gap}
}

func (p *PausePolicy) Add(text string, at time.Time) (string, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", false
	}
	p.parts = append(p.parts, text)
	p.lastAt = at
	return "", false
}

func (p *PausePolicy) Flush(now time.Time) (string, bool) {
	if len(p.parts) == 0 || now.Sub(p.lastAt) < p.Gap {
		return "", false
	}
	turn := strings.Join(p.parts, " ")
	p.parts = p.parts[:0]
	return turn, true
}
