package transcribe

import "strings"

// FilterMode selects what happens when transcribed text hits the denylist.
type FilterMode string

const (
	// FilterDrop suppresses the whole transcription when the normalized
	// text is exactly a denylisted phrase. Whisper hallucinates a few
	// stock phrases on near-silence; dropping the exact match removes
	// them without touching real speech.
	FilterDrop FilterMode = "drop"
	// FilterMask keeps the transcription but replaces denylisted
	// substrings with asterisks.
	FilterMask FilterMode = "mask"
)

// Filter applies the configured denylist strategy.
type Filter struct {
	mode    FilterMode
	phrases []string
}

func NewFilter(mode FilterMode, phrases []string) *Filter {
	return &Filter{mode: mode, phrases: phrases}
}

// Apply returns the filtered text and whether the transcription should be
// discarded entirely. Blank text is always discarded.
func (f *Filter) Apply(text string) (string, bool) {
	normalized := strings.TrimSpace(text)
	if normalized == "" {
		return "", true
	}
	switch f.mode {
	case FilterMask:
		for _, phrase := range f.phrases {
			if phrase == "" {
				continue
			}
			normalized = strings.ReplaceAll(normalized, phrase, strings.Repeat("*", len([]rune(phrase))))
		}
		if strings.TrimSpace(strings.ReplaceAll(normalized, "*", "")) == "" {
			return "", true
		}
		return normalized, false
	default: // FilterDrop
		for _, phrase := range f.phrases {
			if normalized == phrase {
				return "", true
			}
		}
		return normalized, false
	}
}
