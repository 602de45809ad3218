package transcribe

import (
	"context"
	"fmt"

	"github.com/ma2saka/voice-text-chat-on-local-whisper/internal/audio"
	"github.com/ma2saka/voice-text-chat-on-local-whisper/internal/config"
	"github.com/ma2saka/voice-text-chat-on-local-whisper/pkg/stt"
)

// Engine is the whisper-backed Transcriber. Split chunks go through the
// main model, realtime slices through the lighter realtime model so the
// status line keeps up with speech.
type Engine struct {
	main     *stt.Transcriber
	realtime *stt.Transcriber
	opts     stt.Options
}

func NewEngine(cfg config.WhisperConfig) (*Engine, error) {
	main, err := stt.NewTranscriber(cfg.MainModelPath)
	if err != nil {
		return nil, fmt.Errorf("main model: %w", err)
	}

	realtime := main
	if cfg.RealtimeModelPath != cfg.MainModelPath {
		realtime, err = stt.NewTranscriber(cfg.RealtimeModelPath)
		if err != nil {
			main.Close()
			return nil, fmt.Errorf("realtime model: %w", err)
		}
	}

	return &Engine{
		main:     main,
		realtime: realtime,
		opts: stt.Options{
			Language: cfg.Language,
			BeamSize: cfg.BeamSize,
			Threads:  cfg.Threads,
		},
	}, nil
}

func (e *Engine) Transcribe(ctx context.Context, chunk *audio.Chunk) (Transcription, error) {
	t := e.main
	if chunk.Kind == audio.ChunkRealtime {
		t = e.realtime
	}
	res, err := t.TranscribePCM(ctx, chunk.Samples, e.opts)
	if err != nil {
		return Transcription{}, err
	}
	return Transcription{Text: res.Text, Language: res.Language}, nil
}

func (e *Engine) Close() {
	if e.realtime != nil && e.realtime != e.main {
		e.realtime.Close()
	}
	if e.main != nil {
		e.main.Close()
	}
}
