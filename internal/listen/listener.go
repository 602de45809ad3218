// Package listen hosts the pipeline's first stage: the worker that reads
// microphone blocks, runs them through the chunker and publishes bounded
// audio chunks.
package listen

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/ma2saka/voice-text-chat-on-local-whisper/internal/audio"
	"github.com/ma2saka/voice-text-chat-on-local-whisper/internal/config"
	"github.com/ma2saka/voice-text-chat-on-local-whisper/internal/event"
	"github.com/ma2saka/voice-text-chat-on-local-whisper/internal/retry"
)

// ErrSourceExhausted is returned once a finite source (file replay) has no
// more blocks and nothing is pending.
var ErrSourceExhausted = errors.New("listen: source exhausted")

// Listener reads blocks from a BlockSource, feeds the chunk processor and
// emits one AudioChunkEvent per Step. A block can close several chunks at
// once (a realtime slice plus a silence split), so finished chunks are held
// in a pending list and drained one Step at a time.
type Listener struct {
	cfg       config.AudioConfig
	source    audio.BlockSource
	processor *audio.Processor
	archiver  *audio.Archiver // optional chunk WAV dump
	log       *slog.Logger

	pending   []*audio.Chunk
	exhausted bool
}

func NewListener(cfg config.AudioConfig, source audio.BlockSource, processor *audio.Processor, archiver *audio.Archiver, log *slog.Logger) *Listener {
	if log == nil {
		log = slog.Default()
	}
	return &Listener{cfg: cfg, source: source, processor: processor, archiver: archiver, log: log}
}

func (l *Listener) Name() string { return "listener" }

// Step emits the next pending chunk, or reads one device block and runs it
// through the processor. Device read failures are retriable: the source is
// reopened with backoff, and only exhausted retries surface as an error.
func (l *Listener) Step(ctx context.Context) (event.Event, error) {
	if ev := l.popPending(); ev != nil {
		return ev, nil
	}
	if l.exhausted {
		// Nothing more will ever arrive; idle until shutdown.
		select {
		case <-ctx.Done():
		case <-time.After(200 * time.Millisecond):
		}
		return nil, nil
	}

	block, err := l.source.ReadBlock()
	if err != nil {
		if errors.Is(err, io.EOF) {
			l.exhausted = true
			l.log.Info("audio source exhausted")
			return nil, nil
		}
		if rerr := l.reopen(ctx); rerr != nil {
			return nil, fmt.Errorf("audio device lost: %w", rerr)
		}
		return nil, nil
	}

	chunks := l.processor.ProcessBlock(block)
	if len(chunks) == 0 {
		return nil, nil
	}
	for _, c := range chunks {
		l.archive(c)
		l.log.Debug("chunk closed",
			"kind", c.Kind,
			"index", c.Index,
			"chunk_id", c.ID,
			"frames", len(c.Samples),
			"duration_sec", c.Seconds(),
		)
	}
	l.pending = chunks
	return l.popPending(), nil
}

func (l *Listener) popPending() event.Event {
	if len(l.pending) == 0 {
		return nil
	}
	c := l.pending[0]
	l.pending = l.pending[1:]
	return event.AudioChunkEvent{Chunk: c, At: time.Now()}
}

func (l *Listener) reopen(ctx context.Context) error {
	_ = l.source.Close()
	policy := retry.Policy{
		MaxRetries:    l.cfg.DeviceMaxRetries,
		Delay:         l.cfg.DeviceRetryDelay,
		BackoffFactor: 2.0,
	}
	return retry.Do(ctx, "reopen audio device", policy, l.log, func(context.Context) error {
		return l.source.Open()
	})
}

func (l *Listener) archive(c *audio.Chunk) {
	if l.archiver == nil {
		return
	}
	if path, err := l.archiver.Write(c); err != nil {
		l.log.Warn("chunk archive failed", "chunk_id", c.ID, "err", err)
	} else {
		l.log.Debug("chunk archived", "chunk_id", c.ID, "path", path)
	}
}
