// Package transcribe turns audio chunks into text through a black-box
// transcription collaborator, filtering denylisted phrases before the
// result enters the conversation.
package transcribe

import (
	"context"
	"log/slog"
	"time"

	"github.com/ma2saka/voice-text-chat-on-local-whisper/internal/audio"
	"github.com/ma2saka/voice-text-chat-on-local-whisper/internal/event"
)

const pollTimeout = 200 * time.Millisecond

// Transcription is what the collaborator returns for one chunk.
type Transcription struct {
	Text     string
	Language string
}

// Transcriber is the external transcription collaborator: chunk in, text
// plus metadata out. It may fail transiently; a failed chunk is dropped,
// never retried, so loss is bounded to one unit of work.
type Transcriber interface {
	Transcribe(ctx context.Context, chunk *audio.Chunk) (Transcription, error)
}

// Worker consumes AudioChunkEvents and publishes TranscriptionEvents.
type Worker struct {
	inbox       *event.Queue
	transcriber Transcriber
	filter      *Filter
	minRMS      float64
	sink        *slog.Logger // structured record stream, one record per chunk
}

func NewWorker(inbox *event.Queue, transcriber Transcriber, filter *Filter, minRMS float64, sink *slog.Logger) *Worker {
	if sink == nil {
		sink = slog.Default()
	}
	return &Worker{inbox: inbox, transcriber: transcriber, filter: filter, minRMS: minRMS, sink: sink}
}

func (w *Worker) Name() string { return "transcribe" }

func (w *Worker) Step(ctx context.Context) (event.Event, error) {
	ev, ok := w.inbox.Pop(pollTimeout)
	if !ok {
		return nil, nil
	}
	chunkEv, ok := ev.(event.AudioChunkEvent)
	if !ok {
		return nil, nil
	}
	chunk := chunkEv.Chunk

	if chunk.RMS() < w.minRMS {
		w.sink.Debug("transcription skipped",
			"kind", chunk.Kind,
			"index", chunk.Index,
			"chunk_id", chunk.ID,
			"duration_sec", chunk.Seconds(),
			"reason", "low_rms",
		)
		return nil, nil
	}

	start := time.Now()
	result, err := w.transcriber.Transcribe(ctx, chunk)
	if err != nil {
		w.sink.Info("transcription failed",
			"kind", chunk.Kind,
			"index", chunk.Index,
			"chunk_id", chunk.ID,
			"err", err,
		)
		return event.ErrorEvent{On: event.TopicTranscribeError, Message: err.Error(), At: time.Now()}, nil
	}
	elapsed := time.Since(start)

	w.sink.Info("transcription result",
		"kind", chunk.Kind,
		"index", chunk.Index,
		"chunk_id", chunk.ID,
		"sample_rate", chunk.SampleRate,
		"frames", len(chunk.Samples),
		"duration_sec", chunk.Seconds(),
		"transcribe_sec", elapsed.Seconds(),
		"text", result.Text,
	)

	text, dropped := w.filter.Apply(result.Text)
	if dropped {
		return nil, nil
	}

	return event.TranscriptionEvent{
		Kind:          chunk.Kind,
		Text:          text,
		ChunkIndex:    chunk.Index,
		ChunkSec:      chunk.Seconds(),
		TranscribeSec: elapsed.Seconds(),
		At:            time.Now(),
	}, nil
}
