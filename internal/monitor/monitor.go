// Package monitor samples broker queue depths for the structured log
// stream. Observation only: it never dequeues what it inspects.
package monitor

import (
	"context"
	"log/slog"
	"time"

	"github.com/ma2saka/voice-text-chat-on-local-whisper/internal/event"
)

// Worker logs one queue-depth record per interval.
type Worker struct {
	broker   *event.Broker
	interval time.Duration
	sink     *slog.Logger
}

func NewWorker(broker *event.Broker, interval time.Duration, sink *slog.Logger) *Worker {
	if sink == nil {
		sink = slog.Default()
	}
	return &Worker{broker: broker, interval: interval, sink: sink}
}

func (w *Worker) Name() string { return "monitor" }

func (w *Worker) Step(ctx context.Context) (event.Event, error) {
	select {
	case <-ctx.Done():
		return nil, nil
	case <-time.After(w.interval):
	}

	sizes := w.broker.QueueSizes()
	if len(sizes) == 0 {
		return nil, nil
	}
	queues := make([]queueSample, 0, len(sizes))
	var total int
	for _, s := range sizes {
		queues = append(queues, queueSample{Topic: string(s.Topic), Size: s.Size})
		total += s.Size
	}
	w.sink.Info("queue sizes", "total", total, "queues", queues)
	return nil, nil
}

type queueSample struct {
	Topic string `json:"topic"`
	Size  int    `json:"size"`
}
