package monitor

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ma2saka/voice-text-chat-on-local-whisper/internal/event"
)

func TestWorker_LogsQueueDepthsWithoutConsuming(t *testing.T) {
	broker := event.NewBroker()
	sub := broker.Subscribe(event.TopicSystemOutput)
	for i := 0; i < 3; i++ {
		require.NoError(t, broker.Publish(event.SystemEvent{Message: "x", At: time.Now()}))
	}

	var buf bytes.Buffer
	sink := slog.New(slog.NewJSONHandler(&buf, nil))
	w := NewWorker(broker, time.Millisecond, sink)

	_, err := w.Step(context.Background())
	require.NoError(t, err)

	var record struct {
		Msg    string `json:"msg"`
		Total  int    `json:"total"`
		Queues []struct {
			Topic string `json:"topic"`
			Size  int    `json:"size"`
		} `json:"queues"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "queue sizes", record.Msg)
	assert.Equal(t, 3, record.Total)
	require.Len(t, record.Queues, 1)
	assert.Equal(t, string(event.TopicSystemOutput), record.Queues[0].Topic)
	assert.Equal(t, 3, record.Queues[0].Size)

	assert.Equal(t, 3, sub.Queue().Len(), "sampling never consumes events")
}

func TestWorker_SilentWithNoSubscribers(t *testing.T) {
	var buf bytes.Buffer
	sink := slog.New(slog.NewJSONHandler(&buf, nil))
	w := NewWorker(event.NewBroker(), time.Millisecond, sink)

	_, err := w.Step(context.Background())
	require.NoError(t, err)
	assert.Zero(t, buf.Len())
}
