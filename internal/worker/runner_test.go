package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ma2saka/voice-text-chat-on-local-whisper/internal/event"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stepFunc adapts a function into a Worker for tests.
type stepFunc struct {
	name string
	fn   func(ctx context.Context) (event.Event, error)
}

func (s stepFunc) Name() string { return s.name }
func (s stepFunc) Step(ctx context.Context) (event.Event, error) {
	return s.fn(ctx)
}

func waitForState(t *testing.T, r *Runner, want State) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if r.State() == want {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("runner never reached state %s, stuck at %s", want, r.State())
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestRunner_PublishesStepEvents(t *testing.T) {
	broker := event.NewBroker()
	sub := broker.Subscribe(event.TopicSystemOutput)

	var emitted atomic.Bool
	w := stepFunc{name: "emitter", fn: func(ctx context.Context) (event.Event, error) {
		if emitted.Swap(true) {
			select {
			case <-ctx.Done():
			case <-time.After(5 * time.Millisecond):
			}
			return nil, nil
		}
		return event.SystemEvent{Message: "tick", At: time.Now()}, nil
	}}

	ctx, cancel := context.WithCancel(context.Background())
	r := NewRunner(broker, testLogger())
	r.Start(ctx, w)

	ev, ok := sub.Queue().Pop(time.Second)
	require.True(t, ok)
	assert.Equal(t, "tick", ev.(event.SystemEvent).Message)

	cancel()
	r.Wait()
	assert.Equal(t, StateStopped, r.State())
}

func TestRunner_ErrorsAreIsolated(t *testing.T) {
	broker := event.NewBroker()
	sub := broker.Subscribe(event.TopicSystemOutput)

	var calls atomic.Int32
	w := stepFunc{name: "flaky", fn: func(ctx context.Context) (event.Event, error) {
		switch calls.Add(1) {
		case 1:
			return nil, errors.New("transient failure")
		case 2:
			return event.SystemEvent{Message: "recovered", At: time.Now()}, nil
		default:
			select {
			case <-ctx.Done():
			case <-time.After(5 * time.Millisecond):
			}
			return nil, nil
		}
	}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := NewRunner(broker, testLogger())
	r.Start(ctx, w)

	// The loop survives the failed step and keeps publishing.
	ev, ok := sub.Queue().Pop(time.Second)
	require.True(t, ok)
	assert.Equal(t, "recovered", ev.(event.SystemEvent).Message)
}

func TestRunner_PanicRecovered(t *testing.T) {
	broker := event.NewBroker()
	sub := broker.Subscribe(event.TopicSystemOutput)

	var calls atomic.Int32
	w := stepFunc{name: "panicky", fn: func(ctx context.Context) (event.Event, error) {
		switch calls.Add(1) {
		case 1:
			panic("boom")
		case 2:
			return event.SystemEvent{Message: "alive", At: time.Now()}, nil
		default:
			select {
			case <-ctx.Done():
			case <-time.After(5 * time.Millisecond):
			}
			return nil, nil
		}
	}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := NewRunner(broker, testLogger())
	r.Start(ctx, w)

	ev, ok := sub.Queue().Pop(time.Second)
	require.True(t, ok)
	assert.Equal(t, "alive", ev.(event.SystemEvent).Message)
}

func TestRunner_GivesUpAfterConsecutiveFailures(t *testing.T) {
	broker := event.NewBroker()

	var calls atomic.Int32
	w := stepFunc{name: "doomed", fn: func(context.Context) (event.Event, error) {
		calls.Add(1)
		return nil, errors.New("permanent failure")
	}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := NewRunner(broker, testLogger())
	r.MaxConsecutiveFailures = 3
	r.Start(ctx, w)
	r.Wait()

	assert.Equal(t, StateStopped, r.State())
	assert.Equal(t, int32(3), calls.Load())
}

func TestRunner_SuccessResetsFailureStreak(t *testing.T) {
	broker := event.NewBroker()

	var calls atomic.Int32
	done := make(chan struct{})
	w := stepFunc{name: "wobbly", fn: func(context.Context) (event.Event, error) {
		n := calls.Add(1)
		// Alternate failure and success; the streak never reaches 2.
		if n >= 10 {
			select {
			case <-done:
			default:
				close(done)
			}
			return nil, nil
		}
		if n%2 == 1 {
			return nil, errors.New("hiccup")
		}
		return nil, nil
	}}

	ctx, cancel := context.WithCancel(context.Background())
	r := NewRunner(broker, testLogger())
	r.MaxConsecutiveFailures = 2
	r.Start(ctx, w)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("runner stopped before reaching the tenth step")
	}
	cancel()
	r.Wait()
}

func TestRunner_StateTransitions(t *testing.T) {
	broker := event.NewBroker()
	w := stepFunc{name: "idle", fn: func(ctx context.Context) (event.Event, error) {
		select {
		case <-ctx.Done():
		case <-time.After(5 * time.Millisecond):
		}
		return nil, nil
	}}

	ctx, cancel := context.WithCancel(context.Background())
	r := NewRunner(broker, testLogger())
	r.Start(ctx, w)
	waitForState(t, r, StateRunning)

	cancel()
	r.Wait()
	assert.Equal(t, StateStopped, r.State())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "starting", StateStarting.String())
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "stopping", StateStopping.String())
	assert.Equal(t, "stopped", StateStopped.String())
	assert.Equal(t, "unknown", State(99).String())
}
