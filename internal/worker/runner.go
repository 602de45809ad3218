package worker

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/ma2saka/voice-text-chat-on-local-whisper/internal/event"
)

// Worker is one cooperatively-stepped unit of the pipeline. Step does a
// bounded amount of work and returns the event to publish, or (nil, nil)
// when there was nothing to do. Blocking inside Step is limited to the
// worker's own inbound-queue wait (plus device I/O for the listener), so a
// cancelled context is observed within one polling interval.
type Worker interface {
	Name() string
	Step(ctx context.Context) (event.Event, error)
}

// State of a runner's goroutine.
type State int32

const (
	StateStarting State = iota
	StateRunning
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// Runner drives one Worker on a dedicated goroutine until the shared
// context is cancelled. A failing step is logged and isolated: the loop
// keeps going. MaxConsecutiveFailures > 0 turns a long unbroken failure
// streak into a stop of that worker alone; the default 0 retries forever.
type Runner struct {
	broker                 *event.Broker
	log                    *slog.Logger
	MaxConsecutiveFailures int

	state atomic.Int32
	wg    sync.WaitGroup
}

func NewRunner(broker *event.Broker, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{broker: broker, log: log}
}

// Start launches w's loop. Call Wait to join after cancelling ctx.
func (r *Runner) Start(ctx context.Context, w Worker) {
	r.state.Store(int32(StateStarting))
	r.wg.Add(1)
	go r.run(ctx, w)
}

// Wait blocks until the loop has fully stopped.
func (r *Runner) Wait() { r.wg.Wait() }

// State reports the loop's lifecycle phase.
func (r *Runner) State() State { return State(r.state.Load()) }

func (r *Runner) run(ctx context.Context, w Worker) {
	defer r.wg.Done()
	defer r.state.Store(int32(StateStopped))

	log := r.log.With("worker", w.Name())
	log.Debug("worker started")
	r.state.Store(int32(StateRunning))

	failures := 0
	for {
		if ctx.Err() != nil {
			r.state.Store(int32(StateStopping))
			log.Debug("worker stopping")
			return
		}

		ev, err := r.step(ctx, w)
		if err != nil {
			if ctx.Err() != nil {
				r.state.Store(int32(StateStopping))
				log.Debug("worker stopping")
				return
			}
			failures++
			log.Error("worker step failed", "err", err, "consecutive", failures)
			if r.MaxConsecutiveFailures > 0 && failures >= r.MaxConsecutiveFailures {
				log.Error("worker giving up after repeated failures", "failures", failures)
				r.state.Store(int32(StateStopping))
				return
			}
			continue
		}
		failures = 0

		if ev == nil {
			continue
		}
		if err := r.broker.Publish(ev); err != nil {
			log.Error("publish failed", "topic", ev.Topic(), "err", err)
		}
	}
}

// step isolates one iteration, turning panics into errors so a bug in one
// worker cannot take down its goroutine.
func (r *Runner) step(ctx context.Context, w Worker) (ev event.Event, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			ev = nil
			err = fmt.Errorf("step panic: %v\n%s", rec, debug.Stack())
		}
	}()
	return w.Step(ctx)
}
