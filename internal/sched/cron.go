// Package sched publishes synthetic schedule-fire events on fixed
// intervals, giving time-driven workers a broker topic to subscribe to
// instead of their own timers.
package sched

import (
	"context"
	"time"

	"github.com/ma2saka/voice-text-chat-on-local-whisper/internal/event"
)

const pollInterval = 200 * time.Millisecond

// Cron emits a generic tick every TickInterval and a think_update fire
// every ThinkInterval. The two timers are independent; a think fire takes
// precedence when both are due in the same step.
type Cron struct {
	tickInterval  time.Duration
	thinkInterval time.Duration
	lastTick      time.Time
	lastThink     time.Time
}

func NewCron(tickInterval, thinkInterval time.Duration) *Cron {
	now := time.Now()
	return &Cron{
		tickInterval:  tickInterval,
		thinkInterval: thinkInterval,
		lastTick:      now,
		lastThink:     now,
	}
}

func (c *Cron) Name() string { return "cron" }

func (c *Cron) Step(ctx context.Context) (event.Event, error) {
	select {
	case <-ctx.Done():
		return nil, nil
	case <-time.After(pollInterval):
	}

	now := time.Now()
	if now.Sub(c.lastThink) >= c.thinkInterval {
		c.lastThink = now
		return event.ScheduleFireEvent{Kind: event.FireThinkUpdate, FiredAt: now}, nil
	}
	if now.Sub(c.lastTick) >= c.tickInterval {
		c.lastTick = now
		return event.ScheduleFireEvent{Kind: event.FireTick, FiredAt: now}, nil
	}
	return nil, nil
}
