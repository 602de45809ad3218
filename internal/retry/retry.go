// Package retry runs an operation again after transient failures, with
// exponential backoff between attempts.
package retry

import (
	"context"
	"log/slog"
	"time"
)

// Policy controls how often and how fast Do tries again.
type Policy struct {
	MaxRetries    int           // retries after the first attempt; 0 means no retry
	Delay         time.Duration // delay before the first retry
	BackoffFactor float64       // multiplier applied to the delay after each retry
}

// DefaultPolicy suits device reconnects: a handful of attempts, doubling
// from one second.
var DefaultPolicy = Policy{
	MaxRetries:    5,
	Delay:         time.Second,
	BackoffFactor: 2.0,
}

// Operation is the unit being retried.
type Operation func(ctx context.Context) error

// Do runs op, retrying per policy until it succeeds, retries are exhausted,
// or ctx is cancelled. Returns the last error on exhaustion.
func Do(ctx context.Context, name string, policy Policy, log *slog.Logger, op Operation) error {
	if log == nil {
		log = slog.Default()
	}
	if policy.BackoffFactor <= 0 {
		policy.BackoffFactor = DefaultPolicy.BackoffFactor
	}
	if policy.Delay <= 0 {
		policy.Delay = DefaultPolicy.Delay
	}

	delay := policy.Delay
	var lastErr error
	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = op(ctx)
		if lastErr == nil {
			if attempt > 0 {
				log.Info("operation recovered", "operation", name, "attempt", attempt+1)
			}
			return nil
		}
		if attempt == policy.MaxRetries {
			break
		}
		log.Warn("operation failed, retrying", "operation", name, "attempt", attempt+1, "delay", delay, "err", lastErr)
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
		delay = time.Duration(float64(delay) * policy.BackoffFactor)
	}
	return lastErr
}
