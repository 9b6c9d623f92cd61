// Package clock sequences timed phases with cooperative
// cancellation. It is the only suspension point of a task session.
package clock

import (
	"context"
	"time"
)

// Outcome reports how a RunPhases call ended.
type Outcome int

const (
	// Completed means every phase ran to the end.
	Completed Outcome = iota
	// Cancelled means the context was cancelled before the last
	// phase finished.
	Cancelled
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case Completed:
		return "completed"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Phase is one timed step. OnEnter fires before the wait and
// OnExit after it; either may be nil.
type Phase struct {
	Name     string
	Duration time.Duration
	OnEnter  func()
	OnExit   func()
}

// TrialClock runs phase lists on real timers.
type TrialClock struct {
	now func() time.Time
}

// Option configures a TrialClock.
type Option func(*TrialClock)

// WithNow replaces the time source used by Now.
func WithNow(now func() time.Time) Option {
	return func(c *TrialClock) {
		c.now = now
	}
}

// New creates a TrialClock backed by the monotonic wall clock.
func New(opts ...Option) *TrialClock {
	c := &TrialClock{now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Now returns the current time.
func (c *TrialClock) Now() time.Time { return c.now() }

// RunPhases runs phases in order. If ctx is cancelled during a
// wait the timer is stopped, the current phase's OnExit and all
// later phases are skipped, and Cancelled is returned. A timer
// that fires in the same instant as a cancellation loses.
func (c *TrialClock) RunPhases(
	ctx context.Context,
	phases []Phase,
) Outcome {
	for _, p := range phases {
		if ctx.Err() != nil {
			return Cancelled
		}
		if p.OnEnter != nil {
			p.OnEnter()
		}
		if !wait(ctx, p.Duration) {
			return Cancelled
		}
		if p.OnExit != nil {
			p.OnExit()
		}
	}
	return Completed
}

// wait blocks for d or until ctx is done. It returns false when
// the context was cancelled.
func wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return ctx.Err() == nil
	}
}
