// Package metrics records counters for task sessions.
package metrics

import "time"

// Session status labels.
const (
	StatusFinished  = "finished"
	StatusCancelled = "cancelled"
)

// SessionMetrics defines the interface for recording session metrics.
type SessionMetrics interface {
	// RecordSession records a session that reached a terminal state.
	RecordSession(level int, status string, duration time.Duration)
	// RecordResponse records an accepted response.
	RecordResponse(level int, correct bool, reactionTime time.Duration)
	// IncrementRunTotal increments the total run counter.
	IncrementRunTotal()
	// SetActiveLevel sets the gauge of the level being run, 0 for none.
	SetActiveLevel(level int)
}

// NoopMetrics is a no-op implementation of SessionMetrics
// useful for testing or when metrics collection is disabled.
type NoopMetrics struct{}

func (NoopMetrics) RecordSession(_ int, _ string, _ time.Duration) {}
func (NoopMetrics) RecordResponse(_ int, _ bool, _ time.Duration)  {}
func (NoopMetrics) IncrementRunTotal()                             {}
func (NoopMetrics) SetActiveLevel(_ int)                           {}
