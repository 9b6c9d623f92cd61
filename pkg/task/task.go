// Package task implements one run of the n-back task for a single
// level: a timer-driven state machine that shows each digit, opens
// a response window, scores responses and reports a Result.
package task

import (
	"errors"
	"fmt"

	"digital.vasic.nback/pkg/sequence"
)

// Level is the n-back distance of a session.
type Level int

// Supported levels.
const (
	Level1 Level = 1
	Level2 Level = 2
	Level3 Level = 3
)

// Valid reports whether l is one of the supported levels.
func (l Level) Valid() bool {
	return l >= Level1 && l <= Level3
}

// String returns the level as "n-back".
func (l Level) String() string {
	return fmt.Sprintf("%d-back", int(l))
}

var (
	// ErrInvalidTransition is returned when an operation is
	// invoked outside the state it is valid in. It is never
	// fatal; the call has no effect.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrCancelled is returned by Run when the session was
	// cancelled before finishing.
	ErrCancelled = errors.New("session cancelled")

	// ErrInvalidLevel is returned for a level outside 1..3.
	ErrInvalidLevel = errors.New("invalid task level")
)

// SequenceSource produces the stimulus sequence for a session.
type SequenceSource interface {
	Generate(level int) (sequence.Sequence, error)
}

// Logger defines the minimal logging interface used by sessions.
// Implementations are provided by the logging package.
type Logger interface {
	// Info logs an informational message.
	Info(msg string, args ...any)

	// Warn logs a warning message.
	Warn(msg string, args ...any)

	// Error logs an error message.
	Error(msg string, args ...any)

	// Debug logs a debug-level message.
	Debug(msg string, args ...any)
}

// Observer receives session events.
type Observer func(Event)
