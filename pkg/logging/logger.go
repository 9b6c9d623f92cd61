// Package logging provides structured logging for n-back runs
// with JSON, console, zap and multi-destination output.
package logging

import (
	"fmt"
	"strings"
)

// Logger defines the interface for structured task logging.
type Logger interface {
	// Info logs an informational message.
	Info(msg string, fields ...Field)

	// Warn logs a warning message.
	Warn(msg string, fields ...Field)

	// Error logs an error message.
	Error(msg string, fields ...Field)

	// Debug logs a debug-level message.
	Debug(msg string, fields ...Field)

	// WithFields returns a Logger with additional default
	// fields attached to every subsequent log entry.
	WithFields(fields ...Field) Logger

	// LogTrial logs a completed trial.
	LogTrial(trial TrialLog)

	// LogSession logs a session that reached a terminal state.
	LogSession(session SessionLog)

	// Close flushes any buffers and releases resources.
	Close() error
}

// Field represents a key-value pair for structured logging.
type Field struct {
	Key   string
	Value any
}

// TrialLog captures one presented digit.
type TrialLog struct {
	Timestamp      string `json:"timestamp"`
	SessionID      string `json:"session_id"`
	Level          int    `json:"level"`
	Index          int    `json:"index"`
	Digit          int    `json:"digit"`
	IsMatch        bool   `json:"is_match"`
	Responded      bool   `json:"responded"`
	ReactionTimeMs *int64 `json:"reaction_time_ms,omitempty"`
}

// SessionLog captures the outcome of a session.
type SessionLog struct {
	Timestamp       string  `json:"timestamp"`
	SessionID       string  `json:"session_id"`
	Participant     string  `json:"participant,omitempty"`
	Level           int     `json:"level"`
	State           string  `json:"state"`
	Trials          int     `json:"trials"`
	MatchCount      int     `json:"match_count"`
	FalseAlarms     int     `json:"false_alarms"`
	AccuracyPercent float64 `json:"accuracy_percent"`
	DurationMs      int64   `json:"duration_ms"`
}

// LogLevel represents logging severity levels.
type LogLevel int

const (
	// LevelDebug is the most verbose level.
	LevelDebug LogLevel = iota
	// LevelInfo is the default level.
	LevelInfo
	// LevelWarn indicates potential issues.
	LevelWarn
	// LevelError indicates failures.
	LevelError
)

// String returns the string representation of a log level.
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel parses a level name, case-insensitively.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}
