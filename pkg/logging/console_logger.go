package logging

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// ANSI color codes.
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorGray   = "\033[90m"
)

// ConsoleLogger provides colored console output.
type ConsoleLogger struct {
	mu      *sync.Mutex
	output  io.Writer
	verbose bool
	color   bool
	fields  map[string]any
}

// NewConsoleLogger creates a console logger on stdout. When
// verbose is true, debug messages are emitted.
func NewConsoleLogger(verbose bool) *ConsoleLogger {
	return NewConsoleWriterLogger(os.Stdout, verbose, true)
}

// NewConsoleWriterLogger creates a console logger on w. Colors
// are written only when color is true.
func NewConsoleWriterLogger(
	w io.Writer, verbose, color bool,
) *ConsoleLogger {
	return &ConsoleLogger{
		mu:      &sync.Mutex{},
		output:  w,
		verbose: verbose,
		color:   color,
		fields:  make(map[string]any),
	}
}

func (c *ConsoleLogger) paint(color, s string) string {
	if !c.color {
		return s
	}
	return color + s + colorReset
}

func (c *ConsoleLogger) log(
	level LogLevel, color, msg string, fields ...Field,
) {
	ts := time.Now().Format("15:04:05")

	parts := make([]string, 0, len(c.fields)+len(fields))
	keys := make([]string, 0, len(c.fields))
	for k := range c.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, c.fields[k]))
	}
	for _, f := range fields {
		parts = append(parts, fmt.Sprintf("%s=%v", f.Key, f.Value))
	}

	var fieldStr string
	if len(parts) > 0 {
		fieldStr = " " + c.paint(
			colorGray, "{"+strings.Join(parts, ", ")+"}",
		)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(
		c.output, "%s [%s] %s%s\n",
		c.paint(colorGray, ts),
		c.paint(color, fmt.Sprintf("%-5s", level.String())),
		msg, fieldStr,
	)
}

// Info logs an informational message.
func (c *ConsoleLogger) Info(msg string, fields ...Field) {
	c.log(LevelInfo, colorBlue, msg, fields...)
}

// Warn logs a warning message.
func (c *ConsoleLogger) Warn(msg string, fields ...Field) {
	c.log(LevelWarn, colorYellow, msg, fields...)
}

// Error logs an error message.
func (c *ConsoleLogger) Error(msg string, fields ...Field) {
	c.log(LevelError, colorRed, msg, fields...)
}

// Debug logs a debug message only if verbose is enabled.
func (c *ConsoleLogger) Debug(msg string, fields ...Field) {
	if c.verbose {
		c.log(LevelDebug, colorGray, msg, fields...)
	}
}

// WithFields returns a new Logger with additional default
// fields.
func (c *ConsoleLogger) WithFields(
	fields ...Field,
) Logger {
	newFields := make(map[string]any, len(c.fields)+len(fields))
	for k, v := range c.fields {
		newFields[k] = v
	}
	for _, f := range fields {
		newFields[f.Key] = f.Value
	}
	return &ConsoleLogger{
		mu:      c.mu,
		output:  c.output,
		verbose: c.verbose,
		color:   c.color,
		fields:  newFields,
	}
}

// LogTrial prints a one-line trial summary. Trials are only
// shown in verbose mode.
func (c *ConsoleLogger) LogTrial(trial TrialLog) {
	if !c.verbose {
		return
	}
	fields := []Field{
		{Key: "session", Value: trial.SessionID},
		{Key: "index", Value: trial.Index},
		{Key: "digit", Value: trial.Digit},
		{Key: "match", Value: trial.IsMatch},
		{Key: "responded", Value: trial.Responded},
	}
	if trial.ReactionTimeMs != nil {
		fields = append(fields, Field{
			Key: "rt_ms", Value: *trial.ReactionTimeMs,
		})
	}
	c.log(LevelDebug, colorGray, "Trial", fields...)
}

// LogSession prints a session summary.
func (c *ConsoleLogger) LogSession(session SessionLog) {
	c.log(LevelInfo, colorGreen, "Session "+session.State,
		Field{Key: "session", Value: session.SessionID},
		Field{Key: "level", Value: session.Level},
		Field{Key: "matches", Value: session.MatchCount},
		Field{Key: "false_alarms", Value: session.FalseAlarms},
		Field{Key: "accuracy", Value: fmt.Sprintf(
			"%.2f%%", session.AccuracyPercent,
		)},
	)
}

// Close is a no-op for ConsoleLogger.
func (c *ConsoleLogger) Close() error {
	return nil
}
