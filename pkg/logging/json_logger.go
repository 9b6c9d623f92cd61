package logging

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// LogEntry represents a single JSON log entry.
type LogEntry struct {
	Timestamp string         `json:"timestamp"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// LoggerConfig configures the JSONLogger.
type LoggerConfig struct {
	OutputPath string
	TrialLog   string
	SessionLog string
	Level      LogLevel
	Verbose    bool
	Fields     map[string]any
}

// jsonSink is the shared state behind a JSONLogger and every
// logger derived from it through WithFields.
type jsonSink struct {
	mu         sync.Mutex
	output     io.Writer
	trialLog   io.Writer
	sessionLog io.Writer
	closed     bool
}

// JSONLogger implements Logger with JSON Lines output.
type JSONLogger struct {
	sink    *jsonSink
	level   LogLevel
	fields  map[string]any
	verbose bool
}

// NewJSONLogger creates a new JSON logger. If OutputPath is
// empty, logs are written to stdout.
func NewJSONLogger(config LoggerConfig) (*JSONLogger, error) {
	sink := &jsonSink{output: os.Stdout}
	if config.OutputPath != "" {
		f, err := openAppend(config.OutputPath)
		if err != nil {
			return nil, fmt.Errorf(
				"failed to open log file: %w", err,
			)
		}
		sink.output = f
	}
	if config.TrialLog != "" {
		f, err := openAppend(config.TrialLog)
		if err != nil {
			sink.close()
			return nil, fmt.Errorf(
				"failed to open trial log: %w", err,
			)
		}
		sink.trialLog = f
	}
	if config.SessionLog != "" {
		f, err := openAppend(config.SessionLog)
		if err != nil {
			sink.close()
			return nil, fmt.Errorf(
				"failed to open session log: %w", err,
			)
		}
		sink.sessionLog = f
	}
	return newJSONLogger(sink, config), nil
}

// NewJSONWriterLogger creates a JSON logger writing entries to w.
// Trial and session records go to the same writer.
func NewJSONWriterLogger(w io.Writer, config LoggerConfig) *JSONLogger {
	return newJSONLogger(
		&jsonSink{output: w, trialLog: w, sessionLog: w},
		config,
	)
}

func newJSONLogger(sink *jsonSink, config LoggerConfig) *JSONLogger {
	fields := make(map[string]any, len(config.Fields))
	for k, v := range config.Fields {
		fields[k] = v
	}
	return &JSONLogger{
		sink:    sink,
		level:   config.Level,
		verbose: config.Verbose,
		fields:  fields,
	}
}

func openAppend(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	return os.OpenFile(
		path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644,
	)
}

func (s *jsonSink) write(w io.Writer, v any) {
	if w == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	fmt.Fprintln(w, string(data))
}

func (s *jsonSink) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	seen := map[io.Writer]bool{}
	for _, w := range []io.Writer{s.output, s.trialLog, s.sessionLog} {
		if w == nil || w == os.Stdout || seen[w] {
			continue
		}
		seen[w] = true
		if c, ok := w.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (l *JSONLogger) log(
	level LogLevel, msg string, fields ...Field,
) {
	if level < l.level {
		return
	}
	entry := LogEntry{
		Timestamp: time.Now().Format(time.RFC3339Nano),
		Level:     level.String(),
		Message:   msg,
	}
	if len(l.fields)+len(fields) > 0 {
		entry.Fields = make(map[string]any, len(l.fields)+len(fields))
		for k, v := range l.fields {
			entry.Fields[k] = v
		}
		for _, f := range fields {
			entry.Fields[f.Key] = f.Value
		}
	}
	l.sink.write(l.sink.output, entry)
}

// Info logs an informational message.
func (l *JSONLogger) Info(msg string, fields ...Field) {
	l.log(LevelInfo, msg, fields...)
}

// Warn logs a warning message.
func (l *JSONLogger) Warn(msg string, fields ...Field) {
	l.log(LevelWarn, msg, fields...)
}

// Error logs an error message.
func (l *JSONLogger) Error(msg string, fields ...Field) {
	l.log(LevelError, msg, fields...)
}

// Debug logs a debug message only if verbose is enabled.
func (l *JSONLogger) Debug(msg string, fields ...Field) {
	if l.verbose {
		l.log(LevelDebug, msg, fields...)
	}
}

// WithFields returns a new Logger with additional default
// fields. The derived logger shares the parent's files.
func (l *JSONLogger) WithFields(fields ...Field) Logger {
	newFields := make(map[string]any, len(l.fields)+len(fields))
	for k, v := range l.fields {
		newFields[k] = v
	}
	for _, f := range fields {
		newFields[f.Key] = f.Value
	}
	return &JSONLogger{
		sink:    l.sink,
		level:   l.level,
		verbose: l.verbose,
		fields:  newFields,
	}
}

// LogTrial writes a trial record to the dedicated trial log.
func (l *JSONLogger) LogTrial(trial TrialLog) {
	if trial.Timestamp == "" {
		trial.Timestamp = time.Now().Format(time.RFC3339Nano)
	}
	l.sink.write(l.sink.trialLog, trial)
}

// LogSession writes a session record to the dedicated session
// log.
func (l *JSONLogger) LogSession(session SessionLog) {
	if session.Timestamp == "" {
		session.Timestamp = time.Now().Format(time.RFC3339Nano)
	}
	l.sink.write(l.sink.sessionLog, session)
}

// Close flushes and closes all underlying files. Loggers derived
// through WithFields stop writing as well.
func (l *JSONLogger) Close() error {
	return l.sink.close()
}

// SetupLogging creates a JSON logger writing nback.log,
// trials.log and sessions.log under logsDir. Debug level turns on
// verbose output.
func SetupLogging(logsDir string, level LogLevel) (*JSONLogger, error) {
	return NewJSONLogger(LoggerConfig{
		OutputPath: filepath.Join(logsDir, "nback.log"),
		TrialLog:   filepath.Join(logsDir, "trials.log"),
		SessionLog: filepath.Join(logsDir, "sessions.log"),
		Level:      level,
		Verbose:    level == LevelDebug,
	})
}
