package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// ZapConfig configures a ZapLogger.
type ZapConfig struct {
	// Dir receives the rotating nback.log file. Empty disables
	// file output.
	Dir string

	// Console receives human-readable output. Nil disables it.
	Console io.Writer

	Level LogLevel

	// Rotation limits; zero values use 10 MB, 3 backups, 7 days.
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// ZapLogger implements Logger on top of a zap core writing JSON
// to a rotating file and readable text to the console.
type ZapLogger struct {
	z *zap.Logger
}

// NewZapLogger builds a ZapLogger from config.
func NewZapLogger(config ZapConfig) (*ZapLogger, error) {
	enabler := zap.LevelEnablerFunc(func(l zapcore.Level) bool {
		return l >= toZapLevel(config.Level)
	})

	var cores []zapcore.Core
	if config.Dir != "" {
		if err := os.MkdirAll(config.Dir, 0755); err != nil {
			return nil, fmt.Errorf(
				"could not create log directory: %w", err,
			)
		}
		writer := zapcore.AddSync(&lumberjack.Logger{
			Filename:   filepath.Join(config.Dir, "nback.log"),
			MaxSize:    orDefault(config.MaxSizeMB, 10),
			MaxBackups: orDefault(config.MaxBackups, 3),
			MaxAge:     orDefault(config.MaxAgeDays, 7),
			Compress:   true,
		})
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(fileEncoderConfig()),
			writer,
			enabler,
		))
	}
	if config.Console != nil {
		enc := zap.NewDevelopmentEncoderConfig()
		enc.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(enc),
			zapcore.AddSync(config.Console),
			enabler,
		))
	}
	if len(cores) == 0 {
		return NewZapFromCore(zapcore.NewNopCore()), nil
	}
	return NewZapFromCore(zapcore.NewTee(cores...)), nil
}

// NewZapFromCore wraps an existing zap core.
func NewZapFromCore(core zapcore.Core) *ZapLogger {
	return &ZapLogger{z: zap.New(core)}
}

func fileEncoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		MessageKey:  "message",
		LevelKey:    "level",
		TimeKey:     "time",
		EncodeLevel: zapcore.CapitalLevelEncoder,
		EncodeTime:  zapcore.ISO8601TimeEncoder,
	}
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func toZapLevel(l LogLevel) zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func zapFields(fields []Field) []zap.Field {
	out := make([]zap.Field, len(fields))
	for i, f := range fields {
		out[i] = zap.Any(f.Key, f.Value)
	}
	return out
}

// Info logs an informational message.
func (l *ZapLogger) Info(msg string, fields ...Field) {
	l.z.Info(msg, zapFields(fields)...)
}

// Warn logs a warning message.
func (l *ZapLogger) Warn(msg string, fields ...Field) {
	l.z.Warn(msg, zapFields(fields)...)
}

// Error logs an error message.
func (l *ZapLogger) Error(msg string, fields ...Field) {
	l.z.Error(msg, zapFields(fields)...)
}

// Debug logs a debug message.
func (l *ZapLogger) Debug(msg string, fields ...Field) {
	l.z.Debug(msg, zapFields(fields)...)
}

// WithFields returns a ZapLogger with the fields attached.
func (l *ZapLogger) WithFields(fields ...Field) Logger {
	return &ZapLogger{z: l.z.With(zapFields(fields)...)}
}

// LogTrial logs the trial at debug level.
func (l *ZapLogger) LogTrial(trial TrialLog) {
	fields := []zap.Field{
		zap.String("session_id", trial.SessionID),
		zap.Int("level", trial.Level),
		zap.Int("index", trial.Index),
		zap.Int("digit", trial.Digit),
		zap.Bool("is_match", trial.IsMatch),
		zap.Bool("responded", trial.Responded),
	}
	if trial.ReactionTimeMs != nil {
		fields = append(fields,
			zap.Int64("reaction_time_ms", *trial.ReactionTimeMs))
	}
	l.z.Debug("trial", fields...)
}

// LogSession logs the session outcome at info level.
func (l *ZapLogger) LogSession(session SessionLog) {
	l.z.Info("session "+session.State,
		zap.String("session_id", session.SessionID),
		zap.String("participant", session.Participant),
		zap.Int("level", session.Level),
		zap.Int("trials", session.Trials),
		zap.Int("match_count", session.MatchCount),
		zap.Int("false_alarms", session.FalseAlarms),
		zap.Float64("accuracy_percent", session.AccuracyPercent),
		zap.Int64("duration_ms", session.DurationMs),
	)
}

// Close flushes buffered entries.
func (l *ZapLogger) Close() error {
	err := l.z.Sync()
	// Terminals reject fsync.
	if errors.Is(err, syscall.EINVAL) || errors.Is(err, syscall.ENOTTY) {
		return nil
	}
	return err
}
