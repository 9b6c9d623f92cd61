package logging

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"digital.vasic.nback/pkg/task"
)

func TestLogLevel_String(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{LogLevel(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.level.String())
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"", LevelInfo},
		{" warn ", LevelWarn},
		{"warning", LevelWarn},
		{"Error", LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}

func TestFieldConstructors(t *testing.T) {
	tests := []struct {
		name  string
		field Field
		key   string
		value any
	}{
		{"log", LogField("key", "value"), "key", "value"},
		{"string", StringField("name", "test"), "name", "test"},
		{"int", IntField("count", 42), "count", 42},
		{"int64", Int64Field("ts", 1234567890), "ts", int64(1234567890)},
		{"float", Float64Field("acc", 66.5), "acc", 66.5},
		{"bool", BoolField("match", true), "match", true},
		{"duration", DurationField("rt", 250*time.Millisecond), "rt", int64(250)},
		{"error", ErrorField(errors.New("boom")), "error", "boom"},
		{"nil error", ErrorField(nil), "error", "<nil>"},
		{"level", LevelField(task.Level3), "level", 3},
		{"session", SessionField("abc"), "session_id", "abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.key, tt.field.Key)
			assert.Equal(t, tt.value, tt.field.Value)
		})
	}
}

func TestNullLogger(t *testing.T) {
	var l Logger = NullLogger{}
	assert.NotPanics(t, func() {
		l.Info("x")
		l.Warn("x")
		l.Error("x")
		l.Debug("x")
		l.LogTrial(TrialLog{SessionID: "s"})
		l.LogSession(SessionLog{SessionID: "s"})
	})
	assert.Equal(t, NullLogger{}, l.WithFields(LogField("k", 1)))
	assert.NoError(t, l.Close())
}
