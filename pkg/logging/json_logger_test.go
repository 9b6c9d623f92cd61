package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func splitNonEmpty(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			out = append(out, line)
		}
	}
	return out
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return splitNonEmpty(string(data))
}

func TestJSONLogger_File(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "nested", "test.log")

	logger, err := NewJSONLogger(LoggerConfig{
		OutputPath: logPath,
		Level:      LevelDebug,
		Verbose:    true,
	})
	require.NoError(t, err)

	logger.Info("hello", LogField("key", "val"))
	logger.Debug("debug msg")
	require.NoError(t, logger.Close())

	lines := readLines(t, logPath)
	require.Len(t, lines, 2)

	var entry LogEntry
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "INFO", entry.Level)
	assert.Equal(t, "hello", entry.Message)
	assert.Equal(t, "val", entry.Fields["key"])
}

func TestJSONLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONWriterLogger(&buf, LoggerConfig{
		Level:   LevelWarn,
		Verbose: true,
	})

	logger.Debug("should not appear")
	logger.Info("should not appear")
	logger.Warn("should appear")
	logger.Error("should appear")

	assert.Len(t, splitNonEmpty(buf.String()), 2)
}

func TestJSONLogger_DebugNeedsVerbose(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONWriterLogger(&buf, LoggerConfig{Level: LevelDebug})
	logger.Debug("hidden")
	assert.Empty(t, buf.String())
}

func TestJSONLogger_WithFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONWriterLogger(&buf, LoggerConfig{
		Level:  LevelInfo,
		Fields: map[string]any{"base": "value"},
	})

	child := logger.WithFields(LogField("child", "yes"))
	child.Info("child message")
	logger.Info("parent message")

	lines := splitNonEmpty(buf.String())
	require.Len(t, lines, 2)

	var entry LogEntry
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "value", entry.Fields["base"])
	assert.Equal(t, "yes", entry.Fields["child"])

	require.NoError(t, json.Unmarshal([]byte(lines[1]), &entry))
	assert.NotContains(t, entry.Fields, "child")
}

func TestJSONLogger_TrialAndSessionLogs(t *testing.T) {
	dir := t.TempDir()
	logger, err := SetupLogging(dir, LevelInfo)
	require.NoError(t, err)

	rt := int64(420)
	logger.LogTrial(TrialLog{
		SessionID: "s1", Level: 2, Index: 3, Digit: 7,
		IsMatch: true, Responded: true, ReactionTimeMs: &rt,
	})
	logger.LogSession(SessionLog{
		SessionID: "s1", Level: 2, State: "finished",
		MatchCount: 2, AccuracyPercent: 66.67,
	})
	logger.Info("run complete")
	require.NoError(t, logger.Close())

	trials := readLines(t, filepath.Join(dir, "trials.log"))
	require.Len(t, trials, 1)
	var trial TrialLog
	require.NoError(t, json.Unmarshal([]byte(trials[0]), &trial))
	assert.Equal(t, 7, trial.Digit)
	require.NotNil(t, trial.ReactionTimeMs)
	assert.Equal(t, int64(420), *trial.ReactionTimeMs)
	assert.NotEmpty(t, trial.Timestamp)

	sessions := readLines(t, filepath.Join(dir, "sessions.log"))
	require.Len(t, sessions, 1)
	var session SessionLog
	require.NoError(t, json.Unmarshal([]byte(sessions[0]), &session))
	assert.Equal(t, "finished", session.State)
	assert.InDelta(t, 66.67, session.AccuracyPercent, 0.001)

	assert.Len(t, readLines(t, filepath.Join(dir, "nback.log")), 1)
}

func TestJSONLogger_NoTrialLogConfigured(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "main.log")
	logger, err := NewJSONLogger(LoggerConfig{OutputPath: logPath})
	require.NoError(t, err)

	logger.LogTrial(TrialLog{SessionID: "s"})
	logger.LogSession(SessionLog{SessionID: "s"})
	require.NoError(t, logger.Close())

	assert.Empty(t, readLines(t, logPath))
}

func TestJSONLogger_CloseStopsChildren(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONWriterLogger(&buf, LoggerConfig{})
	child := logger.WithFields(LogField("k", 1))

	require.NoError(t, logger.Close())
	require.NoError(t, logger.Close())
	child.Info("after close")
	assert.Empty(t, buf.String())
}

func TestJSONLogger_BadPath(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))

	_, err := NewJSONLogger(LoggerConfig{
		OutputPath: filepath.Join(blocker, "x.log"),
	})
	assert.Error(t, err)
}
