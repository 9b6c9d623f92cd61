package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapLogger_ObservedFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewZapFromCore(core)

	l.WithFields(StringField("session_id", "s1")).
		Info("stimulus", IntField("digit", 7))

	entries := logs.All()
	require.Len(t, entries, 1)
	ctx := entries[0].ContextMap()
	assert.Equal(t, "stimulus", entries[0].Message)
	assert.Equal(t, "s1", ctx["session_id"])
	assert.EqualValues(t, 7, ctx["digit"])
}

func TestZapLogger_TrialAndSession(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewZapFromCore(core)

	rt := int64(512)
	l.LogTrial(TrialLog{SessionID: "s1", Index: 2, Digit: 5, ReactionTimeMs: &rt})
	l.LogSession(SessionLog{SessionID: "s1", State: "cancelled", Level: 2})

	require.Equal(t, 1, logs.FilterMessage("trial").Len())
	trial := logs.FilterMessage("trial").All()[0].ContextMap()
	assert.EqualValues(t, 512, trial["reaction_time_ms"])

	session := logs.FilterMessage("session cancelled").All()
	require.Len(t, session, 1)
	assert.Equal(t, zapcore.InfoLevel, session[0].Level)
}

func TestZapLogger_FileAndConsole(t *testing.T) {
	dir := t.TempDir()
	var console bytes.Buffer

	l, err := NewZapLogger(ZapConfig{
		Dir:     dir,
		Console: &console,
		Level:   LevelInfo,
	})
	require.NoError(t, err)

	l.Debug("filtered out")
	l.Warn("disk almost full", IntField("free_mb", 12))
	require.NoError(t, l.Close())

	assert.Contains(t, console.String(), "disk almost full")
	assert.NotContains(t, console.String(), "filtered out")

	data, err := os.ReadFile(filepath.Join(dir, "nback.log"))
	require.NoError(t, err)
	lines := splitNonEmpty(string(data))
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "disk almost full", entry["message"])
	assert.EqualValues(t, 12, entry["free_mb"])
}

func TestZapLogger_NoOutputs(t *testing.T) {
	l, err := NewZapLogger(ZapConfig{})
	require.NoError(t, err)
	assert.NotPanics(t, func() { l.Error("dropped") })
	assert.NoError(t, l.Close())
}
