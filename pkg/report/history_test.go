package report

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHistoricalEntry(t *testing.T) {
	res := sampleResult()
	entry := NewHistoricalEntry(Record{
		Result: res, Rating: intPtr(6), Participant: "p2",
	})

	assert.Equal(t, res.EndedAt, entry.Timestamp)
	assert.Equal(t, "sess-1", entry.SessionID)
	assert.Equal(t, "p2", entry.Participant)
	assert.Equal(t, 2, entry.Level)
	assert.Equal(t, 1, entry.MatchCount)
	assert.Equal(t, 1, entry.FalseAlarms)
	assert.Equal(t, int64(300), entry.MeanReactionMs)
	require.NotNil(t, entry.Rating)
	assert.Equal(t, 6, *entry.Rating)
	assert.Equal(t, "10s", entry.Duration)
}

func TestHistoricalEntry_JSONTags(t *testing.T) {
	data, err := json.Marshal(NewHistoricalEntry(Record{Result: sampleResult()}))
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))

	assert.Contains(t, raw, "session_id")
	assert.Contains(t, raw, "level")
	assert.Contains(t, raw, "accuracy_percent")
	assert.Contains(t, raw, "mean_reaction_ms")
	assert.NotContains(t, raw, "rating")
	assert.NotContains(t, raw, "participant")
}

func TestHistoryReporter_AppendAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.jsonl")
	h := NewHistoryReporter(path)
	assert.Equal(t, path, h.Path())

	ctx := context.Background()
	first := sampleResult()
	second := sampleResult()
	second.SessionID = "sess-2"
	second.Level = 3

	require.NoError(t, h.Report(ctx, Record{Result: first}))
	require.NoError(t, h.Report(ctx, Record{Result: second, Rating: intPtr(7)}))

	entries, err := ReadHistory(path)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "sess-1", entries[0].SessionID)
	assert.Equal(t, 3, entries[1].Level)
	require.NotNil(t, entries[1].Rating)
	assert.Equal(t, 7, *entries[1].Rating)
}

func TestHistoryReporter_RejectsEmptyRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.jsonl")
	h := NewHistoryReporter(path)
	assert.Error(t, h.Report(context.Background(), Record{}))

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestReadHistory_Missing(t *testing.T) {
	entries, err := ReadHistory(filepath.Join(t.TempDir(), "none.jsonl"))
	assert.NoError(t, err)
	assert.Empty(t, entries)
}

func TestReadHistory_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.jsonl")
	require.NoError(t, AppendToHistory(path, NewHistoricalEntry(Record{Result: sampleResult()})))

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("{not json\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	entries, err := ReadHistory(path)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "history line 2")
	assert.Len(t, entries, 1)
}

func TestAppendToHistory_OpenError(t *testing.T) {
	dir := t.TempDir()
	err := AppendToHistory(dir, NewHistoricalEntry(Record{Result: sampleResult()}))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open history file")
}
