package report

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// HistoricalEntry represents a single level run in the
// historical log.
type HistoricalEntry struct {
	Timestamp       time.Time `json:"timestamp"`
	SessionID       string    `json:"session_id"`
	Participant     string    `json:"participant,omitempty"`
	Level           int       `json:"level"`
	MatchCount      int       `json:"match_count"`
	FalseAlarms     int       `json:"false_alarms"`
	AccuracyPercent float64   `json:"accuracy_percent"`
	MeanReactionMs  int64     `json:"mean_reaction_ms"`
	Rating          *int      `json:"rating,omitempty"`
	Duration        string    `json:"duration"`
}

// NewHistoricalEntry builds the history line for rec.
func NewHistoricalEntry(rec Record) HistoricalEntry {
	res := rec.Result
	score := ScoreResult(res)
	return HistoricalEntry{
		Timestamp:       res.EndedAt,
		SessionID:       res.SessionID,
		Participant:     rec.Participant,
		Level:           int(res.Level),
		MatchCount:      res.MatchCount,
		FalseAlarms:     res.FalseAlarms,
		AccuracyPercent: res.AccuracyPercent,
		MeanReactionMs:  score.MeanReactionTime.Milliseconds(),
		Rating:          rec.Rating,
		Duration:        res.Duration.String(),
	}
}

// AppendToHistory adds an entry to the historical log stored
// at historyPath. Each entry is a single JSON line.
func AppendToHistory(historyPath string, entry HistoricalEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf(
			"failed to marshal history entry: %w", err,
		)
	}

	if dir := filepath.Dir(historyPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf(
				"failed to create history directory: %w", err,
			)
		}
	}

	file, err := os.OpenFile(
		historyPath,
		os.O_CREATE|os.O_APPEND|os.O_WRONLY,
		0644,
	)
	if err != nil {
		return fmt.Errorf(
			"failed to open history file: %w", err,
		)
	}
	defer func() { _ = file.Close() }()

	_, err = fmt.Fprintln(file, string(data))
	return err
}

// ReadHistory returns every entry of the log at historyPath. A
// missing file yields no entries.
func ReadHistory(historyPath string) ([]HistoricalEntry, error) {
	file, err := os.Open(historyPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open history file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var entries []HistoricalEntry
	sc := bufio.NewScanner(file)
	line := 0
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		var e HistoricalEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return entries, fmt.Errorf(
				"history line %d: %w", line, err,
			)
		}
		entries = append(entries, e)
	}
	return entries, sc.Err()
}

// HistoryReporter appends a history line per record.
type HistoryReporter struct {
	path string
	mu   sync.Mutex
}

// NewHistoryReporter creates a reporter appending to path.
func NewHistoryReporter(path string) *HistoryReporter {
	return &HistoryReporter{path: path}
}

// Path returns the history file path.
func (h *HistoryReporter) Path() string { return h.path }

// Report implements Reporter.
func (h *HistoryReporter) Report(_ context.Context, rec Record) error {
	if err := checkRecord(rec); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return AppendToHistory(h.path, NewHistoricalEntry(rec))
}
