// Package store persists finished n-back levels, their trials and
// difficulty ratings in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"digital.vasic.nback/pkg/report"
	"digital.vasic.nback/pkg/task"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	participant TEXT NOT NULL DEFAULT '',
	level INTEGER NOT NULL,
	position INTEGER NOT NULL,
	match_count INTEGER NOT NULL,
	false_alarms INTEGER NOT NULL,
	responses INTEGER NOT NULL,
	required_matches INTEGER NOT NULL,
	accuracy REAL NOT NULL,
	rating INTEGER,
	sequence_length INTEGER NOT NULL,
	started_at TEXT NOT NULL,
	ended_at TEXT NOT NULL,
	duration_ms INTEGER NOT NULL,
	recorded_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_participant ON sessions(participant, recorded_at);
CREATE TABLE IF NOT EXISTS trials (
	session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	idx INTEGER NOT NULL,
	digit INTEGER NOT NULL,
	is_match INTEGER NOT NULL,
	responded INTEGER NOT NULL,
	reaction_ms INTEGER,
	displayed_at TEXT NOT NULL,
	PRIMARY KEY (session_id, idx)
);
`

// ErrNotFound is returned when a session does not exist.
var ErrNotFound = errors.New("session not found")

// Store is a report.Reporter backed by a SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	db, err := sql.Open(
		"sqlite",
		path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)",
	)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("init store schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Report stores the record's session and trials in one
// transaction. Reporting the same session twice is an error.
func (s *Store) Report(ctx context.Context, rec report.Record) error {
	if rec.Result == nil {
		return fmt.Errorf("store session: nil result")
	}
	r := rec.Result
	recordedAt := rec.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var rating sql.NullInt64
	if rec.Rating != nil {
		rating = sql.NullInt64{Int64: int64(*rec.Rating), Valid: true}
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO sessions
		(id, participant, level, position, match_count, false_alarms,
		 responses, required_matches, accuracy, rating, sequence_length,
		 started_at, ended_at, duration_ms, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.SessionID, rec.Participant, int(r.Level), rec.Position,
		r.MatchCount, r.FalseAlarms, r.Responses, r.TotalRequiredMatches,
		r.AccuracyPercent, rating, r.SequenceLength,
		formatTime(r.StartedAt), formatTime(r.EndedAt),
		r.Duration.Milliseconds(), formatTime(recordedAt),
	)
	if err != nil {
		return fmt.Errorf("insert session %s: %w", r.SessionID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO trials
		(session_id, idx, digit, is_match, responded, reaction_ms, displayed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare trials: %w", err)
	}
	defer stmt.Close()

	for _, tr := range r.Trials {
		var rt sql.NullInt64
		if ms, ok := tr.ReactionTimeMs(); ok {
			rt = sql.NullInt64{Int64: ms, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx,
			r.SessionID, tr.Index, tr.Digit, tr.IsMatch, tr.Responded,
			rt, formatTime(tr.DisplayedAt),
		); err != nil {
			return fmt.Errorf("insert trial %d: %w", tr.Index, err)
		}
	}
	return tx.Commit()
}

// SessionRow is one stored level.
type SessionRow struct {
	ID              string
	Participant     string
	Level           task.Level
	Position        int
	MatchCount      int
	FalseAlarms     int
	Responses       int
	RequiredMatches int
	AccuracyPercent float64
	Rating          *int
	SequenceLength  int
	StartedAt       time.Time
	EndedAt         time.Time
	Duration        time.Duration
	RecordedAt      time.Time
}

// Filter narrows ListSessions. Zero fields match everything.
type Filter struct {
	Participant string
	Level       task.Level
	Limit       int
}

const sessionColumns = `id, participant, level, position, match_count,
	false_alarms, responses, required_matches, accuracy, rating,
	sequence_length, started_at, ended_at, duration_ms, recorded_at`

// ListSessions returns stored sessions, most recent first.
func (s *Store) ListSessions(ctx context.Context, f Filter) ([]SessionRow, error) {
	var (
		where []string
		args  []any
	)
	if f.Participant != "" {
		where = append(where, "participant = ?")
		args = append(args, f.Participant)
	}
	if f.Level != 0 {
		where = append(where, "level = ?")
		args = append(args, int(f.Level))
	}
	q := "SELECT " + sessionColumns + " FROM sessions"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY recorded_at DESC, position DESC"
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionRow
	for rows.Next() {
		row, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// Session returns one stored session.
func (s *Store) Session(ctx context.Context, id string) (SessionRow, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+sessionColumns+" FROM sessions WHERE id = ?", id)
	out, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return SessionRow{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return out, err
}

// Trials returns the trials of a session in presentation order.
func (s *Store) Trials(ctx context.Context, sessionID string) ([]task.TrialState, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT idx, digit, is_match,
		responded, reaction_ms, displayed_at
		FROM trials WHERE session_id = ? ORDER BY idx`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query trials: %w", err)
	}
	defer rows.Close()

	var out []task.TrialState
	for rows.Next() {
		var (
			tr        task.TrialState
			rt        sql.NullInt64
			displayed string
		)
		if err := rows.Scan(
			&tr.Index, &tr.Digit, &tr.IsMatch, &tr.Responded, &rt, &displayed,
		); err != nil {
			return nil, fmt.Errorf("scan trial: %w", err)
		}
		if rt.Valid {
			d := time.Duration(rt.Int64) * time.Millisecond
			tr.ReactionTime = &d
		}
		tr.DisplayedAt = parseTime(displayed)
		out = append(out, tr)
	}
	return out, rows.Err()
}

// Record rebuilds the report record of a stored session,
// including its trials and reaction times.
func (s *Store) Record(ctx context.Context, id string) (report.Record, error) {
	row, err := s.Session(ctx, id)
	if err != nil {
		return report.Record{}, err
	}
	trials, err := s.Trials(ctx, id)
	if err != nil {
		return report.Record{}, err
	}
	res := &task.Result{
		SessionID:            row.ID,
		Level:                row.Level,
		MatchCount:           row.MatchCount,
		FalseAlarms:          row.FalseAlarms,
		Responses:            row.Responses,
		TotalRequiredMatches: row.RequiredMatches,
		AccuracyPercent:      row.AccuracyPercent,
		Trials:               trials,
		SequenceLength:       row.SequenceLength,
		StartedAt:            row.StartedAt,
		EndedAt:              row.EndedAt,
		Duration:             row.Duration,
	}
	for _, tr := range trials {
		if tr.ReactionTime != nil {
			res.ReactionTimes = append(res.ReactionTimes, *tr.ReactionTime)
		}
	}
	return report.Record{
		Result:      res,
		Rating:      row.Rating,
		Participant: row.Participant,
		Position:    row.Position,
		RecordedAt:  row.RecordedAt,
	}, nil
}

// LevelStats aggregates one participant's sessions per level.
type LevelStats struct {
	Level        task.Level
	Sessions     int
	MeanAccuracy float64
	// MeanRating is nil when no session of the level was rated.
	MeanRating *float64
}

// Stats returns per-level aggregates for participant, or for all
// participants when it is empty.
func (s *Store) Stats(ctx context.Context, participant string) ([]LevelStats, error) {
	q := `SELECT level, COUNT(*), AVG(accuracy), AVG(rating)
		FROM sessions`
	var args []any
	if participant != "" {
		q += " WHERE participant = ?"
		args = append(args, participant)
	}
	q += " GROUP BY level ORDER BY level"

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	defer rows.Close()

	var out []LevelStats
	for rows.Next() {
		var (
			st     LevelStats
			level  int
			rating sql.NullFloat64
		)
		if err := rows.Scan(&level, &st.Sessions, &st.MeanAccuracy, &rating); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}
		st.Level = task.Level(level)
		if rating.Valid {
			v := rating.Float64
			st.MeanRating = &v
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// DeleteSession removes a session and its trials.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(sc scanner) (SessionRow, error) {
	var (
		row                      SessionRow
		level                    int
		rating                   sql.NullInt64
		started, ended, recorded string
		durationMs               int64
	)
	if err := sc.Scan(
		&row.ID, &row.Participant, &level, &row.Position,
		&row.MatchCount, &row.FalseAlarms, &row.Responses,
		&row.RequiredMatches, &row.AccuracyPercent, &rating,
		&row.SequenceLength, &started, &ended, &durationMs, &recorded,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return row, err
		}
		return row, fmt.Errorf("scan session: %w", err)
	}
	row.Level = task.Level(level)
	if rating.Valid {
		v := int(rating.Int64)
		row.Rating = &v
	}
	row.StartedAt = parseTime(started)
	row.EndedAt = parseTime(ended)
	row.RecordedAt = parseTime(recorded)
	row.Duration = time.Duration(durationMs) * time.Millisecond
	return row, nil
}

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
