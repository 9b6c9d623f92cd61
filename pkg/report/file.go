package report

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"digital.vasic.nback/pkg/motion"
	"digital.vasic.nback/pkg/task"
)

// Export file names.
const (
	AccuracyFile     = "accuracy_data.csv"
	RatingsFile      = "ratings.csv"
	ReactionTimeFile = "reaction_time_data.txt"
	MotionFile       = "accelerometer_data.txt"
	SessionsDir      = "sessions"
)

const (
	accuracyHeader = "Accuracy (%)"
	ratingHeader   = "Difficulty rating"
	levelHeader    = "Level"
)

// FileReporter appends each record to the export files in a
// directory and writes result.json and report.md for the session
// under sessions/<id>. CSV headers are written once, when a file
// is new or empty.
type FileReporter struct {
	dir          string
	includeLevel bool

	mu sync.Mutex
}

// FileOption configures a FileReporter.
type FileOption func(*FileReporter)

// WithLevelColumn adds a Level column to ratings.csv.
func WithLevelColumn() FileOption {
	return func(r *FileReporter) {
		r.includeLevel = true
	}
}

// NewFileReporter creates a FileReporter writing into dir.
func NewFileReporter(dir string, opts ...FileOption) *FileReporter {
	r := &FileReporter{dir: dir}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Dir returns the output directory.
func (r *FileReporter) Dir() string { return r.dir }

// Report implements Reporter.
func (r *FileReporter) Report(_ context.Context, rec Record) error {
	if err := checkRecord(rec); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	res := rec.Result
	if err := r.appendCSV(
		AccuracyFile,
		[]string{accuracyHeader},
		[]string{fmt.Sprintf("%.2f%%", res.AccuracyPercent)},
	); err != nil {
		return err
	}

	if rec.Rating != nil {
		header := []string{ratingHeader}
		row := []string{strconv.Itoa(*rec.Rating)}
		if r.includeLevel {
			header = []string{levelHeader, ratingHeader}
			row = []string{strconv.Itoa(int(res.Level)), row[0]}
		}
		if err := r.appendCSV(RatingsFile, header, row); err != nil {
			return err
		}
	}

	if err := r.appendText(
		ReactionTimeFile, FormatReactionTimes(res),
	); err != nil {
		return err
	}

	if len(res.Motion) > 0 {
		if err := r.appendText(
			MotionFile, motion.FormatText(res.Motion),
		); err != nil {
			return err
		}
	}

	return r.writeSession(rec)
}

// FormatReactionTimes renders the accepted reaction times of res
// one per line as "Reaction Time: N ms".
func FormatReactionTimes(res *task.Result) string {
	var sb strings.Builder
	for _, ms := range res.ReactionTimesMs() {
		fmt.Fprintf(&sb, "Reaction Time: %d ms\n", ms)
	}
	return sb.String()
}

func (r *FileReporter) appendCSV(
	name string,
	header, row []string,
) error {
	path := filepath.Join(r.dir, name)
	f, err := os.OpenFile(
		path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644,
	)
	if err != nil {
		return fmt.Errorf("open %s: %w", name, err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", name, err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(header); err != nil {
			return fmt.Errorf("write %s header: %w", name, err)
		}
	}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush %s: %w", name, err)
	}
	return nil
}

func (r *FileReporter) appendText(name, text string) error {
	if text == "" {
		return nil
	}
	path := filepath.Join(r.dir, name)
	f, err := os.OpenFile(
		path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644,
	)
	if err != nil {
		return fmt.Errorf("open %s: %w", name, err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.WriteString(text); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// SessionDir returns the directory holding a session's files.
func (r *FileReporter) SessionDir(sessionID string) string {
	return filepath.Join(r.dir, SessionsDir, sessionID)
}

func (r *FileReporter) writeSession(rec Record) error {
	dir := r.SessionDir(rec.Result.SessionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create session directory: %w", err)
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	path := filepath.Join(dir, "result.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write result %s: %w", path, err)
	}

	path = filepath.Join(dir, "report.md")
	if err := os.WriteFile(
		path, []byte(MarkdownReport(rec)), 0o644,
	); err != nil {
		return fmt.Errorf("write report %s: %w", path, err)
	}

	if len(rec.Result.Motion) > 0 {
		if _, err := motion.WriteArchive(
			dir, rec.Result.SessionID, rec.Result.Motion,
		); err != nil {
			return err
		}
	}
	return nil
}

// MarkdownReport renders a human-readable summary of rec.
func MarkdownReport(rec Record) string {
	res := rec.Result
	score := ScoreResult(res)

	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s session\n\n", res.Level)
	fmt.Fprintf(&sb, "**ID**: %s\n", res.SessionID)
	if rec.Participant != "" {
		fmt.Fprintf(&sb, "**Participant**: %s\n", rec.Participant)
	}
	fmt.Fprintf(&sb, "**Duration**: %s\n", res.Duration)
	fmt.Fprintf(&sb, "**Accuracy**: %.2f%%\n", res.AccuracyPercent)
	if rec.Rating != nil {
		fmt.Fprintf(&sb, "**Difficulty rating**: %d\n", *rec.Rating)
	}

	sb.WriteString("\n## Scores\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	fmt.Fprintf(&sb, "| Matches found | %d/%d |\n",
		res.MatchCount, res.TotalRequiredMatches)
	fmt.Fprintf(&sb, "| False alarms | %d |\n", res.FalseAlarms)
	fmt.Fprintf(&sb, "| Hit rate | %.2f |\n", score.HitRate)
	fmt.Fprintf(&sb, "| False alarm rate | %.2f |\n", score.FalseAlarmRate)
	fmt.Fprintf(&sb, "| Mean reaction time | %d ms |\n",
		score.MeanReactionTime.Milliseconds())
	fmt.Fprintf(&sb, "| Reaction time SD | %d ms |\n",
		score.ReactionTimeSD.Milliseconds())

	sb.WriteString("\n## Trials\n\n")
	for _, t := range res.Trials {
		mark := " "
		if t.Responded {
			mark = "x"
		}
		line := fmt.Sprintf("- [%s] %d: digit %d", mark, t.Index, t.Digit)
		if t.IsMatch {
			line += " (match)"
		}
		if ms, ok := t.ReactionTimeMs(); ok {
			line += fmt.Sprintf(", %d ms", ms)
		}
		sb.WriteString(line + "\n")
	}
	return sb.String()
}
