package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// RunSummary aggregates every level of a participant's run.
type RunSummary struct {
	ID              string         `json:"id"`
	Participant     string         `json:"participant,omitempty"`
	GeneratedAt     time.Time      `json:"generated_at"`
	Levels          []LevelSummary `json:"levels"`
	TotalDuration   time.Duration  `json:"total_duration"`
	AverageAccuracy float64        `json:"average_accuracy"`
}

// LevelSummary represents a summary of a single level.
type LevelSummary struct {
	Position        int           `json:"position"`
	Level           int           `json:"level"`
	SessionID       string        `json:"session_id"`
	MatchCount      int           `json:"match_count"`
	Required        int           `json:"required"`
	FalseAlarms     int           `json:"false_alarms"`
	AccuracyPercent float64       `json:"accuracy_percent"`
	HitRate         float64       `json:"hit_rate"`
	FalseAlarmRate  float64       `json:"false_alarm_rate"`
	MeanReaction    time.Duration `json:"mean_reaction"`
	Rating          *int          `json:"rating,omitempty"`
	Duration        time.Duration `json:"duration"`
}

// BuildRunSummary creates a run summary from level records.
// Records without a result are skipped.
func BuildRunSummary(participant string, records []Record) *RunSummary {
	now := time.Now()
	summary := &RunSummary{
		ID: fmt.Sprintf(
			"summary_%s",
			now.Format("20060102_150405"),
		),
		Participant: participant,
		GeneratedAt: now,
		Levels:      make([]LevelSummary, 0, len(records)),
	}

	var accSum float64
	for _, rec := range records {
		res := rec.Result
		if res == nil {
			continue
		}
		score := ScoreResult(res)
		summary.Levels = append(summary.Levels, LevelSummary{
			Position:        rec.Position,
			Level:           int(res.Level),
			SessionID:       res.SessionID,
			MatchCount:      res.MatchCount,
			Required:        res.TotalRequiredMatches,
			FalseAlarms:     res.FalseAlarms,
			AccuracyPercent: res.AccuracyPercent,
			HitRate:         score.HitRate,
			FalseAlarmRate:  score.FalseAlarmRate,
			MeanReaction:    score.MeanReactionTime,
			Rating:          rec.Rating,
			Duration:        res.Duration,
		})
		summary.TotalDuration += res.Duration
		accSum += res.AccuracyPercent
	}

	if n := len(summary.Levels); n > 0 {
		summary.AverageAccuracy = accSum / float64(n)
	}
	return summary
}

// SaveRunSummary saves the summary to both JSON and Markdown
// files in outputDir and points latest_summary.* at them.
func SaveRunSummary(summary *RunSummary, outputDir string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf(
			"failed to create output directory: %w", err,
		)
	}

	ts := summary.GeneratedAt.Format("20060102_150405")

	jsonPath := filepath.Join(
		outputDir,
		fmt.Sprintf("run_summary_%s.json", ts),
	)
	jsonData, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf(
			"failed to marshal summary: %w", err,
		)
	}
	if err := os.WriteFile(jsonPath, jsonData, 0644); err != nil {
		return fmt.Errorf(
			"failed to write JSON summary: %w", err,
		)
	}

	mdPath := filepath.Join(
		outputDir,
		fmt.Sprintf("run_summary_%s.md", ts),
	)
	if err := os.WriteFile(
		mdPath, []byte(SummaryMarkdown(summary)), 0644,
	); err != nil {
		return fmt.Errorf(
			"failed to write Markdown summary: %w", err,
		)
	}

	latestJSON := filepath.Join(outputDir, "latest_summary.json")
	latestMD := filepath.Join(outputDir, "latest_summary.md")

	_ = os.Remove(latestJSON)
	_ = os.Remove(latestMD)
	_ = os.Symlink(filepath.Base(jsonPath), latestJSON)
	_ = os.Symlink(filepath.Base(mdPath), latestMD)

	return nil
}

// SummaryMarkdown renders a run summary as Markdown.
func SummaryMarkdown(summary *RunSummary) string {
	var sb strings.Builder

	sb.WriteString("# N-back run summary\n\n")
	fmt.Fprintf(&sb, "**Summary ID:** %s\n\n", summary.ID)
	if summary.Participant != "" {
		fmt.Fprintf(&sb, "**Participant:** %s\n\n", summary.Participant)
	}
	fmt.Fprintf(
		&sb, "**Generated:** %s\n\n",
		summary.GeneratedAt.Format(time.RFC3339),
	)

	sb.WriteString("## Levels\n\n")
	sb.WriteString(
		"| # | Level | Matches | False alarms " +
			"| Accuracy | Mean RT | Rating |\n",
	)
	sb.WriteString(
		"|---|-------|---------|--------------" +
			"|----------|---------|--------|\n",
	)
	for _, l := range summary.Levels {
		rating := "-"
		if l.Rating != nil {
			rating = fmt.Sprintf("%d", *l.Rating)
		}
		fmt.Fprintf(
			&sb, "| %d | %d-back | %d/%d | %d | %.2f%% | %d ms | %s |\n",
			l.Position+1, l.Level, l.MatchCount, l.Required,
			l.FalseAlarms, l.AccuracyPercent,
			l.MeanReaction.Milliseconds(), rating,
		)
	}

	sb.WriteString("\n## Statistics\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	fmt.Fprintf(&sb, "| Levels | %d |\n", len(summary.Levels))
	fmt.Fprintf(
		&sb, "| Average accuracy | %.2f%% |\n",
		summary.AverageAccuracy,
	)
	fmt.Fprintf(&sb, "| Total duration | %v |\n", summary.TotalDuration)

	return sb.String()
}
