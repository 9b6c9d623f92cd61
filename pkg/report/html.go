package report

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"io"
	"os"
	"path/filepath"
	"time"
)

// HTMLReporter writes report.html for each session under
// <dir>/sessions/<id> and renders run summaries.
type HTMLReporter struct {
	dir string
}

// NewHTMLReporter creates a new HTML reporter.
func NewHTMLReporter(dir string) *HTMLReporter {
	return &HTMLReporter{dir: dir}
}

// Report implements Reporter.
func (r *HTMLReporter) Report(_ context.Context, rec Record) error {
	if err := checkRecord(rec); err != nil {
		return err
	}
	dir := filepath.Join(r.dir, SessionsDir, rec.Result.SessionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create session directory: %w", err)
	}

	var buf bytes.Buffer
	r.WriteReport(&buf, rec)
	path := filepath.Join(dir, "report.html")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write report %s: %w", path, err)
	}
	return nil
}

// WriteReport writes an HTML report of one session to w.
func (r *HTMLReporter) WriteReport(w io.Writer, rec Record) {
	res := rec.Result
	title := fmt.Sprintf("N-back Report: %s", res.Level)
	r.writeHeader(w, title)

	fmt.Fprintf(w, "<h1>%s</h1>\n", html.EscapeString(title))
	fmt.Fprintf(
		w,
		"<p><strong>Session ID:</strong> %s</p>\n",
		html.EscapeString(res.SessionID),
	)
	if rec.Participant != "" {
		fmt.Fprintf(
			w,
			"<p><strong>Participant:</strong> %s</p>\n",
			html.EscapeString(rec.Participant),
		)
	}
	fmt.Fprintf(
		w,
		"<p><strong>Finished:</strong> %s</p>\n",
		res.EndedAt.Format(time.RFC3339),
	)

	r.writeSummaryTable(w, rec)
	r.writeTrialsSection(w, rec)
	r.writeFooter(w)
}

func (r *HTMLReporter) writeSummaryTable(w io.Writer, rec Record) {
	res := rec.Result
	score := ScoreResult(res)

	fmt.Fprintln(w, "<h2>Summary</h2>")
	fmt.Fprintln(w, "<table>")
	fmt.Fprintln(w, "<tr><th>Metric</th><th>Value</th></tr>")
	fmt.Fprintf(
		w,
		"<tr><td>Accuracy</td><td><strong>%.2f%%</strong></td></tr>\n",
		res.AccuracyPercent,
	)
	fmt.Fprintf(
		w,
		"<tr><td>Matches</td><td>%d/%d</td></tr>\n",
		res.MatchCount, res.TotalRequiredMatches,
	)
	fmt.Fprintf(
		w,
		"<tr><td>False Alarms</td><td>%d</td></tr>\n",
		res.FalseAlarms,
	)
	fmt.Fprintf(
		w,
		"<tr><td>Hit Rate</td><td>%.2f</td></tr>\n",
		score.HitRate,
	)
	fmt.Fprintf(
		w,
		"<tr><td>Mean Reaction Time</td><td>%d ms</td></tr>\n",
		score.MeanReactionTime.Milliseconds(),
	)
	fmt.Fprintf(
		w,
		"<tr><td>Duration</td><td>%v</td></tr>\n",
		res.Duration,
	)
	if rec.Rating != nil {
		fmt.Fprintf(
			w,
			"<tr><td>Difficulty Rating</td><td>%d</td></tr>\n",
			*rec.Rating,
		)
	}
	fmt.Fprintln(w, "</table>")
}

func (r *HTMLReporter) writeTrialsSection(w io.Writer, rec Record) {
	trials := rec.Result.Trials
	if len(trials) == 0 {
		return
	}

	fmt.Fprintln(w, "<h2>Trials</h2>")
	fmt.Fprintln(w, "<table>")
	fmt.Fprintln(
		w,
		"<tr><th>#</th><th>Digit</th>"+
			"<th>Match</th><th>Response</th><th>RT</th></tr>",
	)
	for _, t := range trials {
		cls := ""
		switch {
		case t.Responded && t.IsMatch:
			cls = "status-passed"
		case t.Responded || t.IsMatch:
			cls = "status-failed"
		}
		rt := "-"
		if ms, ok := t.ReactionTimeMs(); ok {
			rt = fmt.Sprintf("%d ms", ms)
		}
		fmt.Fprintf(
			w,
			"<tr class=\"%s\"><td>%d</td><td>%d</td>"+
				"<td>%s</td><td>%s</td><td>%s</td></tr>\n",
			cls, t.Index, t.Digit,
			yesNo(t.IsMatch), yesNo(t.Responded), rt,
		)
	}
	fmt.Fprintln(w, "</table>")
}

// WriteSummary writes an HTML page for a run summary.
func (r *HTMLReporter) WriteSummary(w io.Writer, summary *RunSummary) {
	r.writeHeader(w, "N-back Run Summary")
	fmt.Fprintln(w, "<h1>N-back Run Summary</h1>")
	fmt.Fprintf(
		w,
		"<p><strong>Generated:</strong> %s</p>\n",
		summary.GeneratedAt.Format(time.RFC3339),
	)

	fmt.Fprintln(w, "<table>")
	fmt.Fprintln(
		w,
		"<tr><th>Level</th><th>Accuracy</th>"+
			"<th>False Alarms</th><th>Rating</th></tr>",
	)
	for _, l := range summary.Levels {
		rating := "-"
		if l.Rating != nil {
			rating = fmt.Sprintf("%d", *l.Rating)
		}
		fmt.Fprintf(
			w,
			"<tr><td>%d-back</td><td>%.2f%%</td>"+
				"<td>%d</td><td>%s</td></tr>\n",
			l.Level, l.AccuracyPercent, l.FalseAlarms, rating,
		)
	}
	fmt.Fprintln(w, "</table>")
	fmt.Fprintf(
		w,
		"<p><strong>Average Accuracy:</strong> %.2f%%</p>\n",
		summary.AverageAccuracy,
	)
	r.writeFooter(w)
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func (r *HTMLReporter) writeHeader(w io.Writer, title string) {
	fmt.Fprintf(w, `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>%s</title>
<style>
body {
  font-family: -apple-system, BlinkMacSystemFont,
    "Segoe UI", Roboto, sans-serif;
  max-width: 960px;
  margin: 0 auto;
  padding: 20px;
  color: #333;
}
h1 { color: #2c3e50; border-bottom: 2px solid #3498db; padding-bottom: 10px; }
table { border-collapse: collapse; width: 100%%; margin: 10px 0; }
th, td { border: 1px solid #ddd; padding: 6px 10px; text-align: left; }
th { background: #3498db; color: #fff; }
.status-passed { color: #27ae60; font-weight: bold; }
.status-failed { color: #e74c3c; font-weight: bold; }
footer { margin-top: 40px; color: #7f8c8d; font-size: 0.9em; }
</style>
</head>
<body>
`, html.EscapeString(title))
}

func (r *HTMLReporter) writeFooter(w io.Writer) {
	fmt.Fprintln(w, "<footer>")
	fmt.Fprintln(w, "<p>Generated by nback</p>")
	fmt.Fprintln(w, "</footer>")
	fmt.Fprintln(w, "</body>")
	fmt.Fprintln(w, "</html>")
}
