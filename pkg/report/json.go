package report

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// JSONReporter writes each record as JSON to a writer. With
// pretty set the output is indented; otherwise one record is
// written per line.
type JSONReporter struct {
	w      io.Writer
	pretty bool

	mu sync.Mutex
}

// NewJSONReporter creates a new JSON reporter.
func NewJSONReporter(w io.Writer, pretty bool) *JSONReporter {
	return &JSONReporter{w: w, pretty: pretty}
}

// Encode returns the JSON form of rec.
func (r *JSONReporter) Encode(rec Record) ([]byte, error) {
	if r.pretty {
		return json.MarshalIndent(rec, "", "  ")
	}
	return json.Marshal(rec)
}

// Report implements Reporter.
func (r *JSONReporter) Report(_ context.Context, rec Record) error {
	if err := checkRecord(rec); err != nil {
		return err
	}
	data, err := r.Encode(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	return nil
}
