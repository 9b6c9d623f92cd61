// Package report persists and summarises n-back session results.
// A Reporter receives one Record per completed level together with
// the participant's optional difficulty rating.
package report

import (
	"context"
	"errors"
	"time"

	"digital.vasic.nback/pkg/task"
)

// Record is what the orchestrator hands to reporters after a
// level finishes.
type Record struct {
	// Result is the finished session.
	Result *task.Result `json:"result"`

	// Rating is the optional 1..7 difficulty rating.
	Rating *int `json:"rating,omitempty"`

	// Participant identifies who ran the task.
	Participant string `json:"participant,omitempty"`

	// Position is the index of the level within the run order.
	Position int `json:"position"`

	RecordedAt time.Time `json:"recorded_at"`
}

// Reporter defines the interface for persisting session records.
type Reporter interface {
	// Report persists a single record.
	Report(ctx context.Context, rec Record) error
}

// ReporterFunc adapts a function to the Reporter interface.
type ReporterFunc func(ctx context.Context, rec Record) error

// Report calls f.
func (f ReporterFunc) Report(ctx context.Context, rec Record) error {
	return f(ctx, rec)
}

// MultiReporter fans a record out to several reporters. Every
// reporter is called even if an earlier one fails; the errors are
// joined.
type MultiReporter []Reporter

// Report implements Reporter.
func (m MultiReporter) Report(ctx context.Context, rec Record) error {
	var errs []error
	for _, r := range m {
		if r == nil {
			continue
		}
		if err := r.Report(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var errNoResult = errors.New("record has no result")

func checkRecord(rec Record) error {
	if rec.Result == nil {
		return errNoResult
	}
	if rec.Rating != nil {
		return ValidateRating(*rec.Rating)
	}
	return nil
}
