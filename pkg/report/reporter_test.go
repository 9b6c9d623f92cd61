package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"digital.vasic.nback/pkg/task"
)

func dur(d time.Duration) *time.Duration { return &d }

func intPtr(i int) *int { return &i }

// sampleResult is a 2-back session over 5,1,5,1,9 with a false
// alarm on trial 1 and a hit on trial 2.
func sampleResult() *task.Result {
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	return &task.Result{
		SessionID:            "sess-1",
		Level:                task.Level2,
		MatchCount:           1,
		FalseAlarms:          1,
		Responses:            2,
		TotalRequiredMatches: 15,
		AccuracyPercent:      task.Accuracy(1, 15),
		ReactionTimes: []time.Duration{
			400 * time.Millisecond, 300 * time.Millisecond,
		},
		Trials: []task.TrialState{
			{Index: 0, Digit: 5},
			{Index: 1, Digit: 1, Responded: true,
				ReactionTime: dur(400 * time.Millisecond)},
			{Index: 2, Digit: 5, IsMatch: true, Responded: true,
				ReactionTime: dur(300 * time.Millisecond)},
			{Index: 3, Digit: 1, IsMatch: true},
			{Index: 4, Digit: 9},
		},
		SequenceLength: 5,
		StartedAt:      start,
		EndedAt:        start.Add(10 * time.Second),
		Duration:       10 * time.Second,
	}
}

type countingReporter struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (c *countingReporter) Report(_ context.Context, _ Record) error {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return c.err
}

func TestMultiReporter_CallsAllAndJoinsErrors(t *testing.T) {
	errA := errors.New("a failed")
	a := &countingReporter{err: errA}
	b := &countingReporter{}

	m := MultiReporter{a, nil, b}
	err := m.Report(context.Background(), Record{Result: sampleResult()})

	assert.ErrorIs(t, err, errA)
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls)
}

func TestMultiReporter_NoErrors(t *testing.T) {
	m := MultiReporter{&countingReporter{}}
	assert.NoError(t, m.Report(context.Background(), Record{}))
}

func TestReporterFunc(t *testing.T) {
	var got Record
	f := ReporterFunc(func(_ context.Context, rec Record) error {
		got = rec
		return nil
	})
	rec := Record{Result: sampleResult(), Participant: "p1"}
	require.NoError(t, f.Report(context.Background(), rec))
	assert.Equal(t, "p1", got.Participant)
}

func TestValidateRating(t *testing.T) {
	for r := MinRating; r <= MaxRating; r++ {
		assert.NoError(t, ValidateRating(r))
	}
	assert.ErrorIs(t, ValidateRating(0), ErrInvalidRating)
	assert.ErrorIs(t, ValidateRating(8), ErrInvalidRating)
	assert.NoError(t, ValidateRating(DefaultRating))
}

func TestCheckRecord(t *testing.T) {
	assert.Error(t, checkRecord(Record{}))
	assert.ErrorIs(t,
		checkRecord(Record{Result: sampleResult(), Rating: intPtr(9)}),
		ErrInvalidRating,
	)
	assert.NoError(t,
		checkRecord(Record{Result: sampleResult(), Rating: intPtr(3)}),
	)
}

func TestScoreResult(t *testing.T) {
	s := ScoreResult(sampleResult())

	assert.Equal(t, task.Level2, s.Level)
	assert.Equal(t, 2, s.Targets)
	assert.Equal(t, 3, s.NonTargets)
	assert.Equal(t, 1, s.Hits)
	assert.Equal(t, 1, s.Misses)
	assert.Equal(t, 1, s.FalseAlarms)
	assert.Equal(t, 2, s.CorrectRejections)
	assert.InDelta(t, 0.5, s.HitRate, 1e-9)
	assert.InDelta(t, 1.0/3.0, s.FalseAlarmRate, 1e-9)
	assert.Equal(t, 300*time.Millisecond, s.MeanReactionTime)
	assert.Equal(t, time.Duration(0), s.ReactionTimeSD)
}

func TestScoreResult_Empty(t *testing.T) {
	s := ScoreResult(&task.Result{Level: task.Level1})
	assert.Zero(t, s.HitRate)
	assert.Zero(t, s.FalseAlarmRate)
	assert.Zero(t, s.MeanReactionTime)
}

func TestMeanSD(t *testing.T) {
	mean, sd := meanSD([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	assert.InDelta(t, 5, mean, 1e-9)
	assert.InDelta(t, 2, sd, 1e-9)

	mean, sd = meanSD(nil)
	assert.Zero(t, mean)
	assert.Zero(t, sd)
}

func TestJSONReporter(t *testing.T) {
	var buf bytes.Buffer
	r := NewJSONReporter(&buf, false)

	rec := Record{Result: sampleResult(), Rating: intPtr(5)}
	require.NoError(t, r.Report(context.Background(), rec))
	require.NoError(t, r.Report(context.Background(), rec))

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &raw))
	assert.Contains(t, raw, "result")
	assert.EqualValues(t, 5, raw["rating"])
}

func TestJSONReporter_Pretty(t *testing.T) {
	r := NewJSONReporter(&bytes.Buffer{}, true)
	data, err := r.Encode(Record{Result: sampleResult()})
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  ")
}

func TestJSONReporter_RejectsEmptyRecord(t *testing.T) {
	var buf bytes.Buffer
	r := NewJSONReporter(&buf, false)
	assert.Error(t, r.Report(context.Background(), Record{}))
	assert.Zero(t, buf.Len())
}
