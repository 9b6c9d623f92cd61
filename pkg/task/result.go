package task

import (
	"time"

	"digital.vasic.nback/pkg/motion"
)

// TrialState records one presented digit. It is frozen once the
// trial's response window closes.
type TrialState struct {
	// Index is the position in the sequence.
	Index int `json:"index"`

	// Digit is the digit shown.
	Digit int `json:"digit"`

	// DisplayedAt is when the digit became visible.
	DisplayedAt time.Time `json:"displayed_at"`

	// Responded is true if a response was accepted.
	Responded bool `json:"responded"`

	// IsMatch is the ground truth for this position.
	IsMatch bool `json:"is_match"`

	// ReactionTime is set only when a response was accepted.
	ReactionTime *time.Duration `json:"reaction_time,omitempty"`
}

// ReactionTimeMs returns the reaction time in milliseconds and
// whether one was recorded.
func (t TrialState) ReactionTimeMs() (int64, bool) {
	if t.ReactionTime == nil {
		return 0, false
	}
	return t.ReactionTime.Milliseconds(), true
}

// Result captures the outcome of a finished session.
type Result struct {
	// SessionID identifies the session.
	SessionID string `json:"session_id"`

	// Level is the n-back distance.
	Level Level `json:"level"`

	// MatchCount is the number of correctly detected matches.
	MatchCount int `json:"match_count"`

	// FalseAlarms counts responses on non-matching positions.
	FalseAlarms int `json:"false_alarms"`

	// Responses is the number of accepted responses.
	Responses int `json:"responses"`

	// TotalRequiredMatches is the fixed accuracy denominator.
	TotalRequiredMatches int `json:"total_required_matches"`

	// AccuracyPercent is MatchCount over TotalRequiredMatches,
	// clamped to [0,100].
	AccuracyPercent float64 `json:"accuracy_percent"`

	// ReactionTimes lists accepted reaction times in trial order.
	ReactionTimes []time.Duration `json:"reaction_times"`

	// Trials holds every completed trial.
	Trials []TrialState `json:"trials"`

	// SequenceLength is the number of digits presented.
	SequenceLength int `json:"sequence_length"`

	// StartedAt and EndedAt bound the session window.
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`

	// Duration is EndedAt minus StartedAt.
	Duration time.Duration `json:"duration"`

	// Motion holds the accelerometer samples of the window, when
	// a recorder was attached.
	Motion []motion.Sample `json:"motion,omitempty"`
}

// Accuracy returns matchCount/required as a percentage clamped to
// [0,100]. A non-positive denominator yields 0.
func Accuracy(matchCount, required int) float64 {
	if required <= 0 || matchCount <= 0 {
		return 0
	}
	acc := float64(matchCount) / float64(required) * 100
	if acc > 100 {
		return 100
	}
	return acc
}

// MissedMatches returns the number of required matches that were
// not detected.
func (r *Result) MissedMatches() int {
	missed := r.TotalRequiredMatches - r.MatchCount
	if missed < 0 {
		return 0
	}
	return missed
}

// ReactionTimesMs returns the accepted reaction times in
// milliseconds.
func (r *Result) ReactionTimesMs() []int64 {
	out := make([]int64, len(r.ReactionTimes))
	for i, rt := range r.ReactionTimes {
		out[i] = rt.Milliseconds()
	}
	return out
}
