package report

import (
	"math"
	"time"

	"digital.vasic.nback/pkg/task"
)

// Score holds signal-detection measures of a session.
type Score struct {
	Level             task.Level `json:"level"`
	Targets           int        `json:"targets"`
	NonTargets        int        `json:"non_targets"`
	Hits              int        `json:"hits"`
	Misses            int        `json:"misses"`
	FalseAlarms       int        `json:"false_alarms"`
	CorrectRejections int        `json:"correct_rejections"`

	// HitRate is hits over presented targets.
	HitRate float64 `json:"hit_rate"`

	// FalseAlarmRate is false alarms over presented non-targets.
	FalseAlarmRate float64 `json:"false_alarm_rate"`

	// AccuracyPercent is the session's fixed-denominator accuracy.
	AccuracyPercent float64 `json:"accuracy_percent"`

	// MeanReactionTime and ReactionTimeSD cover hits only.
	MeanReactionTime time.Duration `json:"mean_reaction_time"`
	ReactionTimeSD   time.Duration `json:"reaction_time_sd"`
}

// ScoreResult computes a Score from the trials of r.
func ScoreResult(r *task.Result) Score {
	s := Score{
		Level:           r.Level,
		AccuracyPercent: r.AccuracyPercent,
	}

	var hitRTs []float64
	for _, t := range r.Trials {
		switch {
		case t.IsMatch && t.Responded:
			s.Targets++
			s.Hits++
			if t.ReactionTime != nil {
				hitRTs = append(hitRTs, float64(*t.ReactionTime))
			}
		case t.IsMatch:
			s.Targets++
			s.Misses++
		case t.Responded:
			s.NonTargets++
			s.FalseAlarms++
		default:
			s.NonTargets++
			s.CorrectRejections++
		}
	}

	if s.Targets > 0 {
		s.HitRate = float64(s.Hits) / float64(s.Targets)
	}
	if s.NonTargets > 0 {
		s.FalseAlarmRate = float64(s.FalseAlarms) / float64(s.NonTargets)
	}

	mean, sd := meanSD(hitRTs)
	s.MeanReactionTime = time.Duration(mean)
	s.ReactionTimeSD = time.Duration(sd)
	return s
}

// meanSD returns the mean and population standard deviation.
func meanSD(xs []float64) (float64, float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))
	if len(xs) == 1 {
		return mean, 0
	}
	var sq float64
	for _, x := range xs {
		d := x - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(len(xs)))
}
