package task

import (
	"fmt"
	"time"

	"digital.vasic.nback/pkg/sequence"
)

// Default phase durations.
const (
	DefaultDisplayDuration = 500 * time.Millisecond
	DefaultHiddenDuration  = 1500 * time.Millisecond
)

// Config holds the timing and generation parameters of a session.
type Config struct {
	// RequiredMatches is the number of forced matches per
	// sequence and the fixed accuracy denominator.
	RequiredMatches int `json:"required_matches"`

	// MinRun and MaxRun bound the filler run before each match.
	MinRun int `json:"min_run"`
	MaxRun int `json:"max_run"`

	// DisplayDuration is how long each digit stays visible.
	DisplayDuration time.Duration `json:"display_duration"`

	// HiddenDuration is the blank interval after each digit.
	HiddenDuration time.Duration `json:"hidden_duration"`

	// FeedbackHold is an extra closed-window pause after every
	// trial. Zero disables it.
	FeedbackHold time.Duration `json:"feedback_hold"`
}

// DefaultConfig returns 15 matches, runs of 5 to 8, 500ms display
// and 1500ms hidden intervals.
func DefaultConfig() Config {
	return Config{
		RequiredMatches: sequence.DefaultRequiredMatches,
		MinRun:          sequence.DefaultMinRun,
		MaxRun:          sequence.DefaultMaxRun,
		DisplayDuration: DefaultDisplayDuration,
		HiddenDuration:  DefaultHiddenDuration,
	}
}

// Params returns the sequence generation parameters.
func (c Config) Params() sequence.Params {
	return sequence.Params{
		RequiredMatches: c.RequiredMatches,
		MinRun:          c.MinRun,
		MaxRun:          c.MaxRun,
	}
}

// Validate checks durations and generation bounds.
func (c Config) Validate() error {
	if err := c.Params().Validate(); err != nil {
		return err
	}
	if c.DisplayDuration <= 0 {
		return fmt.Errorf(
			"display duration must be positive, got %s",
			c.DisplayDuration,
		)
	}
	if c.HiddenDuration < 0 || c.FeedbackHold < 0 {
		return fmt.Errorf("durations must not be negative")
	}
	return nil
}
