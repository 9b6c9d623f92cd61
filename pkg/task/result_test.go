package task

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAccuracy(t *testing.T) {
	tests := []struct {
		name     string
		match    int
		required int
		want     float64
	}{
		{"all found", 15, 15, 100},
		{"none found", 0, 15, 0},
		{"partial", 3, 15, 20},
		{"over required clamps", 20, 15, 100},
		{"zero denominator", 5, 0, 0},
		{"negative count", -1, 15, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, Accuracy(tc.match, tc.required), 1e-9)
		})
	}
}

func TestResult_MissedMatches(t *testing.T) {
	r := &Result{MatchCount: 10, TotalRequiredMatches: 15}
	assert.Equal(t, 5, r.MissedMatches())

	r.MatchCount = 18
	assert.Equal(t, 0, r.MissedMatches())
}

func TestTrialState_ReactionTimeMs(t *testing.T) {
	var tr TrialState
	_, ok := tr.ReactionTimeMs()
	assert.False(t, ok)

	rt := 420 * time.Millisecond
	tr.ReactionTime = &rt
	ms, ok := tr.ReactionTimeMs()
	assert.True(t, ok)
	assert.Equal(t, int64(420), ms)
}

func TestLevel(t *testing.T) {
	assert.True(t, Level1.Valid())
	assert.True(t, Level3.Valid())
	assert.False(t, Level(0).Valid())
	assert.False(t, Level(4).Valid())
	assert.Equal(t, "2-back", Level2.String())
}

func TestState(t *testing.T) {
	assert.True(t, StateFinished.IsFinal())
	assert.True(t, StateCancelled.IsFinal())
	assert.False(t, StateTrialHidden.IsFinal())
	assert.True(t, StateTrialDisplay.InTrial())
	assert.True(t, StateTrialHidden.InTrial())
	assert.False(t, StateAwaitingStart.InTrial())
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.HiddenDuration = -time.Second
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.MaxRun = 1
	assert.Error(t, cfg.Validate())
}
