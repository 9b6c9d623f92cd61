package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemoryMetrics_RecordSession(t *testing.T) {
	m := NewMemoryMetrics()
	m.RecordSession(1, StatusFinished, 2*time.Second)
	m.RecordSession(1, StatusFinished, 4*time.Second)
	m.RecordSession(2, StatusCancelled, time.Second)

	assert.Equal(t, 2, m.SessionCount(1, StatusFinished))
	assert.Equal(t, 1, m.SessionCount(2, StatusCancelled))
	assert.Equal(t, 0, m.SessionCount(3, StatusFinished))
	assert.Equal(t, 3*time.Second, m.AverageDuration(1))
	assert.Equal(t, time.Duration(0), m.AverageDuration(2))
}

func TestMemoryMetrics_RecordResponse(t *testing.T) {
	m := NewMemoryMetrics()
	m.RecordResponse(2, true, 300*time.Millisecond)
	m.RecordResponse(2, false, 500*time.Millisecond)
	m.RecordResponse(2, true, 400*time.Millisecond)

	assert.Equal(t, 2, m.ResponseCount(2, true))
	assert.Equal(t, 1, m.ResponseCount(2, false))
	assert.Equal(t, 400*time.Millisecond, m.MeanReactionTime(2))
	assert.Equal(t, time.Duration(0), m.MeanReactionTime(1))
}

func TestMemoryMetrics_RunTotalAndActive(t *testing.T) {
	m := NewMemoryMetrics()
	m.IncrementRunTotal()
	m.IncrementRunTotal()
	m.SetActiveLevel(3)

	assert.Equal(t, 2, m.RunTotal())
	assert.Equal(t, 3, m.ActiveLevel())
}

func TestMemoryMetrics_Concurrent(t *testing.T) {
	m := NewMemoryMetrics()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				m.RecordResponse(1, true, time.Millisecond)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 500, m.ResponseCount(1, true))
}

func TestNoopMetrics(t *testing.T) {
	var m SessionMetrics = NoopMetrics{}
	// Should not panic
	m.RecordSession(1, StatusFinished, time.Second)
	m.RecordResponse(1, true, time.Millisecond)
	m.IncrementRunTotal()
	m.SetActiveLevel(0)
}

func TestMemoryMetrics_Snapshot(t *testing.T) {
	m := NewMemoryMetrics()
	m.IncrementRunTotal()
	m.SetActiveLevel(2)
	m.RecordSession(2, StatusFinished, 3*time.Second)
	m.RecordSession(3, StatusCancelled, 0)
	m.RecordResponse(2, true, 200*time.Millisecond)
	m.RecordResponse(2, false, 400*time.Millisecond)

	snap := m.Snapshot()
	assert.Equal(t, 1, snap.RunTotal)
	assert.Equal(t, 2, snap.ActiveLevel)
	assert.Len(t, snap.Levels, 3)

	l2 := snap.Levels[1]
	assert.Equal(t, 2, l2.Level)
	assert.Equal(t, 1, l2.Finished)
	assert.Equal(t, 1, l2.Correct)
	assert.Equal(t, 1, l2.Incorrect)
	assert.Equal(t, int64(300), l2.MeanReactionMs)
	assert.Equal(t, int64(3000), l2.AverageSessionMs)
	assert.Equal(t, 1, snap.Levels[2].Cancelled)
}
