package metrics

import (
	"fmt"
	"sync"
	"time"
)

// MemoryMetrics implements SessionMetrics with in-memory counters.
// It is safe for concurrent use; sessions record responses from
// the caller's goroutine and terminal states from their driver.
type MemoryMetrics struct {
	mu        sync.Mutex
	sessions  map[string]int
	durations map[int][]time.Duration
	responses map[string]int
	reaction  map[int][]time.Duration
	runTotal  int
	active    int
}

// NewMemoryMetrics creates a new MemoryMetrics instance.
func NewMemoryMetrics() *MemoryMetrics {
	return &MemoryMetrics{
		sessions:  make(map[string]int),
		durations: make(map[int][]time.Duration),
		responses: make(map[string]int),
		reaction:  make(map[int][]time.Duration),
	}
}

func levelKey(level int, label string) string {
	return fmt.Sprintf("%d:%s", level, label)
}

func (m *MemoryMetrics) RecordSession(level int, status string, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[levelKey(level, status)]++
	if status == StatusFinished {
		m.durations[level] = append(m.durations[level], duration)
	}
}

func (m *MemoryMetrics) RecordResponse(level int, correct bool, reactionTime time.Duration) {
	label := "incorrect"
	if correct {
		label = "correct"
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[levelKey(level, label)]++
	m.reaction[level] = append(m.reaction[level], reactionTime)
}

func (m *MemoryMetrics) IncrementRunTotal() {
	m.mu.Lock()
	m.runTotal++
	m.mu.Unlock()
}

func (m *MemoryMetrics) SetActiveLevel(level int) {
	m.mu.Lock()
	m.active = level
	m.mu.Unlock()
}

// SessionCount returns the count for a level+status combination.
func (m *MemoryMetrics) SessionCount(level int, status string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[levelKey(level, status)]
}

// ResponseCount returns the number of correct or incorrect
// responses recorded for level.
func (m *MemoryMetrics) ResponseCount(level int, correct bool) int {
	label := "incorrect"
	if correct {
		label = "correct"
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.responses[levelKey(level, label)]
}

// MeanReactionTime returns the mean reaction time recorded for
// level, or zero.
func (m *MemoryMetrics) MeanReactionTime(level int) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	rts := m.reaction[level]
	if len(rts) == 0 {
		return 0
	}
	var total time.Duration
	for _, rt := range rts {
		total += rt
	}
	return total / time.Duration(len(rts))
}

// AverageDuration returns the mean duration of finished sessions
// for level, or zero.
func (m *MemoryMetrics) AverageDuration(level int) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	ds := m.durations[level]
	if len(ds) == 0 {
		return 0
	}
	var total time.Duration
	for _, d := range ds {
		total += d
	}
	return total / time.Duration(len(ds))
}

// RunTotal returns the total number of runs.
func (m *MemoryMetrics) RunTotal() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runTotal
}

// ActiveLevel returns the current active level gauge.
func (m *MemoryMetrics) ActiveLevel() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// LevelSnapshot holds the counters of one level.
type LevelSnapshot struct {
	Level            int   `json:"level"`
	Finished         int   `json:"finished"`
	Cancelled        int   `json:"cancelled"`
	Correct          int   `json:"correct"`
	Incorrect        int   `json:"incorrect"`
	MeanReactionMs   int64 `json:"mean_reaction_ms"`
	AverageSessionMs int64 `json:"average_session_ms"`
}

// Snapshot is a point-in-time copy of all counters.
type Snapshot struct {
	RunTotal    int             `json:"run_total"`
	ActiveLevel int             `json:"active_level"`
	Levels      []LevelSnapshot `json:"levels"`
}

// Snapshot returns the counters for levels 1 to 3.
func (m *MemoryMetrics) Snapshot() Snapshot {
	snap := Snapshot{
		RunTotal:    m.RunTotal(),
		ActiveLevel: m.ActiveLevel(),
	}
	for level := 1; level <= 3; level++ {
		snap.Levels = append(snap.Levels, LevelSnapshot{
			Level:            level,
			Finished:         m.SessionCount(level, StatusFinished),
			Cancelled:        m.SessionCount(level, StatusCancelled),
			Correct:          m.ResponseCount(level, true),
			Incorrect:        m.ResponseCount(level, false),
			MeanReactionMs:   m.MeanReactionTime(level).Milliseconds(),
			AverageSessionMs: m.AverageDuration(level).Milliseconds(),
		})
	}
	return snap
}
