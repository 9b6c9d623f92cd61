package monitor

import (
	"sort"
	"sync"
	"time"

	"digital.vasic.nback/pkg/task"
)

// Level status values.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusFinished  = "finished"
	StatusCancelled = "cancelled"
)

// DashboardData keeps a live per-level view of a run.
type DashboardData struct {
	mu        sync.RWMutex
	runID     string
	startTime time.Time
	status    string
	levels    map[task.Level]LevelState
	order     []task.Level
}

// LevelState is the dashboard row of one level.
type LevelState struct {
	Level           task.Level    `json:"level"`
	Status          string        `json:"status"`
	SessionID       string        `json:"session_id,omitempty"`
	Trial           int           `json:"trial"`
	Total           int           `json:"total"`
	Responses       int           `json:"responses"`
	MatchCount      int           `json:"match_count"`
	FalseAlarms     int           `json:"false_alarms"`
	AccuracyPercent float64       `json:"accuracy_percent"`
	StartTime       *time.Time    `json:"start_time,omitempty"`
	EndTime         *time.Time    `json:"end_time,omitempty"`
	Duration        time.Duration `json:"duration,omitempty"`
}

// DashboardSummary holds aggregate stats for the dashboard.
type DashboardSummary struct {
	Levels       int     `json:"levels"`
	Finished     int     `json:"finished"`
	Cancelled    int     `json:"cancelled"`
	Running      int     `json:"running"`
	Pending      int     `json:"pending"`
	MeanAccuracy float64 `json:"mean_accuracy"`
	Elapsed      string  `json:"elapsed"`
}

// DashboardSnapshot is an immutable copy of DashboardData.
type DashboardSnapshot struct {
	RunID     string           `json:"run_id"`
	StartTime time.Time        `json:"start_time"`
	Status    string           `json:"status"`
	Levels    []LevelState     `json:"levels"`
	Summary   DashboardSummary `json:"summary"`
}

// NewDashboardData creates a dashboard listing levels as pending.
func NewDashboardData(runID string, levels ...task.Level) *DashboardData {
	d := &DashboardData{
		runID:     runID,
		startTime: time.Now(),
		status:    StatusRunning,
		levels:    make(map[task.Level]LevelState),
	}
	for _, l := range levels {
		d.ensure(l)
	}
	return d
}

func (d *DashboardData) ensure(level task.Level) LevelState {
	state, ok := d.levels[level]
	if !ok {
		state = LevelState{Level: level, Status: StatusPending}
		d.levels[level] = state
		d.order = append(d.order, level)
	}
	return state
}

// UpdateFromEvent updates the level the event belongs to.
func (d *DashboardData) UpdateFromEvent(event task.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()

	state := d.ensure(event.Level)
	if state.SessionID != event.SessionID {
		if event.Type != task.EventSessionStarted {
			// Stale session, e.g. a late event after a restart.
			if state.SessionID != "" {
				return
			}
		}
		state = LevelState{Level: event.Level, SessionID: event.SessionID}
	}

	ts := event.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	state.Trial = event.Trial
	state.Total = event.Total

	switch event.Type {
	case task.EventSessionStarted:
		state.Status = StatusRunning
		state.StartTime = &ts
	case task.EventResponseAccepted:
		state.Responses++
		if fb := event.Display.Feedback; fb != nil && fb.IsCorrect {
			state.MatchCount++
		} else {
			state.FalseAlarms++
		}
	case task.EventSessionFinished:
		state.Status = StatusFinished
		state.EndTime = &ts
		if r := event.Result; r != nil {
			state.MatchCount = r.MatchCount
			state.FalseAlarms = r.FalseAlarms
			state.Responses = r.Responses
			state.AccuracyPercent = r.AccuracyPercent
			state.Duration = r.Duration
		}
	case task.EventSessionCancelled:
		state.Status = StatusCancelled
		state.EndTime = &ts
	}
	d.levels[event.Level] = state
}

// SetStatus sets the overall run status.
func (d *DashboardData) SetStatus(status string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.status = status
}

// Reset marks every level pending again.
func (d *DashboardData) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for l := range d.levels {
		d.levels[l] = LevelState{Level: l, Status: StatusPending}
	}
	d.status = StatusRunning
	d.startTime = time.Now()
}

// Snapshot returns a copy of the current dashboard state.
func (d *DashboardData) Snapshot() DashboardSnapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()

	snap := DashboardSnapshot{
		RunID:     d.runID,
		StartTime: d.startTime,
		Status:    d.status,
		Levels:    make([]LevelState, 0, len(d.order)),
	}
	var accSum float64
	for _, l := range d.order {
		st := d.levels[l]
		snap.Levels = append(snap.Levels, st)
		switch st.Status {
		case StatusFinished:
			snap.Summary.Finished++
			accSum += st.AccuracyPercent
		case StatusCancelled:
			snap.Summary.Cancelled++
		case StatusRunning:
			snap.Summary.Running++
		default:
			snap.Summary.Pending++
		}
	}
	snap.Summary.Levels = len(snap.Levels)
	if snap.Summary.Finished > 0 {
		snap.Summary.MeanAccuracy = accSum / float64(snap.Summary.Finished)
	}
	snap.Summary.Elapsed = time.Since(d.startTime).Round(time.Millisecond).String()
	return snap
}

// BuildDashboardData replays the events of collector into a new
// dashboard. Levels appear in ascending order.
func BuildDashboardData(collector *EventCollector) *DashboardData {
	data := NewDashboardData("snapshot")
	events := collector.Events()
	seen := map[task.Level]bool{}
	var levels []task.Level
	for _, ev := range events {
		if !seen[ev.Level] {
			seen[ev.Level] = true
			levels = append(levels, ev.Level)
		}
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i] < levels[j] })
	for _, l := range levels {
		data.ensure(l)
	}
	for _, ev := range events {
		data.UpdateFromEvent(ev)
	}
	return data
}
