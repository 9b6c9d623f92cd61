package monitor

import (
	"sync"
	"time"

	"digital.vasic.nback/pkg/task"
)

// DefaultEventLimit bounds the events kept by an EventCollector.
const DefaultEventLimit = 4096

// EventCollector captures session events and aggregate counts.
type EventCollector struct {
	mu       sync.RWMutex
	events   []task.Event
	limit    int
	handlers []func(task.Event)
	stats    CollectorStats
}

// CollectorStats holds aggregate statistics.
type CollectorStats struct {
	Sessions   int           `json:"sessions"`
	Finished   int           `json:"finished"`
	Cancelled  int           `json:"cancelled"`
	Trials     int           `json:"trials"`
	Responses  int           `json:"responses"`
	Correct    int           `json:"correct"`
	Incorrect  int           `json:"incorrect"`
	StartTime  time.Time     `json:"start_time"`
	Duration   time.Duration `json:"duration"`
	LastUpdate time.Time     `json:"last_update"`
}

// NewEventCollector creates a collector keeping at most limit
// events; limit <= 0 uses DefaultEventLimit.
func NewEventCollector(limit int) *EventCollector {
	if limit <= 0 {
		limit = DefaultEventLimit
	}
	return &EventCollector{
		events: make([]task.Event, 0, 64),
		limit:  limit,
		stats:  CollectorStats{StartTime: time.Now()},
	}
}

// OnEvent registers a handler to be called for each event.
func (c *EventCollector) OnEvent(handler func(task.Event)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = append(c.handlers, handler)
}

// Observer returns a task.Observer feeding the collector.
func (c *EventCollector) Observer() task.Observer {
	return c.Emit
}

// Emit records an event and notifies all handlers.
func (c *EventCollector) Emit(event task.Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	c.mu.Lock()
	if len(c.events) >= c.limit {
		c.events = append(c.events[:0], c.events[len(c.events)-c.limit+1:]...)
	}
	c.events = append(c.events, event)
	switch event.Type {
	case task.EventSessionStarted:
		c.stats.Sessions++
	case task.EventSessionFinished:
		c.stats.Finished++
	case task.EventSessionCancelled:
		c.stats.Cancelled++
	case task.EventResponseWindowClosed:
		c.stats.Trials++
	case task.EventResponseAccepted:
		c.stats.Responses++
		if fb := event.Display.Feedback; fb != nil && fb.IsCorrect {
			c.stats.Correct++
		} else {
			c.stats.Incorrect++
		}
	}
	c.stats.LastUpdate = event.Timestamp
	handlers := make([]func(task.Event), len(c.handlers))
	copy(handlers, c.handlers)
	c.mu.Unlock()

	for _, h := range handlers {
		h(event)
	}
}

// Events returns a copy of the collected events.
func (c *EventCollector) Events() []task.Event {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result := make([]task.Event, len(c.events))
	copy(result, c.events)
	return result
}

// Stats returns the current aggregate statistics.
func (c *EventCollector) Stats() CollectorStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := c.stats
	s.Duration = time.Since(s.StartTime)
	return s
}

// Reset clears all collected events and statistics.
func (c *EventCollector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = c.events[:0]
	c.stats = CollectorStats{StartTime: time.Now()}
}
