package monitor

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"digital.vasic.nback/pkg/task"
)

func accepted(level task.Level, correct bool) task.Event {
	fb := &task.Feedback{IsCorrect: correct}
	return task.Event{
		Type:    task.EventResponseAccepted,
		Level:   level,
		Display: task.Display{Feedback: fb},
	}
}

func TestEventCollector_Emit(t *testing.T) {
	c := NewEventCollector(0)

	var received []task.Event
	var mu sync.Mutex
	c.OnEvent(func(e task.Event) {
		mu.Lock()
		received = append(received, e)
		mu.Unlock()
	})

	c.Emit(task.Event{Type: task.EventSessionStarted, SessionID: "s1"})

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 1)
	assert.Equal(t, task.EventSessionStarted, received[0].Type)
	assert.False(t, received[0].Timestamp.IsZero())
}

func TestEventCollector_Stats(t *testing.T) {
	c := NewEventCollector(0)
	obs := c.Observer()

	obs(task.Event{Type: task.EventSessionStarted})
	obs(task.Event{Type: task.EventStimulusShown})
	obs(accepted(1, true))
	obs(accepted(1, false))
	obs(task.Event{Type: task.EventResponseWindowClosed})
	obs(task.Event{Type: task.EventResponseWindowClosed})
	obs(task.Event{Type: task.EventSessionFinished})
	obs(task.Event{Type: task.EventSessionStarted})
	obs(task.Event{Type: task.EventSessionCancelled})

	s := c.Stats()
	assert.Equal(t, 2, s.Sessions)
	assert.Equal(t, 1, s.Finished)
	assert.Equal(t, 1, s.Cancelled)
	assert.Equal(t, 2, s.Trials)
	assert.Equal(t, 2, s.Responses)
	assert.Equal(t, 1, s.Correct)
	assert.Equal(t, 1, s.Incorrect)
	assert.False(t, s.LastUpdate.IsZero())
	assert.Len(t, c.Events(), 9)
}

func TestEventCollector_Limit(t *testing.T) {
	c := NewEventCollector(3)
	for i := 0; i < 5; i++ {
		c.Emit(task.Event{Type: task.EventStimulusShown, Trial: i})
	}
	events := c.Events()
	require.Len(t, events, 3)
	assert.Equal(t, 2, events[0].Trial)
	assert.Equal(t, 4, events[2].Trial)
}

func TestEventCollector_Reset(t *testing.T) {
	c := NewEventCollector(0)
	c.Emit(task.Event{Type: task.EventSessionStarted})
	c.Reset()

	assert.Empty(t, c.Events())
	assert.Zero(t, c.Stats().Sessions)
}

func TestEventCollector_Concurrent(t *testing.T) {
	c := NewEventCollector(0)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				c.Emit(accepted(2, true))
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 200, c.Stats().Correct)
}
