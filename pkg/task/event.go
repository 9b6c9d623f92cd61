package task

import "time"

// EventType identifies a session event.
type EventType string

const (
	EventSessionStarted       EventType = "session_started"
	EventStimulusShown        EventType = "stimulus_shown"
	EventStimulusHidden       EventType = "stimulus_hidden"
	EventResponseAccepted     EventType = "response_accepted"
	EventResponseWindowClosed EventType = "response_window_closed"
	EventTrialAdvanced        EventType = "trial_advanced"
	EventSessionFinished      EventType = "session_finished"
	EventSessionCancelled     EventType = "session_cancelled"
)

// Feedback tells the participant how a response was scored.
type Feedback struct {
	IsCorrect bool   `json:"is_correct"`
	Message   string `json:"message"`
}

// Display is what the display collaborator should render after
// an event.
type Display struct {
	CurrentDigit *int      `json:"current_digit,omitempty"`
	ResponseOpen bool      `json:"response_open"`
	Level        Level     `json:"level"`
	Feedback     *Feedback `json:"feedback,omitempty"`
}

// Event is emitted on every session phase transition.
type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
	Level     Level     `json:"level"`
	State     State     `json:"state"`

	// Trial is the index of the trial the event belongs to.
	Trial int `json:"trial"`

	// Total is the sequence length.
	Total int `json:"total"`

	Display Display `json:"display"`

	// Completed is the frozen trial record, set on
	// response_window_closed.
	Completed *TrialState `json:"completed,omitempty"`

	// ReactionTime is set on response_accepted.
	ReactionTime time.Duration `json:"reaction_time,omitempty"`

	// Result is set on session_finished.
	Result *Result `json:"result,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

const (
	feedbackCorrect   = "Correct!"
	feedbackIncorrect = "Incorrect"
)

func newFeedback(correct bool) *Feedback {
	if correct {
		return &Feedback{IsCorrect: true, Message: feedbackCorrect}
	}
	return &Feedback{IsCorrect: false, Message: feedbackIncorrect}
}
