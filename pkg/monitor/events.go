package monitor

import (
	"digital.vasic.nback/pkg/orchestrator"
	"digital.vasic.nback/pkg/task"
)

// CommandType names a display command.
type CommandType string

// Commands accepted from display clients.
const (
	CommandStart   CommandType = "start"
	CommandRespond CommandType = "respond"
	CommandCancel  CommandType = "cancel"
	CommandAdvance CommandType = "advance"
	CommandRestart CommandType = "restart"
	CommandExit    CommandType = "exit"

	// CommandMotion carries one accelerometer sample. It is
	// recorded only while a session's motion window is open.
	CommandMotion CommandType = "motion"
)

// Command is a JSON frame received from a display client.
type Command struct {
	Type CommandType `json:"type"`

	// Rating is the difficulty rating sent with advance.
	Rating *int `json:"rating,omitempty"`

	// Motion is the sample sent with a motion command.
	Motion *MotionSample `json:"motion,omitempty"`
}

// MotionSample is one accelerometer reading from a client device.
type MotionSample struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// MessageKind names the frames sent to display clients.
type MessageKind string

const (
	MessageEvent MessageKind = "event"
	MessageState MessageKind = "state"
	MessageError MessageKind = "error"
)

// Message is a JSON frame sent to display clients.
type Message struct {
	Kind  MessageKind `json:"kind"`
	Event *task.Event `json:"event,omitempty"`
	State *RunState   `json:"state,omitempty"`
	Error string      `json:"error,omitempty"`
}

// RunState describes where the run stands.
type RunState struct {
	State       orchestrator.State `json:"state"`
	Order       orchestrator.Order `json:"order"`
	Index       int                `json:"index"`
	Level       task.Level         `json:"level"`
	Participant string             `json:"participant,omitempty"`
}
