package task

// State is a session lifecycle state.
type State string

// Session states.
const (
	StateAwaitingStart State = "awaiting_start"
	StateTrialDisplay  State = "trial_display"
	StateTrialHidden   State = "trial_hidden"
	StateFinished      State = "finished"
	StateCancelled     State = "cancelled"
)

// IsFinal returns true if the state is terminal.
func (s State) IsFinal() bool {
	switch s {
	case StateFinished, StateCancelled:
		return true
	}
	return false
}

// InTrial returns true while a trial is being presented.
func (s State) InTrial() bool {
	return s == StateTrialDisplay || s == StateTrialHidden
}
