package events

const (
	// KindTurnStarted identifies turn submission.
	KindTurnStarted Kind = "turn_state.started"
	// KindTurnCompleted identifies successful turn completion.
	KindTurnCompleted Kind = "turn_state.completed"
	// KindTurnFailed identifies turn failure.
	KindTurnFailed Kind = "turn_state.failed"
	// KindTurnCancelled identifies turn cancellation.
	KindTurnCancelled Kind = "turn_state.cancelled"
)

// TurnStarted marks submission of a turn.
type TurnStarted struct {
	Base
	ID         string
	Transcript string
}

// NewTurnStarted creates a turn started event.
func NewTurnStarted(id, transcript string) TurnStarted {
	return TurnStarted{Base: NewBase(KindTurnStarted), ID: id, Transcript: transcript}
}

// TurnCompleted marks successful completion of a turn.
type TurnCompleted struct {
	Base
	ID string
}

// NewTurnCompleted creates a turn completed event.
func NewTurnCompleted(id string) TurnCompleted {
	return TurnCompleted{Base: NewBase(KindTurnCompleted), ID: id}
}

// TurnFailed marks a turn whose exchange failed.
type TurnFailed struct {
	Base
	ID    string
	Error string
}

// NewTurnFailed creates a turn failed event.
func NewTurnFailed(id, err string) TurnFailed {
	return TurnFailed{Base: NewBase(KindTurnFailed), ID: id, Error: err}
}

// TurnCancelled marks cancellation of the current turn.
type TurnCancelled struct {
	Base
	ID string
}

// NewTurnCancelled creates a turn cancelled event.
func NewTurnCancelled(id string) TurnCancelled {
	return TurnCancelled{Base: NewBase(KindTurnCancelled), ID: id}
}
