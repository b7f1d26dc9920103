package events

// KindStateChanged identifies session state transitions.
const KindStateChanged Kind = "session.state_changed"

// StateChanged carries a session state transition.
type StateChanged struct {
	Base
	From string
	To   string
}

// NewStateChanged creates a state changed event.
func NewStateChanged(from, to string) StateChanged {
	return StateChanged{Base: NewBase(KindStateChanged), From: from, To: to}
}
