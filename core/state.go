package orchestration

// SessionState is the single state value of a conversation session.
type SessionState string

const (
	// StateIdle means no conversation is active.
	StateIdle SessionState = "idle"
	// StateListening means recognition is running or can be retried, and no
	// turn is in flight.
	StateListening SessionState = "listening"
	// StateProcessing means a turn was submitted and no response has been
	// queued for speaking yet.
	StateProcessing SessionState = "processing"
	// StateSpeaking means at least one response fragment was queued.
	StateSpeaking SessionState = "speaking"
)

func (s SessionState) String() string { return string(s) }

// Mode selects how the user talks to the assistant.
type Mode string

const (
	// ModeVoice listens continuously and speaks responses.
	ModeVoice Mode = "voice"
	// ModeText takes typed input through SubmitText and only displays
	// responses.
	ModeText Mode = "text"
)
