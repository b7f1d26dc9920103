package events

const (
	// KindUserTranscriptInterimUpdated identifies mutable interim full transcript updates.
	KindUserTranscriptInterimUpdated Kind = "user_input.transcript_interim_updated"
	// KindUserTranscriptFinal identifies the final transcript for the utterance.
	KindUserTranscriptFinal Kind = "user_input.transcript_final"
	// KindUserTextSubmitted identifies typed user input.
	KindUserTextSubmitted Kind = "user_input.text_submitted"
	// KindRecognitionFailed identifies recognition errors surfaced to the user.
	KindRecognitionFailed Kind = "user_input.recognition_failed"
)

// UserTranscriptInterimUpdated carries the mutable running transcript.
type UserTranscriptInterimUpdated struct {
	Base
	Transcript string
}

// NewUserTranscriptInterimUpdated creates a user interim transcript updated event.
func NewUserTranscriptInterimUpdated(transcript string) UserTranscriptInterimUpdated {
	return UserTranscriptInterimUpdated{Base: NewBase(KindUserTranscriptInterimUpdated), Transcript: transcript}
}

// UserTranscriptFinal carries the final transcript for the utterance.
type UserTranscriptFinal struct {
	Base
	Transcript string
}

// NewUserTranscriptFinal creates a user final transcript event.
func NewUserTranscriptFinal(transcript string) UserTranscriptFinal {
	return UserTranscriptFinal{Base: NewBase(KindUserTranscriptFinal), Transcript: transcript}
}

// UserTextSubmitted carries typed user input.
type UserTextSubmitted struct {
	Base
	Text string
}

// NewUserTextSubmitted creates a user text submitted event.
func NewUserTextSubmitted(text string) UserTextSubmitted {
	return UserTextSubmitted{Base: NewBase(KindUserTextSubmitted), Text: text}
}

// RecognitionFailed carries a recognition error code and its user facing
// message.
type RecognitionFailed struct {
	Base
	Code    string
	Message string
}

// NewRecognitionFailed creates a recognition failed event.
func NewRecognitionFailed(code, message string) RecognitionFailed {
	return RecognitionFailed{Base: NewBase(KindRecognitionFailed), Code: code, Message: message}
}
