package events

const (
	// KindAssistantSpeechStarted identifies the start of a spoken sentence.
	KindAssistantSpeechStarted Kind = "assistant_speech.started"
	// KindAssistantSpeechEnded identifies the end of a spoken sentence.
	KindAssistantSpeechEnded Kind = "assistant_speech.ended"
)

// AssistantSpeechStarted carries the sentence that started playing.
type AssistantSpeechStarted struct {
	Base
	Text string
}

// NewAssistantSpeechStarted creates an assistant speech started event.
func NewAssistantSpeechStarted(text string) AssistantSpeechStarted {
	return AssistantSpeechStarted{Base: NewBase(KindAssistantSpeechStarted), Text: text}
}

// AssistantSpeechEnded carries the sentence that stopped playing. Err is set
// when playback failed or was interrupted.
type AssistantSpeechEnded struct {
	Base
	Text string
	Err  error
}

// NewAssistantSpeechEnded creates an assistant speech ended event.
func NewAssistantSpeechEnded(text string, err error) AssistantSpeechEnded {
	return AssistantSpeechEnded{Base: NewBase(KindAssistantSpeechEnded), Text: text, Err: err}
}
