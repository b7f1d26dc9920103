package speechtotext

import "fmt"

// Recognition is a single running utterance recognition.
type Recognition interface {
	// Stop ends the recognition gracefully, the transcript recognized so far
	// is delivered through the end callback.
	Stop() error
	// Abort ends the recognition immediately. The error callback receives
	// [ErrorAborted] and the end callback an empty transcript.
	Abort() error
}

type ErrorCode string

const (
	ErrorNoSpeech          ErrorCode = "no-speech"
	ErrorAborted           ErrorCode = "aborted"
	ErrorNotAllowed        ErrorCode = "not-allowed"
	ErrorAudioCapture      ErrorCode = "audio-capture"
	ErrorNetwork           ErrorCode = "network"
	ErrorServiceNotAllowed ErrorCode = "service-not-allowed"
)

type RecognitionError struct {
	Code ErrorCode
	Err  error
}

func NewRecognitionError(code ErrorCode, err error) *RecognitionError {
	return &RecognitionError{Code: code, Err: err}
}

func (e *RecognitionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("recognition error: %s", e.Code)
	}
	return fmt.Sprintf("recognition error: %s: %v", e.Code, e.Err)
}

func (e *RecognitionError) Unwrap() error { return e.Err }

// Message returns a short user facing description of the error.
func (e *RecognitionError) Message() string {
	switch e.Code {
	case ErrorNotAllowed:
		return "Microphone access denied. Please allow microphone access."
	case ErrorNetwork:
		return "Network error. Please check your internet connection and try again."
	case ErrorAudioCapture:
		return "No microphone found. Please connect a microphone."
	case ErrorServiceNotAllowed:
		return "Speech service not available."
	default:
		return fmt.Sprintf("Speech error: %s", e.Code)
	}
}
