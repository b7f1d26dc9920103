package orchestration

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/koscakluka/ema-voice/core/speechtotext"
)

const (
	emptyTranscriptRestartDelay = 200 * time.Millisecond
	noSpeechRestartDelay        = 300 * time.Millisecond
)

type recognitionCallbacks struct {
	onInterim func(transcript string)
	onFinal   func(transcript string)
	// onError receives errors that need the user's attention. The session
	// does not restart after them.
	onError func(err *speechtotext.RecognitionError)
	// onRestart is called from a timer when the session wants to listen
	// again. The receiver decides whether that is still wanted.
	onRestart func()
}

// recognitionSession keeps at most one recognition running. Every started
// recognition belongs to a generation; callbacks of older generations are
// ignored.
type recognitionSession struct {
	recognizer SpeechRecognizer
	callbacks  recognitionCallbacks

	mu           sync.Mutex
	generation   uint64
	running      bool
	current      speechtotext.Recognition
	lastErr      *speechtotext.RecognitionError
	restartTimer *time.Timer
}

func newRecognitionSession() *recognitionSession {
	return &recognitionSession{
		callbacks: recognitionCallbacks{
			onInterim: func(string) {},
			onFinal:   func(string) {},
			onError:   func(*speechtotext.RecognitionError) {},
			onRestart: func() {},
		},
	}
}

func (s *recognitionSession) isRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// start begins a recognition unless one is already running. Construction
// errors that carry a recognition error code are reported, anything else
// is only logged.
func (s *recognitionSession) start(ctx context.Context, language string) {
	s.mu.Lock()
	if s.recognizer == nil || s.running {
		s.mu.Unlock()
		return
	}
	s.stopTimerLocked()
	s.generation++
	generation := s.generation
	s.running = true
	s.lastErr = nil
	s.mu.Unlock()

	recognition, err := s.recognizer.Recognize(ctx,
		speechtotext.WithLanguage(language),
		speechtotext.WithInterimTranscriptionCallback(func(transcript string) {
			if s.isCurrent(generation) {
				s.callbacks.onInterim(transcript)
			}
		}),
		speechtotext.WithErrorCallback(func(err *speechtotext.RecognitionError) {
			s.recordError(generation, err)
		}),
		speechtotext.WithEndCallback(func(transcript string) {
			s.handleEnd(generation, transcript)
		}),
	)
	if err != nil {
		s.mu.Lock()
		current := s.generation == generation
		if current {
			s.running = false
		}
		s.mu.Unlock()

		var recognitionErr *speechtotext.RecognitionError
		if current && errors.As(err, &recognitionErr) && recognitionErr.Code != speechtotext.ErrorAborted {
			s.callbacks.onError(recognitionErr)
			return
		}
		logger.Warn("failed to start speech recognition", "error", err)
		return
	}

	s.mu.Lock()
	if s.generation != generation {
		s.mu.Unlock()
		if err := recognition.Abort(); err != nil {
			logger.Warn("failed to abort superseded recognition", "error", err)
		}
		return
	}
	if s.running {
		s.current = recognition
	}
	s.mu.Unlock()
}

// stop aborts the running recognition and cancels pending restarts. Late
// callbacks of the aborted recognition are ignored.
func (s *recognitionSession) stop() {
	s.mu.Lock()
	s.generation++
	s.running = false
	s.lastErr = nil
	s.stopTimerLocked()
	recognition := s.current
	s.current = nil
	s.mu.Unlock()

	if recognition != nil {
		if err := recognition.Abort(); err != nil {
			logger.Warn("failed to abort recognition", "error", err)
		}
	}
}

func (s *recognitionSession) isCurrent(generation uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation == generation && s.running
}

func (s *recognitionSession) recordError(generation uint64, err *speechtotext.RecognitionError) {
	if err == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation == generation && s.lastErr == nil {
		s.lastErr = err
	}
}

func (s *recognitionSession) handleEnd(generation uint64, transcript string) {
	s.mu.Lock()
	if s.generation != generation || !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.current = nil
	err := s.lastErr
	s.lastErr = nil
	s.mu.Unlock()

	if err != nil {
		switch err.Code {
		case speechtotext.ErrorNoSpeech:
			s.scheduleRestart(generation, noSpeechRestartDelay)
		case speechtotext.ErrorAborted:
		default:
			s.callbacks.onError(err)
		}
		return
	}

	if transcript = strings.TrimSpace(transcript); transcript != "" {
		s.callbacks.onFinal(transcript)
		return
	}
	s.scheduleRestart(generation, emptyTranscriptRestartDelay)
}

// scheduleRestart never starts a recognition from within the ending
// recognition's callback, the restart always runs on a timer.
func (s *recognitionSession) scheduleRestart(generation uint64, delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != generation {
		return
	}
	s.stopTimerLocked()
	s.restartTimer = time.AfterFunc(delay, func() {
		s.mu.Lock()
		stale := s.generation != generation || s.running
		s.mu.Unlock()
		if !stale {
			s.callbacks.onRestart()
		}
	})
}

func (s *recognitionSession) stopTimerLocked() {
	if s.restartTimer != nil {
		s.restartTimer.Stop()
		s.restartTimer = nil
	}
}
