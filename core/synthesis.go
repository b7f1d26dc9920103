package orchestration

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/koscakluka/ema-voice/core/events"
	"github.com/koscakluka/ema-voice/core/texttospeech"
)

type speakParams struct {
	language string
	gender   texttospeech.Gender
}

type queuedFragment struct {
	ctx    context.Context
	text   string
	params speakParams
}

// synthesisQueue speaks fragments one at a time in the order they were
// enqueued. A single loop goroutine runs while there is something to say.
type synthesisQueue struct {
	synthesizer SpeechSynthesizer
	isActive    func() bool
	emit        eventEmitter

	mu          sync.Mutex
	queue       []queuedFragment
	running     bool
	idle        chan struct{}
	cancelSpeak context.CancelFunc

	voice         texttospeech.Voice
	voiceResolved bool
}

func newSynthesisQueue() *synthesisQueue {
	idle := make(chan struct{})
	close(idle)
	return &synthesisQueue{
		isActive: func() bool { return true },
		emit:     noopEventEmitter,
		idle:     idle,
	}
}

// enqueue adds a fragment and starts the loop when it is not running.
// Blank fragments and fragments for an inactive conversation are dropped,
// as are fragments whose ctx is done by the time they are reached.
func (q *synthesisQueue) enqueue(ctx context.Context, text string, params speakParams) bool {
	text = strings.TrimSpace(text)
	if text == "" || q.synthesizer == nil || !q.isActive() {
		return false
	}

	q.mu.Lock()
	q.queue = append(q.queue, queuedFragment{ctx: ctx, text: text, params: params})
	if q.running {
		q.mu.Unlock()
		return true
	}
	q.running = true
	q.idle = make(chan struct{})
	q.mu.Unlock()

	go q.run()
	return true
}

func (q *synthesisQueue) run() {
	for {
		active := q.isActive()

		q.mu.Lock()
		if !active || len(q.queue) == 0 {
			q.queue = nil
			q.running = false
			close(q.idle)
			q.mu.Unlock()
			return
		}
		fragment := q.queue[0]
		q.queue = q.queue[1:]
		if fragment.ctx.Err() != nil {
			q.mu.Unlock()
			continue
		}
		ctx, cancel := context.WithCancel(fragment.ctx)
		q.cancelSpeak = cancel
		q.mu.Unlock()

		q.speak(ctx, fragment)
		cancel()

		q.mu.Lock()
		q.cancelSpeak = nil
		q.mu.Unlock()
	}
}

func (q *synthesisQueue) speak(ctx context.Context, fragment queuedFragment) {
	ctx, span := tracer.Start(ctx, "speak fragment")
	defer span.End()

	opts := []texttospeech.SpeakOption{texttospeech.WithLanguage(fragment.params.language)}
	if voice, ok := q.resolveVoice(ctx, fragment.params); ok {
		opts = append(opts, texttospeech.WithVoice(voice))
	}

	q.emit(events.NewAssistantSpeechStarted(fragment.text))
	err := q.synthesizer.Speak(ctx, fragment.text, opts...)
	if err != nil && !errors.Is(err, context.Canceled) {
		span.RecordError(err)
		logger.Warn("failed to speak fragment", "error", err)
	}
	q.emit(events.NewAssistantSpeechEnded(fragment.text, err))
}

// flush drops queued fragments and cancels the one being spoken.
func (q *synthesisQueue) flush() {
	q.mu.Lock()
	q.queue = nil
	cancel := q.cancelSpeak
	q.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// wait blocks until the loop is idle or ctx is done.
func (q *synthesisQueue) wait(ctx context.Context) error {
	q.mu.Lock()
	idle := q.idle
	q.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *synthesisQueue) isSpeaking() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.running
}

// resolveVoice selects the voice once per conversation. A failed lookup is
// not cached so the next fragment tries again.
func (q *synthesisQueue) resolveVoice(ctx context.Context, params speakParams) (texttospeech.Voice, bool) {
	q.mu.Lock()
	if q.voiceResolved {
		voice := q.voice
		q.mu.Unlock()
		return voice, voice.Name != ""
	}
	q.mu.Unlock()

	voices, err := q.synthesizer.Voices(ctx)
	if err != nil {
		logger.Warn("failed to list voices", "error", err)
		return texttospeech.Voice{}, false
	}
	voice, _ := texttospeech.SelectVoice(voices, params.language, params.gender)

	q.mu.Lock()
	q.voice = voice
	q.voiceResolved = true
	q.mu.Unlock()
	return voice, voice.Name != ""
}

// resetVoice forgets the cached voice, used when a new conversation starts.
func (q *synthesisQueue) resetVoice() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.voice = texttospeech.Voice{}
	q.voiceResolved = false
}
