package orchestration

import (
	"context"
	"fmt"
	"strings"

	"github.com/koscakluka/ema-voice/core/events"
	"github.com/koscakluka/ema-voice/core/llms"
	"go.opentelemetry.io/otel/attribute"
)

// StartConversation activates a conversation and starts listening. Calling
// it while a conversation is active does nothing.
func (o *Orchestrator) StartConversation(ctx context.Context, opts ...ConversationOption) error {
	params := newConversationParams(opts...)

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return ErrClosed
	}
	if o.active {
		o.mu.Unlock()
		return nil
	}
	o.active = true
	o.epoch++
	epoch := o.epoch
	o.params = params
	o.convCtx, o.convCancel = context.WithCancel(ctx)
	convCtx := o.convCtx
	o.history = nil
	o.display = displayState{}
	o.starting = true
	o.setStateLocked(StateListening)
	o.mu.Unlock()

	ctx, span := tracer.Start(convCtx, "start conversation")
	defer span.End()
	span.SetAttributes(
		attribute.String("conversation.id", params.id),
		attribute.String("conversation.mode", string(params.mode)),
		attribute.String("conversation.language", params.language),
	)

	o.synthesis.resetVoice()
	history := o.loadHistory(ctx, params)

	o.mu.Lock()
	if o.epoch != epoch {
		o.mu.Unlock()
		return nil
	}
	o.history = history
	o.starting = false
	greeting := strings.TrimSpace(params.greeting)
	if greeting != "" {
		o.display.response = greeting
		if params.mode == ModeVoice {
			o.setStateLocked(StateSpeaking)
		}
	}
	o.mu.Unlock()

	if greeting != "" && params.mode == ModeVoice && o.synthesis.enqueue(convCtx, greeting, speakParams{language: params.language, gender: params.voiceGender}) {
		go o.resumeAfterGreeting(epoch)
		return nil
	}

	o.resumeListening(epoch)
	return nil
}

func (o *Orchestrator) loadHistory(ctx context.Context, params conversationParams) []llms.Message {
	if o.historyLoader == nil {
		return nil
	}
	history, err := o.historyLoader.LoadHistory(ctx, params.id, o.historyTurns*2)
	if err != nil {
		logger.Warn("failed to load conversation history", "conversation_id", params.id, "error", err)
		return nil
	}
	return history
}

func (o *Orchestrator) resumeAfterGreeting(epoch uint64) {
	o.mu.Lock()
	ctx := o.convCtx
	o.mu.Unlock()

	if err := o.synthesis.wait(ctx); err != nil {
		return
	}

	o.mu.Lock()
	resume := o.epoch == epoch && o.turn == nil && o.state == StateSpeaking
	o.mu.Unlock()
	if resume {
		o.resumeListening(epoch)
	}
}

// resumeListening moves an active conversation back to listening, or idle
// when the conversation has ended, and restarts recognition in voice mode.
func (o *Orchestrator) resumeListening(epoch uint64) {
	o.mu.Lock()
	if o.epoch != epoch || o.turn != nil {
		o.mu.Unlock()
		return
	}
	if !o.active {
		o.setStateLocked(StateIdle)
		o.mu.Unlock()
		return
	}
	o.setStateLocked(StateListening)
	voice := o.params.mode == ModeVoice
	ctx, language := o.convCtx, o.params.language
	o.mu.Unlock()

	if voice {
		o.recognition.start(ctx, language)
	}
}

// StopConversation ends the conversation. It is safe to call at any time
// and more than once. Callbacks arriving afterwards change nothing.
func (o *Orchestrator) StopConversation() {
	o.mu.Lock()
	if !o.active {
		o.mu.Unlock()
		return
	}
	o.active = false
	o.starting = false
	o.epoch++
	turn := o.turn
	o.turn = nil
	cancel := o.convCancel
	o.convCancel = nil
	o.display.interim = ""
	if turn != nil {
		o.emitLocked(events.NewTurnCancelled(turn.id))
	}
	o.setStateLocked(StateIdle)
	o.mu.Unlock()

	o.recognition.stop()
	o.synthesis.flush()
	if turn != nil {
		turn.cancel()
	}
	if cancel != nil {
		cancel()
	}
}

// Listen is the manual trigger. While speaking it interrupts the response
// and listens, after a recognition error it retries listening.
func (o *Orchestrator) Listen() error {
	o.mu.Lock()
	if !o.active {
		o.mu.Unlock()
		return ErrConversationInactive
	}
	if o.params.mode != ModeVoice {
		o.mu.Unlock()
		return ErrVoiceInputDisabled
	}
	if o.starting {
		o.mu.Unlock()
		return ErrConversationStarting
	}
	if o.state == StateProcessing {
		o.mu.Unlock()
		return ErrTurnInFlight
	}

	turn := o.interruptLocked()
	o.display.errMessage = ""
	o.setStateLocked(StateListening)
	ctx, language := o.convCtx, o.params.language
	o.mu.Unlock()

	if turn != nil {
		turn.cancel()
	}
	o.synthesis.flush()
	o.recognition.start(ctx, language)
	return nil
}

// SubmitText submits typed text as a turn. It interrupts a response that is
// being spoken and is rejected while another turn is being processed.
func (o *Orchestrator) SubmitText(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("empty input")
	}

	o.mu.Lock()
	if !o.active {
		o.mu.Unlock()
		return ErrConversationInactive
	}
	if o.starting {
		o.mu.Unlock()
		return ErrConversationStarting
	}
	if o.state == StateProcessing {
		o.mu.Unlock()
		return ErrTurnInFlight
	}
	interrupted := o.interruptLocked()
	o.display.interim = ""
	o.display.errMessage = ""
	o.emitLocked(events.NewUserTextSubmitted(text))
	turn := o.beginTurnLocked(text)
	o.mu.Unlock()

	if interrupted != nil {
		interrupted.cancel()
	}
	o.synthesis.flush()
	o.recognition.stop()

	go o.runTurn(turn)
	return nil
}

// interruptLocked drops the turn being spoken, if any, and returns it so the
// caller can cancel it once the lock is released.
func (o *Orchestrator) interruptLocked() *activeTurn {
	turn := o.turn
	if turn == nil {
		return nil
	}
	o.turn = nil
	o.emitLocked(events.NewTurnCancelled(turn.id))
	return turn
}
