package orchestration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/koscakluka/ema-voice/core/events"
	"github.com/koscakluka/ema-voice/core/llms"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

// activeTurn is the single turn in flight. The parameters and history it
// needs are captured when it is submitted.
type activeTurn struct {
	id         string
	epoch      uint64
	transcript string
	params     conversationParams
	history    []llms.Message

	ctx    context.Context
	cancel context.CancelFunc
}

func (o *Orchestrator) beginTurnLocked(transcript string) *activeTurn {
	ctx, cancel := context.WithCancel(o.convCtx)
	turn := &activeTurn{
		id:         uuid.NewString(),
		epoch:      o.epoch,
		transcript: transcript,
		params:     o.params,
		history:    lastMessages(o.history, o.historyTurns*2),
		ctx:        ctx,
		cancel:     cancel,
	}
	o.turn = turn
	o.display.transcript = transcript
	o.display.response = ""
	o.emitLocked(events.NewTurnStarted(turn.id, transcript))
	o.setStateLocked(StateProcessing)
	return turn
}

func (o *Orchestrator) isCurrentTurn(turn *activeTurn) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.turn == turn
}

func (o *Orchestrator) runTurn(turn *activeTurn) {
	ctx, span := tracer.Start(turn.ctx, "process turn")
	defer span.End()
	span.SetAttributes(
		attribute.String("turn.id", turn.id),
		attribute.String("conversation.id", turn.params.id),
	)

	response, turnErr := o.respond(ctx, turn)
	if turn.ctx.Err() != nil || !o.isCurrentTurn(turn) {
		turnCounter.Add(context.WithoutCancel(ctx), 1, metric.WithAttributes(attribute.String("status", "cancelled")))
		return
	}

	if turnErr != nil {
		span.RecordError(turnErr)
		span.SetStatus(codes.Error, turnErr.Error())
		logger.Error("turn failed", "turn_id", turn.id, "error", turnErr)

		response = FallbackMessage(turnErr)
		o.mu.Lock()
		if o.turn == turn {
			o.display.response = response
			o.emitLocked(events.NewTurnFailed(turn.id, turnErr.Error()))
		}
		o.mu.Unlock()
		o.speak(turn, response)
	}

	if turn.params.mode == ModeVoice {
		if err := o.synthesis.wait(turn.ctx); err != nil {
			return
		}
	}

	o.finishTurn(turn, response, turnErr)
}

// respond streams the exchange response, speaking each sentence as soon as
// it is complete.
func (o *Orchestrator) respond(ctx context.Context, turn *activeTurn) (string, error) {
	if o.exchange == nil {
		return "", ErrNoEndpoint
	}

	instructions := o.buildInstructions(ctx, turn)

	exchangeCtx := ctx
	if o.turnTimeout > 0 {
		var cancel context.CancelFunc
		exchangeCtx, cancel = context.WithTimeout(ctx, o.turnTimeout)
		defer cancel()
	}

	var response strings.Builder
	var sentences SentenceBuffer
	for fragment, err := range o.exchange.Submit(exchangeCtx, SubmitRequest{
		Transcript:   turn.transcript,
		History:      turn.history,
		Instructions: instructions,
		Streaming:    o.streaming,
		OnEvent:      o.dispatcher.emit,
	}) {
		if err != nil {
			if errors.Is(exchangeCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
				err = fmt.Errorf("turn timed out after %s: %w", o.turnTimeout, err)
			}
			return response.String(), err
		}

		o.mu.Lock()
		current := o.turn == turn
		if current {
			o.display.response += fragment
			o.emitLocked(events.NewAssistantResponseSegment(fragment))
		}
		o.mu.Unlock()
		if !current {
			return response.String(), nil
		}

		response.WriteString(fragment)
		for _, sentence := range sentences.Add(fragment) {
			o.speak(turn, sentence)
		}
	}
	if rest := sentences.Flush(); rest != "" {
		o.speak(turn, rest)
	}

	o.mu.Lock()
	if o.turn == turn {
		o.emitLocked(events.NewAssistantResponseFinal(response.String()))
	}
	o.mu.Unlock()
	return response.String(), nil
}

// speak queues a sentence of the turn, moving the session to speaking on
// the first one. Text mode conversations only display responses.
func (o *Orchestrator) speak(turn *activeTurn, sentence string) {
	if turn.params.mode != ModeVoice {
		return
	}

	o.mu.Lock()
	if o.turn != turn {
		o.mu.Unlock()
		return
	}
	o.setStateLocked(StateSpeaking)
	o.mu.Unlock()

	o.synthesis.enqueue(turn.ctx, sentence, speakParams{
		language: turn.params.language,
		gender:   turn.params.voiceGender,
	})
}

func (o *Orchestrator) buildInstructions(ctx context.Context, turn *activeTurn) string {
	instructions := o.instructions(o.persona, time.Now())
	if o.memory == nil || turn.params.userID == "" {
		return instructions
	}

	memoryContext, err := o.memory.Context(ctx, turn.params.userID, turn.transcript)
	if err != nil {
		logger.Warn("failed to get memory context", "error", err)
		return instructions
	}
	return withMemoryContext(instructions, memoryContext)
}

// finishTurn records the turn and returns to listening. It does nothing when
// the turn was superseded by a barge-in or stop.
func (o *Orchestrator) finishTurn(turn *activeTurn, response string, turnErr error) {
	o.mu.Lock()
	if o.turn != turn {
		o.mu.Unlock()
		return
	}
	o.turn = nil
	epoch := o.epoch
	if turnErr == nil {
		o.history = append(o.history,
			llms.Message{Role: llms.RoleUser, Content: turn.transcript},
			llms.Message{Role: llms.RoleAssistant, Content: response},
		)
		o.emitLocked(events.NewTurnCompleted(turn.id))
	}
	o.mu.Unlock()
	turn.cancel()

	status := "completed"
	if turnErr != nil {
		status = "failed"
	} else {
		o.storeTurn(turn, response)
	}
	turnCounter.Add(context.Background(), 1, metric.WithAttributes(attribute.String("status", status)))

	o.resumeListening(epoch)
}

// storeTurn hands the completed turn to the recorder and memory without
// blocking the conversation.
func (o *Orchestrator) storeTurn(turn *activeTurn, response string) {
	if o.recorder == nil && o.memory == nil {
		return
	}

	ctx := context.WithoutCancel(turn.ctx)
	record := TurnRecord{
		ConversationID: turn.params.id,
		UserID:         turn.params.userID,
		Transcript:     turn.transcript,
		Response:       response,
		At:             time.Now(),
	}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		logger.Warn("dropping turn record after close", "conversation_id", record.ConversationID)
		return
	}
	o.background.Add(1)
	o.mu.Unlock()

	go func() {
		defer o.background.Done()

		ctx, span := tracer.Start(ctx, "store turn")
		defer span.End()

		if o.recorder != nil {
			err := runCollaborator(ctx, "turn recorder", func(ctx context.Context) error {
				return o.recorder.RecordTurn(ctx, record)
			})
			if err != nil {
				span.RecordError(err)
				logger.Warn("failed to record turn", "conversation_id", record.ConversationID, "error", err)
			}
		}
		if o.memory != nil && record.UserID != "" {
			err := runCollaborator(ctx, "memory", func(ctx context.Context) error {
				return o.memory.Store(ctx, record.UserID, record.ConversationID, record.Transcript, record.Response)
			})
			if err != nil {
				span.RecordError(err)
				logger.Warn("failed to store turn in memory", "conversation_id", record.ConversationID, "error", err)
			}
		}
	}()
}
