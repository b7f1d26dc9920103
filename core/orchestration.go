package orchestration

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/koscakluka/ema-voice/core/events"
	"github.com/koscakluka/ema-voice/core/llms"
	"github.com/koscakluka/ema-voice/core/speechtotext"
)

var (
	ErrConversationInactive = errors.New("conversation is not active")
	ErrTurnInFlight         = errors.New("a turn is already being processed")
	ErrVoiceInputDisabled   = errors.New("voice input is disabled for this conversation")
	ErrClosed               = errors.New("orchestrator is closed")
	// ErrConversationStarting is returned while the conversation history
	// is still being loaded.
	ErrConversationStarting = errors.New("conversation is still starting")
)

// Orchestrator runs the conversation loop: it listens, submits finalized
// transcripts as turns, speaks the streamed response sentence by sentence
// and listens again.
type Orchestrator struct {
	exchange      *ExchangeClient
	memory        Memory
	recorder      TurnRecorder
	historyLoader HistoryLoader
	eventHandler  func(events.Event)
	persona       Persona
	instructions  func(Persona, time.Time) string
	historyTurns  int
	turnTimeout   time.Duration
	streaming     bool

	recognition *recognitionSession
	synthesis   *synthesisQueue
	dispatcher  *eventDispatcher
	background  sync.WaitGroup

	mu         sync.Mutex
	closed     bool
	active     bool
	starting   bool
	epoch      uint64
	state      SessionState
	params     conversationParams
	convCtx    context.Context
	convCancel context.CancelFunc
	turn       *activeTurn
	history    []llms.Message
	display    displayState
}

type displayState struct {
	transcript string
	interim    string
	response   string
	errMessage string
}

// Snapshot is a read-only view of the conversation.
type Snapshot struct {
	State             SessionState
	Active            bool
	Mode              Mode
	ConversationID    string
	Transcript        string
	InterimTranscript string
	Response          string
	Error             string
	History           []llms.Message
}

func NewOrchestrator(opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		persona:      defaultPersona,
		instructions: DefaultInstructions,
		historyTurns: defaultHistoryTurns,
		streaming:    true,
		recognition:  newRecognitionSession(),
		synthesis:    newSynthesisQueue(),
		state:        StateIdle,
		convCtx:      context.Background(),
	}
	for _, opt := range opts {
		opt(o)
	}

	o.dispatcher = newEventDispatcher(o.eventHandler)
	o.recognition.callbacks = recognitionCallbacks{
		onInterim: o.handleInterimTranscript,
		onFinal:   o.handleFinalTranscript,
		onError:   o.handleRecognitionError,
		onRestart: o.handleRecognitionRestart,
	}
	o.synthesis.isActive = o.isActive
	o.synthesis.emit = o.dispatcher.emit

	return o
}

// Close stops the conversation and waits for background storage of
// completed turns to finish.
func (o *Orchestrator) Close() {
	o.StopConversation()

	o.mu.Lock()
	alreadyClosed := o.closed
	o.closed = true
	o.mu.Unlock()
	if alreadyClosed {
		return
	}

	o.background.Wait()
	o.dispatcher.close()
}

func (o *Orchestrator) State() SessionState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) IsActive() bool {
	return o.isActive()
}

func (o *Orchestrator) isActive() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active
}

func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()

	return Snapshot{
		State:             o.state,
		Active:            o.active,
		Mode:              o.params.mode,
		ConversationID:    o.params.id,
		Transcript:        o.display.transcript,
		InterimTranscript: o.display.interim,
		Response:          o.display.response,
		Error:             o.display.errMessage,
		History:           append([]llms.Message(nil), o.history...),
	}
}

func (o *Orchestrator) emitLocked(event events.Event) {
	o.dispatcher.emit(event)
}

func (o *Orchestrator) setStateLocked(state SessionState) {
	if o.state == state {
		return
	}
	from := o.state
	o.state = state
	o.emitLocked(events.NewStateChanged(from.String(), state.String()))
}

func (o *Orchestrator) handleInterimTranscript(transcript string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.active || o.state != StateListening {
		return
	}
	o.display.interim = transcript
	o.emitLocked(events.NewUserTranscriptInterimUpdated(transcript))
}

// handleFinalTranscript submits transcript as a turn unless one is already
// in flight.
func (o *Orchestrator) handleFinalTranscript(transcript string) {
	o.mu.Lock()
	if !o.active || o.turn != nil || o.state == StateProcessing {
		o.mu.Unlock()
		return
	}
	o.display.interim = ""
	o.emitLocked(events.NewUserTranscriptFinal(transcript))
	turn := o.beginTurnLocked(transcript)
	o.mu.Unlock()

	go o.runTurn(turn)
}

func (o *Orchestrator) handleRecognitionError(err *speechtotext.RecognitionError) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.active {
		return
	}
	o.display.errMessage = err.Message()
	o.display.interim = ""
	o.emitLocked(events.NewRecognitionFailed(string(err.Code), err.Message()))
}

func (o *Orchestrator) handleRecognitionRestart() {
	o.mu.Lock()
	if !o.active || o.turn != nil || o.state != StateListening || o.params.mode != ModeVoice {
		o.mu.Unlock()
		return
	}
	ctx, language := o.convCtx, o.params.language
	o.mu.Unlock()

	o.recognition.start(ctx, language)
}
