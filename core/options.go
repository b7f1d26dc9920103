package orchestration

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/koscakluka/ema-voice/core/events"
	"github.com/koscakluka/ema-voice/core/llms"
	"github.com/koscakluka/ema-voice/core/speechtotext"
	"github.com/koscakluka/ema-voice/core/texttospeech"
)

const (
	defaultHistoryTurns = 5
	defaultLanguage     = "en-US"
)

type OrchestratorOption func(*Orchestrator)

// SpeechRecognizer starts one utterance recognition at a time. The returned
// recognition reports its end through the end callback exactly once.
type SpeechRecognizer interface {
	Recognize(ctx context.Context, opts ...speechtotext.RecognitionOption) (speechtotext.Recognition, error)
}

// SpeechSynthesizer speaks text. Speak blocks until playback completed or
// failed; cancelling ctx stops playback.
type SpeechSynthesizer interface {
	Voices(ctx context.Context) ([]texttospeech.Voice, error)
	Speak(ctx context.Context, text string, opts ...texttospeech.SpeakOption) error
}

// Memory supplies long term context for a user and stores completed turns.
type Memory interface {
	Context(ctx context.Context, userID, query string) (string, error)
	Store(ctx context.Context, userID, conversationID, userMessage, assistantMessage string) error
}

type TurnRecord struct {
	ConversationID string
	UserID         string
	Transcript     string
	Response       string
	At             time.Time
}

// TurnRecorder persists completed turns. Failures are logged and never
// affect the conversation.
type TurnRecorder interface {
	RecordTurn(ctx context.Context, turn TurnRecord) error
}

// HistoryLoader returns the last limit messages of a stored conversation,
// oldest first.
type HistoryLoader interface {
	LoadHistory(ctx context.Context, conversationID string, limit int) ([]llms.Message, error)
}

func WithSpeechRecognizer(recognizer SpeechRecognizer) OrchestratorOption {
	return func(o *Orchestrator) { o.recognition.recognizer = recognizer }
}

func WithSpeechSynthesizer(synthesizer SpeechSynthesizer) OrchestratorOption {
	return func(o *Orchestrator) { o.synthesis.synthesizer = synthesizer }
}

func WithExchangeClient(client *ExchangeClient) OrchestratorOption {
	return func(o *Orchestrator) { o.exchange = client }
}

func WithMemory(memory Memory) OrchestratorOption {
	return func(o *Orchestrator) { o.memory = memory }
}

func WithTurnRecorder(recorder TurnRecorder) OrchestratorOption {
	return func(o *Orchestrator) { o.recorder = recorder }
}

func WithHistoryLoader(loader HistoryLoader) OrchestratorOption {
	return func(o *Orchestrator) { o.historyLoader = loader }
}

// WithEventHandler sets the receiver of conversation events. Events are
// delivered in order on a dedicated goroutine.
func WithEventHandler(handler func(events.Event)) OrchestratorOption {
	return func(o *Orchestrator) { o.eventHandler = handler }
}

func WithPersona(persona Persona) OrchestratorOption {
	return func(o *Orchestrator) { o.persona = persona }
}

// WithInstructions replaces the default system instructions builder.
func WithInstructions(build func(persona Persona, now time.Time) string) OrchestratorOption {
	return func(o *Orchestrator) {
		if build != nil {
			o.instructions = build
		}
	}
}

// WithHistoryTurns sets how many prior turns are sent with each exchange.
func WithHistoryTurns(turns int) OrchestratorOption {
	return func(o *Orchestrator) {
		if turns >= 0 {
			o.historyTurns = turns
		}
	}
}

// WithTurnTimeout bounds the exchange of each turn. Zero disables the
// timeout.
func WithTurnTimeout(timeout time.Duration) OrchestratorOption {
	return func(o *Orchestrator) { o.turnTimeout = timeout }
}

// WithStreaming selects between the streaming and the single response mode
// of the exchange.
func WithStreaming(streaming bool) OrchestratorOption {
	return func(o *Orchestrator) { o.streaming = streaming }
}

type conversationParams struct {
	id          string
	userID      string
	language    string
	voiceGender texttospeech.Gender
	mode        Mode
	greeting    string
}

type ConversationOption func(*conversationParams)

func WithConversationID(id string) ConversationOption {
	return func(p *conversationParams) { p.id = id }
}

func WithUserID(userID string) ConversationOption {
	return func(p *conversationParams) { p.userID = userID }
}

// WithLanguage sets the BCP-47 language used for recognition and voice
// selection.
func WithLanguage(language string) ConversationOption {
	return func(p *conversationParams) { p.language = language }
}

func WithVoiceGender(gender texttospeech.Gender) ConversationOption {
	return func(p *conversationParams) { p.voiceGender = gender }
}

func WithMode(mode Mode) ConversationOption {
	return func(p *conversationParams) { p.mode = mode }
}

// WithGreeting makes the assistant say text when the conversation starts.
func WithGreeting(text string) ConversationOption {
	return func(p *conversationParams) { p.greeting = text }
}

func newConversationParams(opts ...ConversationOption) conversationParams {
	params := conversationParams{
		language:    defaultLanguage,
		voiceGender: texttospeech.GenderFemale,
		mode:        ModeVoice,
	}
	for _, opt := range opts {
		opt(&params)
	}
	if params.id == "" {
		params.id = uuid.NewString()
	}
	if params.language == "" {
		params.language = defaultLanguage
	}
	if params.mode == "" {
		params.mode = ModeVoice
	}
	return params
}
