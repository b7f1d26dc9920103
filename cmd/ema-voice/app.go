package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	orchestration "github.com/koscakluka/ema-voice/core"
	"github.com/koscakluka/ema-voice/core/audio"
	"github.com/koscakluka/ema-voice/core/audio/miniaudio"
	"github.com/koscakluka/ema-voice/core/audio/portaudio"
	"github.com/koscakluka/ema-voice/core/events"
	"github.com/koscakluka/ema-voice/core/llms/gemini"
	"github.com/koscakluka/ema-voice/core/llms/groq"
	"github.com/koscakluka/ema-voice/core/memory"
	stt "github.com/koscakluka/ema-voice/core/speechtotext/deepgram"
	"github.com/koscakluka/ema-voice/core/store"
	"github.com/koscakluka/ema-voice/core/store/postgres"
	"github.com/koscakluka/ema-voice/core/store/sqlite"
	"github.com/koscakluka/ema-voice/core/tools"
	tts "github.com/koscakluka/ema-voice/core/texttospeech/deepgram"
)

const portaudioBufferSize = 1024

type audioDevice interface {
	audio.Capture
	audio.Playback
	Close()
}

// app owns everything the orchestrator needs and releases it on close.
type app struct {
	orchestrator *orchestration.Orchestrator
	store        *store.Store
	closers      []func()
}

func (a *app) close() {
	if a.orchestrator != nil {
		a.orchestrator.Close()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func openStore(ctx context.Context, cfg config) (*store.Store, error) {
	if cfg.DatabaseURL != "" {
		return postgres.Open(ctx, cfg.DatabaseURL)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	return sqlite.Open(ctx, cfg.DatabasePath)
}

func openAudio(cfg config) (audioDevice, error) {
	switch cfg.AudioBackend {
	case backendPortaudio:
		return portaudio.NewClient(portaudioBufferSize)
	default:
		return miniaudio.NewClient()
	}
}

// newApp wires the conversation loop from cfg. Optional parts that cannot
// be configured, memory for example, are left out with a warning.
func newApp(ctx context.Context, cfg config, handler func(events.Event)) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	conversations, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.store = conversations
	a.closers = append(a.closers, func() { conversations.Close() })

	opts := []orchestration.OrchestratorOption{
		orchestration.WithEventHandler(handler),
		orchestration.WithTurnRecorder(conversations),
		orchestration.WithHistoryLoader(conversations),
		orchestration.WithHistoryTurns(cfg.HistoryTurns),
		orchestration.WithTurnTimeout(cfg.TurnTimeout),
		orchestration.WithStreaming(cfg.Streaming),
		orchestration.WithPersona(orchestration.Persona{Name: cfg.AssistantName, Personality: cfg.Personality}),
	}

	var geminiClient *gemini.Client
	var endpoint orchestration.LLM
	switch cfg.Provider {
	case providerGemini:
		var geminiOpts []gemini.ClientOption
		if cfg.Model != "" {
			geminiOpts = append(geminiOpts, gemini.WithModel(cfg.Model))
		}
		if geminiClient, err = gemini.NewClient(ctx, geminiOpts...); err != nil {
			return nil, fmt.Errorf("failed to create gemini client: %w", err)
		}
		endpoint = geminiClient
	default:
		var groqOpts []groq.ClientOption
		if cfg.Model != "" {
			groqOpts = append(groqOpts, groq.WithModel(cfg.Model))
		}
		groqClient, err := groq.NewClient(groqOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create groq client: %w", err)
		}
		endpoint = groqClient
	}

	exchange, err := orchestration.NewExchangeClient(endpoint,
		orchestration.WithTools(tools.NewToolbox().Tools()...),
	)
	if err != nil {
		return nil, err
	}
	opts = append(opts, orchestration.WithExchangeClient(exchange))

	if cfg.Memory {
		if manager := newMemory(ctx, geminiClient); manager != nil {
			opts = append(opts, orchestration.WithMemory(manager))
		}
	}

	if cfg.Mode == orchestration.ModeVoice {
		device, err := openAudio(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to open audio device: %w", err)
		}
		a.closers = append(a.closers, device.Close)

		recognizer, err := stt.NewRecognizer(device)
		if err != nil {
			return nil, fmt.Errorf("failed to create speech recognizer: %w", err)
		}
		speaker, err := tts.NewSpeaker(device)
		if err != nil {
			return nil, fmt.Errorf("failed to create speaker: %w", err)
		}
		a.closers = append(a.closers, func() { speaker.Close() })

		opts = append(opts,
			orchestration.WithSpeechRecognizer(recognizer),
			orchestration.WithSpeechSynthesizer(speaker),
		)
	}

	a.orchestrator = orchestration.NewOrchestrator(opts...)
	return a, nil
}

// newMemory builds the memory from whatever backends are configured. The
// vector store needs Gemini embeddings, a Gemini client is created for it
// when the conversation runs on another provider.
func newMemory(ctx context.Context, geminiClient *gemini.Client) *memory.Manager {
	var facts memory.FactStorage
	if factStore, err := memory.NewFactStore(); err == nil {
		facts = factStore
	} else {
		slog.Warn("fact memory disabled", "error", err)
	}

	var vectors memory.VectorStorage
	if geminiClient == nil {
		client, err := gemini.NewClient(ctx)
		if err != nil {
			slog.Warn("vector memory disabled", "error", err)
		}
		geminiClient = client
	}
	if geminiClient != nil {
		if vectorStore, err := memory.NewVectorStore(geminiClient.Embedder("")); err == nil {
			vectors = vectorStore
		} else {
			slog.Warn("vector memory disabled", "error", err)
		}
	}

	if facts == nil && vectors == nil {
		return nil
	}
	return memory.NewManager(facts, vectors)
}
