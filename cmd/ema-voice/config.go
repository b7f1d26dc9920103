package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	orchestration "github.com/koscakluka/ema-voice/core"
	"github.com/koscakluka/ema-voice/core/texttospeech"
)

const (
	providerGroq   = "groq"
	providerGemini = "gemini"

	backendMiniaudio = "miniaudio"
	backendPortaudio = "portaudio"
)

type config struct {
	Provider     string
	Model        string
	AudioBackend string
	DatabaseURL  string
	DatabasePath string

	UserID         string
	ConversationID string
	Language       string
	VoiceGender    texttospeech.Gender
	Mode           orchestration.Mode
	Greeting       string
	AssistantName  string
	Personality    string

	HistoryTurns int
	TurnTimeout  time.Duration
	Streaming    bool
	Memory       bool
}

// loadConfig reads the configuration from the environment. A .env file in
// the working directory is loaded first when present, variables that are
// already set win.
func loadConfig(envFiles ...string) (config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !os.IsNotExist(err) {
		return config{}, fmt.Errorf("failed to load env file: %w", err)
	}
	return configFromEnv(os.LookupEnv)
}

func configFromEnv(lookup func(string) (string, bool)) (config, error) {
	get := func(key, fallback string) string {
		if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
		return fallback
	}

	cfg := config{
		Provider:       strings.ToLower(get("EMA_LLM_PROVIDER", providerGroq)),
		Model:          get("EMA_LLM_MODEL", ""),
		AudioBackend:   strings.ToLower(get("EMA_AUDIO_BACKEND", backendMiniaudio)),
		DatabaseURL:    get("DATABASE_URL", ""),
		DatabasePath:   get("EMA_DB_PATH", defaultDatabasePath()),
		UserID:         get("EMA_USER_ID", ""),
		ConversationID: get("EMA_CONVERSATION_ID", ""),
		Language:       get("EMA_LANGUAGE", "en-US"),
		VoiceGender:    texttospeech.Gender(strings.ToLower(get("EMA_VOICE_GENDER", string(texttospeech.GenderFemale)))),
		Mode:           orchestration.Mode(strings.ToLower(get("EMA_MODE", string(orchestration.ModeVoice)))),
		Greeting:       get("EMA_GREETING", ""),
		AssistantName:  get("EMA_ASSISTANT_NAME", ""),
		Personality:    get("EMA_PERSONALITY", ""),
		HistoryTurns:   5,
		Streaming:      true,
		Memory:         true,
	}

	var err error
	if value := get("EMA_HISTORY_TURNS", ""); value != "" {
		if cfg.HistoryTurns, err = strconv.Atoi(value); err != nil || cfg.HistoryTurns < 0 {
			return config{}, fmt.Errorf("invalid EMA_HISTORY_TURNS %q", value)
		}
	}
	if value := get("EMA_TURN_TIMEOUT", ""); value != "" {
		if cfg.TurnTimeout, err = time.ParseDuration(value); err != nil {
			return config{}, fmt.Errorf("invalid EMA_TURN_TIMEOUT %q: %w", value, err)
		}
	}
	if value := get("EMA_STREAMING", ""); value != "" {
		if cfg.Streaming, err = strconv.ParseBool(value); err != nil {
			return config{}, fmt.Errorf("invalid EMA_STREAMING %q: %w", value, err)
		}
	}
	if value := get("EMA_MEMORY", ""); value != "" {
		if cfg.Memory, err = strconv.ParseBool(value); err != nil {
			return config{}, fmt.Errorf("invalid EMA_MEMORY %q: %w", value, err)
		}
	}

	return cfg, cfg.validate()
}

func (c config) validate() error {
	switch c.Provider {
	case providerGroq, providerGemini:
	default:
		return fmt.Errorf("unsupported llm provider %q", c.Provider)
	}
	switch c.AudioBackend {
	case backendMiniaudio, backendPortaudio:
	default:
		return fmt.Errorf("unsupported audio backend %q", c.AudioBackend)
	}
	switch c.VoiceGender {
	case texttospeech.GenderFemale, texttospeech.GenderMale:
	default:
		return fmt.Errorf("unsupported voice gender %q", c.VoiceGender)
	}
	switch c.Mode {
	case orchestration.ModeVoice, orchestration.ModeText:
	default:
		return fmt.Errorf("unsupported mode %q", c.Mode)
	}
	return nil
}

func (c config) conversationOptions() []orchestration.ConversationOption {
	opts := []orchestration.ConversationOption{
		orchestration.WithLanguage(c.Language),
		orchestration.WithVoiceGender(c.VoiceGender),
		orchestration.WithMode(c.Mode),
	}
	if c.ConversationID != "" {
		opts = append(opts, orchestration.WithConversationID(c.ConversationID))
	}
	if c.UserID != "" {
		opts = append(opts, orchestration.WithUserID(c.UserID))
	}
	if c.Greeting != "" {
		opts = append(opts, orchestration.WithGreeting(c.Greeting))
	}
	return opts
}

func defaultDatabasePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "ema-voice.db"
	}
	return filepath.Join(home, ".ema-voice", "ema-voice.db")
}
