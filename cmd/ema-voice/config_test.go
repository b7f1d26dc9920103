package main

import (
	"strings"
	"testing"
	"time"

	orchestration "github.com/koscakluka/ema-voice/core"
	"github.com/koscakluka/ema-voice/core/texttospeech"
)

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		value, ok := env[key]
		return value, ok
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg, err := configFromEnv(lookupFrom(nil))
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Provider != providerGroq || cfg.AudioBackend != backendMiniaudio {
		t.Fatalf("unexpected provider or backend %q %q", cfg.Provider, cfg.AudioBackend)
	}
	if cfg.Language != "en-US" || cfg.VoiceGender != texttospeech.GenderFemale || cfg.Mode != orchestration.ModeVoice {
		t.Fatalf("unexpected conversation defaults %+v", cfg)
	}
	if cfg.HistoryTurns != 5 || !cfg.Streaming || !cfg.Memory || cfg.TurnTimeout != 0 {
		t.Fatalf("unexpected turn defaults %+v", cfg)
	}
	if !strings.HasSuffix(cfg.DatabasePath, "ema-voice.db") {
		t.Fatalf("unexpected database path %q", cfg.DatabasePath)
	}
}

func TestConfigFromEnv(t *testing.T) {
	cfg, err := configFromEnv(lookupFrom(map[string]string{
		"EMA_LLM_PROVIDER":    "Gemini",
		"EMA_AUDIO_BACKEND":   "portaudio",
		"EMA_LANGUAGE":        "hr-HR",
		"EMA_VOICE_GENDER":    "male",
		"EMA_MODE":            "text",
		"EMA_HISTORY_TURNS":   "3",
		"EMA_TURN_TIMEOUT":    "20s",
		"EMA_STREAMING":       "false",
		"EMA_MEMORY":          "0",
		"EMA_USER_ID":         "user-1",
		"EMA_CONVERSATION_ID": "  ",
	}))
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Provider != providerGemini || cfg.AudioBackend != backendPortaudio {
		t.Fatalf("unexpected provider or backend %q %q", cfg.Provider, cfg.AudioBackend)
	}
	if cfg.Language != "hr-HR" || cfg.VoiceGender != texttospeech.GenderMale || cfg.Mode != orchestration.ModeText {
		t.Fatalf("unexpected conversation settings %+v", cfg)
	}
	if cfg.HistoryTurns != 3 || cfg.TurnTimeout != 20*time.Second || cfg.Streaming || cfg.Memory {
		t.Fatalf("unexpected turn settings %+v", cfg)
	}
	if cfg.ConversationID != "" || cfg.UserID != "user-1" {
		t.Fatalf("unexpected ids %q %q", cfg.ConversationID, cfg.UserID)
	}
	if opts := cfg.conversationOptions(); len(opts) != 4 {
		t.Fatalf("expected language, gender, mode and user options, got %d", len(opts))
	}
}

func TestConfigValidation(t *testing.T) {
	testCases := map[string]map[string]string{
		"provider":      {"EMA_LLM_PROVIDER": "openai"},
		"backend":       {"EMA_AUDIO_BACKEND": "alsa"},
		"gender":        {"EMA_VOICE_GENDER": "robot"},
		"mode":          {"EMA_MODE": "video"},
		"history turns": {"EMA_HISTORY_TURNS": "-1"},
		"timeout":       {"EMA_TURN_TIMEOUT": "soon"},
		"streaming":     {"EMA_STREAMING": "maybe"},
	}

	for name, env := range testCases {
		t.Run(name, func(t *testing.T) {
			if _, err := configFromEnv(lookupFrom(env)); err == nil {
				t.Fatalf("expected invalid %s to be rejected", name)
			}
		})
	}
}
