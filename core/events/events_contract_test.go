package events

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestConstructorsEmitExpectedKinds(t *testing.T) {
	testCases := []struct {
		name     string
		event    Event
		expected Kind
	}{
		{name: "state changed", event: NewStateChanged("idle", "listening"), expected: KindStateChanged},
		{name: "user interim updated", event: NewUserTranscriptInterimUpdated("text"), expected: KindUserTranscriptInterimUpdated},
		{name: "user transcript final", event: NewUserTranscriptFinal("text"), expected: KindUserTranscriptFinal},
		{name: "user text submitted", event: NewUserTextSubmitted("text"), expected: KindUserTextSubmitted},
		{name: "recognition failed", event: NewRecognitionFailed("network", "Network error."), expected: KindRecognitionFailed},
		{name: "assistant response segment", event: NewAssistantResponseSegment("seg"), expected: KindAssistantResponseSegment},
		{name: "assistant response final", event: NewAssistantResponseFinal("text"), expected: KindAssistantResponseFinal},
		{name: "tool call started", event: NewToolCallStarted("id", "get_weather", "{}"), expected: KindToolCallStarted},
		{name: "tool call completed", event: NewToolCallCompleted("id", "get_weather", "sunny", time.Second), expected: KindToolCallCompleted},
		{name: "tool call failed", event: NewToolCallFailed("id", "get_weather", "boom", "Error executing get_weather: boom", time.Second), expected: KindToolCallFailed},
		{name: "assistant speech started", event: NewAssistantSpeechStarted("Hi."), expected: KindAssistantSpeechStarted},
		{name: "assistant speech ended", event: NewAssistantSpeechEnded("Hi.", nil), expected: KindAssistantSpeechEnded},
		{name: "turn started", event: NewTurnStarted("id", "text"), expected: KindTurnStarted},
		{name: "turn completed", event: NewTurnCompleted("id"), expected: KindTurnCompleted},
		{name: "turn failed", event: NewTurnFailed("id", "boom"), expected: KindTurnFailed},
		{name: "turn cancelled", event: NewTurnCancelled("id"), expected: KindTurnCancelled},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			if got := testCase.event.Kind(); got != testCase.expected {
				t.Fatalf("expected kind %q, got %q", testCase.expected, got)
			}
			if testCase.event.Timestamp().IsZero() {
				t.Fatalf("expected timestamp to be set")
			}
		})
	}
}

func TestKindsAreNamespaced(t *testing.T) {
	kinds := []Kind{
		KindStateChanged, KindUserTranscriptInterimUpdated, KindUserTranscriptFinal,
		KindUserTextSubmitted, KindRecognitionFailed, KindAssistantResponseSegment,
		KindAssistantResponseFinal, KindToolCallStarted, KindToolCallCompleted,
		KindToolCallFailed, KindAssistantSpeechStarted, KindAssistantSpeechEnded,
		KindTurnStarted, KindTurnCompleted, KindTurnFailed, KindTurnCancelled,
	}

	seen := map[Kind]bool{}
	for _, kind := range kinds {
		if !strings.Contains(string(kind), ".") || kind.Group() == string(kind) {
			t.Fatalf("expected kind %q to be namespaced", kind)
		}
		if seen[kind] {
			t.Fatalf("duplicate kind %q", kind)
		}
		seen[kind] = true
	}
}

func TestAssistantSpeechEndedCarriesError(t *testing.T) {
	err := errors.New("interrupted")
	event := NewAssistantSpeechEnded("Hi.", err)
	if !errors.Is(event.Err, err) {
		t.Fatalf("expected error to be carried, got %v", event.Err)
	}
}

func TestKindGroup(t *testing.T) {
	if group := KindToolCallFailed.Group(); group != "tool_call" {
		t.Fatalf("unexpected group %q", group)
	}
	if group := Kind("plain").Group(); group != "plain" {
		t.Fatalf("unexpected group %q", group)
	}
}
