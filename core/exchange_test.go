package orchestration

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/koscakluka/ema-voice/core/events"
	"github.com/koscakluka/ema-voice/core/llms"
)

func collectFragments(t *testing.T, fragments func(func(string, error) bool)) ([]string, error) {
	t.Helper()

	var collected []string
	for fragment, err := range fragments {
		if err != nil {
			return collected, err
		}
		collected = append(collected, fragment)
	}
	return collected, nil
}

func echoTool(name string, run func(context.Context, string) (string, error)) llms.Tool {
	return llms.Tool{
		Type:     "function",
		Function: llms.ToolFunction{Name: name},
		Execute:  run,
	}
}

func TestNewExchangeClientRejectsMissingEndpoint(t *testing.T) {
	if _, err := NewExchangeClient(nil); !errors.Is(err, ErrNoEndpoint) {
		t.Fatalf("expected ErrNoEndpoint, got %v", err)
	}
	if _, err := NewExchangeClient(struct{}{}); err == nil {
		t.Fatalf("expected unsupported endpoint to be rejected")
	}
}

func TestSubmitStreamsFragmentsWithHistory(t *testing.T) {
	llm := &streamLLMStub{passes: []streamPass{{chunks: []llms.StreamChunk{
		contentChunkStub("Hello"), contentChunkStub(", world."),
	}}}}
	client, err := NewExchangeClient(llm)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	history := []llms.Message{
		{Role: llms.RoleUser, Content: "first"},
		{Role: llms.RoleAssistant, Content: "reply"},
	}
	fragments, err := collectFragments(t, client.Submit(context.Background(), SubmitRequest{
		Transcript:   "hi",
		History:      history,
		Instructions: "be brief",
		Streaming:    true,
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !slices.Equal(fragments, []string{"Hello", ", world."}) {
		t.Fatalf("unexpected fragments %q", fragments)
	}
	prompt, options := llm.call(0)
	if prompt != "hi" || options.Instructions != "be brief" {
		t.Fatalf("unexpected request prompt=%q instructions=%q", prompt, options.Instructions)
	}
	if !slices.Equal(options.History, history) {
		t.Fatalf("expected history to be passed in order, got %v", options.History)
	}
}

func TestSubmitRunsToolCallsConcurrentlyAndContinues(t *testing.T) {
	llm := &streamLLMStub{passes: []streamPass{
		{chunks: []llms.StreamChunk{
			contentChunkStub("Let me check. "),
			toolCallChunkStub{call: llms.ToolCall{ID: "a", Name: "slow_one", Arguments: `{}`}},
			toolCallChunkStub{call: llms.ToolCall{ID: "b", Name: "slow_two", Arguments: `{}`}},
			contentChunkStub("ignored after tool call"),
		}},
		{chunks: []llms.StreamChunk{contentChunkStub("It is sunny.")}},
	}}

	// Each tool waits for the other to start, so they only finish when run
	// concurrently.
	var started sync.WaitGroup
	started.Add(2)
	waitForBoth := func(result string) func(context.Context, string) (string, error) {
		return func(ctx context.Context, _ string) (string, error) {
			started.Done()
			done := make(chan struct{})
			go func() { started.Wait(); close(done) }()
			select {
			case <-done:
				return result, nil
			case <-time.After(time.Second):
				return "", errors.New("tools did not run concurrently")
			}
		}
	}

	recorder := &eventRecorder{}
	client, err := NewExchangeClient(llm, WithTools(
		echoTool("slow_one", waitForBoth("one")),
		echoTool("slow_two", waitForBoth("two")),
	))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	fragments, err := collectFragments(t, client.Submit(context.Background(), SubmitRequest{
		Transcript: "weather?",
		Streaming:  true,
		OnEvent:    recorder.handle,
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !slices.Equal(fragments, []string{"Let me check. ", "It is sunny."}) {
		t.Fatalf("unexpected fragments %q", fragments)
	}
	if llm.calls() != 2 {
		t.Fatalf("expected one continuation request, got %d requests", llm.calls())
	}

	_, continuation := llm.call(1)
	if len(continuation.ToolRounds) != 1 {
		t.Fatalf("expected one tool round, got %d", len(continuation.ToolRounds))
	}
	round := continuation.ToolRounds[0]
	if round.ToolCalls[0].ID != "a" || round.ToolCalls[0].Response != "one" ||
		round.ToolCalls[1].ID != "b" || round.ToolCalls[1].Response != "two" {
		t.Fatalf("unexpected tool results %+v", round.ToolCalls)
	}
	if recorder.count(events.KindToolCallCompleted) != 2 || recorder.count(events.KindToolCallStarted) != 2 {
		t.Fatalf("expected tool call events for both calls")
	}
}

func TestSubmitDiscardPreToolTextOnlyEmitsContinuation(t *testing.T) {
	llm := &streamLLMStub{passes: []streamPass{
		{chunks: []llms.StreamChunk{
			contentChunkStub("Let me check."),
			toolCallChunkStub{call: llms.ToolCall{ID: "a", Name: "get_weather"}},
		}},
		{chunks: []llms.StreamChunk{contentChunkStub("It is "), contentChunkStub("sunny.")}},
	}}
	client, err := NewExchangeClient(llm,
		WithToolTextPolicy(DiscardPreToolText),
		WithTools(echoTool("get_weather", func(context.Context, string) (string, error) { return "sunny", nil })),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	fragments, err := collectFragments(t, client.Submit(context.Background(), SubmitRequest{Transcript: "weather?", Streaming: true}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !slices.Equal(fragments, []string{"It is ", "sunny."}) {
		t.Fatalf("expected only continuation text, got %q", fragments)
	}

	_, continuation := llm.call(1)
	if continuation.ToolRounds[0].Content != "Let me check." {
		t.Fatalf("expected pre tool text to be kept in the round, got %q", continuation.ToolRounds[0].Content)
	}
}

func TestSubmitToolFailuresBecomeResults(t *testing.T) {
	llm := &streamLLMStub{passes: []streamPass{
		{chunks: []llms.StreamChunk{
			toolCallChunkStub{call: llms.ToolCall{Name: "broken"}},
			toolCallChunkStub{call: llms.ToolCall{Name: "panicking"}},
			toolCallChunkStub{call: llms.ToolCall{Name: "missing"}},
		}},
		{chunks: []llms.StreamChunk{contentChunkStub("Sorry, that did not work.")}},
	}}
	recorder := &eventRecorder{}
	client, err := NewExchangeClient(llm, WithTools(
		echoTool("broken", func(context.Context, string) (string, error) { return "", errors.New("service down") }),
		echoTool("panicking", func(context.Context, string) (string, error) { panic("boom") }),
	))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	fragments, err := collectFragments(t, client.Submit(context.Background(), SubmitRequest{
		Transcript: "do it",
		Streaming:  true,
		OnEvent:    recorder.handle,
	}))
	if err != nil {
		t.Fatalf("tool failures must not fail the exchange: %v", err)
	}
	if !slices.Equal(fragments, []string{"Sorry, that did not work."}) {
		t.Fatalf("unexpected fragments %q", fragments)
	}

	_, continuation := llm.call(1)
	calls := continuation.ToolRounds[0].ToolCalls
	if len(calls) != 3 {
		t.Fatalf("expected 3 tool results, got %d", len(calls))
	}
	ids := map[string]bool{}
	for _, call := range calls {
		if call.ID == "" || ids[call.ID] {
			t.Fatalf("expected unique generated ids, got %+v", calls)
		}
		ids[call.ID] = true
	}
	if !strings.Contains(calls[0].Response, "service down") {
		t.Fatalf("expected error text in result, got %q", calls[0].Response)
	}
	if !strings.Contains(calls[1].Response, "panicked") {
		t.Fatalf("expected panic text in result, got %q", calls[1].Response)
	}
	if !strings.Contains(calls[2].Response, "not available") {
		t.Fatalf("expected missing tool text in result, got %q", calls[2].Response)
	}
	if recorder.count(events.KindToolCallFailed) != 3 {
		t.Fatalf("expected 3 tool failure events, got %d", recorder.count(events.KindToolCallFailed))
	}
}

func TestSubmitStopsOfferingToolsAfterMaxRounds(t *testing.T) {
	toolPass := streamPass{chunks: []llms.StreamChunk{toolCallChunkStub{call: llms.ToolCall{ID: "x", Name: "loop"}}}}
	llm := &streamLLMStub{passes: []streamPass{toolPass, toolPass, {chunks: []llms.StreamChunk{contentChunkStub("Done.")}}}}
	client, err := NewExchangeClient(llm,
		WithMaxToolRounds(2),
		WithTools(echoTool("loop", func(context.Context, string) (string, error) { return "again", nil })),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	fragments, err := collectFragments(t, client.Submit(context.Background(), SubmitRequest{Transcript: "go", Streaming: true}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !slices.Equal(fragments, []string{"Done."}) {
		t.Fatalf("unexpected fragments %q", fragments)
	}
	if llm.calls() != 3 {
		t.Fatalf("expected 3 requests, got %d", llm.calls())
	}
	if _, last := llm.call(2); len(last.Tools) != 0 {
		t.Fatalf("expected the last request to be sent without tools")
	}
}

func TestSubmitPropagatesStreamError(t *testing.T) {
	streamErr := errors.New("status 500")
	llm := &streamLLMStub{passes: []streamPass{{chunks: []llms.StreamChunk{contentChunkStub("Partial")}, err: streamErr}}}
	client, err := NewExchangeClient(llm)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	fragments, err := collectFragments(t, client.Submit(context.Background(), SubmitRequest{Transcript: "hi", Streaming: true}))
	if !errors.Is(err, streamErr) {
		t.Fatalf("expected stream error, got %v", err)
	}
	if !slices.Equal(fragments, []string{"Partial"}) {
		t.Fatalf("unexpected fragments %q", fragments)
	}
}

func TestSubmitNonStreamingModeReturnsSingleFragment(t *testing.T) {
	llm := &promptLLMStub{responses: []*llms.Response{
		{ToolCalls: []llms.ToolCall{{ID: "1", Name: "calculate", Arguments: `{"expression":"2+2"}`}}},
		{Content: "Two plus two is four."},
	}}
	client, err := NewExchangeClient(llm, WithTools(
		echoTool("calculate", func(_ context.Context, args string) (string, error) { return "2+2 = 4", nil }),
	))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	fragments, err := collectFragments(t, client.Submit(context.Background(), SubmitRequest{Transcript: "2+2?", Streaming: true}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !slices.Equal(fragments, []string{"Two plus two is four."}) {
		t.Fatalf("unexpected fragments %q", fragments)
	}
	if got := llm.options[1].ToolRounds[0].ToolCalls[0].Response; got != "2+2 = 4" {
		t.Fatalf("expected tool result in continuation, got %q", got)
	}
}

func TestSubmitNonStreamingModeAppliesToolTextPolicy(t *testing.T) {
	testCases := []struct {
		name     string
		policy   ToolTextPolicy
		expected []string
	}{
		{name: "speak", policy: SpeakPreToolText, expected: []string{"Let me check.", "It is sunny."}},
		{name: "discard", policy: DiscardPreToolText, expected: []string{"It is sunny."}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			llm := &promptLLMStub{responses: []*llms.Response{
				{Content: "Let me check.", ToolCalls: []llms.ToolCall{{ID: "1", Name: "get_weather", Arguments: `{"city":"Zagreb"}`}}},
				{Content: "It is sunny."},
			}}
			client, err := NewExchangeClient(llm,
				WithToolTextPolicy(tc.policy),
				WithTools(echoTool("get_weather", func(context.Context, string) (string, error) { return "sunny", nil })),
			)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			fragments, err := collectFragments(t, client.Submit(context.Background(), SubmitRequest{Transcript: "weather?"}))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !slices.Equal(fragments, tc.expected) {
				t.Fatalf("unexpected fragments %q", fragments)
			}
		})
	}
}

func TestSubmitStreamCannotBeRestarted(t *testing.T) {
	llm := &streamLLMStub{passes: []streamPass{{chunks: []llms.StreamChunk{contentChunkStub("Once.")}}}}
	client, err := NewExchangeClient(llm)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stream := client.Submit(context.Background(), SubmitRequest{Transcript: "hi", Streaming: true})
	if _, err := collectFragments(t, stream); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := collectFragments(t, stream); err == nil {
		t.Fatalf("expected second iteration to fail")
	}
	if llm.calls() != 1 {
		t.Fatalf("expected a single request, got %d", llm.calls())
	}
}
