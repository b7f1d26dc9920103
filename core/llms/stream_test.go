package llms

import "testing"

type contentChunk string

func (contentChunk) FinishReason() *string { return nil }
func (c contentChunk) Content() string     { return string(c) }

type toolCallChunk struct{ call ToolCall }

func (toolCallChunk) FinishReason() *string { return nil }
func (c toolCallChunk) ToolCall() ToolCall  { return c.call }

type usageChunk struct{}

func (usageChunk) FinishReason() *string { return nil }
func (usageChunk) Usage() Usage          { return Usage{TotalTokens: 3} }

func TestCollectResponse(t *testing.T) {
	response := CollectResponse([]StreamChunk{
		contentChunk("Let me "),
		toolCallChunk{call: ToolCall{ID: "call-1", Name: "get_weather"}},
		contentChunk("check."),
		usageChunk{},
	})

	if response.Content != "Let me check." {
		t.Fatalf("unexpected content %q", response.Content)
	}
	if len(response.ToolCalls) != 1 || response.ToolCalls[0].ID != "call-1" {
		t.Fatalf("unexpected tool calls %+v", response.ToolCalls)
	}
}
