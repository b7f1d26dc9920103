package gemini

import (
	"context"
	"slices"
	"testing"

	"github.com/koscakluka/ema-voice/core/llms"
	"google.golang.org/genai"
)

func TestToSchemaKeepsPropertiesInDeclarationOrder(t *testing.T) {
	tool := llms.NewTool("get_current_datetime", "time", func(context.Context, struct {
		Timezone string `json:"timezone,omitempty" jsonschema_description:"IANA timezone"`
		Format   string `json:"format"`
	}) (string, error) {
		return "", nil
	})

	schema := toSchema(tool.Function.Parameters)
	if schema.Type != genai.TypeObject {
		t.Fatalf("expected object schema, got %q", schema.Type)
	}
	if !slices.Equal(schema.PropertyOrdering, []string{"timezone", "format"}) {
		t.Fatalf("unexpected property ordering %v", schema.PropertyOrdering)
	}
	if schema.Properties["timezone"].Type != genai.TypeString {
		t.Fatalf("expected string timezone, got %q", schema.Properties["timezone"].Type)
	}
	if schema.Properties["timezone"].Description != "IANA timezone" {
		t.Fatalf("expected description to carry over, got %q", schema.Properties["timezone"].Description)
	}
	if !slices.Equal(schema.Required, []string{"format"}) {
		t.Fatalf("unexpected required list %v", schema.Required)
	}
}

func TestToContentsMapsRolesAndToolRounds(t *testing.T) {
	contents := toContents("and tomorrow?", llms.NewPromptOptions(
		llms.WithHistory(
			llms.Message{Role: llms.RoleUser, Content: "weather today?"},
			llms.Message{Role: llms.RoleAssistant, Content: "Sunny."},
			llms.Message{Role: llms.RoleAssistant, Content: ""},
		),
		llms.WithToolRounds(llms.ToolRound{ToolCalls: []llms.ToolCall{
			{ID: "1", Name: "get_weather", Arguments: `{"city":"Split"}`, Response: "Rain"},
		}}),
	))

	roles := []string{}
	for _, content := range contents {
		roles = append(roles, content.Role)
	}
	if !slices.Equal(roles, []string{"user", "model", "user", "model", "user"}) {
		t.Fatalf("unexpected roles %v", roles)
	}

	call := contents[3].Parts[0].FunctionCall
	if call == nil || call.Name != "get_weather" || call.Args["city"] != "Split" {
		t.Fatalf("unexpected function call %+v", call)
	}
	response := contents[4].Parts[0].FunctionResponse
	if response == nil || response.ID != "1" || response.Response["result"] != "Rain" {
		t.Fatalf("unexpected function response %+v", response)
	}
}

func TestResponseChunksSkipsThoughtsAndEncodesArguments(t *testing.T) {
	chunks, usage := responseChunks(&genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{
				{Text: "thinking", Thought: true},
				{Text: "Hello"},
				{FunctionCall: &genai.FunctionCall{Name: "calculate", Args: map[string]any{"expression": "2*3"}}},
			}},
		}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{TotalTokenCount: 12},
	})

	if len(chunks) != 2 {
		t.Fatalf("expected two chunks, got %d", len(chunks))
	}
	if content, ok := chunks[0].(StreamContentChunk); !ok || content.Content() != "Hello" {
		t.Fatalf("expected content chunk, got %#v", chunks[0])
	}
	toolCall, ok := chunks[1].(StreamToolCallChunk)
	if !ok {
		t.Fatalf("expected tool call chunk, got %#v", chunks[1])
	}
	if toolCall.ToolCall().Arguments != `{"expression":"2*3"}` {
		t.Fatalf("unexpected arguments %q", toolCall.ToolCall().Arguments)
	}
	if usage == nil || usage.TotalTokens != 12 {
		t.Fatalf("expected usage to be reported, got %+v", usage)
	}
}
