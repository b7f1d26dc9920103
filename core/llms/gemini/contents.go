package gemini

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
	"github.com/koscakluka/ema-voice/core/llms"
	"google.golang.org/genai"
)

const (
	roleUser  = "user"
	roleModel = "model"
)

func toConfig(options llms.PromptOptions) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}
	if options.Instructions != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: options.Instructions}},
		}
	}
	if tools := toTools(options.Tools); tools != nil {
		config.Tools = tools
	}
	return config
}

func toContents(prompt string, options llms.PromptOptions) []*genai.Content {
	contents := []*genai.Content{}
	for _, msg := range options.History {
		if msg.Content == "" {
			continue
		}
		role := roleUser
		if msg.Role == llms.RoleAssistant {
			role = roleModel
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: msg.Content}},
		})
	}

	contents = append(contents, &genai.Content{
		Role:  roleUser,
		Parts: []*genai.Part{{Text: prompt}},
	})

	for _, round := range options.ToolRounds {
		call := &genai.Content{Role: roleModel}
		if round.Content != "" {
			call.Parts = append(call.Parts, &genai.Part{Text: round.Content})
		}
		response := &genai.Content{Role: roleUser}
		for _, toolCall := range round.ToolCalls {
			args := map[string]any{}
			if toolCall.Arguments != "" {
				if err := json.Unmarshal([]byte(toolCall.Arguments), &args); err != nil {
					logger.Warn("failed to decode tool call arguments", "tool", toolCall.Name, "error", err)
				}
			}
			call.Parts = append(call.Parts, &genai.Part{FunctionCall: &genai.FunctionCall{
				ID:   toolCall.ID,
				Name: toolCall.Name,
				Args: args,
			}})
			response.Parts = append(response.Parts, &genai.Part{FunctionResponse: &genai.FunctionResponse{
				ID:       toolCall.ID,
				Name:     toolCall.Name,
				Response: map[string]any{"result": toolCall.Response},
			}})
		}
		contents = append(contents, call, response)
	}

	return contents
}

func toTools(tools []llms.Tool) []*genai.Tool {
	if len(tools) == 0 {
		return nil
	}

	declarations := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, tool := range tools {
		declarations = append(declarations, &genai.FunctionDeclaration{
			Name:        tool.Function.Name,
			Description: tool.Function.Description,
			Parameters:  toSchema(tool.Function.Parameters),
		})
	}
	return []*genai.Tool{{FunctionDeclarations: declarations}}
}

// toSchema converts the reflected JSON schema into the OpenAPI subset Gemini
// accepts.
func toSchema(schema *jsonschema.Schema) *genai.Schema {
	if schema == nil {
		return nil
	}

	converted := &genai.Schema{
		Type:        toType(schema.Type),
		Description: schema.Description,
		Required:    schema.Required,
	}
	for _, value := range schema.Enum {
		if value, ok := value.(string); ok {
			converted.Enum = append(converted.Enum, value)
		}
	}
	if schema.Items != nil {
		converted.Items = toSchema(schema.Items)
	}
	if schema.Properties != nil && schema.Properties.Len() > 0 {
		converted.Properties = make(map[string]*genai.Schema, schema.Properties.Len())
		for pair := schema.Properties.Oldest(); pair != nil; pair = pair.Next() {
			converted.Properties[pair.Key] = toSchema(pair.Value)
			converted.PropertyOrdering = append(converted.PropertyOrdering, pair.Key)
		}
	}
	return converted
}

func toType(schemaType string) genai.Type {
	switch schemaType {
	case "string":
		return genai.TypeString
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeUnspecified
	}
}
