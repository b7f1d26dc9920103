package llms

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
)

// Tool is a function the LLM can request to be executed.
type Tool struct {
	Type     string       `json:"type"`
	Function ToolFunction `json:"function"`

	// Execute runs the tool with JSON encoded arguments.
	Execute func(ctx context.Context, arguments string) (string, error) `json:"-"`
}

type ToolFunction struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Parameters  *jsonschema.Schema `json:"parameters,omitempty"`
}

// NewTool creates a tool whose parameter schema is reflected from T. Fields
// are described with the `jsonschema_description` tag and are required unless
// they are tagged with omitempty.
func NewTool[T any](name, description string, execute func(context.Context, T) (string, error)) Tool {
	reflector := jsonschema.Reflector{DoNotReference: true}
	schema := reflector.Reflect(new(T))
	schema.Version = ""
	schema.ID = ""

	return Tool{
		Type: "function",
		Function: ToolFunction{
			Name:        name,
			Description: description,
			Parameters:  schema,
		},
		Execute: func(ctx context.Context, arguments string) (string, error) {
			var parameters T
			if strings.TrimSpace(arguments) != "" {
				if err := json.Unmarshal([]byte(arguments), &parameters); err != nil {
					return "", fmt.Errorf("failed to decode arguments for %s: %w", name, err)
				}
			}
			return execute(ctx, parameters)
		},
	}
}
