package groq

import (
	"github.com/invopop/jsonschema"
	"github.com/jinzhu/copier"
	"github.com/koscakluka/ema-voice/core/llms"
)

type message struct {
	Role       messageRole `json:"role"`
	Content    string      `json:"content"`
	ToolCallID string      `json:"tool_call_id,omitempty"`
	ToolCalls  []toolCall  `json:"tool_calls,omitempty"`
}

type messageRole string

const (
	messageRoleSystem    messageRole = "system"
	messageRoleUser      messageRole = "user"
	messageRoleAssistant messageRole = "assistant"
	messageRoleTool      messageRole = "tool"
)

type toolCall struct {
	Index    int              `json:"index"`
	ID       string           `json:"id,omitempty"`
	Type     string           `json:"type,omitempty"`
	Function toolCallFunction `json:"function"`
}

type toolCallFunction struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments"`
}

// Tool is the wire representation of [llms.Tool]
type Tool struct {
	Type     string       `json:"type"`
	Function ToolFunction `json:"function"`
}

type ToolFunction struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Parameters  *jsonschema.Schema `json:"parameters,omitempty"`
}

func toTools(tools []llms.Tool) []Tool {
	if len(tools) == 0 {
		return nil
	}

	var wireTools []Tool
	if err := copier.Copy(&wireTools, tools); err != nil {
		logger.Error("failed to copy tool definitions", "error", err)
		return nil
	}
	return wireTools
}

func toMessages(prompt string, options llms.PromptOptions) []message {
	messages := []message{}
	if options.Instructions != "" {
		messages = append(messages, message{
			Role:    messageRoleSystem,
			Content: options.Instructions,
		})
	}

	for _, msg := range options.History {
		if msg.Content == "" {
			continue
		}
		role := messageRoleUser
		if msg.Role == llms.RoleAssistant {
			role = messageRoleAssistant
		}
		messages = append(messages, message{Role: role, Content: msg.Content})
	}

	messages = append(messages, message{
		Role:    messageRoleUser,
		Content: prompt,
	})

	for _, round := range options.ToolRounds {
		msg := message{Role: messageRoleAssistant, Content: round.Content}
		responseMsgs := []message{}
		for i, tCall := range round.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, toolCall{
				Index: i,
				ID:    tCall.ID,
				Type:  "function",
				Function: toolCallFunction{
					Name:      tCall.Name,
					Arguments: tCall.Arguments,
				},
			})
			responseMsgs = append(responseMsgs, message{
				Role:       messageRoleTool,
				Content:    tCall.Response,
				ToolCallID: tCall.ID,
			})
		}

		messages = append(messages, msg)
		messages = append(messages, responseMsgs...)
	}
	return messages
}
