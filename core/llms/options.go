package llms

import "slices"

// PromptOptions contains everything an LLM client needs besides the prompt
// itself to produce a response.
type PromptOptions struct {
	Instructions string
	History      []Message
	ToolRounds   []ToolRound
	Tools        []Tool
}

type PromptOption func(*PromptOptions)

// WithInstructions sets the system instructions for the prompt.
// Repeating this option will overwrite the previous instructions.
func WithInstructions(instructions string) PromptOption {
	return func(opts *PromptOptions) {
		opts.Instructions = instructions
	}
}

// WithHistory adds prior conversation messages to the prompt, oldest first.
// Repeating this option will sequentially add more messages.
func WithHistory(messages ...Message) PromptOption {
	return func(opts *PromptOptions) {
		opts.History = append(opts.History, messages...)
	}
}

// WithToolRounds adds the completed tool rounds of the current exchange, so
// the LLM can continue from the tool results.
func WithToolRounds(rounds ...ToolRound) PromptOption {
	return func(opts *PromptOptions) {
		opts.ToolRounds = append(opts.ToolRounds, rounds...)
	}
}

// WithTools adds tools to the prompt
func WithTools(tools ...Tool) PromptOption {
	return func(opts *PromptOptions) {
		opts.Tools = append(opts.Tools, tools...)
	}
}

func NewPromptOptions(opts ...PromptOption) PromptOptions {
	options := PromptOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	options.History = slices.Clone(options.History)
	return options
}
