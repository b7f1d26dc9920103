package orchestration

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/koscakluka/ema-voice/core/events"
	"github.com/koscakluka/ema-voice/core/llms"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const defaultMaxToolRounds = 5

var ErrNoEndpoint = errors.New("no exchange endpoint configured")

// LLM is either an [LLMWithStream] or an [LLMWithPrompt]. Endpoints
// implementing both serve the streaming and the single response mode.
type LLM any

type LLMWithStream interface {
	PromptWithStream(ctx context.Context, prompt string, opts ...llms.PromptOption) llms.Stream
}

type LLMWithPrompt interface {
	Prompt(ctx context.Context, prompt string, opts ...llms.PromptOption) (*llms.Response, error)
}

// ToolTextPolicy decides what happens to text streamed in a pass that ends
// up requesting tools.
type ToolTextPolicy int

const (
	// SpeakPreToolText emits text as soon as it arrives, including text that
	// precedes a tool call in the same pass.
	SpeakPreToolText ToolTextPolicy = iota
	// DiscardPreToolText holds back the text of each pass and drops it when
	// the pass requests tools.
	DiscardPreToolText
)

// SubmitRequest is one user turn sent to the exchange.
type SubmitRequest struct {
	Transcript string
	// History holds prior messages, oldest first.
	History      []llms.Message
	Instructions string
	// Streaming selects the streaming mode. Endpoints without streaming
	// support always answer with a single fragment.
	Streaming bool
	// OnEvent receives tool call events, may be nil.
	OnEvent func(events.Event)
}

// ExchangeClient sends turns to an LLM endpoint and runs the tool calls it
// requests until the endpoint produces a final answer.
type ExchangeClient struct {
	endpoint       LLM
	tools          []llms.Tool
	maxToolRounds  int
	toolTextPolicy ToolTextPolicy
}

type ExchangeOption func(*ExchangeClient)

func WithTools(tools ...llms.Tool) ExchangeOption {
	return func(c *ExchangeClient) { c.tools = append(c.tools, tools...) }
}

// WithMaxToolRounds bounds the tool round trips of one turn. The request
// after the last round is sent without tools.
func WithMaxToolRounds(rounds int) ExchangeOption {
	return func(c *ExchangeClient) {
		if rounds >= 0 {
			c.maxToolRounds = rounds
		}
	}
}

func WithToolTextPolicy(policy ToolTextPolicy) ExchangeOption {
	return func(c *ExchangeClient) { c.toolTextPolicy = policy }
}

func NewExchangeClient(endpoint LLM, opts ...ExchangeOption) (*ExchangeClient, error) {
	if endpoint == nil {
		return nil, ErrNoEndpoint
	}
	switch endpoint.(type) {
	case LLMWithStream, LLMWithPrompt:
	default:
		return nil, fmt.Errorf("unsupported exchange endpoint %T", endpoint)
	}

	client := &ExchangeClient{
		endpoint:       endpoint,
		maxToolRounds:  defaultMaxToolRounds,
		toolTextPolicy: SpeakPreToolText,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Tools returns the tool catalog offered to the endpoint.
func (c *ExchangeClient) Tools() []llms.Tool {
	return append([]llms.Tool(nil), c.tools...)
}

// Submit returns the ordered response fragments of one turn. The sequence
// ends after the final answer or after the first error and cannot be
// restarted.
func (c *ExchangeClient) Submit(ctx context.Context, req SubmitRequest) iter.Seq2[string, error] {
	used := false
	return func(yield func(string, error) bool) {
		if used {
			yield("", fmt.Errorf("exchange stream already consumed"))
			return
		}
		used = true

		ctx, span := tracer.Start(ctx, "submit exchange")
		defer span.End()
		span.SetAttributes(
			attribute.Bool("request.streaming", req.Streaming),
			attribute.Int("request.history_length", len(req.History)),
			attribute.Int("request.tools", len(c.tools)),
		)

		onEvent := req.OnEvent
		if onEvent == nil {
			onEvent = noopEventEmitter
		}

		var err error
		streamer, canStream := c.endpoint.(LLMWithStream)
		prompter, canPrompt := c.endpoint.(LLMWithPrompt)
		switch {
		case canStream && (req.Streaming || !canPrompt):
			err = c.stream(ctx, streamer, req, onEvent, yield)
		case canPrompt:
			err = c.prompt(ctx, prompter, req, onEvent, yield)
		default:
			err = ErrNoEndpoint
		}

		if err != nil && !errors.Is(err, errStopped) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			yield("", err)
		}
	}
}

// errStopped reports that the consumer stopped iterating.
var errStopped = errors.New("consumer stopped")

func (c *ExchangeClient) promptOptions(req SubmitRequest, rounds []llms.ToolRound) []llms.PromptOption {
	opts := []llms.PromptOption{
		llms.WithInstructions(req.Instructions),
		llms.WithHistory(req.History...),
	}
	if len(rounds) > 0 {
		opts = append(opts, llms.WithToolRounds(rounds...))
	}
	if len(c.tools) > 0 && len(rounds) < c.maxToolRounds {
		opts = append(opts, llms.WithTools(c.tools...))
	}
	return opts
}

func (c *ExchangeClient) stream(
	ctx context.Context,
	endpoint LLMWithStream,
	req SubmitRequest,
	onEvent eventEmitter,
	yield func(string, error) bool,
) error {
	var rounds []llms.ToolRound
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		stream := endpoint.PromptWithStream(ctx, req.Transcript, c.promptOptions(req, rounds)...)

		var content strings.Builder
		var held []string
		var toolCalls []llms.ToolCall
		for chunk, err := range stream.Chunks(ctx) {
			if err != nil {
				return fmt.Errorf("failed to stream llm response: %w", err)
			}

			switch chunk := chunk.(type) {
			case llms.StreamContentChunk:
				text := chunk.Content()
				if text == "" {
					continue
				}
				content.WriteString(text)
				if len(toolCalls) > 0 {
					continue
				}
				if c.toolTextPolicy == DiscardPreToolText {
					held = append(held, text)
					continue
				}
				if !yield(text, nil) {
					return errStopped
				}

			case llms.StreamToolCallChunk:
				toolCalls = append(toolCalls, chunk.ToolCall())
			}
		}

		if len(toolCalls) == 0 || len(rounds) >= c.maxToolRounds {
			for _, text := range held {
				if !yield(text, nil) {
					return errStopped
				}
			}
			return nil
		}

		rounds = append(rounds, llms.ToolRound{
			Content:   content.String(),
			ToolCalls: c.executeToolCalls(ctx, toolCalls, onEvent),
		})
	}
}

func (c *ExchangeClient) prompt(
	ctx context.Context,
	endpoint LLMWithPrompt,
	req SubmitRequest,
	onEvent eventEmitter,
	yield func(string, error) bool,
) error {
	var rounds []llms.ToolRound
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		response, err := endpoint.Prompt(ctx, req.Transcript, c.promptOptions(req, rounds)...)
		if err != nil {
			return fmt.Errorf("failed to prompt llm: %w", err)
		}
		if response == nil {
			return nil
		}

		if len(response.ToolCalls) == 0 || len(rounds) >= c.maxToolRounds {
			if response.Content != "" && !yield(response.Content, nil) {
				return errStopped
			}
			return nil
		}

		if c.toolTextPolicy == SpeakPreToolText && response.Content != "" && !yield(response.Content, nil) {
			return errStopped
		}
		rounds = append(rounds, llms.ToolRound{
			Content:   response.Content,
			ToolCalls: c.executeToolCalls(ctx, response.ToolCalls, onEvent),
		})
	}
}
