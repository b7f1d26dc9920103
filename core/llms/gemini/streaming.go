package gemini

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/koscakluka/ema-voice/core/llms"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"google.golang.org/genai"
)

func (c *Client) PromptWithStream(_ context.Context, prompt string, opts ...llms.PromptOption) llms.Stream {
	options := llms.NewPromptOptions(opts...)
	return &Stream{
		client:   c,
		contents: toContents(prompt, options),
		config:   toConfig(options),
	}
}

type Stream struct {
	client *Client

	contents []*genai.Content
	config   *genai.GenerateContentConfig
}

func (s *Stream) Chunks(ctx context.Context) func(func(llms.StreamChunk, error) bool) {
	return func(yield func(llms.StreamChunk, error) bool) {
		ctx, span := tracer.Start(ctx, "prompt llm stream")
		defer span.End()
		span.SetAttributes(attribute.String("request.model", s.client.model))

		var toolNames []string
		for resp, err := range s.client.client.Models.GenerateContentStream(ctx, s.client.model, s.contents, s.config) {
			if err != nil {
				err = fmt.Errorf("failed to stream gemini response: %w", err)
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				yield(nil, err)
				return
			}

			chunks, usage := responseChunks(resp)
			for _, chunk := range chunks {
				if toolCall, ok := chunk.(StreamToolCallChunk); ok {
					toolNames = append(toolNames, toolCall.ToolCall().Name)
				}
				if !yield(chunk, nil) {
					return
				}
			}
			if usage != nil {
				span.SetAttributes(attribute.Int("usage.total", usage.TotalTokens))
				if !yield(StreamUsageChunk{usage: *usage}, nil) {
					return
				}
			}
		}
		span.SetAttributes(attribute.StringSlice("response.tool_calls", toolNames))
	}
}

func responseChunks(resp *genai.GenerateContentResponse) ([]llms.StreamChunk, *llms.Usage) {
	var chunks []llms.StreamChunk
	if resp == nil {
		return nil, nil
	}

	if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		candidate := resp.Candidates[0]
		var finishReason *string
		if candidate.FinishReason != "" {
			reason := string(candidate.FinishReason)
			finishReason = &reason
		}

		for _, part := range candidate.Content.Parts {
			switch {
			case part == nil, part.Thought:
				continue
			case part.FunctionCall != nil:
				arguments, err := json.Marshal(part.FunctionCall.Args)
				if err != nil {
					logger.Warn("failed to encode function call arguments", "tool", part.FunctionCall.Name, "error", err)
					arguments = []byte("{}")
				}
				chunks = append(chunks, StreamToolCallChunk{
					finishReason: finishReason,
					toolCall: llms.ToolCall{
						ID:        part.FunctionCall.ID,
						Name:      part.FunctionCall.Name,
						Arguments: string(arguments),
					},
				})
			case part.Text != "":
				chunks = append(chunks, StreamContentChunk{finishReason: finishReason, content: part.Text})
			}
		}
	}

	var usage *llms.Usage
	if resp.UsageMetadata != nil {
		usage = &llms.Usage{
			InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:  int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	return chunks, usage
}

type StreamContentChunk struct {
	finishReason *string
	content      string
}

func (s StreamContentChunk) FinishReason() *string { return s.finishReason }
func (s StreamContentChunk) Content() string       { return s.content }

type StreamToolCallChunk struct {
	finishReason *string
	toolCall     llms.ToolCall
}

func (s StreamToolCallChunk) FinishReason() *string   { return s.finishReason }
func (s StreamToolCallChunk) ToolCall() llms.ToolCall { return s.toolCall }

type StreamUsageChunk struct {
	usage llms.Usage
}

func (s StreamUsageChunk) FinishReason() *string { return nil }
func (s StreamUsageChunk) Usage() llms.Usage     { return s.usage }
