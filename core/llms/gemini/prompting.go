package gemini

import (
	"context"
	"fmt"

	"github.com/koscakluka/ema-voice/core/llms"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Prompt sends a single non-streaming request. Tool calls are returned to the
// caller and not executed.
func (c *Client) Prompt(ctx context.Context, prompt string, opts ...llms.PromptOption) (*llms.Response, error) {
	ctx, span := tracer.Start(ctx, "prompt llm")
	defer span.End()
	span.SetAttributes(attribute.String("request.model", c.model))

	options := llms.NewPromptOptions(opts...)
	resp, err := c.client.Models.GenerateContent(ctx, c.model, toContents(prompt, options), toConfig(options))
	if err != nil {
		err = fmt.Errorf("failed to prompt gemini: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	chunks, usage := responseChunks(resp)
	if usage != nil {
		span.SetAttributes(attribute.Int("usage.total", usage.TotalTokens))
	}

	return llms.CollectResponse(chunks), nil
}
