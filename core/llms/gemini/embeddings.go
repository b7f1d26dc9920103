package gemini

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"google.golang.org/genai"
)

// Embedder produces text embeddings used by the vector memory.
type Embedder struct {
	client *Client
	model  string
}

func (c *Client) Embedder(model string) *Embedder {
	if model == "" {
		model = DefaultEmbeddingModel
	}
	return &Embedder{client: c, model: model}
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, span := tracer.Start(ctx, "embed text")
	defer span.End()
	span.SetAttributes(attribute.String("request.model", e.model))

	resp, err := e.client.client.Models.EmbedContent(ctx, e.model, []*genai.Content{{
		Role:  roleUser,
		Parts: []*genai.Part{{Text: text}},
	}}, nil)
	if err != nil {
		err = fmt.Errorf("failed to embed text: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
		return nil, fmt.Errorf("no embeddings returned")
	}
	span.SetAttributes(attribute.Int("response.dimensions", len(resp.Embeddings[0].Values)))
	return resp.Embeddings[0].Values, nil
}
