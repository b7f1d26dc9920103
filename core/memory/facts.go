package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/koscakluka/ema-voice/core/llms"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const defaultMem0URL = "https://api.mem0.ai/v1"

// Fact is a statement about the user extracted by Mem0.
type Fact struct {
	ID     string  `json:"id"`
	Memory string  `json:"memory"`
	Score  float64 `json:"score"`
	// UpdatedAt is only set when listing.
	UpdatedAt string `json:"updated_at,omitempty"`
}

// FactStore is a Mem0 client. Mem0 extracts facts from the messages it is
// given and returns the ones relevant to a query.
type FactStore struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

type FactStoreOption func(*FactStore)

// WithMem0APIKey overrides the MEM0_API_KEY environment variable
func WithMem0APIKey(apiKey string) FactStoreOption {
	return func(s *FactStore) { s.apiKey = apiKey }
}

func WithMem0URL(url string) FactStoreOption {
	return func(s *FactStore) { s.baseURL = strings.TrimRight(url, "/") }
}

func NewFactStore(opts ...FactStoreOption) (*FactStore, error) {
	store := &FactStore{
		baseURL:    defaultMem0URL,
		httpClient: newHTTPClient(),
	}
	if apiKey, ok := os.LookupEnv("MEM0_API_KEY"); ok {
		store.apiKey = apiKey
	}
	for _, opt := range opts {
		opt(store)
	}

	if store.apiKey == "" {
		return nil, fmt.Errorf("mem0 api key not found")
	}
	return store, nil
}

func (s *FactStore) header() http.Header {
	return http.Header{"Authorization": []string{"Token " + s.apiKey}}
}

// Search returns up to limit facts about the user ranked by relevance to
// query.
func (s *FactStore) Search(ctx context.Context, userID, query string, limit int) ([]Fact, error) {
	ctx, span := tracer.Start(ctx, "search facts")
	defer span.End()

	var raw json.RawMessage
	err := doJSON(ctx, s.httpClient, http.MethodPost, s.baseURL+"/memories/search/", s.header(), map[string]any{
		"query":   query,
		"user_id": userID,
		"limit":   limit,
	}, &raw)
	if err != nil {
		err = fmt.Errorf("failed to search facts: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	facts, err := decodeFacts(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode facts: %w", err)
	}
	span.SetAttributes(attribute.Int("facts.count", len(facts)))
	return facts, nil
}

// decodeFacts accepts both the {"results": [...]} envelope and a bare array.
func decodeFacts(raw json.RawMessage) ([]Fact, error) {
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "[") {
		var facts []Fact
		if err := json.Unmarshal(raw, &facts); err != nil {
			return nil, err
		}
		return facts, nil
	}

	var envelope struct {
		Results []Fact `json:"results"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, err
	}
	return envelope.Results, nil
}

// Add hands an exchange to Mem0, which extracts and stores the facts in it.
func (s *FactStore) Add(ctx context.Context, userID string, messages []llms.Message) error {
	ctx, span := tracer.Start(ctx, "add facts")
	defer span.End()

	type message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	body := struct {
		Messages []message `json:"messages"`
		UserID   string    `json:"user_id"`
	}{UserID: userID}
	for _, m := range messages {
		body.Messages = append(body.Messages, message{Role: string(m.Role), Content: m.Content})
	}

	if err := doJSON(ctx, s.httpClient, http.MethodPost, s.baseURL+"/memories/", s.header(), body, nil); err != nil {
		err = fmt.Errorf("failed to add facts: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// All lists every fact stored about the user.
func (s *FactStore) All(ctx context.Context, userID string) ([]Fact, error) {
	ctx, span := tracer.Start(ctx, "list facts")
	defer span.End()

	var raw json.RawMessage
	if err := doJSON(ctx, s.httpClient, http.MethodGet, s.userURL(userID), s.header(), nil, &raw); err != nil {
		err = fmt.Errorf("failed to list facts: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	facts, err := decodeFacts(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode facts: %w", err)
	}
	span.SetAttributes(attribute.Int("facts.count", len(facts)))
	return facts, nil
}

// Delete removes a single fact.
func (s *FactStore) Delete(ctx context.Context, factID string) error {
	ctx, span := tracer.Start(ctx, "delete fact")
	defer span.End()

	endpoint := s.baseURL + "/memories/" + url.PathEscape(factID) + "/"
	if err := doJSON(ctx, s.httpClient, http.MethodDelete, endpoint, s.header(), nil, nil); err != nil {
		err = fmt.Errorf("failed to delete fact: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// DeleteAll removes every fact stored about the user.
func (s *FactStore) DeleteAll(ctx context.Context, userID string) error {
	ctx, span := tracer.Start(ctx, "delete all facts")
	defer span.End()

	if err := doJSON(ctx, s.httpClient, http.MethodDelete, s.userURL(userID), s.header(), nil, nil); err != nil {
		err = fmt.Errorf("failed to delete facts: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

func (s *FactStore) userURL(userID string) string {
	return s.baseURL + "/memories/?" + url.Values{"user_id": {userID}}.Encode()
}
