package memory

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	DefaultCollection = "conversations"
	// DefaultVectorSize matches the Gemini text embedding model.
	DefaultVectorSize = 768
)

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Snippet is a stored message similar to a query.
type Snippet struct {
	Score          float64
	Role           string
	Content        string
	ConversationID string
}

type collectionInfo struct {
	Name string `json:"name"`
}

type pointPayload struct {
	UserID         string `json:"user_id"`
	ConversationID string `json:"conversation_id"`
	Content        string `json:"content"`
	Role           string `json:"role"`
	CreatedAt      string `json:"created_at"`
}

// VectorStore keeps embedded conversation messages in a Qdrant collection
// for semantic search. The collection and its payload indexes are created
// on first use.
type VectorStore struct {
	url        string
	apiKey     string
	collection string
	vectorSize int
	embedder   Embedder
	httpClient *http.Client
	now        func() time.Time

	ensureMu sync.Mutex
	ensured  bool
}

type VectorStoreOption func(*VectorStore)

// WithQdrantURL overrides the QDRANT_URL environment variable
func WithQdrantURL(url string) VectorStoreOption {
	return func(s *VectorStore) { s.url = strings.TrimRight(url, "/") }
}

// WithQdrantAPIKey overrides the QDRANT_API_KEY environment variable
func WithQdrantAPIKey(apiKey string) VectorStoreOption {
	return func(s *VectorStore) { s.apiKey = apiKey }
}

func WithCollection(name string, vectorSize int) VectorStoreOption {
	return func(s *VectorStore) {
		s.collection = name
		s.vectorSize = vectorSize
	}
}

func NewVectorStore(embedder Embedder, opts ...VectorStoreOption) (*VectorStore, error) {
	store := &VectorStore{
		collection: DefaultCollection,
		vectorSize: DefaultVectorSize,
		embedder:   embedder,
		httpClient: newHTTPClient(),
		now:        time.Now,
	}
	if url, ok := os.LookupEnv("QDRANT_URL"); ok {
		store.url = strings.TrimRight(url, "/")
	}
	if apiKey, ok := os.LookupEnv("QDRANT_API_KEY"); ok {
		store.apiKey = apiKey
	}
	for _, opt := range opts {
		opt(store)
	}

	if store.embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if store.url == "" || store.apiKey == "" {
		return nil, fmt.Errorf("qdrant url or api key not found")
	}
	return store, nil
}

func (s *VectorStore) header() http.Header {
	return http.Header{"api-key": []string{s.apiKey}}
}

func (s *VectorStore) collectionURL(path string) string {
	return s.url + "/collections/" + s.collection + path
}

// EnsureCollection creates the collection and its user_id and
// conversation_id keyword indexes when the collection does not exist.
func (s *VectorStore) EnsureCollection(ctx context.Context) error {
	s.ensureMu.Lock()
	defer s.ensureMu.Unlock()
	if s.ensured {
		return nil
	}

	ctx, span := tracer.Start(ctx, "ensure collection")
	defer span.End()

	var collections struct {
		Result struct {
			Collections []collectionInfo `json:"collections"`
		} `json:"result"`
	}
	if err := doJSON(ctx, s.httpClient, http.MethodGet, s.url+"/collections", s.header(), nil, &collections); err != nil {
		err = fmt.Errorf("failed to list collections: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	exists := slices.ContainsFunc(collections.Result.Collections, func(c collectionInfo) bool {
		return c.Name == s.collection
	})
	if !exists {
		err := doJSON(ctx, s.httpClient, http.MethodPut, s.collectionURL(""), s.header(), map[string]any{
			"vectors": map[string]any{"size": s.vectorSize, "distance": "Cosine"},
		}, nil)
		if err != nil {
			err = fmt.Errorf("failed to create collection: %w", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		logger.Info("created vector collection", "collection", s.collection)

		for _, field := range []string{"user_id", "conversation_id"} {
			err := doJSON(ctx, s.httpClient, http.MethodPut, s.collectionURL("/index"), s.header(), map[string]any{
				"field_name":   field,
				"field_schema": "keyword",
			}, nil)
			if err != nil {
				err = fmt.Errorf("failed to create %s index: %w", field, err)
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return err
			}
		}
	}

	s.ensured = true
	return nil
}

// Store embeds content and upserts it as a new point.
func (s *VectorStore) Store(ctx context.Context, userID, conversationID, role, content string) error {
	ctx, span := tracer.Start(ctx, "store message vector")
	defer span.End()
	span.SetAttributes(attribute.String("message.role", role))

	if err := s.EnsureCollection(ctx); err != nil {
		return err
	}

	vector, err := s.embedder.Embed(ctx, content)
	if err != nil {
		err = fmt.Errorf("failed to embed message: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	err = doJSON(ctx, s.httpClient, http.MethodPut, s.collectionURL("/points"), s.header(), map[string]any{
		"points": []map[string]any{{
			"id":     uuid.NewString(),
			"vector": vector,
			"payload": pointPayload{
				UserID:         userID,
				ConversationID: conversationID,
				Content:        content,
				Role:           role,
				CreatedAt:      s.now().UTC().Format(time.RFC3339),
			},
		}},
	}, nil)
	if err != nil {
		err = fmt.Errorf("failed to upsert point: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// Search returns up to limit stored messages of the user most similar to
// query.
func (s *VectorStore) Search(ctx context.Context, userID, query string, limit int) ([]Snippet, error) {
	ctx, span := tracer.Start(ctx, "search message vectors")
	defer span.End()

	if err := s.EnsureCollection(ctx); err != nil {
		return nil, err
	}

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		err = fmt.Errorf("failed to embed query: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	var response struct {
		Result []struct {
			Score   float64      `json:"score"`
			Payload pointPayload `json:"payload"`
		} `json:"result"`
	}
	err = doJSON(ctx, s.httpClient, http.MethodPost, s.collectionURL("/points/search"), s.header(), map[string]any{
		"vector":       vector,
		"limit":        limit,
		"filter":       matchFilter("user_id", userID),
		"with_payload": true,
	}, &response)
	if err != nil {
		err = fmt.Errorf("failed to search points: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	snippets := make([]Snippet, 0, len(response.Result))
	for _, point := range response.Result {
		snippets = append(snippets, Snippet{
			Score:          point.Score,
			Role:           point.Payload.Role,
			Content:        point.Payload.Content,
			ConversationID: point.Payload.ConversationID,
		})
	}
	span.SetAttributes(attribute.Int("snippets.count", len(snippets)))
	return snippets, nil
}

// DeleteConversation removes every stored message of a conversation.
func (s *VectorStore) DeleteConversation(ctx context.Context, conversationID string) error {
	return s.deleteWhere(ctx, "conversation_id", conversationID)
}

// DeleteUser removes every stored message of a user.
func (s *VectorStore) DeleteUser(ctx context.Context, userID string) error {
	return s.deleteWhere(ctx, "user_id", userID)
}

func (s *VectorStore) deleteWhere(ctx context.Context, key, value string) error {
	ctx, span := tracer.Start(ctx, "delete message vectors")
	defer span.End()
	span.SetAttributes(attribute.String("filter.key", key))

	err := doJSON(ctx, s.httpClient, http.MethodPost, s.collectionURL("/points/delete"), s.header(), map[string]any{
		"filter": matchFilter(key, value),
	}, nil)
	if err != nil {
		err = fmt.Errorf("failed to delete points: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

func matchFilter(key, value string) map[string]any {
	return map[string]any{
		"must": []map[string]any{{
			"key":   key,
			"match": map[string]any{"value": value},
		}},
	}
}
