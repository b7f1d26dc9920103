// Package memory gives the assistant long term memory: facts about the user
// kept by Mem0 and past messages searchable by meaning in Qdrant.
package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/koscakluka/ema-voice/core/llms"
	"golang.org/x/sync/errgroup"
)

const (
	searchLimit = 5

	minFactScore    = 0.5
	minSnippetScore = 0.7
)

type FactStorage interface {
	Search(ctx context.Context, userID, query string, limit int) ([]Fact, error)
	Add(ctx context.Context, userID string, messages []llms.Message) error
	All(ctx context.Context, userID string) ([]Fact, error)
	Delete(ctx context.Context, factID string) error
	DeleteAll(ctx context.Context, userID string) error
}

type VectorStorage interface {
	Search(ctx context.Context, userID, query string, limit int) ([]Snippet, error)
	Store(ctx context.Context, userID, conversationID, role, content string) error
	DeleteConversation(ctx context.Context, conversationID string) error
	DeleteUser(ctx context.Context, userID string) error
}

// ErrNoFactStorage is returned by fact operations when no fact storage is
// configured.
var ErrNoFactStorage = errors.New("no fact storage configured")

// Manager combines the fact and the vector storage. Either can be nil.
type Manager struct {
	facts   FactStorage
	vectors VectorStorage
}

func NewManager(facts FactStorage, vectors VectorStorage) *Manager {
	return &Manager{facts: facts, vectors: vectors}
}

// Context returns the memory section for the system instructions, empty
// when nothing relevant is known. A failing backend only removes its part.
func (m *Manager) Context(ctx context.Context, userID, query string) (string, error) {
	ctx, span := tracer.Start(ctx, "get memory context")
	defer span.End()

	var facts []string
	var snippets []string

	group, groupCtx := errgroup.WithContext(ctx)
	if m.facts != nil {
		group.Go(func() error {
			results, err := m.facts.Search(groupCtx, userID, query, searchLimit)
			if err != nil {
				logger.Warn("failed to search facts", "error", err)
				return nil
			}
			for _, fact := range results {
				if fact.Score > minFactScore {
					facts = append(facts, fact.Memory)
				}
			}
			return nil
		})
	}
	if m.vectors != nil {
		group.Go(func() error {
			results, err := m.vectors.Search(groupCtx, userID, query, searchLimit)
			if err != nil {
				logger.Warn("failed to search past messages", "error", err)
				return nil
			}
			for _, snippet := range results {
				if snippet.Score > minSnippetScore {
					snippets = append(snippets, fmt.Sprintf("%s: %s", snippet.Role, snippet.Content))
				}
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return "", err
	}

	return formatContext(facts, snippets), nil
}

func formatContext(facts, snippets []string) string {
	if len(facts) == 0 && len(snippets) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("## Memory Context\n")
	if len(facts) > 0 {
		b.WriteString("Things you know about the user:\n")
		for _, fact := range facts {
			b.WriteString("- " + fact + "\n")
		}
	}
	if len(snippets) > 0 {
		if len(facts) > 0 {
			b.WriteString("\n")
		}
		b.WriteString("Relevant past conversations:\n")
		for _, snippet := range snippets {
			b.WriteString("- " + snippet + "\n")
		}
	}
	b.WriteString("\nUse this context naturally in your responses. Don't explicitly say \"based on my memory\" unless relevant.\n")
	return b.String()
}

// Store saves a completed exchange. Facts are extracted from both messages
// and each message is embedded separately, all in parallel.
func (m *Manager) Store(ctx context.Context, userID, conversationID, userMessage, assistantMessage string) error {
	ctx, span := tracer.Start(ctx, "store interaction")
	defer span.End()

	var group errgroup.Group
	if m.facts != nil {
		group.Go(func() error {
			return m.facts.Add(ctx, userID, []llms.Message{
				{Role: llms.RoleUser, Content: userMessage},
				{Role: llms.RoleAssistant, Content: assistantMessage},
			})
		})
	}
	if m.vectors != nil {
		group.Go(func() error {
			return m.vectors.Store(ctx, userID, conversationID, string(llms.RoleUser), userMessage)
		})
		group.Go(func() error {
			return m.vectors.Store(ctx, userID, conversationID, string(llms.RoleAssistant), assistantMessage)
		})
	}

	if err := group.Wait(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to store interaction: %w", err)
	}
	return nil
}

// Facts lists everything the fact storage knows about the user.
func (m *Manager) Facts(ctx context.Context, userID string) ([]Fact, error) {
	if m.facts == nil {
		return nil, ErrNoFactStorage
	}
	return m.facts.All(ctx, userID)
}

func (m *Manager) ForgetFact(ctx context.Context, factID string) error {
	if m.facts == nil {
		return ErrNoFactStorage
	}
	return m.facts.Delete(ctx, factID)
}

// Forget removes everything remembered about the user from both storages
// in parallel.
func (m *Manager) Forget(ctx context.Context, userID string) error {
	ctx, span := tracer.Start(ctx, "forget user")
	defer span.End()

	var group errgroup.Group
	if m.facts != nil {
		group.Go(func() error { return m.facts.DeleteAll(ctx, userID) })
	}
	if m.vectors != nil {
		group.Go(func() error { return m.vectors.DeleteUser(ctx, userID) })
	}
	if err := group.Wait(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to forget user: %w", err)
	}
	return nil
}

// ForgetConversation removes the embedded messages of a conversation. Facts
// are not tied to a conversation and stay.
func (m *Manager) ForgetConversation(ctx context.Context, conversationID string) error {
	if m.vectors == nil {
		return nil
	}
	if err := m.vectors.DeleteConversation(ctx, conversationID); err != nil {
		return fmt.Errorf("failed to forget conversation: %w", err)
	}
	return nil
}
