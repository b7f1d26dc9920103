package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/koscakluka/ema-voice/core/memory"
	"github.com/koscakluka/ema-voice/core/store"
)

type memoryManagerStub struct {
	facts   []memory.Fact
	err     error
	deleted []string
}

func (m *memoryManagerStub) Facts(context.Context, string) ([]memory.Fact, error) {
	return m.facts, m.err
}

func (m *memoryManagerStub) ForgetFact(_ context.Context, factID string) error {
	m.deleted = append(m.deleted, "fact "+factID)
	return m.err
}

func (m *memoryManagerStub) Forget(_ context.Context, userID string) error {
	m.deleted = append(m.deleted, "user "+userID)
	return m.err
}

func (m *memoryManagerStub) ForgetConversation(_ context.Context, conversationID string) error {
	m.deleted = append(m.deleted, "conversation "+conversationID)
	return m.err
}

type conversationDeleterStub struct {
	deleted []string
	err     error
}

func (s *conversationDeleterStub) DeleteConversation(_ context.Context, conversationID string) error {
	s.deleted = append(s.deleted, conversationID)
	return s.err
}

func TestListMemories(t *testing.T) {
	var out bytes.Buffer
	manager := &memoryManagerStub{facts: []memory.Fact{{ID: "f1", Memory: "Likes tea", UpdatedAt: "2026-10-01"}}}
	if err := listMemories(context.Background(), &out, manager, "user-1"); err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	for _, expected := range []string{"f1", "Likes tea", "2026-10-01"} {
		if !strings.Contains(out.String(), expected) {
			t.Fatalf("expected %q in output:\n%s", expected, out.String())
		}
	}

	out.Reset()
	if err := listMemories(context.Background(), &out, &memoryManagerStub{}, "user-1"); err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	if !strings.Contains(out.String(), "nothing remembered") {
		t.Fatalf("unexpected empty output %q", out.String())
	}
}

func TestDeleteAndClearMemories(t *testing.T) {
	var out bytes.Buffer
	manager := &memoryManagerStub{}
	if err := deleteMemory(context.Background(), &out, manager, "f1"); err != nil {
		t.Fatalf("failed to delete: %v", err)
	}
	if err := clearMemories(context.Background(), &out, manager, "user-1"); err != nil {
		t.Fatalf("failed to clear: %v", err)
	}
	if len(manager.deleted) != 2 || manager.deleted[0] != "fact f1" || manager.deleted[1] != "user user-1" {
		t.Fatalf("unexpected deletes %v", manager.deleted)
	}

	failing := &memoryManagerStub{err: errors.New("mem0 down")}
	if err := clearMemories(context.Background(), &out, failing, "user-1"); err == nil {
		t.Fatalf("expected clear failure to be reported")
	}
}

func TestDeleteConversationForgetsEmbeddedMessages(t *testing.T) {
	var out bytes.Buffer
	conversations := &conversationDeleterStub{}
	forgetter := &memoryManagerStub{}
	if err := deleteConversation(context.Background(), &out, conversations, forgetter, "c1"); err != nil {
		t.Fatalf("failed to delete: %v", err)
	}
	if len(conversations.deleted) != 1 || conversations.deleted[0] != "c1" {
		t.Fatalf("expected stored conversation to be deleted, got %v", conversations.deleted)
	}
	if len(forgetter.deleted) != 1 || forgetter.deleted[0] != "conversation c1" {
		t.Fatalf("expected embedded messages to be deleted, got %v", forgetter.deleted)
	}

	if err := deleteConversation(context.Background(), &out, conversations, nil, "c2"); err != nil {
		t.Fatalf("failed to delete without memory: %v", err)
	}
}

func TestDeleteUnknownConversationSkipsMemory(t *testing.T) {
	conversations := &conversationDeleterStub{err: store.ErrConversationNotFound}
	forgetter := &memoryManagerStub{}
	err := deleteConversation(context.Background(), &bytes.Buffer{}, conversations, forgetter, "missing")
	if !errors.Is(err, store.ErrConversationNotFound) {
		t.Fatalf("expected ErrConversationNotFound, got %v", err)
	}
	if len(forgetter.deleted) != 0 {
		t.Fatalf("expected memory to be untouched, got %v", forgetter.deleted)
	}
}
