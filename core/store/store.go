// Package store persists conversations and their messages in a SQL
// database. The sqlite and postgres subpackages open a database, run the
// migrations and return a Store.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/koscakluka/ema-voice/core/llms"
	orchestration "github.com/koscakluka/ema-voice/core"
	"github.com/pressly/goose/v3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const maxTitleLength = 50

var ErrConversationNotFound = errors.New("conversation not found")

type Conversation struct {
	ID        string
	UserID    string
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Store struct {
	db       *sql.DB
	numbered bool
	now      func() time.Time
	onClose  func()
}

type Option func(*Store)

// WithNumberedPlaceholders makes queries use $1, $2... instead of ?.
func WithNumberedPlaceholders() Option {
	return func(s *Store) { s.numbered = true }
}

// WithClock replaces time.Now for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithOnClose runs release after the database is closed.
func WithOnClose(release func()) Option {
	return func(s *Store) { s.onClose = release }
}

func New(db *sql.DB, opts ...Option) *Store {
	store := &Store{db: db, now: time.Now}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// Migrate applies the pending migrations found in migrations.
func Migrate(ctx context.Context, db *sql.DB, dialect goose.Dialect, migrations fs.FS) error {
	provider, err := goose.NewProvider(dialect, db, migrations)
	if err != nil {
		return fmt.Errorf("failed to create migration provider: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	for _, result := range results {
		logger.Info("applied migration", "source", result.Source.Path, "duration", result.Duration)
	}
	return nil
}

func (s *Store) Close() error {
	err := s.db.Close()
	if s.onClose != nil {
		s.onClose()
	}
	return err
}

func (s *Store) query(query string) string {
	if !s.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// RecordTurn stores the user and assistant messages of a turn. The
// conversation is created when it does not exist and titled after its first
// transcript.
func (s *Store) RecordTurn(ctx context.Context, turn orchestration.TurnRecord) (err error) {
	ctx, span := tracer.Start(ctx, "record turn")
	defer span.End()
	span.SetAttributes(attribute.String("conversation.id", turn.ConversationID))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	at := turn.At
	if at.IsZero() {
		at = s.now()
	}
	at = at.UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.query(
		`INSERT INTO conversations (id, user_id, created_at, updated_at) VALUES (?, ?, ?, ?) ON CONFLICT (id) DO NOTHING`),
		turn.ConversationID, turn.UserID, at, at,
	); err != nil {
		return fmt.Errorf("failed to create conversation: %w", err)
	}

	var count int
	if err := tx.QueryRowContext(ctx, s.query(`SELECT COUNT(*) FROM messages WHERE conversation_id = ?`),
		turn.ConversationID,
	).Scan(&count); err != nil {
		return fmt.Errorf("failed to count messages: %w", err)
	}

	for _, message := range []llms.Message{
		{Role: llms.RoleUser, Content: turn.Transcript},
		{Role: llms.RoleAssistant, Content: turn.Response},
	} {
		if _, err := tx.ExecContext(ctx, s.query(
			`INSERT INTO messages (conversation_id, role, content, created_at) VALUES (?, ?, ?, ?)`),
			turn.ConversationID, string(message.Role), message.Content, at,
		); err != nil {
			return fmt.Errorf("failed to insert %s message: %w", message.Role, err)
		}
	}

	if count == 0 {
		_, err = tx.ExecContext(ctx, s.query(`UPDATE conversations SET title = ?, updated_at = ? WHERE id = ?`),
			Title(turn.Transcript), at, turn.ConversationID)
	} else {
		_, err = tx.ExecContext(ctx, s.query(`UPDATE conversations SET updated_at = ? WHERE id = ?`),
			at, turn.ConversationID)
	}
	if err != nil {
		return fmt.Errorf("failed to update conversation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// LoadHistory returns the last limit messages of a conversation, oldest
// first.
func (s *Store) LoadHistory(ctx context.Context, conversationID string, limit int) ([]llms.Message, error) {
	ctx, span := tracer.Start(ctx, "load history")
	defer span.End()

	if limit <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, s.query(
		`SELECT role, content FROM (
			SELECT id, role, content FROM messages WHERE conversation_id = ? ORDER BY id DESC LIMIT ?
		) AS recent ORDER BY id ASC`),
		conversationID, limit,
	)
	if err != nil {
		err = fmt.Errorf("failed to query history: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	defer rows.Close()

	var history []llms.Message
	for rows.Next() {
		var role, content string
		if err := rows.Scan(&role, &content); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		history = append(history, llms.Message{Role: llms.Role(role), Content: content})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	span.SetAttributes(attribute.Int("history.length", len(history)))
	return history, nil
}

// DeleteConversation removes a conversation and all of its messages.
func (s *Store) DeleteConversation(ctx context.Context, conversationID string) (err error) {
	ctx, span := tracer.Start(ctx, "delete conversation")
	defer span.End()
	span.SetAttributes(attribute.String("conversation.id", conversationID))
	defer func() {
		if err != nil && !errors.Is(err, ErrConversationNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.query(`DELETE FROM messages WHERE conversation_id = ?`), conversationID); err != nil {
		return fmt.Errorf("failed to delete messages: %w", err)
	}
	result, err := tx.ExecContext(ctx, s.query(`DELETE FROM conversations WHERE id = ?`), conversationID)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	if deleted, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("failed to count deleted conversations: %w", err)
	} else if deleted == 0 {
		return ErrConversationNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Conversations lists the conversations of a user, most recently updated
// first.
func (s *Store) Conversations(ctx context.Context, userID string, limit int) ([]Conversation, error) {
	ctx, span := tracer.Start(ctx, "list conversations")
	defer span.End()

	rows, err := s.db.QueryContext(ctx, s.query(
		`SELECT id, user_id, COALESCE(title, ''), created_at, updated_at FROM conversations
		WHERE user_id = ? ORDER BY updated_at DESC, id LIMIT ?`),
		userID, limit,
	)
	if err != nil {
		err = fmt.Errorf("failed to query conversations: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	defer rows.Close()

	var conversations []Conversation
	for rows.Next() {
		var conversation Conversation
		if err := rows.Scan(&conversation.ID, &conversation.UserID, &conversation.Title,
			&conversation.CreatedAt, &conversation.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		conversations = append(conversations, conversation)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read conversations: %w", err)
	}
	return conversations, nil
}

// Title derives a conversation title from its first transcript.
func Title(transcript string) string {
	transcript = strings.TrimSpace(transcript)
	runes := []rune(transcript)
	if len(runes) <= maxTitleLength {
		return transcript
	}
	return string(runes[:maxTitleLength]) + "..."
}
