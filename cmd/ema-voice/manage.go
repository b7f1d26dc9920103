package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/koscakluka/ema-voice/core/memory"
)

var (
	errNoUserID = errors.New("EMA_USER_ID is required to manage memories")
	errNoMemory = errors.New("no memory storage configured, set MEM0_API_KEY or QDRANT_URL")
)

type memoryManager interface {
	Facts(ctx context.Context, userID string) ([]memory.Fact, error)
	ForgetFact(ctx context.Context, factID string) error
	Forget(ctx context.Context, userID string) error
}

type conversationForgetter interface {
	ForgetConversation(ctx context.Context, conversationID string) error
}

type conversationDeleter interface {
	DeleteConversation(ctx context.Context, conversationID string) error
}

func memoriesCommand(f *flags) *cobra.Command {
	// open resolves the manager lazily so --help works without credentials.
	open := func(cmd *cobra.Command) (*memory.Manager, config, error) {
		cfg, err := f.config()
		if err != nil {
			return nil, config{}, err
		}
		if cfg.UserID == "" {
			return nil, config{}, errNoUserID
		}
		manager := newMemory(cmd.Context(), nil)
		if manager == nil {
			return nil, config{}, errNoMemory
		}
		return manager, cfg, nil
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List the facts remembered about the user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			manager, cfg, err := open(cmd)
			if err != nil {
				return err
			}
			return listMemories(cmd.Context(), cmd.OutOrStdout(), manager, cfg.UserID)
		},
	}

	cmd := &cobra.Command{
		Use:   "memories",
		Short: "Inspect and delete what the assistant remembers",
		Args:  cobra.NoArgs,
		RunE:  list.RunE,
	}
	cmd.AddCommand(
		list,
		&cobra.Command{
			Use:   "delete <id>",
			Short: "Delete a single remembered fact",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				manager, _, err := open(cmd)
				if err != nil {
					return err
				}
				return deleteMemory(cmd.Context(), cmd.OutOrStdout(), manager, args[0])
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Delete every fact and every embedded message of the user",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				manager, cfg, err := open(cmd)
				if err != nil {
					return err
				}
				return clearMemories(cmd.Context(), cmd.OutOrStdout(), manager, cfg.UserID)
			},
		},
	)
	return cmd
}

func conversationDeleteCommand(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a stored conversation and its embedded messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.config()
			if err != nil {
				return err
			}
			conversations, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer conversations.Close()

			var forgetter conversationForgetter
			if manager := newMemory(cmd.Context(), nil); manager != nil {
				forgetter = manager
			}
			return deleteConversation(cmd.Context(), cmd.OutOrStdout(), conversations, forgetter, args[0])
		},
	}
}

func listMemories(ctx context.Context, w io.Writer, manager memoryManager, userID string) error {
	facts, err := manager.Facts(ctx, userID)
	if err != nil {
		return err
	}
	if len(facts) == 0 {
		_, err = fmt.Fprintln(w, "nothing remembered yet")
		return err
	}

	t := table.New().Border(lipgloss.NormalBorder()).Headers("ID", "UPDATED", "MEMORY")
	for _, fact := range facts {
		t.Row(fact.ID, fact.UpdatedAt, fact.Memory)
	}
	_, err = fmt.Fprintln(w, t.Render())
	return err
}

func deleteMemory(ctx context.Context, w io.Writer, manager memoryManager, factID string) error {
	if err := manager.ForgetFact(ctx, factID); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "deleted memory %s\n", factID)
	return err
}

func clearMemories(ctx context.Context, w io.Writer, manager memoryManager, userID string) error {
	if err := manager.Forget(ctx, userID); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "cleared all memories of %s\n", userID)
	return err
}

// deleteConversation removes the stored messages first so a vector failure
// leaves no listed conversation behind. forgetter may be nil.
func deleteConversation(ctx context.Context, w io.Writer, conversations conversationDeleter, forgetter conversationForgetter, conversationID string) error {
	if err := conversations.DeleteConversation(ctx, conversationID); err != nil {
		return fmt.Errorf("failed to delete conversation %s: %w", conversationID, err)
	}
	if forgetter != nil {
		if err := forgetter.ForgetConversation(ctx, conversationID); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "deleted conversation %s\n", conversationID)
	return err
}
