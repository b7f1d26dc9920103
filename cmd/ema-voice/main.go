// Command ema-voice is a terminal voice assistant. It listens on the
// microphone, answers through the configured LLM with tools and speaks the
// answer back, or runs as a typed chat with --text.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	orchestration "github.com/koscakluka/ema-voice/core"
	"github.com/koscakluka/ema-voice/core/texttospeech/deepgram"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

type flags struct {
	envFile        string
	logFile        string
	text           bool
	provider       string
	conversationID string
}

func newRootCommand() *cobra.Command {
	var f flags

	root := &cobra.Command{
		Use:          "ema-voice",
		Short:        "Talk to an LLM assistant from the terminal",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := f.config()
			if err != nil {
				return err
			}
			return runTUI(cmd.Context(), cfg, f.logFile)
		},
	}
	root.PersistentFlags().StringVar(&f.envFile, "env-file", ".env", "file with environment variables to load")
	root.Flags().StringVar(&f.logFile, "log-file", "", "write logs to this file instead of discarding them")
	root.Flags().BoolVar(&f.text, "text", false, "chat by typing instead of talking")
	root.Flags().StringVar(&f.provider, "provider", "", "llm provider, groq or gemini (overrides EMA_LLM_PROVIDER)")
	root.Flags().StringVar(&f.conversationID, "conversation", "", "resume the conversation with this id")

	root.AddCommand(conversationsCommand(&f), memoriesCommand(&f), voicesCommand())
	return root
}

func (f flags) config() (config, error) {
	cfg, err := loadConfig(f.envFile)
	if err != nil {
		return config{}, err
	}
	if f.text {
		cfg.Mode = orchestration.ModeText
	}
	if f.provider != "" {
		cfg.Provider = f.provider
	}
	if f.conversationID != "" {
		cfg.ConversationID = f.conversationID
	}
	return cfg, cfg.validate()
}

func runTUI(ctx context.Context, cfg config, logFile string) error {
	if logFile != "" {
		file, err := tea.LogToFile(logFile, "ema-voice")
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer file.Close()
	} else {
		log.SetOutput(io.Discard)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	bridge := newEventBridge()
	defer bridge.close()

	a, err := newApp(ctx, cfg, bridge.handle)
	if err != nil {
		return err
	}
	defer a.close()

	program := tea.NewProgram(newModel(ctx, a.orchestrator, bridge, cfg), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("failed to run terminal ui: %w", err)
	}
	return nil
}

func conversationsCommand(f *flags) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "conversations",
		Short: "List stored conversations, most recent first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := f.config()
			if err != nil {
				return err
			}
			conversations, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer conversations.Close()

			list, err := conversations.Conversations(cmd.Context(), cfg.UserID, limit)
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no conversations yet")
				return nil
			}

			t := table.New().Border(lipgloss.NormalBorder()).Headers("ID", "UPDATED", "TITLE")
			for _, conversation := range list {
				t.Row(conversation.ID, conversation.UpdatedAt.Local().Format("2006-01-02 15:04"), conversation.Title)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), t.Render())
			return err
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of conversations to list")
	cmd.AddCommand(conversationDeleteCommand(f))
	return cmd
}

func voicesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "voices",
		Short: "List the available text to speech voices",
		RunE: func(cmd *cobra.Command, _ []string) error {
			t := table.New().Border(lipgloss.NormalBorder()).Headers("NAME", "LANGUAGE", "GENDER")
			for _, voice := range deepgram.GetAvailableVoices() {
				t.Row(voice.Name, voice.Language, string(voice.Gender))
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), t.Render())
			return err
		},
	}
}
