package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	orchestration "github.com/koscakluka/ema-voice/core"
	"github.com/koscakluka/ema-voice/core/events"
	"github.com/koscakluka/ema-voice/core/llms"
)

const defaultWidth = 80

const roleTool llms.Role = "tool"

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	userStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	toolStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Italic(true)
	interimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Italic(true)
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	helpStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	badgeStyle     = lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("0"))
)

var stateColors = map[orchestration.SessionState]lipgloss.Color{
	orchestration.StateIdle:       lipgloss.Color("241"),
	orchestration.StateListening:  lipgloss.Color("42"),
	orchestration.StateProcessing: lipgloss.Color("214"),
	orchestration.StateSpeaking:   lipgloss.Color("75"),
}

// conversation is the part of the orchestrator the terminal front end drives.
type conversation interface {
	StartConversation(ctx context.Context, opts ...orchestration.ConversationOption) error
	StopConversation()
	Listen() error
	SubmitText(text string) error
	Snapshot() orchestration.Snapshot
}

type eventMsg struct{ event events.Event }

type startedMsg struct{ err error }

// eventBridge hands orchestrator events to the bubbletea loop. Sends stop
// blocking once the program is gone.
type eventBridge struct {
	events chan events.Event
	done   chan struct{}
}

func newEventBridge() *eventBridge {
	return &eventBridge{events: make(chan events.Event, 64), done: make(chan struct{})}
}

func (b *eventBridge) handle(event events.Event) {
	select {
	case b.events <- event:
	case <-b.done:
	}
}

func (b *eventBridge) close() { close(b.done) }

func (b *eventBridge) next() tea.Cmd {
	return func() tea.Msg {
		select {
		case event := <-b.events:
			return eventMsg{event: event}
		case <-b.done:
			return nil
		}
	}
}

type chatLine struct {
	role llms.Role
	text string
}

type model struct {
	ctx      context.Context
	conv     conversation
	convOpts []orchestration.ConversationOption
	bridge   *eventBridge
	mode     orchestration.Mode

	input   textinput.Model
	spinner spinner.Model
	width   int

	state    orchestration.SessionState
	lines    []chatLine
	interim  string
	response []string
	err      string
}

func newModel(ctx context.Context, conv conversation, bridge *eventBridge, cfg config) model {
	input := textinput.New()
	input.Placeholder = "Type a message, or press enter to talk"
	if cfg.Mode == orchestration.ModeText {
		input.Placeholder = "Type a message"
	}
	input.CharLimit = 1000
	input.Width = defaultWidth - 4
	input.Focus()

	return model{
		ctx:      ctx,
		conv:     conv,
		convOpts: cfg.conversationOptions(),
		bridge:   bridge,
		mode:     cfg.Mode,
		input:    input,
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot)),
		width:    defaultWidth,
		state:    orchestration.StateIdle,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, m.start(), m.bridge.next())
}

func (m model) start() tea.Cmd {
	return func() tea.Msg {
		return startedMsg{err: m.conv.StartConversation(m.ctx, m.convOpts...)}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.Width = max(msg.Width-4, 10)
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.conv.StopConversation()
			return m, tea.Quit
		case tea.KeyEnter:
			return m.submit(), nil
		}

	case startedMsg:
		if msg.err != nil {
			m.err = fmt.Sprintf("failed to start conversation: %v", msg.err)
			return m, nil
		}
		snapshot := m.conv.Snapshot()
		m.state = snapshot.State
		m.lines = append(historyLines(snapshot.History), m.lines...)
		if snapshot.Response != "" {
			m.lines = append(m.lines, chatLine{role: llms.RoleAssistant, text: snapshot.Response})
		}
		return m, nil

	case eventMsg:
		m.apply(msg.event)
		return m, m.bridge.next()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit sends typed text, or with an empty input asks for voice input
// again, which interrupts the assistant while it speaks.
func (m model) submit() model {
	text := strings.TrimSpace(m.input.Value())
	m.input.Reset()

	var err error
	switch {
	case text != "":
		err = m.conv.SubmitText(text)
	case m.mode == orchestration.ModeVoice:
		err = m.conv.Listen()
	default:
		return m
	}
	if err != nil {
		m.err = err.Error()
	}
	return m
}

func (m *model) apply(event events.Event) {
	switch e := event.(type) {
	case events.StateChanged:
		m.state = orchestration.SessionState(e.To)
	case events.UserTranscriptInterimUpdated:
		m.interim = e.Transcript
	case events.UserTranscriptFinal:
		m.interim = ""
	case events.RecognitionFailed:
		m.err = e.Message
	case events.TurnStarted:
		m.err = ""
		m.interim = ""
		m.response = nil
		m.lines = append(m.lines, chatLine{role: llms.RoleUser, text: e.Transcript})
	case events.ToolCallStarted:
		m.lines = append(m.lines, chatLine{role: roleTool, text: "using " + e.Name})
	case events.AssistantResponseSegment:
		m.response = append(m.response, e.Segment)
	case events.AssistantResponseFinal:
		m.response = nil
		if e.Response != "" {
			m.lines = append(m.lines, chatLine{role: llms.RoleAssistant, text: e.Response})
		}
	case events.TurnFailed:
		m.err = e.Error
	}
}

func historyLines(history []llms.Message) []chatLine {
	lines := make([]chatLine, 0, len(history))
	for _, message := range history {
		lines = append(lines, chatLine{role: message.Role, text: message.Content})
	}
	return lines
}

func (m model) View() string {
	width := max(m.width-2, 20)
	var b strings.Builder

	badge := badgeStyle.Background(stateColors[m.state]).Render(string(m.state))
	b.WriteString(titleStyle.Render("ema") + " " + badge)
	if m.state == orchestration.StateProcessing {
		b.WriteString(" " + m.spinner.View())
	}
	b.WriteString("\n\n")

	for _, line := range m.lines {
		b.WriteString(renderLine(line, width))
		b.WriteString("\n")
	}
	if len(m.response) > 0 {
		b.WriteString(renderLine(chatLine{role: llms.RoleAssistant, text: strings.Join(m.response, " ")}, width))
		b.WriteString("\n")
	}
	if m.interim != "" {
		b.WriteString(interimStyle.Render(wordwrap.String("… "+m.interim, width)))
		b.WriteString("\n")
	}
	if m.err != "" {
		b.WriteString(errorStyle.Render(wordwrap.String(m.err, width)))
		b.WriteString("\n")
	}

	b.WriteString("\n" + m.input.View() + "\n")
	help := "enter: send • esc: quit"
	if m.mode == orchestration.ModeVoice {
		help = "enter: send, or talk when empty • esc: quit"
	}
	b.WriteString(helpStyle.Render(help))
	return b.String()
}

func renderLine(line chatLine, width int) string {
	switch line.role {
	case llms.RoleUser:
		return userStyle.Render(wordwrap.String("you: "+line.text, width))
	case roleTool:
		return toolStyle.Render(wordwrap.String("  "+line.text, width))
	default:
		return assistantStyle.Render(wordwrap.String("ema: "+line.text, width))
	}
}
