package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"tax-rag/internal/chat"
	"tax-rag/internal/models"
)

// replyMsg carries the result of one Send back into Update
type replyMsg struct {
	reply string
	err   error
}

// Model is the Bubble Tea model for the chat screen.
type Model struct {
	ctx          context.Context
	conversation chat.Conversation
	title        string
	input        textinput.Model
	viewport     viewport.Model
	status       string
	busy         bool
	ready        bool
	pending      string
}

func New(ctx context.Context, conversation chat.Conversation, title string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Tanyakan sesuatu lalu tekan Enter"
	ti.Focus()
	ti.CharLimit = 0
	return Model{
		ctx:          ctx,
		conversation: conversation,
		title:        title,
		input:        ti,
		viewport:     viewport.New(0, 0),
		status:       "Ready. Ctrl+C to quit.",
	}
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, th := transcriptBoxStyle.GetFrameSize()
		_, ih := inputBoxStyle.GetFrameSize()
		// header, status and the input line
		reserved := 3 + ih + th
		m.viewport.Width = max(20, msg.Width-2)
		m.viewport.Height = max(3, msg.Height-reserved)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD || msg.Type == tea.KeyEsc {
			return m, tea.Quit
		}
		if msg.Type == tea.KeyEnter {
			text := strings.TrimSpace(m.input.Value())
			if text == "" || m.busy {
				return m, nil
			}
			m.busy = true
			m.pending = text
			m.status = "Thinking..."
			m.input.Reset()
			m.refresh()
			return m, m.send(text)
		}
		switch msg.String() {
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case replyMsg:
		m.busy = false
		m.pending = ""
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
		} else {
			m.status = "Ready. Ctrl+C to quit."
		}
		m.refresh()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) send(text string) tea.Cmd {
	ctx, conversation := m.ctx, m.conversation
	return func() tea.Msg {
		reply, err := conversation.Send(ctx, text)
		return replyMsg{reply: reply, err: err}
	}
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render(m.title)
	transcript := transcriptBoxStyle.Render(m.viewport.View())
	input := inputBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	return header + "\n" + transcript + "\n" + input + "\n" + status
}

func (m Model) renderTranscript() string {
	var b strings.Builder
	for _, msg := range m.conversation.History() {
		switch msg.Role {
		case models.RoleUser:
			b.WriteString(userStyle.Render("Anda: ") + msg.Content + "\n\n")
		case models.RoleAssistant:
			b.WriteString(assistantStyle.Render("AI: ") + msg.Content + "\n\n")
		}
	}
	if m.pending != "" {
		b.WriteString(userStyle.Render("Anda: ") + m.pending + "\n\n")
	}
	if b.Len() == 0 {
		return "Belum ada percakapan."
	}
	return strings.TrimRight(b.String(), "\n")
}

var (
	transcriptBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	statusStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	userStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	assistantStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
)
