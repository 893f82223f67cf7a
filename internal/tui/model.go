// Package tui provides the terminal chat interface.
package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hyperjump/faqrag/internal/models"
)

// Greeting is the assistant's first message in every session.
const Greeting = "Merhaba! Ben Akbank Sanal Asistan. Size finans ve bankacılık konularında nasıl yardımcı olabilirim?"

const searchingStatus = "Cevap aranıyor..."

// Answerer is the single core call the chat makes.
type Answerer interface {
	AnswerQuestion(ctx context.Context, question string) string
}

// answerMsg carries a finished answer back into the update loop.
type answerMsg struct {
	question string
	answer   string
}

// Model is the Bubble Tea model for the chat. It owns the session history.
type Model struct {
	ctx      context.Context
	answerer Answerer
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	history  []models.ChatTurn
	waiting  bool
	status   string
	ready    bool
}

// New creates a chat model. ctx bounds every question asked from this session.
func New(ctx context.Context, answerer Answerer) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Sorunuzu yazın ve Enter'a basın"
	ti.Focus()
	ti.CharLimit = 1000
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return Model{
		ctx:      ctx,
		answerer: answerer,
		input:    ti,
		viewport: viewport.New(0, 0),
		spinner:  sp,
		history:  []models.ChatTurn{{Role: models.RoleAssistant, Content: Greeting}},
		status:   "Çıkmak için Ctrl+C.",
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window and answer events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, ch := historyBoxStyle.GetFrameSize()
		_, ih := inputBoxStyle.GetFrameSize()
		reserved := 1 + 1 + ih + 1 + 1 // header, spacer, input, input line, status
		m.viewport.Width = max(20, msg.Width-2)
		m.viewport.Height = max(3, msg.Height-reserved-ch)
		m.refresh()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD || msg.Type == tea.KeyEsc {
			return m, tea.Quit
		}
		if msg.Type == tea.KeyEnter {
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.waiting {
				return m, nil
			}
			m.history = append(m.history, models.ChatTurn{Role: models.RoleUser, Content: q})
			m.input.Reset()
			m.waiting = true
			m.status = searchingStatus
			m.refresh()
			return m, tea.Batch(m.spinner.Tick, answerCmd(m.ctx, m.answerer, q))
		}
	case answerMsg:
		m.history = append(m.history, models.ChatTurn{Role: models.RoleAssistant, Content: msg.answer})
		m.waiting = false
		m.status = ""
		m.refresh()
		return m, nil
	case spinner.TickMsg:
		if !m.waiting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func answerCmd(ctx context.Context, a Answerer, question string) tea.Cmd {
	return func() tea.Msg {
		return answerMsg{question: question, answer: a.AnswerQuestion(ctx, question)}
	}
}

// History returns a copy of the session turns, oldest first.
func (m Model) History() []models.ChatTurn {
	out := make([]models.ChatTurn, len(m.history))
	copy(out, m.history)
	return out
}

// Waiting reports whether an answer is pending.
func (m Model) Waiting() bool {
	return m.waiting
}

// View renders the chat layout.
func (m Model) View() string {
	if !m.ready {
		return "Yükleniyor..."
	}
	header := headerStyle.Render("Akbank Sanal Asistan")
	status := statusStyle.Render(m.status)
	if m.waiting {
		status = m.spinner.View() + " " + status
	}
	return header + "\n" + historyBoxStyle.Render(m.viewport.View()) + "\n" + inputBoxStyle.Render(m.input.View()) + "\n" + status
}

func (m *Model) refresh() {
	m.viewport.SetContent(renderHistory(m.history, m.viewport.Width))
	m.viewport.GotoBottom()
}

func renderHistory(turns []models.ChatTurn, width int) string {
	body := lipgloss.NewStyle().Width(max(10, width-2))
	var b strings.Builder
	for i, t := range turns {
		if i > 0 {
			b.WriteString("\n\n")
		}
		if t.Role == models.RoleUser {
			b.WriteString(userStyle.Render("Siz"))
		} else {
			b.WriteString(assistantStyle.Render("Asistan"))
		}
		b.WriteByte('\n')
		b.WriteString(body.Render(t.Content))
	}
	return b.String()
}

var (
	headerStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	historyBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	statusStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	userStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	assistantStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
)
