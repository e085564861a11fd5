// Package tui implements the Bubble Tea chat surface for penny.
package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

var (
	userStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	agentStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	faintStyle  = lipgloss.NewStyle().Faint(true)
	statusStyle = lipgloss.NewStyle().Faint(true).PaddingLeft(1)
)

// Deps are the collaborators injected into the chat model. The TUI knows
// nothing about the agent beyond these closures.
type Deps struct {
	// Ask runs one conversation turn and returns the final answer.
	Ask func(ctx context.Context, question string) (string, error)
	// Queries returns the SQL executed so far this conversation.
	Queries func() []string
	// OnClear resets the conversation.
	OnClear func()
	Logger  *slog.Logger
	Model   string
}

// answerMsg carries a finished turn back into the update loop. Gen guards
// against a response from a request the user already cancelled.
type answerMsg struct {
	gen     uint64
	content string
	err     error
}

type entry struct {
	role    string // "you", "penny", "error", "info"
	content string
}

// Model is the root Bubble Tea model.
type Model struct {
	deps Deps

	vp       viewport.Model
	input    textarea.Model
	spin     spinner.Model
	renderer *glamour.TermRenderer

	history  []entry
	waiting  bool
	quitting bool
	width    int
	height   int

	gen    uint64
	cancel context.CancelFunc
}

// New creates the chat model.
func New(deps Deps) Model {
	input := textarea.New()
	input.Placeholder = "Ask about your budget... (/help for commands)"
	input.Prompt = "> "
	input.SetHeight(1)
	input.ShowLineNumbers = false
	input.Focus()

	s := spinner.New()
	s.Spinner = spinner.Dot

	return Model{
		deps:  deps,
		input: input,
		spin:  s,
		history: []entry{
			{role: "info", content: "Penny is ready. Ask a question about your budget."},
		},
	}
}

// Run starts the chat program and blocks until the user quits.
func Run(deps Deps) error {
	_, err := tea.NewProgram(New(deps), tea.WithAltScreen()).Run()
	return err
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.spin.Tick)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			if m.waiting {
				// First Ctrl+C cancels the in-flight request.
				m.cancelInflight()
				m.push(entry{role: "info", content: "Request cancelled."})
				m.refresh()
				return m, nil
			}
			m.quitting = true
			return m, tea.Quit
		case tea.KeyEnter:
			if !m.waiting {
				return m.submit()
			}
			return m, nil
		}

	case answerMsg:
		if msg.gen != m.gen {
			return m, nil // stale response from a cancelled request
		}
		m.waiting = false
		m.input.Focus()
		if msg.err != nil {
			if !errors.Is(msg.err, context.Canceled) {
				m.push(entry{role: "error", content: msg.err.Error()})
			}
		} else {
			m.push(entry{role: "penny", content: msg.content})
		}
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		cmds = append(cmds, cmd)
	}

	if !m.waiting {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}
	var cmd tea.Cmd
	m.vp, cmd = m.vp.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// submit handles Enter: slash commands run locally, everything else goes to
// the agent in a goroutine so the UI stays responsive.
func (m Model) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return m, nil
	}
	m.input.Reset()

	if strings.HasPrefix(text, "/") {
		return m.command(text)
	}

	m.push(entry{role: "you", content: text})
	m.waiting = true
	m.input.Blur()
	m.refresh()

	m.gen++
	gen := m.gen
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel

	ask := m.deps.Ask
	return m, tea.Batch(m.spin.Tick, func() tea.Msg {
		answer, err := ask(ctx, text)
		return answerMsg{gen: gen, content: answer, err: err}
	})
}

func (m Model) command(text string) (tea.Model, tea.Cmd) {
	switch strings.Fields(text)[0] {
	case "/help":
		m.push(entry{role: "info", content: strings.Join([]string{
			"/help     show this help",
			"/queries  list the SQL executed this conversation",
			"/clear    start a fresh conversation",
			"/quit     exit",
		}, "\n")})
	case "/queries":
		queries := m.deps.Queries()
		if len(queries) == 0 {
			m.push(entry{role: "info", content: "No queries executed yet."})
		} else {
			var sb strings.Builder
			for i, q := range queries {
				fmt.Fprintf(&sb, "%d. %s\n", i+1, q)
			}
			m.push(entry{role: "info", content: strings.TrimRight(sb.String(), "\n")})
		}
	case "/clear":
		m.deps.OnClear()
		m.history = []entry{{role: "info", content: "Conversation cleared."}}
	case "/quit":
		m.quitting = true
		return m, tea.Quit
	default:
		m.push(entry{role: "error", content: "Unknown command. Try /help."})
	}
	m.refresh()
	return m, nil
}

func (m *Model) cancelInflight() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.gen++ // anything still in flight is now stale
	m.waiting = false
	m.input.Focus()
}

func (m *Model) push(e entry) {
	m.history = append(m.history, e)
}

// layout sizes the viewport and input to the terminal, rebuilding the
// markdown renderer at the new wrap width.
func (m *Model) layout() {
	inputH := 1
	statusH := 1
	m.input.SetWidth(m.width - 2)
	m.vp = viewport.New(m.width, m.height-inputH-statusH-1)

	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(min(m.width-4, 100)),
	)
	if err == nil {
		m.renderer = r
	} else if m.deps.Logger != nil {
		m.deps.Logger.Warn("markdown renderer unavailable", "error", err)
	}
}

// refresh re-renders the transcript into the viewport and scrolls to the
// bottom.
func (m *Model) refresh() {
	var sb strings.Builder
	for _, e := range m.history {
		switch e.role {
		case "you":
			sb.WriteString(userStyle.Render("You") + "\n" + e.content + "\n\n")
		case "penny":
			sb.WriteString(agentStyle.Render("Penny") + "\n" + m.markdown(e.content) + "\n")
		case "error":
			sb.WriteString(errorStyle.Render("Error: "+e.content) + "\n\n")
		default:
			sb.WriteString(faintStyle.Render(e.content) + "\n\n")
		}
	}
	m.vp.SetContent(sb.String())
	m.vp.GotoBottom()
}

func (m *Model) markdown(content string) string {
	if m.renderer == nil {
		return content + "\n"
	}
	out, err := m.renderer.Render(content)
	if err != nil {
		return content + "\n"
	}
	return out
}

func (m Model) View() string {
	if m.quitting {
		return "Bye!\n"
	}
	if m.width == 0 {
		return "  starting..."
	}

	inputView := m.input.View()
	if m.waiting {
		inputView = m.spin.View() + " " + faintStyle.Render("thinking...")
	}

	status := statusStyle.Render(fmt.Sprintf("penny · %s · Enter send · Ctrl+C %s",
		m.deps.Model, map[bool]string{true: "cancel", false: "quit"}[m.waiting]))

	return lipgloss.JoinVertical(lipgloss.Left,
		m.vp.View(),
		faintStyle.Render(strings.Repeat("─", max(m.width, 1))),
		inputView,
		status,
	)
}
