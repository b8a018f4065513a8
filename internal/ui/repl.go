// Package ui holds the interactive terminal front-ends.
package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

const prompt = "quill> "

var (
	promptStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("5"))
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	bannerStyle = lipgloss.NewStyle().Faint(true)
)

// Reply is the rendered outcome of one evaluated line.
type Reply struct {
	Output []string
	IsErr  bool
}

// Evaluator turns one submitted line into a reply. The REPL itself knows
// nothing about compilation; the driver session plugs in here.
type Evaluator func(line string) Reply

// ReplModel is a Bubble Tea model for the interactive session: a scrollback
// of styled lines above a single text input.
type ReplModel struct {
	input      textinput.Model
	eval       Evaluator
	banner     string
	scrollback []string
	past       []string
	pastIdx    int
	width      int
	quitting   bool
}

// NewRepl builds the model. banner is printed once above the scrollback.
func NewRepl(banner string, eval Evaluator) *ReplModel {
	in := textinput.New()
	in.Prompt = promptStyle.Render(prompt)
	in.Focus()
	return &ReplModel{
		input:  in,
		eval:   eval,
		banner: banner,
		width:  80,
	}
}

func (m *ReplModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *ReplModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			m.width = msg.Width
		}
		return m, nil
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyCtrlD:
			m.quitting = true
			return m, tea.Quit
		case tea.KeyUp:
			m.recall(-1)
			return m, nil
		case tea.KeyDown:
			m.recall(1)
			return m, nil
		case tea.KeyEnter:
			return m, m.submit()
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *ReplModel) submit() tea.Cmd {
	line := strings.TrimSpace(m.input.Value())
	m.input.Reset()
	if line == "" {
		return nil
	}
	m.scrollback = append(m.scrollback, promptStyle.Render(prompt)+line)
	m.past = append(m.past, line)
	m.pastIdx = len(m.past)

	if line == ":quit" || line == ":exit" {
		m.quitting = true
		return tea.Quit
	}

	reply := m.eval(line)
	style := valueStyle
	if reply.IsErr {
		style = errorStyle
	}
	for _, out := range reply.Output {
		m.scrollback = append(m.scrollback, style.Render(truncate(out, m.width)))
	}
	return nil
}

// recall moves through submitted lines; delta is -1 for older, 1 for newer.
func (m *ReplModel) recall(delta int) {
	if len(m.past) == 0 {
		return
	}
	m.pastIdx += delta
	if m.pastIdx < 0 {
		m.pastIdx = 0
	}
	if m.pastIdx >= len(m.past) {
		m.pastIdx = len(m.past)
		m.input.Reset()
		return
	}
	m.input.SetValue(m.past[m.pastIdx])
	m.input.CursorEnd()
}

func (m *ReplModel) View() string {
	var b strings.Builder
	if m.banner != "" {
		b.WriteString(bannerStyle.Render(m.banner))
		b.WriteString("\n")
	}
	for _, line := range m.scrollback {
		b.WriteString(line)
		b.WriteString("\n")
	}
	if m.quitting {
		return b.String()
	}
	b.WriteString(m.input.View())
	b.WriteString("\n")
	return b.String()
}

func truncate(value string, width int) string {
	if width <= 0 || runewidth.StringWidth(value) <= width {
		return value
	}
	if width <= 3 {
		return runewidth.Truncate(value, width, "")
	}
	return runewidth.Truncate(value, width-3, "...")
}
