package ui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func typeLine(m *ReplModel, line string) {
	for _, r := range line {
		m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
}

func TestReplEchoesInputAndOutput(t *testing.T) {
	m := NewRepl("quill interactive", func(line string) Reply {
		return Reply{Output: []string{"got " + line}}
	})
	m.Init()
	typeLine(m, "1 + 1")

	view := m.View()
	if !strings.Contains(view, "1 + 1") {
		t.Fatalf("input not echoed:\n%s", view)
	}
	if !strings.Contains(view, "got 1 + 1") {
		t.Fatalf("reply missing:\n%s", view)
	}
	if !strings.Contains(view, "quill interactive") {
		t.Fatalf("banner missing:\n%s", view)
	}
}

func TestReplHistoryRecall(t *testing.T) {
	m := NewRepl("", func(string) Reply { return Reply{} })
	typeLine(m, "first")
	typeLine(m, "second")

	m.Update(tea.KeyMsg{Type: tea.KeyUp})
	if got := m.input.Value(); got != "second" {
		t.Fatalf("expected second, got %q", got)
	}
	m.Update(tea.KeyMsg{Type: tea.KeyUp})
	if got := m.input.Value(); got != "first" {
		t.Fatalf("expected first, got %q", got)
	}
	m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m.Update(tea.KeyMsg{Type: tea.KeyDown})
	if got := m.input.Value(); got != "" {
		t.Fatalf("expected empty line past newest, got %q", got)
	}
}

func TestReplQuitCommand(t *testing.T) {
	m := NewRepl("", func(string) Reply { return Reply{} })
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlD})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if !m.quitting {
		t.Fatal("model not quitting")
	}
}

func TestReplBlankLineIgnored(t *testing.T) {
	calls := 0
	m := NewRepl("", func(string) Reply { calls++; return Reply{} })
	typeLine(m, "   ")
	if calls != 0 {
		t.Fatalf("evaluator called %d times for blank input", calls)
	}
	if len(m.scrollback) != 0 {
		t.Fatalf("blank line added to scrollback: %v", m.scrollback)
	}
}
