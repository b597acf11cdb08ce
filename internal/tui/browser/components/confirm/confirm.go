// Package confirm is a yes/no prompt that carries the item it asks about.
package confirm

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattsolo1/grove-core/tui/theme"
)

// ConfirmedMsg is sent when the user answers yes.
type ConfirmedMsg[T any] struct{ Payload T }

// CancelledMsg is sent when the user answers no.
type CancelledMsg struct{}

// Model asks one question about a payload of type T.
type Model[T any] struct {
	Active  bool
	Prompt  string
	Detail  string
	payload T
	keys    keyMap
}

func New[T any]() Model[T] {
	return Model[T]{keys: defaultKeyMap}
}

// Activate shows prompt, with an optional fainter detail line below it.
// payload comes back in ConfirmedMsg.
func (m *Model[T]) Activate(prompt, detail string, payload T) {
	m.Active = true
	m.Prompt = prompt
	m.Detail = detail
	m.payload = payload
}

func (m *Model[T]) close() T {
	var zero T
	p := m.payload
	m.Active = false
	m.payload = zero
	return p
}

func (m Model[T]) Update(msg tea.Msg) (Model[T], tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !m.Active || !ok {
		return m, nil
	}

	switch {
	case key.Matches(keyMsg, m.keys.Confirm):
		p := m.close()
		return m, func() tea.Msg { return ConfirmedMsg[T]{Payload: p} }
	case key.Matches(keyMsg, m.keys.Cancel):
		m.close()
		return m, func() tea.Msg { return CancelledMsg{} }
	}
	return m, nil
}

var (
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(theme.DefaultTheme.Colors.Orange).
			Padding(0, 2)
	hintStyle = theme.DefaultTheme.Muted
)

func (m Model[T]) View() string {
	if !m.Active {
		return ""
	}

	body := m.Prompt
	if m.Detail != "" {
		body += "\n" + hintStyle.Render(m.Detail)
	}
	box := boxStyle.Render(body)
	hint := hintStyle.
		Width(lipgloss.Width(box)).
		Align(lipgloss.Center).
		Render(m.keys.Confirm.Help().Key + " / " + m.keys.Cancel.Help().Key)

	return lipgloss.JoinVertical(lipgloss.Left, box, hint)
}

type keyMap struct {
	Confirm key.Binding
	Cancel  key.Binding
}

var defaultKeyMap = keyMap{
	Confirm: key.NewBinding(
		key.WithKeys("y", "Y"),
		key.WithHelp("y", "confirm"),
	),
	Cancel: key.NewBinding(
		key.WithKeys("n", "N", "esc"),
		key.WithHelp("n/esc", "cancel"),
	),
}
