package browser

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

func (m Model) View() string {
	if m.help.ShowAll {
		return m.help.View()
	}

	header := headerStyle.Render("mdpad") + "  " + mutedStyle.Render(homeRelative(m.service.Repo.Home()))
	if st := m.service.Store.State(); st.SaveError != "" {
		header += "  " + errorStyle.Render("save failed: "+st.SaveError)
	} else if st.Unsaved {
		header += "  " + mutedStyle.Render("(unsaved)")
	}

	body := m.renderTree()
	if m.showPreview && m.current != nil && m.width > 0 {
		body = lipgloss.JoinHorizontal(lipgloss.Top,
			lipgloss.NewStyle().Width(m.treeWidth()).Render(body),
			previewStyle.Render(m.preview.View()),
		)
	}

	parts := []string{header, "", body, ""}
	switch {
	case m.confirm.Active:
		parts = append(parts, m.confirm.View())
	case m.dialog.Visible:
		parts = append(parts, dialogStyle.Render(m.dialog.Title+"\n"+m.filenameInput.View()))
	}
	if m.statusMessage != "" {
		parts = append(parts, mutedStyle.Render(m.statusMessage))
	}
	parts = append(parts, m.help.View())

	return "\n" + lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m Model) renderTree() string {
	if len(m.rows) == 0 {
		return mutedStyle.Render("No notes yet. Press n to create one.")
	}

	var b strings.Builder
	end := m.scrollOffset + m.getViewportHeight()
	if end > len(m.rows) {
		end = len(m.rows)
	}

	for i := m.scrollOffset; i < end; i++ {
		row := m.rows[i]
		node := row.Node

		cursor := "  "
		if i == m.cursor {
			cursor = cursorStyle.Render("▶ ")
		}
		indent := strings.Repeat("  ", row.Depth)
		room := 0
		if m.width > 0 {
			room = max(m.treeWidth()-lipgloss.Width(cursor)-len(indent)-2, 1)
		}

		var line string
		switch {
		case node.IsFolder():
			fold := "▼ "
			if !node.Open {
				fold = "▶ "
			}
			line = folderStyle.Render(fold + clip(node.Name+"/", room))
		case node.Err != "":
			line = errorStyle.Render(clip(node.Name+" (unreadable)", room))
		case m.current != nil && m.current.Path == node.Path:
			line = currentStyle.Render(clip(node.Name, room))
		default:
			line = clip(node.Name, room)
		}

		fmt.Fprintf(&b, "%s%s%s", cursor, indent, line)
		if i < end-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (m Model) treeWidth() int {
	if !m.showPreview || m.width == 0 {
		return m.width
	}
	return m.width * 2 / 5
}

func (m Model) previewWidth() int {
	if !m.showPreview {
		return 0
	}
	w := m.width - m.treeWidth() - 2
	if w < 0 {
		return 0
	}
	return w
}
