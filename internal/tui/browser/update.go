package browser

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/samber/lo"

	"github.com/mattsolo1/grove-mdpad/internal/tui/browser/components/confirm"
	"github.com/mattsolo1/grove-mdpad/pkg/models"
	"github.com/mattsolo1/grove-mdpad/pkg/store"
	"github.com/mattsolo1/grove-mdpad/pkg/tree"
)

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.SetSize(msg.Width, msg.Height)
		m.preview.Width = m.previewWidth()
		m.preview.Height = m.getViewportHeight()
		m.clampScroll()
		return m, nil

	case stateChangedMsg:
		m.sync()
		return m, waitForChange(m.changes)

	case openedMsg:
		if msg.err != nil {
			m.statusMessage = fmt.Sprintf("Error opening file: %v", msg.err)
			return m, nil
		}
		m.statusMessage = ""
		m.sync()
		m.preview.GotoTop()
		return m, nil

	case formSubmittedMsg:
		if msg.err != nil {
			// The dialog stays open so the name can be fixed.
			m.statusMessage = fmt.Sprintf("Error: %v", msg.err)
			return m, nil
		}
		m.statusMessage = ""
		m.filenameInput.Blur()
		m.sync()
		if m.current != nil {
			m.selectPath(m.current.Path)
		}
		return m, nil

	case deletedMsg:
		if msg.err != nil {
			m.statusMessage = fmt.Sprintf("Error deleting %s: %v", msg.name, msg.err)
		} else {
			m.statusMessage = fmt.Sprintf("Deleted %s", msg.name)
		}
		m.sync()
		return m, nil

	case refreshedMsg:
		if msg.err != nil {
			m.statusMessage = fmt.Sprintf("Error refreshing: %v", msg.err)
		} else {
			m.statusMessage = "Refreshed"
		}
		m.sync()
		return m, nil

	case editorClosedMsg:
		if msg.err != nil {
			m.statusMessage = fmt.Sprintf("Editor exited: %v", msg.err)
		}
		return m, refreshCmd(m.service)

	case confirm.ConfirmedMsg[*models.Node]:
		return m, deleteCmd(m.service, msg.Payload)

	case confirm.CancelledMsg:
		m.statusMessage = ""
		return m, nil

	case tea.KeyMsg:
		if m.confirm.Active {
			var cmd tea.Cmd
			m.confirm, cmd = m.confirm.Update(msg)
			return m, cmd
		}
		if m.dialog.Visible {
			return m.updateDialog(msg)
		}
		if m.help.ShowAll {
			m.help.Toggle() // Any key closes help
			return m, nil
		}
		return m.updateBrowse(msg)
	}

	return m, nil
}

func (m Model) updateDialog(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back): // Esc
		m.service.Store.ResetFilenameForm()
		m.filenameInput.Blur()
		m.statusMessage = ""
		m.sync()
		return m, nil
	case key.Matches(msg, m.keys.Confirm): // Enter
		m.service.Store.UpdateFilenameFormInput(m.filenameInput.Value())
		return m, submitFormCmd(m.service)
	}

	var cmd tea.Cmd
	m.filenameInput, cmd = m.filenameInput.Update(msg)
	m.service.Store.UpdateFilenameFormInput(m.filenameInput.Value())
	m.dialog = m.service.Store.FileChangeDialog()
	return m, cmd
}

func (m Model) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	node := m.selected()

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.help.Toggle()
		return m, nil

	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
			m.clampScroll()
		}
		return m, nil

	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.rows)-1 {
			m.cursor++
			m.clampScroll()
		}
		return m, nil

	case key.Matches(msg, m.keys.GoToTop):
		m.cursor = 0
		m.clampScroll()
		return m, nil

	case key.Matches(msg, m.keys.GoToBottom):
		m.cursor = len(m.rows) - 1
		if m.cursor < 0 {
			m.cursor = 0
		}
		m.clampScroll()
		return m, nil

	case key.Matches(msg, m.keys.Open):
		if node == nil {
			return m, nil
		}
		if node.IsFolder() {
			m.service.Store.ToggleFolderOpen(node.Path)
			m.sync()
			return m, nil
		}
		return m, openFileCmd(m.service, node)

	case key.Matches(msg, m.keys.Unfold):
		if node != nil && node.IsFolder() && !node.Open {
			m.service.Store.ToggleFolderOpen(node.Path)
			m.sync()
		}
		return m, nil

	case key.Matches(msg, m.keys.Fold):
		if node == nil {
			return m, nil
		}
		if node.IsFolder() && node.Open {
			m.service.Store.ToggleFolderOpen(node.Path)
			m.sync()
			return m, nil
		}
		// Jump to the parent folder.
		m.selectPath(node.ParentDir)
		return m, nil

	case key.Matches(msg, m.keys.Edit):
		if node == nil || node.IsFolder() {
			return m, nil
		}
		if err := m.service.Bridge.Flush(context.Background()); err != nil {
			m.statusMessage = fmt.Sprintf("Error saving: %v", err)
			return m, nil
		}
		return m, editFileCmd(node.Path)

	case key.Matches(msg, m.keys.NewFile):
		return m.openDialog(nil, node, store.FormFile)

	case key.Matches(msg, m.keys.NewFolder):
		return m.openDialog(nil, node, store.FormFolder)

	case key.Matches(msg, m.keys.Rename):
		if node == nil {
			return m, nil
		}
		kind := store.FormFile
		if node.IsFolder() {
			kind = store.FormFolder
		}
		return m.openDialog(node, nil, kind)

	case key.Matches(msg, m.keys.Delete):
		if node == nil {
			return m, nil
		}
		if !node.IsFolder() {
			m.confirm.Activate(fmt.Sprintf("Delete note %q?", node.Name), "", node)
			return m, nil
		}
		notes := lo.CountBy(tree.AllRows(node.Files), func(r tree.Row) bool {
			return !r.Node.IsFolder()
		})
		m.confirm.Activate(fmt.Sprintf("Delete folder %q?", node.Name),
			fmt.Sprintf("%d notes inside will be deleted too", notes), node)
		return m, nil

	case key.Matches(msg, m.keys.Refresh):
		return m, refreshCmd(m.service)

	case key.Matches(msg, m.keys.Preview):
		m.showPreview = !m.showPreview
		m.preview.Width = m.previewWidth()
		return m, nil
	}

	return m, nil
}

func (m Model) openDialog(item, refItem *models.Node, kind store.FormKind) (tea.Model, tea.Cmd) {
	m.service.Store.ShowFileChangeForm(item, refItem, kind)
	m.dialog = m.service.Store.FileChangeDialog()
	m.filenameInput.SetValue(m.dialog.Input)
	m.filenameInput.CursorEnd()
	m.statusMessage = ""
	return m, m.filenameInput.Focus()
}
