package browser

import (
	"context"
	"os"
	"os/exec"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mattsolo1/grove-mdpad/pkg/models"
	"github.com/mattsolo1/grove-mdpad/pkg/service"
)

type stateChangedMsg struct{}

type openedMsg struct {
	node *models.Node
	err  error
}

type formSubmittedMsg struct {
	err error
}

type deletedMsg struct {
	name string
	err  error
}

type refreshedMsg struct {
	err error
}

type editorClosedMsg struct {
	path string
	err  error
}

func waitForChange(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return stateChangedMsg{}
	}
}

func openFileCmd(svc *service.Service, node *models.Node) tea.Cmd {
	entry := node.FileEntry
	return func() tea.Msg {
		ctx := context.Background()
		if err := svc.Bridge.Flush(ctx); err != nil {
			return openedMsg{err: err}
		}
		n, err := svc.Store.LoadFile(ctx, &entry)
		return openedMsg{node: n, err: err}
	}
}

func submitFormCmd(svc *service.Service) tea.Cmd {
	return func() tea.Msg {
		return formSubmittedMsg{err: svc.Store.SubmitFileChangeForm(context.Background())}
	}
}

func deleteCmd(svc *service.Service, node *models.Node) tea.Cmd {
	return func() tea.Msg {
		return deletedMsg{name: node.Name, err: svc.Session.DeleteItem(context.Background(), node)}
	}
}

func refreshCmd(svc *service.Service) tea.Cmd {
	return func() tea.Msg {
		return refreshedMsg{err: svc.Store.Refresh(context.Background())}
	}
}

// editFileCmd suspends the TUI and opens path in $EDITOR.
func editFileCmd(path string) tea.Cmd {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = "vi"
	}
	c := exec.Command(editor, path)
	return tea.ExecProcess(c, func(err error) tea.Msg {
		return editorClosedMsg{path: path, err: err}
	})
}
