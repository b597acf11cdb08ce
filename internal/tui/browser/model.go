package browser

import (
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattsolo1/grove-core/tui/components/help"
	"github.com/mattsolo1/grove-core/util/pathutil"
	"github.com/samber/lo"

	"github.com/mattsolo1/grove-mdpad/internal/tui/browser/components/confirm"
	"github.com/mattsolo1/grove-mdpad/pkg/models"
	"github.com/mattsolo1/grove-mdpad/pkg/service"
	"github.com/mattsolo1/grove-mdpad/pkg/store"
	"github.com/mattsolo1/grove-mdpad/pkg/tree"
)

// Model is the main model for the notes browser TUI
type Model struct {
	service *service.Service
	keys    KeyMap
	help    help.Model

	rows         []tree.Row
	cursor       int
	scrollOffset int
	width        int
	height       int

	current     *models.Node
	preview     viewport.Model
	showPreview bool

	confirm       confirm.Model[*models.Node]
	filenameInput textinput.Model
	dialog        store.Dialog
	statusMessage string

	changes     chan struct{}
	unsubscribe func()
}

// New creates the browser over svc. The store must already be loaded.
func New(svc *service.Service) Model {
	ti := textinput.New()
	ti.Placeholder = "name"
	ti.CharLimit = 255

	m := Model{
		service:       svc,
		keys:          keys,
		help:          help.NewBuilder().WithKeys(keys).WithTitle("mdpad - Help").Build(),
		preview:       viewport.New(0, 0),
		showPreview:   true,
		confirm:       confirm.New[*models.Node](),
		filenameInput: ti,
		changes:       make(chan struct{}, 1),
	}
	changes := m.changes
	m.unsubscribe = svc.Store.Subscribe(func(store.State) {
		select {
		case changes <- struct{}{}:
		default:
		}
	})
	m.sync()
	return m
}

func (m Model) Init() tea.Cmd {
	return waitForChange(m.changes)
}

// Close stops listening to the store.
func (m Model) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

// sync rebuilds the visible rows and the preview from the store.
func (m *Model) sync() {
	st := m.service.Store.State()
	m.rows = tree.Rows(st.Files)
	m.current = st.CurrentWorkingFile
	m.dialog = m.service.Store.FileChangeDialog()

	if m.cursor >= len(m.rows) {
		m.cursor = len(m.rows) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	m.clampScroll()

	if m.current != nil {
		m.preview.SetContent(m.current.Content)
	} else {
		m.preview.SetContent("")
	}
}

// selected returns the node under the cursor, nil when the tree is empty.
func (m Model) selected() *models.Node {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return nil
	}
	return m.rows[m.cursor].Node
}

// selectPath moves the cursor onto path if it is visible.
func (m *Model) selectPath(path string) {
	_, i, ok := lo.FindIndexOf(m.rows, func(r tree.Row) bool { return r.Node.Path == path })
	if !ok {
		// The same file spelled differently, e.g. on a case-insensitive disk.
		_, i, ok = lo.FindIndexOf(m.rows, func(r tree.Row) bool {
			isSame, _ := pathutil.ComparePaths(r.Node.Path, path)
			return isSame
		})
	}
	if ok {
		m.cursor = i
		m.clampScroll()
	}
}

func (m Model) getViewportHeight() int {
	// header, blank line, blank line, status, help
	h := m.height - 5
	if m.dialog.Visible || m.confirm.Active {
		h -= 4
	}
	if h < 1 {
		return len(m.rows) + 1
	}
	return h
}

func (m *Model) clampScroll() {
	h := m.getViewportHeight()
	if m.cursor < m.scrollOffset {
		m.scrollOffset = m.cursor
	}
	if m.cursor >= m.scrollOffset+h {
		m.scrollOffset = m.cursor - h + 1
	}
	if m.scrollOffset < 0 {
		m.scrollOffset = 0
	}
}
