package browser

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/mattsolo1/grove-core/tui/keymap"
)

// KeyMap defines the keybindings for the browser TUI. Movement, folding,
// help, quit and the dialog keys come from the shared base map.
type KeyMap struct {
	keymap.Base
	GoToTop    key.Binding
	GoToBottom key.Binding
	Open       key.Binding
	Edit       key.Binding
	NewFile    key.Binding
	NewFolder  key.Binding
	Rename     key.Binding
	Delete     key.Binding
	Refresh    key.Binding
	Preview    key.Binding
}

func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Open, k.NewFile, k.Delete, k.Help, k.Quit}
}

func (k KeyMap) FullHelp() [][]key.Binding {
	baseHelp := k.Base.FullHelp()
	return append(baseHelp, []key.Binding{
		k.GoToTop,
		k.GoToBottom,
		k.Open,
		k.Preview,
		k.Edit,
	}, []key.Binding{
		k.NewFile,
		k.NewFolder,
		k.Rename,
		k.Delete,
		k.Refresh,
	})
}

var keys = KeyMap{
	Base: keymap.NewBase(),
	GoToTop: key.NewBinding(
		key.WithKeys("g", "home"),
		key.WithHelp("g", "go to top"),
	),
	GoToBottom: key.NewBinding(
		key.WithKeys("G", "end"),
		key.WithHelp("G", "go to bottom"),
	),
	Open: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "open / fold"),
	),
	Edit: key.NewBinding(
		key.WithKeys("e"),
		key.WithHelp("e", "edit in $EDITOR"),
	),
	NewFile: key.NewBinding(
		key.WithKeys("n"),
		key.WithHelp("n", "new note"),
	),
	NewFolder: key.NewBinding(
		key.WithKeys("N"),
		key.WithHelp("N", "new folder"),
	),
	Rename: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "rename"),
	),
	Delete: key.NewBinding(
		key.WithKeys("d", "delete"),
		key.WithHelp("d", "delete"),
	),
	Refresh: key.NewBinding(
		key.WithKeys("R", "ctrl+r"),
		key.WithHelp("R", "refresh"),
	),
	Preview: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("tab", "toggle preview"),
	),
}
