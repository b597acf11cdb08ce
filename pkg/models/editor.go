package models

// Position is a cursor location reported by the editor.
type Position struct {
	LineNumber int `json:"lineNumber" mapstructure:"lineNumber"`
	Column     int `json:"column" mapstructure:"column"`
}

// DefaultPosition is what the editor reports right after mounting.
var DefaultPosition = Position{LineNumber: 1, Column: 1}

// IsDefault reports whether p is the editor's initial position.
func (p Position) IsDefault() bool {
	return p == DefaultPosition
}

// ViewState tracks which editor panes are visible.
type ViewState struct {
	ShowEditor  bool `json:"showEditor"`
	ShowPreview bool `json:"showMarkdownPreview"`
}

// InitialViewState shows both panes.
var InitialViewState = ViewState{ShowEditor: true, ShowPreview: true}

// EditorCache is the persisted editor state blob.
type EditorCache struct {
	File      *FileEntry `json:"file,omitempty"`
	Position  *Position  `json:"position,omitempty"`
	ViewState *ViewState `json:"viewState,omitempty"`
}
