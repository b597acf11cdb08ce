package editor

import "github.com/mattsolo1/grove-mdpad/pkg/models"

// ViewAction changes which editor panes are shown.
type ViewAction int

const (
	ShowPreviewOnly ViewAction = iota
	ShowEditorOnly
	ShowBoth
	ToggleShowEditor
	ToggleShowPreview
)

// ReduceView returns the view state after a. Unknown actions reset to the
// initial state.
func ReduceView(s models.ViewState, a ViewAction) models.ViewState {
	switch a {
	case ShowPreviewOnly:
		return models.ViewState{ShowEditor: false, ShowPreview: true}
	case ShowEditorOnly:
		return models.ViewState{ShowEditor: true, ShowPreview: false}
	case ShowBoth:
		return models.ViewState{ShowEditor: true, ShowPreview: true}
	case ToggleShowEditor:
		s.ShowEditor = !s.ShowEditor
		return s
	case ToggleShowPreview:
		s.ShowPreview = !s.ShowPreview
		return s
	default:
		return models.InitialViewState
	}
}
