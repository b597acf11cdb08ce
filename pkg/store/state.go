package store

import (
	"github.com/mattsolo1/grove-mdpad/pkg/models"
	"github.com/mattsolo1/grove-mdpad/pkg/tree"
)

// FormKind selects what the filename dialog creates or renames.
type FormKind int

const (
	FormFile FormKind = iota
	FormFolder
)

func (k FormKind) String() string {
	if k == FormFolder {
		return "folder"
	}
	return "file"
}

// FilenameForm is the state of the new/rename dialog. Item is the entry being
// renamed, nil when creating. RefItem anchors new entries to its folder.
type FilenameForm struct {
	Editing bool
	Input   string
	Item    *models.Node
	RefItem *models.Node
	Kind    FormKind
}

// State is an immutable snapshot of the store. Files is shared between
// snapshots and must not be mutated.
type State struct {
	Home               string
	Files              models.FileIndex
	CurrentWorkingFile *models.Node
	Form               FilenameForm
	Unsaved            bool
	SaveError          string
}

// Action is a state transition understood by Reduce.
type Action interface {
	isAction()
}

// SetFiles replaces the index. The current file is re-resolved against it.
type SetFiles struct{ Files models.FileIndex }

// SetCurrentWorkingFile selects the open file; nil clears it.
type SetCurrentWorkingFile struct{ File *models.Node }

// PatchFile upserts a node into the index.
type PatchFile struct{ Node *models.Node }

// ToggleFolder flips a folder's Open flag.
type ToggleFolder struct{ Path string }

// SetFilenameForm opens or updates the filename dialog.
type SetFilenameForm struct{ Form FilenameForm }

// ResetFilenameForm closes the dialog.
type ResetFilenameForm struct{}

// ContentChanged marks the store as having unsaved edits.
type ContentChanged struct{}

// SaveSucceeded clears the unsaved marker.
type SaveSucceeded struct{}

// SaveFailed records an autosave failure.
type SaveFailed struct{ Err error }

func (SetFiles) isAction()              {}
func (SetCurrentWorkingFile) isAction() {}
func (PatchFile) isAction()             {}
func (ToggleFolder) isAction()          {}
func (SetFilenameForm) isAction()       {}
func (ResetFilenameForm) isAction()     {}
func (ContentChanged) isAction()        {}
func (SaveSucceeded) isAction()         {}
func (SaveFailed) isAction()            {}

// Reduce applies a to s and returns the next state. It never mutates s.
func Reduce(s State, a Action) State {
	switch a := a.(type) {
	case SetFiles:
		s.Files = a.Files
		if s.CurrentWorkingFile != nil {
			n, ok := tree.New(s.Home, s.Files).Lookup(s.CurrentWorkingFile.Path)
			if ok && !n.IsFolder() {
				s.CurrentWorkingFile = n
			} else {
				s.CurrentWorkingFile = nil
			}
		}

	case SetCurrentWorkingFile:
		s.CurrentWorkingFile = a.File

	case PatchFile:
		if a.Node == nil {
			return s
		}
		if t, ok := tree.New(s.Home, s.Files).Upsert(a.Node); ok {
			s.Files = t.Index()
		}
		if s.CurrentWorkingFile != nil && s.CurrentWorkingFile.Path == a.Node.Path {
			s.CurrentWorkingFile = a.Node
		}

	case ToggleFolder:
		t, ok := tree.New(s.Home, s.Files).Update(a.Path, func(n *models.Node) {
			if n.IsFolder() {
				n.Open = !n.Open
			}
		})
		if ok {
			s.Files = t.Index()
		}

	case SetFilenameForm:
		s.Form = a.Form

	case ResetFilenameForm:
		s.Form = FilenameForm{}

	case ContentChanged:
		s.Unsaved = true

	case SaveSucceeded:
		s.Unsaved = false
		s.SaveError = ""

	case SaveFailed:
		s.Unsaved = true
		if a.Err != nil {
			s.SaveError = a.Err.Error()
		}
	}
	return s
}
