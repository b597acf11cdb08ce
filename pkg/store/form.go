package store

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/mattsolo1/grove-mdpad/pkg/models"
)

// Dialog is what the filename dialog should display.
type Dialog struct {
	Visible bool
	Title   string
	Input   string
}

// ShowFileChangeForm opens the filename dialog. item is the entry to rename,
// nil to create one; refItem anchors a new entry to its folder.
func (s *Store) ShowFileChangeForm(item, refItem *models.Node, kind FormKind) {
	input := ""
	if item != nil {
		input = item.Name
		if !item.IsFolder() {
			input = strings.TrimSuffix(item.Name, filepath.Ext(item.Name))
		}
	}
	s.Dispatch(SetFilenameForm{Form: FilenameForm{
		Editing: true,
		Input:   input,
		Item:    item,
		RefItem: refItem,
		Kind:    kind,
	}})
}

// UpdateFilenameFormInput sets the dialog's text.
func (s *Store) UpdateFilenameFormInput(value string) {
	form := s.State().Form
	form.Input = value
	s.Dispatch(SetFilenameForm{Form: form})
}

// ResetFilenameForm closes the dialog.
func (s *Store) ResetFilenameForm() {
	s.Dispatch(ResetFilenameForm{})
}

// FileChangeDialog describes the dialog for the current form state.
func (s *Store) FileChangeDialog() Dialog {
	form := s.State().Form
	return Dialog{
		Visible: form.Editing,
		Title:   dialogTitle(form),
		Input:   form.Input,
	}
}

func dialogTitle(form FilenameForm) string {
	if form.Item != nil {
		return "Rename " + form.Kind.String() + " " + form.Item.Name + " to "
	}
	return "New " + form.Kind.String()
}

// SubmitFileChangeForm applies the dialog. New entries are created inside
// RefItem's folder when one is set. The dialog stays open on error.
func (s *Store) SubmitFileChangeForm(ctx context.Context) error {
	form := s.State().Form
	if !form.Editing {
		return nil
	}

	var err error
	switch {
	case form.Kind == FormFolder && form.Item != nil:
		_, err = s.RenameFolder(ctx, form.Input, &form.Item.FileEntry)
	case form.Kind == FormFolder:
		_, err = s.NewFolder(ctx, s.anchoredName(form))
	case form.Item != nil:
		_, err = s.UpdateFilename(ctx, form.Input, &form.Item.FileEntry)
	default:
		_, err = s.UpdateFilename(ctx, s.anchoredName(form), nil)
	}
	if err != nil {
		return err
	}

	s.ResetFilenameForm()
	return nil
}

// anchoredName prefixes the dialog input with RefItem's folder relative to home.
func (s *Store) anchoredName(form FilenameForm) string {
	name := strings.TrimSpace(form.Input)
	if form.RefItem == nil {
		return name
	}
	dir := form.RefItem.ParentDir
	if form.RefItem.IsFolder() {
		dir = form.RefItem.Path
	}
	rel := s.repo.Rel(dir)
	if rel == "" {
		return name
	}
	return rel + "/" + name
}
