// Package session implements the main screen flows that tie the store, the
// editor bridge and the persisted editor state together.
package session

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/mattsolo1/grove-mdpad/pkg/editor"
	"github.com/mattsolo1/grove-mdpad/pkg/filesystem"
	"github.com/mattsolo1/grove-mdpad/pkg/models"
	"github.com/mattsolo1/grove-mdpad/pkg/store"
)

// StateCache is the persisted editor state.
type StateCache interface {
	EditorState(ctx context.Context) (*models.EditorCache, error)
	MergeEditorState(ctx context.Context, state models.EditorCache) error
	ClearEditorState(ctx context.Context) error
}

type Session struct {
	store  *store.Store
	bridge *editor.Bridge
	cache  StateCache
	log    *logrus.Entry
}

func New(st *store.Store, bridge *editor.Bridge, cache StateCache, log *logrus.Entry) *Session {
	return &Session{
		store:  st,
		bridge: bridge,
		cache:  cache,
		log:    log,
	}
}

// NewFile saves pending edits, clears the editor and forgets the open file.
func (s *Session) NewFile(ctx context.Context) error {
	if err := s.bridge.Flush(ctx); err != nil {
		s.log.WithError(err).Warn("Failed to save before new file")
	}
	if err := s.bridge.Reset(ctx); err != nil {
		return err
	}
	s.store.ClearCurrentWorkingFile()
	return s.cache.ClearEditorState(ctx)
}

// OpenFile makes entry the current file and shows it in the editor.
func (s *Session) OpenFile(ctx context.Context, entry *models.FileEntry) (*models.Node, error) {
	if err := s.bridge.Flush(ctx); err != nil {
		s.log.WithError(err).Warn("Failed to save before switching files")
	}
	node, err := s.store.LoadFile(ctx, entry)
	if err != nil {
		return nil, err
	}
	if err := s.bridge.LoadValue(ctx, node.Content); err != nil {
		return node, err
	}
	if err := s.cache.MergeEditorState(ctx, models.EditorCache{File: &node.FileEntry}); err != nil {
		s.log.WithError(err).Warn("Failed to persist open file")
	}
	return node, nil
}

// DeleteItem deletes a file or folder. Deleting the open file, or a folder
// containing it, starts a new file. Items already gone are ignored.
func (s *Session) DeleteItem(ctx context.Context, item *models.Node) error {
	current := s.store.State().CurrentWorkingFile
	wasCurrent := current != nil &&
		(current.Path == item.Path || strings.HasPrefix(current.Path, item.Path+"/"))

	if wasCurrent {
		if err := s.bridge.Flush(ctx); err != nil {
			s.log.WithError(err).Warn("Failed to save before delete")
		}
	}

	if err := s.store.DeleteFile(ctx, &item.FileEntry); err != nil {
		if errors.Is(err, filesystem.ErrNotFound) {
			s.log.WithField("path", item.Path).Warn("Item already deleted")
			return nil
		}
		return err
	}

	if wasCurrent {
		return s.NewFile(ctx)
	}
	return nil
}

// EditorLoaded attaches sink and restores the cached file, position and view state.
func (s *Session) EditorLoaded(ctx context.Context, sink editor.Sink) error {
	if err := s.bridge.LoadEnd(ctx, sink); err != nil {
		return err
	}

	cached, err := s.cache.EditorState(ctx)
	if err != nil {
		s.log.WithError(err).Warn("Ignoring unreadable editor cache")
		return nil
	}
	if cached == nil {
		return nil
	}

	if cached.ViewState != nil {
		s.bridge.SetViewState(*cached.ViewState)
	}
	if cached.File == nil {
		return nil
	}
	if _, err := s.OpenFile(ctx, cached.File); err != nil {
		if errors.Is(err, filesystem.ErrNotFound) {
			s.log.WithField("path", cached.File.Path).Info("Cached file is gone, starting fresh")
			return s.cache.ClearEditorState(ctx)
		}
		return err
	}
	if cached.Position != nil && !cached.Position.IsDefault() {
		return s.bridge.SetPosition(ctx, *cached.Position)
	}
	return nil
}

// Background saves everything and persists the editor state.
func (s *Session) Background(ctx context.Context) error {
	if err := s.bridge.Flush(ctx); err != nil {
		s.log.WithError(err).Warn("Failed to save on background")
	}

	state := models.EditorCache{Position: s.bridge.Position()}
	view := s.bridge.ViewState()
	state.ViewState = &view
	if cur := s.store.State().CurrentWorkingFile; cur != nil {
		entry := cur.FileEntry
		state.File = &entry
	}
	return s.cache.MergeEditorState(ctx, state)
}
