// Package store holds the document state shared by the file browser and the
// editor: the file index, the open file, and the filename dialog. Every
// change goes through Reduce; I/O happens in the operations around it.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mattsolo1/grove-mdpad/pkg/debounce"
	"github.com/mattsolo1/grove-mdpad/pkg/metrics"
	"github.com/mattsolo1/grove-mdpad/pkg/models"
	"github.com/mattsolo1/grove-mdpad/pkg/repository"
	"github.com/mattsolo1/grove-mdpad/pkg/tree"
)

// DefaultAutosaveDelay is how long edits settle before they are written.
const DefaultAutosaveDelay = time.Second

// ErrNoSuchFile is returned when an operation names a file missing from the index.
var ErrNoSuchFile = errors.New("no such file in index")

// Indexer is kept in step with note contents.
type Indexer interface {
	Reindex(ctx context.Context, files models.FileIndex) error
	IndexNote(ctx context.Context, note *models.Node) error
}

// Store is safe for concurrent use.
type Store struct {
	repo     *repository.Repository
	log      *logrus.Entry
	indexer  Indexer
	metrics  *metrics.Metrics
	delay    time.Duration
	autosave *debounce.Debouncer

	mu    sync.Mutex
	state   State
	dirty   map[string]bool
	written map[string]string // path to the content autosave last wrote
	subs    map[int]func(State)
	next    int
}

// Option configures a Store.
type Option func(*Store)

func WithAutosaveDelay(d time.Duration) Option {
	return func(s *Store) { s.delay = d }
}

func WithLogger(log *logrus.Entry) Option {
	return func(s *Store) { s.log = log }
}

func WithIndexer(idx Indexer) Option {
	return func(s *Store) { s.indexer = idx }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// New creates an empty store. Call Load to populate it.
func New(repo *repository.Repository, opts ...Option) *Store {
	s := &Store{
		repo:  repo,
		log:   logrus.NewEntry(logrus.StandardLogger()),
		delay: DefaultAutosaveDelay,
		state: State{Home: repo.Home(), Files: models.FileIndex{}},
		dirty:   make(map[string]bool),
		written: make(map[string]string),
		subs:    make(map[int]func(State)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.autosave = debounce.New(s.delay, s.save, debounce.WithErrorHandler(func(err error) {
		s.log.WithError(err).Warn("Autosave failed")
	}))
	return s
}

// State returns the current snapshot.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Dispatch applies an action and notifies subscribers with the new snapshot.
func (s *Store) Dispatch(a Action) State {
	s.mu.Lock()
	s.state = Reduce(s.state, a)
	next := s.state
	subs := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(next)
	}
	return next
}

// Subscribe registers fn for every state change. The returned func unregisters it.
func (s *Store) Subscribe(fn func(State)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.next
	s.next++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// Lookup finds a node anywhere in the current index.
func (s *Store) Lookup(path string) (*models.Node, bool) {
	st := s.State()
	return tree.New(st.Home, st.Files).Lookup(path)
}

// Load creates the home directory if needed and reads the index.
func (s *Store) Load(ctx context.Context) error {
	if err := s.repo.Init(ctx); err != nil {
		return err
	}
	start := time.Now()
	files, err := s.repo.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("load files: %w", err)
	}
	s.metrics.RecordRefresh(time.Since(start))
	st := s.Dispatch(SetFiles{Files: files})
	s.afterRefresh(ctx, st)
	return nil
}

// Refresh rebuilds the index from disk, keeping folder expansion and any edits
// that could not be written yet.
func (s *Store) Refresh(ctx context.Context) error {
	if err := s.Flush(ctx); err != nil {
		s.log.WithError(err).Warn("Flush before refresh failed, keeping unsaved edits")
	}

	start := time.Now()
	fresh, err := s.repo.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("refresh files: %w", err)
	}
	s.metrics.RecordRefresh(time.Since(start))

	s.mu.Lock()
	old := s.state.Files
	home := s.state.Home
	dirty := make([]string, 0, len(s.dirty))
	for p := range s.dirty {
		dirty = append(dirty, p)
	}
	// The index now matches the disk.
	s.written = make(map[string]string)
	s.mu.Unlock()

	merged := tree.New(home, tree.MergeOpen(old, fresh))
	prev := tree.New(home, old)
	for _, p := range dirty {
		edited, ok := prev.Lookup(p)
		if !ok {
			continue
		}
		if n, ok := merged.Lookup(p); ok && !n.IsFolder() {
			merged, _ = merged.Upsert(n.WithContent(edited.Content))
		}
	}

	st := s.Dispatch(SetFiles{Files: merged.Index()})
	s.afterRefresh(ctx, st)
	return nil
}

func (s *Store) afterRefresh(ctx context.Context, st State) {
	s.metrics.SetTreeSize(tree.New(st.Home, st.Files).Len())
	if s.indexer == nil {
		return
	}
	if err := s.indexer.Reindex(ctx, st.Files); err != nil {
		s.log.WithError(err).Warn("Failed to rebuild search index")
	}
}

// UpdateFile records new contents for file. A nil file creates a new note
// named after contents; blank contents then create nothing and return nil.
// Existing files are written by the debounced autosave.
func (s *Store) UpdateFile(ctx context.Context, contents string, file *models.FileEntry) (*models.Node, error) {
	if file == nil {
		path, err := s.repo.NewFile(ctx, contents)
		if err != nil {
			return nil, err
		}
		if path == "" {
			return nil, nil
		}
		node, err := s.repo.ReadFile(ctx, path)
		if err != nil {
			return nil, err
		}
		s.Dispatch(PatchFile{Node: node})
		s.Dispatch(SetCurrentWorkingFile{File: node})
		s.indexNote(ctx, node)
		s.log.WithField("path", path).Debug("Created note")
		return node, nil
	}

	current, ok := s.Lookup(file.Path)
	if !ok || current.IsFolder() {
		return nil, fmt.Errorf("%s: %w", file.Path, ErrNoSuchFile)
	}
	if current.Content == contents {
		return current, nil
	}

	updated := current.WithContent(contents)
	s.Dispatch(PatchFile{Node: updated})
	s.mu.Lock()
	s.dirty[updated.Path] = true
	s.mu.Unlock()
	s.Dispatch(ContentChanged{})
	s.autosave.Trigger()
	return updated, nil
}

// save writes the current content of every dirty file.
func (s *Store) save(ctx context.Context) error {
	s.mu.Lock()
	if len(s.dirty) == 0 {
		s.mu.Unlock()
		return nil
	}
	t := tree.New(s.state.Home, s.state.Files)
	batch := models.FileIndex{}
	for p := range s.dirty {
		if n, ok := t.Lookup(p); ok && !n.IsFolder() {
			batch[p] = n
		}
	}
	s.dirty = make(map[string]bool)
	s.mu.Unlock()

	if err := s.repo.SyncFiles(ctx, batch); err != nil {
		s.mu.Lock()
		for p := range batch {
			s.dirty[p] = true
		}
		s.mu.Unlock()
		s.metrics.RecordSave(0, err)
		s.Dispatch(SaveFailed{Err: err})
		return err
	}

	s.metrics.RecordSave(len(batch), nil)
	s.mu.Lock()
	for p, n := range batch {
		s.written[p] = n.Content
	}
	clean := len(s.dirty) == 0
	s.mu.Unlock()
	if clean {
		s.Dispatch(SaveSucceeded{})
	}
	for _, n := range batch {
		s.indexNote(ctx, n)
	}
	s.log.WithField("files", len(batch)).Debug("Autosaved")
	return nil
}

// IsOwnWrite reports whether path still holds exactly what autosave last wrote
// to it, so a change event for it carries nothing the index lacks.
func (s *Store) IsOwnWrite(ctx context.Context, path string) bool {
	s.mu.Lock()
	content, ok := s.written[path]
	s.mu.Unlock()
	if !ok {
		return false
	}

	n, err := s.repo.ReadFile(ctx, path)
	if err == nil && n.Content == content {
		return true
	}
	// Someone else wrote it since.
	s.mu.Lock()
	if s.written[path] == content {
		delete(s.written, path)
	}
	s.mu.Unlock()
	return false
}

func (s *Store) indexNote(ctx context.Context, n *models.Node) {
	if s.indexer == nil {
		return
	}
	if err := s.indexer.IndexNote(ctx, n); err != nil {
		s.log.WithError(err).WithField("path", n.Path).Warn("Failed to index note")
	}
}

// DeleteFile removes file from disk and refreshes the index. Pending edits to
// it are discarded.
func (s *Store) DeleteFile(ctx context.Context, file *models.FileEntry) error {
	s.mu.Lock()
	for p := range s.dirty {
		if p == file.Path || strings.HasPrefix(p, file.Path+"/") {
			delete(s.dirty, p)
		}
	}
	s.mu.Unlock()

	if err := s.repo.DeleteFile(ctx, file.Path); err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	return s.Refresh(ctx)
}

// NewFolder creates a folder and refreshes the index.
func (s *Store) NewFolder(ctx context.Context, name string) (string, error) {
	path, err := s.repo.NewFolder(ctx, name)
	if err != nil {
		return "", err
	}
	return path, s.Refresh(ctx)
}

// UpdateFilename renames file, or creates an empty note when file is nil. The
// result becomes the current file when it was current or newly created.
func (s *Store) UpdateFilename(ctx context.Context, name string, file *models.FileEntry) (*models.Node, error) {
	if err := s.Flush(ctx); err != nil {
		return nil, fmt.Errorf("save before rename: %w", err)
	}

	st := s.State()
	wasCurrent := file != nil && st.CurrentWorkingFile != nil && st.CurrentWorkingFile.Path == file.Path

	node, err := s.repo.UpdateFilename(ctx, name, file)
	if err != nil {
		return nil, err
	}
	if err := s.Refresh(ctx); err != nil {
		return nil, err
	}

	if wasCurrent || file == nil {
		if n, ok := s.Lookup(node.Path); ok {
			node = n
		}
		s.Dispatch(SetCurrentWorkingFile{File: node})
	}
	return node, nil
}

// RenameFolder renames a folder in place. An open file inside it stays open
// under its new path.
func (s *Store) RenameFolder(ctx context.Context, name string, folder *models.FileEntry) (string, error) {
	if err := s.Flush(ctx); err != nil {
		return "", fmt.Errorf("save before rename: %w", err)
	}

	var currentPath string
	if cur := s.State().CurrentWorkingFile; cur != nil {
		currentPath = cur.Path
	}

	path, err := s.repo.RenameFolder(ctx, name, folder)
	if err != nil {
		return "", err
	}
	if err := s.Refresh(ctx); err != nil {
		return "", err
	}

	if strings.HasPrefix(currentPath, folder.Path+"/") {
		moved := path + strings.TrimPrefix(currentPath, folder.Path)
		if n, ok := s.Lookup(moved); ok {
			s.Dispatch(SetCurrentWorkingFile{File: n})
		}
	}
	return path, nil
}

// ToggleFolderOpen flips a folder's expansion. No I/O.
func (s *Store) ToggleFolderOpen(path string) {
	s.Dispatch(ToggleFolder{Path: path})
}

// LoadFile opens entry. Entries not in the index, such as one restored from
// the persisted cache, are read from disk first.
func (s *Store) LoadFile(ctx context.Context, entry *models.FileEntry) (*models.Node, error) {
	if n, ok := s.Lookup(entry.Path); ok && !n.IsFolder() {
		s.Dispatch(SetCurrentWorkingFile{File: n})
		return n, nil
	}

	node, err := s.repo.ReadFile(ctx, entry.Path)
	if err != nil {
		return nil, fmt.Errorf("load file: %w", err)
	}
	s.Dispatch(PatchFile{Node: node})
	s.Dispatch(SetCurrentWorkingFile{File: node})
	return node, nil
}

// ClearCurrentWorkingFile closes the open file.
func (s *Store) ClearCurrentWorkingFile() {
	s.Dispatch(SetCurrentWorkingFile{File: nil})
}

// Flush writes pending edits now.
func (s *Store) Flush(ctx context.Context) error {
	return s.autosave.Flush(ctx)
}

// Close flushes pending edits and stops the autosave timer.
func (s *Store) Close(ctx context.Context) error {
	err := s.Flush(ctx)
	s.autosave.Stop()
	return err
}
