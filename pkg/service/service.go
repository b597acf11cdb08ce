package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattsolo1/grove-core/util/pathutil"
	"github.com/sirupsen/logrus"

	"github.com/mattsolo1/grove-mdpad/pkg/cache"
	"github.com/mattsolo1/grove-mdpad/pkg/editor"
	"github.com/mattsolo1/grove-mdpad/pkg/filesystem"
	"github.com/mattsolo1/grove-mdpad/pkg/metrics"
	"github.com/mattsolo1/grove-mdpad/pkg/models"
	"github.com/mattsolo1/grove-mdpad/pkg/repository"
	"github.com/mattsolo1/grove-mdpad/pkg/search"
	"github.com/mattsolo1/grove-mdpad/pkg/session"
	"github.com/mattsolo1/grove-mdpad/pkg/store"
	"github.com/mattsolo1/grove-mdpad/pkg/watch"
)

// Config holds service configuration
type Config struct {
	HomeDir        string        `mapstructure:"home_dir"`
	DataDir        string        `mapstructure:"data_dir"`
	Extensions     []string      `mapstructure:"extensions"`
	ExcludedDirs   []string      `mapstructure:"excluded_dirs"`
	AutosaveDelay  time.Duration `mapstructure:"autosave_delay"`
	EditorDebounce time.Duration `mapstructure:"editor_debounce"`
	ListenAddr     string        `mapstructure:"listen_addr"`
	LogLevel       string        `mapstructure:"log_level"`
	Watch          bool          `mapstructure:"watch"`
}

// Service owns every component and their lifecycles
type Service struct {
	Config  *Config
	Repo    *repository.Repository
	Store   *store.Store
	Cache   *cache.Cache
	Index   *search.Index
	Bridge  *editor.Bridge
	Session *session.Session
	Server  *editor.Server
	Metrics *metrics.Metrics

	watcher *watch.Watcher
	log     *logrus.Logger
}

type Option func(*options)

type options struct {
	fs filesystem.FS
}

// WithFilesystem replaces the OS filesystem under the notes home.
func WithFilesystem(fs filesystem.FS) Option {
	return func(o *options) { o.fs = fs }
}

// New creates the service. Nothing is read from disk until Load.
func New(config *Config, log *logrus.Logger, opts ...Option) (*Service, error) {
	if config.HomeDir == "" {
		return nil, errors.New("home directory is not configured")
	}
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.fs == nil {
		o.fs = filesystem.NewOS()
	}

	m := metrics.New()

	c, err := cache.Open(config.DataDir, m)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	index, err := search.NewIndex(filepath.Join(config.DataDir, "index.db"))
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("create index: %w", err)
	}

	component := func(name string) *logrus.Entry {
		return log.WithField("component", name)
	}

	repo := repository.New(o.fs, repository.Config{
		Home:         config.HomeDir,
		Extensions:   config.Extensions,
		ExcludedDirs: config.ExcludedDirs,
	}, repository.WithLogger(component("repository")))

	storeOpts := []store.Option{
		store.WithLogger(component("store")),
		store.WithIndexer(index),
		store.WithMetrics(m),
	}
	if config.AutosaveDelay > 0 {
		storeOpts = append(storeOpts, store.WithAutosaveDelay(config.AutosaveDelay))
	}
	st := store.New(repo, storeOpts...)

	s := &Service{
		Config:  config,
		Repo:    repo,
		Store:   st,
		Cache:   c,
		Index:   index,
		Metrics: m,
		log:     log,
	}

	bridgeOpts := []editor.Option{
		editor.WithLogger(component("bridge")),
		editor.WithMetrics(m),
		editor.WithCache(c),
		editor.WithNewFileHandler(func(ctx context.Context) error {
			return s.Session.NewFile(ctx)
		}),
	}
	if config.EditorDebounce > 0 {
		bridgeOpts = append(bridgeOpts, editor.WithChangeDelay(config.EditorDebounce))
	}
	s.Bridge = editor.NewBridge(st, bridgeOpts...)
	s.Session = session.New(st, s.Bridge, c, component("session"))

	s.Server = editor.NewServer(s.Bridge, component("server"), m)
	s.Server.OnLoad = s.Session.EditorLoaded
	s.Server.OnClose = func(ctx context.Context) {
		if err := s.Session.Background(ctx); err != nil {
			component("server").WithError(err).Warn("Failed to persist editor state")
		}
	}

	if config.Watch {
		s.watcher = watch.New(config.HomeDir, repo, st.Refresh,
			watch.WithLogger(component("watch")),
			watch.WithMetrics(m),
			watch.WithSkip(st.IsOwnWrite))
	}

	return s, nil
}

// Load reads the notes home.
func (s *Service) Load(ctx context.Context) error {
	return s.Store.Load(ctx)
}

// Watch refreshes the index on outside changes to the notes home until
// Close. It does nothing when watching is turned off.
func (s *Service) Watch(ctx context.Context) error {
	if s.watcher == nil {
		return nil
	}
	if err := s.watcher.Start(ctx); err != nil {
		return fmt.Errorf("watch %s: %w", s.Config.HomeDir, err)
	}
	return nil
}

// ListenAndServe serves the editor endpoint until ctx is cancelled.
func (s *Service) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.Config.ListenAddr,
		Handler:           s.Server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.log.WithField("addr", s.Config.ListenAddr).Info("Editor endpoint listening")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.Server.Close()
	return srv.Shutdown(shutdownCtx)
}

// Resolve turns a path relative to the notes home, an absolute one, or one
// starting with ~ into the node in the index.
func (s *Service) Resolve(path string) (*models.Node, error) {
	abs := path
	if strings.HasPrefix(abs, "~") {
		expanded, err := pathutil.Expand(abs)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		abs = expanded
	}
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(s.Config.HomeDir, path)
	}
	abs = filepath.Clean(abs)
	if n, ok := s.Store.Lookup(abs); ok {
		return n, nil
	}
	return nil, fmt.Errorf("%s: %w", path, filesystem.ErrNotFound)
}

// CreateNote writes a new note named after its first line and returns it.
func (s *Service) CreateNote(ctx context.Context, contents string) (*models.Node, error) {
	if strings.TrimSpace(contents) == "" {
		return nil, errors.New("note is empty")
	}
	node, err := s.Store.UpdateFile(ctx, contents, nil)
	if err != nil {
		return nil, err
	}
	if node == nil {
		return nil, errors.New("note is empty")
	}
	return node, nil
}

// CreateNamedNote creates name.md under the notes home holding contents.
func (s *Service) CreateNamedNote(ctx context.Context, name, contents string) (*models.Node, error) {
	node, err := s.Store.UpdateFilename(ctx, name, nil)
	if err != nil {
		return nil, err
	}
	if contents == "" {
		return node, nil
	}
	if _, err := s.Store.UpdateFile(ctx, contents, &node.FileEntry); err != nil {
		return nil, err
	}
	if err := s.Store.Flush(ctx); err != nil {
		return nil, fmt.Errorf("save %s: %w", node.Path, err)
	}
	if n, ok := s.Store.Lookup(node.Path); ok {
		return n, nil
	}
	return node, nil
}

// Move renames a file or folder within its parent folder.
func (s *Service) Move(ctx context.Context, path, newName string) (string, error) {
	n, err := s.Resolve(path)
	if err != nil {
		return "", err
	}
	if n.IsFolder() {
		return s.Store.RenameFolder(ctx, newName, &n.FileEntry)
	}
	moved, err := s.Store.UpdateFilename(ctx, newName, &n.FileEntry)
	if err != nil {
		return "", err
	}
	return moved.Path, nil
}

// Remove deletes a file or folder.
func (s *Service) Remove(ctx context.Context, path string) error {
	n, err := s.Resolve(path)
	if err != nil {
		return err
	}
	return s.Session.DeleteItem(ctx, n)
}

// Search searches note titles, tags and contents.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]search.Result, error) {
	return s.Index.Search(ctx, query, limit)
}

// Close saves pending edits and releases every resource.
func (s *Service) Close(ctx context.Context) error {
	var errs []error
	if s.watcher != nil {
		errs = append(errs, s.watcher.Close())
	}
	errs = append(errs,
		s.Server.Close(),
		s.Bridge.Close(ctx),
		s.Store.Close(ctx),
		s.Index.Close(),
		s.Cache.Close(),
	)
	return errors.Join(errs...)
}
