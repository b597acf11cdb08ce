// Package watch refreshes the note index when files change on disk outside
// the application.
package watch

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	bepdebounce "github.com/bep/debounce"
	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/mattsolo1/grove-mdpad/pkg/metrics"
)

// DefaultDelay batches bursts of filesystem events into one refresh.
const DefaultDelay = 300 * time.Millisecond

// Filter decides which paths are interesting. The repository implements it.
type Filter interface {
	IsReadable(name string) bool
	IsExcludedDir(name string) bool
}

type Option func(*Watcher)

func WithDelay(d time.Duration) Option {
	return func(w *Watcher) { w.delay = d }
}

func WithLogger(log *logrus.Entry) Option {
	return func(w *Watcher) { w.log = log }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Watcher) { w.metrics = m }
}

// WithSkip drops write events for files skip reports as unchanged, such as
// the echo of the application's own saves.
func WithSkip(skip func(ctx context.Context, path string) bool) Option {
	return func(w *Watcher) { w.skip = skip }
}

// Watcher watches a directory tree and calls refresh after changes settle.
type Watcher struct {
	root    string
	filter  Filter
	refresh func(ctx context.Context) error
	delay   time.Duration
	log     *logrus.Entry
	metrics *metrics.Metrics
	skip    func(ctx context.Context, path string) bool

	mu       sync.Mutex
	fsw      *fsnotify.Watcher
	cancel   context.CancelFunc
	done     chan struct{}
	schedule func(func())
}

func New(root string, filter Filter, refresh func(ctx context.Context) error, opts ...Option) *Watcher {
	w := &Watcher{
		root:    root,
		filter:  filter,
		refresh: refresh,
		delay:   DefaultDelay,
		log:     logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.schedule = bepdebounce.New(w.delay)
	return w
}

// Start begins watching root and every directory below it.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fsw != nil {
		return errors.New("watcher already started")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsw.Add(w.root); err != nil {
		fsw.Close()
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	w.fsw = fsw
	w.cancel = cancel
	w.done = make(chan struct{})

	w.addTree(w.root, false)

	go w.loop(ctx, fsw, w.done)
	w.log.WithField("root", w.root).Debug("Watching for changes")
	return nil
}

// addTree watches every directory below dir. The root itself is added by the
// caller unless includeSelf is set.
func (w *Watcher) addTree(dir string, includeSelf bool) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path == dir && !includeSelf {
			return nil
		}
		if w.filter.IsExcludedDir(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			w.log.WithError(err).WithField("dir", path).Warn("Cannot watch directory")
		}
		return nil
	})
}

func (w *Watcher) loop(ctx context.Context, fsw *fsnotify.Watcher, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if w.handle(ctx, event) {
				w.metrics.RecordWatchEvent()
				w.schedule(func() { w.fire(ctx) })
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.log.WithError(err).Warn("Watcher error")
		}
	}
}

// handle reports whether event should trigger a refresh.
func (w *Watcher) handle(ctx context.Context, event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	name := filepath.Base(event.Name)

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if w.filter.IsExcludedDir(name) {
				return false
			}
			w.mu.Lock()
			if w.fsw != nil {
				// Directories moved in or created with parents may already
				// hold subdirectories.
				w.addTree(event.Name, true)
			}
			w.mu.Unlock()
			return true
		}
	}

	// Removed or renamed paths can no longer be stat'ed, so any of them may
	// have been a folder.
	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		return !w.filter.IsExcludedDir(name)
	}
	if !w.filter.IsReadable(name) {
		return false
	}
	if w.skip != nil && w.skip(ctx, event.Name) {
		w.log.WithField("path", event.Name).Trace("Skipping unchanged file")
		return false
	}
	return true
}

func (w *Watcher) fire(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if err := w.refresh(ctx); err != nil {
		w.log.WithError(err).Warn("Refresh after file change failed")
	}
}

// Close stops watching. Refreshes scheduled after Close are dropped.
func (w *Watcher) Close() error {
	w.mu.Lock()
	fsw, cancel, done := w.fsw, w.cancel, w.done
	w.fsw = nil
	w.mu.Unlock()

	if fsw == nil {
		return nil
	}
	cancel()
	err := fsw.Close()
	<-done
	return err
}
