// Package repository maps the notes home directory onto a typed FileIndex and
// writes changes back.
package repository

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/unicode/norm"

	"github.com/mattsolo1/grove-mdpad/pkg/filesystem"
	"github.com/mattsolo1/grove-mdpad/pkg/models"
	"github.com/mattsolo1/grove-mdpad/pkg/tree"
)

const (
	noteExtension   = ".md"
	defaultFilename = "untitled"
	// filenameRunes is how much of a new note's content is used for its name.
	filenameRunes = 10
	syncWorkers   = 8
)

var (
	// ErrInvalidName is returned for names that carry an extension or escape the home directory.
	ErrInvalidName = errors.New("invalid name")
	// ErrExists is returned when a rename or create target is already taken.
	ErrExists = errors.New("already exists")
	// ErrNotFound aliases filesystem.ErrNotFound.
	ErrNotFound = filesystem.ErrNotFound
)

var (
	DefaultExtensions   = []string{".md", ".txt"}
	DefaultExcludedDirs = []string{"RCTAsyncLocalStorage_V1"}

	extensionPattern = regexp.MustCompile(`\.\w+`)
)

// Config holds repository configuration
type Config struct {
	Home         string
	Extensions   []string
	ExcludedDirs []string
}

// Repository is a stateless facade over a filesystem rooted at Home.
type Repository struct {
	fs         filesystem.FS
	home       string
	extensions map[string]bool
	excluded   map[string]bool
	log        *logrus.Entry
}

// Option configures a Repository.
type Option func(*Repository)

// WithLogger sets the logger used for per-entry warnings.
func WithLogger(log *logrus.Entry) Option {
	return func(r *Repository) {
		r.log = log
	}
}

// New creates a repository.
func New(fs filesystem.FS, cfg Config, opts ...Option) *Repository {
	exts := cfg.Extensions
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	excluded := cfg.ExcludedDirs
	if excluded == nil {
		excluded = DefaultExcludedDirs
	}

	r := &Repository{
		fs:         fs,
		home:       filepath.Clean(cfg.Home),
		extensions: make(map[string]bool),
		excluded:   make(map[string]bool),
		log:        logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, ext := range exts {
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		r.extensions[strings.ToLower(ext)] = true
	}
	for _, name := range excluded {
		r.excluded[name] = true
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Home returns the root directory of the notes.
func (r *Repository) Home() string {
	return r.home
}

// Init makes sure the home directory exists.
func (r *Repository) Init(ctx context.Context) error {
	if err := r.fs.Mkdir(ctx, r.home); err != nil {
		return fmt.Errorf("create home: %w", err)
	}
	return nil
}

// IsReadable reports whether a file name has a recognized text extension.
func (r *Repository) IsReadable(name string) bool {
	return r.extensions[strings.ToLower(filepath.Ext(name))]
}

// IsExcludedDir reports whether a directory name is hidden from the index.
func (r *Repository) IsExcludedDir(name string) bool {
	return r.excluded[name]
}

// GetAll builds a fresh index of the home directory. Every folder starts open.
// Entries that cannot be read are kept with Err set; only a failure to list
// the home directory itself is returned.
func (r *Repository) GetAll(ctx context.Context) (models.FileIndex, error) {
	entries, err := r.fs.ReadDir(ctx, r.home)
	if err != nil {
		return nil, fmt.Errorf("read home: %w", err)
	}

	index := r.generateIndex(ctx, r.home, entries)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return index, nil
}

func (r *Repository) generateIndex(ctx context.Context, parentDir string, entries []models.FileEntry) models.FileIndex {
	index := models.FileIndex{}
	for _, entry := range entries {
		switch {
		case entry.IsDirectory:
			if r.excluded[entry.Name] {
				continue
			}
			folder := models.NewFolderNode(entry, parentDir, nil)
			children, err := r.fs.ReadDir(ctx, entry.Path)
			if err != nil {
				r.log.WithError(err).WithField("path", entry.Path).Warn("Skipping unreadable folder")
				folder.Err = err.Error()
			} else {
				folder.Files = r.generateIndex(ctx, entry.Path, children)
			}
			index[entry.Path] = folder

		case r.IsReadable(entry.Name):
			content, err := r.fs.ReadFile(ctx, entry.Path)
			node := models.NewFileNode(entry, parentDir, content)
			if err != nil {
				r.log.WithError(err).WithField("path", entry.Path).Warn("Skipping unreadable file")
				node.Err = err.Error()
			}
			index[entry.Path] = node
		}
	}
	return index
}

// UpdateFile returns a copy of index with node replaced or inserted at its
// path. When the node's parent folder is not in the index the original index
// is returned.
func (r *Repository) UpdateFile(index models.FileIndex, node *models.Node) models.FileIndex {
	updated, _ := tree.New(r.home, index).Upsert(node)
	return updated.Index()
}

// DeleteFile removes a file or folder from disk. The index must be refreshed afterwards.
func (r *Repository) DeleteFile(ctx context.Context, path string) error {
	ok, err := r.fs.Exists(ctx, path)
	if err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	if !ok {
		return fmt.Errorf("delete %s: %w", path, ErrNotFound)
	}
	if err := r.fs.Unlink(ctx, path); err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	return nil
}

// NewFolder creates a directory under home. name may be a nested relative path.
func (r *Repository) NewFolder(ctx context.Context, name string) (string, error) {
	rel, err := cleanRelative(name)
	if err != nil {
		return "", err
	}
	path := filepath.Join(r.home, rel)
	if err := r.fs.Mkdir(ctx, path); err != nil {
		return "", fmt.Errorf("new folder: %w", err)
	}
	return path, nil
}

// NewFile writes contents to a new note named after its first characters and
// returns its path. Blank contents create nothing and return "".
func (r *Repository) NewFile(ctx context.Context, contents string) (string, error) {
	if strings.TrimSpace(contents) == "" {
		return "", nil
	}

	path, err := r.uniquePath(ctx, r.home, NormalizeFilename(contents))
	if err != nil {
		return "", err
	}
	if err := r.fs.WriteFile(ctx, path, contents); err != nil {
		return "", fmt.Errorf("new file: %w", err)
	}
	return path, nil
}

// NormalizeFilename derives a note name from the start of its content.
func NormalizeFilename(contents string) string {
	runes := []rune(contents)
	if len(runes) > filenameRunes {
		runes = runes[:filenameRunes]
	}

	var sb strings.Builder
	for _, c := range norm.NFC.String(string(runes)) {
		if unicode.IsSpace(c) || unicode.IsControl(c) || strings.ContainsRune(`/\:*?"<>|`, c) {
			continue
		}
		sb.WriteRune(c)
	}

	name := strings.Trim(sb.String(), ".")
	if name == "" {
		return defaultFilename
	}
	return name
}

func (r *Repository) uniquePath(ctx context.Context, dir, base string) (string, error) {
	for i := 0; i < 1000; i++ {
		name := base + noteExtension
		if i > 0 {
			name = fmt.Sprintf("%s-%d%s", base, i, noteExtension)
		}
		path := filepath.Join(dir, name)
		ok, err := r.fs.Exists(ctx, path)
		if err != nil {
			return "", fmt.Errorf("check %s: %w", path, err)
		}
		if !ok {
			return path, nil
		}
	}
	return "", fmt.Errorf("no free name for %s: %w", base, ErrExists)
}

// UpdateFilename renames existing to newName.md within its folder, or creates
// an empty newName.md under home when existing is nil or no longer on disk.
// newName must not carry an extension.
func (r *Repository) UpdateFilename(ctx context.Context, newName string, existing *models.FileEntry) (*models.Node, error) {
	if extensionPattern.MatchString(newName) {
		return nil, fmt.Errorf("%q: %w", newName, ErrInvalidName)
	}
	rel, err := cleanRelative(newName)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		ok, err := r.fs.Exists(ctx, existing.Path)
		if err != nil {
			return nil, fmt.Errorf("rename %s: %w", existing.Path, err)
		}
		if ok {
			target := filepath.Join(filepath.Dir(existing.Path), rel+noteExtension)
			if target == existing.Path {
				return r.ReadFile(ctx, target)
			}
			if err := r.ensureFree(ctx, target); err != nil {
				return nil, err
			}
			if err := r.fs.MoveFile(ctx, existing.Path, target); err != nil {
				return nil, fmt.Errorf("rename: %w", err)
			}
			return r.ReadFile(ctx, target)
		}
	}

	target := filepath.Join(r.home, rel+noteExtension)
	if err := r.ensureFree(ctx, target); err != nil {
		return nil, err
	}
	if err := r.fs.Mkdir(ctx, filepath.Dir(target)); err != nil {
		return nil, fmt.Errorf("create parent: %w", err)
	}
	if err := r.fs.WriteFile(ctx, target, ""); err != nil {
		return nil, fmt.Errorf("create %s: %w", target, err)
	}
	return r.ReadFile(ctx, target)
}

// RenameFolder moves a folder to newName within its parent and returns the new path.
func (r *Repository) RenameFolder(ctx context.Context, newName string, folder *models.FileEntry) (string, error) {
	rel, err := cleanRelative(newName)
	if err != nil {
		return "", err
	}
	if strings.Contains(rel, "/") {
		return "", fmt.Errorf("%q: %w", newName, ErrInvalidName)
	}

	target := filepath.Join(filepath.Dir(folder.Path), rel)
	if target == folder.Path {
		return target, nil
	}
	if err := r.ensureFree(ctx, target); err != nil {
		return "", err
	}
	if err := r.fs.MoveFile(ctx, folder.Path, target); err != nil {
		return "", fmt.Errorf("rename folder: %w", err)
	}
	return target, nil
}

func (r *Repository) ensureFree(ctx context.Context, path string) error {
	ok, err := r.fs.Exists(ctx, path)
	if err != nil {
		return fmt.Errorf("check %s: %w", path, err)
	}
	if ok {
		return fmt.Errorf("%s: %w", path, ErrExists)
	}
	return nil
}

// SyncFiles writes the content of every file in index to disk. Entries that
// failed to load are skipped so their on-disk content is never clobbered.
func (r *Repository) SyncFiles(ctx context.Context, index models.FileIndex) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(syncWorkers)

	for _, f := range tree.Files(index) {
		if f.Err != "" {
			continue
		}
		f := f
		g.Go(func() error {
			return r.fs.WriteFile(gctx, f.Path, f.Content)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("sync files: %w", err)
	}
	return nil
}

// GetFileByPath stats path.
func (r *Repository) GetFileByPath(ctx context.Context, path string) (*models.FileEntry, error) {
	entry, err := r.fs.Stat(ctx, path)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// ReadFile loads a single file node from disk.
func (r *Repository) ReadFile(ctx context.Context, path string) (*models.Node, error) {
	entry, err := r.GetFileByPath(ctx, path)
	if err != nil {
		return nil, err
	}
	if entry.IsDirectory {
		return nil, fmt.Errorf("%s is a folder: %w", path, ErrInvalidName)
	}
	content, err := r.fs.ReadFile(ctx, path)
	if err != nil {
		return nil, err
	}
	return models.NewFileNode(*entry, filepath.Dir(path), content), nil
}

// Rel returns path relative to home with a leading slash, or "" when path is
// outside home.
func (r *Repository) Rel(path string) string {
	rel, err := filepath.Rel(r.home, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return ""
	}
	return "/" + filepath.ToSlash(rel)
}

// cleanRelative validates a user supplied name, which may be a nested path
// relative to home.
func cleanRelative(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	for _, seg := range strings.Split(filepath.ToSlash(trimmed), "/") {
		if seg == ".." {
			return "", fmt.Errorf("%q: %w", name, ErrInvalidName)
		}
	}
	rel := strings.Trim(filepath.ToSlash(filepath.Clean("/"+trimmed)), "/")
	if rel == "" || rel == "." {
		return "", fmt.Errorf("%q: %w", name, ErrInvalidName)
	}
	return filepath.FromSlash(rel), nil
}
