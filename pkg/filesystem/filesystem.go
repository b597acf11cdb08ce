// Package filesystem is the path-addressed filesystem capability the note
// store is built on.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/mattsolo1/grove-mdpad/pkg/models"
)

// ErrNotFound is returned when a path does not exist.
var ErrNotFound = errors.New("not found")

// FS reads and writes files by absolute path.
type FS interface {
	ReadDir(ctx context.Context, path string) ([]models.FileEntry, error)
	ReadFile(ctx context.Context, path string) (string, error)
	WriteFile(ctx context.Context, path, content string) error
	Stat(ctx context.Context, path string) (models.FileEntry, error)
	Mkdir(ctx context.Context, path string) error
	Unlink(ctx context.Context, path string) error
	MoveFile(ctx context.Context, src, dst string) error
	Exists(ctx context.Context, path string) (bool, error)
}

// Afero implements FS on top of an afero filesystem.
type Afero struct {
	fs afero.Fs
}

// New wraps an afero filesystem.
func New(fs afero.Fs) *Afero {
	return &Afero{fs: fs}
}

// NewOS returns an FS backed by the host filesystem.
func NewOS() *Afero {
	return New(afero.NewOsFs())
}

// Fs exposes the underlying afero filesystem.
func (a *Afero) Fs() afero.Fs {
	return a.fs
}

func (a *Afero) ReadDir(ctx context.Context, path string) ([]models.FileEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	infos, err := afero.ReadDir(a.fs, path)
	if err != nil {
		return nil, wrap("read dir", path, err)
	}

	entries := make([]models.FileEntry, 0, len(infos))
	for _, info := range infos {
		entries = append(entries, adapt(filepath.Join(path, info.Name()), info))
	}
	return entries, nil
}

func (a *Afero) ReadFile(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := afero.ReadFile(a.fs, path)
	if err != nil {
		return "", wrap("read file", path, err)
	}
	return string(data), nil
}

func (a *Afero) WriteFile(ctx context.Context, path, content string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := afero.WriteFile(a.fs, path, []byte(content), 0644); err != nil {
		return wrap("write file", path, err)
	}
	return nil
}

func (a *Afero) Stat(ctx context.Context, path string) (models.FileEntry, error) {
	if err := ctx.Err(); err != nil {
		return models.FileEntry{}, err
	}
	info, err := a.fs.Stat(path)
	if err != nil {
		return models.FileEntry{}, wrap("stat", path, err)
	}
	return adapt(path, info), nil
}

func (a *Afero) Mkdir(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := a.fs.MkdirAll(path, 0755); err != nil {
		return wrap("mkdir", path, err)
	}
	return nil
}

// Unlink removes path. Directories are removed recursively.
func (a *Afero) Unlink(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := a.fs.Stat(path); err != nil {
		return wrap("unlink", path, err)
	}
	if err := a.fs.RemoveAll(path); err != nil {
		return wrap("unlink", path, err)
	}
	return nil
}

func (a *Afero) MoveFile(ctx context.Context, src, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := a.fs.Rename(src, dst); err != nil {
		return wrap("move "+src+" to", dst, err)
	}
	return nil
}

func (a *Afero) Exists(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	ok, err := afero.Exists(a.fs, path)
	if err != nil {
		return false, wrap("exists", path, err)
	}
	return ok, nil
}

func adapt(path string, info fs.FileInfo) models.FileEntry {
	return models.NewFileEntry(path, info.IsDir(), info.Size(), info.ModTime())
}

func wrap(op, path string, err error) error {
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%s %s: %w", op, path, ErrNotFound)
	}
	return fmt.Errorf("%s %s: %w", op, path, err)
}
