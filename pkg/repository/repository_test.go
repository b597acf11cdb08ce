package repository

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattsolo1/grove-mdpad/pkg/filesystem"
	"github.com/mattsolo1/grove-mdpad/pkg/models"
)

const home = "/notes"

// countingFS records writes and lets tests inject read failures.
type countingFS struct {
	filesystem.FS

	mu       sync.Mutex
	writes   map[string]int
	failRead map[string]bool
}

func (c *countingFS) WriteFile(ctx context.Context, path, content string) error {
	c.mu.Lock()
	c.writes[path]++
	c.mu.Unlock()
	return c.FS.WriteFile(ctx, path, content)
}

func (c *countingFS) ReadFile(ctx context.Context, path string) (string, error) {
	if c.failRead[path] {
		return "", errors.New("permission denied")
	}
	return c.FS.ReadFile(ctx, path)
}

func (c *countingFS) ReadDir(ctx context.Context, path string) ([]models.FileEntry, error) {
	if c.failRead[path] {
		return nil, errors.New("permission denied")
	}
	return c.FS.ReadDir(ctx, path)
}

func (c *countingFS) totalWrites() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, v := range c.writes {
		n += v
	}
	return n
}

func setup(t *testing.T) (*Repository, *countingFS, afero.Fs) {
	t.Helper()
	mem := afero.NewMemMapFs()
	cfs := &countingFS{
		FS:       filesystem.New(mem),
		writes:   make(map[string]int),
		failRead: make(map[string]bool),
	}
	repo := New(cfs, Config{Home: home})
	require.NoError(t, repo.Init(context.Background()))
	return repo, cfs, mem
}

func write(t *testing.T, fs afero.Fs, path, content string) {
	t.Helper()
	require.NoError(t, fs.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0644))
}

func TestGetAllBuildsNestedIndex(t *testing.T) {
	repo, _, mem := setup(t)
	write(t, mem, home+"/a.md", "alpha")
	write(t, mem, home+"/b.TXT", "bravo")
	write(t, mem, home+"/image.png", "binary")
	write(t, mem, home+"/projects/plan.md", "plan")
	write(t, mem, home+"/RCTAsyncLocalStorage_V1/manifest.md", "internal")
	write(t, mem, home+"/projects/RCTAsyncLocalStorage_V1/x.md", "internal")

	index, err := repo.GetAll(context.Background())
	require.NoError(t, err)

	assert.Len(t, index, 3)
	assert.Equal(t, "alpha", index[home+"/a.md"].Content)
	assert.Equal(t, "a.md", index[home+"/a.md"].Name)
	assert.Equal(t, home, index[home+"/a.md"].ParentDir)
	assert.Contains(t, index, home+"/b.TXT")
	assert.NotContains(t, index, home+"/image.png")
	assert.NotContains(t, index, home+"/RCTAsyncLocalStorage_V1")

	projects := index[home+"/projects"]
	require.NotNil(t, projects)
	assert.True(t, projects.IsDirectory)
	assert.True(t, projects.Open)
	assert.Len(t, projects.Files, 1)
	assert.Equal(t, home+"/projects", projects.Files[home+"/projects/plan.md"].ParentDir)

	for path, n := range index {
		assert.Equal(t, path, n.Path)
	}
}

func TestGetAllIsolatesUnreadableEntries(t *testing.T) {
	repo, cfs, mem := setup(t)
	write(t, mem, home+"/ok.md", "fine")
	write(t, mem, home+"/locked.md", "secret")
	write(t, mem, home+"/private/x.md", "x")
	cfs.failRead[home+"/locked.md"] = true
	cfs.failRead[home+"/private"] = true

	index, err := repo.GetAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "fine", index[home+"/ok.md"].Content)
	assert.NotEmpty(t, index[home+"/locked.md"].Err)
	assert.Empty(t, index[home+"/locked.md"].Content)
	assert.NotEmpty(t, index[home+"/private"].Err)
	assert.Empty(t, index[home+"/private"].Files)
}

func TestGetAllFailsWhenHomeUnreadable(t *testing.T) {
	repo, cfs, _ := setup(t)
	cfs.failRead[home] = true

	_, err := repo.GetAll(context.Background())
	assert.Error(t, err)
}

func TestNewFileThenGetAll(t *testing.T) {
	repo, _, _ := setup(t)
	ctx := context.Background()

	path, err := repo.NewFile(ctx, "Hello World and more")
	require.NoError(t, err)
	assert.Equal(t, home+"/HelloWorl.md", path)

	index, err := repo.GetAll(ctx)
	require.NoError(t, err)
	require.Contains(t, index, path)
	assert.Equal(t, "Hello World and more", index[path].Content)
}

func TestNewFileEdgeCases(t *testing.T) {
	repo, cfs, _ := setup(t)
	ctx := context.Background()

	path, err := repo.NewFile(ctx, "   \n\t")
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.Equal(t, 0, cfs.totalWrites())

	first, err := repo.NewFile(ctx, "same")
	require.NoError(t, err)
	second, err := repo.NewFile(ctx, "same")
	require.NoError(t, err)
	assert.Equal(t, home+"/same.md", first)
	assert.Equal(t, home+"/same-1.md", second)
}

func TestNormalizeFilename(t *testing.T) {
	tests := []struct {
		name     string
		contents string
		want     string
	}{
		{"truncates to ten runes", "abcdefghijklmnop", "abcdefghij"},
		{"strips whitespace", "a b\tc\nd", "abcd"},
		{"removes path characters", "a/b:c*d?", "abcd"},
		{"counts runes not bytes", "\u00e9\u00e9\u00e9\u00e9\u00e9\u00e9\u00e9\u00e9\u00e9\u00e9\u00e9", "\u00e9\u00e9\u00e9\u00e9\u00e9\u00e9\u00e9\u00e9\u00e9\u00e9"},
		{"composes decomposed text", "e\u0301t\u00e9", "\u00e9t\u00e9"},
		{"falls back when nothing is left", "///", "untitled"},
		{"drops leading dots", "..hidden", "hidden"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeFilename(tt.contents))
		})
	}
}

func TestNewFolder(t *testing.T) {
	repo, _, _ := setup(t)
	ctx := context.Background()

	path, err := repo.NewFolder(ctx, "Projects")
	require.NoError(t, err)
	assert.Equal(t, home+"/Projects", path)

	index, err := repo.GetAll(ctx)
	require.NoError(t, err)
	folder := index[home+"/Projects"]
	require.NotNil(t, folder)
	assert.True(t, folder.IsDirectory)
	assert.True(t, folder.Open)
	assert.Empty(t, folder.Files)

	nested, err := repo.NewFolder(ctx, "/Projects/2024")
	require.NoError(t, err)
	assert.Equal(t, home+"/Projects/2024", nested)

	for _, bad := range []string{"", "  ", "../escape", "a/../../b"} {
		_, err := repo.NewFolder(ctx, bad)
		assert.ErrorIs(t, err, ErrInvalidName, bad)
	}
}

func TestUpdateFilenameRejectsExtension(t *testing.T) {
	repo, cfs, mem := setup(t)
	write(t, mem, home+"/draft.md", "text")
	entry, err := repo.GetFileByPath(context.Background(), home+"/draft.md")
	require.NoError(t, err)

	_, err = repo.UpdateFilename(context.Background(), "note.md", entry)
	assert.ErrorIs(t, err, ErrInvalidName)

	ok, _ := afero.Exists(mem, home+"/draft.md")
	assert.True(t, ok)
	ok, _ = afero.Exists(mem, home+"/note.md")
	assert.False(t, ok)
	assert.Equal(t, 0, cfs.totalWrites())
}

func TestUpdateFilenameMovesWithinParent(t *testing.T) {
	repo, _, mem := setup(t)
	write(t, mem, home+"/projects/draft.md", "text")
	ctx := context.Background()
	entry, err := repo.GetFileByPath(ctx, home+"/projects/draft.md")
	require.NoError(t, err)

	node, err := repo.UpdateFilename(ctx, "final", entry)
	require.NoError(t, err)

	assert.Equal(t, home+"/projects/final.md", node.Path)
	assert.Equal(t, "final.md", node.Name)
	assert.Equal(t, home+"/projects", node.ParentDir)
	assert.Equal(t, "text", node.Content)

	ok, _ := afero.Exists(mem, home+"/projects/draft.md")
	assert.False(t, ok)
}

func TestUpdateFilenameCreatesWhenNoExisting(t *testing.T) {
	repo, _, mem := setup(t)
	write(t, mem, home+"/taken.md", "keep me")
	ctx := context.Background()

	node, err := repo.UpdateFilename(ctx, "fresh", nil)
	require.NoError(t, err)
	assert.Equal(t, home+"/fresh.md", node.Path)
	assert.Equal(t, home, node.ParentDir)
	assert.Empty(t, node.Content)

	_, err = repo.UpdateFilename(ctx, "taken", nil)
	assert.ErrorIs(t, err, ErrExists)
	data, _ := afero.ReadFile(mem, home+"/taken.md")
	assert.Equal(t, "keep me", string(data))
}

func TestRenameFolder(t *testing.T) {
	repo, _, mem := setup(t)
	write(t, mem, home+"/old/x.md", "x")
	write(t, mem, home+"/other/y.md", "y")
	ctx := context.Background()
	folder, err := repo.GetFileByPath(ctx, home+"/old")
	require.NoError(t, err)

	_, err = repo.RenameFolder(ctx, "other", folder)
	assert.ErrorIs(t, err, ErrExists)
	_, err = repo.RenameFolder(ctx, "a/b", folder)
	assert.ErrorIs(t, err, ErrInvalidName)

	path, err := repo.RenameFolder(ctx, "new", folder)
	require.NoError(t, err)
	assert.Equal(t, home+"/new", path)
	ok, _ := afero.DirExists(mem, home+"/new")
	assert.True(t, ok)
}

func TestDeleteFile(t *testing.T) {
	repo, _, mem := setup(t)
	write(t, mem, home+"/dir/a.md", "a")
	ctx := context.Background()

	require.NoError(t, repo.DeleteFile(ctx, home+"/dir"))
	ok, _ := afero.Exists(mem, home+"/dir/a.md")
	assert.False(t, ok)

	err := repo.DeleteFile(ctx, home+"/dir")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSyncFilesIsIdempotentAndSkipsErrored(t *testing.T) {
	repo, cfs, mem := setup(t)
	write(t, mem, home+"/a.md", "a")
	write(t, mem, home+"/sub/b.md", "b")
	write(t, mem, home+"/locked.md", "original")
	cfs.failRead[home+"/locked.md"] = true
	ctx := context.Background()

	index, err := repo.GetAll(ctx)
	require.NoError(t, err)
	index = repo.UpdateFile(index, index[home+"/a.md"].WithContent("a2"))

	require.NoError(t, repo.SyncFiles(ctx, index))
	first, _ := afero.ReadFile(mem, home+"/a.md")
	require.NoError(t, repo.SyncFiles(ctx, index))
	second, _ := afero.ReadFile(mem, home+"/a.md")

	assert.Equal(t, "a2", string(first))
	assert.Equal(t, first, second)
	assert.Equal(t, 2, cfs.writes[home+"/sub/b.md"])
	assert.Zero(t, cfs.writes[home+"/locked.md"])

	locked, _ := afero.ReadFile(mem, home+"/locked.md")
	assert.Equal(t, "original", string(locked))
}

func TestUpdateFileMissingParentIsNoop(t *testing.T) {
	repo, _, mem := setup(t)
	write(t, mem, home+"/a.md", "a")
	index, err := repo.GetAll(context.Background())
	require.NoError(t, err)

	orphan := models.NewFileNode(models.NewFileEntry(home+"/ghost/x.md", false, 1, index[home+"/a.md"].ModTime), home+"/ghost", "x")
	updated := repo.UpdateFile(index, orphan)
	assert.Equal(t, index, updated)
	assert.NotContains(t, updated, home+"/ghost/x.md")
}

func TestRel(t *testing.T) {
	repo, _, _ := setup(t)
	assert.Equal(t, "/projects/a.md", repo.Rel(home+"/projects/a.md"))
	assert.Equal(t, "", repo.Rel(home))
	assert.Equal(t, "", repo.Rel("/elsewhere/a.md"))
}
