package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/mattsolo1/grove-core/version"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattsolo1/grove-mdpad/pkg/filesystem"
	"github.com/mattsolo1/grove-mdpad/pkg/service"
)

func setupService(t *testing.T) (*service.Service, afero.Fs) {
	t.Helper()
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	mem := afero.NewMemMapFs()
	require.NoError(t, mem.MkdirAll("/notes/journal", 0755))
	require.NoError(t, afero.WriteFile(mem, "/notes/journal/monday.md", []byte("# Monday\nrained all day"), 0644))
	require.NoError(t, afero.WriteFile(mem, "/notes/todo.md", []byte("buy milk"), 0644))

	svc, err := service.New(&service.Config{
		HomeDir:        "/notes",
		DataDir:        t.TempDir(),
		AutosaveDelay:  time.Hour,
		EditorDebounce: time.Hour,
	}, log, service.WithFilesystem(filesystem.New(mem)))
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close(context.Background()) })
	require.NoError(t, svc.Load(context.Background()))
	return svc, mem
}

func run(t *testing.T, c *cobra.Command, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	c.SetOut(&out)
	c.SetErr(&out)
	c.SetIn(strings.NewReader(stdin))
	c.SetArgs(args)
	err := c.Execute()
	return out.String(), err
}

func TestListCommand(t *testing.T) {
	svc, _ := setupService(t)

	out, err := run(t, NewListCmd(&svc), "")
	require.NoError(t, err)
	assert.Equal(t, "journal/\n  monday.md\ntodo.md\n", out)

	out, err = run(t, NewListCmd(&svc), "", "journal", "--json")
	require.NoError(t, err)
	var entries []listEntry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "/journal/monday.md", entries[0].Path)

	_, err = run(t, NewListCmd(&svc), "", "todo.md")
	assert.Error(t, err)
}

func TestCatCommand(t *testing.T) {
	svc, _ := setupService(t)

	out, err := run(t, NewCatCmd(&svc), "", "journal/monday.md")
	require.NoError(t, err)
	assert.Equal(t, "# Monday\nrained all day", out)

	out, err = run(t, NewCatCmd(&svc), "", "journal/monday.md", "--title")
	require.NoError(t, err)
	assert.Equal(t, "Monday\n", out)

	_, err = run(t, NewCatCmd(&svc), "", "journal")
	assert.Error(t, err)
}

func TestNewCommand(t *testing.T) {
	svc, mem := setupService(t)

	out, err := run(t, NewNewCmd(&svc), "", "-n", "plans", "ship", "it")
	require.NoError(t, err)
	assert.Equal(t, "Created: /plans.md\n", out)
	data, err := afero.ReadFile(mem, "/notes/plans.md")
	require.NoError(t, err)
	assert.Equal(t, "ship it", string(data))

	out, err = run(t, NewNewCmd(&svc), "from a pipe", "--stdin")
	require.NoError(t, err)
	assert.Equal(t, "Created: /fromapip.md\n", out)

	_, err = run(t, NewNewCmd(&svc), "", "--title", "Weekly sync", "--tag", "work", "agenda")
	require.NoError(t, err)
	data, err = afero.ReadFile(mem, "/notes/Weekly sync.md")
	require.NoError(t, err)
	assert.Contains(t, string(data), "title: Weekly sync")
	assert.Contains(t, string(data), "agenda")
}

func TestMkdirMoveRemoveCommands(t *testing.T) {
	svc, mem := setupService(t)

	_, err := run(t, NewMkdirCmd(&svc), "", "projects")
	require.NoError(t, err)
	exists, _ := afero.DirExists(mem, "/notes/projects")
	assert.True(t, exists)

	out, err := run(t, NewMoveCmd(&svc), "", "todo.md", "chores")
	require.NoError(t, err)
	assert.Equal(t, "Moved: /chores.md\n", out)

	_, err = run(t, NewRemoveCmd(&svc), "", "chores.md", "projects")
	require.NoError(t, err)
	exists, _ = afero.Exists(mem, "/notes/chores.md")
	assert.False(t, exists)
	exists, _ = afero.Exists(mem, "/notes/projects")
	assert.False(t, exists)

	_, err = run(t, NewRemoveCmd(&svc), "", "missing.md")
	assert.Error(t, err)
}

func TestSearchCommand(t *testing.T) {
	svc, _ := setupService(t)

	out, err := run(t, NewSearchCmd(&svc), "", "rained")
	require.NoError(t, err)
	assert.Contains(t, out, "Found 1 results")
	assert.Contains(t, out, "Monday")
	assert.NotContains(t, out, "<match>")

	out, err = run(t, NewSearchCmd(&svc), "", "nothing-like-this")
	require.NoError(t, err)
	assert.Equal(t, "No results found\n", out)
}

func TestVersionCommand(t *testing.T) {
	c := NewVersionCmd()
	assert.Equal(t, "true", c.Annotations[SkipServiceAnnotation])

	info := version.GetInfo()
	want, err := json.Marshal(info)
	require.NoError(t, err)

	out, err := run(t, c, "", "--json")
	require.NoError(t, err)
	assert.JSONEq(t, string(want), out)

	out, err = run(t, NewVersionCmd(), "")
	require.NoError(t, err)
	assert.Equal(t, info.String()+"\n", out)
}
