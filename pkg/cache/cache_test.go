package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattsolo1/grove-mdpad/pkg/models"
)

func openTemp(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestGetMissingItem(t *testing.T) {
	c := openTemp(t)

	_, ok, err := c.GetItem(context.Background(), "nothing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMergeItemIsShallow(t *testing.T) {
	c := openTemp(t)
	ctx := context.Background()

	require.NoError(t, c.MergeItem(ctx, "k", `{"a":1,"nested":{"x":1,"y":2}}`))
	require.NoError(t, c.MergeItem(ctx, "k", `{"b":2,"nested":{"x":3}}`))

	value, ok, err := c.GetItem(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"a":1,"b":2,"nested":{"x":3}}`, value)

	require.NoError(t, c.MergeItem(ctx, "k", `{"a":null}`))
	value, _, _ = c.GetItem(ctx, "k")
	assert.JSONEq(t, `{"b":2,"nested":{"x":3}}`, value)

	assert.Error(t, c.MergeItem(ctx, "k", `[1,2]`))
}

func TestMergeReplacesCorruptValue(t *testing.T) {
	c := openTemp(t)
	ctx := context.Background()

	require.NoError(t, c.SetItem(ctx, "k", "not json"))
	require.NoError(t, c.MergeItem(ctx, "k", `{"a":1}`))

	value, _, _ := c.GetItem(ctx, "k")
	assert.JSONEq(t, `{"a":1}`, value)
}

func TestEditorStateRoundTrip(t *testing.T) {
	c := openTemp(t)
	ctx := context.Background()

	state, err := c.EditorState(ctx)
	require.NoError(t, err)
	assert.Nil(t, state)

	entry := models.NewFileEntry("/notes/a.md", false, 3, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
	require.NoError(t, c.MergeEditorState(ctx, models.EditorCache{File: &entry}))
	require.NoError(t, c.MergeEditorState(ctx, models.EditorCache{Position: &models.Position{LineNumber: 5, Column: 2}}))

	state, err = c.EditorState(ctx)
	require.NoError(t, err)
	require.NotNil(t, state)
	require.NotNil(t, state.File)
	assert.Equal(t, "/notes/a.md", state.File.Path)
	assert.True(t, entry.ModTime.Equal(state.File.ModTime))
	require.NotNil(t, state.Position)
	assert.Equal(t, 5, state.Position.LineNumber)
	assert.Nil(t, state.ViewState)

	require.NoError(t, c.ClearEditorState(ctx))
	state, err = c.EditorState(ctx)
	require.NoError(t, err)
	assert.Nil(t, state)
}

func TestCachePersistsAcrossOpen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	c, err := Open(dir, nil)
	require.NoError(t, err)
	require.NoError(t, c.SetItem(ctx, "k", `{"v":1}`))
	require.NoError(t, c.Close())

	c, err = Open(dir, nil)
	require.NoError(t, err)
	defer c.Close()
	value, ok, err := c.GetItem(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"v":1}`, value)
}
