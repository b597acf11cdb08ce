// Package cache persists small JSON blobs, such as the editor state, in sqlite.
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mattsolo1/grove-mdpad/pkg/metrics"
	"github.com/mattsolo1/grove-mdpad/pkg/models"
)

// EditorStateKey holds the open file, cursor position and view state.
const EditorStateKey = "editorState"

// Cache is a key-value store of JSON objects.
type Cache struct {
	db      *sql.DB
	metrics *metrics.Metrics

	// mu makes read-modify-write merges atomic.
	mu sync.Mutex
}

// Open creates or opens the cache database in dataDir.
func Open(dataDir string, m *metrics.Metrics) (*Cache, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	db, err := sql.Open("sqlite3", filepath.Join(dataDir, "cache.db"))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	c := &Cache{db: db, metrics: m}
	if err := c.init(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize cache: %w", err)
	}
	return c, nil
}

func (c *Cache) init() error {
	schema := `
	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := c.db.Exec(schema)
	return err
}

// Close closes the database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// GetItem returns the stored value for key and whether it exists.
func (c *Cache) GetItem(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := c.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, true, nil
}

// SetItem replaces the value for key.
func (c *Cache) SetItem(ctx context.Context, key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.set(ctx, key, value); err != nil {
		return err
	}
	c.metrics.RecordCacheWrite("set")
	return nil
}

func (c *Cache) set(ctx context.Context, key, value string) error {
	query := `
	INSERT OR REPLACE INTO kv (key, value, updated_at)
	VALUES (?, ?, ?)
	`
	if _, err := c.db.ExecContext(ctx, query, key, value, time.Now()); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// MergeItem shallow-merges the JSON object value into the stored object.
// Top-level keys set to null are removed.
func (c *Cache) MergeItem(ctx context.Context, key, value string) error {
	var patch map[string]json.RawMessage
	if err := json.Unmarshal([]byte(value), &patch); err != nil {
		return fmt.Errorf("merge %s: value is not an object: %w", key, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	current, ok, err := c.GetItem(ctx, key)
	if err != nil {
		return err
	}
	merged := map[string]json.RawMessage{}
	if ok {
		if err := json.Unmarshal([]byte(current), &merged); err != nil {
			// Corrupt entries are replaced.
			merged = map[string]json.RawMessage{}
		}
	}
	for k, v := range patch {
		if string(v) == "null" {
			delete(merged, k)
			continue
		}
		merged[k] = v
	}

	data, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("merge %s: %w", key, err)
	}
	if err := c.set(ctx, key, string(data)); err != nil {
		return err
	}
	c.metrics.RecordCacheWrite("merge")
	return nil
}

// RemoveItem deletes key. Missing keys are not an error.
func (c *Cache) RemoveItem(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	c.metrics.RecordCacheWrite("remove")
	return nil
}

// EditorState returns the persisted editor state, nil when none is stored.
func (c *Cache) EditorState(ctx context.Context) (*models.EditorCache, error) {
	value, ok, err := c.GetItem(ctx, EditorStateKey)
	if err != nil || !ok {
		return nil, err
	}
	var state models.EditorCache
	if err := json.Unmarshal([]byte(value), &state); err != nil {
		return nil, fmt.Errorf("decode editor state: %w", err)
	}
	return &state, nil
}

// MergeEditorState merges the non-nil fields of state into the stored editor state.
func (c *Cache) MergeEditorState(ctx context.Context, state models.EditorCache) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode editor state: %w", err)
	}
	return c.MergeItem(ctx, EditorStateKey, string(data))
}

// ClearEditorState removes the persisted editor state.
func (c *Cache) ClearEditorState(ctx context.Context) error {
	return c.RemoveItem(ctx, EditorStateKey)
}
