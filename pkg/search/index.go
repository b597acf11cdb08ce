package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mattsolo1/grove-mdpad/pkg/frontmatter"
	"github.com/mattsolo1/grove-mdpad/pkg/models"
	"github.com/mattsolo1/grove-mdpad/pkg/tree"
)

const defaultLimit = 50

// Result is a single search hit
type Result struct {
	Path       string
	Title      string
	Snippet    string
	ModifiedAt time.Time
}

// Index manages the search index
type Index struct {
	db     *sql.DB
	useFTS bool

	mu sync.Mutex
}

// NewIndex creates a new search index
func NewIndex(dbPath string) (*Index, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	idx := &Index{db: db}
	if err := idx.init(); err != nil {
		db.Close()
		return nil, err
	}

	return idx, nil
}

// init creates the database schema
func (idx *Index) init() error {
	idx.useFTS = idx.checkFTS5Support()

	metaSchema := `
	CREATE TABLE IF NOT EXISTS notes_meta (
		path TEXT PRIMARY KEY,
		title TEXT,
		content TEXT,
		tags TEXT,
		modified_at TIMESTAMP,
		word_count INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_notes_meta_title ON notes_meta(title);
	`

	if _, err := idx.db.Exec(metaSchema); err != nil {
		return err
	}

	if idx.useFTS {
		ftsSchema := `
		CREATE VIRTUAL TABLE IF NOT EXISTS notes_fts USING fts5(
			path UNINDEXED,
			title,
			tags,
			content,
			tokenize = 'porter unicode61'
		);
		`

		if _, err := idx.db.Exec(ftsSchema); err != nil {
			// If FTS creation fails, disable FTS and continue
			idx.useFTS = false
		}
	}

	return nil
}

// checkFTS5Support checks if FTS5 module is available
func (idx *Index) checkFTS5Support() bool {
	_, err := idx.db.Exec("CREATE VIRTUAL TABLE IF NOT EXISTS fts5_test USING fts5(content)")
	if err != nil {
		return false
	}

	_, _ = idx.db.Exec("DROP TABLE IF EXISTS fts5_test")
	return true
}

// UsesFTS reports whether full-text search is available
func (idx *Index) UsesFTS() bool {
	return idx.useFTS
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// IndexNote indexes or reindexes a note
func (idx *Index) IndexNote(ctx context.Context, note *models.Node) error {
	if note == nil || note.IsFolder() {
		return nil
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	tx, err := idx.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := idx.remove(ctx, tx, note.Path); err != nil {
		return err
	}
	if err := idx.insert(ctx, tx, note); err != nil {
		return err
	}

	return tx.Commit()
}

// Reindex replaces the whole index with the files in index
func (idx *Index) Reindex(ctx context.Context, index models.FileIndex) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	tx, err := idx.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if idx.useFTS {
		if _, err := tx.ExecContext(ctx, "DELETE FROM notes_fts"); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM notes_meta"); err != nil {
		return err
	}

	for _, note := range tree.Files(index) {
		if note.Err != "" {
			continue
		}
		if err := idx.insert(ctx, tx, note); err != nil {
			return fmt.Errorf("index %s: %w", note.Path, err)
		}
	}

	return tx.Commit()
}

func (idx *Index) insert(ctx context.Context, tx execer, note *models.Node) error {
	title := frontmatter.Title(note.Content, note.Path)
	tags := strings.Join(frontmatter.Tags(note.Content), " ")

	if idx.useFTS {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO notes_fts (path, title, tags, content)
			VALUES (?, ?, ?, ?)
		`, note.Path, title, tags, note.Content)
		if err != nil {
			return err
		}
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO notes_meta (path, title, content, tags, modified_at, word_count)
		VALUES (?, ?, ?, ?, ?, ?)
	`, note.Path, title, note.Content, tags, note.ModTime, len(strings.Fields(note.Content)))
	return err
}

func (idx *Index) remove(ctx context.Context, tx execer, path string) error {
	if idx.useFTS {
		if _, err := tx.ExecContext(ctx, "DELETE FROM notes_fts WHERE path = ?", path); err != nil {
			return err
		}
	}
	_, err := tx.ExecContext(ctx, "DELETE FROM notes_meta WHERE path = ?", path)
	return err
}

// Search performs a full-text search. Blank queries return nothing.
func (idx *Index) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = defaultLimit
	}

	if idx.useFTS {
		return idx.searchWithFTS(ctx, query, limit)
	}
	return idx.searchWithoutFTS(ctx, query, limit)
}

// searchWithFTS performs search using FTS5
func (idx *Index) searchWithFTS(ctx context.Context, query string, limit int) ([]Result, error) {
	searchQuery := `
		SELECT
			f.path, f.title, m.modified_at,
			snippet(notes_fts, 3, '<match>', '</match>', '...', 32) as snippet
		FROM notes_fts f
		JOIN notes_meta m ON f.path = m.path
		WHERE notes_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`

	match := ftsQuery(query)
	if match == "" {
		return nil, nil
	}

	rows, err := idx.db.QueryContext(ctx, searchQuery, match, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.Path, &r.Title, &r.ModifiedAt, &r.Snippet); err != nil {
			return nil, err
		}
		results = append(results, r)
	}

	return results, rows.Err()
}

// searchWithoutFTS performs search using LIKE queries on metadata table.
// Every word has to appear in the title, tags or content.
func (idx *Index) searchWithoutFTS(ctx context.Context, query string, limit int) ([]Result, error) {
	words := searchWords(query)
	if len(words) == 0 {
		return nil, nil
	}

	var conditions []string
	var args []any
	for _, w := range words {
		pattern := "%" + w + "%"
		conditions = append(conditions, "(title LIKE ? OR content LIKE ? OR tags LIKE ?)")
		args = append(args, pattern, pattern, pattern)
	}

	searchQuery := fmt.Sprintf(`
		SELECT path, title, modified_at, content
		FROM notes_meta
		WHERE %s
		ORDER BY modified_at DESC
		LIMIT ?
	`, strings.Join(conditions, " AND "))

	args = append(args, limit)

	rows, err := idx.db.QueryContext(ctx, searchQuery, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var content string
		if err := rows.Scan(&r.Path, &r.Title, &r.ModifiedAt, &content); err != nil {
			return nil, err
		}
		r.Snippet = frontmatter.Summary(content)
		results = append(results, r)
	}

	return results, rows.Err()
}

func searchWords(query string) []string {
	return strings.FieldsFunc(query, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// ftsQuery turns free text into an FTS5 query that matches every word as a
// prefix. Quoting keeps user punctuation away from the FTS5 syntax.
func ftsQuery(query string) string {
	words := searchWords(query)
	terms := make([]string, 0, len(words))
	for _, w := range words {
		terms = append(terms, `"`+w+`"*`)
	}
	return strings.Join(terms, " ")
}

// RemoveNote removes a note from the index
func (idx *Index) RemoveNote(ctx context.Context, path string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	tx, err := idx.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := idx.remove(ctx, tx, path); err != nil {
		return err
	}

	return tx.Commit()
}

// Count returns the number of indexed notes
func (idx *Index) Count(ctx context.Context) (int, error) {
	var n int
	err := idx.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM notes_meta").Scan(&n)
	return n, err
}

// Close closes the index
func (idx *Index) Close() error {
	return idx.db.Close()
}
