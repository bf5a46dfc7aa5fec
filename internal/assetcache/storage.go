package assetcache

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// Entry is one cached response.
type Entry struct {
	Path        string
	Status      int
	ContentType string
	Body        []byte
}

// Storage is a set of named cache buckets persisted in a SQLite file,
// separate from the record store.
type Storage struct {
	conn *sql.DB
	path string
}

const storageSchema = `
	CREATE TABLE IF NOT EXISTS cache_buckets (
		name TEXT PRIMARY KEY,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS cache_entries (
		bucket TEXT NOT NULL,
		path TEXT NOT NULL,
		status INTEGER NOT NULL,
		content_type TEXT NOT NULL DEFAULT '',
		body BLOB NOT NULL,
		PRIMARY KEY (bucket, path)
	);

	CREATE TABLE IF NOT EXISTS cache_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
`

// OpenStorage opens (creating if needed) the cache database at path.
func OpenStorage(path string) (*Storage, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	params := url.Values{}
	params.Add("_pragma", "busy_timeout(5000)")
	params.Add("_pragma", "journal_mode(wal)")
	params.Set("_txlock", "immediate")
	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", path, params.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to open cache storage: %w", err)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open cache storage %s: %w", path, err)
	}
	if _, err := conn.Exec(storageSchema); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to create cache schema: %w", err)
	}
	return &Storage{conn: conn, path: path}, nil
}

// Close closes the cache database.
func (s *Storage) Close() error {
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

// Keys lists bucket names in creation order.
func (s *Storage) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT name FROM cache_buckets ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to list cache buckets: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Has reports whether bucket exists.
func (s *Storage) Has(ctx context.Context, bucket string) (bool, error) {
	var n int
	err := s.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM cache_buckets WHERE name = ?`, bucket).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check cache bucket: %w", err)
	}
	return n > 0, nil
}

// Match returns the entry for path in bucket. ok is false on a miss.
func (s *Storage) Match(ctx context.Context, bucket, path string) (e *Entry, ok bool, err error) {
	e = &Entry{Path: path}
	err = s.conn.QueryRowContext(ctx,
		`SELECT status, content_type, body FROM cache_entries WHERE bucket = ? AND path = ?`,
		bucket, path,
	).Scan(&e.Status, &e.ContentType, &e.Body)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cache entry: %w", err)
	}
	return e, true, nil
}

// Count returns the number of entries in bucket.
func (s *Storage) Count(ctx context.Context, bucket string) (int, error) {
	var n int
	err := s.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM cache_entries WHERE bucket = ?`, bucket).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count cache entries: %w", err)
	}
	return n, nil
}

// Put replaces the whole contents of bucket with entries in one transaction.
// Readers see either the old bucket or the complete new one.
func (s *Storage) Put(ctx context.Context, bucket string, entries []*Entry) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin cache transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM cache_entries WHERE bucket = ?`, bucket); err != nil {
		return fmt.Errorf("failed to reset cache bucket: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO cache_buckets (name, created_at) VALUES (?, ?) ON CONFLICT(name) DO NOTHING`,
		bucket, time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("failed to create cache bucket: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO cache_entries (bucket, path, status, content_type, body) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare cache insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		body := e.Body
		if body == nil {
			body = []byte{}
		}
		if _, err := stmt.ExecContext(ctx, bucket, e.Path, e.Status, e.ContentType, body); err != nil {
			return fmt.Errorf("failed to store %s: %w", e.Path, err)
		}
	}
	return tx.Commit()
}

// Delete removes bucket and its entries. It reports whether the bucket
// existed.
func (s *Storage) Delete(ctx context.Context, bucket string) (bool, error) {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin cache transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM cache_entries WHERE bucket = ?`, bucket); err != nil {
		return false, fmt.Errorf("failed to delete cache entries: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM cache_buckets WHERE name = ?`, bucket)
	if err != nil {
		return false, fmt.Errorf("failed to delete cache bucket: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM cache_meta WHERE key = 'active' AND value = ?`, bucket); err != nil {
		return false, fmt.Errorf("failed to clear active bucket: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, tx.Commit()
}

// Active returns the recorded active bucket, or "".
func (s *Storage) Active(ctx context.Context) (string, error) {
	var name string
	err := s.conn.QueryRowContext(ctx, `SELECT value FROM cache_meta WHERE key = 'active'`).Scan(&name)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read active bucket: %w", err)
	}
	return name, nil
}

// SetActive records bucket as the active generation.
func (s *Storage) SetActive(ctx context.Context, bucket string) error {
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO cache_meta (key, value) VALUES ('active', ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, bucket)
	if err != nil {
		return fmt.Errorf("failed to record active bucket: %w", err)
	}
	return nil
}
