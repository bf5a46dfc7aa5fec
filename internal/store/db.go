// Package store is the persistent record store: an embedded SQLite file with
// three collections (styles, clients, measurements) and all-or-nothing
// transactions across them.
//
// Architecture:
//   - Database file: <data dir>/nailsizes.db, WAL journal
//   - Writer lock: <data dir>/nailsizes.db.lock (gofrs/flock)
//   - Schema version: PRAGMA user_version, additive migrations only
//
// Every mutating Table call made outside DB.Tx runs inside its own
// transaction. Reads outside a transaction see the latest committed state.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/nailsizes/nailsizes/internal/schema"
)

// querier is the subset of *sql.DB and *sql.Tx the tables need.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DB wraps the SQLite connection pool and the writer lock.
type DB struct {
	conn   *sql.DB
	path   string
	target int
	logger *log.Logger

	writeMu sync.Mutex
	lock    *writerLock
}

// Option configures Open.
type Option func(*options)

type options struct {
	logger      *log.Logger
	version     int
	lockTimeout time.Duration
	noMigrate   bool
}

// WithLogger sets the logger used for migration and shutdown messages.
func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithSchemaVersion caps the schema at an older version. Used by tests that
// exercise upgrades.
func WithSchemaVersion(v int) Option {
	return func(o *options) { o.version = v }
}

// WithLockTimeout bounds how long a write waits for another process.
func WithLockTimeout(d time.Duration) Option {
	return func(o *options) { o.lockTimeout = d }
}

// WithoutMigrate opens the file without touching the schema.
func WithoutMigrate() Option {
	return func(o *options) { o.noMigrate = true }
}

// Open opens (creating if needed) the database at path and migrates it to the
// current schema version.
//
// The caller MUST call Close() when done.
//
// Example:
//
//	db, err := store.Open(filepath.Join(dataDir, "nailsizes.db"))
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
func Open(path string, opts ...Option) (*DB, error) {
	return OpenContext(context.Background(), path, opts...)
}

// OpenContext is Open with a context for the initial migration.
func OpenContext(ctx context.Context, path string, opts ...Option) (*DB, error) {
	o := options{
		logger:      log.New(io.Discard, "", 0),
		version:     SchemaVersion,
		lockTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(&o)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("%w: failed to create database directory: %v", ErrStorageUnavailable, err)
	}

	params := url.Values{}
	params.Add("_pragma", "busy_timeout(5000)")
	params.Add("_pragma", "journal_mode(wal)")
	params.Add("_pragma", "synchronous(normal)")
	params.Set("_txlock", "immediate")
	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", path, params.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open database: %v", ErrStorageUnavailable, err)
	}
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: failed to open database %s: %v", ErrStorageUnavailable, path, err)
	}

	conn.SetMaxOpenConns(8)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(5 * time.Minute)

	db := &DB{
		conn:   conn,
		path:   path,
		target: o.version,
		logger: o.logger,
		lock:   newWriterLock(path+".lock", o.lockTimeout),
	}

	if !o.noMigrate {
		if err := db.MigrateContext(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return db, nil
}

// Path returns the database file path.
func (db *DB) Path() string { return db.path }

// Close checkpoints the WAL and closes the connection pool.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}

	if _, err := db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		db.logger.Printf("Warning: failed to checkpoint WAL: %v", err)
	}

	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	db.conn = nil
	return nil
}

// Tx is a transaction spanning all three collections.
type Tx struct {
	tx *sql.Tx
}

// Styles returns the styles collection bound to the transaction.
func (tx *Tx) Styles() *Table[schema.Style] { return &Table[schema.Style]{q: tx.tx, spec: styleSpec} }

// Clients returns the clients collection bound to the transaction.
func (tx *Tx) Clients() *Table[schema.Client] { return &Table[schema.Client]{q: tx.tx, spec: clientSpec} }

// Measurements returns the measurements collection bound to the transaction.
func (tx *Tx) Measurements() *Table[schema.Measurement] {
	return &Table[schema.Measurement]{q: tx.tx, spec: measurementSpec}
}

// Tx runs fn in a write transaction. Either every change made through tx is
// committed or none is. A non-nil error from fn rolls back and is returned
// unchanged.
func (db *DB) Tx(ctx context.Context, fn func(tx *Tx) error) error {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	release, err := db.lock.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	sqlTx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", classify(err))
	}
	defer func() { _ = sqlTx.Rollback() }()

	if err := fn(&Tx{tx: sqlTx}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", classify(err))
	}
	return nil
}

// View runs fn in a read-only snapshot transaction.
func (db *DB) View(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := db.conn.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return fmt.Errorf("failed to begin read transaction: %w", classify(err))
	}
	defer func() { _ = sqlTx.Rollback() }()

	if err := fn(&Tx{tx: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// Styles returns the styles collection.
func (db *DB) Styles() *Table[schema.Style] {
	return &Table[schema.Style]{db: db, q: db.conn, spec: styleSpec}
}

// Clients returns the clients collection.
func (db *DB) Clients() *Table[schema.Client] {
	return &Table[schema.Client]{db: db, q: db.conn, spec: clientSpec}
}

// Measurements returns the measurements collection.
func (db *DB) Measurements() *Table[schema.Measurement] {
	return &Table[schema.Measurement]{db: db, q: db.conn, spec: measurementSpec}
}

// Stats summarizes the store for the status command.
type Stats struct {
	Path          string `json:"path"`
	SchemaVersion int    `json:"schemaVersion"`
	SizeBytes     int64  `json:"sizeBytes"`
	Styles        int    `json:"styles"`
	Clients       int    `json:"clients"`
	Measurements  int    `json:"measurements"`
}

// Stats reports record counts, schema version and on-disk size (database
// plus WAL).
func (db *DB) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{Path: db.path}
	err := db.View(ctx, func(tx *Tx) error {
		var err error
		if st.Styles, err = tx.Styles().Count(ctx); err != nil {
			return err
		}
		if st.Clients, err = tx.Clients().Count(ctx); err != nil {
			return err
		}
		st.Measurements, err = tx.Measurements().Count(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	if st.SchemaVersion, err = db.StoredVersion(ctx); err != nil {
		return nil, err
	}
	for _, f := range []string{db.path, db.path + "-wal"} {
		if info, err := os.Stat(f); err == nil {
			st.SizeBytes += info.Size()
		}
	}
	return st, nil
}
