package store

import (
	"context"
	"fmt"
)

// SchemaVersion is the schema version this build writes.
const SchemaVersion = 2

// migration is one additive schema step. Steps never transform data.
type migration struct {
	version int
	name    string
	stmts   string
}

var migrations = []migration{
	{
		version: 1,
		name:    "collections",
		stmts: `
	CREATE TABLE IF NOT EXISTS styles (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		min_label TEXT NOT NULL DEFAULT '',
		max_label TEXT NOT NULL DEFAULT '',
		image_file TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS clients (
		id TEXT PRIMARY KEY,
		name_or_id TEXT NOT NULL,
		phone TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS measurements (
		id TEXT PRIMARY KEY,
		client_id TEXT NOT NULL,
		style_id TEXT NOT NULL,
		right_hand TEXT NOT NULL,  -- JSON object, five finger keys
		left_hand TEXT NOT NULL,   -- JSON object, five finger keys
		notes TEXT NOT NULL DEFAULT '',
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_styles_name ON styles(name);

	CREATE INDEX IF NOT EXISTS idx_clients_name_or_id ON clients(name_or_id);
	CREATE INDEX IF NOT EXISTS idx_clients_phone ON clients(phone);
	CREATE INDEX IF NOT EXISTS idx_clients_email ON clients(email);
	CREATE INDEX IF NOT EXISTS idx_clients_created_at ON clients(created_at);
	CREATE INDEX IF NOT EXISTS idx_clients_updated_at ON clients(updated_at);

	CREATE INDEX IF NOT EXISTS idx_measurements_client ON measurements(client_id);
	CREATE INDEX IF NOT EXISTS idx_measurements_style ON measurements(style_id);
	CREATE INDEX IF NOT EXISTS idx_measurements_updated_at ON measurements(updated_at);
	`,
	},
	{
		version: 2,
		name:    "client/style lookup",
		stmts: `
	CREATE INDEX IF NOT EXISTS idx_measurements_client_style
	    ON measurements(client_id, style_id);
	`,
	},
}

// Migrate brings the schema up to the target version.
func (db *DB) Migrate() error {
	return db.MigrateContext(context.Background())
}

// MigrateContext applies every migration above the stored version in a single
// transaction. It is idempotent.
func (db *DB) MigrateContext(ctx context.Context) error {
	current, err := db.StoredVersion(ctx)
	if err != nil {
		return err
	}
	if current > db.target {
		return fmt.Errorf("%w (stored %d, supported %d)", ErrSchemaTooNew, current, db.target)
	}
	if current == db.target {
		return nil
	}

	return db.Tx(ctx, func(tx *Tx) error {
		for _, m := range migrations {
			if m.version <= current || m.version > db.target {
				continue
			}
			if _, err := tx.tx.ExecContext(ctx, m.stmts); err != nil {
				return fmt.Errorf("failed to apply schema v%d (%s): %w", m.version, m.name, classify(err))
			}
			db.logger.Printf("Applied schema v%d (%s)", m.version, m.name)
		}
		// PRAGMA does not take bind parameters.
		if _, err := tx.tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", db.target)); err != nil {
			return fmt.Errorf("failed to record schema version: %w", classify(err))
		}
		return nil
	})
}

// StoredVersion returns the schema version recorded in the database file.
func (db *DB) StoredVersion(ctx context.Context) (int, error) {
	var v int
	if err := db.conn.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", classify(err))
	}
	return v, nil
}
