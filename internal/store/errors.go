package store

import (
	"errors"
	"fmt"

	"github.com/ncruces/go-sqlite3"

	"github.com/nailsizes/nailsizes/internal/schema"
)

// Errors returned by store operations.
//
// Check them with errors.Is:
//
//	if errors.Is(err, store.ErrNotFound) {
//	    // render "Client not found."
//	}
var (
	// ErrNotFound is returned by Get, First and Update when no record
	// has the requested key. Delete never returns it.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateKey is returned when an insert collides with an
	// existing primary key. Nothing is written.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrStorageUnavailable is returned when the database file cannot be
	// opened, read or written (permissions, full disk, corruption, lock held
	// by another process).
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrUnknownField is returned when a query names a field that is not a
	// declared index of the collection.
	ErrUnknownField = errors.New("unknown index field")

	// ErrSchemaTooNew is returned when the database was written by a newer
	// build. It also matches ErrStorageUnavailable.
	ErrSchemaTooNew = fmt.Errorf("%w: database schema is newer than this build", ErrStorageUnavailable)
)

// IsUnavailable reports whether err means the data cannot be reached at all
// and the application should show a "data unavailable" state.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrStorageUnavailable)
}

// IsUserFacing reports whether err is caused by the request itself
// (bad input, missing or duplicate record) rather than by the storage layer.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, schema.ErrValidation) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrDuplicateKey)
}

// classify maps SQLite result codes onto the store's error taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrDuplicateKey) || errors.Is(err, ErrStorageUnavailable) {
		return err
	}
	switch {
	case errors.Is(err, sqlite3.CONSTRAINT):
		return fmt.Errorf("%w: %v", ErrDuplicateKey, err)
	case errors.Is(err, sqlite3.FULL),
		errors.Is(err, sqlite3.IOERR),
		errors.Is(err, sqlite3.CORRUPT),
		errors.Is(err, sqlite3.NOTADB),
		errors.Is(err, sqlite3.READONLY),
		errors.Is(err, sqlite3.CANTOPEN),
		errors.Is(err, sqlite3.PERM),
		errors.Is(err, sqlite3.BUSY):
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return err
}
