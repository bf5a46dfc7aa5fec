package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/nailsizes/nailsizes/internal/schema"
)

// Eq is an equality filter keyed by declared index field names
// (JSON names, e.g. "clientId").
type Eq map[string]any

// Direction is a sort direction for OrderBy.
type Direction int

const (
	Ascending Direction = iota
	Descending
)

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// tableSpec describes how one record type maps onto its table.
type tableSpec[T any] struct {
	name     string
	record   string
	columns  []string          // first column is the primary key
	fields   map[string]string // index field name -> column
	key      func(*T) string
	validate func(*T) error
	values   func(*T) ([]any, error) // in column order
	scan     func(rowScanner) (*T, error)

	selectSQL string
	insertSQL string
	updateSQL string
}

func (s *tableSpec[T]) build() *tableSpec[T] {
	cols := strings.Join(s.columns, ", ")
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(s.columns)), ", ")
	sets := make([]string, 0, len(s.columns)-1)
	for _, c := range s.columns[1:] {
		sets = append(sets, c+" = ?")
	}
	s.selectSQL = fmt.Sprintf("SELECT %s FROM %s", cols, s.name)
	s.insertSQL = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", s.name, cols, marks)
	s.updateSQL = fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", s.name, strings.Join(sets, ", "))
	return s
}

func (s *tableSpec[T]) check(rec *T) error {
	if rec == nil {
		return &schema.ValidationError{Record: s.record, Reason: "is null"}
	}
	return s.validate(rec)
}

// where turns an Eq filter into a WHERE clause. Keys are sorted so the
// generated SQL is deterministic.
func (s *tableSpec[T]) where(eq Eq) (string, []any, error) {
	if len(eq) == 0 {
		return "", nil, nil
	}
	keys := make([]string, 0, len(eq))
	for k := range eq {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	conds := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys))
	for _, k := range keys {
		col, ok := s.fields[k]
		if !ok {
			return "", nil, fmt.Errorf("%s has no index %q: %w", s.name, k, ErrUnknownField)
		}
		conds = append(conds, col+" = ?")
		args = append(args, eq[k])
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

// Table is one collection. Tables obtained from DB run each mutation in its
// own transaction; tables obtained from Tx share the caller's transaction.
type Table[T any] struct {
	db   *DB
	q    querier
	spec *tableSpec[T]
}

// Name returns the collection name.
func (t *Table[T]) Name() string { return t.spec.name }

// write runs fn against a transaction-bound copy of t.
func (t *Table[T]) write(ctx context.Context, fn func(w *Table[T]) error) error {
	if t.db == nil {
		return fn(t)
	}
	return t.db.Tx(ctx, func(tx *Tx) error {
		return fn(&Table[T]{q: tx.tx, spec: t.spec})
	})
}

// Add inserts rec. It fails with ErrDuplicateKey when the key exists.
func (t *Table[T]) Add(ctx context.Context, rec *T) error {
	if err := t.spec.check(rec); err != nil {
		return err
	}
	return t.write(ctx, func(w *Table[T]) error {
		args, err := w.spec.values(rec)
		if err != nil {
			return err
		}
		if _, err := w.q.ExecContext(ctx, w.spec.insertSQL, args...); err != nil {
			return fmt.Errorf("failed to add %s %q: %w", w.spec.record, w.spec.key(rec), classify(err))
		}
		return nil
	})
}

// Get returns the record with the given key, or ErrNotFound.
func (t *Table[T]) Get(ctx context.Context, id string) (*T, error) {
	row := t.q.QueryRowContext(ctx, t.spec.selectSQL+" WHERE id = ?", id)
	rec, err := t.spec.scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s %q: %w", t.spec.record, id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s %q: %w", t.spec.record, id, classify(err))
	}
	return rec, nil
}

// Update reads the record, applies mutate and writes the result back in one
// transaction. The key may not change and the result must validate.
func (t *Table[T]) Update(ctx context.Context, id string, mutate func(rec *T)) (*T, error) {
	var out *T
	err := t.write(ctx, func(w *Table[T]) error {
		rec, err := w.Get(ctx, id)
		if err != nil {
			return err
		}
		mutate(rec)
		if k := w.spec.key(rec); k != id {
			return &schema.ValidationError{Record: w.spec.record, Field: "id", Reason: "cannot change"}
		}
		if err := w.spec.check(rec); err != nil {
			return err
		}
		args, err := w.spec.values(rec)
		if err != nil {
			return err
		}
		if _, err := w.q.ExecContext(ctx, w.spec.updateSQL, append(args[1:], id)...); err != nil {
			return fmt.Errorf("failed to update %s %q: %w", w.spec.record, id, classify(err))
		}
		out = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes the record with the given key. Deleting a missing key is a
// no-op.
func (t *Table[T]) Delete(ctx context.Context, id string) error {
	return t.write(ctx, func(w *Table[T]) error {
		if _, err := w.q.ExecContext(ctx, "DELETE FROM "+w.spec.name+" WHERE id = ?", id); err != nil {
			return fmt.Errorf("failed to delete %s %q: %w", w.spec.record, id, classify(err))
		}
		return nil
	})
}

// Where returns every record matching all fields of eq.
func (t *Table[T]) Where(ctx context.Context, eq Eq) ([]*T, error) {
	clause, args, err := t.spec.where(eq)
	if err != nil {
		return nil, err
	}
	return t.query(ctx, t.spec.selectSQL+clause+" ORDER BY rowid", args...)
}

// First returns one record matching eq, or ErrNotFound.
func (t *Table[T]) First(ctx context.Context, eq Eq) (*T, error) {
	clause, args, err := t.spec.where(eq)
	if err != nil {
		return nil, err
	}
	recs, err := t.query(ctx, t.spec.selectSQL+clause+" ORDER BY rowid LIMIT 1", args...)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("%s matching %v: %w", t.spec.record, map[string]any(eq), ErrNotFound)
	}
	return recs[0], nil
}

// DeleteWhere removes every record matching eq and reports how many were
// removed.
func (t *Table[T]) DeleteWhere(ctx context.Context, eq Eq) (int, error) {
	clause, args, err := t.spec.where(eq)
	if err != nil {
		return 0, err
	}
	if clause == "" {
		return 0, fmt.Errorf("%s: DeleteWhere needs at least one field: %w", t.spec.name, ErrUnknownField)
	}
	var n int64
	err = t.write(ctx, func(w *Table[T]) error {
		res, err := w.q.ExecContext(ctx, "DELETE FROM "+w.spec.name+clause, args...)
		if err != nil {
			return fmt.Errorf("failed to delete from %s: %w", w.spec.name, classify(err))
		}
		n, _ = res.RowsAffected()
		return nil
	})
	return int(n), err
}

// OrderBy returns every record sorted by an index field. Records with equal
// values keep insertion order.
func (t *Table[T]) OrderBy(ctx context.Context, field string, dir Direction) ([]*T, error) {
	col, ok := t.spec.fields[field]
	if !ok {
		return nil, fmt.Errorf("%s has no index %q: %w", t.spec.name, field, ErrUnknownField)
	}
	order := "ASC"
	if dir == Descending {
		order = "DESC"
	}
	return t.query(ctx, fmt.Sprintf("%s ORDER BY %s %s, rowid ASC", t.spec.selectSQL, col, order))
}

// All returns every record in insertion order.
func (t *Table[T]) All(ctx context.Context) ([]*T, error) {
	return t.query(ctx, t.spec.selectSQL+" ORDER BY rowid")
}

// Count returns the number of records.
func (t *Table[T]) Count(ctx context.Context) (int, error) {
	var n int
	if err := t.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+t.spec.name).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", t.spec.name, classify(err))
	}
	return n, nil
}

// BulkAdd validates every record, then inserts them all in one transaction.
// A single invalid record or duplicate key fails the whole batch.
func (t *Table[T]) BulkAdd(ctx context.Context, recs []*T) error {
	for i, rec := range recs {
		if err := t.spec.check(rec); err != nil {
			return fmt.Errorf("%s[%d]: %w", t.spec.name, i, err)
		}
	}
	if len(recs) == 0 {
		return nil
	}
	return t.write(ctx, func(w *Table[T]) error {
		stmt, err := w.q.PrepareContext(ctx, w.spec.insertSQL)
		if err != nil {
			return fmt.Errorf("failed to prepare insert into %s: %w", w.spec.name, classify(err))
		}
		defer stmt.Close()

		for i, rec := range recs {
			args, err := w.spec.values(rec)
			if err != nil {
				return err
			}
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				return fmt.Errorf("%s[%d]: failed to add %s %q: %w", w.spec.name, i, w.spec.record, w.spec.key(rec), classify(err))
			}
		}
		return nil
	})
}

// Clear removes every record.
func (t *Table[T]) Clear(ctx context.Context) error {
	return t.write(ctx, func(w *Table[T]) error {
		if _, err := w.q.ExecContext(ctx, "DELETE FROM "+w.spec.name); err != nil {
			return fmt.Errorf("failed to clear %s: %w", w.spec.name, classify(err))
		}
		return nil
	})
}

func (t *Table[T]) query(ctx context.Context, query string, args ...any) ([]*T, error) {
	rows, err := t.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", t.spec.name, classify(err))
	}
	defer rows.Close()

	var out []*T
	for rows.Next() {
		rec, err := t.spec.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", t.spec.record, classify(err))
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", t.spec.name, classify(err))
	}
	return out, nil
}
