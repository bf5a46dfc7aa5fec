package backup

import (
	"context"
	"fmt"

	"github.com/nailsizes/nailsizes/internal/store"
)

// MissingPolicy decides what happens to a collection absent from the
// import document.
type MissingPolicy int

const (
	// SkipMissing leaves absent collections untouched.
	SkipMissing MissingPolicy = iota
	// ClearMissing empties absent collections, making every import a full
	// replace.
	ClearMissing
)

// ImportOptions configures Import.
type ImportOptions struct {
	Missing MissingPolicy
}

// ImportResult reports what Import did per collection.
type ImportResult struct {
	Styles       Outcome  `json:"styles"`
	Clients      Outcome  `json:"clients"`
	Measurements Outcome  `json:"measurements"`
	Warnings     []string `json:"warnings,omitempty"`
}

// Outcome is the fate of one collection.
type Outcome struct {
	Action string `json:"action"` // replaced, cleared, kept
	Count  int    `json:"count"`
}

// Import replaces the store's contents from p inside one transaction. Any
// failure leaves the store exactly as it was.
func Import(ctx context.Context, db *store.DB, p *Payload, opts ImportOptions) (*ImportResult, error) {
	if p.Empty() {
		return nil, malformed("document has no styles, clients or measurements array")
	}

	res := &ImportResult{Warnings: p.Warnings}
	err := db.Tx(ctx, func(tx *store.Tx) error {
		var err error
		if res.Styles, err = replace(ctx, tx.Styles(), p.HasStyles, p.Styles, opts.Missing); err != nil {
			return err
		}
		if res.Clients, err = replace(ctx, tx.Clients(), p.HasClients, p.Clients, opts.Missing); err != nil {
			return err
		}
		res.Measurements, err = replace(ctx, tx.Measurements(), p.HasMeasurements, p.Measurements, opts.Missing)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("import failed, no changes made: %w", err)
	}
	return res, nil
}

func replace[T any](ctx context.Context, t *store.Table[T], present bool, recs []*T, missing MissingPolicy) (Outcome, error) {
	if !present {
		if missing != ClearMissing {
			n, err := t.Count(ctx)
			return Outcome{Action: "kept", Count: n}, err
		}
		if err := t.Clear(ctx); err != nil {
			return Outcome{}, err
		}
		return Outcome{Action: "cleared"}, nil
	}

	if err := t.Clear(ctx); err != nil {
		return Outcome{}, err
	}
	if err := t.BulkAdd(ctx, recs); err != nil {
		return Outcome{}, err
	}
	return Outcome{Action: "replaced", Count: len(recs)}, nil
}
