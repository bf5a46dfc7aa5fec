// Package backup exports the whole store to a JSON document and restores it.
//
// The import format is the export format:
//
//	{
//	  "exportedAt": "2026-01-10T07:36:29.123Z",
//	  "styles": [...],
//	  "clients": [...],
//	  "measurements": [...]
//	}
package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/nailsizes/nailsizes/internal/schema"
	"github.com/nailsizes/nailsizes/internal/store"
)

// DefaultProduct prefixes backup file names.
const DefaultProduct = "nail-sizes"

// Document is a full snapshot of the store.
type Document struct {
	ExportedAt   string                `json:"exportedAt"`
	Styles       []*schema.Style       `json:"styles"`
	Clients      []*schema.Client      `json:"clients"`
	Measurements []*schema.Measurement `json:"measurements"`
}

// Export reads all three collections in one snapshot.
func Export(ctx context.Context, db *store.DB, now time.Time) (*Document, error) {
	doc := &Document{
		ExportedAt:   schema.FormatTime(now),
		Styles:       []*schema.Style{},
		Clients:      []*schema.Client{},
		Measurements: []*schema.Measurement{},
	}
	err := db.View(ctx, func(tx *store.Tx) error {
		styles, err := tx.Styles().All(ctx)
		if err != nil {
			return err
		}
		clients, err := tx.Clients().All(ctx)
		if err != nil {
			return err
		}
		measurements, err := tx.Measurements().All(ctx)
		if err != nil {
			return err
		}
		doc.Styles = append(doc.Styles, styles...)
		doc.Clients = append(doc.Clients, clients...)
		doc.Measurements = append(doc.Measurements, measurements...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to export: %w", err)
	}
	return doc, nil
}

// Encode writes doc as JSON indented by two spaces.
func Encode(w io.Writer, doc *Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode backup: %w", err)
	}
	return nil
}

// Marshal is Encode into a byte slice.
func Marshal(doc *Document) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode backup: %w", err)
	}
	return append(data, '\n'), nil
}

// Filename returns "<product>-backup-YYYY-MM-DD.json" for the UTC date of t.
func Filename(product string, t time.Time) string {
	if product == "" {
		product = DefaultProduct
	}
	return fmt.Sprintf("%s-backup-%s.json", product, t.UTC().Format("2006-01-02"))
}
