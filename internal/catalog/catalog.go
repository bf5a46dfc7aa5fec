// Package catalog holds the default style catalog and seeds it into an empty
// store.
package catalog

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/nailsizes/nailsizes/internal/schema"
	"github.com/nailsizes/nailsizes/internal/store"
)

//go:embed styles.toml
var defaultCatalog string

type entry struct {
	ID        string `toml:"id"`
	Name      string `toml:"name"`
	MinLabel  string `toml:"min_label"`
	MaxLabel  string `toml:"max_label"`
	ImageFile string `toml:"image_file"`
}

type file struct {
	Styles []entry `toml:"style"`
}

// Default returns the built-in A–F catalog.
func Default() []*schema.Style {
	styles, err := Parse(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("catalog: built-in styles.toml is invalid: %v", err))
	}
	return styles
}

// Load reads a catalog file. An empty path returns the built-in catalog.
func Load(path string) ([]*schema.Style, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	styles, err := Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return styles, nil
}

// Parse decodes a TOML catalog. Unknown keys and duplicate ids are rejected.
func Parse(data string) ([]*schema.Style, error) {
	var f file
	md, err := toml.Decode(data, &f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("catalog has unknown keys: %s", strings.Join(keys, ", "))
	}

	seen := make(map[string]bool, len(f.Styles))
	styles := make([]*schema.Style, 0, len(f.Styles))
	for i, e := range f.Styles {
		s := &schema.Style{
			ID:        strings.TrimSpace(e.ID),
			Name:      e.Name,
			MinLabel:  e.MinLabel,
			MaxLabel:  e.MaxLabel,
			ImageFile: e.ImageFile,
		}
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("style[%d]: %w", i, err)
		}
		if seen[s.ID] {
			return nil, fmt.Errorf("style[%d]: duplicate id %q", i, s.ID)
		}
		seen[s.ID] = true
		styles = append(styles, s)
	}
	return styles, nil
}

// SeedIfEmpty inserts styles when the styles collection is empty and reports
// whether it did. The check and the insert share one transaction, so two
// processes starting together seed once.
func SeedIfEmpty(ctx context.Context, db *store.DB, styles []*schema.Style) (bool, error) {
	seeded := false
	err := db.Tx(ctx, func(tx *store.Tx) error {
		n, err := tx.Styles().Count(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			return nil
		}
		if err := tx.Styles().BulkAdd(ctx, styles); err != nil {
			return fmt.Errorf("failed to seed styles: %w", err)
		}
		seeded = len(styles) > 0
		return nil
	})
	if err != nil {
		return false, err
	}
	return seeded, nil
}
