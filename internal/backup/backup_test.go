package backup

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nailsizes/nailsizes/internal/catalog"
	"github.com/nailsizes/nailsizes/internal/schema"
	"github.com/nailsizes/nailsizes/internal/store"
)

var exportTime = time.Date(2026, 1, 10, 7, 36, 29, 0, time.UTC)

func openTestDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "nailsizes.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// seedScenario seeds styles A–F, one client and one measurement for style A.
func seedScenario(t *testing.T, db *store.DB) (*schema.Client, *schema.Measurement) {
	t.Helper()
	ctx := context.Background()
	if _, err := catalog.SeedIfEmpty(ctx, db, catalog.Default()); err != nil {
		t.Fatalf("SeedIfEmpty() failed: %v", err)
	}
	c, err := schema.NewClient("Jane Doe", "555-0100", "", exportTime.Add(-time.Hour))
	if err != nil {
		t.Fatalf("NewClient() failed: %v", err)
	}
	m, err := schema.NewMeasurement(c.ID, "A",
		schema.Hand{Thumb: "5", Index: "7", Middle: "6", Ring: "7", Pinky: "9"},
		schema.Hand{Thumb: "5"}, "", exportTime.Add(-time.Hour))
	if err != nil {
		t.Fatalf("NewMeasurement() failed: %v", err)
	}
	if err := db.Clients().Add(ctx, c); err != nil {
		t.Fatalf("Add(client) failed: %v", err)
	}
	if err := db.Measurements().Add(ctx, m); err != nil {
		t.Fatalf("Add(measurement) failed: %v", err)
	}
	return c, m
}

func clearAll(t *testing.T, db *store.DB) {
	t.Helper()
	ctx := context.Background()
	err := db.Tx(ctx, func(tx *store.Tx) error {
		if err := tx.Styles().Clear(ctx); err != nil {
			return err
		}
		if err := tx.Clients().Clear(ctx); err != nil {
			return err
		}
		return tx.Measurements().Clear(ctx)
	})
	if err != nil {
		t.Fatalf("clear failed: %v", err)
	}
}

func TestExportImport_RoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	c, m := seedScenario(t, db)

	doc, err := Export(ctx, db, exportTime)
	if err != nil {
		t.Fatalf("Export() failed: %v", err)
	}
	if doc.ExportedAt != "2026-01-10T07:36:29.000Z" {
		t.Errorf("ExportedAt = %q", doc.ExportedAt)
	}

	var buf bytes.Buffer
	if err := Encode(&buf, doc); err != nil {
		t.Fatalf("Encode() failed: %v", err)
	}
	if !strings.Contains(buf.String(), "\n  \"styles\": [") {
		t.Errorf("Encode() output is not indented by two spaces:\n%s", buf.String())
	}

	clearAll(t, db)

	p, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode() failed: %v", err)
	}
	res, err := Import(ctx, db, p, ImportOptions{})
	if err != nil {
		t.Fatalf("Import() failed: %v", err)
	}
	if res.Styles.Count != 6 || res.Clients.Count != 1 || res.Measurements.Count != 1 {
		t.Errorf("Import() = %+v", res)
	}

	gotC, err := db.Clients().Get(ctx, c.ID)
	if err != nil {
		t.Fatalf("Get(client) failed: %v", err)
	}
	if *gotC != *c {
		t.Errorf("client = %+v, want %+v", gotC, c)
	}
	gotM, err := db.Measurements().Get(ctx, m.ID)
	if err != nil {
		t.Fatalf("Get(measurement) failed: %v", err)
	}
	if *gotM != *m {
		t.Errorf("measurement = %+v, want %+v", gotM, m)
	}
}

func TestExport_EmptyStoreHasArrays(t *testing.T) {
	db := openTestDB(t)
	doc, err := Export(context.Background(), db, exportTime)
	if err != nil {
		t.Fatalf("Export() failed: %v", err)
	}
	data, err := Marshal(doc)
	if err != nil {
		t.Fatalf("Marshal() failed: %v", err)
	}
	if strings.Contains(string(data), "null") {
		t.Errorf("Marshal() of empty store contains null:\n%s", data)
	}
}

func TestImport_MalformedLeavesStoreUntouched(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	c, _ := seedScenario(t, db)

	tests := []struct {
		name string
		doc  string
	}{
		{"client missing id", `{"clients":[{"nameOrId":"X","createdAt":"2026-01-01T00:00:00.000Z","updatedAt":"2026-01-01T00:00:00.000Z"}]}`},
		{"null entry", `{"styles":[null]}`},
		{"bad hand", `{"measurements":[{"id":"m","clientId":"c","styleId":"A","right":{"toe":"1"},"left":{},"updatedAt":"2026-01-01T00:00:00.000Z"}]}`},
		{"not an object", `[1,2,3]`},
		{"not json", `{"styles":`},
		{"no arrays", `{"exportedAt":"x","clients":{}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Decode(strings.NewReader(tt.doc))
			if err == nil {
				_, err = Import(ctx, db, p, ImportOptions{Missing: ClearMissing})
			}
			if !errors.Is(err, schema.ErrValidation) {
				t.Fatalf("error = %v, want ErrValidation", err)
			}
			if _, err := db.Clients().Get(ctx, c.ID); err != nil {
				t.Errorf("client lost after failed import: %v", err)
			}
		})
	}
}

func TestImport_DuplicateKeyRollsBack(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	c, _ := seedScenario(t, db)

	doc := `{
	  "styles": [{"id":"Z","name":"Z"}],
	  "clients": [
	    {"id":"x","nameOrId":"X","createdAt":"2026-01-01T00:00:00.000Z","updatedAt":"2026-01-01T00:00:00.000Z"},
	    {"id":"x","nameOrId":"Y","createdAt":"2026-01-01T00:00:00.000Z","updatedAt":"2026-01-01T00:00:00.000Z"}
	  ]
	}`
	p, err := Decode(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Decode() failed: %v", err)
	}
	_, err = Import(ctx, db, p, ImportOptions{})
	if !errors.Is(err, store.ErrDuplicateKey) {
		t.Fatalf("Import() error = %v, want ErrDuplicateKey", err)
	}

	st, err := db.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() failed: %v", err)
	}
	if st.Styles != 6 || st.Clients != 1 {
		t.Errorf("Stats() = %+v, want pre-import contents", st)
	}
	if _, err := db.Clients().Get(ctx, c.ID); err != nil {
		t.Errorf("Get() after rollback failed: %v", err)
	}
}

func TestImport_MissingPolicy(t *testing.T) {
	doc := `{"clients":[{"id":"x","nameOrId":"X","createdAt":"2026-01-01T00:00:00.000Z","updatedAt":"2026-01-01T00:00:00.000Z"}],"measurements":"oops"}`

	tests := []struct {
		name             string
		missing          MissingPolicy
		wantStyles       int
		wantMeasurements int
	}{
		{"skip", SkipMissing, 6, 1},
		{"clear", ClearMissing, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := openTestDB(t)
			ctx := context.Background()
			seedScenario(t, db)

			p, err := Decode(strings.NewReader(doc))
			if err != nil {
				t.Fatalf("Decode() failed: %v", err)
			}
			if len(p.Warnings) != 1 {
				t.Errorf("Warnings = %v, want one for measurements", p.Warnings)
			}
			if _, err := Import(ctx, db, p, ImportOptions{Missing: tt.missing}); err != nil {
				t.Fatalf("Import() failed: %v", err)
			}

			st, err := db.Stats(ctx)
			if err != nil {
				t.Fatalf("Stats() failed: %v", err)
			}
			if st.Clients != 1 || st.Styles != tt.wantStyles || st.Measurements != tt.wantMeasurements {
				t.Errorf("Stats() = %+v, want styles=%d measurements=%d", st, tt.wantStyles, tt.wantMeasurements)
			}
		})
	}
}

func TestImport_NormalizesTimestamps(t *testing.T) {
	doc := `{
  "clients": [
    {"id": "older", "nameOrId": "Older", "createdAt": "2026-01-01T10:00:00Z", "updatedAt": "2026-01-01T10:00:00Z"},
    {"id": "newer", "nameOrId": "Newer", "createdAt": "2026-01-01T10:00:00.500Z", "updatedAt": "2026-01-01T10:00:00.500Z"},
    {"id": "offset", "nameOrId": "Offset", "createdAt": "2026-01-01T12:00:00+05:00", "updatedAt": "2026-01-01T12:00:00+05:00"}
  ],
  "measurements": [
    {"id": "m1", "clientId": "offset", "styleId": "A", "updatedAt": "2026-01-01T12:00:00.25+05:00"}
  ]
}`
	db := openTestDB(t)
	ctx := context.Background()

	p, err := Decode(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Decode() failed: %v", err)
	}
	if _, err := Import(ctx, db, p, ImportOptions{}); err != nil {
		t.Fatalf("Import() failed: %v", err)
	}

	clients, err := db.Clients().OrderBy(ctx, "updatedAt", store.Descending)
	if err != nil {
		t.Fatalf("OrderBy() failed: %v", err)
	}
	var got []string
	for _, c := range clients {
		got = append(got, c.ID)
	}
	if strings.Join(got, ",") != "newer,older,offset" {
		t.Errorf("order = %v, want [newer older offset]", got)
	}

	want := map[string]string{
		"older":  "2026-01-01T10:00:00.000Z",
		"newer":  "2026-01-01T10:00:00.500Z",
		"offset": "2026-01-01T07:00:00.000Z",
	}
	for _, c := range clients {
		if c.UpdatedAt != want[c.ID] || c.CreatedAt != want[c.ID] {
			t.Errorf("client %s times = %q/%q, want %q", c.ID, c.CreatedAt, c.UpdatedAt, want[c.ID])
		}
	}

	m, err := db.Measurements().Get(ctx, "m1")
	if err != nil {
		t.Fatalf("Get(measurement) failed: %v", err)
	}
	if m.UpdatedAt != "2026-01-01T07:00:00.250Z" {
		t.Errorf("measurement updatedAt = %q", m.UpdatedAt)
	}
}

func TestFilename(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	got := Filename("", time.Date(2026, 3, 1, 22, 0, 0, 0, loc))
	if got != "nail-sizes-backup-2026-03-02.json" {
		t.Errorf("Filename() = %q", got)
	}
}
