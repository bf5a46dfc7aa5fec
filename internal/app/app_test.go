package app

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/nailsizes/nailsizes/internal/backup"
	"github.com/nailsizes/nailsizes/internal/catalog"
	"github.com/nailsizes/nailsizes/internal/schema"
	"github.com/nailsizes/nailsizes/internal/store"
)

// clock advances one minute per call.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Minute)
	return c.t
}

type recorder struct {
	events []string
}

func (r *recorder) ClientChanged(id, action string) {
	r.events = append(r.events, "client:"+action)
}

func (r *recorder) MeasurementChanged(clientID, styleID, action string) {
	r.events = append(r.events, "measurement:"+styleID+":"+action)
}

func (r *recorder) Imported(s, c, m int) {
	r.events = append(r.events, "imported")
}

func newTestApp(t *testing.T) (*App, *recorder) {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "nailsizes.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if _, err := catalog.SeedIfEmpty(context.Background(), db, catalog.Default()); err != nil {
		t.Fatalf("SeedIfEmpty() failed: %v", err)
	}
	rec := &recorder{}
	c := &clock{t: time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)}
	return New(db, WithNotifier(rec), WithClock(c.now)), rec
}

func addClient(t *testing.T, a *App, name, styleID string) string {
	t.Helper()
	st, err := a.AddClient(context.Background(), NewClientInput{
		ClientInput:      ClientInput{NameOrID: name},
		StyleID:          styleID,
		MeasurementInput: MeasurementInput{Right: schema.Hand{Thumb: "5"}},
	})
	if err != nil {
		t.Fatalf("AddClient() failed: %v", err)
	}
	if st.Route != RouteEdit || st.ClientID == "" {
		t.Fatalf("AddClient() state = %+v", st)
	}
	return st.ClientID
}

func TestScenario_ExportClearImport(t *testing.T) {
	a, _ := newTestApp(t)
	ctx := context.Background()

	st, err := a.AddClient(ctx, NewClientInput{
		ClientInput: ClientInput{NameOrID: " Jane Doe "},
		StyleID:     "A",
		MeasurementInput: MeasurementInput{
			Right: schema.Hand{Thumb: "5", Index: "7", Middle: "6", Ring: "7", Pinky: "9"},
			Left:  schema.Hand{Thumb: "4", Index: "7", Middle: "6", Ring: "7", Pinky: "9"},
		},
	})
	if err != nil {
		t.Fatalf("AddClient() failed: %v", err)
	}
	view, err := a.EditView(ctx, st)
	if err != nil {
		t.Fatalf("EditView() failed: %v", err)
	}
	origClient, origMeas := *view.Client, *view.Current
	if origClient.NameOrID != "Jane Doe" {
		t.Errorf("NameOrID = %q, want trimmed", origClient.NameOrID)
	}

	doc, name, err := a.Export(ctx)
	if err != nil {
		t.Fatalf("Export() failed: %v", err)
	}
	if name != "nail-sizes-backup-2026-01-10.json" {
		t.Errorf("Export() name = %q", name)
	}
	var buf bytes.Buffer
	if err := backup.Encode(&buf, doc); err != nil {
		t.Fatalf("Encode() failed: %v", err)
	}

	err = a.DB().Tx(ctx, func(tx *store.Tx) error {
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

	if _, err := a.Import(ctx, &buf, backup.ImportOptions{}); err != nil {
		t.Fatalf("Import() failed: %v", err)
	}

	gotC, err := a.DB().Clients().Get(ctx, origClient.ID)
	if err != nil {
		t.Fatalf("Get(client) failed: %v", err)
	}
	if *gotC != origClient {
		t.Errorf("client = %+v, want %+v", gotC, origClient)
	}
	gotM, err := a.DB().Measurements().Get(ctx, origMeas.ID)
	if err != nil {
		t.Fatalf("Get(measurement) failed: %v", err)
	}
	if *gotM != origMeas {
		t.Errorf("measurement = %+v, want %+v", gotM, origMeas)
	}
	styles, err := a.Styles(ctx)
	if err != nil {
		t.Fatalf("Styles() failed: %v", err)
	}
	if len(styles) != 6 {
		t.Errorf("Styles() = %d, want 6", len(styles))
	}
}

func TestAddClient_Invalid(t *testing.T) {
	a, rec := newTestApp(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   NewClientInput
	}{
		{"blank name", NewClientInput{ClientInput: ClientInput{NameOrID: "  "}, StyleID: "A"}},
		{"no style", NewClientInput{ClientInput: ClientInput{NameOrID: "Ana"}}},
		{"unknown style", NewClientInput{ClientInput: ClientInput{NameOrID: "Ana"}, StyleID: "Z"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.AddClient(ctx, tt.in)
			if !errors.Is(err, schema.ErrValidation) {
				t.Errorf("AddClient() error = %v, want ErrValidation", err)
			}
		})
	}

	st, err := a.DB().Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() failed: %v", err)
	}
	if st.Clients != 0 || st.Measurements != 0 {
		t.Errorf("Stats() = %+v, want nothing written", st)
	}
	if len(rec.events) != 0 {
		t.Errorf("notifier saw %v", rec.events)
	}
}

func TestListClients_OrderAndSearch(t *testing.T) {
	a, _ := newTestApp(t)
	ctx := context.Background()

	ana := addClient(t, a, "Ana", "A")
	bea := addClient(t, a, "Bea", "A")
	addClient(t, a, "Cleo", "B")
	if _, err := a.SaveClientInfo(ctx, bea, ClientInput{NameOrID: "Bea", Phone: "555-0199", Email: "bea@example.com"}); err != nil {
		t.Fatalf("SaveClientInfo() failed: %v", err)
	}
	if _, err := a.SaveMeasurement(ctx, ana, "A", MeasurementInput{Right: schema.Hand{Thumb: "4"}}); err != nil {
		t.Fatalf("SaveMeasurement() failed: %v", err)
	}

	tests := []struct {
		query string
		want  []string
	}{
		{"", []string{"Ana", "Bea", "Cleo"}},
		{"  ", []string{"Ana", "Bea", "Cleo"}},
		{"EXAMPLE.COM", []string{"Bea"}},
		{"0199", []string{"Bea"}},
		{"cle", []string{"Cleo"}},
		{"zzz", nil},
	}
	for _, tt := range tests {
		got, err := a.ListClients(ctx, tt.query)
		if err != nil {
			t.Fatalf("ListClients(%q) failed: %v", tt.query, err)
		}
		var names []string
		for _, c := range got {
			names = append(names, c.NameOrID)
		}
		if len(names) != len(tt.want) {
			t.Errorf("ListClients(%q) = %v, want %v", tt.query, names, tt.want)
			continue
		}
		for i := range names {
			if names[i] != tt.want[i] {
				t.Errorf("ListClients(%q) = %v, want %v", tt.query, names, tt.want)
				break
			}
		}
	}
}

func TestDeleteClient_Cascades(t *testing.T) {
	a, rec := newTestApp(t)
	ctx := context.Background()

	gone := addClient(t, a, "Gone", "A")
	if _, err := a.AddStyleMeasurement(ctx, gone, "B"); err != nil {
		t.Fatalf("AddStyleMeasurement() failed: %v", err)
	}
	kept := addClient(t, a, "Kept", "A")

	st, err := a.DeleteClient(ctx, gone)
	if err != nil {
		t.Fatalf("DeleteClient() failed: %v", err)
	}
	if st != Home() {
		t.Errorf("DeleteClient() state = %+v, want clients", st)
	}
	if _, err := a.DB().Clients().Get(ctx, gone); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Get(deleted) error = %v, want ErrNotFound", err)
	}
	orphans, err := a.DB().Measurements().Where(ctx, store.Eq{"clientId": gone})
	if err != nil {
		t.Fatalf("Where() failed: %v", err)
	}
	if len(orphans) != 0 {
		t.Errorf("%d measurements survived their client", len(orphans))
	}
	others, err := a.DB().Measurements().Where(ctx, store.Eq{"clientId": kept})
	if err != nil {
		t.Fatalf("Where() failed: %v", err)
	}
	if len(others) != 1 {
		t.Errorf("other client has %d measurements, want 1", len(others))
	}
	if last := rec.events[len(rec.events)-1]; last != "client:deleted" {
		t.Errorf("last event = %q", last)
	}
}

func TestAddStyleMeasurement_RejectsDuplicate(t *testing.T) {
	a, _ := newTestApp(t)
	ctx := context.Background()
	id := addClient(t, a, "Ana", "A")

	st, err := a.AddStyleMeasurement(ctx, id, "C")
	if err != nil {
		t.Fatalf("AddStyleMeasurement() failed: %v", err)
	}
	if st != Edit(id, "C") {
		t.Errorf("state = %+v", st)
	}

	for _, style := range []string{"A", "C"} {
		_, err := a.AddStyleMeasurement(ctx, id, style)
		if !errors.Is(err, ErrMeasurementExists) || !errors.Is(err, store.ErrDuplicateKey) {
			t.Errorf("AddStyleMeasurement(%s) error = %v, want ErrMeasurementExists", style, err)
		}
	}
	if _, err := a.AddStyleMeasurement(ctx, "nobody", "A"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("AddStyleMeasurement(unknown client) error = %v, want ErrNotFound", err)
	}

	ms, err := a.DB().Measurements().Where(ctx, store.Eq{"clientId": id})
	if err != nil {
		t.Fatalf("Where() failed: %v", err)
	}
	if len(ms) != 2 {
		t.Errorf("client has %d measurements, want 2", len(ms))
	}
}

func TestAddStyleMeasurement_TouchesClient(t *testing.T) {
	a, rec := newTestApp(t)
	ctx := context.Background()
	id := addClient(t, a, "Ana", "A")

	before, err := a.DB().Clients().Get(ctx, id)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if _, err := a.AddStyleMeasurement(ctx, id, "B"); err != nil {
		t.Fatalf("AddStyleMeasurement() failed: %v", err)
	}
	after, err := a.DB().Clients().Get(ctx, id)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if after.UpdatedAt <= before.UpdatedAt {
		t.Errorf("client updatedAt %q not after %q", after.UpdatedAt, before.UpdatedAt)
	}
	m, err := a.DB().Measurements().First(ctx, store.Eq{"clientId": id, "styleId": "B"})
	if err != nil {
		t.Fatalf("First() failed: %v", err)
	}
	if after.UpdatedAt != m.UpdatedAt {
		t.Errorf("client updatedAt %q != measurement updatedAt %q", after.UpdatedAt, m.UpdatedAt)
	}
	if last := rec.events[len(rec.events)-1]; last != "client:updated" {
		t.Errorf("last event = %q, want client:updated", last)
	}

	if _, err := a.AddStyleMeasurement(ctx, id, "B"); !errors.Is(err, ErrMeasurementExists) {
		t.Fatalf("AddStyleMeasurement(duplicate) error = %v, want ErrMeasurementExists", err)
	}
	rejected, err := a.DB().Clients().Get(ctx, id)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if rejected.UpdatedAt != after.UpdatedAt {
		t.Errorf("rejected add changed updatedAt from %q to %q", after.UpdatedAt, rejected.UpdatedAt)
	}
}

func TestSaveMeasurement_UpsertTouchesClient(t *testing.T) {
	a, rec := newTestApp(t)
	ctx := context.Background()
	id := addClient(t, a, "Ana", "A")

	before, err := a.DB().Clients().Get(ctx, id)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}

	m, err := a.SaveMeasurement(ctx, id, "A", MeasurementInput{Right: schema.Hand{Pinky: " 9 "}, Notes: " ok "})
	if err != nil {
		t.Fatalf("SaveMeasurement(update) failed: %v", err)
	}
	if m.Right.Pinky != "9" || m.Notes != "ok" || m.Right.Thumb != "" {
		t.Errorf("updated measurement = %+v", m)
	}

	created, err := a.SaveMeasurement(ctx, id, "D", MeasurementInput{Left: schema.Hand{Ring: "3"}})
	if err != nil {
		t.Fatalf("SaveMeasurement(create) failed: %v", err)
	}

	after, err := a.DB().Clients().Get(ctx, id)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if after.UpdatedAt <= before.UpdatedAt {
		t.Errorf("client updatedAt %q not after %q", after.UpdatedAt, before.UpdatedAt)
	}
	if after.UpdatedAt != created.UpdatedAt {
		t.Errorf("client updatedAt %q != measurement updatedAt %q", after.UpdatedAt, created.UpdatedAt)
	}

	ms, err := a.DB().Measurements().Where(ctx, store.Eq{"clientId": id})
	if err != nil {
		t.Fatalf("Where() failed: %v", err)
	}
	if len(ms) != 2 {
		t.Errorf("client has %d measurements, want 2", len(ms))
	}

	want := "measurement:D:created"
	found := false
	for _, e := range rec.events {
		if e == want {
			found = true
		}
	}
	if !found {
		t.Errorf("events %v missing %q", rec.events, want)
	}

	if _, err := a.SaveMeasurement(ctx, "nobody", "A", MeasurementInput{}); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("SaveMeasurement(unknown client) error = %v, want ErrNotFound", err)
	}
}

func TestEditView_StyleSelection(t *testing.T) {
	a, _ := newTestApp(t)
	ctx := context.Background()
	id := addClient(t, a, "Ana", "C")

	tests := []struct {
		name      string
		state     State
		wantStyle string
		wantSaved bool
	}{
		{"first measured style", Edit(id, ""), "C", true},
		{"explicit measured style", Edit(id, "C"), "C", true},
		{"explicit unmeasured style", Edit(id, "E"), "E", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := a.EditView(ctx, tt.state)
			if err != nil {
				t.Fatalf("EditView() failed: %v", err)
			}
			if v.StyleID != tt.wantStyle || v.Saved != tt.wantSaved {
				t.Errorf("EditView() style=%s saved=%v, want %s/%v", v.StyleID, v.Saved, tt.wantStyle, tt.wantSaved)
			}
			if !tt.wantSaved && (v.Current.ID != "" || !v.Current.Right.IsEmpty()) {
				t.Errorf("template measurement = %+v", v.Current)
			}
		})
	}

	if _, err := a.DeleteClient(ctx, id); err != nil {
		t.Fatalf("DeleteClient() failed: %v", err)
	}
	if _, err := a.EditView(ctx, Edit(id, "")); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("EditView(deleted) error = %v, want ErrNotFound", err)
	}
}

func TestEditView_NoMeasurementsFallsBackToFirstStyle(t *testing.T) {
	a, _ := newTestApp(t)
	ctx := context.Background()
	id := addClient(t, a, "Ana", "B")
	if _, err := a.DB().Measurements().DeleteWhere(ctx, store.Eq{"clientId": id}); err != nil {
		t.Fatalf("DeleteWhere() failed: %v", err)
	}
	v, err := a.EditView(ctx, Edit(id, ""))
	if err != nil {
		t.Fatalf("EditView() failed: %v", err)
	}
	if v.StyleID != "A" || v.Saved {
		t.Errorf("EditView() style=%s saved=%v, want A/false", v.StyleID, v.Saved)
	}
}

func TestParseRoute(t *testing.T) {
	for _, s := range []string{"", "clients", "add", "edit", "styles", "backup"} {
		if _, err := ParseRoute(s); err != nil {
			t.Errorf("ParseRoute(%q) failed: %v", s, err)
		}
	}
	if _, err := ParseRoute("settings"); err == nil {
		t.Error("ParseRoute(settings) succeeded")
	}
}
