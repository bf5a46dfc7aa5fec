// Package app holds the application actions behind every screen: listing
// and editing clients, recording measurements and running backups. Each
// action is a short transaction against the store.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/nailsizes/nailsizes/internal/backup"
	"github.com/nailsizes/nailsizes/internal/schema"
	"github.com/nailsizes/nailsizes/internal/store"
)

// ErrMeasurementExists is returned by AddStyleMeasurement when the client
// already has measurements for the style. It matches store.ErrDuplicateKey.
var ErrMeasurementExists = fmt.Errorf("%w: measurements already exist for this style", store.ErrDuplicateKey)

// Notifier is told about every successful change.
type Notifier interface {
	ClientChanged(clientID, action string)
	MeasurementChanged(clientID, styleID, action string)
	Imported(styles, clients, measurements int)
}

type nopNotifier struct{}

func (nopNotifier) ClientChanged(string, string)              {}
func (nopNotifier) MeasurementChanged(string, string, string) {}
func (nopNotifier) Imported(int, int, int)                    {}

// App runs actions against a store.
type App struct {
	db      *store.DB
	notify  Notifier
	now     func() time.Time
	logger  *log.Logger
	product string
}

// Option configures an App.
type Option func(*App)

// WithNotifier sets the change notifier.
func WithNotifier(n Notifier) Option {
	return func(a *App) { a.notify = n }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(a *App) { a.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(a *App) { a.logger = l }
}

// WithProduct sets the backup file name prefix.
func WithProduct(name string) Option {
	return func(a *App) { a.product = name }
}

// New creates an App.
func New(db *store.DB, opts ...Option) *App {
	a := &App{
		db:      db,
		notify:  nopNotifier{},
		now:     time.Now,
		logger:  log.New(io.Discard, "", 0),
		product: backup.DefaultProduct,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// DB returns the underlying store.
func (a *App) DB() *store.DB { return a.db }

// ListClients returns clients, most recently updated first, filtered by a
// case-insensitive substring of name, phone or email. A blank query
// returns everyone.
func (a *App) ListClients(ctx context.Context, query string) ([]*schema.Client, error) {
	clients, err := a.db.Clients().OrderBy(ctx, "updatedAt", store.Descending)
	if err != nil {
		return nil, err
	}
	q := strings.TrimSpace(query)
	if q == "" {
		return clients, nil
	}
	out := clients[:0]
	for _, c := range clients {
		if c.Matches(q) {
			out = append(out, c)
		}
	}
	return out, nil
}

// ListClientsSince is ListClients restricted to clients updated at or after
// since.
func (a *App) ListClientsSince(ctx context.Context, query string, since time.Time) ([]*schema.Client, error) {
	clients, err := a.ListClients(ctx, query)
	if err != nil {
		return nil, err
	}
	cutoff := schema.FormatTime(since)
	out := clients[:0]
	for _, c := range clients {
		if c.UpdatedAt >= cutoff {
			out = append(out, c)
		}
	}
	return out, nil
}

// ClientInput is the editable part of a client.
type ClientInput struct {
	NameOrID string `json:"nameOrId"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
}

// MeasurementInput is the editable part of a measurement.
type MeasurementInput struct {
	Right schema.Hand `json:"right"`
	Left  schema.Hand `json:"left"`
	Notes string      `json:"notes"`
}

// NewClientInput is the add-client form: the client and its first
// measurement.
type NewClientInput struct {
	ClientInput
	MeasurementInput
	StyleID string `json:"styleId"`
}

// AddClient creates a client and its first measurement in one transaction
// and returns the edit state for the new client.
func (a *App) AddClient(ctx context.Context, in NewClientInput) (State, error) {
	now := a.now()
	c, err := schema.NewClient(in.NameOrID, in.Phone, in.Email, now)
	if err != nil {
		return State{}, err
	}
	m, err := schema.NewMeasurement(c.ID, in.StyleID, in.Right, in.Left, in.Notes, now)
	if err != nil {
		return State{}, err
	}

	err = a.db.Tx(ctx, func(tx *store.Tx) error {
		if err := requireStyle(ctx, tx, in.StyleID); err != nil {
			return err
		}
		if err := tx.Clients().Add(ctx, c); err != nil {
			return err
		}
		return tx.Measurements().Add(ctx, m)
	})
	if err != nil {
		return State{}, err
	}

	a.logger.Printf("Added client %s", c.ID)
	a.notify.ClientChanged(c.ID, "created")
	a.notify.MeasurementChanged(c.ID, m.StyleID, "created")
	return Edit(c.ID, ""), nil
}

func requireStyle(ctx context.Context, tx *store.Tx, styleID string) error {
	if _, err := tx.Styles().Get(ctx, styleID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return &schema.ValidationError{Record: "measurement", Field: "styleId", Reason: fmt.Sprintf("%q is not a known style", styleID)}
		}
		return err
	}
	return nil
}

// EditView is everything the edit screen shows.
type EditView struct {
	Client       *schema.Client        `json:"client"`
	Styles       []*schema.Style       `json:"styles"`
	Measurements []*schema.Measurement `json:"measurements"`
	StyleID      string                `json:"styleId"`
	Current      *schema.Measurement   `json:"current"`
	// Saved is false when Current is a blank template not yet stored.
	Saved bool `json:"saved"`
}

// EditView loads the edit screen for st.ClientID. The selected style is
// st.StyleID, else the first measured style, else the first catalog style.
func (a *App) EditView(ctx context.Context, st State) (*EditView, error) {
	v := &EditView{}
	err := a.db.View(ctx, func(tx *store.Tx) error {
		var err error
		if v.Client, err = tx.Clients().Get(ctx, st.ClientID); err != nil {
			return err
		}
		if v.Styles, err = tx.Styles().All(ctx); err != nil {
			return err
		}
		v.Measurements, err = tx.Measurements().Where(ctx, store.Eq{"clientId": st.ClientID})
		return err
	})
	if err != nil {
		return nil, err
	}

	switch {
	case st.StyleID != "":
		v.StyleID = st.StyleID
	case len(v.Measurements) > 0:
		v.StyleID = v.Measurements[0].StyleID
	case len(v.Styles) > 0:
		v.StyleID = v.Styles[0].ID
	}

	for _, m := range v.Measurements {
		if m.StyleID == v.StyleID {
			v.Current, v.Saved = m, true
			break
		}
	}
	if v.Current == nil {
		v.Current = &schema.Measurement{
			ClientID:  st.ClientID,
			StyleID:   v.StyleID,
			UpdatedAt: schema.FormatTime(a.now()),
		}
	}
	if v.Measurements == nil {
		v.Measurements = []*schema.Measurement{}
	}
	return v, nil
}

// SaveClientInfo replaces the client's name, phone and email.
func (a *App) SaveClientInfo(ctx context.Context, clientID string, in ClientInput) (*schema.Client, error) {
	now := a.now()
	c, err := a.db.Clients().Update(ctx, clientID, func(c *schema.Client) {
		c.NameOrID = strings.TrimSpace(in.NameOrID)
		c.Phone = strings.TrimSpace(in.Phone)
		c.Email = strings.TrimSpace(in.Email)
		c.Touch(now)
	})
	if err != nil {
		return nil, err
	}
	a.notify.ClientChanged(clientID, "updated")
	return c, nil
}

// DeleteClient deletes the client and all of its measurements in one
// transaction. Deleting an unknown client is a no-op.
func (a *App) DeleteClient(ctx context.Context, clientID string) (State, error) {
	var removed int
	err := a.db.Tx(ctx, func(tx *store.Tx) error {
		var err error
		if removed, err = tx.Measurements().DeleteWhere(ctx, store.Eq{"clientId": clientID}); err != nil {
			return err
		}
		return tx.Clients().Delete(ctx, clientID)
	})
	if err != nil {
		return State{}, err
	}
	a.logger.Printf("Deleted client %s and %d measurements", clientID, removed)
	a.notify.ClientChanged(clientID, "deleted")
	return Home(), nil
}

// AddStyleMeasurement adds a blank measurement for styleID and touches the
// client. It fails with ErrMeasurementExists when the client already has one.
func (a *App) AddStyleMeasurement(ctx context.Context, clientID, styleID string) (State, error) {
	now := a.now()
	m, err := schema.NewMeasurement(clientID, styleID, schema.Hand{}, schema.Hand{}, "", now)
	if err != nil {
		return State{}, err
	}
	err = a.db.Tx(ctx, func(tx *store.Tx) error {
		if _, err := tx.Clients().Update(ctx, clientID, func(c *schema.Client) { c.Touch(now) }); err != nil {
			return err
		}
		if err := requireStyle(ctx, tx, styleID); err != nil {
			return err
		}
		_, err := tx.Measurements().First(ctx, store.Eq{"clientId": clientID, "styleId": styleID})
		switch {
		case err == nil:
			return ErrMeasurementExists
		case !errors.Is(err, store.ErrNotFound):
			return err
		}
		return tx.Measurements().Add(ctx, m)
	})
	if err != nil {
		return State{}, err
	}
	a.notify.MeasurementChanged(clientID, styleID, "created")
	a.notify.ClientChanged(clientID, "updated")
	return Edit(clientID, styleID), nil
}

// SaveMeasurement creates or updates the client's measurement for styleID
// and refreshes the client's updatedAt, in one transaction.
func (a *App) SaveMeasurement(ctx context.Context, clientID, styleID string, in MeasurementInput) (*schema.Measurement, error) {
	now := a.now()
	right, left, notes := in.Right.Trimmed(), in.Left.Trimmed(), strings.TrimSpace(in.Notes)

	var (
		saved  *schema.Measurement
		action = "updated"
	)
	err := a.db.Tx(ctx, func(tx *store.Tx) error {
		if _, err := tx.Clients().Update(ctx, clientID, func(c *schema.Client) { c.Touch(now) }); err != nil {
			return err
		}

		existing, err := tx.Measurements().First(ctx, store.Eq{"clientId": clientID, "styleId": styleID})
		if err == nil {
			saved, err = tx.Measurements().Update(ctx, existing.ID, func(m *schema.Measurement) {
				m.Right, m.Left, m.Notes = right, left, notes
				m.UpdatedAt = schema.FormatTime(now)
			})
			return err
		}
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		if err := requireStyle(ctx, tx, styleID); err != nil {
			return err
		}
		if saved, err = schema.NewMeasurement(clientID, styleID, right, left, notes, now); err != nil {
			return err
		}
		action = "created"
		return tx.Measurements().Add(ctx, saved)
	})
	if err != nil {
		return nil, err
	}
	a.notify.MeasurementChanged(clientID, styleID, action)
	a.notify.ClientChanged(clientID, "updated")
	return saved, nil
}

// Styles returns the catalog in seed order.
func (a *App) Styles(ctx context.Context) ([]*schema.Style, error) {
	return a.db.Styles().All(ctx)
}

// Export snapshots the store and returns the document with its file name.
func (a *App) Export(ctx context.Context) (*backup.Document, string, error) {
	now := a.now()
	doc, err := backup.Export(ctx, a.db, now)
	if err != nil {
		return nil, "", err
	}
	return doc, backup.Filename(a.product, now), nil
}

// Import decodes r and replaces the store's contents.
func (a *App) Import(ctx context.Context, r io.Reader, opts backup.ImportOptions) (*backup.ImportResult, error) {
	p, err := backup.Decode(r)
	if err != nil {
		return nil, err
	}
	for _, w := range p.Warnings {
		a.logger.Printf("Import warning: %s", w)
	}
	res, err := backup.Import(ctx, a.db, p, opts)
	if err != nil {
		return nil, err
	}
	a.logger.Printf("Imported %d styles, %d clients, %d measurements",
		res.Styles.Count, res.Clients.Count, res.Measurements.Count)
	a.notify.Imported(res.Styles.Count, res.Clients.Count, res.Measurements.Count)
	return res, nil
}
