package store

import (
	"encoding/json"
	"fmt"

	"github.com/nailsizes/nailsizes/internal/schema"
)

var styleSpec = (&tableSpec[schema.Style]{
	name:    "styles",
	record:  "style",
	columns: []string{"id", "name", "min_label", "max_label", "image_file"},
	fields: map[string]string{
		"id":   "id",
		"name": "name",
	},
	key:      (*schema.Style).Key,
	validate: (*schema.Style).Validate,
	values: func(s *schema.Style) ([]any, error) {
		return []any{s.ID, s.Name, s.MinLabel, s.MaxLabel, s.ImageFile}, nil
	},
	scan: func(r rowScanner) (*schema.Style, error) {
		var s schema.Style
		if err := r.Scan(&s.ID, &s.Name, &s.MinLabel, &s.MaxLabel, &s.ImageFile); err != nil {
			return nil, err
		}
		return &s, nil
	},
}).build()

var clientSpec = (&tableSpec[schema.Client]{
	name:    "clients",
	record:  "client",
	columns: []string{"id", "name_or_id", "phone", "email", "created_at", "updated_at"},
	fields: map[string]string{
		"id":        "id",
		"nameOrId":  "name_or_id",
		"phone":     "phone",
		"email":     "email",
		"createdAt": "created_at",
		"updatedAt": "updated_at",
	},
	key:      (*schema.Client).Key,
	validate: (*schema.Client).Validate,
	values: func(c *schema.Client) ([]any, error) {
		return []any{c.ID, c.NameOrID, c.Phone, c.Email, c.CreatedAt, c.UpdatedAt}, nil
	},
	scan: func(r rowScanner) (*schema.Client, error) {
		var c schema.Client
		if err := r.Scan(&c.ID, &c.NameOrID, &c.Phone, &c.Email, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		return &c, nil
	},
}).build()

var measurementSpec = (&tableSpec[schema.Measurement]{
	name:    "measurements",
	record:  "measurement",
	columns: []string{"id", "client_id", "style_id", "right_hand", "left_hand", "notes", "updated_at"},
	fields: map[string]string{
		"id":        "id",
		"clientId":  "client_id",
		"styleId":   "style_id",
		"updatedAt": "updated_at",
	},
	key:      (*schema.Measurement).Key,
	validate: (*schema.Measurement).Validate,
	values: func(m *schema.Measurement) ([]any, error) {
		right, err := json.Marshal(m.Right)
		if err != nil {
			return nil, fmt.Errorf("failed to encode right hand: %w", err)
		}
		left, err := json.Marshal(m.Left)
		if err != nil {
			return nil, fmt.Errorf("failed to encode left hand: %w", err)
		}
		return []any{m.ID, m.ClientID, m.StyleID, string(right), string(left), m.Notes, m.UpdatedAt}, nil
	},
	scan: func(r rowScanner) (*schema.Measurement, error) {
		var (
			m           schema.Measurement
			right, left string
		)
		if err := r.Scan(&m.ID, &m.ClientID, &m.StyleID, &right, &left, &m.Notes, &m.UpdatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(right), &m.Right); err != nil {
			return nil, fmt.Errorf("measurement %s: bad right hand: %w", m.ID, err)
		}
		if err := json.Unmarshal([]byte(left), &m.Left); err != nil {
			return nil, fmt.Errorf("measurement %s: bad left hand: %w", m.ID, err)
		}
		return &m, nil
	},
}).build()
