package backup

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/nailsizes/nailsizes/internal/schema"
)

// Payload is a decoded import document. A collection is present only when
// its key holds a JSON array.
type Payload struct {
	Document

	HasStyles       bool
	HasClients      bool
	HasMeasurements bool

	// Warnings lists keys that were present but not arrays. They are
	// treated as absent.
	Warnings []string
}

// Empty reports whether the payload carries none of the three collections.
func (p *Payload) Empty() bool {
	return !p.HasStyles && !p.HasClients && !p.HasMeasurements
}

// FromDocument wraps an exported document as a payload with every
// collection present.
func FromDocument(doc *Document) *Payload {
	return &Payload{Document: *doc, HasStyles: true, HasClients: true, HasMeasurements: true}
}

func malformed(reason string) error {
	return &schema.ValidationError{Record: "backup", Reason: reason}
}

// Decode parses an import document. Every entry of a present array must be a
// valid record; the first bad entry fails the whole decode.
func Decode(r io.Reader) (*Payload, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read backup: %w", err)
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		if !json.Valid(data) {
			return nil, malformed("document is not valid JSON")
		}
		return nil, malformed("document must be a JSON object")
	}
	if top == nil {
		return nil, malformed("document must be a JSON object")
	}

	p := &Payload{}
	if raw, ok := top["exportedAt"]; ok {
		_ = json.Unmarshal(raw, &p.ExportedAt)
	}

	if p.Styles, p.HasStyles, err = decodeArray(top, "styles", p, (*schema.Style).Validate); err != nil {
		return nil, err
	}
	if p.Clients, p.HasClients, err = decodeArray(top, "clients", p, validateClient); err != nil {
		return nil, err
	}
	if p.Measurements, p.HasMeasurements, err = decodeArray(top, "measurements", p, validateMeasurement); err != nil {
		return nil, err
	}
	return p, nil
}

// Imported timestamps are rewritten in schema.TimeLayout so that list order,
// which compares the stored text, matches chronological order.
func validateClient(c *schema.Client) error {
	if err := c.Validate(); err != nil {
		return err
	}
	return c.NormalizeTimes()
}

func validateMeasurement(m *schema.Measurement) error {
	if err := m.Validate(); err != nil {
		return err
	}
	return m.NormalizeTimes()
}

func decodeArray[T any](top map[string]json.RawMessage, key string, p *Payload, validate func(*T) error) ([]*T, bool, error) {
	raw, ok := top[key]
	if !ok {
		return nil, false, nil
	}
	if trimmed := bytes.TrimSpace(raw); len(trimmed) == 0 || trimmed[0] != '[' {
		p.Warnings = append(p.Warnings, fmt.Sprintf("%q is not an array; ignored", key))
		return nil, false, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, false, malformed(fmt.Sprintf("%s: %v", key, err))
	}

	recs := make([]*T, 0, len(items))
	for i, item := range items {
		if bytes.Equal(bytes.TrimSpace(item), []byte("null")) {
			return nil, false, malformed(fmt.Sprintf("%s[%d] is null", key, i))
		}
		var rec T
		if err := json.Unmarshal(item, &rec); err != nil {
			return nil, false, fmt.Errorf("%s[%d]: %w", key, i, asValidation(key, err))
		}
		if err := validate(&rec); err != nil {
			return nil, false, fmt.Errorf("%s[%d]: %w", key, i, err)
		}
		recs = append(recs, &rec)
	}
	return recs, true, nil
}

// asValidation keeps ValidationErrors from custom decoders and turns JSON
// type errors into one.
func asValidation(key string, err error) error {
	var ve *schema.ValidationError
	if errors.As(err, &ve) {
		return ve
	}
	return malformed(fmt.Sprintf("%s entry: %v", key, err))
}
