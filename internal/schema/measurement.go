package schema

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Measurement records one client's finger sizes for one style.
// At most one measurement exists per (ClientID, StyleID); the application
// checks before inserting.
type Measurement struct {
	ID        string `json:"id"`
	ClientID  string `json:"clientId"`
	StyleID   string `json:"styleId"`
	Right     Hand   `json:"right"`
	Left      Hand   `json:"left"`
	Notes     string `json:"notes"`
	UpdatedAt string `json:"updatedAt"`
}

// NewMeasurement creates a measurement with a generated id.
// Labels and notes are trimmed.
func NewMeasurement(clientID, styleID string, right, left Hand, notes string, now time.Time) (*Measurement, error) {
	m := &Measurement{
		ID:        uuid.NewString(),
		ClientID:  clientID,
		StyleID:   styleID,
		Right:     right.Trimmed(),
		Left:      left.Trimmed(),
		Notes:     strings.TrimSpace(notes),
		UpdatedAt: FormatTime(now),
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Validate checks if the Measurement has valid field values.
func (m *Measurement) Validate() error {
	if m.ID == "" {
		return invalid("measurement", "id", "is required")
	}
	if m.ClientID == "" {
		return invalid("measurement", "clientId", "is required")
	}
	if m.StyleID == "" {
		return invalid("measurement", "styleId", "is required")
	}
	return checkTime("measurement", "updatedAt", m.UpdatedAt)
}

// Key returns the primary key.
func (m *Measurement) Key() string { return m.ID }

// NormalizeTimes rewrites UpdatedAt in TimeLayout.
func (m *Measurement) NormalizeTimes() error {
	updated, err := NormalizeTime(m.UpdatedAt)
	if err != nil {
		return invalid("measurement", "updatedAt", "is not an ISO-8601 timestamp")
	}
	m.UpdatedAt = updated
	return nil
}
