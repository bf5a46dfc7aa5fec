package schema

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Client is a customer record. NameOrID is free text (a name, an email,
// a loyalty number) and is the only required field.
type Client struct {
	ID        string `json:"id"`
	NameOrID  string `json:"nameOrId"`
	Phone     string `json:"phone"`
	Email     string `json:"email"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

// NewClient creates a client with a generated id and both timestamps set to now.
func NewClient(nameOrID, phone, email string, now time.Time) (*Client, error) {
	ts := FormatTime(now)
	c := &Client{
		ID:        uuid.NewString(),
		NameOrID:  strings.TrimSpace(nameOrID),
		Phone:     strings.TrimSpace(phone),
		Email:     strings.TrimSpace(email),
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks if the Client has valid field values.
func (c *Client) Validate() error {
	if c.ID == "" {
		return invalid("client", "id", "is required")
	}
	if strings.TrimSpace(c.NameOrID) == "" {
		return invalid("client", "nameOrId", "is required")
	}
	if err := checkTime("client", "createdAt", c.CreatedAt); err != nil {
		return err
	}
	return checkTime("client", "updatedAt", c.UpdatedAt)
}

// Key returns the primary key.
func (c *Client) Key() string { return c.ID }

// NormalizeTimes rewrites CreatedAt and UpdatedAt in TimeLayout.
func (c *Client) NormalizeTimes() error {
	created, err := NormalizeTime(c.CreatedAt)
	if err != nil {
		return invalid("client", "createdAt", "is not an ISO-8601 timestamp")
	}
	updated, err := NormalizeTime(c.UpdatedAt)
	if err != nil {
		return invalid("client", "updatedAt", "is not an ISO-8601 timestamp")
	}
	c.CreatedAt, c.UpdatedAt = created, updated
	return nil
}

// Touch sets UpdatedAt to now.
func (c *Client) Touch(now time.Time) {
	c.UpdatedAt = FormatTime(now)
}

// Matches reports whether q is a case-insensitive substring of the name,
// phone or email. An empty query matches every client.
func (c *Client) Matches(q string) bool {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(c.NameOrID), q) ||
		strings.Contains(strings.ToLower(c.Phone), q) ||
		strings.Contains(strings.ToLower(c.Email), q)
}
