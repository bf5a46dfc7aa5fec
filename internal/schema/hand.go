package schema

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Finger names a finger of one hand.
type Finger string

const (
	Thumb  Finger = "thumb"
	Index  Finger = "index"
	Middle Finger = "middle"
	Ring   Finger = "ring"
	Pinky  Finger = "pinky"
)

// Fingers lists every finger in display order.
var Fingers = []Finger{Thumb, Index, Middle, Ring, Pinky}

// Hand holds the size label of each finger of one hand. The struct shape
// guarantees all five keys are present when serialized; unset fingers are "".
type Hand struct {
	Thumb  string `json:"thumb"`
	Index  string `json:"index"`
	Middle string `json:"middle"`
	Ring   string `json:"ring"`
	Pinky  string `json:"pinky"`
}

// Get returns the label for f.
func (h Hand) Get(f Finger) string {
	switch f {
	case Thumb:
		return h.Thumb
	case Index:
		return h.Index
	case Middle:
		return h.Middle
	case Ring:
		return h.Ring
	case Pinky:
		return h.Pinky
	}
	return ""
}

// Set assigns the label for f. Unknown fingers are rejected.
func (h *Hand) Set(f Finger, label string) error {
	switch f {
	case Thumb:
		h.Thumb = label
	case Index:
		h.Index = label
	case Middle:
		h.Middle = label
	case Ring:
		h.Ring = label
	case Pinky:
		h.Pinky = label
	default:
		return invalid("hand", string(f), "is not a finger")
	}
	return nil
}

// Trimmed returns a copy with surrounding whitespace removed from every label.
func (h Hand) Trimmed() Hand {
	return Hand{
		Thumb:  strings.TrimSpace(h.Thumb),
		Index:  strings.TrimSpace(h.Index),
		Middle: strings.TrimSpace(h.Middle),
		Ring:   strings.TrimSpace(h.Ring),
		Pinky:  strings.TrimSpace(h.Pinky),
	}
}

// IsEmpty reports whether no finger has a label.
func (h Hand) IsEmpty() bool {
	return h == Hand{}
}

// HandFromMap builds a Hand from a finger-name map, as submitted by forms.
// Missing fingers stay empty; unknown keys are a validation error.
func HandFromMap(m map[string]string) (Hand, error) {
	var h Hand
	for k, v := range m {
		if err := h.Set(Finger(k), v); err != nil {
			return Hand{}, err
		}
	}
	return h, nil
}

// UnmarshalJSON decodes a finger map, rejecting keys that are not fingers and
// values that are not strings.
func (h *Hand) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*h = Hand{}
		return nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return invalid("hand", "", "must be an object of finger labels")
	}
	var out Hand
	for k, v := range raw {
		var label string
		if err := json.Unmarshal(v, &label); err != nil {
			return invalid("hand", k, fmt.Sprintf("must be a string, got %s", v))
		}
		if err := out.Set(Finger(k), label); err != nil {
			return err
		}
	}
	*h = out
	return nil
}
