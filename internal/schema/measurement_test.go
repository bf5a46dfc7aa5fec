package schema

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestNewMeasurement(t *testing.T) {
	right := Hand{Thumb: " 5 ", Index: "7"}
	m, err := NewMeasurement("c-1", "A", right, Hand{}, " snug fit ", time.Now())
	if err != nil {
		t.Fatalf("NewMeasurement() failed: %v", err)
	}
	if m.ID == "" {
		t.Error("NewMeasurement() did not assign an id")
	}
	if m.Right.Thumb != "5" {
		t.Errorf("Right.Thumb = %q, want %q", m.Right.Thumb, "5")
	}
	if m.Notes != "snug fit" {
		t.Errorf("Notes = %q, want %q", m.Notes, "snug fit")
	}

	if _, err := NewMeasurement("", "A", Hand{}, Hand{}, "", time.Now()); !errors.Is(err, ErrValidation) {
		t.Errorf("NewMeasurement() without client error = %v, want ErrValidation", err)
	}
	if _, err := NewMeasurement("c-1", "", Hand{}, Hand{}, "", time.Now()); !errors.Is(err, ErrValidation) {
		t.Errorf("NewMeasurement() without style error = %v, want ErrValidation", err)
	}
}

func TestMeasurement_JSONAlwaysHasFiveFingers(t *testing.T) {
	m := Measurement{ID: "m-1", ClientID: "c-1", StyleID: "A", Right: Hand{Thumb: "5"}, UpdatedAt: Now()}

	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var decoded map[string]json.RawMessage
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	for _, side := range []string{"right", "left"} {
		var hand map[string]string
		if err := json.Unmarshal(decoded[side], &hand); err != nil {
			t.Fatalf("Unmarshal %s failed: %v", side, err)
		}
		if len(hand) != 5 {
			t.Errorf("%s has %d keys, want 5: %v", side, len(hand), hand)
		}
		for _, f := range Fingers {
			if _, ok := hand[string(f)]; !ok {
				t.Errorf("%s is missing %s", side, f)
			}
		}
	}
}

func TestHand_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Hand
		wantErr bool
	}{
		{
			name:  "all fingers",
			input: `{"thumb":"1","index":"2","middle":"3","ring":"4","pinky":"5"}`,
			want:  Hand{Thumb: "1", Index: "2", Middle: "3", Ring: "4", Pinky: "5"},
		},
		{
			name:  "missing fingers are empty",
			input: `{"thumb":"00"}`,
			want:  Hand{Thumb: "00"},
		},
		{
			name:  "null",
			input: `null`,
			want:  Hand{},
		},
		{
			name:    "unknown finger",
			input:   `{"toe":"1"}`,
			wantErr: true,
		},
		{
			name:    "number label",
			input:   `{"thumb":5}`,
			wantErr: true,
		},
		{
			name:    "not an object",
			input:   `["thumb"]`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var h Hand
			err := json.Unmarshal([]byte(tt.input), &h)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Unmarshal() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Errorf("Unmarshal() error %v does not wrap ErrValidation", err)
				}
				return
			}
			if h != tt.want {
				t.Errorf("Unmarshal() = %+v, want %+v", h, tt.want)
			}
		})
	}
}

func TestHandFromMap(t *testing.T) {
	h, err := HandFromMap(map[string]string{"ring": "8", "pinky": "9"})
	if err != nil {
		t.Fatalf("HandFromMap() failed: %v", err)
	}
	if h.Get(Ring) != "8" || h.Get(Pinky) != "9" || h.Get(Thumb) != "" {
		t.Errorf("HandFromMap() = %+v", h)
	}

	if _, err := HandFromMap(map[string]string{"wrist": "1"}); !errors.Is(err, ErrValidation) {
		t.Errorf("HandFromMap() with unknown key error = %v, want ErrValidation", err)
	}
}
