// Package schema defines the typed records kept by the nailsizes store.
//
// # Records
//
// Three record kinds make up the whole data set:
//
//   - Style: a catalog entry (size range + reference image), seeded once
//   - Client: a person, identified by a free-text name or id
//   - Measurement: per-finger size labels for one client under one style
//
// Every record serializes to the same camelCase JSON used by backup files:
//
//	{
//	  "id": "0b0d6c1e-...",
//	  "clientId": "5e1f...",
//	  "styleId": "A",
//	  "right": {"thumb": "5", "index": "7", "middle": "6", "ring": "8", "pinky": "9"},
//	  "left":  {"thumb": "", "index": "", "middle": "", "ring": "", "pinky": ""},
//	  "notes": "",
//	  "updatedAt": "2026-01-10T07:36:29.000Z"
//	}
//
// # Validation
//
// Constructors (NewClient, NewMeasurement) trim user input, assign ids and
// timestamps and validate. Validate methods are also run by the store on
// every insert, so records decoded from a backup go through the same checks.
// Failures wrap ErrValidation:
//
//	if errors.Is(err, schema.ErrValidation) {
//	    // show the message, nothing was written
//	}
//
// # Timestamps
//
// Timestamps are ISO-8601 strings. Now formats with fixed millisecond
// precision in UTC, which keeps lexicographic order equal to chronological
// order for the "most recently updated" listing.
package schema
