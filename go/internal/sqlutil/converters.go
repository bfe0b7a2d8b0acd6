package sqlutil

import "encoding/json"

// Helper functions for converting between Go values and nullable columns

// ToNullJSON converts an optional JSON payload to a jsonb argument; empty becomes NULL.
func ToNullJSON(raw json.RawMessage) []byte {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}

// FromNullJSON converts a scanned jsonb column back to a payload; NULL becomes nil.
func FromNullJSON(b []byte) json.RawMessage {
	if len(b) == 0 {
		return nil
	}
	out := make(json.RawMessage, len(b))
	copy(out, b)
	return out
}
