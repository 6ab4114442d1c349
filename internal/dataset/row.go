package dataset

import (
	"errors"
	"fmt"

	json "github.com/goccy/go-json"
)

// EncodeRow serializes the given columns of r as a canonical JSON object.
func EncodeRow(columns []string, r *Record) ([]byte, error) {
	obj := make(map[string]any, len(columns))
	for _, name := range columns {
		col, ok := Lookup(name)
		if !ok {
			return nil, fmt.Errorf("unknown column %q", name)
		}
		obj[name] = col.Value(r)
	}
	return MarshalCanonical(obj)
}

// DecodeRow parses a JSON object into a new record, filling only the given
// columns. Keys outside columns are ignored and missing keys stay null.
//
// Unparseable timestamps leave their slot null; the returned count reports
// how many there were. Any other malformed value is an error.
func DecodeRow(columns []string, payload []byte) (*Record, int, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(payload, &obj); err != nil {
		return nil, 0, fmt.Errorf("decode row: %w", err)
	}
	r := &Record{}
	badTimes := 0
	for _, name := range columns {
		raw, ok := obj[name]
		if !ok {
			continue
		}
		col, ok := Lookup(name)
		if !ok {
			return nil, 0, fmt.Errorf("unknown column %q", name)
		}
		if err := col.Decode(r, raw); err != nil {
			if errors.Is(err, ErrUnparseableTime) {
				badTimes++
				continue
			}
			return nil, 0, err
		}
	}
	return r, badTimes, nil
}
