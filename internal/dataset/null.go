package dataset

import (
	"bytes"

	json "github.com/goccy/go-json"
)

// Null is an optional value. The zero value is null.
type Null[T any] struct {
	V     T
	Valid bool
}

// Some returns a non-null value.
func Some[T any](v T) Null[T] {
	return Null[T]{V: v, Valid: true}
}

// Get returns the value and whether it is present.
func (n Null[T]) Get() (T, bool) {
	return n.V, n.Valid
}

// Or returns the value, or def when null.
func (n Null[T]) Or(def T) T {
	if !n.Valid {
		return def
	}
	return n.V
}

// MarshalJSON encodes null as JSON null.
func (n Null[T]) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.V)
}

// UnmarshalJSON decodes JSON null as an invalid value.
func (n *Null[T]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		var zero T
		n.V, n.Valid = zero, false
		return nil
	}
	if err := json.Unmarshal(data, &n.V); err != nil {
		return err
	}
	n.Valid = true
	return nil
}
