package types

import (
	"bytes"
	"encoding/json"
)

// Nullable tracks whether a JSON field was present, and if so whether it was
// an explicit null. Valid=false means the key was absent.
type Nullable[T any] struct {
	Valid bool
	Value *T
}

// Set returns a present, non-null Nullable.
func Set[T any](v T) Nullable[T] {
	return Nullable[T]{Valid: true, Value: &v}
}

// Null returns a present Nullable holding an explicit null.
func Null[T any]() Nullable[T] {
	return Nullable[T]{Valid: true}
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *Nullable[T]) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil
	}

	if bytes.Equal(trimmed, []byte("null")) {
		n.Valid = true
		n.Value = nil
		return nil
	}

	var parsed T
	if err := json.Unmarshal(trimmed, &parsed); err != nil {
		return err
	}
	n.Valid = true
	n.Value = &parsed
	return nil
}

// MarshalJSON renders absent and null values as JSON null.
func (n Nullable[T]) MarshalJSON() ([]byte, error) {
	if n.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*n.Value)
}

// IsNull reports an explicit null.
func (n Nullable[T]) IsNull() bool {
	return n.Valid && n.Value == nil
}

// Clone returns a copy that does not share the underlying value.
func (n Nullable[T]) Clone() Nullable[T] {
	if n.Value == nil {
		return Nullable[T]{Valid: n.Valid}
	}
	copy := *n.Value
	return Nullable[T]{Valid: n.Valid, Value: &copy}
}
