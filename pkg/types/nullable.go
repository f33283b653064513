package types

import (
	"bytes"
	"encoding/json"
)

// Nullable tracks whether a JSON field was present, so that an explicit null
// (clear the value) can be told apart from an omitted field (leave it alone).
type Nullable[T any] struct {
	Valid bool
	Value *T
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

// Set returns a present, non-null value.
func Set[T any](v T) Nullable[T] {
	return Nullable[T]{Valid: true, Value: &v}
}

// Null returns a present, explicit null.
func Null[T any]() Nullable[T] {
	return Nullable[T]{Valid: true}
}

// Clone returns a copy that does not share the underlying value.
func (n Nullable[T]) Clone() Nullable[T] {
	if n.Value == nil {
		return Nullable[T]{Valid: n.Valid}
	}
	copy := *n.Value
	return Nullable[T]{Valid: n.Valid, Value: &copy}
}

// ValueOrNil unwraps the value for struct validation; an absent or null field
// yields nil so that omitempty rules skip it.
func (n Nullable[T]) ValueOrNil() any {
	if n.Value == nil {
		return nil
	}
	return *n.Value
}
