// Package patch provides a tri-state field for partial-update request
// bodies: absent, explicitly null, or set to a value.
package patch

import (
	"bytes"
	"encoding/json"
)

// Field is left untouched by encoding/json when the key is absent, so Set
// stays false. A JSON null sets Set but leaves Valid false.
type Field[T any] struct {
	Set   bool
	Valid bool
	Value T
}

// Value builds a field holding v.
func Value[T any](v T) Field[T] {
	return Field[T]{Set: true, Valid: true, Value: v}
}

// Null builds a field that was explicitly cleared.
func Null[T any]() Field[T] {
	return Field[T]{Set: true}
}

func (f *Field[T]) UnmarshalJSON(data []byte) error {
	f.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		f.Valid = false
		var zero T
		f.Value = zero
		return nil
	}
	if err := json.Unmarshal(data, &f.Value); err != nil {
		return err
	}
	f.Valid = true
	return nil
}

func (f Field[T]) MarshalJSON() ([]byte, error) {
	if !f.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(f.Value)
}

// Apply writes the field into dst when it was supplied. A null clears dst.
func (f Field[T]) Apply(dst **T) {
	if !f.Set {
		return
	}
	if !f.Valid {
		*dst = nil
		return
	}
	v := f.Value
	*dst = &v
}

// ApplyValue writes a supplied non-null value into dst. Null is ignored,
// for columns that cannot be cleared.
func (f Field[T]) ApplyValue(dst *T) {
	if f.Set && f.Valid {
		*dst = f.Value
	}
}

// Ptr returns the supplied value, or nil when absent or null.
func (f Field[T]) Ptr() *T {
	if !f.Set || !f.Valid {
		return nil
	}
	v := f.Value
	return &v
}
