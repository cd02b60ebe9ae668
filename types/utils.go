package types

import (
	"encoding/json"
	"reflect"

	"github.com/pkg/errors"
)

// MarshalJSON is the shared json.Marshal call every nullable wrapper in this
// package funnels its MarshalJSON method through, so error wrapping and any
// future encoding tweaks live in one place.
func MarshalJSON(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "can't marshal JSON")
	}
	return b, nil
}

// UnmarshalJSON is the shared json.Unmarshal call every nullable wrapper's
// UnmarshalJSON method funnels through.
func UnmarshalJSON(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Wrap(err, "can't unmarshal JSON")
	}
	return nil
}

// CantParseInt64 wraps a strconv.ParseInt failure with the offending input.
func CantParseInt64(err error, s string) error {
	return errors.Wrapf(err, "can't parse %q as int64", s)
}

// CantParseUint64 wraps a strconv.ParseUint failure with the offending input.
func CantParseUint64(err error, s string) error {
	return errors.Wrapf(err, "can't parse %q as uint64", s)
}

// CantParseFloat64 wraps a strconv.ParseFloat failure with the offending input.
func CantParseFloat64(err error, s string) error {
	return errors.Wrapf(err, "can't parse %q as float64", s)
}

// Zero returns the zero value of T, useful for generic functions that must
// return "nothing" of type T alongside an error.
func Zero[T any]() T {
	var zero T
	return zero
}

// Name returns v's dynamic type name without its package qualifier, e.g.
// "int", "FileMode", or "<nil>" for an untyped nil. Pointers are
// dereferenced to their element type's name.
func Name(v any) string {
	if v == nil {
		return "<nil>"
	}

	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}
