package types

import (
	"encoding"
	"encoding/json"
	"strconv"
	"time"
)

// UnixMilli adds JSON and text support to time.Time, (un)marshalling it as a
// Unix timestamp in milliseconds rather than RFC 3339, since that's the
// wire format schema migrations and external APIs in this domain use for
// audit timestamps.
type UnixMilli time.Time

// MakeUnixMilli constructs a new UnixMilli from t.
func MakeUnixMilli(t time.Time) UnixMilli { return UnixMilli(t) }

// Time returns u as a time.Time.
func (u UnixMilli) Time() time.Time { return time.Time(u) }

func (u UnixMilli) millis() int64 {
	t := u.Time()
	return t.Unix()*1000 + int64(t.Nanosecond())/1_000_000
}

// MarshalJSON implements the json.Marshaler interface.
// Supports JSON null for the zero value.
func (u UnixMilli) MarshalJSON() ([]byte, error) {
	if u.Time().IsZero() {
		return []byte("null"), nil
	}
	return MarshalJSON(u.millis())
}

// UnmarshalJSON implements the json.Unmarshaler interface.
// Supports JSON null.
func (u *UnixMilli) UnmarshalJSON(data []byte) error {
	if string(data) == "null" || len(data) == 0 {
		return nil
	}

	var millis int64
	if err := UnmarshalJSON(data, &millis); err != nil {
		return err
	}

	*u = millisToUnixMilli(millis)
	return nil
}

// MarshalText implements the encoding.TextMarshaler interface. The zero
// value renders as the empty string rather than "null".
func (u UnixMilli) MarshalText() ([]byte, error) {
	if u.Time().IsZero() {
		return []byte(""), nil
	}
	return []byte(strconv.FormatInt(u.millis(), 10)), nil
}

// UnmarshalText implements the encoding.TextUnmarshaler interface.
func (u *UnixMilli) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*u = UnixMilli{}
		return nil
	}

	millis, err := strconv.ParseInt(string(text), 10, 64)
	if err != nil {
		return CantParseInt64(err, string(text))
	}

	*u = millisToUnixMilli(millis)
	return nil
}

func millisToUnixMilli(millis int64) UnixMilli {
	return UnixMilli(time.Unix(millis/1000, (millis%1000)*1_000_000))
}

// Assert interface compliance.
var (
	_ json.Marshaler           = UnixMilli{}
	_ json.Unmarshaler         = (*UnixMilli)(nil)
	_ encoding.TextMarshaler   = UnixMilli{}
	_ encoding.TextUnmarshaler = (*UnixMilli)(nil)
)
