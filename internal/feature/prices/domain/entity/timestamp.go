package entity

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// TimestampKind identifies which shape a stored timestamp was written in.
type TimestampKind int

const (
	TimestampUnset TimestampKind = iota
	TimestampTime
	TimestampString
	TimestampEpochSeconds
	TimestampStoreNative
)

// RawTimestamp is every shape a lastUpdated value may take in a stored document.
// Only the fields matching Kind are meaningful.
type RawTimestamp struct {
	Kind    TimestampKind
	Time    time.Time // TimestampTime
	Text    string    // TimestampString (RFC 3339)
	Epoch   float64   // TimestampEpochSeconds
	Seconds int64     // TimestampStoreNative
	Nanos   int64     // TimestampStoreNative
}

// ErrInvalidTimestamp is returned when a stored timestamp cannot be interpreted.
var ErrInvalidTimestamp = errors.New("invalid timestamp")

// NormalizeTimestamp converts any supported timestamp shape into a time.Time.
func NormalizeTimestamp(r RawTimestamp) (time.Time, error) {
	switch r.Kind {
	case TimestampUnset:
		return time.Time{}, nil
	case TimestampTime:
		return r.Time, nil
	case TimestampString:
		t, err := time.Parse(time.RFC3339Nano, r.Text)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, r.Text)
		}
		return t, nil
	case TimestampEpochSeconds:
		sec := int64(r.Epoch)
		nsec := int64((r.Epoch - float64(sec)) * float64(time.Second))
		return time.Unix(sec, nsec).UTC(), nil
	case TimestampStoreNative:
		return time.Unix(r.Seconds, r.Nanos).UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("%w: unknown kind %d", ErrInvalidTimestamp, r.Kind)
	}
}

// Timestamp is a normalized instant. It is always written as an RFC 3339 string
// but reads any RawTimestamp shape.
type Timestamp struct {
	time.Time
}

// NewTimestamp wraps t.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t}
}

// MarshalJSON writes the timestamp as an RFC 3339 string.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

// UnmarshalJSON accepts a string, epoch seconds, or a {seconds, nanoseconds} object.
func (t *Timestamp) UnmarshalJSON(b []byte) error {
	raw, err := decodeRawTimestamp(b)
	if err != nil {
		return err
	}
	tm, err := NormalizeTimestamp(raw)
	if err != nil {
		return err
	}
	t.Time = tm
	return nil
}

// storeNative is the object form used by document stores ({seconds, nanoseconds},
// optionally underscore-prefixed when exported).
type storeNative struct {
	Seconds      *int64 `json:"seconds"`
	Nanoseconds  int64  `json:"nanoseconds"`
	USeconds     *int64 `json:"_seconds"`
	UNanoseconds int64  `json:"_nanoseconds"`
}

func decodeRawTimestamp(b []byte) (RawTimestamp, error) {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		return RawTimestamp{Kind: TimestampUnset}, nil
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return RawTimestamp{}, fmt.Errorf("%w: %v", ErrInvalidTimestamp, err)
		}
		return RawTimestamp{Kind: TimestampString, Text: s}, nil
	case b[0] == '{':
		var n storeNative
		if err := json.Unmarshal(b, &n); err != nil {
			return RawTimestamp{}, fmt.Errorf("%w: %v", ErrInvalidTimestamp, err)
		}
		if n.Seconds != nil {
			return RawTimestamp{Kind: TimestampStoreNative, Seconds: *n.Seconds, Nanos: n.Nanoseconds}, nil
		}
		if n.USeconds != nil {
			return RawTimestamp{Kind: TimestampStoreNative, Seconds: *n.USeconds, Nanos: n.UNanoseconds}, nil
		}
		return RawTimestamp{}, fmt.Errorf("%w: object without seconds", ErrInvalidTimestamp)
	default:
		var f float64
		if err := json.Unmarshal(b, &f); err != nil {
			return RawTimestamp{}, fmt.Errorf("%w: %v", ErrInvalidTimestamp, err)
		}
		return RawTimestamp{Kind: TimestampEpochSeconds, Epoch: f}, nil
	}
}
