// human readable and writable stdlib types
// which can be used inside definitions file
package model

import (
	"errors"
	"strconv"
	"time"
)

// Timestamp is a time.Time serialized as a RFC3339 string in both YAML and JSON.
type Timestamp struct {
	time.Time
}

func NewTimestamp(t time.Time) *Timestamp {
	return &Timestamp{Time: t.Truncate(time.Second)}
}

func (t *Timestamp) UnmarshalText(text []byte) error {
	if t == nil {
		return errors.New("can't unmarshal to nil")
	}
	if len(text) == 0 {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := time.Parse(time.RFC3339, string(text))
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

func (t Timestamp) MarshalText() ([]byte, error) {
	if t.IsZero() {
		return []byte{}, nil
	}
	return []byte(t.Format(time.RFC3339)), nil
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	s, err := strconv.Unquote(string(b))
	if err != nil {
		return err
	}
	return t.UnmarshalText([]byte(s))
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	b, err := t.MarshalText()
	if err != nil {
		return nil, err
	}
	return []byte(strconv.Quote(string(b))), nil
}
