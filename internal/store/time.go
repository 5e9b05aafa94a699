package store

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// timeLayout is fixed width so stored values compare correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Time is a UTC timestamp persisted as text. The zero value is NULL.
type Time struct {
	time.Time
}

// At wraps t.
func At(t time.Time) Time {
	return Time{Time: t}
}

// TimeOf wraps an optional time; nil maps to the zero value.
func TimeOf(t *time.Time) Time {
	if t == nil {
		return Time{}
	}
	return Time{Time: *t}
}

// Ptr returns nil for the zero value and a copy of the time otherwise.
func (t Time) Ptr() *time.Time {
	if t.IsZero() {
		return nil
	}
	v := t.Time
	return &v
}

func (t Time) Value() (driver.Value, error) {
	if t.IsZero() {
		return nil, nil
	}
	return t.UTC().Format(timeLayout), nil
}

func (t *Time) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		t.Time = time.Time{}
		return nil
	case time.Time:
		t.Time = v.UTC()
		return nil
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	default:
		return fmt.Errorf("store.Time: cannot scan %T", src)
	}
}

func (t *Time) parse(s string) error {
	parsed, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return fmt.Errorf("store.Time: %w", err)
	}
	t.Time = parsed.UTC()
	return nil
}
