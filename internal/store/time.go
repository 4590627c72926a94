package store

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// timeLayouts are the text forms SQLite's date functions and CURRENT_TIMESTAMP
// produce.
var timeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05.999999999Z07:00",
	time.RFC3339Nano,
}

// Time scans DATETIME columns whether the driver hands back a time.Time, text
// or a unix timestamp. Values are normalised to UTC.
type Time struct {
	time.Time
}

func (t Time) Value() (driver.Value, error) {
	return t.Time, nil
}

func (t *Time) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		t.Time = time.Time{}
	case time.Time:
		t.Time = v.UTC()
	case int64:
		t.Time = time.Unix(v, 0).UTC()
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	default:
		return fmt.Errorf("store: cannot scan %T into Time", value)
	}
	return nil
}

func (t *Time) parse(s string) error {
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("store: unrecognised time %q", s)
}
