package dates

import (
	"fmt"
	"strings"
	"time"
)

// WireLayout is the layout of every timestamp this client sends.
const WireLayout = "2006-01-02T15:04:05Z"

// DayLayout is used where the backend expects a bare calendar date.
const DayLayout = "2006-01-02"

// layouts lists the accepted backend formats. Order matters: first match wins.
var layouts = []string{
	"2006-01-02 15:04:05.000000-07:00",
	"2006-01-02 15:04:05.000000",
	"2006-01-02 15:04:05-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05.000000",
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	DayLayout,
	"2006-01-02T15:04:05.999999999Z07:00",
	time.RFC3339,
}

// DateParseError reports a timestamp that matched none of the known formats.
type DateParseError struct {
	Value string
}

func (e *DateParseError) Error() string {
	return fmt.Sprintf("cannot parse date string %q", e.Value)
}

// Parse normalizes a backend timestamp, reading offset-less formats as local time.
func Parse(s string) (time.Time, error) {
	return ParseInLocation(s, time.Local)
}

// ParseInLocation is like Parse but interprets offset-less formats in loc.
func ParseInLocation(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &DateParseError{Value: s}
}

// Format renders t as ISO-8601 in UTC with a Z designator.
func Format(t time.Time) string {
	return t.UTC().Format(WireLayout)
}

// FormatDay renders the calendar date of t in its own location.
func FormatDay(t time.Time) string {
	return t.Format(DayLayout)
}

// Time is a time.Time that decodes any backend format and encodes as WireLayout.
type Time struct {
	time.Time
}

// New wraps t, returning nil for the zero time.
func New(t time.Time) *Time {
	if t.IsZero() {
		return nil
	}
	return &Time{Time: t}
}

// UnmarshalJSON implements the json.Unmarshaler interface for Time.
func (t *Time) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" {
		t.Time = time.Time{}
		return nil
	}
	s = strings.Trim(s, `"`)
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

// MarshalJSON implements the json.Marshaler interface for Time.
func (t Time) MarshalJSON() ([]byte, error) {
	if t.Time.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + Format(t.Time) + `"`), nil
}

// Value returns the wrapped time, or the zero time for a nil pointer.
func (t *Time) Value() time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.Time
}

// IsSet reports whether t is non-nil and non-zero.
func (t *Time) IsSet() bool {
	return t != nil && !t.Time.IsZero()
}
