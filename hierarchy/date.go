package hierarchy

import (
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// DATE - Day-granularity calendar date (the tree plans in whole days)
// =============================================================================

// Date is a calendar date in UTC with day granularity. All scheduling fields
// on hierarchy nodes (start, end, actuals) use Date, never wall-clock time.
type Date struct {
	t time.Time
}

const dateLayout = "2006-01-02"

func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses "YYYY-MM-DD".
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return Date{t: t}, nil
}

// Today returns the current date in UTC.
func Today() Date {
	now := time.Now().UTC()
	return NewDate(now.Year(), now.Month(), now.Day())
}

// Comparison
func (d Date) Before(other Date) bool        { return d.t.Before(other.t) }
func (d Date) After(other Date) bool         { return d.t.After(other.t) }
func (d Date) Equal(other Date) bool         { return d.t.Equal(other.t) }
func (d Date) BeforeOrEqual(other Date) bool { return !d.t.After(other.t) }
func (d Date) AfterOrEqual(other Date) bool  { return !d.t.Before(other.t) }

// Arithmetic
func (d Date) AddDays(n int) Date { return Date{t: d.t.AddDate(0, 0, n)} }

// DaysBetween returns the whole-day distance from d to other.
func DaysBetween(d, other Date) int {
	return int(other.t.Sub(d.t).Hours() / 24)
}

func (d Date) IsZero() bool { return d.t.IsZero() }

func (d Date) String() string { return d.t.Format(dateLayout) }

// MarshalJSON encodes the date as "YYYY-MM-DD".
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.t.Format(dateLayout) + `"`), nil
}

// UnmarshalJSON accepts "YYYY-MM-DD" or null.
func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "null" || s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// =============================================================================
// BOUNDS - A start/end window used by the date validators
// =============================================================================

// Bounds is an inclusive date window, typically a parent node's range.
type Bounds struct {
	Start Date
	End   Date
}
