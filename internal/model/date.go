package model

import (
	"fmt"
	"time"
)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// Date is a calendar date with no time-of-day component. The zero value is
// "no date". Dates are normalized to UTC midnight, so two Dates naming the
// same day compare equal with ==.
type Date struct {
	t time.Time
}

// NewDate builds a Date from calendar components.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates an instant to the calendar date in its own location.
func DateOf(t time.Time) Date {
	if t.IsZero() {
		return Date{}
	}
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate parses a date in the YYYY-MM-DD wire format.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("parsing date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// MustDate parses a date and panics on failure. For tests and constants.
func MustDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// IsZero reports whether the date is unset.
func (d Date) IsZero() bool { return d.t.IsZero() }

// Time returns the date as a UTC midnight instant.
func (d Date) Time() time.Time { return d.t }

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.t.Format(DateLayout)
}

// Year returns the calendar year.
func (d Date) Year() int { return d.t.Year() }

// Month returns the calendar month.
func (d Date) Month() time.Month { return d.t.Month() }

// Day returns the day of the month.
func (d Date) Day() int { return d.t.Day() }

// Before reports whether d is strictly earlier than other.
func (d Date) Before(other Date) bool { return d.t.Before(other.t) }

// After reports whether d is strictly later than other.
func (d Date) After(other Date) bool { return d.t.After(other.t) }

// AddDays returns the date n days later (earlier when n is negative).
func (d Date) AddDays(n int) Date {
	return Date{t: d.t.AddDate(0, 0, n)}
}

// AddMonths returns the date n months later. Day-of-month overflow rolls
// into the following month, so Jan 31 plus one month is Mar 3.
func (d Date) AddMonths(n int) Date {
	return Date{t: d.t.AddDate(0, n, 0)}
}

// AddYears returns the date n years later.
func (d Date) AddYears(n int) Date {
	return Date{t: d.t.AddDate(n, 0, 0)}
}

// DaysSince returns the whole days elapsed from other to d, negative when
// d is earlier.
func (d Date) DaysSince(other Date) int {
	return int(d.t.Sub(other.t) / (24 * time.Hour))
}

// MonthsSince returns the whole calendar months from other to d, ignoring
// the day of month.
func (d Date) MonthsSince(other Date) int {
	return (d.Year()-other.Year())*12 + int(d.Month()) - int(other.Month())
}

// MinDate returns the earlier of two dates.
func MinDate(a, b Date) Date {
	if b.Before(a) {
		return b
	}
	return a
}

// MaxDate returns the later of two dates.
func MaxDate(a, b Date) Date {
	if b.After(a) {
		return b
	}
	return a
}

// MarshalJSON encodes the date as a YYYY-MM-DD string, or null when unset.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON accepts a YYYY-MM-DD string, an ISO timestamp, or null.
// Malformed input degrades to the zero date rather than failing the whole
// document.
func (d *Date) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" || s == `""` {
		*d = Date{}
		return nil
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	if len(s) > len(DateLayout) {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			*d = DateOf(t)
			return nil
		}
		s = s[:len(DateLayout)]
	}
	parsed, err := ParseDate(s)
	if err != nil {
		*d = Date{}
		return nil
	}
	*d = parsed
	return nil
}
