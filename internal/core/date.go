package core

import (
	"time"
)

const secondsPerDay = 24 * 60 * 60

// Date is a calendar date without time of day or zone. Day arithmetic is done
// on UTC midnight, so daylight saving changes never shift a result.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate creates a new Date from year, month, day. Out of range values are
// normalized the way time.Date does (2024-02-30 becomes 2024-03-01).
func NewDate(year, month, day int) Date {
	return DateOf(time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC))
}

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// Today returns the calendar date of now in loc.
func Today(now time.Time, loc *time.Location) Date {
	if loc == nil {
		loc = time.UTC
	}
	return DateOf(now.In(loc))
}

// ParseDate parses a date string in YYYY-MM-DD format.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return DateOf(t), nil
}

func (d Date) utc() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// In returns midnight of d in loc.
func (d Date) In(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// Weekday returns the day of the week of d.
func (d Date) Weekday() time.Weekday {
	return d.utc().Weekday()
}

// AddDays returns d moved by n calendar days.
func (d Date) AddDays(n int) Date {
	return DateOf(d.utc().AddDate(0, 0, n))
}

// AddYears returns d moved by n years; Feb 29 rolls over to Mar 1.
func (d Date) AddYears(n int) Date {
	return DateOf(d.utc().AddDate(n, 0, 0))
}

// DaysSince returns the number of calendar days from o to d. It is negative
// when d is before o.
func (d Date) DaysSince(o Date) int {
	return int((d.utc().Unix() - o.utc().Unix()) / secondsPerDay)
}

// Compare returns -1, 0 or +1 depending on whether d is before, equal to or after o.
func (d Date) Compare(o Date) int {
	return d.utc().Compare(o.utc())
}

func (d Date) Before(o Date) bool { return d.Compare(o) < 0 }
func (d Date) After(o Date) bool  { return d.Compare(o) > 0 }

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool {
	return d == Date{}
}

// Validate rejects the zero date and out-of-range fields.
func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	if d.Month < time.January || d.Month > time.December {
		return ErrInvalidDate
	}
	// Reject dates that time.Date would silently roll over.
	if DateOf(d.utc()) != d {
		return ErrInvalidDate
	}
	return nil
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.utc().Format(time.DateOnly)
}
