package timeutil

import "time"

// ISODate is the calendar-date layout used in rule parameters and promotion windows
const ISODate = "2006-01-02"

// Now returns the current time in UTC.
// Services take it as their clock so timestamps are stored in one zone.
func Now() time.Time {
	return time.Now().UTC()
}

// CalendarDate returns midnight UTC of t's own calendar date.
// The date is read in t's location without converting it first.
func CalendarDate(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// SameDate reports whether a and b fall on the same calendar date, each read in its own location
func SameDate(a, b time.Time) bool {
	return CalendarDate(a).Equal(CalendarDate(b))
}

// ParseISODate parses a YYYY-MM-DD string as midnight UTC
func ParseISODate(value string) (time.Time, error) {
	return time.Parse(ISODate, value)
}
