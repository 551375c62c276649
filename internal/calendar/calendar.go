// Package calendar provides UTC-day arithmetic for the day-granular cache.
//
// The cache keys everything by "day index": the number of whole UTC days
// since the Unix epoch. Two instants on the same UTC calendar day always map
// to the same index, regardless of the process's local timezone.
package calendar

import "time"

const msPerDay = 24 * 60 * 60 * 1000

// ISODateFormat is the YYYY-MM-DD layout used in feed URLs and payload keys.
const ISODateFormat = "2006-01-02"

// ISOMonthFormat is the YYYY-MM layout used as the aggregation key.
const ISOMonthFormat = "2006-01"

// DayIndex returns the number of whole UTC days since the Unix epoch,
// flooring for instants before 1970.
func DayIndex(t time.Time) int64 {
	ms := t.UnixMilli()
	day := ms / msPerDay
	if ms%msPerDay < 0 {
		day--
	}
	return day
}

// DateForDayIndex returns UTC midnight of the given day index.
// DayIndex(DateForDayIndex(d)) == d for every d.
func DateForDayIndex(day int64) time.Time {
	return time.UnixMilli(day * msPerDay).UTC()
}

// DateOnly truncates t to UTC midnight of its UTC calendar day.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ISODate formats t's UTC calendar day as YYYY-MM-DD.
func ISODate(t time.Time) string {
	return t.UTC().Format(ISODateFormat)
}

// ISOMonth formats t's UTC calendar month as YYYY-MM.
func ISOMonth(t time.Time) string {
	return t.UTC().Format(ISOMonthFormat)
}

// ParseISODate parses a YYYY-MM-DD string into UTC midnight of that day.
func ParseISODate(s string) (time.Time, error) {
	return time.ParseInLocation(ISODateFormat, s, time.UTC)
}

// AddDays shifts t by n whole UTC days.
func AddDays(t time.Time, n int) time.Time {
	return t.UTC().AddDate(0, 0, n)
}

// DaysBetween returns the difference to-from in whole UTC days.
func DaysBetween(from, to time.Time) int {
	return int(DayIndex(to) - DayIndex(from))
}

// LastDayOfMonth returns UTC midnight of the last day of t's UTC month.
func LastDayOfMonth(t time.Time) time.Time {
	y, m, _ := t.UTC().Date()
	return time.Date(y, m+1, 0, 0, 0, 0, 0, time.UTC)
}
