package calendar

import "time"

// Window is an inclusive [Start, End] span of UTC calendar days.
// Both bounds are UTC midnights.
type Window struct {
	Start time.Time
	End   time.Time
}

// Span returns the number of calendar days the window covers, inclusive.
func (w Window) Span() int {
	return DaysBetween(w.Start, w.End) + 1
}

// Days calls fn for every UTC midnight in the window, ascending.
func (w Window) Days(fn func(day time.Time)) {
	for d := DateOnly(w.Start); !d.After(w.End); d = AddDays(d, 1) {
		fn(d)
	}
}

// Split partitions [from, to] into consecutive windows of at most seven
// whole-day steps each, so every window fits the upstream feed's eight-day
// request limit. The windows cover every day in the span exactly once.
func Split(from, to time.Time) []Window {
	from, to = DateOnly(from), DateOnly(to)

	var windows []Window
	for cursor := from; !cursor.After(to); cursor = AddDays(cursor, 7) {
		end := AddDays(cursor, 6)
		if end.After(to) {
			end = to
		}
		windows = append(windows, Window{Start: cursor, End: end})
	}
	return windows
}
