package store

import (
	"time"

	"github.com/trantila/spache/internal/calendar"
	"github.com/trantila/spache/internal/neoapi"
)

// RecordsForWindow converts a feed payload's objects-by-ISO-date map into
// day-indexed records covering every day of the window. Days the payload
// says nothing about become empty records, so a quiet day is cached as
// "confirmed empty" rather than silently skipped.
func RecordsForWindow(w calendar.Window, objectsByDate map[string][]neoapi.Object) DayRecords {
	records := make(DayRecords, w.Span())
	w.Days(func(day time.Time) {
		objects := objectsByDate[calendar.ISODate(day)]
		if objects == nil {
			objects = []neoapi.Object{}
		}
		records[calendar.DayIndex(day)] = objects
	})
	return records
}

// Merge folds other into records, overwriting any shared days.
func (r DayRecords) Merge(other DayRecords) {
	for day, objects := range other {
		r[day] = objects
	}
}
