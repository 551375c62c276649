// Package aggregate folds cached per-day close-approach records into
// per-calendar-month extrema, backfilling the cache over spans wider than
// the upstream feed's per-request limit.
package aggregate

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/trantila/spache/internal/cache"
	"github.com/trantila/spache/internal/calendar"
	"github.com/trantila/spache/internal/logging"
	"github.com/trantila/spache/internal/neoapi"
	"github.com/trantila/spache/internal/store"
)

// Service answers monthly-largest queries over arbitrary date spans.
type Service struct {
	api   cache.FeedClient
	store *store.Store

	writes sync.WaitGroup
}

// New creates an aggregation service sharing the range cache's day store.
func New(api cache.FeedClient, st *store.Store) *Service {
	return &Service{api: api, store: st}
}

// MonthlyLargest returns, per ISO month (YYYY-MM), the largest close-approach
// object observed in that month within [from, to], end-inclusive.
//
// On a cache miss the span is split into upstream-sized windows which are
// fetched concurrently; the merged result is written to the store behind the
// response. There is no cap on the span, so a very wide range means that many
// concurrent upstream fetches.
//
// "Largest" compares the maximum estimated diameter in kilometers; a strictly
// greater value replaces the incumbent, so ties keep the object from the
// earliest day.
func (s *Service) MonthlyLargest(ctx context.Context, from, to time.Time) (map[string]neoapi.Object, error) {
	from, to = calendar.DateOnly(from), calendar.DateOnly(to)

	records, hit, err := s.store.QueryRange(ctx, from, to)
	if err != nil {
		return nil, err
	}

	if !hit {
		logging.Info("Aggregation range not fully cached",
			"start", calendar.ISODate(from), "end", calendar.ISODate(to))

		records, err = s.backfill(ctx, from, to)
		if err != nil {
			return nil, err
		}
	}

	return largestByMonth(records), nil
}

// backfill fetches every window of [from, to] concurrently, merges the
// results and fires a write-behind. The merged records are used regardless
// of the write's outcome.
func (s *Service) backfill(ctx context.Context, from, to time.Time) (store.DayRecords, error) {
	windows := calendar.Split(from, to)
	fetched := make([]store.DayRecords, len(windows))

	g, gctx := errgroup.WithContext(ctx)
	for i, w := range windows {
		g.Go(func() error {
			feed, err := s.api.FetchWindow(gctx, w.Start, w.End)
			if err != nil {
				return err
			}
			fetched[i] = store.RecordsForWindow(w, feed.NearEarthObjects)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make(store.DayRecords)
	for _, windowRecords := range fetched {
		merged.Merge(windowRecords)
	}

	// Fire-and-forget the caching.
	s.writes.Add(1)
	go func() {
		defer s.writes.Done()
		if err := s.store.Update(context.Background(), merged); err != nil {
			logging.Error("Aggregation write-behind failed",
				"start", calendar.ISODate(from), "end", calendar.ISODate(to), "error", err)
			return
		}
		logging.Info("Stored aggregation range",
			"start", calendar.ISODate(from), "end", calendar.ISODate(to), "days", len(merged))
	}()

	return merged, nil
}

// WaitWrites blocks until in-flight write-behind tasks finish. For shutdown
// and tests only.
func (s *Service) WaitWrites() {
	s.writes.Wait()
}

// largestByMonth scans days in ascending order and keeps, per ISO month, the
// object with the greatest maximum estimated diameter in kilometers.
func largestByMonth(records store.DayRecords) map[string]neoapi.Object {
	days := make([]int64, 0, len(records))
	for day := range records {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })

	largest := make(map[string]neoapi.Object)
	for _, day := range days {
		month := calendar.ISOMonth(calendar.DateForDayIndex(day))
		for _, obj := range records[day] {
			incumbent, ok := largest[month]
			if !ok || diameterKm(obj) > diameterKm(incumbent) {
				largest[month] = obj
			}
		}
	}
	return largest
}

func diameterKm(obj neoapi.Object) float64 {
	return obj.EstimatedDiameter.Kilometers.EstimatedDiameterMax
}
