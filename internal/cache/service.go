// Package cache serves date-range close-approach queries from the day store,
// falling back to the upstream feed and writing fetched days behind the
// response.
package cache

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/trantila/spache/internal/calendar"
	"github.com/trantila/spache/internal/logging"
	"github.com/trantila/spache/internal/neoapi"
	"github.com/trantila/spache/internal/store"
)

// FeedClient fetches one feed window from upstream.
// *neoapi.Client implements it; tests inject fakes.
type FeedClient interface {
	FetchWindow(ctx context.Context, from, to time.Time) (*neoapi.FeedResult, error)
}

// Service is the range cache: the externally reachable entry point for feed
// queries.
type Service struct {
	origin *url.URL
	api    FeedClient
	store  *store.Store

	writes sync.WaitGroup
}

// New creates a range cache service. origin is this service's own external
// origin (scheme and host), used when rewriting feed links.
func New(origin *url.URL, api FeedClient, st *store.Store) *Service {
	return &Service{origin: origin, api: api, store: st}
}

// QueryByDateRange returns the feed result for [from, to], end-inclusive.
//
// If every day of the range is cached, the result is assembled from the
// store without touching upstream. Otherwise the whole window is fetched
// from the feed, the response is returned immediately, and the fetched days
// are written to the store behind the response: the write is never awaited,
// and its failure is logged but not surfaced.
//
// The caller keeps the span within the upstream's eight-day limit; wider
// spans fail FetchWindow's validation on a miss.
func (s *Service) QueryByDateRange(ctx context.Context, from, to time.Time) (*neoapi.FeedResult, error) {
	from, to = calendar.DateOnly(from), calendar.DateOnly(to)
	window := calendar.Window{Start: from, End: to}

	records, hit, err := s.store.QueryRange(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("cache read for %s..%s: %w", calendar.ISODate(from), calendar.ISODate(to), err)
	}

	if hit {
		logging.Debug("Cache hit", "start", calendar.ISODate(from), "end", calendar.ISODate(to))
		return s.buildFeedResult(window, records), nil
	}

	feed, err := s.api.FetchWindow(ctx, from, to)
	if err != nil {
		return nil, err
	}

	// Fire-and-forget the caching; the response does not wait for it.
	s.writes.Add(1)
	go func() {
		defer s.writes.Done()
		s.writeBehind(window, feed.NearEarthObjects)
	}()

	// Point the navigation links back here instead of at the upstream API.
	// All links inside the objects themselves still point upstream.
	feed.Links.Next = s.rewriteLink(feed.Links.Next)
	feed.Links.Self = s.rewriteLink(feed.Links.Self)
	feed.Links.Prev = s.rewriteLink(feed.Links.Prev)

	return feed, nil
}

// writeBehind stores a fetched window. Detached from the request: it runs on
// a background context so a client disconnect cannot cancel the cache fill.
func (s *Service) writeBehind(window calendar.Window, objectsByDate map[string][]neoapi.Object) {
	records := store.RecordsForWindow(window, objectsByDate)
	if err := s.store.Update(context.Background(), records); err != nil {
		logging.Error("Cache write-behind failed",
			"start", calendar.ISODate(window.Start),
			"end", calendar.ISODate(window.End),
			"error", err)
		return
	}
	logging.Debug("Stored feed window",
		"start", calendar.ISODate(window.Start),
		"end", calendar.ISODate(window.End),
		"days", len(records))
}

// WaitWrites blocks until all in-flight write-behind tasks finish. Callers
// of QueryByDateRange never need this; it exists for shutdown and tests.
func (s *Service) WaitWrites() {
	s.writes.Wait()
}

// buildFeedResult assembles a feed-shaped result from cached day records.
// The next and prev links are the same-length window shifted by the window's
// inclusive day span, pointing at this service's own feed path.
func (s *Service) buildFeedResult(window calendar.Window, records store.DayRecords) *neoapi.FeedResult {
	span := window.Span()

	count := 0
	byDate := make(map[string][]neoapi.Object, len(records))
	for day, objects := range records {
		count += len(objects)
		byDate[calendar.ISODate(calendar.DateForDayIndex(day))] = objects
	}

	return &neoapi.FeedResult{
		Links: neoapi.Links{
			Next: s.feedLink(calendar.AddDays(window.Start, span), calendar.AddDays(window.End, span)),
			Self: s.feedLink(window.Start, window.End),
			Prev: s.feedLink(calendar.AddDays(window.Start, -span), calendar.AddDays(window.End, -span)),
		},
		ElementCount:     count,
		NearEarthObjects: byDate,
	}
}

func (s *Service) feedLink(from, to time.Time) string {
	origin := strings.TrimSuffix(s.origin.String(), "/")
	return fmt.Sprintf("%s%s?start_date=%s&end_date=%s",
		origin, neoapi.FeedPath, calendar.ISODate(from), calendar.ISODate(to))
}

// rewriteLink points an upstream URL at this service's own host and strips
// the upstream credential and the internal "detailed" parameter. All other
// query parameters pass through.
func (s *Service) rewriteLink(raw string) string {
	if raw == "" {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		logging.Warn("Could not rewrite upstream link", "url", raw, "error", err)
		return raw
	}

	u.Scheme = s.origin.Scheme
	u.Host = s.origin.Host

	q := u.Query()
	q.Del("api_key")
	q.Del("detailed")
	u.RawQuery = q.Encode()

	return u.String()
}
