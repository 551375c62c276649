package aggregate

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/trantila/spache/internal/calendar"
	"github.com/trantila/spache/internal/neoapi"
	"github.com/trantila/spache/internal/store"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "aggregate-test.db"))
	if err != nil {
		t.Fatalf("store.Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sized(id string, diameterKm float64) neoapi.Object {
	return neoapi.Object{
		ID:   id,
		Name: "neo " + id,
		EstimatedDiameter: neoapi.EstimatedDiameter{
			Kilometers: neoapi.DiameterRange{
				EstimatedDiameterMin: diameterKm / 2,
				EstimatedDiameterMax: diameterKm,
			},
		},
	}
}

// fakeClient serves slices of a global by-date payload, window by window.
type fakeClient struct {
	mu      sync.Mutex
	windows []calendar.Window
	byDate  map[string][]neoapi.Object
	err     error
}

func (f *fakeClient) FetchWindow(ctx context.Context, from, to time.Time) (*neoapi.FeedResult, error) {
	f.mu.Lock()
	f.windows = append(f.windows, calendar.Window{Start: from, End: to})
	f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	if calendar.DaysBetween(from, to) >= 8 {
		return nil, &neoapi.WindowError{From: from, To: to}
	}

	count := 0
	byDate := make(map[string][]neoapi.Object)
	w := calendar.Window{Start: from, End: to}
	w.Days(func(day time.Time) {
		if objects, ok := f.byDate[calendar.ISODate(day)]; ok {
			byDate[calendar.ISODate(day)] = objects
			count += len(objects)
		}
	})

	return &neoapi.FeedResult{ElementCount: count, NearEarthObjects: byDate}, nil
}

func (f *fakeClient) fetchedWindows() []calendar.Window {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]calendar.Window, len(f.windows))
	copy(out, f.windows)
	return out
}

func TestMonthlyLargestColdStore(t *testing.T) {
	st := newTestStore(t)
	client := &fakeClient{byDate: map[string][]neoapi.Object{
		"2024-01-02": {sized("small", 0.1)},
		"2024-01-09": {sized("big", 2.5), sized("medium", 1.0)},
	}}
	svc := New(client, st)

	largest, err := svc.MonthlyLargest(context.Background(), date(2024, time.January, 1), date(2024, time.January, 10))
	if err != nil {
		t.Fatalf("MonthlyLargest failed: %v", err)
	}

	// A ten-day span splits into two upstream windows.
	windows := client.fetchedWindows()
	if len(windows) != 2 {
		t.Fatalf("expected 2 fetch windows, got %d", len(windows))
	}
	got := map[string]bool{}
	for _, w := range windows {
		got[calendar.ISODate(w.Start)+".."+calendar.ISODate(w.End)] = true
	}
	if !got["2024-01-01..2024-01-07"] || !got["2024-01-08..2024-01-10"] {
		t.Errorf("unexpected windows %v", got)
	}

	if len(largest) != 1 {
		t.Fatalf("expected one month key, got %v", largest)
	}
	if largest["2024-01"].ID != "big" {
		t.Errorf("expected the largest object, got %+v", largest["2024-01"])
	}

	// The write-behind caches all ten days, quiet ones included.
	svc.WaitWrites()
	records, hit, err := st.QueryRange(context.Background(), date(2024, time.January, 1), date(2024, time.January, 10))
	if err != nil || !hit {
		t.Fatalf("expected the span to be cached: hit=%v err=%v", hit, err)
	}
	if len(records) != 10 {
		t.Errorf("expected 10 day rows, got %d", len(records))
	}
}

func TestMonthlyLargestCacheHit(t *testing.T) {
	st := newTestStore(t)
	records := store.DayRecords{}
	for d := 0; d < 5; d++ {
		records[calendar.DayIndex(date(2024, time.March, 1+d))] = []neoapi.Object{}
	}
	records[calendar.DayIndex(date(2024, time.March, 2))] = []neoapi.Object{sized("cached", 1.5)}
	if err := st.Update(context.Background(), records); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	client := &fakeClient{}
	svc := New(client, st)

	largest, err := svc.MonthlyLargest(context.Background(), date(2024, time.March, 1), date(2024, time.March, 5))
	if err != nil {
		t.Fatalf("MonthlyLargest failed: %v", err)
	}
	if len(client.fetchedWindows()) != 0 {
		t.Errorf("expected zero upstream calls on a hit, got %d", len(client.fetchedWindows()))
	}
	if largest["2024-03"].ID != "cached" {
		t.Errorf("unexpected result %+v", largest)
	}
}

func TestMonthlyLargestAcrossMonthBoundary(t *testing.T) {
	st := newTestStore(t)
	client := &fakeClient{byDate: map[string][]neoapi.Object{
		"2024-01-30": {sized("january", 3.0)},
		"2024-02-02": {sized("february", 0.5)},
	}}
	svc := New(client, st)

	largest, err := svc.MonthlyLargest(context.Background(), date(2024, time.January, 28), date(2024, time.February, 4))
	if err != nil {
		t.Fatalf("MonthlyLargest failed: %v", err)
	}

	if len(largest) != 2 {
		t.Fatalf("expected two month keys, got %v", largest)
	}
	if largest["2024-01"].ID != "january" || largest["2024-02"].ID != "february" {
		t.Errorf("unexpected winners %+v", largest)
	}
}

// Equal diameters keep the earlier-seen object: iteration is ascending by
// day, and only a strictly greater diameter replaces the incumbent.
func TestMonthlyLargestTieKeepsEarlierDay(t *testing.T) {
	st := newTestStore(t)
	client := &fakeClient{byDate: map[string][]neoapi.Object{
		"2024-01-02": {sized("earlier", 1.0)},
		"2024-01-05": {sized("later", 1.0)},
	}}
	svc := New(client, st)

	largest, err := svc.MonthlyLargest(context.Background(), date(2024, time.January, 1), date(2024, time.January, 7))
	if err != nil {
		t.Fatalf("MonthlyLargest failed: %v", err)
	}
	if largest["2024-01"].ID != "earlier" {
		t.Errorf("tie should keep the earlier object, got %+v", largest["2024-01"])
	}
}

func TestMonthlyLargestEmptySpan(t *testing.T) {
	st := newTestStore(t)
	client := &fakeClient{byDate: map[string][]neoapi.Object{}}
	svc := New(client, st)

	largest, err := svc.MonthlyLargest(context.Background(), date(2024, time.January, 1), date(2024, time.January, 3))
	if err != nil {
		t.Fatalf("MonthlyLargest failed: %v", err)
	}
	if len(largest) != 0 {
		t.Errorf("expected no month keys for an empty span, got %v", largest)
	}
}

// The aggregation response waits for all window fetches; any failure aborts
// the request, unlike the write-behind path.
func TestMonthlyLargestFetchErrorPropagates(t *testing.T) {
	st := newTestStore(t)
	wantErr := errors.New("upstream on fire")
	svc := New(&fakeClient{err: wantErr}, st)

	_, err := svc.MonthlyLargest(context.Background(), date(2024, time.January, 1), date(2024, time.January, 20))
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected the fetch error to surface, got %v", err)
	}
}

func TestMonthlyLargestYearSpanWindowCount(t *testing.T) {
	st := newTestStore(t)
	client := &fakeClient{byDate: map[string][]neoapi.Object{}}
	svc := New(client, st)

	// 2024-01-01..2024-02-26 is 57 days: ceil(57/7) = 9 windows.
	_, err := svc.MonthlyLargest(context.Background(), date(2024, time.January, 1), date(2024, time.February, 26))
	if err != nil {
		t.Fatalf("MonthlyLargest failed: %v", err)
	}
	if got := len(client.fetchedWindows()); got != 9 {
		t.Errorf("expected 9 concurrent windows, got %d", got)
	}
}
