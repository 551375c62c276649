// Package neoapi is the client for the NASA NEO feed API.
//
// The upstream feed endpoint only accepts request windows of at most eight
// calendar days; FetchWindow enforces that bound before touching the network.
package neoapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/trantila/spache/internal/calendar"
	"github.com/trantila/spache/internal/logging"
)

// FeedPath is the feed endpoint path, shared by the upstream API and this
// service's own external surface so rewritten links resolve unchanged.
const FeedPath = "/neo/rest/v1/feed"

// DefaultBaseURL is the public NASA NEO REST API.
const DefaultBaseURL = "https://api.nasa.gov/neo/rest/v1"

// maxWindowDays is the upstream per-request limit, end-inclusive.
const maxWindowDays = 8

// maxErrorBodyBytes caps how much of an upstream error body is kept.
const maxErrorBodyBytes = 4 << 10

// WindowError reports a requested window wider than the upstream allows.
// It is raised before any network call.
type WindowError struct {
	From time.Time
	To   time.Time
}

func (e *WindowError) Error() string {
	return fmt.Sprintf("feed window %s..%s spans %d days, upstream allows at most %d",
		calendar.ISODate(e.From), calendar.ISODate(e.To),
		calendar.DaysBetween(e.From, e.To)+1, maxWindowDays)
}

// StatusError reports a non-2xx upstream response, carrying the status code
// and as much of the body as could be read.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("neo api responded with %d: %s", e.StatusCode, e.Body)
}

// Client fetches feed windows from the NEO API.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	limiter *rate.Limiter // nil means unlimited
}

// NewClient creates a feed client. An empty baseURL selects the public NASA
// API; the key "DEMO_KEY" works there with tight quotas.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

// SetMinInterval throttles upstream calls to at most one per interval.
// Zero or negative removes the limit. Off by default: without a limiter,
// concurrent cache misses translate one-to-one into concurrent upstream
// calls.
func (c *Client) SetMinInterval(interval time.Duration) {
	if interval <= 0 {
		c.limiter = nil
		return
	}
	c.limiter = rate.NewLimiter(rate.Every(interval), 1)
}

// FetchWindow retrieves one feed window, end-inclusive. Both bounds are
// normalized to their UTC calendar day first. Windows spanning more than
// eight calendar days fail with a *WindowError; non-2xx upstream responses
// fail with a *StatusError.
func (c *Client) FetchWindow(ctx context.Context, from, to time.Time) (*FeedResult, error) {
	from, to = calendar.DateOnly(from), calendar.DateOnly(to)

	if calendar.DaysBetween(from, to) >= maxWindowDays {
		return nil, &WindowError{From: from, To: to}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	logging.Info("Fetching feed window", "start", calendar.ISODate(from), "end", calendar.ISODate(to))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.feedURL(from, to), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "spache/1.0 (+https://github.com/trantila/spache)")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		if readErr != nil || len(body) == 0 {
			body = []byte(resp.Status)
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var feed FeedResult
	if err := json.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	return &feed, nil
}

func (c *Client) feedURL(from, to time.Time) string {
	q := url.Values{}
	q.Set("start_date", calendar.ISODate(from))
	q.Set("end_date", calendar.ISODate(to))
	q.Set("api_key", c.apiKey)
	return c.baseURL + "/feed?" + q.Encode()
}
