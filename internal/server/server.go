// Package server exposes the range cache and aggregation services over HTTP.
//
// The routes mirror the upstream NEO API surface so that rewritten feed
// links resolve against this service unchanged.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/trantila/spache/internal/aggregate"
	"github.com/trantila/spache/internal/cache"
	"github.com/trantila/spache/internal/calendar"
	"github.com/trantila/spache/internal/logging"
	"github.com/trantila/spache/internal/neoapi"
)

// Server routes feed and aggregation requests to their services.
type Server struct {
	cache *cache.Service
	agg   *aggregate.Service
}

// New creates a server over the given services.
func New(cacheSvc *cache.Service, aggSvc *aggregate.Service) *Server {
	return &Server{cache: cacheSvc, agg: aggSvc}
}

// Router builds the HTTP routing table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)
	r.HandleFunc(neoapi.FeedPath, s.handleFeed).Methods(http.MethodGet)
	r.HandleFunc("/aggregations/largest/monthly", s.handleMonthlyLargest).Methods(http.MethodGet)
	r.Use(requestLog)
	return r
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("Space Cache\n"))
}

// handleFeed serves GET /neo/rest/v1/feed?start_date=&end_date=.
// end_date defaults to start_date plus seven days, the widest window the
// upstream accepts.
func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	from, ok := requireDateParam(w, r, "start_date")
	if !ok {
		return
	}
	to, ok := dateParam(w, r, "end_date", calendar.AddDays(from, 7))
	if !ok {
		return
	}

	feed, err := s.cache.QueryByDateRange(r.Context(), from, to)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, feed)
}

// handleMonthlyLargest serves GET /aggregations/largest/monthly?from=&to=.
// to defaults to the last day of from's month.
func (s *Server) handleMonthlyLargest(w http.ResponseWriter, r *http.Request) {
	from, ok := requireDateParam(w, r, "from")
	if !ok {
		return
	}
	to, ok := dateParam(w, r, "to", calendar.LastDayOfMonth(from))
	if !ok {
		return
	}

	largest, err := s.agg.MonthlyLargest(r.Context(), from, to)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, largest)
}

// requireDateParam parses a mandatory ISO date query parameter, writing a
// 400 response when missing or malformed.
func requireDateParam(w http.ResponseWriter, r *http.Request, name string) (time.Time, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		http.Error(w, "Required parameter `"+name+"` not provided.", http.StatusBadRequest)
		return time.Time{}, false
	}
	return parseDateParam(w, name, raw)
}

// dateParam parses an optional ISO date query parameter, falling back to the
// given default when absent.
func dateParam(w http.ResponseWriter, r *http.Request, name string, fallback time.Time) (time.Time, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, true
	}
	return parseDateParam(w, name, raw)
}

func parseDateParam(w http.ResponseWriter, name, raw string) (time.Time, bool) {
	t, err := calendar.ParseISODate(raw)
	if err != nil {
		http.Error(w, "Parameter `"+name+"` must be an ISO date (YYYY-MM-DD).", http.StatusBadRequest)
		return time.Time{}, false
	}
	return t, true
}

// respondError maps service errors onto status codes: invalid windows are
// the client's fault, upstream failures are a bad gateway, anything else is
// internal.
func respondError(w http.ResponseWriter, err error) {
	logging.Error("Request failed", "error", err)

	var windowErr *neoapi.WindowError
	var statusErr *neoapi.StatusError
	switch {
	case errors.As(err, &windowErr):
		http.Error(w, windowErr.Error(), http.StatusBadRequest)
	case errors.As(err, &statusErr):
		http.Error(w, statusErr.Error(), http.StatusBadGateway)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func respondJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("Failed to encode response", "error", err)
	}
}

// requestLog logs every request with its duration.
func requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logging.Info("Request",
			"method", r.Method,
			"url", r.URL.String(),
			"duration", time.Since(start).Round(time.Millisecond))
	})
}
