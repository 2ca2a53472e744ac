// Package httpapi exposes the style catalog and the availability engine as
// a small JSON API next to the bot.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"salonbook/internal/availability"
	"salonbook/internal/booking"
	"salonbook/internal/catalog"
	"salonbook/internal/salonapi"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const headerRequestID = "X-Request-ID"

// Styles is the part of the catalog the API reads.
type Styles interface {
	Search(ctx context.Context, f catalog.Filter) ([]salonapi.Style, error)
	Style(ctx context.Context, id string) (salonapi.Style, error)
}

// Feeds fetches the remote inputs of an availability query. OwnBookings
// runs with the caller's bearer token.
type Feeds interface {
	TakenSlots(ctx context.Context, date time.Time) ([]availability.TakenSlot, error)
	OwnBookings(ctx context.Context, accessToken string) ([]availability.OwnBooking, error)
}

// Check is a readiness probe, e.g. a database ping.
type Check func(ctx context.Context) error

type Options struct {
	Styles Styles
	Feeds  Feeds
	Flow   *booking.Flow
	// Checks run on /readyz, keyed by name.
	Checks map[string]Check
	Logger zerolog.Logger
	// Count is called once per matched route. Optional.
	Count func(route string)
}

type Server struct {
	styles Styles
	feeds  Feeds
	flow   *booking.Flow
	checks map[string]Check
	logger zerolog.Logger
	count  func(route string)
	router chi.Router
}

func New(opts Options) *Server {
	s := &Server{
		styles: opts.Styles,
		feeds:  opts.Feeds,
		flow:   opts.Flow,
		checks: opts.Checks,
		logger: opts.Logger.With().Str("component", "httpapi").Logger(),
		count:  opts.Count,
	}
	if s.count == nil {
		s.count = func(string) {}
	}

	r := chi.NewRouter()
	r.Use(s.requestID)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/styles", s.handleStyles)
		r.Get("/availability", s.handleAvailability)
	})
	s.router = r
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerRequestID)
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set(headerRequestID, id)
		l := s.logger.With().Str("request_id", id).Logger()
		next.ServeHTTP(w, r.WithContext(l.WithContext(r.Context())))
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route != "" {
			s.count(route)
		}
		zerolog.Ctx(r.Context()).Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("took", time.Since(start)).
			Msg("http request")
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	failed := map[string]string{}
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		zerolog.Ctx(r.Context()).Warn().Interface("failed", failed).Msg("readiness check failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "failed": failed})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
