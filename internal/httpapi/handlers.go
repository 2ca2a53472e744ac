package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"salonbook/internal/auth"
	"salonbook/internal/availability"
	"salonbook/internal/booking"
	"salonbook/internal/catalog"
	"salonbook/internal/loader"
	"salonbook/internal/metrics"
	"salonbook/internal/salonapi"
	"salonbook/internal/validate"

	"github.com/rs/zerolog"
)

const (
	msgClosed   = "The salon is closed on this day."
	msgNoTimes  = "No times left for this date."
	msgFeedDown = "Booked times could not be loaded. Times may already be taken; the salon confirms on booking."
)

func (s *Server) handleStyles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sort, err := catalog.ParseSort(q.Get("sort"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	category, err := catalog.ParseCategory(q.Get("category"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	styles, err := s.styles.Search(r.Context(), catalog.Filter{Query: q.Get("q"), Category: category, Sort: sort})
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("failed to load styles")
		writeError(w, http.StatusBadGateway, "could not load styles")
		return
	}
	if styles == nil {
		styles = []salonapi.Style{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"styles": styles})
}

type availabilityResponse struct {
	Date            string            `json:"date"`
	StyleID         string            `json:"style_id"`
	DurationMinutes int               `json:"duration_minutes"`
	Open            bool              `json:"open"`
	Window          string            `json:"window,omitempty"`
	Slots           []string          `json:"slots"`
	Available       []string          `json:"available"`
	Disabled        []string          `json:"disabled"`
	Reasons         map[string]string `json:"reasons"`
	Message         string            `json:"message,omitempty"`
	Warning         string            `json:"warning,omitempty"`
}

func (s *Server) handleAvailability(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	date, err := time.ParseInLocation("2006-01-02", q.Get("date"), s.flow.Location())
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	styleID := strings.TrimSpace(q.Get("style_id"))
	if styleID == "" {
		writeError(w, http.StatusBadRequest, "style_id is required")
		return
	}

	guest := validate.GuestContact{Email: strings.TrimSpace(q.Get("email")), Phone: strings.TrimSpace(q.Get("phone"))}
	if err := guest.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	contact := availability.Contact{Email: guest.Email, Phone: guest.Phone}.Normalize()

	token, err := s.bearer(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	style, err := s.styles.Style(ctx, styleID)
	if errors.Is(err, catalog.ErrUnknownStyle) {
		writeError(w, http.StatusNotFound, "unknown style_id")
		return
	}
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("style_id", styleID).Msg("failed to load style")
		writeError(w, http.StatusBadGateway, "could not load styles")
		return
	}

	sel := booking.NewSelection()
	sel.SetStyle(style.ID, style.Name, style.DurationMinutes)
	sel.SetDate(date)
	draft := booking.Draft{Selection: sel}

	logger := zerolog.Ctx(ctx)
	var (
		snap    *loader.Snapshot
		warning string
	)
	if !errors.Is(s.flow.DateAllowed(date), booking.ErrDayClosed) {
		l := loader.New(feedSource{feeds: s.feeds, token: token}, logger)
		snap, err = l.Load(ctx, sel.Key(), token != "")
		var fetchErr *loader.FetchError
		switch {
		case err == nil:
		case errors.As(err, &fetchErr):
			// Render what is known and leave conflicts to the backend.
			metrics.IncAvailabilityQuery("fetch_error")
			warning = msgFeedDown
		default:
			logger.Error().Err(err).Msg("availability load failed")
			writeError(w, http.StatusBadGateway, "could not load booked times")
			return
		}
	}

	viewer := availability.Viewer{Authenticated: token != "", Contact: contact}
	res, err := s.flow.Availability(draft, snap, viewer)
	if err != nil {
		var inErr *availability.InputError
		if errors.As(err, &inErr) {
			writeError(w, http.StatusBadRequest, inErr.Error())
			return
		}
		logger.Error().Err(err).Msg("availability computation failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	out := renderResult(date, style, res)
	out.Warning = warning
	switch {
	case !res.Open:
		metrics.IncAvailabilityQuery("closed")
	case len(out.Available) == 0:
		metrics.IncAvailabilityQuery("empty")
	default:
		metrics.IncAvailabilityQuery("ok")
	}
	writeJSON(w, http.StatusOK, out)
}

func renderResult(date time.Time, style salonapi.Style, res *availability.Result) availabilityResponse {
	out := availabilityResponse{
		Date:            date.Format("2006-01-02"),
		StyleID:         style.ID,
		DurationMinutes: style.DurationMinutes,
		Open:            res.Open,
		Slots:           labels(res.Slots),
		Available:       labels(res.Available()),
		Disabled:        res.DisabledLabels(),
		Reasons:         map[string]string{},
	}
	if res.Open {
		out.Window = res.Window.String()
	}
	for _, slot := range res.Disabled() {
		if reason, ok := res.Reason(slot); ok {
			out.Reasons[availability.FormatClock(slot)] = string(reason)
		}
	}
	switch {
	case !res.Open:
		out.Message = msgClosed
	case len(out.Available) == 0:
		out.Message = msgNoTimes
	}
	return out
}

func labels(slots []int) []string {
	out := make([]string, len(slots))
	for i, s := range slots {
		out[i] = availability.FormatClock(s)
	}
	return out
}

// bearer returns the access token of an authenticated caller, or "" for a
// guest. A token that is present but unusable is an error.
func (s *Server) bearer(r *http.Request) (string, error) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", nil
	}
	token, ok := strings.CutPrefix(h, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return "", errors.New("authorization must be a Bearer token")
	}
	claims, err := auth.ParseClaims(token)
	if err != nil {
		return "", errors.New("access token is malformed")
	}
	if !claims.ExpiresAt.IsZero() && !claims.ExpiresAt.After(s.flow.Now()) {
		return "", errors.New("access token expired")
	}
	return token, nil
}

type feedSource struct {
	feeds Feeds
	token string
}

func (f feedSource) TakenSlots(ctx context.Context, date time.Time) ([]availability.TakenSlot, error) {
	return f.feeds.TakenSlots(ctx, date)
}

func (f feedSource) UpcomingBookings(ctx context.Context) ([]availability.OwnBooking, error) {
	return f.feeds.OwnBookings(ctx, f.token)
}
