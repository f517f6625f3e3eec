package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/huddlecal/huddle/libs/auth"
	"github.com/huddlecal/huddle/libs/httpx"
	"github.com/huddlecal/huddle/libs/metrics"
	"github.com/huddlecal/huddle/services/calendar-service/internal/model"
	"github.com/huddlecal/huddle/services/calendar-service/internal/ranking"
	"github.com/huddlecal/huddle/services/calendar-service/internal/storage"
)

// Store is the persistence the handlers need. *storage.CalendarRepository
// implements it.
type Store interface {
	CreateCalendar(ctx context.Context, c *model.Calendar) error
	GetCalendar(ctx context.Context, id string) (model.Calendar, error)
	UpdateCalendar(ctx context.Context, c model.Calendar, plan model.EditPlan) error
	ListParticipants(ctx context.Context, calendarID string) ([]model.Participant, error)
	AddParticipant(ctx context.Context, p *model.Participant) error
	GetParticipant(ctx context.Context, calendarID, participantID string) (model.Participant, error)
	FindParticipantByUser(ctx context.Context, calendarID, userID string) (model.Participant, error)
	FindGuest(ctx context.Context, calendarID, displayName string) (model.Participant, error)
	ReplaceAvailability(ctx context.Context, calendarID, participantID string, availability []string) error
	Confirm(ctx context.Context, calendarID string, conf model.Confirmation) error
}

var _ Store = (*storage.CalendarRepository)(nil)

type CalendarHandler struct {
	store   Store
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
	// defaultDuration applies to time calendars when duration_hours is omitted.
	defaultDuration float64
}

func NewCalendarHandler(store Store, logger *slog.Logger, m *metrics.Metrics) *CalendarHandler {
	return &CalendarHandler{
		store:           store,
		logger:          logger,
		metrics:         m,
		now:             time.Now,
		defaultDuration: 1,
	}
}

// Routes registers the API on mux. Reads and participant writes accept
// anonymous guests; calendar management requires a host token.
func (h *CalendarHandler) Routes(mux *http.ServeMux, verify httpx.TokenVerifier) {
	host := func(fn http.HandlerFunc) http.Handler {
		return httpx.Chain(fn, httpx.RequireAuth(verify), httpx.RequireRole(auth.RoleHost))
	}
	anyone := func(fn http.HandlerFunc) http.Handler {
		return httpx.Chain(fn, httpx.OptionalAuth(verify))
	}

	mux.Handle("POST /api/v1/calendars", host(h.Create))
	mux.Handle("GET /api/v1/calendars/{id}", anyone(h.Get))
	mux.Handle("PUT /api/v1/calendars/{id}", host(h.Update))
	mux.Handle("GET /api/v1/calendars/{id}/conflicts", host(h.Conflicts))
	mux.Handle("POST /api/v1/calendars/{id}/participants", anyone(h.Join))
	mux.Handle("PUT /api/v1/calendars/{id}/participants/{pid}/availability", anyone(h.SubmitAvailability))
	mux.Handle("GET /api/v1/calendars/{id}/histogram", anyone(h.Histogram))
	mux.Handle("GET /api/v1/calendars/{id}/rankings", anyone(h.Rankings))
	mux.Handle("POST /api/v1/calendars/{id}/confirm", host(h.Confirm))
}

// loadCalendar writes the error response itself and returns ok=false on failure.
func (h *CalendarHandler) loadCalendar(w http.ResponseWriter, r *http.Request) (model.Calendar, bool) {
	cal, err := h.store.GetCalendar(r.Context(), r.PathValue("id"))
	if err != nil {
		h.storeError(w, r, err, "calendar")
		return model.Calendar{}, false
	}
	return cal, true
}

// loadOwnedCalendar additionally requires the caller to be the calendar's host.
func (h *CalendarHandler) loadOwnedCalendar(w http.ResponseWriter, r *http.Request) (model.Calendar, bool) {
	cal, ok := h.loadCalendar(w, r)
	if !ok {
		return cal, false
	}
	p, _ := httpx.PrincipalFromContext(r.Context())
	if p.UserID != cal.HostID {
		httpx.WriteError(w, http.StatusForbidden, "only the host may manage this calendar")
		return cal, false
	}
	return cal, true
}

func (h *CalendarHandler) storeError(w http.ResponseWriter, r *http.Request, err error, what string) {
	switch {
	case storage.IsNotFound(err):
		httpx.WriteError(w, http.StatusNotFound, what+" not found")
	case storage.IsConflict(err):
		httpx.WriteError(w, http.StatusConflict, what+" conflict")
	case errors.Is(err, context.Canceled):
		// Client went away; nothing useful to send.
	default:
		h.logger.ErrorContext(r.Context(), "store error", "err", err, "entity", what)
		httpx.WriteError(w, http.StatusInternalServerError, "db error")
	}
}

func (h *CalendarHandler) rankingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ranking.ErrInvalidDefinition):
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ranking.ErrNoCandidateSelected):
		httpx.WriteError(w, http.StatusUnprocessableEntity, "no candidate selected")
	case errors.Is(err, ranking.ErrCandidateMismatch), errors.Is(err, ranking.ErrInvalidRange):
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("ranking error", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "ranking failed")
	}
}
