package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/huddlecal/huddle/libs/httpx"
	"github.com/huddlecal/huddle/services/calendar-service/internal/model"
	"github.com/huddlecal/huddle/services/calendar-service/internal/ranking"
)

func (h *CalendarHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req calendarRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		httpx.WriteError(w, http.StatusBadRequest, "title is required")
		return
	}
	def, err := req.definition()
	if err != nil {
		h.rankingError(w, err)
		return
	}

	p, _ := httpx.PrincipalFromContext(r.Context())
	cal := model.Calendar{
		HostID:      p.UserID,
		Title:       req.Title,
		Description: strings.TrimSpace(req.Description),
		Definition:  def,
	}
	if err := h.store.CreateCalendar(r.Context(), &cal); err != nil {
		h.storeError(w, r, err, "calendar")
		return
	}
	h.logger.InfoContext(r.Context(), "calendar created", "calendar_id", cal.ID, "type", def.Type.String())
	httpx.WriteJSON(w, http.StatusCreated, toCalendarResponse(cal, nil))
}

func (h *CalendarHandler) Get(w http.ResponseWriter, r *http.Request) {
	cal, ok := h.loadCalendar(w, r)
	if !ok {
		return
	}
	ps, err := h.store.ListParticipants(r.Context(), cal.ID)
	if err != nil {
		h.storeError(w, r, err, "participants")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toCalendarResponse(cal, ps))
}

type conflictResponse struct {
	CalendarID string           `json:"calendar_id"`
	Conflicts  []model.Conflict `json:"conflicts"`
}

// Update replaces the definition. Answers the new definition would orphan are
// reported with 409 unless purge_conflicts=true, in which case they are
// removed in the same transaction.
func (h *CalendarHandler) Update(w http.ResponseWriter, r *http.Request) {
	cal, ok := h.loadOwnedCalendar(w, r)
	if !ok {
		return
	}
	if cal.Status != model.StatusOpen {
		httpx.WriteError(w, http.StatusConflict, "calendar is "+cal.Status)
		return
	}

	var req calendarRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if title := strings.TrimSpace(req.Title); title != "" {
		cal.Title = title
	}
	cal.Description = strings.TrimSpace(req.Description)
	def, err := req.definition()
	if err != nil {
		h.rankingError(w, err)
		return
	}
	def.ID = cal.ID

	ps, err := h.store.ListParticipants(r.Context(), cal.ID)
	if err != nil {
		h.storeError(w, r, err, "participants")
		return
	}
	plan, err := model.PlanEdit(cal.Definition, def, ps)
	if err != nil {
		h.rankingError(w, err)
		return
	}
	purge, _ := strconv.ParseBool(r.URL.Query().Get("purge_conflicts"))
	if len(plan.Conflicts) > 0 && !purge {
		httpx.WriteErrorDetails(w, http.StatusConflict, "edit would discard submitted availability", conflictResponse{
			CalendarID: cal.ID,
			Conflicts:  plan.Conflicts,
		})
		return
	}

	cal.Definition = def
	if err := h.store.UpdateCalendar(r.Context(), cal, plan); err != nil {
		h.storeError(w, r, err, "calendar")
		return
	}
	if len(plan.Conflicts) > 0 {
		h.logger.InfoContext(r.Context(), "availability purged", "calendar_id", cal.ID, "participants", len(plan.Conflicts))
	}
	httpx.WriteJSON(w, http.StatusOK, toCalendarResponse(cal, nil))
}

// Conflicts lists stored entries that fall outside the current definition.
func (h *CalendarHandler) Conflicts(w http.ResponseWriter, r *http.Request) {
	cal, ok := h.loadOwnedCalendar(w, r)
	if !ok {
		return
	}
	ps, err := h.store.ListParticipants(r.Context(), cal.ID)
	if err != nil {
		h.storeError(w, r, err, "participants")
		return
	}
	idx, err := ranking.BuildIndex(cal.Definition)
	if err != nil {
		h.rankingError(w, err)
		return
	}
	stale := idx.Stale(model.RankingParticipants(ps))
	if stale == nil {
		stale = []ranking.StaleEntry{}
	}
	httpx.WriteJSON(w, http.StatusOK, struct {
		CalendarID string               `json:"calendar_id"`
		Stale      []ranking.StaleEntry `json:"stale"`
	}{CalendarID: cal.ID, Stale: stale})
}
