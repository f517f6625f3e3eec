package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/huddlecal/huddle/libs/httpx"
	otelx "github.com/huddlecal/huddle/libs/otel"
	"github.com/huddlecal/huddle/services/calendar-service/internal/model"
	"github.com/huddlecal/huddle/services/calendar-service/internal/ranking"
)

// evaluate recomputes the ranking from stored data; nothing derived is cached.
func (h *CalendarHandler) evaluate(ctx context.Context, cal model.Calendar, req ranking.Request) (ranking.Result, error) {
	ps, err := h.store.ListParticipants(ctx, cal.ID)
	if err != nil {
		return ranking.Result{}, err
	}

	_, span := otelx.StartSpan(ctx, "ranking.Evaluate",
		attribute.String("calendar.id", cal.ID),
		attribute.String("calendar.type", cal.Definition.Type.String()),
		attribute.Int("participants", len(ps)),
	)
	start := time.Now()
	res, err := ranking.Evaluate(cal.Definition, model.RankingParticipants(ps), req)
	h.metrics.ObserveEvaluation(cal.Definition.Type.String(), time.Since(start), len(res.Candidates), len(res.Stale), err)
	otelx.EndSpan(span, err)
	return res, err
}

// rankingRequest reads required, vip and duration_hours from the query string.
func (h *CalendarHandler) rankingRequest(r *http.Request, typ ranking.CalendarType) (ranking.Request, bool) {
	q := r.URL.Query()
	req := ranking.Request{
		RequiredParticipantIDs: splitIDs(q.Get("required")),
		VIPIDs:                 splitIDs(q.Get("vip")),
	}
	if typ != ranking.TimeBased {
		return req, true
	}
	req.DurationHours = h.defaultDuration
	if raw := strings.TrimSpace(q.Get("duration_hours")); raw != "" {
		hours, err := strconv.ParseFloat(raw, 64)
		if err != nil || hours <= 0 {
			return req, false
		}
		req.DurationHours = hours
	}
	return req, true
}

type histogramResponse struct {
	CalendarID string                   `json:"calendar_id"`
	Type       string                   `json:"type"`
	Entries    []ranking.HistogramEntry `json:"entries"`
	StaleCount int                      `json:"stale_count"`
}

func (h *CalendarHandler) Histogram(w http.ResponseWriter, r *http.Request) {
	cal, ok := h.loadCalendar(w, r)
	if !ok {
		return
	}
	req := ranking.Request{VIPIDs: splitIDs(r.URL.Query().Get("vip"))}
	res, err := h.evaluate(r.Context(), cal, req)
	if err != nil {
		h.evaluateError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, histogramResponse{
		CalendarID: cal.ID,
		Type:       cal.Definition.Type.String(),
		Entries:    res.Histogram,
		StaleCount: len(res.Stale),
	})
}

type rankingsResponse struct {
	CalendarID    string              `json:"calendar_id"`
	Type          string              `json:"type"`
	DurationHours float64             `json:"duration_hours,omitempty"`
	Required      []string            `json:"required,omitempty"`
	Candidates    []ranking.Candidate `json:"candidates"`
}

func (h *CalendarHandler) Rankings(w http.ResponseWriter, r *http.Request) {
	cal, ok := h.loadCalendar(w, r)
	if !ok {
		return
	}
	req, ok := h.rankingRequest(r, cal.Definition.Type)
	if !ok {
		httpx.WriteError(w, http.StatusBadRequest, "duration_hours must be a positive number")
		return
	}
	res, err := h.evaluate(r.Context(), cal, req)
	if err != nil {
		h.evaluateError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, rankingsResponse{
		CalendarID:    cal.ID,
		Type:          cal.Definition.Type.String(),
		DurationHours: req.DurationHours,
		Required:      req.RequiredParticipantIDs,
		Candidates:    res.Candidates,
	})
}

type confirmRequest struct {
	// SlotKey names the chosen candidate: a day key or a window's start slot key.
	SlotKey       string   `json:"slot_key"`
	Required      []string `json:"required,omitempty"`
	DurationHours float64  `json:"duration_hours,omitempty"`
	// StartTime and EndTime are HH:MM clock times for day calendars.
	StartTime string `json:"start_time,omitempty"`
	EndTime   string `json:"end_time,omitempty"`
	// Start and End are RFC3339 overrides for time calendars.
	Start    string            `json:"start,omitempty"`
	End      string            `json:"end,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Confirm ranks with the host's filter, resolves the chosen candidate and
// stores the result together with the outbound event.
func (h *CalendarHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	cal, ok := h.loadOwnedCalendar(w, r)
	if !ok {
		return
	}
	if cal.Status == model.StatusConfirmed {
		httpx.WriteError(w, http.StatusConflict, "calendar already confirmed")
		return
	}
	var req confirmRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	manualStart, manualEnd, err := req.overrides(cal.Definition.Type)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	rankReq := ranking.Request{RequiredParticipantIDs: req.Required}
	if cal.Definition.Type == ranking.TimeBased {
		rankReq.DurationHours = req.DurationHours
		if rankReq.DurationHours <= 0 {
			rankReq.DurationHours = h.defaultDuration
		}
	}
	res, err := h.evaluate(r.Context(), cal, rankReq)
	if err != nil {
		h.evaluateError(w, r, err)
		return
	}

	resolved, err := ranking.Resolve(ranking.Find(res.Candidates, strings.TrimSpace(req.SlotKey)), cal.Definition.Type, manualStart, manualEnd)
	if err != nil {
		h.rankingError(w, err)
		return
	}
	conf := model.Confirmation{
		Start:          resolved.Start,
		End:            resolved.End,
		ParticipantIDs: resolved.ParticipantIDs,
		Metadata:       req.Metadata,
		ConfirmedAt:    h.now().UTC(),
	}
	if err := h.store.Confirm(r.Context(), cal.ID, conf); err != nil {
		h.storeError(w, r, err, "calendar")
		return
	}
	h.logger.InfoContext(r.Context(), "meeting confirmed", "calendar_id", cal.ID, "participants", len(conf.ParticipantIDs))
	httpx.WriteJSON(w, http.StatusOK, toConfirmationResponse(conf))
}

func (req confirmRequest) overrides(typ ranking.CalendarType) (start, end *time.Time, err error) {
	parse := parseRFC3339
	a, b := req.Start, req.End
	if typ == ranking.DayBased {
		parse = parseClock
		a, b = req.StartTime, req.EndTime
	}
	if start, err = parse(a); err != nil {
		return nil, nil, err
	}
	if end, err = parse(b); err != nil {
		return nil, nil, err
	}
	return start, end, nil
}

func parseClock(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse("15:04", raw)
	if err != nil {
		return nil, errInvalidClock
	}
	return &t, nil
}

func parseRFC3339(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, errInvalidTimestamp
	}
	return &t, nil
}

func (h *CalendarHandler) evaluateError(w http.ResponseWriter, r *http.Request, err error) {
	if isRankingError(err) {
		h.rankingError(w, err)
		return
	}
	h.storeError(w, r, err, "participants")
}
