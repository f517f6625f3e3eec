package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/huddlecal/huddle/libs/auth"
	"github.com/huddlecal/huddle/libs/httpx"
	"github.com/huddlecal/huddle/services/calendar-service/internal/model"
	"github.com/huddlecal/huddle/services/calendar-service/internal/ranking"
	"github.com/huddlecal/huddle/services/calendar-service/internal/storage"
)

type joinRequest struct {
	DisplayName string `json:"display_name"`
	AvatarRef   string `json:"avatar_ref"`
	// PIN identifies a guest on later visits; ignored for signed-in users.
	PIN string `json:"pin"`
}

// Join adds the caller to the calendar. Signed-in users are matched by user
// id; guests by display name plus PIN. Joining twice returns the existing
// participant with 200.
func (h *CalendarHandler) Join(w http.ResponseWriter, r *http.Request) {
	cal, ok := h.loadCalendar(w, r)
	if !ok {
		return
	}
	if !cal.AcceptsAvailability(h.now()) {
		httpx.WriteError(w, http.StatusConflict, "calendar is not accepting responses")
		return
	}
	var req joinRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req.DisplayName = strings.TrimSpace(req.DisplayName)

	ctx := r.Context()
	if principal, ok := httpx.PrincipalFromContext(ctx); ok {
		existing, err := h.store.FindParticipantByUser(ctx, cal.ID, principal.UserID)
		if err == nil {
			httpx.WriteJSON(w, http.StatusOK, toParticipantResponse(existing))
			return
		}
		if !storage.IsNotFound(err) {
			h.storeError(w, r, err, "participant")
			return
		}
		name := req.DisplayName
		if name == "" {
			name = principal.Name
		}
		if name == "" {
			httpx.WriteError(w, http.StatusBadRequest, "display_name is required")
			return
		}
		h.addParticipant(w, r, &model.Participant{
			CalendarID:  cal.ID,
			UserID:      principal.UserID,
			DisplayName: name,
			AvatarRef:   strings.TrimSpace(req.AvatarRef),
		})
		return
	}

	if req.DisplayName == "" {
		httpx.WriteError(w, http.StatusBadRequest, "display_name is required")
		return
	}
	if err := auth.ValidatePIN(req.PIN); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	existing, err := h.store.FindGuest(ctx, cal.ID, req.DisplayName)
	if err == nil {
		if auth.VerifyPIN(existing.PINHash, req.PIN) != nil {
			httpx.WriteError(w, http.StatusUnauthorized, "name already taken or wrong pin")
			return
		}
		httpx.WriteJSON(w, http.StatusOK, toParticipantResponse(existing))
		return
	}
	if !storage.IsNotFound(err) {
		h.storeError(w, r, err, "participant")
		return
	}
	hash, err := auth.HashPIN(req.PIN)
	if err != nil {
		h.logger.ErrorContext(ctx, "pin hash failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to register guest")
		return
	}
	h.addParticipant(w, r, &model.Participant{
		CalendarID:  cal.ID,
		DisplayName: req.DisplayName,
		AvatarRef:   strings.TrimSpace(req.AvatarRef),
		IsGuest:     true,
		PINHash:     hash,
	})
}

func (h *CalendarHandler) addParticipant(w http.ResponseWriter, r *http.Request, p *model.Participant) {
	if err := h.store.AddParticipant(r.Context(), p); err != nil {
		h.storeError(w, r, err, "participant")
		return
	}
	h.logger.InfoContext(r.Context(), "participant joined", "calendar_id", p.CalendarID, "participant_id", p.ID, "guest", p.IsGuest)
	httpx.WriteJSON(w, http.StatusCreated, toParticipantResponse(*p))
}

type availabilityRequest struct {
	Availability []string `json:"availability"`
	PIN          string   `json:"pin,omitempty"`
}

var errNotYourParticipant = errors.New("not allowed to answer for this participant")

// SubmitAvailability replaces a participant's answers. Entries are stored as
// canonical slot keys; entries outside the calendar are rejected with 422.
func (h *CalendarHandler) SubmitAvailability(w http.ResponseWriter, r *http.Request) {
	cal, ok := h.loadCalendar(w, r)
	if !ok {
		return
	}
	now := h.now()
	if cal.Definition.DeadlinePassed(now) {
		httpx.WriteError(w, http.StatusConflict, "deadline has passed")
		return
	}
	if !cal.AcceptsAvailability(now) {
		httpx.WriteError(w, http.StatusConflict, "calendar is "+cal.Status)
		return
	}

	var req availabilityRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	participant, err := h.store.GetParticipant(r.Context(), cal.ID, r.PathValue("pid"))
	if err != nil {
		h.storeError(w, r, err, "participant")
		return
	}
	if err := authorizeParticipant(r, participant, req.PIN); err != nil {
		httpx.WriteError(w, http.StatusForbidden, err.Error())
		return
	}

	idx, err := ranking.BuildIndex(cal.Definition)
	if err != nil {
		h.rankingError(w, err)
		return
	}
	keys, invalid := normalizeAvailability(idx, req.Availability)
	if len(invalid) > 0 {
		httpx.WriteErrorDetails(w, http.StatusUnprocessableEntity, "availability outside the calendar", invalid)
		return
	}
	if err := h.store.ReplaceAvailability(r.Context(), cal.ID, participant.ID, keys); err != nil {
		h.storeError(w, r, err, "availability")
		return
	}
	participant.Availability = keys
	httpx.WriteJSON(w, http.StatusOK, toParticipantResponse(participant))
}

func authorizeParticipant(r *http.Request, p model.Participant, pin string) error {
	if p.IsGuest {
		if auth.VerifyPIN(p.PINHash, pin) != nil {
			return errNotYourParticipant
		}
		return nil
	}
	principal, ok := httpx.PrincipalFromContext(r.Context())
	if !ok || principal.UserID != p.UserID {
		return errNotYourParticipant
	}
	return nil
}

// normalizeAvailability maps entries to slot keys in chronological order,
// dropping duplicates.
func normalizeAvailability(idx *ranking.Index, entries []string) (keys, invalid []string) {
	seen := make(map[int]bool, len(entries))
	for _, raw := range entries {
		key, ok := idx.SlotOfString(raw)
		if !ok {
			invalid = append(invalid, raw)
			continue
		}
		pos, _ := idx.Position(key)
		seen[pos] = true
	}
	keys = make([]string, 0, len(seen))
	for i, s := range idx.Slots() {
		if seen[i] {
			keys = append(keys, s.Key)
		}
	}
	return keys, invalid
}
