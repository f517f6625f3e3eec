package handlers

import (
	"fmt"
	"strings"
	"time"

	"github.com/huddlecal/huddle/services/calendar-service/internal/model"
	"github.com/huddlecal/huddle/services/calendar-service/internal/ranking"
)

type calendarRequest struct {
	Title            string   `json:"title"`
	Description      string   `json:"description"`
	Type             string   `json:"type"`
	StartDate        string   `json:"start_date"`
	EndDate          string   `json:"end_date"`
	StartHour        *int     `json:"start_hour,omitempty"`
	EndHour          *int     `json:"end_hour,omitempty"`
	ExcludedWeekdays []int    `json:"excluded_weekdays,omitempty"`
	ExcludedDates    []string `json:"excluded_dates,omitempty"`
	Deadline         string   `json:"deadline,omitempty"`
	TimeZone         string   `json:"time_zone,omitempty"`
}

// definition converts the request and validates it.
func (req calendarRequest) definition() (ranking.Definition, error) {
	var def ranking.Definition
	var err error
	if def.Type, err = ranking.ParseCalendarType(req.Type); err != nil {
		return def, err
	}
	if def.StartDate, err = ranking.ParseDate(strings.TrimSpace(req.StartDate)); err != nil {
		return def, fmt.Errorf("%w: start_date: %v", ranking.ErrInvalidDefinition, err)
	}
	if def.EndDate, err = ranking.ParseDate(strings.TrimSpace(req.EndDate)); err != nil {
		return def, fmt.Errorf("%w: end_date: %v", ranking.ErrInvalidDefinition, err)
	}
	if req.StartHour != nil || req.EndHour != nil {
		if req.StartHour == nil || req.EndHour == nil {
			return def, fmt.Errorf("%w: start_hour and end_hour go together", ranking.ErrInvalidDefinition)
		}
		if def.Type == ranking.TimeBased {
			def.Hours = &ranking.HourRange{Start: *req.StartHour, End: *req.EndHour}
		}
	}
	for _, wd := range req.ExcludedWeekdays {
		def.ExcludedWeekdays = append(def.ExcludedWeekdays, time.Weekday(wd))
	}
	for _, raw := range req.ExcludedDates {
		d, err := ranking.ParseDate(strings.TrimSpace(raw))
		if err != nil {
			return def, fmt.Errorf("%w: excluded_dates: %v", ranking.ErrInvalidDefinition, err)
		}
		def.ExcludedDates = append(def.ExcludedDates, d)
	}
	if strings.TrimSpace(req.Deadline) != "" {
		deadline, err := time.Parse(time.RFC3339, strings.TrimSpace(req.Deadline))
		if err != nil {
			return def, fmt.Errorf("%w: deadline must be RFC3339", ranking.ErrInvalidDefinition)
		}
		def.Deadline = &deadline
	}
	def.TimeZone = strings.TrimSpace(req.TimeZone)
	return def, def.Validate()
}

type participantResponse struct {
	ID           string   `json:"id"`
	DisplayName  string   `json:"display_name"`
	AvatarRef    string   `json:"avatar_ref,omitempty"`
	IsGuest      bool     `json:"is_guest"`
	JoinedAt     string   `json:"joined_at"`
	Availability []string `json:"availability"`
}

type confirmationResponse struct {
	FinalStart     string            `json:"final_start"`
	FinalEnd       *string           `json:"final_end"`
	ParticipantIDs []string          `json:"participant_ids"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	ConfirmedAt    string            `json:"confirmed_at,omitempty"`
}

type calendarResponse struct {
	ID               string                `json:"id"`
	HostID           string                `json:"host_id"`
	Title            string                `json:"title"`
	Description      string                `json:"description"`
	Type             string                `json:"type"`
	StartDate        string                `json:"start_date"`
	EndDate          string                `json:"end_date"`
	StartHour        *int                  `json:"start_hour,omitempty"`
	EndHour          *int                  `json:"end_hour,omitempty"`
	ExcludedWeekdays []int                 `json:"excluded_weekdays"`
	ExcludedDates    []string              `json:"excluded_dates"`
	Deadline         *string               `json:"deadline"`
	TimeZone         string                `json:"time_zone,omitempty"`
	Status           string                `json:"status"`
	Confirmation     *confirmationResponse `json:"confirmation,omitempty"`
	Participants     []participantResponse `json:"participants,omitempty"`
	CreatedAt        string                `json:"created_at"`
}

func toCalendarResponse(c model.Calendar, ps []model.Participant) calendarResponse {
	def := c.Definition
	resp := calendarResponse{
		ID:               c.ID,
		HostID:           c.HostID,
		Title:            c.Title,
		Description:      c.Description,
		Type:             def.Type.String(),
		StartDate:        def.StartDate.String(),
		EndDate:          def.EndDate.String(),
		ExcludedWeekdays: make([]int, 0, len(def.ExcludedWeekdays)),
		ExcludedDates:    make([]string, 0, len(def.ExcludedDates)),
		TimeZone:         def.TimeZone,
		Status:           c.Status,
		CreatedAt:        c.CreatedAt.UTC().Format(time.RFC3339),
	}
	if def.Hours != nil {
		start, end := def.Hours.Start, def.Hours.End
		resp.StartHour, resp.EndHour = &start, &end
	}
	for _, wd := range def.ExcludedWeekdays {
		resp.ExcludedWeekdays = append(resp.ExcludedWeekdays, int(wd))
	}
	for _, d := range def.ExcludedDates {
		resp.ExcludedDates = append(resp.ExcludedDates, d.String())
	}
	if def.Deadline != nil {
		s := def.Deadline.UTC().Format(time.RFC3339)
		resp.Deadline = &s
	}
	if c.Confirmation != nil {
		resp.Confirmation = toConfirmationResponse(*c.Confirmation)
	}
	for _, p := range ps {
		resp.Participants = append(resp.Participants, toParticipantResponse(p))
	}
	return resp
}

func toParticipantResponse(p model.Participant) participantResponse {
	availability := p.Availability
	if availability == nil {
		availability = []string{}
	}
	return participantResponse{
		ID:           p.ID,
		DisplayName:  p.DisplayName,
		AvatarRef:    p.AvatarRef,
		IsGuest:      p.IsGuest,
		JoinedAt:     p.JoinedAt.UTC().Format(time.RFC3339),
		Availability: availability,
	}
}

func toConfirmationResponse(c model.Confirmation) *confirmationResponse {
	resp := &confirmationResponse{
		FinalStart:     c.Start.Format(time.RFC3339),
		ParticipantIDs: c.ParticipantIDs,
		Metadata:       c.Metadata,
	}
	if c.End != nil {
		s := c.End.Format(time.RFC3339)
		resp.FinalEnd = &s
	}
	if !c.ConfirmedAt.IsZero() {
		resp.ConfirmedAt = c.ConfirmedAt.UTC().Format(time.RFC3339)
	}
	if resp.ParticipantIDs == nil {
		resp.ParticipantIDs = []string{}
	}
	return resp
}

// splitIDs parses a comma separated query value.
func splitIDs(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
