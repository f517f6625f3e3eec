package model

import (
	"time"

	"github.com/huddlecal/huddle/services/calendar-service/internal/ranking"
)

const (
	StatusOpen      = "open"
	StatusClosed    = "closed"
	StatusConfirmed = "confirmed"
)

// Calendar is a host's proposal as stored. Definition.ID always equals ID.
type Calendar struct {
	ID           string
	HostID       string
	Title        string
	Description  string
	Definition   ranking.Definition
	Status       string
	Confirmation *Confirmation
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// AcceptsAvailability reports whether participants may still join or answer.
func (c Calendar) AcceptsAvailability(now time.Time) bool {
	return c.Status == StatusOpen && !c.Definition.DeadlinePassed(now)
}

type Confirmation struct {
	Start          time.Time
	End            *time.Time
	ParticipantIDs []string
	Metadata       map[string]string
	ConfirmedAt    time.Time
}

type Participant struct {
	ID         string
	CalendarID string
	// UserID is empty for guests.
	UserID       string
	DisplayName  string
	AvatarRef    string
	IsGuest      bool
	PINHash      string
	JoinedAt     time.Time
	Availability []string
	UpdatedAt    time.Time
}

func (p Participant) Ranking() ranking.Participant {
	return ranking.Participant{
		ID:           p.ID,
		DisplayName:  p.DisplayName,
		AvatarRef:    p.AvatarRef,
		IsGuest:      p.IsGuest,
		JoinedAt:     p.JoinedAt,
		Availability: p.Availability,
	}
}

func RankingParticipants(ps []Participant) []ranking.Participant {
	out := make([]ranking.Participant, len(ps))
	for i, p := range ps {
		out[i] = p.Ranking()
	}
	return out
}
