package handlers

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/huddlecal/huddle/services/calendar-service/internal/model"
	"github.com/huddlecal/huddle/services/calendar-service/internal/storage"
)

type memStore struct {
	mu           sync.Mutex
	seq          int
	clock        time.Time
	calendars    map[string]model.Calendar
	participants map[string][]model.Participant
	purges       []model.EditPlan
}

func newMemStore() *memStore {
	return &memStore{
		clock:        time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC),
		calendars:    map[string]model.Calendar{},
		participants: map[string][]model.Participant{},
	}
}

func (s *memStore) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%d", prefix, s.seq)
}

func (s *memStore) tick() time.Time {
	s.clock = s.clock.Add(time.Minute)
	return s.clock
}

func (s *memStore) CreateCalendar(_ context.Context, c *model.Calendar) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = s.nextID("cal")
	c.Definition.ID = c.ID
	c.Status = model.StatusOpen
	c.CreatedAt = s.tick()
	c.UpdatedAt = c.CreatedAt
	s.calendars[c.ID] = *c
	return nil
}

func (s *memStore) GetCalendar(_ context.Context, id string) (model.Calendar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.calendars[id]
	if !ok {
		return model.Calendar{}, storage.ErrNotFound
	}
	return c, nil
}

func (s *memStore) UpdateCalendar(_ context.Context, c model.Calendar, plan model.EditPlan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.calendars[c.ID]; !ok || cur.Status != model.StatusOpen {
		return storage.ErrConflict
	}
	s.calendars[c.ID] = c
	for pid, availability := range plan.Availability {
		s.setAvailability(c.ID, pid, availability)
	}
	if len(plan.Conflicts) > 0 {
		s.purges = append(s.purges, plan)
	}
	return nil
}

func (s *memStore) ListParticipants(_ context.Context, calendarID string) ([]model.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.participants[calendarID]), nil
}

func (s *memStore) AddParticipant(_ context.Context, p *model.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.participants[p.CalendarID] {
		if (p.UserID != "" && existing.UserID == p.UserID) ||
			(p.IsGuest && existing.IsGuest && strings.EqualFold(existing.DisplayName, p.DisplayName)) {
			return storage.ErrConflict
		}
	}
	p.ID = s.nextID("p")
	p.JoinedAt = s.tick()
	s.participants[p.CalendarID] = append(s.participants[p.CalendarID], *p)
	return nil
}

func (s *memStore) find(calendarID string, match func(model.Participant) bool) (model.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.participants[calendarID] {
		if match(p) {
			return p, nil
		}
	}
	return model.Participant{}, storage.ErrNotFound
}

func (s *memStore) GetParticipant(_ context.Context, calendarID, participantID string) (model.Participant, error) {
	return s.find(calendarID, func(p model.Participant) bool { return p.ID == participantID })
}

func (s *memStore) FindParticipantByUser(_ context.Context, calendarID, userID string) (model.Participant, error) {
	return s.find(calendarID, func(p model.Participant) bool { return p.UserID == userID })
}

func (s *memStore) FindGuest(_ context.Context, calendarID, displayName string) (model.Participant, error) {
	return s.find(calendarID, func(p model.Participant) bool {
		return p.IsGuest && strings.EqualFold(p.DisplayName, displayName)
	})
}

func (s *memStore) ReplaceAvailability(_ context.Context, calendarID, participantID string, availability []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calendars[calendarID].Status != model.StatusOpen {
		return storage.ErrConflict
	}
	if !s.setAvailability(calendarID, participantID, availability) {
		return storage.ErrNotFound
	}
	return nil
}

func (s *memStore) setAvailability(calendarID, participantID string, availability []string) bool {
	ps := s.participants[calendarID]
	for i := range ps {
		if ps[i].ID == participantID {
			ps[i].Availability = slices.Clone(availability)
			return true
		}
	}
	return false
}

func (s *memStore) Confirm(_ context.Context, calendarID string, conf model.Confirmation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.calendars[calendarID]
	if !ok || c.Status == model.StatusConfirmed {
		return storage.ErrConflict
	}
	c.Status = model.StatusConfirmed
	c.Confirmation = &conf
	s.calendars[calendarID] = c
	return nil
}
