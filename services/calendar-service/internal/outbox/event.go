package outbox

import (
	"encoding/json"
	"time"
)

// Event is a row of the outbox table. The Kafka topic is EventType.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

const (
	AggregateCalendar = "calendar"

	EventMeetingConfirmed   = "calendar.meeting.confirmed.v1"
	EventDeadlineReached    = "calendar.deadline.reached.v1"
	EventAvailabilityPurged = "calendar.availability.purged.v1"
)

type MeetingConfirmed struct {
	CalendarID     string            `json:"calendar_id"`
	HostID         string            `json:"host_id"`
	FinalStart     time.Time         `json:"final_start"`
	FinalEnd       *time.Time        `json:"final_end"`
	ParticipantIDs []string          `json:"participant_ids"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

type DeadlineReached struct {
	CalendarID string    `json:"calendar_id"`
	HostID     string    `json:"host_id"`
	Deadline   time.Time `json:"deadline"`
}

type AvailabilityPurged struct {
	CalendarID     string   `json:"calendar_id"`
	ParticipantIDs []string `json:"participant_ids"`
	TypeChanged    bool     `json:"type_changed"`
}

// NewCalendarEvent marshals payload into an event on calendar id.
func NewCalendarEvent(eventType, calendarID string, payload any) (Event, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		AggregateType: AggregateCalendar,
		AggregateID:   calendarID,
		EventType:     eventType,
		Payload:       b,
	}, nil
}
