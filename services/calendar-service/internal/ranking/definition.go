package ranking

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidDefinition   = errors.New("invalid calendar definition")
	ErrNoCandidateSelected = errors.New("no candidate selected")
	ErrCandidateMismatch   = errors.New("candidate does not match calendar type")
	ErrInvalidRange        = errors.New("confirmed end must be after start")
)

// MaxDays bounds the date range of a single calendar.
const MaxDays = 366

// SlotDuration is the length of one TimeBased slot.
const SlotDuration = 30 * time.Minute

type CalendarType int

const (
	DayBased CalendarType = iota + 1
	TimeBased
)

// ParseCalendarType accepts the canonical names and the legacy spellings
// still found in stored calendars.
func ParseCalendarType(s string) (CalendarType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "day", "date", "monthly":
		return DayBased, nil
	case "time", "datetime", "weekly":
		return TimeBased, nil
	}
	return 0, fmt.Errorf("%w: unknown calendar type %q", ErrInvalidDefinition, s)
}

func (t CalendarType) String() string {
	switch t {
	case DayBased:
		return "day"
	case TimeBased:
		return "time"
	}
	return fmt.Sprintf("CalendarType(%d)", int(t))
}

func (t CalendarType) Valid() bool {
	return t == DayBased || t == TimeBased
}

func (t CalendarType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: unknown calendar type %d", ErrInvalidDefinition, int(t))
	}
	return []byte(t.String()), nil
}

func (t *CalendarType) UnmarshalText(b []byte) error {
	parsed, err := ParseCalendarType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// HourRange is the daily active window [Start, End). End may be 24.
type HourRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

type Definition struct {
	ID               string         `json:"id"`
	Type             CalendarType   `json:"type"`
	StartDate        Date           `json:"start_date"`
	EndDate          Date           `json:"end_date"`
	Hours            *HourRange     `json:"hours,omitempty"`
	ExcludedWeekdays []time.Weekday `json:"excluded_weekdays,omitempty"`
	ExcludedDates    []Date         `json:"excluded_dates,omitempty"`
	Deadline         *time.Time     `json:"deadline,omitempty"`
	// TimeZone is an IANA zone name; empty means UTC.
	TimeZone string `json:"time_zone,omitempty"`
}

// Validate reports the first problem found, wrapped in ErrInvalidDefinition.
func (d Definition) Validate() error {
	_, err := d.location()
	return err
}

func (d Definition) location() (*time.Location, error) {
	if !d.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown calendar type %d", ErrInvalidDefinition, int(d.Type))
	}
	if d.StartDate.IsZero() || d.EndDate.IsZero() {
		return nil, fmt.Errorf("%w: start and end dates are required", ErrInvalidDefinition)
	}
	if d.EndDate.Before(d.StartDate) {
		return nil, fmt.Errorf("%w: start date %s is after end date %s", ErrInvalidDefinition, d.StartDate, d.EndDate)
	}
	if d.StartDate.AddDays(MaxDays - 1).Before(d.EndDate) {
		return nil, fmt.Errorf("%w: range exceeds %d days", ErrInvalidDefinition, MaxDays)
	}
	if d.Type == TimeBased {
		if d.Hours == nil {
			return nil, fmt.Errorf("%w: time calendars require hours", ErrInvalidDefinition)
		}
		if d.Hours.Start < 0 || d.Hours.End > 24 || d.Hours.Start >= d.Hours.End {
			return nil, fmt.Errorf("%w: invalid hours %d-%d", ErrInvalidDefinition, d.Hours.Start, d.Hours.End)
		}
	}
	for _, wd := range d.ExcludedWeekdays {
		if wd < time.Sunday || wd > time.Saturday {
			return nil, fmt.Errorf("%w: invalid weekday %d", ErrInvalidDefinition, int(wd))
		}
	}
	if d.TimeZone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(d.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("%w: time zone %q: %v", ErrInvalidDefinition, d.TimeZone, err)
	}
	return loc, nil
}

// DeadlinePassed reports whether submissions are closed at now.
func (d Definition) DeadlinePassed(now time.Time) bool {
	return d.Deadline != nil && !now.Before(*d.Deadline)
}
