package ranking

import (
	"slices"
	"time"
)

// Clock time used when a day is confirmed without a start time.
const (
	DefaultDayStartHour   = 12
	DefaultDayStartMinute = 0
)

// Confirmation is what the host locks in. End is nil for a day confirmed
// without an end time.
type Confirmation struct {
	Start          time.Time  `json:"final_start"`
	End            *time.Time `json:"final_end"`
	ParticipantIDs []string   `json:"participant_ids"`
}

// Resolve turns the chosen candidate into a confirmed time range.
//
// For DayBased calendars only the wall-clock part of manualStart and manualEnd
// is used and it is applied to the candidate's date. For TimeBased calendars
// the window bounds are used unless overridden, and overrides are taken as
// given. The participant list is copied from the candidate.
func Resolve(c *Candidate, typ CalendarType, manualStart, manualEnd *time.Time) (Confirmation, error) {
	if c == nil {
		return Confirmation{}, ErrNoCandidateSelected
	}

	var conf Confirmation
	switch typ {
	case DayBased:
		if c.SlotKey == "" {
			return Confirmation{}, ErrCandidateMismatch
		}
		day := DateOf(c.Start)
		loc := c.Start.Location()
		conf.Start = day.At(DefaultDayStartHour, DefaultDayStartMinute, loc)
		if manualStart != nil {
			conf.Start = onDay(day, *manualStart, loc)
		}
		if manualEnd != nil {
			end := onDay(day, *manualEnd, loc)
			conf.End = &end
		}
	case TimeBased:
		if c.Window == nil {
			return Confirmation{}, ErrCandidateMismatch
		}
		conf.Start = c.Window.Start
		end := c.Window.End
		if manualStart != nil {
			conf.Start = *manualStart
		}
		if manualEnd != nil {
			end = *manualEnd
		}
		conf.End = &end
	default:
		return Confirmation{}, ErrCandidateMismatch
	}

	if conf.End != nil && !conf.End.After(conf.Start) {
		return Confirmation{}, ErrInvalidRange
	}
	conf.ParticipantIDs = slices.Clone(c.ParticipantIDs)
	if conf.ParticipantIDs == nil {
		conf.ParticipantIDs = []string{}
	}
	return conf, nil
}

func onDay(day Date, clock time.Time, loc *time.Location) time.Time {
	return time.Date(day.Year, day.Month, day.Day, clock.Hour(), clock.Minute(), clock.Second(), 0, loc)
}
