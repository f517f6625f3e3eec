package ranking

import (
	"strings"
	"time"
)

const timeKeyLayout = "2006-01-02T15:04:05"

// Slot is one materialized unit of candidate time.
type Slot struct {
	Key   string    `json:"key"`
	Start time.Time `json:"start"`
}

// Index is the ordered slot universe of one calendar definition.
type Index struct {
	typ   CalendarType
	loc   *time.Location
	slots []Slot
	pos   map[string]int
}

// BuildIndex validates def and materializes its slots in chronological order.
func BuildIndex(def Definition) (*Index, error) {
	loc, err := def.location()
	if err != nil {
		return nil, err
	}

	excludedDays := make(map[time.Weekday]bool, len(def.ExcludedWeekdays))
	for _, wd := range def.ExcludedWeekdays {
		excludedDays[wd] = true
	}
	excludedDates := make(map[Date]bool, len(def.ExcludedDates))
	for _, d := range def.ExcludedDates {
		excludedDates[d] = true
	}

	idx := &Index{typ: def.Type, loc: loc, pos: map[string]int{}}
	for day := def.StartDate; !def.EndDate.Before(day); day = day.AddDays(1) {
		if excludedDays[day.Weekday()] || excludedDates[day] {
			continue
		}
		if def.Type == DayBased {
			idx.add(Slot{Key: day.String(), Start: day.At(0, 0, loc)})
			continue
		}
		for h := def.Hours.Start; h < def.Hours.End; h++ {
			for _, m := range [2]int{0, 30} {
				start := day.At(h, m, loc)
				// Wall-clock times skipped by a DST transition do not exist.
				if start.Hour() != h || start.Minute() != m || DateOf(start) != day {
					continue
				}
				idx.add(Slot{Key: start.Format(timeKeyLayout), Start: start})
			}
		}
	}
	return idx, nil
}

func (x *Index) add(s Slot) {
	if _, ok := x.pos[s.Key]; ok {
		return
	}
	x.pos[s.Key] = len(x.slots)
	x.slots = append(x.slots, s)
}

func (x *Index) Type() CalendarType { return x.typ }

func (x *Index) Location() *time.Location { return x.loc }

func (x *Index) Len() int { return len(x.slots) }

// Slots returns the universe in chronological order. Callers must not modify it.
func (x *Index) Slots() []Slot { return x.slots }

func (x *Index) Keys() []string {
	keys := make([]string, len(x.slots))
	for i, s := range x.slots {
		keys[i] = s.Key
	}
	return keys
}

// Position returns the chronological position of key.
func (x *Index) Position(key string) (int, bool) {
	i, ok := x.pos[key]
	return i, ok
}

// SlotOf truncates t to its day or 30 minute interval in the calendar's
// location and returns the slot key if that slot exists.
func (x *Index) SlotOf(t time.Time) (string, bool) {
	lt := t.In(x.loc)
	var key string
	if x.typ == DayBased {
		key = lt.Format(dateLayout)
	} else {
		y, mo, d := lt.Date()
		key = time.Date(y, mo, d, lt.Hour(), lt.Minute()/30*30, 0, 0, x.loc).Format(timeKeyLayout)
	}
	if _, ok := x.pos[key]; !ok {
		return "", false
	}
	return key, true
}

var localLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// SlotOfString resolves a raw availability entry. Timestamps with an offset
// are converted to the calendar location; timestamps without one are read as
// wall-clock time there. Date-only entries resolve on DayBased calendars only,
// since a day does not identify a 30 minute interval.
func (x *Index) SlotOfString(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return x.SlotOf(t)
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, raw, x.loc); err == nil {
			return x.SlotOf(t)
		}
	}
	if d, err := ParseDate(raw); err == nil && x.typ == DayBased {
		key := d.String()
		if _, ok := x.pos[key]; ok {
			return key, true
		}
	}
	return "", false
}
