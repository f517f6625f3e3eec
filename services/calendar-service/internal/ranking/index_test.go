package ranking

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCalendarType(t *testing.T) {
	cases := map[string]CalendarType{
		"day": DayBased, "date": DayBased, "Monthly": DayBased,
		"time": TimeBased, "datetime": TimeBased, " weekly ": TimeBased,
	}
	for in, want := range cases {
		got, err := ParseCalendarType(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseCalendarType("yearly")
	assert.ErrorIs(t, err, ErrInvalidDefinition)
}

func TestDefinitionValidate(t *testing.T) {
	cases := []struct {
		name string
		mut  func(*Definition)
	}{
		{"start after end", func(d *Definition) { d.StartDate, d.EndDate = d.EndDate, d.StartDate }},
		{"missing type", func(d *Definition) { d.Type = 0 }},
		{"missing hours", func(d *Definition) { d.Hours = nil }},
		{"empty hours", func(d *Definition) { d.Hours = &HourRange{Start: 10, End: 10} }},
		{"hour past midnight", func(d *Definition) { d.Hours = &HourRange{Start: 9, End: 25} }},
		{"bad weekday", func(d *Definition) { d.ExcludedWeekdays = []time.Weekday{7} }},
		{"bad zone", func(d *Definition) { d.TimeZone = "Mars/Olympus" }},
		{"too long", func(d *Definition) { d.EndDate = d.StartDate.AddDays(MaxDays) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			def := timeDef(t, "2025-06-01", "2025-06-03", 9, 12)
			tc.mut(&def)
			_, err := BuildIndex(def)
			assert.ErrorIs(t, err, ErrInvalidDefinition)
			_, err = Evaluate(def, nil, Request{})
			assert.ErrorIs(t, err, ErrInvalidDefinition)
		})
	}

	ok := timeDef(t, "2025-06-01", "2025-06-01", 0, 24)
	require.NoError(t, ok.Validate())
	idx, err := BuildIndex(ok)
	require.NoError(t, err)
	assert.Equal(t, 48, idx.Len())
	assert.Equal(t, "2025-06-01T23:30:00", idx.Keys()[47])
}

func TestDayBasedIgnoresHours(t *testing.T) {
	def := dayDef(t, "2025-06-01", "2025-06-07")
	def.ExcludedWeekdays = []time.Weekday{time.Saturday, time.Sunday}
	def.ExcludedDates = []Date{date(t, "2025-06-03")}
	idx, err := BuildIndex(def)
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-06-02", "2025-06-04", "2025-06-05", "2025-06-06"}, idx.Keys())
}

func TestSlotOf(t *testing.T) {
	idx, err := BuildIndex(timeDef(t, "2025-06-01", "2025-06-02", 9, 12))
	require.NoError(t, err)

	cases := map[string]string{
		"2025-06-01T09:00:00":       "2025-06-01T09:00:00",
		"2025-06-01T09:29:59":       "2025-06-01T09:00:00",
		"2025-06-01T09:45":          "2025-06-01T09:30:00",
		"2025-06-02 11:59:00":       "2025-06-02T11:30:00",
		"2025-06-01T10:15:00Z":      "2025-06-01T10:00:00",
		"2025-06-01T12:15:00+02:00": "2025-06-01T10:00:00",
		"2025-06-01T09:00:00.000Z":  "2025-06-01T09:00:00",
	}
	for raw, want := range cases {
		got, ok := idx.SlotOfString(raw)
		require.True(t, ok, raw)
		assert.Equal(t, want, got, raw)
	}

	for _, raw := range []string{"2025-06-01T12:00:00", "2025-06-01T08:59:00", "2025-06-03T09:00:00", "2025-06-01", "", "soon"} {
		_, ok := idx.SlotOfString(raw)
		assert.False(t, ok, raw)
	}
}

func TestSlotOfInTimeZone(t *testing.T) {
	def := timeDef(t, "2025-06-01", "2025-06-01", 9, 10)
	def.TimeZone = "America/New_York"
	idx, err := BuildIndex(def)
	require.NoError(t, err)

	key, ok := idx.SlotOf(time.Date(2025, 6, 1, 13, 40, 0, 0, time.UTC))
	require.True(t, ok)
	assert.Equal(t, "2025-06-01T09:30:00", key)

	dayIdx, err := BuildIndex(Definition{Type: DayBased, StartDate: date(t, "2025-06-01"), EndDate: date(t, "2025-06-01"), TimeZone: "Asia/Tokyo"})
	require.NoError(t, err)
	_, ok = dayIdx.SlotOfString("2025-05-31T16:00:00Z")
	assert.True(t, ok, "16:00 UTC is the next morning in Tokyo")
}

func TestDSTGapSlotsAreNotMaterialized(t *testing.T) {
	// Clocks in New York jump from 02:00 to 03:00 on 2025-03-09.
	def := timeDef(t, "2025-03-09", "2025-03-09", 1, 4)
	def.TimeZone = "America/New_York"
	idx, err := BuildIndex(def)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"2025-03-09T01:00:00", "2025-03-09T01:30:00", "2025-03-09T03:00:00", "2025-03-09T03:30:00",
	}, idx.Keys())

	// 01:30 and 03:00 are 30 real minutes apart and therefore contiguous.
	windows := RankWindows(idx, idx.Availability([]Participant{
		person("a", 0, "2025-03-09T01:30:00", "2025-03-09T03:00:00"),
	}), 2, nil)
	require.Len(t, windows, 1)
	assert.Equal(t, "2025-03-09T01:30:00", windows[0].Window.StartSlotKey)
}

func TestAvailabilityCollapsesDuplicates(t *testing.T) {
	idx, err := BuildIndex(timeDef(t, "2025-06-01", "2025-06-01", 9, 10))
	require.NoError(t, err)
	avail := idx.Availability([]Participant{
		person("b", 5, "2025-06-01T09:00:00", "2025-06-01T09:10:00", "2025-06-01T09:00:00Z"),
		person("a", 5, "2025-06-01T09:05:00"),
		person("b", 9, "2025-06-01T09:30:00"),
	})
	assert.Equal(t, []string{"a", "b"}, avail.At(0))
	assert.Empty(t, avail.At(1), "second record for b is dropped")
	assert.Equal(t, []string{"a", "b"}, avail.Participants())
	assert.Zero(t, avail.StaleCount())
	assert.Empty(t, avail.At(99))
}

func TestHistogramVIPCount(t *testing.T) {
	idx, err := BuildIndex(dayDef(t, "2025-06-01", "2025-06-02"))
	require.NoError(t, err)
	avail := idx.Availability([]Participant{
		person("a", 0, "2025-06-01", "2025-06-02"),
		person("b", 1, "2025-06-01"),
		person("c", 2, "2025-06-01"),
	})
	hist := BuildHistogram(idx, avail, []string{"b", "c", "ghost"})
	assert.Equal(t, 2, hist[0].VIPCount)
	assert.Equal(t, 0, hist[1].VIPCount)
	assert.Equal(t, 3, hist[0].Count)
}

func TestRankingEdgeCases(t *testing.T) {
	idx, err := BuildIndex(timeDef(t, "2025-06-01", "2025-06-01", 9, 12))
	require.NoError(t, err)
	avail := idx.Availability(scenarioTwo())

	assert.Empty(t, RankWindows(idx, avail, 0, nil))
	assert.Empty(t, RankWindows(idx, avail, -1, nil))
	assert.Empty(t, RankWindows(idx, avail, 7, nil))
	assert.Empty(t, RankWindows(idx, avail, 2, []string{"nobody"}))
	assert.Empty(t, RankDays(idx, avail, []string{"nobody"}))

	assert.Equal(t, 0, DurationSlots(0))
	assert.Equal(t, 0, DurationSlots(-2))
	assert.Equal(t, 2, DurationSlots(1))
	assert.Equal(t, 3, DurationSlots(1.5))
	assert.Equal(t, 3, DurationSlots(1.25))
}

func TestResolve(t *testing.T) {
	_, err := Resolve(nil, DayBased, nil, nil)
	assert.True(t, errors.Is(err, ErrNoCandidateSelected))

	idx, err := BuildIndex(timeDef(t, "2025-06-01", "2025-06-01", 9, 12))
	require.NoError(t, err)
	windows := RankWindows(idx, idx.Availability(scenarioTwo()), 2, nil)
	top := &windows[0]

	conf, err := Resolve(top, TimeBased, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, top.Window.Start, conf.Start)
	require.NotNil(t, conf.End)
	assert.Equal(t, top.Window.End, *conf.End)

	override := time.Date(2025, 6, 1, 9, 45, 0, 0, time.UTC)
	conf, err = Resolve(top, TimeBased, &override, nil)
	require.NoError(t, err)
	assert.Equal(t, override, conf.Start)

	top.ParticipantIDs[0] = "mutated"
	assert.Equal(t, "alice", conf.ParticipantIDs[0], "participants are frozen at resolution")

	early := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	_, err = Resolve(top, TimeBased, nil, &early)
	assert.ErrorIs(t, err, ErrInvalidRange)

	_, err = Resolve(top, DayBased, nil, nil)
	assert.ErrorIs(t, err, ErrCandidateMismatch)

	day := &Candidate{SlotKey: "2025-06-02", Start: time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)}
	conf, err = Resolve(day, DayBased, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC), conf.Start)
	assert.Equal(t, []string{}, conf.ParticipantIDs)

	end := time.Date(1, 1, 1, 13, 30, 0, 0, time.UTC)
	conf, err = Resolve(day, DayBased, nil, &end)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 2, 13, 30, 0, 0, time.UTC), *conf.End)
}

func TestDefinitionJSON(t *testing.T) {
	raw := `{"id":"c1","type":"weekly","start_date":"2025-06-01","end_date":"2025-06-02","hours":{"start":9,"end":17},"excluded_dates":["2025-06-02"]}`
	var def Definition
	require.NoError(t, json.Unmarshal([]byte(raw), &def))
	assert.Equal(t, TimeBased, def.Type)
	assert.Equal(t, Date{Year: 2025, Month: time.June, Day: 2}, def.ExcludedDates[0])

	b, err := json.Marshal(def)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"type":"time"`)
}
