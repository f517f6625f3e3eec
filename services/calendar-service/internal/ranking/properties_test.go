package ranking

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// randomCalendar builds a week of 08:00-18:00 slots with a Sunday excluded and
// participants holding random availability, some of it stale.
func randomCalendar(t *testing.T, seed int64, people int) (Definition, []Participant) {
	t.Helper()
	r := rand.New(rand.NewSource(seed))
	def := timeDef(t, "2025-06-01", "2025-06-07", 8, 18)
	def.ExcludedWeekdays = []time.Weekday{time.Sunday}

	idx, err := BuildIndex(def)
	require.NoError(t, err)
	keys := idx.Keys()

	ps := make([]Participant, people)
	for i := range ps {
		var avail []string
		for _, k := range keys {
			if r.Intn(3) > 0 {
				avail = append(avail, k)
			}
		}
		avail = append(avail, "2025-06-01T09:00:00", "2025-07-01T09:00:00", "garbage")
		ps[i] = person(fmt.Sprintf("p%02d", i), r.Intn(5), avail...)
	}
	return def, ps
}

func TestDeterminism(t *testing.T) {
	def, ps := randomCalendar(t, 1, 8)
	req := Request{DurationHours: 1.5, RequiredParticipantIDs: []string{"p03"}, VIPIDs: []string{"p01", "p02"}}

	first, err := json.Marshal(mustEvaluate(t, def, ps, req))
	require.NoError(t, err)

	shuffled := slices.Clone(ps)
	slices.Reverse(shuffled)
	second, err := json.Marshal(mustEvaluate(t, def, shuffled, req))
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
}

func TestCountMonotonicity(t *testing.T) {
	def, ps := randomCalendar(t, 2, 6)
	for _, hours := range []float64{0.5, 1, 2} {
		full := mustEvaluate(t, def, ps, Request{DurationHours: hours})
		fewer := mustEvaluate(t, def, ps[1:], Request{DurationHours: hours})

		before := map[string]int{}
		for _, c := range full.Candidates {
			before[c.Window.StartSlotKey] = c.Count
		}
		for _, c := range fewer.Candidates {
			assert.LessOrEqual(t, c.Count, before[c.Window.StartSlotKey], "window %s", c.Window.StartSlotKey)
		}
		for i, e := range fewer.Histogram {
			assert.LessOrEqual(t, e.Count, full.Histogram[i].Count)
		}
	}
}

func TestRequiredSubsetContained(t *testing.T) {
	def, ps := randomCalendar(t, 3, 6)
	required := []string{"p01", "p04"}
	for _, hours := range []float64{0.5, 1, 3} {
		res := mustEvaluate(t, def, ps, Request{DurationHours: hours, RequiredParticipantIDs: required})
		for _, c := range res.Candidates {
			assert.Subset(t, c.ParticipantIDs, required)
		}
	}

	dayRes := mustEvaluate(t, Definition{Type: DayBased, StartDate: def.StartDate, EndDate: def.EndDate}, []Participant{
		person("a", 0, "2025-06-01", "2025-06-02"),
		person("b", 1, "2025-06-02"),
		person("c", 2, "2025-06-02", "2025-06-03"),
	}, Request{RequiredParticipantIDs: []string{"b"}})
	require.Len(t, dayRes.Candidates, 1)
	assert.Equal(t, []string{"a", "b", "c"}, dayRes.Candidates[0].ParticipantIDs)
}

func TestWindowContiguity(t *testing.T) {
	def, ps := randomCalendar(t, 4, 4)
	def.ExcludedDates = []Date{date(t, "2025-06-04")}
	idx, err := BuildIndex(def)
	require.NoError(t, err)
	avail := idx.Availability(ps)

	for _, slots := range []int{1, 2, 4, 20} {
		for _, c := range RankWindows(idx, avail, slots, nil) {
			from, ok := idx.Position(c.Window.StartSlotKey)
			require.True(t, ok)
			to, ok := idx.Position(c.Window.EndSlotKey)
			require.True(t, ok)
			require.Equal(t, slots-1, to-from)
			for i := from; i < to; i++ {
				assert.Equal(t, SlotDuration, idx.Slots()[i+1].Start.Sub(idx.Slots()[i].Start))
			}
			assert.Equal(t, time.Duration(slots)*SlotDuration, c.Window.End.Sub(c.Window.Start))
		}
	}
	// A day holds 20 slots, so 21 cannot fit without crossing a gap.
	assert.Empty(t, RankWindows(idx, avail, 21, nil))
}

func TestHistogramTotality(t *testing.T) {
	def, ps := randomCalendar(t, 5, 5)
	idx, err := BuildIndex(def)
	require.NoError(t, err)
	hist := BuildHistogram(idx, idx.Availability(ps), nil)

	require.Len(t, hist, idx.Len())
	assert.Equal(t, 6*20, len(hist))
	for i, e := range hist {
		assert.Equal(t, idx.Slots()[i].Key, e.SlotKey)
		assert.Zero(t, e.VIPCount)
		if i > 0 {
			assert.True(t, hist[i-1].Start.Before(e.Start))
			assert.Less(t, hist[i-1].SlotKey, e.SlotKey)
		}
	}
}

func TestTieBreakChronological(t *testing.T) {
	def, ps := randomCalendar(t, 6, 7)
	res := mustEvaluate(t, def, ps, Request{DurationHours: 1})
	require.NotEmpty(t, res.Candidates)
	for i := 1; i < len(res.Candidates); i++ {
		prev, cur := res.Candidates[i-1], res.Candidates[i]
		assert.Equal(t, i+1, cur.Rank)
		assert.GreaterOrEqual(t, prev.Count, cur.Count)
		if prev.Count == cur.Count {
			assert.True(t, prev.Start.Before(cur.Start), "rank %d and %d out of order", prev.Rank, cur.Rank)
		}
	}
}
