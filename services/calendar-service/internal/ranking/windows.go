package ranking

import "math"

// DurationSlots converts a meeting length in hours to whole 30 minute slots,
// rounding a partial slot up. Non-positive input yields 0.
func DurationSlots(hours float64) int {
	if math.IsNaN(hours) || hours <= 0 {
		return 0
	}
	if hours > float64(MaxDays*24) {
		return MaxDays * 48
	}
	return int(math.Ceil(hours*2 - 1e-9))
}

// RankWindows ranks every run of durationSlots contiguous slots by the number
// of participants available for the whole run.
//
// A start position whose run hits a gap (excluded day, end of the daily hours)
// is skipped, not truncated. Required ids gate a window without narrowing its
// participant list. Ties go to the earlier window.
func RankWindows(idx *Index, avail *AvailabilityIndex, durationSlots int, required []string) []Candidate {
	n := len(idx.slots)
	if durationSlots <= 0 || durationSlots > n {
		return []Candidate{}
	}
	want, ok := avail.resolve(required)
	if !ok {
		return []Candidate{}
	}

	run := contiguousRuns(idx.slots)
	out := []Candidate{}
	var cur, next []int
	for i := 0; i+durationSlots <= n; i++ {
		if run[i] < durationSlots {
			continue
		}
		cur = append(cur[:0], avail.membersAt(i)...)
		for j := i + 1; j < i+durationSlots && len(cur) > 0; j++ {
			next = intersectInto(next, cur, avail.membersAt(j))
			cur, next = next, cur
		}
		if len(cur) == 0 || !containsAll(cur, want) {
			continue
		}

		first, last := idx.slots[i], idx.slots[i+durationSlots-1]
		out = append(out, Candidate{
			Window: &Window{
				StartSlotKey: first.Key,
				EndSlotKey:   last.Key,
				Start:        first.Start,
				End:          last.Start.Add(SlotDuration),
			},
			Start:          first.Start,
			Count:          len(cur),
			ParticipantIDs: avail.names(cur),
			pos:            i,
		})
	}
	return rankCandidates(out)
}

// contiguousRuns returns, for each position, how many slots starting there
// follow each other at exactly SlotDuration.
func contiguousRuns(slots []Slot) []int {
	run := make([]int, len(slots))
	for i := len(slots) - 1; i >= 0; i-- {
		run[i] = 1
		if i+1 < len(slots) && slots[i+1].Start.Sub(slots[i].Start) == SlotDuration {
			run[i] = run[i+1] + 1
		}
	}
	return run
}
