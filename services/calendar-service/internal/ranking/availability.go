package ranking

import "slices"

// AvailabilityIndex maps every slot of an Index to the participants available
// in it. Participants are stored as ordinals into the (JoinedAt, ID) order so
// every list is already sorted and intersections are linear merges.
type AvailabilityIndex struct {
	ids     []string
	ordinal map[string]int
	members [][]int
	stale   int
}

// StaleEntry is an availability value that no longer maps onto the slot
// universe, typically because the calendar was edited after submission.
type StaleEntry struct {
	ParticipantID string `json:"participant_id"`
	Value         string `json:"value"`
}

// Availability builds the reverse index. Stale entries are skipped and
// duplicate entries for one slot collapse.
func (x *Index) Availability(participants []Participant) *AvailabilityIndex {
	ordered := orderParticipants(participants)
	a := &AvailabilityIndex{
		ids:     make([]string, len(ordered)),
		ordinal: make(map[string]int, len(ordered)),
		members: make([][]int, len(x.slots)),
	}
	for n, p := range ordered {
		a.ids[n] = p.ID
		a.ordinal[p.ID] = n
		last := make(map[int]bool, len(p.Availability))
		for _, raw := range p.Availability {
			key, ok := x.SlotOfString(raw)
			if !ok {
				a.stale++
				continue
			}
			i := x.pos[key]
			if last[i] {
				continue
			}
			last[i] = true
			a.members[i] = append(a.members[i], n)
		}
	}
	return a
}

// Stale lists, per participant in (JoinedAt, ID) order, the entries that do
// not resolve to a slot. Each distinct value is reported once per participant.
func (x *Index) Stale(participants []Participant) []StaleEntry {
	var out []StaleEntry
	for _, p := range orderParticipants(participants) {
		seen := map[string]bool{}
		for _, raw := range p.Availability {
			if _, ok := x.SlotOfString(raw); ok || seen[raw] {
				continue
			}
			seen[raw] = true
			out = append(out, StaleEntry{ParticipantID: p.ID, Value: raw})
		}
	}
	return out
}

// StaleCount is the number of entries skipped while indexing.
func (a *AvailabilityIndex) StaleCount() int { return a.stale }

// Participants returns the indexed ids in (JoinedAt, ID) order.
func (a *AvailabilityIndex) Participants() []string { return slices.Clone(a.ids) }

// At returns the ids available at slot position i.
func (a *AvailabilityIndex) At(i int) []string {
	return a.names(a.membersAt(i))
}

// membersAt tolerates an index built for a different universe.
func (a *AvailabilityIndex) membersAt(i int) []int {
	if a == nil || i < 0 || i >= len(a.members) {
		return nil
	}
	return a.members[i]
}

func (a *AvailabilityIndex) names(ordinals []int) []string {
	out := make([]string, len(ordinals))
	for k, n := range ordinals {
		out[k] = a.ids[n]
	}
	return out
}

// resolve maps ids onto ordinals. ok is false when an id is not a participant,
// in which case no slot can contain it.
func (a *AvailabilityIndex) resolve(ids []string) (ordinals []int, ok bool) {
	if a == nil {
		return nil, len(ids) == 0
	}
	for _, id := range ids {
		n, found := a.ordinal[id]
		if !found {
			return nil, false
		}
		ordinals = append(ordinals, n)
	}
	slices.Sort(ordinals)
	return slices.Compact(ordinals), true
}

// containsAll reports whether sorted set holds every element of sorted want.
func containsAll(set, want []int) bool {
	j := 0
	for _, w := range want {
		for j < len(set) && set[j] < w {
			j++
		}
		if j == len(set) || set[j] != w {
			return false
		}
	}
	return true
}

// intersectInto writes a ∩ b into dst[:0] and returns it. Both inputs are sorted.
func intersectInto(dst, a, b []int) []int {
	dst = dst[:0]
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			i++
		case a[i] > b[j]:
			j++
		default:
			dst = append(dst, a[i])
			i++
			j++
		}
	}
	return dst
}
