package ranking

// RankDays ranks single slots by how many participants are available.
//
// Without required ids every slot with at least one participant qualifies.
// With required ids a slot qualifies only when all of them are available, and
// the candidate still lists everyone available at that slot.
func RankDays(idx *Index, avail *AvailabilityIndex, required []string) []Candidate {
	want, ok := avail.resolve(required)
	if !ok {
		return []Candidate{}
	}

	out := []Candidate{}
	for i, s := range idx.slots {
		members := avail.membersAt(i)
		if len(members) == 0 || !containsAll(members, want) {
			continue
		}
		out = append(out, Candidate{
			SlotKey:        s.Key,
			Start:          s.Start,
			Count:          len(members),
			ParticipantIDs: avail.names(members),
			pos:            i,
		})
	}
	return rankCandidates(out)
}
