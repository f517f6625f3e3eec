package ranking

import "time"

type HistogramEntry struct {
	SlotKey        string    `json:"slot_key"`
	Start          time.Time `json:"start"`
	Count          int       `json:"count"`
	VIPCount       int       `json:"vip_count"`
	ParticipantIDs []string  `json:"participant_ids"`
}

// BuildHistogram emits one entry per slot in chronological order, empty slots
// included. VIPCount counts the available participants that are in vipIDs and
// is always zero when vipIDs is empty.
func BuildHistogram(idx *Index, avail *AvailabilityIndex, vipIDs []string) []HistogramEntry {
	vip := make(map[int]bool, len(vipIDs))
	if avail != nil {
		for _, id := range vipIDs {
			if n, ok := avail.ordinal[id]; ok {
				vip[n] = true
			}
		}
	}

	out := make([]HistogramEntry, len(idx.slots))
	for i, s := range idx.slots {
		members := avail.membersAt(i)
		vipCount := 0
		if len(vip) > 0 {
			for _, n := range members {
				if vip[n] {
					vipCount++
				}
			}
		}
		out[i] = HistogramEntry{
			SlotKey:        s.Key,
			Start:          s.Start,
			Count:          len(members),
			VIPCount:       vipCount,
			ParticipantIDs: avail.names(members),
		}
	}
	return out
}
