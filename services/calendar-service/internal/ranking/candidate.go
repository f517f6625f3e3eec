package ranking

import (
	"cmp"
	"slices"
	"time"
)

// Window is a contiguous run of TimeBased slots. End is exclusive.
type Window struct {
	StartSlotKey string    `json:"start_slot_key"`
	EndSlotKey   string    `json:"end_slot_key"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
}

// Candidate is a ranked day (SlotKey set) or window (Window set).
type Candidate struct {
	Rank           int       `json:"rank"`
	SlotKey        string    `json:"slot_key,omitempty"`
	Window         *Window   `json:"window,omitempty"`
	Start          time.Time `json:"start"`
	Count          int       `json:"count"`
	ParticipantIDs []string  `json:"participant_ids"`

	pos int
}

// rankCandidates sorts by count descending then by slot position, and
// assigns dense 1-based ranks.
func rankCandidates(cs []Candidate) []Candidate {
	slices.SortFunc(cs, func(a, b Candidate) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.pos, b.pos)
	})
	for i := range cs {
		cs[i].Rank = i + 1
	}
	return cs
}
