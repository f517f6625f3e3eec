package ranking

import (
	"cmp"
	"slices"
	"time"
)

// Participant is the normalized shape of anyone who answered a calendar,
// whether a signed-in user or a PIN guest.
type Participant struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	AvatarRef   string    `json:"avatar_ref,omitempty"`
	IsGuest     bool      `json:"is_guest"`
	JoinedAt    time.Time `json:"joined_at"`
	// Availability holds ISO-8601 timestamps or date-only strings.
	Availability []string `json:"availability"`
}

// orderParticipants returns participants sorted by (JoinedAt, ID) with
// repeated ids dropped after their first occurrence.
func orderParticipants(ps []Participant) []Participant {
	out := slices.Clone(ps)
	slices.SortStableFunc(out, func(a, b Participant) int {
		if c := a.JoinedAt.Compare(b.JoinedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	seen := make(map[string]struct{}, len(out))
	return slices.DeleteFunc(out, func(p Participant) bool {
		if _, dup := seen[p.ID]; dup {
			return true
		}
		seen[p.ID] = struct{}{}
		return false
	})
}
