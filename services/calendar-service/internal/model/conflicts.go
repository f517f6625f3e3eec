package model

import (
	"github.com/huddlecal/huddle/services/calendar-service/internal/ranking"
)

// Conflict describes availability that an edited definition would orphan.
type Conflict struct {
	ParticipantID string   `json:"participant_id"`
	DisplayName   string   `json:"display_name"`
	Values        []string `json:"values"`
	// Wiped is set when the calendar type changes and all availability goes.
	Wiped bool `json:"wiped"`
}

// EditPlan is the outcome of checking a new definition against stored answers.
type EditPlan struct {
	Conflicts []Conflict
	// Availability holds the pruned availability of every conflicting participant.
	Availability map[string][]string
}

// PlanEdit checks next against the stored participants. A type change wipes
// every participant that has answered; otherwise only entries outside the new
// slot universe are dropped.
func PlanEdit(current, next ranking.Definition, participants []Participant) (EditPlan, error) {
	idx, err := ranking.BuildIndex(next)
	if err != nil {
		return EditPlan{}, err
	}
	plan := EditPlan{Conflicts: []Conflict{}, Availability: map[string][]string{}}
	typeChanged := current.Type != next.Type

	for _, p := range participants {
		if len(p.Availability) == 0 {
			continue
		}
		if typeChanged {
			plan.Conflicts = append(plan.Conflicts, Conflict{
				ParticipantID: p.ID,
				DisplayName:   p.DisplayName,
				Values:        p.Availability,
				Wiped:         true,
			})
			plan.Availability[p.ID] = []string{}
			continue
		}

		stale := idx.Stale([]ranking.Participant{p.Ranking()})
		if len(stale) == 0 {
			continue
		}
		drop := make(map[string]bool, len(stale))
		values := make([]string, 0, len(stale))
		for _, s := range stale {
			drop[s.Value] = true
			values = append(values, s.Value)
		}
		kept := make([]string, 0, len(p.Availability))
		for _, v := range p.Availability {
			if !drop[v] {
				kept = append(kept, v)
			}
		}
		plan.Conflicts = append(plan.Conflicts, Conflict{ParticipantID: p.ID, DisplayName: p.DisplayName, Values: values})
		plan.Availability[p.ID] = kept
	}
	return plan, nil
}
