package ranking

// Request carries the caller's current selection. Nothing is remembered
// between calls.
type Request struct {
	RequiredParticipantIDs []string `json:"required_participant_ids,omitempty"`
	// DurationHours applies to TimeBased calendars only.
	DurationHours float64  `json:"duration_hours,omitempty"`
	VIPIDs        []string `json:"vip_ids,omitempty"`
}

type Result struct {
	Type       CalendarType     `json:"type"`
	Slots      int              `json:"slots"`
	Histogram  []HistogramEntry `json:"histogram"`
	Candidates []Candidate      `json:"candidates"`
	Stale      []StaleEntry     `json:"stale"`
}

// Evaluate runs the whole pipeline: index the definition, index availability,
// then build the histogram and the ranking that fits the calendar type.
func Evaluate(def Definition, participants []Participant, req Request) (Result, error) {
	idx, err := BuildIndex(def)
	if err != nil {
		return Result{}, err
	}
	avail := idx.Availability(participants)

	res := Result{
		Type:      def.Type,
		Slots:     idx.Len(),
		Histogram: BuildHistogram(idx, avail, req.VIPIDs),
		Stale:     idx.Stale(participants),
	}
	if res.Stale == nil {
		res.Stale = []StaleEntry{}
	}
	switch def.Type {
	case DayBased:
		res.Candidates = RankDays(idx, avail, req.RequiredParticipantIDs)
	case TimeBased:
		res.Candidates = RankWindows(idx, avail, DurationSlots(req.DurationHours), req.RequiredParticipantIDs)
	}
	return res, nil
}

// Find returns the candidate starting at key, matching a day slot key or a
// window's start slot key.
func Find(cs []Candidate, key string) *Candidate {
	if key == "" {
		return nil
	}
	for i := range cs {
		if cs[i].SlotKey == key || (cs[i].Window != nil && cs[i].Window.StartSlotKey == key) {
			return &cs[i]
		}
	}
	return nil
}
