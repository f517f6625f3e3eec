package handlers

import (
	"errors"

	"github.com/huddlecal/huddle/services/calendar-service/internal/ranking"
)

var (
	errInvalidClock     = errors.New("start_time and end_time must be HH:MM")
	errInvalidTimestamp = errors.New("start and end must be RFC3339 timestamps")
)

func isRankingError(err error) bool {
	return errors.Is(err, ranking.ErrInvalidDefinition) ||
		errors.Is(err, ranking.ErrNoCandidateSelected) ||
		errors.Is(err, ranking.ErrCandidateMismatch) ||
		errors.Is(err, ranking.ErrInvalidRange)
}
