package deadline

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/huddlecal/huddle/libs/metrics"
)

// DefaultSchedule runs the sweep at the top of every minute.
const DefaultSchedule = "* * * * *"

type Store interface {
	// CloseExpired closes open calendars whose deadline is at or before now
	// and returns their ids.
	CloseExpired(ctx context.Context, now time.Time) ([]string, error)
}

// Sweeper closes calendars once their deadline passes.
type Sweeper struct {
	store    Store
	logger   *slog.Logger
	metrics  *metrics.Metrics
	schedule string
	now      func() time.Time
}

func NewSweeper(store Store, logger *slog.Logger, m *metrics.Metrics, schedule string) *Sweeper {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	return &Sweeper{
		store:    store,
		logger:   logger,
		metrics:  m,
		schedule: schedule,
		now:      time.Now,
	}
}

// Sweep runs one pass and returns the number of calendars closed.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	ids, err := s.store.CloseExpired(ctx, s.now().UTC())
	if err != nil {
		return 0, err
	}
	if len(ids) > 0 {
		s.metrics.DeadlineClosed(len(ids))
		s.logger.InfoContext(ctx, "calendars closed at deadline", "count", len(ids), "calendar_ids", ids)
	}
	return len(ids), nil
}

// Run blocks until ctx is done. An overlapping tick is skipped while the
// previous sweep is still running.
func (s *Sweeper) Run(ctx context.Context) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	c := cron.New(cron.WithParser(parser), cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	if _, err := c.AddFunc(s.schedule, func() {
		if _, err := s.Sweep(ctx); err != nil {
			s.logger.Error("deadline sweep failed", "err", err)
		}
	}); err != nil {
		return err
	}

	s.logger.Info("deadline sweeper started", "schedule", s.schedule)
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}
