// Package scheduler triggers the daily analytics rollup on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// RollupRunner builds the daily rollup for the calendar day containing date.
type RollupRunner interface {
	CreateDailyAnalytics(ctx context.Context, date time.Time) (int, error)
}

// runTimeout bounds one scheduled rollup.
const runTimeout = 10 * time.Minute

// Scheduler runs the rollup for the previous day on a 5-field cron schedule.
type Scheduler struct {
	c        *cron.Cron
	log      *zap.Logger
	rollup   RollupRunner
	schedule string
	loc      *time.Location
	now      func() time.Time
}

// New creates a scheduler. Schedules are evaluated in loc, the same
// location the rollup uses for day boundaries.
func New(rollup RollupRunner, schedule string, loc *time.Location, log *zap.Logger) *Scheduler {
	c := cron.New(
		cron.WithParser(cron.NewParser(cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow)),
		cron.WithLocation(loc),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	return &Scheduler{
		c:        c,
		log:      log,
		rollup:   rollup,
		schedule: schedule,
		loc:      loc,
		now:      time.Now,
	}
}

// Start registers the rollup job and starts the cron loop. The loop
// stops when ctx is cancelled, after any running job finishes.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.c.AddFunc(s.schedule, s.runYesterday); err != nil {
		return fmt.Errorf("invalid rollup schedule %q: %w", s.schedule, err)
	}
	s.c.Start()
	s.log.Info("Rollup scheduler started", zap.String("schedule", s.schedule))

	go func() {
		<-ctx.Done()
		<-s.c.Stop().Done()
		s.log.Info("Rollup scheduler stopped")
	}()
	return nil
}

func (s *Scheduler) runYesterday() {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	day := s.now().In(s.loc).AddDate(0, 0, -1)
	start := time.Now()

	links, err := s.rollup.CreateDailyAnalytics(ctx, day)
	if err != nil {
		s.log.Error("Daily rollup failed", zap.String("date", day.Format(time.DateOnly)), zap.Error(err))
		return
	}

	s.log.Info("Daily rollup finished",
		zap.String("date", day.Format(time.DateOnly)),
		zap.Int("links", links),
		zap.Duration("took", time.Since(start)),
	)
}
