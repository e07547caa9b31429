package application

import (
	"context"
	"errors"
	"log"
	"time"
)

// Scheduler triggers a pipeline run once a day.
type Scheduler struct {
	runner  *Runner
	dailyAt string
	loc     *time.Location
	logger  *log.Logger
	lastRun time.Time
}

// NewScheduler constructs a Scheduler. dailyAt is "15:04" in loc.
func NewScheduler(runner *Runner, dailyAt string, loc *time.Location, logger *log.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		runner:  runner,
		dailyAt: dailyAt,
		loc:     loc,
		logger:  logger,
	}
}

// Start begins the scheduler loop and blocks until ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	if s == nil || s.runner == nil {
		return
	}
	if _, _, err := parseDailyAt(s.dailyAt); err != nil {
		if s.logger != nil {
			s.logger.Printf("event=scheduler_disabled daily_at=%q err=%v", s.dailyAt, err)
		}
		return
	}
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if !s.shouldRun(now.In(s.loc)) {
				continue
			}
			s.runOnce(ctx, now.In(s.loc))
		}
	}
}

// shouldRun reports whether now is the scheduled minute of a day not yet run.
func (s *Scheduler) shouldRun(now time.Time) bool {
	hour, minute, err := parseDailyAt(s.dailyAt)
	if err != nil {
		return false
	}
	if now.Hour() != hour || now.Minute() != minute {
		return false
	}
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return !day.Equal(s.lastRun)
}

func (s *Scheduler) runOnce(ctx context.Context, now time.Time) {
	s.lastRun = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if _, err := s.runner.Run(ctx); err != nil && s.logger != nil {
		if errors.Is(err, ErrRunInProgress) {
			s.logger.Printf("event=scheduled_run_skipped reason=in_progress")
			return
		}
		s.logger.Printf("event=scheduled_run_failed err=%v", err)
	}
}

func parseDailyAt(value string) (int, int, error) {
	t, err := time.Parse("15:04", value)
	if err != nil {
		return 0, 0, err
	}
	return t.Hour(), t.Minute(), nil
}
