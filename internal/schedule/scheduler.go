// Package schedule repeats the whole experiment on a cron schedule until the
// context is cancelled. One scheduled firing runs all repetitions; firings
// never overlap because the loop only sleeps while no experiment is running.
package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler fires an experiment function on a cron expression.
type Scheduler struct {
	sched cron.Schedule
	fn    func(ctx context.Context) error
	log   *zap.Logger
}

// ParseCron parses a standard five-field cron expression.
func ParseCron(expr string) (cron.Schedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	return parser.Parse(expr)
}

// New creates a scheduler for expr calling fn at each firing.
func New(expr string, fn func(ctx context.Context) error, log *zap.Logger) (*Scheduler, error) {
	sched, err := ParseCron(expr)
	if err != nil {
		return nil, fmt.Errorf("parsing cron expression %q: %w", expr, err)
	}
	return &Scheduler{sched: sched, fn: fn, log: log}, nil
}

// Next returns the next firing time after t.
func (s *Scheduler) Next(t time.Time) time.Time {
	return s.sched.Next(t)
}

// Run waits for each firing in turn and executes the experiment, until ctx
// is cancelled. Experiment errors are logged; only cancellation ends the
// loop.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		next := s.sched.Next(time.Now())
		s.log.Info("next scheduled experiment", zap.Time("at", next))

		timer := time.NewTimer(time.Until(next))
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}

		if err := s.fn(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.log.Error("scheduled experiment failed", zap.Error(err))
		}
	}
}
