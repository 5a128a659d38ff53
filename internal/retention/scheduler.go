package retention

import (
	"context"
	"fmt"
	"log/slog"

	"confessions/internal/middleware"

	"github.com/robfig/cron/v3"
)

// Scheduler runs a Sweeper on a cron schedule.
type Scheduler struct {
	engine  *cron.Cron
	sweeper cron.Job
	spec    string
}

// NewScheduler returns a stopped Scheduler. spec is a standard five-field
// cron expression or a descriptor such as "@daily".
func NewScheduler(sweeper cron.Job, spec string) *Scheduler {
	return &Scheduler{
		engine:  cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger))),
		sweeper: sweeper,
		spec:    spec,
	}
}

// Start registers the sweep and starts the engine.
func (s *Scheduler) Start() error {
	if _, err := s.engine.AddJob(s.spec, s.sweeper); err != nil {
		return fmt.Errorf("schedule retention %q: %w", s.spec, err)
	}
	middleware.Logger.Info("retention scheduler started", slog.String("schedule", s.spec))
	s.engine.Start()
	return nil
}

// Stop stops scheduling and waits for a running sweep, or for ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.engine.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
	middleware.Logger.Info("retention scheduler stopped")
}
