package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/pipeline"
)

// Scheduler triggers full pipeline runs on a cron expression. Overlapping
// triggers are skipped: a run still in flight wins over a new one.
type Scheduler struct {
	runner *pipeline.Runner
	cron   *cron.Cron
	logger arbor.ILogger

	running sync.Mutex
}

// NewScheduler creates a new scheduler
func NewScheduler(runner *pipeline.Runner, logger arbor.ILogger) *Scheduler {
	return &Scheduler{
		runner: runner,
		cron:   cron.New(),
		logger: logger,
	}
}

// Start registers the cron expression and begins scheduling. The returned
// error covers expression parsing only; run failures are logged per run.
func (s *Scheduler) Start(ctx context.Context, cronExpr string) error {
	_, err := s.cron.AddFunc(cronExpr, func() {
		s.trigger(ctx)
	})
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", cronExpr, err)
	}

	s.cron.Start()
	s.logger.Info().Str("cron", cronExpr).Msg("Scheduler started")
	return nil
}

// Stop halts scheduling and waits for an in-flight run to finish
func (s *Scheduler) Stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.running.Lock()
	s.running.Unlock()
	s.logger.Info().Msg("Scheduler stopped")
}

func (s *Scheduler) trigger(ctx context.Context) {
	if !s.running.TryLock() {
		s.logger.Warn().Msg("Previous pipeline run still in progress, skipping trigger")
		return
	}
	defer s.running.Unlock()

	if _, err := s.runner.Run(ctx); err != nil {
		s.logger.Error().Err(err).Msg("Scheduled pipeline run failed")
	}
}
