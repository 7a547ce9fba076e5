package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
)

// State names the current pipeline stage
type State string

const (
	StateIdle       State = "idle"
	StateExtracting State = "extracting"
	StateCleaning   State = "cleaning"
	StateLoading    State = "loading"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

// Stage is one runnable pipeline stage returning its record count
type Stage interface {
	Run(ctx context.Context) (int, error)
}

// Runner sequences the three stages extract -> clean -> load and records
// each run in the ingest history. A stage failure stops the run; stages
// communicate only through artifacts, never in memory.
type Runner struct {
	scraper Stage
	cleaner Stage
	loader  Stage
	runs    interfaces.RunStorage
	logger  arbor.ILogger

	mu    sync.RWMutex
	state State
}

// NewRunner creates a new pipeline runner
func NewRunner(scraper, cleaner, loader Stage, runs interfaces.RunStorage, logger arbor.ILogger) *Runner {
	return &Runner{
		scraper: scraper,
		cleaner: cleaner,
		loader:  loader,
		runs:    runs,
		logger:  logger,
		state:   StateIdle,
	}
}

// State returns the current pipeline state
func (r *Runner) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

func (r *Runner) setState(state State) {
	r.mu.Lock()
	r.state = state
	r.mu.Unlock()
	r.logger.Debug().Str("state", string(state)).Msg("Pipeline state changed")
}

// Run executes one full pipeline run and records it in the run history.
// Run history failures are logged but never fail the pipeline itself.
func (r *Runner) Run(ctx context.Context) (*models.RunSummary, error) {
	run := &models.RunSummary{
		RunID:     "run_" + uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Status:    "running",
	}

	r.logger.Info().Str("run_id", run.RunID).Msg("Pipeline run started")

	if err := r.runs.StartRun(ctx, run); err != nil {
		r.logger.Warn().Err(err).Str("run_id", run.RunID).Msg("Failed to record run start")
	}

	err := r.runStages(ctx, run)

	now := time.Now().UTC()
	run.CompletedAt = &now
	if err != nil {
		run.Status = "failed"
		run.Error = err.Error()
		r.setState(StateFailed)
	} else {
		run.Status = "completed"
		r.setState(StateDone)
	}

	if ferr := r.runs.FinishRun(ctx, run); ferr != nil {
		r.logger.Warn().Err(ferr).Str("run_id", run.RunID).Msg("Failed to record run completion")
	}

	if err != nil {
		r.logger.Error().Err(err).Str("run_id", run.RunID).Msg("Pipeline run failed")
		return run, err
	}

	r.logger.Info().
		Str("run_id", run.RunID).
		Int("scraped", run.Scraped).
		Int("cleaned", run.Cleaned).
		Int("inserted", run.Inserted).
		Str("elapsed", now.Sub(run.StartedAt).String()).
		Msg("Pipeline run completed")

	return run, nil
}

func (r *Runner) runStages(ctx context.Context, run *models.RunSummary) error {
	r.setState(StateExtracting)
	scraped, err := r.scraper.Run(ctx)
	if err != nil {
		return err
	}
	run.Scraped = scraped

	r.setState(StateCleaning)
	cleaned, err := r.cleaner.Run(ctx)
	if err != nil {
		return err
	}
	run.Cleaned = cleaned

	r.setState(StateLoading)
	inserted, err := r.loader.Run(ctx)
	if err != nil {
		return err
	}
	run.Inserted = inserted

	return nil
}
