package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
)

// RunStorage implements the RunStorage interface for SQLite
type RunStorage struct {
	db     *SQLiteDB
	logger arbor.ILogger
}

// NewRunStorage creates a new RunStorage instance
func NewRunStorage(db *SQLiteDB, logger arbor.ILogger) interfaces.RunStorage {
	return &RunStorage{
		db:     db,
		logger: logger,
	}
}

// StartRun records a new pipeline run in "running" state
func (s *RunStorage) StartRun(ctx context.Context, run *models.RunSummary) error {
	_, err := s.db.db.ExecContext(ctx, `
		INSERT INTO ingest_runs (run_id, started_at, status)
		VALUES (?, ?, ?)
	`, run.RunID, run.StartedAt.Format(models.TimestampFormat), run.Status)
	if err != nil {
		return fmt.Errorf("failed to record run start: %w", err)
	}
	return nil
}

// FinishRun updates a run with its final counts and status
func (s *RunStorage) FinishRun(ctx context.Context, run *models.RunSummary) error {
	var completedAt any
	if run.CompletedAt != nil {
		completedAt = run.CompletedAt.Format(models.TimestampFormat)
	}

	result, err := s.db.db.ExecContext(ctx, `
		UPDATE ingest_runs
		SET completed_at = ?, scraped = ?, cleaned = ?, inserted = ?, status = ?, error = ?
		WHERE run_id = ?
	`, completedAt, run.Scraped, run.Cleaned, run.Inserted, run.Status, run.Error, run.RunID)
	if err != nil {
		return fmt.Errorf("failed to record run completion: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("run '%s' not found", run.RunID)
	}

	return nil
}

// ListRuns returns the most recent runs ordered by start time descending
func (s *RunStorage) ListRuns(ctx context.Context, limit int) ([]models.RunSummary, error) {
	rows, err := s.db.db.QueryContext(ctx, `
		SELECT run_id, started_at, completed_at, scraped, cleaned, inserted, status, error
		FROM ingest_runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []models.RunSummary
	for rows.Next() {
		var run models.RunSummary
		var startedRaw string
		var completedRaw, errMsg sql.NullString

		err := rows.Scan(&run.RunID, &startedRaw, &completedRaw,
			&run.Scraped, &run.Cleaned, &run.Inserted, &run.Status, &errMsg)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		run.StartedAt, err = time.Parse(models.TimestampFormat, startedRaw)
		if err != nil {
			return nil, fmt.Errorf("invalid started_at %q: %w", startedRaw, err)
		}
		if completedRaw.Valid {
			completed, err := time.Parse(models.TimestampFormat, completedRaw.String)
			if err != nil {
				return nil, fmt.Errorf("invalid completed_at %q: %w", completedRaw.String, err)
			}
			run.CompletedAt = &completed
		}
		run.Error = errMsg.String

		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	if runs == nil {
		runs = []models.RunSummary{}
	}

	return runs, nil
}
