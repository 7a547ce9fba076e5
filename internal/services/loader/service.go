package loader

import (
	"context"
	"path/filepath"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/artifacts"
	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
)

// Service runs the load stage: read the cleaned artifact and upsert it
// into the review store. Re-running is idempotent per review_id.
type Service struct {
	storage   interfaces.ReviewStorage
	artifacts common.ArtifactsConfig
	logger    arbor.ILogger
}

// NewService creates a new load service
func NewService(storage interfaces.ReviewStorage, artifactsConfig common.ArtifactsConfig, logger arbor.ILogger) *Service {
	return &Service{
		storage:   storage,
		artifacts: artifactsConfig,
		logger:    logger,
	}
}

// Run upserts the cleaned artifact into the store and logs the store
// summary. A missing cleaned artifact is fatal; per-row insert failures
// only lower the returned count.
func (s *Service) Run(ctx context.Context) (int, error) {
	cleanedPath := filepath.Join(s.artifacts.Dir, s.artifacts.CleanedFile)
	reviews, err := artifacts.ReadCleaned(cleanedPath)
	if err != nil {
		return 0, err
	}

	s.logger.Info().Int("records", len(reviews)).Str("artifact", cleanedPath).Msg("Loaded cleaned reviews")

	inserted, err := s.storage.UpsertReviews(ctx, reviews)
	if err != nil {
		return 0, err
	}

	summary, err := s.storage.Summary(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to read store summary")
		return inserted, nil
	}

	s.logger.Info().
		Int("inserted", inserted).
		Int("total_records", summary.TotalRecords).
		Float64("average_rating", summary.AverageRating).
		Int("verified", summary.VerifiedCount).
		Str("min_date", summary.MinDate.Format("2006-01-02")).
		Str("max_date", summary.MaxDate.Format("2006-01-02")).
		Msg("Load completed")

	return inserted, nil
}
