package cleaner

import (
	"context"
	"path/filepath"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/artifacts"
	"github.com/ternarybob/colligo/internal/common"
)

// Service runs the cleaning stage: load the raw artifact, normalize the
// batch, pass it through the quality gate, and write the cleaned
// artifact. Returns the accepted row count.
type Service struct {
	normalizer *Normalizer
	gate       *Gate
	artifacts  common.ArtifactsConfig
	logger     arbor.ILogger
}

// NewService creates a new cleaning service
func NewService(config common.CleanerConfig, artifactsConfig common.ArtifactsConfig, logger arbor.ILogger) *Service {
	return &Service{
		normalizer: NewNormalizer(config, logger),
		gate:       NewGate(logger),
		artifacts:  artifactsConfig,
		logger:     logger,
	}
}

// Run executes the full cleaning pipeline over the raw artifact.
// A missing raw artifact is fatal; rejected and dropped rows are not.
func (s *Service) Run(ctx context.Context) (int, error) {
	rawPath := filepath.Join(s.artifacts.Dir, s.artifacts.RawFile)
	candidates, err := artifacts.ReadRaw(rawPath)
	if err != nil {
		return 0, err
	}

	s.logger.Info().Int("records", len(candidates)).Str("artifact", rawPath).Msg("Loaded raw candidates")

	cleaned, dropped := s.normalizer.Normalize(candidates)
	result := s.gate.Apply(cleaned)

	cleanedPath := filepath.Join(s.artifacts.Dir, s.artifacts.CleanedFile)
	if err := artifacts.WriteCleaned(cleanedPath, result.Accepted); err != nil {
		return 0, err
	}

	s.logger.Info().
		Int("initial", len(candidates)).
		Int("dropped", dropped).
		Int("rejected", result.RejectedCount).
		Int("accepted", len(result.Accepted)).
		Str("artifact", cleanedPath).
		Msg("Cleaning completed")

	return len(result.Accepted), nil
}
