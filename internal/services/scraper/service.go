package scraper

import (
	"context"
	"math/rand"
	"path/filepath"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/artifacts"
	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
)

// Service crawls the configured page range sequentially, accumulates raw
// candidates across pages, and writes the raw artifact wholesale at the
// end. A failed page is skipped, never fatal.
type Service struct {
	fetcher   interfaces.PageFetcher
	extractor *Extractor
	config    common.ScraperConfig
	artifacts common.ArtifactsConfig
	logger    arbor.ILogger
}

// NewService creates a new scrape service
func NewService(fetcher interfaces.PageFetcher, config common.ScraperConfig, artifactsConfig common.ArtifactsConfig, logger arbor.ILogger) *Service {
	return &Service{
		fetcher:   fetcher,
		extractor: NewExtractor(logger),
		config:    config,
		artifacts: artifactsConfig,
		logger:    logger,
	}
}

// Run crawls all configured pages and writes the raw artifact.
// Returns the number of candidates scraped.
func (s *Service) Run(ctx context.Context) (int, error) {
	var batch []models.ReviewCandidate

	for pageNum := 1; pageNum <= s.config.Pages; pageNum++ {
		// Cancellation takes effect between pages only
		if err := ctx.Err(); err != nil {
			s.logger.Warn().Int("page", pageNum).Msg("Crawl cancelled before next page")
			break
		}

		page, err := s.fetcher.Fetch(ctx, pageNum)
		if err != nil {
			s.logger.Error().Err(err).Int("page", pageNum).Msg("Page fetch failed, skipping")
			continue
		}

		candidates := s.extractor.ExtractPage(page, pageNum)
		if len(candidates) == 0 {
			s.logger.Warn().Int("page", pageNum).Msg("Page yielded no candidates")
		}
		batch = append(batch, candidates...)

		if pageNum < s.config.Pages {
			s.politeDelay(ctx)
		}
	}

	rawPath := filepath.Join(s.artifacts.Dir, s.artifacts.RawFile)
	if err := artifacts.WriteRaw(rawPath, batch); err != nil {
		return 0, err
	}

	s.logger.Info().
		Int("scraped", len(batch)).
		Int("pages", s.config.Pages).
		Str("artifact", rawPath).
		Msg("Scrape completed")

	return len(batch), nil
}

// politeDelay sleeps a bounded uniform random duration between page
// fetches. Purely a politeness convention; zero range disables it.
func (s *Service) politeDelay(ctx context.Context) {
	delay := s.config.MinDelay
	if jitter := s.config.MaxDelay - s.config.MinDelay; jitter > 0 {
		delay += time.Duration(rand.Int63n(int64(jitter)))
	}
	if delay <= 0 {
		return
	}

	s.logger.Debug().Str("delay", delay.String()).Msg("Waiting before next page")

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
