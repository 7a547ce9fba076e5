package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/colligo/internal/models"
)

// ReviewStorage persists validated reviews with idempotent upsert semantics
// and exposes read-side aggregates over committed data.
type ReviewStorage interface {
	// UpsertReviews inserts or overwrites reviews keyed by review_id.
	// Per-row failures are logged and skipped; the returned count reflects
	// only rows that succeeded.
	UpsertReviews(ctx context.Context, reviews []models.CleanedReview) (int, error)

	// Count returns the total number of stored reviews
	Count(ctx context.Context) (int, error)

	// RatingDistribution returns rating -> count for all stored reviews
	RatingDistribution(ctx context.Context) (map[int]int, error)

	// VerifiedCount returns the number of verified reviews
	VerifiedCount(ctx context.Context) (int, error)

	// DateRange returns the earliest and latest review dates
	DateRange(ctx context.Context) (time.Time, time.Time, error)

	// RecentReviews returns the most recent reviews ordered by date descending
	RecentReviews(ctx context.Context, limit int) ([]models.StoredReview, error)

	// Summary returns aggregate statistics over committed data
	Summary(ctx context.Context) (*models.StoreSummary, error)
}

// RunStorage records pipeline run history
type RunStorage interface {
	StartRun(ctx context.Context, run *models.RunSummary) error
	FinishRun(ctx context.Context, run *models.RunSummary) error
	ListRuns(ctx context.Context, limit int) ([]models.RunSummary, error)
}
