package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
)

// ReviewStorage implements the ReviewStorage interface for SQLite
type ReviewStorage struct {
	db     *SQLiteDB
	logger arbor.ILogger
	mu     sync.Mutex // Prevents SQLITE_BUSY errors on concurrent writes
}

// NewReviewStorage creates a new ReviewStorage instance
func NewReviewStorage(db *SQLiteDB, logger arbor.ILogger) interfaces.ReviewStorage {
	return &ReviewStorage{
		db:     db,
		logger: logger,
	}
}

const upsertReviewSQL = `
	INSERT INTO reviews (review_id, rating, title, body, reviewer_name, date, is_verified)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(review_id) DO UPDATE SET
		rating = excluded.rating,
		title = excluded.title,
		body = excluded.body,
		reviewer_name = excluded.reviewer_name,
		date = excluded.date,
		is_verified = excluded.is_verified
`

// UpsertReviews inserts or overwrites reviews keyed by review_id
// (last-write-wins on every field, surrogate id and created_at preserved).
// A row that violates a constraint is logged with its identifier and
// skipped; the batch continues and the returned count reflects successes.
func (s *ReviewStorage) UpsertReviews(ctx context.Context, reviews []models.CleanedReview) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inserted := 0
	for _, review := range reviews {
		var body any
		if review.Body != "" {
			body = review.Body
		}

		_, err := s.db.db.ExecContext(ctx, upsertReviewSQL,
			review.ReviewID,
			review.Rating,
			review.Title,
			body,
			review.ReviewerName,
			review.Date.Format(models.TimestampFormat),
			review.IsVerified,
		)
		if err != nil {
			s.logger.Warn().
				Err(err).
				Str("review_id", review.ReviewID).
				Msg("Failed to insert review")
			continue
		}
		inserted++
	}

	s.logger.Info().
		Int("inserted", inserted).
		Int("batch", len(reviews)).
		Msg("Reviews upserted")

	return inserted, nil
}

// Count returns the total number of stored reviews
func (s *ReviewStorage) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reviews`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count reviews: %w", err)
	}
	return count, nil
}

// RatingDistribution returns rating -> count ordered by rating descending
func (s *ReviewStorage) RatingDistribution(ctx context.Context) (map[int]int, error) {
	rows, err := s.db.db.QueryContext(ctx, `
		SELECT rating, COUNT(*) AS count
		FROM reviews
		GROUP BY rating
		ORDER BY rating DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query rating distribution: %w", err)
	}
	defer rows.Close()

	dist := make(map[int]int)
	for rows.Next() {
		var rating, count int
		if err := rows.Scan(&rating, &count); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		dist[rating] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return dist, nil
}

// VerifiedCount returns the number of verified reviews
func (s *ReviewStorage) VerifiedCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reviews WHERE is_verified = 1`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count verified reviews: %w", err)
	}
	return count, nil
}

// DateRange returns the earliest and latest review dates
func (s *ReviewStorage) DateRange(ctx context.Context) (time.Time, time.Time, error) {
	var minRaw, maxRaw sql.NullString
	err := s.db.db.QueryRowContext(ctx, `SELECT MIN(date), MAX(date) FROM reviews`).Scan(&minRaw, &maxRaw)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("failed to query date range: %w", err)
	}

	if !minRaw.Valid || !maxRaw.Valid {
		return time.Time{}, time.Time{}, nil
	}

	minDate, err := time.Parse(models.TimestampFormat, minRaw.String)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid min date %q: %w", minRaw.String, err)
	}
	maxDate, err := time.Parse(models.TimestampFormat, maxRaw.String)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid max date %q: %w", maxRaw.String, err)
	}

	return minDate, maxDate, nil
}

// RecentReviews returns the most recent reviews ordered by date descending
func (s *ReviewStorage) RecentReviews(ctx context.Context, limit int) ([]models.StoredReview, error) {
	rows, err := s.db.db.QueryContext(ctx, `
		SELECT id, review_id, rating, title, body, reviewer_name, date, is_verified, created_at
		FROM reviews
		ORDER BY date DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent reviews: %w", err)
	}
	defer rows.Close()

	var reviews []models.StoredReview
	for rows.Next() {
		var review models.StoredReview
		var body sql.NullString
		var dateRaw, createdRaw string

		err := rows.Scan(&review.ID, &review.ReviewID, &review.Rating, &review.Title,
			&body, &review.ReviewerName, &dateRaw, &review.IsVerified, &createdRaw)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		review.Body = body.String
		review.Date, err = time.Parse(models.TimestampFormat, dateRaw)
		if err != nil {
			return nil, fmt.Errorf("invalid date %q: %w", dateRaw, err)
		}
		// created_at comes from CURRENT_TIMESTAMP which uses the same layout
		review.CreatedAt, _ = time.Parse(models.TimestampFormat, createdRaw)

		reviews = append(reviews, review)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	if reviews == nil {
		reviews = []models.StoredReview{}
	}

	return reviews, nil
}

// Summary returns aggregate statistics over committed data
func (s *ReviewStorage) Summary(ctx context.Context) (*models.StoreSummary, error) {
	summary := &models.StoreSummary{}

	var err error
	summary.TotalRecords, err = s.Count(ctx)
	if err != nil {
		return nil, err
	}

	summary.RatingCounts, err = s.RatingDistribution(ctx)
	if err != nil {
		return nil, err
	}

	summary.VerifiedCount, err = s.VerifiedCount(ctx)
	if err != nil {
		return nil, err
	}

	summary.MinDate, summary.MaxDate, err = s.DateRange(ctx)
	if err != nil {
		return nil, err
	}

	if summary.TotalRecords > 0 {
		var avg sql.NullFloat64
		if err := s.db.db.QueryRowContext(ctx, `SELECT AVG(rating) FROM reviews`).Scan(&avg); err != nil {
			return nil, fmt.Errorf("failed to query average rating: %w", err)
		}
		summary.AverageRating = avg.Float64
	}

	return summary, nil
}
