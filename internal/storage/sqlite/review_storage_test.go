package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/models"
)

// setupTestDB creates a temporary SQLite database for testing
func setupTestDB(t *testing.T) (*SQLiteDB, func()) {
	tempDir := t.TempDir()
	dbPath := tempDir + "/test.db"

	config := &common.SQLiteConfig{
		Path:          dbPath,
		CacheSizeMB:   10,
		BusyTimeoutMS: 5000,
		WALMode:       false, // Disable WAL for simpler test cleanup
	}

	logger := arbor.NewLogger()

	db, err := NewSQLiteDB(logger, config)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	cleanup := func() {
		db.Close()
	}

	return db, cleanup
}

func testReview(reviewID string, rating int, title string, date string) models.CleanedReview {
	parsed, _ := time.Parse(models.TimestampFormat, date)
	return models.CleanedReview{
		ReviewID:     reviewID,
		Rating:       rating,
		Title:        title,
		Body:         title + " body",
		ReviewerName: "Jane Doe",
		Date:         models.NewTimestamp(parsed),
		IsVerified:   false,
	}
}

func TestUpsertReviews_Insert(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	storage := NewReviewStorage(db, arbor.NewLogger())

	inserted, err := storage.UpsertReviews(context.Background(), []models.CleanedReview{
		testReview("rev-1", 5, "Great service", "2024-01-15 10:00:00"),
		testReview("rev-2", 3, "Average experience", "2024-02-20 09:30:00"),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, inserted)

	count, err := storage.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestUpsertReviews_IdempotentOnReviewID(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	storage := NewReviewStorage(db, arbor.NewLogger())

	first := testReview("rev-1", 5, "Great service", "2024-01-15 10:00:00")
	inserted, err := storage.UpsertReviews(context.Background(), []models.CleanedReview{first})
	require.NoError(t, err)
	require.Equal(t, 1, inserted)

	recent, err := storage.RecentReviews(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	originalID := recent[0].ID

	// Re-upsert with the same review_id but changed fields
	second := testReview("rev-1", 2, "Changed my mind", "2024-01-15 10:00:00")
	second.IsVerified = true
	inserted, err = storage.UpsertReviews(context.Background(), []models.CleanedReview{second})
	require.NoError(t, err)
	assert.Equal(t, 1, inserted)

	count, err := storage.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count, "re-upsert must not create a second row")

	recent, err = storage.RecentReviews(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, originalID, recent[0].ID, "surrogate id must survive the upsert")
	assert.Equal(t, 2, recent[0].Rating, "fields are last-write-wins")
	assert.Equal(t, "Changed my mind", recent[0].Title)
	assert.True(t, recent[0].IsVerified)
}

func TestUpsertReviews_ConstraintViolationSkipsRow(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	storage := NewReviewStorage(db, arbor.NewLogger())

	// Rating 6 violates the table check constraint; the batch continues
	bad := testReview("rev-bad", 6, "Too enthusiastic", "2024-03-01 12:00:00")
	good := testReview("rev-good", 4, "Solid", "2024-03-02 12:00:00")

	inserted, err := storage.UpsertReviews(context.Background(), []models.CleanedReview{bad, good})
	require.NoError(t, err)
	assert.Equal(t, 1, inserted)

	count, err := storage.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	recent, err := storage.RecentReviews(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "rev-good", recent[0].ReviewID)
}

func TestUpsertReviews_EmptyBodyStoredAsNull(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	storage := NewReviewStorage(db, arbor.NewLogger())

	review := testReview("rev-1", 4, "Fine", "2024-01-01 00:00:00")
	review.Body = ""

	inserted, err := storage.UpsertReviews(context.Background(), []models.CleanedReview{review})
	require.NoError(t, err)
	require.Equal(t, 1, inserted)

	var bodyIsNull bool
	err = db.DB().QueryRow(`SELECT body IS NULL FROM reviews WHERE review_id = 'rev-1'`).Scan(&bodyIsNull)
	require.NoError(t, err)
	assert.True(t, bodyIsNull)
}

func TestAggregates(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	storage := NewReviewStorage(db, arbor.NewLogger())

	verified := testReview("rev-2", 5, "Excellent", "2024-06-01 08:00:00")
	verified.IsVerified = true

	_, err := storage.UpsertReviews(context.Background(), []models.CleanedReview{
		testReview("rev-1", 5, "Great", "2024-01-15 10:00:00"),
		verified,
		testReview("rev-3", 1, "Terrible", "2024-03-10 14:00:00"),
	})
	require.NoError(t, err)

	dist, err := storage.RatingDistribution(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[int]int{5: 2, 1: 1}, dist)

	verifiedCount, err := storage.VerifiedCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, verifiedCount)

	minDate, maxDate, err := storage.DateRange(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2024-01-15", minDate.Format("2006-01-02"))
	assert.Equal(t, "2024-06-01", maxDate.Format("2006-01-02"))

	summary, err := storage.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, summary.TotalRecords)
	assert.InDelta(t, 11.0/3.0, summary.AverageRating, 0.001)
	assert.Equal(t, 1, summary.VerifiedCount)
}

func TestRecentReviews_OrderedByDateDesc(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	storage := NewReviewStorage(db, arbor.NewLogger())

	_, err := storage.UpsertReviews(context.Background(), []models.CleanedReview{
		testReview("rev-old", 3, "Older", "2024-01-01 00:00:00"),
		testReview("rev-new", 4, "Newer", "2024-05-01 00:00:00"),
		testReview("rev-mid", 5, "Middle", "2024-03-01 00:00:00"),
	})
	require.NoError(t, err)

	recent, err := storage.RecentReviews(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "rev-new", recent[0].ReviewID)
	assert.Equal(t, "rev-mid", recent[1].ReviewID)
}

func TestAggregates_EmptyStore(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	storage := NewReviewStorage(db, arbor.NewLogger())

	count, err := storage.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	minDate, maxDate, err := storage.DateRange(context.Background())
	require.NoError(t, err)
	assert.True(t, minDate.IsZero())
	assert.True(t, maxDate.IsZero())

	recent, err := storage.RecentReviews(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, recent)

	summary, err := storage.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.TotalRecords)
	assert.Zero(t, summary.AverageRating)
}
