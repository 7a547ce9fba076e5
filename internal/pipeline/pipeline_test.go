package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/services/cleaner"
	"github.com/ternarybob/colligo/internal/services/loader"
	"github.com/ternarybob/colligo/internal/services/scraper"
	"github.com/ternarybob/colligo/internal/storage/sqlite"
)

// fakeFetcher serves canned HTML per page number
type fakeFetcher struct {
	pages map[int]string
}

func (f *fakeFetcher) Fetch(ctx context.Context, pageNum int) (interfaces.RenderedPage, error) {
	html, ok := f.pages[pageNum]
	if !ok {
		return nil, fmt.Errorf("page %d failed to render: timeout", pageNum)
	}
	return scraper.NewPageFromHTML(html)
}

func (f *fakeFetcher) Close() error {
	return nil
}

func reviewCard(id, title, name, date string, rating int) string {
	return fmt.Sprintf(`
<article id="%s">
  <span data-consumer-name-typography="true">%s</span>
  <img src="/images/stars-%d.svg">
  <h2>%s</h2>
  <p data-service-review-text-typography="true">%s review body with enough detail to matter.</p>
  <time datetime="%s">posted</time>
</article>`, id, name, rating, title, title, date)
}

type testEnv struct {
	runner  *Runner
	reviews interfaces.ReviewStorage
	runs    interfaces.RunStorage
}

func setupPipeline(t *testing.T, fetcher interfaces.PageFetcher, pages int) testEnv {
	tempDir := t.TempDir()
	logger := arbor.NewLogger()

	db, err := sqlite.NewSQLiteDB(logger, &common.SQLiteConfig{
		Path:          filepath.Join(tempDir, "reviews.db"),
		CacheSizeMB:   10,
		BusyTimeoutMS: 5000,
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	reviewStorage := sqlite.NewReviewStorage(db, logger)
	runStorage := sqlite.NewRunStorage(db, logger)

	scraperCfg := common.ScraperConfig{
		BaseURL:       "https://example.com/review",
		CompanyDomain: "example.org",
		Pages:         pages,
	}
	artifactsCfg := common.ArtifactsConfig{
		Dir:         tempDir,
		RawFile:     "raw_reviews.json",
		CleanedFile: "cleaned_reviews.json",
	}

	scrapeService := scraper.NewService(fetcher, scraperCfg, artifactsCfg, logger)
	cleanService := cleaner.NewService(common.CleanerConfig{AnonymousName: "Anonymous"}, artifactsCfg, logger)
	loadService := loader.NewService(reviewStorage, artifactsCfg, logger)

	return testEnv{
		runner:  NewRunner(scrapeService, cleanService, loadService, runStorage, logger),
		reviews: reviewStorage,
		runs:    runStorage,
	}
}

func TestRunner_EndToEnd(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[int]string{
		1: "<html><body>" +
			reviewCard("r1", "Great service", "Alice", "2024-01-15T10:00:00Z", 5) +
			reviewCard("r2", "Good value", "Bob", "2024-01-16T10:00:00Z", 4) +
			"</body></html>",
		2: "<html><body>" +
			reviewCard("r3", "Broken stars", "Carol", "2024-01-17T10:00:00Z", 9) +
			reviewCard("r1", "Great service", "Alice", "2024-01-15T10:00:00Z", 5) +
			"</body></html>",
	}}

	env := setupPipeline(t, fetcher, 2)

	run, err := env.runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateDone, env.runner.State())

	// r1 appears on both pages and is deduplicated; r3 carries a rating
	// outside 1..5 and is rejected by the gate
	assert.Equal(t, 4, run.Scraped)
	assert.Equal(t, 2, run.Cleaned)
	assert.Equal(t, 2, run.Inserted)
	assert.Equal(t, "completed", run.Status)
	require.NotNil(t, run.CompletedAt)

	count, err := env.reviews.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	runs, err := env.runs.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run.RunID, runs[0].RunID)
	assert.Equal(t, "completed", runs[0].Status)
	assert.Equal(t, 2, runs[0].Inserted)
}

func TestRunner_RerunIsIdempotent(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[int]string{
		1: "<html><body>" + reviewCard("r1", "Great service", "Alice", "2024-01-15T10:00:00Z", 5) + "</body></html>",
	}}

	env := setupPipeline(t, fetcher, 1)

	_, err := env.runner.Run(context.Background())
	require.NoError(t, err)
	_, err = env.runner.Run(context.Background())
	require.NoError(t, err)

	count, err := env.reviews.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count, "re-running the pipeline must not duplicate rows")

	runs, err := env.runs.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, runs, 2, "each run gets its own history row")
}

func TestRunner_AllPagesFailedStillCompletes(t *testing.T) {
	// Every fetch fails; the scrape yields an empty artifact and the rest
	// of the pipeline runs over the empty batch
	env := setupPipeline(t, &fakeFetcher{pages: map[int]string{}}, 2)

	run, err := env.runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, run.Scraped)
	assert.Equal(t, 0, run.Inserted)
	assert.Equal(t, "completed", run.Status)
}

// failingStage errors immediately
type failingStage struct{}

func (failingStage) Run(ctx context.Context) (int, error) {
	return 0, errors.New("artifact unreadable")
}

type staticStage int

func (s staticStage) Run(ctx context.Context) (int, error) {
	return int(s), nil
}

func TestRunner_StageFailureRecordedAsFailed(t *testing.T) {
	tempDir := t.TempDir()
	logger := arbor.NewLogger()

	db, err := sqlite.NewSQLiteDB(logger, &common.SQLiteConfig{
		Path:          filepath.Join(tempDir, "reviews.db"),
		CacheSizeMB:   10,
		BusyTimeoutMS: 5000,
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	runStorage := sqlite.NewRunStorage(db, logger)
	runner := NewRunner(staticStage(7), failingStage{}, staticStage(0), runStorage, logger)

	run, err := runner.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateFailed, runner.State())
	assert.Equal(t, "failed", run.Status)
	assert.Equal(t, 7, run.Scraped)
	assert.Equal(t, 0, run.Inserted)

	runs, err := runStorage.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "failed", runs[0].Status)
	assert.Contains(t, runs[0].Error, "artifact unreadable")
}
