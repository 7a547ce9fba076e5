package sqlite

const schemaSQL = `
-- Reviews table, keyed by a surrogate id with a natural-key uniqueness
-- constraint on review_id. Check constraint mirrors the quality gate rule.
CREATE TABLE IF NOT EXISTS reviews (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	review_id TEXT UNIQUE NOT NULL,
	rating INTEGER NOT NULL CHECK(rating >= 1 AND rating <= 5),
	title TEXT NOT NULL,
	body TEXT,
	reviewer_name TEXT NOT NULL,
	date TIMESTAMP NOT NULL,
	is_verified BOOLEAN NOT NULL DEFAULT 0,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

-- Indexes supporting the aggregate read queries
CREATE INDEX IF NOT EXISTS idx_reviews_rating ON reviews(rating);
CREATE INDEX IF NOT EXISTS idx_reviews_date ON reviews(date);
CREATE INDEX IF NOT EXISTS idx_reviews_verified ON reviews(is_verified);

-- Pipeline run history
CREATE TABLE IF NOT EXISTS ingest_runs (
	run_id TEXT PRIMARY KEY,
	started_at TIMESTAMP NOT NULL,
	completed_at TIMESTAMP,
	scraped INTEGER NOT NULL DEFAULT 0,
	cleaned INTEGER NOT NULL DEFAULT 0,
	inserted INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	error TEXT
);

CREATE INDEX IF NOT EXISTS idx_runs_started ON ingest_runs(started_at DESC);
`

// InitSchema initializes the database schema
func (s *SQLiteDB) InitSchema() error {
	if _, err := s.db.Exec(schemaSQL); err != nil {
		return err
	}
	s.logger.Debug().Msg("Database schema initialized")
	return nil
}
