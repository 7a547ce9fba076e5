package models

import (
	"fmt"
	"strings"
	"time"
)

// TimestampFormat is the fixed timezone-naive layout used for dates in
// cleaned artifacts and in the SQLite store.
const TimestampFormat = "2006-01-02 15:04:05"

// Timestamp is a timezone-naive point in time. It marshals to the fixed
// artifact format rather than RFC3339.
type Timestamp struct {
	time.Time
}

// NewTimestamp normalizes t to UTC and discards the zone information,
// yielding a timezone-naive timestamp.
func NewTimestamp(t time.Time) Timestamp {
	t = t.UTC()
	return Timestamp{time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)}
}

// MarshalJSON renders the timestamp in the fixed artifact format
func (ts Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(`"` + ts.Format(TimestampFormat) + `"`), nil
}

// UnmarshalJSON accepts the fixed artifact format
func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		ts.Time = time.Time{}
		return nil
	}
	t, err := time.Parse(TimestampFormat, s)
	if err != nil {
		return fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	ts.Time = t
	return nil
}

// ReviewCandidate is the raw output of extracting one review card.
// Every field is untrusted: empty strings mean the field was absent and a
// zero rating means the star image could not be read.
type ReviewCandidate struct {
	ReviewID     string `json:"review_id"`
	Rating       int    `json:"rating"`
	Title        string `json:"title"`
	Body         string `json:"body"`
	ReviewerName string `json:"reviewer_name"`
	RawDate      string `json:"date"` // Machine-readable datetime attribute, unparsed
	IsVerified   bool   `json:"is_verified"`
	Page         int    `json:"page"`       // Listing page the card was found on
	CardIndex    int    `json:"card_index"` // In-page card position
}

// HasIdentity reports whether the card carried a stable identifier
func (c ReviewCandidate) HasIdentity() bool {
	return strings.TrimSpace(c.ReviewID) != ""
}

// CleanedReview is a normalized, type-coerced review row. Validator tags
// mirror the store's check constraints.
type CleanedReview struct {
	ReviewID     string    `json:"review_id" validate:"required"`
	Rating       int       `json:"rating" validate:"min=1,max=5"`
	Title        string    `json:"title" validate:"required"`
	Body         string    `json:"body"` // Nullable: backfilled from title when absent
	ReviewerName string    `json:"reviewer_name" validate:"required"`
	Date         Timestamp `json:"date" validate:"required"`
	IsVerified   bool      `json:"is_verified"`
}

// GateResult is the output of the quality gate: the accepted partition plus
// rejection bookkeeping. Violations carry per-row reasons for diagnostics;
// only RejectedCount is load-bearing.
type GateResult struct {
	Accepted      []CleanedReview
	RejectedCount int
	Violations    map[string][]string
}

// StoredReview is a persisted review row including storage-assigned fields
type StoredReview struct {
	ID           int64     `json:"id"`
	ReviewID     string    `json:"review_id"`
	Rating       int       `json:"rating"`
	Title        string    `json:"title"`
	Body         string    `json:"body"`
	ReviewerName string    `json:"reviewer_name"`
	Date         time.Time `json:"date"`
	IsVerified   bool      `json:"is_verified"`
	CreatedAt    time.Time `json:"created_at"`
}

// StoreSummary aggregates committed store state for run reporting
type StoreSummary struct {
	TotalRecords  int         `json:"total_records"`
	RatingCounts  map[int]int `json:"rating_distribution"` // rating -> count
	AverageRating float64     `json:"average_rating"`
	VerifiedCount int         `json:"verified_count"`
	MinDate       time.Time   `json:"min_date"`
	MaxDate       time.Time   `json:"max_date"`
}

// RunSummary records one pipeline run for the ingest history table
type RunSummary struct {
	RunID       string     `json:"run_id"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Scraped     int        `json:"scraped"`
	Cleaned     int        `json:"cleaned"`
	Inserted    int        `json:"inserted"`
	Status      string     `json:"status"` // "running", "completed", "failed"
	Error       string     `json:"error,omitempty"`
}
