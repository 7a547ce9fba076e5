package cleaner

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/models"
)

var (
	whitespaceRuns = regexp.MustCompile(`\s+`)
	// Everything outside letters, digits, underscore, whitespace, and basic
	// punctuation. Unicode classes so accented and non-Latin names survive.
	specialChars = regexp.MustCompile(`[^\p{L}\p{N}_\s.,!?'"-]`)
)

// dateLayouts are tried in order when parsing the raw datetime attribute
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Normalizer repairs and coerces raw candidates into cleaned reviews.
// It operates over the whole accumulated batch in one pass and never
// mutates its input.
type Normalizer struct {
	anonymousName string
	logger        arbor.ILogger
}

// NewNormalizer creates a new normalizer
func NewNormalizer(config common.CleanerConfig, logger arbor.ILogger) *Normalizer {
	anonymous := config.AnonymousName
	if anonymous == "" {
		anonymous = "Anonymous"
	}
	return &Normalizer{
		anonymousName: anonymous,
		logger:        logger,
	}
}

// Normalize backfills missing fields, normalizes text, and coerces types.
// Records still missing a rating, title, or parseable date after backfill
// are dropped; the drop count is returned alongside the cleaned batch.
func (n *Normalizer) Normalize(candidates []models.ReviewCandidate) ([]models.CleanedReview, int) {
	cleaned := make([]models.CleanedReview, 0, len(candidates))
	dropped := 0

	for _, candidate := range candidates {
		reviewID := strings.TrimSpace(candidate.ReviewID)
		if reviewID == "" {
			reviewID = GenerateReviewID(candidate.Title, candidate.RawDate)
		}

		title := NormalizeText(candidate.Title)
		body := candidate.Body
		if body == "" {
			// A review with no body text is self-describing via its title
			body = candidate.Title
		}
		body = NormalizeText(body)

		reviewer := NormalizeText(candidate.ReviewerName)
		if reviewer == "" {
			reviewer = n.anonymousName
		}

		date, dateOK := parseReviewDate(candidate.RawDate)

		// Rating, title, and date have no safe default
		if candidate.Rating == 0 || title == "" || !dateOK {
			dropped++
			n.logger.Debug().
				Str("review_id", reviewID).
				Int("rating", candidate.Rating).
				Bool("has_title", title != "").
				Bool("has_date", dateOK).
				Msg("Dropping record with missing critical field")
			continue
		}

		cleaned = append(cleaned, models.CleanedReview{
			ReviewID:     reviewID,
			Rating:       candidate.Rating,
			Title:        title,
			Body:         body,
			ReviewerName: reviewer,
			Date:         date,
			IsVerified:   candidate.IsVerified,
		})
	}

	if dropped > 0 {
		n.logger.Warn().Int("dropped", dropped).Msg("Dropped records with missing critical fields")
	}

	return cleaned, dropped
}

// GenerateReviewID derives a stable identifier for a candidate that
// carried none. The hash is seeded only by title and raw date, so the
// same underlying review receives the same generated id across runs and
// upsert idempotence holds for identity-less rows too.
func GenerateReviewID(title, rawDate string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s", title, rawDate)))
	return "gen-" + hex.EncodeToString(sum[:])[:16]
}

// NormalizeText strips characters outside letters, digits, and basic
// punctuation, collapses whitespace runs to a single space, and trims.
// Stripping runs first so removed characters cannot leave stray spaces
// behind, and a string of nothing but stripped characters comes back
// empty rather than whitespace-only.
func NormalizeText(text string) string {
	if text == "" {
		return ""
	}
	text = specialChars.ReplaceAllString(text, "")
	text = whitespaceRuns.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// parseReviewDate parses the raw datetime attribute, converts to UTC, and
// strips the zone. Unparseable dates report false and trigger the
// critical-field drop.
func parseReviewDate(raw string) (models.Timestamp, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return models.Timestamp{}, false
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return models.NewTimestamp(t), true
		}
	}

	return models.Timestamp{}, false
}
