package cleaner

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/models"
)

// Gate deduplicates the cleaned batch and partitions it into accepted and
// rejected rows. Validation is lazy: every row is checked, every violation
// collected, and no violation ever aborts the run.
type Gate struct {
	validate *validator.Validate
	logger   arbor.ILogger
}

// NewGate creates a new quality gate
func NewGate(logger arbor.ILogger) *Gate {
	return &Gate{
		// Required-struct mode so the required tag fires on the
		// non-pointer Date field when it is the zero timestamp
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
}

// Apply runs deduplication then per-row schema validation over the batch.
// First occurrence order is accumulation order: ascending page, then
// in-page card order.
func (g *Gate) Apply(batch []models.CleanedReview) models.GateResult {
	deduped := Deduplicate(batch)
	if removed := len(batch) - len(deduped); removed > 0 {
		g.logger.Info().Int("removed", removed).Msg("Removed duplicate records")
	}

	// review_id must be unique across the whole batch post-dedup
	idCounts := make(map[string]int, len(deduped))
	for _, review := range deduped {
		idCounts[review.ReviewID]++
	}

	result := models.GateResult{
		Accepted:   make([]models.CleanedReview, 0, len(deduped)),
		Violations: make(map[string][]string),
	}

	for _, review := range deduped {
		var reasons []string

		if err := g.validate.Struct(review); err != nil {
			if verrs, ok := err.(validator.ValidationErrors); ok {
				for _, verr := range verrs {
					reasons = append(reasons, describeViolation(verr))
				}
			} else {
				reasons = append(reasons, err.Error())
			}
		}

		if idCounts[review.ReviewID] > 1 {
			reasons = append(reasons, fmt.Sprintf("review_id %q is not unique in batch", review.ReviewID))
		}

		if len(reasons) > 0 {
			result.RejectedCount++
			result.Violations[review.ReviewID] = append(result.Violations[review.ReviewID], reasons...)
			g.logger.Debug().
				Str("review_id", review.ReviewID).
				Strs("reasons", reasons).
				Msg("Review rejected by quality gate")
			continue
		}

		result.Accepted = append(result.Accepted, review)
	}

	if result.RejectedCount > 0 {
		g.logger.Warn().Int("rejected", result.RejectedCount).Msg("Reviews rejected by schema validation")
	}

	return result
}

// Deduplicate removes duplicates in two ordered passes: rows fully
// identical to an earlier row first, then rows sharing (title,
// reviewer_name) with an earlier row. First occurrence always wins.
// Running it on an already-deduplicated batch removes nothing.
func Deduplicate(batch []models.CleanedReview) []models.CleanedReview {
	exactSeen := make(map[string]bool, len(batch))
	afterExact := make([]models.CleanedReview, 0, len(batch))
	for _, review := range batch {
		key := exactKey(review)
		if exactSeen[key] {
			continue
		}
		exactSeen[key] = true
		afterExact = append(afterExact, review)
	}

	pairSeen := make(map[string]bool, len(afterExact))
	deduped := make([]models.CleanedReview, 0, len(afterExact))
	for _, review := range afterExact {
		key := review.Title + "\x00" + review.ReviewerName
		if pairSeen[key] {
			continue
		}
		pairSeen[key] = true
		deduped = append(deduped, review)
	}

	return deduped
}

func exactKey(review models.CleanedReview) string {
	return fmt.Sprintf("%s\x00%d\x00%s\x00%s\x00%s\x00%s\x00%t",
		review.ReviewID, review.Rating, review.Title, review.Body,
		review.ReviewerName, review.Date.Format(models.TimestampFormat), review.IsVerified)
}

// describeViolation renders one validation error as a short reason string
func describeViolation(verr validator.FieldError) string {
	switch verr.Field() {
	case "Rating":
		return fmt.Sprintf("rating %v outside range 1..5", verr.Value())
	case "Title":
		return "title cannot be empty"
	case "ReviewerName":
		return "reviewer name cannot be empty"
	case "Date":
		return "date is not a valid timestamp"
	default:
		return fmt.Sprintf("%s failed %s validation", verr.Field(), verr.Tag())
	}
}
