package scraper

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
)

// Selectors for the review card markup. The fallback chains below are
// ordered: earlier selectors always win over later ones.
const (
	cardSelector        = "article"
	ratingImageSelector = `img[src*="stars-"]`
	titleSelector       = "h2"
	primaryBodySelector = `[data-service-review-text-typography="true"]`
	paragraphSelector   = "p"
	dateSelector        = "time"
	profileLinkSelector = `a[href*="/users/"]`

	// Paragraphs shorter than this are labels, not review bodies
	minBodyLength = 20
)

// reviewerNameSelectors is the ordered strategy chain for the reviewer
// name: first non-empty match wins, profileLinkSelector is the final
// fallback.
var reviewerNameSelectors = []string{
	`[data-consumer-name-typography="true"]`,
	`a[name="consumer-profile"]`,
	`span[data-consumer-name]`,
}

// boilerplatePrefixes mark paragraphs that are never review bodies
var boilerplatePrefixes = []string{"Date of experience", "Updated", "Replied"}

// ratingPattern extracts the digit from star image URLs like .../stars-4.svg
var ratingPattern = regexp.MustCompile(`stars-(\d)`)

// Extractor turns one rendered listing page into raw review candidates.
// Every field is extracted defensively and independently; missing fields
// are repaired downstream, not here.
type Extractor struct {
	logger arbor.ILogger
}

// NewExtractor creates a new card extractor
func NewExtractor(logger arbor.ILogger) *Extractor {
	return &Extractor{logger: logger}
}

// ExtractPage extracts all review cards on the page. A card yielding
// neither an identifier nor a title is discarded; a card that fails to
// parse is logged and skipped without affecting the rest of the page.
func (e *Extractor) ExtractPage(page interfaces.RenderedPage, pageNum int) []models.ReviewCandidate {
	cards := page.Query(cardSelector)
	e.logger.Info().Int("page", pageNum).Int("cards", len(cards)).Msg("Found review cards")

	candidates := make([]models.ReviewCandidate, 0, len(cards))
	for i, card := range cards {
		candidate, ok := e.extractCard(card, pageNum, i)
		if !ok {
			continue
		}
		if candidate.ReviewID == "" && candidate.Title == "" {
			e.logger.Debug().Int("page", pageNum).Int("card", i).Msg("Card has no identity or title, discarding")
			continue
		}
		candidates = append(candidates, candidate)
	}

	e.logger.Info().Int("page", pageNum).Int("parsed", len(candidates)).Msg("Parsed reviews from page")
	return candidates
}

// extractCard populates one candidate from a card element. Panics from
// malformed markup are recovered so a single bad card never takes down
// the page.
func (e *Extractor) extractCard(card interfaces.Element, pageNum, cardIndex int) (candidate models.ReviewCandidate, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn().
				Int("page", pageNum).
				Int("card", cardIndex).
				Str("error", fmt.Sprintf("%v", r)).
				Msg("Error parsing review card, skipping")
			ok = false
		}
	}()

	candidate = models.ReviewCandidate{
		Page:      pageNum,
		CardIndex: cardIndex,
	}

	candidate.ReviewID = card.Attr("id")
	candidate.Rating = e.extractRating(card)
	candidate.Title = e.extractTitle(card)
	candidate.Body = e.extractBody(card)
	candidate.ReviewerName = e.extractReviewerName(card)
	candidate.RawDate = e.extractRawDate(card)

	// Heuristic: the card mentions "verified" somewhere. Can false-positive
	// on bodies that use the word; accepted as approximate.
	candidate.IsVerified = strings.Contains(strings.ToLower(card.Text()), "verified")

	return candidate, true
}

// extractRating reads the digit encoded in the star image URL.
// Zero means unknown, not a failure.
func (e *Extractor) extractRating(card interfaces.Element) int {
	images := card.Query(ratingImageSelector)
	if len(images) == 0 {
		return 0
	}

	match := ratingPattern.FindStringSubmatch(images[0].Attr("src"))
	if match == nil {
		return 0
	}

	rating, err := strconv.Atoi(match[1])
	if err != nil {
		return 0
	}
	return rating
}

// extractTitle returns the first heading's trimmed text
func (e *Extractor) extractTitle(card interfaces.Element) string {
	headings := card.Query(titleSelector)
	if len(headings) == 0 {
		return ""
	}
	return strings.TrimSpace(headings[0].Text())
}

// extractBody tries the semantically tagged body element first, then falls
// back to the first paragraph that is long enough and not boilerplate.
// The ordering is deterministic: primary selector always wins.
func (e *Extractor) extractBody(card interfaces.Element) string {
	if primary := card.Query(primaryBodySelector); len(primary) > 0 {
		return strings.TrimSpace(primary[0].Text())
	}

	for _, p := range card.Query(paragraphSelector) {
		text := strings.TrimSpace(p.Text())
		if len(text) <= minBodyLength {
			continue
		}
		if hasBoilerplatePrefix(text) {
			continue
		}
		return text
	}

	return ""
}

func hasBoilerplatePrefix(text string) bool {
	for _, prefix := range boilerplatePrefixes {
		if strings.HasPrefix(text, prefix) {
			return true
		}
	}
	return false
}

// extractReviewerName walks the ordered selector chain, first non-empty
// match wins; any profile-link anchor is the final fallback.
func (e *Extractor) extractReviewerName(card interfaces.Element) string {
	for _, selector := range reviewerNameSelectors {
		if matches := card.Query(selector); len(matches) > 0 {
			if name := strings.TrimSpace(matches[0].Text()); name != "" {
				return name
			}
		}
	}

	if links := card.Query(profileLinkSelector); len(links) > 0 {
		return strings.TrimSpace(links[0].Text())
	}

	return ""
}

// extractRawDate reads the machine-readable datetime attribute off the
// time element. Parsing happens in the normalizer, not here.
func (e *Extractor) extractRawDate(card interfaces.Element) string {
	times := card.Query(dateSelector)
	if len(times) == 0 {
		return ""
	}
	return times[0].Attr("datetime")
}
