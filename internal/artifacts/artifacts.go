// Package artifacts reads and writes the intermediate JSON files passed
// between pipeline stages. Artifacts are written wholesale after a stage
// completes, never streamed, so a re-run of any stage overwrites its
// output atomically from the reader's point of view.
package artifacts

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ternarybob/colligo/internal/models"
)

// WriteRaw writes the full batch of raw candidates to path
func WriteRaw(path string, candidates []models.ReviewCandidate) error {
	return writeJSON(path, candidates)
}

// ReadRaw loads raw candidates from path. A missing artifact is an error,
// never an empty batch.
func ReadRaw(path string) ([]models.ReviewCandidate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("raw artifact not found at %s: %w", path, err)
	}

	var candidates []models.ReviewCandidate
	if err := json.Unmarshal(data, &candidates); err != nil {
		return nil, fmt.Errorf("failed to parse raw artifact %s: %w", path, err)
	}

	return candidates, nil
}

// WriteCleaned writes the validated batch to path with dates rendered in
// the fixed timestamp format.
func WriteCleaned(path string, reviews []models.CleanedReview) error {
	return writeJSON(path, reviews)
}

// ReadCleaned loads validated reviews from path. A missing artifact is an
// error, never an empty batch.
func ReadCleaned(path string) ([]models.CleanedReview, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cleaned artifact not found at %s: %w", path, err)
	}

	var reviews []models.CleanedReview
	if err := json.Unmarshal(data, &reviews); err != nil {
		return nil, fmt.Errorf("failed to parse cleaned artifact %s: %w", path, err)
	}

	return reviews, nil
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create artifact directory: %w", err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal artifact: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write artifact %s: %w", path, err)
	}

	return nil
}
