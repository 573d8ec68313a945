package sources

import (
	"context"
	"time"

	"github.com/slanglab/backend/internal/models"
)

// Source is the contract for evidence providers. Each provider searches one
// platform for uses of a phrase and returns scored sightings.
type Source interface {
	GetName() string
	FetchSightings(ctx context.Context, phrase string, window time.Duration) ([]models.Sighting, error)
	IsEnabled() bool
}

const userAgent = "SlangLab-Monitor/1.0"

// clampScore bounds a relevance estimate to the 0-100 scale sightings carry.
func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// dedupeByURL drops repeat sightings of the same page within one fetch.
func dedupeByURL(sightings []models.Sighting) []models.Sighting {
	seen := make(map[string]bool)
	var unique []models.Sighting
	for _, s := range sightings {
		if seen[s.URL] {
			continue
		}
		seen[s.URL] = true
		unique = append(unique, s)
	}
	return unique
}
