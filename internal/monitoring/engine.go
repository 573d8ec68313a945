package monitoring

import (
	"net/url"
	"strings"
	"time"

	"github.com/slanglab/backend/internal/models"
)

const (
	// trendingThreshold is the accumulated score past which a term is
	// promoted to trending. Trending is sticky: there is no demotion path.
	trendingThreshold = 100

	// mentionWeight is the flat score added per accepted mention. Recency
	// decay happens through the dormancy rule, not through score decay.
	mentionWeight = 10

	// dormantAfter is how long a spotted term can go without a fresh find
	// before an empty pass marks it dormant.
	dormantAfter = 30 * 24 * time.Hour
)

// knownPlatforms maps URL hosts to platform names. Unknown hosts fall into
// the generic "web" bucket.
var knownPlatforms = map[string]string{
	"twitter.com":       "twitter",
	"x.com":             "twitter",
	"reddit.com":        "reddit",
	"old.reddit.com":    "reddit",
	"tiktok.com":        "tiktok",
	"youtube.com":       "youtube",
	"youtu.be":          "youtube",
	"instagram.com":     "instagram",
	"facebook.com":      "facebook",
	"news.ycombinator.com": "hackernews",
}

// PlatformFor derives the platform bucket from a sighting's URL host.
func PlatformFor(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "web"
	}
	host := strings.ToLower(strings.TrimPrefix(u.Host, "www."))
	if platform, ok := knownPlatforms[host]; ok {
		return platform
	}
	return "web"
}

// definitionMarkers flag snippets that talk about a phrase rather than use
// it. A snippet carrying the phrase alongside one of these is treated as a
// dictionary context, not an organic use. Deliberately conservative; a real
// classifier would do better here.
var definitionMarkers = []string{"definition", "meaning", "define"}

// CountsAsUsage reports whether a snippet shows the phrase being used in the
// wild rather than defined.
func CountsAsUsage(phrase, snippet string) bool {
	lower := strings.ToLower(snippet)
	if !strings.Contains(lower, strings.ToLower(phrase)) {
		return false
	}
	for _, marker := range definitionMarkers {
		if strings.Contains(lower, marker) {
			return false
		}
	}
	return true
}

// FilterAccepted keeps sightings at or above the minimum enabled-source
// threshold and drops malformed ones. Each rejected sighting is dropped
// singly; the batch never fails as a whole.
func FilterAccepted(sightings []models.Sighting, minScore int) []models.Sighting {
	var accepted []models.Sighting
	for _, s := range sightings {
		if err := s.Validate(); err != nil {
			continue
		}
		if s.Score < minScore {
			continue
		}
		accepted = append(accepted, s)
	}
	return accepted
}

// RecordSightingBatch folds one batch of sightings into a monitoring record
// and returns the updated record. Pure with respect to its inputs: the
// caller persists the result and serializes concurrent updates per term.
//
// Transitions: monitoring -> spotted on any organic find; anything ->
// trending once the score clears the threshold; spotted -> dormant when an
// empty pass lands more than 30 days after the last find. Trending never
// demotes.
func RecordSightingBatch(term models.Term, sightings []models.Sighting, prior models.MonitoringRecord, minScore int, now time.Time) models.MonitoringRecord {
	record := prior

	accepted := FilterAccepted(sightings, minScore)

	foundCount := 0
	for _, s := range accepted {
		// Every accepted sighting registers its platform; the organic-use
		// filter only gates the score and counters. A dictionary writing
		// about the phrase still proves it reached that platform.
		record.Platforms = record.Platforms.Add(PlatformFor(s.URL))
		if !CountsAsUsage(term.CanonicalText, s.Snippet) {
			continue
		}
		foundCount++
	}

	record.TimesFound += foundCount
	record.TrendingScore += foundCount * mentionWeight

	switch {
	case record.TrendingScore > trendingThreshold:
		record.Status = models.StatusTrending
	case foundCount > 0 && record.Status == models.StatusMonitoring:
		record.Status = models.StatusSpotted
	case foundCount == 0 && record.Status == models.StatusSpotted &&
		record.LastFoundAt != nil && now.Sub(*record.LastFoundAt) > dormantAfter:
		record.Status = models.StatusDormant
	}

	checked := now
	record.LastCheckedAt = &checked
	if foundCount > 0 {
		found := now
		record.LastFoundAt = &found
	}

	return record
}
