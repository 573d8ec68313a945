package monitoring

import (
	"math"
	"time"

	"github.com/slanglab/backend/internal/models"
)

// trendDateFormat keys one calendar-day bucket.
const trendDateFormat = "2006-01-02"

// ComputeTrendSummary builds the per-day Trending Index series for each
// requested window. A window of N days spans [today-N, today] inclusive, UTC.
// Every qualifying sighting contributes score/100 to its day's bucket, so an
// ordinary mention adds a fraction and the index is comparable across score
// distributions. Buckets are rounded to 2 decimals.
//
// Pure and order-independent: the same sighting set always yields identical
// buckets, and the series is rebuilt from rows rather than incrementally
// mutated, so stored aggregates can never drift from the source of truth.
func ComputeTrendSummary(sightings []models.Sighting, windows []int, minScore int, now time.Time) []models.TrendSummary {
	accepted := FilterAccepted(sightings, minScore)
	today := now.UTC().Truncate(24 * time.Hour)

	summaries := make([]models.TrendSummary, 0, len(windows))
	for _, window := range windows {
		if window <= 0 {
			continue
		}
		summaries = append(summaries, summarizeWindow(accepted, window, today))
	}
	return summaries
}

func summarizeWindow(sightings []models.Sighting, window int, today time.Time) models.TrendSummary {
	start := today.AddDate(0, 0, -window)

	// One zero bucket per calendar day, oldest first.
	buckets := make(map[string]float64, window+1)
	dates := make([]string, 0, window+1)
	for d := 0; d <= window; d++ {
		date := start.AddDate(0, 0, d).Format(trendDateFormat)
		dates = append(dates, date)
		buckets[date] = 0
	}

	urls := make(map[string]struct{})
	sourceNames := make(map[string]struct{})
	scoreSum := 0
	qualifying := 0

	for _, s := range sightings {
		observed := s.ObservedAt.UTC()
		if observed.Before(start) || observed.After(today.AddDate(0, 0, 1)) {
			continue
		}
		date := observed.Format(trendDateFormat)
		if _, ok := buckets[date]; !ok {
			continue
		}
		buckets[date] += float64(s.Score) / 100

		urls[s.URL] = struct{}{}
		sourceNames[s.Source] = struct{}{}
		scoreSum += s.Score
		qualifying++
	}

	points := make([]models.TrendPoint, 0, len(dates))
	for _, date := range dates {
		points = append(points, models.TrendPoint{
			Date:  date,
			Value: round2(buckets[date]),
		})
	}

	summary := models.TrendSummary{
		WindowDays:      window,
		Points:          points,
		DistinctURLs:    len(urls),
		DistinctSources: len(sourceNames),
	}
	if qualifying > 0 {
		summary.MeanScore = round2(float64(scoreSum) / float64(qualifying))
	}
	return summary
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
