package monitoring

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slanglab/backend/internal/models"
)

func sightingAt(source, url string, score int, observedAt time.Time) models.Sighting {
	return models.Sighting{
		ID:         uuid.New(),
		Source:     source,
		URL:        url,
		Snippet:    "sample snippet",
		Score:      score,
		ObservedAt: observedAt,
	}
}

func TestComputeTrendSummary_BucketsAndTotals(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	today := time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)
	yesterday := today.AddDate(0, 0, -1)

	sightings := []models.Sighting{
		sightingAt("reddit", "https://a.example.com", 80, today),
		sightingAt("reddit", "https://b.example.com", 50, today),
		sightingAt("twitter", "https://c.example.com", 60, yesterday),
		// Re-crawl of the same page: counts in buckets but not distinct URLs.
		sightingAt("websearch", "https://a.example.com", 40, yesterday),
	}

	summaries := ComputeTrendSummary(sightings, []int{7}, 40, now)
	require.Len(t, summaries, 1)
	summary := summaries[0]

	assert.Equal(t, 7, summary.WindowDays)
	// A 7-day window spans 8 buckets, [today-7, today] inclusive.
	require.Len(t, summary.Points, 8)

	assert.Equal(t, "2026-08-28", summary.Points[7].Date)
	assert.Equal(t, 1.3, summary.Points[7].Value) // 0.8 + 0.5
	assert.Equal(t, "2026-08-27", summary.Points[6].Date)
	assert.Equal(t, 1.0, summary.Points[6].Value) // 0.6 + 0.4

	assert.Equal(t, 3, summary.DistinctURLs, "re-crawled pages de-duplicate")
	assert.Equal(t, 3, summary.DistinctSources)
	assert.Equal(t, 57.5, summary.MeanScore)
}

func TestComputeTrendSummary_Idempotent(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	var sightings []models.Sighting
	for day := 0; day < 40; day++ {
		observed := now.AddDate(0, 0, -day)
		sightings = append(sightings,
			sightingAt("reddit", "https://r.example.com/"+observed.Format("2006-01-02"), 41+day%60, observed))
	}

	first := ComputeTrendSummary(sightings, []int{7, 30, 90}, 40, now)
	second := ComputeTrendSummary(sightings, []int{7, 30, 90}, 40, now)

	assert.Equal(t, first, second, "same sightings must yield identical buckets")
}

func TestComputeTrendSummary_OrderIndependent(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	a := sightingAt("reddit", "https://a.example.com", 80, now.AddDate(0, 0, -1))
	b := sightingAt("twitter", "https://b.example.com", 60, now.AddDate(0, 0, -2))
	c := sightingAt("websearch", "https://c.example.com", 45, now.AddDate(0, 0, -3))

	forward := ComputeTrendSummary([]models.Sighting{a, b, c}, []int{7}, 40, now)
	reversed := ComputeTrendSummary([]models.Sighting{c, b, a}, []int{7}, 40, now)

	assert.Equal(t, forward, reversed)
}

func TestComputeTrendSummary_BelowFloorExcludedEverywhere(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	sightings := []models.Sighting{
		sightingAt("reddit", "https://low.example.com", 20, now),
	}

	summaries := ComputeTrendSummary(sightings, []int{7}, 40, now)
	require.Len(t, summaries, 1)

	assert.Equal(t, 0, summaries[0].DistinctURLs)
	assert.Equal(t, 0, summaries[0].DistinctSources)
	assert.Equal(t, 0.0, summaries[0].MeanScore)
	for _, point := range summaries[0].Points {
		assert.Equal(t, 0.0, point.Value)
	}
}

func TestComputeTrendSummary_OutsideWindowExcluded(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	sightings := []models.Sighting{
		sightingAt("reddit", "https://old.example.com", 90, now.AddDate(0, 0, -10)),
	}

	summaries := ComputeTrendSummary(sightings, []int{7, 30}, 40, now)
	require.Len(t, summaries, 2)

	week := summaries[0]
	assert.Equal(t, 0, week.DistinctURLs, "10-day-old sighting is outside the 7-day window")

	month := summaries[1]
	assert.Equal(t, 1, month.DistinctURLs)
}

func TestComputeTrendSummary_RoundsToTwoDecimals(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	// Three 41-score sightings in one day: 1.23 after rounding.
	day := now.AddDate(0, 0, -1)
	sightings := []models.Sighting{
		sightingAt("reddit", "https://a.example.com", 41, day),
		sightingAt("reddit", "https://b.example.com", 41, day),
		sightingAt("reddit", "https://c.example.com", 41, day),
	}

	summaries := ComputeTrendSummary(sightings, []int{7}, 40, now)
	require.Len(t, summaries, 1)

	var value float64
	for _, point := range summaries[0].Points {
		if point.Date == day.Format("2006-01-02") {
			value = point.Value
		}
	}
	assert.Equal(t, 1.23, value)
}

func TestComputeTrendSummary_SkipsNonPositiveWindows(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	summaries := ComputeTrendSummary(nil, []int{0, -5, 7}, 40, now)

	require.Len(t, summaries, 1)
	assert.Equal(t, 7, summaries[0].WindowDays)
}
