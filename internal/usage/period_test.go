package usage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slanglab/backend/internal/models"
)

func TestDayStartUTC(t *testing.T) {
	tests := []struct {
		name     string
		input    time.Time
		expected time.Time
	}{
		{
			"midday",
			time.Date(2026, 8, 28, 14, 30, 45, 0, time.UTC),
			time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC),
		},
		{
			"already midnight",
			time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC),
			time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC),
		},
		{
			"non-UTC input truncates against the UTC day",
			time.Date(2026, 8, 28, 1, 0, 0, 0, time.FixedZone("CEST", 2*3600)),
			time.Date(2026, 8, 27, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DayStartUTC(tt.input))
		})
	}
}

func TestWeekStartUTC(t *testing.T) {
	tests := []struct {
		name     string
		input    time.Time
		expected time.Time
	}{
		{
			"friday maps to preceding monday",
			time.Date(2026, 8, 28, 14, 0, 0, 0, time.UTC), // Friday
			time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC),
		},
		{
			"monday maps to itself",
			time.Date(2026, 8, 24, 23, 59, 59, 0, time.UTC),
			time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC),
		},
		{
			"sunday belongs to the week that started six days earlier",
			time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC),
			time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC),
		},
		{
			"week spanning a month boundary",
			time.Date(2026, 9, 2, 8, 0, 0, 0, time.UTC), // Wednesday
			time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, WeekStartUTC(tt.input))
		})
	}
}

func TestQuotaForCapability(t *testing.T) {
	quota, period, err := QuotaForCapability(models.CapabilitySearch)
	require.NoError(t, err)
	assert.Equal(t, models.QuotaSearches, quota)
	assert.Equal(t, models.PeriodDay, period)

	quota, period, err = QuotaForCapability(models.CapabilityAICreation)
	require.NoError(t, err)
	assert.Equal(t, models.QuotaAICreations, quota)
	assert.Equal(t, models.PeriodWeek, period)

	quota, period, err = QuotaForCapability(models.CapabilityManualCreation)
	require.NoError(t, err)
	assert.Equal(t, models.QuotaManualCreations, quota)
	assert.Equal(t, models.PeriodWeek, period)

	_, _, err = QuotaForCapability(models.CapabilityTracking)
	assert.Error(t, err, "tracking is plan-gated, not metered")

	_, _, err = QuotaForCapability(models.CapabilityAnalytics)
	assert.Error(t, err, "analytics is plan-gated, not metered")
}

func TestLimitFor(t *testing.T) {
	limits := &models.PlanLimits{
		DailySearches:         3,
		WeeklyAICreations:     1,
		WeeklyManualCreations: models.Unlimited,
	}

	assert.Equal(t, 3, LimitFor(limits, models.QuotaSearches))
	assert.Equal(t, 1, LimitFor(limits, models.QuotaAICreations))
	assert.Equal(t, models.Unlimited, LimitFor(limits, models.QuotaManualCreations))
}

func TestUsedFor(t *testing.T) {
	assert.Equal(t, 0, UsedFor(nil, models.QuotaSearches), "no counter row means nothing used")

	counter := &models.UsageCounter{
		SearchesUsed:        2,
		AICreationsUsed:     1,
		ManualCreationsUsed: 5,
	}
	assert.Equal(t, 2, UsedFor(counter, models.QuotaSearches))
	assert.Equal(t, 1, UsedFor(counter, models.QuotaAICreations))
	assert.Equal(t, 5, UsedFor(counter, models.QuotaManualCreations))
}
