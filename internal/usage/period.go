// Package usage meters gated actions against daily and weekly periods.
// Searches count against the UTC calendar day; creations count against the
// ISO week starting Monday. A new period means a new counter row, never a
// reset of the old one.
package usage

import (
	"fmt"
	"time"

	"github.com/slanglab/backend/internal/models"
)

// DayStartUTC truncates t to the start of its UTC calendar day.
func DayStartUTC(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// WeekStartUTC returns the Monday 00:00 UTC that starts t's ISO week.
func WeekStartUTC(t time.Time) time.Time {
	t = t.UTC()
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	daysSinceMonday := weekday - 1
	start := t.AddDate(0, 0, -daysSinceMonday)
	return time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
}

// PeriodStart returns the start of the period of the given kind containing t.
func PeriodStart(kind models.PeriodKind, t time.Time) time.Time {
	switch kind {
	case models.PeriodDay:
		return DayStartUTC(t)
	case models.PeriodWeek:
		return WeekStartUTC(t)
	default:
		// Unreachable for the closed PeriodKind set; day is the tighter bucket.
		return DayStartUTC(t)
	}
}

// QuotaForCapability maps a metered capability to its counter and period.
func QuotaForCapability(cap models.Capability) (models.QuotaKind, models.PeriodKind, error) {
	switch cap {
	case models.CapabilitySearch:
		return models.QuotaSearches, models.PeriodDay, nil
	case models.CapabilityAICreation:
		return models.QuotaAICreations, models.PeriodWeek, nil
	case models.CapabilityManualCreation:
		return models.QuotaManualCreations, models.PeriodWeek, nil
	default:
		return "", "", fmt.Errorf("capability %q is not metered", cap)
	}
}

// LimitFor returns the plan's limit for a quota kind.
func LimitFor(limits *models.PlanLimits, quota models.QuotaKind) int {
	switch quota {
	case models.QuotaSearches:
		return limits.DailySearches
	case models.QuotaAICreations:
		return limits.WeeklyAICreations
	case models.QuotaManualCreations:
		return limits.WeeklyManualCreations
	default:
		return 0
	}
}

// UsedFor reads the relevant counter column off a usage row. A nil row means
// nothing was used this period.
func UsedFor(counter *models.UsageCounter, quota models.QuotaKind) int {
	if counter == nil {
		return 0
	}
	switch quota {
	case models.QuotaSearches:
		return counter.SearchesUsed
	case models.QuotaAICreations:
		return counter.AICreationsUsed
	case models.QuotaManualCreations:
		return counter.ManualCreationsUsed
	default:
		return 0
	}
}
