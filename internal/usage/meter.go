package usage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/slanglab/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Meter reads and increments usage counters. Increments are a single
// database-level upsert with addition, never a read-modify-write, so two
// concurrent gated actions by the same principal cannot both observe the
// pre-increment value and slip past a limit.
type Meter struct {
	db *gorm.DB
}

// NewMeter creates a meter over the relational store.
func NewMeter(db *gorm.DB) *Meter {
	return &Meter{db: db}
}

// Counter returns the usage row for the principal's current period of the
// given kind, or nil if nothing has been used yet this period.
func (m *Meter) Counter(ctx context.Context, principalID uuid.UUID, kind models.PeriodKind, now time.Time) (*models.UsageCounter, error) {
	var counter models.UsageCounter
	err := m.db.WithContext(ctx).
		Where("principal_id = ? AND period_kind = ? AND period_start = ?",
			principalID, kind, PeriodStart(kind, now)).
		First(&counter).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read usage counter: %w", err)
	}
	return &counter, nil
}

// Used returns the consumed count for a quota kind in the current period.
func (m *Meter) Used(ctx context.Context, principalID uuid.UUID, quota models.QuotaKind, kind models.PeriodKind, now time.Time) (int, error) {
	counter, err := m.Counter(ctx, principalID, kind, now)
	if err != nil {
		return 0, err
	}
	return UsedFor(counter, quota), nil
}

// Record adds n to the principal's counter for the current period, creating
// the row lazily on first use. Callers invoke this only after the gated
// action's effect is durably committed, never before.
func (m *Meter) Record(ctx context.Context, principalID uuid.UUID, quota models.QuotaKind, kind models.PeriodKind, now time.Time, n int) error {
	if n <= 0 {
		return nil
	}

	column, err := columnFor(quota)
	if err != nil {
		return err
	}

	row := models.UsageCounter{
		PrincipalID: principalID,
		PeriodKind:  kind,
		PeriodStart: PeriodStart(kind, now),
	}
	switch quota {
	case models.QuotaSearches:
		row.SearchesUsed = n
	case models.QuotaAICreations:
		row.AICreationsUsed = n
	case models.QuotaManualCreations:
		row.ManualCreationsUsed = n
	}

	err = m.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "principal_id"},
			{Name: "period_kind"},
			{Name: "period_start"},
		},
		DoUpdates: clause.Assignments(map[string]interface{}{
			column: gorm.Expr(column+" + ?", n),
		}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to record usage: %w", err)
	}
	return nil
}

func columnFor(quota models.QuotaKind) (string, error) {
	switch quota {
	case models.QuotaSearches:
		return "searches_used", nil
	case models.QuotaAICreations:
		return "ai_creations_used", nil
	case models.QuotaManualCreations:
		return "manual_creations_used", nil
	default:
		return "", fmt.Errorf("unknown quota kind %q", quota)
	}
}
