package usage

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/slanglab/backend/internal/models"
)

// dryRunMeter builds a meter over a gorm handle that renders SQL without
// touching a database, with a callback capturing the statement each Record
// would execute. This pins the upsert shape: a single database-level
// ON CONFLICT addition, never a read-modify-write that could lose a
// concurrent increment.
func dryRunMeter(t *testing.T) (*Meter, *capturedStatement) {
	db, err := gorm.Open(postgres.Open("host=localhost user=test dbname=test"), &gorm.Config{
		DryRun:                 true,
		SkipDefaultTransaction: true,
		DisableAutomaticPing:   true,
		Logger:                 logger.Discard,
	})
	require.NoError(t, err)

	captured := &capturedStatement{}
	err = db.Callback().Create().After("gorm:create").Register("test_capture_sql", func(tx *gorm.DB) {
		captured.sql = tx.Statement.SQL.String()
		captured.vars = tx.Statement.Vars
	})
	require.NoError(t, err)

	return NewMeter(db), captured
}

type capturedStatement struct {
	sql  string
	vars []interface{}
}

func TestRecord_BuildsAtomicUpsert(t *testing.T) {
	meter, captured := dryRunMeter(t)

	err := meter.Record(context.Background(), uuid.New(), models.QuotaSearches, models.PeriodDay, time.Now(), 2)
	require.NoError(t, err)

	assert.Contains(t, captured.sql, `INSERT INTO "usage_counters"`)
	assert.Contains(t, captured.sql, `ON CONFLICT ("principal_id","period_kind","period_start")`)
	// The increment happens inside the statement, against the stored value.
	assert.Contains(t, captured.sql, `"searches_used"=searches_used + $`)
	assert.Contains(t, captured.vars, 2)
}

func TestRecord_IncrementsTheQuotaColumnOnly(t *testing.T) {
	tests := []struct {
		quota  models.QuotaKind
		column string
	}{
		{models.QuotaSearches, "searches_used"},
		{models.QuotaAICreations, "ai_creations_used"},
		{models.QuotaManualCreations, "manual_creations_used"},
	}

	for _, tt := range tests {
		t.Run(string(tt.quota), func(t *testing.T) {
			meter, captured := dryRunMeter(t)

			err := meter.Record(context.Background(), uuid.New(), tt.quota, models.PeriodWeek, time.Now(), 1)
			require.NoError(t, err)

			assert.Contains(t, captured.sql, `"`+tt.column+`"=`+tt.column+` + $`)
		})
	}
}

func TestRecord_RejectsUnknownQuotaKind(t *testing.T) {
	meter, captured := dryRunMeter(t)

	err := meter.Record(context.Background(), uuid.New(), models.QuotaKind("nonsense"), models.PeriodDay, time.Now(), 1)
	assert.Error(t, err)
	assert.Empty(t, captured.sql)
}

func TestRecord_NonPositiveIncrementIsANoOp(t *testing.T) {
	meter, captured := dryRunMeter(t)

	require.NoError(t, meter.Record(context.Background(), uuid.New(), models.QuotaSearches, models.PeriodDay, time.Now(), 0))
	require.NoError(t, meter.Record(context.Background(), uuid.New(), models.QuotaSearches, models.PeriodDay, time.Now(), -3))

	assert.Empty(t, captured.sql)
}
