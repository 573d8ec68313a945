// Package storage owns the managed backend connections and the relational
// store for terms, sightings, monitoring records, and plan limits.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/slanglab/backend/internal/config"
	"github.com/slanglab/backend/internal/models"
)

// Connect opens the postgres and redis connections and runs migrations.
func Connect(cfg *config.Config) (*gorm.DB, *redis.Client, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable TimeZone=UTC",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName,
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := migrate(db); err != nil {
		return nil, nil, err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.RedisHost, cfg.RedisPort),
		Password: cfg.RedisPassword,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logrus.Info("Database and redis connected")
	return db, rdb, nil
}

func migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Profile{},
		&models.PlanLimits{},
		&models.UsageCounter{},
		&models.Term{},
		&models.Sighting{},
		&models.MonitoringRecord{},
		&models.SourceRule{},
	)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

// defaultPlanLimits is the shipped quota table. Unlimited (-1) marks
// unmetered capabilities; a zero AI-creation grant marks a plan that does
// not include the feature at all, which the entitlement engine turns into
// plan_required rather than quota_exceeded. Free gets a taste of search and
// manual creation; SearchPro removes search limits and unlocks AI creation;
// LabPro unlocks tracking and analytics.
var defaultPlanLimits = []models.PlanLimits{
	{Plan: models.PlanFree, DailySearches: 3, WeeklyAICreations: 0, WeeklyManualCreations: 3, TrackingAllowed: false, AnalyticsAllowed: false},
	{Plan: models.PlanSearchPro, DailySearches: models.Unlimited, WeeklyAICreations: 10, WeeklyManualCreations: models.Unlimited, TrackingAllowed: false, AnalyticsAllowed: false},
	{Plan: models.PlanLabPro, DailySearches: models.Unlimited, WeeklyAICreations: models.Unlimited, WeeklyManualCreations: models.Unlimited, TrackingAllowed: true, AnalyticsAllowed: true},
}

// SeedPlanLimits inserts the default plan rows where missing. Existing rows
// are left alone so operators can tune quotas in place.
func SeedPlanLimits(ctx context.Context, db *gorm.DB) error {
	for _, limits := range defaultPlanLimits {
		row := limits
		err := db.WithContext(ctx).
			Where("plan = ?", row.Plan).
			FirstOrCreate(&row).Error
		if err != nil {
			return fmt.Errorf("failed to seed plan limits for %s: %w", row.Plan, err)
		}
	}
	return nil
}
