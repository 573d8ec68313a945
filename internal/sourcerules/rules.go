// Package sourcerules holds the runtime-configurable quality floors for
// evidence sources. Rules live in the relational store; reads go through a
// redis cache with a short TTL so every instance converges on a rule change
// within the max age. Lifecycle: populated on first use, invalidated
// explicitly when an admin updates a rule, expired by TTL otherwise. Rules
// are never stale beyond the TTL.
package sourcerules

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/slanglab/backend/internal/models"
)

const cacheKey = "slanglab:sourcerules"

// ErrNoEnabledSources marks the configuration error of every source being
// disabled; callers must fall back to the most restrictive reading.
var ErrNoEnabledSources = errors.New("no enabled source rules configured")

// Service reads and updates source rules.
type Service struct {
	db  *gorm.DB
	rdb *redis.Client
	ttl time.Duration
}

// NewService creates the rules service.
func NewService(db *gorm.DB, rdb *redis.Client, ttl time.Duration) *Service {
	return &Service{db: db, rdb: rdb, ttl: ttl}
}

// cached is the cache envelope; FetchedAt documents when the value was read
// from the store.
type cached struct {
	Rules     []models.SourceRule `json:"rules"`
	FetchedAt time.Time           `json:"fetched_at"`
}

// List returns all source rules, from cache when fresh.
func (s *Service) List(ctx context.Context) ([]models.SourceRule, error) {
	if s.rdb != nil {
		var entry cached
		data, err := s.rdb.Get(ctx, cacheKey).Bytes()
		if err == nil {
			if err := json.Unmarshal(data, &entry); err == nil {
				return entry.Rules, nil
			}
		}
	}

	var rules []models.SourceRule
	if err := s.db.WithContext(ctx).Order("source").Find(&rules).Error; err != nil {
		return nil, fmt.Errorf("failed to load source rules: %w", err)
	}

	if s.rdb != nil {
		entry := cached{Rules: rules, FetchedAt: time.Now()}
		if data, err := json.Marshal(entry); err == nil {
			if err := s.rdb.Set(ctx, cacheKey, data, s.ttl).Err(); err != nil {
				logrus.Warnf("Failed to cache source rules: %v", err)
			}
		}
	}

	return rules, nil
}

// MinEnabledScore returns the minimum quality floor across enabled sources.
// Using the minimum means the union of accepted sightings is never
// under-counted because one source's rule is overly strict.
func (s *Service) MinEnabledScore(ctx context.Context) (int, error) {
	rules, err := s.List(ctx)
	if err != nil {
		return 0, err
	}

	min := -1
	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}
		if min == -1 || rule.MinScore < min {
			min = rule.MinScore
		}
	}
	if min == -1 {
		return 0, ErrNoEnabledSources
	}
	return min, nil
}

// Update upserts one rule and invalidates the cache so the change is visible
// immediately rather than after TTL expiry.
func (s *Service) Update(ctx context.Context, rule models.SourceRule) error {
	if rule.Source == "" {
		return fmt.Errorf("source rule missing source name")
	}
	if rule.MinScore < 0 || rule.MinScore > 100 {
		return fmt.Errorf("source rule min_score %d out of range [0,100]", rule.MinScore)
	}

	if err := s.db.WithContext(ctx).Save(&rule).Error; err != nil {
		return fmt.Errorf("failed to save source rule: %w", err)
	}

	s.Invalidate(ctx)
	return nil
}

// Invalidate drops the cached rule set. Called on every upstream change.
func (s *Service) Invalidate(ctx context.Context) {
	if s.rdb == nil {
		return
	}
	if err := s.rdb.Del(ctx, cacheKey).Err(); err != nil {
		logrus.Warnf("Failed to invalidate source rule cache: %v", err)
	}
}

// Seed inserts default rules for the given sources if none exist yet.
func (s *Service) Seed(ctx context.Context, sourceNames []string, defaultMinScore int) error {
	for _, name := range sourceNames {
		rule := models.SourceRule{Source: name, Enabled: true, MinScore: defaultMinScore}
		err := s.db.WithContext(ctx).
			Where("source = ?", name).
			FirstOrCreate(&rule).Error
		if err != nil {
			return fmt.Errorf("failed to seed rule for %s: %w", name, err)
		}
	}
	s.Invalidate(ctx)
	return nil
}
