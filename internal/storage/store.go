package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/slanglab/backend/internal/models"
)

// ErrPlanNotConfigured marks a plan in active use with no limits row. Quota
// logic treats this as a configuration error and fails restrictive.
var ErrPlanNotConfigured = errors.New("plan has no limits configured")

// ErrNotFound wraps gorm's record-not-found for callers outside storage.
var ErrNotFound = errors.New("not found")

// ErrDuplicateTerm marks an attempt to track the same phrase twice.
var ErrDuplicateTerm = errors.New("term already tracked")

// Store is the relational store over postgres.
type Store struct {
	db *gorm.DB
}

// NewStore creates a store over an open connection.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying connection for collaborators that run their own
// queries (the usage meter, the source-rule service).
func (s *Store) DB() *gorm.DB {
	return s.db
}

// NormalizeTerm lowercases and collapses a phrase into its canonical slug
// form so one user cannot track the same phrase under two rows.
func NormalizeTerm(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(text))), " ")
}

// --- Profiles ---

// GetProfile loads the durable identity record behind a principal.
func (s *Store) GetProfile(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	var profile models.Profile
	err := s.db.WithContext(ctx).First(&profile, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	return &profile, nil
}

// --- Plan limits ---

// GetPlanLimits returns the quota row for a plan, or ErrPlanNotConfigured.
func (s *Store) GetPlanLimits(ctx context.Context, plan models.Plan) (*models.PlanLimits, error) {
	var limits models.PlanLimits
	err := s.db.WithContext(ctx).First(&limits, "plan = ?", plan).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrPlanNotConfigured, plan)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load plan limits: %w", err)
	}
	return &limits, nil
}

// --- Terms ---

// CreateTerm inserts a new term for an owner. The (owner, normalized text)
// pair is unique; a second track of the same phrase returns ErrDuplicateTerm.
func (s *Store) CreateTerm(ctx context.Context, term *models.Term) error {
	if term.ID == uuid.Nil {
		term.ID = uuid.New()
	}
	term.NormalizedText = NormalizeTerm(term.CanonicalText)

	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "owner_id"}, {Name: "normalized_text"}},
		DoNothing: true,
	}).Create(term)
	if result.Error != nil {
		return fmt.Errorf("failed to create term: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrDuplicateTerm
	}
	return nil
}

// GetTerm loads one term.
func (s *Store) GetTerm(ctx context.Context, id uuid.UUID) (*models.Term, error) {
	var term models.Term
	err := s.db.WithContext(ctx).First(&term, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load term: %w", err)
	}
	return &term, nil
}

// SearchTerms finds terms whose text matches the query, for the lookup flow.
func (s *Store) SearchTerms(ctx context.Context, query string, limit int) ([]models.Term, error) {
	if limit <= 0 || limit > 100 {
		limit = 25
	}
	var terms []models.Term
	pattern := "%" + NormalizeTerm(query) + "%"
	err := s.db.WithContext(ctx).
		Where("normalized_text LIKE ?", pattern).
		Order("created_at DESC").
		Limit(limit).
		Find(&terms).Error
	if err != nil {
		return nil, fmt.Errorf("failed to search terms: %w", err)
	}
	return terms, nil
}

// ListTrackedTerms returns every term with a monitoring record, the batch a
// full pass walks.
func (s *Store) ListTrackedTerms(ctx context.Context) ([]models.Term, error) {
	var terms []models.Term
	err := s.db.WithContext(ctx).
		Joins("JOIN monitoring_records ON monitoring_records.term_id = terms.id").
		Find(&terms).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list tracked terms: %w", err)
	}
	return terms, nil
}

// --- Sightings ---

// SaveSightings inserts a batch, skipping (term, url) pairs already seen so
// re-crawls of the same page do not duplicate rows.
func (s *Store) SaveSightings(ctx context.Context, sightings []models.Sighting) error {
	if len(sightings) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "term_id"}, {Name: "url"}},
		DoNothing: true,
	}).Create(&sightings).Error
	if err != nil {
		return fmt.Errorf("failed to save sightings: %w", err)
	}
	return nil
}

// ListSightings returns a term's sightings observed at or after since.
func (s *Store) ListSightings(ctx context.Context, termID uuid.UUID, since time.Time) ([]models.Sighting, error) {
	var sightings []models.Sighting
	err := s.db.WithContext(ctx).
		Where("term_id = ? AND observed_at >= ?", termID, since).
		Order("observed_at").
		Find(&sightings).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list sightings: %w", err)
	}
	return sightings, nil
}

// --- Monitoring records ---

// GetOrCreateRecord returns the record for a (term, owner) pair, creating
// the initial monitoring-state row idempotently on first track.
func (s *Store) GetOrCreateRecord(ctx context.Context, termID, ownerID uuid.UUID) (models.MonitoringRecord, error) {
	record := models.MonitoringRecord{
		TermID:    termID,
		OwnerID:   ownerID,
		Status:    models.StatusMonitoring,
		Platforms: models.PlatformSet{},
	}
	err := s.db.WithContext(ctx).
		Where("term_id = ? AND owner_id = ?", termID, ownerID).
		FirstOrCreate(&record).Error
	if err != nil {
		return record, fmt.Errorf("failed to load monitoring record: %w", err)
	}
	return record, nil
}

// SaveRecord persists a record updated by a pass.
func (s *Store) SaveRecord(ctx context.Context, record *models.MonitoringRecord) error {
	if err := s.db.WithContext(ctx).Save(record).Error; err != nil {
		return fmt.Errorf("failed to save monitoring record: %w", err)
	}
	return nil
}

// GetRecordByTerm loads the record behind a term for the summary endpoint.
func (s *Store) GetRecordByTerm(ctx context.Context, termID, ownerID uuid.UUID) (*models.MonitoringRecord, error) {
	var record models.MonitoringRecord
	err := s.db.WithContext(ctx).
		Where("term_id = ? AND owner_id = ?", termID, ownerID).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load monitoring record: %w", err)
	}
	return &record, nil
}
