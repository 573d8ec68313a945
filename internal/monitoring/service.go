// Package monitoring turns raw sighting evidence into term lifecycle state
// and trend aggregates.
package monitoring

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/slanglab/backend/internal/config"
	"github.com/slanglab/backend/internal/models"
	"github.com/slanglab/backend/internal/sources"
)

// PassStore is the slice of the relational store a pass needs.
type PassStore interface {
	ListTrackedTerms(ctx context.Context) ([]models.Term, error)
	SaveSightings(ctx context.Context, sightings []models.Sighting) error
	GetOrCreateRecord(ctx context.Context, termID, ownerID uuid.UUID) (models.MonitoringRecord, error)
	SaveRecord(ctx context.Context, record *models.MonitoringRecord) error
}

// RuleProvider supplies the minimum score across enabled sources.
type RuleProvider interface {
	MinEnabledScore(ctx context.Context) (int, error)
}

// Archive receives the raw sighting batch from each pass, for replay and
// audit. Optional; a nil archive skips archiving.
type Archive interface {
	StoreBatch(ctx context.Context, term models.Term, sightings []models.Sighting) error
}

// Notifier delivers trending alerts and pass reports.
type Notifier interface {
	SendTrendingAlert(term models.Term, record models.MonitoringRecord) error
	SendPassReport(report *models.PassReport) error
}

// Metrics holds pass metrics exposed at /metrics.
type Metrics struct {
	LastRun           time.Time      `json:"last_run"`
	LastRunDuration   string         `json:"last_run_duration"`
	TermsChecked      int            `json:"terms_checked"`
	TermsFailed       int            `json:"terms_failed"`
	SightingsAccepted int            `json:"sightings_accepted"`
	SourceCounts      map[string]int `json:"source_counts"`
	StatusBreakdown   map[string]int `json:"status_breakdown"`
}

// Service drives monitoring passes over tracked terms. An external scheduler
// invokes RunPass on a cadence; the service holds no timer of its own.
type Service struct {
	config   *config.Config
	store    PassStore
	rules    RuleProvider
	archive  Archive
	notifier Notifier
	sources  []sources.Source

	metrics *Metrics
	mu      sync.RWMutex
	locks   keyedMutex
}

// NewService creates a monitoring service.
func NewService(cfg *config.Config, store PassStore, rules RuleProvider, archive Archive, notifier Notifier, srcs []sources.Source) *Service {
	return &Service{
		config:   cfg,
		store:    store,
		rules:    rules,
		archive:  archive,
		notifier: notifier,
		sources:  srcs,
		metrics: &Metrics{
			SourceCounts:    make(map[string]int),
			StatusBreakdown: make(map[string]int),
		},
	}
}

// RunPass checks every tracked term once. One term's failure is logged and
// the batch continues; the pass itself only fails when the term list cannot
// be read at all.
func (s *Service) RunPass(ctx context.Context) error {
	terms, err := s.store.ListTrackedTerms(ctx)
	if err != nil {
		return fmt.Errorf("failed to list tracked terms: %w", err)
	}
	return s.RunPassBatch(ctx, terms)
}

// RunPassBatch checks the given terms. Exposed separately so the scheduler
// and the manual trigger endpoint can drive partial batches.
func (s *Service) RunPassBatch(ctx context.Context, terms []models.Term) error {
	start := time.Now()
	logrus.Infof("Starting monitoring pass over %d terms", len(terms))

	minScore, err := s.rules.MinEnabledScore(ctx)
	if err != nil {
		// No enabled sources is a configuration error. Take the most
		// restrictive reading: nothing qualifies this pass.
		logrus.Errorf("No usable source rules, rejecting all sightings this pass: %v", err)
		minScore = 101
	}

	report := &models.PassReport{StartedAt: start}
	statusCounts := make(map[string]int)
	sourceCounts := make(map[string]int)

	for _, term := range terms {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		result, err := s.checkTerm(ctx, term, minScore)
		report.TermsChecked++
		if err != nil {
			report.TermsFailed++
			logrus.Errorf("Monitoring pass failed for term %q: %v", term.CanonicalText, err)
			continue
		}

		report.SightingsAccepted += result.accepted
		statusCounts[string(result.record.Status)]++
		for source, n := range result.bySource {
			sourceCounts[source] += n
		}
		if result.newlyTrending {
			report.NewlyTrending = append(report.NewlyTrending, term.CanonicalText)
		}
	}

	report.Duration = time.Since(start)
	s.updateMetrics(report, statusCounts, sourceCounts)

	if s.notifier != nil {
		if err := s.notifier.SendPassReport(report); err != nil {
			logrus.Errorf("Failed to send pass report: %v", err)
		}
	}

	logrus.Infof("Monitoring pass completed in %v (%d terms, %d failed, %d sightings accepted)",
		report.Duration, report.TermsChecked, report.TermsFailed, report.SightingsAccepted)
	return nil
}

type termResult struct {
	record        models.MonitoringRecord
	accepted      int
	bySource      map[string]int
	newlyTrending bool
}

// checkTerm gathers evidence for one term and folds it into the term's
// record. Updates for a given term are serialized by a per-term lock so two
// overlapping passes cannot double-count finds or race the status machine.
func (s *Service) checkTerm(ctx context.Context, term models.Term, minScore int) (*termResult, error) {
	unlock := s.locks.lock(term.ID)
	defer unlock()

	sightings := s.gatherSightings(ctx, term)

	if s.archive != nil && len(sightings) > 0 {
		if err := s.archive.StoreBatch(ctx, term, sightings); err != nil {
			logrus.Errorf("Failed to archive sighting batch for %q: %v", term.CanonicalText, err)
		}
	}

	accepted := FilterAccepted(sightings, minScore)
	if len(accepted) > 0 {
		if err := s.store.SaveSightings(ctx, accepted); err != nil {
			return nil, fmt.Errorf("failed to save sightings: %w", err)
		}
	}

	prior, err := s.store.GetOrCreateRecord(ctx, term.ID, term.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load monitoring record: %w", err)
	}

	updated := RecordSightingBatch(term, sightings, prior, minScore, time.Now())
	if err := s.store.SaveRecord(ctx, &updated); err != nil {
		return nil, fmt.Errorf("failed to save monitoring record: %w", err)
	}

	newlyTrending := updated.Status == models.StatusTrending && prior.Status != models.StatusTrending
	if newlyTrending && s.notifier != nil {
		if err := s.notifier.SendTrendingAlert(term, updated); err != nil {
			logrus.Errorf("Failed to send trending alert for %q: %v", term.CanonicalText, err)
		}
	}

	bySource := make(map[string]int)
	for _, sighting := range accepted {
		bySource[sighting.Source]++
	}

	return &termResult{
		record:        updated,
		accepted:      len(accepted),
		bySource:      bySource,
		newlyTrending: newlyTrending,
	}, nil
}

// gatherSightings fans out over all enabled evidence providers concurrently
// and collects whatever they return. A failing provider is logged and
// skipped.
func (s *Service) gatherSightings(ctx context.Context, term models.Term) []models.Sighting {
	var wg sync.WaitGroup
	sightingsChan := make(chan []models.Sighting, len(s.sources))

	for _, source := range s.sources {
		if !source.IsEnabled() {
			continue
		}
		wg.Add(1)
		go func(src sources.Source) {
			defer wg.Done()

			found, err := src.FetchSightings(ctx, term.CanonicalText, s.config.SearchWindow)
			if err != nil {
				logrus.Errorf("Error fetching from %s for %q: %v", src.GetName(), term.CanonicalText, err)
				return
			}
			sightingsChan <- found
		}(source)
	}

	go func() {
		wg.Wait()
		close(sightingsChan)
	}()

	var all []models.Sighting
	for found := range sightingsChan {
		for i := range found {
			found[i].TermID = term.ID
			if found[i].ID == uuid.Nil {
				found[i].ID = uuid.New()
			}
		}
		all = append(all, found...)
	}
	return all
}

func (s *Service) updateMetrics(report *models.PassReport, statusCounts, sourceCounts map[string]int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.metrics.LastRun = report.StartedAt
	s.metrics.LastRunDuration = report.Duration.String()
	s.metrics.TermsChecked = report.TermsChecked
	s.metrics.TermsFailed = report.TermsFailed
	s.metrics.SightingsAccepted = report.SightingsAccepted
	s.metrics.StatusBreakdown = statusCounts
	s.metrics.SourceCounts = sourceCounts
}

// GetMetrics returns current pass metrics as JSON.
func (s *Service) GetMetrics() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, _ := json.MarshalIndent(s.metrics, "", "  ")
	return string(data)
}

// keyedMutex serializes work per term ID.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func (k *keyedMutex) lock(id uuid.UUID) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[uuid.UUID]*sync.Mutex)
	}
	l, ok := k.locks[id]
	if !ok {
		l = &sync.Mutex{}
		k.locks[id] = l
	}
	k.mu.Unlock()

	l.Lock()
	return l.Unlock
}
