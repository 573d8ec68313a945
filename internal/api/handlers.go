package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/slanglab/backend/internal/auth"
	"github.com/slanglab/backend/internal/models"
	"github.com/slanglab/backend/internal/monitoring"
	"github.com/slanglab/backend/internal/storage"
)

type searchRequest struct {
	Query string `json:"query"`
}

// handleSearch runs a term lookup. Anonymous visitors get exactly one
// search via their client token; registered users are metered daily.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFrom(r.Context())

	var req searchRequest
	if err := decodeJSON(r, &req); err != nil || strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	decision := s.decide(r, principal, models.CapabilitySearch)
	if !decision.Allowed {
		writeDecision(w, decision)
		return
	}

	terms, err := s.store.SearchTerms(r.Context(), req.Query, 25)
	if err != nil {
		logrus.Errorf("Search failed: %v", err)
		writeError(w, http.StatusServiceUnavailable, "search temporarily unavailable")
		return
	}

	// The search committed; only now does it count against the quota.
	s.recordUsage(r, principal, models.CapabilitySearch)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"decision": decision,
		"results":  terms,
	})
}

type createTermRequest struct {
	Text       string `json:"text"`
	Definition string `json:"definition"`
	Mode       string `json:"mode"` // "ai" or "manual"
}

// handleCreateTerm creates a slang term. AI-assisted and manual creation
// are metered separately per ISO week.
func (s *Server) handleCreateTerm(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFrom(r.Context())

	var req createTermRequest
	if err := decodeJSON(r, &req); err != nil || strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	var capability models.Capability
	switch req.Mode {
	case "ai":
		capability = models.CapabilityAICreation
	case "manual", "":
		capability = models.CapabilityManualCreation
	default:
		writeError(w, http.StatusBadRequest, "mode must be \"ai\" or \"manual\"")
		return
	}

	decision := s.decide(r, principal, capability)
	if !decision.Allowed {
		writeDecision(w, decision)
		return
	}

	term := models.Term{
		OwnerID:       *principal.ID,
		CanonicalText: strings.TrimSpace(req.Text),
		Definition:    req.Definition,
	}
	if err := s.store.CreateTerm(r.Context(), &term); err != nil {
		if errors.Is(err, storage.ErrDuplicateTerm) {
			writeError(w, http.StatusConflict, "term already exists")
			return
		}
		logrus.Errorf("Failed to create term: %v", err)
		writeError(w, http.StatusServiceUnavailable, "creation temporarily unavailable")
		return
	}

	s.recordUsage(r, principal, capability)

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"decision": decision,
		"term":     term,
	})
}

// handleTrackTerm puts a term under monitoring. Tracking is a LabPro
// feature; the initial record is created idempotently.
func (s *Server) handleTrackTerm(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFrom(r.Context())

	termID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid term id")
		return
	}

	decision := s.decide(r, principal, models.CapabilityTracking)
	if !decision.Allowed {
		writeDecision(w, decision)
		return
	}

	term, err := s.store.GetTerm(r.Context(), termID)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "term not found")
		return
	}
	if err != nil {
		logrus.Errorf("Failed to load term: %v", err)
		writeError(w, http.StatusServiceUnavailable, "tracking temporarily unavailable")
		return
	}

	record, err := s.store.GetOrCreateRecord(r.Context(), term.ID, *principal.ID)
	if err != nil {
		logrus.Errorf("Failed to create monitoring record: %v", err)
		writeError(w, http.StatusServiceUnavailable, "tracking temporarily unavailable")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"decision": decision,
		"record":   record,
	})
}

// handleTrendSummary rebuilds the Trending Index series from sighting rows.
// Analytics is plan-gated through the engine like every other capability, so
// the admin bypass and the unknown-state handling are not repeated here.
func (s *Server) handleTrendSummary(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFrom(r.Context())

	termID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid term id")
		return
	}

	decision := s.decide(r, principal, models.CapabilityAnalytics)
	if !decision.Allowed {
		writeDecision(w, decision)
		return
	}

	windows := parseWindows(r.URL.Query().Get("windows"))

	record, err := s.store.GetRecordByTerm(r.Context(), termID, *principal.ID)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "term is not tracked")
		return
	}
	if err != nil {
		logrus.Errorf("Failed to load monitoring record: %v", err)
		writeError(w, http.StatusServiceUnavailable, "summary temporarily unavailable")
		return
	}

	largest := 0
	for _, window := range windows {
		if window > largest {
			largest = window
		}
	}
	since := time.Now().UTC().AddDate(0, 0, -largest)

	sightings, err := s.store.ListSightings(r.Context(), termID, since)
	if err != nil {
		logrus.Errorf("Failed to list sightings: %v", err)
		writeError(w, http.StatusServiceUnavailable, "summary temporarily unavailable")
		return
	}

	minScore, err := s.rules.MinEnabledScore(r.Context())
	if err != nil {
		logrus.Errorf("No usable source rules for summary: %v", err)
		minScore = 101
	}

	summaries := monitoring.ComputeTrendSummary(sightings, windows, minScore, time.Now())

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"record":    record,
		"summaries": summaries,
	})
}

// handleUsage reports the principal's current counters and plan limits for
// quota UI.
func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFrom(r.Context())
	ctx := r.Context()
	now := time.Now()

	limits, err := s.store.GetPlanLimits(ctx, principal.Plan)
	if err != nil {
		logrus.Errorf("Failed to load plan limits: %v", err)
		writeError(w, http.StatusServiceUnavailable, "usage temporarily unavailable")
		return
	}

	day, err := s.meter.Counter(ctx, *principal.ID, models.PeriodDay, now)
	if err != nil {
		logrus.Errorf("Failed to load daily counter: %v", err)
		writeError(w, http.StatusServiceUnavailable, "usage temporarily unavailable")
		return
	}
	week, err := s.meter.Counter(ctx, *principal.ID, models.PeriodWeek, now)
	if err != nil {
		logrus.Errorf("Failed to load weekly counter: %v", err)
		writeError(w, http.StatusServiceUnavailable, "usage temporarily unavailable")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"plan":   principal.Plan,
		"limits": limits,
		"day":    day,
		"week":   week,
	})
}

// handleListSourceRules lists the evidence-source quality floors.
func (s *Server) handleListSourceRules(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFrom(r.Context())
	decision := s.decide(r, principal, models.CapabilityAdminFeature)
	if !decision.Allowed {
		writeDecision(w, decision)
		return
	}

	rules, err := s.rules.List(r.Context())
	if err != nil {
		logrus.Errorf("Failed to list source rules: %v", err)
		writeError(w, http.StatusServiceUnavailable, "source rules temporarily unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"rules": rules})
}

// handleUpdateSourceRule upserts one rule and invalidates the cache.
func (s *Server) handleUpdateSourceRule(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFrom(r.Context())
	decision := s.decide(r, principal, models.CapabilityAdminFeature)
	if !decision.Allowed {
		writeDecision(w, decision)
		return
	}

	var rule models.SourceRule
	if err := decodeJSON(r, &rule); err != nil {
		writeError(w, http.StatusBadRequest, "invalid rule body")
		return
	}

	if err := s.rules.Update(r.Context(), rule); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"rule": rule})
}

// parseWindows reads the windows query parameter, defaulting to the
// standard 7/30/90-day set.
func parseWindows(raw string) []int {
	if raw == "" {
		return []int{7, 30, 90}
	}
	var windows []int
	for _, part := range strings.Split(raw, ",") {
		if n, err := strconv.Atoi(strings.TrimSpace(part)); err == nil && n > 0 && n <= 365 {
			windows = append(windows, n)
		}
	}
	if len(windows) == 0 {
		return []int{7, 30, 90}
	}
	return windows
}
