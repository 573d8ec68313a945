// Package api exposes the HTTP surface: search and creation flows gated by
// the entitlement engine, tracking and trend summaries backed by the
// monitoring engine, and the admin source-rule endpoints.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/slanglab/backend/internal/auth"
	"github.com/slanglab/backend/internal/config"
	"github.com/slanglab/backend/internal/entitlement"
	"github.com/slanglab/backend/internal/models"
	"github.com/slanglab/backend/internal/monitoring"
	"github.com/slanglab/backend/internal/sourcerules"
	"github.com/slanglab/backend/internal/storage"
	"github.com/slanglab/backend/internal/usage"
)

// Server holds handler dependencies.
type Server struct {
	config   *config.Config
	store    *storage.Store
	meter    *usage.Meter
	anon     *entitlement.AnonymousQuota
	rules    *sourcerules.Service
	monitor  *monitoring.Service
	resolver *auth.Resolver
}

// NewServer creates the API server.
func NewServer(cfg *config.Config, store *storage.Store, meter *usage.Meter, anon *entitlement.AnonymousQuota, rules *sourcerules.Service, monitor *monitoring.Service, resolver *auth.Resolver) *Server {
	return &Server{
		config:   cfg,
		store:    store,
		meter:    meter,
		anon:     anon,
		rules:    rules,
		monitor:  monitor,
		resolver: resolver,
	}
}

// Router builds the route table.
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/health", s.handleHealth).Methods("GET")
	router.HandleFunc("/metrics", s.handleMetrics).Methods("GET")

	api := router.PathPrefix("/api").Subrouter()

	// Search admits anonymous visitors; everything else needs an identity.
	api.Handle("/search", s.resolver.Optional(http.HandlerFunc(s.handleSearch))).Methods("POST")
	api.Handle("/terms", s.resolver.Required(http.HandlerFunc(s.handleCreateTerm))).Methods("POST")
	api.Handle("/terms/{id}/track", s.resolver.Required(http.HandlerFunc(s.handleTrackTerm))).Methods("POST")
	api.Handle("/terms/{id}/summary", s.resolver.Required(http.HandlerFunc(s.handleTrendSummary))).Methods("GET")
	api.Handle("/usage", s.resolver.Required(http.HandlerFunc(s.handleUsage))).Methods("GET")

	admin := api.PathPrefix("/admin").Subrouter()
	admin.Handle("/sources", s.resolver.Required(http.HandlerFunc(s.handleListSourceRules))).Methods("GET")
	admin.Handle("/sources", s.resolver.Required(http.HandlerFunc(s.handleUpdateSourceRule))).Methods("PUT")
	admin.Handle("/trigger", s.resolver.Required(http.HandlerFunc(s.handleTrigger))).Methods("POST")

	return router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(s.monitor.GetMetrics()))
}

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFrom(r.Context())
	decision := s.decide(r, principal, models.CapabilityAdminFeature)
	if !decision.Allowed {
		writeDecision(w, decision)
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()
		if err := s.monitor.RunPass(ctx); err != nil {
			logrus.Errorf("Manual monitoring trigger failed: %v", err)
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"message": "monitoring pass triggered"})
}

// decide assembles the entitlement snapshot for one check. All reads happen
// here, once, so the engine never observes mutually inconsistent values.
func (s *Server) decide(r *http.Request, principal *models.Principal, cap models.Capability) models.AccessDecision {
	ctx := r.Context()
	now := time.Now()
	var snap entitlement.Snapshot

	if principal.IsAnonymous() {
		if cap == models.CapabilitySearch {
			clientToken := r.Header.Get(auth.ClientTokenHeader)
			if clientToken == "" {
				// No token means no allowance to consult; treat as spent.
				snap.AnonymousUsed = entitlement.AnonymousSearchAllowance
			} else {
				used, err := s.anon.Used(ctx, clientToken)
				if err != nil {
					// Allowance store unavailable: fail closed, the
					// anonymous allowance is a finite limit.
					logrus.Warnf("Anonymous quota unavailable, failing closed: %v", err)
					used = entitlement.AnonymousSearchAllowance
				}
				snap.AnonymousUsed = used
			}
		}
		return entitlement.Evaluate(principal, cap, snap)
	}

	limits, err := s.store.GetPlanLimits(ctx, principal.Plan)
	if transientLimitsErr(err) {
		// Store blip, not a policy answer. Unknown maps to a retry
		// response; turning this into a denial would tell the user to
		// upgrade over a database hiccup.
		logrus.Errorf("Plan limits unavailable for %s: %v", principal.Plan, err)
		return models.AccessDecision{State: models.StateUnknown, Reason: models.ReasonNone}
	}
	snap.Limits, snap.LimitsErr = limits, err

	if quota, period, err := usage.QuotaForCapability(cap); err == nil {
		snap.Used, snap.UsageErr = s.meter.Used(ctx, *principal.ID, quota, period, now)
	}

	return entitlement.Evaluate(principal, cap, snap)
}

// transientLimitsErr separates a store outage from a genuinely missing plan
// row. A missing row is operator misconfiguration and fails restrictive in
// the engine; an outage has no policy answer and must surface as unknown.
func transientLimitsErr(err error) bool {
	return err != nil && !errors.Is(err, storage.ErrPlanNotConfigured)
}

// recordUsage increments the principal's counter after the gated action has
// committed. Failures are logged, not surfaced: the action already happened,
// and undercounting is the accepted failure mode (increment-after-commit).
func (s *Server) recordUsage(r *http.Request, principal *models.Principal, cap models.Capability) {
	ctx := r.Context()

	if principal.IsAnonymous() {
		clientToken := r.Header.Get(auth.ClientTokenHeader)
		if clientToken == "" {
			return
		}
		if err := s.anon.Record(ctx, clientToken); err != nil {
			logrus.Errorf("Failed to record anonymous usage: %v", err)
		}
		return
	}

	quota, period, err := usage.QuotaForCapability(cap)
	if err != nil {
		return
	}
	if err := s.meter.Record(ctx, *principal.ID, quota, period, time.Now(), 1); err != nil {
		logrus.Errorf("Failed to record usage for %s: %v", cap, err)
	}
}

// --- response helpers ---

func decodeJSON(r *http.Request, dest interface{}) error {
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logrus.Errorf("Failed to encode response: %v", err)
	}
}

// writeDecision maps a non-allowed decision to its HTTP shape. The reason
// code always travels with the response so the client can render the right
// call to action.
func writeDecision(w http.ResponseWriter, decision models.AccessDecision) {
	writeJSON(w, decisionStatus(decision), map[string]interface{}{
		"decision": decision,
	})
}

func decisionStatus(decision models.AccessDecision) int {
	if decision.State == models.StateUnknown {
		// Transient: the caller should retry, not show a denial.
		return http.StatusServiceUnavailable
	}
	if decision.Allowed {
		return http.StatusOK
	}
	switch decision.Reason {
	case models.ReasonAuthenticationRequired:
		return http.StatusUnauthorized
	case models.ReasonAdminRequired, models.ReasonPlanRequired:
		return http.StatusForbidden
	case models.ReasonQuotaExceeded:
		return http.StatusTooManyRequests
	case models.ReasonNone:
		return http.StatusForbidden
	default:
		return http.StatusForbidden
	}
}
