// Package entitlement decides what a principal is allowed to do right now.
// Evaluate is a pure function of its inputs: all I/O (profile, plan limits,
// usage counters) happens in the caller and is passed in as a snapshot, so a
// decision is idempotent and safely re-checkable. The engine never mutates
// counters; the caller records usage after the gated action commits.
package entitlement

import (
	"github.com/sirupsen/logrus"

	"github.com/slanglab/backend/internal/models"
	"github.com/slanglab/backend/internal/usage"
)

// AnonymousSearchAllowance is the number of searches an anonymous visitor
// gets. Tracked against a client token with no reset period and no
// cross-device consistency.
const AnonymousSearchAllowance = 1

// Snapshot carries everything the engine needs for one check, fetched by the
// caller in a single pass so the decision cannot observe mutually
// inconsistent reads.
type Snapshot struct {
	// Loading marks a principal whose profile is still resolving. The
	// decision comes back StateUnknown: not a denial (no denial UI) and not
	// an allow (the gated action must not run yet).
	Loading bool

	// Limits is the plan's quota row. Nil with LimitsErr set means the plan
	// table is misconfigured; quota logic then takes the most restrictive
	// interpretation rather than defaulting to permissive.
	Limits    *models.PlanLimits
	LimitsErr error

	// Used is the consumed count for the capability's quota in the current
	// period. UsageErr marks a counter-store failure: the engine fails
	// closed for finite limits and open for unlimited plans.
	Used     int
	UsageErr error

	// AnonymousUsed is the client-token counter consulted only for
	// anonymous searches.
	AnonymousUsed int
}

// RequiredPlanFor names the lowest tier that unlocks a plan-gated
// capability, for denial messaging.
func RequiredPlanFor(cap models.Capability) models.Plan {
	switch cap {
	case models.CapabilityTracking, models.CapabilityAnalytics:
		return models.PlanLabPro
	case models.CapabilityAICreation:
		return models.PlanSearchPro
	default:
		return models.PlanFree
	}
}

// Evaluate runs the ordered rule chain. First match wins: the loading guard
// runs before everything, authentication before any plan logic so plan-gated
// hints never leak to anonymous users, and the admin bypass dominates all
// plan and quota rules.
func Evaluate(p *models.Principal, cap models.Capability, snap Snapshot) models.AccessDecision {
	// 1. Profile still resolving: neither allow nor deny.
	if snap.Loading {
		return models.AccessDecision{State: models.StateUnknown, Reason: models.ReasonNone}
	}

	// Unrecognized capabilities are malformed input, never a default-allow.
	if _, err := models.ParseCapability(string(cap)); err != nil {
		logrus.Errorf("Rejecting unknown capability %q", cap)
		return deny(models.ReasonNone)
	}

	// 2. Authentication. Anonymous visitors get exactly one search via the
	// client-token allowance; every other capability requires an identity.
	if p.IsAnonymous() {
		if cap == models.CapabilitySearch {
			remaining := AnonymousSearchAllowance - snap.AnonymousUsed
			if remaining > 0 {
				return allow(remaining)
			}
			return deny(models.ReasonAuthenticationRequired)
		}
		return deny(models.ReasonAuthenticationRequired)
	}

	// 3. Admin bypass. Total and unconditional; the single short-circuit
	// for every capability, not re-implemented per check.
	if p.IsAdmin() {
		return allow(models.Unlimited)
	}

	// 4. Admin-only capabilities.
	if cap == models.CapabilityAdminFeature {
		return deny(models.ReasonAdminRequired)
	}

	// 5. Plan tier gates.
	if snap.LimitsErr != nil || snap.Limits == nil {
		// Plan table misconfigured for an in-use plan. Never default to
		// permissive: deny as if the quota were zero, and say so loudly.
		logrus.WithFields(logrus.Fields{
			"plan":       p.Plan,
			"capability": cap,
		}).Error("plan limits missing or unreadable; failing restrictive")
		d := deny(models.ReasonQuotaExceeded)
		d.Remaining = 0
		return d
	}
	if cap == models.CapabilityTracking && !snap.Limits.TrackingAllowed {
		d := deny(models.ReasonPlanRequired)
		d.RequiredPlan = RequiredPlanFor(cap)
		return d
	}
	if cap == models.CapabilityAnalytics && !snap.Limits.AnalyticsAllowed {
		d := deny(models.ReasonPlanRequired)
		d.RequiredPlan = RequiredPlanFor(cap)
		return d
	}
	if cap == models.CapabilityAICreation && snap.Limits.WeeklyAICreations == 0 {
		// A zero weekly grant means the plan does not include AI creation
		// at all. The right prompt is an upgrade, not a wait for the next
		// period, so this denies plan_required rather than quota_exceeded.
		d := deny(models.ReasonPlanRequired)
		d.RequiredPlan = RequiredPlanFor(cap)
		return d
	}

	// 6. Quota.
	quota, _, err := usage.QuotaForCapability(cap)
	if err != nil {
		// Tracking, analytics and admin features carry no counter; past
		// their gates they are allowed outright.
		return allow(models.Unlimited)
	}
	limit := usage.LimitFor(snap.Limits, quota)
	if limit == models.Unlimited {
		// Unlimited short-circuits the quota check entirely, including any
		// counter-store failure (fail open for unlimited plans).
		return allow(models.Unlimited)
	}
	if snap.UsageErr != nil {
		// Counter store unavailable with a finite limit: fail closed.
		logrus.WithFields(logrus.Fields{
			"capability": cap,
			"error":      snap.UsageErr,
		}).Warn("usage counter unavailable; failing closed")
		d := deny(models.ReasonQuotaExceeded)
		d.Quota = quota
		d.Remaining = 0
		return d
	}
	if snap.Used >= limit {
		d := deny(models.ReasonQuotaExceeded)
		d.Quota = quota
		d.Remaining = 0
		return d
	}

	d := allow(limit - snap.Used)
	d.Quota = quota
	return d
}

func allow(remaining int) models.AccessDecision {
	return models.AccessDecision{
		State:     models.StateAllowed,
		Allowed:   true,
		Reason:    models.ReasonNone,
		Remaining: remaining,
	}
}

func deny(reason models.DenyReason) models.AccessDecision {
	return models.AccessDecision{
		State:     models.StateDenied,
		Reason:    reason,
		Remaining: 0,
	}
}
