package models

import "fmt"

// Plan is a subscription tier. Closed set; ParsePlan rejects anything else.
type Plan string

const (
	PlanFree      Plan = "free"
	PlanSearchPro Plan = "search_pro"
	PlanLabPro    Plan = "lab_pro"
)

// ParsePlan validates a plan name coming off the wire or out of the database.
func ParsePlan(s string) (Plan, error) {
	switch Plan(s) {
	case PlanFree, PlanSearchPro, PlanLabPro:
		return Plan(s), nil
	default:
		return "", fmt.Errorf("unknown plan %q", s)
	}
}

// Role is the principal's role. Only two values exist; admin bypasses all
// plan and quota checks.
type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

// ParseRole validates a role name.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleMember, RoleAdmin:
		return Role(s), nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// Capability is a gated action a principal may request.
type Capability string

const (
	CapabilitySearch         Capability = "search"
	CapabilityAICreation     Capability = "ai_creation"
	CapabilityManualCreation Capability = "manual_creation"
	CapabilityTracking       Capability = "tracking"
	CapabilityAnalytics      Capability = "analytics"
	CapabilityAdminFeature   Capability = "admin_feature"
)

// ParseCapability validates a capability name; unrecognized names are
// rejected as malformed input, never silently mapped to a default.
func ParseCapability(s string) (Capability, error) {
	switch Capability(s) {
	case CapabilitySearch, CapabilityAICreation, CapabilityManualCreation,
		CapabilityTracking, CapabilityAnalytics, CapabilityAdminFeature:
		return Capability(s), nil
	default:
		return "", fmt.Errorf("unknown capability %q", s)
	}
}

// PeriodKind is the granularity a usage counter is bucketed by.
type PeriodKind string

const (
	PeriodDay  PeriodKind = "day"  // calendar day, UTC
	PeriodWeek PeriodKind = "week" // ISO week starting Monday, UTC
)

// QuotaKind names the counter a quota denial refers to.
type QuotaKind string

const (
	QuotaSearches        QuotaKind = "searches"
	QuotaAICreations     QuotaKind = "ai_creations"
	QuotaManualCreations QuotaKind = "manual_creations"
)

// AccessState distinguishes a settled decision from one that cannot be made
// yet because the principal's profile is still resolving. Callers must not
// treat StateUnknown as either allow or deny.
type AccessState string

const (
	StateUnknown AccessState = "unknown"
	StateAllowed AccessState = "allowed"
	StateDenied  AccessState = "denied"
)

// DenyReason is the machine-readable cause of a denial. Denials always carry
// one so the presentation layer can render the right call to action.
type DenyReason string

const (
	ReasonNone                   DenyReason = "none"
	ReasonAuthenticationRequired DenyReason = "authentication_required"
	ReasonPlanRequired           DenyReason = "plan_required"
	ReasonAdminRequired          DenyReason = "admin_required"
	ReasonQuotaExceeded          DenyReason = "quota_exceeded"
)

// AccessDecision is the Entitlement Engine's verdict. Computed fresh on
// every check, never persisted or cached beyond a single request.
// Remaining uses the Unlimited sentinel (-1) for unmetered capabilities.
type AccessDecision struct {
	State        AccessState `json:"state"`
	Allowed      bool        `json:"allowed"`
	Reason       DenyReason  `json:"reason"`
	RequiredPlan Plan        `json:"required_plan,omitempty"`
	Quota        QuotaKind   `json:"quota,omitempty"`
	Remaining    int         `json:"remaining"`
}

// TermStatus is the lifecycle state of a tracked term.
type TermStatus string

const (
	StatusMonitoring TermStatus = "monitoring"
	StatusSpotted    TermStatus = "spotted"
	StatusTrending   TermStatus = "trending"
	StatusDormant    TermStatus = "dormant"
)

// ParseTermStatus validates a status read back from storage.
func ParseTermStatus(s string) (TermStatus, error) {
	switch TermStatus(s) {
	case StatusMonitoring, StatusSpotted, StatusTrending, StatusDormant:
		return TermStatus(s), nil
	default:
		return "", fmt.Errorf("unknown term status %q", s)
	}
}
