package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Unlimited is the sentinel for quota columns that carry no limit. It must
// never be conflated with zero: zero means "nothing allowed", Unlimited means
// "never metered".
const Unlimited = -1

// Profile is the durable identity record for a registered user. The plan
// column is written by the billing webhook sync, never by this service.
type Profile struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Email     string    `gorm:"column:email;size:255;uniqueIndex;not null" json:"email"`
	Role      Role      `gorm:"column:role;size:20;not null;default:'member'" json:"role"`
	Plan      Plan      `gorm:"column:plan;size:20;not null;default:'free'" json:"plan"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Principal is the identity a request is evaluated on behalf of. A nil ID
// means the request is anonymous. Resolved once per request and immutable
// for the request's duration.
type Principal struct {
	ID    *uuid.UUID `json:"id,omitempty"`
	Email string     `json:"email,omitempty"`
	Role  Role       `json:"role"`
	Plan  Plan       `json:"plan"`
}

// IsAnonymous reports whether no identity was resolved for the request.
func (p *Principal) IsAnonymous() bool {
	return p == nil || p.ID == nil
}

// IsAdmin reports whether the principal carries the admin role. Admins
// bypass every plan and quota check; this is a deliberate trust boundary.
func (p *Principal) IsAdmin() bool {
	return p != nil && p.ID != nil && p.Role == RoleAdmin
}

// PlanLimits is the declarative quota table, one row per plan. Unlimited (-1)
// short-circuits all remaining/percentage computations.
type PlanLimits struct {
	Plan                  Plan      `gorm:"column:plan;size:20;primaryKey" json:"plan"`
	DailySearches         int       `gorm:"column:daily_searches;not null" json:"daily_searches"`
	WeeklyAICreations     int       `gorm:"column:weekly_ai_creations;not null" json:"weekly_ai_creations"`
	WeeklyManualCreations int       `gorm:"column:weekly_manual_creations;not null" json:"weekly_manual_creations"`
	TrackingAllowed       bool      `gorm:"column:tracking_allowed;not null" json:"tracking_allowed"`
	AnalyticsAllowed      bool      `gorm:"column:analytics_allowed;not null" json:"analytics_allowed"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// UsageCounter is one row per (principal, period kind, period start). A new
// period gets a new row; counters only ever increase within a period.
// Daily rows meter searches, weekly rows meter creations.
type UsageCounter struct {
	ID                  uint       `gorm:"primaryKey" json:"-"`
	PrincipalID         uuid.UUID  `gorm:"column:principal_id;type:uuid;not null;uniqueIndex:ux_usage_period,priority:1" json:"principal_id"`
	PeriodKind          PeriodKind `gorm:"column:period_kind;size:10;not null;uniqueIndex:ux_usage_period,priority:2" json:"period_kind"`
	PeriodStart         time.Time  `gorm:"column:period_start;not null;uniqueIndex:ux_usage_period,priority:3" json:"period_start"`
	SearchesUsed        int        `gorm:"column:searches_used;not null;default:0" json:"searches_used"`
	AICreationsUsed     int        `gorm:"column:ai_creations_used;not null;default:0" json:"ai_creations_used"`
	ManualCreationsUsed int        `gorm:"column:manual_creations_used;not null;default:0" json:"manual_creations_used"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// Term is a tracked slang phrase. NormalizedText is unique per owner so the
// same phrase cannot be tracked twice by one user.
type Term struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	OwnerID        uuid.UUID `gorm:"column:owner_id;type:uuid;not null;uniqueIndex:ux_term_owner_text,priority:1" json:"owner_id"`
	CanonicalText  string    `gorm:"column:canonical_text;size:255;not null" json:"canonical_text"`
	NormalizedText string    `gorm:"column:normalized_text;size:255;not null;uniqueIndex:ux_term_owner_text,priority:2" json:"normalized_text"`
	Definition     string    `gorm:"column:definition;type:text" json:"definition,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Sighting is one external mention of a Term. Score is the evidence
// provider's 0-100 relevance estimate. The (term, url) pair is unique so
// re-crawls of the same page do not pile up duplicate rows.
type Sighting struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	TermID     uuid.UUID `gorm:"column:term_id;type:uuid;not null;uniqueIndex:ux_sighting_term_url,priority:1" json:"term_id"`
	Source     string    `gorm:"column:source;size:50;not null" json:"source"`
	URL        string    `gorm:"column:url;size:2048;not null;uniqueIndex:ux_sighting_term_url,priority:2" json:"url"`
	Snippet    string    `gorm:"column:snippet;type:text" json:"snippet"`
	Score      int       `gorm:"column:score;not null" json:"score"`
	ObservedAt time.Time `gorm:"column:observed_at;not null;index" json:"observed_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// Validate rejects a single malformed sighting without failing its batch.
func (s *Sighting) Validate() error {
	if s.Source == "" {
		return fmt.Errorf("sighting missing source")
	}
	if s.URL == "" {
		return fmt.Errorf("sighting missing url")
	}
	if s.Score < 0 || s.Score > 100 {
		return fmt.Errorf("sighting score %d out of range [0,100]", s.Score)
	}
	if s.ObservedAt.IsZero() {
		return fmt.Errorf("sighting missing observed_at")
	}
	return nil
}

// PlatformSet is an append-only set of platform names stored as a JSON array.
type PlatformSet []string

// Add unions a platform name into the set. Idempotent.
func (ps PlatformSet) Add(platform string) PlatformSet {
	for _, existing := range ps {
		if existing == platform {
			return ps
		}
	}
	return append(ps, platform)
}

// Contains reports set membership.
func (ps PlatformSet) Contains(platform string) bool {
	for _, existing := range ps {
		if existing == platform {
			return true
		}
	}
	return false
}

// Value implements driver.Valuer for gorm persistence.
func (ps PlatformSet) Value() (driver.Value, error) {
	if ps == nil {
		ps = PlatformSet{}
	}
	return json.Marshal(ps)
}

// Scan implements sql.Scanner for gorm persistence.
func (ps *PlatformSet) Scan(value interface{}) error {
	if value == nil {
		*ps = PlatformSet{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, ps)
	case string:
		return json.Unmarshal([]byte(v), ps)
	default:
		return fmt.Errorf("cannot scan %T into PlatformSet", value)
	}
}

// MonitoringRecord holds the lifecycle and accumulator state for one tracked
// term and owner. Updated by each monitoring pass; never deleted by the pass
// itself.
type MonitoringRecord struct {
	ID            uint        `gorm:"primaryKey" json:"-"`
	TermID        uuid.UUID   `gorm:"column:term_id;type:uuid;not null;uniqueIndex:ux_record_term_owner,priority:1" json:"term_id"`
	OwnerID       uuid.UUID   `gorm:"column:owner_id;type:uuid;not null;uniqueIndex:ux_record_term_owner,priority:2" json:"owner_id"`
	Status        TermStatus  `gorm:"column:status;size:20;not null;default:'monitoring'" json:"status"`
	TrendingScore int         `gorm:"column:trending_score;not null;default:0" json:"trending_score"`
	TimesFound    int         `gorm:"column:times_found;not null;default:0" json:"times_found"`
	LastCheckedAt *time.Time  `gorm:"column:last_checked_at" json:"last_checked_at,omitempty"`
	LastFoundAt   *time.Time  `gorm:"column:last_found_at" json:"last_found_at,omitempty"`
	Platforms     PlatformSet `gorm:"column:platforms;type:jsonb" json:"platforms"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// SourceRule is the runtime-configurable quality floor for one evidence
// source. Sightings scoring below the minimum across enabled sources never
// count toward any aggregate.
type SourceRule struct {
	Source    string    `gorm:"column:source;size:50;primaryKey" json:"source"`
	Enabled   bool      `gorm:"column:enabled;not null;default:true" json:"enabled"`
	MinScore  int       `gorm:"column:min_score;not null;default:40" json:"min_score"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TrendPoint is one calendar-day bucket of the Trending Index series.
type TrendPoint struct {
	Date  string  `json:"date"` // YYYY-MM-DD, UTC
	Value float64 `json:"value"`
}

// TrendSummary is the recomputable aggregate view over a term's sightings
// for one window. Never incrementally mutated; always rebuilt from rows.
type TrendSummary struct {
	WindowDays      int          `json:"window_days"`
	Points          []TrendPoint `json:"points"`
	DistinctURLs    int          `json:"distinct_urls"`
	DistinctSources int          `json:"distinct_sources"`
	MeanScore       float64      `json:"mean_score"`
}

// PassReport summarizes one monitoring pass for notifications and metrics.
type PassReport struct {
	StartedAt         time.Time     `json:"started_at"`
	Duration          time.Duration `json:"duration"`
	TermsChecked      int           `json:"terms_checked"`
	TermsFailed       int           `json:"terms_failed"`
	SightingsAccepted int           `json:"sightings_accepted"`
	NewlyTrending     []string      `json:"newly_trending,omitempty"`
}
