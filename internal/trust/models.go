// Package trust implements the zero-trust access evaluation engine: a
// composite trust score over identity, device, location, behavior, and
// network signals, matched against prioritized policies. Default-closed:
// access is denied unless an allow policy's conditions are fully satisfied.
package trust

import (
	"math"
	"time"
)

// Location is the coarse geolocation attached to a request context.
type Location struct {
	Country string `json:"country"`
	Region  string `json:"region"`
	City    string `json:"city,omitempty"`
}

// SecurityContext is constructed per request and consumed immediately by
// trust scoring. It is never persisted.
type SecurityContext struct {
	UserID            string    `json:"userId,omitempty"`
	SessionID         string    `json:"sessionId"`
	DeviceFingerprint string    `json:"deviceFingerprint"`
	IPAddress         string    `json:"ipAddress"`
	Location          *Location `json:"location,omitempty"`
	UserAgent         string    `json:"userAgent"`
	Timestamp         time.Time `json:"timestamp"`
}

// RiskLevel buckets an overall trust score.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// RiskLevelFor maps an overall score to its risk bucket. Boundaries are
// inclusive on the lower side: exactly 0.8 is low, exactly 0.3 is high.
func RiskLevelFor(overall float64) RiskLevel {
	switch {
	case overall >= 0.8:
		return RiskLow
	case overall >= 0.6:
		return RiskMedium
	case overall >= 0.3:
		return RiskHigh
	default:
		return RiskCritical
	}
}

// Factors are the five weighted components of a trust score, each in [0,1].
type Factors struct {
	Identity float64 `json:"identity"`
	Device   float64 `json:"device"`
	Location float64 `json:"location"`
	Behavior float64 `json:"behavior"`
	Network  float64 `json:"network"`
}

// Factor weights. They sum to 1.0; identity and behavior dominate.
const (
	weightIdentity = 0.30
	weightDevice   = 0.20
	weightLocation = 0.15
	weightBehavior = 0.25
	weightNetwork  = 0.10
)

// TrustScore is the computed composite. Overall is rounded to two decimals.
type TrustScore struct {
	Overall   float64   `json:"overall"`
	Factors   Factors   `json:"factors"`
	RiskLevel RiskLevel `json:"riskLevel"`
}

// NewTrustScore combines factors into the weighted overall and derives the
// risk level.
func NewTrustScore(f Factors) TrustScore {
	overall := f.Identity*weightIdentity +
		f.Device*weightDevice +
		f.Location*weightLocation +
		f.Behavior*weightBehavior +
		f.Network*weightNetwork
	overall = round2(overall)
	return TrustScore{
		Overall:   overall,
		Factors:   f,
		RiskLevel: RiskLevelFor(overall),
	}
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}

// Effect is a policy's outcome when its conditions are met.
type Effect string

const (
	EffectAllow Effect = "allow"
	EffectDeny  Effect = "deny"
)

// ConditionType selects which signal a condition examines.
type ConditionType string

const (
	ConditionTrustScore ConditionType = "trust_score"
	ConditionLocation   ConditionType = "location"
	ConditionTime       ConditionType = "time"
	ConditionDevice     ConditionType = "device"
	ConditionMFA        ConditionType = "mfa"
)

// Operator compares a signal against a condition value.
type Operator string

const (
	OpGreaterThan Operator = "gt"
	OpLessThan    Operator = "lt"
	OpEqual       Operator = "eq"
	OpIn          Operator = "in"
	OpNotIn       Operator = "not_in"
)

// Condition is one conjunct of a policy. Value is interpreted per Type:
// float64 for trust_score, bool for mfa/device, string lists for
// location, int lists (hours of day) for time.
type Condition struct {
	Type     ConditionType `json:"type"`
	Operator Operator      `json:"operator"`
	Value    any           `json:"value"`
}

// Policy maps resource+action+conditions to an allow/deny effect. Higher
// priority evaluates first. ExpiresAt bounds adaptive policies; nil means
// permanent.
type Policy struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Resource   string      `json:"resource"`
	Action     string      `json:"action"`
	Conditions []Condition `json:"conditions"`
	Effect     Effect      `json:"effect"`
	Priority   int         `json:"priority"`
	ExpiresAt  *time.Time  `json:"expiresAt,omitempty"`
}

// Decision is the output of an access evaluation. Policies lists the
// candidate set that matched resource+action, for traceability.
type Decision struct {
	Allowed         bool       `json:"allowed"`
	Reason          string     `json:"reason"`
	TrustScore      TrustScore `json:"trustScore"`
	RequiredActions []string   `json:"requiredActions"`
	Policies        []string   `json:"policies"`
}

// AccountInfo is the directory's view of an account, consumed by identity
// scoring.
type AccountInfo struct {
	AgeInDays            int
	LastActivityHoursAgo float64
}

// LocationCount is a frequency counter inside a behavior profile.
type LocationCount struct {
	Country string `json:"country"`
	Region  string `json:"region"`
	Count   int    `json:"count"`
}

// AccessAttempt is one entry of the rolling access history.
type AccessAttempt struct {
	Timestamp  time.Time `json:"timestamp"`
	Allowed    bool      `json:"allowed"`
	TrustScore float64   `json:"trustScore"`
}

// BehaviorProfile is the per-user learned history used as a trust signal.
// Created lazily on first access; access attempts are capped at the most
// recent maxAccessAttempts entries.
type BehaviorProfile struct {
	UserID                 string          `json:"userId"`
	CommonLocations        []LocationCount `json:"commonLocations"`
	ActiveHours            []int           `json:"activeHours"`
	AverageSessionDuration float64         `json:"averageSessionDuration"` // seconds
	AccessAttempts         []AccessAttempt `json:"accessAttempts"`
}

// DeviceProfile tracks a device fingerprint for device-trust scoring.
type DeviceProfile struct {
	Fingerprint string    `json:"fingerprint"`
	UserAgent   string    `json:"userAgent"`
	DisplayName string    `json:"displayName"`
	LastSeen    time.Time `json:"lastSeen"`
}

// RiskFactor is one finding of an independent risk assessment.
type RiskFactor struct {
	Name        string    `json:"name"`
	Level       RiskLevel `json:"level"`
	Description string    `json:"description"`
}

// RiskAssessment is produced by PerformRiskAssessment, distinct from the
// trust score: it looks for categorical risk signals rather than weighting
// continuous factors.
type RiskAssessment struct {
	AssessedAt      time.Time    `json:"assessedAt"`
	Factors         []RiskFactor `json:"factors"`
	Overall         RiskLevel    `json:"overall"`
	Recommendations []string     `json:"recommendations"`
}

// AssessmentStatus summarizes engine state for continuous monitoring.
type AssessmentStatus struct {
	Profiles          int       `json:"profiles"`
	Policies          int       `json:"policies"`
	AverageTrustScore float64   `json:"averageTrustScore"`
	AssessedAt        time.Time `json:"assessedAt"`
}
