// Package monitor implements the periodic security monitor: it aggregates
// metrics from the audit chain, the trust engine, and external vulnerability
// scanners, runs threat-assessment rules, and maintains alerts plus a rolling
// metrics history.
package monitor

import (
	"context"
	"time"

	"vigil/internal/audit"
	"vigil/internal/trust"
)

// Severity grades an alert.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// AlertStatus is the alert lifecycle state. Transitions only move forward:
// active -> acknowledged -> resolved (resolve may skip acknowledge).
type AlertStatus string

const (
	AlertActive       AlertStatus = "active"
	AlertAcknowledged AlertStatus = "acknowledged"
	AlertResolved     AlertStatus = "resolved"
)

// Alert is one threat-assessment finding.
type Alert struct {
	ID             string         `json:"id"`
	RaisedAt       time.Time      `json:"raisedAt"`
	Severity       Severity       `json:"severity"`
	Category       string         `json:"category"`
	Title          string         `json:"title"`
	Description    string         `json:"description"`
	Source         string         `json:"source"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	Status         AlertStatus    `json:"status"`
	AcknowledgedAt *time.Time     `json:"acknowledgedAt,omitempty"`
	ResolvedAt     *time.Time     `json:"resolvedAt,omitempty"`
}

// VulnerabilitySummary aggregates one scanner report.
type VulnerabilitySummary struct {
	Total    int `json:"total"`
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
}

// Report is a vulnerability scanner's output for one target.
type Report struct {
	Target    string               `json:"target"`
	ScannedAt time.Time            `json:"scannedAt"`
	Summary   VulnerabilitySummary `json:"summary"`
}

// Scanner is the external vulnerability feed. Failures degrade the
// vulnerability metrics to empty rather than aborting a collection cycle.
type Scanner interface {
	Reports(ctx context.Context) ([]Report, error)
}

// AuthMetrics counts authentication events inside the counting window.
type AuthMetrics struct {
	Total     int `json:"total"`
	Failed    int `json:"failed"`
	Succeeded int `json:"succeeded"`
}

// AuthzMetrics counts authorization decisions inside the counting window.
type AuthzMetrics struct {
	Total   int `json:"total"`
	Denied  int `json:"denied"`
	Granted int `json:"granted"`
}

// NetworkMetrics counts network-level security events inside the counting
// window.
type NetworkMetrics struct {
	DDoSAttempts      int `json:"ddosAttempts"`
	MaliciousRequests int `json:"maliciousRequests"`
}

// Snapshot is one collection cycle's view across all six metric groups.
type Snapshot struct {
	CollectedAt     time.Time              `json:"collectedAt"`
	Authentication  AuthMetrics            `json:"authentication"`
	Authorization   AuthzMetrics           `json:"authorization"`
	Network         NetworkMetrics         `json:"network"`
	Vulnerabilities VulnerabilitySummary   `json:"vulnerabilities"`
	ZeroTrust       trust.AssessmentStatus `json:"zeroTrust"`
	Audit           audit.Statistics       `json:"audit"`
}

// Dashboard is the monitor's externally visible state.
type Dashboard struct {
	Snapshot      Snapshot        `json:"snapshot"`
	SecurityScore float64         `json:"securityScore"`
	RiskLevel     trust.RiskLevel `json:"riskLevel"`
	ActiveAlerts  []Alert         `json:"activeAlerts"`
}

// NotificationKind labels a Listener callback.
type NotificationKind string

const (
	NotifyRaised       NotificationKind = "raised"
	NotifyAcknowledged NotificationKind = "acknowledged"
	NotifyResolved     NotificationKind = "resolved"
)

// Notification carries an alert lifecycle change to listeners.
type Notification struct {
	Kind  NotificationKind
	Alert Alert
}

// Listener receives alert lifecycle notifications. Callbacks run on the
// monitor goroutine and must be fast; panics are recovered.
type Listener func(Notification)
