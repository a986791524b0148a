package monitor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"vigil/internal/audit"
	"vigil/internal/monitor/metrics"
	"vigil/internal/trust"
	"vigil/pkg/platform/sentinel"
)

const (
	// DefaultInterval is the periodic collection cadence.
	DefaultInterval = time.Minute

	// defaultCountingWindow bounds the audit-event counts (failed logins,
	// denials, DDoS attempts) per threat assessment.
	defaultCountingWindow = 5 * time.Minute

	// historyRetention bounds the rolling snapshot history.
	historyRetention = 24 * time.Hour

	// maxAlertHistory caps retained alerts, oldest evicted.
	maxAlertHistory = 1000

	failedLoginThreshold = 20
	lowTrustThreshold    = 0.5
)

// Security-event actions the network metric group counts. Producers log them
// through the audit chain's LogSecurityEvent.
const (
	ActionDDoSAttempt      = "ddos_attempt"
	ActionMaliciousRequest = "malicious_request"
)

// Monitor periodically aggregates security metrics, runs threat-assessment
// rules, and maintains alerts. It also reacts in real time to critical audit
// events when subscribed via HandleAuditEvent.
type Monitor struct {
	engine   *trust.Engine
	auditLog *audit.Logger
	scanner  Scanner

	interval time.Duration
	window   time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time

	histMu  sync.RWMutex
	history []Snapshot

	alertMu sync.RWMutex
	alerts  []Alert
	byID    map[string]int

	listenMu  sync.RWMutex
	listeners []Listener

	stopOnce sync.Once
	stop     chan struct{}
}

// Option configures a Monitor.
type Option func(*Monitor)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Monitor) {
		if logger != nil {
			m.logger = logger.With("component", "security_monitor")
		}
	}
}

func WithMetrics(mm *metrics.Metrics) Option {
	return func(m *Monitor) { m.metrics = mm }
}

// WithInterval overrides the collection cadence.
func WithInterval(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithCountingWindow overrides the audit-event counting window.
func WithCountingWindow(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.window = d
		}
	}
}

// WithScanner plugs in the vulnerability feed. Without one the vulnerability
// group stays empty.
func WithScanner(s Scanner) Option {
	return func(m *Monitor) { m.scanner = s }
}

// WithClock overrides the monitor clock. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) {
		if now != nil {
			m.now = now
		}
	}
}

// NewMonitor creates a security monitor over the trust engine and audit
// chain.
func NewMonitor(engine *trust.Engine, auditLog *audit.Logger, opts ...Option) *Monitor {
	m := &Monitor{
		engine:   engine,
		auditLog: auditLog,
		interval: DefaultInterval,
		window:   defaultCountingWindow,
		logger:   slog.Default().With("component", "security_monitor"),
		now:      time.Now,
		byID:     make(map[string]int),
		stop:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AddListener registers an alert lifecycle listener.
func (m *Monitor) AddListener(fn Listener) {
	m.listenMu.Lock()
	defer m.listenMu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Run executes the periodic collection loop until the context is cancelled
// or Stop is called. One cycle runs immediately on start.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.logger.InfoContext(ctx, "security monitoring started", "interval", m.interval)
	m.Collect(ctx)

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("security monitoring stopped", "reason", ctx.Err())
			return
		case <-m.stop:
			m.logger.Info("security monitoring stopped")
			return
		case <-ticker.C:
			m.Collect(ctx)
		}
	}
}

// Stop terminates a running loop. Safe to call multiple times.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}

// Collect runs one collection + assessment cycle and returns the snapshot.
// Collaborator failures degrade their metric group and are logged; a cycle
// never fails as a whole.
func (m *Monitor) Collect(ctx context.Context) Snapshot {
	start := time.Now()
	defer func() { m.metrics.ObserveCollection(time.Since(start)) }()

	now := m.now()
	snap := Snapshot{CollectedAt: now}

	cutoff := now.Add(-m.window)
	for _, e := range m.auditLog.Events() {
		if e.Timestamp.Before(cutoff) {
			continue
		}
		switch e.Action {
		case audit.ActionAuthentication:
			snap.Authentication.Total++
			if e.Outcome == audit.OutcomeFailure {
				snap.Authentication.Failed++
			} else {
				snap.Authentication.Succeeded++
			}
		case audit.ActionAuthorization:
			snap.Authorization.Total++
			if e.Outcome == audit.OutcomeFailure {
				snap.Authorization.Denied++
			} else {
				snap.Authorization.Granted++
			}
		case ActionDDoSAttempt:
			snap.Network.DDoSAttempts++
		case ActionMaliciousRequest:
			snap.Network.MaliciousRequests++
		}
	}

	if m.scanner != nil {
		reports, err := m.scanner.Reports(ctx)
		if err != nil {
			m.metrics.IncrementCollectionFailures()
			m.logger.WarnContext(ctx, "vulnerability scanner unavailable, group degraded to empty", "error", err)
		} else {
			for _, r := range reports {
				snap.Vulnerabilities.Total += r.Summary.Total
				snap.Vulnerabilities.Critical += r.Summary.Critical
				snap.Vulnerabilities.High += r.Summary.High
				snap.Vulnerabilities.Medium += r.Summary.Medium
				snap.Vulnerabilities.Low += r.Summary.Low
			}
		}
	}

	snap.ZeroTrust = m.engine.ContinuousAssessmentStatus(ctx)
	snap.Audit = m.auditLog.GetStatistics()

	m.appendSnapshot(snap)
	m.assess(ctx, snap)
	m.metrics.SetSecurityScore(m.SecurityScore())
	return snap
}

func (m *Monitor) appendSnapshot(snap Snapshot) {
	m.histMu.Lock()
	defer m.histMu.Unlock()
	cutoff := snap.CollectedAt.Add(-historyRetention)
	kept := m.history[:0]
	for _, s := range m.history {
		if !s.CollectedAt.Before(cutoff) {
			kept = append(kept, s)
		}
	}
	m.history = append(kept, snap)
}

// History returns the rolling snapshot history, oldest first.
func (m *Monitor) History() []Snapshot {
	m.histMu.RLock()
	defer m.histMu.RUnlock()
	return append([]Snapshot{}, m.history...)
}

func (m *Monitor) latest() (Snapshot, bool) {
	m.histMu.RLock()
	defer m.histMu.RUnlock()
	if len(m.history) == 0 {
		return Snapshot{}, false
	}
	return m.history[len(m.history)-1], true
}

// assess applies the threat-assessment rules to one snapshot.
func (m *Monitor) assess(ctx context.Context, snap Snapshot) {
	if snap.Authentication.Failed > failedLoginThreshold {
		m.Raise(ctx, SeverityHigh, "authentication", "Excessive failed logins",
			"Failed login attempts exceed the alerting threshold", "threat_assessment",
			map[string]any{"failedLogins": snap.Authentication.Failed})
	}
	if snap.Network.DDoSAttempts > 0 {
		m.Raise(ctx, SeverityCritical, "network", "DDoS attempts detected",
			"One or more DDoS attempts were recorded", "threat_assessment",
			map[string]any{"attempts": snap.Network.DDoSAttempts})
	}
	if snap.Vulnerabilities.Critical > 0 {
		m.Raise(ctx, SeverityCritical, "vulnerability", "Critical vulnerabilities present",
			"Scanner reports unresolved critical vulnerabilities", "threat_assessment",
			map[string]any{"critical": snap.Vulnerabilities.Critical})
	}
	if !snap.Audit.ChainValid {
		m.Raise(ctx, SeverityCritical, "audit", "Audit chain integrity failure",
			"Hash chain verification failed: history may have been tampered with", "threat_assessment", nil)
	}
	if snap.ZeroTrust.AverageTrustScore > 0 && snap.ZeroTrust.AverageTrustScore < lowTrustThreshold {
		m.Raise(ctx, SeverityMedium, "zero_trust", "Low average trust score",
			"Average trust across recent evaluations is below 0.5", "threat_assessment",
			map[string]any{"averageTrustScore": snap.ZeroTrust.AverageTrustScore})
	}
}

// HandleAuditEvent is the real-time path: register it with the audit chain's
// Subscribe. Critical audit events raise a high-severity alert immediately,
// without waiting for the next collection cycle.
func (m *Monitor) HandleAuditEvent(e audit.Event) {
	if e.Severity != audit.SeverityCritical {
		return
	}
	m.Raise(context.Background(), SeverityHigh, "audit", "Critical audit event",
		"A critical-severity event was appended to the audit chain", "audit_stream",
		map[string]any{"eventId": e.ID, "action": e.Action, "resource": e.Resource})
}

// Raise records a new active alert, evicting the oldest beyond the history
// cap, and notifies listeners.
func (m *Monitor) Raise(ctx context.Context, severity Severity, category, title, description, source string, metadata map[string]any) Alert {
	alert := Alert{
		ID:          uuid.NewString(),
		RaisedAt:    m.now(),
		Severity:    severity,
		Category:    category,
		Title:       title,
		Description: description,
		Source:      source,
		Metadata:    metadata,
		Status:      AlertActive,
	}

	m.alertMu.Lock()
	m.alerts = append(m.alerts, alert)
	if len(m.alerts) > maxAlertHistory {
		evicted := len(m.alerts) - maxAlertHistory
		m.alerts = m.alerts[evicted:]
		m.byID = make(map[string]int, len(m.alerts))
		for i, a := range m.alerts {
			m.byID[a.ID] = i
		}
	} else {
		m.byID[alert.ID] = len(m.alerts) - 1
	}
	m.alertMu.Unlock()

	m.metrics.IncrementAlert(string(severity), category)
	m.logger.WarnContext(ctx, "security alert raised",
		"alert_id", alert.ID,
		"severity", severity,
		"category", category,
		"title", title,
	)
	m.notify(Notification{Kind: NotifyRaised, Alert: alert})
	return alert
}

// Acknowledge transitions an active alert to acknowledged.
func (m *Monitor) Acknowledge(id string) (Alert, error) {
	return m.transition(id, AlertAcknowledged)
}

// Resolve transitions an alert to resolved. Resolving may skip acknowledge.
func (m *Monitor) Resolve(id string) (Alert, error) {
	return m.transition(id, AlertResolved)
}

func (m *Monitor) transition(id string, target AlertStatus) (Alert, error) {
	m.alertMu.Lock()
	idx, ok := m.byID[id]
	if !ok {
		m.alertMu.Unlock()
		return Alert{}, sentinel.ErrNotFound
	}
	a := &m.alerts[idx]

	switch {
	case a.Status == AlertResolved,
		a.Status == AlertAcknowledged && target == AlertAcknowledged:
		m.alertMu.Unlock()
		return Alert{}, sentinel.ErrInvalidState
	}

	now := m.now()
	a.Status = target
	if target == AlertAcknowledged {
		a.AcknowledgedAt = &now
	} else {
		a.ResolvedAt = &now
	}
	updated := *a
	m.alertMu.Unlock()

	kind := NotifyAcknowledged
	if target == AlertResolved {
		kind = NotifyResolved
	}
	m.logger.Info("security alert "+string(target), "alert_id", id)
	m.notify(Notification{Kind: kind, Alert: updated})
	return updated, nil
}

func (m *Monitor) notify(n Notification) {
	m.listenMu.RLock()
	listeners := m.listeners
	m.listenMu.RUnlock()
	for _, fn := range listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					m.logger.Error("alert listener panicked", "panic", r, "alert_id", n.Alert.ID)
				}
			}()
			fn(n)
		}()
	}
}

// Alerts returns the retained alert history, oldest first.
func (m *Monitor) Alerts() []Alert {
	m.alertMu.RLock()
	defer m.alertMu.RUnlock()
	return append([]Alert{}, m.alerts...)
}

// ActiveAlerts returns alerts not yet resolved.
func (m *Monitor) ActiveAlerts() []Alert {
	m.alertMu.RLock()
	defer m.alertMu.RUnlock()
	var out []Alert
	for _, a := range m.alerts {
		if a.Status != AlertResolved {
			out = append(out, a)
		}
	}
	return out
}

// SecurityScore computes the 0-100 posture score from the latest snapshot:
// weighted penalties per issue type, small bonuses for chain integrity and
// high average trust.
func (m *Monitor) SecurityScore() float64 {
	snap, ok := m.latest()
	if !ok {
		return 100
	}

	score := 100.0
	if snap.Authentication.Failed > failedLoginThreshold {
		score -= 15
	}
	if snap.Network.DDoSAttempts > 0 {
		score -= 25
	}
	score -= 20 * float64(snap.Vulnerabilities.Critical)
	score -= 5 * float64(snap.Vulnerabilities.High)
	if !snap.Audit.ChainValid {
		score -= 30
	} else {
		score += 2
	}
	if snap.ZeroTrust.AverageTrustScore > 0 && snap.ZeroTrust.AverageTrustScore < lowTrustThreshold {
		score -= 10
	}
	if snap.ZeroTrust.AverageTrustScore >= 0.8 {
		score += 3
	}

	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return score
}

// RiskLevel derives the overall posture from the score and the presence of
// active critical alerts.
func (m *Monitor) RiskLevel() trust.RiskLevel {
	for _, a := range m.ActiveAlerts() {
		if a.Severity == SeverityCritical {
			return trust.RiskCritical
		}
	}
	score := m.SecurityScore()
	switch {
	case score >= 80:
		return trust.RiskLow
	case score >= 60:
		return trust.RiskMedium
	case score >= 40:
		return trust.RiskHigh
	default:
		return trust.RiskCritical
	}
}

// GetDashboard bundles the latest snapshot, score, risk level, and active
// alerts.
func (m *Monitor) GetDashboard() Dashboard {
	snap, _ := m.latest()
	return Dashboard{
		Snapshot:      snap,
		SecurityScore: m.SecurityScore(),
		RiskLevel:     m.RiskLevel(),
		ActiveAlerts:  m.ActiveAlerts(),
	}
}
