package trust

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"vigil/internal/audit"
	"vigil/internal/trust/intel"
	"vigil/internal/trust/metrics"
	"vigil/pkg/platform/sentinel"
)

//go:generate mockgen -source=directory.go -destination=mocks/directory_mock.go -package=mocks
//go:generate mockgen -source=intel/intel.go -destination=mocks/intel_mock.go -package=mocks

const defaultLookupTimeout = 3 * time.Second

// Engine evaluates access requests against trust scores and policies.
// Default-closed: when no allow policy's conditions are fully satisfied,
// access is denied.
type Engine struct {
	policies *policySet
	profiles *profileStore
	devices  *deviceStore

	directory Directory
	intel     intel.Feed
	auditLog  *audit.Logger

	logger        *slog.Logger
	metrics       *metrics.Metrics
	tracer        trace.Tracer
	now           func() time.Time
	lookupTimeout time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger. Nil loggers are ignored.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger.With("component", "trust_engine")
		}
	}
}

// WithMetrics sets the engine's metrics. Nil is safe: all metric methods
// no-op on a nil receiver.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithAuditLogger routes every decision into the tamper-evident audit chain.
func WithAuditLogger(l *audit.Logger) Option {
	return func(e *Engine) { e.auditLog = l }
}

// WithPolicies replaces the default policy set.
func WithPolicies(policies []Policy) Option {
	return func(e *Engine) { e.policies = newPolicySet(policies) }
}

// WithLookupTimeout bounds directory and threat-intel lookups per evaluation.
func WithLookupTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.lookupTimeout = d
		}
	}
}

// WithClock overrides the engine clock. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine creates an evaluation engine over the given identity directory
// and threat-intelligence feed, seeded with the default policies.
func NewEngine(directory Directory, feed intel.Feed, opts ...Option) *Engine {
	e := &Engine{
		policies:      newPolicySet(DefaultPolicies()),
		profiles:      newProfileStore(),
		devices:       newDeviceStore(),
		directory:     directory,
		intel:         feed,
		logger:        slog.Default().With("component", "trust_engine"),
		tracer:        otel.Tracer("vigil/trust"),
		now:           time.Now,
		lookupTimeout: defaultLookupTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// EvaluateAccess scores the request context, matches policies in priority
// order, records the decision in the behavior profile and audit chain, and
// returns it. Collaborator failures degrade factors; they never fail the
// evaluation.
func (e *Engine) EvaluateAccess(ctx context.Context, sctx SecurityContext, resource, action string) (Decision, error) {
	ctx, span := e.tracer.Start(ctx, "trust.EvaluateAccess",
		trace.WithAttributes(
			attribute.String("trust.resource", resource),
			attribute.String("trust.action", action),
		))
	defer span.End()

	start := time.Now()
	defer func() { e.metrics.ObserveEvaluateLatency(time.Since(start)) }()

	sig := e.gatherSignals(ctx, sctx)
	score := e.computeTrustScore(sctx, sig)
	e.metrics.ObserveTrustScore(score.Overall)
	span.SetAttributes(
		attribute.Float64("trust.score", score.Overall),
		attribute.String("trust.risk_level", string(score.RiskLevel)),
	)

	_, deviceKnown := e.devices.lookup(sctx.DeviceFingerprint)
	decision := e.decide(ctx, evalInput{
		sctx:        sctx,
		score:       score,
		mfaEnabled:  sig.mfaEnabled,
		deviceKnown: deviceKnown,
	}, resource, action)

	now := e.contextTime(sctx)
	if sctx.UserID != "" {
		e.profiles.record(sctx.UserID, sctx.Location, now, decision.Allowed, score.Overall)
	}
	e.devices.observe(sctx.DeviceFingerprint, sctx.UserAgent, now)

	effect := "deny"
	if decision.Allowed {
		effect = "allow"
	}
	e.metrics.IncrementDecision(effect, string(score.RiskLevel))

	e.logger.InfoContext(ctx, "access evaluated",
		"user_id", sctx.UserID,
		"resource", resource,
		"action", action,
		"allowed", decision.Allowed,
		"trust_score", score.Overall,
		"risk_level", score.RiskLevel,
	)

	if e.auditLog != nil {
		_, err := e.auditLog.LogAuthorization(ctx, sctx.UserID, resource, action, decision.Allowed, map[string]any{
			"trustScore": score.Overall,
			"riskLevel":  string(score.RiskLevel),
			"reason":     decision.Reason,
			"device":     ParseUserAgent(sctx.UserAgent),
			"ipAddress":  sctx.IPAddress,
		})
		if err != nil {
			e.logger.ErrorContext(ctx, "failed to audit access decision", "error", err)
		}
	}

	return decision, nil
}

// decide walks the applicable policies in priority order and returns the
// first policy whose conditions all hold. Condition evaluation stops at the
// first unmet condition; an unmet allow policy contributes that condition's
// remediation hint to RequiredActions.
func (e *Engine) decide(ctx context.Context, in evalInput, resource, action string) Decision {
	candidates := e.policies.applicable(resource, action, e.now())

	ids := make([]string, 0, len(candidates))
	for _, p := range candidates {
		ids = append(ids, p.ID)
	}

	var required []string
	seen := make(map[string]struct{})
	addRequired := func(a string) {
		if a == "" {
			return
		}
		if _, dup := seen[a]; dup {
			return
		}
		seen[a] = struct{}{}
		required = append(required, a)
	}

	for _, p := range candidates {
		met := true
		for _, c := range p.Conditions {
			res, err := evaluateCondition(c, in)
			if err != nil {
				e.logger.WarnContext(ctx, "malformed policy condition, treated as unmet",
					"policy_id", p.ID,
					"condition_type", c.Type,
					"error", err,
				)
				met = false
				break
			}
			if !res.met {
				met = false
				if p.Effect == EffectAllow {
					addRequired(res.requiredAction)
				}
				break
			}
		}
		if !met {
			continue
		}

		if p.Effect == EffectDeny {
			return Decision{
				Allowed:         false,
				Reason:          "Access denied by policy: " + p.Name,
				TrustScore:      in.score,
				RequiredActions: required,
				Policies:        ids,
			}
		}
		return Decision{
			Allowed:    true,
			Reason:     "Access granted by policy: " + p.Name,
			TrustScore: in.score,
			Policies:   ids,
		}
	}

	return Decision{
		Allowed:         false,
		Reason:          "No matching allow policy found",
		TrustScore:      in.score,
		RequiredActions: required,
		Policies:        ids,
	}
}

// AddPolicy installs a policy, assigning an ID when absent.
func (e *Engine) AddPolicy(ctx context.Context, p Policy) (Policy, error) {
	p = e.policies.add(p)
	e.logger.InfoContext(ctx, "policy added",
		"policy_id", p.ID,
		"effect", p.Effect,
		"priority", p.Priority,
	)
	return p, nil
}

// RemovePolicy deletes a policy by ID.
func (e *Engine) RemovePolicy(ctx context.Context, id string) error {
	if !e.policies.remove(id) {
		return sentinel.ErrNotFound
	}
	e.logger.InfoContext(ctx, "policy removed", "policy_id", id)
	return nil
}

// Policies returns the current policy set, unordered.
func (e *Engine) Policies() []Policy {
	return e.policies.all()
}

// DeviceCount reports the number of observed device fingerprints.
func (e *Engine) DeviceCount() int {
	return e.devices.count()
}

// BehaviorSnapshot returns a copy of a user's learned profile, or nil.
func (e *Engine) BehaviorSnapshot(userID string) *BehaviorProfile {
	return e.profiles.snapshot(userID)
}

// ContinuousAssessmentStatus summarizes engine state for the security
// monitor. Expired adaptive policies are pruned as a side effect.
func (e *Engine) ContinuousAssessmentStatus(ctx context.Context) AssessmentStatus {
	now := e.now()
	e.policies.pruneExpired(now)
	return AssessmentStatus{
		Profiles:          e.profiles.count(),
		Policies:          e.policies.count(),
		AverageTrustScore: round2(e.profiles.averageTrust()),
		AssessedAt:        now,
	}
}

// UpdateThreatIntelligence refreshes the threat feed.
func (e *Engine) UpdateThreatIntelligence(ctx context.Context) error {
	if err := e.intel.Refresh(ctx); err != nil {
		e.logger.ErrorContext(ctx, "threat intelligence refresh failed", "error", err)
		return err
	}
	e.logger.InfoContext(ctx, "threat intelligence refreshed")
	return nil
}
