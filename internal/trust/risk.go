package trust

import (
	"context"
	"time"

	"vigil/internal/audit"
)

// adaptivePolicyTTL bounds policies installed by AdaptPolicies. Expired
// policies are skipped at match time and pruned during status assessment.
const adaptivePolicyTTL = time.Hour

// PerformRiskAssessment inspects a request context for categorical risk
// signals, independent of the weighted trust score. The overall level is the
// worst individual finding.
func (e *Engine) PerformRiskAssessment(ctx context.Context, sctx SecurityContext) RiskAssessment {
	assessment := RiskAssessment{
		AssessedAt: e.now(),
		Overall:    RiskLow,
	}

	add := func(f RiskFactor, recommendation string) {
		assessment.Factors = append(assessment.Factors, f)
		if recommendation != "" {
			assessment.Recommendations = append(assessment.Recommendations, recommendation)
		}
		if riskRank(f.Level) > riskRank(assessment.Overall) {
			assessment.Overall = f.Level
		}
	}

	if sctx.UserID == "" {
		add(RiskFactor{
			Name:        "anonymous_access",
			Level:       RiskHigh,
			Description: "Request carries no authenticated user identity",
		}, "Require authentication before granting access")
	}

	hour := e.contextTime(sctx).Hour()
	if hour < 6 || hour > 22 {
		add(RiskFactor{
			Name:        "off_hours_access",
			Level:       RiskMedium,
			Description: "Access attempted outside typical working hours",
		}, "Verify the access is expected at this time")
	}

	if _, known := e.devices.lookup(sctx.DeviceFingerprint); !known {
		add(RiskFactor{
			Name:        "unknown_device",
			Level:       RiskMedium,
			Description: "Device fingerprint has not been observed before",
		}, "Register the device or require step-up verification")
	}

	if sctx.IPAddress != "" {
		malicious, err := e.intel.IsMalicious(ctx, sctx.IPAddress)
		if err != nil {
			e.logDegradedSignal(ctx, "intel", err)
		} else if malicious {
			add(RiskFactor{
				Name:        "malicious_ip",
				Level:       RiskCritical,
				Description: "Source IP appears in the threat-intelligence feed",
			}, "Block the source IP and review recent activity")
		}
	}

	e.logger.InfoContext(ctx, "risk assessment completed",
		"user_id", sctx.UserID,
		"overall", assessment.Overall,
		"factors", len(assessment.Factors),
	)
	return assessment
}

// AdaptPolicies tightens the policy set in response to an elevated threat
// level: high or critical installs a temporary deny for low-trust requests
// across all resources. The policy expires after adaptivePolicyTTL.
func (e *Engine) AdaptPolicies(ctx context.Context, threatLevel RiskLevel) (*Policy, error) {
	if threatLevel != RiskHigh && threatLevel != RiskCritical {
		e.logger.InfoContext(ctx, "threat level does not require policy adaptation",
			"threat_level", threatLevel)
		return nil, nil
	}

	expires := e.now().Add(adaptivePolicyTTL)
	p := e.policies.add(Policy{
		Name:     "Adaptive deny under elevated threat",
		Resource: "*",
		Action:   "*",
		Effect:   EffectDeny,
		Priority: 250,
		Conditions: []Condition{
			{Type: ConditionTrustScore, Operator: OpLessThan, Value: 0.5},
		},
		ExpiresAt: &expires,
	})

	e.logger.WarnContext(ctx, "adaptive deny policy installed",
		"policy_id", p.ID,
		"threat_level", threatLevel,
		"expires_at", expires,
	)

	if e.auditLog != nil {
		_, err := e.auditLog.LogSecurityEvent(ctx, "policy_adaptation", audit.SeverityHigh, map[string]any{
			"threatLevel": string(threatLevel),
			"policyId":    p.ID,
			"expiresAt":   expires.Format(time.RFC3339),
		})
		if err != nil {
			e.logger.ErrorContext(ctx, "failed to audit policy adaptation", "error", err)
		}
	}

	return &p, nil
}

func riskRank(l RiskLevel) int {
	switch l {
	case RiskCritical:
		return 3
	case RiskHigh:
		return 2
	case RiskMedium:
		return 1
	default:
		return 0
	}
}
