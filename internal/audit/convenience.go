package audit

import "context"

// Well-known actions recorded by the convenience loggers.
const (
	ActionAuthentication    = "authentication"
	ActionAuthorization     = "authorization"
	ActionDataAccess        = "data_access"
	ActionWorkflowExecution = "workflow_execution"
)

// LogAuthentication records a login attempt. Failed attempts are medium
// severity so repeated failures surface in monitoring.
func (l *Logger) LogAuthentication(ctx context.Context, userID, ipAddress, userAgent string, success bool, details map[string]any) (*Event, error) {
	outcome, severity := OutcomeSuccess, SeverityLow
	if !success {
		outcome, severity = OutcomeFailure, SeverityMedium
	}
	return l.LogEvent(ctx, Entry{
		UserID:    userID,
		Action:    ActionAuthentication,
		Resource:  "auth",
		Details:   details,
		IPAddress: ipAddress,
		UserAgent: userAgent,
		Outcome:   outcome,
		Severity:  severity,
	})
}

/// LogAuthorization records an access decision. Denials are high severity:
// they either indicate probing or a policy misconfiguration.
func (l *Logger) LogAuthorization(ctx context.Context, userID, resource, action string, allowed bool, details map[string]any) (*Event, error) {
	outcome, severity := OutcomeSuccess, SeverityLow
	if !allowed {
		outcome, severity = OutcomeFailure, SeverityHigh
	}
	return l.LogEvent(ctx, Entry{
		UserID:   userID,
		Action:   ActionAuthorization,
		Resource: resource,
		Details:  mergeDetails(details, map[string]any{"requestedAction": action}),
		Outcome:  outcome,
		Severity: severity,
	})
}

// LogDataAccess records reads/writes of protected data.
func (l *Logger) LogDataAccess(ctx context.Context, userID, resource, resourceID, operation string, success bool) (*Event, error) {
	outcome, severity := OutcomeSuccess, SeverityLow
	if !success {
		outcome, severity = OutcomeFailure, SeverityMedium
	}
	return l.LogEvent(ctx, Entry{
		UserID:     userID,
		Action:     ActionDataAccess,
		Resource:   resource,
		ResourceID: resourceID,
		Details:    map[string]any{"operation": operation},
		Outcome:    outcome,
		Severity:   severity,
	})
}

// LogSecurityEvent records an arbitrary security event at caller-chosen
// severity.
func (l *Logger) LogSecurityEvent(ctx context.Context, action string, severity Severity, details map[string]any) (*Event, error) {
	return l.LogEvent(ctx, Entry{
		Action:   action,
		Resource: "security",
		Details:  details,
		Outcome:  OutcomeSuccess,
		Severity: severity,
	})
}

// LogWorkflowExecution records a workflow run. Errors are high severity.
func (l *Logger) LogWorkflowExecution(ctx context.Context, userID, workflowID string, outcome Outcome, details map[string]any) (*Event, error) {
	severity := SeverityLow
	if outcome == OutcomeError {
		severity = SeverityHigh
	}
	return l.LogEvent(ctx, Entry{
		UserID:     userID,
		Action:     ActionWorkflowExecution,
		Resource:   "workflows",
		ResourceID: workflowID,
		Details:    details,
		Outcome:    outcome,
		Severity:   severity,
	})
}

func mergeDetails(base, extra map[string]any) map[string]any {
	if base == nil {
		return extra
	}
	out := make(map[string]any, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
