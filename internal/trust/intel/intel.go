// Package intel abstracts the threat-intelligence feed consumed by network
// trust scoring: malicious-IP lists, VPN/proxy detection, and IP reputation.
package intel

import "context"

// Feed is the pluggable threat-intelligence source. Reputation is in [0,1],
// higher meaning more trustworthy. Feed errors degrade the network factor to
// its most conservative value; they never abort an evaluation.
type Feed interface {
	IsMalicious(ctx context.Context, ip string) (bool, error)
	IsVPN(ctx context.Context, ip string) (bool, error)
	Reputation(ctx context.Context, ip string) (float64, error)
	// Refresh re-pulls upstream feed data. Implementations decide what that
	// means; the static feed is a no-op.
	Refresh(ctx context.Context) error
}
