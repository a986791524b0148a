package trust

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// signals are the external inputs to trust scoring, gathered once per
// evaluation. The error flags mark sources that failed or timed out; the
// corresponding factor degrades to its most conservative value.
type signals struct {
	mfaEnabled bool
	account    *AccountInfo

	malicious  bool
	vpn        bool
	reputation float64

	directoryFailed bool
	intelFailed     bool
}

// gatherSignals fetches directory and threat-intelligence data in parallel
// under a shared timeout. A failed or slow collaborator never aborts the
// evaluation: its signals default to least-trusting.
func (e *Engine) gatherSignals(ctx context.Context, sctx SecurityContext) signals {
	ctx, cancel := context.WithTimeout(ctx, e.lookupTimeout)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	sig := signals{}

	if sctx.UserID != "" {
		g.Go(func() error {
			start := time.Now()
			defer func() { e.metrics.ObserveSignalLatency("directory", time.Since(start)) }()

			account, err := e.directory.AccountInfo(ctx, sctx.UserID)
			if err != nil {
				sig.directoryFailed = true
				e.logDegradedSignal(ctx, "directory", err)
				return nil
			}
			mfa, err := e.directory.MFAEnabled(ctx, sctx.UserID)
			if err != nil {
				sig.directoryFailed = true
				e.logDegradedSignal(ctx, "directory", err)
				return nil
			}
			sig.account = account
			sig.mfaEnabled = mfa
			return nil
		})
	}

	if sctx.IPAddress != "" {
		g.Go(func() error {
			start := time.Now()
			defer func() { e.metrics.ObserveSignalLatency("intel", time.Since(start)) }()

			malicious, err := e.intel.IsMalicious(ctx, sctx.IPAddress)
			if err != nil {
				sig.intelFailed = true
				e.logDegradedSignal(ctx, "intel", err)
				return nil
			}
			vpn, err := e.intel.IsVPN(ctx, sctx.IPAddress)
			if err != nil {
				sig.intelFailed = true
				e.logDegradedSignal(ctx, "intel", err)
				return nil
			}
			rep, err := e.intel.Reputation(ctx, sctx.IPAddress)
			if err != nil {
				sig.intelFailed = true
				e.logDegradedSignal(ctx, "intel", err)
				return nil
			}
			sig.malicious = malicious
			sig.vpn = vpn
			sig.reputation = rep
			return nil
		})
	} else {
		sig.intelFailed = true
	}

	// Goroutines report failures via flags, never errors.
	_ = g.Wait()
	return sig
}

func (e *Engine) logDegradedSignal(ctx context.Context, source string, err error) {
	if e.logger != nil {
		e.logger.WarnContext(ctx, "signal lookup failed, factor degraded to conservative value",
			"source", source,
			"error", err,
		)
	}
}

// computeTrustScore applies the factor formulas and weighted aggregation.
func (e *Engine) computeTrustScore(sctx SecurityContext, sig signals) TrustScore {
	return NewTrustScore(Factors{
		Identity: e.identityFactor(sctx, sig),
		Device:   e.deviceFactor(sctx),
		Location: e.locationFactor(sctx),
		Behavior: e.behaviorFactor(sctx),
		Network:  e.networkFactor(sig),
	})
}

// identityFactor: anonymous 0.1; authenticated base 0.8 with MFA else 0.4,
// +0.1 for accounts older than 30 days, +0.1 for activity within 24h.
func (e *Engine) identityFactor(sctx SecurityContext, sig signals) float64 {
	if sctx.UserID == "" {
		return 0.1
	}
	if sig.directoryFailed {
		return 0.1
	}

	score := 0.4
	if sig.mfaEnabled {
		score = 0.8
	}
	if sig.account != nil {
		if sig.account.AgeInDays > 30 {
			score += 0.1
		}
		if sig.account.LastActivityHoursAgo < 24 {
			score += 0.1
		}
	}
	return clamp01(score)
}

// deviceFactor: unknown fingerprint 0.3; known base 0.6, +0.2 for matching
// user agent, +0.2 if seen within 7 days.
func (e *Engine) deviceFactor(sctx SecurityContext) float64 {
	profile, known := e.devices.lookup(sctx.DeviceFingerprint)
	if !known {
		return 0.3
	}
	score := 0.6
	if profile.UserAgent == sctx.UserAgent {
		score += 0.2
	}
	if e.now().Sub(profile.LastSeen) <= 7*24*time.Hour {
		score += 0.2
	}
	return clamp01(score)
}

// locationFactor: no location 0.5; no profile yet 0.4; otherwise 0.9 for a
// known {country, region} pair, 0.2 for an unseen one.
func (e *Engine) locationFactor(sctx SecurityContext) float64 {
	if sctx.Location == nil {
		return 0.5
	}
	profile := e.profiles.snapshot(sctx.UserID)
	if profile == nil {
		return 0.4
	}
	for _, lc := range profile.CommonLocations {
		if lc.Country == sctx.Location.Country && lc.Region == sctx.Location.Region {
			return 0.9
		}
	}
	return 0.2
}

// behaviorFactor: no profile 0.5; base 0.5, +0.3 when the current hour is an
// active hour, +0.2 when the average session exceeds five minutes.
func (e *Engine) behaviorFactor(sctx SecurityContext) float64 {
	profile := e.profiles.snapshot(sctx.UserID)
	if profile == nil {
		return 0.5
	}
	score := 0.5
	hour := e.contextTime(sctx).Hour()
	for _, h := range profile.ActiveHours {
		if h == hour {
			score += 0.3
			break
		}
	}
	if profile.AverageSessionDuration > 300 {
		score += 0.2
	}
	return clamp01(score)
}

// networkFactor: malicious 0.0; VPN/proxy 0.3; otherwise the feed's
// reputation score. Feed failure degrades to 0.0.
func (e *Engine) networkFactor(sig signals) float64 {
	if sig.intelFailed {
		return 0.0
	}
	if sig.malicious {
		return 0.0
	}
	if sig.vpn {
		return 0.3
	}
	return clamp01(sig.reputation)
}

// contextTime prefers the request's timestamp; evaluations without one use
// the engine clock.
func (e *Engine) contextTime(sctx SecurityContext) time.Time {
	if !sctx.Timestamp.IsZero() {
		return sctx.Timestamp
	}
	return e.now()
}

func clamp01(x float64) float64 {
	if x > 1 {
		return 1
	}
	if x < 0 {
		return 0
	}
	return x
}
