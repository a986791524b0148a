package intel

import (
	"context"
	"sync"
)

// StaticFeed is an in-memory Feed for tests and development. Unknown IPs get
// the configured default reputation.
type StaticFeed struct {
	mu         sync.RWMutex
	malicious  map[string]struct{}
	vpn        map[string]struct{}
	reputation map[string]float64
	defaultRep float64
}

// StaticOption configures a StaticFeed.
type StaticOption func(*StaticFeed)

// WithDefaultReputation sets the score returned for IPs without an explicit
// entry. The zero default of 0.5 is deliberately neutral.
func WithDefaultReputation(rep float64) StaticOption {
	return func(f *StaticFeed) { f.defaultRep = rep }
}

func NewStaticFeed(opts ...StaticOption) *StaticFeed {
	f := &StaticFeed{
		malicious:  make(map[string]struct{}),
		vpn:        make(map[string]struct{}),
		reputation: make(map[string]float64),
		defaultRep: 0.5,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *StaticFeed) MarkMalicious(ips ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ip := range ips {
		f.malicious[ip] = struct{}{}
	}
}

func (f *StaticFeed) MarkVPN(ips ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ip := range ips {
		f.vpn[ip] = struct{}{}
	}
}

func (f *StaticFeed) SetReputation(ip string, rep float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reputation[ip] = rep
}

func (f *StaticFeed) IsMalicious(_ context.Context, ip string) (bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.malicious[ip]
	return ok, nil
}

func (f *StaticFeed) IsVPN(_ context.Context, ip string) (bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.vpn[ip]
	return ok, nil
}

func (f *StaticFeed) Reputation(_ context.Context, ip string) (float64, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if rep, ok := f.reputation[ip]; ok {
		return rep, nil
	}
	return f.defaultRep, nil
}

func (f *StaticFeed) Refresh(context.Context) error { return nil }
