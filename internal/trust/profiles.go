package trust

import (
	"sync"
	"time"
)

// maxAccessAttempts caps the rolling access history per profile; the oldest
// entry is evicted on overflow.
const maxAccessAttempts = 100

// profileStore owns behavior profiles. Updates for the same user are
// serialized per user so concurrent evaluations cannot drop attempts or
// under-count locations; different users update independently.
type profileStore struct {
	mu       sync.RWMutex
	profiles map[string]*lockedProfile
}

type lockedProfile struct {
	mu      sync.Mutex
	profile BehaviorProfile
}

func newProfileStore() *profileStore {
	return &profileStore{profiles: make(map[string]*lockedProfile)}
}

// get returns the holder for a user, creating it lazily.
func (s *profileStore) get(userID string) *lockedProfile {
	s.mu.RLock()
	lp, ok := s.profiles[userID]
	s.mu.RUnlock()
	if ok {
		return lp
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if lp, ok := s.profiles[userID]; ok {
		return lp
	}
	lp = &lockedProfile{profile: BehaviorProfile{UserID: userID}}
	s.profiles[userID] = lp
	return lp
}

// snapshot returns a copy of a user's profile, or nil if none exists yet.
// Scoring reads the snapshot so it never blocks a concurrent update.
func (s *profileStore) snapshot(userID string) *BehaviorProfile {
	s.mu.RLock()
	lp, ok := s.profiles[userID]
	s.mu.RUnlock()
	if !ok {
		return nil
	}

	lp.mu.Lock()
	defer lp.mu.Unlock()
	copied := lp.profile
	copied.CommonLocations = append([]LocationCount{}, lp.profile.CommonLocations...)
	copied.ActiveHours = append([]int{}, lp.profile.ActiveHours...)
	copied.AccessAttempts = append([]AccessAttempt{}, lp.profile.AccessAttempts...)
	return &copied
}

// record learns from one access evaluation: location frequency, active hour,
// and the rolling attempt history.
func (s *profileStore) record(userID string, loc *Location, at time.Time, allowed bool, trustScore float64) {
	lp := s.get(userID)
	lp.mu.Lock()
	defer lp.mu.Unlock()

	p := &lp.profile

	if loc != nil {
		found := false
		for i := range p.CommonLocations {
			if p.CommonLocations[i].Country == loc.Country && p.CommonLocations[i].Region == loc.Region {
				p.CommonLocations[i].Count++
				found = true
				break
			}
		}
		if !found {
			p.CommonLocations = append(p.CommonLocations, LocationCount{
				Country: loc.Country,
				Region:  loc.Region,
				Count:   1,
			})
		}
	}

	hour := at.Hour()
	seen := false
	for _, h := range p.ActiveHours {
		if h == hour {
			seen = true
			break
		}
	}
	if !seen {
		p.ActiveHours = append(p.ActiveHours, hour)
	}

	p.AccessAttempts = append(p.AccessAttempts, AccessAttempt{
		Timestamp:  at,
		Allowed:    allowed,
		TrustScore: trustScore,
	})
	if len(p.AccessAttempts) > maxAccessAttempts {
		p.AccessAttempts = p.AccessAttempts[len(p.AccessAttempts)-maxAccessAttempts:]
	}
}

// count returns the number of profiles currently held.
func (s *profileStore) count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.profiles)
}

// averageTrust computes the mean trust score across all recorded attempts.
// Returns 0 when no attempts exist.
func (s *profileStore) averageTrust() float64 {
	s.mu.RLock()
	holders := make([]*lockedProfile, 0, len(s.profiles))
	for _, lp := range s.profiles {
		holders = append(holders, lp)
	}
	s.mu.RUnlock()

	var sum float64
	var n int
	for _, lp := range holders {
		lp.mu.Lock()
		for _, a := range lp.profile.AccessAttempts {
			sum += a.TrustScore
			n++
		}
		lp.mu.Unlock()
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
