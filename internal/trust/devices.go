package trust

import (
	"strings"
	"sync"
	"time"

	"github.com/mssola/useragent"
)

// deviceStore tracks device fingerprints for device-trust scoring. Profiles
// are created lazily on first observation.
type deviceStore struct {
	mu      sync.RWMutex
	devices map[string]DeviceProfile
}

func newDeviceStore() *deviceStore {
	return &deviceStore{devices: make(map[string]DeviceProfile)}
}

// lookup returns a copy of the device profile, if known.
func (s *deviceStore) lookup(fingerprint string) (DeviceProfile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.devices[fingerprint]
	return p, ok
}

// observe records a sighting of a device, updating last-seen and the stored
// user agent.
func (s *deviceStore) observe(fingerprint, userAgent string, at time.Time) {
	if fingerprint == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.devices[fingerprint] = DeviceProfile{
		Fingerprint: fingerprint,
		UserAgent:   userAgent,
		DisplayName: ParseUserAgent(userAgent),
		LastSeen:    at,
	}
}

func (s *deviceStore) count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.devices)
}

// ParseUserAgent derives a human-readable device name ("Chrome on Mac OS X")
// for audit details and admin views. Scoring compares raw user-agent
// strings; this name is presentation only.
func ParseUserAgent(raw string) string {
	if raw == "" {
		return "Unknown Device"
	}
	ua := useragent.New(raw)
	name, _ := ua.Browser()
	os := ua.OS()
	if name == "" {
		name = "Unknown Browser"
	}
	if os == "" {
		os = "Unknown OS"
	}
	return strings.TrimSpace(name + " on " + os)
}
