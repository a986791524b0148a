package trust

import (
	"context"
	"fmt"
	"sync"

	"vigil/pkg/platform/sentinel"
)

// Directory is the user/account lookup consumed by identity scoring. A real
// deployment plugs in LDAP/SCIM/IdP integrations; the static implementation
// below exists for tests and development. Lookup failures degrade the
// identity factor, they never abort an evaluation.
type Directory interface {
	AccountInfo(ctx context.Context, userID string) (*AccountInfo, error)
	MFAEnabled(ctx context.Context, userID string) (bool, error)
}

// StaticDirectory is an in-memory Directory for tests and single-node
// development setups.
type StaticDirectory struct {
	mu       sync.RWMutex
	accounts map[string]AccountInfo
	mfa      map[string]bool
}

func NewStaticDirectory() *StaticDirectory {
	return &StaticDirectory{
		accounts: make(map[string]AccountInfo),
		mfa:      make(map[string]bool),
	}
}

// SetAccount registers or replaces an account record.
func (d *StaticDirectory) SetAccount(userID string, info AccountInfo, mfaEnabled bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.accounts[userID] = info
	d.mfa[userID] = mfaEnabled
}

func (d *StaticDirectory) AccountInfo(_ context.Context, userID string) (*AccountInfo, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	info, ok := d.accounts[userID]
	if !ok {
		return nil, fmt.Errorf("account %s: %w", userID, sentinel.ErrNotFound)
	}
	return &info, nil
}

func (d *StaticDirectory) MFAEnabled(_ context.Context, userID string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	enabled, ok := d.mfa[userID]
	if !ok {
		return false, fmt.Errorf("account %s: %w", userID, sentinel.ErrNotFound)
	}
	return enabled, nil
}
