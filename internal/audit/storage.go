package audit

import (
	"context"
	"time"
)

// Filter narrows List results. Zero values mean "no constraint".
type Filter struct {
	UserID   string
	Action   string
	Resource string
	Severity Severity
	Start    time.Time
	End      time.Time
	Limit    int
}

// Store persists audit events. Implementations must be safe for concurrent
// use. Retrieve returns sentinel.ErrNotFound (wrapped) for unknown IDs.
type Store interface {
	Store(ctx context.Context, event Event) error
	Retrieve(ctx context.Context, eventID string) (*Event, error)
	List(ctx context.Context, filter Filter) ([]Event, error)
}

// Matches reports whether an event satisfies the filter. Shared by memory
// implementations and tests.
func (f Filter) Matches(e Event) bool {
	if f.UserID != "" && e.UserID != f.UserID {
		return false
	}
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if f.Resource != "" && e.Resource != f.Resource {
		return false
	}
	if f.Severity != "" && e.Severity != f.Severity {
		return false
	}
	if !f.Start.IsZero() && e.Timestamp.Before(f.Start) {
		return false
	}
	if !f.End.IsZero() && e.Timestamp.After(f.End) {
		return false
	}
	return true
}
