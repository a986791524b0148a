package keys

import (
	"context"
	"log/slog"
	"time"
)

// Rotator rotates the manager's current key on a fixed interval. Rotation
// failures are logged and the loop keeps running; a failed rotation must
// never take the process down.
type Rotator struct {
	manager  *Manager
	interval time.Duration
	logger   *slog.Logger
}

// DefaultRotationInterval matches the 30-day operational policy.
const DefaultRotationInterval = 30 * 24 * time.Hour

func NewRotator(manager *Manager, interval time.Duration, logger *slog.Logger) *Rotator {
	if interval <= 0 {
		interval = DefaultRotationInterval
	}
	return &Rotator{manager: manager, interval: interval, logger: logger}
}

// Run blocks until the context is cancelled.
func (r *Rotator) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.manager.Rotate(); err != nil {
				if r.logger != nil {
					r.logger.ErrorContext(ctx, "scheduled key rotation failed", "error", err)
				}
			}
		}
	}
}
