package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vigil/internal/audit"
	"vigil/internal/audit/store"
	"vigil/pkg/platform/sentinel"
)

func event(id, userID, action string, severity audit.Severity, ts time.Time) audit.Event {
	return audit.Event{
		ID:        id,
		Timestamp: ts,
		UserID:    userID,
		Action:    action,
		Resource:  "/r",
		Outcome:   audit.OutcomeSuccess,
		Severity:  severity,
	}
}

func TestInMemoryStore_StoreAndRetrieve(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	e := event("e1", "u1", "login", audit.SeverityLow, time.Now())
	require.NoError(t, s.Store(ctx, e))

	got, err := s.Retrieve(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, e, *got)

	_, err = s.Retrieve(ctx, "missing")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestInMemoryStore_ListFilters(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	require.NoError(t, s.Store(ctx, event("e1", "u1", "login", audit.SeverityLow, base)))
	require.NoError(t, s.Store(ctx, event("e2", "u2", "login", audit.SeverityMedium, base.Add(10*time.Minute))))
	require.NoError(t, s.Store(ctx, event("e3", "u1", "logout", audit.SeverityLow, base.Add(20*time.Minute))))

	t.Run("by user", func(t *testing.T) {
		got, err := s.List(ctx, store.Filter{UserID: "u1"})
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("by action and severity", func(t *testing.T) {
		got, err := s.List(ctx, store.Filter{Action: "login", Severity: audit.SeverityMedium})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "e2", got[0].ID)
	})

	t.Run("by time window", func(t *testing.T) {
		got, err := s.List(ctx, store.Filter{Start: base.Add(5 * time.Minute), End: base.Add(15 * time.Minute)})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "e2", got[0].ID)
	})

	t.Run("with limit", func(t *testing.T) {
		got, err := s.List(ctx, store.Filter{Limit: 2})
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("no constraint returns all", func(t *testing.T) {
		got, err := s.List(ctx, store.Filter{})
		require.NoError(t, err)
		assert.Len(t, got, 3)
	})
}
