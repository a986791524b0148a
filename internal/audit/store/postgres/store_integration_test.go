//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vigil/internal/audit"
	"vigil/internal/audit/store"
	"vigil/pkg/platform/sentinel"
	"vigil/pkg/testutil/containers"
)

func newTestStore(t *testing.T) *PostgresStore {
	t.Helper()
	pg := containers.NewPostgresContainer(t)
	s := NewPostgresStore(pg.Pool)
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func testEvent(userID, action string) audit.Event {
	return audit.Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC().Truncate(time.Microsecond),
		UserID:    userID,
		Action:    action,
		Resource:  "/resources/x",
		Details:   map[string]any{"seq": float64(1)},
		Outcome:   audit.OutcomeSuccess,
		Severity:  audit.SeverityLow,
		PrevHash:  "prev",
		Hash:      uuid.NewString(),
	}
}

func TestPostgresStore_StoreRetrieve(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	event := testEvent("u1", "authentication")
	require.NoError(t, s.Store(ctx, event))

	got, err := s.Retrieve(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, event.ID, got.ID)
	assert.Equal(t, event.UserID, got.UserID)
	assert.Equal(t, event.Hash, got.Hash)
	assert.Equal(t, event.Details, got.Details)
	assert.True(t, event.Timestamp.Equal(got.Timestamp))

	_, err = s.Retrieve(ctx, "missing")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestPostgresStore_List(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Store(ctx, testEvent("u1", "authentication")))
	}
	require.NoError(t, s.Store(ctx, testEvent("u2", "authorization")))

	events, err := s.List(ctx, store.Filter{UserID: "u1"})
	require.NoError(t, err)
	assert.Len(t, events, 3)

	events, err = s.List(ctx, store.Filter{Action: "authorization"})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "u2", events[0].UserID)

	events, err = s.List(ctx, store.Filter{UserID: "u1", Limit: 2})
	require.NoError(t, err)
	assert.Len(t, events, 2)

	events, err = s.List(ctx, store.Filter{UserID: "nobody"})
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestPostgresStore_WorkerDrain(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := audit.NewLogger([]byte("test-signing-key"))
	w := audit.NewWorker(s, l.Pending())
	go w.Run(ctx)

	event, err := l.LogEvent(ctx, audit.Entry{
		UserID:   "u1",
		Action:   "data_access",
		Resource: "/documents",
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got, err := s.Retrieve(context.Background(), event.ID)
		return err == nil && got.Hash == event.Hash
	}, 5*time.Second, 50*time.Millisecond)
}
