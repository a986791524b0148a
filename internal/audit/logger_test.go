package audit

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *Logger {
	return NewLogger([]byte("test-signing-key"))
}

func logN(t *testing.T, l *Logger, n int) []Event {
	t.Helper()
	events := make([]Event, 0, n)
	for i := 0; i < n; i++ {
		e, err := l.LogEvent(context.Background(), Entry{
			UserID:   fmt.Sprintf("user-%d", i%3),
			Action:   "test_action",
			Resource: "/resources/x",
			Details:  map[string]any{"seq": i},
			Outcome:  OutcomeSuccess,
			Severity: SeverityLow,
		})
		require.NoError(t, err)
		events = append(events, *e)
	}
	return events
}

func TestLogEvent_ChainsHashes(t *testing.T) {
	l := newTestLogger()
	events := logN(t, l, 3)

	assert.Equal(t, GenesisHash(), events[0].PrevHash)
	assert.Equal(t, events[0].Hash, events[1].PrevHash)
	assert.Equal(t, events[1].Hash, events[2].PrevHash)

	for _, e := range events {
		assert.NotEmpty(t, e.ID)
		assert.False(t, e.Timestamp.IsZero())
		recomputed, err := ComputeHash(e)
		require.NoError(t, err)
		assert.Equal(t, e.Hash, recomputed)
	}
}

func TestVerifyChainIntegrity_Valid(t *testing.T) {
	l := newTestLogger()

	res := l.VerifyChainIntegrity()
	assert.True(t, res.Valid)
	assert.Equal(t, -1, res.BrokenAt)

	logN(t, l, 10)
	res = l.VerifyChainIntegrity()
	assert.True(t, res.Valid)
	assert.Equal(t, -1, res.BrokenAt)
}

func TestVerifyChainIntegrity_DetectsTamperedDetails(t *testing.T) {
	for _, target := range []int{0, 4, 9} {
		t.Run(fmt.Sprintf("event %d", target), func(t *testing.T) {
			l := newTestLogger()
			logN(t, l, 10)
			l.tamper(target, func(e *Event) {
				e.Details = map[string]any{"seq": 999}
			})

			res := l.VerifyChainIntegrity()
			assert.False(t, res.Valid)
			assert.Equal(t, target, res.BrokenAt)
		})
	}
}

func TestVerifyChainIntegrity_DetectsBrokenLinkage(t *testing.T) {
	l := newTestLogger()
	logN(t, l, 5)

	l.tamper(2, func(e *Event) {
		e.PrevHash = GenesisHash()
	})

	res := l.VerifyChainIntegrity()
	assert.False(t, res.Valid)
	assert.Equal(t, 2, res.BrokenAt)
}

func TestLogEvent_ConcurrentAppendsKeepChainValid(t *testing.T) {
	l := newTestLogger()

	const writers = 8
	const perWriter = 25
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				_, err := l.LogEvent(context.Background(), Entry{
					Action:   "concurrent",
					Resource: fmt.Sprintf("/w/%d", w),
				})
				assert.NoError(t, err)
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, writers*perWriter, l.Len())
	res := l.VerifyChainIntegrity()
	assert.True(t, res.Valid)
}

func TestLogEvent_NotifiesSubscribers(t *testing.T) {
	l := newTestLogger()

	var got []Event
	l.Subscribe(func(e Event) { got = append(got, e) })
	// A panicking subscriber must not break logging or other subscribers.
	l.Subscribe(func(Event) { panic("bad subscriber") })

	logN(t, l, 2)
	assert.Len(t, got, 2)
	assert.Equal(t, 2, l.Len())
}

func TestLogEvent_DefaultsOutcomeAndSeverity(t *testing.T) {
	l := newTestLogger()
	e, err := l.LogEvent(context.Background(), Entry{Action: "bare", Resource: "r"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, e.Outcome)
	assert.Equal(t, SeverityLow, e.Severity)
}

func TestGetStatistics(t *testing.T) {
	l := newTestLogger()
	logN(t, l, 6)
	_, err := l.LogEvent(context.Background(), Entry{
		UserID:   "user-x",
		Action:   "breach_attempt",
		Resource: "/vault",
		Outcome:  OutcomeFailure,
		Severity: SeverityCritical,
	})
	require.NoError(t, err)

	stats := l.GetStatistics()
	assert.Equal(t, 7, stats.TotalEvents)
	assert.Equal(t, 7, stats.EventsLast24h)
	assert.Equal(t, 7, stats.EventsLast7d)
	assert.Equal(t, 6, stats.ByAction["test_action"])
	assert.Equal(t, 1, stats.ByAction["breach_attempt"])
	assert.Equal(t, 1, stats.BySeverity["critical"])
	assert.Equal(t, 1, stats.ByOutcome["failure"])
	assert.Equal(t, 4, stats.DistinctUsers) // user-0..2 + user-x
	assert.True(t, stats.ChainValid)
}

func TestConvenienceLoggers_SeverityDefaults(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		log      func(l *Logger) (*Event, error)
		outcome  Outcome
		severity Severity
	}{
		{
			name: "successful authentication is low",
			log: func(l *Logger) (*Event, error) {
				return l.LogAuthentication(ctx, "u1", "1.2.3.4", "ua", true, nil)
			},
			outcome: OutcomeSuccess, severity: SeverityLow,
		},
		{
			name: "failed authentication is medium",
			log: func(l *Logger) (*Event, error) {
				return l.LogAuthentication(ctx, "u1", "1.2.3.4", "ua", false, nil)
			},
			outcome: OutcomeFailure, severity: SeverityMedium,
		},
		{
			name: "granted authorization is low",
			log: func(l *Logger) (*Event, error) {
				return l.LogAuthorization(ctx, "u1", "/r", "read", true, nil)
			},
			outcome: OutcomeSuccess, severity: SeverityLow,
		},
		{
			name: "denied authorization is high",
			log: func(l *Logger) (*Event, error) {
				return l.LogAuthorization(ctx, "u1", "/r", "read", false, nil)
			},
			outcome: OutcomeFailure, severity: SeverityHigh,
		},
		{
			name: "failed data access is medium",
			log: func(l *Logger) (*Event, error) {
				return l.LogDataAccess(ctx, "u1", "/r", "id1", "read", false)
			},
			outcome: OutcomeFailure, severity: SeverityMedium,
		},
		{
			name: "workflow error is high",
			log: func(l *Logger) (*Event, error) {
				return l.LogWorkflowExecution(ctx, "u1", "wf-1", OutcomeError, nil)
			},
			outcome: OutcomeError, severity: SeverityHigh,
		},
		{
			name: "workflow success is low",
			log: func(l *Logger) (*Event, error) {
				return l.LogWorkflowExecution(ctx, "u1", "wf-1", OutcomeSuccess, nil)
			},
			outcome: OutcomeSuccess, severity: SeverityLow,
		},
		{
			name: "security event keeps caller severity",
			log: func(l *Logger) (*Event, error) {
				return l.LogSecurityEvent(ctx, "intrusion_detected", SeverityCritical, nil)
			},
			outcome: OutcomeSuccess, severity: SeverityCritical,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newTestLogger()
			e, err := tt.log(l)
			require.NoError(t, err)
			assert.Equal(t, tt.outcome, e.Outcome)
			assert.Equal(t, tt.severity, e.Severity)
		})
	}
}
