package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"vigil/internal/audit/metrics"
)

const defaultQueueSize = 4096

// Subscriber receives every logged event. Callbacks run on the logging
// goroutine and must be fast; panics are recovered so a bad subscriber
// cannot break the chain.
type Subscriber func(Event)

// Scrubber encrypts sensitive detail fields before an event enters the
// chain. The hash then covers ciphertext, so scrubbing must happen exactly
// once, here.
type Scrubber interface {
	EncryptSensitive(v any) (any, error)
}

// Logger is the append-only audit chain. A single mutex serializes appends:
// concurrent callers computing the previous hash from a stale head would
// corrupt the chain, so lastHash mutation is a critical section.
type Logger struct {
	mu       sync.Mutex
	events   []Event
	lastHash string

	subMu       sync.RWMutex
	subscribers []Subscriber

	pending chan Event

	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
	scrubber Scrubber

	signingKey []byte
}

// Option configures a Logger.
type Option func(*Logger)

func WithLogger(logger *slog.Logger) Option {
	return func(l *Logger) { l.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Logger) { l.metrics = m }
}

// WithScrubber encrypts sensitive detail fields (passwords, tokens, PII)
// before events are hashed and appended.
func WithScrubber(s Scrubber) Option {
	return func(l *Logger) { l.scrubber = s }
}

// WithQueueSize bounds the persistence queue. When full, events stay in the
// in-memory chain but skip durable storage; the drop is logged and counted.
func WithQueueSize(n int) Option {
	return func(l *Logger) {
		if n > 0 {
			l.pending = make(chan Event, n)
		}
	}
}

// NewLogger creates an audit chain anchored at the genesis hash. The signing
// key is used for export signatures; it may be nil if exports are unused.
func NewLogger(signingKey []byte, opts ...Option) *Logger {
	l := &Logger{
		lastHash:   GenesisHash(),
		pending:    make(chan Event, defaultQueueSize),
		tracer:     otel.Tracer("vigil/audit"),
		signingKey: signingKey,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Pending exposes the persistence queue for a Worker to drain.
func (l *Logger) Pending() <-chan Event { return l.pending }

// Subscribe registers a callback invoked for every logged event.
func (l *Logger) Subscribe(fn Subscriber) {
	l.subMu.Lock()
	defer l.subMu.Unlock()
	l.subscribers = append(l.subscribers, fn)
}

// LogEvent appends an entry to the chain. The in-memory append and the
// subscriber notification always happen; durable persistence is queued and
// may fail independently.
func (l *Logger) LogEvent(ctx context.Context, entry Entry) (*Event, error) {
	_, span := l.tracer.Start(ctx, "audit.LogEvent",
		trace.WithAttributes(
			attribute.String("audit.action", entry.Action),
			attribute.String("audit.severity", string(entry.Severity)),
		))
	defer span.End()

	if entry.Outcome == "" {
		entry.Outcome = OutcomeSuccess
	}
	if entry.Severity == "" {
		entry.Severity = SeverityLow
	}

	if l.scrubber != nil && entry.Details != nil {
		scrubbed, err := l.scrubber.EncryptSensitive(entry.Details)
		if err != nil {
			// Never leak the original values and never drop the append.
			if l.logger != nil {
				l.logger.ErrorContext(ctx, "detail scrubbing failed, details redacted",
					"action", entry.Action, "error", err)
			}
			entry.Details = map[string]any{"redacted": true}
		} else if m, ok := scrubbed.(map[string]any); ok {
			entry.Details = m
		}
	}

	event := Event{
		ID:         uuid.NewString(),
		Timestamp:  time.Now().UTC(),
		UserID:     entry.UserID,
		SessionID:  entry.SessionID,
		Action:     entry.Action,
		Resource:   entry.Resource,
		ResourceID: entry.ResourceID,
		Details:    entry.Details,
		IPAddress:  entry.IPAddress,
		UserAgent:  entry.UserAgent,
		Outcome:    entry.Outcome,
		Severity:   entry.Severity,
	}

	l.mu.Lock()
	event.PrevHash = l.lastHash
	hash, err := ComputeHash(event)
	if err != nil {
		l.mu.Unlock()
		return nil, err
	}
	event.Hash = hash
	l.lastHash = hash
	l.events = append(l.events, event)
	l.mu.Unlock()

	l.metrics.IncrementLogged(string(event.Severity), string(event.Outcome))
	l.notify(event)
	l.enqueue(event)

	return &event, nil
}

func (l *Logger) notify(event Event) {
	l.subMu.RLock()
	subs := l.subscribers
	l.subMu.RUnlock()
	for _, fn := range subs {
		func() {
			defer func() {
				if r := recover(); r != nil && l.logger != nil {
					l.logger.Error("audit subscriber panicked", "panic", r, "event_id", event.ID)
				}
			}()
			fn(event)
		}()
	}
}

func (l *Logger) enqueue(event Event) {
	select {
	case l.pending <- event:
	default:
		l.metrics.IncrementDropped()
		if l.logger != nil {
			l.logger.Warn("audit persistence queue full, event kept in-memory only",
				"event_id", event.ID)
		}
	}
}

// Events returns a copy of the chain, oldest first.
func (l *Logger) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Event{}, l.events...)
}

// Len returns the chain length.
func (l *Logger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

// VerifyChainIntegrity walks the chain from genesis, recomputing each hash
// and checking linkage. It short-circuits at the first break and reports,
// never heals: tamper evidence must survive.
func (l *Logger) VerifyChainIntegrity() Integrity {
	events := l.Events()
	l.metrics.IncrementVerifications()

	prev := GenesisHash()
	for i, e := range events {
		if e.PrevHash != prev {
			return Integrity{Valid: false, BrokenAt: i}
		}
		recomputed, err := ComputeHash(e)
		if err != nil || recomputed != e.Hash {
			return Integrity{Valid: false, BrokenAt: i}
		}
		prev = e.Hash
	}
	return Integrity{Valid: true, BrokenAt: -1}
}

// GetStatistics aggregates the chain for dashboards.
func (l *Logger) GetStatistics() Statistics {
	events := l.Events()
	now := time.Now().UTC()

	stats := Statistics{
		TotalEvents: len(events),
		ByAction:    make(map[string]int),
		ByResource:  make(map[string]int),
		BySeverity:  make(map[string]int),
		ByOutcome:   make(map[string]int),
	}
	users := make(map[string]struct{})
	for _, e := range events {
		if now.Sub(e.Timestamp) <= 24*time.Hour {
			stats.EventsLast24h++
		}
		if now.Sub(e.Timestamp) <= 7*24*time.Hour {
			stats.EventsLast7d++
		}
		stats.ByAction[e.Action]++
		stats.ByResource[e.Resource]++
		stats.BySeverity[string(e.Severity)]++
		stats.ByOutcome[string(e.Outcome)]++
		if e.UserID != "" {
			users[e.UserID] = struct{}{}
		}
	}
	stats.DistinctUsers = len(users)
	stats.ChainValid = l.VerifyChainIntegrity().Valid
	return stats
}

// tamper is a test hook: it mutates a stored event in place, bypassing the
// append-only surface, to simulate history modification.
func (l *Logger) tamper(index int, mutate func(*Event)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if index >= 0 && index < len(l.events) {
		mutate(&l.events[index])
	}
}
