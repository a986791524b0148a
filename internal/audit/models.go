// Package audit implements an append-only, hash-chained event log with
// Merkle-tree inclusion proofs. Every security-relevant action lands here;
// mutation of recorded history is the tamper condition the chain detects.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// Outcome classifies how the recorded action ended.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomeError   Outcome = "error"
)

// Severity classifies how much attention an event deserves. Critical events
// are forwarded to real-time alerting.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Event is one link in the audit chain. Immutable once hashed: the logger
// hands out copies, never shared references.
type Event struct {
	ID         string         `json:"id"`
	Timestamp  time.Time      `json:"timestamp"`
	UserID     string         `json:"userId,omitempty"`
	SessionID  string         `json:"sessionId,omitempty"`
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	ResourceID string         `json:"resourceId,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	IPAddress  string         `json:"ipAddress,omitempty"`
	UserAgent  string         `json:"userAgent,omitempty"`
	Outcome    Outcome        `json:"outcome"`
	Severity   Severity       `json:"severity"`
	Hash       string         `json:"hash"`
	PrevHash   string         `json:"previousHash"`
}

// Entry is the caller-supplied part of an event. ID, timestamp, and chain
// linkage are assigned by the logger.
type Entry struct {
	UserID     string
	SessionID  string
	Action     string
	Resource   string
	ResourceID string
	Details    map[string]any
	IPAddress  string
	UserAgent  string
	Outcome    Outcome
	Severity   Severity
}

// GenesisHash anchors the chain: the previous hash of event zero.
func GenesisHash() string {
	sum := sha256.Sum256([]byte("genesis-audit-chain"))
	return hex.EncodeToString(sum[:])
}

// hashPayload fixes the field order of the canonical serialization. Details
// is a map, which encoding/json marshals with sorted keys, so the byte
// stream is deterministic for JSON-shaped detail values.
type hashPayload struct {
	ID           string         `json:"id"`
	Timestamp    string         `json:"timestamp"`
	UserID       string         `json:"userId"`
	Action       string         `json:"action"`
	Resource     string         `json:"resource"`
	ResourceID   string         `json:"resourceId"`
	Details      map[string]any `json:"details"`
	Outcome      Outcome        `json:"outcome"`
	PreviousHash string         `json:"previousHash"`
}

// ComputeHash returns the canonical SHA-256 of an event's hashed fields.
// The event's own Hash field is excluded by construction.
func ComputeHash(e Event) (string, error) {
	payload := hashPayload{
		ID:           e.ID,
		Timestamp:    e.Timestamp.UTC().Format(time.RFC3339Nano),
		UserID:       e.UserID,
		Action:       e.Action,
		Resource:     e.Resource,
		ResourceID:   e.ResourceID,
		Details:      e.Details,
		Outcome:      e.Outcome,
		PreviousHash: e.PrevHash,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("serialize event for hashing: %w", err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// Integrity is the result of a full chain verification. BrokenAt is the
// index of the first event whose linkage or content hash fails, or -1.
type Integrity struct {
	Valid    bool `json:"isValid"`
	BrokenAt int  `json:"brokenAt"`
}

// Statistics aggregates the chain for dashboards and monitoring.
type Statistics struct {
	TotalEvents   int            `json:"totalEvents"`
	EventsLast24h int            `json:"eventsLast24h"`
	EventsLast7d  int            `json:"eventsLast7d"`
	ByAction      map[string]int `json:"byAction"`
	ByResource    map[string]int `json:"byResource"`
	BySeverity    map[string]int `json:"bySeverity"`
	ByOutcome     map[string]int `json:"byOutcome"`
	DistinctUsers int            `json:"distinctUsers"`
	ChainValid    bool           `json:"chainValid"`
}
