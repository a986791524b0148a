// Package store defines the pluggable persistence backend for audit events.
// The in-memory chain is authoritative for integrity checks; backends add
// durability and query surface.
//
// The Filter and Store declarations live in package audit (the worker that
// drains into a Store is defined there, and Go forbids the import cycle);
// these aliases keep this package's names as the canonical import surface
// for backend implementations.
package store

import (
	"vigil/internal/audit"
)

// Filter narrows List results. Zero values mean "no constraint".
type Filter = audit.Filter

// Store persists audit events. Implementations must be safe for concurrent
// use. Retrieve returns sentinel.ErrNotFound (wrapped) for unknown IDs.
type Store = audit.Store
