// Package engine is the playback-sync core: it reconciles authoritative
// room state, computes the drift of the local player against it, and turns
// user intents into outgoing control messages.
package engine

import (
	"sync"

	"github.com/zmagdon/watchparty/pkg/protocol"
)

// Outcome of applying an incoming state.
type Outcome string

const (
	OutcomeApplied Outcome = "applied"
	OutcomeStale   Outcome = "stale"
)

// Reconciler holds the single current snapshot and enforces monotonic
// versioning: only a strictly greater version replaces it. Stale and
// duplicate deliveries are filtered, not errors, which makes out-of-order
// delivery safe.
type Reconciler struct {
	mu          sync.Mutex
	lastApplied int64
	snapshot    protocol.RoomState
	hasSnapshot bool
}

func NewReconciler() *Reconciler {
	return &Reconciler{}
}

// Apply replaces the snapshot if incoming.Version is strictly greater than
// the last applied version. On OutcomeStale nothing changes.
func (r *Reconciler) Apply(incoming protocol.RoomState) (protocol.RoomState, Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if incoming.Version <= r.lastApplied {
		return r.snapshot, OutcomeStale
	}
	r.lastApplied = incoming.Version
	r.snapshot = incoming
	r.hasSnapshot = true
	return incoming, OutcomeApplied
}

// Snapshot returns the current snapshot, false before the first apply.
func (r *Reconciler) Snapshot() (protocol.RoomState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot, r.hasSnapshot
}

// LastApplied is the version of the current snapshot, 0 before any apply.
func (r *Reconciler) LastApplied() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastApplied
}
