// Package snapshot implements C12: the thread-safe "latest state"
// publisher. Readers never block writers and never contend with the
// pipeline (spec.md §4.12, §5). Grounded on the teacher's atomic
// pointer-swap pattern for publishing immutable state
// (engine/daemon.go's status snapshot field), generalized to
// model.Snapshot.
package snapshot

import (
	"sync/atomic"

	"github.com/hostguardian/guardian/model"
)

// Publisher holds one reference-counted immutable snapshot, swapped
// atomically on each tick.
type Publisher struct {
	current atomic.Pointer[model.Snapshot]
}

// New creates a Publisher with no published snapshot yet.
func New() *Publisher {
	return &Publisher{}
}

// Publish atomically replaces the current snapshot. The caller must treat
// snap as immutable after calling Publish — it is shared with readers,
// not copied.
func (p *Publisher) Publish(snap model.Snapshot) {
	p.current.Store(&snap)
}

// Get returns the latest published snapshot, and whether one exists yet.
func (p *Publisher) Get() (model.Snapshot, bool) {
	ptr := p.current.Load()
	if ptr == nil {
		return model.Snapshot{}, false
	}
	return *ptr, true
}
