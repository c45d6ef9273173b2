// Package chain implements C4: the behavioral chain manager, which tracks
// a 300-second rolling window of anomaly-type events per PID and derives a
// suspicion multiplier from recognized sequences. Grounded on
// original_source/brain/guardian/chain.py (BehavioralChain/ChainManager),
// retargeted from that file's CHILD_EXPLOSION/CPU_DEVIATION/MEMORY_EXPLOSION
// naming to the canonical anomaly types spec.md defines (spec.md §4.4).
package chain

import (
	"sync"
	"time"

	"github.com/hostguardian/guardian/model"
)

// Window is how long an event stays in a PID's chain before being pruned
// (spec.md §4.4 "prunes events older than 300s").
const Window = 300 * time.Second

// MaxMultiplier is the ceiling for the "otherwise" multiplier branch
// (spec.md §4.4 "clamped ≤ 1.5").
const MaxMultiplier = 1.5

type event struct {
	at   time.Time
	kind model.AnomalyType
}

type pidChain struct {
	events []event
}

// Manager is C4.
type Manager struct {
	mu    sync.Mutex
	now   func() time.Time
	byPID map[int]*pidChain
}

// Option configures a Manager at construction.
type Option func(*Manager)

// WithClock overrides the clock, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// New creates an empty chain manager.
func New(opts ...Option) *Manager {
	m := &Manager{
		now:   time.Now,
		byPID: make(map[int]*pidChain),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Update appends each anomaly's type as an event for pid, prunes events
// older than Window, and returns the recomputed suspicion multiplier
// (spec.md §4.4). Returns 1.0 without creating chain state if anomalies is
// empty.
func (m *Manager) Update(pid int, name string, anomalies []model.Anomaly) float64 {
	if len(anomalies) == 0 {
		return 1.0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.byPID[pid]
	if !ok {
		c = &pidChain{}
		m.byPID[pid] = c
	}

	now := m.now()
	for _, a := range anomalies {
		c.events = append(c.events, event{at: now, kind: a.Type})
	}
	c.prune(now)

	return evaluate(c.events)
}

func (c *pidChain) prune(now time.Time) {
	kept := c.events[:0]
	for _, e := range c.events {
		if now.Sub(e.at) < Window {
			kept = append(kept, e)
		}
	}
	c.events = kept
}

func evaluate(events []event) float64 {
	present := make(map[model.AnomalyType]bool, len(events))
	childCount := 0
	for _, e := range events {
		present[e.kind] = true
		if e.kind == model.AnomalyChildProliferation {
			childCount++
		}
	}

	hasCPU := present[model.AnomalyCPUSpike] || present[model.AnomalySustainedCPU]
	if present[model.AnomalyChildProliferation] && hasCPU && present[model.AnomalyNetworkBurst] {
		return 2.5
	}

	hasMemory := present[model.AnomalyMemoryLeak] || present[model.AnomalyMemoryDeviation]
	if hasMemory && present[model.AnomalyRestartLoop] {
		return 2.0
	}

	if childCount > 2 {
		return 1.8
	}

	mult := 1.0 + 0.1*float64(len(present))
	if mult > MaxMultiplier {
		mult = MaxMultiplier
	}
	return mult
}

// Cleanup deletes chains whose pid is absent from activePIDs (spec.md
// §4.4 "mirrors 4.2").
func (m *Manager) Cleanup(activePIDs map[int]bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for pid := range m.byPID {
		if !activePIDs[pid] {
			delete(m.byPID, pid)
		}
	}
}

// ClearAll wipes all chain state, used by C11's reset protocol (spec.md
// §4.11; grounded on chain.py's clear_all_data).
func (m *Manager) ClearAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byPID = make(map[int]*pidChain)
}

// Len returns the number of currently tracked chains.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byPID)
}
