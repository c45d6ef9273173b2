// Package fingerprint implements C2: the short-window, per-PID live
// behavioral view (cpu/ram/net EMAs plus bounded RAM and child-count
// rings), used by the anomaly detector (C3) as the "current behavior"
// input alongside the long-term baseline (C1). Grounded on
// original_source/brain/guardian/fingerprint.py (BehavioralFingerprint /
// FingerprintManager), restructured in the teacher's ring-buffer idiom
// (engine/history.go).
package fingerprint

import (
	"sync"
	"time"

	"github.com/hostguardian/guardian/model"
)

// DefaultAlpha is the short-term EMA smoothing factor (spec.md §4.1 "0.3
// short-term in C2").
const DefaultAlpha = 0.3

// RAMRingCapacity and ChildRingCapacity bound the rolling windows (spec.md
// §4 "Fingerprint ... ram_samples (bounded ring ≤ 20), child_counts
// (bounded ring ≤ 10)").
const (
	RAMRingCapacity   = 20
	ChildRingCapacity = 10
)

// Fingerprint is the live behavioral view of one running process.
type Fingerprint struct {
	PID         int
	Name        string
	StartTime   time.Time
	LastUpdate  time.Time
	CPUEMA      float64
	RAMEMA      float64
	NetSentEMA  float64
	NetRecvEMA  float64
	ramSamples  ring
	childCounts ring

	// emittedOneShot tracks one-shot anomaly types already raised for this
	// PID's lifetime (spec.md §4.3 "tracked by C2's fingerprint via a small
	// set of already-emitted one-shot types").
	emittedOneShot map[model.AnomalyType]bool
}

// RAMGrowthRate returns the linear slope across the RAM ring: (last -
// first) / count, or 0 below 5 samples (spec.md §4.2).
func (f *Fingerprint) RAMGrowthRate() float64 {
	if f.ramSamples.Len() < 5 {
		return 0
	}
	delta := f.ramSamples.last() - f.ramSamples.first()
	return delta / float64(f.ramSamples.Len())
}

// RAMMonotoneIncreasing reports whether the RAM ring has ≥5 samples and is
// strictly increasing (spec.md §4.3 rule 2, MEMORY_LEAK).
func (f *Fingerprint) RAMMonotoneIncreasing() bool {
	return f.ramSamples.Len() >= 5 && f.ramSamples.strictlyMonotoneIncreasing()
}

// RAMSampleCount returns how many RAM samples are currently retained.
func (f *Fingerprint) RAMSampleCount() int { return f.ramSamples.Len() }

// LatestChildCount returns the most recently observed child count, or 0 if
// none recorded yet.
func (f *Fingerprint) LatestChildCount() float64 {
	if f.childCounts.Len() == 0 {
		return 0
	}
	return f.childCounts.last()
}

// Lifespan returns how long this PID has been tracked, as of now.
func (f *Fingerprint) Lifespan(now time.Time) time.Duration {
	return now.Sub(f.StartTime)
}

// HasEmittedOneShot reports whether t has already been raised for this PID.
func (f *Fingerprint) HasEmittedOneShot(t model.AnomalyType) bool {
	return f.emittedOneShot[t]
}

// MarkOneShotEmitted records that t has now been raised for this PID, so it
// is never raised again for the same PID lifetime.
func (f *Fingerprint) MarkOneShotEmitted(t model.AnomalyType) {
	if f.emittedOneShot == nil {
		f.emittedOneShot = make(map[model.AnomalyType]bool)
	}
	f.emittedOneShot[t] = true
}

func newFingerprint(pid int, name string, now time.Time) *Fingerprint {
	return &Fingerprint{
		PID:            pid,
		Name:           name,
		StartTime:      now,
		LastUpdate:     now,
		ramSamples:     newRing(RAMRingCapacity),
		childCounts:    newRing(ChildRingCapacity),
		emittedOneShot: make(map[model.AnomalyType]bool),
	}
}

func (f *Fingerprint) apply(alpha float64, now time.Time, cpu, ram, netSent, netRecv, childCount float64) {
	f.CPUEMA = alpha*cpu + (1-alpha)*f.CPUEMA
	f.RAMEMA = alpha*ram + (1-alpha)*f.RAMEMA
	f.NetSentEMA = alpha*netSent + (1-alpha)*f.NetSentEMA
	f.NetRecvEMA = alpha*netRecv + (1-alpha)*f.NetRecvEMA
	f.ramSamples.push(ram)
	f.childCounts.push(childCount)
	f.LastUpdate = now
}

// Manager is C2: the live fingerprint table, keyed by PID.
type Manager struct {
	mu    sync.Mutex
	alpha float64
	now   func() time.Time
	byPID map[int]*Fingerprint
}

// Option configures a Manager at construction.
type Option func(*Manager)

// WithAlpha overrides the short-term EMA smoothing factor.
func WithAlpha(alpha float64) Option {
	return func(m *Manager) { m.alpha = alpha }
}

// WithClock overrides the clock, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// New creates an empty fingerprint manager.
func New(opts ...Option) *Manager {
	m := &Manager{
		alpha: DefaultAlpha,
		now:   time.Now,
		byPID: make(map[int]*Fingerprint),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Track creates or updates the fingerprint for pid (spec.md §4.2).
func (m *Manager) Track(pid int, name string, cpu, ram, netSent, netRecv, childCount float64) *Fingerprint {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	fp, ok := m.byPID[pid]
	if !ok {
		fp = newFingerprint(pid, name, now)
		m.byPID[pid] = fp
	}
	fp.apply(m.alpha, now, cpu, ram, netSent, netRecv, childCount)
	return fp
}

// Get returns the current fingerprint for pid, if tracked.
func (m *Manager) Get(pid int) (*Fingerprint, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fp, ok := m.byPID[pid]
	return fp, ok
}

// Cleanup deletes fingerprints whose PID is absent from activePIDs
// (spec.md §4.2, §4 "Lifecycle").
func (m *Manager) Cleanup(activePIDs map[int]bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for pid := range m.byPID {
		if !activePIDs[pid] {
			delete(m.byPID, pid)
		}
	}
}

// Len returns the number of currently tracked PIDs.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byPID)
}
