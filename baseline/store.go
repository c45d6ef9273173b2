// Package baseline implements C1: the long-term, per-process-name EMA
// baseline store, with persistence and the host-wide learning-phase anchor
// (spec.md §4.1). Grounded on the teacher's config.Load/Save JSON pattern
// (ftahirops/xtop config/config.go) and on the EWMA law used by the
// retrieval pack's own baseline learner (carl-ship-it-ebpf-ddos-scrubber
// src/control-plane/internal/baseline/baseline.go), adapted from a single
// traffic baseline to a per-name map.
package baseline

import (
	"os"
	"sync"
	"time"

	"github.com/hostguardian/guardian/internal/atomicfile"
	"github.com/hostguardian/guardian/model"
)

// DefaultAlpha is the long-term EMA smoothing factor (spec.md §4.1).
const DefaultAlpha = 0.1

// LearningWindow is how long after system_first_run the learning phase
// lasts (spec.md §4.1 "(now - system_first_run) / 300 s").
const LearningWindow = 300 * time.Second

// metadata mirrors the persisted "_metadata" envelope key (spec.md §3).
type metadata struct {
	SystemFirstRun int64 `json:"system_first_run"`
}

// fileFormat is the on-disk shape of baselines.json (spec.md §6).
type fileFormat struct {
	Entries  map[string]model.Baseline `json:"entries"`
	Metadata metadata                  `json:"_metadata"`
}

// Store is C1: the baseline store, keyed by process name.
type Store struct {
	mu       sync.RWMutex
	path     string
	alpha    float64
	now      func() time.Time
	entries  map[string]model.Baseline
	firstRun time.Time
}

// Option configures a Store at construction, so tests can override the
// smoothing factor, the persistence path, or the clock (spec.md §6 "Tests
// MUST be able to override these via constructor parameters").
type Option func(*Store)

// WithAlpha overrides the EMA smoothing factor.
func WithAlpha(alpha float64) Option {
	return func(s *Store) { s.alpha = alpha }
}

// WithClock overrides the clock used for first_seen/last_seen/learning
// progress, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a baseline store persisted at path, anchoring a fresh
// system_first_run if no file exists yet.
func New(path string, opts ...Option) *Store {
	s := &Store{
		path:    path,
		alpha:   DefaultAlpha,
		now:     time.Now,
		entries: make(map[string]model.Baseline),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.firstRun = s.now()
	return s
}

// Load reads the persisted baseline file. A missing file is not an error
// (lazy creation); a corrupt file is quarantined and the store starts empty
// with a fresh first-run anchor (spec.md §7 "corrupt baseline file loads as
// empty + a warning audit event").
func (s *Store) Load() error {
	var ff fileFormat
	err := atomicfile.ReadJSON(s.path, &ff)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		// Corrupt: atomicfile already quarantined it. Start fresh.
		s.entries = make(map[string]model.Baseline)
		s.firstRun = s.now()
		return err
	}
	if ff.Entries == nil {
		ff.Entries = make(map[string]model.Baseline)
	}
	s.entries = ff.Entries
	if ff.Metadata.SystemFirstRun > 0 {
		s.firstRun = time.Unix(ff.Metadata.SystemFirstRun, 0)
	} else {
		s.firstRun = s.now()
	}
	return nil
}

// Save atomically persists the current state.
func (s *Store) Save() error {
	s.mu.RLock()
	ff := fileFormat{
		Entries:  cloneEntries(s.entries),
		Metadata: metadata{SystemFirstRun: s.firstRun.Unix()},
	}
	s.mu.RUnlock()
	return atomicfile.WriteJSON(s.path, ff)
}

func cloneEntries(m map[string]model.Baseline) map[string]model.Baseline {
	out := make(map[string]model.Baseline, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Update inserts or EMA-updates a baseline for name (spec.md §4.1).
func (s *Store) Update(name string, cpu, ram, children, netSent, netRecv float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	b, ok := s.entries[name]
	if !ok {
		b = model.Baseline{
			AvgCPU:         cpu,
			AvgRAM:         ram,
			AvgChildren:    children,
			AvgNetSent:     netSent,
			AvgNetReceived: netRecv,
			Samples:        1,
			FirstSeen:      now,
			LastSeen:       now,
		}
		s.entries[name] = b
		return
	}
	a := s.alpha
	b.AvgCPU = ema(a, cpu, b.AvgCPU)
	b.AvgRAM = ema(a, ram, b.AvgRAM)
	b.AvgChildren = ema(a, children, b.AvgChildren)
	b.AvgNetSent = ema(a, netSent, b.AvgNetSent)
	b.AvgNetReceived = ema(a, netRecv, b.AvgNetReceived)
	b.Samples++
	b.LastSeen = now
	s.entries[name] = b
}

func ema(alpha, x, avg float64) float64 {
	return alpha*x + (1-alpha)*avg
}

// Get returns the baseline for name, and whether one exists.
func (s *Store) Get(name string) (model.Baseline, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.entries[name]
	return b, ok
}

// MarkTrusted marks name as trusted, creating a skeleton zero-sample
// baseline if none exists yet (spec.md §4.1 "may be called before any
// sample is observed").
func (s *Store) MarkTrusted(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.entries[name]
	if !ok {
		now := s.now()
		b = model.Baseline{FirstSeen: now, LastSeen: now}
	}
	b.Trusted = true
	s.entries[name] = b
}

// MarkUntrusted clears the trusted flag for name, if it exists.
func (s *Store) MarkUntrusted(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.entries[name]
	if !ok {
		return
	}
	b.Trusted = false
	s.entries[name] = b
}

// LearningProgress returns 0..100, computed from elapsed time since
// system_first_run over the 300s learning window, clamped (spec.md §4.1).
func (s *Store) LearningProgress() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.learningProgressLocked()
}

func (s *Store) learningProgressLocked() int {
	elapsed := s.now().Sub(s.firstRun)
	if elapsed <= 0 {
		return 0
	}
	pct := int(elapsed * 100 / LearningWindow)
	if pct > 100 {
		return 100
	}
	if pct < 0 {
		return 0
	}
	return pct
}

// ClearAll wipes every entry and anchors a fresh system_first_run (spec.md
// §4.1 "clear_all() wipes entries and writes a fresh
// _metadata.system_first_run = now"). Used by the reset protocol (C11).
func (s *Store) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]model.Baseline)
	s.firstRun = s.now()
}

// Len returns the number of distinct process names currently baselined.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// CompactOlderThan evicts baselines not seen within d of now, bounding
// unbounded growth across long-lived hosts (spec.md §5 "periodically
// compacted by evicting names not seen for 30 days").
func (s *Store) CompactOlderThan(d time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	evicted := 0
	for name, b := range s.entries {
		if now.Sub(b.LastSeen) > d {
			delete(s.entries, name)
			evicted++
		}
	}
	return evicted
}
