// Package memory implements C8: the operator-controlled trust/danger/
// ignore classification store for process names, with atomic
// cross-set removal (marking a name trusted clears any prior dangerous
// or ignored marking, and vice versa) and crash-safe persistence.
// Grounded on original_source/brain/guardian/memory.py (GuardianMemory).
package memory

import (
	"os"
	"sync"

	"github.com/hostguardian/guardian/internal/atomicfile"
)

// fileFormat is the on-disk shape of memory.json.
type fileFormat struct {
	Trusted   []string `json:"trusted"`
	Dangerous []string `json:"dangerous"`
	Ignored   []string `json:"ignored"`
}

// Store is C8.
type Store struct {
	mu        sync.RWMutex
	path      string
	trusted   map[string]bool
	dangerous map[string]bool
	ignored   map[string]bool
}

// New creates an empty memory store persisted at path.
func New(path string) *Store {
	return &Store{
		path:      path,
		trusted:   make(map[string]bool),
		dangerous: make(map[string]bool),
		ignored:   make(map[string]bool),
	}
}

// Load reads the persisted memory file. A missing file is not an error;
// a corrupt file is quarantined by atomicfile and the store starts empty.
func (s *Store) Load() error {
	var ff fileFormat
	err := atomicfile.ReadJSON(s.path, &ff)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		s.trusted = make(map[string]bool)
		s.dangerous = make(map[string]bool)
		s.ignored = make(map[string]bool)
		return err
	}
	s.trusted = toSet(ff.Trusted)
	s.dangerous = toSet(ff.Dangerous)
	s.ignored = toSet(ff.Ignored)
	return nil
}

// Save atomically persists the current classification sets.
func (s *Store) Save() error {
	s.mu.RLock()
	ff := fileFormat{
		Trusted:   toSlice(s.trusted),
		Dangerous: toSlice(s.dangerous),
		Ignored:   toSlice(s.ignored),
	}
	s.mu.RUnlock()
	return atomicfile.WriteJSON(s.path, ff)
}

// MarkTrusted adds name to the trusted set, removing it from dangerous and
// ignored (spec.md §4.8 atomic cross-set removal).
func (s *Store) MarkTrusted(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trusted[name] = true
	delete(s.dangerous, name)
	delete(s.ignored, name)
}

// MarkDangerous adds name to the dangerous set, removing it from trusted
// and ignored.
func (s *Store) MarkDangerous(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dangerous[name] = true
	delete(s.trusted, name)
	delete(s.ignored, name)
}

// MarkIgnored adds name to the ignored set, removing it from trusted and
// dangerous (spec.md §4.8 atomic cross-set removal: a name appears in at
// most one set at a time).
func (s *Store) MarkIgnored(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ignored[name] = true
	delete(s.trusted, name)
	delete(s.dangerous, name)
}

// Clear removes name from all three classification sets.
func (s *Store) Clear(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.trusted, name)
	delete(s.dangerous, name)
	delete(s.ignored, name)
}

// IsTrusted reports whether name is marked trusted.
func (s *Store) IsTrusted(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.trusted[name]
}

// IsDangerous reports whether name is marked dangerous.
func (s *Store) IsDangerous(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dangerous[name]
}

// IsIgnored reports whether name is marked ignored.
func (s *Store) IsIgnored(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ignored[name]
}

// ClearAll wipes every classification, used by C11's reset protocol.
func (s *Store) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trusted = make(map[string]bool)
	s.dangerous = make(map[string]bool)
	s.ignored = make(map[string]bool)
}

func toSet(names []string) map[string]bool {
	out := make(map[string]bool, len(names))
	for _, n := range names {
		out[n] = true
	}
	return out
}

func toSlice(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for n := range set {
		out = append(out, n)
	}
	return out
}
