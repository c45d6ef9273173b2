// Package audit implements C9: the append-only audit trail, truncated to
// the most recent model.MaxAuditEntries and periodically flushed every 50
// events to bound I/O (spec.md §3, §4.9). Grounded on
// original_source/brain/guardian/audit.py (AuditEngine).
package audit

import (
	"os"
	"sync"
	"time"

	"github.com/hostguardian/guardian/internal/atomicfile"
	"github.com/hostguardian/guardian/model"
)

// FlushInterval is how often Log triggers an automatic save, by event
// count (spec.md §4.9 "Periodic flush every 50 events").
const FlushInterval = 50

// Log is C9.
type Log struct {
	mu      sync.Mutex
	path    string
	now     func() time.Time
	events  []model.AuditEvent
	unsaved int
}

// Option configures a Log at construction.
type Option func(*Log)

// WithClock overrides the clock, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(l *Log) { l.now = now }
}

// New creates an empty audit log persisted at path.
func New(path string, opts ...Option) *Log {
	l := &Log{path: path, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads the persisted audit trail, truncating to the most recent
// model.MaxAuditEntries. A missing file is not an error.
func (l *Log) Load() error {
	var events []model.AuditEvent
	err := atomicfile.ReadJSON(l.path, &events)
	l.mu.Lock()
	defer l.mu.Unlock()
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		l.events = nil
		return err
	}
	l.events = truncate(events)
	return nil
}

// Save atomically persists the trail, truncated to the most recent
// model.MaxAuditEntries.
func (l *Log) Save() error {
	l.mu.Lock()
	events := truncate(l.events)
	l.events = events
	l.unsaved = 0
	snapshot := make([]model.AuditEvent, len(events))
	copy(snapshot, events)
	l.mu.Unlock()
	return atomicfile.WriteJSON(l.path, snapshot)
}

func truncate(events []model.AuditEvent) []model.AuditEvent {
	if len(events) <= model.MaxAuditEntries {
		return events
	}
	return append([]model.AuditEvent(nil), events[len(events)-model.MaxAuditEntries:]...)
}

// Log appends an event and returns whether a periodic flush is now due
// (spec.md §4.9). Callers (the guardian pipeline) perform the actual save
// so disk I/O stays off the hot per-PID path.
func (l *Log) Log(eventType model.AuditType, processName string, details map[string]string) (flushDue bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, model.AuditEvent{
		Timestamp:   l.now(),
		Type:        eventType,
		ProcessName: processName,
		Details:     details,
	})
	if len(l.events) > model.MaxAuditEntries {
		l.events = l.events[len(l.events)-model.MaxAuditEntries:]
	}
	l.unsaved++
	if l.unsaved >= FlushInterval {
		return true
	}
	return false
}

// History returns events, optionally filtered to processName.
func (l *Log) History(processName string) []model.AuditEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	if processName == "" {
		out := make([]model.AuditEvent, len(l.events))
		copy(out, l.events)
		return out
	}
	var out []model.AuditEvent
	for _, e := range l.events {
		if e.ProcessName == processName {
			out = append(out, e)
		}
	}
	return out
}

// Len returns the number of events currently held in memory.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

// ClearAll wipes the in-memory trail, used by C11's reset protocol. The
// persisted file is rewritten separately by the caller via Save.
func (l *Log) ClearAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = nil
	l.unsaved = 0
}
