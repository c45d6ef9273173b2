// Package anomaly implements C3: the behavioral anomaly detector. The
// core analysis is a pure function of a fingerprint and a baseline;
// RESTART_LOOP additionally needs cross-tick memory of distinct PIDs seen
// per process name, which the Detector holds the same way the original
// AnomalyDetector kept name_history (spec.md §4.3, §9 open question 2:
// "adopts the PID-uniqueness rule"). Grounded on
// original_source/brain/guardian/anomaly.py.
package anomaly

import (
	"fmt"
	"sync"

	"github.com/hostguardian/guardian/fingerprint"
	"github.com/hostguardian/guardian/model"
)

// MinBaselineSamples is the cold-period guard: detection is suppressed
// until the baseline has accumulated this many samples (spec.md §4.3).
const MinBaselineSamples = 5

// RestartLoopThreshold is the distinct-PID count at which RESTART_LOOP
// fires (spec.md §4.3 rule 4).
const RestartLoopThreshold = 4

// cpuSustainWindow is how many recent CPU EMA samples are considered for
// the SUSTAINED_CPU check (spec.md §4.3 rule 1 "last 5 CPU EMA samples").
const cpuSustainWindow = 5

// Detector is C3. Zero value is not usable; construct with New.
type Detector struct {
	mu               sync.Mutex
	blocklist        []string
	nameDistinctPIDs map[string]map[int]bool
	recentCPUEMA     map[int][]float64
}

// Option configures a Detector at construction.
type Option func(*Detector)

// WithSuspiciousPathPatterns overrides the default OS blocklist (spec.md
// §4.3 rule 6 "injectable OS-specific blocklist").
func WithSuspiciousPathPatterns(patterns []string) Option {
	return func(d *Detector) { d.blocklist = patterns }
}

// New creates a Detector with the default suspicious-path blocklist.
func New(opts ...Option) *Detector {
	d := &Detector{
		blocklist:        DefaultSuspiciousPathPatterns,
		nameDistinctPIDs: make(map[string]map[int]bool),
		recentCPUEMA:     make(map[int][]float64),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Analyze runs all seven detection rules against fp's current fingerprint
// state, using baseline when present (spec.md §4.3). Returns an empty
// slice during the cold period (no baseline, or baseline.Samples < 5).
func (d *Detector) Analyze(fp *fingerprint.Fingerprint, baseline model.Baseline, hasBaseline bool, exePath string, persistence []model.PersistenceEntry) []model.Anomaly {
	if !hasBaseline || baseline.Samples < MinBaselineSamples {
		return nil
	}

	var out []model.Anomaly

	if a, ok := d.cpuRule(fp, baseline); ok {
		out = append(out, a)
	}
	if a, ok := d.memoryRule(fp, baseline); ok {
		out = append(out, a)
	}
	if a, ok := d.childRule(fp, baseline); ok {
		out = append(out, a)
	}
	if a, ok := d.restartLoopRule(fp.Name, fp.PID); ok {
		out = append(out, a)
	}
	if !fp.HasEmittedOneShot(model.AnomalySuspiciousPath) && matchesBlocklist(exePath, d.blocklist) {
		fp.MarkOneShotEmitted(model.AnomalySuspiciousPath)
		out = append(out, model.Anomaly{
			Type:       model.AnomalySuspiciousPath,
			Severity:   3,
			Actual:     exePath,
			Baseline:   "none",
			Confidence: 0.9,
			Samples:    baseline.Samples,
		})
	}
	if !fp.HasEmittedOneShot(model.AnomalyStartupPersistence) && matchesPersistence(exePath, persistence) {
		fp.MarkOneShotEmitted(model.AnomalyStartupPersistence)
		out = append(out, model.Anomaly{
			Type:       model.AnomalyStartupPersistence,
			Severity:   4,
			Actual:     exePath,
			Baseline:   "none",
			Confidence: 0.9,
			Samples:    baseline.Samples,
		})
	}

	return out
}

// cpuRule implements rule 1 (CPU_SPIKE / SUSTAINED_CPU), including the
// tie-break that suppresses CPU_SPIKE when SUSTAINED_CPU also matches.
func (d *Detector) cpuRule(fp *fingerprint.Fingerprint, baseline model.Baseline) (model.Anomaly, bool) {
	avgCPU := maxF(baseline.AvgCPU, 0.5)
	cur := fp.CPUEMA

	recent := d.pushRecentCPU(fp.PID, cur)

	if !(cur > 3*avgCPU && cur > 5.0) {
		return model.Anomaly{}, false
	}

	confidence := clamp(0.5+float64(baseline.Samples)/100, 0.95)

	sustained := len(recent) >= cpuSustainWindow && allAbove(recent, avgCPU*2)
	if sustained {
		return model.Anomaly{
			Type:       model.AnomalySustainedCPU,
			Severity:   3,
			Actual:     fmt.Sprintf("%.1f%%", cur),
			Baseline:   fmt.Sprintf("%.1f%%", avgCPU),
			Confidence: confidence,
			Samples:    baseline.Samples,
		}, true
	}
	return model.Anomaly{
		Type:       model.AnomalyCPUSpike,
		Severity:   1,
		Actual:     fmt.Sprintf("%.1f%%", cur),
		Baseline:   fmt.Sprintf("%.1f%%", avgCPU),
		Confidence: confidence * 0.8,
		Samples:    baseline.Samples,
	}, true
}

// pushRecentCPU appends ema to pid's rolling window (bounded to
// cpuSustainWindow) and returns the updated window.
func (d *Detector) pushRecentCPU(pid int, ema float64) []float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	w := append(d.recentCPUEMA[pid], ema)
	if len(w) > cpuSustainWindow {
		w = w[len(w)-cpuSustainWindow:]
	}
	d.recentCPUEMA[pid] = w
	return w
}

// allAbove reports whether every value in w exceeds threshold (spec.md
// §4.3 rule 1 "last 5 CPU EMA samples are each above 2*avg_cpu").
func allAbove(w []float64, threshold float64) bool {
	for _, v := range w {
		if v <= threshold {
			return false
		}
	}
	return true
}

// memoryRule implements rule 2 (MEMORY_DEVIATION / MEMORY_LEAK).
func (d *Detector) memoryRule(fp *fingerprint.Fingerprint, baseline model.Baseline) (model.Anomaly, bool) {
	avgRAM := maxF(baseline.AvgRAM, 10.0)
	cur := fp.RAMEMA
	if !(cur > 1.5*avgRAM && (cur-avgRAM) > 50.0) {
		return model.Anomaly{}, false
	}

	confidence := clamp(0.6+float64(baseline.Samples)/100, 0.98)

	if fp.RAMMonotoneIncreasing() {
		return model.Anomaly{
			Type:       model.AnomalyMemoryLeak,
			Severity:   3,
			Actual:     fmt.Sprintf("%.1f MB", cur),
			Baseline:   fmt.Sprintf("%.1f MB", avgRAM),
			Confidence: confidence,
			Samples:    baseline.Samples,
		}, true
	}
	return model.Anomaly{
		Type:       model.AnomalyMemoryDeviation,
		Severity:   2,
		Actual:     fmt.Sprintf("%.1f MB", cur),
		Baseline:   fmt.Sprintf("%.1f MB", avgRAM),
		Confidence: confidence * 0.9,
		Samples:    baseline.Samples,
	}, true
}

// childRule implements rule 3 (CHILD_PROLIFERATION).
func (d *Detector) childRule(fp *fingerprint.Fingerprint, baseline model.Baseline) (model.Anomaly, bool) {
	avgChildren := maxF(baseline.AvgChildren, 1.0)
	cur := fp.LatestChildCount()
	if !(cur > 2*avgChildren && cur > avgChildren+2) {
		return model.Anomaly{}, false
	}
	return model.Anomaly{
		Type:       model.AnomalyChildProliferation,
		Severity:   3,
		Actual:     fmt.Sprintf("%.0f", cur),
		Baseline:   fmt.Sprintf("~%.1f", avgChildren),
		Confidence: 0.9,
		Samples:    baseline.Samples,
	}, true
}

// restartLoopRule implements rule 4 (RESTART_LOOP). Maintains the
// distinct-PID set by process name for the Detector's lifetime (spec.md
// §4.3 rule 4, §9 "PID-uniqueness rule").
func (d *Detector) restartLoopRule(name string, pid int) (model.Anomaly, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	seen, ok := d.nameDistinctPIDs[name]
	if !ok {
		seen = make(map[int]bool)
		d.nameDistinctPIDs[name] = seen
	}
	seen[pid] = true
	count := len(seen)
	if count < RestartLoopThreshold {
		return model.Anomaly{}, false
	}
	return model.Anomaly{
		Type:       model.AnomalyRestartLoop,
		Severity:   5,
		Actual:     fmt.Sprintf("%d starts", count),
		Baseline:   "1 start",
		Confidence: 0.9,
		Samples:    count,
	}, true
}

// Cleanup drops per-PID CPU history for PIDs no longer active, mirroring
// C2/C4's cleanup contract.
func (d *Detector) Cleanup(activePIDs map[int]bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for pid := range d.recentCPUEMA {
		if !activePIDs[pid] {
			delete(d.recentCPUEMA, pid)
		}
	}
}

// ForgetName drops restart-loop tracking state for name, used by the
// reset protocol (C11) and by long-lived hosts to bound memory growth.
func (d *Detector) ForgetName(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.nameDistinctPIDs, name)
}

// Reset clears all restart-loop tracking state, used by C11's atomic
// reset protocol.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nameDistinctPIDs = make(map[string]map[int]bool)
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func clamp(v, max float64) float64 {
	if v > max {
		return max
	}
	return v
}
