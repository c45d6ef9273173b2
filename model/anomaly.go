// Package model holds the data types shared across the Guardian pipeline:
// samples, baselines, anomalies, verdicts, host posture, snapshots, and
// audit events. Components never depend on each other's
// concrete types directly where a model type will do — this keeps C1-C12
// composable and independently testable.
package model

// AnomalyType is a tagged sum of every anomaly kind the detector can emit.
// It is a fixed, closed set (design note: no dynamic dispatch on strings) —
// adding a variant requires adding a scoring weight and chain-rule handling.
type AnomalyType int

const (
	AnomalyUnknown AnomalyType = iota
	AnomalyCPUSpike
	AnomalySustainedCPU
	AnomalyMemoryDeviation
	AnomalyMemoryLeak
	AnomalyChildProliferation
	AnomalyRestartLoop
	AnomalyNetworkBurst
	AnomalySuspiciousPath
	AnomalyStartupPersistence
)

func (t AnomalyType) String() string {
	switch t {
	case AnomalyCPUSpike:
		return "CPU_SPIKE"
	case AnomalySustainedCPU:
		return "SUSTAINED_CPU"
	case AnomalyMemoryDeviation:
		return "MEMORY_DEVIATION"
	case AnomalyMemoryLeak:
		return "MEMORY_LEAK"
	case AnomalyChildProliferation:
		return "CHILD_PROLIFERATION"
	case AnomalyRestartLoop:
		return "RESTART_LOOP"
	case AnomalyNetworkBurst:
		return "NETWORK_BURST"
	case AnomalySuspiciousPath:
		return "SUSPICIOUS_PATH"
	case AnomalyStartupPersistence:
		return "STARTUP_PERSISTENCE"
	default:
		return "UNKNOWN"
	}
}

// Anomaly is a single detected deviation, with comparative evidence.
type Anomaly struct {
	Type       AnomalyType
	Severity   int // 1-5
	Actual     string
	Baseline   string
	Confidence float64 // 0.0-1.0
	Samples    int
}

// OneShotTypes are anomaly types that, once observed for a PID, must never
// fire again for the lifetime of that PID (spec.md §4.3 "one-shot per PID").
var OneShotTypes = [...]AnomalyType{AnomalySuspiciousPath, AnomalyStartupPersistence}

// IsOneShot reports whether t must be emitted at most once per PID lifetime.
func (t AnomalyType) IsOneShot() bool {
	for _, ot := range OneShotTypes {
		if ot == t {
			return true
		}
	}
	return false
}

// HighestSeverity returns the anomaly with the greatest Severity in
// anomalies, breaking ties by earliest detection order. The second return
// value is false for an empty slice. Both C7 (intervention recommendations)
// and C10 (verdict primary-anomaly fields) select their "primary" anomaly
// this way (spec.md §4.7 "select the highest-severity anomaly as primary").
func HighestSeverity(anomalies []Anomaly) (Anomaly, bool) {
	if len(anomalies) == 0 {
		return Anomaly{}, false
	}
	best := anomalies[0]
	for _, a := range anomalies[1:] {
		if a.Severity > best.Severity {
			best = a
		}
	}
	return best, true
}
