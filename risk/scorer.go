// Package risk implements C5: the fixed-weight risk scorer, which turns a
// per-PID anomaly list and chain multiplier into a score, applies
// trust/danger modifiers from the operator-controlled memory, and filters
// out non-significant findings before verdict generation. Grounded on
// original_source/brain/guardian/scorer.py (RiskScorer), extended per
// spec.md §4.5 with the chain multiplier and the full weight table.
package risk

import "github.com/hostguardian/guardian/model"

// TrustPenalty and DangerBonus are the fixed score adjustments applied
// when a process name is in the trusted or dangerous memory sets
// (spec.md §4.5).
const (
	TrustPenalty = 20.0
	DangerBonus  = 10.0
)

// SignificanceScoreThreshold and SignificanceSeverityThreshold gate the
// escalation predicate (spec.md §4.5 "score >= 5 or any severity >= 3").
const (
	SignificanceScoreThreshold    = 5.0
	SignificanceSeverityThreshold = 3
)

// weights is the fixed per-type weight table (spec.md §4.5). Unknown
// types (including the zero value) fall through to defaultWeight.
var weights = map[model.AnomalyType]float64{
	model.AnomalyCPUSpike:           2,
	model.AnomalySustainedCPU:       4,
	model.AnomalyMemoryDeviation:    2,
	model.AnomalyMemoryLeak:         4,
	model.AnomalyChildProliferation: 3,
	model.AnomalyRestartLoop:        6,
	model.AnomalyNetworkBurst:       3,
	model.AnomalySuspiciousPath:     5,
	model.AnomalyStartupPersistence: 5,
}

const defaultWeight = 1.0

func weightOf(t model.AnomalyType) float64 {
	if w, ok := weights[t]; ok {
		return w
	}
	return defaultWeight
}

// NameClassifier resolves a process name's trust/danger standing, backed
// by C8's memory store. Declared here rather than imported, so risk does
// not depend on memory's package (keeps the dependency graph acyclic —
// guardian wires the concrete implementation).
type NameClassifier interface {
	IsTrusted(name string) bool
	IsDangerous(name string) bool
}

// Score computes the weighted, chain-multiplied, modifier-adjusted score
// for name's anomalies, and reports whether the result is significant
// enough to escalate (spec.md §4.5). If not significant, the returned
// anomaly slice is empty — "non-significant anomaly lists are discarded
// before verdict generation."
func Score(name string, anomalies []model.Anomaly, chainMultiplier float64, classifier NameClassifier) (score float64, significant []model.Anomaly) {
	if len(anomalies) == 0 {
		return 0, nil
	}

	var total float64
	maxSeverity := 0
	for _, a := range anomalies {
		total += weightOf(a.Type)
		if a.Severity > maxSeverity {
			maxSeverity = a.Severity
		}
	}
	total *= chainMultiplier

	if classifier != nil {
		if classifier.IsTrusted(name) {
			total -= TrustPenalty
		} else if classifier.IsDangerous(name) {
			total += DangerBonus
		}
	}
	if total < 0 {
		total = 0
	}

	escalate := total >= SignificanceScoreThreshold || maxSeverity >= SignificanceSeverityThreshold
	if !escalate {
		return total, nil
	}
	return total, anomalies
}
