// Package intervention implements C7: the intervention ladder, which maps
// a risk score to a response level and synthesizes a human-readable
// recommendation once that level reaches Recommend. Grounded on
// original_source/brain/guardian/intervention.py (InterventionEngine).
package intervention

import (
	"fmt"
	"strings"

	"github.com/hostguardian/guardian/model"
)

// thresholds maps each level to its minimum qualifying score (spec.md
// §4.7 "<3 Observe, <6 Inform, <9 Warn, <12 Recommend, >=12
// RequestConfirmation").
var thresholds = map[model.InterventionLevel]float64{
	model.Observe:             0,
	model.Inform:              3,
	model.Warn:                6,
	model.Recommend:           9,
	model.RequestConfirmation: 12,
}

var orderedLevels = []model.InterventionLevel{
	model.Observe, model.Inform, model.Warn, model.Recommend, model.RequestConfirmation,
}

// Level returns the highest intervention level whose threshold score is met.
func Level(score float64) model.InterventionLevel {
	level := model.Observe
	for _, l := range orderedLevels {
		if score >= thresholds[l] {
			level = l
		} else {
			break
		}
	}
	return level
}

// Recommendation synthesizes an action suggestion for processName, or ""
// if level is below Recommend (spec.md §4.7). The primary anomaly is the
// highest-severity anomaly in the significant list.
func Recommendation(processName string, anomalies []model.Anomaly, level model.InterventionLevel) string {
	if level < model.Recommend || len(anomalies) == 0 {
		return ""
	}
	primary, _ := model.HighestSeverity(anomalies)

	typeLabel := strings.ToLower(strings.ReplaceAll(primary.Type.String(), "_", " "))
	reason := fmt.Sprintf("due to %s (%s vs typical %s)", typeLabel, orNA(primary.Actual), orNA(primary.Baseline))

	switch primary.Type {
	case model.AnomalySustainedCPU:
		return fmt.Sprintf("Recommend closing %s %s to restore system responsiveness.", processName, reason)
	case model.AnomalyMemoryLeak:
		return fmt.Sprintf("Recommend restarting %s %s to reclaim leaked memory.", processName, reason)
	case model.AnomalyRestartLoop:
		return fmt.Sprintf("Recommend terminating %s %s as it is unstable.", processName, reason)
	default:
		return fmt.Sprintf("Recommend reviewing %s %s.", processName, reason)
	}
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
