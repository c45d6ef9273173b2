// Package posture implements C6: the global state engine, which derives
// the host's aggregate posture from the set of current per-PID scores.
// Grounded on the transition table in spec.md §4.6; no direct Python
// analogue exists (the original implementation derives posture ad hoc
// inside security_monitor.py's alert loop), so this is expressed fresh in
// the teacher's small-stateless-engine idiom (engine/scoring.go).
package posture

import "github.com/hostguardian/guardian/model"

// intensityMultiplier scales the max score into intensity, capped at 100
// (spec.md §4.6 "intensity = min(100, 5*max(S))").
const intensityMultiplier = 5

// Evaluate derives the global state from scores, the current set of
// per-PID risk scores for the tick (spec.md §4.6).
func Evaluate(scores []float64, learningProgress int, isLearning bool) model.GlobalState {
	maxScore := 0.0
	atLeast5 := 0
	for _, s := range scores {
		if s > maxScore {
			maxScore = s
		}
		if s >= 5 {
			atLeast5++
		}
	}

	state := classify(maxScore, atLeast5)

	intensity := int(intensityMultiplier * maxScore)
	if intensity > 100 {
		intensity = 100
	}
	if intensity < 0 {
		intensity = 0
	}

	return model.GlobalState{
		State:            state,
		StatusColor:      colorFor(state),
		MaxScore:         maxScore,
		SuspiciousCount:  atLeast5,
		Intensity:        intensity,
		LearningProgress: learningProgress,
		IsLearning:       isLearning,
	}
}

func classify(maxScore float64, atLeast5 int) model.HostState {
	switch {
	case maxScore >= 25 || atLeast5 >= 5:
		return model.Critical
	case maxScore >= 15 || atLeast5 >= 3:
		return model.Defensive
	case maxScore >= 10 || atLeast5 >= 1:
		return model.Alert
	case maxScore >= 5:
		return model.Watchful
	default:
		return model.Calm
	}
}

func colorFor(state model.HostState) model.StatusColor {
	switch state {
	case model.Calm:
		return model.ColorHealthy
	case model.Critical:
		return model.ColorCritical
	default: // Watchful, Alert, Defensive
		return model.ColorWarning
	}
}
