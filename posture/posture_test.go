package posture

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hostguardian/guardian/model"
)

func TestEvaluate_Calm(t *testing.T) {
	s := Evaluate(nil, 0, true)
	assert.Equal(t, model.Calm, s.State)
	assert.Equal(t, model.ColorHealthy, s.StatusColor)
	assert.Equal(t, 0, s.Intensity)
}

func TestEvaluate_SingleScoreOfFiveIsAlert(t *testing.T) {
	s := Evaluate([]float64{5}, 100, false)
	assert.Equal(t, model.Alert, s.State)
	assert.Equal(t, model.ColorWarning, s.StatusColor)
	assert.Equal(t, 25, s.Intensity)
}

func TestEvaluate_AlertByMaxScore(t *testing.T) {
	s := Evaluate([]float64{10}, 100, false)
	assert.Equal(t, model.Alert, s.State)
}

func TestEvaluate_AlertByOneHighScore(t *testing.T) {
	s := Evaluate([]float64{5, 1, 1}, 100, false)
	assert.Equal(t, model.Alert, s.State)
}

func TestEvaluate_DefensiveByThreeHighScores(t *testing.T) {
	s := Evaluate([]float64{6, 7, 8}, 100, false)
	assert.Equal(t, model.Defensive, s.State)
}

func TestEvaluate_CriticalByMaxScore(t *testing.T) {
	s := Evaluate([]float64{25}, 100, false)
	assert.Equal(t, model.Critical, s.State)
	assert.Equal(t, model.ColorCritical, s.StatusColor)
	assert.Equal(t, 100, s.Intensity, "intensity clamps at 100")
}

func TestEvaluate_CriticalByFiveHighScores(t *testing.T) {
	s := Evaluate([]float64{5, 5, 5, 5, 5}, 100, false)
	assert.Equal(t, model.Critical, s.State)
}

func TestEvaluate_SuspiciousCountAndLearningPassThrough(t *testing.T) {
	s := Evaluate([]float64{5, 6, 1}, 42, true)
	assert.Equal(t, 2, s.SuspiciousCount)
	assert.Equal(t, 42, s.LearningProgress)
	assert.True(t, s.IsLearning)
}
