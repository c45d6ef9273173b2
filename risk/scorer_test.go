package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hostguardian/guardian/model"
)

type fakeClassifier struct {
	trusted, dangerous map[string]bool
}

func (f fakeClassifier) IsTrusted(name string) bool   { return f.trusted[name] }
func (f fakeClassifier) IsDangerous(name string) bool { return f.dangerous[name] }

func TestScore_EmptyAnomaliesYieldsZero(t *testing.T) {
	score, sig := Score("x", nil, 1.0, nil)
	assert.Equal(t, 0.0, score)
	assert.Nil(t, sig)
}

func TestScore_WeightsAndChainMultiplier(t *testing.T) {
	anomalies := []model.Anomaly{{Type: model.AnomalySustainedCPU, Severity: 3}}
	score, sig := Score("x", anomalies, 2.0, nil)
	assert.Equal(t, 8.0, score) // weight 4 * multiplier 2
	assert.Len(t, sig, 1)
}

func TestScore_UnknownTypeWeightIsOne(t *testing.T) {
	anomalies := []model.Anomaly{{Type: model.AnomalyUnknown, Severity: 1}}
	score, sig := Score("x", anomalies, 1.0, nil)
	assert.Equal(t, 1.0, score, "score 1 is below the significance threshold, so its anomalies are discarded")
	assert.Empty(t, sig)
}

func TestScore_TrustedSubtractsPenalty(t *testing.T) {
	anomalies := []model.Anomaly{{Type: model.AnomalyRestartLoop, Severity: 5}}
	classifier := fakeClassifier{trusted: map[string]bool{"svc": true}}
	score, sig := Score("svc", anomalies, 1.0, classifier)
	assert.Equal(t, 0.0, score, "6 - 20 clamps at 0")
	// severity 5 >= 3 still makes it significant even with score 0.
	assert.Len(t, sig, 1)
}

func TestScore_DangerousAddsBonus(t *testing.T) {
	anomalies := []model.Anomaly{{Type: model.AnomalyCPUSpike, Severity: 1}}
	classifier := fakeClassifier{dangerous: map[string]bool{"svc": true}}
	score, sig := Score("svc", anomalies, 1.0, classifier)
	assert.Equal(t, 12.0, score) // weight 2 + bonus 10
	assert.Len(t, sig, 1)
}

func TestScore_ClampsAtZero(t *testing.T) {
	anomalies := []model.Anomaly{{Type: model.AnomalyCPUSpike, Severity: 1}}
	classifier := fakeClassifier{trusted: map[string]bool{"svc": true}}
	score, _ := Score("svc", anomalies, 1.0, classifier)
	assert.GreaterOrEqual(t, score, 0.0)
}

func TestScore_SignificanceBySeverityEvenWithLowScore(t *testing.T) {
	anomalies := []model.Anomaly{{Type: model.AnomalyUnknown, Severity: 4}}
	score, sig := Score("x", anomalies, 1.0, nil)
	assert.Equal(t, 1.0, score)
	assert.Len(t, sig, 1, "severity >= 3 escalates regardless of score")
}

func TestScore_NonSignificantDiscardsAnomalies(t *testing.T) {
	anomalies := []model.Anomaly{{Type: model.AnomalyCPUSpike, Severity: 1}}
	score, sig := Score("x", anomalies, 1.0, nil)
	assert.Equal(t, 2.0, score)
	assert.Empty(t, sig, "score 2 < 5 and severity 1 < 3 must discard")
}
