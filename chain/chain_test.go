package chain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/hostguardian/guardian/model"
)

func anomaly(t model.AnomalyType) model.Anomaly {
	return model.Anomaly{Type: t, Severity: 1, Confidence: 0.5}
}

func TestUpdate_EmptyAnomaliesReturnsBaseMultiplier(t *testing.T) {
	m := New()
	assert.Equal(t, 1.0, m.Update(1, "x", nil))
	assert.Equal(t, 0, m.Len(), "must not create chain state for an empty anomaly list")
}

func TestUpdate_DataExfiltrationPattern(t *testing.T) {
	m := New()
	mult := m.Update(1, "x", []model.Anomaly{
		anomaly(model.AnomalyChildProliferation),
		anomaly(model.AnomalyCPUSpike),
		anomaly(model.AnomalyNetworkBurst),
	})
	assert.Equal(t, 2.5, mult)
}

func TestUpdate_ResourceHijackPattern(t *testing.T) {
	m := New()
	mult := m.Update(1, "x", []model.Anomaly{
		anomaly(model.AnomalyMemoryLeak),
		anomaly(model.AnomalyRestartLoop),
	})
	assert.Equal(t, 2.0, mult)
}

func TestUpdate_RapidProliferationPattern(t *testing.T) {
	m := New()
	m.Update(1, "x", []model.Anomaly{anomaly(model.AnomalyChildProliferation)})
	m.Update(1, "x", []model.Anomaly{anomaly(model.AnomalyChildProliferation)})
	mult := m.Update(1, "x", []model.Anomaly{anomaly(model.AnomalyChildProliferation)})
	assert.Equal(t, 1.8, mult)
}

func TestUpdate_DefaultMultiplierFromDistinctTypes(t *testing.T) {
	m := New()
	mult := m.Update(1, "x", []model.Anomaly{anomaly(model.AnomalyCPUSpike)})
	assert.InDelta(t, 1.1, mult, 0.0001)
}

func TestUpdate_DefaultMultiplierClampsAt1_5(t *testing.T) {
	m := New()
	mult := m.Update(1, "x", []model.Anomaly{
		anomaly(model.AnomalyCPUSpike),
		anomaly(model.AnomalyMemoryDeviation),
		anomaly(model.AnomalySuspiciousPath),
		anomaly(model.AnomalyStartupPersistence),
		anomaly(model.AnomalyUnknown),
	})
	assert.LessOrEqual(t, mult, MaxMultiplier)
}

func TestUpdate_PrunesEventsOlderThanWindow(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	current := base
	clock := func() time.Time { return current }
	m := New(WithClock(clock))

	m.Update(1, "x", []model.Anomaly{anomaly(model.AnomalyChildProliferation)})
	current = base.Add(Window + time.Second)
	m.Update(1, "x", []model.Anomaly{anomaly(model.AnomalyChildProliferation)})
	mult := m.Update(1, "x", []model.Anomaly{anomaly(model.AnomalyChildProliferation)})

	// Only the last two events remain in-window; count is 2, not > 2.
	assert.NotEqual(t, 1.8, mult)
}

func TestCleanup_RemovesInactivePIDs(t *testing.T) {
	m := New()
	m.Update(1, "x", []model.Anomaly{anomaly(model.AnomalyCPUSpike)})
	m.Cleanup(map[int]bool{})
	assert.Equal(t, 0, m.Len())
}

func TestClearAll_WipesAllChains(t *testing.T) {
	m := New()
	m.Update(1, "x", []model.Anomaly{anomaly(model.AnomalyCPUSpike)})
	m.Update(2, "y", []model.Anomaly{anomaly(model.AnomalyCPUSpike)})
	m.ClearAll()
	assert.Equal(t, 0, m.Len())
}
