package anomaly

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hostguardian/guardian/fingerprint"
	"github.com/hostguardian/guardian/model"
)

func baselineWith(samples int, avgCPU, avgRAM, avgChildren float64) model.Baseline {
	return model.Baseline{
		AvgCPU:      avgCPU,
		AvgRAM:      avgRAM,
		AvgChildren: avgChildren,
		Samples:     samples,
	}
}

func TestAnalyze_ColdPeriodReturnsEmpty(t *testing.T) {
	d := New()
	fm := fingerprint.New()
	fp := fm.Track(1, "svc", 90, 10, 0, 0, 0)

	out := d.Analyze(fp, baselineWith(4, 1, 10, 1), true, "", nil)
	assert.Empty(t, out)

	out = d.Analyze(fp, model.Baseline{}, false, "", nil)
	assert.Empty(t, out)
}

func TestAnalyze_CPUSpike(t *testing.T) {
	d := New()
	fm := fingerprint.New()
	fp := fm.Track(1, "svc", 20, 10, 0, 0, 0)

	out := d.Analyze(fp, baselineWith(10, 1.0, 10, 1), true, "", nil)
	require.Len(t, out, 1)
	assert.Equal(t, model.AnomalyCPUSpike, out[0].Type)
	assert.Equal(t, 1, out[0].Severity)
}

func TestAnalyze_SustainedCPUSupersedesSpike(t *testing.T) {
	d := New()
	fm := fingerprint.New(fingerprint.WithAlpha(1.0)) // alpha=1 makes EMA track raw input exactly
	var fp *fingerprint.Fingerprint
	for i := 0; i < 6; i++ {
		fp = fm.Track(1, "svc", 20, 10, 0, 0, 0)
	}

	baseline := baselineWith(10, 1.0, 10, 1)
	var anomalies []model.Anomaly
	for i := 0; i < cpuSustainWindow; i++ {
		anomalies = d.Analyze(fp, baseline, true, "", nil)
	}
	require.Len(t, anomalies, 1)
	assert.Equal(t, model.AnomalySustainedCPU, anomalies[0].Type)
	assert.Equal(t, 3, anomalies[0].Severity)
}

func TestAnalyze_MemoryLeakSupersedesDeviation(t *testing.T) {
	d := New()
	fm := fingerprint.New(fingerprint.WithAlpha(1.0))
	var fp *fingerprint.Fingerprint
	rams := []float64{100, 120, 140, 160, 200}
	for _, r := range rams {
		fp = fm.Track(1, "svc", 0, r, 0, 0, 0)
	}

	out := d.Analyze(fp, baselineWith(10, 1, 50, 1), true, "", nil)
	require.Len(t, out, 1)
	assert.Equal(t, model.AnomalyMemoryLeak, out[0].Type)
}

func TestAnalyze_MemoryDeviationWhenNotMonotone(t *testing.T) {
	d := New()
	fm := fingerprint.New(fingerprint.WithAlpha(1.0))
	var fp *fingerprint.Fingerprint
	rams := []float64{200, 100, 200, 100, 200}
	for _, r := range rams {
		fp = fm.Track(1, "svc", 0, r, 0, 0, 0)
	}

	out := d.Analyze(fp, baselineWith(10, 1, 50, 1), true, "", nil)
	require.Len(t, out, 1)
	assert.Equal(t, model.AnomalyMemoryDeviation, out[0].Type)
}

func TestAnalyze_ChildProliferation(t *testing.T) {
	d := New()
	fm := fingerprint.New()
	fp := fm.Track(1, "svc", 0, 10, 0, 0, 10)

	out := d.Analyze(fp, baselineWith(10, 1, 10, 1), true, "", nil)
	require.Len(t, out, 1)
	assert.Equal(t, model.AnomalyChildProliferation, out[0].Type)
}

// Scenario 5 (spec.md §8): same name under 4 distinct PIDs within a short
// window triggers RESTART_LOOP on the 4th PID.
func TestAnalyze_RestartLoopOnFourthDistinctPID(t *testing.T) {
	d := New()
	fm := fingerprint.New()
	baseline := baselineWith(10, 1, 10, 1)

	var last []model.Anomaly
	for i, pid := range []int{100, 101, 102, 103} {
		fp := fm.Track(pid, "flaky", 0, 10, 0, 0, 0)
		last = d.Analyze(fp, baseline, true, "", nil)
		if i < 3 {
			assert.Empty(t, last, "must not fire before the 4th distinct pid")
		}
	}
	require.Len(t, last, 1)
	assert.Equal(t, model.AnomalyRestartLoop, last[0].Type)
	assert.Equal(t, 5, last[0].Severity)
	assert.InDelta(t, 0.9, last[0].Confidence, 0.0001)
}

func TestAnalyze_SuspiciousPathOneShot(t *testing.T) {
	d := New()
	fm := fingerprint.New()
	fp := fm.Track(1, "evil", 0, 10, 0, 0, 0)
	baseline := baselineWith(10, 1, 10, 1)

	out := d.Analyze(fp, baseline, true, "/tmp/.hidden/evil", nil)
	require.Len(t, out, 1)
	assert.Equal(t, model.AnomalySuspiciousPath, out[0].Type)

	// One-shot: must not fire again for the same PID.
	out = d.Analyze(fp, baseline, true, "/tmp/.hidden/evil", nil)
	assert.Empty(t, out)
}

func TestAnalyze_StartupPersistenceOneShot(t *testing.T) {
	d := New()
	fm := fingerprint.New()
	fp := fm.Track(1, "svc", 0, 10, 0, 0, 0)
	baseline := baselineWith(10, 1, 10, 1)
	entries := []model.PersistenceEntry{{Command: "/usr/bin/svc --daemon"}}

	out := d.Analyze(fp, baseline, true, "/usr/bin/svc", entries)
	require.Len(t, out, 1)
	assert.Equal(t, model.AnomalyStartupPersistence, out[0].Type)

	out = d.Analyze(fp, baseline, true, "/usr/bin/svc", entries)
	assert.Empty(t, out)
}

func TestAnalyze_NoAnomaliesWhenWithinBaseline(t *testing.T) {
	d := New()
	fm := fingerprint.New()
	fp := fm.Track(1, "svc", 1.0, 10, 0, 0, 1)

	out := d.Analyze(fp, baselineWith(10, 1.0, 10, 1), true, "/usr/bin/svc", nil)
	assert.Empty(t, out)
}

func TestCleanup_RemovesInactivePIDHistory(t *testing.T) {
	d := New()
	fm := fingerprint.New()
	fp := fm.Track(1, "svc", 20, 10, 0, 0, 0)
	d.Analyze(fp, baselineWith(10, 1.0, 10, 1), true, "", nil)

	d.Cleanup(map[int]bool{})
	assert.Empty(t, d.recentCPUEMA)
}

func TestReset_ClearsRestartLoopState(t *testing.T) {
	d := New()
	fm := fingerprint.New()
	baseline := baselineWith(10, 1, 10, 1)
	for _, pid := range []int{1, 2, 3} {
		fp := fm.Track(pid, "flaky", 0, 10, 0, 0, 0)
		d.Analyze(fp, baseline, true, "", nil)
	}

	d.Reset()

	fp := fm.Track(4, "flaky", 0, 10, 0, 0, 0)
	out := d.Analyze(fp, baseline, true, "", nil)
	assert.Empty(t, out, "reset must clear distinct-pid history")
}
