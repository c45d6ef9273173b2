package guardian

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hostguardian/guardian/model"
)

func newTestGuardian(t *testing.T) *Guardian {
	t.Helper()
	dir := t.TempDir()
	g := New(Config{
		BaselinePath: filepath.Join(dir, "baseline.json"),
		MemoryPath:   filepath.Join(dir, "memory.json"),
		AuditPath:    filepath.Join(dir, "audit.json"),
	})
	g.Load()
	return g
}

// advancingClock returns a clock function whose first call anchors
// system_first_run and whose every later call has already moved well past
// the 300s learning window, so tests can exercise post-learning behavior
// without sleeping in real time.
func advancingClock() func() time.Time {
	base := time.Unix(1_700_000_000, 0)
	first := true
	return func() time.Time {
		if first {
			first = false
			return base
		}
		return base.Add(time.Hour)
	}
}

func newPostLearningGuardian(t *testing.T) *Guardian {
	t.Helper()
	dir := t.TempDir()
	g := New(Config{
		BaselinePath: filepath.Join(dir, "baseline.json"),
		MemoryPath:   filepath.Join(dir, "memory.json"),
		AuditPath:    filepath.Join(dir, "audit.json"),
		Now:          advancingClock(),
	})
	g.Load()
	return g
}

func sampleMsg(procs ...model.Sample) model.TelemetryMessage {
	var msg model.TelemetryMessage
	msg.System.Processes.TopRAM = procs
	return msg
}

func TestTick_ColdStartSuppressesVerdicts(t *testing.T) {
	g := newTestGuardian(t)

	// Fewer than 5 samples: still within the cold-start learning period,
	// so even an extreme CPU spike must not surface a verdict.
	for i := 0; i < 3; i++ {
		g.Tick(sampleMsg(model.Sample{PID: 100, Name: "sshd", CPUPercent: 5}))
	}
	g.Tick(sampleMsg(model.Sample{PID: 100, Name: "sshd", CPUPercent: 95}))

	snap, ok := g.Snapshot()
	require.True(t, ok)
	assert.Empty(t, snap.Verdicts)
	assert.True(t, snap.GuardianState.IsLearning)
}

func TestTick_TrustedNameSuppressesVerdict(t *testing.T) {
	g := newTestGuardian(t)

	for i := 0; i < 10; i++ {
		g.Tick(sampleMsg(model.Sample{PID: 100, Name: "sshd", CPUPercent: 5}))
	}
	g.MarkTrusted("sshd")

	g.Tick(sampleMsg(model.Sample{PID: 100, Name: "sshd", CPUPercent: 95}))

	snap, ok := g.Snapshot()
	require.True(t, ok)
	assert.Empty(t, snap.Verdicts, "a trusted name must never surface a verdict regardless of score")
}

func TestTick_ChildProliferationProducesVerdictAfterBaseline(t *testing.T) {
	g := newPostLearningGuardian(t)

	for i := 0; i < 10; i++ {
		g.Tick(sampleMsg(model.Sample{PID: 100, Name: "worker", CPUPercent: 5}))
	}
	// A sudden burst of child processes, well above the learned baseline
	// of ~0, should trip CHILD_PROLIFERATION (severity 3, significant on
	// its own regardless of accumulated score).
	children := make([]int, 6)
	for i := range children {
		children[i] = 1000 + i
	}
	g.Tick(sampleMsg(model.Sample{PID: 100, Name: "worker", CPUPercent: 5, Children: children}))

	snap, ok := g.Snapshot()
	require.True(t, ok)
	require.NotEmpty(t, snap.Verdicts, "a sudden child-process burst after baseline should produce a verdict")
	assert.Equal(t, "worker", snap.Verdicts[0].Process)
	assert.Equal(t, model.AnomalyChildProliferation, snap.Verdicts[0].AnomalyType)
}

func TestTick_RestartLoopAcrossDistinctPIDs(t *testing.T) {
	g := newPostLearningGuardian(t)

	for i := 0; i < 10; i++ {
		g.Tick(sampleMsg(model.Sample{PID: 100, Name: "cron-job", CPUPercent: 1}))
	}

	// PID 100 plus three more distinct PIDs for the same program name
	// reaches anomaly.RestartLoopThreshold (4) on PID 202; PID 203 keeps
	// RESTART_LOOP firing.
	var snap model.Snapshot
	for pid := 200; pid < 204; pid++ {
		g.Tick(sampleMsg(model.Sample{PID: pid, Name: "cron-job", CPUPercent: 1}))
		s, ok := g.Snapshot()
		require.True(t, ok)
		snap = s
	}

	require.NotEmpty(t, snap.Verdicts)
	assert.Equal(t, model.AnomalyRestartLoop, snap.Verdicts[0].AnomalyType)
}

func TestTick_PublishesSnapshotEveryTick(t *testing.T) {
	g := newTestGuardian(t)
	_, ok := g.Snapshot()
	assert.False(t, ok, "no snapshot before the first tick")

	g.Tick(sampleMsg())
	snap, ok := g.Snapshot()
	require.True(t, ok)
	assert.Equal(t, 0, snap.SamplesCount)
}

func TestReset_RestartsLearningPhaseAndClearsState(t *testing.T) {
	g := newTestGuardian(t)

	for i := 0; i < 10; i++ {
		g.Tick(sampleMsg(model.Sample{PID: 100, Name: "sshd", CPUPercent: 5}))
	}
	g.MarkDangerous("sshd")
	require.NoError(t, g.Reset())

	snap, ok := g.Snapshot()
	require.True(t, ok)
	assert.True(t, snap.GuardianState.IsLearning)
	assert.Equal(t, 0, snap.GuardianState.LearningProgress)
	assert.Equal(t, model.Calm, snap.GuardianState.State)
	assert.False(t, g.mem.IsDangerous("sshd"), "reset must clear guardian memory")
}

func TestAcknowledgePrompt_ApproveMarksDangerousAndClearsPrompt(t *testing.T) {
	g := newTestGuardian(t)
	g.activePrompts["curl"] = "cmd-123"

	err := g.AcknowledgePrompt("cmd-123", "approve")
	require.NoError(t, err)

	_, active := g.activePrompts["curl"]
	assert.False(t, active)
	assert.True(t, g.mem.IsDangerous("curl"))
}

func TestAcknowledgePrompt_DenyMarksTrustedAndClearsPrompt(t *testing.T) {
	g := newTestGuardian(t)
	g.activePrompts["curl"] = "cmd-123"

	err := g.AcknowledgePrompt("cmd-123", "deny")
	require.NoError(t, err)

	_, active := g.activePrompts["curl"]
	assert.False(t, active)
	assert.True(t, g.mem.IsTrusted("curl"))
}

func TestAcknowledgePrompt_UnknownCommandIDErrors(t *testing.T) {
	g := newTestGuardian(t)
	err := g.AcknowledgePrompt("no-such-id", "approve")
	assert.Error(t, err)
}

func TestMarkTrusted_PersistsAcrossBaselineAndMemory(t *testing.T) {
	g := newTestGuardian(t)
	g.Tick(sampleMsg(model.Sample{PID: 1, Name: "nginx", CPUPercent: 1}))
	g.MarkTrusted("nginx")

	assert.True(t, g.mem.IsTrusted("nginx"))
	b, ok := g.baseline.Get("nginx")
	require.True(t, ok)
	assert.True(t, b.Trusted)
}
