// Package guardian implements C10 (the telemetry consumer / pipeline
// head) and C11 (the reset protocol): the single owning value that holds
// handles to every other component and drives one analysis tick per
// sample. Per the design note resolving the source's use of module
// globals (spec.md §7 "Global singletons"), there is exactly one
// Guardian value per process; it is constructed once and injected into
// the pipeline, never referenced through package-level state. Grounded
// on original_source/brain/guardian_manager.py for the set of owned
// collaborators, and on the teacher's engine/daemon.go for the
// single-threaded tick/shutdown shape.
package guardian

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hostguardian/guardian/anomaly"
	"github.com/hostguardian/guardian/audit"
	"github.com/hostguardian/guardian/baseline"
	"github.com/hostguardian/guardian/chain"
	"github.com/hostguardian/guardian/fingerprint"
	"github.com/hostguardian/guardian/intervention"
	"github.com/hostguardian/guardian/memory"
	"github.com/hostguardian/guardian/model"
	"github.com/hostguardian/guardian/posture"
	"github.com/hostguardian/guardian/risk"
	"github.com/hostguardian/guardian/snapshot"
)

// BaselineSaveInterval is how often C10 saves the baseline store, in
// ticks (spec.md §4.1 "every 50 ticks").
const BaselineSaveInterval = 50

// ConfirmationSink receives Request-Confirmation-level prompts for the
// external collaborator (dashboard/TTS) to surface (spec.md §4.10 step
// 4, §1 "intervention requests"). Declared here so guardian has no
// import-time dependency on the transport that ultimately delivers them.
type ConfirmationSink interface {
	Request(model.ConfirmationRequest)
}

// Metrics receives tick-level instrumentation callbacks. Implemented by
// the metrics package; declared here to avoid an import cycle.
type Metrics interface {
	ObserveTick()
	ObserveAnomaly(model.AnomalyType)
	ObserveVerdict(model.InterventionLevel)
	ObserveConfirmationRequest()
	SetPosture(model.GlobalState)
}

type noopMetrics struct{}

func (noopMetrics) ObserveTick()                          {}
func (noopMetrics) ObserveAnomaly(model.AnomalyType)       {}
func (noopMetrics) ObserveVerdict(model.InterventionLevel) {}
func (noopMetrics) ObserveConfirmationRequest()            {}
func (noopMetrics) SetPosture(model.GlobalState)           {}

// Guardian is the single owning value for the whole analysis core.
type Guardian struct {
	mu sync.Mutex

	logger *zap.Logger

	baselinePath string
	memoryPath   string
	auditPath    string

	baseline     *baseline.Store
	fingerprints *fingerprint.Manager
	detector     *anomaly.Detector
	chains       *chain.Manager
	mem          *memory.Store
	auditLog     *audit.Log
	publisher    *snapshot.Publisher

	sink    ConfirmationSink
	metrics Metrics

	tickCount             int
	activePrompts         map[string]string // process name -> outstanding command_id
	belowRecommendStreaks map[string]int    // process name -> consecutive sub-Recommend ticks
}

// ConfirmationClearStreak is how many consecutive ticks a process's score
// must stay below Recommend before its outstanding confirmation prompt is
// cleared automatically (spec.md §6 "Confirmation request").
const ConfirmationClearStreak = 5

// Config carries the persistence paths and tunables needed to construct
// a Guardian. Zero-value Option fields take each component's default.
type Config struct {
	BaselinePath string
	MemoryPath   string
	AuditPath    string

	BaselineAlpha    float64 // 0 → baseline.DefaultAlpha
	FingerprintAlpha float64 // 0 → fingerprint.DefaultAlpha

	// Now overrides the clock used for baseline first-seen/last-seen and
	// learning-progress calculations. Nil uses the wall clock; tests
	// override it to fast-forward the learning window without sleeping.
	Now func() time.Time

	Sink    ConfirmationSink
	Metrics Metrics
	Logger  *zap.Logger
}

// New constructs a Guardian with fresh (unloaded) component state. Call
// Load to restore persisted state before starting the pipeline.
func New(cfg Config) *Guardian {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	m := cfg.Metrics
	if m == nil {
		m = noopMetrics{}
	}

	var baselineOpts []baseline.Option
	if cfg.BaselineAlpha > 0 {
		baselineOpts = append(baselineOpts, baseline.WithAlpha(cfg.BaselineAlpha))
	}
	if cfg.Now != nil {
		baselineOpts = append(baselineOpts, baseline.WithClock(cfg.Now))
	}
	var fpOpts []fingerprint.Option
	if cfg.FingerprintAlpha > 0 {
		fpOpts = append(fpOpts, fingerprint.WithAlpha(cfg.FingerprintAlpha))
	}

	return &Guardian{
		logger:                logger,
		baselinePath:          cfg.BaselinePath,
		memoryPath:            cfg.MemoryPath,
		auditPath:             cfg.AuditPath,
		baseline:              baseline.New(cfg.BaselinePath, baselineOpts...),
		fingerprints:          fingerprint.New(fpOpts...),
		detector:              anomaly.New(),
		chains:                chain.New(),
		mem:                   memory.New(cfg.MemoryPath),
		auditLog:              audit.New(cfg.AuditPath),
		publisher:             snapshot.New(),
		sink:                  cfg.Sink,
		metrics:               m,
		activePrompts:         make(map[string]string),
		belowRecommendStreaks: make(map[string]int),
	}
}

// Load restores persisted baseline, memory, and audit state from disk.
// Corrupt files are quarantined by the underlying stores and logged as a
// warning audit event (spec.md §4.10 "Failure semantics").
func (g *Guardian) Load() {
	if err := g.auditLog.Load(); err != nil {
		g.logger.Warn("audit file corrupt, starting fresh", zap.Error(err))
		g.logAudit(model.AuditSystem, "", map[string]string{"warning": "corrupt audit file quarantined"})
	}
	if err := g.baseline.Load(); err != nil {
		g.logger.Warn("baseline file corrupt, starting fresh", zap.Error(err))
		g.logAudit(model.AuditSystem, "", map[string]string{"warning": "corrupt baseline file quarantined"})
	}
	if err := g.mem.Load(); err != nil {
		g.logger.Warn("memory file corrupt, starting fresh", zap.Error(err))
		g.logAudit(model.AuditSystem, "", map[string]string{"warning": "corrupt memory file quarantined"})
	}
}

// logAudit appends an audit event and, when the periodic flush threshold
// is reached, saves the trail to disk — the one place the every-50-events
// cadence (spec.md §4.9) is enforced, for every audit event type rather
// than just RequestConfirmation alerts.
func (g *Guardian) logAudit(eventType model.AuditType, processName string, details map[string]string) {
	if g.auditLog.Log(eventType, processName, details) {
		if err := g.auditLog.Save(); err != nil {
			g.logger.Error("periodic audit flush failed", zap.Error(err))
		}
	}
}

// Snapshot returns the latest published snapshot.
func (g *Guardian) Snapshot() (model.Snapshot, bool) {
	return g.publisher.Get()
}

// MarkTrusted, MarkDangerous, and MarkIgnored expose C8 mutations to the
// external control surface (httpapi), guarded by the same coarse lock
// C10 uses.
func (g *Guardian) MarkTrusted(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.mem.MarkTrusted(name)
	g.baseline.MarkTrusted(name)
	_ = g.mem.Save()
}

func (g *Guardian) MarkDangerous(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.mem.MarkDangerous(name)
	_ = g.mem.Save()
}

func (g *Guardian) MarkIgnored(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.mem.MarkIgnored(name)
	_ = g.mem.Save()
}

// AcknowledgePrompt resolves the outstanding confirmation request
// identified by commandID with decision "approve" or "deny", clearing its
// entry from the active-prompt set so a future escalation can prompt
// again (spec.md §6 "Control surface"). Approving marks the process
// dangerous; denying marks it trusted — both feed future risk scoring.
func (g *Guardian) AcknowledgePrompt(commandID, decision string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	var name string
	for n, cid := range g.activePrompts {
		if cid == commandID {
			name = n
			break
		}
	}
	if name == "" {
		return fmt.Errorf("no active confirmation request with command id %q", commandID)
	}

	switch decision {
	case "approve":
		g.mem.MarkDangerous(name)
	case "deny":
		g.mem.MarkTrusted(name)
		g.baseline.MarkTrusted(name)
	default:
		return fmt.Errorf("unknown decision %q, want \"approve\" or \"deny\"", decision)
	}
	_ = g.mem.Save()

	delete(g.activePrompts, name)
	delete(g.belowRecommendStreaks, name)
	g.logAudit(model.AuditUserDecision, name, map[string]string{"command_id": commandID, "decision": decision})
	return nil
}

// Shutdown flushes persisted state on clean shutdown (spec.md §4.1
// "Save cadence ... on clean shutdown"; §5 "flushes C1 and C9").
func (g *Guardian) Shutdown() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.baseline.Save(); err != nil {
		g.logger.Error("failed to flush baseline on shutdown", zap.Error(err))
	}
	if err := g.auditLog.Save(); err != nil {
		g.logger.Error("failed to flush audit log on shutdown", zap.Error(err))
	}
}

// Tick runs one complete pass of the 9-step per-tick algorithm (spec.md
// §4.10) over msg.
func (g *Guardian) Tick(msg model.TelemetryMessage) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()
	processes := msg.System.Processes.TopRAM

	// Step 1: active_pids.
	activePIDs := make(map[int]bool, len(processes))
	for _, p := range processes {
		activePIDs[p.PID] = true
	}

	// Step 2: learning phase.
	learningProgress := g.baseline.LearningProgress()
	isLearning := learningProgress < 100

	scores := make(map[int]float64, len(processes))
	var significant []pendingVerdict
	skipped := 0

	// Step 3: per-process C2 -> C1 -> C3 -> C4 -> C5, strictly ordered.
	for _, p := range processes {
		pv, ok, panicked := g.processOne(p, msg.Persistence, scores)
		if panicked {
			skipped++
			continue
		}
		if ok {
			significant = append(significant, pv)
		}
	}
	if skipped > 0 {
		g.logAudit(model.AuditSystem, "", map[string]string{
			"event": "per-process analysis skipped",
			"count": fmt.Sprintf("%d", skipped),
		})
	}

	var verdicts []model.Verdict

	// Step 4: verdict generation, suppressed during learning or for
	// trusted names.
	if !isLearning {
		for _, pv := range significant {
			baselineEntry, hasBaseline := g.baseline.Get(pv.proc.Name)
			if hasBaseline && baselineEntry.Trusted {
				continue
			}
			verdicts = append(verdicts, g.emitVerdict(pv.proc, pv.anomalies, pv.score))
		}
	}

	// Step 4.5: age outstanding confirmation prompts, clearing one once its
	// process has scored below Recommend for ConfirmationClearStreak
	// consecutive ticks (spec.md §6 "Confirmation request").
	if len(g.activePrompts) > 0 {
		scoresByName := make(map[string]float64, len(processes))
		for _, p := range processes {
			if s, ok := scores[p.PID]; ok {
				scoresByName[p.Name] = s
			}
		}
		for name := range g.activePrompts {
			s, seen := scoresByName[name]
			if !seen {
				continue
			}
			if intervention.Level(s) < model.Recommend {
				g.belowRecommendStreaks[name]++
				if g.belowRecommendStreaks[name] >= ConfirmationClearStreak {
					delete(g.activePrompts, name)
					delete(g.belowRecommendStreaks, name)
				}
			} else {
				delete(g.belowRecommendStreaks, name)
			}
		}
	}

	// Step 5: absorb the new sample into C1, after detection.
	for _, p := range processes {
		g.baseline.Update(p.Name, p.CPUPercent, p.RAMMB, float64(p.ChildCount()), p.NetSentKBps, p.NetRecvKBps)
	}

	// Step 6: global posture.
	scoreList := make([]float64, 0, len(scores))
	for _, s := range scores {
		scoreList = append(scoreList, s)
	}
	globalState := posture.Evaluate(scoreList, learningProgress, isLearning)
	g.metrics.SetPosture(globalState)

	// Step 7: cleanup.
	g.fingerprints.Cleanup(activePIDs)
	g.chains.Cleanup(activePIDs)
	g.detector.Cleanup(activePIDs)

	// Step 8: periodic saves.
	g.tickCount++
	if g.tickCount%BaselineSaveInterval == 0 {
		if err := g.baseline.Save(); err != nil {
			g.logger.Error("periodic baseline save failed", zap.Error(err))
		}
	}

	// Step 9: publish.
	g.publisher.Publish(model.Snapshot{
		GuardianState: globalState,
		Verdicts:      verdicts,
		SamplesCount:  len(processes),
		LastUpdate:    now,
	})
	g.metrics.ObserveTick()
}

// pendingVerdict carries a significant per-process result from step 3
// through to step 4's verdict generation.
type pendingVerdict struct {
	proc      model.Sample
	anomalies []model.Anomaly
	score     float64
}

// processOne runs C2->C1->C3->C4->C5 for a single process, recovering
// from any panic so the tick continues with the remaining processes
// (spec.md §4.10 "Failure semantics", §7 "programmer-error recovery").
// panicked reports whether the process was dropped due to a recovered
// panic, distinct from ok=false meaning "analyzed, not significant".
func (g *Guardian) processOne(p model.Sample, persistence []model.PersistenceEntry, scores map[int]float64) (pv pendingVerdict, ok bool, panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("panic during per-process analysis, skipping process",
				zap.Int("pid", p.PID), zap.Any("panic", r))
			ok = false
			panicked = true
		}
	}()

	fp := g.fingerprints.Track(p.PID, p.Name, p.CPUPercent, p.RAMMB, p.NetSentKBps, p.NetRecvKBps, float64(p.ChildCount()))
	baselineEntry, hasBaseline := g.baseline.Get(p.Name)
	anomalies := g.detector.Analyze(fp, baselineEntry, hasBaseline, p.ExePath, persistence)
	for _, a := range anomalies {
		g.metrics.ObserveAnomaly(a.Type)
	}
	multiplier := g.chains.Update(p.PID, p.Name, anomalies)
	score, sig := risk.Score(p.Name, anomalies, multiplier, g.mem)

	scores[p.PID] = score
	if len(sig) == 0 {
		return pendingVerdict{}, false, false
	}
	return pendingVerdict{proc: p, anomalies: sig, score: score}, true, false
}

func (g *Guardian) emitVerdict(p model.Sample, anomalies []model.Anomaly, score float64) model.Verdict {
	level := intervention.Level(score)
	recommendation := intervention.Recommendation(p.Name, anomalies, level)
	g.metrics.ObserveVerdict(level)

	primary := model.AnomalyUnknown
	var actual, baselineStr string
	var confidence float64
	if top, ok := model.HighestSeverity(anomalies); ok {
		primary = top.Type
		actual = top.Actual
		baselineStr = top.Baseline
		confidence = top.Confidence
	}

	if level == model.RequestConfirmation {
		if _, active := g.activePrompts[p.Name]; !active {
			commandID := uuid.NewString()
			g.activePrompts[p.Name] = commandID
			g.metrics.ObserveConfirmationRequest()
			if g.sink != nil {
				g.sink.Request(model.ConfirmationRequest{
					CommandID:   commandID,
					CommandName: p.Name,
					Details:     recommendation,
				})
			}
			g.logAudit(model.AuditAlert, p.Name, map[string]string{
				"level": level.String(),
				"score": fmt.Sprintf("%.1f", score),
			})
		}
	}

	return model.Verdict{
		Process:        p.Name,
		PID:            p.PID,
		Score:          score,
		Level:          level,
		AnomalyType:    primary,
		Actual:         actual,
		Baseline:       baselineStr,
		Confidence:     confidence,
		Recommendation: recommendation,
	}
}

// Reset implements C11: atomic clear-and-reinitialize of C1/C4/C8/C9 plus
// re-anchoring the learning-phase timestamp (spec.md §4.11). The fresh
// baseline, memory, and audit files are saved one after another, each
// atomically, before any live component is mutated, so a write failure
// leaves the running Guardian's in-memory state untouched. Files already
// rewritten earlier in that sequence are not restored: if the memory or
// audit save fails, the files saved before it keep their fresh contents.
func (g *Guardian) Reset() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	freshBaseline := baseline.New(g.baselinePath)
	freshMemory := memory.New(g.memoryPath)
	freshAudit := audit.New(g.auditPath)

	if err := freshBaseline.Save(); err != nil {
		return fmt.Errorf("reset: write fresh baseline: %w", err)
	}
	if err := freshMemory.Save(); err != nil {
		return fmt.Errorf("reset: write fresh memory: %w", err)
	}
	if err := freshAudit.Save(); err != nil {
		return fmt.Errorf("reset: write fresh audit log: %w", err)
	}

	g.baseline = freshBaseline
	g.mem = freshMemory
	g.auditLog = freshAudit
	g.chains.ClearAll()
	g.detector.Reset()
	g.activePrompts = make(map[string]string)
	g.belowRecommendStreaks = make(map[string]int)

	g.logAudit(model.AuditSystem, "", map[string]string{"event": "Guardian reset; learning phase restarted"})

	g.publisher.Publish(model.Snapshot{
		GuardianState: model.GlobalState{State: model.Calm, StatusColor: model.ColorHealthy, IsLearning: true, LearningProgress: 0},
		Verdicts:      nil,
		SamplesCount:  0,
		LastUpdate:    time.Now(),
	})

	return nil
}
