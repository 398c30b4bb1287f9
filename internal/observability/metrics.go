package observability

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics aggregates turn and per-stage counters for the orchestrator.
type Metrics struct {
	mu sync.Mutex

	turnTotal     atomic.Int64
	turnFailed    atomic.Int64
	eventsEmitted atomic.Int64

	stages map[string]*StageMetrics
}

// StageMetrics holds counters for one orchestration stage.
type StageMetrics struct {
	count         atomic.Int64
	degradedCount atomic.Int64
	totalDuration atomic.Int64 // milliseconds
}

// NewMetrics creates a new metrics collector.
func NewMetrics() *Metrics {
	return &Metrics{
		stages: make(map[string]*StageMetrics),
	}
}

var globalMetrics = NewMetrics()

// GlobalMetrics returns the process-wide metrics instance.
func GlobalMetrics() *Metrics {
	return globalMetrics
}

// RecordTurn records the start of an orchestration turn.
func (m *Metrics) RecordTurn() {
	m.turnTotal.Add(1)
}

// RecordTurnFailure records a turn that ended with a fatal error.
func (m *Metrics) RecordTurnFailure() {
	m.turnFailed.Add(1)
}

// RecordEvent records an emitted response event.
func (m *Metrics) RecordEvent() {
	m.eventsEmitted.Add(1)
}

// RecordStage records one stage execution; degraded marks a fallback path.
func (m *Metrics) RecordStage(stage string, duration time.Duration, degraded bool) {
	sm := m.stage(stage)
	sm.count.Add(1)
	sm.totalDuration.Add(duration.Milliseconds())
	if degraded {
		sm.degradedCount.Add(1)
	}
}

func (m *Metrics) stage(name string) *StageMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	sm, ok := m.stages[name]
	if !ok {
		sm = &StageMetrics{}
		m.stages[name] = sm
	}
	return sm
}

// Reset resets all metrics (useful for testing).
func (m *Metrics) Reset() {
	m.turnTotal.Store(0)
	m.turnFailed.Store(0)
	m.eventsEmitted.Store(0)

	m.mu.Lock()
	m.stages = make(map[string]*StageMetrics)
	m.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the counters.
func (m *Metrics) Snapshot() *MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	stages := make([]StageSnapshot, 0, len(m.stages))
	for name, sm := range m.stages {
		count := sm.count.Load()
		snap := StageSnapshot{
			Stage:    name,
			Count:    count,
			Degraded: sm.degradedCount.Load(),
		}
		if count > 0 {
			snap.AverageMs = sm.totalDuration.Load() / count
		}
		stages = append(stages, snap)
	}
	sort.Slice(stages, func(i, j int) bool { return stages[i].Stage < stages[j].Stage })

	return &MetricsSnapshot{
		TurnTotal:     m.turnTotal.Load(),
		TurnFailed:    m.turnFailed.Load(),
		EventsEmitted: m.eventsEmitted.Load(),
		Stages:        stages,
	}
}

// MetricsSnapshot represents a point-in-time snapshot of metrics.
type MetricsSnapshot struct {
	TurnTotal     int64           `json:"turn_total"`
	TurnFailed    int64           `json:"turn_failed"`
	EventsEmitted int64           `json:"events_emitted"`
	Stages        []StageSnapshot `json:"stages"`
}

// StageSnapshot represents counters for one stage.
type StageSnapshot struct {
	Stage     string `json:"stage"`
	Count     int64  `json:"count"`
	Degraded  int64  `json:"degraded"`
	AverageMs int64  `json:"average_ms"`
}

// SuccessRate returns the turn success rate as a percentage (0-100).
func (s *MetricsSnapshot) SuccessRate() float64 {
	if s.TurnTotal == 0 {
		return 100.0
	}
	return float64(s.TurnTotal-s.TurnFailed) / float64(s.TurnTotal) * 100.0
}
