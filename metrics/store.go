package metrics

import (
	"sync"
	"time"

	"foammonitor/functionobject"
)

// MetricsStore keeps the most recent execution records in a ring buffer
// and running aggregates per function object and for the time loop.
//
//	store := metrics.NewMetricsStore(metrics.DefaultStoreConfig(), time.Now())
//	list.SetObserver(store)
type MetricsStore struct {
	mu sync.RWMutex

	history []ExecutionRecord
	histCap int
	head    int
	size    int

	byObject map[string]*objectStats

	steps         int64
	failedSteps   int64
	stepDuration  time.Duration
	lastIndex     int
	lastSimTime   float64
	lastStepTaken time.Duration

	stopped   bool
	startTime time.Time
}

type objectStats struct {
	executions    int64
	writes        int64
	errors        int64
	count         int64
	totalDuration time.Duration
	lastSimTime   float64
}

// StoreConfig configures the MetricsStore behavior.
type StoreConfig struct {
	// HistoryCapacity is the max number of records to retain
	HistoryCapacity int
}

// DefaultStoreConfig returns a default configuration.
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{HistoryCapacity: 256}
}

// NewMetricsStore creates a store. startTime is used for the uptime.
func NewMetricsStore(config StoreConfig, startTime time.Time) *MetricsStore {
	capacity := config.HistoryCapacity
	if capacity < 1 {
		capacity = DefaultStoreConfig().HistoryCapacity
	}
	return &MetricsStore{
		history:   make([]ExecutionRecord, capacity),
		histCap:   capacity,
		byObject:  make(map[string]*objectStats),
		startTime: startTime,
	}
}

// ObservePhase records a phase reported by a function object list.
func (s *MetricsStore) ObservePhase(object, phase string, simTime float64, d time.Duration, err error) {
	s.RecordExecution(recordFor(object, phase, simTime, d, err))
}

// RecordExecution adds one record.
func (s *MetricsStore) RecordExecution(rec ExecutionRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history[s.head] = rec
	s.head = (s.head + 1) % s.histCap
	if s.size < s.histCap {
		s.size++
	}

	stats, ok := s.byObject[rec.Object]
	if !ok {
		stats = &objectStats{}
		s.byObject[rec.Object] = stats
	}
	switch rec.Phase {
	case functionobject.PhaseExecute:
		stats.executions++
	case functionobject.PhaseWrite:
		stats.writes++
	}
	if rec.Status == StatusError {
		stats.errors++
	}
	stats.count++
	stats.totalDuration += rec.Duration
	stats.lastSimTime = rec.SimTime
}

// RecentExecutions returns up to limit records, oldest first.
func (s *MetricsStore) RecentExecutions(limit int) []ExecutionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || s.size == 0 {
		return []ExecutionRecord{}
	}
	if limit > s.size {
		limit = s.size
	}

	result := make([]ExecutionRecord, limit)
	for i := 0; i < limit; i++ {
		idx := (s.head - limit + i + s.histCap) % s.histCap
		result[i] = s.history[idx]
	}
	return result
}

// ObjectMetrics returns the aggregates keyed by function object name.
func (s *MetricsStore) ObjectMetrics() map[string]ObjectMetrics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]ObjectMetrics, len(s.byObject))
	for name, stats := range s.byObject {
		var avg time.Duration
		if stats.count > 0 {
			avg = stats.totalDuration / time.Duration(stats.count)
		}
		out[name] = ObjectMetrics{
			Executions:  stats.executions,
			Writes:      stats.writes,
			Errors:      stats.errors,
			AvgDuration: avg,
			LastSimTime: stats.lastSimTime,
		}
	}
	return out
}

// ObserveStep records a completed time step.
func (s *MetricsStore) ObserveStep(index int, simTime float64, d time.Duration, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.steps++
	if err != nil {
		s.failedSteps++
	}
	s.stepDuration += d
	s.lastIndex = index
	s.lastSimTime = simTime
	s.lastStepTaken = d
}

// StepMetrics returns the time loop aggregates.
func (s *MetricsStore) StepMetrics() StepMetrics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m := StepMetrics{
		Steps:        s.steps,
		FailedSteps:  s.failedSteps,
		LastIndex:    s.lastIndex,
		LastSimTime:  s.lastSimTime,
		LastDuration: s.lastStepTaken,
	}
	if s.steps > 0 {
		m.AvgDuration = s.stepDuration / time.Duration(s.steps)
	}
	return m
}

// MarkStopped records that the time loop has ended.
func (s *MetricsStore) MarkStopped() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
}

// RunStatus reports error once any step failed, stopped after MarkStopped,
// and running otherwise.
func (s *MetricsStore) RunStatus() RunStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	health := HealthRunning
	switch {
	case s.failedSteps > 0:
		health = HealthError
	case s.stopped:
		health = HealthStopped
	}
	return RunStatus{Health: health, Uptime: time.Since(s.startTime)}
}

var _ MetricsCollector = (*MetricsStore)(nil)
