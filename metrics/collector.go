package metrics

import (
	"time"

	"foammonitor/functionobject"
	"foammonitor/solver"
)

// MetricsCollector is the read and write surface of the in-memory store.
// Implementations must be safe for concurrent use.
type MetricsCollector interface {
	functionobject.Observer
	solver.StepObserver

	RecordExecution(rec ExecutionRecord)
	RecentExecutions(limit int) []ExecutionRecord
	ObjectMetrics() map[string]ObjectMetrics
	StepMetrics() StepMetrics
	MarkStopped()
	RunStatus() RunStatus
}

// recordFor converts an observed phase to a record.
func recordFor(object, phase string, simTime float64, d time.Duration, err error) ExecutionRecord {
	rec := ExecutionRecord{
		Object:   object,
		Phase:    phase,
		SimTime:  simTime,
		Duration: d,
		Status:   StatusSuccess,
	}
	if err != nil {
		rec.Status = StatusError
		rec.ErrorMsg = err.Error()
	}
	return rec
}
