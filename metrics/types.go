// Package metrics records how function objects and time steps perform, in
// memory for the run summary and as Prometheus series for live scraping.
package metrics

import "time"

// ExecutionRecord is one execute or write phase of one function object.
type ExecutionRecord struct {
	// Object is the function object name
	Object string `json:"object"`

	// Phase is "execute" or "write"
	Phase string `json:"phase"`

	// SimTime is the simulation time of the step
	SimTime float64 `json:"sim_time"`

	// Duration is the wall-clock time of the phase
	Duration time.Duration `json:"duration"`

	// Status is "success" or "error"
	Status string `json:"status"`

	// ErrorMsg contains error details if Status is "error"
	ErrorMsg string `json:"error_msg,omitempty"`
}

// ObjectMetrics aggregates the records of one function object.
type ObjectMetrics struct {
	Executions  int64         `json:"executions"`
	Writes      int64         `json:"writes"`
	Errors      int64         `json:"errors"`
	AvgDuration time.Duration `json:"avg_duration"`
	LastSimTime float64       `json:"last_sim_time"`
}

// StepMetrics aggregates completed time steps.
type StepMetrics struct {
	Steps        int64         `json:"steps"`
	FailedSteps  int64         `json:"failed_steps"`
	LastIndex    int           `json:"last_index"`
	LastSimTime  float64       `json:"last_sim_time"`
	LastDuration time.Duration `json:"last_duration"`
	AvgDuration  time.Duration `json:"avg_duration"`
}

// RunStatus is the overall health of the run.
type RunStatus struct {
	// Health is "running", "error" or "stopped"
	Health string        `json:"health"`
	Uptime time.Duration `json:"uptime"`
}

// Status constants for ExecutionRecord
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Health constants for RunStatus
const (
	HealthRunning = "running"
	HealthError   = "error"
	HealthStopped = "stopped"
)
