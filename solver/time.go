package solver

import (
	"math"
	"strconv"

	"foammonitor/series"
)

// Time is the simulation clock. It is advanced by the coordinator between
// steps and only read by partitions while a step runs.
type Time struct {
	start     float64
	end       float64
	deltaT    float64
	precision int

	index int
	value float64
}

// NewTime starts a clock at spec.Start.
func NewTime(spec TimeSpec) *Time {
	return &Time{
		start:     spec.Start,
		end:       spec.End,
		deltaT:    spec.DeltaT,
		precision: spec.WritePrecision,
		value:     spec.Start,
	}
}

// Value returns the current time.
func (t *Time) Value() float64 { return t.value }

// Index returns the number of steps taken.
func (t *Time) Index() int { return t.index }

// DeltaT returns the step size.
func (t *Time) DeltaT() float64 { return t.deltaT }

// Start returns the start time.
func (t *Time) Start() float64 { return t.start }

// TimeName formats the current time with the case write precision.
func (t *Time) TimeName() string {
	return series.TimeName(t.value, t.precision)
}

// Running reports whether another step fits before the end time.
func (t *Time) Running() bool {
	return t.value+0.5*t.deltaT < t.end
}

// Advance moves to the next step. Time is computed from the index and
// rounded to deltaT resolution, so 3 steps of 0.1 give exactly 0.3.
func (t *Time) Advance() {
	t.index++
	t.value = roundToStep(t.start+float64(t.index)*t.deltaT, t.deltaT)
	if math.Abs(t.value-t.end) < 1e-9*t.deltaT {
		t.value = t.end
	}
}

// roundToStep rounds v to nine decimal places below the leading digit of
// deltaT.
func roundToStep(v, deltaT float64) float64 {
	if deltaT <= 0 || math.IsInf(v, 0) || math.IsNaN(v) {
		return v
	}
	decimals := int(-math.Floor(math.Log10(deltaT))) + 9
	decimals = min(max(decimals, 0), 20)
	rounded, err := strconv.ParseFloat(strconv.FormatFloat(v, 'f', decimals, 64), 64)
	if err != nil {
		return v
	}
	return rounded
}
