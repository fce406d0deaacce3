// Package interfacearea provides the interfaceArea function object. It
// estimates the area of the interface between two phases as the volume
// integral of |grad(alpha)| and logs it once per step.
package interfacearea

import (
	"context"
	"errors"
	"fmt"

	"foammonitor/dictionary"
	"foammonitor/fields"
	"foammonitor/functionobject"
	"foammonitor/fvc"
	"foammonitor/series"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
)

const (
	// TypeName is the registration key of this function object.
	TypeName = "interfaceArea"

	// DefaultPhase is used when phaseName is not configured.
	DefaultPhase = "phase1"

	// ResultName is the key of the computed value in Results.
	ResultName = "interfaceArea"
)

// ErrNoValue is returned by Write before the first successful Execute.
var ErrNoValue = errors.New("interface area has not been computed")

// Monitor is the interfaceArea function object. A Monitor is driven by a
// single goroutine and is not safe for concurrent use.
type Monitor struct {
	name   string
	region functionobject.Region
	out    series.Writer
	logger *zap.Logger

	phaseName  string
	configured bool
	header     bool

	value    float64
	hasValue bool

	closed bool
}

// New is the functionobject.Builder for TypeName.
func New(spec functionobject.Spec) (functionobject.FunctionObject, error) {
	return NewMonitor(spec)
}

// NewMonitor opens the output series and reads the initial configuration,
// which writes the file header.
func NewMonitor(spec functionobject.Spec) (*Monitor, error) {
	if spec.Name == "" {
		return nil, errors.New("interfaceArea needs a name")
	}
	logger := spec.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	out := series.Discard
	if spec.Output != nil {
		w, err := spec.Output.Open(spec.Name, TypeName)
		if err != nil {
			return nil, err
		}
		out = w
	}

	m := &Monitor{
		name:      spec.Name,
		region:    spec.Region,
		out:       out,
		logger:    logger,
		phaseName: DefaultPhase,
	}
	if err := m.Read(spec.Dict); err != nil {
		out.Close()
		return nil, err
	}
	return m, nil
}

// Name returns the instance name.
func (m *Monitor) Name() string { return m.name }

// Type returns TypeName.
func (m *Monitor) Type() string { return TypeName }

// PhaseName returns the phase whose volume fraction is read.
func (m *Monitor) PhaseName() string { return m.phaseName }

// Configured reports whether Read has succeeded at least once.
func (m *Monitor) Configured() bool { return m.configured }

// Value returns the last computed area and whether there is one.
func (m *Monitor) Value() (float64, bool) { return m.value, m.hasValue }

// Read applies the optional phaseName entry of dict. The first successful
// call writes the series header.
func (m *Monitor) Read(dict *dictionary.Dict) error {
	if m.closed {
		return functionobject.ErrTerminated
	}

	phase, err := m.decodePhase(dict)
	if err != nil {
		return err
	}

	if !m.header {
		if err := m.out.WriteHeader("Interface area evolution", "Time", "Interface area"); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
		m.header = true
	}

	if phase != m.phaseName {
		m.logger.Info("Phase changed",
			zap.String("from", m.phaseName),
			zap.String("to", phase))
	}
	m.phaseName = phase
	m.configured = true
	return nil
}

// ValidateConfig decodes dict without applying it.
func (m *Monitor) ValidateConfig(dict *dictionary.Dict) error {
	if m.closed {
		return functionobject.ErrTerminated
	}
	_, err := m.decodePhase(dict)
	return err
}

// decodePhase returns the configured phase, or the current one when
// phaseName is absent. An empty name is accepted; Execute then fails the
// lookup of "alpha.".
func (m *Monitor) decodePhase(dict *dictionary.Dict) (string, error) {
	phase := m.phaseName
	if _, err := dict.ReadIfPresent("phaseName", &phase); err != nil {
		return "", err
	}
	return phase, nil
}

// Execute computes sum(|grad(alpha.<phase>)| * V) over every partition.
// It must be called on all ranks for the same step. On error the stored
// value is left as it was and the error is returned unchanged.
func (m *Monitor) Execute(ctx context.Context) error {
	if m.closed {
		return functionobject.ErrTerminated
	}

	alpha, err := m.region.Fields.LookupScalar(fields.AlphaName(m.phaseName))
	if err != nil {
		return err
	}
	grad, err := m.region.Gradient.Grad(alpha)
	if err != nil {
		return err
	}

	vols := m.region.Geometry.CellVolumes()
	if len(vols) != len(grad) {
		return fmt.Errorf("gradient has %d cells, mesh has %d", len(grad), len(vols))
	}
	total, err := m.region.Reducer.SumAll(floats.Dot(fvc.Mag(grad), vols))
	if err != nil {
		return err
	}

	m.value = total
	m.hasValue = true
	m.logger.Debug("Interface area computed",
		zap.String("field", alpha.Name),
		zap.Float64("area", total))
	return nil
}

// Write appends the current time and area to the series.
func (m *Monitor) Write(ctx context.Context) error {
	if m.closed {
		return functionobject.ErrTerminated
	}
	if !m.hasValue {
		return ErrNoValue
	}
	return m.out.WriteRow(m.region.Clock.Value(), m.value)
}

// Results implements functionobject.Reporter.
func (m *Monitor) Results() map[string]float64 {
	if !m.hasValue {
		return map[string]float64{}
	}
	return map[string]float64{ResultName: m.value}
}

// Close closes the series. The monitor cannot be used afterwards.
func (m *Monitor) Close() error {
	if m.closed {
		return functionobject.ErrTerminated
	}
	m.closed = true
	if counter, ok := m.out.(interface{ Rows() int }); ok {
		m.logger.Debug("Series closed", zap.Int("rows", counter.Rows()))
	}
	return m.out.Close()
}
