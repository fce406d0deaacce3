// Package functionobject defines the contract between the solver host and the
// per-step monitors it runs, and the table of monitor types the host can build
// by name.
package functionobject

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"foammonitor/dictionary"
	"foammonitor/fields"
	"foammonitor/series"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrTerminated is returned by any operation on a closed function object.
var ErrTerminated = errors.New("function object is terminated")

// FunctionObject is a monitor driven by the host once per selected step.
// Read may be called again at any step boundary. Execute is collective across
// partitions and must be called on every rank for the same step.
type FunctionObject interface {
	Name() string
	Type() string
	Read(dict *dictionary.Dict) error
	Execute(ctx context.Context) error
	Write(ctx context.Context) error
	Close() error
}

// Reporter is implemented by function objects that expose their latest
// results to the host.
type Reporter interface {
	Results() map[string]float64
}

// ConfigValidator is implemented by function objects that can check a
// dictionary without applying it. List.Read uses it so that a re-read either
// reconfigures every object or none.
type ConfigValidator interface {
	ValidateConfig(dict *dictionary.Dict) error
}

// FieldStore resolves named fields on the local partition.
type FieldStore interface {
	LookupScalar(name string) (*fields.ScalarField, error)
}

// Geometry gives per-cell mesh data of the local partition.
type Geometry interface {
	CellVolumes() []float64
}

// GradientOperator computes cell gradients. Collective.
type GradientOperator interface {
	Grad(f *fields.ScalarField) ([]r3.Vec, error)
}

// Reducer sums a value over all partitions. Collective.
type Reducer interface {
	SumAll(local float64) (float64, error)
}

// Clock reports the current simulation time.
type Clock interface {
	Value() float64
	Index() int
}

// Region is the simulation context a function object works against. It is
// owned by the host and outlives every function object built on it.
type Region struct {
	Fields   FieldStore
	Geometry Geometry
	Gradient GradientOperator
	Reducer  Reducer
	Clock    Clock
}

// Validate reports the first missing capability.
func (r Region) Validate() error {
	switch {
	case r.Fields == nil:
		return errors.New("region has no field store")
	case r.Geometry == nil:
		return errors.New("region has no mesh geometry")
	case r.Gradient == nil:
		return errors.New("region has no gradient operator")
	case r.Reducer == nil:
		return errors.New("region has no reducer")
	case r.Clock == nil:
		return errors.New("region has no clock")
	}
	return nil
}

// Spec carries everything a Builder needs to construct one function object.
type Spec struct {
	Name   string
	Dict   *dictionary.Dict
	Region Region
	Output series.Opener
	Logger *zap.Logger
}

// UnknownTypeError is returned by New for a type with no registered builder.
type UnknownTypeError struct {
	Name       string
	Type       string
	Registered []string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("function object %q: unknown type %q; registered types: %s",
		e.Name, e.Type, strings.Join(e.Registered, ", "))
}
