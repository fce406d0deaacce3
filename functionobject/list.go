package functionobject

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"foammonitor/dictionary"
	"foammonitor/series"

	"go.uber.org/zap"
)

// Phase names used when reporting executions.
const (
	PhaseExecute = "execute"
	PhaseWrite   = "write"
)

// Observer receives one call per executed phase.
type Observer interface {
	ObservePhase(object, phase string, simTime float64, d time.Duration, err error)
}

type entry struct {
	obj      FunctionObject
	controls Controls
	// executed is set when the object executed in the latest step.
	executed bool
}

// List runs the function objects of one partition in dictionary order.
type List struct {
	region   Region
	logger   *zap.Logger
	entries  []*entry
	observer Observer
}

// NewList builds every function object named in functions. Each entry must be
// a sub-dictionary with a "type" key. On error every object already built is
// closed.
func NewList(functions *dictionary.Dict, region Region, out series.Opener, logger *zap.Logger) (*List, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if out == nil {
		out = discardOpener{}
	}
	l := &List{region: region, logger: logger}

	for _, name := range functions.Keys() {
		sub, err := functions.SubDict(name)
		if err != nil {
			l.Close()
			return nil, fmt.Errorf("function object %q: %w", name, err)
		}
		controls, err := ReadControls(sub)
		if err != nil {
			l.Close()
			return nil, fmt.Errorf("function object %q: %w", name, err)
		}
		obj, err := New(Spec{
			Name:   name,
			Dict:   sub,
			Region: region,
			Output: out,
			Logger: logger.With(zap.String("function", name)),
		})
		if err != nil {
			l.Close()
			return nil, err
		}
		l.entries = append(l.entries, &entry{obj: obj, controls: controls})
		logger.Debug("Function object constructed",
			zap.String("function", name),
			zap.String("type", obj.Type()),
			zap.Bool("enabled", controls.Enabled))
	}
	return l, nil
}

// SetObserver installs o to receive phase timings. nil disables reporting.
func (l *List) SetObserver(o Observer) {
	l.observer = o
}

// Len returns the number of function objects.
func (l *List) Len() int {
	return len(l.entries)
}

// Names returns the object names in execution order.
func (l *List) Names() []string {
	names := make([]string, len(l.entries))
	for i, e := range l.entries {
		names[i] = e.obj.Name()
	}
	return names
}

// Step executes, then writes, every enabled object whose controls fire at the
// current time index. A write only follows an execute in the same step. The
// first error stops the step and is returned wrapped with the object name.
func (l *List) Step(ctx context.Context) error {
	index := l.region.Clock.Index()
	now := l.region.Clock.Value()

	for _, e := range l.entries {
		e.executed = false
	}
	for _, e := range l.entries {
		if !e.controls.Enabled || !e.controls.Execute.Fires(index) {
			continue
		}
		name := e.obj.Name()

		if err := l.run(ctx, e.obj.Execute, name, PhaseExecute, now); err != nil {
			return fmt.Errorf("function object %q: execute: %w", name, err)
		}
		e.executed = true
		if !e.controls.Write.Fires(index) {
			continue
		}
		if err := l.run(ctx, e.obj.Write, name, PhaseWrite, now); err != nil {
			return fmt.Errorf("function object %q: write: %w", name, err)
		}
	}
	return nil
}

func (l *List) run(ctx context.Context, fn func(context.Context) error, name, phase string, now float64) error {
	start := time.Now()
	err := fn(ctx)
	if l.observer != nil {
		l.observer.ObservePhase(name, phase, now, time.Since(start), err)
	}
	return err
}

// Read re-reads every object whose sub-dictionary is present in functions.
// Every dictionary is checked before any object is reconfigured, so a
// failing entry leaves the whole list on its previous configuration.
// Entries added or removed since construction are logged and ignored.
func (l *List) Read(functions *dictionary.Dict) error {
	type update struct {
		e        *entry
		sub      *dictionary.Dict
		controls Controls
	}
	known := make(map[string]bool, len(l.entries))
	updates := make([]update, 0, len(l.entries))
	for _, e := range l.entries {
		name := e.obj.Name()
		known[name] = true
		if !functions.IsDict(name) {
			l.logger.Warn("Function object removed from dictionary; keeping previous configuration",
				zap.String("function", name))
			continue
		}
		sub, err := functions.SubDict(name)
		if err != nil {
			return fmt.Errorf("function object %q: %w", name, err)
		}
		controls, err := ReadControls(sub)
		if err != nil {
			return fmt.Errorf("function object %q: %w", name, err)
		}
		if v, ok := e.obj.(ConfigValidator); ok {
			if err := v.ValidateConfig(sub); err != nil {
				return fmt.Errorf("function object %q: read: %w", name, err)
			}
		}
		updates = append(updates, update{e: e, sub: sub, controls: controls})
	}

	for _, u := range updates {
		if err := u.e.obj.Read(u.sub); err != nil {
			return fmt.Errorf("function object %q: read: %w", u.e.obj.Name(), err)
		}
		u.e.controls = u.controls
	}
	for _, name := range functions.Keys() {
		if !known[name] {
			l.logger.Warn("New function object ignored until restart", zap.String("function", name))
		}
	}
	return nil
}

// Results merges the latest results of every Reporter, keyed
// "<object>/<result>".
func (l *List) Results() map[string]float64 {
	return l.results(false)
}

// StepResults is like Results but only includes objects that executed in
// the latest step.
func (l *List) StepResults() map[string]float64 {
	return l.results(true)
}

func (l *List) results(executedOnly bool) map[string]float64 {
	out := make(map[string]float64)
	for _, e := range l.entries {
		if executedOnly && !e.executed {
			continue
		}
		r, ok := e.obj.(Reporter)
		if !ok {
			continue
		}
		for k, v := range r.Results() {
			out[e.obj.Name()+"/"+k] = v
		}
	}
	return out
}

// ResultKeys returns the keys of Results, sorted.
func (l *List) ResultKeys() []string {
	res := l.Results()
	keys := make([]string, 0, len(res))
	for k := range res {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Close closes every object and joins their errors.
func (l *List) Close() error {
	var errs []error
	for _, e := range l.entries {
		if err := e.obj.Close(); err != nil && !errors.Is(err, ErrTerminated) {
			errs = append(errs, fmt.Errorf("function object %q: %w", e.obj.Name(), err))
		}
	}
	return errors.Join(errs...)
}

type discardOpener struct{}

func (discardOpener) Open(string, string) (series.Writer, error) {
	return series.Discard, nil
}
