package functionobject

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"foammonitor/dictionary"
	"foammonitor/fields"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap/zaptest"
	"gonum.org/v1/gonum/spatial/r3"
)

const fakeType = "testCounter"

var registerFake sync.Once

// counter is a FunctionObject that records the calls it receives.
type counter struct {
	name     string
	calls    *[]string
	failOn   string
	level    float64
	closed   bool
	executed int
}

func (c *counter) Name() string { return c.name }
func (c *counter) Type() string { return fakeType }

func (c *counter) Read(dict *dictionary.Dict) error {
	if c.closed {
		return ErrTerminated
	}
	if _, err := dict.ReadIfPresent("level", &c.level); err != nil {
		return err
	}
	if _, err := dict.ReadIfPresent("failOn", &c.failOn); err != nil {
		return err
	}
	*c.calls = append(*c.calls, c.name+".read")
	return nil
}

func (c *counter) ValidateConfig(dict *dictionary.Dict) error {
	level, failOn := c.level, c.failOn
	if _, err := dict.ReadIfPresent("level", &level); err != nil {
		return err
	}
	_, err := dict.ReadIfPresent("failOn", &failOn)
	return err
}

func (c *counter) Execute(context.Context) error {
	if c.failOn == PhaseExecute {
		return &fields.LookupError{Name: "alpha.missing"}
	}
	c.executed++
	*c.calls = append(*c.calls, c.name+".execute")
	return nil
}

func (c *counter) Write(context.Context) error {
	if c.failOn == PhaseWrite {
		return errors.New("disk full")
	}
	*c.calls = append(*c.calls, c.name+".write")
	return nil
}

func (c *counter) Results() map[string]float64 {
	return map[string]float64{"executed": float64(c.executed), "level": c.level}
}

func (c *counter) Close() error {
	if c.closed {
		return ErrTerminated
	}
	c.closed = true
	*c.calls = append(*c.calls, c.name+".close")
	return nil
}

// calls is shared by every counter built in a test; tests in this package
// do not run in parallel.
var calls []string

func setupFake(t *testing.T) {
	t.Helper()
	registerFake.Do(func() {
		Register(fakeType, func(spec Spec) (FunctionObject, error) {
			c := &counter{name: spec.Name, calls: &calls}
			if err := c.Read(spec.Dict); err != nil {
				return nil, err
			}
			return c, nil
		})
	})
	calls = nil
}

type stepClock struct {
	index int
}

func (c *stepClock) Value() float64 { return float64(c.index) * 0.1 }
func (c *stepClock) Index() int     { return c.index }

type nopGeometry struct{}

func (nopGeometry) CellVolumes() []float64 { return nil }

type nopGradient struct{}

func (nopGradient) Grad(*fields.ScalarField) ([]r3.Vec, error) { return nil, nil }

type nopReducer struct{}

func (nopReducer) SumAll(v float64) (float64, error) { return v, nil }

func testRegion(clock Clock) Region {
	return Region{
		Fields:   fields.NewRegistry(),
		Geometry: nopGeometry{},
		Gradient: nopGradient{},
		Reducer:  nopReducer{},
		Clock:    clock,
	}
}

func mustParse(t *testing.T, src string) *dictionary.Dict {
	t.Helper()
	d, err := dictionary.Parse([]byte(src))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	return d
}

type observed struct {
	object, phase string
	failed        bool
}

type phaseLog struct {
	entries []observed
}

func (p *phaseLog) ObservePhase(object, phase string, _ float64, _ time.Duration, err error) {
	p.entries = append(p.entries, observed{object: object, phase: phase, failed: err != nil})
}

func TestNewList_BuildsInDictionaryOrder(t *testing.T) {
	setupFake(t)
	functions := mustParse(t, `
zeta:
  type: testCounter
alpha:
  type: testCounter
`)
	l, err := NewList(functions, testRegion(&stepClock{}), nil, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewList() error: %v", err)
	}
	defer l.Close()

	if diff := cmp.Diff([]string{"zeta", "alpha"}, l.Names()); diff != "" {
		t.Errorf("Names() mismatch (-want +got):\n%s", diff)
	}
}

func TestNewList_UnknownType(t *testing.T) {
	setupFake(t)
	functions := mustParse(t, `
good:
  type: testCounter
bad:
  type: surfaceTension
`)
	_, err := NewList(functions, testRegion(&stepClock{}), nil, zaptest.NewLogger(t))

	var unknown *UnknownTypeError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownTypeError, got %v", err)
	}
	if unknown.Type != "surfaceTension" || unknown.Name != "bad" {
		t.Errorf("UnknownTypeError = %+v", unknown)
	}
	if !strings.Contains(err.Error(), fakeType) {
		t.Errorf("error should list registered types: %v", err)
	}
	// the object built before the failure is closed
	if diff := cmp.Diff([]string{"good.read", "good.close"}, calls); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestNewList_MissingType(t *testing.T) {
	setupFake(t)
	functions := mustParse(t, `
noType:
  phaseName: water
`)
	_, err := NewList(functions, testRegion(&stepClock{}), nil, zaptest.NewLogger(t))
	var missing *dictionary.MissingKeyError
	if !errors.As(err, &missing) || missing.Key != "type" {
		t.Errorf("expected missing type entry, got %v", err)
	}
}

func TestNewList_IncompleteRegion(t *testing.T) {
	setupFake(t)
	region := testRegion(&stepClock{})
	region.Reducer = nil
	_, err := NewList(mustParse(t, "a:\n  type: testCounter\n"), region, nil, zaptest.NewLogger(t))
	if err == nil || !strings.Contains(err.Error(), "reducer") {
		t.Errorf("expected missing reducer error, got %v", err)
	}
}

func TestList_StepHonoursControls(t *testing.T) {
	setupFake(t)
	functions := mustParse(t, `
every:
  type: testCounter
sparse:
  type: testCounter
  executeInterval: 2
  writeControl: none
off:
  type: testCounter
  enabled: false
`)
	clock := &stepClock{}
	l, err := NewList(functions, testRegion(clock), nil, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewList() error: %v", err)
	}
	defer l.Close()
	obs := &phaseLog{}
	l.SetObserver(obs)

	calls = nil
	for clock.index = 1; clock.index <= 2; clock.index++ {
		if err := l.Step(context.Background()); err != nil {
			t.Fatalf("Step() at index %d error: %v", clock.index, err)
		}
	}

	want := []string{
		"every.execute", "every.write",
		"every.execute", "every.write", "sparse.execute",
	}
	if diff := cmp.Diff(want, calls); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
	if len(obs.entries) != len(want) {
		t.Errorf("observer saw %d phases, want %d", len(obs.entries), len(want))
	}
}

func TestList_StepStopsOnExecuteError(t *testing.T) {
	setupFake(t)
	functions := mustParse(t, `
first:
  type: testCounter
  failOn: execute
second:
  type: testCounter
`)
	l, err := NewList(functions, testRegion(&stepClock{index: 1}), nil, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewList() error: %v", err)
	}
	defer l.Close()
	obs := &phaseLog{}
	l.SetObserver(obs)

	calls = nil
	err = l.Step(context.Background())

	var lookupErr *fields.LookupError
	if !errors.As(err, &lookupErr) {
		t.Fatalf("expected wrapped LookupError, got %v", err)
	}
	if !strings.Contains(err.Error(), `"first"`) {
		t.Errorf("error should name the object: %v", err)
	}
	if len(calls) != 0 {
		t.Errorf("no call should follow the failure, got %v", calls)
	}
	if diff := cmp.Diff([]observed{{object: "first", phase: PhaseExecute, failed: true}}, obs.entries,
		cmp.AllowUnexported(observed{})); diff != "" {
		t.Errorf("observer mismatch (-want +got):\n%s", diff)
	}
}

func TestList_ReadReconfigures(t *testing.T) {
	setupFake(t)
	l, err := NewList(mustParse(t, "a:\n  type: testCounter\n  level: 1\n"),
		testRegion(&stepClock{index: 1}), nil, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewList() error: %v", err)
	}
	defer l.Close()

	updated := mustParse(t, `
a:
  type: testCounter
  level: 2
  writeControl: none
b:
  type: testCounter
`)
	if err := l.Read(updated); err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	if l.Len() != 1 {
		t.Errorf("Len() = %d; new entries must not be built on re-read", l.Len())
	}

	calls = nil
	if err := l.Step(context.Background()); err != nil {
		t.Fatalf("Step() error: %v", err)
	}
	if diff := cmp.Diff([]string{"a.execute"}, calls); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
	want := map[string]float64{"a/executed": 1, "a/level": 2}
	if diff := cmp.Diff(want, l.Results()); diff != "" {
		t.Errorf("Results() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"a/executed", "a/level"}, l.ResultKeys()); diff != "" {
		t.Errorf("ResultKeys() mismatch (-want +got):\n%s", diff)
	}
}

func TestList_ReadRejectsBadControl(t *testing.T) {
	setupFake(t)
	l, err := NewList(mustParse(t, "a:\n  type: testCounter\n"),
		testRegion(&stepClock{index: 1}), nil, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewList() error: %v", err)
	}
	defer l.Close()

	if err := l.Read(mustParse(t, "a:\n  type: testCounter\n  executeInterval: 0\n")); err == nil {
		t.Error("expected error for executeInterval 0")
	}
}

func TestList_ReadAppliesAllOrNothing(t *testing.T) {
	setupFake(t)
	l, err := NewList(mustParse(t, "a:\n  type: testCounter\n  level: 1\nb:\n  type: testCounter\n"),
		testRegion(&stepClock{index: 1}), nil, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewList() error: %v", err)
	}
	defer l.Close()

	tests := []struct {
		name string
		src  string
	}{
		{"mistyped option", "a:\n  type: testCounter\n  level: 5\nb:\n  type: testCounter\n  level: [1, 2]\n"},
		{"bad control", "a:\n  type: testCounter\n  level: 5\nb:\n  type: testCounter\n  writeInterval: 0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls = nil
			if err := l.Read(mustParse(t, tt.src)); err == nil || !strings.Contains(err.Error(), `"b"`) {
				t.Fatalf("Read() error = %v, want failure naming b", err)
			}
			if len(calls) != 0 {
				t.Errorf("no object should be reconfigured, got %v", calls)
			}
			if got := l.Results()["a/level"]; got != 1 {
				t.Errorf("a/level = %v after failed Read, want 1", got)
			}
		})
	}
}

func TestList_StepResultsOnlyExecutedObjects(t *testing.T) {
	setupFake(t)
	functions := mustParse(t, `
every:
  type: testCounter
sparse:
  type: testCounter
  executeInterval: 2
`)
	clock := &stepClock{}
	l, err := NewList(functions, testRegion(clock), nil, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewList() error: %v", err)
	}
	defer l.Close()

	want := map[int][]string{
		1: {"every/executed", "every/level"},
		2: {"every/executed", "every/level", "sparse/executed", "sparse/level"},
		3: {"every/executed", "every/level"},
	}
	for clock.index = 1; clock.index <= 3; clock.index++ {
		if err := l.Step(context.Background()); err != nil {
			t.Fatalf("Step() at index %d error: %v", clock.index, err)
		}
		var keys []string
		for k := range l.StepResults() {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		if diff := cmp.Diff(want[clock.index], keys); diff != "" {
			t.Errorf("StepResults() keys at index %d (-want +got):\n%s", clock.index, diff)
		}
	}
	// Results keeps the last value of every object
	if _, ok := l.Results()["sparse/executed"]; !ok {
		t.Error("Results() dropped an object that did not execute this step")
	}
}

func TestList_CloseIsIdempotent(t *testing.T) {
	setupFake(t)
	l, err := NewList(mustParse(t, "a:\n  type: testCounter\n"),
		testRegion(&stepClock{}), nil, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewList() error: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Errorf("second Close() error: %v", err)
	}
}
