package solver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"foammonitor/dictionary"
	"foammonitor/fields"
	"foammonitor/functionobject"
	"foammonitor/fvc"
	"foammonitor/logging"
	"foammonitor/mesh"
	"foammonitor/parallel"
	"foammonitor/series"

	"go.uber.org/zap"
)

// Sample is the set of function object results at the end of one step.
type Sample struct {
	Time   float64
	Index  int
	Values map[string]float64
}

// SampleSink receives one Sample per completed step.
type SampleSink interface {
	RecordSample(ctx context.Context, s Sample) error
}

// SampleSinks forwards each sample to every sink and joins their errors.
type SampleSinks []SampleSink

func (ss SampleSinks) RecordSample(ctx context.Context, s Sample) error {
	var errs []error
	for _, sink := range ss {
		if err := sink.RecordSample(ctx, s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// StepObserver is told how long each step took.
type StepObserver interface {
	ObserveStep(index int, simTime float64, d time.Duration, err error)
}

// StepGuard runs each step as a tracked operation. shutdown.Manager
// satisfies it.
type StepGuard interface {
	WrapOperation(ctx context.Context, name string, fn func(context.Context) error) error
}

// Options configures a Runner.
type Options struct {
	// CaseFile is re-read between steps when the case is runTimeModifiable.
	CaseFile string
	// Root is the case directory; series go under Root/postProcessing.
	Root string
	// Partitions overrides the case decomposition when positive.
	Partitions int

	Logger *zap.Logger
	Sink   SampleSink
	// PhaseObserver receives function object timings from the master partition.
	PhaseObserver functionobject.Observer
	StepObserver  StepObserver
	Guard         StepGuard
}

type partition struct {
	rank   int
	mesh   *mesh.Mesh
	fields *fields.Registry
	list   *functionobject.List
}

// Runner advances a case over in-process partitions. Step and Run are called
// from a single goroutine; each step fans out one goroutine per partition.
type Runner struct {
	c      *Case
	opts   Options
	logger *zap.Logger

	time  *Time
	world *parallel.World
	parts []*partition

	caseModTime time.Time
}

// NewRunner decomposes the case mesh, sets the initial fields and builds the
// function objects of every partition.
func NewRunner(c *Case, opts Options) (*Runner, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	n := c.Decomposition.Partitions
	if opts.Partitions > 0 {
		n = opts.Partitions
	}
	block := c.Mesh.Block()
	if err := block.ValidatePartitions(n); err != nil {
		return nil, fmt.Errorf("decomposition: %w", err)
	}
	functions, err := c.FunctionsDict()
	if err != nil {
		return nil, err
	}

	world, err := parallel.NewWorld(n)
	if err != nil {
		return nil, err
	}
	r := &Runner{
		c:      c,
		opts:   opts,
		logger: logger,
		time:   NewTime(c.Time),
		world:  world,
	}

	for rank := 0; rank < n; rank++ {
		p, err := r.buildPartition(rank, functions)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("rank %d: %w", rank, err)
		}
		r.parts = append(r.parts, p)
	}

	if opts.CaseFile != "" {
		if info, err := os.Stat(opts.CaseFile); err == nil {
			r.caseModTime = info.ModTime()
		}
	}

	volume := 0.0
	for _, p := range r.parts {
		volume += p.mesh.TotalVolume()
	}
	logger.Info("Case decomposed",
		zap.String("case", c.Name),
		zap.Int("partitions", n),
		zap.Int("cells", block.NCells()),
		zap.Float64("volume", volume),
		zap.Strings("functions", r.parts[0].list.Names()))
	return r, nil
}

func (r *Runner) buildPartition(rank int, functions *dictionary.Dict) (*partition, error) {
	m, err := r.c.Mesh.Block().Partition(rank, r.world.Size())
	if err != nil {
		return nil, err
	}
	reg := fields.NewRegistry()
	if err := SetFields(reg, m, r.c.Fields, r.time.Value()); err != nil {
		return nil, err
	}

	comm := r.world.Comm(rank)
	region := functionobject.Region{
		Fields:   reg,
		Geometry: m,
		Gradient: fvc.NewOperator(m, comm),
		Reducer:  comm,
		Clock:    r.time,
	}
	out := series.Factory{
		Root:      r.opts.Root,
		StartTime: r.time.Start(),
		Precision: r.c.Time.WritePrecision,
		Master:    comm.Master(),
	}

	list, err := functionobject.NewList(functions, region, out, r.logger.With(logging.RankField(rank)))
	if err != nil {
		return nil, err
	}
	if comm.Master() && r.opts.PhaseObserver != nil {
		list.SetObserver(r.opts.PhaseObserver)
	}
	return &partition{rank: rank, mesh: m, fields: reg, list: list}, nil
}

// Time returns the simulation clock.
func (r *Runner) Time() *Time { return r.time }

// Partitions returns the number of partitions.
func (r *Runner) Partitions() int { return len(r.parts) }

// Case returns the case being run.
func (r *Runner) Case() *Case { return r.c }

// Results returns the latest results of the master partition.
func (r *Runner) Results() map[string]float64 {
	if len(r.parts) == 0 {
		return map[string]float64{}
	}
	return r.parts[0].list.Results()
}

// StepResults returns the master partition's results of the objects that
// executed in the latest step.
func (r *Runner) StepResults() map[string]float64 {
	if len(r.parts) == 0 {
		return map[string]float64{}
	}
	return r.parts[0].list.StepResults()
}

// ResultKeys returns the sorted result keys reported so far.
func (r *Runner) ResultKeys() []string {
	if len(r.parts) == 0 {
		return nil
	}
	return r.parts[0].list.ResultKeys()
}

// Run steps until the end time, the first error, or ctx is cancelled.
// Cancellation is only observed between steps.
func (r *Runner) Run(ctx context.Context) error {
	for r.time.Running() {
		if err := ctx.Err(); err != nil {
			return err
		}
		var err error
		if r.opts.Guard != nil {
			err = r.opts.Guard.WrapOperation(ctx, "time-step", r.Step)
		} else {
			err = r.Step(ctx)
		}
		if err != nil {
			return err
		}
	}
	r.logger.Info("End of run",
		zap.String("case", r.c.Name),
		zap.String("time", r.time.TimeName()),
		zap.Int("steps", r.time.Index()),
		zap.Strings("results", r.ResultKeys()))
	return nil
}

// Step re-reads the case if it changed, advances time and runs every
// partition's function objects. After a failed step the run is aborted and
// every later Step fails.
func (r *Runner) Step(ctx context.Context) error {
	if err := r.world.Err(); err != nil {
		return err
	}
	if err := r.reloadIfModified(); err != nil {
		return err
	}

	r.time.Advance()
	start := time.Now()
	err := r.runPartitions(ctx)
	elapsed := time.Since(start)

	if r.opts.StepObserver != nil {
		r.opts.StepObserver.ObserveStep(r.time.Index(), r.time.Value(), elapsed, err)
	}
	if err != nil {
		r.logger.Error("Step failed",
			append(logging.StepFields(r.time.TimeName(), r.time.Index()), zap.Error(err))...)
		return err
	}

	results := r.StepResults()
	r.logger.Debug("Step complete",
		append(logging.StepFields(r.time.TimeName(), r.time.Index()),
			zap.Duration("duration", elapsed),
			zap.Any("results", results))...)

	if r.opts.Sink != nil && len(results) > 0 {
		s := Sample{Time: r.time.Value(), Index: r.time.Index(), Values: results}
		if err := r.opts.Sink.RecordSample(ctx, s); err != nil {
			r.logger.Warn("Failed to record sample",
				append(logging.StepFields(r.time.TimeName(), r.time.Index()), zap.Error(err))...)
		}
	}
	return nil
}

// runPartitions runs one step on every partition concurrently. The first
// failing rank aborts the world so ranks blocked in a collective return.
func (r *Runner) runPartitions(ctx context.Context) error {
	errs := make([]error, len(r.parts))
	var wg sync.WaitGroup
	for i, p := range r.parts {
		wg.Add(1)
		go func(i int, p *partition) {
			defer wg.Done()
			err := SetFields(p.fields, p.mesh, r.c.Fields, r.time.Value())
			if err == nil {
				err = p.list.Step(ctx)
			}
			if err != nil {
				r.world.Abort(err)
				errs[i] = err
			}
		}(i, p)
	}
	wg.Wait()

	return rootCause(errs)
}

// rootCause prefers the error that caused the abort over the abort errors it
// produced on other ranks.
func rootCause(errs []error) error {
	var first error
	firstRank := -1
	for rank, err := range errs {
		if err == nil {
			continue
		}
		var abortErr *parallel.AbortError
		if !errors.As(err, &abortErr) {
			return fmt.Errorf("rank %d: %w", rank, err)
		}
		if first == nil {
			first, firstRank = err, rank
		}
	}
	if first != nil {
		return fmt.Errorf("rank %d: %w", firstRank, first)
	}
	return nil
}

// reloadIfModified re-reads the function object dictionaries when the case
// file changed. It runs on the coordinator only, before any partition starts
// the step, so every partition sees the same configuration.
func (r *Runner) reloadIfModified() error {
	if !r.c.RunTimeModifiable || r.opts.CaseFile == "" {
		return nil
	}
	info, err := os.Stat(r.opts.CaseFile)
	if err != nil || !info.ModTime().After(r.caseModTime) {
		return nil
	}

	updated, err := LoadCase(r.opts.CaseFile)
	if err != nil {
		r.logger.Warn("Modified case file is invalid; keeping current configuration", zap.Error(err))
		return nil
	}
	r.caseModTime = info.ModTime()

	functions, err := updated.FunctionsDict()
	if err != nil {
		return err
	}
	for _, p := range r.parts {
		if err := p.list.Read(functions); err != nil {
			return fmt.Errorf("rank %d: %w", p.rank, err)
		}
	}
	r.c.Functions = updated.Functions
	r.logger.Info("Re-read function objects", zap.String("case_file", r.opts.CaseFile))
	return nil
}

// Close closes the function objects of every partition.
func (r *Runner) Close() error {
	var errs []error
	for _, p := range r.parts {
		if err := p.list.Close(); err != nil {
			errs = append(errs, fmt.Errorf("rank %d: %w", p.rank, err))
		}
	}
	r.parts = nil
	return errors.Join(errs...)
}
