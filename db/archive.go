package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"foammonitor/solver"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SampleArchive stores the results of one run. It implements
// solver.SampleSink.
type SampleArchive struct {
	repo   *Repository
	runID  string
	logger *zap.Logger

	mu       sync.Mutex
	finished bool
}

var _ solver.SampleSink = (*SampleArchive)(nil)

// StartRun inserts a new run row with a fresh id and returns its archive.
func StartRun(ctx context.Context, repo *Repository, caseName string, partitions int, logger *zap.Logger) (*SampleArchive, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	id := uuid.NewString()
	if err := repo.InsertRun(ctx, RunRecord{ID: id, CaseName: caseName, Partitions: partitions}); err != nil {
		return nil, err
	}
	logger.Info("Run archived", zap.String("run_id", id), zap.String("case", caseName))
	return &SampleArchive{repo: repo, runID: id, logger: logger}, nil
}

// RunID returns the archived run id.
func (a *SampleArchive) RunID() string {
	return a.runID
}

// RecordSample stores every value of s. Keys are "object/result"; a key
// without a slash is stored with an empty result name.
func (a *SampleArchive) RecordSample(ctx context.Context, s solver.Sample) error {
	var errs []error
	for key, value := range s.Values {
		object, result, _ := strings.Cut(key, "/")
		err := a.repo.InsertSample(ctx, SampleRecord{
			RunID:     a.runID,
			Object:    object,
			Result:    result,
			Time:      s.Time,
			TimeIndex: s.Index,
			Value:     value,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

// Finish records the final status from the run error. context.Canceled marks
// the run interrupted. Only the first call has an effect.
func (a *SampleArchive) Finish(ctx context.Context, runErr error) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.finished {
		return nil
	}
	a.finished = true

	status, msg := RunCompleted, ""
	switch {
	case errors.Is(runErr, context.Canceled):
		status = RunInterrupted
	case runErr != nil:
		status, msg = RunFailed, runErr.Error()
	}
	if err := a.repo.FinishRun(ctx, a.runID, status, msg); err != nil {
		return err
	}
	a.logger.Info("Run finished", zap.String("run_id", a.runID), zap.String("status", string(status)))
	return nil
}
