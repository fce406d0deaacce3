package shutdown

import (
	"context"
	"errors"
	"io"
	"syscall"

	"foammonitor/core"

	"go.uber.org/zap"
)

// CloseFunctionObjects closes the series files of every partition.
func CloseFunctionObjects(logger *zap.Logger, runner io.Closer) core.ShutdownFunc {
	return func(ctx context.Context) error {
		if err := runner.Close(); err != nil {
			return err
		}
		logger.Debug("Closed function objects")
		return nil
	}
}

// RunFinisher records the final status of an archived run.
type RunFinisher interface {
	Finish(ctx context.Context, runErr error) error
}

// FinishArchive marks the archived run with the outcome returned by result.
// main normally finishes the run itself; this covers early exits.
func FinishArchive(logger *zap.Logger, archive RunFinisher, result func() error) core.ShutdownFunc {
	return func(ctx context.Context) error {
		var runErr error
		if result != nil {
			runErr = result()
		}
		return archive.Finish(ctx, runErr)
	}
}

// WriterStats is implemented by db.AsyncWriter.
type WriterStats interface {
	io.Closer
	Written() int64
	Dropped() int64
	Failed() int64
}

// StopAsyncWriter drains queued sample writes and logs the writer totals.
func StopAsyncWriter(logger *zap.Logger, w WriterStats) core.ShutdownFunc {
	return func(ctx context.Context) error {
		err := w.Close()
		fields := []zap.Field{
			zap.Int64("written", w.Written()),
			zap.Int64("dropped", w.Dropped()),
			zap.Int64("failed", w.Failed()),
		}
		if w.Dropped() > 0 || w.Failed() > 0 {
			logger.Warn("Sample writer stopped with losses", fields...)
		} else {
			logger.Info("Sample writer stopped", fields...)
		}
		return err
	}
}

// CloseDatabase closes the run database.
func CloseDatabase(logger *zap.Logger, database io.Closer) core.ShutdownFunc {
	return func(ctx context.Context) error {
		if err := database.Close(); err != nil {
			return err
		}
		logger.Debug("Closed run database")
		return nil
	}
}

// Syncer flushes buffered log entries.
type Syncer interface {
	Sync() error
}

// SyncLogger flushes the logger. Sync on a terminal fails with EINVAL or
// ENOTTY on some platforms; those errors are ignored.
func SyncLogger(l Syncer) core.ShutdownFunc {
	return func(ctx context.Context) error {
		err := l.Sync()
		if errors.Is(err, syscall.EINVAL) || errors.Is(err, syscall.ENOTTY) {
			return nil
		}
		return err
	}
}
