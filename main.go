package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"foammonitor/core"
	"foammonitor/core/validation"
	"foammonitor/db"
	"foammonitor/fields"
	"foammonitor/functionobject"
	"foammonitor/functionobject/interfacearea"
	"foammonitor/logging"
	"foammonitor/metrics"
	"foammonitor/shutdown"
	"foammonitor/solver"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

var registerOnce sync.Once

// registerFunctionObjects fills the function object table with every type
// this binary ships.
func registerFunctionObjects() {
	registerOnce.Do(func() {
		functionobject.Register(interfacearea.TypeName, interfacearea.New)
	})
}

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		// Use fmt here since logger isn't initialized yet
		fmt.Printf("Warning: .env file not found: %v\n", err)
	}
	os.Exit(run())
}

// run loads the configuration, validates the case and advances it to its end
// time. It returns the process exit code.
func run() int {
	registerFunctionObjects()

	cfg, err := core.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return core.ExitCodeError
	}

	level := logging.ParseLogLevel(cfg.LogLevel, logging.DefaultLevel(cfg.DevMode))
	logger, err := logging.NewLoggerWithConfig(logging.Config{
		Development: cfg.DevMode,
		FilePath:    cfg.LogFile,
		Level:       &level,
		File:        logging.DefaultFileWriterConfig(),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return core.ExitCodeError
	}

	manager := shutdown.NewManager(logger.Named("shutdown"), shutdown.WithTimeout(cfg.ShutdownTimeout))
	manager.Register("logger", shutdown.PriorityLogger, shutdown.SyncLogger(logger))
	defer func() {
		if err := manager.Shutdown(); err != nil {
			fmt.Fprintf(os.Stderr, "Shutdown: %v\n", err)
		}
	}()

	logger.Zap().Info("Configuration loaded",
		zap.String("case_file", cfg.CaseFile),
		zap.String("case_dir", cfg.CaseDir),
		zap.Int("partitions", cfg.Partitions),
		zap.String("log_level", level.String()),
		zap.Bool("archive", cfg.ArchiveEnabled()),
		zap.String("metrics_addr", cfg.MetricsAddr),
		zap.Duration("shutdown_timeout", cfg.ShutdownTimeout),
		zap.Bool("dev_mode", cfg.DevMode),
	)

	result, ok := runStartupValidation(logger, cfg)
	if !ok {
		return core.ExitCodeError
	}

	store := metrics.NewMetricsStore(metrics.DefaultStoreConfig(), time.Now())
	exporter := metrics.NewPrometheusExporter(store)
	sinks := solver.SampleSinks{exporter}

	// runErr is read by the archive handler after the time loop ends.
	var runErr error
	if cfg.ArchiveEnabled() {
		archive, err := openArchive(manager.Context(), cfg, result, logger, manager)
		if err != nil {
			logger.Zap().Error("Failed to open run database", zap.String("path", cfg.RunDBPath), zap.Error(err))
			return core.ExitCodeError
		}
		manager.Register("run-archive", shutdown.PriorityArchive,
			shutdown.FinishArchive(logger.Zap(), archive, func() error { return runErr }))
		sinks = append(sinks, archive)
	}

	runner, err := solver.NewRunner(result.Case, solver.Options{
		CaseFile:      cfg.CaseFile,
		Root:          cfg.CaseDir,
		Partitions:    result.Partitions,
		Logger:        logger.Zap(),
		Sink:          sinks,
		PhaseObserver: exporter,
		StepObserver:  exporter,
		Guard:         manager,
	})
	if err != nil {
		runErr = err
		logger.Zap().Error("Failed to set up the run", zap.Error(err))
		return core.ExitCodeError
	}
	manager.Register("function-objects", shutdown.PriorityFunctionObjects,
		shutdown.CloseFunctionObjects(logger.Zap(), runner))

	if cfg.MetricsEnabled() {
		go func() {
			if err := exporter.Serve(manager.Context(), cfg.MetricsAddr, logger.Named("metrics")); err != nil {
				logger.Zap().Warn("Metrics endpoint stopped", zap.Error(err))
			}
		}()
	}

	manager.Start()
	runErr = runner.Run(manager.Context())
	store.MarkStopped()

	code := exitCodeFor(runErr, manager.ExitCode())
	stepStats := store.StepMetrics()
	summary := []zap.Field{
		zap.String("case", result.Case.Name),
		zap.String("time", runner.Time().TimeName()),
		zap.Int64("steps", stepStats.Steps),
		zap.Duration("avg_step", stepStats.AvgDuration),
		zap.String("health", store.RunStatus().Health),
		zap.Int("exit_code", code),
		zap.String("exit", core.ExitCodeName(code)),
	}
	for object, m := range store.ObjectMetrics() {
		logger.Zap().Debug("Function object totals",
			zap.String("object", object),
			zap.Int64("executions", m.Executions),
			zap.Int64("writes", m.Writes),
			zap.Int64("errors", m.Errors),
			zap.Duration("avg_duration", m.AvgDuration),
		)
	}
	switch {
	case runErr == nil:
		logger.Zap().Info("Run complete", summary...)
	case core.IsSignalExit(code):
		logger.Zap().Info("Run interrupted", summary...)
	default:
		logger.Zap().Error("Run failed", append(summary, zap.Error(runErr))...)
	}
	return code
}

// runStartupValidation runs the startup checks and logs each failure.
// It returns false if any check failed.
func runStartupValidation(logger *logging.Logger, cfg *core.Config) (validation.SuiteResult, bool) {
	logger.Zap().Info("Starting startup validation...")

	result := validation.NewValidationSuite(cfg).
		WithShowProgress(true).
		Validate()

	if !result.Success {
		logger.Zap().Error("Startup validation failed",
			zap.Int("passed", result.PassedSteps),
			zap.Int("failed", result.FailedSteps),
			zap.Duration("duration", result.Duration),
		)
		for _, step := range result.Steps {
			if step.Status == validation.StepFailed {
				logger.Zap().Error("Validation step failed",
					zap.String("step", step.Name),
					zap.String("message", step.Message),
					zap.String("code", core.GetErrorCode(step.Error)),
					zap.Error(step.Error),
				)
			}
		}
		return result, false
	}

	logger.Zap().Info("Startup validation passed",
		zap.Int("checks_passed", result.PassedSteps),
		zap.Duration("duration", result.Duration),
	)
	return result, true
}

// openArchive opens the run database, applies the retention policy and
// records a new run. Cleanup handlers for the writer and the database are
// registered on manager.
func openArchive(ctx context.Context, cfg *core.Config, result validation.SuiteResult, logger *logging.Logger, manager *shutdown.Manager) (*db.SampleArchive, error) {
	database, err := db.NewDatabase(cfg.RunDBPath)
	if err != nil {
		return nil, err
	}
	dbLogger := logger.Named("db")
	manager.Register("run-database", shutdown.PriorityDatabase, shutdown.CloseDatabase(dbLogger, database))

	cleaned, err := database.Cleanup(ctx, cfg.RunDBRetentionDays)
	if err != nil {
		dbLogger.Warn("Run retention cleanup failed", zap.Error(err))
	} else if cleaned.RunsDeleted > 0 {
		dbLogger.Info("Removed expired runs",
			zap.Int64("runs", cleaned.RunsDeleted),
			zap.Int64("samples", cleaned.SamplesDeleted),
			zap.Duration("duration", cleaned.Duration),
		)
	}

	writerConfig := db.DefaultAsyncWriterConfig()
	writerConfig.OnError = func(err error) {
		dbLogger.Warn("Sample write failed", zap.Error(err))
	}
	writer := db.NewAsyncWriterWithConfig(db.NewRepository(database, nil).CreateAsyncWriteHandler(), writerConfig)
	writer.Start()
	manager.Register("sample-writer", shutdown.PriorityAsyncWriter, shutdown.StopAsyncWriter(dbLogger, writer))

	return db.StartRun(ctx, db.NewRepository(database, writer), result.Case.Name, result.Partitions, dbLogger)
}

// exitCodeFor maps the run outcome to a process exit code. signalCode is
// the code of the first shutdown signal, or core.ExitCodeSuccess.
func exitCodeFor(runErr error, signalCode int) int {
	switch {
	case runErr == nil:
		return core.ExitCodeSuccess
	case errors.Is(runErr, context.Canceled) && signalCode != core.ExitCodeSuccess:
		return signalCode
	case errors.Is(runErr, shutdown.ErrTrackerClosed) && signalCode != core.ExitCodeSuccess:
		return signalCode
	case errors.Is(runErr, fields.ErrNotFound):
		return core.ExitCodeLookup
	default:
		return core.ExitCodeError
	}
}
