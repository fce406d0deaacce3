// Package logging builds the application logger: colored console output for
// people watching a run and a rotating JSON file for later analysis.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects the logger outputs.
type Config struct {
	Development bool
	FilePath    string
	// Level overrides the mode default when set.
	Level *zapcore.Level
	File  FileWriterConfig
	// Console defaults to stdout.
	Console zapcore.WriteSyncer
}

// Logger owns the application's zap logger and its adjustable level.
// Packages below main take the *zap.Logger returned by Zap.
type Logger struct {
	zap         *zap.Logger
	level       zap.AtomicLevel
	development bool
	filePath    string
}

// NewLogger creates a logger writing to the console and to logFilePath.
//
// Example:
//
//	logger, err := logging.NewLogger(cfg.DevMode, cfg.LogFile)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer logger.Sync()
func NewLogger(isDevelopment bool, logFilePath string) (*Logger, error) {
	return NewLoggerWithConfig(Config{
		Development: isDevelopment,
		FilePath:    logFilePath,
		File:        DefaultFileWriterConfig(),
	})
}

// NewLoggerWithConfig creates a logger from cfg. The log file is opened
// eagerly so a bad path is reported here rather than on the first entry.
func NewLoggerWithConfig(cfg Config) (*Logger, error) {
	f, err := os.OpenFile(cfg.FilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	f.Close()

	level := zap.NewAtomicLevelAt(DefaultLevel(cfg.Development))
	if cfg.Level != nil {
		level.SetLevel(*cfg.Level)
	}
	console := cfg.Console
	if console == nil {
		console = zapcore.Lock(os.Stdout)
	}

	core := NewMultiCore(level, console, NewFileWriter(cfg.FilePath, cfg.File), cfg.Development)
	return &Logger{
		zap:         zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)),
		level:       level,
		development: cfg.Development,
		filePath:    cfg.FilePath,
	}, nil
}

// Zap returns the underlying logger.
func (l *Logger) Zap() *zap.Logger {
	return l.zap
}

// Named returns a child zap logger, e.g. logger.Named("db").
func (l *Logger) Named(name string) *zap.Logger {
	return l.zap.Named(name)
}

// With returns a child zap logger carrying fields.
func (l *Logger) With(fields ...zap.Field) *zap.Logger {
	return l.zap.With(fields...)
}

// SetLevel changes the level of every logger derived from l.
func (l *Logger) SetLevel(level zapcore.Level) {
	l.level.SetLevel(level)
}

// Level returns the current level.
func (l *Logger) Level() zapcore.Level {
	return l.level.Level()
}

// IsDevelopment reports whether console output is human-readable.
func (l *Logger) IsDevelopment() bool {
	return l.development
}

// LogFilePath returns the JSON log file location.
func (l *Logger) LogFilePath() string {
	return l.filePath
}

// Sync flushes buffered entries. Safe on a nil Logger.
func (l *Logger) Sync() error {
	if l == nil || l.zap == nil {
		return nil
	}
	return l.zap.Sync()
}
