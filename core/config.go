package core

import (
	"os"
	"path/filepath"
	"time"
)

// Defaults applied by LoadConfig.
const (
	DefaultLogFile            = "foammonitor.log"
	DefaultRetentionDays      = 30
	DefaultShutdownTimeoutSec = 30
)

// Config holds the process settings read from the environment. Everything
// about the simulation itself lives in the case file.
type Config struct {
	// CaseFile is the YAML case description.
	CaseFile string
	// CaseDir receives postProcessing/ output. Defaults to the case file's directory.
	CaseDir string

	DevMode  bool
	LogFile  string
	LogLevel string

	// RunDBPath enables the sqlite run archive when set.
	RunDBPath          string
	RunDBRetentionDays int

	// MetricsAddr enables the Prometheus listener when set, e.g. ":9464".
	MetricsAddr string

	ShutdownTimeout time.Duration

	// Partitions overrides the case decomposition when positive.
	Partitions int
}

// LoadConfig reads the configuration from environment variables. Only
// CASE_FILE is required.
func LoadConfig() (*Config, error) {
	caseFile := GetEnvOrDefault("CASE_FILE", "")
	if caseFile == "" {
		return nil, ErrMissingConfig("CASE_FILE")
	}

	caseDir := GetEnvOrDefault("CASE_DIR", filepath.Dir(caseFile))

	partitions, err := LookupIntEnv("PARTITIONS", 0)
	if err != nil {
		return nil, err
	}
	if partitions < 0 {
		return nil, ErrInvalidConfig("PARTITIONS", os.Getenv("PARTITIONS"), "must not be negative")
	}

	retention, err := LookupIntEnv("RUN_DB_RETENTION_DAYS", DefaultRetentionDays)
	if err != nil {
		return nil, err
	}
	if retention < 0 {
		return nil, ErrInvalidConfig("RUN_DB_RETENTION_DAYS", os.Getenv("RUN_DB_RETENTION_DAYS"), "must not be negative")
	}

	timeout := ParseDurationEnv("SHUTDOWN_TIMEOUT", DefaultShutdownTimeoutSec)
	if timeout <= 0 {
		return nil, ErrInvalidConfig("SHUTDOWN_TIMEOUT", os.Getenv("SHUTDOWN_TIMEOUT"), "must be positive")
	}

	return &Config{
		CaseFile:           caseFile,
		CaseDir:            caseDir,
		DevMode:            ParseBoolEnv("DEV_MODE", false),
		LogFile:            GetEnvOrDefault("LOG_FILE", DefaultLogFile),
		LogLevel:           GetEnvOrDefault("LOG_LEVEL", ""),
		RunDBPath:          GetEnvOrDefault("RUN_DB_PATH", ""),
		RunDBRetentionDays: retention,
		MetricsAddr:        GetEnvOrDefault("METRICS_ADDR", ""),
		ShutdownTimeout:    timeout,
		Partitions:         partitions,
	}, nil
}

// ArchiveEnabled reports whether samples should be stored in the run database.
func (c *Config) ArchiveEnabled() bool {
	return c.RunDBPath != ""
}

// MetricsEnabled reports whether the Prometheus listener should start.
func (c *Config) MetricsEnabled() bool {
	return c.MetricsAddr != ""
}
