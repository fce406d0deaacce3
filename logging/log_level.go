package logging

import (
	"strings"

	"go.uber.org/zap/zapcore"
)

// ParseLogLevel converts a LOG_LEVEL value to a zap level. Matching is case
// insensitive; an empty or unknown value returns def.
func ParseLogLevel(value string, def zapcore.Level) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return def
	}
}

// DefaultLevel is debug in development mode and info otherwise.
func DefaultLevel(isDevelopment bool) zapcore.Level {
	if isDevelopment {
		return zapcore.DebugLevel
	}
	return zapcore.InfoLevel
}
