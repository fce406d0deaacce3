package core

import (
	"errors"
	"fmt"
)

// ConfigError represents a configuration-related error with actionable instructions.
type ConfigError struct {
	Code    string // Error code for programmatic handling
	Message string // Human-readable error message
	Action  string // Actionable instruction for resolution
}

func (e *ConfigError) Error() string {
	if e.Action != "" {
		return fmt.Sprintf("%s. %s", e.Message, e.Action)
	}
	return e.Message
}

// Error codes for configuration errors
const (
	ErrCodeEnvFileMissing        = "ENV_FILE_MISSING"
	ErrCodeMissingConfig         = "MISSING_CONFIG"
	ErrCodeInvalidConfig         = "INVALID_CONFIG"
	ErrCodeCaseFileMissing       = "CASE_FILE_MISSING"
	ErrCodeInvalidCase           = "INVALID_CASE"
	ErrCodeInvalidDecomposition  = "INVALID_DECOMPOSITION"
	ErrCodeOutputDirNotWritable  = "OUTPUT_DIR_NOT_WRITABLE"
	ErrCodeUnknownFunctionObject = "UNKNOWN_FUNCTION_OBJECT"
)

// ErrEnvFileMissing returns an error for missing .env file
func ErrEnvFileMissing(path string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeEnvFileMissing,
		Message: fmt.Sprintf("Configuration file not found: %s", path),
		Action:  "Copy example.env to .env or export CASE_FILE directly",
	}
}

// ErrMissingConfig returns an error for missing required configuration
func ErrMissingConfig(varName string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeMissingConfig,
		Message: fmt.Sprintf("Missing required configuration: %s", varName),
		Action:  fmt.Sprintf("Set %s in your .env file", varName),
	}
}

// ErrInvalidConfig returns an error for an environment value that cannot be used.
func ErrInvalidConfig(varName, value, reason string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeInvalidConfig,
		Message: fmt.Sprintf("Invalid %s '%s': %s", varName, value, reason),
		Action:  fmt.Sprintf("Correct %s in your .env file", varName),
	}
}

// ErrCaseFileMissing returns an error when the case file does not exist
func ErrCaseFileMissing(path string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeCaseFileMissing,
		Message: fmt.Sprintf("Case file not found: %s", path),
		Action:  "Set CASE_FILE to the path of a case YAML file",
	}
}

// ErrInvalidCase returns an error when the case file cannot be loaded
func ErrInvalidCase(path string, reason string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeInvalidCase,
		Message: fmt.Sprintf("Case file %s is invalid: %s", path, reason),
		Action:  "Fix the case file and run again",
	}
}

// ErrInvalidDecomposition returns an error when the mesh cannot be split
// into the requested number of partitions.
func ErrInvalidDecomposition(partitions int, reason string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeInvalidDecomposition,
		Message: fmt.Sprintf("Cannot decompose the mesh into %d partitions: %s", partitions, reason),
		Action:  "Set PARTITIONS (or decomposition.partitions) to at most the number of cells in x",
	}
}

// ErrOutputDirNotWritable returns an error when results cannot be written
func ErrOutputDirNotWritable(dir string, reason string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeOutputDirNotWritable,
		Message: fmt.Sprintf("Output directory %s is not writable: %s", dir, reason),
		Action:  "Set CASE_DIR to a writable directory",
	}
}

// ErrUnknownFunctionObject returns an error for a function type no builder handles
func ErrUnknownFunctionObject(name, typeName string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeUnknownFunctionObject,
		Message: fmt.Sprintf("Function object %s has unknown type %s", name, typeName),
		Action:  "Check the type entry in the functions section of the case file",
	}
}

// IsConfigError checks if an error is a ConfigError and returns it if so
func IsConfigError(err error) (*ConfigError, bool) {
	var configErr *ConfigError
	if errors.As(err, &configErr) {
		return configErr, true
	}
	return nil, false
}

// GetErrorCode extracts the error code from an error if it's a ConfigError
func GetErrorCode(err error) string {
	if configErr, ok := IsConfigError(err); ok {
		return configErr.Code
	}
	return ""
}
