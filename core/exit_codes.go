package core

// Exit codes for the application.
// Signal-based exits are 128 + signal number.
const (
	// ExitCodeSuccess indicates the run reached its end time
	ExitCodeSuccess = 0

	// ExitCodeError indicates a configuration or runtime error
	ExitCodeError = 1

	// ExitCodeLookup indicates a function object asked for a field the
	// store does not hold. The run is aborted on every partition.
	ExitCodeLookup = 3

	// ExitCodeSIGINT indicates termination due to SIGINT (Ctrl+C)
	ExitCodeSIGINT = 130

	// ExitCodeSIGTERM indicates termination due to SIGTERM
	ExitCodeSIGTERM = 143
)

// ExitCodeName returns a human-readable name for an exit code.
func ExitCodeName(code int) string {
	switch code {
	case ExitCodeSuccess:
		return "success"
	case ExitCodeError:
		return "error"
	case ExitCodeLookup:
		return "field lookup failure"
	case ExitCodeSIGINT:
		return "interrupted (SIGINT)"
	case ExitCodeSIGTERM:
		return "terminated (SIGTERM)"
	default:
		return "unknown"
	}
}

// IsSignalExit returns true if the exit code indicates a signal-based termination.
func IsSignalExit(code int) bool {
	return code == ExitCodeSIGINT || code == ExitCodeSIGTERM
}
