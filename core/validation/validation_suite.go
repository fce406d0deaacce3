// Package validation checks a run's configuration before any simulation work
// starts and prints a colored step report.
package validation

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"foammonitor/core"
	"foammonitor/functionobject"
	"foammonitor/solver"

	"github.com/fatih/color"
)

// ValidationStep represents a single validation step with its status.
type ValidationStep struct {
	Name    string
	Status  StepStatus
	Message string
	Error   error
	Latency time.Duration
}

// StepStatus represents the status of a validation step.
type StepStatus int

const (
	StepPending StepStatus = iota
	StepRunning
	StepPassed
	StepFailed
	StepWarning
	StepSkipped
)

// String returns the string representation of a step status.
func (s StepStatus) String() string {
	switch s {
	case StepPending:
		return "pending"
	case StepRunning:
		return "running"
	case StepPassed:
		return "passed"
	case StepFailed:
		return "failed"
	case StepWarning:
		return "warning"
	case StepSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// SuiteResult represents the complete result of validation suite execution.
type SuiteResult struct {
	Steps       []ValidationStep
	TotalSteps  int
	PassedSteps int
	FailedSteps int
	Warnings    int
	Duration    time.Duration
	Success     bool

	// Case is the loaded case when it parsed, even if a later step failed.
	Case *solver.Case
	// Partitions is the decomposition the run will use.
	Partitions int
}

// ValidationSuite runs the startup checks for one configuration.
type ValidationSuite struct {
	cfg          *core.Config
	output       io.Writer
	registered   func(typeName string) bool
	showProgress bool
	failFast     bool
}

// NewValidationSuite creates a suite for cfg. Function types are checked
// against the functionobject registry.
func NewValidationSuite(cfg *core.Config) *ValidationSuite {
	return &ValidationSuite{
		cfg:          cfg,
		output:       os.Stdout,
		registered:   functionobject.Registered,
		showProgress: true,
	}
}

// WithOutput sets the output writer for progress messages.
func (s *ValidationSuite) WithOutput(w io.Writer) *ValidationSuite {
	s.output = w
	return s
}

// WithShowProgress enables or disables progress output.
func (s *ValidationSuite) WithShowProgress(show bool) *ValidationSuite {
	s.showProgress = show
	return s
}

// WithFailFast stops validation on first failure if enabled.
func (s *ValidationSuite) WithFailFast(failFast bool) *ValidationSuite {
	s.failFast = failFast
	return s
}

// WithTypeRegistry replaces the check used for function object types.
func (s *ValidationSuite) WithTypeRegistry(registered func(typeName string) bool) *ValidationSuite {
	s.registered = registered
	return s
}

// Validate runs all checks in order. Checks that need the case are skipped
// when it could not be loaded.
func (s *ValidationSuite) Validate() SuiteResult {
	startTime := time.Now()
	steps := make([]ValidationStep, 0, 7)
	var c *solver.Case
	partitions := 0

	if s.showProgress {
		s.printHeader("foammonitor Startup Validation")
	}

	type check struct {
		name     string
		needCase bool
		fn       func() (bool, string, error)
	}
	checks := []check{
		{"Case File", false, func() (bool, string, error) {
			if err := CheckFileExists(s.cfg.CaseFile); err != nil {
				return false, "", core.ErrCaseFileMissing(s.cfg.CaseFile)
			}
			return true, s.cfg.CaseFile, nil
		}},
		{"Case Definition", false, func() (bool, string, error) {
			loaded, err := solver.LoadCase(s.cfg.CaseFile)
			if err != nil {
				return false, "", core.ErrInvalidCase(s.cfg.CaseFile, err.Error())
			}
			c = loaded
			return true, fmt.Sprintf("case %q, %d field(s)", c.Name, len(c.Fields)), nil
		}},
		{"Mesh", true, func() (bool, string, error) {
			block := c.Mesh.Block()
			if err := block.Validate(); err != nil {
				return false, "", core.ErrInvalidCase(s.cfg.CaseFile, err.Error())
			}
			n := block.Cells
			return true, fmt.Sprintf("%dx%dx%d (%d cells)", n[0], n[1], n[2], block.NCells()), nil
		}},
		{"Decomposition", true, func() (bool, string, error) {
			n := c.Decomposition.Partitions
			if s.cfg.Partitions > 0 {
				n = s.cfg.Partitions
			}
			if err := c.Mesh.Block().ValidatePartitions(n); err != nil {
				return false, "", core.ErrInvalidDecomposition(n, err.Error())
			}
			partitions = n
			return true, fmt.Sprintf("%d partition(s)", n), nil
		}},
		{"Function Objects", true, func() (bool, string, error) {
			return s.checkFunctionTypes(c)
		}},
		{"Output Directory", false, func() (bool, string, error) {
			dir := filepath.Join(s.cfg.CaseDir, "postProcessing")
			if err := CheckDirWritable(dir); err != nil {
				return false, "", core.ErrOutputDirNotWritable(dir, err.Error())
			}
			return true, dir, nil
		}},
	}

	for _, chk := range checks {
		var step ValidationStep
		if chk.needCase && c == nil {
			step = s.skipStep(chk.name, "Skipped because the case did not load")
		} else {
			step = s.runStep(chk.name, chk.fn)
		}
		steps = append(steps, step)
		if s.failFast && step.Status == StepFailed {
			return s.buildResult(steps, startTime, c, partitions)
		}
	}

	if s.cfg.RunDBPath == "" {
		steps = append(steps, s.skipStep("Run Database", "Archive disabled"))
	} else {
		steps = append(steps, s.runStep("Run Database", func() (bool, string, error) {
			if err := CheckParentWritable(s.cfg.RunDBPath); err != nil {
				return false, "", core.ErrOutputDirNotWritable(filepath.Dir(s.cfg.RunDBPath), err.Error())
			}
			return true, s.cfg.RunDBPath, nil
		}))
	}

	result := s.buildResult(steps, startTime, c, partitions)

	if s.showProgress {
		s.printSummary(result)
	}

	return result
}

func (s *ValidationSuite) checkFunctionTypes(c *solver.Case) (bool, string, error) {
	types, err := c.FunctionTypes()
	if err != nil {
		return false, "", core.ErrInvalidCase(s.cfg.CaseFile, err.Error())
	}
	names := make([]string, 0, len(types))
	for name := range types {
		names = append(names, name)
	}
	sort.Strings(names)

	described := make([]string, 0, len(names))
	for _, name := range names {
		if !s.registered(types[name]) {
			return false, "", core.ErrUnknownFunctionObject(name, types[name])
		}
		described = append(described, fmt.Sprintf("%s (%s)", name, types[name]))
	}
	if len(described) == 0 {
		return true, "none configured", nil
	}
	return true, strings.Join(described, ", "), nil
}

// runStep executes a validation step with timing and progress output.
func (s *ValidationSuite) runStep(name string, fn func() (bool, string, error)) ValidationStep {
	step := ValidationStep{Name: name, Status: StepRunning}

	if s.showProgress {
		s.printStepStart(name)
	}

	startTime := time.Now()
	passed, message, err := fn()
	step.Latency = time.Since(startTime)
	step.Message = message
	step.Error = err

	if passed {
		step.Status = StepPassed
	} else {
		step.Status = StepFailed
	}

	if s.showProgress {
		s.printStep(step)
	}

	return step
}

func (s *ValidationSuite) skipStep(name, message string) ValidationStep {
	step := ValidationStep{Name: name, Status: StepSkipped, Message: message}
	if s.showProgress {
		s.printStep(step)
	}
	return step
}

// buildResult creates a SuiteResult from completed steps.
func (s *ValidationSuite) buildResult(steps []ValidationStep, startTime time.Time, c *solver.Case, partitions int) SuiteResult {
	result := SuiteResult{
		Steps:      steps,
		TotalSteps: len(steps),
		Duration:   time.Since(startTime),
		Success:    true,
		Case:       c,
		Partitions: partitions,
	}

	for _, step := range steps {
		switch step.Status {
		case StepPassed:
			result.PassedSteps++
		case StepFailed:
			result.FailedSteps++
			result.Success = false
		case StepWarning:
			result.Warnings++
		}
	}

	return result
}

// printHeader prints a validation header.
func (s *ValidationSuite) printHeader(title string) {
	fmt.Fprintln(s.output)
	headerColor := color.New(color.FgCyan, color.Bold)
	headerColor.Fprintf(s.output, "━━━ %s ━━━\n", title)
	fmt.Fprintln(s.output)
}

// printStepStart prints the step name before execution.
func (s *ValidationSuite) printStepStart(name string) {
	fmt.Fprintf(s.output, "  ◌ %s...", name)
}

// printStep prints a completed validation step with status indicator.
func (s *ValidationSuite) printStep(step ValidationStep) {
	var icon string
	var clr *color.Color

	switch step.Status {
	case StepPassed:
		icon = "✓"
		clr = color.New(color.FgGreen)
	case StepFailed:
		icon = "✗"
		clr = color.New(color.FgRed)
	case StepWarning:
		icon = "!"
		clr = color.New(color.FgYellow)
	case StepSkipped:
		icon = "○"
		clr = color.New(color.FgHiBlack)
	default:
		icon = "?"
		clr = color.New(color.FgWhite)
	}

	fmt.Fprintf(s.output, "\r")
	clr.Fprintf(s.output, "  %s %s", icon, step.Name)

	if step.Message != "" {
		dim := color.New(color.FgHiBlack)
		dim.Fprintf(s.output, " - %s", step.Message)
	}

	fmt.Fprintln(s.output)

	if step.Status == StepFailed && step.Error != nil {
		errColor := color.New(color.FgRed)
		errColor.Fprintf(s.output, "    └─ %s\n", step.Error.Error())
	}
}

// printSummary prints the validation summary.
func (s *ValidationSuite) printSummary(result SuiteResult) {
	fmt.Fprintln(s.output)

	if result.Success {
		successColor := color.New(color.FgGreen, color.Bold)
		successColor.Fprintf(s.output, "━━━ Validation Passed ")
		color.New(color.FgHiBlack).Fprintf(s.output, "(%d/%d checks passed in %v)",
			result.PassedSteps, result.TotalSteps, result.Duration.Round(time.Millisecond))
		successColor.Fprintln(s.output, " ━━━")
	} else {
		failColor := color.New(color.FgRed, color.Bold)
		failColor.Fprintf(s.output, "━━━ Validation Failed ")
		color.New(color.FgHiBlack).Fprintf(s.output, "(%d passed, %d failed)",
			result.PassedSteps, result.FailedSteps)
		failColor.Fprintln(s.output, " ━━━")
	}

	fmt.Fprintln(s.output)
}

// GetErrors returns all errors from failed steps.
func (r SuiteResult) GetErrors() []error {
	errs := make([]error, 0)
	for _, step := range r.Steps {
		if step.Error != nil {
			errs = append(errs, step.Error)
		}
	}
	return errs
}

// GetFirstError returns the first error from failed steps, or nil if all passed.
func (r SuiteResult) GetFirstError() error {
	for _, step := range r.Steps {
		if step.Error != nil {
			return step.Error
		}
	}
	return nil
}

// Summary returns a human-readable summary string.
func (r SuiteResult) Summary() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Validation %s: ", map[bool]string{true: "Passed", false: "Failed"}[r.Success]))
	sb.WriteString(fmt.Sprintf("%d/%d checks passed", r.PassedSteps, r.TotalSteps))
	if r.FailedSteps > 0 {
		sb.WriteString(fmt.Sprintf(", %d failed", r.FailedSteps))
	}
	if r.Warnings > 0 {
		sb.WriteString(fmt.Sprintf(", %d warnings", r.Warnings))
	}
	sb.WriteString(fmt.Sprintf(" (took %v)", r.Duration.Round(time.Millisecond)))
	return sb.String()
}
