package shutdown

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"foammonitor/core"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap/zaptest"
)

func TestManager_ShutdownRunsHandlersInPriorityOrder(t *testing.T) {
	m := NewManager(zaptest.NewLogger(t), WithTimeout(time.Second))

	var order []string
	record := func(name string) core.ShutdownFunc {
		return func(ctx context.Context) error {
			order = append(order, name)
			return nil
		}
	}
	m.Register("logger", PriorityLogger, record("logger"))
	m.Register("database", PriorityDatabase, record("database"))
	m.Register("function-objects", PriorityFunctionObjects, record("function-objects"))
	m.Register("archive", PriorityArchive, record("archive"))

	want := []string{"function-objects", "archive", "database", "logger"}
	if diff := cmp.Diff(want, m.RegisteredHandlers()); diff != "" {
		t.Errorf("RegisteredHandlers() mismatch (-want +got):\n%s", diff)
	}
	if err := m.Shutdown(); err != nil {
		t.Fatalf("Shutdown() error: %v", err)
	}
	if diff := cmp.Diff(want, order); diff != "" {
		t.Errorf("execution order mismatch (-want +got):\n%s", diff)
	}
	if err := m.Shutdown(); err != nil {
		t.Errorf("second Shutdown() = %v, want nil", err)
	}
	if len(order) != 4 {
		t.Errorf("handlers ran %d times, want 4", len(order))
	}
	if !m.IsShuttingDown() {
		t.Error("IsShuttingDown() = false after Shutdown")
	}
}

func TestManager_ShutdownReportsHandlerErrors(t *testing.T) {
	m := NewManager(zaptest.NewLogger(t), WithTimeout(time.Second))
	m.Register("archive", PriorityArchive, func(ctx context.Context) error {
		return errors.New("database is locked")
	})
	ran := false
	m.Register("logger", PriorityLogger, func(ctx context.Context) error {
		ran = true
		return nil
	})

	err := m.Shutdown()
	if err == nil || !strings.Contains(err.Error(), "1 errors") {
		t.Errorf("Shutdown() = %v, want 1 error", err)
	}
	if !ran {
		t.Error("handlers after a failure did not run")
	}
}

func TestManager_TriggerCancelsAndSetsExitCode(t *testing.T) {
	tests := []struct {
		name string
		sig  os.Signal
		want int
	}{
		{"interrupt", os.Interrupt, core.ExitCodeSIGINT},
		{"terminate", syscall.SIGTERM, core.ExitCodeSIGTERM},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager(zaptest.NewLogger(t), WithForceExit(func(int) {}))
			if got := m.ExitCode(); got != core.ExitCodeSuccess {
				t.Errorf("ExitCode() before signal = %d", got)
			}

			m.Trigger(tt.sig)
			select {
			case <-m.Context().Done():
			default:
				t.Fatal("context not cancelled by signal")
			}
			if got := m.ExitCode(); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
			if m.Signal() != tt.sig {
				t.Errorf("Signal() = %v, want %v", m.Signal(), tt.sig)
			}
		})
	}
}

func TestManager_SecondSignalForcesExit(t *testing.T) {
	var code atomic.Int64
	code.Store(-1)
	m := NewManager(zaptest.NewLogger(t), WithForceExit(func(c int) { code.Store(int64(c)) }))

	m.Trigger(syscall.SIGTERM)
	if code.Load() != -1 {
		t.Fatal("first signal forced an exit")
	}
	m.Trigger(os.Interrupt)
	if code.Load() != core.ExitCodeError {
		t.Errorf("force exit code = %d, want %d", code.Load(), core.ExitCodeError)
	}
	if m.ExitCode() != core.ExitCodeSIGTERM {
		t.Errorf("ExitCode() = %d, want the first signal's code", m.ExitCode())
	}
}

func TestManager_WrapOperation(t *testing.T) {
	m := NewManager(zaptest.NewLogger(t))
	ctx := context.Background()

	calls := 0
	step := func(context.Context) error {
		calls++
		return nil
	}
	if err := m.WrapOperation(ctx, "time-step", step); err != nil {
		t.Fatalf("WrapOperation() error: %v", err)
	}

	m.Cancel()
	if err := m.WrapOperation(ctx, "time-step", step); !errors.Is(err, context.Canceled) {
		t.Errorf("after cancel: err = %v, want context.Canceled", err)
	}

	_ = m.Shutdown()
	if err := m.WrapOperation(ctx, "time-step", step); !errors.Is(err, ErrTrackerClosed) {
		t.Errorf("after shutdown: err = %v, want ErrTrackerClosed", err)
	}
	if calls != 1 {
		t.Errorf("step ran %d times, want 1", calls)
	}
}

func TestManager_ShutdownWaitsForCurrentStep(t *testing.T) {
	m := NewManager(zaptest.NewLogger(t), WithTimeout(5*time.Second))

	entered := make(chan struct{})
	release := make(chan struct{})
	var finished atomic.Bool
	go func() {
		_ = m.WrapOperation(context.Background(), "time-step", func(context.Context) error {
			close(entered)
			<-release
			finished.Store(true)
			return nil
		})
	}()
	<-entered

	var closedAfterStep atomic.Bool
	m.Register("function-objects", PriorityFunctionObjects, func(ctx context.Context) error {
		closedAfterStep.Store(finished.Load())
		return nil
	})

	done := make(chan error, 1)
	go func() { done <- m.Shutdown() }()

	time.Sleep(20 * time.Millisecond)
	if m.ActiveOperations() != 1 {
		t.Errorf("ActiveOperations() = %d, want 1", m.ActiveOperations())
	}
	close(release)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Shutdown() error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Shutdown() did not return")
	}
	if !closedAfterStep.Load() {
		t.Error("cleanup ran before the step finished")
	}
}

func TestManager_StartAndShutdownWithoutSignal(t *testing.T) {
	m := NewManager(zaptest.NewLogger(t))
	m.Start()
	m.Start()
	if err := m.Shutdown(); err != nil {
		t.Fatalf("Shutdown() error: %v", err)
	}
	if m.ExitCode() != core.ExitCodeSuccess {
		t.Errorf("ExitCode() = %d", m.ExitCode())
	}
}
