package shutdown

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

type fakeCloser struct {
	closed int
	err    error
}

func (c *fakeCloser) Close() error {
	c.closed++
	return c.err
}

type fakeWriter struct {
	fakeCloser
	written, dropped, failed int64
}

func (w *fakeWriter) Written() int64 { return w.written }
func (w *fakeWriter) Dropped() int64 { return w.dropped }
func (w *fakeWriter) Failed() int64  { return w.failed }

type fakeFinisher struct {
	got   error
	calls int
}

func (f *fakeFinisher) Finish(ctx context.Context, runErr error) error {
	f.calls++
	f.got = runErr
	return nil
}

type syncFunc func() error

func (f syncFunc) Sync() error { return f() }

func TestCloseHandlers(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ctx := context.Background()

	runner := &fakeCloser{}
	if err := CloseFunctionObjects(logger, runner)(ctx); err != nil {
		t.Errorf("CloseFunctionObjects() error: %v", err)
	}
	database := &fakeCloser{err: errors.New("busy")}
	if err := CloseDatabase(logger, database)(ctx); err == nil {
		t.Error("CloseDatabase() error = nil, want busy")
	}
	if runner.closed != 1 || database.closed != 1 {
		t.Errorf("closed = %d/%d, want 1/1", runner.closed, database.closed)
	}
}

func TestStopAsyncWriter(t *testing.T) {
	w := &fakeWriter{written: 10, dropped: 2}
	if err := StopAsyncWriter(zaptest.NewLogger(t), w)(context.Background()); err != nil {
		t.Fatalf("StopAsyncWriter() error: %v", err)
	}
	if w.closed != 1 {
		t.Errorf("writer closed %d times", w.closed)
	}
}

func TestFinishArchive(t *testing.T) {
	f := &fakeFinisher{}
	runErr := context.Canceled
	if err := FinishArchive(zaptest.NewLogger(t), f, func() error { return runErr })(context.Background()); err != nil {
		t.Fatalf("FinishArchive() error: %v", err)
	}
	if f.calls != 1 || !errors.Is(f.got, context.Canceled) {
		t.Errorf("Finish called %d times with %v", f.calls, f.got)
	}
}

func TestSyncLogger(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr bool
	}{
		{"ok", nil, false},
		{"einval", &wrapped{syscall.EINVAL}, false},
		{"enotty", fmt.Errorf("sync /dev/stdout: %w", syscall.ENOTTY), false},
		{"other", errors.New("disk full"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := SyncLogger(syncFunc(func() error { return tt.err }))(context.Background())
			if (err != nil) != tt.wantErr {
				t.Errorf("SyncLogger() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

type wrapped struct{ err error }

func (w *wrapped) Error() string { return "sync: " + w.err.Error() }
func (w *wrapped) Unwrap() error { return w.err }

func TestShutdownRegistry(t *testing.T) {
	r := NewShutdownRegistry()
	r.Register("b", 20, func(context.Context) error { return errors.New("boom") })
	r.Register("a", 10, func(context.Context) error { return nil })
	r.Register("c", 20, func(context.Context) error { return nil })

	if got := r.Names(); len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Errorf("Names() = %v", got)
	}
	errs := r.Shutdown(context.Background())
	if len(errs) != 1 || errs[0].Error() != "b: boom" {
		t.Errorf("Shutdown() errors = %v", errs)
	}
	if !r.IsClosed() {
		t.Error("IsClosed() = false")
	}
	r.Register("late", 0, func(context.Context) error { return nil })
	if r.Count() != 3 {
		t.Errorf("Count() = %d after late registration", r.Count())
	}
	if errs := r.Shutdown(context.Background()); errs != nil {
		t.Errorf("second Shutdown() = %v", errs)
	}
}

func TestOperationTracker_WaitTimeout(t *testing.T) {
	tr := NewOperationTracker()
	if !tr.Start() {
		t.Fatal("Start() = false on open tracker")
	}
	if err := tr.Wait(10 * time.Millisecond); !errors.Is(err, ErrWaitTimeout) {
		t.Errorf("Wait() = %v, want ErrWaitTimeout", err)
	}
	tr.Done()
	tr.Close()
	if tr.Start() {
		t.Error("Start() = true on closed tracker")
	}
	if err := tr.Wait(time.Second); err != nil {
		t.Errorf("Wait() = %v", err)
	}
}
