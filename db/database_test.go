package db

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func newTestDatabase(t *testing.T) *Database {
	t.Helper()
	database, err := NewDatabase(filepath.Join(t.TempDir(), "archive", "runs.db"))
	if err != nil {
		t.Fatalf("NewDatabase() error: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

func TestNewDatabase_MigratesSchema(t *testing.T) {
	database := newTestDatabase(t)

	version, dirty, err := MigrationVersionFromPath(database.Path())
	if err != nil {
		t.Fatalf("MigrationVersionFromPath() error: %v", err)
	}
	if version != SchemaVersion || dirty {
		t.Errorf("version = %d (dirty %v), want %d", version, dirty, SchemaVersion)
	}
	if err := database.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error: %v", err)
	}
}

func TestMigrateDownAndUp(t *testing.T) {
	database := newTestDatabase(t)
	path := database.Path()
	database.Close()

	if err := MigrateDownFromPath(path, 1); err != nil {
		t.Fatalf("MigrateDownFromPath() error: %v", err)
	}
	if v, _, _ := MigrationVersionFromPath(path); v != 1 {
		t.Errorf("version after one step down = %d, want 1", v)
	}
	if err := MigrateUpFromPath(path); err != nil {
		t.Fatalf("MigrateUpFromPath() error: %v", err)
	}
	if v, _, _ := MigrationVersionFromPath(path); v != SchemaVersion {
		t.Errorf("version after up = %d", v)
	}
}

func TestDatabase_Closed(t *testing.T) {
	database := newTestDatabase(t)
	if err := database.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if err := database.Close(); err != nil {
		t.Errorf("second Close() error: %v", err)
	}
	ctx := context.Background()
	if _, err := database.ExecContext(ctx, "SELECT 1"); !errors.Is(err, ErrClosed) {
		t.Errorf("ExecContext() after Close = %v", err)
	}
	var n int
	if err := database.QueryRowContext(ctx, "SELECT 1").Scan(&n); !errors.Is(err, ErrClosed) {
		t.Errorf("QueryRowContext() after Close = %v", err)
	}
}

func TestRepository_RunLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(newTestDatabase(t), nil)

	if err := repo.InsertRun(ctx, RunRecord{ID: "run-1", CaseName: "damBreak", Partitions: 2}); err != nil {
		t.Fatalf("InsertRun() error: %v", err)
	}
	if err := repo.InsertRun(ctx, RunRecord{CaseName: "x"}); err == nil {
		t.Error("InsertRun() without id should fail")
	}

	run, err := repo.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun() error: %v", err)
	}
	if run.Status != RunRunning || run.StartedAt.IsZero() || !run.FinishedAt.IsZero() {
		t.Errorf("new run = %+v", run)
	}

	if err := repo.FinishRun(ctx, "run-1", RunFailed, "rank 1: field not found"); err != nil {
		t.Fatalf("FinishRun() error: %v", err)
	}
	run, _ = repo.GetRun(ctx, "run-1")
	want := RunRecord{ID: "run-1", CaseName: "damBreak", Partitions: 2, Status: RunFailed, ErrorMessage: "rank 1: field not found"}
	if diff := cmp.Diff(want, run, cmpopts.IgnoreFields(RunRecord{}, "StartedAt", "FinishedAt")); diff != "" {
		t.Errorf("finished run mismatch (-want +got):\n%s", diff)
	}
	if run.FinishedAt.IsZero() {
		t.Error("FinishedAt not set")
	}

	if _, err := repo.GetRun(ctx, "missing"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("GetRun(missing) = %v", err)
	}
	if err := repo.FinishRun(ctx, "missing", RunCompleted, ""); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("FinishRun(missing) = %v", err)
	}
}

func TestRepository_ListRunsNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(newTestDatabase(t), nil)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		run := RunRecord{ID: id, CaseName: "case", Partitions: 1, StartedAt: base.Add(time.Duration(i) * time.Hour)}
		if err := repo.InsertRun(ctx, run); err != nil {
			t.Fatal(err)
		}
	}
	runs, err := repo.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListRuns() error: %v", err)
	}
	var ids []string
	for _, r := range runs {
		ids = append(ids, r.ID)
	}
	if diff := cmp.Diff([]string{"c", "b"}, ids); diff != "" {
		t.Errorf("ListRuns() ids (-want +got):\n%s", diff)
	}
	if !runs[1].StartedAt.Equal(base.Add(time.Hour)) {
		t.Errorf("StartedAt = %v", runs[1].StartedAt)
	}
}

func TestRepository_Samples(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(newTestDatabase(t), nil)
	if err := repo.InsertRun(ctx, RunRecord{ID: "r", CaseName: "c", Partitions: 1}); err != nil {
		t.Fatal(err)
	}
	for _, s := range []SampleRecord{
		{RunID: "r", Object: "area", Result: "interfaceArea", Time: 0.2, TimeIndex: 2, Value: 1.5},
		{RunID: "r", Object: "area", Result: "interfaceArea", Time: 0.1, TimeIndex: 1, Value: 1.25},
		{RunID: "r", Object: "other", Result: "interfaceArea", Time: 0.1, TimeIndex: 1, Value: 9},
	} {
		if err := repo.InsertSample(ctx, s); err != nil {
			t.Fatalf("InsertSample() error: %v", err)
		}
	}
	if err := repo.InsertSample(ctx, SampleRecord{RunID: "no-such-run", Object: "x"}); err == nil {
		t.Error("InsertSample() for an unknown run should violate the foreign key")
	}

	got, err := repo.QuerySamples(ctx, "r", "area", "interfaceArea")
	if err != nil {
		t.Fatalf("QuerySamples() error: %v", err)
	}
	want := []SampleRecord{
		{RunID: "r", Object: "area", Result: "interfaceArea", Time: 0.1, TimeIndex: 1, Value: 1.25},
		{RunID: "r", Object: "area", Result: "interfaceArea", Time: 0.2, TimeIndex: 2, Value: 1.5},
	}
	if diff := cmp.Diff(want, got, cmpopts.IgnoreFields(SampleRecord{}, "ID")); diff != "" {
		t.Errorf("QuerySamples() mismatch (-want +got):\n%s", diff)
	}
	if n, _ := repo.CountSamples(ctx, "r"); n != 3 {
		t.Errorf("CountSamples() = %d, want 3", n)
	}
}

func TestRepository_AsyncInsertsDrainOnClose(t *testing.T) {
	ctx := context.Background()
	database := newTestDatabase(t)
	base := NewRepository(database, nil)
	writer := NewAsyncWriter(base.CreateAsyncWriteHandler())
	repo := NewRepository(database, writer)
	writer.Start()

	if err := repo.InsertRun(ctx, RunRecord{ID: "r", CaseName: "c", Partitions: 1}); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 50; i++ {
		if err := repo.InsertSample(ctx, SampleRecord{RunID: "r", Object: "area", Result: "interfaceArea", Time: float64(i), TimeIndex: i}); err != nil {
			t.Fatalf("InsertSample() error: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if n, _ := repo.CountSamples(ctx, "r"); n != 50 {
		t.Errorf("CountSamples() after drain = %d, want 50", n)
	}
	if writer.Written() != 50 || writer.Failed() != 0 {
		t.Errorf("written = %d, failed = %d", writer.Written(), writer.Failed())
	}
}

func TestAsyncWriter_FullAndClosed(t *testing.T) {
	var handled atomic.Int64
	var errs atomic.Int64
	w := NewAsyncWriterWithConfig(func(op WriteOperation) error {
		handled.Add(1)
		if op.Data == "bad" {
			return errors.New("boom")
		}
		return nil
	}, AsyncWriterConfig{ChannelCapacity: 2, OnError: func(error) { errs.Add(1) }})

	// not started: the buffer fills up
	if !w.Write("a") || !w.Write("bad") {
		t.Fatal("first writes should be queued")
	}
	if w.Write("c") {
		t.Error("write to a full buffer should be rejected")
	}
	if w.Pending() != 2 || w.Dropped() != 1 {
		t.Errorf("pending = %d, dropped = %d", w.Pending(), w.Dropped())
	}

	if err := w.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if handled.Load() != 2 || errs.Load() != 1 || w.Failed() != 1 {
		t.Errorf("handled = %d, errors = %d, failed = %d", handled.Load(), errs.Load(), w.Failed())
	}
	if w.Write("late") {
		t.Error("write after Close should be rejected")
	}
	if w.IsStarted() {
		t.Error("closed writer reports started")
	}
}

func TestAsyncWriter_DrainTimeout(t *testing.T) {
	release := make(chan struct{})
	w := NewAsyncWriterWithConfig(func(WriteOperation) error {
		<-release
		return nil
	}, AsyncWriterConfig{ChannelCapacity: 4, DrainTimeout: 20 * time.Millisecond})
	w.Start()
	w.Write(1)

	if err := w.Close(); !errors.Is(err, ErrDrainTimeout) {
		t.Errorf("Close() = %v, want ErrDrainTimeout", err)
	}
	close(release)
}

func TestCleanup_RemovesOldRunsAndSamples(t *testing.T) {
	ctx := context.Background()
	database := newTestDatabase(t)
	repo := NewRepository(database, nil)

	old := time.Now().UTC().AddDate(0, 0, -40)
	if err := repo.InsertRun(ctx, RunRecord{ID: "old", CaseName: "c", Partitions: 1, StartedAt: old}); err != nil {
		t.Fatal(err)
	}
	if err := repo.InsertRun(ctx, RunRecord{ID: "new", CaseName: "c", Partitions: 1}); err != nil {
		t.Fatal(err)
	}
	for _, id := range []string{"old", "old", "new"} {
		if err := repo.InsertSample(ctx, SampleRecord{RunID: id, Object: "area", Result: "interfaceArea"}); err != nil {
			t.Fatal(err)
		}
	}

	result, err := database.Cleanup(ctx, 30)
	if err != nil {
		t.Fatalf("Cleanup() error: %v", err)
	}
	if result.RunsDeleted != 1 || result.SamplesDeleted != 2 {
		t.Errorf("Cleanup() = %+v", result)
	}
	if _, err := repo.GetRun(ctx, "old"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("old run still present: %v", err)
	}
	if n, _ := repo.CountSamples(ctx, "new"); n != 1 {
		t.Errorf("new run samples = %d", n)
	}

	if _, err := database.Cleanup(ctx, -1); err == nil {
		t.Error("negative retention should fail")
	}
	if result, err := database.Cleanup(ctx, 0); err != nil || result.RunsDeleted != 0 {
		t.Errorf("Cleanup(0) = %+v, %v", result, err)
	}
}
