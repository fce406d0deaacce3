package series

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestTimeName(t *testing.T) {
	tests := []struct {
		name      string
		time      float64
		precision int
		want      string
	}{
		{"zero", 0, 6, "0"},
		{"integer", 10, 6, "10"},
		{"fraction", 0.005, 6, "0.005"},
		{"rounded", 0.1234567, 4, "0.1235"},
		{"default precision", 1.5, 0, "1.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TimeName(tt.time, tt.precision); got != tt.want {
				t.Errorf("TimeName(%v, %d) = %q, want %q", tt.time, tt.precision, got, tt.want)
			}
		})
	}
}

func TestFactory_OpenWritesLayout(t *testing.T) {
	root := t.TempDir()
	f := Factory{Root: root, StartTime: 0, Precision: 6, Master: true}

	w, err := f.Open("area1", "interfaceArea")
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if err := w.WriteHeader("Interface area evolution", "Time", "Interface area"); err != nil {
		t.Fatalf("WriteHeader() error: %v", err)
	}
	if err := w.WriteRow(0.1, 0.25); err != nil {
		t.Fatalf("WriteRow() error: %v", err)
	}
	if err := w.WriteRow(0.2, 1); err != nil {
		t.Fatalf("WriteRow() error: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	path := filepath.Join(root, "postProcessing", "area1", "0", "interfaceArea.dat")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected output file at %s: %v", path, err)
	}
	want := "# Interface area evolution\n" +
		"# Time\tInterface area\n" +
		"\n" +
		"0.1\t0.25\n" +
		"0.2\t1\n"
	if diff := cmp.Diff(want, string(data)); diff != "" {
		t.Errorf("file content mismatch (-want +got):\n%s", diff)
	}
}

func TestFactory_ExistingFileGetsSuffix(t *testing.T) {
	root := t.TempDir()
	f := Factory{Root: root, StartTime: 0.5, Master: true}

	first, err := f.Open("area1", "interfaceArea")
	if err != nil {
		t.Fatalf("first Open() error: %v", err)
	}
	first.Close()

	second, err := f.Open("area1", "interfaceArea")
	if err != nil {
		t.Fatalf("second Open() error: %v", err)
	}
	defer second.Close()

	file, ok := second.(*File)
	if !ok {
		t.Fatalf("expected *File, got %T", second)
	}
	want := filepath.Join(root, "postProcessing", "area1", "0.5", "interfaceArea_0.5.dat")
	if file.Path() != want {
		t.Errorf("Path() = %q, want %q", file.Path(), want)
	}
}

func TestFactory_NonMasterDiscards(t *testing.T) {
	root := t.TempDir()
	f := Factory{Root: root, Master: false}

	w, err := f.Open("area1", "interfaceArea")
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if w != Discard {
		t.Errorf("non-master Open() = %T, want Discard", w)
	}
	_ = w.WriteHeader("title", "Time")
	_ = w.WriteRow(1, 2)

	if _, err := os.Stat(filepath.Join(root, "postProcessing")); !os.IsNotExist(err) {
		t.Errorf("non-master rank must not create output, stat err = %v", err)
	}
}

func TestFile_HeaderRules(t *testing.T) {
	w, err := Create(filepath.Join(t.TempDir(), "log.dat"), 6)
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	defer w.Close()

	if err := w.WriteHeader("title"); err != nil {
		t.Fatalf("WriteHeader() error: %v", err)
	}
	if err := w.WriteHeader("title"); err == nil {
		t.Error("second WriteHeader() should fail")
	}
}

func TestFile_RejectsDecreasingTime(t *testing.T) {
	w, _ := Create(filepath.Join(t.TempDir(), "log.dat"), 6)
	defer w.Close()

	if err := w.WriteRow(1, 0); err != nil {
		t.Fatalf("WriteRow() error: %v", err)
	}
	if err := w.WriteRow(0.5, 0); err == nil {
		t.Error("expected error for decreasing time")
	}
	if w.Rows() != 1 {
		t.Errorf("Rows() = %d, want 1", w.Rows())
	}
}

func TestFile_ClosedErrors(t *testing.T) {
	w, _ := Create(filepath.Join(t.TempDir(), "log.dat"), 6)
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close() error: %v", err)
	}
	if err := w.WriteRow(1, 1); !errors.Is(err, ErrClosed) {
		t.Errorf("WriteRow() after Close = %v, want ErrClosed", err)
	}
}
