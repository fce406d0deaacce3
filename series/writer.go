// Package series writes the per-object time-series logs under a case's
// postProcessing directory.
package series

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// DefaultPrecision is the number of significant digits used when a Factory
// has no precision set.
const DefaultPrecision = 6

// ErrClosed is returned by a File after Close.
var ErrClosed = errors.New("series file is closed")

// Writer appends rows of (time, values...) to one log.
type Writer interface {
	WriteHeader(title string, columns ...string) error
	WriteRow(time float64, values ...float64) error
	Close() error
}

// Opener creates the writer for one file of a named object.
type Opener interface {
	Open(objectName, fileName string) (Writer, error)
}

// TimeName formats a time value the way output directories are named.
func TimeName(t float64, precision int) string {
	if precision <= 0 {
		precision = DefaultPrecision
	}
	return strconv.FormatFloat(t, 'g', precision, 64)
}

// Factory opens series files rooted at a case directory. Only the master
// rank writes; every other rank receives Discard.
type Factory struct {
	Root      string
	StartTime float64
	Precision int
	Master    bool
}

// Dir returns the output directory of objectName.
func (f Factory) Dir(objectName string) string {
	return filepath.Join(f.Root, "postProcessing", objectName, TimeName(f.StartTime, f.Precision))
}

// Open creates <Root>/postProcessing/<object>/<startTime>/<file>.dat. If that
// file already exists the start time is appended to the file name so an
// earlier run's log is not overwritten.
func (f Factory) Open(objectName, fileName string) (Writer, error) {
	if !f.Master {
		return Discard, nil
	}
	if objectName == "" || fileName == "" {
		return nil, errors.New("series file needs an object name and a file name")
	}

	dir := f.Dir(objectName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}

	path := filepath.Join(dir, fileName+".dat")
	if _, err := os.Stat(path); err == nil {
		path = filepath.Join(dir, fileName+"_"+TimeName(f.StartTime, f.Precision)+".dat")
	}
	return Create(path, f.Precision)
}

// File is a Writer backed by a file on disk. Every call flushes and syncs
// before returning.
type File struct {
	mu        sync.Mutex
	path      string
	file      *os.File
	buf       *bufio.Writer
	precision int

	headerDone bool
	rows       int
	lastTime   float64
	closed     bool
}

// Create opens path for writing, truncating any existing content.
func Create(path string, precision int) (*File, error) {
	fh, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open series file: %w", err)
	}
	if precision <= 0 {
		precision = DefaultPrecision
	}
	return &File{
		path:      path,
		file:      fh,
		buf:       bufio.NewWriter(fh),
		precision: precision,
	}, nil
}

// Path returns the file location.
func (w *File) Path() string {
	return w.path
}

// Rows returns the number of rows written.
func (w *File) Rows() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rows
}

// WriteHeader writes the commented title and column lines followed by one
// blank line. It may be called once, before any row.
func (w *File) WriteHeader(title string, columns ...string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}
	if w.headerDone {
		return errors.New("series header already written")
	}
	if w.rows > 0 {
		return errors.New("series header must precede the first row")
	}

	fmt.Fprintf(w.buf, "# %s\n", title)
	if len(columns) > 0 {
		fmt.Fprintf(w.buf, "# %s\n", strings.Join(columns, "\t"))
	}
	w.buf.WriteString("\n")
	if err := w.flushLocked(); err != nil {
		return err
	}
	w.headerDone = true
	return nil
}

// WriteRow appends one row. Times must not decrease.
func (w *File) WriteRow(time float64, values ...float64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}
	if w.rows > 0 && time < w.lastTime {
		return fmt.Errorf("series row at time %v precedes previous row at %v", time, w.lastTime)
	}

	w.buf.WriteString(strconv.FormatFloat(time, 'g', w.precision, 64))
	for _, v := range values {
		w.buf.WriteByte('\t')
		w.buf.WriteString(strconv.FormatFloat(v, 'g', w.precision, 64))
	}
	w.buf.WriteByte('\n')
	if err := w.flushLocked(); err != nil {
		return err
	}
	w.rows++
	w.lastTime = time
	return nil
}

// Close flushes and closes the file. Closing twice is a no-op.
func (w *File) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	flushErr := w.buf.Flush()
	return errors.Join(flushErr, w.file.Close())
}

func (w *File) flushLocked() error {
	if err := w.buf.Flush(); err != nil {
		return fmt.Errorf("failed to write %s: %w", w.path, err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync %s: %w", w.path, err)
	}
	return nil
}

type discard struct{}

func (discard) WriteHeader(string, ...string) error { return nil }
func (discard) WriteRow(float64, ...float64) error  { return nil }
func (discard) Close() error                        { return nil }

// Discard accepts and drops everything. Non-master ranks write to it.
var Discard Writer = discard{}
