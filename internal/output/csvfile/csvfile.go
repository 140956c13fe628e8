// Package csvfile writes canonical records to the 15-column CSV file that
// downstream analysis tools read.
package csvfile

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/crimson-sun/combatlog/internal/model"
	"github.com/crimson-sun/combatlog/internal/output"
)

const defaultBufSize = 64 * 1024 // 64KB

// Option configures a csvfile Output.
type Option func(*Output)

// WithBufSize sets the bufio.Writer buffer size. Default: 64KB.
func WithBufSize(bytes int) Option {
	return func(o *Output) { o.bufSize = bytes }
}

// Output writes canonical CSV to a temporary sibling of path and renames it
// into place on Close, so an aborted run never leaves a partial file.
type Output struct {
	f       *os.File
	buf     *bufio.Writer
	w       *csv.Writer
	mu      sync.Mutex
	path    string
	bufSize int
	rows    int
	done    bool
}

// New creates a csvfile output for path and writes the header row.
func New(path string, opts ...Option) (*Output, error) {
	o := &Output{path: path, bufSize: defaultBufSize}
	for _, opt := range opts {
		opt(o)
	}

	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("csv output: create %s: %w", path, err)
	}
	o.f = f
	if err := f.Chmod(0o644); err != nil {
		o.discard()
		return nil, fmt.Errorf("csv output: chmod %s: %w", f.Name(), err)
	}
	o.buf = bufio.NewWriterSize(f, o.bufSize)
	o.w = csv.NewWriter(o.buf)

	if err := o.w.Write(output.CanonicalHeader); err != nil {
		o.discard()
		return nil, fmt.Errorf("csv output: write header: %w", err)
	}
	return o, nil
}

// Write appends rec as one row.
func (o *Output) Write(_ context.Context, rec model.CanonicalRecord) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.done {
		return fmt.Errorf("csv output: write after close")
	}
	if err := o.w.Write(output.FormatRecord(rec)); err != nil {
		return fmt.Errorf("csv output: write: %w", err)
	}
	o.rows++
	return nil
}

// Rows returns the number of records written.
func (o *Output) Rows() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.rows
}

// Path returns the file the output commits to.
func (o *Output) Path() string { return o.path }

// Close flushes the buffer and moves the file into place.
func (o *Output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.done {
		return nil
	}
	o.done = true

	o.w.Flush()
	if err := o.w.Error(); err != nil {
		o.discard()
		return fmt.Errorf("csv output: flush: %w", err)
	}
	if err := o.buf.Flush(); err != nil {
		o.discard()
		return fmt.Errorf("csv output: flush: %w", err)
	}
	if err := o.f.Close(); err != nil {
		os.Remove(o.f.Name())
		return fmt.Errorf("csv output: close: %w", err)
	}
	if err := os.Rename(o.f.Name(), o.path); err != nil {
		os.Remove(o.f.Name())
		return fmt.Errorf("csv output: commit %s: %w", o.path, err)
	}
	return nil
}

// Abort removes the temporary file without touching path.
func (o *Output) Abort() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.done {
		return nil
	}
	o.done = true
	return o.discard()
}

func (o *Output) discard() error {
	o.f.Close()
	if err := os.Remove(o.f.Name()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("csv output: remove temp file: %w", err)
	}
	return nil
}
