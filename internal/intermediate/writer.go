// Package intermediate reads and writes the stage-1 file that hands
// normalized rows from the normalizer to the segmenter.
package intermediate

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/crimson-sun/combatlog/internal/model"
)

const defaultBufSize = 64 * 1024 // 64KB

// Writer writes normalized rows to a temporary sibling of the target path.
// The file only appears at the target path once Close succeeds.
type Writer struct {
	path   string
	f      *os.File
	buf    *bufio.Writer
	csv    *csv.Writer
	rows   int
	closed bool
}

// Create opens a writer for path and writes the header row.
func Create(path string) (*Writer, error) {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("intermediate: create %s: %w", path, err)
	}
	buf := bufio.NewWriterSize(f, defaultBufSize)
	w := &Writer{path: path, f: f, buf: buf, csv: csv.NewWriter(buf)}
	if err := f.Chmod(0o644); err != nil {
		w.Abort()
		return nil, fmt.Errorf("intermediate: chmod %s: %w", f.Name(), err)
	}
	if err := w.csv.Write(model.IntermediateHeader); err != nil {
		w.Abort()
		return nil, fmt.Errorf("intermediate: write header: %w", err)
	}
	return w, nil
}

// Write appends one normalized row.
func (w *Writer) Write(rec model.NormalizedRecord) error {
	if err := w.csv.Write(rec.Fields); err != nil {
		return fmt.Errorf("intermediate: write row: %w", err)
	}
	w.rows++
	return nil
}

// Rows returns the number of data rows written so far.
func (w *Writer) Rows() int { return w.rows }

// Path returns the final destination of the file.
func (w *Writer) Path() string { return w.path }

// Close flushes the rows and moves the file into place.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		w.discard()
		return fmt.Errorf("intermediate: flush: %w", err)
	}
	if err := w.buf.Flush(); err != nil {
		w.discard()
		return fmt.Errorf("intermediate: flush: %w", err)
	}
	if err := w.f.Close(); err != nil {
		os.Remove(w.f.Name())
		return fmt.Errorf("intermediate: close: %w", err)
	}
	if err := os.Rename(w.f.Name(), w.path); err != nil {
		os.Remove(w.f.Name())
		return fmt.Errorf("intermediate: commit %s: %w", w.path, err)
	}
	return nil
}

// Abort discards everything written. It is a no-op after Close.
func (w *Writer) Abort() {
	if w.closed {
		return
	}
	w.closed = true
	w.discard()
}

func (w *Writer) discard() {
	w.f.Close()
	os.Remove(w.f.Name())
}
