// Package canonical reads the 15-column canonical CSV back into records, for
// loading a finished run into other sinks.
package canonical

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/crimson-sun/combatlog/internal/model"
	"github.com/crimson-sun/combatlog/internal/output"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ErrBadRow reports a row that does not fit the canonical schema.
var ErrBadRow = errors.New("malformed canonical row")

// Scan reads canonical rows from r and passes them to fn in order. The
// header row is required.
func Scan(ctx context.Context, r io.Reader, fn func(model.CanonicalRecord) error) error {
	cr := csv.NewReader(transform.NewReader(r, unicode.UTF8BOM.NewDecoder()))
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return fmt.Errorf("canonical: missing header: %w", ErrBadRow)
	}
	if err != nil {
		return fmt.Errorf("canonical: read header: %w", err)
	}
	if !isHeader(header) {
		return fmt.Errorf("canonical: unexpected header %q: %w", strings.Join(header, ","), ErrBadRow)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("canonical: read: %w", err)
		}
		line, _ := cr.FieldPos(0)
		rec, err := parseRow(fields)
		if err != nil {
			return fmt.Errorf("canonical: line %d: %w", line, err)
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
}

// ScanFile opens path and scans it with Scan.
func ScanFile(ctx context.Context, path string, fn func(model.CanonicalRecord) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("canonical: open %s: %w", path, err)
	}
	defer f.Close()
	return Scan(ctx, f, fn)
}

// ReadFile loads every record of the canonical file at path.
func ReadFile(ctx context.Context, path string) ([]model.CanonicalRecord, error) {
	var recs []model.CanonicalRecord
	err := ScanFile(ctx, path, func(rec model.CanonicalRecord) error {
		recs = append(recs, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return recs, nil
}

// HasHeader reports whether the file at path starts with the canonical
// header row. An empty file does not.
func HasHeader(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, fmt.Errorf("canonical: open %s: %w", path, err)
	}
	defer f.Close()

	cr := csv.NewReader(transform.NewReader(f, unicode.UTF8BOM.NewDecoder()))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("canonical: read header: %w", err)
	}
	return isHeader(header), nil
}

func isHeader(fields []string) bool {
	if len(fields) != len(output.CanonicalHeader) {
		return false
	}
	for i, h := range output.CanonicalHeader {
		if fields[i] != h {
			return false
		}
	}
	return true
}

func parseRow(f []string) (model.CanonicalRecord, error) {
	if len(f) != len(output.CanonicalHeader) {
		return model.CanonicalRecord{}, fmt.Errorf("%d columns, want %d: %w", len(f), len(output.CanonicalHeader), ErrBadRow)
	}
	id, err := strconv.Atoi(f[12])
	if err != nil {
		return model.CanonicalRecord{}, fmt.Errorf("encounter id %q: %w", f[12], ErrBadRow)
	}
	elapsed, err := model.ParseSeconds(f[13])
	if err != nil {
		return model.CanonicalRecord{}, fmt.Errorf("%v: %w", err, ErrBadRow)
	}
	seq, err := strconv.Atoi(f[14])
	if err != nil {
		return model.CanonicalRecord{}, fmt.Errorf("unit died sequence %q: %w", f[14], ErrBadRow)
	}
	return model.CanonicalRecord{
		Timestamp:        f[0],
		EventType:        f[1],
		DamageSource:     f[2],
		SpellDestination: f[3],
		SpellID:          f[4],
		SpellName:        f[5],
		Position:         model.Position{X: f[6], Y: f[7], Facing: f[8]},
		AuraType:         f[9],
		MapID:            f[10],
		EncounterName:    f[11],
		EncounterID:      id,
		Elapsed:          elapsed,
		UnitDiedSequence: seq,
	}, nil
}
