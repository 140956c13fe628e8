package intermediate

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/crimson-sun/combatlog/internal/model"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Scan reads normalized rows from r and passes them to fn in file order.
// Rows may have any width. A header row, if present, is skipped.
func Scan(ctx context.Context, r io.Reader, fn func(model.NormalizedRecord) error) error {
	cr := csv.NewReader(transform.NewReader(r, unicode.UTF8BOM.NewDecoder()))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	first := true
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("intermediate: read: %w", err)
		}
		if first {
			first = false
			if isHeader(fields) {
				continue
			}
		}
		if err := fn(model.NormalizedRecord{Fields: fields}); err != nil {
			return err
		}
	}
}

// ScanFile opens path and scans it with Scan.
func ScanFile(ctx context.Context, path string, fn func(model.NormalizedRecord) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("intermediate: open %s: %w", path, err)
	}
	defer f.Close()
	return Scan(ctx, f, fn)
}

// ReadFile loads every row of the file at path.
func ReadFile(ctx context.Context, path string) ([]model.NormalizedRecord, error) {
	var rows []model.NormalizedRecord
	err := ScanFile(ctx, path, func(rec model.NormalizedRecord) error {
		rows = append(rows, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func isHeader(fields []string) bool {
	return len(fields) > 0 && fields[0] == model.IntermediateHeader[0]
}
