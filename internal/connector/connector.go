package connector

import (
	"bufio"
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"

	"github.com/crimson-sun/combatlog/internal/model"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Connector defines the interface all combat log sources must implement.
type Connector interface {
	// Read delivers every line of the source to fn in order. It stops at the
	// first error returned by fn or by the underlying reader.
	Read(ctx context.Context, cfg ConnectorConfig, fn func(model.RawLine) error) error
}

// ConnectorConfig holds source-specific settings.
type ConnectorConfig struct {
	Provider string
	Path     string
}

// InferProvider picks a provider from the path's extension, falling back to
// the given default.
func InferProvider(path, fallback string) string {
	if strings.EqualFold(filepath.Ext(path), ".gz") {
		return "gzip"
	}
	return fallback
}

// ScanLines splits r into lines and passes them to fn. A leading UTF-8 byte
// order mark is removed and a trailing "\r" is kept for the consumer to trim.
// Lines of any length are supported.
func ScanLines(ctx context.Context, r io.Reader, fn func(model.RawLine) error) error {
	dec := unicode.UTF8BOM.NewDecoder()
	br := bufio.NewReaderSize(transform.NewReader(r, dec), 64*1024)

	for n := 1; ; n++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		text, err := br.ReadString('\n')
		if len(text) > 0 {
			text = strings.TrimSuffix(text, "\n")
			if ferr := fn(model.RawLine{Number: n, Text: text}); ferr != nil {
				return ferr
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
