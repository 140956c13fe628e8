// Package gzip reads a gzip-compressed combat log, as produced by archiving
// tools that compress the WoWCombatLog text files.
package gzip

import (
	"context"
	"fmt"
	"os"

	kgzip "github.com/klauspost/compress/gzip"

	"github.com/crimson-sun/combatlog/internal/connector"
	"github.com/crimson-sun/combatlog/internal/model"
)

func init() {
	connector.Register("gzip", func() connector.Connector { return New() })
}

// Connector decompresses a .gz combat log and delivers its lines.
type Connector struct{}

// New creates a gzip connector.
func New() *Connector {
	return &Connector{}
}

// Read opens cfg.Path, decompresses it and delivers its lines to fn.
// Concatenated gzip members are read as one stream.
func (c *Connector) Read(ctx context.Context, cfg connector.ConnectorConfig, fn func(model.RawLine) error) error {
	f, err := os.Open(cfg.Path)
	if err != nil {
		return fmt.Errorf("gzip connector: open %s: %w", cfg.Path, err)
	}
	defer f.Close()

	zr, err := kgzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("gzip connector: %s: %w", cfg.Path, err)
	}
	defer zr.Close()

	if err := connector.ScanLines(ctx, zr, fn); err != nil {
		return fmt.Errorf("gzip connector: read %s: %w", cfg.Path, err)
	}
	return nil
}
