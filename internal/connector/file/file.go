// Package file reads a plain-text combat log from disk.
package file

import (
	"context"
	"fmt"
	"os"

	"github.com/crimson-sun/combatlog/internal/connector"
	"github.com/crimson-sun/combatlog/internal/model"
)

func init() {
	connector.Register("file", func() connector.Connector { return New() })
}

// Connector reads a UTF-8 combat log file line by line.
type Connector struct{}

// New creates a file connector.
func New() *Connector {
	return &Connector{}
}

// Read opens cfg.Path and delivers its lines to fn.
func (c *Connector) Read(ctx context.Context, cfg connector.ConnectorConfig, fn func(model.RawLine) error) error {
	f, err := os.Open(cfg.Path)
	if err != nil {
		return fmt.Errorf("file connector: open %s: %w", cfg.Path, err)
	}
	defer f.Close()

	if err := connector.ScanLines(ctx, f, fn); err != nil {
		return fmt.Errorf("file connector: read %s: %w", cfg.Path, err)
	}
	return nil
}
