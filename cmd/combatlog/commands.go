package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/crimson-sun/combatlog/internal/canonical"
	"github.com/crimson-sun/combatlog/internal/config"
	"github.com/crimson-sun/combatlog/internal/connector"
	"github.com/crimson-sun/combatlog/internal/engine"
	"github.com/crimson-sun/combatlog/internal/engine/normalizer"
	"github.com/crimson-sun/combatlog/internal/engine/segmenter"
	"github.com/crimson-sun/combatlog/internal/intermediate"
	"github.com/crimson-sun/combatlog/internal/model"
	"github.com/crimson-sun/combatlog/internal/output"
	"github.com/crimson-sun/combatlog/internal/output/csvfile"
	"github.com/crimson-sun/combatlog/internal/output/multi"
	"github.com/crimson-sun/combatlog/internal/output/sqlite"
	"github.com/crimson-sun/combatlog/internal/output/stdout"
	"github.com/crimson-sun/combatlog/internal/pipeline"
)

type command interface {
	config() config.Config
	execute(ctx context.Context, runID string) (string, error)
}

func bindLogLevel(fs *flag.FlagSet, cfg *config.Config) {
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
}

func bindSinks(fs *flag.FlagSet, cfg *config.Config) {
	fs.StringVar(&cfg.Output.Path, "output", cfg.Output.Path, "canonical CSV output path")
	fs.DurationVar(&cfg.Engine.MinEncounterDuration, "min-duration", cfg.Engine.MinEncounterDuration, "drop encounters lasting this long or less")
	fs.StringVar(&cfg.Output.SQLitePath, "sqlite", cfg.Output.SQLitePath, "also store records in this SQLite database")
	fs.BoolVar(&cfg.Output.Stdout, "stdout", cfg.Output.Stdout, "also write records to stdout as NDJSON")
	fs.BoolVar(&cfg.Output.Pretty, "pretty", cfg.Output.Pretty, "indent NDJSON output")
}

// singleArg parses flags and returns the one positional argument.
func singleArg(fs *flag.FlagSet, args []string, what string) (string, error) {
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	if fs.NArg() != 1 {
		return "", fmt.Errorf("%s expects exactly one %s argument, got %d", fs.Name(), what, fs.NArg())
	}
	return fs.Arg(0), nil
}

func newEngine(cfg config.Config) *engine.Engine {
	return engine.New(normalizer.New(), segmenter.Config{MinDuration: cfg.Engine.MinEncounterDuration})
}

func newConnector(cfg config.Config, path string) (connector.Connector, connector.ConnectorConfig, error) {
	provider := connector.InferProvider(path, cfg.Connector.Provider)
	ctor, err := connector.Get(provider)
	if err != nil {
		return nil, connector.ConnectorConfig{}, err
	}
	return ctor(), connector.ConnectorConfig{Provider: provider, Path: path}, nil
}

// inputError turns a missing source into the message users expect.
func inputError(path string, err error) error {
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("input file %s does not exist", path)
	}
	return err
}

// buildOutput opens every configured sink. The CSV file is always written.
func buildOutput(ctx context.Context, cfg config.Config, runID, source string) (output.Output, error) {
	csvOut, err := csvfile.New(cfg.Output.Path)
	if err != nil {
		return nil, err
	}
	outs := []output.Output{csvOut}

	if cfg.Output.SQLitePath != "" {
		db, err := sqlite.Open(ctx, cfg.Output.SQLitePath, runID, source)
		if err != nil {
			csvOut.Abort()
			return nil, err
		}
		outs = append(outs, db)
	}
	if cfg.Output.Stdout {
		outs = append(outs, stdout.New(cfg.Output.Pretty))
	}

	if len(outs) == 1 {
		return csvOut, nil
	}
	return multi.New(outs...), nil
}

// finish commits the pipeline's output on success and discards it otherwise.
func finish(p *pipeline.Pipeline, runErr error) error {
	if runErr != nil {
		if err := p.Abort(); err != nil {
			slog.Warn("discarding output failed", "error", err)
		}
		return runErr
	}
	return p.Close()
}

// --- normalize ---

type normalizeCommand struct {
	cfg   config.Config
	input string
}

func parseNormalizeConfig(fs *flag.FlagSet, args []string, cfg config.Config) (*normalizeCommand, error) {
	bindLogLevel(fs, &cfg)
	fs.StringVar(&cfg.Connector.Provider, "input", cfg.Connector.Provider, "input provider (file, gzip); .gz paths use gzip")
	fs.StringVar(&cfg.Output.IntermediatePath, "intermediate", cfg.Output.IntermediatePath, "intermediate CSV output path")
	input, err := singleArg(fs, args, "log file")
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &normalizeCommand{cfg: cfg, input: input}, nil
}

func (c *normalizeCommand) config() config.Config { return c.cfg }

func (c *normalizeCommand) execute(ctx context.Context, _ string) (string, error) {
	conn, connCfg, err := newConnector(c.cfg, c.input)
	if err != nil {
		return "", err
	}
	w, err := intermediate.Create(c.cfg.Output.IntermediatePath)
	if err != nil {
		return "", err
	}

	p := pipeline.New(conn, newEngine(c.cfg), nil)
	if _, err := p.Normalize(ctx, connCfg, w); err != nil {
		w.Abort()
		return "", inputError(c.input, err)
	}
	if err := w.Close(); err != nil {
		return "", err
	}
	return fmt.Sprintf("Processing complete. Filtered data saved to %s", w.Path()), nil
}

// --- segment ---

type segmentCommand struct {
	cfg config.Config
}

func parseSegmentConfig(fs *flag.FlagSet, args []string, cfg config.Config) (*segmentCommand, error) {
	bindLogLevel(fs, &cfg)
	fs.StringVar(&cfg.Output.IntermediatePath, "intermediate", cfg.Output.IntermediatePath, "intermediate CSV input path")
	bindSinks(fs, &cfg)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() != 0 {
		return nil, fmt.Errorf("%s takes no arguments, got %d", fs.Name(), fs.NArg())
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &segmentCommand{cfg: cfg}, nil
}

func (c *segmentCommand) config() config.Config { return c.cfg }

func (c *segmentCommand) execute(ctx context.Context, runID string) (string, error) {
	out, err := buildOutput(ctx, c.cfg, runID, c.cfg.Output.IntermediatePath)
	if err != nil {
		return "", err
	}
	p := pipeline.New(nil, newEngine(c.cfg), out)
	_, err = p.Segment(ctx, c.cfg.Output.IntermediatePath)
	if err := finish(p, err); err != nil {
		return "", inputError(c.cfg.Output.IntermediatePath, err)
	}
	return fmt.Sprintf("Filtered combat log saved to %s", c.cfg.Output.Path), nil
}

// --- run ---

type runCommand struct {
	cfg   config.Config
	input string
}

func parseRunConfig(fs *flag.FlagSet, args []string, cfg config.Config) (*runCommand, error) {
	bindLogLevel(fs, &cfg)
	fs.StringVar(&cfg.Connector.Provider, "input", cfg.Connector.Provider, "input provider (file, gzip); .gz paths use gzip")
	bindSinks(fs, &cfg)
	input, err := singleArg(fs, args, "log file")
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &runCommand{cfg: cfg, input: input}, nil
}

func (c *runCommand) config() config.Config { return c.cfg }

func (c *runCommand) execute(ctx context.Context, runID string) (string, error) {
	conn, connCfg, err := newConnector(c.cfg, c.input)
	if err != nil {
		return "", err
	}
	out, err := buildOutput(ctx, c.cfg, runID, c.input)
	if err != nil {
		return "", err
	}
	p := pipeline.New(conn, newEngine(c.cfg), out)
	_, _, err = p.Run(ctx, connCfg)
	if err := finish(p, err); err != nil {
		return "", inputError(c.input, err)
	}
	return fmt.Sprintf("Filtered combat log saved to %s", c.cfg.Output.Path), nil
}

// --- export ---

type exportCommand struct {
	cfg config.Config
}

func parseExportConfig(fs *flag.FlagSet, args []string, cfg config.Config) (*exportCommand, error) {
	bindLogLevel(fs, &cfg)
	fs.StringVar(&cfg.Output.Path, "from", cfg.Output.Path, "canonical CSV to load")
	fs.StringVar(&cfg.Output.SQLitePath, "sqlite", cfg.Output.SQLitePath, "SQLite database to load into")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() != 0 {
		return nil, fmt.Errorf("%s takes no arguments, got %d", fs.Name(), fs.NArg())
	}
	if cfg.Output.SQLitePath == "" {
		return nil, errors.New("export requires -sqlite or COMBATLOG_SQLITE_PATH")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &exportCommand{cfg: cfg}, nil
}

func (c *exportCommand) config() config.Config { return c.cfg }

func (c *exportCommand) execute(ctx context.Context, runID string) (string, error) {
	db, err := sqlite.Open(ctx, c.cfg.Output.SQLitePath, runID, c.cfg.Output.Path)
	if err != nil {
		return "", err
	}
	var n int
	err = canonical.ScanFile(ctx, c.cfg.Output.Path, func(rec model.CanonicalRecord) error {
		n++
		return db.Write(ctx, rec)
	})
	if err != nil {
		db.Abort()
		return "", inputError(c.cfg.Output.Path, err)
	}
	if err := db.Close(); err != nil {
		return "", err
	}
	slog.Info("export complete", "records", n, "database", c.cfg.Output.SQLitePath)
	return fmt.Sprintf("Exported %d records from %s to %s (run %s)", n, c.cfg.Output.Path, c.cfg.Output.SQLitePath, runID), nil
}
