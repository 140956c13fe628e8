package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/crimson-sun/combatlog/internal/config"
	"github.com/crimson-sun/combatlog/internal/logging"

	// Register connector implementations.
	_ "github.com/crimson-sun/combatlog/internal/connector/file"
	_ "github.com/crimson-sun/combatlog/internal/connector/gzip"
)

const usage = `usage: combatlog <command> [flags] [args]

commands:
  normalize <log>   filter a raw combat log into the intermediate CSV
  segment           split the intermediate CSV into encounters
  run <log>         normalize and segment in one pass
  export            load a canonical CSV into SQLite

Run "combatlog <command> -h" for the flags of a command.
`

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(os.Stderr, "\nreceived %v, shutting down...\n", sig)
		cancel()
	}()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one command and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	base, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	name, rest := args[0], args[1:]
	fs := flag.NewFlagSet("combatlog "+name, flag.ContinueOnError)
	fs.SetOutput(stderr)

	var cmd command
	switch name {
	case "normalize":
		cmd, err = parseNormalizeConfig(fs, rest, base)
	case "segment":
		cmd, err = parseSegmentConfig(fs, rest, base)
	case "run":
		cmd, err = parseRunConfig(fs, rest, base)
	case "export":
		cmd, err = parseExportConfig(fs, rest, base)
	case "help", "-h", "-help", "--help":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stderr, "Error: unknown command %q\n\n%s", name, usage)
		return 2
	}
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	cfg := cmd.config()
	runID := uuid.NewString()
	logging.Init(cfg.Output.Stdout, logging.ParseLevel(cfg.LogLevel), slog.String("run_id", runID))

	// Keep stdout clean for NDJSON when that sink is on.
	msgOut := stdout
	if cfg.Output.Stdout {
		msgOut = stderr
	}

	msg, err := cmd.execute(ctx, runID)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Fprintln(msgOut, msg)
	return 0
}
