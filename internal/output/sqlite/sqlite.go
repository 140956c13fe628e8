// Package sqlite stores canonical records in a SQLite database, one row per
// record, grouped by run id.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/crimson-sun/combatlog/internal/model"
	"github.com/crimson-sun/combatlog/internal/output/sqlite/migrations"
)

// ErrDuplicateRun is returned by Open when the run id is already stored.
var ErrDuplicateRun = errors.New("run already stored")

const insertRecord = `INSERT INTO canonical_records (
	run_id, seq, timestamp, event_type, damage_source, spell_destination,
	spell_id, spell_name, x, y, facing, aura_type, map_id, encounter_name,
	encounter_id, relative_fight_time, elapsed_ns, unit_died_sequence
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// Output writes one run's records inside a single transaction. Nothing is
// visible to readers until Close commits.
//
// If Open created the database file, Abort removes it again so a failed run
// leaves nothing behind.
type Output struct {
	db      *sql.DB
	tx      *sql.Tx
	stmt    *sql.Stmt
	mu      sync.Mutex
	path    string
	created bool
	runID   string
	seq     int
	done    bool
}

// Open opens (or creates) the database at path, applies migrations and
// starts a run. source describes where the records came from.
func Open(ctx context.Context, path, runID, source string) (*Output, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite output: path is required")
	}
	if strings.TrimSpace(runID) == "" {
		return nil, fmt.Errorf("sqlite output: run id is required")
	}

	path = filepath.Clean(path)
	_, statErr := os.Stat(path)
	created := errors.Is(statErr, fs.ErrNotExist)
	fail := func(err error) (*Output, error) {
		if created {
			_ = removeDB(path)
		}
		return nil, err
	}

	db, err := openDB(ctx, path)
	if err != nil {
		return fail(err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		db.Close()
		return fail(fmt.Errorf("sqlite output: begin: %w", err))
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (run_id, source, created_at) VALUES (?, ?, ?)`,
		runID, source, time.Now().UTC().UnixMilli(),
	); err != nil {
		_ = tx.Rollback()
		db.Close()
		if isUniqueViolation(err) {
			return fail(fmt.Errorf("sqlite output: %s: %w", runID, ErrDuplicateRun))
		}
		return fail(fmt.Errorf("sqlite output: insert run: %w", err))
	}
	stmt, err := tx.PrepareContext(ctx, insertRecord)
	if err != nil {
		_ = tx.Rollback()
		db.Close()
		return fail(fmt.Errorf("sqlite output: prepare: %w", err))
	}

	return &Output{db: db, tx: tx, stmt: stmt, path: path, created: created, runID: runID}, nil
}

func openDB(ctx context.Context, path string) (*sql.DB, error) {
	dsn := path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite output: open db: %w", err)
	}
	// One connection keeps the run transaction and migrations on the same handle.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite output: ping db: %w", err)
	}
	if err := applyMigrations(ctx, db, migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite output: run migrations: %w", err)
	}
	return db, nil
}

// RunID returns the run the records are stored under.
func (o *Output) RunID() string { return o.runID }

// Write inserts rec with the next sequence number.
func (o *Output) Write(ctx context.Context, rec model.CanonicalRecord) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.done {
		return fmt.Errorf("sqlite output: write after close")
	}

	o.seq++
	_, err := o.stmt.ExecContext(ctx,
		o.runID, o.seq,
		rec.Timestamp, rec.EventType, rec.DamageSource, rec.SpellDestination,
		rec.SpellID, rec.SpellName, rec.X, rec.Y, rec.Facing, rec.AuraType,
		rec.MapID, rec.EncounterName, rec.EncounterID,
		rec.RelativeTime(), int64(rec.Elapsed), rec.UnitDiedSequence,
	)
	if err != nil {
		return fmt.Errorf("sqlite output: insert record %d: %w", o.seq, err)
	}
	return nil
}

// Close marks the run committed, commits the transaction and closes the
// database.
func (o *Output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.done {
		return nil
	}
	o.done = true

	o.stmt.Close()
	if _, err := o.tx.Exec(
		`UPDATE runs SET committed_at = ? WHERE run_id = ?`,
		time.Now().UTC().UnixMilli(), o.runID,
	); err != nil {
		_ = o.tx.Rollback()
		o.db.Close()
		return fmt.Errorf("sqlite output: finish run: %w", err)
	}
	if err := o.tx.Commit(); err != nil {
		o.db.Close()
		return fmt.Errorf("sqlite output: commit: %w", err)
	}
	return o.db.Close()
}

// Abort rolls back the run and closes the database. A database file created
// by Open is removed.
func (o *Output) Abort() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.done {
		return nil
	}
	o.done = true

	o.stmt.Close()
	rbErr := o.tx.Rollback()
	err := errors.Join(rbErr, o.db.Close())
	if o.created {
		err = errors.Join(err, removeDB(o.path))
	}
	return err
}

// removeDB deletes the database file and any journal files beside it.
func removeDB(path string) error {
	var errs []error
	for _, p := range []string{path, path + "-journal", path + "-wal", path + "-shm"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, fmt.Errorf("sqlite output: remove %s: %w", p, err))
		}
	}
	return errors.Join(errs...)
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
