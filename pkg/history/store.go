package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/platinummonkey/plugingate/pkg/verdict"

	_ "github.com/lib/pq"           // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Supported database drivers
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// ErrRunNotFound is returned when no run has the requested id
var ErrRunNotFound = errors.New("run not found")

// DefaultLimit caps List when no limit is given
const DefaultLimit = 20

const schema = `
CREATE TABLE IF NOT EXISTS gate_runs (
	id          TEXT PRIMARY KEY,
	plugin      TEXT NOT NULL,
	binary_path TEXT NOT NULL,
	started_at  TIMESTAMP NOT NULL,
	state       TEXT NOT NULL,
	passed      BOOLEAN NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_gate_runs_plugin ON gate_runs (plugin, started_at);
CREATE TABLE IF NOT EXISTS gate_verdicts (
	run_id      TEXT NOT NULL REFERENCES gate_runs (id),
	position    INTEGER NOT NULL,
	stage       TEXT NOT NULL,
	status      TEXT NOT NULL,
	kind        TEXT NOT NULL,
	reason      TEXT NOT NULL,
	message     TEXT NOT NULL,
	evidence    TEXT NOT NULL,
	duration_ns INTEGER NOT NULL,
	PRIMARY KEY (run_id, position)
);
`

// Run is a recorded gate run
type Run struct {
	ID        string    `json:"run_id" yaml:"run_id"`
	Plugin    string    `json:"plugin" yaml:"plugin"`
	Binary    string    `json:"binary" yaml:"binary"`
	StartedAt time.Time `json:"started_at" yaml:"started_at"`
	State     string    `json:"state" yaml:"state"`
	Passed    bool      `json:"passed" yaml:"passed"`
}

// Store persists gate reports
type Store struct {
	db     *sql.DB
	driver string
}

// NewStore wraps an open SQLite database. Call Migrate before first use.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, driver: DriverSQLite}
}

// NewPostgresStore wraps an open PostgreSQL database
func NewPostgresStore(db *sql.DB) *Store {
	return &Store{db: db, driver: DriverPostgres}
}

// DriverFor picks the driver for a history location: postgres:// and
// postgresql:// URLs use PostgreSQL, anything else is a SQLite file path.
func DriverFor(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return DriverPostgres
	}
	return DriverSQLite
}

// Open connects to the history database at dsn, creating a SQLite file
// when needed, and migrates it
func Open(ctx context.Context, dsn string) (*Store, error) {
	driver := DriverFor(dsn)
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	store := &Store{db: db, driver: driver}
	if driver == DriverSQLite {
		// SQLite allows a single writer
		db.SetMaxOpenConns(1)
	} else if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to history database: %w", err)
	}

	if err := store.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// rebind rewrites ? placeholders into the driver's bind syntax
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Migrate creates the history tables
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate history database: %w", err)
	}
	return nil
}

// Record stores a report and its verdicts in one transaction
func (s *Store) Record(ctx context.Context, report *verdict.Report) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		s.rebind(`INSERT INTO gate_runs (id, plugin, binary_path, started_at, state, passed) VALUES (?, ?, ?, ?, ?, ?)`),
		report.RunID, report.Plugin, report.Binary, report.StartedAt.UTC(), report.State, report.Passed())
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}

	for i, v := range report.Verdicts {
		evidence, err := json.Marshal(v.Evidence)
		if err != nil {
			return fmt.Errorf("failed to encode evidence: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			s.rebind(`INSERT INTO gate_verdicts (run_id, position, stage, status, kind, reason, message, evidence, duration_ns)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			report.RunID, i, string(v.Stage), string(v.Status), string(v.Kind), v.Reason, v.Message,
			string(evidence), v.Duration.Nanoseconds())
		if err != nil {
			return fmt.Errorf("failed to record %s verdict: %w", v.Stage, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

// List returns the most recent runs, newest first, optionally for one plugin
func (s *Store) List(ctx context.Context, plugin string, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	query := `SELECT id, plugin, binary_path, started_at, state, passed FROM gate_runs`
	args := []interface{}{}
	if plugin != "" {
		query += ` WHERE plugin = ?`
		args = append(args, plugin)
	}
	query += ` ORDER BY started_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run := &Run{}
		if err := rows.Scan(&run.ID, &run.Plugin, &run.Binary, &run.StartedAt, &run.State, &run.Passed); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

// Get loads a full report by run id
func (s *Store) Get(ctx context.Context, runID string) (*verdict.Report, error) {
	report := &verdict.Report{}
	var passed bool
	err := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT id, plugin, binary_path, started_at, state, passed FROM gate_runs WHERE id = ?`), runID).
		Scan(&report.RunID, &report.Plugin, &report.Binary, &report.StartedAt, &report.State, &passed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		s.rebind(`SELECT stage, status, kind, reason, message, evidence, duration_ns
		 FROM gate_verdicts WHERE run_id = ? ORDER BY position`), runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load verdicts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			v          verdict.Verdict
			evidence   string
			durationNs int64
		)
		if err := rows.Scan(&v.Stage, &v.Status, &v.Kind, &v.Reason, &v.Message, &evidence, &durationNs); err != nil {
			return nil, fmt.Errorf("failed to scan verdict: %w", err)
		}
		if err := json.Unmarshal([]byte(evidence), &v.Evidence); err != nil {
			return nil, fmt.Errorf("failed to decode evidence: %w", err)
		}
		v.Duration = time.Duration(durationNs)
		report.Add(v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to load verdicts: %w", err)
	}
	return report, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}
