// Package store persists validation runs in SQLite
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"file-validator-service/internal/logging"
	"file-validator-service/internal/records"
	"file-validator-service/internal/reporter"
)

// Status is the processing state of a validation run
type Status string

const (
	StatusValidating Status = "VALIDATING"
	StatusValidated  Status = "VALIDATED"
	StatusFailed     Status = "FAILED"
)

var ErrNotFound = errors.New("validation record not found")

// ValidationRecord is one row of the validation_record table
type ValidationRecord struct {
	ID        string    `json:"id"`
	StartedAt time.Time `json:"started_at"`
	// EndedAt is nil while the run is in progress
	EndedAt    *time.Time       `json:"ended_at,omitempty"`
	Name       string           `json:"name"`
	InputPath  string           `json:"input_path"`
	Status     Status           `json:"status"`
	Logs       []records.Record `json:"logs,omitempty"`
	OutputPath []string         `json:"output_path,omitempty"`
	Summary    *reporter.Table  `json:"summary,omitempty"`
	Detailed   *reporter.Table  `json:"detailed,omitempty"`
}

// Outcome is what a finished run stores
type Outcome struct {
	Logs       *records.Stream
	OutputPath []string
	Report     *reporter.Report
}

// Config holds configuration for the SQLite store
type Config struct {
	Path string
	// Now is the clock used for started_at and ended_at
	Now func() time.Time
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{Path: "./data/validations.db"}
}

// Store records validation runs
type Store struct {
	db  *sql.DB
	mu  sync.RWMutex
	now func() time.Time
}

// Open opens or creates the database at cfg.Path
func Open(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		cfg.Path = DefaultConfig().Path
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db, now: cfg.Now}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS validation_record (
		id TEXT PRIMARY KEY,
		started_at DATETIME NOT NULL,
		ended_at DATETIME,
		name TEXT,
		input_path TEXT NOT NULL,
		output_path TEXT,
		status TEXT NOT NULL,
		logs TEXT,
		summary TEXT,
		detailed TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_validation_record_started_at ON validation_record(started_at DESC);
	CREATE INDEX IF NOT EXISTS idx_validation_record_status ON validation_record(status);
	`)
	return err
}

// Start inserts a run in the VALIDATING state
func (s *Store) Start(ctx context.Context, name, inputPath string) (*ValidationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := &ValidationRecord{
		ID:        uuid.NewString(),
		StartedAt: s.now(),
		Name:      name,
		InputPath: inputPath,
		Status:    StatusValidating,
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO validation_record (id, started_at, name, input_path, status)
		VALUES (?, ?, ?, ?, ?)
	`, rec.ID, rec.StartedAt, rec.Name, rec.InputPath, rec.Status)
	if err != nil {
		return nil, fmt.Errorf("failed to insert validation record: %w", err)
	}
	log := logging.Component("store")
	log.Debug().Str("id", rec.ID).Str("input", inputPath).Msg("validation started")
	return rec, nil
}

// Finish moves a run to VALIDATED and stores its logs and report tables
func (s *Store) Finish(ctx context.Context, id string, out Outcome) error {
	return s.end(ctx, id, StatusValidated, out)
}

// Fail moves a run to FAILED, keeping whatever logs it produced
func (s *Store) Fail(ctx context.Context, id string, logs *records.Stream) error {
	return s.end(ctx, id, StatusFailed, Outcome{Logs: logs})
}

func (s *Store) end(ctx context.Context, id string, status Status, out Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var logs []records.Record
	if out.Logs != nil {
		logs = out.Logs.Records()
	}
	logsJSON, err := marshalNullable(logs)
	if err != nil {
		return err
	}
	outputJSON, err := marshalNullable(out.OutputPath)
	if err != nil {
		return err
	}
	var summaryJSON, detailedJSON sql.NullString
	if out.Report != nil {
		if summaryJSON, err = marshalNullable(out.Report.Summary); err != nil {
			return err
		}
		if detailedJSON, err = marshalNullable(out.Report.Detailed); err != nil {
			return err
		}
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE validation_record
		SET ended_at = ?, status = ?, logs = ?, output_path = ?, summary = ?, detailed = ?
		WHERE id = ?
	`, s.now(), status, logsJSON, outputJSON, summaryJSON, detailedJSON, id)
	if err != nil {
		return fmt.Errorf("failed to update validation record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update validation record: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	log := logging.Component("store")
	log.Debug().Str("id", id).Str("status", string(status)).Msg("validation ended")
	return nil
}

func marshalNullable(v any) (sql.NullString, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to marshal column: %w", err)
	}
	if string(data) == "null" {
		return sql.NullString{}, nil
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

const selectColumns = `SELECT id, started_at, ended_at, name, input_path, output_path, status, logs, summary, detailed FROM validation_record`

// Get returns the run with the given id
func (s *Store) Get(ctx context.Context, id string) (*ValidationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return rec, err
}

// List returns the most recent runs first. A limit of zero returns every run.
func (s *Store) List(ctx context.Context, limit int) ([]*ValidationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := selectColumns + ` ORDER BY started_at DESC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query validation records: %w", err)
	}
	defer rows.Close()

	var out []*ValidationRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate validation records: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (*ValidationRecord, error) {
	var (
		rec                                   ValidationRecord
		endedAt                               sql.NullTime
		name, output, logs, summary, detailed sql.NullString
	)
	err := sc.Scan(&rec.ID, &rec.StartedAt, &endedAt, &name, &rec.InputPath, &output, &rec.Status, &logs, &summary, &detailed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan validation record: %w", err)
	}

	if endedAt.Valid {
		t := endedAt.Time
		rec.EndedAt = &t
	}
	rec.Name = name.String
	if err := unmarshalNullable(output, &rec.OutputPath); err != nil {
		return nil, err
	}
	if err := unmarshalNullable(logs, &rec.Logs); err != nil {
		return nil, err
	}
	if summary.Valid {
		rec.Summary = &reporter.Table{}
		if err := unmarshalNullable(summary, rec.Summary); err != nil {
			return nil, err
		}
	}
	if detailed.Valid {
		rec.Detailed = &reporter.Table{}
		if err := unmarshalNullable(detailed, rec.Detailed); err != nil {
			return nil, err
		}
	}
	return &rec, nil
}

func unmarshalNullable(col sql.NullString, dst any) error {
	if !col.Valid || col.String == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(col.String), dst); err != nil {
		return fmt.Errorf("failed to unmarshal column: %w", err)
	}
	return nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}
