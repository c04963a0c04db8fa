// Package storage persists committed combat results in SQLite so external
// settlement can look them up by hash or match.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound reports a hash or match with no stored commitment.
var ErrNotFound = errors.New("storage: commitment not found")

const schema = `
CREATE TABLE IF NOT EXISTS commitments (
  result_hash     TEXT PRIMARY KEY,
  correlation_id  TEXT NOT NULL,
  round           INTEGER NOT NULL,
  seed            INTEGER NOT NULL,
  winner          TEXT NOT NULL,
  damage_to_loser INTEGER NOT NULL,
  rng_call_count  INTEGER NOT NULL,
  total_steps     INTEGER NOT NULL,
  termination     TEXT NOT NULL,
  bundle_dir      TEXT NOT NULL DEFAULT '',
  created_at      INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS commitments_by_match ON commitments (correlation_id, round);
`

// Record is one stored commitment.
type Record struct {
	ResultHash    string    `json:"resultHash"`
	CorrelationID string    `json:"correlationId"`
	Round         int       `json:"round"`
	Seed          int64     `json:"seed"`
	Winner        string    `json:"winner"`
	DamageToLoser int       `json:"damageToLoser"`
	RNGCallCount  uint64    `json:"rngCallCount"`
	TotalSteps    uint64    `json:"totalSteps"`
	Termination   string    `json:"termination"`
	BundleDir     string    `json:"bundleDir,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Store persists commitments in SQLite.
type Store struct {
	sqlDB *sql.DB
	now   func() time.Time
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens the SQLite store at path and creates the schema when missing.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := path
	if path != ":memory:" {
		dsn = filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if path == ":memory:" {
		//1.- Every pooled connection to :memory: would see its own empty database.
		sqlDB.SetMaxOpenConns(1)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{sqlDB: sqlDB, now: time.Now}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return s.sqlDB.PingContext(ctx)
}

// Put stores a commitment. Storing the same hash twice keeps the first record,
// which is safe because equal hashes commit to equal fields.
func (s *Store) Put(ctx context.Context, record Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(record.ResultHash) == "" {
		return fmt.Errorf("result hash is required")
	}
	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT OR IGNORE INTO commitments (
		   result_hash, correlation_id, round, seed, winner, damage_to_loser,
		   rng_call_count, total_steps, termination, bundle_dir, created_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ResultHash,
		record.CorrelationID,
		record.Round,
		record.Seed,
		record.Winner,
		record.DamageToLoser,
		int64(record.RNGCallCount),
		int64(record.TotalSteps),
		record.Termination,
		record.BundleDir,
		toMillis(createdAt),
	)
	if err != nil {
		return fmt.Errorf("put commitment: %w", err)
	}
	return nil
}

const selectColumns = `SELECT result_hash, correlation_id, round, seed, winner, damage_to_loser,
  rng_call_count, total_steps, termination, bundle_dir, created_at FROM commitments`

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var record Record
	var rngCalls, steps, created int64
	if err := row.Scan(
		&record.ResultHash,
		&record.CorrelationID,
		&record.Round,
		&record.Seed,
		&record.Winner,
		&record.DamageToLoser,
		&rngCalls,
		&steps,
		&record.Termination,
		&record.BundleDir,
		&created,
	); err != nil {
		return Record{}, err
	}
	record.RNGCallCount = uint64(rngCalls)
	record.TotalSteps = uint64(steps)
	record.CreatedAt = fromMillis(created)
	return record, nil
}

// Get returns the commitment stored under hash.
func (s *Store) Get(ctx context.Context, hash string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	if s == nil || s.sqlDB == nil {
		return Record{}, fmt.Errorf("storage is not configured")
	}
	row := s.sqlDB.QueryRowContext(ctx, selectColumns+` WHERE result_hash = ?`, strings.TrimSpace(hash))
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("get commitment: %w", err)
	}
	return record, nil
}

// ListByMatch returns every commitment for a correlation id ordered by round then creation.
func (s *Store) ListByMatch(ctx context.Context, correlationID string) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	rows, err := s.sqlDB.QueryContext(ctx, selectColumns+` WHERE correlation_id = ? ORDER BY round ASC, created_at ASC, result_hash ASC`, correlationID)
	if err != nil {
		return nil, fmt.Errorf("list commitments: %w", err)
	}
	defer rows.Close()

	records := make([]Record, 0)
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan commitment: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate commitments: %w", err)
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	return records, nil
}

// Count returns the number of stored commitments.
func (s *Store) Count(ctx context.Context) (int64, error) {
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	var total int64
	if err := s.sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM commitments`).Scan(&total); err != nil {
		return 0, fmt.Errorf("count commitments: %w", err)
	}
	return total, nil
}
