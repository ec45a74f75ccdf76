package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// PostgresRunStore implements RunStore with PostgreSQL persistence.
type PostgresRunStore struct {
	db *sql.DB
}

// PostgresConfig contains PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
}

// ConnectionString returns the PostgreSQL connection string.
func (c *PostgresConfig) ConnectionString() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, sslMode)
}

// NewPostgresRunStore creates a new PostgreSQL-backed run store.
func NewPostgresRunStore(config *PostgresConfig) (*PostgresRunStore, error) {
	db, err := sql.Open("postgres", config.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	store := &PostgresRunStore{db: db}
	if err := store.migrate(); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return store, nil
}

func (s *PostgresRunStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS match_runs (
		run_id VARCHAR(128) PRIMARY KEY,
		party_index INTEGER NOT NULL,
		capacity INTEGER NOT NULL,
		match_count INTEGER NOT NULL,
		status VARCHAR(32) NOT NULL,
		error TEXT,
		started_at TIMESTAMP WITH TIME ZONE NOT NULL,
		finished_at TIMESTAMP WITH TIME ZONE NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_match_runs_status ON match_runs(status);
	CREATE INDEX IF NOT EXISTS idx_match_runs_started ON match_runs(started_at);
	`

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// SaveRun stores or overwrites the record for its run ID.
func (s *PostgresRunStore) SaveRun(record *RunRecord) error {
	if record.RunID == "" {
		return fmt.Errorf("run record has empty run ID")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO match_runs (run_id, party_index, capacity, match_count, status, error, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (run_id) DO UPDATE SET
			party_index = EXCLUDED.party_index,
			capacity = EXCLUDED.capacity,
			match_count = EXCLUDED.match_count,
			status = EXCLUDED.status,
			error = EXCLUDED.error,
			started_at = EXCLUDED.started_at,
			finished_at = EXCLUDED.finished_at`,
		record.RunID, record.PartyIndex, record.Capacity, record.MatchCount,
		string(record.Status), record.Error, record.StartedAt, record.FinishedAt)
	if err != nil {
		return fmt.Errorf("saving run: %w", err)
	}
	return nil
}

// GetRun returns the record for a run ID.
func (s *PostgresRunStore) GetRun(runID string) (*RunRecord, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	record := &RunRecord{}
	var status string
	err := s.db.QueryRowContext(ctx, `
		SELECT run_id, party_index, capacity, match_count, status, COALESCE(error, ''), started_at, finished_at
		FROM match_runs WHERE run_id = $1`, runID).Scan(
		&record.RunID, &record.PartyIndex, &record.Capacity, &record.MatchCount,
		&status, &record.Error, &record.StartedAt, &record.FinishedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %s not found", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("loading run: %w", err)
	}
	record.Status = RunStatus(status)
	return record, nil
}

// ListRuns returns all records, oldest first.
func (s *PostgresRunStore) ListRuns() ([]*RunRecord, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, party_index, capacity, match_count, status, COALESCE(error, ''), started_at, finished_at
		FROM match_runs ORDER BY started_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var out []*RunRecord
	for rows.Next() {
		record := &RunRecord{}
		var status string
		if err := rows.Scan(
			&record.RunID, &record.PartyIndex, &record.Capacity, &record.MatchCount,
			&status, &record.Error, &record.StartedAt, &record.FinishedAt); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		record.Status = RunStatus(status)
		out = append(out, record)
	}
	return out, rows.Err()
}

// Close closes the database connection.
func (s *PostgresRunStore) Close() error {
	return s.db.Close()
}
