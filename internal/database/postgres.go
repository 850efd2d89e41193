// Package database provides the PostgreSQL archive of collection schedule fetches.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"

	"github.com/andygrunwald/bin-collection/internal/models"
)

const schema = `
	CREATE TABLE IF NOT EXISTS bin_collection_fetches (
		id               BIGSERIAL PRIMARY KEY,
		uprn             TEXT        NOT NULL,
		source           TEXT        NOT NULL,
		fetched_at       TIMESTAMPTZ NOT NULL,
		collection_count INTEGER     NOT NULL,
		next_collection  TIMESTAMPTZ,
		raw_response     JSONB,
		error            TEXT
	);
	CREATE INDEX IF NOT EXISTS bin_collection_fetches_fetched_at_idx
		ON bin_collection_fetches (fetched_at);
`

// DB wraps the PostgreSQL connection and records fetch outcomes.
// The archive is write-only history; the service never reads its cache from it.
type DB struct {
	db               *sql.DB
	storeRawResponse bool
	logger           zerolog.Logger
}

// New creates a new database connection.
func New(dsn string, storeRawResponse bool, logger zerolog.Logger) (*DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database connection: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return NewFromDB(db, storeRawResponse, logger), nil
}

// NewFromDB wraps an already opened connection.
func NewFromDB(db *sql.DB, storeRawResponse bool, logger zerolog.Logger) *DB {
	return &DB{
		db:               db,
		storeRawResponse: storeRawResponse,
		logger:           logger.With().Str("component", "database").Logger(),
	}
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping checks if the database connection is alive.
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// EnsureSchema creates the archive table if it does not exist yet.
func (d *DB) EnsureSchema(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// RecordFetch appends one fetch outcome to the archive.
func (d *DB) RecordFetch(ctx context.Context, record models.FetchRecord) error {
	query := `
		INSERT INTO bin_collection_fetches (uprn, source, fetched_at, collection_count, next_collection, raw_response, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	var rawResponse any
	if d.storeRawResponse && len(record.RawResponse) > 0 {
		rawResponse = record.RawResponse
	}

	var errText *string
	if record.Error != "" {
		errText = &record.Error
	}

	_, err := d.db.ExecContext(ctx, query,
		record.UPRN,
		string(record.Source),
		record.FetchedAt,
		record.CollectionCount,
		record.NextCollection,
		rawResponse,
		errText,
	)
	if err != nil {
		return fmt.Errorf("inserting fetch record: %w", err)
	}

	d.logger.Debug().
		Str("uprn", record.UPRN).
		Str("source", string(record.Source)).
		Int("collections", record.CollectionCount).
		Msg("archived fetch")

	return nil
}

// CountFetches returns the number of archived fetches.
func (d *DB) CountFetches(ctx context.Context) (int64, error) {
	var count int64
	err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM bin_collection_fetches").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting fetches: %w", err)
	}
	return count, nil
}

// Status reports the archive state for the health endpoint.
func (d *DB) Status(ctx context.Context) models.ArchiveStatus {
	status := models.ArchiveStatus{Enabled: true}

	if err := d.Ping(ctx); err != nil {
		return status
	}
	status.Connected = true

	count, err := d.CountFetches(ctx)
	if err == nil {
		status.TotalFetches = count
	}

	return status
}
