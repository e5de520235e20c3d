package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/noah-isme/enrollment-pipeline/pkg/config"
)

// Schema creates the tables used by the database sink. Statements are idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS enrollment_records (
    run_id            TEXT        NOT NULL,
    position          INTEGER     NOT NULL,
    enrollment_id     BIGINT      NOT NULL,
    participant_id    TEXT        NOT NULL,
    city              TEXT        NOT NULL,
    enrollment_date   TIMESTAMPTZ NULL,
    program_center    TEXT        NOT NULL DEFAULT '',
    completion_status TEXT        NOT NULL DEFAULT '',
    PRIMARY KEY (run_id, position)
);
CREATE INDEX IF NOT EXISTS idx_enrollment_records_city ON enrollment_records (city);
CREATE TABLE IF NOT EXISTS city_metrics (
    run_id             TEXT        NOT NULL,
    city               TEXT        NOT NULL,
    total_enrollments  INTEGER     NOT NULL,
    repeat_enrollments INTEGER     NOT NULL,
    first_enrollment   TIMESTAMPTZ NULL,
    last_enrollment    TIMESTAMPTZ NULL,
    PRIMARY KEY (run_id, city)
);
CREATE TABLE IF NOT EXISTS pipeline_runs (
    run_id      TEXT        PRIMARY KEY,
    raw_count   INTEGER     NOT NULL,
    clean_count INTEGER     NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

// NewPostgres returns a configured PostgreSQL client.
func NewPostgres(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.Name,
		cfg.SSLMode,
	)

	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	db.SetConnMaxLifetime(1 * time.Hour)
	db.SetConnMaxIdleTime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// Migrate applies Schema.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
