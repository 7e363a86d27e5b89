package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "modernc.org/sqlite"
)

const postgresSchema = `
	CREATE TABLE IF NOT EXISTS provisioned_records (
		id             TEXT        PRIMARY KEY,
		server_uuid    TEXT        NOT NULL,
		allocation_id  BIGINT      NOT NULL,
		server_name    TEXT        NOT NULL,
		hostname       TEXT,
		allocation     TEXT        NOT NULL,
		zone_id        TEXT,
		record_id      TEXT,
		status         TEXT        NOT NULL,
		error_message  TEXT,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (server_uuid, allocation_id)
	)
`

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS provisioned_records (
		id             TEXT    PRIMARY KEY,
		server_uuid    TEXT    NOT NULL,
		allocation_id  INTEGER NOT NULL,
		server_name    TEXT    NOT NULL,
		hostname       TEXT,
		allocation     TEXT    NOT NULL,
		zone_id        TEXT,
		record_id      TEXT,
		status         TEXT    NOT NULL,
		error_message  TEXT,
		created_at     TEXT    NOT NULL,
		updated_at     TEXT    NOT NULL,
		UNIQUE (server_uuid, allocation_id)
	)
`

// NewPool creates a Postgres connection pool from DSN and applies the schema.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return pool, nil
}

// OpenSQLite opens (or creates) the SQLite database at path and applies the
// schema. ":memory:" is accepted.
func OpenSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// One connection: writes are serialized and ":memory:" stays a single database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}
