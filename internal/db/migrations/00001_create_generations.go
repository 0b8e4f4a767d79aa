package migrations

// The generations table stores one row per pipeline run. Column types differ
// per driver for the timestamp and boolean columns.

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upCreateGenerations, downCreateGenerations)
}

func upCreateGenerations(ctx context.Context, tx *sql.Tx) error {
	var ddl string
	switch dialect {
	case "postgres":
		ddl = `CREATE TABLE IF NOT EXISTS generations (
    id              VARCHAR(36) PRIMARY KEY,
    mode            VARCHAR(16) NOT NULL,
    detail_level    VARCHAR(16) NOT NULL,
    variables       TEXT NOT NULL,
    dummy_data      BOOLEAN NOT NULL DEFAULT FALSE,
    status          VARCHAR(16) NOT NULL,
    duration_ms     BIGINT NOT NULL,
    template_length INTEGER NOT NULL DEFAULT 0,
    error           TEXT NOT NULL,
    created_at      TIMESTAMPTZ NOT NULL
)`
	case "mysql":
		ddl = `CREATE TABLE IF NOT EXISTS generations (
    id              VARCHAR(36) PRIMARY KEY,
    mode            VARCHAR(16) NOT NULL,
    detail_level    VARCHAR(16) NOT NULL,
    variables       TEXT NOT NULL,
    dummy_data      TINYINT(1) NOT NULL DEFAULT 0,
    status          VARCHAR(16) NOT NULL,
    duration_ms     BIGINT NOT NULL,
    template_length INT NOT NULL DEFAULT 0,
    error           TEXT NOT NULL,
    created_at      TIMESTAMP(6) NOT NULL
)`
	default: // sqlite3
		ddl = `CREATE TABLE IF NOT EXISTS generations (
    id              TEXT PRIMARY KEY,
    mode            TEXT NOT NULL,
    detail_level    TEXT NOT NULL,
    variables       TEXT NOT NULL,
    dummy_data      BOOLEAN NOT NULL DEFAULT 0,
    status          TEXT NOT NULL,
    duration_ms     INTEGER NOT NULL,
    template_length INTEGER NOT NULL DEFAULT 0,
    error           TEXT NOT NULL,
    created_at      DATETIME NOT NULL
)`
	}
	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create generations table: %w", err)
	}
	_, err := tx.ExecContext(ctx, `CREATE INDEX generations_created_at_idx ON generations (created_at)`)
	return err
}

func downCreateGenerations(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS generations`)
	return err
}
