// Package database opens the PostgreSQL pool and owns the schema.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens a pgx connection pool using the provided DSN and verifies it
// with a ping.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.MaxConns = 8
	cfg.MaxConnIdleTime = 5 * time.Minute
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// Schema is applied by EnsureSchema. Versions cascade with their application;
// an application's owner cannot be removed while it owns apps.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	username TEXT NOT NULL,
	email TEXT NOT NULL,
	password_hash TEXT NOT NULL,
	role TEXT NOT NULL CHECK (role IN ('super_admin', 'admin', 'user')),
	is_active BOOLEAN NOT NULL DEFAULT TRUE,
	created_by TEXT REFERENCES users(id) ON DELETE SET NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	last_login TIMESTAMPTZ,
	CONSTRAINT users_username_key UNIQUE (username),
	CONSTRAINT users_email_key UNIQUE (email)
);

CREATE TABLE IF NOT EXISTS apps (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	app_name TEXT NOT NULL DEFAULT '',
	app_key TEXT NOT NULL,
	download_key TEXT NOT NULL,
	system TEXT NOT NULL,
	bundle_id TEXT NOT NULL DEFAULT '',
	version TEXT NOT NULL DEFAULT '',
	build_number TEXT NOT NULL DEFAULT '',
	upload_date TIMESTAMPTZ,
	download_url TEXT NOT NULL DEFAULT '',
	icon TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	owner_id TEXT NOT NULL REFERENCES users(id),
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	CONSTRAINT apps_app_key_key UNIQUE (app_key),
	CONSTRAINT apps_download_key_key UNIQUE (download_key)
);
CREATE INDEX IF NOT EXISTS idx_apps_owner ON apps(owner_id);

CREATE TABLE IF NOT EXISTS versions (
	id TEXT PRIMARY KEY,
	app_id TEXT NOT NULL REFERENCES apps(id) ON DELETE CASCADE,
	version TEXT NOT NULL,
	build_number TEXT NOT NULL,
	update_content TEXT NOT NULL DEFAULT '',
	upload_date TIMESTAMPTZ NOT NULL,
	size TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'active',
	file_name TEXT NOT NULL DEFAULT '',
	file_path TEXT NOT NULL DEFAULT '',
	download_url TEXT NOT NULL DEFAULT '',
	platform TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	CONSTRAINT versions_app_version_build_key UNIQUE (app_id, version, build_number)
);
CREATE INDEX IF NOT EXISTS idx_versions_app_created ON versions(app_id, created_at DESC);

CREATE TABLE IF NOT EXISTS files (
	id TEXT PRIMARY KEY,
	original_name TEXT NOT NULL,
	temp_path TEXT NOT NULL,
	final_path TEXT NOT NULL DEFAULT '',
	size BIGINT NOT NULL,
	mime_type TEXT NOT NULL DEFAULT '',
	upload_date TIMESTAMPTZ NOT NULL,
	status TEXT NOT NULL CHECK (status IN ('temporary', 'confirmed', 'expired')),
	parsed_info JSONB,
	uploaded_by TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
ALTER TABLE files ADD COLUMN IF NOT EXISTS uploaded_by TEXT NOT NULL DEFAULT '';
CREATE INDEX IF NOT EXISTS idx_files_status_upload ON files(status, upload_date);`

// EnsureSchema creates the tables if needed. Keeping the migration in code lets
// a fresh container bootstrap itself.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
