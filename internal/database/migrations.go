package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/therealutkarshpriyadarshi/ttsgate/pkg/models"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id             UUID PRIMARY KEY,
		email          TEXT NOT NULL UNIQUE,
		password_hash  TEXT NOT NULL,
		is_admin       BOOLEAN NOT NULL DEFAULT FALSE,
		account_status TEXT NOT NULL DEFAULT 'active'
		               CHECK (account_status IN ('active', 'suspended')),
		created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		last_login     TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS quotas (
		user_id     UUID PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
		calls_used  INTEGER NOT NULL DEFAULT 0 CHECK (calls_used >= 0),
		calls_limit INTEGER NOT NULL DEFAULT 20,
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS languages (
		id   SERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		code TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS usage_logs (
		id          BIGSERIAL PRIMARY KEY,
		user_id     UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		language_id INTEGER REFERENCES languages(id) ON DELETE SET NULL,
		endpoint    TEXT NOT NULL,
		method      TEXT NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_usage_logs_endpoint ON usage_logs (method, endpoint)`,
	`CREATE INDEX IF NOT EXISTS idx_usage_logs_user ON usage_logs (user_id)`,
}

// Migrate creates the schema and seeds the language reference table.
// It must run on the admin pool since the app role has no DDL rights.
func Migrate(ctx context.Context, db *DB) error {
	for _, stmt := range schema {
		if _, err := db.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}

	return SeedLanguages(ctx, db, models.DefaultLanguages)
}

// SeedLanguages inserts missing languages; existing codes are left untouched
func SeedLanguages(ctx context.Context, db *DB, languages []models.Language) error {
	batch := &pgx.Batch{}
	for _, lang := range languages {
		batch.Queue(
			`INSERT INTO languages (name, code) VALUES ($1, LOWER($2)) ON CONFLICT (code) DO NOTHING`,
			lang.Name, lang.Code,
		)
	}

	if err := db.Pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to seed languages: %w", err)
	}
	return nil
}
