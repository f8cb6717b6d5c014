package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		full_name TEXT NOT NULL,
		role TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		last_login TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		token TEXT NOT NULL UNIQUE,
		expires_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		revoked BOOLEAN NOT NULL DEFAULT FALSE,
		revoked_at TIMESTAMPTZ,
		ip_address TEXT NOT NULL DEFAULT '',
		user_agent TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS audit_logs (
		id UUID PRIMARY KEY,
		user_id UUID,
		action TEXT NOT NULL,
		resource TEXT NOT NULL,
		resource_id TEXT,
		old_values JSONB,
		new_values JSONB,
		ip_address TEXT NOT NULL DEFAULT '',
		user_agent TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS students (
		id UUID PRIMARY KEY,
		full_name TEXT NOT NULL,
		document_id TEXT NOT NULL UNIQUE,
		career TEXT NOT NULL,
		photo_path TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS clinical_records (
		id UUID PRIMARY KEY,
		student_id UUID NOT NULL REFERENCES students(id),
		reason TEXT NOT NULL DEFAULT '',
		history TEXT NOT NULL DEFAULT '',
		diagnosis TEXT NOT NULL DEFAULT '',
		treatment TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		created_by UUID,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS clinical_records_student_created_idx ON clinical_records (student_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS consultations (
		id UUID PRIMARY KEY,
		student_id UUID NOT NULL REFERENCES students(id),
		reason TEXT NOT NULL,
		priority TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		attended_at TIMESTAMPTZ,
		attended_by UUID
	)`,
	`CREATE INDEX IF NOT EXISTS consultations_created_idx ON consultations (created_at)`,
	`CREATE TABLE IF NOT EXISTS inventory_items (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT '',
		unit TEXT NOT NULL DEFAULT '',
		quantity INTEGER NOT NULL DEFAULT 0,
		min_stock INTEGER NOT NULL DEFAULT 0,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS inventory_movements (
		id UUID PRIMARY KEY,
		item_id UUID NOT NULL REFERENCES inventory_items(id),
		delta INTEGER NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS inventory_movements_item_created_idx ON inventory_movements (item_id, created_at)`,
}

// Migrate ensures the tables used by the API exist.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}
	return nil
}
