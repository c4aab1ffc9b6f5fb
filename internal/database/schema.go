package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// schema bootstraps the tables this service owns. Usernames are unique
// regardless of case. The second unique index on the contacts pair makes
// A->B and B->A mutually exclusive at write time.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id                 TEXT PRIMARY KEY,
		email              TEXT NOT NULL UNIQUE,
		password           TEXT NOT NULL DEFAULT '',
		username           TEXT NOT NULL UNIQUE,
		display_name       VARCHAR(100) NOT NULL DEFAULT '',
		bio                VARCHAR(500) NOT NULL DEFAULT '',
		avatar_url         TEXT NOT NULL DEFAULT '',
		profile_visibility TEXT NOT NULL DEFAULT 'public'
			CHECK (profile_visibility IN ('public', 'contacts_only', 'private')),
		created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ix_users_username_lower ON users (LOWER(username))`,
	`CREATE TABLE IF NOT EXISTS contacts (
		id           BIGSERIAL PRIMARY KEY,
		requester_id TEXT NOT NULL REFERENCES users(id) ON DELETE RESTRICT,
		receiver_id  TEXT NOT NULL REFERENCES users(id) ON DELETE RESTRICT,
		status       TEXT NOT NULL DEFAULT 'pending'
			CHECK (status IN ('pending', 'accepted', 'rejected', 'blocked')),
		created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT contacts_not_self CHECK (requester_id <> receiver_id)
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ix_contacts_requester_receiver
		ON contacts (requester_id, receiver_id)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ix_contacts_pair
		ON contacts (LEAST(requester_id, receiver_id), GREATEST(requester_id, receiver_id))`,
	`CREATE INDEX IF NOT EXISTS ix_contacts_receiver ON contacts (receiver_id)`,
	`CREATE TABLE IF NOT EXISTS notifications (
		id         BIGSERIAL PRIMARY KEY,
		user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		type       TEXT NOT NULL,
		contact_id BIGINT NOT NULL,
		actor_id   TEXT NOT NULL,
		status     TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS ix_notifications_user ON notifications (user_id, created_at DESC)`,
}

// EnsureSchema creates any missing tables and indexes.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	return pgx.BeginTxFunc(ctx, p.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, stmt := range schema {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("apply schema: %w", err)
			}
		}
		return nil
	})
}
