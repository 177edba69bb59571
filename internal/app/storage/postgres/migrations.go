package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// migrations is the ordered DDL applied at startup. Statements are
// idempotent so Apply can run on every boot.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		username TEXT NOT NULL DEFAULT '',
		rank TEXT NOT NULL DEFAULT 'registro',
		points BIGINT NOT NULL DEFAULT 0,
		counter_expires_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS slots (
		id UUID PRIMARY KEY,
		label TEXT UNIQUE,
		level INT NOT NULL,
		position INT NOT NULL,
		parent_id UUID,
		owner_type TEXT NOT NULL,
		owner_user_id UUID,
		version BIGINT NOT NULL DEFAULT 1,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		CHECK ((owner_type = 'USER') = (owner_user_id IS NOT NULL))
	)`,
	// One slot per user, enforced at write time.
	`CREATE UNIQUE INDEX IF NOT EXISTS slots_owner_user_unique
		ON slots (owner_user_id) WHERE owner_user_id IS NOT NULL`,
	`CREATE INDEX IF NOT EXISTS slots_parent_idx ON slots (parent_id)`,
	`CREATE TABLE IF NOT EXISTS slot_transfer_logs (
		id UUID PRIMARY KEY,
		slot_id UUID NOT NULL,
		slot_label TEXT NOT NULL DEFAULT '',
		from_owner_type TEXT NOT NULL,
		from_owner_user_id UUID,
		to_owner_type TEXT NOT NULL,
		to_owner_user_id UUID,
		reason TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS account_sanctions (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL,
		slot_id UUID NOT NULL,
		rank_at_expropriation TEXT NOT NULL,
		fine_usd DOUBLE PRECISION NOT NULL,
		grace_hours INT NOT NULL,
		deadline_at TIMESTAMPTZ NOT NULL,
		status TEXT NOT NULL DEFAULT 'PENDING',
		reason TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS points_ledger (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL,
		kind TEXT NOT NULL,
		amount BIGINT NOT NULL,
		balance BIGINT NOT NULL,
		reference TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS payments (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL,
		tier TEXT NOT NULL,
		amount_usd DOUBLE PRECISION NOT NULL,
		provider TEXT NOT NULL,
		provider_ref TEXT NOT NULL DEFAULT '',
		receiver_type TEXT NOT NULL,
		receiver_slot_id UUID,
		receiver_user_id UUID,
		status TEXT NOT NULL DEFAULT 'RECORDED',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS raffle_rounds (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		ticket_price_pts BIGINT NOT NULL,
		prize_pool_pts BIGINT NOT NULL DEFAULT 0,
		ticket_count BIGINT NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'ACTIVE',
		winning_ticket_id UUID,
		winner_user_id UUID,
		opens_at TIMESTAMPTZ NOT NULL,
		closes_at TIMESTAMPTZ NOT NULL,
		drawn_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS raffle_tickets (
		id UUID PRIMARY KEY,
		round_id UUID NOT NULL,
		user_id UUID NOT NULL,
		number BIGINT NOT NULL,
		purchased_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS ad_claims (
		user_id UUID NOT NULL,
		claimed_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS ad_claims_user_idx ON ad_claims (user_id, claimed_at)`,
}

// Apply executes all migrations in order.
func Apply(ctx context.Context, db *sql.DB) error {
	for i, stmt := range migrations {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}
