package migration

import (
	"context"

	"github.com/jackc/pgconn"
	"github.com/rs/zerolog"
)

// Execer is satisfied by *pgxpool.Pool.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// Migration represents a database migration
type Migration struct {
	Name string
	Up   func(ctx context.Context, db Execer) error
}

// Migrations lists the schema steps in the order they run. Every step is
// idempotent so the whole list runs on each startup.
func Migrations(log zerolog.Logger) []Migration {
	return []Migration{
		{Name: "create_profiles", Up: statement(createProfiles)},
		{Name: "add_billing_guard_columns", Up: additive(log, "add_billing_guard_columns", addBillingGuardColumns)},
		{Name: "create_usage_records", Up: statement(createUsageRecords)},
		{Name: "create_billing_events", Up: statement(createBillingEvents)},
		{Name: "index_profiles_stripe_ids", Up: additive(log, "index_profiles_stripe_ids", indexStripeIDs)},
	}
}

// RunMigrations executes all necessary database migrations on startup
func RunMigrations(ctx context.Context, db Execer, log zerolog.Logger) error {
	log.Info().Msg("starting database migrations")

	for _, m := range Migrations(log) {
		if err := m.Up(ctx, db); err != nil {
			log.Error().Err(err).Str("name", m.Name).Msg("migration failed")
			return err
		}
		log.Info().Str("name", m.Name).Msg("migration completed")
	}

	log.Info().Msg("all migrations completed")
	return nil
}

const createProfiles = `
	CREATE TABLE IF NOT EXISTS profiles (
		id UUID PRIMARY KEY,
		first_name TEXT NOT NULL DEFAULT '',
		last_name TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		address TEXT NOT NULL DEFAULT '',
		city TEXT NOT NULL DEFAULT '',
		country TEXT NOT NULL DEFAULT '',
		linkedin TEXT NOT NULL DEFAULT '',
		github TEXT NOT NULL DEFAULT '',
		website TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL DEFAULT '',
		summary TEXT NOT NULL DEFAULT '',
		experience JSONB NOT NULL DEFAULT '[]'::jsonb,
		education JSONB NOT NULL DEFAULT '[]'::jsonb,
		skills JSONB NOT NULL DEFAULT '[]'::jsonb,
		languages JSONB NOT NULL DEFAULT '[]'::jsonb,
		plan TEXT NOT NULL DEFAULT 'free' CHECK (plan IN ('free', 'pro', 'premium')),
		plan_status TEXT NOT NULL DEFAULT '',
		stripe_customer_id TEXT,
		stripe_subscription_id TEXT,
		current_period_end TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
`

const addBillingGuardColumns = `
	ALTER TABLE profiles
	ADD COLUMN IF NOT EXISTS billing_version BIGINT NOT NULL DEFAULT 0,
	ADD COLUMN IF NOT EXISTS last_billing_event_id TEXT,
	ADD COLUMN IF NOT EXISTS last_billing_event_at TIMESTAMPTZ;
`

const createUsageRecords = `
	CREATE TABLE IF NOT EXISTS usage_records (
		user_id UUID NOT NULL REFERENCES profiles (id) ON DELETE CASCADE,
		month_start DATE NOT NULL,
		scans_used INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (user_id, month_start)
	);
`

const createBillingEvents = `
	CREATE TABLE IF NOT EXISTS billing_events (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		user_id UUID,
		created_at TIMESTAMPTZ NOT NULL,
		processed_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
`

const indexStripeIDs = `
	CREATE INDEX IF NOT EXISTS profiles_stripe_subscription_id_idx ON profiles (stripe_subscription_id);
	CREATE INDEX IF NOT EXISTS profiles_stripe_customer_id_idx ON profiles (stripe_customer_id);
`

// statement runs a required DDL statement; failure stops startup.
func statement(sql string) func(context.Context, Execer) error {
	return func(ctx context.Context, db Execer) error {
		_, err := db.Exec(ctx, sql)
		return err
	}
}

// additive runs a statement whose failure is logged but tolerated, since the
// column or index may already exist in a different shape.
func additive(log zerolog.Logger, name, sql string) func(context.Context, Execer) error {
	return func(ctx context.Context, db Execer) error {
		if _, err := db.Exec(ctx, sql); err != nil {
			log.Warn().Err(err).Str("name", name).Msg("additive migration failed (may already exist)")
			return nil
		}
		return nil
	}
}
