package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the gate store.
var Migrations = migrate.NewGroup("tokengate")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_gate_tiers",
			Version: "20240101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS gate_tiers (
    key              BIGINT PRIMARY KEY,
    name             TEXT NOT NULL DEFAULT '',
    description      TEXT NOT NULL DEFAULT '',
    image_url        TEXT NOT NULL DEFAULT '',
    metadata_url     TEXT NOT NULL DEFAULT '',
    price_amount     NUMERIC(20, 0) NOT NULL DEFAULT 0,
    price_currency   TEXT NOT NULL DEFAULT '',
    duration_seconds NUMERIC(20, 0) NOT NULL DEFAULT 0,
    active           BOOLEAN NOT NULL DEFAULT FALSE,
    created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_gate_tiers_active ON gate_tiers (active);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS gate_tiers`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_gate_links",
			Version: "20240101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS gate_links (
    wallet      TEXT PRIMARY KEY,
    link_id     TEXT NOT NULL DEFAULT '',
    external_id TEXT NOT NULL DEFAULT '',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_gate_links_external ON gate_links (external_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS gate_links`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_gate_holdings",
			Version: "20240101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS gate_holdings (
    id         TEXT PRIMARY KEY,
    wallet     TEXT NOT NULL DEFAULT '',
    tier_key   BIGINT NOT NULL DEFAULT 0,
    quantity   NUMERIC(20, 0) NOT NULL DEFAULT 0,
    expires_at TIMESTAMPTZ,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_gate_holdings_wallet ON gate_holdings (wallet);
CREATE UNIQUE INDEX IF NOT EXISTS idx_gate_holdings_wallet_tier ON gate_holdings (wallet, tier_key);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS gate_holdings`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_gate_receipts",
			Version: "20240101000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS gate_receipts (
    id            TEXT PRIMARY KEY,
    wallet        TEXT NOT NULL DEFAULT '',
    tier_key      BIGINT NOT NULL DEFAULT 0,
    kind          TEXT NOT NULL DEFAULT '',
    quantity      NUMERIC(20, 0) NOT NULL DEFAULT 0,
    paid_amount   NUMERIC(20, 0) NOT NULL DEFAULT 0,
    paid_currency TEXT NOT NULL DEFAULT '',
    expires_at    TIMESTAMPTZ,
    external_ref  TEXT NOT NULL DEFAULT '',
    reason        TEXT NOT NULL DEFAULT '',
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_gate_receipts_wallet ON gate_receipts (wallet, created_at);
CREATE INDEX IF NOT EXISTS idx_gate_receipts_tier ON gate_receipts (tier_key, created_at);
CREATE INDEX IF NOT EXISTS idx_gate_receipts_kind ON gate_receipts (kind);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS gate_receipts`)
				return err
			},
		},
	)
}
