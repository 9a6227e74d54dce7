package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the fiscal store (PostgreSQL).
var Migrations = migrate.NewGroup("fiscal")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_fiscal_ledgers",
			Version: "20260101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS fiscal_ledgers (
    id               TEXT PRIMARY KEY,
    tenant_id        TEXT NOT NULL,
    site_id          TEXT NOT NULL,
    country          TEXT NOT NULL,
    business_date    TEXT NOT NULL DEFAULT '',
    enabled          BOOLEAN NOT NULL DEFAULT FALSE,
    config           JSONB NOT NULL DEFAULT '{}',
    daily_totals     JSONB NOT NULL DEFAULT '{}',
    perpetual_totals JSONB NOT NULL DEFAULT '{}',
    journal          JSONB NOT NULL DEFAULT '[]',
    version          BIGINT NOT NULL DEFAULT 1,
    created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_fiscal_ledgers_key ON fiscal_ledgers (tenant_id, site_id, country);
CREATE INDEX IF NOT EXISTS idx_fiscal_ledgers_country ON fiscal_ledgers (country, tenant_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS fiscal_ledgers`)
				return err
			},
		},
	)
}
