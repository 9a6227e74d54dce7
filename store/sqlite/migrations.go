package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the fiscal store (SQLite).
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
    enabled          INTEGER NOT NULL DEFAULT 0,
    config           TEXT NOT NULL DEFAULT '{}',
    daily_totals     TEXT NOT NULL DEFAULT '{}',
    perpetual_totals TEXT NOT NULL DEFAULT '{}',
    journal          TEXT NOT NULL DEFAULT '[]',
    version          INTEGER NOT NULL DEFAULT 1,
    created_at       TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at       TEXT NOT NULL DEFAULT (datetime('now'))
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
