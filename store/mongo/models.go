package mongo

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/fiscal/id"
	"github.com/xraph/fiscal/journal"
	"github.com/xraph/fiscal/ledger"
	"github.com/xraph/fiscal/totals"
	"github.com/xraph/fiscal/types"
)

// ledgerModel is one document per ledger key. Decimal amounts do not map to
// BSON losslessly, so totals and the journal buffer are stored as their JSON
// encoding; the key, business date and version stay queryable.
type ledgerModel struct {
	grove.BaseModel `grove:"table:fiscal_ledgers"`

	ID              string    `grove:"id,pk"            bson:"_id"`
	TenantID        string    `grove:"tenant_id"        bson:"tenant_id"`
	SiteID          string    `grove:"site_id"          bson:"site_id"`
	Country         string    `grove:"country"          bson:"country"`
	BusinessDate    string    `grove:"business_date"    bson:"business_date"`
	Enabled         bool      `grove:"enabled"          bson:"enabled"`
	Timezone        string    `grove:"timezone"         bson:"timezone,omitempty"`
	Config          string    `grove:"config"           bson:"config"`
	DailyTotals     string    `grove:"daily_totals"     bson:"daily_totals"`
	PerpetualTotals string    `grove:"perpetual_totals" bson:"perpetual_totals"`
	Journal         string    `grove:"journal"          bson:"journal"`
	JournalSize     int       `grove:"journal_size"     bson:"journal_size"`
	Version         int64     `grove:"version"          bson:"version"`
	CreatedAt       time.Time `grove:"created_at"       bson:"created_at"`
	UpdatedAt       time.Time `grove:"updated_at"       bson:"updated_at"`
}

func toLedgerModel(l *ledger.Ledger) (*ledgerModel, error) {
	cfg, err := json.Marshal(l.Config)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	daily, err := json.Marshal(l.Daily)
	if err != nil {
		return nil, fmt.Errorf("encode daily totals: %w", err)
	}
	perpetual, err := json.Marshal(l.Perpetual)
	if err != nil {
		return nil, fmt.Errorf("encode perpetual totals: %w", err)
	}
	entries := l.Journal
	if entries == nil {
		entries = []journal.Entry{}
	}
	buf, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("encode journal: %w", err)
	}

	return &ledgerModel{
		ID:              l.ID.String(),
		TenantID:        l.Key.TenantID,
		SiteID:          l.Key.SiteID,
		Country:         l.Key.Country,
		BusinessDate:    l.CurrentBusinessDate,
		Enabled:         l.Config.Enabled,
		Timezone:        l.Config.Timezone,
		Config:          string(cfg),
		DailyTotals:     string(daily),
		PerpetualTotals: string(perpetual),
		Journal:         string(buf),
		JournalSize:     len(entries),
		Version:         l.Version,
		CreatedAt:       l.CreatedAt,
		UpdatedAt:       l.UpdatedAt,
	}, nil
}

func fromLedgerModel(m *ledgerModel) (*ledger.Ledger, error) {
	lid, err := id.ParseLedgerID(m.ID)
	if err != nil {
		return nil, err
	}
	l := &ledger.Ledger{
		Entity:              types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:                  lid,
		Key:                 ledger.Key{TenantID: m.TenantID, SiteID: m.SiteID, Country: m.Country},
		CurrentBusinessDate: m.BusinessDate,
		Daily:               totals.New(),
		Perpetual:           totals.New(),
		Version:             m.Version,
	}
	if err := json.Unmarshal([]byte(m.Config), &l.Config); err != nil {
		return nil, fmt.Errorf("decode config of %s: %w", l.Key, err)
	}
	if err := json.Unmarshal([]byte(m.DailyTotals), &l.Daily); err != nil {
		return nil, fmt.Errorf("decode daily totals of %s: %w", l.Key, err)
	}
	if err := json.Unmarshal([]byte(m.PerpetualTotals), &l.Perpetual); err != nil {
		return nil, fmt.Errorf("decode perpetual totals of %s: %w", l.Key, err)
	}
	if err := json.Unmarshal([]byte(m.Journal), &l.Journal); err != nil {
		return nil, fmt.Errorf("decode journal of %s: %w", l.Key, err)
	}
	return l, nil
}
