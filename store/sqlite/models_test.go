package sqlite

import (
	"testing"
	"time"

	"github.com/xraph/fiscal/journal"
	"github.com/xraph/fiscal/ledger"
	"github.com/xraph/fiscal/types"
)

func TestLedgerModelKeepsState(t *testing.T) {
	key := ledger.Key{TenantID: "acme", SiteID: "roma-3", Country: "IT"}
	l := ledger.New(key, ledger.Configuration{
		Enabled:          true,
		SigningKeyHandle: "k",
		Timezone:         "Europe/Rome",
		Fields:           map[string]string{"register_serial": "RT-99"},
	})
	l.CurrentBusinessDate = "2026-07-14"
	l.Perpetual.SequenceNumber = 42
	l.Perpetual.GrandTotal = types.MustAmount("1234.56")
	l.Perpetual.TotalsByTaxRate.Add("22", types.MustAmount("1000.10"))
	l.Daily.GrandTotal = types.MustAmount("0.10")
	l.Journal = []journal.Entry{{
		SequenceNumber: 42,
		Timestamp:      time.Date(2026, 7, 14, 9, 30, 0, 0, time.UTC),
		TransactionID:  "tx-42",
		Amount:         types.MustAmount("0.10"),
		RunningTotal:   types.MustAmount("1234.56"),
		Signature:      "ab12",
	}}
	l.Version = 7

	m, err := toLedgerModel(l)
	if err != nil {
		t.Fatalf("toLedgerModel: %v", err)
	}
	if m.TenantID != "acme" || m.SiteID != "roma-3" || m.Country != "IT" || !m.Enabled {
		t.Fatalf("lookup columns = %+v", m)
	}

	got, err := fromLedgerModel(m)
	if err != nil {
		t.Fatalf("fromLedgerModel: %v", err)
	}
	if got.ID.String() != l.ID.String() || got.Key != key || got.Version != 7 {
		t.Errorf("identity = %v %v %d", got.ID, got.Key, got.Version)
	}
	if got.Config.Fields["register_serial"] != "RT-99" || got.Config.Timezone != "Europe/Rome" {
		t.Errorf("config = %+v", got.Config)
	}
	if !got.Perpetual.GrandTotal.Equal(l.Perpetual.GrandTotal) || got.Perpetual.SequenceNumber != 42 {
		t.Errorf("perpetual = %+v", got.Perpetual)
	}
	if !got.Perpetual.TotalsByTaxRate.Equal(l.Perpetual.TotalsByTaxRate) {
		t.Errorf("tax breakdown = %v", got.Perpetual.TotalsByTaxRate)
	}
	if len(got.Journal) != 1 || got.Journal[0].Signature != "ab12" || !got.Journal[0].Amount.Equal(types.MustAmount("0.10")) {
		t.Errorf("journal = %+v", got.Journal)
	}
}

func TestLedgerModelRejectsCorruptJournal(t *testing.T) {
	l := ledger.New(ledger.Key{TenantID: "a", SiteID: "b", Country: "DE"}, ledger.Configuration{})
	m, err := toLedgerModel(l)
	if err != nil {
		t.Fatal(err)
	}
	if m.Journal != "[]" {
		t.Errorf("empty journal encoded as %q", m.Journal)
	}
	m.Journal = "{"
	if _, err := fromLedgerModel(m); err == nil {
		t.Error("expected decode error")
	}
}
