// Package ledger holds the persisted state of one fiscal ledger: its
// identity, configuration, daily and perpetual totals, current business
// date and the journal buffer of the working day.
package ledger

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xraph/fiscal/id"
	"github.com/xraph/fiscal/journal"
	"github.com/xraph/fiscal/totals"
	"github.com/xraph/fiscal/types"
)

// DateLayout is the layout of business dates.
const DateLayout = "2006-01-02"

// Key identifies a ledger. There is exactly one ledger per key.
type Key struct {
	TenantID string `json:"tenant_id"`
	SiteID   string `json:"site_id"`
	Country  string `json:"country"`
}

// String renders the key as "tenant/site/country".
func (k Key) String() string {
	return k.TenantID + "/" + k.SiteID + "/" + k.Country
}

// Normalize returns k with the country code trimmed and upper-cased. The
// engine normalizes every key it is handed, so "de" and "DE" address the
// same ledger.
func (k Key) Normalize() Key {
	k.Country = strings.ToUpper(strings.TrimSpace(k.Country))
	return k
}

// Validate checks that every component is present.
func (k Key) Validate() error {
	if k.TenantID == "" || k.SiteID == "" || k.Country == "" {
		return fmt.Errorf("ledger: incomplete key %q", k.String())
	}
	if strings.Contains(k.TenantID+k.SiteID+k.Country, "/") {
		return fmt.Errorf("ledger: key components must not contain '/': %q", k.String())
	}
	return nil
}

// ParseKey parses the output of Key.String.
func ParseKey(s string) (Key, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return Key{}, fmt.Errorf("ledger: parse key %q: want tenant/site/country", s)
	}
	k := Key{TenantID: parts[0], SiteID: parts[1], Country: parts[2]}.Normalize()
	return k, k.Validate()
}

// Ledger is the persisted aggregate for one key.
type Ledger struct {
	types.Entity

	ID                  id.LedgerID     `json:"id"`
	Key                 Key             `json:"key"`
	Config              Configuration   `json:"config"`
	CurrentBusinessDate string          `json:"current_business_date,omitempty"`
	Daily               totals.Totals   `json:"daily"`
	Perpetual           totals.Totals   `json:"perpetual"`
	Journal             []journal.Entry `json:"journal"`

	// Version is incremented on every successful save and used for
	// optimistic concurrency by the stores. Zero means never saved.
	Version int64 `json:"version"`
}

// New creates an unsaved ledger for key with cfg.
func New(key Key, cfg Configuration) *Ledger {
	return &Ledger{
		Entity:    types.NewEntity(),
		ID:        id.NewLedgerID(),
		Key:       key,
		Config:    cfg,
		Daily:     totals.New(),
		Perpetual: totals.New(),
	}
}

// Clone returns a deep copy that can be mutated independently.
func (l *Ledger) Clone() *Ledger {
	out := *l
	out.Config = l.Config.Clone()
	out.Daily = l.Daily.Clone()
	out.Perpetual = l.Perpetual.Clone()
	out.Journal = make([]journal.Entry, len(l.Journal))
	copy(out.Journal, l.Journal)
	return &out
}

// Enabled reports whether recording is allowed.
func (l *Ledger) Enabled() bool {
	return l.Config.Enabled
}

// Location returns the time zone business dates are computed in.
func (l *Ledger) Location() *time.Location {
	return l.Config.Location()
}

// BusinessDate returns the business date of t for this ledger.
func (l *Ledger) BusinessDate(t time.Time) string {
	return t.In(l.Location()).Format(DateLayout)
}

// DayBounds returns [start, end) of the business date in the ledger's zone.
func (l *Ledger) DayBounds(date string) (time.Time, time.Time, error) {
	return DayBounds(date, l.Location())
}

// DayBounds returns [start, end) of date in loc.
func DayBounds(date string, loc *time.Location) (time.Time, time.Time, error) {
	start, err := time.ParseInLocation(DateLayout, date, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w %q: %v", ErrInvalidDate, date, err)
	}
	return start, start.AddDate(0, 0, 1), nil
}

// ErrInvalidDate is returned for malformed business dates.
var ErrInvalidDate = errors.New("ledger: invalid business date")

// CompareDates compares two business dates; the layout sorts lexically.
func CompareDates(a, b string) int {
	return strings.Compare(a, b)
}
