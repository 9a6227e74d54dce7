// Package export builds self-verifying audit export artifacts from the
// journal of a ledger and serializes them for tax authorities.
package export

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/fiscal/chain"
	"github.com/xraph/fiscal/id"
	"github.com/xraph/fiscal/journal"
	"github.com/xraph/fiscal/ledger"
	"github.com/xraph/fiscal/types"
)

var (
	// ErrInvalidRange is returned when the range end precedes its start.
	ErrInvalidRange = errors.New("export: invalid range")
	// ErrFooterMismatch is returned by Verify when the footer disagrees
	// with the entries.
	ErrFooterMismatch = errors.New("export: footer does not match entries")
	// ErrUnordered is returned by Verify when entries are not in ascending
	// sequence order.
	ErrUnordered = errors.New("export: entries not ordered by sequence")
)

// Range is an inclusive time window.
type Range struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Validate checks the window.
func (r Range) Validate() error {
	if r.Start.IsZero() || r.End.IsZero() || r.End.Before(r.Start) {
		return fmt.Errorf("%w: [%s, %s]", ErrInvalidRange, r.Start.Format(time.RFC3339), r.End.Format(time.RFC3339))
	}
	return nil
}

// DayRange returns the window covering one business date in loc.
func DayRange(date string, loc *time.Location) (Range, error) {
	start, end, err := ledger.DayBounds(date, loc)
	if err != nil {
		return Range{}, err
	}
	return Range{Start: start, End: end.Add(-time.Nanosecond)}, nil
}

// DatesRange returns the window from the start of from to the end of to.
func DatesRange(from, to string, loc *time.Location) (Range, error) {
	start, _, err := ledger.DayBounds(from, loc)
	if err != nil {
		return Range{}, err
	}
	_, end, err := ledger.DayBounds(to, loc)
	if err != nil {
		return Range{}, err
	}
	r := Range{Start: start, End: end.Add(-time.Nanosecond)}
	return r, r.Validate()
}

// Header identifies the business, the software and the exported window.
type Header struct {
	ExportID            id.ExportID `json:"export_id"`
	TenantID            string      `json:"tenant_id"`
	SiteID              string      `json:"site_id"`
	Country             string      `json:"country"`
	CompanyName         string      `json:"company_name,omitempty"`
	Address             string      `json:"address,omitempty"`
	TaxID               string      `json:"tax_id,omitempty"`
	VATNumber           string      `json:"vat_number,omitempty"`
	SoftwareName        string      `json:"software_name"`
	SoftwareVersion     string      `json:"software_version"`
	CertificationNumber string      `json:"certification_number,omitempty"`
	RegistrationNumber  string      `json:"registration_number,omitempty"`
	CertificateSerial   string      `json:"certificate_serial,omitempty"`
	Currency            string      `json:"currency,omitempty"`
	RangeStart          time.Time   `json:"range_start"`
	RangeEnd            time.Time   `json:"range_end"`
	GeneratedAt         time.Time   `json:"generated_at"`
}

// Footer carries totals recomputed from the entries.
type Footer struct {
	TransactionCount    int64           `json:"transaction_count"`
	GrandTotal          decimal.Decimal `json:"grand_total"`
	FirstSequenceNumber uint64          `json:"first_sequence_number"`
	LastSequenceNumber  uint64          `json:"last_sequence_number"`
}

// Artifact is an audit export.
type Artifact struct {
	Header  Header          `json:"header"`
	Entries []journal.Entry `json:"entries"`
	Footer  Footer          `json:"footer"`
}

// ComputeFooter derives the footer from entries.
func ComputeFooter(entries []journal.Entry) Footer {
	f := Footer{GrandTotal: decimal.Zero}
	for i, e := range entries {
		f.TransactionCount++
		f.GrandTotal = f.GrandTotal.Add(e.Amount)
		if i == 0 {
			f.FirstSequenceNumber = e.SequenceNumber
		}
		f.LastSequenceNumber = e.SequenceNumber
	}
	return f
}

// Verify re-derives the footer from the entries and checks ordering and
// per-entry integrity hashes. It needs no ledger internals and no key.
func (a *Artifact) Verify() error {
	for i := 1; i < len(a.Entries); i++ {
		if a.Entries[i].SequenceNumber <= a.Entries[i-1].SequenceNumber {
			return fmt.Errorf("%w at index %d", ErrUnordered, i)
		}
	}

	want := ComputeFooter(a.Entries)
	got := a.Footer
	if want.TransactionCount != got.TransactionCount ||
		!want.GrandTotal.Equal(got.GrandTotal) ||
		want.FirstSequenceNumber != got.FirstSequenceNumber ||
		want.LastSequenceNumber != got.LastSequenceNumber {
		return fmt.Errorf("%w: count %d/%d total %s/%s first %d/%d last %d/%d", ErrFooterMismatch,
			got.TransactionCount, want.TransactionCount,
			types.Fixed(got.GrandTotal), types.Fixed(want.GrandTotal),
			got.FirstSequenceNumber, want.FirstSequenceNumber,
			got.LastSequenceNumber, want.LastSequenceNumber)
	}

	for i := range a.Entries {
		if !a.Entries[i].IntegrityOK() {
			return &chain.BreakError{Sequence: a.Entries[i].SequenceNumber, Err: chain.ErrIntegrityMismatch}
		}
	}
	return nil
}

// VerifyChain replays the signatures of the entries with signer. The
// entries must be a contiguous segment of the chain.
func (a *Artifact) VerifyChain(signer *chain.Signer) (*chain.Report, error) {
	return chain.Verify(signer, "", journal.Links(a.Entries))
}

// Builder builds artifacts.
type Builder struct {
	now func() time.Time
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithClock overrides the generation timestamp source.
func WithClock(now func() time.Time) BuilderOption {
	return func(b *Builder) { b.now = now }
}

// NewBuilder creates a Builder.
func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{now: time.Now}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build collects the journal entries of l whose timestamp falls in rng.
// Only entries still in the working buffer can be exported. Build checks
// ctx between entries and returns ctx.Err() when cancelled.
func (b *Builder) Build(ctx context.Context, l *ledger.Ledger, rng Range) (*Artifact, error) {
	if err := rng.Validate(); err != nil {
		return nil, err
	}

	entries := make([]journal.Entry, 0, len(l.Journal))
	for i := range l.Journal {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		e := l.Journal[i]
		if e.Timestamp.Before(rng.Start) || e.Timestamp.After(rng.End) {
			continue
		}
		entries = append(entries, e)
	}
	journal.SortBySequence(entries)

	cfg := l.Config
	return &Artifact{
		Header: Header{
			ExportID:            id.NewExportID(),
			TenantID:            l.Key.TenantID,
			SiteID:              l.Key.SiteID,
			Country:             l.Key.Country,
			CompanyName:         cfg.CompanyName,
			Address:             cfg.Address,
			TaxID:               cfg.TaxID,
			VATNumber:           cfg.VATNumber,
			SoftwareName:        cfg.SoftwareName,
			SoftwareVersion:     cfg.SoftwareVersion,
			CertificationNumber: cfg.CertificationNumber,
			RegistrationNumber:  cfg.RegistrationNumber,
			CertificateSerial:   cfg.CertificateSerial,
			Currency:            cfg.Currency,
			RangeStart:          rng.Start.UTC(),
			RangeEnd:            rng.End.UTC(),
			GeneratedAt:         b.now().UTC(),
		},
		Entries: entries,
		Footer:  ComputeFooter(entries),
	}, nil
}
