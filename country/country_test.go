package country_test

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/fiscal"
	"github.com/xraph/fiscal/chain"
	"github.com/xraph/fiscal/country"
	"github.com/xraph/fiscal/export"
	"github.com/xraph/fiscal/journal"
	"github.com/xraph/fiscal/ledger"
	"github.com/xraph/fiscal/store/memory"
	"github.com/xraph/fiscal/types"
)

var now = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

func newEngine(t *testing.T) *fiscal.Engine {
	t.Helper()
	e := fiscal.New(memory.New(), append(country.EngineOptions(),
		fiscal.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		fiscal.WithKeyProvider(chain.StaticKeys{"k1": []byte("0123456789abcdef0123456789abcdef")}),
		fiscal.WithClock(func() time.Time { return now }),
	)...)
	require.NoError(t, e.Start(context.Background()))
	t.Cleanup(func() { _ = e.Stop() })
	return e
}

func fullConfig(tz string, fields map[string]string) ledger.Configuration {
	expires := now.AddDate(1, 0, 0)
	return ledger.Configuration{
		Enabled:              true,
		SoftwareName:         "till",
		SoftwareVersion:      "1.0.0",
		CertificationNumber:  "CERT-1",
		TaxID:                "TAX-1",
		SigningKeyHandle:     "k1",
		CertificateSerial:    "SER-42",
		CertificateExpiresAt: &expires,
		AutoArchive:          true,
		ArchiveTime:          "04:00",
		Timezone:             tz,
		Fields:               fields,
	}
}

func adapterFor(t *testing.T, e *fiscal.Engine, c string, cfg ledger.Configuration) *country.LedgerAdapter {
	t.Helper()
	key := ledger.Key{TenantID: "acme", SiteID: "site-1", Country: c}
	_, err := e.Configure(context.Background(), key, cfg)
	require.NoError(t, err)
	a, err := country.New(e, key)
	require.NoError(t, err)
	return a
}

func sale(id, amount string) *journal.TransactionRecord {
	return &journal.TransactionRecord{
		ID:          id,
		Timestamp:   now,
		Type:        journal.TypeSale,
		GrossAmount: types.MustAmount(amount),
	}
}

func TestProfiles(t *testing.T) {
	assert.Equal(t, []string{"AT", "DE", "FR", "IT", "PL"}, country.Supported())

	tests := []struct {
		country string
		format  export.Format
		has     []country.Feature
		lacks   []country.Feature
	}{
		{"DE", export.FormatCSV, []country.Feature{country.FeatureHardwareTse, country.FeatureCloudTse}, []country.Feature{country.FeatureBatchSubmission}},
		{"AT", export.FormatJSON, []country.Feature{country.FeatureQrCodeGeneration, country.FeatureCertificateSigning}, []country.Feature{country.FeatureHardwareTse}},
		{"IT", export.FormatXML, []country.Feature{country.FeatureInvoiceVerification, country.FeatureBatchSubmission}, []country.Feature{country.FeatureRealTimeSigning}},
		{"FR", export.FormatJSON, []country.Feature{country.FeatureRealTimeSigning}, []country.Feature{country.FeatureQrCodeGeneration}},
		{"PL", export.FormatXML, []country.Feature{country.FeatureVatRegisterExport}, []country.Feature{country.FeatureCloudTse}},
	}
	for _, tt := range tests {
		t.Run(tt.country, func(t *testing.T) {
			p, ok := country.Lookup(strings.ToLower(tt.country))
			require.True(t, ok)
			assert.Equal(t, tt.format, p.ExportFormat)
			assert.True(t, p.Supports(country.FeatureCumulativeTotals))
			assert.True(t, p.Supports(country.FeatureElectronicJournal))
			for _, f := range tt.has {
				assert.True(t, p.Supports(f), f)
			}
			for _, f := range tt.lacks {
				assert.False(t, p.Supports(f), f)
			}
			assert.Equal(t, tt.format, country.ArchiveFormat(ledger.Key{Country: tt.country}))
		})
	}

	_, ok := country.Lookup("US")
	assert.False(t, ok)
	assert.Equal(t, export.FormatJSON, country.ArchiveFormat(ledger.Key{Country: "US"}))
}

func TestNewRejectsUnknownCountry(t *testing.T) {
	_, err := country.New(newEngine(t), ledger.Key{TenantID: "a", SiteID: "b", Country: "US"})
	assert.ErrorIs(t, err, country.ErrUnsupportedCountry)
}

func TestGermanReceiptAndExport(t *testing.T) {
	e := newEngine(t)
	a := adapterFor(t, e, "DE", fullConfig("Europe/Berlin", map[string]string{country.FieldCashRegisterID: "KASSE-1"}))
	assert.True(t, a.SupportsFeature(country.FeatureHardwareTse))

	r, err := a.RecordTransaction(context.Background(), sale("tx-1", "10.00"))
	require.NoError(t, err)
	require.True(t, r.Success, r.Message)
	assert.True(t, strings.HasPrefix(r.VerificationCode, "V0;KASSE-1;tx-1;1;2026-06-01T12:00:00.000;10.00;"), r.VerificationCode)
	assert.True(t, strings.HasSuffix(r.VerificationCode, r.Signature))

	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	rng, err := export.DayRange("2026-06-01", berlin)
	require.NoError(t, err)
	doc, err := a.GenerateAuditExport(context.Background(), rng)
	require.NoError(t, err)
	assert.Equal(t, export.FormatCSV, doc.Format)
	assert.Equal(t, "site-1-2026-06-01-2026-06-01.csv", doc.FileName)
}

func TestLowercaseCountryReachesSameLedger(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	a := adapterFor(t, e, "de", fullConfig("Europe/Berlin", map[string]string{country.FieldCashRegisterID: "KASSE-1"}))
	assert.Equal(t, "acme/site-1/DE", a.Key().String())

	r, err := a.RecordTransaction(ctx, sale("tx-1", "10.00"))
	require.NoError(t, err)
	require.True(t, r.Success, "%s: %s", r.Code, r.Message)
	assert.True(t, strings.HasPrefix(r.VerificationCode, "V0;KASSE-1;"), r.VerificationCode)

	mixed := ledger.Key{TenantID: "acme", SiteID: "site-1", Country: " De"}
	r, err = e.RecordTransaction(ctx, mixed, sale("tx-2", "5.00"))
	require.NoError(t, err)
	require.True(t, r.Success, "%s: %s", r.Code, r.Message)
	assert.Equal(t, uint64(2), r.SequenceNumber)

	l, err := e.Snapshot(ctx, mixed)
	require.NoError(t, err)
	assert.Equal(t, "DE", l.Key.Country)

	ledgers, err := e.ListLedgers(ctx, ledger.ListOpts{Country: "de"})
	require.NoError(t, err)
	assert.Len(t, ledgers, 1)

	assert.Equal(t, country.StatusHealthy, a.GetHealthStatus(ctx).Status)
}

func TestAustrianReceipt(t *testing.T) {
	e := newEngine(t)
	a := adapterFor(t, e, "AT", fullConfig("Europe/Vienna", map[string]string{country.FieldCashRegisterID: "REG-7"}))

	r, err := a.RecordTransaction(context.Background(), sale("tx-1", "10.00"))
	require.NoError(t, err)
	require.True(t, r.Success, r.Message)
	assert.True(t, strings.HasPrefix(r.VerificationCode, "_R1-AT1_REG-7_1_2026-06-01T12:00:00_10,00_10,00_SER-42_"), r.VerificationCode)
}

func TestOtherReceiptLayouts(t *testing.T) {
	e := newEngine(t)

	it := adapterFor(t, e, "IT", fullConfig("Europe/Rome", map[string]string{country.FieldRegisterSerial: "96SRT001"}))
	r, err := it.RecordTransaction(context.Background(), sale("tx-1", "4.20"))
	require.NoError(t, err)
	assert.Equal(t, "RT;96SRT001;2026-06-01;0001;4.20", r.VerificationCode)

	fr := adapterFor(t, e, "FR", fullConfig("Europe/Paris", map[string]string{country.FieldSIRET: "12345678900011"}))
	r, err = fr.RecordTransaction(context.Background(), sale("tx-1", "7.00"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(r.VerificationCode, "NF525;CERT-1;1;7.00;"), r.VerificationCode)

	pl := adapterFor(t, e, "PL", fullConfig("Europe/Warsaw", map[string]string{country.FieldUniqueNumber: "ABC123"}))
	r, err = pl.RecordTransaction(context.Background(), sale("tx-1", "3.00"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(r.VerificationCode, "PL;TAX-1;2026-06-01;1;3.00;"), r.VerificationCode)
}

func TestValidateConfiguration(t *testing.T) {
	e := newEngine(t)

	missing, err := country.New(e, ledger.Key{TenantID: "acme", SiteID: "nowhere", Country: "DE"})
	require.NoError(t, err)
	res := missing.ValidateConfiguration(context.Background())
	assert.False(t, res.IsValid)
	require.Len(t, res.Errors, 1)

	complete := adapterFor(t, e, "DE", fullConfig("Europe/Berlin", map[string]string{country.FieldCashRegisterID: "K1"}))
	res = complete.ValidateConfiguration(context.Background())
	assert.True(t, res.IsValid, res.Errors)
	assert.Empty(t, res.Warnings)

	// Disabled ledgers may omit the key handle.
	sparse := adapterFor(t, e, "DE", ledger.Configuration{SoftwareName: "till"})
	res = sparse.ValidateConfiguration(context.Background())
	assert.False(t, res.IsValid)
	fields := map[string]bool{}
	for _, i := range res.Errors {
		fields[i.Field] = true
	}
	assert.True(t, fields["tax_id"])
	assert.True(t, fields["signing_key_handle"])
	assert.True(t, fields["certification_number"])
	assert.True(t, fields["certificate_serial"])
	assert.True(t, fields["fields."+country.FieldCashRegisterID])

	warned := map[string]bool{}
	for _, i := range res.Warnings {
		warned[i.Field] = true
	}
	assert.True(t, warned["auto_archive"])
	assert.True(t, warned["enabled"])
	assert.True(t, warned["timezone"])
}

func TestCheckCertificateExpiry(t *testing.T) {
	p, _ := country.Lookup("AT")

	soon := now.AddDate(0, 0, 10)
	cfg := fullConfig("Europe/Vienna", map[string]string{country.FieldCashRegisterID: "R"})
	cfg.CertificateExpiresAt = &soon
	var res country.ValidationResult
	country.Check(p, cfg, now, &res)
	assert.True(t, res.IsValid)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, "certificate_expires_at", res.Warnings[0].Field)

	past := now.AddDate(0, 0, -1)
	cfg.CertificateExpiresAt = &past
	res = country.ValidationResult{}
	country.Check(p, cfg, now, &res)
	assert.False(t, res.IsValid)

	// Austria does not require a certification number, only suggests it.
	cfg = fullConfig("Europe/Vienna", map[string]string{country.FieldCashRegisterID: "R"})
	cfg.CertificationNumber = ""
	res = country.ValidationResult{}
	country.Check(p, cfg, now, &res)
	assert.True(t, res.IsValid)
	require.Len(t, res.Warnings, 1)
}

func TestHealthStatus(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	missing, err := country.New(e, ledger.Key{TenantID: "acme", SiteID: "nowhere", Country: "FR"})
	require.NoError(t, err)
	assert.Equal(t, country.StatusNotConfigured, missing.GetHealthStatus(ctx).Status)

	a := adapterFor(t, e, "FR", fullConfig("Europe/Paris", map[string]string{country.FieldSIRET: "1"}))
	hs := a.GetHealthStatus(ctx)
	assert.Equal(t, country.StatusHealthy, hs.Status)
	assert.True(t, hs.IsOnline)
	assert.True(t, hs.CertificateValid)
	require.NotNil(t, hs.DaysUntilCertificateExpiry)
	assert.Equal(t, 365, *hs.DaysUntilCertificateExpiry)
	assert.Nil(t, hs.LastTransactionAt)

	_, err = a.RecordTransaction(ctx, sale("tx-1", "1.00"))
	require.NoError(t, err)
	_, err = a.RecordTransaction(ctx, sale("tx-2", "2.00"))
	require.NoError(t, err)
	hs = a.GetHealthStatus(ctx)
	assert.Equal(t, int64(2), hs.TotalTransactions)
	assert.Equal(t, uint64(2), hs.SequenceNumber)
	require.NotNil(t, hs.LastTransactionAt)

	bad := sale("tx-3", "-1.00")
	r, err := a.RecordTransaction(ctx, bad)
	require.NoError(t, err)
	assert.False(t, r.Success)
	hs = a.GetHealthStatus(ctx)
	assert.Equal(t, country.StatusDegraded, hs.Status)
	require.NotNil(t, hs.LastError)
	assert.Equal(t, fiscal.CodeInvalidTransaction, hs.LastError.Code)

	cfg := fullConfig("Europe/Paris", map[string]string{country.FieldSIRET: "1"})
	cfg.Enabled = false
	_, err = e.Configure(ctx, a.Key(), cfg)
	require.NoError(t, err)
	assert.Equal(t, country.StatusUnhealthy, a.GetHealthStatus(ctx).Status)
}

func TestHealthStoreDown(t *testing.T) {
	st := memory.New()
	e := fiscal.New(st, fiscal.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	a, err := country.New(e, ledger.Key{TenantID: "a", SiteID: "b", Country: "PL"})
	require.NoError(t, err)
	require.NoError(t, st.Close())

	hs := a.GetHealthStatus(context.Background())
	assert.Equal(t, country.StatusUnhealthy, hs.Status)
	assert.False(t, hs.IsOnline)
	assert.Contains(t, hs.Checks, "store")
}
