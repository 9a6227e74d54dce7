package country

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/xraph/fiscal"
	"github.com/xraph/fiscal/chain"
	"github.com/xraph/fiscal/export"
	"github.com/xraph/fiscal/journal"
	"github.com/xraph/fiscal/ledger"
)

// ErrUnsupportedCountry is returned by New for countries without a profile.
var ErrUnsupportedCountry = errors.New("country: unsupported country")

// Adapter is the per-ledger facade an order pipeline talks to. Callers
// branch on SupportsFeature rather than on the concrete country.
type Adapter interface {
	Country() string
	Key() ledger.Key
	RecordTransaction(ctx context.Context, tx *journal.TransactionRecord) (*fiscal.Receipt, error)
	GenerateAuditExport(ctx context.Context, rng export.Range) (*export.Document, error)
	ValidateConfiguration(ctx context.Context) ValidationResult
	GetHealthStatus(ctx context.Context) HealthStatus
	PerformDailyClose(ctx context.Context, date string) (*fiscal.CloseSummary, error)
	SupportsFeature(f Feature) bool
}

var _ Adapter = (*LedgerAdapter)(nil)

// LedgerAdapter binds one ledger key of an engine to its country profile.
type LedgerAdapter struct {
	engine  *fiscal.Engine
	key     ledger.Key
	profile Profile
}

// New returns the adapter for key. The country code is matched case
// insensitively; the adapter always uses the upper-case code.
//
// Receipt verification codes and archive formats follow the country only
// when the engine was built with EngineOptions. The adapter cannot change
// the options of an existing engine.
func New(engine *fiscal.Engine, key ledger.Key) (*LedgerAdapter, error) {
	p, ok := Lookup(key.Country)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedCountry, key.Country)
	}
	key = key.Normalize()
	key.Country = p.Country
	return &LedgerAdapter{engine: engine, key: key, profile: p}, nil
}

// EngineOptions returns the engine options that render verification codes
// and pick archive formats by the ledger's country.
//
//	engine := fiscal.New(store, append(country.EngineOptions(), fiscal.WithLogger(logger))...)
func EngineOptions() []fiscal.Option {
	return []fiscal.Option{
		fiscal.WithVerificationCoder(VerificationCode),
		fiscal.WithArchiveFormat(ArchiveFormat),
	}
}

// Country returns the ISO country code.
func (a *LedgerAdapter) Country() string { return a.profile.Country }

// Key returns the ledger key.
func (a *LedgerAdapter) Key() ledger.Key { return a.key }

// Profile returns the country profile.
func (a *LedgerAdapter) Profile() Profile { return a.profile }

func (a *LedgerAdapter) RecordTransaction(ctx context.Context, tx *journal.TransactionRecord) (*fiscal.Receipt, error) {
	return a.engine.RecordTransaction(ctx, a.key, tx)
}

// GenerateAuditExport serializes rng in the country's export format.
func (a *LedgerAdapter) GenerateAuditExport(ctx context.Context, rng export.Range) (*export.Document, error) {
	return a.engine.GenerateAuditExport(ctx, a.key, rng, a.profile.ExportFormat)
}

func (a *LedgerAdapter) PerformDailyClose(ctx context.Context, date string) (*fiscal.CloseSummary, error) {
	return a.engine.PerformDailyClose(ctx, a.key, date)
}

func (a *LedgerAdapter) SupportsFeature(f Feature) bool {
	return a.profile.Supports(f)
}

// ──────────────────────────────────────────────────
// Validation
// ──────────────────────────────────────────────────

// Issue is one validation finding.
type Issue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (i Issue) String() string {
	if i.Field == "" {
		return i.Message
	}
	return i.Field + ": " + i.Message
}

// ValidationResult is advisory. IsValid is false when Errors is non-empty.
type ValidationResult struct {
	IsValid  bool    `json:"is_valid"`
	Errors   []Issue `json:"errors"`
	Warnings []Issue `json:"warnings"`
}

func (r *ValidationResult) fail(field, msg string) {
	r.Errors = append(r.Errors, Issue{Field: field, Message: msg})
}

func (r *ValidationResult) warn(field, msg string) {
	r.Warnings = append(r.Warnings, Issue{Field: field, Message: msg})
}

// ValidateConfiguration checks the stored configuration against the
// country profile. It never fails; problems are reported in the result.
func (a *LedgerAdapter) ValidateConfiguration(ctx context.Context) ValidationResult {
	res := ValidationResult{Errors: []Issue{}, Warnings: []Issue{}}

	l, err := a.engine.Snapshot(ctx, a.key)
	if err != nil {
		if fiscal.IsNotFound(err) {
			res.fail("", "no fiscal ledger configured for "+a.key.String())
		} else {
			res.fail("", "load ledger: "+err.Error())
		}
		return res
	}

	Check(a.profile, l.Config, a.engine.Now(), &res)
	if l.Config.SigningKeyHandle != "" {
		if _, err := chain.ResolveSigner(ctx, a.engine.KeyProvider(), l.Config.SigningKeyHandle); err != nil {
			res.fail("signing_key_handle", fmt.Sprintf("key %q cannot be resolved: %v", l.Config.SigningKeyHandle, err))
		}
	}
	res.IsValid = len(res.Errors) == 0
	return res
}

// Check validates cfg against p and appends findings to res. It does not
// touch the key provider.
func Check(p Profile, cfg ledger.Configuration, now time.Time, res *ValidationResult) {
	if cfg.TaxID == "" {
		res.fail("tax_id", "tax identification number is required")
	}
	if cfg.SigningKeyHandle == "" {
		res.fail("signing_key_handle", "signing key is required")
	}
	if cfg.CertificationNumber == "" {
		if p.RequireCertification {
			res.fail("certification_number", "certification number is required")
		} else {
			res.warn("certification_number", "certification number is not set")
		}
	}
	if p.Supports(FeatureCertificateSigning) && cfg.CertificateSerial == "" {
		res.fail("certificate_serial", "certificate serial is required for certificate signing")
	}
	for _, f := range p.RequiredFields {
		if cfg.Field(f) == "" {
			res.fail("fields."+f, "required by "+p.Name)
		}
	}

	if cfg.CertificateExpiresAt != nil {
		days := daysUntil(now, *cfg.CertificateExpiresAt)
		switch {
		case days < 0:
			res.fail("certificate_expires_at", "certificate has expired")
		case days <= p.CertificateWarningDays:
			res.warn("certificate_expires_at", fmt.Sprintf("certificate expires in %d days", days))
		}
	}

	if !cfg.Enabled {
		res.warn("enabled", "recording is disabled")
	}
	if !cfg.AutoArchive {
		res.warn("auto_archive", "auto-archive is disabled, finished days are only archived by an explicit close")
	}
	if cfg.Timezone == "" {
		res.warn("timezone", "no timezone set, business days are cut in UTC")
	}
	if cfg.Currency != "" && p.Currency != "" && cfg.Currency != p.Currency {
		res.warn("currency", fmt.Sprintf("currency %s differs from %s", cfg.Currency, p.Currency))
	}
	res.IsValid = len(res.Errors) == 0
}

// ──────────────────────────────────────────────────
// Health
// ──────────────────────────────────────────────────

// Status is the coarse health of a ledger.
type Status string

const (
	StatusHealthy       Status = "healthy"
	StatusDegraded      Status = "degraded"
	StatusUnhealthy     Status = "unhealthy"
	StatusNotConfigured Status = "not_configured"
)

// HealthStatus is a read-only projection of ledger and configuration state.
type HealthStatus struct {
	Status                     Status            `json:"status"`
	IsOnline                   bool              `json:"is_online"`
	CertificateValid           bool              `json:"certificate_valid"`
	DaysUntilCertificateExpiry *int              `json:"days_until_certificate_expiry,omitempty"`
	LastTransactionAt          *time.Time        `json:"last_transaction_at,omitempty"`
	TotalTransactions          int64             `json:"total_transactions"`
	SequenceNumber             uint64            `json:"sequence_number"`
	BusinessDate               string            `json:"business_date,omitempty"`
	LastError                  *fiscal.LastError `json:"last_error,omitempty"`
	Checks                     map[string]string `json:"checks,omitempty"`
}

// GetHealthStatus reports the state of the ledger for monitoring.
func (a *LedgerAdapter) GetHealthStatus(ctx context.Context) HealthStatus {
	hs := HealthStatus{Checks: map[string]string{}}

	if err := a.engine.Store().Ping(ctx); err != nil {
		hs.Status = StatusUnhealthy
		hs.Checks["store"] = err.Error()
		return hs
	}
	hs.IsOnline = true

	l, err := a.engine.Snapshot(ctx, a.key)
	if err != nil {
		if fiscal.IsNotFound(err) {
			hs.Status = StatusNotConfigured
			return hs
		}
		hs.Status = StatusUnhealthy
		hs.IsOnline = false
		hs.Checks["store"] = err.Error()
		return hs
	}

	hs.TotalTransactions = l.Perpetual.AllTransactions()
	hs.SequenceNumber = l.Perpetual.SequenceNumber
	hs.BusinessDate = l.CurrentBusinessDate
	if at := l.Perpetual.LastTransactionAt; at != nil {
		t := *at
		hs.LastTransactionAt = &t
	}
	hs.LastError = a.engine.LastError(a.key)

	hs.CertificateValid = l.Config.CertificateSerial != "" || !a.profile.Supports(FeatureCertificateSigning)
	degraded := false
	if exp := l.Config.CertificateExpiresAt; exp != nil {
		days := daysUntil(a.engine.Now(), *exp)
		hs.DaysUntilCertificateExpiry = &days
		if days < 0 {
			hs.CertificateValid = false
		} else if days <= a.profile.CertificateWarningDays {
			hs.Checks["certificate"] = fmt.Sprintf("expires in %d days", days)
			degraded = true
		}
	}

	switch {
	case !l.Enabled():
		hs.Status = StatusUnhealthy
		hs.Checks["ledger"] = "recording disabled"
	case !hs.CertificateValid:
		hs.Status = StatusUnhealthy
		hs.Checks["certificate"] = "invalid or expired"
	case hs.LastError != nil:
		hs.Status = StatusDegraded
		hs.Checks["last_error"] = string(hs.LastError.Code)
	case degraded:
		hs.Status = StatusDegraded
	default:
		hs.Status = StatusHealthy
	}
	return hs
}

func daysUntil(now, t time.Time) int {
	return int(math.Floor(t.Sub(now).Hours() / 24))
}
