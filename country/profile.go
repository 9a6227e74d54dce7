// Package country adapts the fiscal engine to the jurisdictions it is
// deployed in. Every country shares the same chained ledger; profiles only
// differ in data: required configuration fields, supported features, the
// archive format and the layout of the printed verification code.
package country

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xraph/fiscal"
	"github.com/xraph/fiscal/export"
	"github.com/xraph/fiscal/ledger"
	"github.com/xraph/fiscal/types"
)

// Feature is a capability a jurisdiction's fiscalization scheme provides.
type Feature string

// Known features.
const (
	FeatureHardwareTse         Feature = "hardware_tse"
	FeatureCloudTse            Feature = "cloud_tse"
	FeatureRealTimeSigning     Feature = "real_time_signing"
	FeatureBatchSubmission     Feature = "batch_submission"
	FeatureCumulativeTotals    Feature = "cumulative_totals"
	FeatureElectronicJournal   Feature = "electronic_journal"
	FeatureInvoiceVerification Feature = "invoice_verification"
	FeatureVatRegisterExport   Feature = "vat_register_export"
	FeatureQrCodeGeneration    Feature = "qr_code_generation"
	FeatureCertificateSigning  Feature = "certificate_signing"
)

// Country-specific configuration field names.
const (
	FieldCashRegisterID = "cash_register_id"
	FieldRegisterSerial = "register_serial"
	FieldTaxOfficeID    = "tax_office_id"
	FieldSIRET          = "siret"
	FieldUniqueNumber   = "unique_number"
)

// Profile is the data that distinguishes one jurisdiction from another.
type Profile struct {
	Country  string
	Name     string
	Currency string

	Features       []Feature
	RequiredFields []string
	// RequireCertification makes a missing certification number an error.
	RequireCertification bool
	ExportFormat         export.Format
	VerificationCode     fiscal.VerificationCoder

	// CertificateWarningDays is how close to expiry a certificate turns the
	// health status to degraded.
	CertificateWarningDays int
}

// Supports reports whether f is part of the profile's feature set.
func (p Profile) Supports(f Feature) bool {
	for _, have := range p.Features {
		if have == f {
			return true
		}
	}
	return false
}

var profiles = map[string]Profile{
	"DE": {
		Country:  "DE",
		Name:     "Germany",
		Currency: "EUR",
		Features: []Feature{
			FeatureHardwareTse,
			FeatureCloudTse,
			FeatureRealTimeSigning,
			FeatureCumulativeTotals,
			FeatureElectronicJournal,
			FeatureQrCodeGeneration,
			FeatureCertificateSigning,
		},
		RequiredFields:         []string{FieldCashRegisterID},
		RequireCertification:   true,
		ExportFormat:           export.FormatCSV,
		VerificationCode:       germanCode,
		CertificateWarningDays: 30,
	},
	"AT": {
		Country:  "AT",
		Name:     "Austria",
		Currency: "EUR",
		Features: []Feature{
			FeatureRealTimeSigning,
			FeatureCumulativeTotals,
			FeatureElectronicJournal,
			FeatureQrCodeGeneration,
			FeatureCertificateSigning,
		},
		RequiredFields:         []string{FieldCashRegisterID},
		ExportFormat:           export.FormatJSON,
		VerificationCode:       austrianCode,
		CertificateWarningDays: 30,
	},
	"IT": {
		Country:  "IT",
		Name:     "Italy",
		Currency: "EUR",
		Features: []Feature{
			FeatureBatchSubmission,
			FeatureCumulativeTotals,
			FeatureElectronicJournal,
			FeatureInvoiceVerification,
			FeatureQrCodeGeneration,
		},
		RequiredFields:         []string{FieldRegisterSerial},
		RequireCertification:   true,
		ExportFormat:           export.FormatXML,
		VerificationCode:       italianCode,
		CertificateWarningDays: 14,
	},
	"FR": {
		Country:  "FR",
		Name:     "France",
		Currency: "EUR",
		Features: []Feature{
			FeatureRealTimeSigning,
			FeatureCumulativeTotals,
			FeatureElectronicJournal,
			FeatureCertificateSigning,
		},
		RequiredFields:         []string{FieldSIRET},
		RequireCertification:   true,
		ExportFormat:           export.FormatJSON,
		VerificationCode:       frenchCode,
		CertificateWarningDays: 30,
	},
	"PL": {
		Country:  "PL",
		Name:     "Poland",
		Currency: "PLN",
		Features: []Feature{
			FeatureBatchSubmission,
			FeatureCumulativeTotals,
			FeatureElectronicJournal,
			FeatureVatRegisterExport,
			FeatureQrCodeGeneration,
		},
		RequiredFields:         []string{FieldUniqueNumber},
		ExportFormat:           export.FormatXML,
		VerificationCode:       polishCode,
		CertificateWarningDays: 30,
	},
}

// Lookup returns the profile of an ISO 3166-1 alpha-2 country code.
func Lookup(country string) (Profile, bool) {
	p, ok := profiles[strings.ToUpper(country)]
	return p, ok
}

// Supported lists the supported country codes in order.
func Supported() []string {
	out := make([]string, 0, len(profiles))
	for c := range profiles {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// VerificationCode renders the verification code with the layout of the
// ledger's country. Unknown countries fall back to the default layout. Pass
// it to fiscal.WithVerificationCoder.
func VerificationCode(in *fiscal.VerificationInput) string {
	if p, ok := Lookup(in.Key.Country); ok && p.VerificationCode != nil {
		return p.VerificationCode(in)
	}
	return fiscal.DefaultVerificationCode(in)
}

// ArchiveFormat returns the archive format of the ledger's country, JSON for
// unknown countries. Pass it to fiscal.WithArchiveFormat.
func ArchiveFormat(key ledger.Key) export.Format {
	if p, ok := Lookup(key.Country); ok {
		return p.ExportFormat
	}
	return export.FormatJSON
}

func shortSig(sig string) string {
	if len(sig) > 12 {
		sig = sig[:12]
	}
	return strings.ToUpper(sig)
}

func localTime(in *fiscal.VerificationInput, layout string) string {
	return in.Entry.Timestamp.In(in.Config.Location()).Format(layout)
}

// V0;{register};{transaction};{sequence};{time};{amount};{signature}
func germanCode(in *fiscal.VerificationInput) string {
	return fmt.Sprintf("V0;%s;%s;%d;%s;%s;%s",
		in.Config.Field(FieldCashRegisterID),
		in.Entry.TransactionID,
		in.Entry.SequenceNumber,
		localTime(in, "2006-01-02T15:04:05.000"),
		types.Fixed(in.Entry.Amount),
		in.Entry.Signature,
	)
}

// _R1-AT1_{register}_{sequence}_{time}_{amount}_{running total}_{certificate}_{SIG12}
func austrianCode(in *fiscal.VerificationInput) string {
	return fmt.Sprintf("_R1-AT1_%s_%d_%s_%s_%s_%s_%s",
		in.Config.Field(FieldCashRegisterID),
		in.Entry.SequenceNumber,
		localTime(in, "2006-01-02T15:04:05"),
		strings.Replace(types.Fixed(in.Entry.Amount), ".", ",", 1),
		strings.Replace(types.Fixed(in.Entry.RunningTotal), ".", ",", 1),
		in.Config.CertificateSerial,
		shortSig(in.Entry.Signature),
	)
}

// RT;{register serial};{business date};{sequence};{amount}
func italianCode(in *fiscal.VerificationInput) string {
	return fmt.Sprintf("RT;%s;%s;%04d;%s",
		in.Config.Field(FieldRegisterSerial),
		in.BusinessDate,
		in.Entry.SequenceNumber,
		types.Fixed(in.Entry.Amount),
	)
}

// NF525;{certification};{sequence};{perpetual grand total};{SIG12}
func frenchCode(in *fiscal.VerificationInput) string {
	return fmt.Sprintf("NF525;%s;%d;%s;%s",
		in.Config.CertificationNumber,
		in.Entry.SequenceNumber,
		types.Fixed(in.Perpetual.GrandTotal),
		shortSig(in.Entry.Signature),
	)
}

// PL;{tax id};{business date};{sequence};{amount};{SIG12}
func polishCode(in *fiscal.VerificationInput) string {
	return fmt.Sprintf("PL;%s;%s;%d;%s;%s",
		in.Config.TaxID,
		in.BusinessDate,
		in.Entry.SequenceNumber,
		types.Fixed(in.Entry.Amount),
		shortSig(in.Entry.Signature),
	)
}
