package ledger

import (
	"fmt"
	"time"
	_ "time/tzdata" // business days must be cut in local zones on hosts without zoneinfo
)

// Configuration holds the static identity and compliance fields of a ledger.
// It is replaced as a whole by Configure and never changes while a
// transaction is being recorded.
type Configuration struct {
	Enabled bool `json:"enabled"`

	SoftwareName        string `json:"software_name"`
	SoftwareVersion     string `json:"software_version"`
	CertificationNumber string `json:"certification_number,omitempty"`
	RegistrationNumber  string `json:"registration_number,omitempty"`

	CompanyName string `json:"company_name,omitempty"`
	Address     string `json:"address,omitempty"`
	TaxID       string `json:"tax_id,omitempty"`
	VATNumber   string `json:"vat_number,omitempty"`

	// SigningKeyHandle names the key; the key material lives with the
	// chain.KeyProvider.
	SigningKeyHandle     string     `json:"signing_key_handle,omitempty"`
	CertificateSerial    string     `json:"certificate_serial,omitempty"`
	CertificateExpiresAt *time.Time `json:"certificate_expires_at,omitempty"`

	AutoArchive bool `json:"auto_archive"`
	// ArchiveTime is the local "HH:MM" after which the scheduled close may
	// archive the previous business day.
	ArchiveTime string `json:"archive_time,omitempty"`
	// Timezone is the IANA zone business days are cut in. Empty means UTC.
	Timezone string `json:"timezone,omitempty"`
	Currency string `json:"currency,omitempty"`

	// Fields carries country-specific values (cash register id, tax office
	// number, ...). Keys are defined by the country profiles.
	Fields map[string]string `json:"fields,omitempty"`
}

// Clone returns a deep copy.
func (c Configuration) Clone() Configuration {
	out := c
	if c.CertificateExpiresAt != nil {
		t := *c.CertificateExpiresAt
		out.CertificateExpiresAt = &t
	}
	if c.Fields != nil {
		out.Fields = make(map[string]string, len(c.Fields))
		for k, v := range c.Fields {
			out.Fields[k] = v
		}
	}
	return out
}

// Location resolves Timezone, falling back to UTC.
func (c Configuration) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Field returns a country-specific field.
func (c Configuration) Field(name string) string {
	return c.Fields[name]
}

// ArchiveClock parses ArchiveTime. Empty means midnight.
func (c Configuration) ArchiveClock() (hour, minute int, err error) {
	if c.ArchiveTime == "" {
		return 0, 0, nil
	}
	t, err := time.Parse("15:04", c.ArchiveTime)
	if err != nil {
		return 0, 0, fmt.Errorf("ledger: parse archive time %q: %w", c.ArchiveTime, err)
	}
	return t.Hour(), t.Minute(), nil
}

// Check validates the fields the engine itself depends on.
func (c Configuration) Check() error {
	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			return fmt.Errorf("ledger: unknown timezone %q: %w", c.Timezone, err)
		}
	}
	if _, _, err := c.ArchiveClock(); err != nil {
		return err
	}
	return nil
}
