package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vmihailenco/msgpack"

	"github.com/xraph/fiscal/id"
	"github.com/xraph/fiscal/journal"
	"github.com/xraph/fiscal/ledger"
)

// Format is a serialization of an Artifact.
type Format string

const (
	FormatJSON   Format = "json"
	FormatXML    Format = "xml"
	FormatCSV    Format = "csv"
	FormatBinary Format = "msgpack"
)

// ErrUnsupportedFormat is returned for unknown formats.
var ErrUnsupportedFormat = errors.New("export: unsupported format")

// ParseFormat parses a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatXML, FormatCSV, FormatBinary:
		return f, nil
	case "bin", "binary":
		return FormatBinary, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

// ContentType returns the MIME type of f.
func (f Format) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json"
	case FormatXML:
		return "application/xml"
	case FormatCSV:
		return "text/csv"
	case FormatBinary:
		return "application/x-msgpack"
	default:
		return "application/octet-stream"
	}
}

// Extension returns the file extension of f without the dot.
func (f Format) Extension() string {
	return string(f)
}

// Document is a serialized Artifact ready for delivery.
type Document struct {
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	Format      Format `json:"format"`
	Data        []byte `json:"-"`
}

// FileName returns "{site}-{start}-{end}.{ext}" with dates in loc.
func FileName(h Header, loc *time.Location, f Format) string {
	if loc == nil {
		loc = time.UTC
	}
	return fmt.Sprintf("%s-%s-%s.%s", h.SiteID,
		h.RangeStart.In(loc).Format(ledger.DateLayout),
		h.RangeEnd.In(loc).Format(ledger.DateLayout),
		f.Extension())
}

// Encode serializes a in format f. Dates in the file name are rendered in
// loc.
func Encode(ctx context.Context, a *Artifact, f Format, loc *time.Location) (*Document, error) {
	var (
		data []byte
		err  error
	)
	switch f {
	case FormatJSON:
		data, err = json.MarshalIndent(a, "", "  ")
	case FormatXML:
		data, err = encodeXML(ctx, a)
	case FormatCSV:
		data, err = encodeCSV(ctx, a)
	case FormatBinary:
		data, err = encodeBinary(ctx, a)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, f)
	}
	if err != nil {
		return nil, fmt.Errorf("export: encode %s: %w", f, err)
	}
	return &Document{
		FileName:    FileName(a.Header, loc, f),
		ContentType: f.ContentType(),
		Format:      f,
		Data:        data,
	}, nil
}

// Decode parses a document produced by Encode.
func Decode(f Format, data []byte) (*Artifact, error) {
	switch f {
	case FormatJSON:
		var a Artifact
		if err := json.Unmarshal(data, &a); err != nil {
			return nil, fmt.Errorf("export: decode json: %w", err)
		}
		return &a, nil
	case FormatXML:
		var w wireArtifact
		if err := xml.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("export: decode xml: %w", err)
		}
		return w.artifact()
	case FormatBinary:
		var w wireArtifact
		if err := msgpack.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("export: decode msgpack: %w", err)
		}
		return w.artifact()
	case FormatCSV:
		w, err := decodeCSV(data)
		if err != nil {
			return nil, fmt.Errorf("export: decode csv: %w", err)
		}
		return w.artifact()
	default:
		return nil, fmt.Errorf("%w: cannot decode %q", ErrUnsupportedFormat, f)
	}
}

func encodeXML(ctx context.Context, a *Artifact) ([]byte, error) {
	w, err := toWire(ctx, a)
	if err != nil {
		return nil, err
	}
	out, err := xml.MarshalIndent(w, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), out...), nil
}

func encodeBinary(ctx context.Context, a *Artifact) ([]byte, error) {
	w, err := toWire(ctx, a)
	if err != nil {
		return nil, err
	}
	return msgpack.Marshal(w)
}

// CSV layout: one record per line, first column is the record kind
// (H header, E entry, F footer).
var (
	csvHeaderColumns = []string{"kind", "export_id", "tenant_id", "site_id", "country", "company_name",
		"tax_id", "vat_number", "software_name", "software_version", "certification_number",
		"registration_number", "certificate_serial", "currency", "range_start", "range_end", "generated_at"}
	csvEntryColumns = []string{"kind", "sequence_number", "timestamp", "transaction_id", "transaction_type",
		"amount", "running_total", "signature", "previous_signature", "integrity_hash", "operator_id", "event_data",
		"event_type", "id"}
	csvFooterColumns = []string{"kind", "transaction_count", "grand_total", "first_sequence_number", "last_sequence_number"}
)

func encodeCSV(ctx context.Context, a *Artifact) ([]byte, error) {
	w, err := toWire(ctx, a)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	h := w.Header
	rows := [][]string{
		csvHeaderColumns,
		{"H", h.ExportID, h.TenantID, h.SiteID, h.Country, h.CompanyName, h.TaxID, h.VATNumber,
			h.SoftwareName, h.SoftwareVersion, h.CertificationNumber, h.RegistrationNumber,
			h.CertificateSerial, h.Currency, h.RangeStart, h.RangeEnd, h.GeneratedAt},
		csvEntryColumns,
	}
	for _, e := range w.Entries {
		rows = append(rows, []string{"E", strconv.FormatUint(e.SequenceNumber, 10), e.Timestamp,
			e.TransactionID, e.TransactionType, e.Amount, e.RunningTotal, e.Signature,
			e.PreviousSignature, e.IntegrityHash, e.OperatorID, e.EventData, e.EventType, e.ID})
	}
	rows = append(rows, csvFooterColumns, []string{"F",
		strconv.FormatInt(w.Footer.TransactionCount, 10), w.Footer.GrandTotal,
		strconv.FormatUint(w.Footer.FirstSequenceNumber, 10),
		strconv.FormatUint(w.Footer.LastSequenceNumber, 10)})

	if err := cw.WriteAll(rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeCSV(data []byte) (*wireArtifact, error) {
	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}

	w := &wireArtifact{}
	var sawHeader, sawFooter bool
	for i, r := range rows {
		if len(r) == 0 || r[0] == "kind" {
			continue
		}
		switch r[0] {
		case "H":
			if len(r) != len(csvHeaderColumns) {
				return nil, fmt.Errorf("line %d: want %d header fields, got %d", i+1, len(csvHeaderColumns), len(r))
			}
			w.Header = wireHeader{
				ExportID: r[1], TenantID: r[2], SiteID: r[3], Country: r[4], CompanyName: r[5],
				TaxID: r[6], VATNumber: r[7], SoftwareName: r[8], SoftwareVersion: r[9],
				CertificationNumber: r[10], RegistrationNumber: r[11], CertificateSerial: r[12],
				Currency: r[13], RangeStart: r[14], RangeEnd: r[15], GeneratedAt: r[16],
			}
			sawHeader = true
		case "E":
			if len(r) != len(csvEntryColumns) {
				return nil, fmt.Errorf("line %d: want %d entry fields, got %d", i+1, len(csvEntryColumns), len(r))
			}
			seq, err := strconv.ParseUint(r[1], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: sequence: %w", i+1, err)
			}
			w.Entries = append(w.Entries, wireEntry{
				SequenceNumber: seq, Timestamp: r[2], TransactionID: r[3], TransactionType: r[4],
				Amount: r[5], RunningTotal: r[6], Signature: r[7], PreviousSignature: r[8],
				IntegrityHash: r[9], OperatorID: r[10], EventData: r[11], EventType: r[12], ID: r[13],
			})
		case "F":
			if len(r) != len(csvFooterColumns) {
				return nil, fmt.Errorf("line %d: want %d footer fields, got %d", i+1, len(csvFooterColumns), len(r))
			}
			var err error
			if w.Footer.TransactionCount, err = strconv.ParseInt(r[1], 10, 64); err != nil {
				return nil, fmt.Errorf("line %d: transaction count: %w", i+1, err)
			}
			w.Footer.GrandTotal = r[2]
			if w.Footer.FirstSequenceNumber, err = strconv.ParseUint(r[3], 10, 64); err != nil {
				return nil, fmt.Errorf("line %d: first sequence: %w", i+1, err)
			}
			if w.Footer.LastSequenceNumber, err = strconv.ParseUint(r[4], 10, 64); err != nil {
				return nil, fmt.Errorf("line %d: last sequence: %w", i+1, err)
			}
			sawFooter = true
		default:
			return nil, fmt.Errorf("line %d: unknown record kind %q", i+1, r[0])
		}
	}
	if !sawHeader || !sawFooter {
		return nil, errors.New("missing header or footer record")
	}
	return w, nil
}

// Wire shapes render amounts and times as strings so that every format
// carries the same text the signatures were computed over.
type wireArtifact struct {
	XMLName xml.Name    `xml:"AuditExport" msgpack:"-"`
	Header  wireHeader  `xml:"Header" msgpack:"header"`
	Entries []wireEntry `xml:"Entries>Entry" msgpack:"entries"`
	Footer  wireFooter  `xml:"Footer" msgpack:"footer"`
}

type wireHeader struct {
	ExportID            string `xml:"ExportID" msgpack:"export_id"`
	TenantID            string `xml:"TenantID" msgpack:"tenant_id"`
	SiteID              string `xml:"SiteID" msgpack:"site_id"`
	Country             string `xml:"Country" msgpack:"country"`
	CompanyName         string `xml:"CompanyName,omitempty" msgpack:"company_name"`
	Address             string `xml:"Address,omitempty" msgpack:"address"`
	TaxID               string `xml:"TaxID,omitempty" msgpack:"tax_id"`
	VATNumber           string `xml:"VATNumber,omitempty" msgpack:"vat_number"`
	SoftwareName        string `xml:"SoftwareName" msgpack:"software_name"`
	SoftwareVersion     string `xml:"SoftwareVersion" msgpack:"software_version"`
	CertificationNumber string `xml:"CertificationNumber,omitempty" msgpack:"certification_number"`
	RegistrationNumber  string `xml:"RegistrationNumber,omitempty" msgpack:"registration_number"`
	CertificateSerial   string `xml:"CertificateSerial,omitempty" msgpack:"certificate_serial"`
	Currency            string `xml:"Currency,omitempty" msgpack:"currency"`
	RangeStart          string `xml:"RangeStart" msgpack:"range_start"`
	RangeEnd            string `xml:"RangeEnd" msgpack:"range_end"`
	GeneratedAt         string `xml:"GeneratedAt" msgpack:"generated_at"`
}

type wireEntry struct {
	ID                string `xml:"id,attr" msgpack:"id"`
	SequenceNumber    uint64 `xml:"SequenceNumber" msgpack:"sequence_number"`
	Timestamp         string `xml:"Timestamp" msgpack:"timestamp"`
	EventType         string `xml:"EventType" msgpack:"event_type"`
	EventData         string `xml:"EventData" msgpack:"event_data"`
	TransactionID     string `xml:"TransactionID" msgpack:"transaction_id"`
	TransactionType   string `xml:"TransactionType" msgpack:"transaction_type"`
	Amount            string `xml:"Amount" msgpack:"amount"`
	RunningTotal      string `xml:"RunningTotal" msgpack:"running_total"`
	Signature         string `xml:"Signature" msgpack:"signature"`
	PreviousSignature string `xml:"PreviousSignature" msgpack:"previous_signature"`
	IntegrityHash     string `xml:"IntegrityHash" msgpack:"integrity_hash"`
	OperatorID        string `xml:"OperatorID,omitempty" msgpack:"operator_id"`
}

type wireFooter struct {
	TransactionCount    int64  `xml:"TransactionCount" msgpack:"transaction_count"`
	GrandTotal          string `xml:"GrandTotal" msgpack:"grand_total"`
	FirstSequenceNumber uint64 `xml:"FirstSequenceNumber" msgpack:"first_sequence_number"`
	LastSequenceNumber  uint64 `xml:"LastSequenceNumber" msgpack:"last_sequence_number"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func toWire(ctx context.Context, a *Artifact) (*wireArtifact, error) {
	h := a.Header
	w := &wireArtifact{
		Header: wireHeader{
			ExportID:            h.ExportID.String(),
			TenantID:            h.TenantID,
			SiteID:              h.SiteID,
			Country:             h.Country,
			CompanyName:         h.CompanyName,
			Address:             h.Address,
			TaxID:               h.TaxID,
			VATNumber:           h.VATNumber,
			SoftwareName:        h.SoftwareName,
			SoftwareVersion:     h.SoftwareVersion,
			CertificationNumber: h.CertificationNumber,
			RegistrationNumber:  h.RegistrationNumber,
			CertificateSerial:   h.CertificateSerial,
			Currency:            h.Currency,
			RangeStart:          formatTime(h.RangeStart),
			RangeEnd:            formatTime(h.RangeEnd),
			GeneratedAt:         formatTime(h.GeneratedAt),
		},
		Entries: make([]wireEntry, 0, len(a.Entries)),
		Footer: wireFooter{
			TransactionCount:    a.Footer.TransactionCount,
			GrandTotal:          a.Footer.GrandTotal.String(),
			FirstSequenceNumber: a.Footer.FirstSequenceNumber,
			LastSequenceNumber:  a.Footer.LastSequenceNumber,
		},
	}
	for i := range a.Entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		e := &a.Entries[i]
		w.Entries = append(w.Entries, wireEntry{
			ID:                e.ID.String(),
			SequenceNumber:    e.SequenceNumber,
			Timestamp:         formatTime(e.Timestamp),
			EventType:         e.EventType,
			EventData:         e.EventData,
			TransactionID:     e.TransactionID,
			TransactionType:   string(e.TransactionType),
			Amount:            e.Amount.String(),
			RunningTotal:      e.RunningTotal.String(),
			Signature:         e.Signature,
			PreviousSignature: e.PreviousSignature,
			IntegrityHash:     e.IntegrityHash,
			OperatorID:        e.OperatorID,
		})
	}
	return w, nil
}

func (w *wireArtifact) artifact() (*Artifact, error) {
	var (
		a   Artifact
		err error
	)
	h := w.Header
	if h.ExportID != "" {
		if a.Header.ExportID, err = id.ParseExportID(h.ExportID); err != nil {
			return nil, err
		}
	}
	a.Header.TenantID = h.TenantID
	a.Header.SiteID = h.SiteID
	a.Header.Country = h.Country
	a.Header.CompanyName = h.CompanyName
	a.Header.Address = h.Address
	a.Header.TaxID = h.TaxID
	a.Header.VATNumber = h.VATNumber
	a.Header.SoftwareName = h.SoftwareName
	a.Header.SoftwareVersion = h.SoftwareVersion
	a.Header.CertificationNumber = h.CertificationNumber
	a.Header.RegistrationNumber = h.RegistrationNumber
	a.Header.CertificateSerial = h.CertificateSerial
	a.Header.Currency = h.Currency
	if a.Header.RangeStart, err = parseTime(h.RangeStart); err != nil {
		return nil, err
	}
	if a.Header.RangeEnd, err = parseTime(h.RangeEnd); err != nil {
		return nil, err
	}
	if a.Header.GeneratedAt, err = parseTime(h.GeneratedAt); err != nil {
		return nil, err
	}

	a.Entries = make([]journal.Entry, 0, len(w.Entries))
	for _, we := range w.Entries {
		e := journal.Entry{
			SequenceNumber:    we.SequenceNumber,
			EventType:         we.EventType,
			EventData:         we.EventData,
			TransactionID:     we.TransactionID,
			TransactionType:   journal.TransactionType(we.TransactionType),
			Signature:         we.Signature,
			PreviousSignature: we.PreviousSignature,
			IntegrityHash:     we.IntegrityHash,
			OperatorID:        we.OperatorID,
		}
		if we.ID != "" {
			if e.ID, err = id.ParseJournalEntryID(we.ID); err != nil {
				return nil, err
			}
		}
		if e.Timestamp, err = parseTime(we.Timestamp); err != nil {
			return nil, err
		}
		if e.Amount, err = decimal.NewFromString(we.Amount); err != nil {
			return nil, fmt.Errorf("export: entry %d amount: %w", we.SequenceNumber, err)
		}
		if e.RunningTotal, err = decimal.NewFromString(we.RunningTotal); err != nil {
			return nil, fmt.Errorf("export: entry %d running total: %w", we.SequenceNumber, err)
		}
		a.Entries = append(a.Entries, e)
	}

	a.Footer.TransactionCount = w.Footer.TransactionCount
	a.Footer.FirstSequenceNumber = w.Footer.FirstSequenceNumber
	a.Footer.LastSequenceNumber = w.Footer.LastSequenceNumber
	if a.Footer.GrandTotal, err = decimal.NewFromString(w.Footer.GrandTotal); err != nil {
		return nil, fmt.Errorf("export: footer grand total: %w", err)
	}
	return &a, nil
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("export: parse time %q: %w", s, err)
	}
	return t, nil
}
