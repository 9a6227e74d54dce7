package export_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/fiscal/chain"
	"github.com/xraph/fiscal/export"
	"github.com/xraph/fiscal/id"
	"github.com/xraph/fiscal/journal"
	"github.com/xraph/fiscal/ledger"
	"github.com/xraph/fiscal/types"
)

var day = time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

func signedLedger(t *testing.T, amounts ...string) (*ledger.Ledger, *chain.Signer) {
	t.Helper()
	s, err := chain.NewSigner([]byte("export-test-key"))
	require.NoError(t, err)

	l := ledger.New(ledger.Key{TenantID: "acme", SiteID: "store-7", Country: "AT"}, ledger.Configuration{
		Enabled:         true,
		SoftwareName:    "till",
		SoftwareVersion: "1.2.0",
		CompanyName:     "Acme GmbH",
		TaxID:           "ATU123",
		Currency:        "EUR",
	})

	prev := chain.Initial
	running := decimal.Zero
	for i, a := range amounts {
		amt := types.MustAmount(a)
		running = running.Add(amt)
		tx := &journal.TransactionRecord{
			ID:          "tx-" + string(rune('a'+i)),
			Timestamp:   day.Add(time.Duration(i+9) * time.Hour),
			Type:        journal.TypeSale,
			GrossAmount: amt,
		}
		data, err := journal.EncodeEvent(tx)
		require.NoError(t, err)

		e := journal.Entry{
			ID:                id.NewJournalEntryID(),
			SequenceNumber:    uint64(i + 1),
			Timestamp:         tx.Timestamp,
			EventType:         journal.EventTransactionRecorded,
			EventData:         data,
			TransactionID:     tx.ID,
			TransactionType:   tx.Type,
			Amount:            amt,
			RunningTotal:      running,
			PreviousSignature: prev,
		}
		e.Signature = s.Next(e.Link())
		e.IntegrityHash = chain.IntegrityHash(e.EventData, e.Signature)
		prev = e.Signature
		l.Journal = append(l.Journal, e)
	}
	return l, s
}

func TestBuildDayRange(t *testing.T) {
	l, s := signedLedger(t, "10.00", "5.50", "4.50")
	// An entry from the next day stays out of the window.
	next := l.Journal[2]
	next.SequenceNumber = 4
	next.Timestamp = day.AddDate(0, 0, 1).Add(time.Hour)
	l.Journal = append(l.Journal, next)

	rng, err := export.DayRange("2026-03-14", time.UTC)
	require.NoError(t, err)

	gen := time.Date(2026, 3, 15, 1, 0, 0, 0, time.UTC)
	a, err := export.NewBuilder(export.WithClock(func() time.Time { return gen })).Build(context.Background(), l, rng)
	require.NoError(t, err)

	assert.Len(t, a.Entries, 3)
	assert.Equal(t, int64(3), a.Footer.TransactionCount)
	assert.Equal(t, "20.00", types.Fixed(a.Footer.GrandTotal))
	assert.Equal(t, uint64(1), a.Footer.FirstSequenceNumber)
	assert.Equal(t, uint64(3), a.Footer.LastSequenceNumber)
	assert.Equal(t, "store-7", a.Header.SiteID)
	assert.Equal(t, "Acme GmbH", a.Header.CompanyName)
	assert.Equal(t, gen, a.Header.GeneratedAt)
	assert.Equal(t, id.PrefixExport, a.Header.ExportID.Prefix())

	require.NoError(t, a.Verify())
	rep, err := a.VerifyChain(s)
	require.NoError(t, err)
	assert.Equal(t, 3, rep.Checked)
}

func TestBuildEmptyRange(t *testing.T) {
	l, _ := signedLedger(t, "1.00")
	rng, err := export.DayRange("2026-01-01", time.UTC)
	require.NoError(t, err)

	a, err := export.NewBuilder().Build(context.Background(), l, rng)
	require.NoError(t, err)
	assert.Empty(t, a.Entries)
	assert.Zero(t, a.Footer.TransactionCount)
	assert.True(t, a.Footer.GrandTotal.IsZero())
	assert.NoError(t, a.Verify())
}

func TestBuildRejectsInvertedRange(t *testing.T) {
	l, _ := signedLedger(t, "1.00")
	_, err := export.NewBuilder().Build(context.Background(), l, export.Range{Start: day, End: day.Add(-time.Second)})
	assert.ErrorIs(t, err, export.ErrInvalidRange)

	_, err = export.DatesRange("2026-03-15", "2026-03-14", time.UTC)
	assert.ErrorIs(t, err, export.ErrInvalidRange)
}

func TestBuildHonorsCancellation(t *testing.T) {
	l, _ := signedLedger(t, "1.00", "2.00")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rng, err := export.DayRange("2026-03-14", time.UTC)
	require.NoError(t, err)
	_, err = export.NewBuilder().Build(ctx, l, rng)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestVerifyDetectsTampering(t *testing.T) {
	build := func(t *testing.T) *export.Artifact {
		l, _ := signedLedger(t, "10.00", "5.50")
		rng, err := export.DayRange("2026-03-14", time.UTC)
		require.NoError(t, err)
		a, err := export.NewBuilder().Build(context.Background(), l, rng)
		require.NoError(t, err)
		return a
	}

	t.Run("footer total", func(t *testing.T) {
		a := build(t)
		a.Footer.GrandTotal = types.MustAmount("99.00")
		assert.ErrorIs(t, a.Verify(), export.ErrFooterMismatch)
	})
	t.Run("dropped entry", func(t *testing.T) {
		a := build(t)
		a.Entries = a.Entries[:1]
		assert.ErrorIs(t, a.Verify(), export.ErrFooterMismatch)
	})
	t.Run("reordered", func(t *testing.T) {
		a := build(t)
		a.Entries[0], a.Entries[1] = a.Entries[1], a.Entries[0]
		assert.ErrorIs(t, a.Verify(), export.ErrUnordered)
	})
	t.Run("event data", func(t *testing.T) {
		a := build(t)
		a.Entries[1].EventData += " "
		assert.ErrorIs(t, a.Verify(), chain.ErrIntegrityMismatch)
	})
}

func TestEncodeRoundTrip(t *testing.T) {
	l, s := signedLedger(t, "10.00", "0.10", "7.25")
	rng, err := export.DayRange("2026-03-14", time.UTC)
	require.NoError(t, err)
	a, err := export.NewBuilder().Build(context.Background(), l, rng)
	require.NoError(t, err)

	for _, f := range []export.Format{export.FormatJSON, export.FormatXML, export.FormatBinary} {
		t.Run(string(f), func(t *testing.T) {
			doc, err := export.Encode(context.Background(), a, f, time.UTC)
			require.NoError(t, err)
			assert.Equal(t, "store-7-2026-03-14-2026-03-14."+f.Extension(), doc.FileName)
			assert.Equal(t, f.ContentType(), doc.ContentType)

			back, err := export.Decode(f, doc.Data)
			require.NoError(t, err)
			require.NoError(t, back.Verify())
			_, err = back.VerifyChain(s)
			require.NoError(t, err)
			assert.Equal(t, a.Header.ExportID.String(), back.Header.ExportID.String())
			assert.True(t, a.Footer.GrandTotal.Equal(back.Footer.GrandTotal))
		})
	}
}

func TestEncodeCSV(t *testing.T) {
	l, s := signedLedger(t, "10.00", "5.50")
	rng, err := export.DayRange("2026-03-14", time.UTC)
	require.NoError(t, err)
	a, err := export.NewBuilder().Build(context.Background(), l, rng)
	require.NoError(t, err)

	doc, err := export.Encode(context.Background(), a, export.FormatCSV, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, "text/csv", doc.ContentType)

	lines := strings.Split(strings.TrimSpace(string(doc.Data)), "\n")
	require.Len(t, lines, 7)
	assert.True(t, strings.HasPrefix(lines[1], "H,"))
	assert.True(t, strings.HasPrefix(lines[3], "E,1,"))
	assert.True(t, strings.HasPrefix(lines[6], "F,2,15.5,1,2"))

	back, err := export.Decode(export.FormatCSV, doc.Data)
	require.NoError(t, err)
	require.NoError(t, back.Verify())
	_, err = back.VerifyChain(s)
	require.NoError(t, err)
	assert.Equal(t, a.Entries[1].ID.String(), back.Entries[1].ID.String())

	_, err = export.Decode(export.FormatCSV, []byte("kind\nX,1\n"))
	assert.Error(t, err)
}

func TestParseFormat(t *testing.T) {
	f, err := export.ParseFormat(" JSON ")
	require.NoError(t, err)
	assert.Equal(t, export.FormatJSON, f)

	f, err = export.ParseFormat("bin")
	require.NoError(t, err)
	assert.Equal(t, export.FormatBinary, f)

	_, err = export.ParseFormat("pdf")
	assert.ErrorIs(t, err, export.ErrUnsupportedFormat)
}
