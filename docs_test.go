package fiscal_test

import (
	"context"
	"log"
	"log/slog"
	"testing"
	"time"

	"github.com/xraph/fiscal"
	"github.com/xraph/fiscal/chain"
	"github.com/xraph/fiscal/store/memory"
	"github.com/xraph/fiscal/types"
)

// TestDocumentationExamples verifies that all examples in the documentation compile
func TestDocumentationExamples(t *testing.T) {
	// Test Quick Start example from the package documentation
	t.Run("QuickStartExample", func(t *testing.T) {
		// Create store (memory for demo, use PostgreSQL in production)
		store := memory.New()

		// Initialize the engine with a key provider
		e := fiscal.New(store,
			fiscal.WithLogger(slog.Default()),
			fiscal.WithKeyProvider(chain.StaticKeys{
				"berlin-1": []byte("demo-signing-key-demo-signing-key"),
			}),
			fiscal.WithScheduledClose(time.Minute),
		)

		// Start the engine
		ctx := context.Background()
		if err := e.Start(ctx); err != nil {
			t.Fatal(err)
		}
		defer e.Stop()

		// Configure a ledger for one site
		key := fiscal.Key{TenantID: "acme", SiteID: "berlin-1", Country: "DE"}
		if _, err := e.Configure(ctx, key, fiscal.Configuration{
			Enabled:          true,
			SoftwareName:     "till",
			SoftwareVersion:  "1.0.0",
			SigningKeyHandle: "berlin-1",
			Timezone:         "Europe/Berlin",
			AutoArchive:      true,
			ArchiveTime:      "04:00",
			Currency:         "EUR",
		}); err != nil {
			t.Fatal(err)
		}

		// Record a completed order
		receipt, err := e.RecordTransaction(ctx, key, &fiscal.TransactionRecord{
			ID:          "order-1001",
			Timestamp:   time.Now(),
			Type:        fiscal.TypeSale,
			GrossAmount: fiscal.MustAmount("12.50"),
		})
		if err != nil {
			t.Fatal(err)
		}
		if !receipt.Success {
			t.Fatalf("%s: %s", receipt.Code, receipt.Message)
		}
		log.Printf("Receipt %d signed: %s\n", receipt.SequenceNumber, receipt.VerificationCode)

		// Verify the chain
		if _, err := e.VerifyChain(ctx, key); err != nil {
			t.Fatal(err)
		}

		// Export today's buffer
		l, err := e.Snapshot(ctx, key)
		if err != nil {
			t.Fatal(err)
		}
		rng, err := fiscal.DayRange(l.CurrentBusinessDate, l.Location())
		if err != nil {
			t.Fatal(err)
		}
		doc, err := e.GenerateAuditExport(ctx, key, rng, fiscal.FormatXML)
		if err != nil {
			t.Fatal(err)
		}
		log.Printf("Export generated: %s (%d bytes)\n", doc.FileName, len(doc.Data))
	})

	// Test amount helper examples
	t.Run("AmountExamples", func(t *testing.T) {
		a := fiscal.MustAmount("12.5")
		_ = types.Fixed(a)          // "12.50"
		_ = types.Display(a, "EUR") // "€12.50"

		if _, err := fiscal.ParseAmount("twelve"); err == nil {
			t.Fatal("expected a parse error")
		}
	})
}
