// Package fiscal provides a tamper-evident fiscal ledger for point-of-sale
// systems in Go applications.
//
// Fiscal is designed as a library, not a service. Import it directly into
// the service that completes orders. It provides:
//
//   - A keyed signature chain linking every journal entry to its predecessor
//   - Daily and perpetual cumulative totals (Grand Total Perpetuel)
//   - Lazy business-day rollover with optional auto-archive
//   - Self-verifying audit exports in JSON, XML, CSV and msgpack
//   - Country profiles for Germany, Austria, Italy, France and Poland
//   - Pluggable archive sinks, event buses and metrics
//
// # Quick Start
//
// Create an engine with your preferred store:
//
//	import (
//	    "github.com/xraph/fiscal"
//	    "github.com/xraph/fiscal/chain"
//	    "github.com/xraph/fiscal/store/memory"
//	)
//
//	e := fiscal.New(memory.New(),
//	    fiscal.WithKeyProvider(chain.EnvKeys{Prefix: "FISCAL_KEY_"}),
//	)
//	if err := e.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer e.Stop()
//
// # Core Concepts
//
// A ledger exists per (tenant, site, country) key and is created by
// Configure:
//
//	key := fiscal.Key{TenantID: "acme", SiteID: "berlin-1", Country: "DE"}
//	_, err := e.Configure(ctx, key, fiscal.Configuration{
//	    Enabled:          true,
//	    SigningKeyHandle: "berlin-1",
//	    Timezone:         "Europe/Berlin",
//	    AutoArchive:      true,
//	})
//
// Completed orders are recorded as transactions:
//
//	receipt, err := e.RecordTransaction(ctx, key, &fiscal.TransactionRecord{
//	    ID:          "order-1001",
//	    Timestamp:   time.Now(),
//	    Type:        fiscal.TypeSale,
//	    GrossAmount: fiscal.MustAmount("12.50"),
//	})
//	if err != nil {
//	    // store or key provider failure, nothing was written
//	}
//	if !receipt.Success {
//	    // receipt.Code is NOT_CONFIGURED or INVALID_TRANSACTION
//	}
//
// At most one writer runs per key. Recording is not idempotent: retry with
// the idempotency package when the caller cannot rule out duplicates.
//
// # Business days
//
// The business date of a transaction is its timestamp in the ledger's time
// zone. The first transaction of a later date rolls the ledger over: with
// auto-archive enabled the closing day is exported and handed to plugins,
// then the daily totals and the journal buffer are reset. Perpetual totals
// and the sequence never reset. PerformDailyClose and the scheduled close
// worker are explicit triggers for the same archive step.
//
// # TypeID
//
// All entities use TypeID for globally unique, type-safe identifiers:
//
//	fled_01h2xcejqtf2nbrexx3vqjhp41  // Ledger ID
//	jrnl_01h2xcejqtf2nbrexx3vqjhp41  // Journal entry ID
//	aexp_01h455vb4pex5vsknk084sn02q  // Audit export ID
package fiscal
