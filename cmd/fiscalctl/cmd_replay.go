package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xraph/fiscal"
	"github.com/xraph/fiscal/archive"
	archivefs "github.com/xraph/fiscal/archive/fs"
	"github.com/xraph/fiscal/country"
	"github.com/xraph/fiscal/journal"
	"github.com/xraph/fiscal/ledger"
	"github.com/xraph/fiscal/store/memory"
)

// replayReport is the last line written by replay.
type replayReport struct {
	Recorded int                  `json:"recorded"`
	Rejected int                  `json:"rejected"`
	Close    *fiscal.CloseSummary `json:"close"`
	Health   country.HealthStatus `json:"health"`
}

func newReplayCmd(g *globalFlags) *cobra.Command {
	var (
		ledgerKey    string
		ledgerConfig string
		out          string
		noClose      bool
	)
	cmd := &cobra.Command{
		Use:   "replay TRANSACTIONS",
		Short: "Record a transaction file into a scratch ledger",
		Long: `Replay a JSON-lines file of transaction records through an in-memory ledger
configured from a YAML file. Receipts are written to stdout, one per line,
followed by a report with the final close and the ledger health. Every
finished business day is archived below --out in the country's format.

Nothing is written to a production store; use it to rehearse a
configuration or to reproduce a journal from a transaction log.`,
		Example: `  fiscalctl replay tx.jsonl --ledger acme/berlin-1/DE --ledger-config berlin-1.yaml --out ./replay`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := g.logger()

			key, err := ledger.ParseKey(ledgerKey)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(g.configPath)
			if err != nil {
				return err
			}
			lcfg, err := readLedgerConfig(ledgerConfig)
			if err != nil {
				return err
			}
			sink, err := archivefs.New(out)
			if err != nil {
				return err
			}

			engine := fiscal.New(memory.New(), append(country.EngineOptions(),
				fiscal.WithLogger(logger),
				fiscal.WithKeyProvider(cfg.keyProvider()),
				fiscal.WithPlugin(archive.NewPlugin(sink, archive.WithLogger(logger))),
			)...)
			if err := engine.Start(ctx); err != nil {
				return err
			}
			defer func() { _ = engine.Stop() }()

			adapter, err := country.New(engine, key)
			if err != nil {
				return err
			}
			if _, err := engine.Configure(ctx, key, lcfg); err != nil {
				return err
			}
			if res := adapter.ValidateConfiguration(ctx); !res.IsValid {
				for _, is := range res.Errors {
					logger.Warn("configuration problem", "field", is.Field, "message", is.Message)
				}
			}

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			enc := json.NewEncoder(cmd.OutOrStdout())
			report := replayReport{}
			err = readTransactions(f, func(tx *journal.TransactionRecord) error {
				r, err := adapter.RecordTransaction(ctx, tx)
				if err != nil {
					return err
				}
				if r.Success {
					report.Recorded++
				} else {
					report.Rejected++
				}
				return enc.Encode(r)
			})
			if err != nil {
				return err
			}

			if !noClose {
				summary, err := adapter.PerformDailyClose(ctx, "")
				if err != nil {
					return err
				}
				report.Close = summary
			}
			report.Health = adapter.GetHealthStatus(ctx)
			return enc.Encode(report)
		},
	}
	cmd.Flags().StringVar(&ledgerKey, "ledger", "", "Ledger key as tenant/site/country")
	cmd.Flags().StringVar(&ledgerConfig, "ledger-config", "", "Ledger configuration YAML")
	cmd.Flags().StringVarP(&out, "out", "o", "replay", "Directory for daily archives")
	cmd.Flags().BoolVar(&noClose, "no-close", false, "Leave the last business day open")
	_ = cmd.MarkFlagRequired("ledger")
	_ = cmd.MarkFlagRequired("ledger-config")
	return cmd
}

// readTransactions decodes one TransactionRecord per non-empty line.
func readTransactions(r io.Reader, fn func(*journal.TransactionRecord) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		var tx journal.TransactionRecord
		if err := json.Unmarshal([]byte(text), &tx); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		if err := fn(&tx); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
	}
	return sc.Err()
}
