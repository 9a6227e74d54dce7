package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"
)

func newVerifyCmd(g *globalFlags) *cobra.Command {
	var (
		keyHandle string
		format    string
		parallel  int
	)

	cmd := &cobra.Command{
		Use:   "verify FILE...",
		Short: "Verify audit export files",
		Long: `Verify audit export files. Every file is decoded, its footer is recomputed
from the entries, entry order and integrity hashes are checked. With --key the
signature chain is replayed as well.`,
		Example: `  # Self-check two exports
  fiscalctl verify site-1-2026-06-01-2026-06-01.json site-1-2026-06-02-2026-06-02.csv

  # Replay signatures with the key stored under handle berlin-1
  fiscalctl verify --key berlin-1 export.xml`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(g.configPath)
			if err != nil {
				return err
			}
			signer, err := cfg.signer(cmd.Context(), keyHandle)
			if err != nil {
				return err
			}
			readFile := func(_ context.Context, name string) ([]byte, error) {
				return os.ReadFile(name)
			}
			results, err := verifyAll(cmd.Context(), readFile, args, format, signer, parallel)
			if err != nil {
				return err
			}
			return printResults(cmd.OutOrStdout(), results)
		},
	}
	cmd.Flags().StringVar(&keyHandle, "key", "", "Signing-key handle used to replay signatures")
	cmd.Flags().StringVar(&format, "format", "", "Force the document format (json, xml, csv, msgpack)")
	cmd.Flags().IntVar(&parallel, "parallel", 4, "Documents verified concurrently")
	return cmd
}
