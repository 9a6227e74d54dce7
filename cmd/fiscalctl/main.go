// Command fiscalctl inspects and verifies fiscal journal exports and
// archives, and replays transaction files through an in-memory ledger.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

type globalFlags struct {
	configPath string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:   "fiscalctl",
		Short: "Inspect and verify fiscal journal exports",
		Long: `fiscalctl checks audit exports and daily archives produced by the fiscal
ledger: footer totals, entry ordering, integrity hashes and, when the signing
key is available, the full signature chain.

Signing keys are looked up in the config file first and then in environment
variables named FISCAL_KEY_<HANDLE> (hex or base64).`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&g.configPath, "config", "", "Path to a fiscalctl YAML config file")
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "Log debug output to stderr")

	root.AddCommand(
		newVerifyCmd(g),
		newArchiveCmd(g),
		newConvertCmd(g),
		newProfilesCmd(),
		newCheckConfigCmd(),
		newReplayCmd(g),
	)
	return root
}

func (g *globalFlags) logger() *slog.Logger {
	level := slog.LevelWarn
	if g.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
