package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newArchiveCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Inspect daily archives in the configured sink",
		Long: `Commands for daily archives written by the archive plugin. The sink is taken
from the "archive" section of the config file (fs or s3).`,
	}
	cmd.AddCommand(newArchiveListCmd(g), newArchiveVerifyCmd(g))
	return cmd
}

func newArchiveListCmd(g *globalFlags) *cobra.Command {
	var prefix string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List archive objects",
		Example: `  fiscalctl archive list --prefix acme/DE/berlin-1/`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(g.configPath)
			if err != nil {
				return err
			}
			sink, err := cfg.openSink(cmd.Context())
			if err != nil {
				return err
			}
			names, err := sink.List(cmd.Context(), prefix)
			if err != nil {
				return err
			}
			for _, n := range names {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "", "Only list objects below this prefix ({tenant}/{country}/{site}/)")
	return cmd
}

func newArchiveVerifyCmd(g *globalFlags) *cobra.Command {
	var (
		prefix    string
		keyHandle string
		parallel  int
	)
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify every archive below a prefix",
		Example: `  fiscalctl archive verify --prefix acme/DE/ --key berlin-1 --parallel 8`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(g.configPath)
			if err != nil {
				return err
			}
			sink, err := cfg.openSink(cmd.Context())
			if err != nil {
				return err
			}
			signer, err := cfg.signer(cmd.Context(), keyHandle)
			if err != nil {
				return err
			}
			names, err := sink.List(cmd.Context(), prefix)
			if err != nil {
				return err
			}
			if len(names) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "no archives below %q\n", prefix)
				return nil
			}
			g.logger().Debug("verifying archives", "prefix", prefix, "count", len(names))
			results, err := verifyAll(cmd.Context(), sink.Get, names, "", signer, parallel)
			if err != nil {
				return err
			}
			return printResults(cmd.OutOrStdout(), results)
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "", "Only verify objects below this prefix")
	cmd.Flags().StringVar(&keyHandle, "key", "", "Signing-key handle used to replay signatures")
	cmd.Flags().IntVar(&parallel, "parallel", 8, "Archives verified concurrently")
	return cmd
}
