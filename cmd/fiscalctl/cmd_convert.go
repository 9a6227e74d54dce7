package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/renameio"
	"github.com/spf13/cobra"

	"github.com/xraph/fiscal/export"
)

func newConvertCmd(g *globalFlags) *cobra.Command {
	var (
		to       string
		out      string
		timezone string
	)
	cmd := &cobra.Command{
		Use:   "convert FILE",
		Short: "Re-encode an export in another format",
		Long: `Decode an export, check it and write it in another format. The output file
name defaults to the standard export name in the input's directory.`,
		Example: `  fiscalctl convert site-1-2026-06-01-2026-06-01.csv --to xml --timezone Europe/Berlin`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := args[0]
			from, err := formatOf(in, "")
			if err != nil {
				return err
			}
			target, err := export.ParseFormat(to)
			if err != nil {
				return err
			}
			loc, err := time.LoadLocation(timezone)
			if err != nil {
				return fmt.Errorf("timezone: %w", err)
			}

			data, err := os.ReadFile(in)
			if err != nil {
				return err
			}
			a, err := export.Decode(from, data)
			if err != nil {
				return err
			}
			if err := a.Verify(); err != nil {
				return fmt.Errorf("%s does not verify: %w", in, err)
			}
			doc, err := export.Encode(cmd.Context(), a, target, loc)
			if err != nil {
				return err
			}

			path := out
			if path == "" {
				path = filepath.Join(filepath.Dir(in), doc.FileName)
			}
			if err := renameio.WriteFile(path, doc.Data, 0o644); err != nil {
				return err
			}
			g.logger().Debug("export converted", "from", from, "to", target, "entries", len(a.Entries))
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	cmd.Flags().StringVar(&to, "to", "json", "Target format (json, xml, csv, msgpack)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output path")
	cmd.Flags().StringVar(&timezone, "timezone", "UTC", "Zone used for the dates in the output file name")
	return cmd
}
