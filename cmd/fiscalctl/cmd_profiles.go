package main

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/xraph/fiscal/country"
)

func newProfilesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profiles",
		Short: "List supported countries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "COUNTRY\tNAME\tCURRENCY\tARCHIVE\tCERTIFICATION\tREQUIRED FIELDS\tFEATURES")
			for _, c := range country.Supported() {
				p, _ := country.Lookup(c)
				features := make([]string, len(p.Features))
				for i, f := range p.Features {
					features[i] = string(f)
				}
				cert := "optional"
				if p.RequireCertification {
					cert = "required"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					p.Country, p.Name, p.Currency, p.ExportFormat, cert,
					strings.Join(p.RequiredFields, ","), strings.Join(features, ","))
			}
			return tw.Flush()
		},
	}
}

func newCheckConfigCmd() *cobra.Command {
	var countryCode string
	cmd := &cobra.Command{
		Use:   "check-config FILE",
		Short: "Validate a ledger configuration against a country profile",
		Long: `Validate a ledger configuration YAML file. Keys are the JSON field names of
the configuration (tax_id, signing_key_handle, certificate_expires_at, fields, ...).
The signing key itself is not resolved.`,
		Example: `  fiscalctl check-config berlin-1.yaml --country DE`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, ok := country.Lookup(countryCode)
			if !ok {
				return fmt.Errorf("%w: %q", country.ErrUnsupportedCountry, countryCode)
			}
			cfg, err := readLedgerConfig(args[0])
			if err != nil {
				return err
			}

			res := country.ValidationResult{}
			country.Check(p, cfg, time.Now(), &res)

			w := cmd.OutOrStdout()
			for _, is := range res.Errors {
				fmt.Fprintf(w, "error   %-24s %s\n", is.Field, is.Message)
			}
			for _, is := range res.Warnings {
				fmt.Fprintf(w, "warning %-24s %s\n", is.Field, is.Message)
			}
			if !res.IsValid {
				return fmt.Errorf("configuration is not valid for %s", p.Name)
			}
			fmt.Fprintf(w, "configuration is valid for %s\n", p.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&countryCode, "country", "", "ISO country code (DE, AT, IT, FR, PL)")
	_ = cmd.MarkFlagRequired("country")
	return cmd
}
