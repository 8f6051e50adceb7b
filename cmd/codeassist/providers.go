package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/matiasleandrokruk/codeassist/internal/domain/provider"
)

func newProvidersCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "providers",
		Short: "List the built-in provider catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg := provider.DefaultRegistry()
			if err := reg.Validate(); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch format {
			case "json":
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(reg.All())
			case "text":
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tNAME\tDEFAULT MODEL\tCREDENTIAL ENV\tMODELS") //nolint:errcheck
				for _, c := range reg.All() {
					env := c.CredentialEnvVar
					if env == "" {
						env = "-"
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", //nolint:errcheck
						c.ID, c.DisplayName, c.DefaultModel, env, strings.Join(c.Models, ","))
				}
				return tw.Flush()
			default:
				return fmt.Errorf("unknown format %q (want text or json)", format)
			}
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "Output format (text, json)")
	return cmd
}
