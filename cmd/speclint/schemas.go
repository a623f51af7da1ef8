package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func schemasCmd(g *globals) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "schemas",
		Short: "List the loaded module, class and validator definitions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := loadSchemas(g.cfg.SchemaDir)
			if err != nil {
				return &exitError{code: exitSchemaLoad, err: err}
			}
			defs := reg.Describe()
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(defs)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KIND\tNAME\tSOURCE\tSUMMARY")
			for _, d := range defs {
				name := d.Name
				if d.Module != "" {
					name = d.Module + "." + d.Name
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", d.Kind, name, d.Source, d.Summary)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}
