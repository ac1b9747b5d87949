// Package cmd - formulas command
package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"freight-pricing/core/formula"
)

// formulasCmd lists loaded formula definitions
var formulasCmd = &cobra.Command{
	Use:   "formulas",
	Short: "List formula definitions",
	RunE:  runFormulas,
}

func init() {
	formulasCmd.Flags().StringVarP(&outputFormat, "format", "f", "cli", "output format (cli, json)")
	rootCmd.AddCommand(formulasCmd)
}

func runFormulas(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.Close()

	defs := a.Service.Formulas()
	out := cmd.OutOrStdout()

	if outputFormat == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(defs)
	}

	if len(defs) == 0 {
		fmt.Fprintf(out, "No formulas found in %s\n", a.Config.Pricing.DefinitionsDir)
		return nil
	}
	for _, def := range defs {
		tiers := make([]string, len(def.Tiers))
		for i, t := range def.Tiers {
			tiers[i] = t.Name
		}
		fmt.Fprintf(out, "%s", def.ID)
		if def.Name != "" {
			fmt.Fprintf(out, " (%s)", def.Name)
		}
		fmt.Fprintln(out)
		fmt.Fprintf(out, "  formula:  %s\n", formula.Display(def.Tokens, def.VariableNames()))
		fmt.Fprintf(out, "  tiers:    %s\n", strings.Join(tiers, ", "))
		if def.MinimumDistance > 0 {
			fmt.Fprintf(out, "  minimum:  %v km\n", def.MinimumDistance)
		}
	}
	return nil
}
