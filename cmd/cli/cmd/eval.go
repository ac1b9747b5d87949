// Package cmd - eval command
package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"freight-pricing/core/formula"
)

// evalCmd evaluates a bare arithmetic expression
var evalCmd = &cobra.Command{
	Use:   "eval <expression>",
	Short: "Evaluate an arithmetic expression",
	Long: `Evaluate an expression with the same safe evaluator used for tier
formulas. Only digits, spaces, + - * / ( ) . and ** are accepted; the
formula builder glyphs ×, ÷ and ^ are normalized first.

Examples:
  freight-pricing eval "1000 + 150 * 5200"
  freight-pricing eval "2 ^ 10"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runEval,
}

func init() {
	rootCmd.AddCommand(evalCmd)
}

func runEval(cmd *cobra.Command, args []string) error {
	expr := formula.Normalize(formula.Tokens(strings.Fields(strings.Join(args, " "))...), nil)

	v, err := formula.Evaluate(expr)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), formula.FormatValue(v))
	return nil
}
