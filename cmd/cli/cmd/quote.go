// Package cmd - quote command
package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"freight-pricing/core/output"
	"freight-pricing/core/quote"
)

var (
	outputFormat string
	quoteReq     quote.Request
)

// quoteCmd prices one shipment
var quoteCmd = &cobra.Command{
	Use:   "quote",
	Short: "Price a shipment against a formula",
	Long: `Evaluate a formula for every pricing tier and print the resulting
low, medium, high and low-special prices. When the formula cannot be
evaluated the linear fallback prices are printed and marked as such.

Examples:
  freight-pricing quote --formula 4pl-standard --distance 150 --tonnage 2.5
  freight-pricing quote -F 4pl-standard --distance 40 --tonnage 1 --format json`,
	RunE: runQuote,
}

func init() {
	quoteCmd.Flags().StringVarP(&quoteReq.FormulaID, "formula", "F", "", "formula id [REQUIRED]")
	quoteCmd.Flags().Float64Var(&quoteReq.Distance, "distance", 0, "distance in km [REQUIRED]")
	quoteCmd.Flags().Float64Var(&quoteReq.Tonnage, "tonnage", 0, "tonnage [REQUIRED]")
	quoteCmd.Flags().StringVar(&quoteReq.Route, "route", "cli", "route label")
	quoteCmd.Flags().StringVar(&quoteReq.TruckType, "truck", "any", "truck type")
	quoteCmd.Flags().StringVar(&quoteReq.CarrierType, "carrier", "any", "carrier type")
	quoteCmd.Flags().StringVarP(&outputFormat, "format", "f", "cli", "output format (cli, json)")

	quoteCmd.MarkFlagRequired("formula")
	quoteCmd.MarkFlagRequired("distance")
	quoteCmd.MarkFlagRequired("tonnage")

	rootCmd.AddCommand(quoteCmd)
}

func runQuote(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.Close()

	q, err := a.Service.Quote(context.Background(), quoteReq)
	if err != nil {
		return err
	}

	formatter, err := output.Get(output.Format(outputFormat))
	if err != nil {
		return err
	}
	return formatter.Render(cmd.OutOrStdout(), q)
}
