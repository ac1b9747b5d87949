// Package cmd provides the CLI commands for freight-pricing.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"freight-pricing/internal/app"
	"freight-pricing/internal/config"
	"freight-pricing/internal/logging"
)

// Version is the CLI version
const Version = "0.1.0"

var (
	cfgFile        string
	definitionsDir string
	verbose        bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "freight-pricing",
	Short: "Price freight shipments with tiered pricing formulas",
	Long: `freight-pricing evaluates admin-authored pricing formulas against a
shipper's distance and tonnage and reports the low, medium, high and
low-special prices.

Examples:
  freight-pricing quote --formula 4pl-standard --distance 150 --tonnage 2.5
  freight-pricing quote --formula 4pl-standard --distance 150 --tonnage 2.5 --format json
  freight-pricing formulas
  freight-pricing eval "1000 + 150 * 5200"`,
	SilenceUsage: true,
}

// Execute runs the CLI
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.freight-pricing.json)")
	rootCmd.PersistentFlags().StringVarP(&definitionsDir, "definitions", "d", "", "directory of *.hcl formula definitions (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
}

func initConfig() {
	if cfgFile != "" {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
		config.Set(cfg)
	}

	cfg := config.Get()
	if definitionsDir != "" {
		cfg.Pricing.DefinitionsDir = definitionsDir
	}

	// Initialize logging
	if verbose {
		cfg.Logging.Level = "debug"
	}
	if err := logging.Initialize(cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logging: %v\n", err)
	}
}

// loadApp wires the quote service from the global configuration
func loadApp() (*app.App, error) {
	return app.New(config.Get(), logging.Logger)
}

// versionCmd prints version information
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "freight-pricing version %s\n", Version)
	},
}
