// Package main is the entry point for the freight-pricing CLI.
package main

import (
	"os"

	"freight-pricing/cmd/cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
