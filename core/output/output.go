// Package output renders quotes for humans and machines.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"sync"

	"freight-pricing/core/determinism"
	"freight-pricing/core/pricing"
	"freight-pricing/core/quote"
)

// Format represents output format type
type Format string

const (
	// FormatCLI is a human-readable CLI table
	FormatCLI Format = "cli"

	// FormatJSON is machine-readable JSON
	FormatJSON Format = "json"
)

// Formatter produces output in a specific format
type Formatter interface {
	// Format returns the format type
	Format() Format

	// Render writes q to w
	Render(w io.Writer, q *quote.Quote) error
}

var (
	mu         sync.RWMutex
	formatters = map[Format]Formatter{}
)

// Register adds a formatter, replacing any with the same format
func Register(f Formatter) {
	mu.Lock()
	defer mu.Unlock()
	formatters[f.Format()] = f
}

// Get returns the formatter for format
func Get(format Format) (Formatter, error) {
	mu.RLock()
	defer mu.RUnlock()
	f, ok := formatters[format]
	if !ok {
		return nil, fmt.Errorf("unknown output format %q (available: %v)", format, available())
	}
	return f, nil
}

func available() []string {
	names := make([]string, 0, len(formatters))
	for f := range formatters {
		names = append(names, string(f))
	}
	sort.Strings(names)
	return names
}

// JSONFormatter renders indented JSON
type JSONFormatter struct{}

// Format returns FormatJSON
func (JSONFormatter) Format() Format { return FormatJSON }

// Render writes q as JSON
func (JSONFormatter) Render(w io.Writer, q *quote.Quote) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(q)
}

// CLIFormatter renders a boxed summary table
type CLIFormatter struct{}

// Format returns FormatCLI
func (CLIFormatter) Format() Format { return FormatCLI }

// Render writes q as a table followed by the formula and its variables
func (CLIFormatter) Render(w io.Writer, q *quote.Quote) error {
	fmt.Fprintln(w, "┌──────────────────────────────────────────────────────────────┐")
	fmt.Fprintln(w, "│                         FREIGHT QUOTE                        │")
	fmt.Fprintln(w, "├──────────────────────────────────────────────────────────────┤")
	fmt.Fprintf(w, "│ %-20s %39s │\n", "Formula", truncate(q.Request.FormulaID, 39))
	fmt.Fprintf(w, "│ %-20s %39s │\n", "Route", truncate(q.Request.Route, 39))
	fmt.Fprintf(w, "│ %-20s %39s │\n", "Distance (km)", distanceLabel(q))
	fmt.Fprintf(w, "│ %-20s %39s │\n", "Tonnage", fmt.Sprint(q.Request.Tonnage))
	fmt.Fprintln(w, "├──────────────────────────────────────────────────────────────┤")

	for _, bucket := range []string{pricing.TierLow, pricing.TierMedium, pricing.TierHigh, pricing.TierLowSpecial} {
		fmt.Fprintf(w, "│ %-20s %39s │\n", bucket, q.Formatted[bucket])
	}
	for _, bucket := range determinism.SortedKeys(q.Prices.Extra) {
		fmt.Fprintf(w, "│   └─ %-15s %39s │\n", truncate(bucket, 15), q.Formatted[bucket])
	}
	fmt.Fprintln(w, "└──────────────────────────────────────────────────────────────┘")

	fmt.Fprintf(w, "\nFormula: %s\n", q.Formula)
	for _, name := range determinism.SortedKeys(q.Variables) {
		fmt.Fprintf(w, "  %-12s = %v\n", name, q.Variables[name])
	}

	if q.Prices.Fallback {
		fmt.Fprintln(w, "\nWarning: formula could not be evaluated, prices use the fallback calculation")
	}
	for _, f := range q.Failures {
		fmt.Fprintf(w, "  tier %q: %s\n", f.TierName, f.Message)
	}
	if q.Cached {
		fmt.Fprintln(w, "\n(served from cache)")
	}
	return nil
}

func distanceLabel(q *quote.Quote) string {
	if q.Distance != q.Request.Distance {
		return fmt.Sprintf("%v (minimum, requested %v)", q.Distance, q.Request.Distance)
	}
	return fmt.Sprint(q.Distance)
}

// truncate shortens s to maxLen runes
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}

func init() {
	Register(CLIFormatter{})
	Register(JSONFormatter{})
}
