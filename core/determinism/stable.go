// Package determinism provides stable ordering, hashing and money helpers so
// that quotes render and cache identically for identical inputs.
package determinism

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// StableID is a hash-based identifier that's deterministic
type StableID string

// IDGenerator generates stable, deterministic IDs
type IDGenerator struct {
	namespace string
}

// NewIDGenerator creates an ID generator with a namespace
func NewIDGenerator(namespace string) *IDGenerator {
	return &IDGenerator{namespace: namespace}
}

// Generate creates a stable ID from inputs
func (g *IDGenerator) Generate(parts ...string) StableID {
	h := sha256.New()
	h.Write([]byte(g.namespace))
	h.Write([]byte{0})
	for _, part := range parts {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return StableID(g.namespace + ":" + hex.EncodeToString(h.Sum(nil))[:32])
}

// SortedKeys returns the keys of m in ascending order
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Money is an integer-unit amount in a currency.
type Money struct {
	amount   decimal.Decimal
	currency string
}

// NewMoney creates Money from whole currency units
func NewMoney(units int64, currency string) Money {
	return Money{amount: decimal.NewFromInt(units), currency: currency}
}

// currencyLocales picks the grouping convention and symbol per currency
var currencyLocales = map[string]struct {
	tag    language.Tag
	symbol string
}{
	"IDR": {language.Indonesian, "Rp"},
	"USD": {language.AmericanEnglish, "$"},
}

// Format renders the amount for people using the currency's locale grouping,
// e.g. "Rp 1.025.000". Unknown currencies fall back to English grouping and
// the currency code.
func (m Money) Format() string {
	loc, ok := currencyLocales[strings.ToUpper(m.currency)]
	if !ok {
		loc.tag = language.English
		loc.symbol = m.currency
	}
	p := message.NewPrinter(loc.tag)
	return p.Sprintf("%s %d", loc.symbol, m.amount.IntPart())
}
