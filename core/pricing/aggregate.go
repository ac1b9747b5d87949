package pricing

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// LowSpecialRate is the default discount applied to the low bucket
var LowSpecialRate = decimal.RequireFromString("0.8")

// tierAliases collapses the tier-name variants seen in backend data. "low edit"
// and "higaah" are kept verbatim from existing tier tables.
var tierAliases = map[string]string{
	"low":      TierLow,
	"low edit": TierLow,
	"medium":   TierMedium,
	"high":     TierHigh,
	"higaah":   TierHigh,
}

// CanonicalTierName maps a tier name to its bucket. Names outside the alias
// table bucket under their lower-cased form.
func CanonicalTierName(name string) string {
	if bucket, ok := tierAliases[strings.ToLower(strings.TrimSpace(name))]; ok {
		return bucket
	}
	return strings.ToLower(name)
}

// RoundAmount rounds v to whole currency units, half away from zero. It
// reports false for NaN, infinities and non-positive values.
func RoundAmount(v float64) (int64, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0, false
	}
	return decimal.NewFromFloat(v).Round(0).IntPart(), true
}

// DeriveLowSpecial returns round(low * 0.8), or 0 when low is 0
func DeriveLowSpecial(low int64) int64 {
	return deriveLowSpecial(low, LowSpecialRate)
}

func deriveLowSpecial(low int64, rate decimal.Decimal) int64 {
	if low <= 0 {
		return 0
	}
	return decimal.NewFromInt(low).Mul(rate).Round(0).IntPart()
}

// Aggregate folds ordered per-tier values into buckets. The first non-zero
// value of a bucket wins; missing buckets stay 0.
func Aggregate(results []TierResult) EvaluationResult {
	return aggregate(results, LowSpecialRate)
}

func aggregate(results []TierResult, lowSpecialRate decimal.Decimal) EvaluationResult {
	buckets := make(map[string]int64)
	for _, r := range results {
		amount, ok := RoundAmount(r.Value)
		if !ok || amount == 0 {
			continue
		}
		key := CanonicalTierName(r.Name)
		if buckets[key] != 0 {
			continue
		}
		buckets[key] = amount
	}

	res := EvaluationResult{
		Low:    buckets[TierLow],
		Medium: buckets[TierMedium],
		High:   buckets[TierHigh],
	}
	res.LowSpecial = deriveLowSpecial(res.Low, lowSpecialRate)

	for k, v := range buckets {
		switch k {
		case TierLow, TierMedium, TierHigh:
			continue
		}
		if res.Extra == nil {
			res.Extra = make(map[string]int64)
		}
		res.Extra[k] = v
	}
	return res
}
