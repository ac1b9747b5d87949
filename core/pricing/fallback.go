package pricing

import (
	"math"

	"github.com/shopspring/decimal"
)

// FallbackPolicy is the linear formula used when a formula cannot be evaluated:
//
//	base = BasePrice + distance*PerKilometer + tonnage*PerTon
type FallbackPolicy struct {
	BasePrice      decimal.Decimal
	PerKilometer   decimal.Decimal
	PerTon         decimal.Decimal
	HighMultiplier decimal.Decimal
	LowSpecialRate decimal.Decimal
}

// DefaultFallbackPolicy returns base 800000 + 1000/km + 50000/ton
func DefaultFallbackPolicy() FallbackPolicy {
	return FallbackPolicy{
		BasePrice:      decimal.NewFromInt(800000),
		PerKilometer:   decimal.NewFromInt(1000),
		PerTon:         decimal.NewFromInt(50000),
		HighMultiplier: decimal.RequireFromString("1.25"),
		LowSpecialRate: LowSpecialRate,
	}
}

// FallbackPolicyFromFloats builds a policy from configuration numbers
func FallbackPolicyFromFloats(base, perKm, perTon, highMultiplier, lowSpecialRate float64) FallbackPolicy {
	return FallbackPolicy{
		BasePrice:      finiteDecimal(base),
		PerKilometer:   finiteDecimal(perKm),
		PerTon:         finiteDecimal(perTon),
		HighMultiplier: finiteDecimal(highMultiplier),
		LowSpecialRate: finiteDecimal(lowSpecialRate),
	}
}

// Calculate prices a shipment with the linear formula. Non-finite inputs
// count as 0 and a negative base is clamped to 0.
func (p FallbackPolicy) Calculate(distance, tonnage float64) EvaluationResult {
	base := p.BasePrice.
		Add(finiteDecimal(distance).Mul(p.PerKilometer)).
		Add(finiteDecimal(tonnage).Mul(p.PerTon))
	if base.IsNegative() {
		base = decimal.Zero
	}

	return EvaluationResult{
		Low:        base.Round(0).IntPart(),
		Medium:     base.Round(0).IntPart(),
		High:       base.Mul(p.HighMultiplier).Round(0).IntPart(),
		LowSpecial: base.Mul(p.LowSpecialRate).Round(0).IntPart(),
		Fallback:   true,
	}
}

// Fallback prices with DefaultFallbackPolicy
func Fallback(distance, tonnage float64) EvaluationResult {
	return DefaultFallbackPolicy().Calculate(distance, tonnage)
}

func finiteDecimal(v float64) decimal.Decimal {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v)
}
