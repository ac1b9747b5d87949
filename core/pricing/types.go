// Package pricing evaluates a pricing formula once per tier and folds the
// results into canonical price buckets.
package pricing

// Canonical bucket names
const (
	TierLow        = "low"
	TierMedium     = "medium"
	TierHigh       = "high"
	TierLowSpecial = "lowSpecial"
)

// Variable is one declared formula variable of a tier
type Variable struct {
	// ID is the backend-assigned key the formula tokens reference
	ID string `json:"id"`

	// Value is the stored constant; nil for shipper-supplied variables
	Value *float64 `json:"value"`

	// IsExternallySupplied means the value comes from the shipper's input
	IsExternallySupplied bool `json:"is_externally_supplied"`
}

// Constant returns a stored variable
func Constant(id string, value float64) Variable {
	return Variable{ID: id, Value: &value}
}

// External returns a shipper-supplied variable
func External(id string) Variable {
	return Variable{ID: id, IsExternallySupplied: true}
}

// PricingTier is one pricing bracket with its variable table
type PricingTier struct {
	// ID is the backend tier identifier
	ID string `json:"id"`

	// Name is free text ("Low", "Low edit", "Higaah", ...)
	Name string `json:"name"`

	// Variables maps semantic variable name to its declaration
	Variables map[string]Variable `json:"variables"`
}

// TierResult is the raw evaluated value of one tier
type TierResult struct {
	Name  string
	Value float64
}

// TierFailure records why a tier produced no price
type TierFailure struct {
	TierID   string
	TierName string
	Err      error
}

// EvaluationResult holds rounded prices per canonical bucket
type EvaluationResult struct {
	Low        int64 `json:"low"`
	Medium     int64 `json:"medium"`
	High       int64 `json:"high"`
	LowSpecial int64 `json:"lowSpecial"`

	// Extra holds buckets for tier names outside the canonical table
	Extra map[string]int64 `json:"extra,omitempty"`

	// Fallback is set when the linear fallback formula produced the prices
	Fallback bool `json:"fallback"`

	// Failures lists tiers that could not be evaluated
	Failures []TierFailure `json:"-"`
}

// Tiers flattens the result into bucket name -> amount. Canonical buckets
// win over an Extra bucket of the same name.
func (r EvaluationResult) Tiers() map[string]int64 {
	out := make(map[string]int64, len(r.Extra)+4)
	for k, v := range r.Extra {
		out[k] = v
	}
	out[TierLow] = r.Low
	out[TierMedium] = r.Medium
	out[TierHigh] = r.High
	out[TierLowSpecial] = r.LowSpecial
	return out
}

// HasCanonical reports whether any of low, medium or high is priced
func (r EvaluationResult) HasCanonical() bool {
	return r.Low != 0 || r.Medium != 0 || r.High != 0
}
