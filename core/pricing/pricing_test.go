package pricing

import (
	"errors"
	"reflect"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"freight-pricing/core/formula"
)

// backendTiers mirrors the tier table the variable service returns for one
// route and truck type.
func backendTiers() []PricingTier {
	tier := func(id, name string, enam, pl float64) PricingTier {
		return PricingTier{
			ID:   id,
			Name: name,
			Variables: map[string]Variable{
				"enam":   Constant("var-enam", enam),
				"jarak":  External("var-jarak"),
				"PL":     Constant("var-pl", pl),
				"tonase": External("var-tonase"),
			},
		}
	}
	return []PricingTier{
		tier("tier-medium", "Medium", 1000, 5200),
		tier("tier-high", "High", 6000, 1500),
		tier("tier-low", "Low edit", 4000, 800),
		tier("tier-high-2", "Higaah", 7000, 2000),
	}
}

func newTestEngine() *Engine {
	return NewEngine(WithLogger(zap.NewNop()))
}

func TestResolveBindings(t *testing.T) {
	vars := map[string]Variable{
		"enam":   Constant("var-enam", 1000),
		"jarak":  External("var-jarak"),
		"Tonase": External("var-tonase"),
	}

	got, err := ResolveBindings(vars, 150, 2.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := map[string]float64{"var-enam": 1000, "var-jarak": 150, "var-tonase": 2.5}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestResolveBindingsErrors(t *testing.T) {
	tests := []struct {
		name string
		vars map[string]Variable
		kind formula.Kind
	}{
		{
			name: "external variable that is neither distance nor tonnage",
			vars: map[string]Variable{"bensin": External("var-bensin")},
			kind: formula.KindAmbiguousExternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ResolveBindings(tt.vars, 100, 1)
			if err == nil {
				t.Fatal("expected error")
			}
			if formula.KindOf(err) != tt.kind {
				t.Errorf("expected kind %s, got %s (%v)", tt.kind, formula.KindOf(err), err)
			}
		})
	}
}

func TestResolveLeavesNullVariablesUnbound(t *testing.T) {
	got, err := ResolveBindings(map[string]Variable{
		"a":      Constant("var-a", 100),
		"unused": {ID: "var-unused"},
	}, 100, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := got["var-unused"]; ok || got["var-a"] != 100 {
		t.Errorf("unexpected bindings %v", got)
	}
}

func TestComputeTierPricesIgnoresUnusedNullVariable(t *testing.T) {
	tiers := []PricingTier{{
		ID:   "tier-low",
		Name: "Low",
		Variables: map[string]Variable{
			"a":      Constant("var-a", 100),
			"unused": {ID: "var-unused"},
		},
	}}

	got := ComputeTierPrices(formula.Tokens("var-a", "*", "2"), tiers, 100, 2.5)
	if got.Fallback || len(got.Failures) != 0 {
		t.Fatalf("unused null variable must not fail the tier, got %+v", got)
	}
	if got.Low != 200 || got.LowSpecial != 160 {
		t.Errorf("unexpected prices %+v", got)
	}

	// referenced, the same variable is unresolved
	got = ComputeTierPrices(formula.Tokens("var-a", "+", "var-unused"), tiers, 100, 2.5)
	if !got.Fallback || len(got.Failures) != 1 {
		t.Fatalf("expected fallback with one failure, got %+v", got)
	}
	var unresolved *formula.UnresolvedVariableError
	if !errors.As(got.Failures[0].Err, &unresolved) || unresolved.Name != "unused" {
		t.Errorf("expected unresolved variable \"unused\", got %v", got.Failures[0].Err)
	}
}

func TestEngineLowSpecialRate(t *testing.T) {
	tiers := []PricingTier{{
		ID:        "tier-low",
		Name:      "Low",
		Variables: map[string]Variable{"a": Constant("var-a", 1000)},
	}}
	engine := NewEngine(WithLogger(zap.NewNop()), WithLowSpecialRate(decimal.RequireFromString("0.5")))

	got := engine.ComputeTierPrices(formula.Tokens("var-a"), tiers, 1, 1)
	if got.Low != 1000 || got.LowSpecial != 500 {
		t.Errorf("expected lowSpecial 500, got %+v", got)
	}
}

func TestResolverCustomAliases(t *testing.T) {
	r := NewResolver(ExternalAliases{Distance: []string{"km"}, Tonnage: []string{"berat"}})
	got, err := r.Resolve(map[string]Variable{
		"KM":    External("a"),
		"berat": External("b"),
	}, 12, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got["a"] != 12 || got["b"] != 3 {
		t.Errorf("unexpected bindings %v", got)
	}

	if _, err := r.Resolve(map[string]Variable{"jarak": External("c")}, 1, 1); err == nil {
		t.Error("expected default alias to be rejected by a custom resolver")
	}
}

func TestCanonicalTierName(t *testing.T) {
	tests := map[string]string{
		"Low":      TierLow,
		"Low edit": TierLow,
		"low EDIT": TierLow,
		"Medium":   TierMedium,
		"High":     TierHigh,
		"Higaah":   TierHigh,
		" high ":   TierHigh,
		"Premium":  "premium",
	}
	for in, want := range tests {
		if got := CanonicalTierName(in); got != want {
			t.Errorf("CanonicalTierName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestAggregate(t *testing.T) {
	tests := []struct {
		name    string
		results []TierResult
		want    EvaluationResult
	}{
		{
			name: "canonical buckets with derived low special",
			results: []TierResult{
				{Name: "Low", Value: 1000.4},
				{Name: "Medium", Value: 1500.5},
				{Name: "High", Value: 2000},
			},
			want: EvaluationResult{Low: 1000, Medium: 1501, High: 2000, LowSpecial: 800},
		},
		{
			name: "first non-zero value wins per bucket",
			results: []TierResult{
				{Name: "Higaah", Value: 0},
				{Name: "High", Value: 3000},
				{Name: "Higaah", Value: 9000},
				{Name: "Low edit", Value: 1234},
			},
			want: EvaluationResult{Low: 1234, High: 3000, LowSpecial: 987},
		},
		{
			name: "missing buckets default to zero",
			results: []TierResult{
				{Name: "Medium", Value: 50},
			},
			want: EvaluationResult{Medium: 50},
		},
		{
			name: "unknown names become extra buckets",
			results: []TierResult{
				{Name: "Premium", Value: 42},
			},
			want: EvaluationResult{Extra: map[string]int64{"premium": 42}},
		},
		{
			name:    "empty input",
			results: nil,
			want:    EvaluationResult{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Aggregate(tt.results)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestAggregateIsIdempotent(t *testing.T) {
	results := []TierResult{
		{Name: "Medium", Value: 781000},
		{Name: "High", Value: 231000},
		{Name: "Low edit", Value: 124000},
		{Name: "Higaah", Value: 307000},
		{Name: "Special", Value: 10},
	}

	first := Aggregate(results)
	second := Aggregate(results)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("aggregate not idempotent: %+v vs %+v", first, second)
	}
}

func TestDeriveLowSpecial(t *testing.T) {
	for _, low := range []int64{0, 1, 2, 3, 5, 7, 999, 124000, 1025000, 1234567} {
		want := int64(0)
		if low > 0 {
			// round half away from zero of low*0.8 in integer arithmetic
			want = (low*8 + 5) / 10
		}
		if got := DeriveLowSpecial(low); got != want {
			t.Errorf("DeriveLowSpecial(%d) = %d, want %d", low, got, want)
		}
	}
}

func TestFallback(t *testing.T) {
	got := Fallback(100, 2.5)
	want := EvaluationResult{
		Low:        1025000,
		Medium:     1025000,
		High:       1281250,
		LowSpecial: 820000,
		Fallback:   true,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %+v, got %+v", want, got)
	}
}

func TestFallbackPolicyFromFloats(t *testing.T) {
	p := FallbackPolicyFromFloats(1000, 10, 100, 2, 0.5)
	got := p.Calculate(5, 1)

	if got.Low != 1150 || got.High != 2300 || got.LowSpecial != 575 {
		t.Errorf("unexpected fallback %+v", got)
	}
}

func TestComputeTierPrices(t *testing.T) {
	// enam + jarak × PL + tonase
	tokens := formula.Tokens("var-enam", "+", "var-jarak", "×", "var-pl", "+", "var-tonase")

	got := newTestEngine().ComputeTierPrices(tokens, backendTiers(), 150, 2.5)

	// first non-zero wins: "High" before "Higaah"
	want := EvaluationResult{
		Low:        4000 + 150*800 + 3, // 2.5 rounds up
		Medium:     1000 + 150*5200 + 3,
		High:       6000 + 150*1500 + 3,
		LowSpecial: DeriveLowSpecial(4000 + 150*800 + 3),
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %+v, got %+v", want, got)
	}
}

func TestComputeTierPricesIsolatesTierFailures(t *testing.T) {
	tiers := backendTiers()
	// the Medium tier loses its stored PL value
	tiers[0].Variables["PL"] = Variable{ID: "var-pl"}

	tokens := formula.Tokens("var-enam", "+", "var-pl")
	got := newTestEngine().ComputeTierPrices(tokens, tiers, 100, 1)

	if got.Fallback {
		t.Fatal("one failing tier must not trigger the fallback")
	}
	if got.Medium != 0 {
		t.Errorf("failed tier should be excluded, got medium=%d", got.Medium)
	}
	if got.Low != 4800 || got.High != 7500 {
		t.Errorf("unexpected prices %+v", got)
	}
	if len(got.Failures) != 1 || got.Failures[0].TierID != "tier-medium" {
		t.Fatalf("expected one failure for tier-medium, got %+v", got.Failures)
	}

	var unresolved *formula.UnresolvedVariableError
	if !errors.As(got.Failures[0].Err, &unresolved) {
		t.Errorf("expected UnresolvedVariableError, got %v", got.Failures[0].Err)
	}
}

func TestComputeTierPricesMissingBinding(t *testing.T) {
	tiers := []PricingTier{{
		ID:        "tier-low",
		Name:      "Low",
		Variables: map[string]Variable{"a": Constant("a", 100)},
	}}

	got := newTestEngine().ComputeTierPrices(formula.Tokens("a", "+", "x"), tiers, 100, 2.5)

	if !got.Fallback {
		t.Fatal("expected fallback when the only tier fails")
	}
	if len(got.Failures) != 1 {
		t.Fatalf("expected one failure, got %d", len(got.Failures))
	}
	if formula.KindOf(got.Failures[0].Err) != formula.KindUnresolvedVariable {
		t.Errorf("expected unresolved variable, got %v", got.Failures[0].Err)
	}
	if got.Low != 1025000 {
		t.Errorf("expected fallback low 1025000, got %d", got.Low)
	}
}

func TestComputeTierPricesFallbackPaths(t *testing.T) {
	tiers := backendTiers()

	tests := []struct {
		name         string
		tokens       []formula.Token
		tiers        []PricingTier
		wantFailures int
	}{
		{
			name:   "empty formula",
			tokens: nil,
			tiers:  tiers,
		},
		{
			name:         "division by zero in every tier",
			tokens:       formula.Tokens("var-enam", "÷", "0"),
			tiers:        tiers,
			wantFailures: len(tiers),
		},
		{
			name:         "unbound token in every tier",
			tokens:       formula.Tokens("var-enam", "+", "1e5"),
			tiers:        tiers,
			wantFailures: len(tiers),
		},
		{
			name:   "only non-positive results",
			tokens: formula.Tokens("0", "-", "var-enam"),
			tiers:  tiers,
		},
		{
			name:   "no tiers",
			tokens: formula.Tokens("1"),
			tiers:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := newTestEngine().ComputeTierPrices(tt.tokens, tt.tiers, 100, 2.5)
			if !got.Fallback {
				t.Fatalf("expected fallback, got %+v", got)
			}
			if got.Low != 1025000 || got.High != 1281250 || got.LowSpecial != 820000 {
				t.Errorf("unexpected fallback prices %+v", got)
			}
			if len(got.Failures) != tt.wantFailures {
				t.Errorf("expected %d failures, got %d", tt.wantFailures, len(got.Failures))
			}
		})
	}
}

func TestComputeTierPricesAmbiguousExternal(t *testing.T) {
	tiers := []PricingTier{
		{
			ID:   "t1",
			Name: "Low",
			Variables: map[string]Variable{
				"bensin": External("var-bensin"),
			},
		},
		{
			ID:   "t2",
			Name: "High",
			Variables: map[string]Variable{
				"bensin": Constant("var-bensin", 10),
			},
		},
	}

	got := newTestEngine().ComputeTierPrices(formula.Tokens("var-bensin", "*", "3"), tiers, 1, 1)
	if got.Fallback {
		t.Fatal("unexpected fallback")
	}
	if got.High != 30 || got.Low != 0 || got.LowSpecial != 0 {
		t.Errorf("unexpected prices %+v", got)
	}
	if len(got.Failures) != 1 || formula.KindOf(got.Failures[0].Err) != formula.KindAmbiguousExternal {
		t.Errorf("expected one ambiguous external failure, got %+v", got.Failures)
	}
}

func TestEvaluationResultTiers(t *testing.T) {
	r := EvaluationResult{Low: 10, Medium: 20, High: 30, LowSpecial: 8, Extra: map[string]int64{"premium": 40, "low": 99}}
	got := r.Tiers()

	want := map[string]int64{"low": 10, "medium": 20, "high": 30, "lowSpecial": 8, "premium": 40}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}
