package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"freight-pricing/core/determinism"
	"freight-pricing/core/formula"
	"freight-pricing/internal/logging"
)

// Engine evaluates a formula across pricing tiers
type Engine struct {
	logger   *zap.Logger
	resolver *Resolver
	fallback FallbackPolicy
	lowRate  decimal.Decimal
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the logger; the global logger is used otherwise
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithAliases sets the distance/tonnage variable names
func WithAliases(aliases ExternalAliases) Option {
	return func(e *Engine) {
		e.resolver = NewResolver(aliases)
	}
}

// WithFallbackPolicy replaces the degraded-mode formula
func WithFallbackPolicy(policy FallbackPolicy) Option {
	return func(e *Engine) {
		e.fallback = policy
	}
}

// WithLowSpecialRate sets the discount lowSpecial derives from the low bucket
func WithLowSpecialRate(rate decimal.Decimal) Option {
	return func(e *Engine) {
		e.lowRate = rate
	}
}

// NewEngine creates an engine with defaults for anything not configured
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		resolver: defaultResolver,
		fallback: DefaultFallbackPolicy(),
		lowRate:  LowSpecialRate,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) log() *zap.Logger {
	if e.logger != nil {
		return e.logger
	}
	return logging.Logger
}

// Resolver returns the engine's variable resolver
func (e *Engine) Resolver() *Resolver {
	return e.resolver
}

// EvaluateTier resolves, binds and evaluates the formula for one tier
func (e *Engine) EvaluateTier(tokens []formula.Token, tier PricingTier, distance, tonnage float64) (float64, error) {
	bindings, err := e.resolver.Resolve(tier.Variables, distance, tonnage)
	if err != nil {
		return 0, err
	}

	expr, err := formula.Bind(tokens, bindings)
	if err != nil {
		var unresolved *formula.UnresolvedVariableError
		if errors.As(err, &unresolved) && unresolved.Name == "" {
			unresolved.Name = variableName(tier.Variables, unresolved.Identifier)
		}
		return 0, err
	}

	e.log().Debug("evaluating tier",
		zap.String("tier", tier.Name),
		zap.String("expression", expr),
	)
	return formula.Evaluate(expr)
}

func variableName(variables map[string]Variable, id string) string {
	for _, name := range determinism.SortedKeys(variables) {
		if variables[name].ID == id {
			return name
		}
	}
	return ""
}

// ComputeTierPrices prices every tier and aggregates the results. It never
// fails: an empty formula, or a run where no tier yields a canonical price,
// returns the fallback result with Fallback set.
func (e *Engine) ComputeTierPrices(tokens []formula.Token, tiers []PricingTier, distance, tonnage float64) (result EvaluationResult) {
	logger := e.log()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("tier pricing panicked, using fallback", zap.Any("panic", r))
			result = e.fallback.Calculate(distance, tonnage)
			result.Failures = append(result.Failures, TierFailure{Err: fmt.Errorf("panic: %v", r)})
		}
	}()

	if len(tokens) == 0 {
		logger.Warn("no formula provided, using fallback calculation")
		return e.fallback.Calculate(distance, tonnage)
	}

	var (
		results  []TierResult
		failures []TierFailure
	)
	for _, tier := range tiers {
		v, err := e.EvaluateTier(tokens, tier, distance, tonnage)
		if err != nil {
			logger.Warn("tier evaluation failed",
				zap.String("tier_id", tier.ID),
				zap.String("tier", tier.Name),
				zap.String("kind", string(formula.KindOf(err))),
				zap.Error(err),
			)
			failures = append(failures, TierFailure{TierID: tier.ID, TierName: tier.Name, Err: err})
			continue
		}
		if v <= 0 {
			logger.Debug("tier result is not positive, skipping",
				zap.String("tier", tier.Name),
				zap.Float64("value", v),
			)
			continue
		}
		results = append(results, TierResult{Name: tier.Name, Value: v})
	}

	result = aggregate(results, e.lowRate)
	result.Failures = failures
	if result.HasCanonical() {
		return result
	}

	logger.Warn("no tier produced a price, using fallback calculation",
		zap.Int("tiers", len(tiers)),
		zap.Int("failures", len(failures)),
	)
	fb := e.fallback.Calculate(distance, tonnage)
	fb.Extra = result.Extra
	fb.Failures = failures
	return fb
}

var defaultEngine = NewEngine()

// ComputeTierPrices prices tiers with the default engine
func ComputeTierPrices(tokens []formula.Token, tiers []PricingTier, distance, tonnage float64) EvaluationResult {
	return defaultEngine.ComputeTierPrices(tokens, tiers, distance, tonnage)
}
