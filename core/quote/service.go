package quote

import (
	"context"
	"encoding/json"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"freight-pricing/core/determinism"
	"freight-pricing/core/formula"
	"freight-pricing/core/pricing"
	"freight-pricing/internal/errors"
	"freight-pricing/internal/logging"
)

// Request is a shipper's simulation input
type Request struct {
	FormulaID   string  `json:"formula_id"`
	Route       string  `json:"route"`
	TruckType   string  `json:"truck_type"`
	CarrierType string  `json:"carrier_type"`
	Distance    float64 `json:"distance"`
	Tonnage     float64 `json:"tonnage"`
}

// Validate checks the fields a simulation cannot run without
func (r Request) Validate() error {
	var missing []string
	if strings.TrimSpace(r.FormulaID) == "" {
		missing = append(missing, "formula_id")
	}
	if strings.TrimSpace(r.Route) == "" {
		missing = append(missing, "route")
	}
	if strings.TrimSpace(r.TruckType) == "" {
		missing = append(missing, "truck_type")
	}
	if strings.TrimSpace(r.CarrierType) == "" {
		missing = append(missing, "carrier_type")
	}
	if len(missing) > 0 {
		return errors.Inputf("missing required fields: %s", strings.Join(missing, ", "))
	}
	if !(r.Distance > 0) || math.IsInf(r.Distance, 0) {
		return errors.Input("distance must be a positive number")
	}
	if !(r.Tonnage > 0) || math.IsInf(r.Tonnage, 0) {
		return errors.Input("tonnage must be a positive number")
	}
	return nil
}

// Failure is a JSON-friendly pricing.TierFailure
type Failure struct {
	TierID   string `json:"tier_id,omitempty"`
	TierName string `json:"tier_name,omitempty"`
	Kind     string `json:"kind,omitempty"`
	Message  string `json:"message"`
}

// Quote is the priced result of a Request
type Quote struct {
	Request Request `json:"request"`

	// Distance is the distance actually priced, after the minimum floor
	Distance float64 `json:"distance"`

	// Prices are the rounded tier prices
	Prices pricing.EvaluationResult `json:"prices"`

	// Formatted renders each price for display
	Formatted map[string]string `json:"formatted"`

	// Currency labels Prices
	Currency string `json:"currency"`

	// Formula is the formula with variable names instead of identifiers
	Formula string `json:"formula"`

	// Variables shows the values used, taken from the first tier
	Variables map[string]float64 `json:"variables"`

	// Failures lists tiers that could not be evaluated
	Failures []Failure `json:"failures,omitempty"`

	// Cached is set when the quote was served from the cache
	Cached bool `json:"cached"`
}

// Cache stores serialized quotes
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// Service prices requests
type Service struct {
	registry *Registry
	engine   *pricing.Engine
	cache    Cache
	ttl      time.Duration
	currency string
	logger   *zap.Logger
}

// ServiceOption configures a Service
type ServiceOption func(*Service)

// WithCache enables quote caching
func WithCache(cache Cache, ttl time.Duration) ServiceOption {
	return func(s *Service) {
		s.cache = cache
		s.ttl = ttl
	}
}

// WithDefaultCurrency labels quotes whose definition has no currency
func WithDefaultCurrency(currency string) ServiceOption {
	return func(s *Service) {
		s.currency = currency
	}
}

// WithServiceLogger sets the logger
func WithServiceLogger(logger *zap.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService creates a quote service
func NewService(registry *Registry, engine *pricing.Engine, opts ...ServiceOption) *Service {
	s := &Service{
		registry: registry,
		engine:   engine,
		currency: "IDR",
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.Named("quote")
	}
	return s
}

// Formulas lists the registered definitions
func (s *Service) Formulas() []*Definition {
	return s.registry.List()
}

// Quote prices a request. Formula problems never surface as errors: they
// degrade to the fallback prices and are listed in Quote.Failures.
func (s *Service) Quote(ctx context.Context, req Request) (*Quote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	def, ok := s.registry.Get(req.FormulaID)
	if !ok {
		return nil, errors.NotFound("formula", req.FormulaID)
	}

	key := s.cacheKey(def, req)
	if cached := s.lookup(ctx, key); cached != nil {
		return cached, nil
	}

	distance := ApplyMinimumDistance(req.Distance, def.MinimumDistance)
	result := s.engine.ComputeTierPrices(def.Tokens, def.Tiers, distance, req.Tonnage)

	currency := def.Currency
	if currency == "" {
		currency = s.currency
	}

	q := &Quote{
		Request:   req,
		Distance:  distance,
		Prices:    result,
		Formatted: FormatPrices(result, currency),
		Currency:  currency,
		Formula:   formula.Display(def.Tokens, def.VariableNames()),
		Variables: DisplayVariables(def, s.engine.Resolver(), distance, req.Tonnage),
		Failures:  convertFailures(result.Failures),
	}

	s.logger.Info("quote computed",
		zap.String("formula", def.ID),
		zap.String("route", req.Route),
		zap.Float64("distance", distance),
		zap.Float64("tonnage", req.Tonnage),
		zap.Bool("fallback", result.Fallback),
		zap.Int("failures", len(q.Failures)),
	)

	s.store(ctx, key, q)
	return q, nil
}

func (s *Service) cacheKey(def *Definition, req Request) string {
	return string(cacheKeys.Generate(
		string(def.Fingerprint()),
		req.FormulaID,
		req.Route,
		req.TruckType,
		req.CarrierType,
		formula.FormatValue(req.Distance),
		formula.FormatValue(req.Tonnage),
	))
}

var cacheKeys = determinism.NewIDGenerator("quote")

// lookup returns a cached quote; cache failures count as misses
func (s *Service) lookup(ctx context.Context, key string) *Quote {
	if s.cache == nil {
		return nil
	}
	raw, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn("quote cache read failed", zap.String("key", key), zap.Error(err))
		return nil
	}
	if !ok {
		return nil
	}

	var q Quote
	if err := json.Unmarshal([]byte(raw), &q); err != nil {
		s.logger.Warn("discarding undecodable cached quote", zap.String("key", key), zap.Error(err))
		return nil
	}
	q.Cached = true
	return &q
}

func (s *Service) store(ctx context.Context, key string, q *Quote) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(q)
	if err != nil {
		s.logger.Warn("failed to encode quote for cache", zap.Error(err))
		return
	}
	if err := s.cache.Set(ctx, key, string(data), s.ttl); err != nil {
		s.logger.Warn("quote cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// ApplyMinimumDistance floors distance at the route's minimum
func ApplyMinimumDistance(distance, minimum float64) float64 {
	if distance < minimum {
		return minimum
	}
	return distance
}

// DisplayVariables returns name -> value as used for the first tier. Shipper
// inputs show the priced distance and tonnage; unresolvable variables are
// left out.
func DisplayVariables(def *Definition, resolver *pricing.Resolver, distance, tonnage float64) map[string]float64 {
	out := make(map[string]float64)
	if len(def.Tiers) == 0 {
		return out
	}
	for name, v := range def.Tiers[0].Variables {
		if v.IsExternallySupplied {
			switch resolver.Denotes(name) {
			case "distance":
				out[name] = distance
			case "tonnage":
				out[name] = tonnage
			}
			continue
		}
		if v.Value != nil {
			out[name] = *v.Value
		}
	}
	return out
}

// FormatPrices renders every bucket in the currency's display format
func FormatPrices(result pricing.EvaluationResult, currency string) map[string]string {
	out := make(map[string]string)
	for bucket, amount := range result.Tiers() {
		out[bucket] = determinism.NewMoney(amount, currency).Format()
	}
	return out
}

func convertFailures(failures []pricing.TierFailure) []Failure {
	if len(failures) == 0 {
		return nil
	}
	out := make([]Failure, len(failures))
	for i, f := range failures {
		out[i] = Failure{
			TierID:   f.TierID,
			TierName: f.TierName,
			Kind:     string(formula.KindOf(f.Err)),
			Message:  f.Err.Error(),
		}
	}
	return out
}
