// Package app assembles the quote service from configuration.
package app

import (
	"context"
	"io"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"freight-pricing/adapters/cache"
	"freight-pricing/adapters/hcl"
	"freight-pricing/core/pricing"
	"freight-pricing/core/quote"
	"freight-pricing/internal/config"
	"freight-pricing/internal/errors"
)

// memoryCacheEntries bounds the in-process quote cache
const memoryCacheEntries = 10000

// App holds the wired services
type App struct {
	Config   *config.Config
	Registry *quote.Registry
	Engine   *pricing.Engine
	Service  *quote.Service
	Logger   *zap.Logger

	memory  *cache.Memory
	closers []io.Closer
}

// New loads definitions and builds the quote service
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	registry := quote.NewRegistry()
	loader := hcl.NewLoader(logger.Named("hcl"))
	if err := loader.LoadInto(registry, cfg.Pricing.DefinitionsDir); err != nil {
		return nil, err
	}

	return NewWithRegistry(cfg, registry, logger)
}

// NewWithRegistry builds the service around an already populated registry
func NewWithRegistry(cfg *config.Config, registry *quote.Registry, logger *zap.Logger) (*App, error) {
	a := &App{
		Config:   cfg,
		Registry: registry,
		Engine:   NewEngine(cfg.Pricing, logger.Named("engine")),
		Logger:   logger,
	}

	opts := []quote.ServiceOption{
		quote.WithServiceLogger(logger.Named("quote")),
		quote.WithDefaultCurrency(cfg.Pricing.Currency),
	}

	c, closer, err := NewCache(cfg.Cache)
	if err != nil {
		return nil, err
	}
	if m, ok := c.(*cache.Memory); ok {
		a.memory = m
	}
	if c != nil {
		opts = append(opts, quote.WithCache(c, time.Duration(cfg.Cache.TTLSeconds)*time.Second))
	}
	if closer != nil {
		a.closers = append(a.closers, closer)
	}

	a.Service = quote.NewService(registry, a.Engine, opts...)

	logger.Info("quote service ready",
		zap.Int("formulas", registry.Len()),
		zap.String("cache", cfg.Cache.Backend),
		zap.String("currency", cfg.Pricing.Currency),
	)
	return a, nil
}

// NewEngine builds a pricing engine from the pricing settings
func NewEngine(cfg config.PricingConfig, logger *zap.Logger) *pricing.Engine {
	fb := cfg.Fallback
	return pricing.NewEngine(
		pricing.WithLogger(logger),
		pricing.WithAliases(pricing.ExternalAliases{
			Distance: cfg.DistanceAliases,
			Tonnage:  cfg.TonnageAliases,
		}),
		pricing.WithLowSpecialRate(decimal.NewFromFloat(cfg.LowSpecialRate)),
		pricing.WithFallbackPolicy(pricing.FallbackPolicyFromFloats(
			fb.BasePrice, fb.PerKilometer, fb.PerTon, fb.HighMultiplier, cfg.LowSpecialRate,
		)),
	)
}

// NewCache returns the configured backend, or nil for "none". The closer is
// non-nil when the backend holds connections.
func NewCache(cfg config.CacheConfig) (quote.Cache, io.Closer, error) {
	switch cfg.Backend {
	case "none":
		return nil, nil, nil
	case "memory":
		return cache.NewMemory(memoryCacheEntries), nil, nil
	case "redis":
		r := cache.NewRedis(cfg.RedisAddr, "freight-pricing:")
		return r, r, nil
	}
	return nil, nil, errors.Newf(errors.TypeConfig, "unknown cache backend %q", cfg.Backend)
}

// SweepCache drops expired in-memory quotes every interval until ctx is done.
// Redis expires keys itself, so other backends return immediately.
func (a *App) SweepCache(ctx context.Context, interval time.Duration) {
	if a.memory == nil || interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.sweep()
		}
	}
}

func (a *App) sweep() int {
	removed := a.memory.InvalidateExpired()
	stats := a.memory.Stats()
	a.Logger.Debug("swept quote cache",
		zap.Int("removed", removed),
		zap.Int("entries", stats.TotalEntries),
	)
	return removed
}

// Close releases backend connections
func (a *App) Close() error {
	var first error
	for _, c := range a.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
