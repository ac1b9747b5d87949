package quote

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"freight-pricing/core/formula"
	"freight-pricing/core/pricing"
	"freight-pricing/internal/errors"
)

func standardDefinition() *Definition {
	return &Definition{
		ID:              "4pl-standard",
		Name:            "4PL standard",
		Tokens:          formula.Tokens("var-enam", "+", "var-jarak", "×", "var-pl", "+", "var-tonase"),
		MinimumDistance: 100,
		Currency:        "IDR",
		Tiers: []pricing.PricingTier{
			{ID: "t1", Name: "Medium", Variables: map[string]pricing.Variable{
				"enam": pricing.Constant("var-enam", 1000), "PL": pricing.Constant("var-pl", 5200),
				"jarak": pricing.External("var-jarak"), "tonase": pricing.External("var-tonase"),
			}},
			{ID: "t2", Name: "High", Variables: map[string]pricing.Variable{
				"enam": pricing.Constant("var-enam", 6000), "PL": pricing.Constant("var-pl", 1500),
				"jarak": pricing.External("var-jarak"), "tonase": pricing.External("var-tonase"),
			}},
			{ID: "t3", Name: "Low edit", Variables: map[string]pricing.Variable{
				"enam": pricing.Constant("var-enam", 4000), "PL": pricing.Constant("var-pl", 800),
				"jarak": pricing.External("var-jarak"), "tonase": pricing.External("var-tonase"),
			}},
		},
	}
}

func newTestService(t *testing.T, opts ...ServiceOption) *Service {
	t.Helper()
	reg := NewRegistry()
	if err := reg.Register(standardDefinition()); err != nil {
		t.Fatalf("register: %v", err)
	}
	engine := pricing.NewEngine(pricing.WithLogger(zap.NewNop()))
	opts = append([]ServiceOption{WithServiceLogger(zap.NewNop())}, opts...)
	return NewService(reg, engine, opts...)
}

func validRequest() Request {
	return Request{
		FormulaID:   "4pl-standard",
		Route:       "JKT-SBY",
		TruckType:   "CDD",
		CarrierType: "4PL",
		Distance:    150,
		Tonnage:     2.5,
	}
}

type memCache struct {
	mu      sync.Mutex
	data    map[string]string
	sets    int
	failGet bool
}

func (c *memCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failGet {
		return "", false, stderrors.New("connection refused")
	}
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *memCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.data == nil {
		c.data = make(map[string]string)
	}
	c.data[key] = value
	c.sets++
	return nil
}

func TestQuote(t *testing.T) {
	svc := newTestService(t)

	q, err := svc.Quote(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// enam + jarak × PL + tonase with jarak=150, tonase=2.5
	if q.Prices.Medium != 781003 || q.Prices.High != 231003 || q.Prices.Low != 124003 {
		t.Errorf("unexpected prices %+v", q.Prices)
	}
	if q.Prices.LowSpecial != 99202 {
		t.Errorf("expected lowSpecial 99202, got %d", q.Prices.LowSpecial)
	}
	if q.Prices.Fallback {
		t.Error("did not expect fallback")
	}
	if q.Formula != "enam + jarak × PL + tonase" {
		t.Errorf("unexpected display formula %q", q.Formula)
	}
	if q.Variables["jarak"] != 150 || q.Variables["PL"] != 5200 {
		t.Errorf("unexpected variables %v", q.Variables)
	}
	if q.Formatted["medium"] != "Rp 781.003" {
		t.Errorf("unexpected formatted medium %q", q.Formatted["medium"])
	}
	if q.Cached {
		t.Error("first quote must not be cached")
	}
}

func TestQuoteAppliesMinimumDistance(t *testing.T) {
	svc := newTestService(t)

	req := validRequest()
	req.Distance = 40
	q, err := svc.Quote(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Distance != 100 {
		t.Errorf("expected distance floored to 100, got %v", q.Distance)
	}
	// 1000 + 100*5200 + 2.5
	if q.Prices.Medium != 521003 {
		t.Errorf("expected medium 521003, got %d", q.Prices.Medium)
	}
}

func TestQuoteValidation(t *testing.T) {
	svc := newTestService(t)

	tests := []struct {
		name   string
		mutate func(*Request)
		typ    errors.Type
	}{
		{"missing route", func(r *Request) { r.Route = " " }, errors.TypeInput},
		{"missing truck", func(r *Request) { r.TruckType = "" }, errors.TypeInput},
		{"zero distance", func(r *Request) { r.Distance = 0 }, errors.TypeInput},
		{"negative tonnage", func(r *Request) { r.Tonnage = -1 }, errors.TypeInput},
		{"unknown formula", func(r *Request) { r.FormulaID = "nope" }, errors.TypeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)
			_, err := svc.Quote(context.Background(), req)
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.IsType(err, tt.typ) {
				t.Errorf("expected %s error, got %v", tt.typ, err)
			}
		})
	}
}

func TestQuoteCanceledContext(t *testing.T) {
	svc := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := svc.Quote(ctx, validRequest()); !stderrors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestQuoteCache(t *testing.T) {
	cache := &memCache{}
	svc := newTestService(t, WithCache(cache, time.Minute))

	first, err := svc.Quote(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := svc.Quote(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cache.sets != 1 {
		t.Errorf("expected one cache write, got %d", cache.sets)
	}
	if !second.Cached {
		t.Error("expected second quote from cache")
	}
	if first.Prices.Medium != second.Prices.Medium || first.Formula != second.Formula {
		t.Errorf("cached quote differs: %+v vs %+v", first, second)
	}

	other := validRequest()
	other.Tonnage = 3
	if q, _ := svc.Quote(context.Background(), other); q.Cached {
		t.Error("different tonnage must miss the cache")
	}
}

func TestQuoteCacheFailureIsNotFatal(t *testing.T) {
	svc := newTestService(t, WithCache(&memCache{failGet: true}, time.Minute))

	q, err := svc.Quote(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("cache failure must not fail the quote: %v", err)
	}
	if q.Cached || q.Prices.Medium == 0 {
		t.Errorf("expected a fresh quote, got %+v", q)
	}
}

func TestQuoteFallbackReportsFailures(t *testing.T) {
	def := standardDefinition()
	def.ID = "broken"
	def.Tokens = formula.Tokens("var-enam", "+", "var-missing")

	reg := NewRegistry()
	if err := reg.Register(def); err != nil {
		t.Fatal(err)
	}
	svc := NewService(reg, pricing.NewEngine(pricing.WithLogger(zap.NewNop())), WithServiceLogger(zap.NewNop()))

	req := validRequest()
	req.FormulaID = "broken"
	q, err := svc.Quote(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !q.Prices.Fallback {
		t.Error("expected fallback prices")
	}
	if len(q.Failures) != 3 {
		t.Fatalf("expected 3 failures, got %d", len(q.Failures))
	}
	if q.Failures[0].Kind != string(formula.KindUnresolvedVariable) {
		t.Errorf("unexpected failure kind %q", q.Failures[0].Kind)
	}
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()

	b := standardDefinition()
	b.ID = "b"
	a := standardDefinition()
	a.ID = "a"
	for _, d := range []*Definition{b, a} {
		if err := reg.Register(d); err != nil {
			t.Fatalf("register %s: %v", d.ID, err)
		}
	}

	if err := reg.Register(&Definition{ID: "a"}); !errors.IsType(err, errors.TypeConfig) {
		t.Errorf("expected duplicate to be a config error, got %v", err)
	}
	if err := reg.Register(&Definition{}); !errors.IsType(err, errors.TypeInput) {
		t.Errorf("expected missing id to be an input error, got %v", err)
	}

	list := reg.List()
	if len(list) != 2 || list[0].ID != "a" || list[1].ID != "b" {
		t.Errorf("expected sorted list, got %v", list)
	}
	if a.Fingerprint() == "" || a.Fingerprint() == b.Fingerprint() {
		t.Errorf("expected distinct fingerprints, got %s and %s", a.Fingerprint(), b.Fingerprint())
	}
}

func TestApplyMinimumDistance(t *testing.T) {
	tests := []struct {
		distance, minimum, want float64
	}{
		{150, 100, 150},
		{40, 100, 100},
		{100, 100, 100},
		{10, 0, 10},
	}
	for _, tt := range tests {
		if got := ApplyMinimumDistance(tt.distance, tt.minimum); got != tt.want {
			t.Errorf("ApplyMinimumDistance(%v, %v) = %v, want %v", tt.distance, tt.minimum, got, tt.want)
		}
	}
}
