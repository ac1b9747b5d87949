// Package quote prices shipper requests against registered formula
// definitions.
package quote

import (
	"encoding/json"
	"sync"

	"freight-pricing/core/determinism"
	"freight-pricing/core/formula"
	"freight-pricing/core/pricing"
	"freight-pricing/internal/errors"
)

// Definition is a formula together with the per-tier variable table it is
// evaluated against.
type Definition struct {
	// ID is the formula identifier requests refer to
	ID string `json:"id"`

	// Name is a human label
	Name string `json:"name,omitempty"`

	// Tokens is the formula as authored in the formula builder
	Tokens []formula.Token `json:"tokens"`

	// MinimumDistance floors the shipper's distance
	MinimumDistance float64 `json:"minimum_distance"`

	// Currency labels the resulting prices
	Currency string `json:"currency,omitempty"`

	// Tiers in backend order; order decides which duplicate bucket wins
	Tiers []pricing.PricingTier `json:"tiers"`

	// Source is the file the definition was loaded from
	Source string `json:"source,omitempty"`

	fingerprint determinism.StableID
}

// Fingerprint identifies the definition's content
func (d *Definition) Fingerprint() determinism.StableID {
	return d.fingerprint
}

// VariableNames maps variable identifiers to names across all tiers
func (d *Definition) VariableNames() map[string]string {
	names := make(map[string]string)
	for _, tier := range d.Tiers {
		for name, v := range tier.Variables {
			names[v.ID] = name
		}
	}
	return names
}

var fingerprints = determinism.NewIDGenerator("formula")

// Registry holds formula definitions by ID
type Registry struct {
	mu   sync.RWMutex
	defs map[string]*Definition
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]*Definition)}
}

// Register adds a definition; IDs must be unique
func (r *Registry) Register(def *Definition) error {
	if def == nil || def.ID == "" {
		return errors.Input("formula definition requires an id")
	}

	data, err := json.Marshal(def)
	if err != nil {
		return errors.Internal("failed to fingerprint formula", err)
	}
	def.fingerprint = fingerprints.Generate(string(data))

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.defs[def.ID]; ok {
		return errors.Newf(errors.TypeConfig, "formula %q defined twice (%s, %s)", def.ID, existing.Source, def.Source)
	}
	r.defs[def.ID] = def
	return nil
}

// Get returns the definition for id
func (r *Registry) Get(id string) (*Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[id]
	return def, ok
}

// List returns all definitions ordered by ID
func (r *Registry) List() []*Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Definition, 0, len(r.defs))
	for _, id := range determinism.SortedKeys(r.defs) {
		out = append(out, r.defs[id])
	}
	return out
}

// Len returns the number of definitions
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.defs)
}
