package pricing

import (
	"strings"

	"freight-pricing/core/determinism"
	"freight-pricing/core/formula"
)

// ExternalAliases lists the variable names that denote the two shipper inputs
type ExternalAliases struct {
	Distance []string
	Tonnage  []string
}

// DefaultExternalAliases covers the names the formula builder emits
func DefaultExternalAliases() ExternalAliases {
	return ExternalAliases{
		Distance: []string{"jarak", "distance"},
		Tonnage:  []string{"tonase", "tonnage"},
	}
}

// Resolver binds a tier's variables to numbers
type Resolver struct {
	distance map[string]bool
	tonnage  map[string]bool
}

// NewResolver builds a resolver; alias matching is case-insensitive
func NewResolver(aliases ExternalAliases) *Resolver {
	r := &Resolver{
		distance: make(map[string]bool),
		tonnage:  make(map[string]bool),
	}
	for _, a := range aliases.Distance {
		r.distance[strings.ToLower(strings.TrimSpace(a))] = true
	}
	for _, a := range aliases.Tonnage {
		r.tonnage[strings.ToLower(strings.TrimSpace(a))] = true
	}
	return r
}

// Denotes returns "distance", "tonnage" or "" for a variable name
func (r *Resolver) Denotes(name string) string {
	key := strings.ToLower(strings.TrimSpace(name))
	switch {
	case r.distance[key]:
		return "distance"
	case r.tonnage[key]:
		return "tonnage"
	}
	return ""
}

// Resolve returns identifier -> value for one tier. Variables are visited in
// name order so the reported error is stable. A stored variable without a
// value stays unbound; Bind reports it only if the formula references it.
func (r *Resolver) Resolve(variables map[string]Variable, distance, tonnage float64) (map[string]float64, error) {
	bindings := make(map[string]float64, len(variables))

	for _, name := range determinism.SortedKeys(variables) {
		v := variables[name]
		if v.IsExternallySupplied {
			switch r.Denotes(name) {
			case "distance":
				bindings[v.ID] = distance
			case "tonnage":
				bindings[v.ID] = tonnage
			default:
				return nil, &formula.AmbiguousExternalVariableError{Name: name, Identifier: v.ID}
			}
			continue
		}

		if v.Value != nil {
			bindings[v.ID] = *v.Value
		}
	}

	return bindings, nil
}

var defaultResolver = NewResolver(DefaultExternalAliases())

// ResolveBindings resolves with the default aliases
func ResolveBindings(variables map[string]Variable, distance, tonnage float64) (map[string]float64, error) {
	return defaultResolver.Resolve(variables, distance, tonnage)
}
