// Package provider defines the interface and adapters for external vehicle data providers.
package provider

import (
	"context"
	"slices"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/vehicle-data/internal/model"
)

// ErrNoData is returned when a provider answers but has nothing for the
// requested category.
var ErrNoData = eris.New("provider: no data returned")

// Result is a provider's answer for one category. Only the section matching
// DataType is populated.
type Result struct {
	Provider  string               `json:"provider"`
	DataType  model.DataType       `json:"data_type"`
	Basic     *model.BasicData     `json:"basic,omitempty"`
	Technical *model.TechnicalData `json:"technical,omitempty"`
	Image     *model.ImageRef      `json:"image,omitempty"`
	Service   map[string]any       `json:"service,omitempty"`
	MOT       []model.MOTTest      `json:"mot,omitempty"`
	CostGBP   float64              `json:"cost_gbp"`
}

// Provider is an external source of vehicle data.
type Provider interface {
	// Name returns the provider identifier (matches the routing config and ledger).
	Name() string
	// Categories returns the data types this provider can supply.
	Categories() []model.DataType
	// EstimateCost returns the charge for one successful lookup of dataType.
	EstimateCost(dataType model.DataType) float64
	// Lookup fetches one category for a normalized registration.
	Lookup(ctx context.Context, registration string, dataType model.DataType) (*Result, error)
}

// Supports reports whether p lists dataType among its categories.
func Supports(p Provider, dataType model.DataType) bool {
	return slices.Contains(p.Categories(), dataType)
}

// Registry manages available providers.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
	}
}

// Register adds a provider to the registry, replacing any with the same name.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// Get returns a provider by name, or nil if not found.
func (r *Registry) Get(name string) Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.providers[name]
}

// List returns all registered provider names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
