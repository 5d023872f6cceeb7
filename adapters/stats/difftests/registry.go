package difftests

import (
	"fmt"

	"compbench/domain/core"
	"compbench/ports"
)

// Registry holds named test adapters in registration order. Register everything
// before a run starts; the runner only reads from it.
type Registry struct {
	adapters []ports.TestAdapter
	index    map[string]int
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{index: make(map[string]int)}
}

// NewDefaultRegistry registers every built-in differential test
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.MustRegister(NewChiSquareProportionTest())
	r.MustRegister(NewProportionTTest())
	r.MustRegister(NewLogRatioTTest())
	r.MustRegister(NewArcsineANOVA())
	r.MustRegister(NewPoissonLRT())
	r.MustRegister(NewQuasiPoissonFTest())
	r.MustRegister(NewNegBinLRT())
	r.MustRegister(NewBetaBinomialLRT())
	return r
}

// Register appends an adapter; names must be non-empty and unique
func (r *Registry) Register(adapter ports.TestAdapter) error {
	if adapter == nil {
		return core.NewConfigurationError("adapter", "nil adapter")
	}
	name := adapter.Name()
	if name == "" {
		return core.NewConfigurationError("adapter", "empty name")
	}
	if _, exists := r.index[name]; exists {
		return fmt.Errorf("%w: %s", core.ErrDuplicateAdapter, name)
	}
	r.index[name] = len(r.adapters)
	r.adapters = append(r.adapters, adapter)
	return nil
}

// MustRegister is Register for static wiring; it panics on error
func (r *Registry) MustRegister(adapter ports.TestAdapter) {
	if err := r.Register(adapter); err != nil {
		panic(err)
	}
}

// Get looks an adapter up by name
func (r *Registry) Get(name string) (ports.TestAdapter, bool) {
	i, ok := r.index[name]
	if !ok {
		return nil, false
	}
	return r.adapters[i], true
}

// Names returns adapter names in registration order
func (r *Registry) Names() []string {
	names := make([]string, len(r.adapters))
	for i, a := range r.adapters {
		names[i] = a.Name()
	}
	return names
}

// Adapters returns a copy of the adapter list in registration order
func (r *Registry) Adapters() []ports.TestAdapter {
	out := make([]ports.TestAdapter, len(r.adapters))
	copy(out, r.adapters)
	return out
}

// Len returns the number of registered adapters
func (r *Registry) Len() int {
	return len(r.adapters)
}

// Subset returns a new registry holding only the named adapters, in the order given
func (r *Registry) Subset(names ...string) (*Registry, error) {
	sub := NewRegistry()
	for _, name := range names {
		a, ok := r.Get(name)
		if !ok {
			return nil, core.NewNotFoundError("adapter", name)
		}
		if err := sub.Register(a); err != nil {
			return nil, err
		}
	}
	return sub, nil
}

var _ ports.AdapterRegistry = (*Registry)(nil)
