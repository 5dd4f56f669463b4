package adapter

import (
	"go.uber.org/zap"

	"github.com/caretrack/directory-cli/internal/model"
)

// Registry maps adapter keys to their implementations.
type Registry struct {
	adapters map[string]Adapter
	order    []string // insertion order for deterministic iteration
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[string]Adapter),
	}
}

// DefaultRegistry returns a registry populated with the bespoke adapters.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewPsychologyToday())
	r.Register(NewZencare())
	r.Register(NewTherapyDen())
	return r
}

// Register adds an adapter. A duplicate key replaces the earlier entry.
func (r *Registry) Register(a Adapter) {
	key := a.Key()
	if _, exists := r.adapters[key]; !exists {
		r.order = append(r.order, key)
	}
	r.adapters[key] = a
}

// Get returns an adapter by key.
func (r *Registry) Get(key string) (Adapter, bool) {
	a, ok := r.adapters[key]
	return a, ok
}

// ForDirectory resolves the adapter serving a directory. Unknown adapter
// keys fall back to the generic adapter scoped to the directory's base URL;
// adding a site to the database never requires touching a dispatcher.
func (r *Registry) ForDirectory(dir model.Directory) Adapter {
	if a, ok := r.adapters[dir.AdapterKey]; ok {
		return a
	}
	zap.L().Debug("adapter: no bespoke adapter, using generic",
		zap.String("directory", dir.Name),
		zap.String("adapter_key", dir.AdapterKey),
	)
	return NewGeneric(dir)
}

// AllKeys returns the registered adapter keys in registration order.
func (r *Registry) AllKeys() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
