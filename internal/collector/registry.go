package collector

import (
	"fmt"
	"sort"
	"sync"

	"github.com/newthinker/marketbias/internal/core"
)

// Registry manages named data sources
type Registry struct {
	mu      sync.RWMutex
	sources map[string]DataSource
}

// NewRegistry creates a new source registry
func NewRegistry() *Registry {
	return &Registry{
		sources: make(map[string]DataSource),
	}
}

// Register adds a source to the registry
func (r *Registry) Register(s DataSource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[s.Name()] = s
}

// Get retrieves a source by name
func (r *Registry) Get(name string) (DataSource, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sources[name]
	return s, ok
}

// MustGet retrieves a source by name or returns a config error
func (r *Registry) MustGet(name string) (DataSource, error) {
	s, ok := r.Get(name)
	if !ok {
		return nil, core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown data source %q (have %v)", name, r.Names()))
	}
	return s, nil
}

// Names returns registered source names in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.sources))
	for name := range r.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
