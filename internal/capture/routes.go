package capture

import "sync"

// RouteNames maps gin route patterns to stable route names. Exclusion lists
// match against these names.
type RouteNames struct {
	mu    sync.RWMutex
	names map[string]string
}

// NewRouteNames returns an empty registry.
func NewRouteNames() *RouteNames {
	return &RouteNames{names: make(map[string]string)}
}

// Name registers name for method and the gin pattern path (for example
// "/users/:id").
func (r *RouteNames) Name(method, path, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.names[method+" "+path] = name
}

// Lookup returns the name for method and pattern, or nil if the route is
// unmatched or unnamed.
func (r *RouteNames) Lookup(method, path string) *string {
	if r == nil || path == "" {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	name, ok := r.names[method+" "+path]
	if !ok {
		return nil
	}

	return &name
}
