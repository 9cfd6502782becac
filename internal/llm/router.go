package llm

import (
	"context"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
)

// Router dispatches requests to a backend chosen by model-name prefix.
// The longest matching prefix wins; unmatched models use the default.
type Router struct {
	routes   map[string]Backend
	fallback Backend
}

// NewRouter creates a Router whose unmatched models go to def (may be nil).
func NewRouter(def Backend) *Router {
	return &Router{routes: make(map[string]Backend), fallback: def}
}

// Route registers backend for every model starting with prefix.
func (r *Router) Route(prefix string, backend Backend) *Router {
	r.routes[prefix] = backend
	return r
}

// Complete implements Backend.
func (r *Router) Complete(ctx context.Context, req Request) (string, error) {
	b := r.backendFor(req.Model)
	if b == nil {
		return "", eris.Errorf("llm: no backend configured for model %q", req.Model)
	}
	return b.Complete(ctx, req)
}

func (r *Router) backendFor(model string) Backend {
	prefixes := make([]string, 0, len(r.routes))
	for p := range r.routes {
		prefixes = append(prefixes, p)
	}
	sort.Slice(prefixes, func(i, j int) bool { return len(prefixes[i]) > len(prefixes[j]) })

	for _, p := range prefixes {
		if strings.HasPrefix(model, p) {
			return r.routes[p]
		}
	}
	return r.fallback
}
