package server

import (
	"net/http"
	"slices"
	"sync"
)

// BasicRouter serves method-qualified [http.ServeMux] patterns behind a middleware stack.
//
// Middleware wraps the whole mux, so it also observes the mux's own 404 and 405 responses.
type BasicRouter struct {
	mux   *http.ServeMux
	chain []Middleware

	mu       sync.Mutex
	patterns []string
	built    http.Handler
}

// NewBasicRouter creates a new [BasicRouter] instance.
func NewBasicRouter() *BasicRouter {
	return &BasicRouter{mux: http.NewServeMux()}
}

// Use adds [Middleware] to the stack; the first added is the outermost.
func (r *BasicRouter) Use(middleware ...Middleware) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chain = append(r.chain, middleware...)
	r.built = nil
}

// Handle registers a handler for method and path.
func (r *BasicRouter) Handle(method, path string, handler http.Handler) {
	r.register(method+" "+path, handler)
}

// Handler registers every route a [Handler] declares.
func (r *BasicRouter) Handler(handler Handler) {
	for _, route := range handler.Routes() {
		r.register(route, handler)
	}
}

// Patterns returns the registered patterns, sorted.
func (r *BasicRouter) Patterns() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := slices.Clone(r.patterns)
	slices.Sort(out)
	return out
}

func (r *BasicRouter) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mu.Lock()
	if r.built == nil {
		var h http.Handler = r.mux
		for _, mw := range slices.Backward(r.chain) {
			h = mw(h)
		}
		r.built = h
	}
	h := r.built
	r.mu.Unlock()

	h.ServeHTTP(w, req)
}

func (r *BasicRouter) register(pattern string, handler http.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mux.Handle(pattern, handler)
	r.patterns = append(r.patterns, pattern)
}
