// Copyright 2025 The Rivaas Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package router

import (
	"fmt"
	"maps"
	"net/http"
	"sync"
	"sync/atomic"
)

// Handler converts a request into a response or fails.
//
// Handlers run on the connection goroutine. An error or a panic is reported
// to the client as 500 Internal Server Error and never terminates the
// server.
type Handler interface {
	Handle(req *Request) (*Response, error)
}

// HandlerFunc adapts an ordinary function to the [Handler] interface.
type HandlerFunc func(req *Request) (*Response, error)

// Handle calls f(req).
func (f HandlerFunc) Handle(req *Request) (*Response, error) {
	return f(req)
}

// Namer is implemented by handlers that report their own name in
// [Router.Routes].
type Namer interface {
	Name() string
}

// Named attaches a stable introspection name to h. Function names derived
// at runtime change with inlining, so handlers listed by tooling should be
// named explicitly. Named returns nil for a nil h.
func Named(name string, h Handler) Handler {
	if h == nil {
		return nil
	}
	return &namedHandler{Handler: h, name: name}
}

type namedHandler struct {
	Handler
	name string
}

func (h *namedHandler) Name() string { return h.name }

// Option defines functional options for router configuration.
type Option func(*Router)

// WithDiagnostics sets a handler that receives diagnostic events such as
// route registration.
func WithDiagnostics(handler DiagnosticHandler) Option {
	return func(r *Router) {
		r.diagnostics = handler
	}
}

// routeTable maps method -> path -> route. A published table is never
// mutated; writers copy it.
type routeTable map[string]map[string]*Route

// Router holds the route table and resolves requests against it.
//
// Registration is serialized by a mutex and publishes a new table with an
// atomic store, so Resolve never takes a lock. After Freeze the table is
// immutable.
//
// Example:
//
//	r := router.New()
//	r.GET("/hello", hello.Handler())
//	r.Freeze()
//	h, err := r.Resolve(http.MethodGet, "/hello")
type Router struct {
	table       atomic.Pointer[routeTable]
	mu          sync.Mutex // serializes writers
	frozen      atomic.Bool
	diagnostics DiagnosticHandler
}

// New creates an empty router.
func New(opts ...Option) *Router {
	r := &Router{}
	empty := make(routeTable)
	r.table.Store(&empty)

	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register binds handler to the exact (method, path) pair.
//
// Errors:
//   - [ErrInvalidMethod] if method is not an HTTP token
//   - [ErrInvalidPath] if path does not start with '/'
//   - [ErrNilHandler] if handler is nil
//   - [ErrRoutesFrozen] after [Router.Freeze]
//   - [*DuplicateRouteError] if the pair is already registered
func (r *Router) Register(method, path string, handler Handler) error {
	if !validMethod(method) {
		return fmt.Errorf("%w: %q", ErrInvalidMethod, method)
	}
	if path == "" || path[0] != '/' {
		return fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	if handler == nil {
		return fmt.Errorf("%w: %s %s", ErrNilHandler, method, path)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen.Load() {
		return fmt.Errorf("%w: cannot register %s %s", ErrRoutesFrozen, method, path)
	}

	current := *r.table.Load()
	if _, exists := current[method][path]; exists {
		return &DuplicateRouteError{Method: method, Path: path}
	}

	next := make(routeTable, len(current)+1)
	for m, paths := range current {
		next[m] = paths
	}
	paths := make(map[string]*Route, len(current[method])+1)
	maps.Copy(paths, current[method])
	paths[path] = &Route{
		Method:      method,
		Path:        path,
		Handler:     handler,
		HandlerName: handlerName(handler),
	}
	next[method] = paths
	r.table.Store(&next)

	r.emit(DiagRouteRegistered, "route registered", map[string]any{
		"method":  method,
		"path":    path,
		"handler": paths[path].HandlerName,
	})
	return nil
}

// Handle registers handler for method and path and panics on error.
// Use it during startup where a bad route is a programming error.
func (r *Router) Handle(method, path string, handler Handler) {
	if err := r.Register(method, path, handler); err != nil {
		panic(fmt.Sprintf("router: %v", err))
	}
}

// GET registers handler for GET requests to path and panics on error.
func (r *Router) GET(path string, handler Handler) {
	r.Handle(http.MethodGet, path, handler)
}

// POST registers handler for POST requests to path and panics on error.
func (r *Router) POST(path string, handler Handler) {
	r.Handle(http.MethodPost, path, handler)
}

// Match returns the route registered for the exact (method, path) pair.
// The returned error is a [*NotFoundError] when nothing matches.
func (r *Router) Match(method, path string) (*Route, error) {
	table := *r.table.Load()
	if route, ok := table[method][path]; ok {
		return route, nil
	}
	return nil, &NotFoundError{Method: method, Path: path}
}

// Resolve returns the handler registered for the exact (method, path) pair.
// No pattern matching is performed: "/hello" does not match "/hello/".
// The returned error is a [*NotFoundError] when nothing matches.
func (r *Router) Resolve(method, path string) (Handler, error) {
	route, err := r.Match(method, path)
	if err != nil {
		return nil, err
	}
	return route.Handler, nil
}

// RouteExists reports whether a route is registered for method and path.
func (r *Router) RouteExists(method, path string) bool {
	_, err := r.Match(method, path)
	return err == nil
}

// Freeze makes the route table immutable. It is safe to call more than once.
func (r *Router) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen.Swap(true) {
		return
	}
	r.emit(DiagRoutesFrozen, "routes frozen", map[string]any{"count": r.count()})
}

// Frozen reports whether [Router.Freeze] has been called.
func (r *Router) Frozen() bool {
	return r.frozen.Load()
}

// Len returns the number of registered routes.
func (r *Router) Len() int {
	return r.count()
}

func (r *Router) count() int {
	n := 0
	for _, paths := range *r.table.Load() {
		n += len(paths)
	}
	return n
}

// emit sends a diagnostic event if a handler is configured.
func (r *Router) emit(kind DiagnosticKind, message string, fields map[string]any) {
	if r.diagnostics != nil {
		r.diagnostics.OnDiagnostic(DiagnosticEvent{
			Kind:    kind,
			Message: message,
			Fields:  fields,
		})
	}
}

// validMethod reports whether m is a non-empty RFC 9110 token.
func validMethod(m string) bool {
	if m == "" {
		return false
	}
	for i := 0; i < len(m); i++ {
		if !isTokenChar(m[i]) {
			return false
		}
	}
	return true
}

func isTokenChar(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	switch c {
	case '!', '#', '$', '%', '&', '\'', '*', '+', '-', '.', '^', '_', '`', '|', '~':
		return true
	}
	return false
}
