// Package router resolves request paths to handlers through a fixed,
// ordered route table.
package router

import (
	"fmt"

	"github.com/nczempin/minhttpd/errors"
	"github.com/nczempin/minhttpd/protocol"
)

// Handler produces an HTML body for a matched route. The returned string is
// owned by the caller.
type Handler func(params protocol.Params) (string, error)

// Route maps an exact request path to a handler
type Route struct {
	Path    string
	Handler Handler
}

// Router holds a read-only route table. It is safe for concurrent use.
type Router struct {
	routes []Route
}

// New builds a router from routes in declaration order. The table is copied,
// so later changes to the caller's slice have no effect.
func New(routes ...Route) (*Router, error) {
	table := make([]Route, len(routes))
	for i, r := range routes {
		if r.Path == "" {
			return nil, errors.NewInvalidArgumentError(fmt.Sprintf("route %d has an empty path", i))
		}
		if r.Handler == nil {
			return nil, errors.NewInvalidArgumentError(fmt.Sprintf("route %q has no handler", r.Path))
		}
		table[i] = r
	}
	return &Router{routes: table}, nil
}

// Resolve returns the handler of the first route whose path equals path
// byte for byte. Methods are not considered.
func (r *Router) Resolve(path string) (Handler, bool) {
	if r == nil {
		return nil, false
	}
	for _, route := range r.routes {
		if route.Path == path {
			return route.Handler, true
		}
	}
	return nil, false
}

// Routes returns a copy of the table in declaration order.
func (r *Router) Routes() []Route {
	if r == nil {
		return nil
	}
	out := make([]Route, len(r.routes))
	copy(out, r.routes)
	return out
}

// Len reports the number of routes.
func (r *Router) Len() int {
	if r == nil {
		return 0
	}
	return len(r.routes)
}
