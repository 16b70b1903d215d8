// Package kit holds the small transport-agnostic plumbing shared by the
// session control surfaces: the Endpoint abstraction, middleware
// chaining, request-scoped context values, and MCP tool registration.
package kit

import "context"

// Endpoint is one logical operation, independent of the transport that
// invoked it. HTTP handlers and MCP tools decode into a typed request
// and delegate here.
type Endpoint func(ctx context.Context, req any) (any, error)

// Middleware wraps an Endpoint with cross-cutting behaviour.
type Middleware func(Endpoint) Endpoint

// Chain composes middlewares left to right: the first argument becomes
// the outermost wrapper.
func Chain(mws ...Middleware) Middleware {
	return func(next Endpoint) Endpoint {
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
		return next
	}
}
