// Package kit is the transport-neutral glue between the annotator's
// operations and the surfaces that expose them (HTTP, MCP).
//
// An operation is an Endpoint; cross-cutting behaviour wraps it as a
// Middleware. The same endpoint serves a chi handler and an MCP tool.
package kit

import (
	"context"
	"log/slog"
	"time"
)

// Endpoint is one operation: a decoded request in, a JSON-encodable
// response out.
type Endpoint func(ctx context.Context, req any) (any, error)

// Middleware wraps an Endpoint.
type Middleware func(Endpoint) Endpoint

// Chain composes middlewares; the first one is the outermost.
func Chain(mws ...Middleware) Middleware {
	return func(next Endpoint) Endpoint {
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
		return next
	}
}

// Logging logs every call of the wrapped endpoint with its duration. The
// request logger from the context is preferred over fallback.
func Logging(name string, fallback *slog.Logger) Middleware {
	return func(next Endpoint) Endpoint {
		return func(ctx context.Context, req any) (any, error) {
			log := Logger(ctx, fallback)
			start := time.Now()
			resp, err := next(ctx, req)
			attrs := []any{
				"op", name,
				"transport", GetTransport(ctx),
				"duration_ms", time.Since(start).Milliseconds(),
			}
			if err != nil {
				log.Warn("kit: endpoint failed", append(attrs, "error", err)...)
			} else {
				log.Debug("kit: endpoint done", attrs...)
			}
			return resp, err
		}
	}
}
