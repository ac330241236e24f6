// Package shield is the HTTP middleware stack of the annotator: security
// headers, body limits and request tracing.
//
// Usage:
//
//	r := chi.NewRouter()
//	for _, mw := range shield.Stack(shield.Config{MaxBody: 4 << 20}) {
//	    r.Use(mw)
//	}
package shield

import (
	"log/slog"
	"net/http"
)

// Config tunes the stack.
type Config struct {
	// MaxBody caps request bodies in bytes. Default: 4 MiB, enough for a
	// full page upload.
	MaxBody int64
	Headers HeaderConfig
	Logger  *slog.Logger
}

func (c *Config) defaults() {
	if c.MaxBody <= 0 {
		c.MaxBody = 4 << 20
	}
	if c.Headers == (HeaderConfig{}) {
		c.Headers = DefaultHeaders()
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Stack returns the middlewares in order: HeadToGet, SecurityHeaders,
// MaxBody, TraceID.
func Stack(cfg Config) []func(http.Handler) http.Handler {
	cfg.defaults()
	return []func(http.Handler) http.Handler{
		HeadToGet,
		SecurityHeaders(cfg.Headers),
		MaxBody(cfg.MaxBody),
		Trace(cfg.Logger),
	}
}
