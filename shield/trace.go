package shield

import (
	"log/slog"
	"net/http"

	"github.com/hazyhaar/mhl/idgen"
	"github.com/hazyhaar/mhl/kit"
)

// Trace tags each request with a trace id, echoed in X-Trace-ID, and a
// per-request logger derived from base. Both travel in the context under
// the kit keys. An incoming X-Trace-ID is kept.
func Trace(base *slog.Logger) func(http.Handler) http.Handler {
	newID := idgen.Trace()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			traceID := r.Header.Get("X-Trace-ID")
			if traceID == "" {
				traceID = newID()
			}
			w.Header().Set("X-Trace-ID", traceID)

			logger := base.With(
				"trace_id", traceID,
				"method", r.Method,
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
			)
			logger.Debug("shield: request")

			ctx := kit.WithTraceID(r.Context(), traceID)
			ctx = kit.WithLogger(ctx, logger)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
