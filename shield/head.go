package shield

import (
	"net/http"
	"strings"
)

// HeadToGet serves HEAD on the read routes (page markup, Markdown export,
// highlight and page lists, activity, health) with their GET handlers, so a
// client can check a page or its export without the body. net/http drops
// the body of a HEAD response.
//
// The websocket route keeps HEAD: an upgrade needs a GET, and running the
// upgrader on a HEAD only fails after the handshake headers are written.
func HeadToGet(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead && !isEventStream(r.URL.Path) {
			r.Method = http.MethodGet
		}
		next.ServeHTTP(w, r)
	})
}

// isEventStream reports whether path is a page's websocket endpoint,
// /pages/{page}/events.
func isEventStream(path string) bool {
	rest, ok := strings.CutPrefix(path, "/pages/")
	if !ok {
		return false
	}
	page, tail, ok := strings.Cut(rest, "/")
	return ok && page != "" && tail == "events"
}
