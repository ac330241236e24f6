package annotator

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/mhl/highlight"
	"github.com/hazyhaar/mhl/kit"
	"github.com/hazyhaar/mhl/safe"
	"github.com/hazyhaar/mhl/shield"
)

// Routes returns the HTTP API, wrapped in the shield middleware stack.
func (a *Annotator) Routes() http.Handler {
	r := chi.NewRouter()
	for _, mw := range shield.Stack(shield.Config{MaxBody: a.cfg.MaxBody, Logger: a.logger}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "pages": len(a.Pages())})
	})
	r.Get("/pages", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, a.Pages())
	})

	r.Route("/pages/{page}", func(r chi.Router) {
		r.Use(pageContext)
		r.Post("/", a.handleLoadPage)
		r.Get("/", a.handleHTML)
		r.Delete("/", a.handleDeletePage)
		r.Get("/markdown", a.handleMarkdown)
		r.Post("/select", a.handleSelect)
		r.Get("/highlights", a.handleListHighlights)
		r.Post("/highlights", a.handleCreate)
		r.Patch("/highlights/{id}", a.handleUpdate)
		r.Delete("/highlights/{id}", a.handleRemove)
		r.Get("/activity", a.handleActivity)
		r.Get("/events", a.handleEvents)
	})
	return r
}

// pageContext tags the request context and logger with the page id.
func pageContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "page")
		ctx := kit.WithPageID(r.Context(), id)
		ctx = kit.WithLogger(ctx, kit.Logger(ctx, nil).With("page", id))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// POST /pages/{page}, body: raw HTML.
func (a *Annotator) handleLoadPage(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	info, err := a.LoadPage(r.Context(), chi.URLParam(r, "page"), string(body))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

// GET /pages/{page}
func (a *Annotator) handleHTML(w http.ResponseWriter, r *http.Request) {
	src, err := a.HTML(r.Context(), chi.URLParam(r, "page"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	io.WriteString(w, src)
}

// DELETE /pages/{page}
func (a *Annotator) handleDeletePage(w http.ResponseWriter, r *http.Request) {
	if err := a.DeletePage(r.Context(), chi.URLParam(r, "page")); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /pages/{page}/markdown?domain=example.com&quotes=1
func (a *Annotator) handleMarkdown(w http.ResponseWriter, r *http.Request) {
	md, quotes, err := a.Export(r.Context(), chi.URLParam(r, "page"), r.URL.Query().Get("domain"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	io.WriteString(w, md)
	if r.URL.Query().Get("quotes") != "" && quotes != "" {
		io.WriteString(w, "\n\n## Highlights\n\n"+quotes)
	}
}

// POST /pages/{page}/select, body: SelectRequest. Answers 204 when the
// selection cannot become a highlight.
func (a *Annotator) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req SelectRequest
	if !a.decode(w, r, &req) {
		return
	}
	d, err := a.Select(r.Context(), chi.URLParam(r, "page"), req)
	if errors.Is(err, ErrEmptySelection) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// GET /pages/{page}/highlights
func (a *Annotator) handleListHighlights(w http.ResponseWriter, r *http.Request) {
	list, err := a.Highlights(r.Context(), chi.URLParam(r, "page"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// CreateRequest is the body of POST /pages/{page}/highlights.
type CreateRequest struct {
	Draft highlight.Draft `json:"draft"`
	Color highlight.Color `json:"color"`
}

func (a *Annotator) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if !a.decode(w, r, &req) {
		return
	}
	h, err := a.Create(r.Context(), chi.URLParam(r, "page"), req.Draft, req.Color)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, h)
}

// UpdateRequest is the body of PATCH /pages/{page}/highlights/{id}.
type UpdateRequest struct {
	Color   *highlight.Color `json:"color,omitempty"`
	Visible *bool            `json:"visible,omitempty"`
}

func (a *Annotator) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req UpdateRequest
	if !a.decode(w, r, &req) {
		return
	}
	if req.Color == nil && req.Visible == nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("color or visible required"))
		return
	}
	pageID, id := chi.URLParam(r, "page"), ParseID(chi.URLParam(r, "id"))

	var h highlight.Highlight
	var err error
	if req.Color != nil {
		if h, err = a.Edit(r.Context(), pageID, id, *req.Color); err != nil {
			a.writeError(w, r, err)
			return
		}
	}
	if req.Visible != nil {
		if h, err = a.SetVisible(r.Context(), pageID, id, *req.Visible); err != nil {
			a.writeError(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, h)
}

// DELETE /pages/{page}/highlights/{id}
func (a *Annotator) handleRemove(w http.ResponseWriter, r *http.Request) {
	err := a.Remove(r.Context(), chi.URLParam(r, "page"), ParseID(chi.URLParam(r, "id")))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /pages/{page}/activity?limit=50
func (a *Annotator) handleActivity(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	evs, err := a.Events(r.Context(), chi.URLParam(r, "page"), limit)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, evs)
}

func (a *Annotator) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeError(w, http.StatusRequestEntityTooLarge, err)
			return false
		}
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return false
	}
	return true
}

// writeError maps annotator errors to status codes. Unexpected errors are
// logged and hidden behind a generic message.
func (a *Annotator) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var mbe *http.MaxBytesError
	switch {
	case isNotFound(err):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, ErrInvalidColor), errors.Is(err, ErrEmptySelection), errors.Is(err, safe.ErrInvalidIdentifier):
		writeError(w, http.StatusBadRequest, err)
	case errors.As(err, &mbe):
		writeError(w, http.StatusRequestEntityTooLarge, err)
	default:
		kit.Logger(r.Context(), a.logger).Error("annotator: request failed", "error", err, "path", r.URL.Path)
		writeError(w, http.StatusInternalServerError, errors.New("internal error"))
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
