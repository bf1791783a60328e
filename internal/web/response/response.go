// Package response writes viewer responses tagged with the request ID.
package response

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/inetmon/inetmon/internal/web/middleware"
	"github.com/inetmon/inetmon/internal/web/problem"
)

// JSON encodes data with status. A nil data writes headers only. Status
// and log data change every cycle, so responses are marked no-store.
func JSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	header(w, r, "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// Text writes body as plain text.
func Text(w http.ResponseWriter, r *http.Request, status int, body string) {
	header(w, r, "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

// Error writes a problem document for status scoped to the request path.
func Error(w http.ResponseWriter, r *http.Request, status int, detail string) {
	problem.For(status, middleware.GetRequestID(r.Context()), detail).
		WithInstance(r.URL.Path).
		Write(w)
}

// BadRequest writes a 400 problem.
func BadRequest(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, http.StatusBadRequest, detail)
}

// NotFound writes a 404 problem.
func NotFound(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, http.StatusNotFound, detail)
}

// InternalError writes a 500 problem.
func InternalError(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, http.StatusInternalServerError, detail)
}

func header(w http.ResponseWriter, r *http.Request, contentType string) {
	h := w.Header()
	h.Set("Content-Type", contentType)
	h.Set("Cache-Control", "no-store")
	if id := middleware.GetRequestID(r.Context()); id != "" {
		h.Set(middleware.RequestIDHeader, id)
	}
}
