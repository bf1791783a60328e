// Package problem writes RFC 7807 problem documents for viewer errors.
package problem

import (
	"encoding/json"
	"net/http"
)

// ContentType is the media type of a problem document.
const ContentType = "application/problem+json"

// Problem types, relative to the viewer root.
const (
	TypeBadRequest      = "/problems/bad-request"
	TypeForbidden       = "/problems/forbidden"
	TypeNotFound        = "/problems/not-found"
	TypeTooManyRequests = "/problems/too-many-requests"
	TypeInternal        = "/problems/internal-error"
	TypeGeneric         = "about:blank"
)

var typesByStatus = map[int]string{
	http.StatusBadRequest:          TypeBadRequest,
	http.StatusForbidden:           TypeForbidden,
	http.StatusNotFound:            TypeNotFound,
	http.StatusTooManyRequests:     TypeTooManyRequests,
	http.StatusInternalServerError: TypeInternal,
}

// Problem is one error occurrence.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`

	// TraceID echoes the request ID.
	TraceID string `json:"traceId"`
}

// For builds a problem for status. The type comes from the known problem
// types, falling back to about:blank, and the title is the status text.
func For(status int, traceID, detail string) *Problem {
	typ, ok := typesByStatus[status]
	if !ok {
		typ = TypeGeneric
	}
	return &Problem{
		Type:    typ,
		Title:   http.StatusText(status),
		Status:  status,
		Detail:  detail,
		TraceID: traceID,
	}
}

// WithInstance sets the path the problem occurred on.
func (p *Problem) WithInstance(path string) *Problem {
	p.Instance = path
	return p
}

// Write sends the problem with its status code.
func (p *Problem) Write(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Content-Type", ContentType)
	h.Set("Cache-Control", "no-store")
	if p.TraceID != "" {
		h.Set("X-Request-Id", p.TraceID)
	}
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}
