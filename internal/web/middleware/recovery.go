package middleware

import (
	"errors"
	"net/http"
	"runtime/debug"

	"github.com/rs/zerolog"

	"github.com/inetmon/inetmon/internal/web/problem"
)

// Recovery turns a handler panic into a 500 problem and an error log entry
// carrying the stack. http.ErrAbortHandler is re-raised. When the handler
// had already started its response only the log entry is written.
func Recovery(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rec)
				}

				id := GetRequestID(r.Context())
				log.Error().
					Str("request_id", id).
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Interface("panic", rec).
					Bytes("stack", debug.Stack()).
					Msg("panic recovered")

				if headerWritten(w) {
					return
				}
				problem.For(http.StatusInternalServerError, id, "an unexpected error occurred").
					WithInstance(r.URL.Path).
					Write(w)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
