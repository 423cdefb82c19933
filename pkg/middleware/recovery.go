package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/utafrali/storefront/pkg/httputil"
)

// Recovery turns a handler panic into a logged 500. When onPanic is non-nil it
// is called after the response is written, with the recovered value wrapped in
// an error, so the process can shut down instead of running in an unknown state.
func Recovery(l *slog.Logger, onPanic func(error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				l.ErrorContext(r.Context(), "panic recovered",
					slog.Any("panic", rec),
					slog.String("stack", string(debug.Stack())),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
				)

				httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{
					Message: "Internal Server Error",
				})

				if onPanic != nil {
					onPanic(fmt.Errorf("panic in %s %s: %v", r.Method, r.URL.Path, rec))
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
