package middleware

import (
	"net/http"
	"time"

	"github.com/trackgate/trackgate/pkg/contextkeys"
	"github.com/trackgate/trackgate/pkg/httputil"
	"github.com/trackgate/trackgate/pkg/observability"
)

// Logging logs each request with method, path, status and duration, and
// places a request-scoped logger in the context for handlers.
func Logging(logger *observability.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqLogger := logger.
				WithField("method", r.Method).
				WithField("path", r.URL.Path).
				WithField("request_id", contextkeys.GetRequestID(r.Context()))

			ctx := contextkeys.WithLogger(r.Context(), reqLogger)
			recorder := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(recorder, r.WithContext(ctx))

			reqLogger.
				WithField("status", recorder.status).
				WithField("duration_ms", time.Since(start).Milliseconds()).
				Info("request handled")
		})
	}
}

// Recovery converts handler panics into 500 responses instead of killing
// the connection.
func Recovery(logger *observability.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := observability.MustRecover(recover()); err != nil {
					logger.WithError(err).
						WithField("path", r.URL.Path).
						WithField("request_id", contextkeys.GetRequestID(r.Context())).
						Error("panic in handler")
					httputil.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
