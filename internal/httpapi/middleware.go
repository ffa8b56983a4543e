package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"secretsManagement/internal/auth"
	"secretsManagement/internal/metrics"
)

// requireBasicAuth puts HTTP Basic credentials into the request context.
// The credentials are verified by the access layer on each call.
func requireBasicAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, password, ok := r.BasicAuth()
		if !ok || username == "" {
			w.Header().Set("WWW-Authenticate", `Basic realm="secrets"`)
			respondWithError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		ctx := auth.WithCredentials(r.Context(), auth.Credentials{Username: username, Password: password})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// optionalBasicAuth is requireBasicAuth without the rejection.
func optionalBasicAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if username, password, ok := r.BasicAuth(); ok {
			r = r.WithContext(auth.WithCredentials(r.Context(), auth.Credentials{Username: username, Password: password}))
		}
		next.ServeHTTP(w, r)
	})
}

func credentials(ctx context.Context) auth.Credentials {
	c, _ := auth.FromContext(ctx)
	return c
}

// requestLogger logs one line per request with zap.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Info("http request",
				zap.String("request_id", chiMiddleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)))
		})
	}
}

// instrument records request count and latency labelled by chi route pattern.
func instrument(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			m.ObserveHTTP(r.Method, route, ww.Status(), time.Since(start))
		})
	}
}
