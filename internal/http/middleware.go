package http

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weather-pro-dashboard/internal/observability"
	"github.com/kjstillabower/weather-pro-dashboard/internal/traffic"
)

// maxCorrelationIDLength bounds client-supplied IDs before they reach logs.
const maxCorrelationIDLength = 128

// CorrelationIDMiddleware tags each request with an X-Correlation-ID and puts a
// logger carrying it into the context. A client ID is kept only when it is
// short printable ASCII; anything else is replaced with a fresh UUID.
func CorrelationIDMiddleware(logger *zap.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			corrID := r.Header.Get("X-Correlation-ID")
			if !validCorrelationID(corrID) {
				corrID = uuid.New().String()
			}
			w.Header().Set("X-Correlation-ID", corrID)

			reqLogger := logger.With(
				zap.String("correlation_id", corrID),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
			)
			ctx := context.WithValue(r.Context(), "correlation_id", corrID)
			ctx = context.WithValue(ctx, "logger", reqLogger)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func validCorrelationID(id string) bool {
	if id == "" || len(id) > maxCorrelationIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return false
		}
	}
	return true
}

// MetricsMiddleware records request count, latency and in-flight requests, and
// feeds the in-flight tracker that shutdown drains.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		observability.HTTPRequestsInFlight.Inc()
		globalInFlightTracker.Increment()
		defer func() {
			globalInFlightTracker.Decrement()
			observability.HTTPRequestsInFlight.Dec()
		}()

		rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := getRoute(r)
		elapsed := time.Since(start)
		observability.HTTPRequestsTotal.WithLabelValues(r.Method, route, statusCodeString(rec.statusCode)).Inc()
		observability.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(elapsed.Seconds())

		if logger, ok := r.Context().Value("logger").(*zap.Logger); ok && rec.statusCode >= http.StatusInternalServerError {
			logger.Warn("request failed", zap.Int("status", rec.statusCode), zap.Duration("duration", elapsed))
		}
	})
}

// getRoute returns the matched route template so labels stay bounded.
// Everything the shell serves is reported as one route.
func getRoute(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil && tpl != "/" {
			return tpl
		}
	}
	if strings.HasPrefix(r.URL.Path, "/api/") {
		return "/api/unmatched"
	}
	return "shell"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

func statusCodeString(code int) string {
	return fmt.Sprintf("%dxx", code/100)
}

// TimeoutMiddleware bounds the request context so a slow upstream turns into
// a snapshot fallback instead of a hung browser. Non-positive timeouts disable it.
func TimeoutMiddleware(timeout time.Duration) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		if timeout <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RateLimitMiddleware answers 429 with a Retry-After hint once the token
// bucket is empty. A nil limiter disables it.
func RateLimitMiddleware(limiter *rate.Limiter) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter.Allow() {
				next.ServeHTTP(w, r)
				return
			}
			if logger, ok := r.Context().Value("logger").(*zap.Logger); ok {
				logger.Debug("rate limit denied")
			}
			traffic.RecordDenied()
			observability.RateLimitDeniedTotal.Inc()
			w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(limiter)))
			writeError(w, r, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests")
		})
	}
}

// retryAfterSeconds is the wait for one token at the limiter's rate, at least 1s.
func retryAfterSeconds(limiter *rate.Limiter) int {
	limit := float64(limiter.Limit())
	if limit <= 0 {
		return 1
	}
	secs := int(math.Ceil(1 / limit))
	if secs < 1 {
		secs = 1
	}
	return secs
}
