package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// TestMetrics_Usable verifies that all Prometheus metrics can be used without
// panic, ensuring label dimensions match usage across client, offline, dashboard and http packages.
func TestMetrics_Usable(t *testing.T) {
	HTTPRequestsTotal.WithLabelValues("GET", "/api/dashboard", "2xx").Inc()
	HTTPRequestDuration.WithLabelValues("GET", "/api/dashboard").Observe(0.01)
	UpstreamCallsTotal.WithLabelValues("forecast", "success").Inc()
	UpstreamDuration.WithLabelValues("forecast", "success").Observe(0.1)
	WorkerResponsesTotal.WithLabelValues("stale_while_revalidate", "cache").Inc()
	WorkerRevalidationsTotal.WithLabelValues("success").Inc()
	CacheErrorsTotal.WithLabelValues("match").Inc()
	DashboardRefreshesTotal.WithLabelValues("offline").Inc()
	RadarRefreshesTotal.WithLabelValues("skipped").Inc()
	RateLimitDeniedTotal.Inc()
}

// TestMetricsHandler_ServesPrometheusFormat verifies that MetricsHandler serves
// Prometheus text exposition format with correct HTTP status and metric output.
func TestMetricsHandler_ServesPrometheusFormat(t *testing.T) {
	RegisterTrafficGauges(time.Minute)
	HTTPRequestsTotal.WithLabelValues("GET", "/health", "2xx").Inc()

	handler := MetricsHandler()
	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("MetricsHandler status = %d, want 200", w.Code)
	}
	body := w.Body.String()
	for _, name := range []string{"httpRequestsTotal", "rateLimitRejectsInWindow", "upstreamErrorsInWindow"} {
		if !strings.Contains(body, name) {
			t.Errorf("MetricsHandler response missing %s", name)
		}
	}
}
