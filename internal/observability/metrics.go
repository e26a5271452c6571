package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kjstillabower/weather-pro-dashboard/internal/traffic"
)

var (
	registry *prometheus.Registry

	// HTTP request rate. Watch for: sudden drops (service down) or spikes (traffic surge).
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency per request. Watch for: p95/p99 latency increases.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight. Watch for: saturation.
	HTTPRequestsInFlight prometheus.Gauge

	// Upstream API calls by provider (geocoding, forecast, air_quality, reverse, radar) and outcome.
	UpstreamCallsTotal *prometheus.CounterVec

	// Upstream latency. Watch for: p95 > 2s on forecast/air_quality (slow dashboard refresh).
	UpstreamDuration *prometheus.HistogramVec

	// Responses produced by the offline worker, by strategy and where the body came from
	// (cache, network, offline, synthetic). Watch for: offline/synthetic share rising.
	WorkerResponsesTotal *prometheus.CounterVec

	// Background stale-while-revalidate refreshes by result.
	WorkerRevalidationsTotal *prometheus.CounterVec

	// Cache storage errors by operation (match, put, delete, keys).
	CacheErrorsTotal *prometheus.CounterVec

	// Dashboard refresh cycles by result (success, offline, failed, superseded).
	DashboardRefreshesTotal *prometheus.CounterVec

	// Radar layer refreshes by result (success, error, skipped).
	RadarRefreshesTotal *prometheus.CounterVec

	// Rate limit denials. Watch for: overload.
	RateLimitDeniedTotal prometheus.Counter

	rateLimitGaugesOnce sync.Once
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	UpstreamCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstreamCallsTotal",
			Help: "Total number of upstream API calls",
		},
		[]string{"upstream", "status"},
	)
	UpstreamDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstreamDurationSeconds",
			Help:    "Upstream API latency in seconds (per request)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"upstream", "status"},
	)
	WorkerResponsesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workerResponsesTotal",
			Help: "Responses produced by the offline worker by strategy and source",
		},
		[]string{"strategy", "source"},
	)
	WorkerRevalidationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workerRevalidationsTotal",
			Help: "Background stale-while-revalidate refreshes by result",
		},
		[]string{"result"},
	)
	CacheErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheErrorsTotal",
			Help: "Cache storage errors by operation",
		},
		[]string{"operation"},
	)
	DashboardRefreshesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboardRefreshesTotal",
			Help: "Dashboard refresh cycles by result",
		},
		[]string{"result"},
	)
	RadarRefreshesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "radarRefreshesTotal",
			Help: "Radar layer refreshes by result",
		},
		[]string{"result"},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		UpstreamCallsTotal, UpstreamDuration,
		WorkerResponsesTotal, WorkerRevalidationsTotal, CacheErrorsTotal,
		DashboardRefreshesTotal, RadarRefreshesTotal,
		RateLimitDeniedTotal,
	)
}

// RegisterTrafficGauges registers sliding-window gauges backed by the traffic tracker.
// Call from main after config load; window matches the health evaluation window.
func RegisterTrafficGauges(window time.Duration) {
	rateLimitGaugesOnce.Do(func() {
		registry.MustRegister(
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "rateLimitRejectsInWindow",
					Help: "429 responses in sliding window; are we rejecting requests",
				},
				func() float64 { return float64(traffic.DenialCount(window)) },
			),
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "upstreamErrorsInWindow",
					Help: "Failed dashboard refreshes in sliding window",
				},
				func() float64 {
					errs, _ := traffic.ErrorRate(window)
					return float64(errs)
				},
			),
		)
	})
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
