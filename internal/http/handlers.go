package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weather-pro-dashboard/internal/dashboard"
	"github.com/kjstillabower/weather-pro-dashboard/internal/lifecycle"
	"github.com/kjstillabower/weather-pro-dashboard/internal/observability"
	"github.com/kjstillabower/weather-pro-dashboard/internal/offline"
	"github.com/kjstillabower/weather-pro-dashboard/internal/traffic"
)

// HealthConfig holds thresholds and probes for the health handler.
type HealthConfig struct {
	DegradedWindow   time.Duration
	DegradedErrorPct int
	RateLimitRPS     int
	RateLimitBurst   int // 0 when rate limiter disabled
	StartTime        time.Time
	// StoragePing and StorePing check the offline cache and key-value backends.
	StoragePing func(ctx context.Context) error
	StorePing   func(ctx context.Context) error
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	dashboard        *dashboard.Service
	worker           *offline.Worker
	healthConfig     *HealthConfig
	logger           *zap.Logger
	rateLimiter      *rate.Limiter
	publicURL        string
	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler. publicURL is the base of share links.
func NewHandler(
	dash *dashboard.Service,
	worker *offline.Worker,
	healthConfig *HealthConfig,
	logger *zap.Logger,
	rateLimiter *rate.Limiter,
	publicURL string,
) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		dashboard:    dash,
		worker:       worker,
		healthConfig: healthConfig,
		logger:       logger,
		rateLimiter:  rateLimiter,
		publicURL:    publicURL,
	}
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus(r.Context())

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	checks := map[string]string{"upstream": "healthy"}
	if result.reason == "error_rate_breach" {
		checks["upstream"] = "unhealthy"
	}
	if h.worker != nil {
		checks["offlineWorker"] = h.worker.State().String()
	}
	if h.healthConfig != nil {
		if h.healthConfig.StoragePing != nil {
			checks["cacheStorage"] = pingStatus(r.Context(), h.healthConfig.StoragePing)
		}
		if h.healthConfig.StorePing != nil {
			checks["kvStore"] = pingStatus(r.Context(), h.healthConfig.StorePing)
		}
	}
	writeJSON(w, result.statusCode, map[string]interface{}{
		"status":    result.status,
		"service":   observability.ServiceName,
		"version":   "dev",
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func pingStatus(ctx context.Context, ping func(context.Context) error) string {
	if ping(ctx) != nil {
		return "unhealthy"
	}
	return "healthy"
}

// computeHealthStatus evaluates conditions in priority order:
// shutting-down > starting > storage unreachable > error rate > healthy.
func (h *Handler) computeHealthStatus(ctx context.Context) healthResult {
	switch lifecycle.Current() {
	case lifecycle.PhaseShuttingDown:
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}
	case lifecycle.PhaseStarting:
		return healthResult{"starting", http.StatusServiceUnavailable, "not_activated"}
	}
	if h.healthConfig == nil {
		return healthResult{"healthy", http.StatusOK, ""}
	}
	if p := h.healthConfig.StoragePing; p != nil && p(ctx) != nil {
		return healthResult{"degraded", http.StatusServiceUnavailable, "cache_storage_unreachable"}
	}
	if p := h.healthConfig.StorePing; p != nil && p(ctx) != nil {
		return healthResult{"degraded", http.StatusServiceUnavailable, "kv_store_unreachable"}
	}
	// Upstream failures degrade but keep 200: the dashboard still serves snapshots.
	if h.healthConfig.DegradedWindow > 0 && h.healthConfig.DegradedErrorPct > 0 {
		errors, total := traffic.ErrorRate(h.healthConfig.DegradedWindow)
		if total > 0 && float64(errors)*100/float64(total) >= float64(h.healthConfig.DegradedErrorPct) {
			return healthResult{"degraded", http.StatusOK, "error_rate_breach"}
		}
	}
	return healthResult{"healthy", http.StatusOK, ""}
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error response in the standard error format with code, message,
// and requestId (correlation ID) if available in request context.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	corrID, _ := r.Context().Value("correlation_id").(string)
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": corrID,
		},
	})
}

// GetTestStatus handles GET /test. Returns the sliding-window counters.
func (h *Handler) GetTestStatus(w http.ResponseWriter, r *http.Request) {
	window := h.degradedWindow()
	errors, total := traffic.ErrorRate(window)

	cfg := make(map[string]interface{})
	if h.healthConfig != nil {
		cfg["rate_limit_rps"] = h.healthConfig.RateLimitRPS
		cfg["rate_limit_burst"] = h.healthConfig.RateLimitBurst
		cfg["degraded_error_pct"] = h.healthConfig.DegradedErrorPct
	}
	resp := map[string]interface{}{
		"refreshes_in_window":       total,
		"errors_in_window":          errors,
		"denied_requests_in_window": traffic.DenialCount(window),
		"window_length":             window.String(),
		"phase":                     lifecycle.Current().String(),
		"config":                    cfg,
	}
	if h.worker != nil {
		resp["worker_state"] = h.worker.State().String()
	}
	writeJSON(w, http.StatusOK, resp)
}

// PostTestAction handles POST /test/{action} for load, error, reset and shutdown.
func (h *Handler) PostTestAction(w http.ResponseWriter, r *http.Request) {
	action := mux.Vars(r)["action"]
	switch action {
	case "load":
		h.postTestLoad(w, r)
	case "error":
		h.postTestError(w, r)
	case "reset":
		traffic.Reset()
		lifecycle.SetPhase(lifecycle.PhaseServing)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"ok":      true,
			"action":  "reset",
			"message": "All simulated state cleared",
		})
	case "shutdown":
		lifecycle.SetPhase(lifecycle.PhaseShuttingDown)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"ok":      true,
			"action":  "shutdown",
			"message": "Shutting-down phase set",
		})
	default:
		writeError(w, r, http.StatusNotFound, "UNKNOWN_ACTION", "unknown test action: "+action)
	}
}

// postTestLoad pushes count requests through the rate limiter and records the outcomes.
func (h *Handler) postTestLoad(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Count <= 0 {
		body.Count = 10
	}
	var accepted, denied int
	for i := 0; i < body.Count; i++ {
		if h.rateLimiter == nil || h.rateLimiter.Allow() {
			traffic.RecordSuccess()
			accepted++
			continue
		}
		traffic.RecordDenied()
		observability.RateLimitDeniedTotal.Inc()
		denied++
	}
	msg := "Recorded " + strconv.Itoa(accepted) + " accepted"
	if denied > 0 {
		msg += ", " + strconv.Itoa(denied) + " denied"
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":       true,
		"action":   "load",
		"message":  msg,
		"state":    h.computeHealthStatus(r.Context()).status,
		"accepted": accepted,
		"denied":   denied,
	})
}

// postTestError records count failed refreshes.
func (h *Handler) postTestError(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Count <= 0 {
		body.Count = 1
	}
	for i := 0; i < body.Count; i++ {
		traffic.RecordError()
	}
	errors, total := traffic.ErrorRate(h.degradedWindow())
	pct := 0
	if total > 0 {
		pct = errors * 100 / total
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":             true,
		"action":         "error",
		"message":        "Recorded " + strconv.Itoa(body.Count) + " errors",
		"state":          h.computeHealthStatus(r.Context()).status,
		"error_rate_pct": pct,
	})
}

func (h *Handler) degradedWindow() time.Duration {
	if h.healthConfig != nil && h.healthConfig.DegradedWindow > 0 {
		return h.healthConfig.DegradedWindow
	}
	return 60 * time.Second
}
