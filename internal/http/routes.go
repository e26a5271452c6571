package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weather-pro-dashboard/internal/observability"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	RequestTimeout time.Duration
	RateLimiter    *rate.Limiter
	TestingMode    bool
}

// NewRouter wires /health, /metrics, the /api subrouter and, for every other
// path, the offline shell handler.
func NewRouter(h *Handler, shell http.Handler, opts RouterOptions) *mux.Router {
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(h.logger))
	router.Use(MetricsMiddleware)
	router.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet)
	router.Handle("/metrics", observability.MetricsHandler())

	api := router.PathPrefix("/api").Subrouter()
	api.Use(RateLimitMiddleware(opts.RateLimiter))
	if opts.RequestTimeout > 0 {
		api.Use(TimeoutMiddleware(opts.RequestTimeout))
	}
	api.HandleFunc("/state", h.GetState).Methods(http.MethodGet)
	api.HandleFunc("/dashboard", h.GetDashboard).Methods(http.MethodGet)
	api.HandleFunc("/search", h.GetSuggestions).Methods(http.MethodGet)
	api.HandleFunc("/search", h.PostSearch).Methods(http.MethodPost)
	api.HandleFunc("/place", h.PostPlace).Methods(http.MethodPost)
	api.HandleFunc("/locate", h.PostLocate).Methods(http.MethodPost)
	api.HandleFunc("/favorites", h.GetFavorites).Methods(http.MethodGet)
	api.HandleFunc("/favorites", h.PostFavorite).Methods(http.MethodPost)
	api.HandleFunc("/favorites/{index}", h.DeleteFavorite).Methods(http.MethodDelete)
	api.HandleFunc("/theme", h.PutTheme).Methods(http.MethodPut)
	api.HandleFunc("/theme/toggle", h.PostThemeToggle).Methods(http.MethodPost)
	api.HandleFunc("/share", h.GetShare).Methods(http.MethodGet)
	api.HandleFunc("/map", h.GetMap).Methods(http.MethodGet)
	api.HandleFunc("/map/center", h.PostMapCenter).Methods(http.MethodPost)
	api.HandleFunc("/radar", h.PutRadar).Methods(http.MethodPut)
	api.HandleFunc("/radar/refresh", h.PostRadarRefresh).Methods(http.MethodPost)

	if opts.TestingMode {
		h.logger.Warn("Testing mode enabled; /test endpoint exposed")
		router.HandleFunc("/test", h.GetTestStatus).Methods(http.MethodGet)
		router.HandleFunc("/test/{action}", h.PostTestAction).Methods(http.MethodPost)
	}

	if shell != nil {
		router.PathPrefix("/").Handler(h.DeepLink(shell))
	}
	return router
}

// DeepLink applies ?lat=&lon=&name= on the page root before serving the shell.
// A malformed link is logged and ignored.
func (h *Handler) DeepLink(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet && r.URL.Path == "/" && r.URL.RawQuery != "" {
			applied, err := h.dashboard.ApplyDeepLink(r.Context(), r.URL.Query())
			logger := h.logger
			if l, ok := r.Context().Value("logger").(*zap.Logger); ok && l != nil {
				logger = l
			}
			switch {
			case err != nil:
				logger.Info("ignoring deep link", zap.Error(err))
			case applied:
				logger.Debug("deep link applied")
			}
		}
		next.ServeHTTP(w, r)
	})
}
