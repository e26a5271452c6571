package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weather-pro-dashboard/internal/backends"
	"github.com/kjstillabower/weather-pro-dashboard/internal/client"
	"github.com/kjstillabower/weather-pro-dashboard/internal/config"
	"github.com/kjstillabower/weather-pro-dashboard/internal/dashboard"
	httphandler "github.com/kjstillabower/weather-pro-dashboard/internal/http"
	"github.com/kjstillabower/weather-pro-dashboard/internal/lifecycle"
	"github.com/kjstillabower/weather-pro-dashboard/internal/observability"
	"github.com/kjstillabower/weather-pro-dashboard/internal/offline"
	"github.com/kjstillabower/weather-pro-dashboard/internal/scheduler"
	"github.com/kjstillabower/weather-pro-dashboard/web"
)

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	startCtx, startCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startCancel()

	store, err := backends.Open(startCtx, backends.FromConfig(cfg), logger)
	if err != nil {
		logger.Fatal("storage", zap.Error(err))
	}

	origin, err := url.Parse(cfg.ShellOrigin)
	if err != nil {
		logger.Fatal("shell origin", zap.Error(err))
	}
	shell := &offline.ShellTransport{Host: origin.Host, FS: web.Shell()}

	offlineCfg := offline.DefaultConfig()
	offlineCfg.Version = cfg.OfflineVersion
	offlineCfg.ShellOrigin = cfg.ShellOrigin
	offlineCfg.RevalidateTimeout = cfg.RevalidateTimeout
	worker, err := offline.NewWorker(offlineCfg, store.Storage, shell, logger)
	if err != nil {
		logger.Fatal("offline worker", zap.Error(err))
	}
	if err := worker.Install(startCtx); err != nil {
		logger.Fatal("offline install", zap.Error(err))
	}
	if err := worker.Activate(startCtx); err != nil {
		logger.Fatal("offline activate", zap.Error(err))
	}

	api := client.New(client.Config{
		GeocodingURL:  cfg.GeocodingURL,
		ForecastURL:   cfg.ForecastURL,
		AirQualityURL: cfg.AirQualityURL,
		ReverseURL:    cfg.ReverseURL,
		RadarURL:      cfg.RadarURL,
		RadarTileURL:  cfg.RadarTileURL,
		UserAgent:     cfg.UserAgent,
		Timeout:       cfg.UpstreamTimeout,
	}, worker)

	dash := dashboard.New(api, store.Store, logger)
	if err := dash.Load(startCtx); err != nil {
		logger.Fatal("dashboard state", zap.Error(err))
	}
	if err := dash.EnsurePlace(startCtx); err != nil {
		logger.Warn("default place", zap.Error(err))
	}
	startCancel()

	radar := scheduler.New(dash, cfg.RadarRefreshInterval, cfg.UpstreamTimeout, logger)
	if err := radar.Start(); err != nil {
		logger.Fatal("radar scheduler", zap.Error(err))
	}

	healthConfig := &httphandler.HealthConfig{
		DegradedWindow:   cfg.DegradedWindow,
		DegradedErrorPct: cfg.DegradedErrorPct,
		RateLimitRPS:     cfg.RateLimitRPS,
		RateLimitBurst:   cfg.RateLimitBurst,
		StartTime:        time.Now(),
		StoragePing:      store.Storage.Ping,
		StorePing:        store.Store.Ping,
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	handler := httphandler.NewHandler(dash, worker, healthConfig, logger, limiter, cfg.PublicURL)
	observability.RegisterTrafficGauges(cfg.DegradedWindow)

	router := httphandler.NewRouter(handler, &offline.Handler{Worker: worker}, httphandler.RouterOptions{
		RequestTimeout: cfg.RequestTimeout,
		RateLimiter:    limiter,
		TestingMode:    cfg.TestingMode,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", ":"+cfg.ServerPort), zap.String("offline_version", cfg.OfflineVersion))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	go func() {
		if cfg.ReadyDelay > 0 {
			time.Sleep(cfg.ReadyDelay)
		}
		if !lifecycle.IsShuttingDown() {
			lifecycle.SetPhase(lifecycle.PhaseServing)
			logger.Info("serving")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	lifecycle.SetPhase(lifecycle.PhaseShuttingDown)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	logger.Info("waiting for in-flight requests", zap.Int64("count", httphandler.InFlightCount()))
	if err := httphandler.WaitForInFlight(shutdownCtx, 100*time.Millisecond); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	radar.Stop()
	worker.Wait()

	if err := observability.FlushTelemetry(context.Background(), logger); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}
	if err := store.Close(); err != nil {
		logger.Error("storage close", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
