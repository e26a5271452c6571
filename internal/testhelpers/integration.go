//go:build integration
// +build integration

// Package testhelpers builds a live dashboard stack for integration tests.
package testhelpers

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-pro-dashboard/internal/backends"
	"github.com/kjstillabower/weather-pro-dashboard/internal/client"
	"github.com/kjstillabower/weather-pro-dashboard/internal/config"
	"github.com/kjstillabower/weather-pro-dashboard/internal/dashboard"
	"github.com/kjstillabower/weather-pro-dashboard/internal/offline"
	"github.com/kjstillabower/weather-pro-dashboard/internal/observability"
	"github.com/kjstillabower/weather-pro-dashboard/web"
)

// IntegrationTestConfig holds configuration for integration tests.
type IntegrationTestConfig struct {
	Backend        string // "in_memory", "redis" or "memcached"
	RedisAddr      string
	MemcachedAddrs string
	Timeout        time.Duration
}

// GetIntegrationConfig loads integration test configuration from environment.
// Skips the test unless INTEGRATION_LIVE=1, since every run hits the public
// upstream APIs.
func GetIntegrationConfig(t *testing.T) IntegrationTestConfig {
	t.Helper()
	if os.Getenv("INTEGRATION_LIVE") != "1" {
		t.Skip("INTEGRATION_LIVE not set, skipping live integration test")
	}

	cfg := IntegrationTestConfig{
		Backend:        os.Getenv("INTEGRATION_STORAGE_BACKEND"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		MemcachedAddrs: os.Getenv("MEMCACHED_ADDRS"),
		Timeout:        15 * time.Second,
	}
	if cfg.Backend == "" {
		cfg.Backend = config.BackendInMemory
	}
	if cfg.RedisAddr == "" {
		cfg.RedisAddr = "localhost:6379"
	}
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = "localhost:11211"
	}
	return cfg
}

// Stack is a fully wired dashboard talking to the real upstreams through an
// activated offline worker.
type Stack struct {
	Dashboard *dashboard.Service
	Worker    *offline.Worker
	Backends  *backends.Set
	Logger    *zap.Logger
}

// SetupIntegrationStack opens the configured backend under a unique prefix,
// installs and activates the worker, and loads dashboard state. An
// unreachable redis or memcached skips the test.
func SetupIntegrationStack(t *testing.T, cfg IntegrationTestConfig) *Stack {
	t.Helper()
	logger, err := observability.NewLogger()
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	set, err := backends.Open(ctx, backends.Options{
		Backend:          cfg.Backend,
		Prefix:           "it-" + uuid.NewString()[:8] + ":",
		RedisAddr:        cfg.RedisAddr,
		MemcachedAddrs:   cfg.MemcachedAddrs,
		MemcachedTimeout: 500 * time.Millisecond,
		MemcachedTTL:     time.Hour,
	}, logger)
	if err != nil {
		t.Skipf("storage backend %s not available: %v", cfg.Backend, err)
	}
	t.Cleanup(func() { _ = set.Close() })

	offlineCfg := offline.DefaultConfig()
	shell := &offline.ShellTransport{Host: "app.local", FS: web.Shell()}
	worker, err := offline.NewWorker(offlineCfg, set.Storage, shell, logger)
	if err != nil {
		t.Fatalf("NewWorker() error = %v", err)
	}
	if err := worker.Install(ctx); err != nil {
		t.Fatalf("Install() error = %v", err)
	}
	if err := worker.Activate(ctx); err != nil {
		t.Fatalf("Activate() error = %v", err)
	}
	t.Cleanup(worker.Wait)

	api := client.New(client.Config{Timeout: cfg.Timeout}, worker)
	dash := dashboard.New(api, set.Store, logger)
	if err := dash.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	return &Stack{Dashboard: dash, Worker: worker, Backends: set, Logger: logger}
}
