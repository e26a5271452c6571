// Package offline is the offline cache worker. It sits between the process and
// the network as an http.RoundTripper: shell assets are served cache-first,
// page navigations network-first with an offline document fallback, and the
// weather, radar and map hosts stale-while-revalidate from a runtime cache.
package offline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-pro-dashboard/internal/cache"
	"github.com/kjstillabower/weather-pro-dashboard/internal/observability"
)

var (
	ErrNotInstalled  = errors.New("worker not installed")
	ErrInvalidConfig = errors.New("invalid worker config")
)

// Response strategies, used as metric labels.
const (
	StrategyPassthrough = "passthrough"
	StrategySWR         = "stale_while_revalidate"
	StrategyNavigate    = "network_first"
	StrategyCacheFirst  = "cache_first"
)

// Response sources, used as metric labels.
const (
	SourceCache     = "cache"
	SourceNetwork   = "network"
	SourceOffline   = "offline"
	SourceSynthetic = "synthetic"
)

const (
	indexDocument   = "./index.html"
	offlineDocument = "./offline.html"
	offlineBody     = "Offline"
)

// State is the worker lifecycle position.
type State int32

const (
	StateNew State = iota
	StateInstalled
	StateActivated
)

func (s State) String() string {
	switch s {
	case StateInstalled:
		return "installed"
	case StateActivated:
		return "activated"
	default:
		return "new"
	}
}

// Config describes one worker version.
type Config struct {
	Version           string
	ShellOrigin       string
	Manifest          []string
	DynamicHosts      []string
	RevalidateTimeout time.Duration
}

// DefaultConfig returns the stock version, manifest and host allow-list.
func DefaultConfig() Config {
	return Config{
		Version:     "wpwa-v1.0.0",
		ShellOrigin: "https://app.local/",
		Manifest: []string{
			"./",
			"./index.html",
			"./offline.html",
			"./styles.css",
			"./app.js",
			"./manifest.webmanifest",
		},
		DynamicHosts: []string{
			"open-meteo.com",
			"rainviewer.com",
			"tile.openstreetmap.org",
			"nominatim.openstreetmap.org",
		},
		RevalidateTimeout: 15 * time.Second,
	}
}

// Worker intercepts outbound GETs once activated. Safe for concurrent use.
type Worker struct {
	cfg     Config
	origin  *url.URL
	storage cache.Storage
	next    http.RoundTripper
	logger  *zap.Logger

	state     atomic.Int32
	claimed   atomic.Bool
	installMu sync.Mutex
	fetches   *fetchCoalescer
}

// NewWorker validates cfg and returns a worker in StateNew. next is the
// network; nil uses http.DefaultTransport.
func NewWorker(cfg Config, storage cache.Storage, next http.RoundTripper, logger *zap.Logger) (*Worker, error) {
	if cfg.Version == "" {
		return nil, fmt.Errorf("%w: version is required", ErrInvalidConfig)
	}
	origin, err := url.Parse(cfg.ShellOrigin)
	if err != nil || !origin.IsAbs() || origin.Host == "" {
		return nil, fmt.Errorf("%w: shell origin %q must be an absolute URL", ErrInvalidConfig, cfg.ShellOrigin)
	}
	if !strings.HasSuffix(origin.Path, "/") {
		origin.Path += "/"
	}
	if storage == nil {
		return nil, fmt.Errorf("%w: storage is required", ErrInvalidConfig)
	}
	if cfg.RevalidateTimeout <= 0 {
		cfg.RevalidateTimeout = DefaultConfig().RevalidateTimeout
	}
	if next == nil {
		next = http.DefaultTransport
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		cfg:     cfg,
		origin:  origin,
		storage: storage,
		next:    next,
		logger:  logger,
		fetches: newFetchCoalescer(cfg.RevalidateTimeout),
	}, nil
}

// StaticCache is the name of this version's shell cache.
func (w *Worker) StaticCache() string { return w.cfg.Version + "-static" }

// RuntimeCache is the name of this version's API and tile cache.
func (w *Worker) RuntimeCache() string { return w.cfg.Version + "-runtime" }

// State reports the lifecycle position.
func (w *Worker) State() State { return State(w.state.Load()) }

// Claimed reports whether requests are being intercepted.
func (w *Worker) Claimed() bool { return w.claimed.Load() }

// Origin is the resolved shell origin.
func (w *Worker) Origin() *url.URL {
	u := *w.origin
	return &u
}

// Resolve maps a shell-relative path such as "./index.html" to its cache key.
func (w *Worker) Resolve(ref string) string {
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return w.origin.ResolveReference(r).String()
}

// Install fetches every manifest asset and stores them in the static cache.
// Either all assets are stored or none are. On success waiting is skipped and
// Activate may run immediately.
func (w *Worker) Install(ctx context.Context) error {
	w.installMu.Lock()
	defer w.installMu.Unlock()

	start := time.Now()
	w.logger.Info("installing offline worker",
		zap.String("version", w.cfg.Version),
		zap.Int("assets", len(w.cfg.Manifest)),
	)

	type fetched struct {
		key   string
		entry *cache.Entry
	}
	var wg sync.WaitGroup
	results := make(chan fetched, len(w.cfg.Manifest))
	errCh := make(chan error, len(w.cfg.Manifest))
	for _, asset := range w.cfg.Manifest {
		asset := asset
		wg.Add(1)
		go func() {
			defer wg.Done()
			key := w.Resolve(asset)
			entry, err := w.fetch(ctx, key, nil)
			if err != nil {
				errCh <- fmt.Errorf("precache %s: %w", asset, err)
				return
			}
			if !entry.OK() {
				errCh <- fmt.Errorf("precache %s: HTTP %d", asset, entry.Status)
				return
			}
			results <- fetched{key: key, entry: entry}
		}()
	}
	wg.Wait()
	close(results)
	close(errCh)

	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		w.logger.Warn("offline worker install failed", zap.Int("errors", len(errs)), zap.Error(errors.Join(errs...)))
		return fmt.Errorf("install %s: %w", w.cfg.Version, errors.Join(errs...))
	}

	static, err := w.storage.Open(ctx, w.StaticCache())
	if err != nil {
		observability.CacheErrorsTotal.WithLabelValues("open").Inc()
		return fmt.Errorf("open %s: %w", w.StaticCache(), err)
	}
	for r := range results {
		if err := static.Put(ctx, r.key, r.entry); err != nil {
			observability.CacheErrorsTotal.WithLabelValues("put").Inc()
			if _, derr := w.storage.Delete(context.WithoutCancel(ctx), w.StaticCache()); derr != nil {
				w.logger.Warn("partial static cache not removed", zap.String("cache", w.StaticCache()), zap.Error(derr))
			}
			return fmt.Errorf("store %s: %w", r.key, err)
		}
	}

	w.state.CompareAndSwap(int32(StateNew), int32(StateInstalled))
	w.logger.Info("offline worker installed",
		zap.String("version", w.cfg.Version),
		zap.Float64("duration_seconds", time.Since(start).Seconds()),
	)
	return nil
}

// Activate deletes every cache other than this version's static and runtime
// caches, then
// claims clients so RoundTrip starts intercepting.
func (w *Worker) Activate(ctx context.Context) error {
	if w.State() == StateNew {
		return ErrNotInstalled
	}
	names, err := w.storage.Keys(ctx)
	if err != nil {
		observability.CacheErrorsTotal.WithLabelValues("keys").Inc()
		return fmt.Errorf("list caches: %w", err)
	}
	for _, name := range names {
		if name == w.StaticCache() || name == w.RuntimeCache() {
			continue
		}
		if _, err := w.storage.Delete(ctx, name); err != nil {
			observability.CacheErrorsTotal.WithLabelValues("delete").Inc()
			return fmt.Errorf("delete cache %s: %w", name, err)
		}
		w.logger.Info("deleted stale cache", zap.String("cache", name))
	}
	w.state.Store(int32(StateActivated))
	w.claimed.Store(true)
	w.logger.Info("offline worker activated", zap.String("version", w.cfg.Version))
	return nil
}

// Wait blocks until all background revalidations have finished.
func (w *Worker) Wait() {
	w.fetches.Wait()
}

// RoundTrip implements http.RoundTripper.
func (w *Worker) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodGet || !w.Claimed() {
		observability.WorkerResponsesTotal.WithLabelValues(StrategyPassthrough, SourceNetwork).Inc()
		return w.next.RoundTrip(req)
	}
	switch {
	case w.isDynamic(req.URL):
		return w.staleWhileRevalidate(req)
	case isNavigation(req):
		return w.networkFirst(req)
	default:
		return w.cacheFirst(req)
	}
}

func (w *Worker) isDynamic(u *url.URL) bool {
	host := u.Hostname()
	for _, h := range w.cfg.DynamicHosts {
		if strings.Contains(host, h) {
			return true
		}
	}
	return false
}

func isNavigation(req *http.Request) bool {
	return req.Header.Get("Sec-Fetch-Mode") == "navigate"
}

// staleWhileRevalidate answers from the runtime cache when it can and refreshes
// the entry in the background; otherwise it waits for the network.
func (w *Worker) staleWhileRevalidate(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	key := req.URL.String()

	if cached, ok := w.matchIn(ctx, w.RuntimeCache(), key); ok {
		w.revalidate(req, key)
		observability.WorkerResponsesTotal.WithLabelValues(StrategySWR, SourceCache).Inc()
		return cached.Response(req), nil
	}

	header := req.Header.Clone()
	entry, err := w.fetches.Do(ctx, key, func(fetchCtx context.Context) (*cache.Entry, error) {
		return w.fetchAndStore(fetchCtx, w.RuntimeCache(), key, header)
	})
	if err == nil {
		observability.WorkerResponsesTotal.WithLabelValues(StrategySWR, SourceNetwork).Inc()
		return entry.Response(req), nil
	}
	w.logger.Debug("network unavailable for dynamic request", zap.String("url", key), zap.Error(err))
	return w.offlineFallback(req, StrategySWR), nil
}

// revalidate refreshes key in the runtime cache without blocking the caller.
func (w *Worker) revalidate(req *http.Request, key string) {
	header := req.Header.Clone()
	w.fetches.Go(key, func() {
		ctx, cancel := context.WithTimeout(context.Background(), w.cfg.RevalidateTimeout)
		defer cancel()
		entry, err := w.fetchAndStore(ctx, w.RuntimeCache(), key, header)
		switch {
		case err != nil:
			observability.WorkerRevalidationsTotal.WithLabelValues("error").Inc()
			w.logger.Debug("revalidation failed", zap.String("url", key), zap.Error(err))
		case !entry.OK():
			observability.WorkerRevalidationsTotal.WithLabelValues("not_stored").Inc()
		default:
			observability.WorkerRevalidationsTotal.WithLabelValues("success").Inc()
		}
	})
}

// networkFirst serves page navigations: the live page when reachable (and it
// refreshes the cached index document), the offline document otherwise.
func (w *Worker) networkFirst(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	entry, err := w.fetch(ctx, req.URL.String(), req.Header)
	if err != nil {
		w.logger.Debug("navigation failed, serving offline document", zap.String("url", req.URL.String()), zap.Error(err))
		return w.offlineFallback(req, StrategyNavigate), nil
	}
	if entry.OK() {
		w.put(ctx, w.StaticCache(), w.Resolve(indexDocument), entry)
	}
	observability.WorkerResponsesTotal.WithLabelValues(StrategyNavigate, SourceNetwork).Inc()
	return entry.Response(req), nil
}

// cacheFirst answers from any cache, else fetches and stores in the static
// cache. Network errors propagate.
func (w *Worker) cacheFirst(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	key := req.URL.String()

	cached, ok, err := w.storage.Match(ctx, key)
	if err != nil {
		observability.CacheErrorsTotal.WithLabelValues("match").Inc()
		w.logger.Warn("cache match failed", zap.String("url", key), zap.Error(err))
	}
	if ok {
		observability.WorkerResponsesTotal.WithLabelValues(StrategyCacheFirst, SourceCache).Inc()
		return cached.Response(req), nil
	}

	header := req.Header.Clone()
	entry, err := w.fetches.Do(ctx, key, func(fetchCtx context.Context) (*cache.Entry, error) {
		return w.fetchAndStore(fetchCtx, w.StaticCache(), key, header)
	})
	if err != nil {
		return nil, err
	}
	observability.WorkerResponsesTotal.WithLabelValues(StrategyCacheFirst, SourceNetwork).Inc()
	return entry.Response(req), nil
}

// offlineFallback returns the cached offline document, or a bare 503.
func (w *Worker) offlineFallback(req *http.Request, strategy string) *http.Response {
	doc, ok, err := w.storage.Match(req.Context(), w.Resolve(offlineDocument))
	if err != nil {
		observability.CacheErrorsTotal.WithLabelValues("match").Inc()
		w.logger.Warn("offline document lookup failed", zap.Error(err))
	}
	if ok {
		observability.WorkerResponsesTotal.WithLabelValues(strategy, SourceOffline).Inc()
		return doc.Response(req)
	}
	observability.WorkerResponsesTotal.WithLabelValues(strategy, SourceSynthetic).Inc()
	return offlineResponse(req)
}

func offlineResponse(req *http.Request) *http.Response {
	e := &cache.Entry{
		Status: http.StatusServiceUnavailable,
		Header: http.Header{"Content-Type": []string{"text/plain; charset=utf-8"}},
		Body:   []byte(offlineBody),
	}
	return e.Response(req)
}

// fetchAndStore fetches key and, when the response is 2xx, stores it in the
// named cache.
func (w *Worker) fetchAndStore(ctx context.Context, cacheName, key string, header http.Header) (*cache.Entry, error) {
	entry, err := w.fetch(ctx, key, header)
	if err != nil {
		return nil, err
	}
	if entry.OK() {
		w.put(ctx, cacheName, key, entry)
	}
	return entry, nil
}

// fetch performs a GET for rawURL on the network and buffers the response.
func (w *Worker) fetch(ctx context.Context, rawURL string, header http.Header) (*cache.Entry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if header != nil {
		req.Header = header.Clone()
	}
	resp, err := w.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.Request == nil {
		resp.Request = req
	}
	return cache.ReadEntry(resp)
}

func (w *Worker) matchIn(ctx context.Context, cacheName, key string) (*cache.Entry, bool) {
	c, err := w.storage.Open(ctx, cacheName)
	if err != nil {
		observability.CacheErrorsTotal.WithLabelValues("open").Inc()
		w.logger.Warn("cache open failed", zap.String("cache", cacheName), zap.Error(err))
		return nil, false
	}
	entry, ok, err := c.Match(ctx, key)
	if err != nil {
		observability.CacheErrorsTotal.WithLabelValues("match").Inc()
		w.logger.Warn("cache match failed", zap.String("cache", cacheName), zap.String("url", key), zap.Error(err))
		return nil, false
	}
	return entry, ok
}

// put stores entry and logs on failure; a write failure never fails the response.
func (w *Worker) put(ctx context.Context, cacheName, key string, entry *cache.Entry) {
	c, err := w.storage.Open(ctx, cacheName)
	if err == nil {
		err = c.Put(ctx, key, entry)
	}
	if err != nil {
		observability.CacheErrorsTotal.WithLabelValues("put").Inc()
		w.logger.Warn("cache put failed", zap.String("cache", cacheName), zap.String("url", key), zap.Error(err))
	}
}
