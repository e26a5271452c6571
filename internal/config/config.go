package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Storage backends shared by the offline cache and the dashboard key-value store.
const (
	BackendInMemory  = "in_memory"
	BackendRedis     = "redis"
	BackendMemcached = "memcached"
)

// Config holds service configuration loaded from YAML and env.
type Config struct {
	TestingMode bool

	ServerPort string
	PublicURL  string // base for share links

	GeocodingURL    string
	ForecastURL     string
	AirQualityURL   string
	ReverseURL      string
	RadarURL        string
	RadarTileURL    string
	UserAgent       string
	UpstreamTimeout time.Duration

	RequestTimeout time.Duration

	OfflineVersion    string
	ShellOrigin       string
	RevalidateTimeout time.Duration

	StorageBackend string // "in_memory", "redis" or "memcached"
	StoragePrefix  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int
	MemcachedTTL          time.Duration

	RateLimitRPS   int
	RateLimitBurst int

	RadarRefreshInterval time.Duration

	ShutdownTimeout  time.Duration
	ReadyDelay       time.Duration
	DegradedWindow   time.Duration
	DegradedErrorPct int
}

type fileConfig struct {
	TestingMode *bool `yaml:"testing_mode"`

	Server struct {
		Port      string `yaml:"port"`
		PublicURL string `yaml:"public_url"`
	} `yaml:"server"`

	Upstream struct {
		GeocodingURL  string `yaml:"geocoding_url"`
		ForecastURL   string `yaml:"forecast_url"`
		AirQualityURL string `yaml:"air_quality_url"`
		ReverseURL    string `yaml:"reverse_url"`
		RadarURL      string `yaml:"radar_url"`
		RadarTileURL  string `yaml:"radar_tile_url"`
		UserAgent     string `yaml:"user_agent"`
		Timeout       string `yaml:"timeout"`
	} `yaml:"upstream"`

	Request struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"request"`

	Offline struct {
		Version           string `yaml:"version"`
		ShellOrigin       string `yaml:"shell_origin"`
		RevalidateTimeout string `yaml:"revalidate_timeout"`
	} `yaml:"offline"`

	Storage struct {
		Backend string `yaml:"backend"`
		Prefix  string `yaml:"prefix"`
		Redis   struct {
			Addr string `yaml:"addr"`
			DB   int    `yaml:"db"`
		} `yaml:"redis"`
		Memcached struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
			TTL          string `yaml:"ttl"`
		} `yaml:"memcached"`
	} `yaml:"storage"`

	Reliability struct {
		RateLimitRPS   int `yaml:"rate_limit_rps"`
		RateLimitBurst int `yaml:"rate_limit_burst"`
	} `yaml:"reliability"`

	Radar struct {
		RefreshInterval string `yaml:"refresh_interval"`
	} `yaml:"radar"`

	Shutdown struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"shutdown"`

	Lifecycle struct {
		ReadyDelay       string `yaml:"ready_delay"`
		DegradedWindow   string `yaml:"degraded_window"`
		DegradedErrorPct int    `yaml:"degraded_error_pct"`
	} `yaml:"lifecycle"`
}

type secretsFile struct {
	RedisPassword string `yaml:"redis_password"`
}

// Load reads configuration from config/{ENV_NAME}.yaml (default dev) and the
// optional config/secrets.yaml, after loading a .env file into the environment
// when one exists. Env vars override file values. Call from project root.
func Load() (*Config, error) {
	_ = godotenv.Load()

	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	configPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg := &Config{}
	if fc.TestingMode != nil {
		cfg.TestingMode = *fc.TestingMode
	}

	cfg.ServerPort = envOr("SERVER_PORT", fc.Server.Port, "8080")
	cfg.PublicURL = envOr("PUBLIC_URL", fc.Server.PublicURL, "http://localhost:"+cfg.ServerPort+"/")

	cfg.GeocodingURL = strings.TrimSpace(fc.Upstream.GeocodingURL)
	cfg.ForecastURL = strings.TrimSpace(fc.Upstream.ForecastURL)
	cfg.AirQualityURL = strings.TrimSpace(fc.Upstream.AirQualityURL)
	cfg.ReverseURL = strings.TrimSpace(fc.Upstream.ReverseURL)
	cfg.RadarURL = strings.TrimSpace(fc.Upstream.RadarURL)
	cfg.RadarTileURL = strings.TrimSpace(fc.Upstream.RadarTileURL)
	cfg.UserAgent = strings.TrimSpace(fc.Upstream.UserAgent)
	cfg.UpstreamTimeout = parseDurationOrZero(fc.Upstream.Timeout, 10*time.Second)

	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, 15*time.Second)

	cfg.OfflineVersion = strings.TrimSpace(fc.Offline.Version)
	if cfg.OfflineVersion == "" {
		cfg.OfflineVersion = "wpwa-v1.0.0"
	}
	cfg.ShellOrigin = strings.TrimSpace(fc.Offline.ShellOrigin)
	if cfg.ShellOrigin == "" {
		cfg.ShellOrigin = "https://app.local/"
	}
	cfg.RevalidateTimeout = parseDuration(fc.Offline.RevalidateTimeout, 15*time.Second)

	cfg.StorageBackend = strings.ToLower(envOr("STORAGE_BACKEND", fc.Storage.Backend, BackendInMemory))
	cfg.StoragePrefix = envOr("STORAGE_PREFIX", fc.Storage.Prefix, "wpwa:")

	cfg.RedisAddr = envOr("REDIS_ADDR", fc.Storage.Redis.Addr, "localhost:6379")
	cfg.RedisDB = fc.Storage.Redis.DB
	if v := strings.TrimSpace(os.Getenv("REDIS_DB")); v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("REDIS_DB must be an integer, got %q", v)
		}
		cfg.RedisDB = db
	}
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	if cfg.RedisPassword == "" {
		secretsPath := filepath.Join(cwd, "config", "secrets.yaml")
		secretsData, err := os.ReadFile(secretsPath)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read secrets file: %w", err)
			}
		} else {
			var sec secretsFile
			if err := yaml.Unmarshal(secretsData, &sec); err != nil {
				return nil, fmt.Errorf("parse secrets file: %w", err)
			}
			cfg.RedisPassword = sec.RedisPassword
		}
	}

	cfg.MemcachedAddrs = envOr("MEMCACHED_ADDRS", fc.Storage.Memcached.Addrs, "localhost:11211")
	cfg.MemcachedTimeout = parseDuration(fc.Storage.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = fc.Storage.Memcached.MaxIdleConns
	if cfg.MemcachedMaxIdleConns <= 0 {
		cfg.MemcachedMaxIdleConns = 2
	}
	cfg.MemcachedTTL = parseDuration(fc.Storage.Memcached.TTL, 7*24*time.Hour)

	cfg.RateLimitRPS = fc.Reliability.RateLimitRPS
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 20
	}
	cfg.RateLimitBurst = fc.Reliability.RateLimitBurst
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 40
	}

	cfg.RadarRefreshInterval = parseDuration(fc.Radar.RefreshInterval, 10*time.Minute)

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)
	cfg.ReadyDelay = parseDuration(fc.Lifecycle.ReadyDelay, 0)
	cfg.DegradedWindow = parseDuration(fc.Lifecycle.DegradedWindow, 60*time.Second)
	cfg.DegradedErrorPct = fc.Lifecycle.DegradedErrorPct
	if cfg.DegradedErrorPct <= 0 {
		cfg.DegradedErrorPct = 50
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envOr returns the trimmed env var when set, else the file value, else def.
func envOr(key, fileVal, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	if v := strings.TrimSpace(fileVal); v != "" {
		return v
	}
	return def
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on empty string or parse error.
// Returns zero or negative durations as-is (caller should handle fallback).
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// validate performs post-load validation. RequestTimeout is raised above
// UpstreamTimeout when needed so a request can outlive its upstream call.
func validate(cfg *Config) error {
	if cfg.UpstreamTimeout <= 0 {
		return fmt.Errorf("UPSTREAM_TIMEOUT must be positive")
	}
	if cfg.RequestTimeout <= cfg.UpstreamTimeout {
		cfg.RequestTimeout = cfg.UpstreamTimeout + time.Second
	}
	switch cfg.StorageBackend {
	case BackendInMemory, BackendRedis, BackendMemcached:
	default:
		return fmt.Errorf("storage.backend must be in_memory, redis or memcached, got %q", cfg.StorageBackend)
	}
	if cfg.DegradedErrorPct > 100 {
		return fmt.Errorf("lifecycle.degraded_error_pct must be at most 100, got %d", cfg.DegradedErrorPct)
	}
	return nil
}
