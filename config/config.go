package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Engine    EngineConfig
	CDP       CDPConfig
	Session   SessionConfig
	Batch     BatchConfig
	Cache     CacheConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Webhook   WebhookConfig
	Storage   StorageConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the one-shot browser engine and launched sessions.
type BrowserConfig struct {
	// Headless controls whether launched browsers run headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// Bin overrides the Chromium binary path.
	Bin string

	// Proxy is the default proxy URL for browser traffic.
	Proxy string
}

// EngineConfig controls the fetch engines and the fallback chain.
type EngineConfig struct {
	// HTTPTimeout is the deadline for the direct HTTP engine.
	HTTPTimeout time.Duration // default: 10s

	// PoolMaxConnsPerHost bounds concurrent connections per origin pool.
	PoolMaxConnsPerHost int // default: 6

	// PoolIdleTimeout is the keep-alive timeout for pooled connections.
	PoolIdleTimeout time.Duration // default: 90s

	// AttachEndpoint is the remote-debugging endpoint for the attached
	// engine. Empty disables the attached engine unless a local
	// DevToolsActivePort file can be discovered.
	AttachEndpoint string
}

// CDPConfig controls the remote-debugging wire client.
type CDPConfig struct {
	// CallTimeout is the default deadline for a single protocol call.
	CallTimeout time.Duration // default: 30s

	// PollInterval is the fixed delay between navigation readiness polls.
	PollInterval time.Duration // default: 100ms

	// StaleAfter is the age at which an unanswered correlation is reclaimed.
	StaleAfter time.Duration // default: 60s

	// SweepInterval is the period of the stale-correlation sweep.
	SweepInterval time.Duration // default: 30s
}

// SessionConfig controls the persistent session manager.
type SessionConfig struct {
	// ProfileDir is the root directory for launched profile data.
	ProfileDir string // default: os.TempDir()/acquire-profiles

	// IdleThreshold is the inactivity age after which a session is closed.
	IdleThreshold time.Duration // default: 10m

	// EvictInterval is the period of the idle-eviction scan.
	EvictInterval time.Duration // default: 1m
}

// BatchConfig controls batch acquisition defaults.
type BatchConfig struct {
	// Concurrency is the default window size.
	Concurrency int // default: 3

	// Retries is the default number of additional attempts per target.
	Retries int // default: 1

	// RetryDelay is the base backoff between attempts.
	RetryDelay time.Duration // default: 1s

	// InterBatchDelayMax caps the randomized pause between windows.
	InterBatchDelayMax time.Duration // default: 2s
}

// CacheConfig controls the acquisition result cache.
type CacheConfig struct {
	// MaxEntries is the maximum number of cached results.
	MaxEntries int // default: 1000

	// TTL is the default freshness window for cached results.
	TTL time.Duration // default: 1h
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: false

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 5

	// Burst is the maximum burst size per API key.
	Burst int // default: 10
}

// WebhookConfig controls outbound event delivery.
type WebhookConfig struct {
	// Secret signs outbound webhook bodies when non-empty.
	Secret string
}

// StorageConfig controls the key-value artifact store.
type StorageConfig struct {
	// Path is the JSON file backing the store. Empty selects the in-memory
	// store (artifacts are lost on restart).
	Path string
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("ACQUIRE_HOST", "0.0.0.0"),
			Port: envIntOr("ACQUIRE_PORT", 8080),
			Mode: envOr("ACQUIRE_MODE", "release"),
		},
		Browser: BrowserConfig{
			Headless:  envBoolOr("ACQUIRE_HEADLESS", true),
			NoSandbox: envBoolOr("ACQUIRE_NO_SANDBOX", false),
			Bin:       os.Getenv("ACQUIRE_BROWSER_BIN"),
			Proxy:     os.Getenv("ACQUIRE_PROXY"),
		},
		Engine: EngineConfig{
			HTTPTimeout:         envDurationOr("ACQUIRE_HTTP_TIMEOUT", 10*time.Second),
			PoolMaxConnsPerHost: envIntOr("ACQUIRE_POOL_MAX_CONNS", 6),
			PoolIdleTimeout:     envDurationOr("ACQUIRE_POOL_IDLE_TIMEOUT", 90*time.Second),
			AttachEndpoint:      os.Getenv("ACQUIRE_ATTACH_ENDPOINT"),
		},
		CDP: CDPConfig{
			CallTimeout:   envDurationOr("ACQUIRE_CDP_CALL_TIMEOUT", 30*time.Second),
			PollInterval:  envDurationOr("ACQUIRE_CDP_POLL_INTERVAL", 100*time.Millisecond),
			StaleAfter:    envDurationOr("ACQUIRE_CDP_STALE_AFTER", 60*time.Second),
			SweepInterval: envDurationOr("ACQUIRE_CDP_SWEEP_INTERVAL", 30*time.Second),
		},
		Session: SessionConfig{
			ProfileDir:    envOr("ACQUIRE_PROFILE_DIR", defaultProfileDir()),
			IdleThreshold: envDurationOr("ACQUIRE_SESSION_IDLE", 10*time.Minute),
			EvictInterval: envDurationOr("ACQUIRE_SESSION_EVICT_INTERVAL", time.Minute),
		},
		Batch: BatchConfig{
			Concurrency:        envIntOr("ACQUIRE_BATCH_CONCURRENCY", 3),
			Retries:            envIntOr("ACQUIRE_BATCH_RETRIES", 1),
			RetryDelay:         envDurationOr("ACQUIRE_BATCH_RETRY_DELAY", time.Second),
			InterBatchDelayMax: envDurationOr("ACQUIRE_BATCH_WINDOW_DELAY_MAX", 2*time.Second),
		},
		Cache: CacheConfig{
			MaxEntries: envIntOr("ACQUIRE_CACHE_MAX_ENTRIES", 1000),
			TTL:        envDurationOr("ACQUIRE_CACHE_TTL", time.Hour),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("ACQUIRE_AUTH_ENABLED", false),
			APIKeys: envSliceOr("ACQUIRE_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("ACQUIRE_RATE_RPS", 5.0),
			Burst:             envIntOr("ACQUIRE_RATE_BURST", 10),
		},
		Webhook: WebhookConfig{
			Secret: os.Getenv("ACQUIRE_WEBHOOK_SECRET"),
		},
		Storage: StorageConfig{
			Path: os.Getenv("ACQUIRE_STORAGE_PATH"),
		},
		Log: LogConfig{
			Level:  envOr("ACQUIRE_LOG_LEVEL", "info"),
			Format: envOr("ACQUIRE_LOG_FORMAT", "json"),
		},
	}
}

func defaultProfileDir() string {
	return os.TempDir() + string(os.PathSeparator) + "acquire-profiles"
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
