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
	Site      SiteConfig
	Download  DownloadConfig
	Cache     CacheConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the Rod browser instance backing one scheduler.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// DefaultProxy is the proxy URL for all page loads.
	DefaultProxy string

	// Stealth injects navigator.webdriver masking before every document.
	Stealth bool // default: false

	// BlockedResourceTypes lists resource types the page never loads.
	// default: ["Image", "Stylesheet", "Font", "Media"]
	BlockedResourceTypes []string

	// BlockAds drops requests to well-known ad and tracking hosts.
	BlockAds bool // default: true

	// BlockedHosts lists extra hosts (and their subdomains) the page never
	// contacts, e.g. a site's comment or poll widgets.
	BlockedHosts []string
}

// SiteConfig selects the news site to extract.
type SiteConfig struct {
	// Name selects a built-in configuration (see site.Lookup). default: "vrt"
	Name string

	// The fields below define a custom site; all three URL/script fields are
	// required when TOCURL is set, and they override Name.
	TOCURL        string
	TOCScript     string // path to the table-of-contents extraction script
	ArticleScript string // path to the article extraction script
	Locale        string // BCP 47, e.g. "nl-BE"; default: "en"
	DisplayName   string
}

// DownloadConfig controls the download schedulers.
type DownloadConfig struct {
	// WaitTimeout bounds how long a synchronous caller waits for a download.
	// The download itself keeps running.
	WaitTimeout time.Duration // default: 30s

	// ScriptTimeout bounds the wait for the extraction script's finished()
	// call. Zero waits forever.
	ScriptTimeout time.Duration // default: 0

	// RefreshInterval is how often the table of contents is re-extracted.
	// Zero disables the refresh loop.
	RefreshInterval time.Duration // default: 15m

	// PrefetchArticles is the number of leading articles downloaded after
	// every table-of-contents refresh.
	PrefetchArticles int // default: 0

	// DegradedQueue is the article queue length at which health reports
	// "degraded".
	DegradedQueue int // default: 50
}

// CacheConfig controls the registry of downloaded resources.
type CacheConfig struct {
	// TTL is how long a downloaded resource is served before a fresh
	// instance replaces it.
	TTL time.Duration // default: 15m

	// MaxEntries is the maximum number of article resources kept.
	MaxEntries int // default: 500
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: true

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

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("GAZETTE_HOST", "0.0.0.0"),
			Port: envIntOr("GAZETTE_PORT", 8080),
			Mode: envOr("GAZETTE_MODE", "release"),
		},
		Browser: BrowserConfig{
			Headless:     envBoolOr("GAZETTE_HEADLESS", true),
			NoSandbox:    envBoolOr("GAZETTE_NO_SANDBOX", false),
			BrowserBin:   os.Getenv("GAZETTE_BROWSER_BIN"),
			DefaultProxy: os.Getenv("GAZETTE_PROXY"),
			Stealth:      envBoolOr("GAZETTE_STEALTH", false),
			BlockedResourceTypes: envSliceOr("GAZETTE_BLOCKED_RESOURCES", []string{
				"Image", "Stylesheet", "Font", "Media",
			}),
			BlockAds:     envBoolOr("GAZETTE_BLOCK_ADS", true),
			BlockedHosts: envSliceOr("GAZETTE_BLOCKED_HOSTS", nil),
		},
		Site: SiteConfig{
			Name:          envOr("GAZETTE_SITE", "vrt"),
			TOCURL:        os.Getenv("GAZETTE_SITE_TOC_URL"),
			TOCScript:     os.Getenv("GAZETTE_SITE_TOC_SCRIPT"),
			ArticleScript: os.Getenv("GAZETTE_SITE_ARTICLE_SCRIPT"),
			Locale:        envOr("GAZETTE_SITE_LOCALE", "en"),
			DisplayName:   envOr("GAZETTE_SITE_NAME", "Custom site"),
		},
		Download: DownloadConfig{
			WaitTimeout:      envDurationOr("GAZETTE_WAIT_TIMEOUT", 30*time.Second),
			ScriptTimeout:    envDurationOr("GAZETTE_SCRIPT_TIMEOUT", 0),
			RefreshInterval:  envDurationOr("GAZETTE_REFRESH_INTERVAL", 15*time.Minute),
			PrefetchArticles: envIntOr("GAZETTE_PREFETCH_ARTICLES", 0),
			DegradedQueue:    envIntOr("GAZETTE_DEGRADED_QUEUE", 50),
		},
		Cache: CacheConfig{
			TTL:        envDurationOr("GAZETTE_CACHE_TTL", 15*time.Minute),
			MaxEntries: envIntOr("GAZETTE_CACHE_MAX_ENTRIES", 500),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("GAZETTE_AUTH_ENABLED", true),
			APIKeys: envSliceOr("GAZETTE_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("GAZETTE_RATE_RPS", 5.0),
			Burst:             envIntOr("GAZETTE_RATE_BURST", 10),
		},
		Log: LogConfig{
			Level:  envOr("GAZETTE_LOG_LEVEL", "info"),
			Format: envOr("GAZETTE_LOG_FORMAT", "json"),
		},
	}
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
