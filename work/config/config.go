package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration values for the stream checker.
// Values are read from the environment (optionally seeded from a .env file)
// and validated once at startup; the resulting struct is passed explicitly
// into every component that needs it. There are no mutable process globals.
type Config struct {
	DatabaseURL   string        // SQLite database path/DSN (mandatory)
	Source        string        // Source tag written into every check record, defaults to the hostname
	UserAgent     string        // HTTP User-Agent header for outbound requests
	Retries       int           // Max number of full resolution retries per station
	MaxDepth      int           // Max combined redirect/playlist recursion depth
	TCPTimeout    time.Duration // Connect/read timeout for a single socket
	PauseSeconds  time.Duration // Sleep between batches when nothing was due
	BatchSize     int           // Stations pulled from the database per batch
	Concurrency   int           // Stations checked in parallel
	StalenessHrs  int           // A station is due when its last check is older than this
	RateLimit     int           // Outbound check dispatches per second (0 disables)
	Delete        bool          // Delete long-broken stations during maintenance
	Loop          bool          // Keep checking batches forever
	Favicon       bool          // Validate and repair station favicons
	Verbosity     int           // 0=info, 1+=debug
	Listen        string        // Address for the metrics/status HTTP server
	ObfuscateUrls bool          // Obfuscate station URLs in log output
}

// Load reads the configuration from the environment. A .env file in the
// working directory is honored when present but never required. The only
// mandatory key is DATABASE_URL; everything else falls back to a default.
func Load() (*Config, error) {

	// best effort; a missing .env file is the normal case in production
	_ = godotenv.Load()

	hostname, _ := os.Hostname()

	cfg := &Config{
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		Source:        envString("SOURCE", hostname),
		UserAgent:     envString("USERAGENT", "stream-check/1.0"),
		Retries:       envInt("RETRIES", 5),
		MaxDepth:      envInt("MAX_DEPTH", 5),
		TCPTimeout:    time.Duration(envInt("TCP_TIMEOUT", 10)) * time.Second,
		PauseSeconds:  time.Duration(envInt("PAUSE_SECONDS", 10)) * time.Second,
		BatchSize:     envInt("STATIONS", 50),
		Concurrency:   envInt("CONCURRENCY", 10),
		StalenessHrs:  envInt("STALENESS_HOURS", 24),
		RateLimit:     envInt("RATE_LIMIT", 0),
		Delete:        envBool("DELETE", false),
		Loop:          envBool("LOOP", false),
		Favicon:       envBool("FAVICON", false),
		Verbosity:     envInt("VERBOSE", 0),
		Listen:        envString("LISTEN", ":9119"),
		ObfuscateUrls: envBool("OBFUSCATE_URLS", false),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL must be set")
	}

	validateAndSetDefaults(cfg)

	return cfg, nil
}

// validateAndSetDefaults ensures all config values are usable,
// clamping invalid ones back to their defaults.
func validateAndSetDefaults(cfg *Config) {
	if cfg.Source == "" {
		cfg.Source = "stream-check"
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "stream-check/1.0"
	}
	if cfg.Retries <= 0 {
		cfg.Retries = 5
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = 5
	}
	if cfg.TCPTimeout <= 0 {
		cfg.TCPTimeout = 10 * time.Second
	}
	if cfg.PauseSeconds <= 0 {
		cfg.PauseSeconds = 10 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 10
	}
	if cfg.StalenessHrs <= 0 {
		cfg.StalenessHrs = 24
	}
	if cfg.RateLimit < 0 {
		cfg.RateLimit = 0
	}
	if cfg.Listen == "" {
		cfg.Listen = ":9119"
	}
}

// LogURL returns either the original URL or an obfuscated version for logging,
// depending on the ObfuscateUrls setting.
func (c *Config) LogURL(url string) string {
	if c.ObfuscateUrls {
		return ObfuscateURL(url)
	}
	return url
}

// ObfuscateURL masks the path, query and fragment of a URL so station URLs
// with embedded tokens can be logged safely.
//
// Example:
//
//	Input:  "http://example.com/secret/stream.m3u8?token=abc"
//	Output: "http://example.com/***?***"
func ObfuscateURL(urlStr string) string {
	if urlStr == "" {
		return ""
	}
	u, err := url.Parse(urlStr)
	if err != nil {
		return "***OBFUSCATED***"
	}
	result := u.Scheme + "://" + u.Host
	if u.Path != "" && u.Path != "/" {
		result += "/***"
	}
	if u.RawQuery != "" {
		result += "?***"
	}
	if u.Fragment != "" {
		result += "#***"
	}
	return result
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
