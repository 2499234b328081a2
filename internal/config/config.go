// Package config loads runtime configuration for meetsched from the
// environment.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default values for optional settings.
const (
	DefaultHTTPAddr    = ":8080"
	DefaultMetricsAddr = ":9090"
	DefaultBaseURL     = "http://localhost:8080"
	DefaultSessionTTL  = 24 * time.Hour
)

// Config holds all configuration for the application.
type Config struct {
	// HTTPAddr is the listen address for the main HTTP server.
	HTTPAddr string

	// BaseURL is the public base URL of the service, used to build the
	// OAuth redirect URL. Must be HTTPS except for loopback addresses.
	BaseURL string

	// GoogleClientID and GoogleClientSecret identify the OAuth2 client.
	GoogleClientID     string
	GoogleClientSecret string

	// SessionSecret signs the session cookie.
	SessionSecret string

	// SessionTTL is how long an idle session is kept before cleanup.
	SessionTTL time.Duration

	// DefaultTimeZone is the IANA zone applied to meeting requests that
	// carry no explicit timeZone. Resolved from $TZ when unset.
	DefaultTimeZone string

	// MetricsEnabled starts the dedicated metrics server when true.
	MetricsEnabled bool

	// MetricsAddr is the listen address for the metrics server.
	MetricsAddr string

	// Debug enables debug logging.
	Debug bool
}

// Load reads configuration from MEETSCHED_* environment variables, with
// unprefixed fallbacks for the conventional Google OAuth variable names.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MEETSCHED")
	v.AutomaticEnv()

	_ = v.BindEnv("http_addr", "MEETSCHED_HTTP_ADDR", "HTTP_ADDR")
	_ = v.BindEnv("base_url", "MEETSCHED_BASE_URL", "BASE_URL")
	_ = v.BindEnv("google_client_id", "MEETSCHED_GOOGLE_CLIENT_ID", "GOOGLE_CLIENT_ID")
	_ = v.BindEnv("google_client_secret", "MEETSCHED_GOOGLE_CLIENT_SECRET", "GOOGLE_CLIENT_SECRET")
	_ = v.BindEnv("session_secret", "MEETSCHED_SESSION_SECRET", "SESSION_SECRET")
	_ = v.BindEnv("session_ttl", "MEETSCHED_SESSION_TTL")
	_ = v.BindEnv("default_timezone", "MEETSCHED_DEFAULT_TIMEZONE", "DEFAULT_TIMEZONE")
	_ = v.BindEnv("metrics_enabled", "MEETSCHED_METRICS_ENABLED", "METRICS_ENABLED")
	_ = v.BindEnv("metrics_addr", "MEETSCHED_METRICS_ADDR", "METRICS_ADDR")
	_ = v.BindEnv("debug", "MEETSCHED_DEBUG")

	v.SetDefault("http_addr", DefaultHTTPAddr)
	v.SetDefault("base_url", DefaultBaseURL)
	v.SetDefault("session_ttl", DefaultSessionTTL)
	v.SetDefault("default_timezone", defaultTimeZone())
	v.SetDefault("metrics_enabled", true)
	v.SetDefault("metrics_addr", DefaultMetricsAddr)

	cfg := &Config{
		HTTPAddr:           v.GetString("http_addr"),
		BaseURL:            strings.TrimRight(v.GetString("base_url"), "/"),
		GoogleClientID:     v.GetString("google_client_id"),
		GoogleClientSecret: v.GetString("google_client_secret"),
		SessionSecret:      v.GetString("session_secret"),
		SessionTTL:         v.GetDuration("session_ttl"),
		DefaultTimeZone:    v.GetString("default_timezone"),
		MetricsEnabled:     v.GetBool("metrics_enabled"),
		MetricsAddr:        v.GetString("metrics_addr"),
		Debug:              v.GetBool("debug"),
	}

	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}

	return cfg, nil
}

// Validate checks that required settings are present and consistent.
func (c *Config) Validate() error {
	if c.GoogleClientID == "" {
		return fmt.Errorf("google client ID is required (set GOOGLE_CLIENT_ID)")
	}
	if c.GoogleClientSecret == "" {
		return fmt.Errorf("google client secret is required (set GOOGLE_CLIENT_SECRET)")
	}
	if c.SessionSecret == "" {
		return fmt.Errorf("session secret is required (set SESSION_SECRET)")
	}
	if err := validateBaseURL(c.BaseURL); err != nil {
		return err
	}
	return nil
}

// RedirectURL returns the OAuth callback URL derived from the base URL.
func (c *Config) RedirectURL() string {
	return c.BaseURL + "/auth/callback"
}

// validateBaseURL ensures the public base URL uses HTTPS.
// HTTP is allowed only for loopback addresses (localhost, 127.0.0.1, ::1).
func validateBaseURL(baseURL string) error {
	if baseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}

	switch u.Scheme {
	case "https":
		return nil
	case "http":
		host := u.Hostname()
		if host != "localhost" && host != "127.0.0.1" && host != "::1" {
			return fmt.Errorf("base URL must use HTTPS outside of loopback (got: %s)", baseURL)
		}
		return nil
	default:
		return fmt.Errorf("invalid base URL scheme: %q. Must be http (localhost only) or https", u.Scheme)
	}
}

// defaultTimeZone resolves the zone applied when a request carries none.
// time.Local cannot report an IANA name, so $TZ is the best host signal.
func defaultTimeZone() string {
	if tz := os.Getenv("TZ"); tz != "" {
		if _, err := time.LoadLocation(tz); err == nil {
			return tz
		}
	}
	return "UTC"
}
