// Package config handles application configuration and environment loading.
package config

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// AuthConfig holds identity provider configuration. When neither IssuerURL
// nor JWKSURL is set the engine falls back to structural credential checks,
// which is acceptable only in development.
type AuthConfig struct {
	IssuerURL string // OIDC issuer URL for .well-known discovery
	JWKSURL   string // direct JWKS URL when discovery is unavailable
	Audience  string // required token audience; empty disables the check
}

// OIDCEnabled reports whether an external identity provider is configured.
func (a *AuthConfig) OIDCEnabled() bool {
	return a.IssuerURL != "" || a.JWKSURL != ""
}

// LLMConfig holds the completion backend connection settings.
type LLMConfig struct {
	Endpoint string
	APIKey   string
	Model    string
	Timeout  time.Duration
}

// WarehouseConfig holds the SQL warehouse connection settings. When
// Endpoint is empty the engine can fall back to a local database, which is
// refused in production because it bypasses per-caller access enforcement.
type WarehouseConfig struct {
	Endpoint    string
	Timeout     time.Duration
	LocalDBPath string
}

// Config holds the full engine configuration.
type Config struct {
	ListenAddr string // HTTP listen address (default ":8080")
	LogLevel   string // log level: debug, info, warn, error (default "info")
	Env        string // "development" (default) or "production"

	ContextsDir        string // directory of domain context YAML files
	ContextsRescanCron string // cron schedule for context directory rescans; empty disables

	MaxGenerationAttempts int // generation budget per question (default 2)
	DefaultRowLimit       int // LIMIT injected or clamped by validation (default 100)
	MaxResultBytes        int // per-answer result size budget (default 1 MiB)

	AuditDBPath string // SQLite file for audit records

	RateLimitRPS   float64 // sustained requests per second per client (default 20)
	RateLimitBurst int     // burst capacity (default 40)

	CORSAllowedOrigins []string // allowed origins for CORS (default: ["*"])

	Auth      AuthConfig
	LLM       LLMConfig
	Warehouse WarehouseConfig

	// Warnings collects non-fatal findings from config loading. They are
	// logged by the caller once the logger exists.
	Warnings []string
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// IsProduction returns true when the engine runs in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// LoadFromEnv loads configuration from environment variables, applies
// defaults, and enforces the production hardening rules.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		ListenAddr:         os.Getenv("LISTEN_ADDR"),
		LogLevel:           os.Getenv("LOG_LEVEL"),
		Env:                os.Getenv("ENV"),
		ContextsDir:        os.Getenv("CONTEXTS_DIR"),
		ContextsRescanCron: os.Getenv("CONTEXTS_RESCAN_CRON"),
		AuditDBPath:        os.Getenv("AUDIT_DB_PATH"),
		Auth: AuthConfig{
			IssuerURL: os.Getenv("AUTH_ISSUER_URL"),
			JWKSURL:   os.Getenv("AUTH_JWKS_URL"),
			Audience:  os.Getenv("AUTH_AUDIENCE"),
		},
		LLM: LLMConfig{
			Endpoint: os.Getenv("LLM_ENDPOINT"),
			APIKey:   os.Getenv("LLM_API_KEY"),
			Model:    os.Getenv("LLM_MODEL"),
			Timeout:  parseDurationEnv("LLM_TIMEOUT", 30*time.Second),
		},
		Warehouse: WarehouseConfig{
			Endpoint:    os.Getenv("WAREHOUSE_ENDPOINT"),
			Timeout:     parseDurationEnv("WAREHOUSE_TIMEOUT", 60*time.Second),
			LocalDBPath: os.Getenv("LOCAL_DB_PATH"),
		},
		MaxGenerationAttempts: parseIntEnv("MAX_GENERATION_ATTEMPTS", 2),
		DefaultRowLimit:       parseIntEnv("DEFAULT_ROW_LIMIT", 100),
		MaxResultBytes:        parseIntEnv("MAX_RESULT_BYTES", 1<<20),
	}

	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RateLimitRPS = f
		}
	}
	cfg.RateLimitBurst = parseIntEnv("RATE_LIMIT_BURST", 0)

	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		origins := strings.Split(v, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		cfg.CORSAllowedOrigins = compactNonEmpty(origins)
	}

	// Defaults.
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.ContextsDir == "" {
		cfg.ContextsDir = "contexts"
	}
	if cfg.AuditDBPath == "" {
		cfg.AuditDBPath = "copilot_audit.sqlite"
	}
	if cfg.RateLimitRPS == 0 {
		cfg.RateLimitRPS = 20
	}
	if cfg.RateLimitBurst == 0 {
		cfg.RateLimitBurst = 40
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		cfg.CORSAllowedOrigins = []string{"*"}
	}

	if cfg.LLM.Endpoint == "" {
		return nil, fmt.Errorf("LLM_ENDPOINT is required")
	}
	if cfg.MaxGenerationAttempts < 1 {
		return nil, fmt.Errorf("MAX_GENERATION_ATTEMPTS must be at least 1")
	}

	if !cfg.Auth.OIDCEnabled() {
		cfg.Warnings = append(cfg.Warnings,
			"no identity provider configured; token signatures will not be verified. Set AUTH_ISSUER_URL or AUTH_JWKS_URL")
	}
	if cfg.Auth.Audience == "" {
		cfg.Warnings = append(cfg.Warnings,
			"AUTH_AUDIENCE not set; tokens addressed to any platform will be accepted")
	}
	if cfg.Warehouse.Endpoint == "" {
		cfg.Warnings = append(cfg.Warnings,
			"WAREHOUSE_ENDPOINT not set; falling back to the local database, which does not enforce per-caller access")
	}

	// Production mode: insecure fallbacks are fatal.
	if cfg.IsProduction() {
		if !cfg.Auth.OIDCEnabled() {
			return nil, fmt.Errorf("an identity provider is required in production (set AUTH_ISSUER_URL or AUTH_JWKS_URL)")
		}
		if cfg.Auth.Audience == "" {
			return nil, fmt.Errorf("AUTH_AUDIENCE is required in production; without it the audience check is skipped")
		}
		if cfg.Warehouse.Endpoint == "" {
			return nil, fmt.Errorf("WAREHOUSE_ENDPOINT is required in production; the local database fallback has no access enforcement")
		}
		if len(cfg.CORSAllowedOrigins) == 1 && cfg.CORSAllowedOrigins[0] == "*" {
			return nil, fmt.Errorf("CORS wildcard (*) is not allowed in production (ENV=production)")
		}
	}

	return cfg, nil
}

func parseIntEnv(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return n
}

func parseDurationEnv(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func compactNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// LoadDotEnv reads a .env file and sets any variables not already in the
// environment. Lines must be in KEY=VALUE format. Comments (#) and blank
// lines are skipped.
func LoadDotEnv(path string) error {
	f, err := os.Open(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		if os.IsNotExist(err) {
			return nil // .env not found is not an error
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = stripQuotes(strings.TrimSpace(value))
		// Real environment variables take precedence over the file.
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("setenv %s: %w", key, err)
			}
		}
	}
	return scanner.Err()
}

// stripQuotes removes surrounding double or single quotes from a value.
// Only strips if both the first and last characters are matching quotes.
func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
