package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Config holds validated environment configuration
type Config struct {
	// Required variables
	Port string

	// Twilio credentials (required unless DEVELOPMENT_MODE=true)
	TwilioAccountSid   string
	TwilioAPIKeySid    string
	TwilioAPIKeySecret string

	// Optional variables with defaults
	GoEnv           string
	LogLevel        string
	DevelopmentMode bool
	AllowedOrigins  string

	// Tracing
	TracingEnabled    bool
	OtelCollectorAddr string

	// Rate Limits
	RateLimitAPIGlobal string
	RateLimitAPITowns  string
	RateLimitAPIJoin   string
	RateLimitWsIP      string
}

// ValidateEnv validates all required environment variables and returns a Config object
// Returns an error if any required variable is missing or invalid
func ValidateEnv() (*Config, error) {
	cfg := &Config{}
	var errors []string

	// Required: PORT (valid port number)
	cfg.Port = os.Getenv("PORT")
	if cfg.Port == "" {
		errors = append(errors, "PORT is required")
	} else {
		port, err := strconv.Atoi(cfg.Port)
		if err != nil || port < 1 || port > 65535 {
			errors = append(errors, fmt.Sprintf("PORT must be a valid port number between 1 and 65535 (got '%s')", cfg.Port))
		}
	}

	cfg.DevelopmentMode = os.Getenv("DEVELOPMENT_MODE") == "true"

	// Twilio credentials mint video tokens for joining players. In development
	// mode the service falls back to locally signed tokens, so the credentials
	// become optional.
	cfg.TwilioAccountSid = os.Getenv("TWILIO_ACCOUNT_SID")
	cfg.TwilioAPIKeySid = os.Getenv("TWILIO_API_KEY_SID")
	cfg.TwilioAPIKeySecret = os.Getenv("TWILIO_API_KEY_SECRET")
	if !cfg.DevelopmentMode {
		if cfg.TwilioAccountSid == "" {
			errors = append(errors, "TWILIO_ACCOUNT_SID is required unless DEVELOPMENT_MODE=true")
		} else if !strings.HasPrefix(cfg.TwilioAccountSid, "AC") {
			errors = append(errors, "TWILIO_ACCOUNT_SID must start with 'AC'")
		}
		if cfg.TwilioAPIKeySid == "" {
			errors = append(errors, "TWILIO_API_KEY_SID is required unless DEVELOPMENT_MODE=true")
		}
		if cfg.TwilioAPIKeySecret == "" {
			errors = append(errors, "TWILIO_API_KEY_SECRET is required unless DEVELOPMENT_MODE=true")
		}
	}

	// Optional: GO_ENV (defaults to "production")
	cfg.GoEnv = os.Getenv("GO_ENV")
	if cfg.GoEnv == "" {
		cfg.GoEnv = "production"
	}

	// Optional: LOG_LEVEL (defaults to "info")
	cfg.LogLevel = os.Getenv("LOG_LEVEL")
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	cfg.AllowedOrigins = os.Getenv("ALLOWED_ORIGINS")

	// Tracing
	cfg.TracingEnabled = os.Getenv("TRACING_ENABLED") == "true"
	cfg.OtelCollectorAddr = getEnvOrDefault("OTEL_COLLECTOR_ADDR", "localhost:4317")
	if cfg.TracingEnabled && !isValidHostPort(cfg.OtelCollectorAddr) {
		errors = append(errors, fmt.Sprintf("OTEL_COLLECTOR_ADDR must be in format 'host:port' (got '%s')", cfg.OtelCollectorAddr))
	}

	// Rate Limits (Defaults: M = Minute, H = Hour)
	cfg.RateLimitAPIGlobal = getEnvOrDefault("RATE_LIMIT_API_GLOBAL", "1000-M")
	cfg.RateLimitAPITowns = getEnvOrDefault("RATE_LIMIT_API_TOWNS", "100-M")
	cfg.RateLimitAPIJoin = getEnvOrDefault("RATE_LIMIT_API_JOIN", "60-M")
	cfg.RateLimitWsIP = getEnvOrDefault("RATE_LIMIT_WS_IP", "100-M")

	// If there are validation errors, return them
	if len(errors) > 0 {
		return nil, fmt.Errorf("environment validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	// Log validated configuration (with secrets redacted)
	logValidatedConfig(cfg)

	return cfg, nil
}

// isValidHostPort checks if a string is in the format "host:port"
func isValidHostPort(addr string) bool {
	parts := strings.Split(addr, ":")
	if len(parts) != 2 {
		return false
	}

	// Validate port is a number
	port, err := strconv.Atoi(parts[1])
	if err != nil || port < 1 || port > 65535 {
		return false
	}

	// Validate host is not empty
	if parts[0] == "" {
		return false
	}

	return true
}

// logValidatedConfig logs the validated configuration with secrets redacted
func logValidatedConfig(cfg *Config) {
	slog.Info("✅ Environment configuration validated successfully")
	slog.Info("Configuration",
		"port", cfg.Port,
		"twilio_account_sid", redactSecret(cfg.TwilioAccountSid),
		"twilio_api_key_sid", redactSecret(cfg.TwilioAPIKeySid),
		"go_env", cfg.GoEnv,
		"log_level", cfg.LogLevel,
		"development_mode", cfg.DevelopmentMode,
		"tracing_enabled", cfg.TracingEnabled,
		"rate_limit_api_global", cfg.RateLimitAPIGlobal,
	)
}

// getEnvOrDefault returns the value of the environment variable or a default value if not set
func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// redactSecret redacts a secret by showing only the first 8 characters
func redactSecret(secret string) string {
	if len(secret) <= 8 {
		return "***"
	}
	return secret[:8] + "***"
}
