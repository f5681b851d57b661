package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration values for the application
type Config struct {
	Port           string
	AllowedOrigins []string
	LogLevel       string
	Environment    string
	RedisURL       string // Optional; sessions stay in memory without it

	// Identity verification
	UniversalPassword  string
	OTPExpiry          time.Duration
	OTPMaxAttempts     int
	OTPSweepSchedule   string // cron spec, e.g. "@every 5m"
	OTPFallbackEnabled bool   // Surface the code when delivery fails
	SessionTTL         time.Duration
	GatewayURL         string
	GatewayTimeout     time.Duration
	GatewayAttempts    int
	GatewayBackoff     time.Duration
	GatewayAPIKey      string

	// Tokens and admin
	JWTSecret     string
	TokenTTL      time.Duration
	AdminUsername string
	AdminPassword string

	// Voting
	RosterPath     string
	VotingClosesAt *time.Time
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		AllowedOrigins:     parseOrigins(getEnv("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:5174")),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		Environment:        getEnv("ENVIRONMENT", "production"),
		RedisURL:           getEnv("REDIS_URL", ""),
		UniversalPassword:  getEnv("UNIVERSAL_PASSWORD", ""),
		OTPExpiry:          getDurationEnv("OTP_EXPIRY", 10*time.Minute),
		OTPMaxAttempts:     getIntEnv("OTP_MAX_ATTEMPTS", 5),
		OTPSweepSchedule:   getEnv("OTP_SWEEP_SCHEDULE", "@every 5m"),
		OTPFallbackEnabled: getBoolEnv("OTP_FALLBACK_ENABLED", true),
		SessionTTL:         getDurationEnv("SESSION_TTL", 30*time.Minute),
		GatewayURL:         getEnv("OTP_GATEWAY_URL", ""),
		GatewayTimeout:     getDurationEnv("OTP_GATEWAY_TIMEOUT", 15*time.Second),
		GatewayAttempts:    getIntEnv("OTP_GATEWAY_ATTEMPTS", 2),
		GatewayBackoff:     getDurationEnv("OTP_GATEWAY_BACKOFF", time.Second),
		GatewayAPIKey:      getEnv("OTP_GATEWAY_API_KEY", ""),
		JWTSecret:          getEnv("JWT_SECRET", ""),
		TokenTTL:           getDurationEnv("TOKEN_TTL", 2*time.Hour),
		AdminUsername:      getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword:      getEnv("ADMIN_PASSWORD", ""),
		RosterPath:         getEnv("ROSTER_PATH", ""),
	}

	if raw := getEnv("VOTING_CLOSES_AT", ""); raw != "" {
		closesAt, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, fmt.Errorf("invalid VOTING_CLOSES_AT: %w", err)
		}
		cfg.VotingClosesAt = &closesAt
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the values the service cannot run without
func (c *Config) Validate() error {
	if c.UniversalPassword == "" {
		return fmt.Errorf("UNIVERSAL_PASSWORD is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.AdminPassword == "" {
		return fmt.Errorf("ADMIN_PASSWORD is required")
	}
	if c.OTPExpiry <= 0 {
		return fmt.Errorf("OTP_EXPIRY must be positive")
	}
	if c.OTPMaxAttempts < 1 {
		return fmt.Errorf("OTP_MAX_ATTEMPTS must be at least 1")
	}
	if c.GatewayAttempts < 1 {
		return fmt.Errorf("OTP_GATEWAY_ATTEMPTS must be at least 1")
	}
	return nil
}

// getEnv gets an environment variable with a fallback value
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// parseOrigins parses comma-separated origins into a slice
func parseOrigins(origins string) []string {
	if origins == "" {
		return []string{}
	}

	parts := strings.Split(origins, ",")
	result := make([]string, 0, len(parts))

	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// getBoolEnv gets a boolean environment variable with a fallback value
func getBoolEnv(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

// getIntEnv gets an integer environment variable with a fallback value
func getIntEnv(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

// getDurationEnv accepts Go durations ("15s") or bare seconds ("15")
func getDurationEnv(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
