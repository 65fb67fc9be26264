package app

import (
	"os"
	"strconv"
	"time"

	"github.com/patronhq/patron/pkg/jwtx"
)

type Config struct {
	Issuer  string // Issuer claim for tokens (default: patron-auth)
	BaseURL string // Public URL prefix used in mailed links

	DatabaseFile string // Path to SQLite database file (default: ./auth.db)
	RedisAddr    string // Redis host:port (default: localhost:6379)
	RedisPass    string // Optional Redis password
	RedisDB      int    // Redis logical database (default: 0)

	// MasterKey seals API credential secrets at rest. Required outside dev.
	MasterKey string

	// JWTKeyFile is a PKCS8 PEM Ed25519 private key. Empty generates an
	// ephemeral key, which invalidates all tokens on restart.
	JWTKeyFile string

	AccessTTL  time.Duration // Access token lifetime (default: 15m)
	RefreshTTL time.Duration // Refresh token + session lifetime (default: 168h)

	SMTPHost string // Empty disables real mail; the log mailer takes over
	SMTPPort int
	SMTPUser string
	SMTPPass string
	SMTPFrom string

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping sweep interval (default: 1h)
	CredentialRetention  time.Duration // How long revoked credentials are kept (default: 720h)
}

func LoadConfig() Config {
	return Config{
		Issuer:  getEnvOrDefault("AUTH_ISSUER", "patron-auth"),
		BaseURL: getEnvOrDefault("AUTH_BASE_URL", "http://localhost:8080"),

		DatabaseFile: getEnvOrDefault("AUTH_DATABASE_FILE", "auth.db"),
		RedisAddr:    getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPass:    os.Getenv("REDIS_PASSWORD"),
		RedisDB:      getEnvIntOrDefault("REDIS_DB", 0),

		MasterKey:  os.Getenv("AUTH_MASTER_KEY"),
		JWTKeyFile: os.Getenv("AUTH_JWT_KEY_FILE"),

		AccessTTL:  getEnvDurationOrDefault("AUTH_ACCESS_TTL", jwtx.DefaultAccessTokenTTL),
		RefreshTTL: getEnvDurationOrDefault("AUTH_REFRESH_TTL", jwtx.DefaultRefreshTokenTTL),

		SMTPHost: os.Getenv("SMTP_HOST"),
		SMTPPort: getEnvIntOrDefault("SMTP_PORT", 587),
		SMTPUser: os.Getenv("SMTP_USER"),
		SMTPPass: os.Getenv("SMTP_PASSWORD"),
		SMTPFrom: getEnvOrDefault("SMTP_FROM", "no-reply@localhost"),

		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", time.Hour),
		CredentialRetention:  getEnvDurationOrDefault("CREDENTIAL_RETENTION", 30*24*time.Hour),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	return defaultValue
}
