// Package config handles loading application configuration from environment
// variables. All config is centralized here so no other package reads env
// vars directly. Sensible defaults are provided for development.
package config

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
)

// DefaultMaxActivities is the activity buffer capacity used when
// MAX_ACTIVITIES is unset or invalid.
const DefaultMaxActivities = 1000

// Config holds all application configuration. Populated from environment
// variables at startup. Passed to other packages via dependency injection.
type Config struct {
	// Env is the runtime environment: "development" or "production".
	Env string

	// Port is the HTTP listen port (default: 8080).
	Port int

	// BaseURL is the public-facing URL used for links and CORS.
	BaseURL string

	// LogLevel controls log verbosity: "debug", "info", "warn", "error".
	LogLevel string

	// CORSOrigins lists extra origins (besides BaseURL) allowed to call the
	// JSON endpoints with credentials, e.g. the rich-client front-end.
	CORSOrigins []string

	// MetricsEnabled mounts the Prometheus handler at /metrics.
	MetricsEnabled bool

	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Activity ActivityConfig
}

// DatabaseConfig holds MariaDB connection parameters. If DATABASE_URL is
// set, it takes precedence over the individual fields.
type DatabaseConfig struct {
	// Host is the MariaDB address in host:port format. A missing port
	// defaults to 3306.
	Host     string
	User     string
	Password string
	Name     string

	// dsnOverride is set when DATABASE_URL is provided.
	dsnOverride string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// MigrationsPath is the directory holding golang-migrate SQL files.
	MigrationsPath string
}

// DSN returns the go-sql-driver/mysql connection string. The driver's
// FormatDSN handles escaping of special characters in passwords.
func (d DatabaseConfig) DSN() string {
	if d.dsnOverride != "" {
		return d.dsnOverride
	}
	cfg := mysql.NewConfig()
	cfg.User = d.User
	cfg.Passwd = d.Password
	cfg.Net = "tcp"
	cfg.Addr = ensurePort(d.Host, "3306")
	cfg.DBName = d.Name
	cfg.ParseTime = true
	return cfg.FormatDSN()
}

// ensurePort appends the default port if the host string doesn't include one.
func ensurePort(host, defaultPort string) string {
	if _, _, err := net.SplitHostPort(host); err != nil {
		return net.JoinHostPort(host, defaultPort)
	}
	return host
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	// URL is the Redis connection URL (e.g., "redis://localhost:6379").
	URL string
}

// AuthConfig holds authentication settings.
type AuthConfig struct {
	// SecretKey must be 32+ characters in production.
	SecretKey string

	// SessionTTL is how long sessions last before expiring.
	SessionTTL time.Duration
}

// ActivityConfig holds settings for the user-interaction activity log.
type ActivityConfig struct {
	// MaxActivities is the capacity of the in-process activity buffer.
	MaxActivities int

	// LogInteractions installs the request/response interaction logger.
	LogInteractions bool

	// ForwardQueue is the size of the off-process forwarding queue.
	ForwardQueue int

	// RedisChannel, when set, publishes every emission on this channel.
	RedisChannel string

	// RedisList, when set, LPUSHes every emission onto this list.
	RedisList string

	// RedisListMax is how many entries RedisList keeps. Defaults to
	// MaxActivities.
	RedisListMax int

	// NATSURL and NATSSubject configure the NATS forwarding backend.
	NATSURL     string
	NATSSubject string

	// KafkaBrokers and KafkaTopic configure the Kafka forwarding backend.
	KafkaBrokers []string
	KafkaTopic   string
}

// ForwardingEnabled reports whether any forwarding backend is configured.
func (a ActivityConfig) ForwardingEnabled() bool {
	return a.RedisChannel != "" || a.RedisList != "" || a.NATSURL != "" || len(a.KafkaBrokers) > 0
}

// Load reads configuration from environment variables with sensible defaults.
// A .env file in the working directory is loaded first when present; real
// environment variables always win over .env entries.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("could not load .env file", slog.Any("error", err))
	}

	cfg := &Config{
		Env:            getEnv("ENV", "development"),
		Port:           getEnvInt("PORT", 8080),
		BaseURL:        getEnv("BASE_URL", "http://localhost:8080"),
		LogLevel:       getEnv("LOG_LEVEL", "debug"),
		CORSOrigins:    getEnvList("CORS_ORIGINS"),
		MetricsEnabled: getEnvBool("METRICS_ENABLED", true),

		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost:3306"),
			User:            getEnv("DB_USER", "trainerhub"),
			Password:        getEnv("DB_PASSWORD", "trainerhub"),
			Name:            getEnv("DB_NAME", "trainerhub"),
			dsnOverride:     getEnv("DATABASE_URL", ""),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			MigrationsPath:  getEnv("MIGRATIONS_PATH", "db/migrations"),
		},

		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", "redis://localhost:6379"),
		},

		Auth: AuthConfig{
			SecretKey:  getEnv("SECRET_KEY", ""),
			SessionTTL: getEnvDuration("SESSION_TTL", 720*time.Hour),
		},

		Activity: ActivityConfig{
			MaxActivities:   getEnvInt("MAX_ACTIVITIES", DefaultMaxActivities),
			LogInteractions: getEnvBool("LOG_USER_INTERACTIONS", true),
			ForwardQueue:    getEnvInt("ACTIVITY_FORWARD_QUEUE", 256),
			RedisChannel:    getEnv("ACTIVITY_REDIS_CHANNEL", ""),
			RedisList:       getEnv("ACTIVITY_REDIS_LIST", ""),
			RedisListMax:    getEnvInt("ACTIVITY_REDIS_LIST_MAX", 0),
			NATSURL:         getEnv("ACTIVITY_NATS_URL", ""),
			NATSSubject:     getEnv("ACTIVITY_NATS_SUBJECT", "trainerhub.activity"),
			KafkaBrokers:    getEnvList("ACTIVITY_KAFKA_BROKERS"),
			KafkaTopic:      getEnv("ACTIVITY_KAFKA_TOPIC", "trainerhub.activity"),
		},
	}

	if cfg.Activity.MaxActivities < 1 {
		cfg.Activity.MaxActivities = DefaultMaxActivities
	}
	if cfg.Activity.RedisListMax < 1 {
		cfg.Activity.RedisListMax = cfg.Activity.MaxActivities
	}
	if cfg.Activity.ForwardQueue < 1 {
		cfg.Activity.ForwardQueue = 256
	}

	if cfg.IsProduction() {
		if cfg.Auth.SecretKey == "" {
			return nil, fmt.Errorf("SECRET_KEY is required in production")
		}
		if len(cfg.Auth.SecretKey) < 32 {
			return nil, fmt.Errorf("SECRET_KEY must be at least 32 characters in production")
		}
	}

	if cfg.Auth.SecretKey == "" {
		cfg.Auth.SecretKey = "dev-secret-key-do-not-use-in-production!!"
	}

	return cfg, nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	env := strings.ToLower(c.Env)
	return env == "development" || env == "dev"
}

// IsProduction returns true for "production" or "prod" in any case.
func (c *Config) IsProduction() bool {
	env := strings.ToLower(c.Env)
	return env == "production" || env == "prod"
}

// SlogLevel maps LogLevel to a slog.Level. Unknown values map to INFO.
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

// --- Helper functions for reading environment variables ---

func getEnv(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return i
		}
	}
	return defaultVal
}

// getEnvBool accepts anything strconv.ParseBool does ("1", "true", "F", ...).
func getEnvBool(key string, defaultVal bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(val)); err == nil {
			return b
		}
	}
	return defaultVal
}

// getEnvDuration reads a duration env var (e.g., "720h") or returns the default.
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

// getEnvList splits a comma-separated env var, dropping empty items.
func getEnvList(key string) []string {
	val, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
