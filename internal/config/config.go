package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	Dispatch DispatchConfig
	Sweeper  SweeperConfig
	Metrics  MetricsConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
	// SeedFile is loaded into the in-memory store when POSTGRES_DSN is empty.
	SeedFile string
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// TimeoutMillis bounds dial, read and write so settings lookups on the
	// dispatch path fall back to defaults quickly.
	TimeoutMillis int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
	// Format is "json" (default) or "console".
	Format  string
	Service string
	Env     string
}

// AuthConfig defines bearer token parameters. Tokens are issued by the identity
// service; this service only verifies them.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
}

// DispatchConfig holds the fallback SLA settings used when the live settings
// store has no value.
type DispatchConfig struct {
	ExternalSLAMinutes  int
	InternalSLAMinutes  int
	MaxExternalAttempts int
	MaxInternalAttempts int
	SettingsKey         string
}

// SweeperConfig controls the expiry sweep loop.
type SweeperConfig struct {
	Enabled             bool
	IntervalSeconds     int
	BatchSize           int
	Concurrency         int
	CycleTimeoutSeconds int
	StalledGraceSeconds int
	LockKey             string
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled     bool
	ServiceName string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	appName := getEnv("APP_NAME", "lead-dispatch")
	appEnv := getEnv("APP_ENV", "development")

	cfg := &Config{
		App: AppConfig{
			Name:                  appName,
			Env:                   appEnv,
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
			SeedFile:              os.Getenv("MEMORY_SEED_FILE"),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:          getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:      os.Getenv("REDIS_PASSWORD"),
			DB:            redisDB,
			TimeoutMillis: getEnvAsInt("REDIS_TIMEOUT_MS", 500),
		},
		Logger: LoggerConfig{
			Level:   getEnv("LOG_LEVEL", "info"),
			Format:  getEnv("LOG_FORMAT", "json"),
			Service: appName,
			Env:     appEnv,
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
		},
		Dispatch: DispatchConfig{
			ExternalSLAMinutes:  getEnvAsInt("DISPATCH_EXTERNAL_SLA_MINUTES", 15),
			InternalSLAMinutes:  getEnvAsInt("DISPATCH_INTERNAL_SLA_MINUTES", 30),
			MaxExternalAttempts: getEnvAsInt("DISPATCH_MAX_EXTERNAL_ATTEMPTS", 3),
			MaxInternalAttempts: getEnvAsInt("DISPATCH_MAX_INTERNAL_ATTEMPTS", 2),
			SettingsKey:         getEnv("DISPATCH_SETTINGS_KEY", "dispatch:settings"),
		},
		Sweeper: SweeperConfig{
			Enabled:             getEnvAsBool("SWEEPER_ENABLED", true),
			IntervalSeconds:     getEnvAsInt("SWEEPER_INTERVAL_SECONDS", 30),
			BatchSize:           getEnvAsInt("SWEEPER_BATCH_SIZE", 100),
			Concurrency:         getEnvAsInt("SWEEPER_CONCURRENCY", 8),
			CycleTimeoutSeconds: getEnvAsInt("SWEEPER_CYCLE_TIMEOUT_SECONDS", 20),
			StalledGraceSeconds: getEnvAsInt("SWEEPER_STALLED_GRACE_SECONDS", 60),
			LockKey:             getEnv("SWEEPER_LOCK_KEY", "dispatch:sweeper:lock"),
		},
		Metrics: MetricsConfig{
			Enabled:     getEnvAsBool("METRICS_ENABLED", true),
			ServiceName: getEnv("METRICS_SERVICE_NAME", "lead-dispatch"),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// Timeout returns the per-operation Redis timeout; zero keeps the client default.
func (r RedisConfig) Timeout() time.Duration {
	if r.TimeoutMillis <= 0 {
		return 0
	}
	return time.Duration(r.TimeoutMillis) * time.Millisecond
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// Interval returns the pause between sweep cycles.
func (s SweeperConfig) Interval() time.Duration {
	if s.IntervalSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(s.IntervalSeconds) * time.Second
}

// CycleTimeout bounds a single sweep cycle. It never exceeds the interval.
func (s SweeperConfig) CycleTimeout() time.Duration {
	timeout := time.Duration(s.CycleTimeoutSeconds) * time.Second
	if timeout <= 0 || timeout > s.Interval() {
		return s.Interval()
	}
	return timeout
}

// StalledGrace is how long an expired chain may sit without a successor
// before the sweeper re-dispatches it.
func (s SweeperConfig) StalledGrace() time.Duration {
	if s.StalledGraceSeconds < 0 {
		return 0
	}
	return time.Duration(s.StalledGraceSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
