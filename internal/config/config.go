package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

const (
	defaultAppName         = "Fixit"
	defaultAppEnv          = "development"
	defaultPort            = "8080"
	defaultLogLevel        = "info"
	defaultShutdownDelay   = 10 * time.Second
	defaultIdempotencyTTL  = 24 * time.Hour
	defaultAccessTokenTTL  = time.Hour
	defaultRefreshTokenTTL = 7 * 24 * time.Hour
	defaultCommissionRate  = "0.20"
	defaultLoginRateLimit  = 5
	defaultJWTSecret       = "dev-access-secret"
	defaultRefreshSecret   = "dev-refresh-secret"

	// DefaultAdminAccountID is the well-known platform account used when
	// ADMIN_ACCOUNT_ID is not configured.
	DefaultAdminAccountID = "00000000-0000-0000-0000-000000000001"

	idemTTLSecondsEnvVar   = "IDEMPOTENCY_TTL_SECONDS"
	idemTTLDurEnvVar       = "IDEMPOTENCY_TTL"
	shutdownSecondsEnvVar  = "SHUTDOWN_TIMEOUT_SECONDS"
	shutdownDurationEnvVar = "SHUTDOWN_TIMEOUT"
)

// Config captures application runtime configuration loaded from the
// environment and an optional config.yaml.
type Config struct {
	AppName         string
	Env             string
	Port            string
	LogLevel        string
	DatabaseURL     string
	RedisURL        string
	ShutdownPeriod  time.Duration
	IdempotencyTTL  time.Duration
	JWTSecret       string
	RefreshSecret   string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	CommissionRate  decimal.Decimal
	AdminAccountID  string
	AdminEmail      string
	AdminPassword   string
	LoginRateLimit  int
}

// Load reads configuration values and populates a Config instance.
func Load() (Config, error) {
	return load(viper.New())
}

func load(v *viper.Viper) (Config, error) {
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AutomaticEnv()

	v.SetDefault("APP_NAME", defaultAppName)
	v.SetDefault("APP_ENV", defaultAppEnv)
	v.SetDefault("PORT", defaultPort)
	v.SetDefault("LOG_LEVEL", defaultLogLevel)
	v.SetDefault("COMMISSION_RATE", defaultCommissionRate)
	v.SetDefault("ADMIN_ACCOUNT_ID", DefaultAdminAccountID)
	v.SetDefault("ACCESS_TOKEN_TTL", defaultAccessTokenTTL)
	v.SetDefault("REFRESH_TOKEN_TTL", defaultRefreshTokenTTL)
	v.SetDefault("LOGIN_RATE_LIMIT", defaultLoginRateLimit)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := Config{
		AppName:         v.GetString("APP_NAME"),
		Env:             strings.ToLower(v.GetString("APP_ENV")),
		Port:            v.GetString("PORT"),
		LogLevel:        strings.ToLower(v.GetString("LOG_LEVEL")),
		DatabaseURL:     v.GetString("DATABASE_URL"),
		RedisURL:        v.GetString("REDIS_URL"),
		ShutdownPeriod:  defaultShutdownDelay,
		IdempotencyTTL:  defaultIdempotencyTTL,
		JWTSecret:       v.GetString("JWT_SECRET"),
		RefreshSecret:   v.GetString("REFRESH_SECRET"),
		AccessTokenTTL:  v.GetDuration("ACCESS_TOKEN_TTL"),
		RefreshTokenTTL: v.GetDuration("REFRESH_TOKEN_TTL"),
		AdminAccountID:  v.GetString("ADMIN_ACCOUNT_ID"),
		AdminEmail:      strings.ToLower(strings.TrimSpace(v.GetString("ADMIN_EMAIL"))),
		AdminPassword:   v.GetString("ADMIN_PASSWORD"),
		LoginRateLimit:  v.GetInt("LOGIN_RATE_LIMIT"),
	}

	var err error
	if cfg.ShutdownPeriod, err = durationFrom(v, shutdownSecondsEnvVar, shutdownDurationEnvVar, defaultShutdownDelay); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = durationFrom(v, idemTTLSecondsEnvVar, idemTTLDurEnvVar, defaultIdempotencyTTL); err != nil {
		return Config{}, err
	}

	rate, err := decimal.NewFromString(v.GetString("COMMISSION_RATE"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid COMMISSION_RATE: %w", err)
	}
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return Config{}, fmt.Errorf("COMMISSION_RATE must be within [0, 1], got %s", rate)
	}
	cfg.CommissionRate = rate

	if _, err := uuid.Parse(cfg.AdminAccountID); err != nil {
		return Config{}, fmt.Errorf("invalid ADMIN_ACCOUNT_ID: %w", err)
	}

	if !cfg.IsDev() {
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL must be set")
		}
		if cfg.RedisURL == "" {
			return Config{}, fmt.Errorf("REDIS_URL must be set")
		}
		if cfg.JWTSecret == "" || cfg.RefreshSecret == "" {
			return Config{}, fmt.Errorf("JWT_SECRET and REFRESH_SECRET must be set")
		}
	}
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = defaultJWTSecret
	}
	if cfg.RefreshSecret == "" {
		cfg.RefreshSecret = defaultRefreshSecret
	}

	return cfg, nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// IsDev reports whether the app runs in a local/development environment, where
// Postgres and Redis are optional.
func (c Config) IsDev() bool {
	switch c.Env {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

func durationFrom(v *viper.Viper, secondsKey, durationKey string, fallback time.Duration) (time.Duration, error) {
	if raw := v.GetString(secondsKey); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", secondsKey, err)
		}
		return time.Duration(seconds) * time.Second, nil
	}
	if raw := v.GetString(durationKey); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", durationKey, err)
		}
		return d, nil
	}
	return fallback, nil
}
