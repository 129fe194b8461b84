// Package config contains code to set the default values and read
// config files to be used throughout the whole application
package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	configPath     = pflag.String("config", ".", "Directory containing config.toml")
	reconcileNow   = pflag.Bool("reconcile", false, "Reconciles referral counts and ranks on startup")
	exportNow      = pflag.Bool("export", false, "Exports the waitlist once on startup")
	validLogLevels = []string{"debug", "info", "warn", "error", "fatal"}
	validDrivers   = []string{"postgres", "sqlite"}
)

const maxLeaderboardSize = 100

type Config struct {
	LogLevel string

	Host        Host
	Database    Database
	Redis       Redis
	Security    Security
	Turnstile   Turnstile
	Leaderboard Leaderboard
	Cache       Cache
	Jobs        Jobs
	Export      Export
}

type Host struct {
	Port        int
	PublicURL   string
	CORSOrigins []string
}

type Database struct {
	Driver     string
	DSN        string
	SQLitePath string
}

type Redis struct {
	Addr     string
	Password string
	DB       int
}

type Security struct {
	RateLimit int
	// Supabase JWT secret. Profile creation requires a matching access
	// token when this is set
	JWTSecret string
}

type Turnstile struct {
	Enabled     bool
	SecretToken string
	// Public widget key rendered into the signup form
	SiteKey     string
}

type Leaderboard struct {
	PageSize int
}

type Cache struct {
	TTL time.Duration
}

type Jobs struct {
	ReconcileSchedule string
	ReconcileOnStart  bool
	ExportOnStart     bool
}

type Export struct {
	Enabled         bool
	Schedule        string
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Prefix          string
}

// Setup prepares everything config-related so that the app can
// start working. Function will return an error if something
// is critically wrong and the application can't run because of
// that.
func Setup() (*Config, error) {
	pflag.Parse()

	if err := godotenv.Load(); err != nil {
		zap.L().Debug("No .env file found, using system environment variables")
	}

	v := viper.GetViper()
	v.BindPFlags(pflag.CommandLine)
	v.AddConfigPath(*configPath)

	cfg, err := Load(v)
	if err != nil {
		return nil, err
	}

	cfg.Jobs.ReconcileOnStart = *reconcileNow
	cfg.Jobs.ExportOnStart = *exportNow

	return cfg, nil
}

// Load reads and validates the configuration from v. A missing config.toml
// isn't an error since everything can be provided through the environment
func Load(v *viper.Viper) (*Config, error) {
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")

	v.AutomaticEnv()

	//
	// ENVS
	//
	v.BindEnv("app.log_level", "APP_LOG_LEVEL")

	v.BindEnv("host.port", "HOST_PORT", "PORT")
	v.BindEnv("host.public_url", "HOST_PUBLIC_URL")
	v.BindEnv("host.cors_origins", "HOST_CORS")

	v.BindEnv("db.driver", "DB_DRIVER")
	v.BindEnv("db.dsn", "DB_DSN", "DATABASE_URL")
	v.BindEnv("db.sqlite_path", "DB_SQLITE_PATH")

	v.BindEnv("redis.addr", "REDIS_ADDR")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("redis.db", "REDIS_DB")

	v.BindEnv("security.rate_limit", "SECURITY_RATE_LIMIT")
	v.BindEnv("security.jwt_secret", "SECURITY_JWT_SECRET", "SUPABASE_JWT_SECRET")

	v.BindEnv("turnstile.enabled", "TURNSTILE_ENABLED")
	v.BindEnv("turnstile.secret_token", "TURNSTILE_SECRET_TOKEN")
	v.BindEnv("turnstile.site_key", "TURNSTILE_SITE_KEY")

	v.BindEnv("leaderboard.page_size", "LEADERBOARD_PAGE_SIZE")
	v.BindEnv("cache.ttl_seconds", "CACHE_TTL_SECONDS")

	v.BindEnv("jobs.reconcile_schedule", "JOBS_RECONCILE_SCHEDULE")

	v.BindEnv("export.enabled", "EXPORT_ENABLED")
	v.BindEnv("export.schedule", "EXPORT_SCHEDULE")
	v.BindEnv("export.bucket", "EXPORT_BUCKET")
	v.BindEnv("export.region", "EXPORT_REGION")
	v.BindEnv("export.endpoint", "EXPORT_ENDPOINT")
	v.BindEnv("export.access_key_id", "EXPORT_ACCESS_KEY_ID")
	v.BindEnv("export.secret_access_key", "EXPORT_SECRET_ACCESS_KEY")
	v.BindEnv("export.prefix", "EXPORT_PREFIX")

	//
	// Defaults
	//
	v.SetDefault("app.log_level", "info")

	v.SetDefault("host.port", 8080)
	v.SetDefault("host.public_url", "http://localhost:8080")
	v.SetDefault("host.cors_origins", "http://localhost:3000")

	v.SetDefault("db.driver", "postgres")
	v.SetDefault("db.sqlite_path", "database.db")

	v.SetDefault("security.rate_limit", 10)

	v.SetDefault("turnstile.enabled", false)

	v.SetDefault("leaderboard.page_size", maxLeaderboardSize)
	v.SetDefault("cache.ttl_seconds", 10)

	v.SetDefault("export.enabled", false)
	v.SetDefault("export.schedule", "@daily")
	v.SetDefault("export.region", "auto")
	v.SetDefault("export.prefix", "exports")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file, %w", err)
		}
	}

	cfg := &Config{
		LogLevel: v.GetString("app.log_level"),
		Host: Host{
			Port:        v.GetInt("host.port"),
			PublicURL:   strings.TrimRight(v.GetString("host.public_url"), "/"),
			CORSOrigins: splitList(v.GetStringSlice("host.cors_origins")),
		},
		Database: Database{
			Driver:     v.GetString("db.driver"),
			DSN:        v.GetString("db.dsn"),
			SQLitePath: v.GetString("db.sqlite_path"),
		},
		Redis: Redis{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Security: Security{
			RateLimit: v.GetInt("security.rate_limit"),
			JWTSecret: v.GetString("security.jwt_secret"),
		},
		Turnstile: Turnstile{
			Enabled:     v.GetBool("turnstile.enabled"),
			SecretToken: v.GetString("turnstile.secret_token"),
			SiteKey:     v.GetString("turnstile.site_key"),
		},
		Leaderboard: Leaderboard{
			PageSize: v.GetInt("leaderboard.page_size"),
		},
		Cache: Cache{
			TTL: time.Duration(v.GetInt("cache.ttl_seconds")) * time.Second,
		},
		Jobs: Jobs{
			ReconcileSchedule: v.GetString("jobs.reconcile_schedule"),
		},
		Export: Export{
			Enabled:         v.GetBool("export.enabled"),
			Schedule:        v.GetString("export.schedule"),
			Bucket:          v.GetString("export.bucket"),
			Region:          v.GetString("export.region"),
			Endpoint:        v.GetString("export.endpoint"),
			AccessKeyID:     v.GetString("export.access_key_id"),
			SecretAccessKey: v.GetString("export.secret_access_key"),
			Prefix:          v.GetString("export.prefix"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return errors.New("invalid log level provided")
	}

	if c.Host.Port <= 0 || c.Host.Port > 65535 {
		return errors.New("invalid port provided")
	}

	if _, err := url.ParseRequestURI(c.Host.PublicURL); err != nil {
		return errors.New("host.public_url must be an absolute URL")
	}

	if len(c.Host.CORSOrigins) == 0 {
		return errors.New("at least one CORS origin is required, use * to allow any")
	}

	switch c.Database.Driver {
	case "postgres":
		if c.Database.DSN == "" {
			return errors.New("no database DSN provided, set DB_DSN to the Supabase connection string")
		}
	case "sqlite":
		if c.Database.SQLitePath == "" {
			return errors.New("no sqlite path provided")
		}
	default:
		return fmt.Errorf("invalid database driver provided, expected one of %s", strings.Join(validDrivers, ", "))
	}

	if c.Security.RateLimit < 0 {
		return errors.New("security.rate_limit can't be negative")
	}

	if c.Turnstile.Enabled && c.Turnstile.SecretToken == "" {
		return errors.New("turnstile secret token is missing")
	}

	if c.Leaderboard.PageSize <= 0 || c.Leaderboard.PageSize > maxLeaderboardSize {
		return fmt.Errorf("leaderboard.page_size must be between 1 and %d", maxLeaderboardSize)
	}

	if c.Cache.TTL < 0 {
		return errors.New("cache.ttl_seconds can't be negative")
	}

	if c.Jobs.ReconcileSchedule != "" {
		if _, err := cron.ParseStandard(c.Jobs.ReconcileSchedule); err != nil {
			return fmt.Errorf("invalid reconcile schedule, %w", err)
		}
	}

	if c.Export.Enabled {
		if c.Export.Bucket == "" {
			return errors.New("export bucket can't be empty")
		}
		if c.Export.AccessKeyID == "" {
			return errors.New("export access key id can't be empty")
		}
		if c.Export.SecretAccessKey == "" {
			return errors.New("export secret access key can't be empty")
		}
		if _, err := cron.ParseStandard(c.Export.Schedule); err != nil {
			return fmt.Errorf("invalid export schedule, %w", err)
		}
	}

	return nil
}

// splitList accepts both TOML arrays and comma separated env values
func splitList(in []string) []string {
	out := []string{}

	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}

	return out
}
