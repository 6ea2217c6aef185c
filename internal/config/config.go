package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	defaultDatabaseDSN       = "host=localhost user=postgres password=postgres dbname=grill port=5432 sslmode=disable"
	defaultCORSOrigins       = "http://localhost:5173"
	defaultReconcileSchedule = "30 3 * * *"
)

type Config struct {
	Server    ServerConfig    `toml:"server"`
	Database  DatabaseConfig  `toml:"database"`
	Auth      AuthConfig      `toml:"auth"`
	Square    SquareConfig    `toml:"square"`
	Logger    LoggerConfig    `toml:"logger"`
	Reconcile ReconcileConfig `toml:"reconcile"`
}

type ServerConfig struct {
	AppEnv         string `toml:"app_env"`
	HTTPPort       string `toml:"http_port"`
	CORSOrigins    string `toml:"cors_origins"`
	MetricsEnabled bool   `toml:"metrics_enabled"`
}

type DatabaseConfig struct {
	Driver          string `toml:"driver"` // postgres | sqlite
	DSN             string `toml:"dsn"`
	MaxOpenConns    int    `toml:"max_open_conns"`
	MaxIdleConns    int    `toml:"max_idle_conns"`
	ConnMaxLifetime int    `toml:"conn_max_lifetime"` // seconds
}

type AuthConfig struct {
	JWTSecret string `toml:"jwt_secret"`
}

type SquareConfig struct {
	AccessToken     string `toml:"access_token"`
	Environment     string `toml:"environment"` // sandbox | production
	LocationID      string `toml:"location_id"`
	APIVersion      string `toml:"api_version"`
	SignatureKey    string `toml:"signature_key"`
	NotificationURL string `toml:"notification_url"`
	// AllowUnverifiedWebhooks skips signature checks. Local/test only.
	AllowUnverifiedWebhooks bool `toml:"allow_unverified_webhooks"`
}

type LoggerConfig struct {
	Level    string `toml:"level"`
	Encoding string `toml:"encoding"`
}

type ReconcileConfig struct {
	Enabled  bool   `toml:"enabled"`
	Schedule string `toml:"schedule"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			AppEnv:         "development",
			HTTPPort:       "8080",
			CORSOrigins:    defaultCORSOrigins,
			MetricsEnabled: true,
		},
		Database: DatabaseConfig{
			Driver:          "postgres",
			DSN:             defaultDatabaseDSN,
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 300,
		},
		Square: SquareConfig{
			Environment: "sandbox",
			APIVersion:  "2024-10-17",
		},
		Logger: LoggerConfig{
			Level:    "info",
			Encoding: "json",
		},
		Reconcile: ReconcileConfig{
			Enabled:  true,
			Schedule: defaultReconcileSchedule,
		},
	}
}

// Load builds the config from defaults, then the optional TOML file named by
// CONFIG_FILE, then environment variables.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Server.AppEnv, "APP_ENV")
	setString(&cfg.Server.HTTPPort, "HTTP_PORT")
	setString(&cfg.Server.CORSOrigins, "CORS_ALLOWED_ORIGINS")
	setBool(&cfg.Server.MetricsEnabled, "METRICS_ENABLED")

	setString(&cfg.Database.Driver, "DATABASE_DRIVER")
	setString(&cfg.Database.DSN, "DATABASE_DSN")
	setInt(&cfg.Database.MaxOpenConns, "DATABASE_MAX_OPEN_CONNS")
	setInt(&cfg.Database.MaxIdleConns, "DATABASE_MAX_IDLE_CONNS")
	setInt(&cfg.Database.ConnMaxLifetime, "DATABASE_CONN_MAX_LIFETIME")

	setString(&cfg.Auth.JWTSecret, "JWT_SECRET")

	setString(&cfg.Square.AccessToken, "SQUARE_ACCESS_TOKEN")
	setString(&cfg.Square.Environment, "SQUARE_ENVIRONMENT")
	setString(&cfg.Square.LocationID, "SQUARE_LOCATION_ID")
	setString(&cfg.Square.APIVersion, "SQUARE_API_VERSION")
	setString(&cfg.Square.SignatureKey, "SQUARE_SIGNATURE_KEY")
	setString(&cfg.Square.NotificationURL, "SQUARE_WEBHOOK_NOTIFICATION_URL")
	setBool(&cfg.Square.AllowUnverifiedWebhooks, "ALLOW_UNVERIFIED_WEBHOOKS")

	setString(&cfg.Logger.Level, "LOG_LEVEL")
	setString(&cfg.Logger.Encoding, "LOG_ENCODING")

	setBool(&cfg.Reconcile.Enabled, "RECONCILE_ENABLED")
	setString(&cfg.Reconcile.Schedule, "RECONCILE_SCHEDULE")
}

func (c *Config) Validate() error {
	var errs []error

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is not set"))
	} else if len(c.Auth.JWTSecret) < 32 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 32 characters"))
	}

	if c.Square.SignatureKey == "" && !c.Square.AllowUnverifiedWebhooks {
		errs = append(errs, errors.New("SQUARE_SIGNATURE_KEY is not set (set ALLOW_UNVERIFIED_WEBHOOKS=true for local testing only)"))
	}

	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("DATABASE_DRIVER %q is not supported", c.Database.Driver))
	}

	switch c.Square.Environment {
	case "sandbox", "production":
	default:
		errs = append(errs, fmt.Errorf("SQUARE_ENVIRONMENT %q must be sandbox or production", c.Square.Environment))
	}

	if strings.TrimSpace(c.Reconcile.Schedule) == "" {
		errs = append(errs, errors.New("RECONCILE_SCHEDULE is empty"))
	}

	return errors.Join(errs...)
}

// Warnings lists settings that are acceptable locally but not in production.
func (c *Config) Warnings() []string {
	var out []string
	if c.Database.DSN == defaultDatabaseDSN {
		out = append(out, "DATABASE_DSN uses the default value, set your own Postgres connection for production")
	}
	if c.Server.CORSOrigins == defaultCORSOrigins {
		out = append(out, "CORS_ALLOWED_ORIGINS uses the default value, set your own domain for production")
	}
	if c.Square.AllowUnverifiedWebhooks {
		out = append(out, "ALLOW_UNVERIFIED_WEBHOOKS is enabled, Square webhook signatures are NOT checked")
	}
	if c.Square.AccessToken == "" {
		out = append(out, "SQUARE_ACCESS_TOKEN is not set, Square API calls will fail")
	}
	if c.Square.LocationID == "" {
		out = append(out, "SQUARE_LOCATION_ID is not set, reconciliation order search will fail")
	}
	return out
}

func (c *Config) IsDevelopment() bool {
	return c.Server.AppEnv == "development"
}

func (d DatabaseConfig) ConnMaxLifetimeDuration() time.Duration {
	return time.Duration(d.ConnMaxLifetime) * time.Second
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(v); err == nil {
			*dst = i
		}
	}
}

func setBool(dst *bool, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
