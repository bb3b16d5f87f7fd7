// Package config loads server settings: defaults, then an optional YAML
// file, then environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

// Config holds the application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Store    StoreConfig    `yaml:"store"`
	Postgres PostgresConfig `yaml:"postgres"`
	Mongo    MongoConfig    `yaml:"mongo"`
	Auth     AuthConfig     `yaml:"auth"`
	Notify   NotifyConfig   `yaml:"notify"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	// RateLimit is requests per second per client IP; 0 disables it.
	RateLimit float64 `yaml:"rate_limit"`
}

type StoreConfig struct {
	Driver string `yaml:"driver"`
}

type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"`
	Migrate  bool   `yaml:"migrate"`
}

// DSN renders the connection URL.
func (p PostgresConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(p.User, p.Password),
		Host:     fmt.Sprintf("%s:%d", p.Host, p.Port),
		Path:     "/" + p.Name,
		RawQuery: "sslmode=" + url.QueryEscape(p.SSLMode),
	}
	return u.String()
}

type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

// Notification providers.
const (
	ProviderLog   = "log"
	ProviderSMTP  = "smtp"
	ProviderPlunk = "plunk"
)

// NotifyConfig points at the Redis instance backing the notification
// queue and picks how notifications are delivered. An empty RedisAddr
// disables queued notifications.
type NotifyConfig struct {
	RedisAddr   string      `yaml:"redis_addr"`
	Queue       string      `yaml:"queue"`
	Concurrency int         `yaml:"concurrency"`
	Provider    string      `yaml:"provider"`
	ReplyTo     string      `yaml:"reply_to"`
	SMTP        SMTPConfig  `yaml:"smtp"`
	Plunk       PlunkConfig `yaml:"plunk"`
}

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

type PlunkConfig struct {
	APIKey string `yaml:"api_key"`
	From   string `yaml:"from"`
	APIURL string `yaml:"api_url"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns a configuration that runs against the in-memory store.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RequestTimeout:  30 * time.Second,
			RateLimit:       20,
		},
		Store: StoreConfig{Driver: DriverMemory},
		Postgres: PostgresConfig{
			Host:    "localhost",
			Port:    5432,
			User:    "postgres",
			Name:    "workmatch",
			SSLMode: "disable",
			Migrate: true,
		},
		Mongo: MongoConfig{
			URI:      "mongodb://localhost:27017/?replicaSet=rs0",
			Database: "workmatch",
		},
		Auth: AuthConfig{TokenTTL: 24 * time.Hour},
		Notify: NotifyConfig{
			Queue:       "notifications",
			Concurrency: 5,
			Provider:    ProviderLog,
			Plunk:       PlunkConfig{APIURL: "https://api.useplunk.com/v1/send"},
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads path (if non-empty) over the defaults and applies the
// process environment.
func Load(path string) (*Config, error) {
	return LoadWithEnv(path, os.Getenv)
}

// LoadWithEnv is Load with an explicit environment lookup.
func LoadWithEnv(path string, getenv func(string) string) (*Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config file: %w", err)
		}
	}
	if err := cfg.applyEnv(getenv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}

	if port := getenv("PORT"); port != "" {
		c.Server.Addr = ":" + port
	}
	str("STORE_DRIVER", &c.Store.Driver)
	str("DB_HOST", &c.Postgres.Host)
	str("DB_USER", &c.Postgres.User)
	str("DB_PASSWORD", &c.Postgres.Password)
	str("DB_NAME", &c.Postgres.Name)
	str("DB_SSLMODE", &c.Postgres.SSLMode)
	if v := getenv("DB_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("DB_PORT: %w", err)
		}
		c.Postgres.Port = port
	}
	str("MONGO_URI", &c.Mongo.URI)
	str("MONGO_DATABASE", &c.Mongo.Database)
	str("JWT_SECRET", &c.Auth.JWTSecret)
	str("REDIS_ADDR", &c.Notify.RedisAddr)
	str("MAIL_PROVIDER", &c.Notify.Provider)
	str("MAIL_REPLY_TO", &c.Notify.ReplyTo)
	str("SMTP_HOST", &c.Notify.SMTP.Host)
	str("SMTP_PORT", &c.Notify.SMTP.Port)
	str("SMTP_USERNAME", &c.Notify.SMTP.Username)
	str("SMTP_PASSWORD", &c.Notify.SMTP.Password)
	str("SMTP_FROM", &c.Notify.SMTP.From)
	str("PLUNK_API_KEY", &c.Notify.Plunk.APIKey)
	str("PLUNK_FROM", &c.Notify.Plunk.From)
	str("PLUNK_API_URL", &c.Notify.Plunk.APIURL)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	return nil
}

// Validate reports every problem with the configuration at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, errors.New("server.rate_limit must not be negative"))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwt_secret (JWT_SECRET) is required"))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("auth.token_ttl must be positive"))
	}
	switch c.Store.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Postgres.Host == "" || c.Postgres.Name == "" {
			errs = append(errs, errors.New("postgres host and name are required"))
		}
	case DriverMongo:
		if c.Mongo.URI == "" || c.Mongo.Database == "" {
			errs = append(errs, errors.New("mongo uri and database are required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.Store.Driver))
	}
	if c.Notify.RedisAddr != "" && c.Notify.Concurrency < 1 {
		errs = append(errs, errors.New("notify.concurrency must be at least 1"))
	}
	switch c.Notify.Provider {
	case "", ProviderLog:
	case ProviderSMTP:
		m := c.Notify.SMTP
		if m.Host == "" || m.Port == "" || m.Username == "" || m.Password == "" || m.From == "" {
			errs = append(errs, errors.New("smtp not configured: set SMTP_HOST, SMTP_PORT, SMTP_USERNAME, SMTP_PASSWORD, SMTP_FROM"))
		}
	case ProviderPlunk:
		if c.Notify.Plunk.APIKey == "" {
			errs = append(errs, errors.New("plunk not configured: set PLUNK_API_KEY"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown notify provider %q", c.Notify.Provider))
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ParseLevel maps a level name to its slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, fmt.Errorf("invalid log level %q", s)
	}
	return lvl, nil
}

// NewLogger builds the process logger described by c.
func (c LogConfig) NewLogger() *slog.Logger {
	lvl, err := ParseLevel(c.Level)
	if err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
