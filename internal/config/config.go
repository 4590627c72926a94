package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 100
)

// Config holds process settings. Values come from defaults, then the YAML
// file named by CONFIG_FILE, then the environment.
type Config struct {
	Port      string `yaml:"port"`
	DBPath    string `yaml:"db_path"`
	AppEnv    string `yaml:"app_env"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	RateLimitWindow      time.Duration `yaml:"rate_limit_window"`
	RateLimitMaxRequests int           `yaml:"rate_limit_max_requests"`
	CreateLimitWindow    time.Duration `yaml:"create_limit_window"`
	CreateLimitMax       int           `yaml:"create_limit_max"`

	DefaultPageSize int `yaml:"default_page_size"`
	MaxPageSize     int `yaml:"max_page_size"`

	RedisAddr string        `yaml:"redis_addr"`
	CacheTTL  time.Duration `yaml:"cache_ttl"`

	KafkaBrokers []string `yaml:"kafka_brokers"`
	KafkaTopic   string   `yaml:"kafka_topic"`

	JWTSecret string `yaml:"jwt_secret"`
}

func Default() *Config {
	return &Config{
		Port:                 "3000",
		DBPath:               "database.sqlite",
		AppEnv:               "development",
		LogLevel:             "info",
		LogFormat:            "console",
		RateLimitWindow:      time.Minute,
		RateLimitMaxRequests: 100,
		CreateLimitWindow:    15 * time.Minute,
		CreateLimitMax:       10,
		DefaultPageSize:      DefaultPageSize,
		MaxPageSize:          MaxPageSize,
		CacheTTL:             5 * time.Minute,
		KafkaTopic:           "user-topic",
	}
}

// Load builds the configuration for the current process. A .env file in the
// working directory fills in variables that are not already set.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) loadEnv() error {
	setString(&c.Port, "PORT")
	setString(&c.DBPath, "DB_PATH")
	setString(&c.AppEnv, "APP_ENV")
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.LogFormat, "LOG_FORMAT")
	setString(&c.RedisAddr, "REDIS_ADDR")
	setString(&c.KafkaTopic, "KAFKA_TOPIC")
	setString(&c.JWTSecret, "JWT_SECRET")

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.KafkaBrokers = getKafkaBrokerURLs(v)
	}

	if v := os.Getenv("RATE_LIMIT_WINDOW_MS"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("RATE_LIMIT_WINDOW_MS: %w", err)
		}
		c.RateLimitWindow = time.Duration(ms) * time.Millisecond
	}
	if v := os.Getenv("CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("CACHE_TTL: %w", err)
		}
		c.CacheTTL = d
	}

	for key, dst := range map[string]*int{
		"RATE_LIMIT_MAX_REQUESTS": &c.RateLimitMaxRequests,
		"DEFAULT_PAGE_SIZE":       &c.DefaultPageSize,
		"MAX_PAGE_SIZE":           &c.MaxPageSize,
	} {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
	}
	return nil
}

func (c *Config) validate() error {
	if c.RateLimitWindow <= 0 || c.RateLimitMaxRequests <= 0 {
		return fmt.Errorf("rate limit must be positive, got %d per %s", c.RateLimitMaxRequests, c.RateLimitWindow)
	}
	if c.CreateLimitWindow <= 0 || c.CreateLimitMax <= 0 {
		return fmt.Errorf("create rate limit must be positive, got %d per %s", c.CreateLimitMax, c.CreateLimitWindow)
	}
	if c.MaxPageSize <= 0 {
		return fmt.Errorf("max page size must be positive, got %d", c.MaxPageSize)
	}
	if c.DefaultPageSize <= 0 || c.DefaultPageSize > c.MaxPageSize {
		return fmt.Errorf("default page size must be between 1 and %d, got %d", c.MaxPageSize, c.DefaultPageSize)
	}
	switch strings.ToLower(c.LogFormat) {
	case "console", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	return nil
}

// IsProduction reports whether error details should be hidden from clients.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.Port
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
