// Package config loads service settings from an optional TOML file and
// KIDPOINTS_* environment variables. Environment wins over the file.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

type Config struct {
	Port            string `toml:"port"`
	DBPath          string `toml:"db_path"`
	LogLevel        string `toml:"log_level"`
	LogFormat       string `toml:"log_format"`
	Timezone        string `toml:"timezone"`
	HistoryMaxLimit int    `toml:"history_max_limit"`

	Bonus     BonusConfig     `toml:"bonus"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	AMQP      AMQPConfig      `toml:"amqp"`
	S3        S3Config        `toml:"s3"`
}

type BonusConfig struct {
	DailyPoints  int `toml:"daily_points"`
	WeeklyPoints int `toml:"weekly_points"`
}

type SchedulerConfig struct {
	Enabled bool `toml:"enabled"`
	// GenerateAt is the family-local HH:MM after which the day's tasks are
	// generated.
	GenerateAt  string `toml:"generate_at"`
	Concurrency int    `toml:"concurrency"`
}

// AMQPConfig is optional; an empty URL disables event publishing.
type AMQPConfig struct {
	URL      string `toml:"url"`
	Exchange string `toml:"exchange"`
}

// S3Config is optional; an empty bucket disables ledger export.
type S3Config struct {
	Endpoint  string `toml:"endpoint"`
	Bucket    string `toml:"bucket"`
	Region    string `toml:"region"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	Prefix    string `toml:"prefix"`
}

func defaults() *Config {
	return &Config{
		Port:            "8080",
		DBPath:          "kidpoints.db",
		LogLevel:        "info",
		LogFormat:       "text",
		Timezone:        "UTC",
		HistoryMaxLimit: 500,
		Bonus: BonusConfig{
			DailyPoints:  10,
			WeeklyPoints: 50,
		},
		Scheduler: SchedulerConfig{
			Enabled:     false,
			GenerateAt:  "00:05",
			Concurrency: 4,
		},
		AMQP: AMQPConfig{
			Exchange: "kidpoints.events",
		},
		S3: S3Config{
			Region: "us-east-1",
			Prefix: "ledger-exports",
		},
	}
}

// Load builds the config from defaults, then the TOML file named by
// KIDPOINTS_CONFIG (if set), then environment variables.
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("KIDPOINTS_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	if err := toml.NewDecoder(file).DisallowUnknownFields().Decode(c); err != nil {
		return fmt.Errorf("decode config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Port = getEnv("KIDPOINTS_PORT", c.Port)
	c.DBPath = getEnv("KIDPOINTS_DB_PATH", c.DBPath)
	c.LogLevel = getEnv("KIDPOINTS_LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("KIDPOINTS_LOG_FORMAT", c.LogFormat)
	c.Timezone = getEnv("KIDPOINTS_TIMEZONE", c.Timezone)
	c.HistoryMaxLimit = getEnvInt("KIDPOINTS_HISTORY_MAX_LIMIT", c.HistoryMaxLimit)

	c.Bonus.DailyPoints = getEnvInt("KIDPOINTS_BONUS_DAILY_POINTS", c.Bonus.DailyPoints)
	c.Bonus.WeeklyPoints = getEnvInt("KIDPOINTS_BONUS_WEEKLY_POINTS", c.Bonus.WeeklyPoints)

	c.Scheduler.Enabled = getEnvBool("KIDPOINTS_SCHEDULER_ENABLED", c.Scheduler.Enabled)
	c.Scheduler.GenerateAt = getEnv("KIDPOINTS_SCHEDULER_GENERATE_AT", c.Scheduler.GenerateAt)
	c.Scheduler.Concurrency = getEnvInt("KIDPOINTS_SCHEDULER_CONCURRENCY", c.Scheduler.Concurrency)

	c.AMQP.URL = getEnv("KIDPOINTS_AMQP_URL", c.AMQP.URL)
	c.AMQP.Exchange = getEnv("KIDPOINTS_AMQP_EXCHANGE", c.AMQP.Exchange)

	c.S3.Endpoint = getEnv("KIDPOINTS_S3_ENDPOINT", c.S3.Endpoint)
	c.S3.Bucket = getEnv("KIDPOINTS_S3_BUCKET", c.S3.Bucket)
	c.S3.Region = getEnv("KIDPOINTS_S3_REGION", c.S3.Region)
	c.S3.AccessKey = getEnv("KIDPOINTS_S3_ACCESS_KEY", c.S3.AccessKey)
	c.S3.SecretKey = getEnv("KIDPOINTS_S3_SECRET_KEY", c.S3.SecretKey)
	c.S3.Prefix = getEnv("KIDPOINTS_S3_PREFIX", c.S3.Prefix)
}

// Validate checks every setting and reports all problems at once.
func (c *Config) Validate() error {
	var errs []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.DBPath == "" {
		errs = append(errs, "database path cannot be empty")
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("invalid log level '%s': must be debug, info, warn or error", c.LogLevel))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Sprintf("invalid log format '%s': must be text or json", c.LogFormat))
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Sprintf("invalid timezone '%s': %v", c.Timezone, err))
	}

	if c.HistoryMaxLimit < 1 {
		errs = append(errs, fmt.Sprintf("invalid history max limit %d: must be at least 1", c.HistoryMaxLimit))
	}

	if c.Bonus.DailyPoints < 1 {
		errs = append(errs, fmt.Sprintf("invalid daily bonus %d: must be positive", c.Bonus.DailyPoints))
	}
	if c.Bonus.WeeklyPoints < 1 {
		errs = append(errs, fmt.Sprintf("invalid weekly bonus %d: must be positive", c.Bonus.WeeklyPoints))
	}

	if _, _, err := c.Scheduler.At(); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Scheduler.Concurrency < 1 {
		errs = append(errs, fmt.Sprintf("invalid scheduler concurrency %d: must be at least 1", c.Scheduler.Concurrency))
	}

	if c.AMQP.URL != "" {
		if parsedURL, err := url.Parse(c.AMQP.URL); err != nil {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQP.URL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQP.Exchange == "" {
			errs = append(errs, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
	}

	if c.S3.Bucket != "" {
		if c.S3.Region == "" {
			errs = append(errs, "S3 region is required when a bucket is configured")
		}
		if (c.S3.AccessKey == "") != (c.S3.SecretKey == "") {
			errs = append(errs, "S3 access key and secret key must be set together")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}

// Location returns the configured family time zone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// At parses GenerateAt as HH:MM.
func (s SchedulerConfig) At() (hour, minute int, err error) {
	t, err := time.Parse("15:04", s.GenerateAt)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid scheduler generate_at '%s': must be HH:MM", s.GenerateAt)
	}
	return t.Hour(), t.Minute(), nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
