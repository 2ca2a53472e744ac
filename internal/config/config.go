package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"salonbook/internal/availability"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		Debug    bool   `yaml:"debug"`
	} `yaml:"telegram"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Backup struct {
		Enabled       bool   `yaml:"enabled"`
		IntervalHours int    `yaml:"interval_hours"`
		Path          string `yaml:"path"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"backup"`

	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	API struct {
		BaseURL              string  `yaml:"base_url"`
		APIKey               string  `yaml:"api_key"`
		TimeoutSeconds       int     `yaml:"timeout_seconds"`
		CacheTTLSeconds      int     `yaml:"cache_ttl_seconds"`
		TakenCacheTTLSeconds int     `yaml:"taken_cache_ttl_seconds"`
		RatePerSecond        float64 `yaml:"rate_per_second"`
		Burst                int     `yaml:"burst"`
	} `yaml:"api"`

	HTTP struct {
		Enabled bool `yaml:"enabled"`
		Port    int  `yaml:"port"`
	} `yaml:"http"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Booking struct {
		Timezone              string `yaml:"timezone"`
		MaxAdvanceDays        int    `yaml:"max_advance_days"`
		ConflictPolicy        string `yaml:"conflict_policy"`
		SessionTimeoutMinutes int    `yaml:"session_timeout_minutes"`
		HoursPath             string `yaml:"hours_path"`
	} `yaml:"booking"`

	Reminders struct {
		Enabled              bool `yaml:"enabled"`
		CheckIntervalMinutes int  `yaml:"check_interval_minutes"`
		HoursBefore          int  `yaml:"hours_before"`
	} `yaml:"reminders"`

	Audit struct {
		Enabled       bool `yaml:"enabled"`
		RetentionDays int  `yaml:"retention_days"`
	} `yaml:"audit"`

	Salon SalonInfo `yaml:"salon"`

	Managers []int64 `yaml:"managers"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`

	location *time.Location
	policy   availability.Policy
}

// SalonInfo is the public contact card shown by /salon.
type SalonInfo struct {
	Name    string `yaml:"name"`
	Address string `yaml:"address"`
	Phone   string `yaml:"phone"`
	Email   string `yaml:"email"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	if err = cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Database.Path == "" {
		c.Database.Path = "data/salonbook.db"
	}
	if c.API.TimeoutSeconds <= 0 {
		c.API.TimeoutSeconds = 10
	}
	if c.API.Burst <= 0 {
		c.API.Burst = 5
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.Monitoring.HealthCheckPort == 0 {
		c.Monitoring.HealthCheckPort = 8090
	}
	if c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.Booking.Timezone == "" {
		c.Booking.Timezone = "Local"
	}
	if c.Booking.MaxAdvanceDays <= 0 {
		c.Booking.MaxAdvanceDays = 60
	}
	if c.Booking.SessionTimeoutMinutes <= 0 {
		c.Booking.SessionTimeoutMinutes = 30
	}
	if c.Booking.HoursPath == "" {
		c.Booking.HoursPath = "configs/hours.yaml"
	}
	if c.Reminders.CheckIntervalMinutes <= 0 {
		c.Reminders.CheckIntervalMinutes = 15
	}
	if c.Reminders.HoursBefore <= 0 {
		c.Reminders.HoursBefore = 24
	}
	if c.Audit.RetentionDays <= 0 {
		c.Audit.RetentionDays = 365
	}
	if c.Salon.Name == "" {
		c.Salon.Name = "Hair Salon"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate checks fields that cannot be defaulted.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("api.base_url: invalid url '%s'", c.API.BaseURL)
	}
	if c.API.RatePerSecond < 0 {
		return fmt.Errorf("api.rate_per_second cannot be negative")
	}

	loc, err := time.LoadLocation(c.Booking.Timezone)
	if err != nil {
		return fmt.Errorf("booking.timezone: %w", err)
	}
	c.location = loc

	policy, err := availability.ParsePolicy(c.Booking.ConflictPolicy)
	if err != nil {
		return fmt.Errorf("booking.conflict_policy: %w", err)
	}
	c.policy = policy

	if c.Redis.DB < 0 {
		return fmt.Errorf("redis.db cannot be negative")
	}
	return nil
}

// Location is the salon's time zone. Dates and "today" are evaluated in it.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.Local
	}
	return c.location
}

func (c *Config) ConflictPolicy() availability.Policy {
	if c.policy == "" {
		return availability.PolicySelfOverlap
	}
	return c.policy
}

func (c *Config) BookingMaxAdvance() time.Duration {
	return time.Duration(c.Booking.MaxAdvanceDays) * 24 * time.Hour
}

func (c *Config) SessionTimeout() time.Duration {
	return time.Duration(c.Booking.SessionTimeoutMinutes) * time.Minute
}

func (c *Config) APITimeout() time.Duration {
	return time.Duration(c.API.TimeoutSeconds) * time.Second
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.API.CacheTTLSeconds) * time.Second
}

func (c *Config) TakenCacheTTL() time.Duration {
	return time.Duration(c.API.TakenCacheTTLSeconds) * time.Second
}

// LoadHours reads booking.hours_path. A missing file yields the default week.
func (c *Config) LoadHours() (*HoursConfig, error) {
	if _, err := os.Stat(c.Booking.HoursPath); os.IsNotExist(err) {
		return DefaultHoursConfig(), nil
	}
	return LoadHoursConfig(c.Booking.HoursPath)
}
