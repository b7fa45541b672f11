package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type DiscordConfig struct {
	Token    string `yaml:"token" validate:"required"`
	ClientID string `yaml:"client_id" validate:"required"`

	Permissions int64 `yaml:"-"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host" validate:"required"`
	Port     int    `yaml:"port" validate:"required,min=1,max=65535"`
	User     string `yaml:"user" validate:"required"`
	Password string `yaml:"password" validate:"required"`
	DBName   string `yaml:"dbname" validate:"required"`
	SSLMode  string `yaml:"sslmode" validate:"required"`
}

// AttendanceConfig tunes the submission pipeline. Zero values take the
// defaults below.
type AttendanceConfig struct {
	FormMaxConcurrency      int64 `yaml:"form_max_concurrency" validate:"min=0"`
	StoreMaxConcurrency     int64 `yaml:"store_max_concurrency" validate:"min=0"`
	AttemptTimeoutSeconds   int   `yaml:"attempt_timeout_seconds" validate:"min=0"`
	ConfigureTimeoutSeconds int   `yaml:"configure_timeout_seconds" validate:"min=0"`
}

type Config struct {
	Discord    DiscordConfig    `yaml:"discord"`
	Database   DatabaseConfig   `yaml:"database"`
	Attendance AttendanceConfig `yaml:"attendance"`
}

const (
	defaultFormConcurrency  = 10
	defaultStoreConcurrency = 10
	defaultAttemptTimeout   = 15
	defaultConfigureTimeout = 60
)

func Load() (*Config, error) {
	data, err := os.ReadFile("config.yaml")
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Replace environment variables in the YAML content
	content := string(data)
	for _, env := range os.Environ() {
		pair := strings.SplitN(env, "=", 2)
		if len(pair) != 2 {
			continue
		}
		placeholder := "${" + pair[0] + "}"
		content = strings.ReplaceAll(content, placeholder, pair[1])
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(content), &cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	// Convert DB_PORT from string to int if it's an environment variable
	if portStr := os.Getenv("DB_PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, fmt.Errorf("invalid DB_PORT value: %w", err)
		}
		cfg.Database.Port = port
	}

	cfg.applyDefaults()

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Attendance.FormMaxConcurrency == 0 {
		c.Attendance.FormMaxConcurrency = defaultFormConcurrency
	}
	if c.Attendance.StoreMaxConcurrency == 0 {
		c.Attendance.StoreMaxConcurrency = defaultStoreConcurrency
	}
	if c.Attendance.AttemptTimeoutSeconds == 0 {
		c.Attendance.AttemptTimeoutSeconds = defaultAttemptTimeout
	}
	if c.Attendance.ConfigureTimeoutSeconds == 0 {
		c.Attendance.ConfigureTimeoutSeconds = defaultConfigureTimeout
	}
}
