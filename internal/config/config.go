package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/vjranagit/telemetry/pkg/logging"
	"github.com/vjranagit/telemetry/pkg/storage"
)

// Config holds the application configuration
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Logging LoggingConfig `yaml:"logging"`
	// Catalog registers the built-in global definitions at startup
	Catalog bool `yaml:"catalog"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	ListenAddr string        `yaml:"listen_addr" validate:"required"`
	Timeout    time.Duration `yaml:"timeout" validate:"gt=0"`
	// EvalTimeout bounds a single evaluation request
	EvalTimeout time.Duration `yaml:"eval_timeout" validate:"gt=0"`
}

// StorageConfig holds storage configuration
type StorageConfig struct {
	Backend          string       `yaml:"backend" validate:"oneof=badger influxdb"`
	Path             string       `yaml:"path"`
	CompressionLevel int          `yaml:"compression_level" validate:"min=1,max=4"`
	InMemory         bool         `yaml:"in_memory"`
	Influx           InfluxConfig `yaml:"influx"`
}

// InfluxConfig locates the InfluxDB bucket used by the influxdb backend
type InfluxConfig struct {
	URL    string `yaml:"url" validate:"omitempty,url"`
	Token  string `yaml:"token"`
	Org    string `yaml:"org"`
	Bucket string `yaml:"bucket"`
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error DEBUG INFO WARN WARNING ERROR"`
	JSON  bool   `yaml:"json"`
}

var validate = validator.New()

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr:  ":8080",
			Timeout:     30 * time.Second,
			EvalTimeout: 20 * time.Second,
		},
		Storage: StorageConfig{
			Backend:          storage.BackendBadger,
			Path:             "./data",
			CompressionLevel: 2,
		},
		Logging: LoggingConfig{Level: "info"},
		Catalog: true,
	}
}

// Load builds the configuration from defaults, then the YAML file at path
// (skipped when path is empty), then TELEMETRY_* environment variables.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Server.ListenAddr = getEnv("TELEMETRY_LISTEN_ADDR", c.Server.ListenAddr)
	c.Storage.Backend = getEnv("TELEMETRY_STORAGE_BACKEND", c.Storage.Backend)
	c.Storage.Path = getEnv("TELEMETRY_STORAGE_PATH", c.Storage.Path)
	c.Storage.Influx.URL = getEnv("TELEMETRY_INFLUX_URL", c.Storage.Influx.URL)
	c.Storage.Influx.Token = getEnv("TELEMETRY_INFLUX_TOKEN", c.Storage.Influx.Token)
	c.Storage.Influx.Org = getEnv("TELEMETRY_INFLUX_ORG", c.Storage.Influx.Org)
	c.Storage.Influx.Bucket = getEnv("TELEMETRY_INFLUX_BUCKET", c.Storage.Influx.Bucket)
	c.Logging.Level = getEnv("TELEMETRY_LOG_LEVEL", c.Logging.Level)

	var err error
	if c.Server.Timeout, err = getEnvDuration("TELEMETRY_TIMEOUT", c.Server.Timeout); err != nil {
		return err
	}
	if c.Server.EvalTimeout, err = getEnvDuration("TELEMETRY_EVAL_TIMEOUT", c.Server.EvalTimeout); err != nil {
		return err
	}
	if c.Storage.CompressionLevel, err = getEnvInt("TELEMETRY_COMPRESSION_LEVEL", c.Storage.CompressionLevel); err != nil {
		return err
	}
	if c.Storage.InMemory, err = getEnvBool("TELEMETRY_STORAGE_IN_MEMORY", c.Storage.InMemory); err != nil {
		return err
	}
	if c.Logging.JSON, err = getEnvBool("TELEMETRY_LOG_JSON", c.Logging.JSON); err != nil {
		return err
	}
	if c.Catalog, err = getEnvBool("TELEMETRY_CATALOG", c.Catalog); err != nil {
		return err
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}

	switch c.Storage.Backend {
	case storage.BackendBadger:
		if c.Storage.Path == "" && !c.Storage.InMemory {
			return errors.New("storage path is required unless in_memory is set")
		}
	case storage.BackendInflux:
		if c.Storage.Influx.URL == "" || c.Storage.Influx.Org == "" || c.Storage.Influx.Bucket == "" {
			return errors.New("influxdb backend requires url, org and bucket")
		}
	}
	return nil
}

// LogLevel returns the configured logging level
func (c *Config) LogLevel() logging.Level {
	// Validate has already restricted the value to known names
	lvl, _ := logging.ParseLevel(c.Logging.Level)
	return lvl
}

// ToStorageConfig converts to storage.Config
func (c *Config) ToStorageConfig() *storage.Config {
	return &storage.Config{
		Backend:          c.Storage.Backend,
		Path:             c.Storage.Path,
		CompressionLevel: c.Storage.CompressionLevel,
		InMemory:         c.Storage.InMemory,
		Influx: storage.InfluxConfig{
			URL:    c.Storage.Influx.URL,
			Token:  c.Storage.Influx.Token,
			Org:    c.Storage.Influx.Org,
			Bucket: c.Storage.Influx.Bucket,
		},
	}
}

// Helper functions for environment variables
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return i, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
