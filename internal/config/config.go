// Package config loads the validator configuration in three layers: struct
// defaults, an optional YAML file, then FV_-prefixed environment variables.
// A .env file in the working directory is loaded into the environment first.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"file-validator-service/internal/logging"
	"file-validator-service/internal/schema"
	"file-validator-service/internal/storage"
	"file-validator-service/internal/store"
)

// EnvPrefix prefixes every environment override: FV_REPORT_DIR -> report.dir
const EnvPrefix = "FV_"

// ConfigPathEnvVar overrides the config file path
const ConfigPathEnvVar = "FV_CONFIG_PATH"

// DefaultConfigPaths are searched in order when no path is given
var DefaultConfigPaths = []string{
	"validator.yaml",
	"validator.yml",
}

// sliceConfigPaths are split on commas when they come from the environment
var sliceConfigPaths = []string{
	"report.formats",
}

var ErrConfigNotFound = errors.New("config file not found")

type Config struct {
	Schema     schema.Options   `koanf:"schema"`
	Validation ValidationConfig `koanf:"validation"`
	Report     ReportConfig     `koanf:"report"`
	Storage    StorageConfig    `koanf:"storage"`
	Database   DatabaseConfig   `koanf:"database"`
	Logging    LoggingConfig    `koanf:"logging"`
}

type ValidationConfig struct {
	StorePasses    bool   `koanf:"store_passes"`
	LogRows        bool   `koanf:"log_rows"`
	CheckExtension bool   `koanf:"check_extension"`
	Sheet          string `koanf:"sheet"`
}

type ReportConfig struct {
	Dir     string   `koanf:"dir" validate:"required"`
	Name    string   `koanf:"name"`
	Formats []string `koanf:"formats" validate:"dive,oneof=text csv json xlsx html prometheus"`
}

type StorageConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Bucket   string `koanf:"bucket" validate:"required_if=Enabled true"`
	Prefix   string `koanf:"prefix"`
	Region   string `koanf:"region"`
	Endpoint string `koanf:"endpoint" validate:"omitempty,url"`
}

type DatabaseConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path" validate:"required_if=Enabled true"`
}

type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal panic disabled"`
	Format string `koanf:"format" validate:"oneof=console json"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Schema: schema.DefaultOptions(),
		Validation: ValidationConfig{
			CheckExtension: true,
		},
		Report: ReportConfig{
			Dir:     "reports",
			Formats: []string{"text"},
		},
		Storage: StorageConfig{
			Region: "eu-west-1",
		},
		Database: DatabaseConfig{
			Path: store.DefaultConfig().Path,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load builds the configuration. An explicit path must exist; without one the
// FV_CONFIG_PATH variable and DefaultConfigPaths are tried.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
	} else {
		path = findConfigFile()
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) normalize() {
	for i, f := range c.Report.Formats {
		c.Report.Formats[i] = strings.ToLower(strings.TrimSpace(f))
	}
	c.Logging.Level = strings.ToLower(c.Logging.Level)
	c.Logging.Format = strings.ToLower(c.Logging.Format)
}

var validate = validator.New()

// Validate checks the struct tags
func (c *Config) Validate() error {
	return validate.Struct(c)
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envTransformFunc maps FV_SECTION_SOME_KEY to section.some_key
func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	if key == "config_path" {
		return ""
	}
	section, rest, ok := strings.Cut(key, "_")
	if !ok {
		return key
	}
	return section + "." + rest
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		var parts []string
		for _, p := range strings.Split(strVal, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if err := k.Set(path, parts); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// LoggerConfig returns the logger settings
func (c *Config) LoggerConfig() logging.Config {
	return logging.Config{Level: c.Logging.Level, Format: c.Logging.Format}
}

// S3Config returns the storage settings as an S3 client configuration
func (c *Config) S3Config() storage.Config {
	return storage.Config{
		Bucket:   c.Storage.Bucket,
		Prefix:   c.Storage.Prefix,
		Region:   c.Storage.Region,
		Endpoint: c.Storage.Endpoint,
	}
}

// StoreConfig returns the database settings
func (c *Config) StoreConfig() store.Config {
	return store.Config{Path: c.Database.Path}
}
