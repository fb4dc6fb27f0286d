// Package config loads the strata CLI configuration from a file and the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/aretw0/strata/internal/platform"
	"github.com/aretw0/strata/pkg/ingest"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "STRATA"

// Config represents the application configuration
type Config struct {
	Adapter        string        `mapstructure:"adapter"`
	MappingDir     string        `mapstructure:"mapping_dir"`
	MappingPattern string        `mapstructure:"mapping_pattern"`
	Elastic        ElasticConfig `mapstructure:"elastic"`
	Kafka          KafkaConfig   `mapstructure:"kafka"`

	// File is the config file that was read, empty when only defaults and env were used.
	File string `mapstructure:"-"`
}

// ElasticConfig contains search engine connection settings
type ElasticConfig struct {
	Addresses      []string `mapstructure:"addresses"`
	Username       string   `mapstructure:"username"`
	Password       string   `mapstructure:"password"`
	IndexPrefix    string   `mapstructure:"index_prefix"`
	BulkCommitSize int      `mapstructure:"bulk_commit_size"`
}

// KafkaConfig contains ingest worker settings
type KafkaConfig struct {
	Brokers       []string       `mapstructure:"brokers"`
	GroupID       string         `mapstructure:"group_id"`
	Topics        []string       `mapstructure:"topics"`
	Routes        []ingest.Route `mapstructure:"routes"`
	BatchSize     int            `mapstructure:"batch_size"`
	FlushInterval time.Duration  `mapstructure:"flush_interval"`
}

// Load reads configPath (or strata.yaml in the project root when empty) and
// overlays STRATA_* environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else if root, err := findRoot(); err == nil {
		v.SetConfigName("strata")
		v.AddConfigPath(root)
		v.AddConfigPath(filepath.Join(root, ".strata"))
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()

	// Relative mapping dirs follow the config file, not the working directory.
	if cfg.File != "" && cfg.MappingDir != "" && !filepath.IsAbs(cfg.MappingDir) {
		cfg.MappingDir = filepath.Join(filepath.Dir(cfg.File), cfg.MappingDir)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func findRoot() (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return platform.FindRoot(wd)
}

// setDefaults sets default configuration values. Every key has a default so
// that AutomaticEnv can override it during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("adapter", "elastic")
	v.SetDefault("mapping_dir", "mappings")
	v.SetDefault("mapping_pattern", "**/*.{yaml,yml}")

	v.SetDefault("elastic.addresses", []string{"http://localhost:9200"})
	v.SetDefault("elastic.username", "")
	v.SetDefault("elastic.password", "")
	v.SetDefault("elastic.index_prefix", "")
	v.SetDefault("elastic.bulk_commit_size", 100)

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.group_id", "strata")
	v.SetDefault("kafka.topics", []string{})
	v.SetDefault("kafka.batch_size", 100)
	v.SetDefault("kafka.flush_interval", "5s")
}

// Validate performs validation on the configuration
func (c *Config) Validate() error {
	switch c.Adapter {
	case "elastic":
		if len(c.Elastic.Addresses) == 0 {
			return errors.New("elastic.addresses is required")
		}
	case "memory":
	default:
		return fmt.Errorf("adapter must be elastic or memory, got %q", c.Adapter)
	}
	if c.MappingDir == "" {
		return errors.New("mapping_dir is required")
	}
	if c.Elastic.BulkCommitSize < 1 {
		return errors.New("elastic.bulk_commit_size must be at least 1")
	}
	if c.Kafka.BatchSize < 1 {
		return errors.New("kafka.batch_size must be at least 1")
	}
	if c.Kafka.FlushInterval <= 0 {
		return errors.New("kafka.flush_interval must be positive")
	}
	return nil
}

// Options translates the configuration into manager options.
func (c *Config) Options(logger *slog.Logger) []platform.Option {
	opts := []platform.Option{
		platform.WithAdapter(c.Adapter),
		platform.WithMappingDir(c.MappingDir),
		platform.WithMappingPattern(c.MappingPattern),
		platform.WithAddresses(c.Elastic.Addresses...),
		platform.WithIndexPrefix(c.Elastic.IndexPrefix),
		platform.WithBulkCommitSize(c.Elastic.BulkCommitSize),
	}
	if c.Elastic.Username != "" {
		opts = append(opts, platform.WithCredentials(c.Elastic.Username, c.Elastic.Password))
	}
	if logger != nil {
		opts = append(opts, platform.WithLogger(logger))
	}
	return opts
}

// Ingest returns the worker configuration.
func (c *Config) Ingest(logger *slog.Logger) ingest.Config {
	return ingest.Config{
		Brokers:       c.Kafka.Brokers,
		GroupID:       c.Kafka.GroupID,
		Topics:        c.Kafka.Topics,
		Routes:        c.Kafka.Routes,
		BatchSize:     c.Kafka.BatchSize,
		FlushInterval: c.Kafka.FlushInterval,
		Logger:        logger,
	}
}
