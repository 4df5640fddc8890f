// Package config loads pipeline configuration from a YAML file with
// environment-variable overrides. Nothing in the pipeline reads ambient
// process state directly; every component receives its configuration
// explicitly at construction.
package config

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/tunelake/lakehouse-etl/internal/logging"
	"github.com/tunelake/lakehouse-etl/internal/metrics"
)

// Config is the full configuration for one pipeline run.
type Config struct {
	Logging logging.Config `yaml:"logging"`
	Metrics metrics.Config `yaml:"metrics"`
	Source  SourceConfig   `yaml:"source"`
	Sink    SinkConfig     `yaml:"sink"`
}

// SourceConfig configures where raw records are read from.
type SourceConfig struct {
	Mode string `yaml:"mode"` // "local" | "s3" | "gcs"

	// Local filesystem
	LocalPath string `yaml:"local_path"`

	// Object storage (s3 also works for B2, R2, MinIO)
	Bucket     string `yaml:"bucket"`
	Prefix     string `yaml:"prefix"`
	S3Endpoint string `yaml:"s3_endpoint"`
	S3Region   string `yaml:"s3_region"`

	// Glob patterns, relative to the base path / prefix.
	CatalogGlob  string `yaml:"catalog_glob"`
	ActivityGlob string `yaml:"activity_glob"`
}

// SinkConfig configures where derived tables are written.
type SinkConfig struct {
	Backend string `yaml:"backend"` // "local" | "s3" | "gcs"

	// Local filesystem
	LocalDir string `yaml:"local_dir"`

	// Object storage
	Bucket     string `yaml:"bucket"`
	Prefix     string `yaml:"prefix"`
	S3Endpoint string `yaml:"s3_endpoint"`
	S3Region   string `yaml:"s3_region"`

	// WriteEnabled false computes every table but skips all writes (dry run).
	WriteEnabled bool `yaml:"write_enabled"`

	// Compression codec for parquet part files: "snappy" | "zstd" | "none".
	Compression string `yaml:"compression"`
}

// Default returns the configuration defaults applied before the YAML file
// and environment overrides.
func Default() Config {
	return Config{
		Logging: logging.Config{
			Format: "text",
			Level:  "info",
		},
		Metrics: metrics.Config{
			Enabled: false,
			Address: ":9090",
		},
		Source: SourceConfig{
			Mode:         "local",
			LocalPath:    "./data",
			CatalogGlob:  "catalog-data/**/*.json",
			ActivityGlob: "activity-data/**/*.json",
		},
		Sink: SinkConfig{
			Backend:      "local",
			LocalDir:     "./warehouse",
			WriteEnabled: true,
			Compression:  "snappy",
		},
	}
}

// Load reads the YAML file at path (if path is non-empty), applies
// environment overrides, validates, and returns the configuration.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// MustLoad is Load with a fatal exit on error, for use from main.
func MustLoad(path string) Config {
	cfg, err := Load(path)
	if err != nil {
		slog.Error("configuration invalid", "error", err)
		os.Exit(1)
	}
	return cfg
}

// applyEnv layers environment variables over the file-provided values.
func applyEnv(cfg *Config) {
	cfg.Logging.Format = getenvDefault("LOG_FORMAT", cfg.Logging.Format)
	cfg.Logging.Level = getenvDefault("LOG_LEVEL", cfg.Logging.Level)

	if v := os.Getenv("METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = v == "true"
	}
	cfg.Metrics.Address = getenvDefault("METRICS_ADDRESS", cfg.Metrics.Address)

	cfg.Source.Mode = getenvDefault("SOURCE_MODE", cfg.Source.Mode)
	cfg.Source.LocalPath = getenvDefault("SOURCE_LOCAL_PATH", cfg.Source.LocalPath)
	cfg.Source.Bucket = getenvDefault("SOURCE_BUCKET", cfg.Source.Bucket)
	cfg.Source.Prefix = getenvDefault("SOURCE_PREFIX", cfg.Source.Prefix)
	cfg.Source.S3Endpoint = getenvDefault("SOURCE_S3_ENDPOINT", cfg.Source.S3Endpoint)
	cfg.Source.S3Region = getenvDefault("SOURCE_S3_REGION", cfg.Source.S3Region)

	cfg.Sink.Backend = getenvDefault("SINK_BACKEND", cfg.Sink.Backend)
	cfg.Sink.LocalDir = getenvDefault("SINK_LOCAL_DIR", cfg.Sink.LocalDir)
	cfg.Sink.Bucket = getenvDefault("SINK_BUCKET", cfg.Sink.Bucket)
	cfg.Sink.Prefix = getenvDefault("SINK_PREFIX", cfg.Sink.Prefix)
	cfg.Sink.S3Endpoint = getenvDefault("SINK_S3_ENDPOINT", cfg.Sink.S3Endpoint)
	cfg.Sink.S3Region = getenvDefault("SINK_S3_REGION", cfg.Sink.S3Region)
	if v := os.Getenv("WRITE_ENABLED"); v != "" {
		cfg.Sink.WriteEnabled = v == "true"
	}
}

// Validate checks that the configuration is internally consistent.
func (c Config) Validate() error {
	switch c.Source.Mode {
	case "local":
		if c.Source.LocalPath == "" {
			return fmt.Errorf("source.local_path required for local mode")
		}
	case "s3", "gcs":
		if c.Source.Bucket == "" {
			return fmt.Errorf("source.bucket required for %s mode", c.Source.Mode)
		}
	default:
		return fmt.Errorf("unknown source mode: %q", c.Source.Mode)
	}

	if c.Source.CatalogGlob == "" || c.Source.ActivityGlob == "" {
		return fmt.Errorf("source.catalog_glob and source.activity_glob must be set")
	}

	switch c.Sink.Backend {
	case "local":
		if c.Sink.LocalDir == "" {
			return fmt.Errorf("sink.local_dir required for local backend")
		}
	case "s3", "gcs":
		if c.Sink.Bucket == "" {
			return fmt.Errorf("sink.bucket required for %s backend", c.Sink.Backend)
		}
	default:
		return fmt.Errorf("unknown sink backend: %q", c.Sink.Backend)
	}

	switch c.Sink.Compression {
	case "snappy", "zstd", "none":
	default:
		return fmt.Errorf("unknown compression codec: %q", c.Sink.Compression)
	}

	return nil
}

func getenvDefault(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}
