// Package config loads server configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the full server configuration.
type Config struct {
	// ListenAddr is the address for the artifact HTTP server.
	ListenAddr string

	// MetricsAddr is the address for the Prometheus metrics server.
	MetricsAddr string

	// Logging
	LogLevel  string // debug, info, warn, error
	LogFormat string // json, console

	// StorageBackend selects the object store: gcs, s3 or local.
	StorageBackend string

	// GCS settings (STORAGE_BACKEND=gcs)
	GCSBucket string

	// S3 settings (STORAGE_BACKEND=s3)
	S3Endpoint  string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3Region    string

	// Local settings (STORAGE_BACKEND=local)
	LocalStoragePath string

	// CDNEndpoint is the base URL purge calls go to; empty disables
	// CDN invalidation.
	CDNEndpoint string

	// PublishTimezone is the repository's operating timezone for the
	// unversioned-response Expires heuristic.
	PublishTimezone string

	// Timeouts
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables and validates the
// combination.
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:  envOr("LISTEN_ADDR", ":8080"),
		MetricsAddr: envOr("METRICS_ADDR", ":9090"),

		LogLevel:  envOr("LOG_LEVEL", "info"),
		LogFormat: envOr("LOG_FORMAT", "json"),

		StorageBackend: envOr("STORAGE_BACKEND", "local"),

		GCSBucket: os.Getenv("GCS_BUCKET"),

		S3Endpoint:  os.Getenv("S3_ENDPOINT"),
		S3Bucket:    os.Getenv("S3_BUCKET"),
		S3AccessKey: os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey: os.Getenv("S3_SECRET_KEY"),
		S3Region:    envOr("S3_REGION", "us-east-1"),

		LocalStoragePath: envOr("LOCAL_STORAGE_PATH", "./data"),

		CDNEndpoint: os.Getenv("CDN_ENDPOINT"),

		PublishTimezone: envOr("PUBLISH_TIMEZONE", "America/New_York"),

		ReadTimeout:     envOrDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:    envOrDuration("WRITE_TIMEOUT", 10*time.Minute),
		ShutdownTimeout: envOrDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StorageBackend {
	case "gcs":
		if c.GCSBucket == "" {
			return fmt.Errorf("GCS_BUCKET is required when STORAGE_BACKEND=gcs")
		}
	case "s3":
		if c.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required when STORAGE_BACKEND=s3")
		}
		if c.S3AccessKey == "" || c.S3SecretKey == "" {
			return fmt.Errorf("S3_ACCESS_KEY and S3_SECRET_KEY are required when STORAGE_BACKEND=s3")
		}
	case "local":
		if c.LocalStoragePath == "" {
			return fmt.Errorf("LOCAL_STORAGE_PATH is required when STORAGE_BACKEND=local")
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q (want gcs, s3 or local)", c.StorageBackend)
	}

	if _, err := time.LoadLocation(c.PublishTimezone); err != nil {
		return fmt.Errorf("invalid PUBLISH_TIMEZONE %q: %w", c.PublishTimezone, err)
	}
	return nil
}

// PublishLocation resolves the configured timezone. Load has already
// validated it.
func (c *Config) PublishLocation() *time.Location {
	loc, err := time.LoadLocation(c.PublishTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		if secs, err := strconv.Atoi(v); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return fallback
}
