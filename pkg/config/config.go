// Package config loads server configuration from defaults, an optional
// YAML file and environment variables, in that order of precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds server configuration.
type Config struct {
	Port      string `yaml:"port"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// DatabaseURL selects PostgreSQL. When empty the server runs in lite
	// mode on SQLite under DataDir.
	DatabaseURL string `yaml:"database_url"`
	DataDir     string `yaml:"data_dir"`

	Images ImageConfig `yaml:"images"`

	RedisURL string        `yaml:"redis_url"`
	CacheTTL time.Duration `yaml:"cache_ttl"`

	OperatorPassphraseHash string        `yaml:"operator_passphrase_hash"`
	SessionTTL             time.Duration `yaml:"session_ttl"`
	// SessionKeySeed is a hex encoded 32-byte seed for the session signing
	// key. Empty generates a key per process.
	SessionKeySeed string `yaml:"session_key_seed"`

	RateLimitRPS   int `yaml:"rate_limit_rps"`
	RateLimitBurst int `yaml:"rate_limit_burst"`

	OTelEnabled  bool   `yaml:"otel_enabled"`
	OTelEndpoint string `yaml:"otel_endpoint"`
	OTelInsecure bool   `yaml:"otel_insecure"`
}

// ImageConfig selects and configures the object store for images.
type ImageConfig struct {
	StorageType string `yaml:"storage_type"` // fs | s3 | gcs
	BaseURL     string `yaml:"base_url"`
	// Placeholder is shown for recipes without a main image. It is served
	// from outside the image store, so it must be an absolute URL or a path
	// the deployment hosts itself.
	Placeholder string `yaml:"placeholder"`

	S3Bucket    string `yaml:"s3_bucket"`
	S3Region    string `yaml:"s3_region"`
	S3Endpoint  string `yaml:"s3_endpoint"`
	S3Prefix    string `yaml:"s3_prefix"`
	S3PublicURL string `yaml:"s3_public_url"`

	GCSBucket string `yaml:"gcs_bucket"`
	GCSPrefix string `yaml:"gcs_prefix"`
}

// LiteMode reports whether no external database is configured.
func (c *Config) LiteMode() bool {
	return c.DatabaseURL == ""
}

// SQLitePath is the lite mode database file.
func (c *Config) SQLitePath() string {
	return filepath.Join(c.DataDir, "recipes.db")
}

// DefaultPlaceholder is the stock photo shown for recipes without an image.
const DefaultPlaceholder = "https://images.unsplash.com/photo-1547592166-23ac45744acd?q=80&w=800"

// Defaults returns the configuration used when nothing is set.
func Defaults() *Config {
	return &Config{
		Port:      "8080",
		LogLevel:  "INFO",
		LogFormat: "text",
		DataDir:   "data",
		Images: ImageConfig{
			StorageType: "fs",
			BaseURL:     "/images",
			Placeholder: DefaultPlaceholder,
			S3Region:    "us-east-1",
		},
		CacheTTL:       5 * time.Minute,
		SessionTTL:     12 * time.Hour,
		RateLimitRPS:   10,
		RateLimitBurst: 20,
		OTelEndpoint:   "localhost:4317",
	}
}

// Load builds the configuration: defaults, then the YAML file named by
// RECIPESITE_CONFIG if any, then environment variables.
func Load() (*Config, error) {
	cfg := Defaults()

	if path := os.Getenv("RECIPESITE_CONFIG"); path != "" {
		if err := LoadFile(cfg, path); err != nil {
			return nil, err
		}
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile overlays the YAML file at path onto cfg.
func LoadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("load config %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %q: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	str("PORT", &cfg.Port)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("LOG_FORMAT", &cfg.LogFormat)
	str("DATABASE_URL", &cfg.DatabaseURL)
	str("DATA_DIR", &cfg.DataDir)
	str("IMAGE_STORAGE_TYPE", &cfg.Images.StorageType)
	str("IMAGE_BASE_URL", &cfg.Images.BaseURL)
	str("IMAGE_PLACEHOLDER", &cfg.Images.Placeholder)
	str("IMAGE_S3_BUCKET", &cfg.Images.S3Bucket)
	str("IMAGE_S3_REGION", &cfg.Images.S3Region)
	str("IMAGE_S3_ENDPOINT", &cfg.Images.S3Endpoint)
	str("IMAGE_S3_PREFIX", &cfg.Images.S3Prefix)
	str("IMAGE_S3_PUBLIC_URL", &cfg.Images.S3PublicURL)
	str("IMAGE_GCS_BUCKET", &cfg.Images.GCSBucket)
	str("IMAGE_GCS_PREFIX", &cfg.Images.GCSPrefix)
	str("REDIS_URL", &cfg.RedisURL)
	str("OPERATOR_PASSPHRASE_HASH", &cfg.OperatorPassphraseHash)
	str("SESSION_KEY_SEED", &cfg.SessionKeySeed)
	str("OTEL_EXPORTER_OTLP_ENDPOINT", &cfg.OTelEndpoint)

	for key, dst := range map[string]*time.Duration{
		"CACHE_TTL":   &cfg.CacheTTL,
		"SESSION_TTL": &cfg.SessionTTL,
	} {
		if v := os.Getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid %s %q: %w", key, v, err)
			}
			*dst = d
		}
	}

	for key, dst := range map[string]*int{
		"RATE_LIMIT_RPS":   &cfg.RateLimitRPS,
		"RATE_LIMIT_BURST": &cfg.RateLimitBurst,
	} {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid %s %q: %w", key, v, err)
			}
			*dst = n
		}
	}

	if v := os.Getenv("OTEL_ENABLED"); v != "" {
		cfg.OTelEnabled = parseBool(v)
	}
	if v := os.Getenv("OTEL_INSECURE"); v != "" {
		cfg.OTelInsecure = parseBool(v)
	}
	return nil
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
