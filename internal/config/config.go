// Package config loads and validates frontier configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendLocal    = "local"
	BackendGCS      = "gcs"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	DB         DBConfig         `mapstructure:"db"`
	Store      StoreConfig      `mapstructure:"store"`
	Lease      LeaseConfig      `mapstructure:"lease"`
	Scores     ScoresConfig     `mapstructure:"scores"`
	Ingest     IngestConfig     `mapstructure:"ingest"`
	Archive    ArchiveConfig    `mapstructure:"archive"`
	PubSub     PubSubConfig     `mapstructure:"pubsub"`
	Background BackgroundConfig `mapstructure:"background"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// DBConfig controls the Postgres pool.
type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	Table           string        `mapstructure:"table"`
	CreateTables    bool          `mapstructure:"create_tables"`
}

// StoreConfig selects the frontier backend.
type StoreConfig struct {
	Backend string `mapstructure:"backend"`
}

// LeaseConfig tunes the lease allocator and its per-user rate limit.
type LeaseConfig struct {
	BatchSize         int           `mapstructure:"batch_size"`
	TTL               time.Duration `mapstructure:"ttl"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
}

// ScoresConfig tunes the score reader.
type ScoresConfig struct {
	ChunkSize int `mapstructure:"chunk_size"`
}

// IngestConfig controls batch ingestion.
type IngestConfig struct {
	TrustedDomains []string `mapstructure:"trusted_domains"`
	BlockedDomains []string `mapstructure:"blocked_domains"`
	MaxItems       int      `mapstructure:"max_items"`
	UserIDSalt     string   `mapstructure:"user_id_salt"`
}

// ArchiveConfig selects where raw batches are kept.
type ArchiveConfig struct {
	Backend   string `mapstructure:"backend"`
	BaseDir   string `mapstructure:"base_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// PubSubConfig holds metadata for batch notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// Enabled reports whether both project and topic are set.
func (c PubSubConfig) Enabled() bool {
	return c.ProjectID != "" && c.TopicName != ""
}

// BackgroundConfig controls the maintenance loop.
type BackgroundConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// Load builds a Config from disk/environment. Environment variables use the
// FRONTIER_ prefix with dots replaced by underscores (FRONTIER_DB_DSN).
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("FRONTIER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_conns", 10)
	v.SetDefault("db.min_conns", 0)
	v.SetDefault("db.max_conn_lifetime", time.Hour)
	v.SetDefault("db.table", "urls")
	v.SetDefault("db.create_tables", true)
	v.SetDefault("store.backend", BackendMemory)
	v.SetDefault("lease.batch_size", 100)
	v.SetDefault("lease.ttl", time.Hour)
	v.SetDefault("lease.requests_per_second", 0.0)
	v.SetDefault("lease.burst", 1)
	v.SetDefault("scores.chunk_size", 10000)
	v.SetDefault("ingest.trusted_domains", []string{})
	v.SetDefault("ingest.blocked_domains", []string{})
	v.SetDefault("ingest.max_items", 1000)
	v.SetDefault("ingest.user_id_salt", "")
	v.SetDefault("archive.backend", BackendMemory)
	v.SetDefault("archive.base_dir", "")
	v.SetDefault("archive.gcs_bucket", "")
	v.SetDefault("archive.prefix", "batches")
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
	v.SetDefault("background.interval", 10*time.Second)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 {
		errs = append(errs, errors.New("server.port must be > 0"))
	}
	switch c.Store.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.DB.DSN == "" {
			errs = append(errs, errors.New("db.dsn must be set when store.backend is postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.backend must be %q or %q, got %q", BackendMemory, BackendPostgres, c.Store.Backend))
	}
	if c.Lease.BatchSize <= 0 || c.Lease.BatchSize > 100 {
		errs = append(errs, errors.New("lease.batch_size must be between 1 and 100"))
	}
	if c.Lease.TTL <= 0 {
		errs = append(errs, errors.New("lease.ttl must be > 0"))
	}
	if c.Lease.RequestsPerSecond < 0 {
		errs = append(errs, errors.New("lease.requests_per_second must be >= 0"))
	}
	if c.Scores.ChunkSize <= 0 {
		errs = append(errs, errors.New("scores.chunk_size must be > 0"))
	}
	if c.Ingest.MaxItems <= 0 {
		errs = append(errs, errors.New("ingest.max_items must be > 0"))
	}
	switch c.Archive.Backend {
	case BackendMemory:
	case BackendLocal:
		if c.Archive.BaseDir == "" {
			errs = append(errs, errors.New("archive.base_dir must be set when archive.backend is local"))
		}
	case BackendGCS:
		if c.Archive.GCSBucket == "" {
			errs = append(errs, errors.New("archive.gcs_bucket must be set when archive.backend is gcs"))
		}
	default:
		errs = append(errs, fmt.Errorf("archive.backend must be one of memory, local, gcs; got %q", c.Archive.Backend))
	}
	if (c.PubSub.ProjectID == "") != (c.PubSub.TopicName == "") {
		errs = append(errs, errors.New("pubsub.project_id and pubsub.topic_name must be set together"))
	}
	if c.Background.Interval <= 0 {
		errs = append(errs, errors.New("background.interval must be > 0"))
	}
	return errors.Join(errs...)
}
