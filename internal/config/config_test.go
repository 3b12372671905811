package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, BackendMemory, cfg.Store.Backend)
	require.Equal(t, 100, cfg.Lease.BatchSize)
	require.Equal(t, time.Hour, cfg.Lease.TTL)
	require.Equal(t, 10000, cfg.Scores.ChunkSize)
	require.Equal(t, "urls", cfg.DB.Table)
	require.True(t, cfg.DB.CreateTables)
	require.Equal(t, "batches", cfg.Archive.Prefix)
	require.Equal(t, 10*time.Second, cfg.Background.Interval)
	require.False(t, cfg.PubSub.Enabled())
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	configYAML := `
server:
  port: 9090
logging:
  development: false
  level: debug
store:
  backend: postgres
db:
  dsn: postgres://frontier@localhost/frontier
  max_conns: 20
  max_conn_lifetime: 30m
  table: frontier_urls
lease:
  batch_size: 50
  ttl: 90m
  requests_per_second: 2.5
  burst: 5
ingest:
  trusted_domains: ["wikipedia.org", "github.com"]
  max_items: 200
archive:
  backend: gcs
  gcs_bucket: crawl-batches
pubsub:
  project_id: my-project
  topic_name: frontier-batches
background:
  interval: 1m
`
	require.NoError(t, os.WriteFile(path, []byte(configYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9090, cfg.Server.Port)
	require.False(t, cfg.Logging.Development)
	require.Equal(t, "debug", cfg.Logging.Level)
	require.Equal(t, BackendPostgres, cfg.Store.Backend)
	require.Equal(t, int32(20), cfg.DB.MaxConns)
	require.Equal(t, 30*time.Minute, cfg.DB.MaxConnLifetime)
	require.Equal(t, "frontier_urls", cfg.DB.Table)
	require.Equal(t, 50, cfg.Lease.BatchSize)
	require.Equal(t, 90*time.Minute, cfg.Lease.TTL)
	require.InDelta(t, 2.5, cfg.Lease.RequestsPerSecond, 1e-9)
	require.Equal(t, []string{"wikipedia.org", "github.com"}, cfg.Ingest.TrustedDomains)
	require.Equal(t, BackendGCS, cfg.Archive.Backend)
	require.True(t, cfg.PubSub.Enabled())
	require.Equal(t, time.Minute, cfg.Background.Interval)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("FRONTIER_SERVER_PORT", "7070")
	t.Setenv("FRONTIER_LEASE_TTL", "15m")
	t.Setenv("FRONTIER_ARCHIVE_BACKEND", "local")
	t.Setenv("FRONTIER_ARCHIVE_BASE_DIR", "/var/lib/frontier")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 7070, cfg.Server.Port)
	require.Equal(t, 15*time.Minute, cfg.Lease.TTL)
	require.Equal(t, "/var/lib/frontier", cfg.Archive.BaseDir)
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.ErrorContains(t, err, "read config")
}

func TestValidate(t *testing.T) {
	t.Parallel()

	valid, err := Load("")
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"unknown store", func(c *Config) { c.Store.Backend = "redis" }, "store.backend"},
		{"postgres without dsn", func(c *Config) { c.Store.Backend = BackendPostgres }, "db.dsn"},
		{"batch too large", func(c *Config) { c.Lease.BatchSize = 101 }, "lease.batch_size"},
		{"zero ttl", func(c *Config) { c.Lease.TTL = 0 }, "lease.ttl"},
		{"negative rps", func(c *Config) { c.Lease.RequestsPerSecond = -1 }, "lease.requests_per_second"},
		{"zero chunk", func(c *Config) { c.Scores.ChunkSize = 0 }, "scores.chunk_size"},
		{"zero max items", func(c *Config) { c.Ingest.MaxItems = 0 }, "ingest.max_items"},
		{"local without dir", func(c *Config) { c.Archive.Backend = BackendLocal }, "archive.base_dir"},
		{"gcs without bucket", func(c *Config) { c.Archive.Backend = BackendGCS }, "archive.gcs_bucket"},
		{"unknown archive", func(c *Config) { c.Archive.Backend = "s3" }, "archive.backend"},
		{"half pubsub", func(c *Config) { c.PubSub.ProjectID = "p" }, "pubsub.project_id"},
		{"zero interval", func(c *Config) { c.Background.Interval = 0 }, "background.interval"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := valid
			tt.mutate(&cfg)
			require.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}
