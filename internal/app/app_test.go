package app_test

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/url-frontier/internal/app"
	"github.com/JakeFAU/url-frontier/internal/config"
	"github.com/JakeFAU/url-frontier/internal/frontier"
)

func testConfig() config.Config {
	return config.Config{
		Server:     config.ServerConfig{Port: 0},
		Logging:    config.LoggingConfig{Level: "error"},
		Store:      config.StoreConfig{Backend: config.BackendMemory},
		Lease:      config.LeaseConfig{BatchSize: 100, TTL: time.Hour, Burst: 1},
		Scores:     config.ScoresConfig{ChunkSize: 10000},
		Ingest:     config.IngestConfig{MaxItems: 1000, UserIDSalt: "pepper"},
		Archive:    config.ArchiveConfig{Backend: config.BackendMemory, Prefix: "batches"},
		Background: config.BackgroundConfig{Interval: time.Hour},
	}
}

func batchBody(user string) string {
	return fmt.Sprintf(`{"user_id":%q,"items":[{"url":"https://a.com/","timestamp":%d,
		"content":{"title":"A","extract":"","links":["https://b.com/"]}}]}`, user, time.Now().UnixMilli())
}

func post(t *testing.T, h http.Handler, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestBuild_MemoryStoreWithLocalArchive(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg := testConfig()
	cfg.Archive = config.ArchiveConfig{Backend: config.BackendLocal, BaseDir: dir, Prefix: "raw"}

	a, err := app.BuildWithLogger(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	rec := post(t, a.Handler(), "/v1/crawler/batches", batchBody("crawler-1"))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"requested":2`)

	matches, err := filepath.Glob(filepath.Join(dir, "raw", "*", "*", "*.json"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	require.Contains(t, string(data), "https://b.com/")
	require.NotContains(t, string(data), "crawler-1")

	rec = post(t, a.Handler(), "/v1/crawler/batches/new", `{"user_id":"crawler-2"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `["https://b.com/"]`, rec.Body.String())

	rec2, err := a.Store().GetRecord(context.Background(), "https://b.com/")
	require.NoError(t, err)
	require.Equal(t, frontier.StatusAssigned, rec2.Status)
}

func TestBuild_LeaseRateLimit(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Lease.RequestsPerSecond = 0.001
	cfg.Lease.Burst = 1

	a, err := app.BuildWithLogger(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	rec := post(t, a.Handler(), "/v1/crawler/batches/new", `{"user_id":"greedy"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = post(t, a.Handler(), "/v1/crawler/batches/new", `{"user_id":"greedy"}`)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	rec = post(t, a.Handler(), "/v1/crawler/batches/new", `{"user_id":"patient"}`)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestBuild_UnknownBackends(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Store.Backend = "cassandra"
	_, err := app.BuildWithLogger(context.Background(), cfg, zap.NewNop())
	require.ErrorContains(t, err, `unknown store backend "cassandra"`)

	cfg = testConfig()
	cfg.Archive.Backend = "s3"
	_, err = app.BuildWithLogger(context.Background(), cfg, zap.NewNop())
	require.ErrorContains(t, err, `unknown archive backend "s3"`)
}

func TestBuild_PostgresRequiresDSN(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Store.Backend = config.BackendPostgres
	_, err := app.BuildWithLogger(context.Background(), cfg, zap.NewNop())
	require.ErrorContains(t, err, "db.dsn is required")
}

func TestBuild_AnnouncesBatchesOnPubSub(t *testing.T) {
	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })
	t.Setenv("PUBSUB_EMULATOR_HOST", srv.Addr)

	ctx := context.Background()
	admin, err := pubsub.NewClient(ctx, "test-project")
	require.NoError(t, err)
	defer admin.Close()
	_, err = admin.CreateTopic(ctx, "crawl-batches")
	require.NoError(t, err)

	cfg := testConfig()
	cfg.PubSub = config.PubSubConfig{ProjectID: "test-project", TopicName: "crawl-batches"}
	a, err := app.BuildWithLogger(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	rec := post(t, a.Handler(), "/v1/crawler/batches", batchBody("crawler-9"))
	require.Equal(t, http.StatusOK, rec.Code)

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	require.Contains(t, string(msgs[0].Data), `"items":1`)
}

func TestBuild_RejectsInvalidLogLevel(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Logging.Level = "verbose"
	_, err := app.Build(context.Background(), cfg)
	require.ErrorContains(t, err, "logger init failed")
}

func TestRun_StopsWhenContextEnds(t *testing.T) {
	t.Parallel()

	a, err := app.BuildWithLogger(context.Background(), testConfig(), zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- a.Run(ctx) }()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}
