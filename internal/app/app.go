// Package app builds the frontier's long-lived services from configuration and
// runs them until shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/url-frontier/internal/api"
	"github.com/JakeFAU/url-frontier/internal/archive"
	"github.com/JakeFAU/url-frontier/internal/background"
	"github.com/JakeFAU/url-frontier/internal/config"
	"github.com/JakeFAU/url-frontier/internal/frontier"
	"github.com/JakeFAU/url-frontier/internal/hash/sha256"
	"github.com/JakeFAU/url-frontier/internal/id/uuid"
	"github.com/JakeFAU/url-frontier/internal/ingest"
	"github.com/JakeFAU/url-frontier/internal/logging"
	"github.com/JakeFAU/url-frontier/internal/metrics"
	"github.com/JakeFAU/url-frontier/internal/policy/ratelimit"
	gcppublisher "github.com/JakeFAU/url-frontier/internal/publisher/pubsub"
	gcsstorage "github.com/JakeFAU/url-frontier/internal/storage/gcs"
	localstorage "github.com/JakeFAU/url-frontier/internal/storage/local"
	memorystorage "github.com/JakeFAU/url-frontier/internal/storage/memory"
	pgstore "github.com/JakeFAU/url-frontier/internal/storage/postgres"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 10 * time.Second
	// limiterIdle is how long an unused per-user bucket is kept.
	limiterIdle = 10 * time.Minute
)

type publisher interface {
	archive.Publisher
	Close()
}

// App contains the application's dependencies.
type App struct {
	cfg          config.Config
	logger       *zap.Logger
	store        frontier.Store
	apiServer    *api.Server
	runner       *background.Runner
	limiter      *ratelimit.Limiter
	publisher    publisher
	pubsubClient *pubsub.Client
	storage      *storage.Client
}

// Build creates the application's dependencies.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(logging.Options{
		Development: cfg.Logging.Development,
		Level:       cfg.Logging.Level,
	})
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)
	return BuildWithLogger(ctx, cfg, logger)
}

// BuildWithLogger is Build with a caller-supplied logger.
func BuildWithLogger(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	app := &App{cfg: cfg, logger: logger}
	logger.Info("building application dependencies",
		zap.Int("server_port", cfg.Server.Port),
		zap.String("store_backend", cfg.Store.Backend),
		zap.String("archive_backend", cfg.Archive.Backend),
	)
	metrics.Init()

	rawStore, err := setupStore(ctx, app)
	if err != nil {
		app.closeInfrastructure()
		return nil, err
	}
	app.store = frontier.Instrument(rawStore, metrics.NewFrontierObserver())

	archiver, err := setupArchiver(ctx, app)
	if err != nil {
		app.closeInfrastructure()
		return nil, err
	}

	hasher := sha256.New(cfg.Ingest.UserIDSalt)
	ingestCfg := ingest.Config{
		TrustedDomains: cfg.Ingest.TrustedDomains,
		BlockedDomains: cfg.Ingest.BlockedDomains,
		MaxItems:       cfg.Ingest.MaxItems,
	}
	ingester, err := ingest.NewIngester(app.store, hasher, ingestCfg,
		ingest.WithArchiver(metrics.InstrumentArchiver(archiver)),
		ingest.WithLogger(logger.Named("ingest")),
	)
	if err != nil {
		app.closeInfrastructure()
		return nil, fmt.Errorf("ingester init failed: %w", err)
	}

	deps := api.Deps{Store: app.store, Ingester: ingester, Hasher: hasher}
	phases := []background.Phase{background.FrontierStats(app.store, metrics.SetURLCounts)}
	app.limiter = ratelimit.New(ratelimit.Config{
		RequestsPerSecond: cfg.Lease.RequestsPerSecond,
		Burst:             cfg.Lease.Burst,
	})
	if app.limiter.Enabled() {
		deps.Limiter = app.limiter
		phases = append(phases, background.PruneRateLimits(app.limiter, limiterIdle))
		logger.Info("lease rate limiter enabled",
			zap.Float64("requests_per_second", cfg.Lease.RequestsPerSecond),
			zap.Int("burst", cfg.Lease.Burst),
		)
	}

	app.apiServer = api.NewServer(deps, logger.Named("api"))
	app.runner = background.New(cfg.Background.Interval, logger.Named("background"), phases...)
	return app, nil
}

func leaseConfig(cfg config.Config) frontier.LeaseConfig {
	return frontier.LeaseConfig{BatchSize: cfg.Lease.BatchSize, TTL: cfg.Lease.TTL}.Normalize()
}

func setupStore(ctx context.Context, app *App) (frontier.Store, error) {
	switch app.cfg.Store.Backend {
	case config.BackendPostgres:
		store, err := OpenPostgres(ctx, app.cfg, app.logger)
		if err != nil {
			return nil, err
		}
		if app.cfg.DB.CreateTables {
			if err := store.CreateTables(ctx); err != nil {
				store.Close()
				return nil, fmt.Errorf("create tables failed: %w", err)
			}
			app.logger.Info("frontier table ready", zap.String("table", app.cfg.DB.Table))
		}
		return store, nil
	case config.BackendMemory, "":
		app.logger.Info("using in-memory frontier store")
		return memorystorage.NewURLStore(
			memorystorage.WithLeaseConfig(leaseConfig(app.cfg)),
			memorystorage.WithScoreChunkSize(app.cfg.Scores.ChunkSize),
			memorystorage.WithLogger(app.logger.Named("store")),
		), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", app.cfg.Store.Backend)
	}
}

// OpenPostgres connects the Postgres frontier store described by cfg.
func OpenPostgres(ctx context.Context, cfg config.Config, logger *zap.Logger) (*pgstore.URLStore, error) {
	pgCfg := pgstore.Config{
		DSN:             cfg.DB.DSN,
		Table:           cfg.DB.Table,
		MaxConns:        cfg.DB.MaxConns,
		MinConns:        cfg.DB.MinConns,
		MaxConnLifetime: cfg.DB.MaxConnLifetime,
	}
	store, err := pgstore.NewURLStore(ctx, pgCfg,
		pgstore.WithLeaseConfig(leaseConfig(cfg)),
		pgstore.WithScoreChunkSize(cfg.Scores.ChunkSize),
		pgstore.WithLogger(logger.Named("store")),
	)
	if err != nil {
		return nil, fmt.Errorf("postgres store init failed: %w", err)
	}
	logger.Info("postgres frontier store initialized", zap.String("table", cfg.DB.Table))
	return store, nil
}

func setupArchiver(ctx context.Context, app *App) (*archive.Archiver, error) {
	blobs, err := setupBlobStore(ctx, app)
	if err != nil {
		return nil, err
	}
	opts := []archive.Option{
		archive.WithPrefix(app.cfg.Archive.Prefix),
		archive.WithLogger(app.logger.Named("archive")),
	}
	if err := setupPublisher(ctx, app); err != nil {
		return nil, err
	}
	if app.publisher != nil {
		opts = append(opts, archive.WithPublisher(app.publisher, app.cfg.PubSub.TopicName))
	}
	archiver, err := archive.New(blobs, uuid.New(), opts...)
	if err != nil {
		return nil, fmt.Errorf("archiver init failed: %w", err)
	}
	return archiver, nil
}

func setupBlobStore(ctx context.Context, app *App) (archive.BlobStore, error) {
	switch app.cfg.Archive.Backend {
	case config.BackendGCS:
		app.logger.Info("using GCS archive backend", zap.String("bucket", app.cfg.Archive.GCSBucket))
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client init failed: %w", err)
		}
		app.storage = client
		blobs, err := gcsstorage.New(client, gcsstorage.Config{Bucket: app.cfg.Archive.GCSBucket})
		if err != nil {
			return nil, fmt.Errorf("gcs blob store init failed: %w", err)
		}
		return blobs, nil
	case config.BackendLocal:
		app.logger.Info("using local archive backend", zap.String("path", app.cfg.Archive.BaseDir))
		blobs, err := localstorage.New(localstorage.Config{BaseDir: app.cfg.Archive.BaseDir})
		if err != nil {
			return nil, fmt.Errorf("local blob store init failed: %w", err)
		}
		return blobs, nil
	case config.BackendMemory, "":
		app.logger.Info("using in-memory archive backend")
		return memorystorage.NewBlobStore(), nil
	default:
		return nil, fmt.Errorf("unknown archive backend %q", app.cfg.Archive.Backend)
	}
}

func setupPublisher(ctx context.Context, app *App) error {
	if !app.cfg.PubSub.Enabled() {
		app.logger.Warn("No Pub/Sub topic configured, archived batches will not be announced")
		return nil
	}
	client, err := pubsub.NewClient(ctx, app.cfg.PubSub.ProjectID)
	if err != nil {
		return fmt.Errorf("pubsub client init failed: %w", err)
	}
	app.pubsubClient = client
	pub, err := gcppublisher.New(client, app.cfg.PubSub.TopicName)
	if err != nil {
		return fmt.Errorf("pubsub publisher init failed: %w", err)
	}
	app.publisher = pub
	app.logger.Info("Pub/Sub publisher initialized",
		zap.String("project", app.cfg.PubSub.ProjectID),
		zap.String("topic", app.cfg.PubSub.TopicName),
	)
	return nil
}

// Handler exposes the HTTP handler, mainly for tests.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Store returns the instrumented frontier store.
func (a *App) Store() frontier.Store {
	return a.store
}

// Run starts the application and blocks until the context is canceled or a
// termination signal arrives.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("application started")
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		a.logger.Info("background runner started")
		a.runner.Run(ctx)
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	<-done
	a.Close()
	return nil
}

// Close releases every backend the App opened.
func (a *App) Close() {
	a.closeInfrastructure()
	if err := a.logger.Sync(); err != nil {
		a.logger.Debug("logger sync failed", zap.Error(err))
	}
	a.logger.Info("shutdown complete")
}

func (a *App) closeInfrastructure() {
	if a.publisher != nil {
		a.publisher.Close()
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}
	if a.storage != nil {
		if err := a.storage.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
	if a.store != nil {
		a.store.Close()
	}
}
