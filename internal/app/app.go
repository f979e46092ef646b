// Package app builds the long-lived services of a crawl from configuration,
// acting as a small dependency injection container.
package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/JakeFAU/vacancy-crawler/internal/config"
	"github.com/JakeFAU/vacancy-crawler/internal/crawler"
	collyfetcher "github.com/JakeFAU/vacancy-crawler/internal/fetcher/colly"
	restyfetcher "github.com/JakeFAU/vacancy-crawler/internal/fetcher/resty"
	"github.com/JakeFAU/vacancy-crawler/internal/hhapi"
	"github.com/JakeFAU/vacancy-crawler/internal/policy/ratelimit"
	"github.com/JakeFAU/vacancy-crawler/internal/progress"
	"github.com/JakeFAU/vacancy-crawler/internal/progress/sinks"
	"github.com/JakeFAU/vacancy-crawler/internal/storage"
	"github.com/JakeFAU/vacancy-crawler/internal/storage/gcs"
	"github.com/JakeFAU/vacancy-crawler/internal/storage/local"
	"github.com/JakeFAU/vacancy-crawler/internal/storage/postgres"
	"github.com/JakeFAU/vacancy-crawler/internal/storage/sqlite"
)

// App holds the services a crawl command uses.
type App struct {
	Logger *zap.Logger
	API    crawler.API
	// Sinks receives the final rows. It is empty when every output is
	// disabled.
	Sinks storage.Multi
	// Exports are the CSV exports among Sinks, kept for their URIs.
	Exports []*storage.Export
	Hub     *progress.Hub
	Runs    *sinks.SnapshotSink

	gcs *gcs.BlobStore
}

type options struct {
	registerer prometheus.Registerer
	gcsOptions []option.ClientOption
}

// Option customizes New.
type Option func(*options)

// WithRegisterer registers the progress collectors against reg instead of
// the default registerer.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// WithGCSOptions passes client options to the storage client.
func WithGCSOptions(opts ...option.ClientOption) Option {
	return func(o *options) { o.gcsOptions = append(o.gcsOptions, opts...) }
}

// New builds every service cfg enables. Services built before a failure are
// released before the error is returned.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := options{registerer: prometheus.DefaultRegisterer}
	for _, opt := range opts {
		opt(&o)
	}

	fetcher, err := NewFetcher(cfg)
	if err != nil {
		return nil, err
	}
	a := &App{
		Logger: logger,
		API:    NewAPI(cfg, fetcher, logger),
		Runs:   sinks.NewSnapshotSink(),
	}
	if err := a.openSinks(ctx, cfg, o); err != nil {
		_ = a.Close(ctx)
		return nil, err
	}

	promSink, err := sinks.NewPrometheusSink(o.registerer)
	if err != nil {
		_ = a.Close(ctx)
		return nil, fmt.Errorf("init progress metrics: %w", err)
	}
	a.Hub = progress.NewHub(progress.Config{Logger: logger.Named("progress")},
		sinks.NewLogSink(logger.Named("progress")),
		promSink,
		a.Runs,
	)
	logger.Info("application services initialized",
		zap.String("fetcher", cfg.API.Fetcher),
		zap.Int("sinks", len(a.Sinks)),
	)
	return a, nil
}

// NewFetcher builds the transport named by api.fetcher.
func NewFetcher(cfg config.Config) (crawler.Fetcher, error) {
	switch cfg.API.Fetcher {
	case config.FetcherColly:
		return collyfetcher.New(collyfetcher.Config{UserAgent: cfg.API.UserAgent, Timeout: cfg.Timeout()}), nil
	case config.FetcherResty:
		return restyfetcher.New(restyfetcher.Config{UserAgent: cfg.API.UserAgent, Timeout: cfg.Timeout()}), nil
	default:
		return nil, fmt.Errorf("unknown fetcher: %s", cfg.API.Fetcher)
	}
}

// NewAPI builds the rate-limited, retrying API client.
func NewAPI(cfg config.Config, fetcher crawler.Fetcher, logger *zap.Logger) *hhapi.Client {
	return hhapi.New(
		hhapi.Config{BaseURL: cfg.API.BaseURL, UserAgent: cfg.API.UserAgent},
		fetcher,
		hhapi.WithLimiter(ratelimit.New(ratelimit.Config{RPS: cfg.API.RatePerSecond, Burst: cfg.API.Burst})),
		hhapi.WithRetryPolicy(cfg.RetryPolicy()),
		hhapi.WithLogger(logger.Named("api")),
	)
}

func (a *App) openSinks(ctx context.Context, cfg config.Config, o options) error {
	out := cfg.Output
	if out.CSVPath != "" {
		store, err := local.New(local.Config{BaseDir: filepath.Dir(out.CSVPath)})
		if err != nil {
			return fmt.Errorf("init csv export: %w", err)
		}
		if err := a.addExport(store, filepath.Base(out.CSVPath)); err != nil {
			return err
		}
	}
	if out.SQLitePath != "" {
		store, err := sqlite.Open(ctx, out.SQLitePath, out.PostgresTable)
		if err != nil {
			return fmt.Errorf("init sqlite store: %w", err)
		}
		a.Sinks = append(a.Sinks, store)
	}
	if out.PostgresDSN != "" {
		store, err := postgres.NewRowStore(ctx, postgres.RowStoreConfig{DSN: out.PostgresDSN, Table: out.PostgresTable})
		if err != nil {
			return fmt.Errorf("init postgres store: %w", err)
		}
		a.Sinks = append(a.Sinks, store)
	}
	if out.GCSBucket != "" {
		store, err := gcs.Dial(ctx, gcs.Config{Bucket: out.GCSBucket}, o.gcsOptions...)
		if err != nil {
			return fmt.Errorf("init gcs export: %w", err)
		}
		a.gcs = store
		if err := a.addExport(store, out.GCSObject); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) addExport(store storage.BlobStore, path string) error {
	export, err := storage.NewExport(store, path)
	if err != nil {
		return fmt.Errorf("init export: %w", err)
	}
	a.Sinks = append(a.Sinks, export)
	a.Exports = append(a.Exports, export)
	return nil
}

// Close flushes progress, then releases every sink. All services are
// attempted; the errors are joined.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Hub != nil {
		if err := a.Hub.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := a.Sinks.Close(); err != nil {
		errs = append(errs, err)
	}
	if a.gcs != nil {
		if err := a.gcs.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		a.Logger.Warn("error shutting down application services", zap.Error(err))
		return err
	}
	return nil
}
