// Package app initializes and holds long-lived application services, acting
// as the dependency injection container for the CLI commands.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/JakeFAU/dwellist/internal/api"
	"github.com/JakeFAU/dwellist/internal/clock/system"
	"github.com/JakeFAU/dwellist/internal/config"
	"github.com/JakeFAU/dwellist/internal/crawler"
	"github.com/JakeFAU/dwellist/internal/diagnostics"
	"github.com/JakeFAU/dwellist/internal/diagnostics/sinks"
	"github.com/JakeFAU/dwellist/internal/extract"
	collyfetcher "github.com/JakeFAU/dwellist/internal/fetcher/colly"
	"github.com/JakeFAU/dwellist/internal/id/uuid"
	"github.com/JakeFAU/dwellist/internal/logging"
	"github.com/JakeFAU/dwellist/internal/metrics"
	"github.com/JakeFAU/dwellist/internal/policy/ratelimit"
	"github.com/JakeFAU/dwellist/internal/store/csvfile"
	"github.com/JakeFAU/dwellist/internal/store/postgres"
)

// App holds the shared, long-lived services for one command invocation.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	store    crawler.Store
	sink     diagnostics.Sink
	registry *prometheus.Registry
	metrics  *metrics.Collectors
	clock    *system.Clock
	closers  []io.Closer
}

// Option customises New, mainly for tests.
type Option func(*App)

// WithLogger replaces the logger built from configuration.
func WithLogger(l *zap.Logger) Option {
	return func(a *App) { a.logger = l }
}

// WithStore replaces the store built from configuration.
func WithStore(s crawler.Store) Option {
	return func(a *App) { a.store = s }
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// New builds the services described by cfg. It fails fast if any of them
// cannot be initialised.
func New(ctx context.Context, cfg config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg}
	for _, opt := range opts {
		opt(a)
	}

	if a.logger == nil {
		l, err := logging.New(cfg.Logging)
		if err != nil {
			return nil, err
		}
		a.logger = l
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	a.clock = system.New(loc)

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = metrics.NewCollectors(a.registry)

	if a.store == nil {
		if err := a.initStore(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}
	if err := a.initSink(ctx); err != nil {
		a.Close()
		return nil, err
	}

	a.logger.Info("application services initialized",
		zap.String("store", cfg.Store.Driver),
		zap.String("diagnostics", cfg.Diagnostics.Driver),
	)
	return a, nil
}

func (a *App) initStore(ctx context.Context) error {
	switch a.cfg.Store.Driver {
	case config.StoreCSV:
		s, err := csvfile.New(csvfile.Config{Path: a.cfg.Store.Path}, a.logger)
		if err != nil {
			return fmt.Errorf("init csv store: %w", err)
		}
		a.store = s
	case config.StorePostgres:
		s, err := postgres.New(ctx, postgres.Config{
			DSN:             a.cfg.Store.DSN,
			Table:           a.cfg.Store.Table,
			MaxConns:        a.cfg.Store.MaxConns,
			MaxConnLifetime: time.Hour,
		}, a.logger)
		if err != nil {
			return fmt.Errorf("init postgres store: %w", err)
		}
		a.closers = append(a.closers, closerFunc(func() error { s.Close(); return nil }))
		if err := s.EnsureSchema(ctx); err != nil {
			return err
		}
		a.store = s
	default:
		return fmt.Errorf("unknown store driver: %s", a.cfg.Store.Driver)
	}
	return nil
}

// initSink always logs diagnostic events and additionally keeps the raw
// page where the driver says.
func (a *App) initSink(ctx context.Context) error {
	logSink := sinks.NewLogSink(a.logger)
	switch a.cfg.Diagnostics.Driver {
	case config.DiagnosticsNone:
		a.sink = diagnostics.Nop{}
	case config.DiagnosticsLog:
		a.sink = logSink
	case config.DiagnosticsFile:
		fs, err := sinks.NewFileSink(sinks.FileConfig{Dir: a.cfg.Diagnostics.Dir})
		if err != nil {
			return fmt.Errorf("init file sink: %w", err)
		}
		a.sink = diagnostics.Multi{logSink, fs}
	case config.DiagnosticsGCS:
		client, err := storage.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("init gcs client: %w", err)
		}
		a.closers = append(a.closers, client)
		gs, err := sinks.NewGCSSink(client, sinks.GCSConfig{Bucket: a.cfg.Diagnostics.GCSBucket, Prefix: a.cfg.Diagnostics.Prefix})
		if err != nil {
			return fmt.Errorf("init gcs sink: %w", err)
		}
		a.sink = diagnostics.Multi{logSink, gs}
	default:
		return fmt.Errorf("unknown diagnostics driver: %s", a.cfg.Diagnostics.Driver)
	}
	return nil
}

// Config returns the configuration the services were built from.
func (a *App) Config() config.Config { return a.cfg }

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Store returns the configured dataset store.
func (a *App) Store() crawler.Store { return a.store }

// Registry returns the Prometheus registry the collectors live on.
func (a *App) Registry() *prometheus.Registry { return a.registry }

// Engine assembles a discovery engine. A positive limit overrides
// search.listings_to_scrape.
func (a *App) Engine(limit int, fetcher crawler.Fetcher) (*crawler.Engine, error) {
	cc, err := a.cfg.CrawlerConfig(a.clock.Now())
	if err != nil {
		return nil, err
	}
	if limit > 0 {
		cc.Limit = limit
	}
	if fetcher == nil {
		fetcher = collyfetcher.New(collyfetcher.Config{
			UserAgent: a.cfg.Crawler.UserAgent,
			Timeout:   a.cfg.Crawler.RequestTimeout,
		})
	}
	ex := extract.New(extract.DefaultRules(), extract.Options{
		Clock:              a.clock,
		Sink:               a.sink,
		UnavailableMarkers: a.cfg.Site.UnavailableMarkers,
		IDParam:            a.cfg.Site.IDParam,
		Logger:             a.logger,
	})
	deps := crawler.EngineDeps{
		Fetcher:   fetcher,
		Extractor: ex,
		Store:     a.store,
		Recorder:  a.metrics,
		Clock:     a.clock,
		IDs:       uuid.New(),
		Logger:    a.logger,
	}
	if a.cfg.Crawler.RateLimitRPS > 0 {
		deps.Limiter = ratelimit.New(ratelimit.Config{
			RPS:   a.cfg.Crawler.RateLimitRPS,
			Burst: a.cfg.Crawler.RateLimitBurst,
		}, a.metrics.RateLimitDelay)
	}
	return crawler.NewEngine(cc, deps)
}

// Server assembles the read-only API.
func (a *App) Server() *api.Server {
	return api.NewServer(a.store, api.Options{
		Gatherer:   a.registry,
		Middleware: a.metrics.Middleware,
		Logger:     a.logger,
	})
}

// Close releases external clients and flushes the logger.
func (a *App) Close() {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn("error closing services", zap.Error(err))
	}
	// Sync fails on stdout/stderr for some platforms; nothing useful to do.
	_ = a.logger.Sync()
}
