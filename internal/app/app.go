package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"ListingsAggregator/internal/config"
	"ListingsAggregator/internal/domain"
	"ListingsAggregator/internal/infrastructure/httpapi"
	"ListingsAggregator/internal/infrastructure/metrics"
	"ListingsAggregator/internal/infrastructure/review"
	"ListingsAggregator/internal/infrastructure/storage"
	"ListingsAggregator/internal/logging"
	"ListingsAggregator/internal/ports"
	"ListingsAggregator/internal/source"
	"ListingsAggregator/internal/usecase"
)

const pgxDriver = "pgx"

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	db       *sql.DB
	redis    *redis.Client
	registry *prometheus.Registry

	reviews   ports.ReviewQueue
	sources   *source.Registry
	aggOpts   usecase.AggregatorOptions
	recorder  *metrics.Recorder
	persister *usecase.Persister
	pipeline  *usecase.Pipeline
	query     *usecase.QueryService
	reaper    *usecase.Reaper
}

// New opens the configured stores and builds every use case. An empty
// database DSN selects the in-memory store and an empty Redis URL the
// in-memory review queue.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}

	a := &Application{cfg: cfg, logger: baseLogger, registry: prometheus.NewRegistry()}
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	repo, err := a.openRepository(ctx)
	if err != nil {
		return nil, err
	}

	if err := a.openReviewQueue(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}

	adapters, err := buildRegistry(cfg, baseLogger)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.sources = adapters
	a.recorder = metrics.NewRecorder(a.registry)
	a.aggOpts = usecase.AggregatorOptions{
		Enabled:        enabledSources(cfg),
		AdapterTimeout: cfg.Aggregation.AdapterTimeout,
		RunTimeout:     cfg.Aggregation.RunTimeout,
		Parallelism:    cfg.Aggregation.Parallelism,
	}
	a.persister = usecase.NewPersister(repo, a.recorder, baseLogger.With("component", "persister"))
	a.pipeline = a.newPipeline(a.aggOpts)
	a.query = usecase.NewQueryService(repo)
	a.reaper = usecase.NewReaper(repo, a.recorder, baseLogger.With("component", "reaper"))
	return a, nil
}

func (a *Application) openRepository(ctx context.Context) (ports.ListingRepository, error) {
	if a.cfg.Database.DSN == "" {
		a.logger.Warn("database dsn not set, listings are kept in memory")
		return storage.NewMemoryRepository(), nil
	}

	db, err := openDB(ctx, a.cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	a.db = db

	if a.cfg.Database.Migrate {
		if err := storage.Migrate(db, a.logger.With("component", "migrate")); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return storage.NewPostgresRepository(db), nil
}

func (a *Application) openReviewQueue(ctx context.Context) error {
	if a.cfg.Redis.URL == "" {
		a.logger.Warn("redis url not set, review queue is kept in memory")
		a.reviews = review.NewMemoryQueue()
		return nil
	}

	client, err := review.NewRedisClient(ctx, a.cfg.Redis.URL)
	if err != nil {
		return err
	}
	a.redis = client
	a.reviews = review.NewRedisQueue(client, a.cfg.Redis.ReviewKey)
	return nil
}

func (a *Application) newPipeline(opts usecase.AggregatorOptions) *usecase.Pipeline {
	return usecase.NewPipeline(usecase.PipelineDeps{
		Aggregator: usecase.NewAggregator(a.sources, opts, a.recorder, a.logger.With("component", "aggregator")),
		Persister:  a.persister,
		Review:     a.reviews,
		Logger:     a.logger.With("component", "pipeline"),
	})
}

// Aggregate runs the pipeline once. Naming sources restricts the run to
// them, including sources the config leaves disabled.
func (a *Application) Aggregate(ctx context.Context, keywords, location string, only ...string) (usecase.RunReport, error) {
	if len(only) == 0 {
		return a.pipeline.Run(ctx, keywords, location)
	}

	opts := a.aggOpts
	opts.Enabled = make(map[domain.Source]bool, len(only))
	for _, name := range only {
		adapter, err := a.sources.Resolve(domain.Source(name))
		if err != nil {
			return usecase.RunReport{}, fmt.Errorf("%w: %w", domain.ErrInvalidArgument, err)
		}
		opts.Enabled[adapter.Name()] = true
	}
	return a.newPipeline(opts).Run(ctx, keywords, location)
}

// Reap removes stale external listings; days < 1 falls back to the configured retention.
func (a *Application) Reap(ctx context.Context, days int) (int64, error) {
	if days < 1 {
		days = a.cfg.Aggregation.RetentionDays
	}
	return a.reaper.Reap(ctx, days)
}

// Handler builds the HTTP API over the application's use cases.
func (a *Application) Handler() http.Handler {
	return httpapi.NewRouter(httpapi.Deps{
		Listings:         a.query,
		Pipeline:         a.pipeline,
		Reaper:           a.reaper,
		Reviews:          a.reviews,
		Gatherer:         a.registry,
		AggregateTimeout: a.cfg.HTTP.AggregateTimeout,
		RetentionDays:    a.cfg.Aggregation.RetentionDays,
		Logger:           a.logger.With("component", "http"),
	})
}

// Serve runs the HTTP API until ctx is canceled.
func (a *Application) Serve(ctx context.Context) error {
	return httpapi.NewServer(a.cfg.HTTP.Addr, a.Handler(), a.logger).Run(ctx)
}

// Close releases the database and Redis connections.
func (a *Application) Close() error {
	var errs []error
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	return errors.Join(errs...)
}

// MigrateDatabase applies every pending migration, or rolls back steps
// migrations when steps > 0.
func MigrateDatabase(ctx context.Context, cfg config.Config, steps int, log *slog.Logger) error {
	if cfg.Database.DSN == "" {
		return errors.New("database dsn is not configured")
	}
	db, err := openDB(ctx, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer db.Close()

	if steps > 0 {
		return storage.MigrateDown(db, steps, log)
	}
	return storage.Migrate(db, log)
}

func openDB(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open(pgxDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

func enabledSources(cfg config.Config) map[domain.Source]bool {
	flags := cfg.EnabledSources()
	out := make(map[domain.Source]bool, len(flags))
	for name, on := range flags {
		out[domain.Source(name)] = on
	}
	return out
}
