package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/myrjola/vitalplan/internal/catalog"
	"github.com/myrjola/vitalplan/internal/envstruct"
	"github.com/myrjola/vitalplan/internal/errors"
	"github.com/myrjola/vitalplan/internal/events"
	"github.com/myrjola/vitalplan/internal/flightrecorder"
	"github.com/myrjola/vitalplan/internal/health"
	"github.com/myrjola/vitalplan/internal/logging"
	"github.com/myrjola/vitalplan/internal/plan"
	"github.com/myrjola/vitalplan/internal/sqlite"
	"github.com/myrjola/vitalplan/internal/suggestion"
	"github.com/myrjola/vitalplan/internal/tracking"
	"github.com/myrjola/vitalplan/internal/training"
)

type application struct {
	logger      *slog.Logger
	plans       *plan.Service
	training    *training.Service
	tracking    *tracking.Service
	catalog     *catalog.Catalog
	suggestions *suggestion.Pipeline
	// recorder is nil unless a traces directory is configured.
	recorder *flightrecorder.Recorder
}

type config struct {
	// Addr is the address to listen on. It's possible to choose the address dynamically with localhost:0.
	Addr string `env:"VITALPLAN_ADDR" envDefault:"localhost:8081"`
	// SqliteURL is the URL to the SQLite database. You can use ":memory:" for an ethereal in-memory database.
	SqliteURL string `env:"VITALPLAN_SQLITE_URL" envDefault:"./vitalplan.sqlite3"`
	// OpenAIAPIKey is the application-wide AI credential used for users without their own key.
	OpenAIAPIKey   string        `env:"VITALPLAN_OPENAI_API_KEY" envDefault:""`
	OpenAIModel    string        `env:"VITALPLAN_OPENAI_MODEL" envDefault:""`
	AITimeout      time.Duration `env:"VITALPLAN_AI_TIMEOUT" envDefault:"8s"`
	CatalogTimeout time.Duration `env:"VITALPLAN_CATALOG_TIMEOUT" envDefault:"4s"`
	SuggestionTTL  time.Duration `env:"VITALPLAN_SUGGESTION_TTL" envDefault:"12h"`
	// RedisAddr switches the suggestion cache from SQLite to Redis.
	RedisAddr string `env:"VITALPLAN_REDIS_ADDR" envDefault:""`
	// KafkaBrokers is a comma-separated broker list. Plan events are dropped when it is empty.
	KafkaBrokers []string `env:"VITALPLAN_KAFKA_BROKERS" envDefault:""`
	KafkaTopic   string   `env:"VITALPLAN_KAFKA_TOPIC" envDefault:"vitalplan.plan-events"`
	// MetricsAddr is the optional address of the Prometheus metrics server.
	MetricsAddr string `env:"VITALPLAN_METRICS_ADDR" envDefault:""`
	// TracesDir enables the flight recorder, which writes a trace there when a request times out.
	TracesDir string `env:"VITALPLAN_TRACES_DIR" envDefault:""`
}

func run(ctx context.Context, logger *slog.Logger, lookupEnv func(string) (string, bool)) error {
	var (
		cancel context.CancelFunc
		err    error
	)

	ctx, cancel = signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var cfg config
	if err = envstruct.Populate(&cfg, lookupEnv); err != nil {
		return errors.Wrap(err, "populate config")
	}

	db, err := sqlite.NewDatabase(ctx, cfg.SqliteURL, logger)
	if err != nil {
		return errors.Wrap(err, "open db", slog.String("url", cfg.SqliteURL))
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			logger.LogAttrs(ctx, slog.LevelError, "failed to close db", errors.SlogError(closeErr))
		}
	}()
	logger.LogAttrs(ctx, slog.LevelInfo, "connected to db")

	var publisher events.Publisher = events.NoopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		defer func() {
			if closeErr := kafkaPublisher.Close(); closeErr != nil {
				logger.LogAttrs(ctx, slog.LevelError, "failed to close kafka writer", errors.SlogError(closeErr))
			}
		}()
		publisher = kafkaPublisher
		logger.LogAttrs(ctx, slog.LevelInfo, "publishing plan events to kafka",
			slog.Any("brokers", cfg.KafkaBrokers), slog.String("topic", cfg.KafkaTopic))
	}

	var cache suggestion.Cache = suggestion.NewSQLiteCache(db)
	if cfg.RedisAddr != "" {
		var redisCache *suggestion.RedisCache
		if redisCache, err = suggestion.NewRedisCache(ctx, cfg.RedisAddr); err != nil {
			return errors.Wrap(err, "connect redis cache")
		}
		defer func() { _ = redisCache.Close() }()
		cache = redisCache
	}

	if cfg.MetricsAddr != "" {
		launchMetricsServer(ctx, cfg.MetricsAddr, logger)
	}

	var recorder *flightrecorder.Recorder
	if cfg.TracesDir != "" {
		if recorder, err = flightrecorder.New(flightrecorder.Config{
			Dir:      cfg.TracesDir,
			MinAge:   0,
			MaxBytes: 0,
			Cooldown: 0,
		}, logger); err != nil {
			return errors.Wrap(err, "new flight recorder")
		}
		if err = recorder.Start(ctx); err != nil {
			return errors.Wrap(err, "start flight recorder")
		}
		defer recorder.Stop(ctx)
	}

	plans := plan.NewService(db, health.NewCalculator(health.DefaultPolicies()), publisher, logger)
	trainingService := training.NewService(db, logger)
	exerciseCatalog := catalog.New(db, logger)
	app := application{
		logger:   logger,
		plans:    plans,
		training: trainingService,
		tracking: tracking.NewService(db, plans, logger),
		catalog:  exerciseCatalog,
		suggestions: suggestion.New(suggestion.Deps{
			Analyzer:    trainingService,
			Weeks:       trainingService,
			Searcher:    exerciseCatalog,
			Credentials: plans,
			Provider:    suggestion.NewOpenAIProvider(cfg.OpenAIModel, logger),
			Cache:       cache,
			Publisher:   publisher,
		}, suggestion.Config{
			AppAPIKey:      cfg.OpenAIAPIKey,
			AITimeout:      cfg.AITimeout,
			CatalogTimeout: cfg.CatalogTimeout,
			CacheTTL:       cfg.SuggestionTTL,
		}, logger),
		recorder: recorder,
	}

	if err = app.configureAndStartServer(ctx, cfg.Addr, app.routes()); err != nil {
		return errors.Wrap(err, "start server")
	}
	return nil
}

func main() {
	ctx := context.Background()
	loggerHandler := logging.NewContextHandler(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource:   false,
		Level:       slog.LevelDebug,
		ReplaceAttr: nil,
	}))
	logger := slog.New(loggerHandler)
	if err := run(ctx, logger, os.LookupEnv); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "failure starting application", errors.SlogError(err))
		os.Exit(1)
	}
}
