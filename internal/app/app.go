package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jeovahfialho/t212-digrin/internal/acquisition"
	"github.com/jeovahfialho/t212-digrin/internal/config"
	"github.com/jeovahfialho/t212-digrin/internal/notify"
	"github.com/jeovahfialho/t212-digrin/internal/service"
	"github.com/jeovahfialho/t212-digrin/internal/storage/cache"
	"github.com/jeovahfialho/t212-digrin/internal/storage/objectstore"
	"github.com/jeovahfialho/t212-digrin/internal/storage/postgres"
	"github.com/jeovahfialho/t212-digrin/internal/t212"
	"github.com/jeovahfialho/t212-digrin/pkg/logger"
)

// App holds the collaborators shared by the CLI and the HTTP service.
// DB, Cache and Runs are nil when their URL is not configured.
type App struct {
	Config   *config.Config
	Pipeline *service.Pipeline
	Store    *objectstore.Store
	DB       *postgres.DB
	Cache    *cache.RedisCache
	Runs     *postgres.RunRepository
}

// AcquisitionConfig maps the environment onto the acquirer's timing knobs.
func AcquisitionConfig(cfg *config.Config) acquisition.Config {
	return acquisition.Config{
		CreateRetryInterval: cfg.CreateRetryInterval,
		GenerationWait:      cfg.GenerationWait,
		PollInterval:        cfg.PollInterval,
		CreateEvery:         cfg.CreateRateInterval,
		ListEvery:           cfg.ListRateInterval,
		MaxCreateAttempts:   cfg.MaxCreateAttempts,
		MaxPollAttempts:     cfg.MaxPollAttempts,
		MaxRequests:         cfg.MaxReportRequests,
		Timeout:             cfg.AcquireTimeout,
	}
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}

	awsCfg, err := objectstore.LoadConfig(ctx, cfg.AWSRegion, cfg.AWSProfile)
	if err != nil {
		return nil, err
	}
	a.Store = objectstore.New(awsCfg)

	if cfg.DatabaseURL != "" {
		db, err := ConnectPostgres(cfg)
		if err != nil {
			return nil, err
		}
		a.DB = db
		a.Runs = postgres.NewRunRepository(db.Pool())
	}

	if cfg.RedisURL != "" {
		a.Cache = ConnectRedis(cfg)
	}

	client := t212.NewClient(cfg.T212BaseURL, cfg.T212APIKey,
		t212.WithTimeout(cfg.T212Timeout),
		t212.WithLogger(logger.Log),
	)

	acqOpts := []acquisition.Option{acquisition.WithLogger(logger.Log)}
	if a.Cache != nil {
		acqOpts = append(acqOpts, acquisition.WithPendingStore(a.Cache))
	}
	acquirer := acquisition.New(AcquisitionConfig(cfg), client, acqOpts...)

	var opts []service.PipelineOption
	if a.DB != nil {
		opts = append(opts,
			service.WithHistory(a.Runs),
			service.WithArchive(postgres.NewBulkLoader(a.DB.Pool())),
		)
	}
	a.Pipeline = service.NewPipeline(cfg, acquirer, a.Store, notify.NewMailer(cfg), opts...)

	return a, nil
}

func ConnectPostgres(cfg *config.Config) (*postgres.DB, error) {
	db, err := postgres.NewDB(cfg)
	if err != nil {
		return nil, fmt.Errorf("erro ao criar conexão: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("Conectado ao PostgreSQL")
	return db, nil
}

// ConnectRedis returns nil when redis is unreachable; runs then start
// without resume support.
func ConnectRedis(cfg *config.Config) *cache.RedisCache {
	redisCache, err := cache.NewRedisCache(cfg)
	if err != nil {
		logger.Warn("Redis não disponível, continuando sem retomada", zap.Error(err))
		return nil
	}

	logger.Info("Conectado ao Redis")
	return redisCache
}

// Checks lists the readiness probes of the configured dependencies.
func (a *App) Checks() map[string]func(context.Context) error {
	checks := map[string]func(context.Context) error{
		"object_store": func(ctx context.Context) error {
			return a.Store.HealthCheck(ctx, a.Config.BucketName)
		},
	}
	if a.DB != nil {
		checks["database"] = a.DB.HealthCheck
	}
	if a.Cache != nil {
		checks["cache"] = a.Cache.HealthCheck
	}
	return checks
}

func (a *App) Close() {
	if a.Cache != nil {
		a.Cache.Close()
	}
	if a.DB != nil {
		a.DB.Close()
	}
}
