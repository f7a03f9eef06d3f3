package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/motiondex/motiondex/internal/config"
	"github.com/motiondex/motiondex/internal/core/usecase"
	"github.com/motiondex/motiondex/internal/events"
	"github.com/motiondex/motiondex/internal/infrastructure/export"
	"github.com/motiondex/motiondex/internal/infrastructure/llm/gemini"
	"github.com/motiondex/motiondex/internal/infrastructure/normalize"
	"github.com/motiondex/motiondex/internal/infrastructure/prompt"
	"github.com/motiondex/motiondex/internal/infrastructure/repository/sqlite"
	"github.com/motiondex/motiondex/internal/infrastructure/resilience"
	"github.com/motiondex/motiondex/internal/infrastructure/storage/localfs"
	"github.com/motiondex/motiondex/internal/observability/logging"
	"github.com/motiondex/motiondex/internal/observability/metrics"
)

const serviceName = "motiondex"

type App struct {
	Config  config.Config
	Logger  *slog.Logger
	Metrics *metrics.Metrics

	Bus       *events.Bus
	Store     *sqlite.VideoRepository
	Storage   *localfs.Storage
	Prompts   *prompt.Provider
	Exporter  *export.Exporter
	Scheduler *usecase.Scheduler
	Results   *usecase.ResultsUseCase

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := logging.New(serviceName, cfg.LogLevel)
	m := metrics.New(serviceName)

	db, err := sqlite.OpenDB(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	store := sqlite.NewVideoRepository(db, logging.Component(logger, "store"))
	if err := store.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init upload storage: %w", err)
	}

	prompts, err := prompt.NewProvider(cfg.PromptDir, logging.Component(logger, "prompt"))
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init prompt provider: %w", err)
	}

	exec := resilience.NewExecutor(resilience.DefaultPolicy(), logging.Component(logger, "resilience"))
	client := gemini.New(gemini.Config{
		BaseURL:           cfg.GeminiBaseURL,
		APIKey:            cfg.GeminiAPIKey,
		Model:             cfg.ModelName,
		PollAttempts:      cfg.PollAttempts,
		PollInterval:      cfg.PollInterval,
		RequestsPerMinute: cfg.RequestsPerMinute,
	}, exec, logging.Component(logger, "gemini"),
		gemini.WithPollObserver(func(attempts int) {
			m.ObservePollAttempts(serviceName, attempts)
		}),
	)

	normalizer := normalize.New(logging.Component(logger, "normalizer"),
		normalize.WithLevelObserver(func(level string) {
			m.RecordParseLevel(serviceName, level)
		}),
	)

	bus := events.NewBus()
	scheduler := usecase.NewScheduler(store, client, prompts, normalizer, bus, m,
		logging.Component(logger, "scheduler"), usecase.SchedulerConfig{
			BatchSize:     cfg.BatchSize,
			ResultVersion: cfg.ResultVersion,
		})

	exporter, err := export.New(store, cfg.ExportDir, logging.Component(logger, "export"))
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init exporter: %w", err)
	}

	return &App{
		Config:    cfg,
		Logger:    logger,
		Metrics:   m,
		Bus:       bus,
		Store:     store,
		Storage:   storage,
		Prompts:   prompts,
		Exporter:  exporter,
		Scheduler: scheduler,
		Results:   usecase.NewResultsUseCase(store),

		closeFn: func() {
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
