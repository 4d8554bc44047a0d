// Package app wires the service together for the server and the CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"

	api "github.com/veranemoloko/clip-downloader/internal/api/http"
	"github.com/veranemoloko/clip-downloader/internal/config"
	"github.com/veranemoloko/clip-downloader/internal/extract"
	"github.com/veranemoloko/clip-downloader/internal/notify"
	"github.com/veranemoloko/clip-downloader/internal/platform"
	"github.com/veranemoloko/clip-downloader/internal/repository"
	"github.com/veranemoloko/clip-downloader/internal/service"
	"github.com/veranemoloko/clip-downloader/internal/storage"
	"github.com/veranemoloko/clip-downloader/internal/transport"
	"github.com/veranemoloko/clip-downloader/internal/worker"
)

type App struct {
	Config       *config.Config
	Store        *config.Store
	Planner      *storage.FolderPlanner
	Scheduler    *worker.FetchScheduler
	Dispatcher   *notify.Dispatcher
	History      repository.HistoryRepo
	Orchestrator *service.Orchestrator

	fs        afero.Fs
	apiPool   *transport.Pool
	mediaPool *transport.Pool
	redis     *redis.Client
	logger    *slog.Logger
}

// New builds every component on the OS filesystem.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	return NewWithFs(ctx, cfg, afero.NewOsFs(), logger)
}

// NewWithFs builds every component on fsys.
func NewWithFs(ctx context.Context, cfg *config.Config, fsys afero.Fs, logger *slog.Logger) (*App, error) {
	store, err := config.NewStore(cfg, fsys)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	planner, err := storage.NewFolderPlanner(fsys, cfg.RootDir, cfg.TempDir, cfg.Mount)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	policy, err := storage.ParseCompletenessPolicy(cfg.Completeness)
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:    cfg,
		Store:     store,
		Planner:   planner,
		fs:        fsys,
		apiPool:   transport.NewPool(cfg.APITimeout),
		mediaPool: transport.NewPool(cfg.AssetTimeout),
		logger:    logger,
	}

	client := platform.NewAPIClient(a.apiPool, platform.Options{
		DouyinBase: cfg.DouyinAPIBase,
		TikTokBase: cfg.TikTokAPIBase,
		Timeout:    cfg.APITimeout,
		Retry:      transport.DefaultRetryPolicy(),
	}, logger)

	a.Scheduler = worker.NewFetchScheduler(
		storage.NewFileStorage(fsys, policy),
		worker.NewHTTPFetcher(a.mediaPool, cfg.MaxFileSize),
		worker.Config{
			Workers: cfg.Workers,
			Retries: cfg.FetchRetries,
			Retry:   transport.DefaultRetryPolicy(),
			Timeout: cfg.AssetTimeout,
		},
		logger.With("component", "scheduler"),
	)

	if err := a.openHistory(ctx); err != nil {
		return nil, err
	}

	a.Dispatcher = notify.NewDispatcher(notify.Options{
		Endpoints: cfg.WebhookURLs,
		Token:     cfg.WebhookToken,
		Timeout:   cfg.WebhookTimeout.Duration(),
		QueueSize: cfg.NotifyQueue,
	}, logger)

	a.Orchestrator = service.NewOrchestrator(service.Deps{
		Store:     store,
		Client:    client,
		Pipeline:  extract.NewPipeline(logger),
		Planner:   planner,
		Scheduler: a.Scheduler,
		Notifier:  a.Dispatcher,
		History:   a.History,
	}, logger)

	logger.Info("application initialized",
		"root", planner.Root(),
		"workers", cfg.Workers,
		"webhooks", len(cfg.WebhookURLs),
		"redis", a.redis != nil,
	)
	return a, nil
}

// openHistory selects the Redis store when a URL is configured, the state file otherwise.
func (a *App) openHistory(ctx context.Context) error {
	if a.Config.RedisURL == "" {
		h, err := repository.NewFileHistory(a.fs, a.Config.HistoryFile, a.logger)
		if err != nil {
			return fmt.Errorf("failed to initialize history: %w", err)
		}
		a.History = h
		return nil
	}

	opt, err := redis.ParseURL(a.Config.RedisURL)
	if err != nil {
		return fmt.Errorf("invalid redis url: %w", err)
	}
	cl := redis.NewClient(opt)
	if err := cl.Ping(ctx).Err(); err != nil {
		_ = cl.Close()
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	a.redis = cl
	a.History = repository.NewRedisHistory(cl, a.logger)
	return nil
}

// Router builds the HTTP surface.
func (a *App) Router() http.Handler {
	return api.NewRouter(api.RouterDeps{
		Downloader: a.Orchestrator,
		Settings:   a.Store,
		History:    a.History,
		Files:      a.fs,
		Root:       a.Planner.Root(),
		Mount:      a.Planner.Mount(),
		Token:      a.Config.APIToken,
	}, a.logger)
}

// Close drains pending notifications and releases connections.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if err := a.Dispatcher.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("notification shutdown: %w", err))
	}
	a.apiPool.CloseIdle()
	a.mediaPool.CloseIdle()
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		}
	}
	return errors.Join(errs...)
}
