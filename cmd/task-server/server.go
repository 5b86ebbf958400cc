package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/benbjohnson/clock"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware" // алиас, чтобы не конфликтовать с internal/middleware
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"tenant-task-manager/internal/api"
	"tenant-task-manager/internal/config"
	"tenant-task-manager/internal/middleware"
	"tenant-task-manager/internal/storage/cache"
	"tenant-task-manager/internal/storage/postgres"
	"tenant-task-manager/internal/storage/sqlite"
	"tenant-task-manager/internal/tasks"
)

// openRepository открывает хранилище из настроек и, если задан redis-addr,
// оборачивает его кешем. Возвращённая функция закрывает всё открытое.
func openRepository(ctx context.Context, cfg config.Config, log *zap.Logger) (tasks.Repository, func() error, error) {
	var (
		repo    tasks.Repository
		closers []func() error
	)

	switch cfg.Store {
	case config.StoreMemory:
		repo = tasks.NewMemoryRepository()
	case config.StoreFile:
		fileRepo, err := tasks.NewFileRepository(cfg.StorePath)
		if err != nil {
			return nil, nil, err
		}
		repo = fileRepo
	case config.StoreSQLite:
		db, err := sqlite.Open(cfg.StorePath)
		if err != nil {
			return nil, nil, err
		}
		sqliteRepo := sqlite.NewRepository(db)
		repo = sqliteRepo
		closers = append(closers, sqliteRepo.Close)
	case config.StorePostgres:
		pgRepo, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		repo = pgRepo
		closers = append(closers, pgRepo.Close)
	default:
		return nil, nil, fmt.Errorf("unknown store %q", cfg.Store)
	}

	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			// Кеш необязателен: без Redis запросы идут прямо в хранилище.
			log.Warn("redis is not reachable, cache will miss", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		}
		repo = cache.New(repo, client,
			cache.WithTTL(cfg.CacheTTL),
			cache.WithLogger(log.Named("cache")),
		)
		closers = append(closers, client.Close)
	}

	closeAll := func() error {
		var firstErr error
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	}
	return repo, closeAll, nil
}

// newService собирает сервис задач с метриками и логированием.
func newService(cfg config.Config, repo tasks.Repository, log *zap.Logger, reg prometheus.Registerer) tasks.TaskService {
	var svc tasks.TaskService = tasks.NewService(repo, tasks.WithDoneTerminal(cfg.DoneTerminal))
	svc = tasks.NewMetricsService(reg, svc)
	svc = tasks.NewLoggingService(log.Named("tasks"), svc)
	return svc
}

// newRouter собирает роутер сервиса.
//
// /health и /metrics открыты; /tasks идёт через авторизацию, арендатора и
// таймаут.
func newRouter(cfg config.Config, svc tasks.TaskService, log *zap.Logger, gatherer prometheus.Gatherer) (http.Handler, error) {
	tenantCfg, err := cfg.TenantConfig()
	if err != nil {
		return nil, err
	}
	errs := api.NewErrorHandler(log, clock.New())

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(middleware.LoggingMiddleware(log, cfg.TenantHeader))
	r.Use(chiMiddleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Respond(w, http.StatusOK, map[string]string{"status": "UP"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	h := tasks.NewHandler(svc, errs)
	r.Mount("/", h.Router(
		middleware.BasicAuth(cfg.AuthUser, []byte(cfg.AuthPasswordHash), errs),
		middleware.Tenant(tenantCfg, errs),
		middleware.RequestTimeoutMiddleware(cfg.RequestTimeout),
	))
	return r, nil
}
