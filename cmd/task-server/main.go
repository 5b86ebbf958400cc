package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tenant-task-manager/internal/config"
	"tenant-task-manager/internal/logger"
)

// Здесь только:
// - разбор настроек;
// - создание зависимостей;
// - запуск HTTP-сервера и graceful shutdown.
func main() {
	if err := newCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newCommand() *cobra.Command {
	cfg := config.NewConfig()
	opts := cfg.Opts()
	v := config.NewViper()

	cmd := &cobra.Command{
		Use:          "task-server",
		Short:        "Multi-tenant task manager HTTP API",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.Load(v, opts); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	if err := config.BindOptions(v, cmd.Flags(), opts); err != nil {
		panic(err)
	}
	return cmd
}

func run(ctx context.Context, cfg config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}

	logCfg, err := cfg.LoggerConfig()
	if err != nil {
		return err
	}
	log, err := logger.New(os.Stdout, logCfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	repo, closeRepo, err := openRepository(ctx, cfg, log)
	if err != nil {
		return err
	}

	svc := newService(cfg, repo, log, prometheus.DefaultRegisterer)
	router, err := newRouter(cfg, svc, log, prometheus.DefaultGatherer)
	if err != nil {
		_ = closeRepo()
		return err
	}

	// Слушаем сразу, чтобы ошибка занятого порта вернулась из run.
	ln, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		_ = closeRepo()
		return err
	}

	srv := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server stopped", zap.Error(err))
		}
	}()

	log.Info("server running",
		zap.String("addr", ln.Addr().String()),
		zap.String("store", cfg.Store),
		zap.String("tenant_policy", cfg.TenantPolicy),
		zap.Bool("auth", cfg.AuthUser != ""),
		zap.Bool("cache", cfg.RedisAddr != ""),
	)

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			// Сначала дожидаемся запросов в работе, потом закрываем хранилище.
			"http-server": func(ctx context.Context) error {
				log.Info("graceful shutdown initiated")
				err := srv.Shutdown(ctx)
				return errors.Join(err, closeRepo())
			},
		},
	)

	if code := <-wait; code != 0 {
		return fmt.Errorf("shutdown finished with exit code %d", code)
	}
	log.Info("server stopped")
	return nil
}
