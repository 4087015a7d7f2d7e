package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dafproject/daf/config/logger"
	postgresConfig "github.com/dafproject/daf/config/storage/postgresql"
	redisConfig "github.com/dafproject/daf/config/storage/redis"
	config "github.com/dafproject/daf/config/utils"
	"github.com/dafproject/daf/internal/adapter/handler/rest"
	"github.com/dafproject/daf/internal/adapter/monitoring/prometheus"
	"github.com/dafproject/daf/internal/adapter/storage/postgres"
	redisStore "github.com/dafproject/daf/internal/adapter/storage/redis"
	"github.com/dafproject/daf/internal/core/port"
	"github.com/dafproject/daf/internal/core/service"
)

const shutdownPeriod = 10 * time.Second

func main() {
	var (
		httpPort  int
		redisHost string
		redisPort string
	)

	cmd := &cobra.Command{
		Use:     "coordinator",
		Short:   "DAF coordinator: admits jobs, materializes tasks and dispatches them to workers",
		Version: rest.Version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(httpPort, redisHost, redisPort)
		},
	}
	cmd.Flags().IntVar(&httpPort, "http-port", 0, "HTTP listen port (overrides HTTP_PORT)")
	cmd.Flags().StringVar(&redisHost, "redis-host", "", "store host (overrides REDIS_HOST)")
	cmd.Flags().StringVar(&redisPort, "redis-port", "", "store port (overrides REDIS_PORT)")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(httpPort int, redisHost, redisPort string) error {
	rootCtx, rootCtxCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer rootCtxCancel()

	appConfig := config.New()
	if httpPort != 0 {
		appConfig.App.HTTPPort = httpPort
	}
	if redisHost != "" {
		appConfig.Redis.Host = redisHost
	}
	if redisPort != "" {
		appConfig.Redis.Port = redisPort
	}

	baseLogger := logger.Build(appConfig.Logger)
	defer baseLogger.Sync()

	zap.L().Info("starting coordinator",
		zap.String("app", appConfig.App.Name),
		zap.String("env", appConfig.App.Env),
		zap.Int("http_port", appConfig.App.HTTPPort))

	client, err := redisConfig.New(rootCtx, appConfig.Redis)
	if err != nil {
		zap.L().Error("store connection failed", zap.Error(err))
		return err
	}
	zap.L().Info("connected to store", zap.String("addr", appConfig.Redis.Addr()))
	store := redisStore.NewStore(client, baseLogger.Named("store"))
	defer store.Close()

	var archive port.JobArchive
	if appConfig.DB.Enabled() {
		dbService, err := postgresConfig.New(rootCtx, appConfig.DB, baseLogger.Named("db"))
		if err != nil {
			zap.L().Error("archive database connection failed", zap.Error(err))
			return err
		}
		defer dbService.Close()
		if err := dbService.Migrate(); err != nil {
			zap.L().Error("archive migration failed", zap.Error(err))
			return err
		}
		zap.L().Info("job archive enabled", zap.String("host", appConfig.DB.Host))
		archive = postgres.NewJobArchive(dbService, baseLogger.Named("archive"))
	}

	metrics := prometheus.New()

	registry := service.NewRegistry(store, service.RegistryConfig{
		WorkerTimeout:          appConfig.Scheduler.WorkerTimeout(),
		HeartbeatCheckInterval: appConfig.Scheduler.HeartbeatCheckInterval(),
	}, baseLogger.Named("registry"))

	sched := service.NewScheduler(store, registry, archive, metrics, service.SchedulerConfig{
		JobProcessingInterval: appConfig.Scheduler.JobProcessingInterval(),
		MaxTaskAttempts:       appConfig.Scheduler.MaxTaskAttempts,
		ResultTTL:             appConfig.Scheduler.ResultTTL(),
		RetentionInterval:     appConfig.Scheduler.RetentionInterval(),
		DefaultFanout:         appConfig.Scheduler.DefaultFanout,
	}, baseLogger.Named("scheduler"))

	// Evicted workers get their in-flight tasks requeued.
	registry.OnEvict(func(ctx context.Context, workerID string) {
		sched.RequeueWorkerTasks(ctx, workerID)
	})

	api := rest.NewAPI(sched, registry, archive, metrics.Handler(), baseLogger.Named("api"))
	server := rest.NewServer(listenAddr(appConfig.App.HTTPPort), api, baseLogger.Named("http"))

	group, ctx := errgroup.WithContext(rootCtx)
	group.Go(func() error { return sched.Run(ctx) })
	group.Go(func() error { return sched.RunRetention(ctx) })
	group.Go(func() error { return registry.Run(ctx) })
	group.Go(func() error {
		zap.L().Info("http server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownPeriod)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		zap.L().Error("coordinator exited with error", zap.Error(err))
		return err
	}
	zap.L().Info("graceful shutdown complete")
	return nil
}

func listenAddr(port int) string {
	return fmt.Sprintf(":%d", port)
}
