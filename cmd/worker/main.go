package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dafproject/daf/config/logger"
	config "github.com/dafproject/daf/config/utils"
	"github.com/dafproject/daf/internal/adapter/coordinator"
	"github.com/dafproject/daf/internal/adapter/handler/rest"
	"github.com/dafproject/daf/internal/core/service"
	"github.com/dafproject/daf/internal/module"
)

func main() {
	var (
		capabilities []string
		slots        int64
		memoryMB     int
	)

	cmd := &cobra.Command{
		Use:     "worker <coordinator_host> <coordinator_port> <worker_port>",
		Short:   "DAF worker: pulls tasks from the coordinator and executes registered modules",
		Version: rest.Version,
		Args:    cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			coordPort, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("coordinator_port: %w", err)
			}
			workerPort, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("worker_port: %w", err)
			}
			return run(args[0], coordPort, workerPort, capabilities, slots, memoryMB)
		},
	}
	cmd.Flags().StringSliceVar(&capabilities, "capability", nil, "task queue capabilities to serve (default: default)")
	cmd.Flags().Int64Var(&slots, "slots", 1, "concurrent task slots")
	cmd.Flags().IntVar(&memoryMB, "memory-limit-mb", 0, "memory hint passed to modules")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(coordHost string, coordPort, workerPort int, capabilities []string, slots int64, memoryMB int) error {
	rootCtx, rootCtxCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer rootCtxCancel()

	appConfig := config.New()
	baseLogger := logger.Build(appConfig.Logger)
	defer baseLogger.Sync()

	host, err := os.Hostname()
	if err != nil {
		host = "localhost"
	}
	workerID := fmt.Sprintf("worker_%s_%d", host, workerPort)

	zap.L().Info("starting worker",
		zap.String("worker_id", workerID),
		zap.String("coordinator", fmt.Sprintf("%s:%d", coordHost, coordPort)))

	modules := module.NewRegistry()
	module.RegisterBuiltins(modules)
	zap.L().Info("modules registered", zap.Strings("modules", modules.Names()))

	client := coordinator.NewClient(coordHost, coordPort)
	worker := service.NewWorker(service.WorkerConfig{
		ID:            workerID,
		Host:          host,
		Port:          workerPort,
		Capabilities:  capabilities,
		Slots:         slots,
		MemoryLimitMB: memoryMB,
	}, client, modules, baseLogger.Named("worker"))

	if err := worker.Run(rootCtx); err != nil && !errors.Is(err, context.Canceled) {
		zap.L().Error("worker exited with error", zap.Error(err))
		return err
	}
	zap.L().Info("worker stopped")
	return nil
}
