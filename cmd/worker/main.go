// Command worker 独立运行过期清理和 outbox 转发。
// HTTP 进程关闭 sweeper.embedded 后由它承担后台任务；-once 适合放进定时任务。
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"ordercore/cmd"
	"ordercore/config"
	"ordercore/pkg/logger"

	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	once := flag.Bool("once", false, "Run one expiry sweep, drain the outbox and exit")
	flag.Parse()

	if err := run(*configPath, *once); err != nil {
		fmt.Fprintf(os.Stderr, "worker: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, once bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := logger.Init(&cfg.Log, cfg.App.Env); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.Database.Type == "memory" {
		return fmt.Errorf("database.type=memory keeps state in the HTTP process; the standalone worker needs mysql, sqlite or mongo")
	}
	if !cfg.Worker.Enabled && !cfg.Sweeper.Enabled {
		logger.Info("Outbox relay and expiry sweeper are disabled by config; exiting")
		return nil
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	backend, err := cmd.OpenBackend(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open %s backend: %w", cfg.Database.Type, err)
	}
	components, err := cmd.Assemble(cfg, backend)
	if err != nil {
		_ = backend.Close(context.Background())
		return err
	}
	defer func() {
		if err := components.Close(context.Background()); err != nil {
			logger.Error("Worker shutdown failed", zap.Error(err))
		}
	}()

	logger.Info("Worker started",
		zap.String("database", cfg.Database.Type),
		zap.Bool("sweeper", cfg.Sweeper.Enabled),
		zap.Bool("outbox_relay", cfg.Worker.Enabled),
		zap.Bool("once", once))

	if once {
		return cmd.RunOnce(ctx, cfg, components)
	}
	var wg sync.WaitGroup
	cmd.RunBackground(ctx, &wg, cfg, components)
	wg.Wait()
	logger.Info("Worker stopped")
	return nil
}
