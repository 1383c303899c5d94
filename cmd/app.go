package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"

	"ordercore/api"
	"ordercore/config"
	"ordercore/pkg/logger"

	"go.uber.org/zap"
)

// App HTTP 进程。sweeper.embedded 打开或使用内存存储时，
// 过期清理和 outbox 转发也在本进程内运行。
type App struct {
	config     *config.Config
	components *Components
	router     *api.Router
	server     *http.Server
}

// Handler 返回路由（测试用）
func (a *App) Handler() http.Handler {
	return a.router.GetEngine()
}

func (a *App) Components() *Components {
	return a.components
}

func (a *App) runsBackground() bool {
	return a.config.Sweeper.Embedded || a.components.Backend.Kind == "memory"
}

// Run 阻塞直到收到 SIGINT/SIGTERM 或服务器异常退出，然后优雅关闭
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	if a.runsBackground() {
		RunBackground(ctx, &wg, a.config, a.components)
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var err error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err = <-serveErr:
		logger.Error("HTTP server failed", zap.Error(err))
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.config.Server.ShutdownTimeout)
	defer cancel()
	if shutdownErr := a.server.Shutdown(shutdownCtx); shutdownErr != nil {
		err = errors.Join(err, shutdownErr)
	}
	wg.Wait()
	if closeErr := a.components.Close(shutdownCtx); closeErr != nil {
		err = errors.Join(err, closeErr)
	}
	logger.Info("Server stopped")
	_ = logger.Sync()
	return err
}

// RunBackground 启动过期清理和 outbox 转发，ctx 取消后退出
func RunBackground(ctx context.Context, wg *sync.WaitGroup, cfg *config.Config, c *Components) {
	if cfg.Sweeper.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Info("Expiry sweeper started",
				zap.Duration("interval", cfg.Sweeper.Interval),
				zap.Duration("ttl", cfg.Sweeper.TTL))
			if err := c.Sweeper.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Expiry sweeper exited", zap.Error(err))
			}
		}()
	}
	if cfg.Worker.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Info("Outbox relay started",
				zap.Duration("poll_interval", cfg.Worker.PollInterval),
				zap.Int("batch_size", cfg.Worker.BatchSize),
				zap.Int("max_retries", cfg.Worker.MaxRetries))
			if err := c.Relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Outbox relay exited", zap.Error(err))
			}
		}()
	}
}

// RunOnce 执行一次过期清理，然后把 outbox 中待发布事件转发完，供定时任务使用
func RunOnce(ctx context.Context, cfg *config.Config, c *Components) error {
	if cfg.Sweeper.Enabled {
		result, err := c.Sweeper.RunOnce(ctx)
		if err != nil {
			return fmt.Errorf("expiry sweep: %w", err)
		}
		logger.Info("Expiry sweep finished",
			zap.Int("scanned", result.Scanned),
			zap.Int("expired", result.Expired),
			zap.Int("failed", result.Failed))
	}
	if !cfg.Worker.Enabled {
		return nil
	}
	total := 0
	for ctx.Err() == nil {
		n, err := c.Relay.ProcessBatch(ctx)
		if err != nil {
			return fmt.Errorf("outbox relay: %w", err)
		}
		if n == 0 {
			break
		}
		total += n
	}
	logger.Info("Outbox drained", zap.Int("published", total))
	return ctx.Err()
}
