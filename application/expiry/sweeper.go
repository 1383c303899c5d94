/*
Package expiry 回收超时未支付订单的库存预留。

每个订单在独立事务中处理：先以 pending_payment 为条件转为 expired，
条件命中后才释放库存，因此并发的清理或支付回调只会有一方生效，
库存最多归还一次。
*/
package expiry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ordercore/domain/idempotency"
	"ordercore/domain/inventory"
	"ordercore/domain/order"
	"ordercore/domain/shared"
	"ordercore/pkg/logger"
	"ordercore/pkg/metrics"

	"go.uber.org/zap"
)

const (
	DefaultInterval  = 60 * time.Second
	DefaultTTL       = 15 * time.Minute
	DefaultBatchSize = 200
)

var errAlreadyMoved = errors.New("order left pending_payment before the sweep")

// SweepResult 单轮清理统计
type SweepResult struct {
	Scanned int
	Expired int
	Skipped int
	Failed  int
	Purged  int64
}

type Config struct {
	Interval  time.Duration
	TTL       time.Duration
	BatchSize int
	// Retention 幂等记录保留时长，<= 0 时不清理
	Retention time.Duration
}

type Sweeper struct {
	uowFactory shared.UnitOfWorkFactory
	orders     order.Repository
	catalog    inventory.Catalog
	keys       idempotency.Store
	metrics    *metrics.Metrics
	cfg        Config
	now        func() time.Time
}

func NewSweeper(
	uowFactory shared.UnitOfWorkFactory,
	orders order.Repository,
	catalog inventory.Catalog,
	keys idempotency.Store,
	m *metrics.Metrics,
	cfg Config,
) (*Sweeper, error) {
	if uowFactory == nil || orders == nil || catalog == nil {
		return nil, fmt.Errorf("sweeper requires a unit of work factory, order repository and catalog")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	return &Sweeper{
		uowFactory: uowFactory,
		orders:     orders,
		catalog:    catalog,
		keys:       keys,
		metrics:    m,
		cfg:        cfg,
		now:        time.Now,
	}, nil
}

// WithClock 替换时间源（测试用）
func (s *Sweeper) WithClock(now func() time.Time) *Sweeper {
	s.now = now
	return s
}

// Run 启动时先执行一轮，之后按间隔执行，直到 ctx 取消
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
			logger.Error("Expiry sweep failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce 处理一批超时订单。单个订单失败只记录日志，不影响同批其他订单。
func (s *Sweeper) RunOnce(ctx context.Context) (SweepResult, error) {
	var result SweepResult
	now := s.now().UTC()

	candidates, err := s.orders.FindExpiredPending(ctx, now.Add(-s.cfg.TTL), s.cfg.BatchSize)
	if err != nil {
		return result, fmt.Errorf("find expired orders: %w", err)
	}
	result.Scanned = len(candidates)

	for _, o := range candidates {
		err := s.expire(ctx, o, now)
		switch {
		case err == nil:
			result.Expired++
			s.metrics.Transitioned(string(order.StatusPendingPayment), string(order.StatusExpired))
			logger.Info("Order expired, stock released",
				zap.String("order_id", o.ID()),
				zap.String("order_number", o.OrderNumber()))
		case errors.Is(err, errAlreadyMoved):
			result.Skipped++
		default:
			result.Failed++
			logger.Error("Failed to expire order",
				zap.String("order_id", o.ID()),
				zap.String("order_number", o.OrderNumber()),
				zap.Error(err))
		}
	}

	if s.keys != nil && s.cfg.Retention > 0 {
		purged, err := s.keys.Purge(ctx, now.Add(-s.cfg.Retention))
		if err != nil {
			logger.Warn("Failed to purge idempotency keys", zap.Error(err))
		}
		result.Purged = purged
	}

	s.metrics.Swept(result.Expired, result.Failed)
	if result.Scanned > 0 || result.Purged > 0 {
		logger.Info("Expiry sweep finished",
			zap.Int("scanned", result.Scanned),
			zap.Int("expired", result.Expired),
			zap.Int("skipped", result.Skipped),
			zap.Int("failed", result.Failed),
			zap.Int64("purged_keys", result.Purged))
	}
	return result, nil
}

func (s *Sweeper) expire(ctx context.Context, o *order.Order, now time.Time) error {
	note := fmt.Sprintf("payment not received within %s", s.cfg.TTL)
	t, err := o.TransitionTo(order.StatusExpired, "", note, now)
	if err != nil {
		return err
	}
	uow := s.uowFactory.New()
	return uow.Execute(ctx, func(ctx context.Context) error {
		applied, err := s.orders.TransitionStatus(ctx, t)
		if err != nil {
			return err
		}
		if !applied {
			return errAlreadyMoved
		}
		if err := order.ReleaseAll(ctx, s.catalog, o); err != nil {
			return err
		}
		uow.RegisterDirty(o)
		return nil
	})
}
