/*
Package retry 重跑整个工作单元以消化存储层的瞬时冲突。

只重试死锁、锁等待超时、写冲突和乐观锁冲突；库存不足、非法状态流转等
业务拒绝原样返回。调用方必须传入完整的事务函数，不能是事务的一部分。
*/
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"strings"
	"time"

	"ordercore/config"
	"ordercore/domain/order"
	"ordercore/pkg/logger"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Reason 可重试错误的分类，用于日志和开关
type Reason string

const (
	ReasonNone                   Reason = ""
	ReasonDeadlock               Reason = "deadlock"
	ReasonLockTimeout            Reason = "lock_timeout"
	ReasonWriteConflict          Reason = "write_conflict"
	ReasonConcurrentModification Reason = "concurrent_modification"
	ReasonConnection             Reason = "connection"
)

const (
	mysqlDeadlock    = 1213
	mysqlLockWait    = 1205
	mongoWriteConfl  = 112
	transientTxLabel = "TransientTransactionError"
)

type Config struct {
	Enabled                       bool
	MaxAttempts                   int
	InitialDelay                  time.Duration
	MaxDelay                      time.Duration
	BackoffFactor                 float64
	JitterEnabled                 bool
	RetryOnConcurrentModification bool
	RetryOnDeadlock               bool
	RetryOnLockTimeout            bool
}

var DefaultConfig = Config{
	Enabled:                       true,
	MaxAttempts:                   3,
	InitialDelay:                  100 * time.Millisecond,
	MaxDelay:                      2 * time.Second,
	BackoffFactor:                 2.0,
	JitterEnabled:                 true,
	RetryOnConcurrentModification: true,
	RetryOnDeadlock:               true,
	RetryOnLockTimeout:            true,
}

func FromAppConfig(appConfig *config.Config) Config {
	rc := appConfig.Database.Retry
	return Config{
		Enabled:                       rc.Enabled,
		MaxAttempts:                   rc.MaxAttempts,
		InitialDelay:                  rc.InitialDelay,
		MaxDelay:                      rc.MaxDelay,
		BackoffFactor:                 rc.BackoffFactor,
		JitterEnabled:                 rc.JitterEnabled,
		RetryOnConcurrentModification: rc.RetryOnConcurrentModification,
		RetryOnDeadlock:               rc.RetryOnDeadlock,
		RetryOnLockTimeout:            rc.RetryOnLockTimeout,
	}
}

// Classify maps a storage error to a retry reason. Driver error types are
// checked before message matching; SQLite only reports "database is locked".
func Classify(err error) Reason {
	if err == nil {
		return ReasonNone
	}
	if errors.Is(err, order.ErrConcurrentModification) {
		return ReasonConcurrentModification
	}

	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		switch mysqlErr.Number {
		case mysqlDeadlock:
			return ReasonDeadlock
		case mysqlLockWait:
			return ReasonLockTimeout
		}
		return ReasonNone
	}

	var labeled mongo.LabeledError
	if errors.As(err, &labeled) && labeled.HasErrorLabel(transientTxLabel) {
		return ReasonWriteConflict
	}
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) && cmdErr.Code == mongoWriteConfl {
		return ReasonWriteConflict
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "deadlock"):
		return ReasonDeadlock
	case strings.Contains(msg, "lock wait timeout"), strings.Contains(msg, "database is locked"):
		return ReasonLockTimeout
	case errors.Is(err, gorm.ErrInvalidTransaction),
		strings.Contains(msg, "connection") && strings.Contains(msg, "lost"):
		return ReasonConnection
	}
	return ReasonNone
}

// IsRetryableError applies the configured switches to Classify.
func IsRetryableError(err error, cfg Config) bool {
	switch Classify(err) {
	case ReasonConcurrentModification:
		return cfg.RetryOnConcurrentModification
	case ReasonDeadlock, ReasonWriteConflict:
		return cfg.RetryOnDeadlock
	case ReasonLockTimeout:
		return cfg.RetryOnLockTimeout
	case ReasonConnection:
		return true
	}
	return false
}

// Backoff delay before retrying after the given attempt (1-based)
func Backoff(attempt int, cfg Config) time.Duration {
	if attempt <= 0 {
		return 0
	}
	delay := float64(cfg.InitialDelay) * math.Pow(cfg.BackoffFactor, float64(attempt-1))
	delay = math.Min(delay, float64(cfg.MaxDelay))
	if cfg.JitterEnabled {
		delay *= 0.8 + rand.Float64()*0.4
	}
	return time.Duration(math.Max(delay, 0))
}

// ExecuteWithRetry runs fn until it succeeds, fails with a non-retryable
// error, or MaxAttempts is reached.
func ExecuteWithRetry(ctx context.Context, cfg Config, fn func(ctx context.Context) error) error {
	if !cfg.Enabled || cfg.MaxAttempts <= 1 {
		return fn(ctx)
	}

	var err error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err = fn(ctx); err == nil {
			return nil
		}
		if attempt == cfg.MaxAttempts || !IsRetryableError(err, cfg) {
			return err
		}

		delay := Backoff(attempt, cfg)
		logger.FromContext(ctx).Warn("Retrying unit of work",
			zap.Int("attempt", attempt),
			zap.String("reason", string(Classify(err))),
			zap.Duration("delay", delay),
			zap.Error(err))

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
	return err
}
