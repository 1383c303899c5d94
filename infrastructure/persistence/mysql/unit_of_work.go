package mysql

import (
	"context"
	"fmt"

	"ordercore/domain/shared"
	"ordercore/infrastructure/persistence"
	"ordercore/infrastructure/persistence/retry"

	"gorm.io/gorm"
)

// UnitOfWork 一次下单或对账操作的 GORM 事务。
// 登记的聚合的事件与业务写入同一事务进入 outbox；
// 死锁和锁等待超时时整个事务重跑。
type UnitOfWork struct {
	db     *gorm.DB
	outbox *OutboxRepository
	retry  retry.Config
	ledger shared.EventLedger
}

func NewUnitOfWork(db *gorm.DB) *UnitOfWork {
	return &UnitOfWork{db: db, outbox: NewOutboxRepository(db), retry: retry.DefaultConfig}
}

func (u *UnitOfWork) SetRetryConfig(cfg retry.Config) {
	u.retry = cfg
}

func (u *UnitOfWork) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	// 已在外层事务中时直接加入，重试交给外层
	if persistence.TxFromContext(ctx) != nil {
		u.ledger.Begin()
		if err := fn(ctx); err != nil {
			return err
		}
		return u.flush(ctx)
	}

	err := retry.ExecuteWithRetry(ctx, u.retry, func(ctx context.Context) error {
		u.ledger.Begin()
		return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			txCtx := persistence.ContextWithTx(ctx, tx)
			if err := fn(txCtx); err != nil {
				return err
			}
			return u.flush(txCtx)
		})
	})
	if err == nil {
		u.ledger.Committed()
	}
	return err
}

func (u *UnitOfWork) flush(ctx context.Context) error {
	for _, event := range u.ledger.Events() {
		if err := u.outbox.SaveEvent(ctx, event); err != nil {
			return fmt.Errorf("outbox %s: %w", event.EventName(), err)
		}
	}
	return nil
}

func (u *UnitOfWork) RegisterNew(aggregate shared.AggregateRoot) {
	u.ledger.Register(aggregate)
}

func (u *UnitOfWork) RegisterDirty(aggregate shared.AggregateRoot) {
	u.ledger.Register(aggregate)
}

// UnitOfWorkFactory 每次业务操作取一个新的 UnitOfWork
type UnitOfWorkFactory struct {
	db    *gorm.DB
	retry retry.Config
}

func NewUnitOfWorkFactory(db *gorm.DB, cfg retry.Config) *UnitOfWorkFactory {
	return &UnitOfWorkFactory{db: db, retry: cfg}
}

func (f *UnitOfWorkFactory) New() shared.UnitOfWork {
	u := NewUnitOfWork(f.db)
	u.SetRetryConfig(f.retry)
	return u
}

var (
	_ shared.UnitOfWork        = (*UnitOfWork)(nil)
	_ shared.UnitOfWorkFactory = (*UnitOfWorkFactory)(nil)
)
