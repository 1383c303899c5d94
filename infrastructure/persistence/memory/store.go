/*
Package memory 进程内存储后端，用于测试和 database.type=memory。

所有数据由一把互斥锁保护，每个操作在锁内完成条件判断和修改，
因此 Reserve、TransitionStatus 等条件更新与 SQL 后端一样是原子的。
UnitOfWork 串行化事务，并用撤销日志实现回滚。
*/
package memory

import (
	"context"
	"fmt"
	"sync"

	"ordercore/domain/idempotency"
	"ordercore/domain/inventory"
	"ordercore/domain/order"
	"ordercore/domain/shared"
	"ordercore/domain/user"
)

// Store holds every collection of the memory backend.
type Store struct {
	mu   sync.Mutex
	txMu sync.Mutex

	orders      map[string]order.ReconstructionDTO
	variants    map[string]inventory.Variant
	skuIndex    map[string]string
	counters    map[string]int64
	idempotency map[string]idempotency.Record
	users       map[string]user.ReconstructionDTO
	outbox      []*outboxRow
}

func NewStore() *Store {
	return &Store{
		orders:      make(map[string]order.ReconstructionDTO),
		variants:    make(map[string]inventory.Variant),
		skuIndex:    make(map[string]string),
		counters:    make(map[string]int64),
		idempotency: make(map[string]idempotency.Record),
		users:       make(map[string]user.ReconstructionDTO),
	}
}

// journal 记录当前事务的撤销操作
type journal struct {
	undo []func()
}

type journalKey struct{}

func journalFrom(ctx context.Context) *journal {
	j, _ := ctx.Value(journalKey{}).(*journal)
	return j
}

// record 登记撤销操作，调用方必须持有 s.mu
func (s *Store) record(ctx context.Context, undo func()) {
	if j := journalFrom(ctx); j != nil {
		j.undo = append(j.undo, undo)
	}
}

func (s *Store) rollback(j *journal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(j.undo) - 1; i >= 0; i-- {
		j.undo[i]()
	}
	j.undo = nil
}

// inTx 在 ctx 携带的事务中执行 fn，没有事务时开启一个新事务
func (s *Store) inTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if journalFrom(ctx) != nil {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	j := &journal{}
	defer func() {
		if p := recover(); p != nil {
			s.rollback(j)
			panic(p)
		}
	}()

	if err := fn(context.WithValue(ctx, journalKey{}, j)); err != nil {
		s.rollback(j)
		return err
	}
	return nil
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// UnitOfWork 内存事务，事件在提交前写入 outbox
type UnitOfWork struct {
	store  *Store
	ledger shared.EventLedger
}

func NewUnitOfWork(store *Store) *UnitOfWork {
	return &UnitOfWork{store: store}
}

func (u *UnitOfWork) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	u.ledger.Begin()
	err := u.store.inTx(ctx, func(txCtx context.Context) error {
		if err := fn(txCtx); err != nil {
			return err
		}
		outbox := NewOutboxRepository(u.store)
		for _, event := range u.ledger.Events() {
			if err := outbox.SaveEvent(txCtx, event); err != nil {
				return fmt.Errorf("failed to save event to outbox: %w", err)
			}
		}
		return nil
	})
	if err == nil {
		u.ledger.Committed()
	}
	return err
}

func (u *UnitOfWork) RegisterNew(aggregate shared.AggregateRoot) {
	u.ledger.Register(aggregate)
}

func (u *UnitOfWork) RegisterDirty(aggregate shared.AggregateRoot) {
	u.ledger.Register(aggregate)
}

type UnitOfWorkFactory struct {
	store *Store
}

func NewUnitOfWorkFactory(store *Store) *UnitOfWorkFactory {
	return &UnitOfWorkFactory{store: store}
}

func (f *UnitOfWorkFactory) New() shared.UnitOfWork {
	return NewUnitOfWork(f.store)
}

var (
	_ shared.UnitOfWork        = (*UnitOfWork)(nil)
	_ shared.UnitOfWorkFactory = (*UnitOfWorkFactory)(nil)
)
