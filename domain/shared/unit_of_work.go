package shared

import "context"

// UnitOfWork 管理事务边界与聚合事件收集。
// Execute 内的 ctx 携带事务，仓储通过 ctx 加入同一事务；
// 存储层冲突时 Execute 可能整体重跑 fn，fn 内不得修改聚合状态。
type UnitOfWork interface {
	Execute(ctx context.Context, fn func(ctx context.Context) error) error
	RegisterNew(aggregate AggregateRoot)
	RegisterDirty(aggregate AggregateRoot)
}

type UnitOfWorkFactory interface {
	New() UnitOfWork
}

type OutboxRepository interface {
	SaveEvent(ctx context.Context, event DomainEvent) error
}

// EventLedger 跟踪一次业务操作中登记的聚合及其已取出的事件。
//
// PullEvents 会清空聚合内的事件，事务回滚后重跑时聚合里已经没有事件了，
// 所以取出的事件保存在 ledger 里，直到提交成功。
type EventLedger struct {
	attempt []AggregateRoot
	seen    map[AggregateRoot]bool
	drained map[AggregateRoot][]DomainEvent
}

// Begin 开始新一次尝试，清空本次登记但保留已取出的事件
func (l *EventLedger) Begin() {
	l.attempt = l.attempt[:0]
	l.seen = make(map[AggregateRoot]bool)
	if l.drained == nil {
		l.drained = make(map[AggregateRoot][]DomainEvent)
	}
}

// Register 同一聚合在一次尝试内只登记一次
func (l *EventLedger) Register(agg AggregateRoot) {
	if l.seen == nil {
		l.Begin()
	}
	if l.seen[agg] {
		return
	}
	l.seen[agg] = true
	l.attempt = append(l.attempt, agg)
}

// Events 返回本次尝试应写入 outbox 的事件，按登记顺序
func (l *EventLedger) Events() []DomainEvent {
	var out []DomainEvent
	for _, agg := range l.attempt {
		l.drained[agg] = append(l.drained[agg], agg.PullEvents()...)
		out = append(out, l.drained[agg]...)
	}
	return out
}

// Committed 提交成功后丢弃全部记录
func (l *EventLedger) Committed() {
	l.attempt = nil
	l.seen = nil
	l.drained = nil
}
