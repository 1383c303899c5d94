package shared

// AggregateRoot 一致性边界的入口。
// 实现必须是指针类型，UnitOfWork 以聚合本身作为 map 键去重。
type AggregateRoot interface {
	ID() string
	// Version 乐观锁版本，持久化时作为条件更新的守卫
	Version() int
	// PullEvents 取出并清空待发布事件
	PullEvents() []DomainEvent
}
