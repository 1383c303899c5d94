/*
Package order - 订单领域错误定义

1. 哨兵错误支持 errors.Is() 判断
2. 构造函数在创建时捕获堆栈
3. 同时包装 shared 的分类哨兵，API 层据此映射状态码
*/
package order

import (
	"errors"

	"ordercore/domain/shared"
)

var (
	ErrOrderNotFound = errors.New("order not found")

	// ErrConcurrentModification 条件更新未命中：状态已被其他事务改变
	ErrConcurrentModification = errors.New("order was modified by another transaction")

	// ErrInvalidTransition 状态转换不在白名单内
	ErrInvalidTransition = errors.New("invalid order status transition")

	// ErrOrderExpired 预留已过期，迟到的支付需要人工对账
	ErrOrderExpired = errors.New("order expired")

	ErrEmptyOrderItems = errors.New("order must have at least one item")

	ErrInvalidQuantity = errors.New("quantity must be at least 1")

	ErrOrderTotalNotPositive = errors.New("order total must be positive")

	// ErrRefundNotApplicable 订单未通过在线网关付款
	ErrRefundNotApplicable = errors.New("order has no captured online payment to refund")

	// ErrRefundRequired 已收款订单不能直接取消，需走退款
	ErrRefundRequired = errors.New("order has a captured payment; refund it instead")

	// ErrNotOwner 非订单所有者访问
	ErrNotOwner = errors.New("order does not belong to user")
)

// orderDomainError 订单领域错误（带堆栈）
type orderDomainError struct {
	sentinel error
	kind     error
	message  string
	stack    []uintptr
}

func (e *orderDomainError) Error() string {
	return e.message
}

// Unwrap 同时暴露订单哨兵和 shared 分类
func (e *orderDomainError) Unwrap() []error {
	if e.kind == nil {
		return []error{e.sentinel}
	}
	return []error{e.sentinel, e.kind}
}

func (e *orderDomainError) Stack() []string {
	return shared.FormatStack(e.stack)
}

func NewOrderNotFoundError(orderID string) error {
	return &orderDomainError{
		sentinel: ErrOrderNotFound,
		kind:     shared.ErrNotFound,
		message:  "order not found: " + orderID,
		stack:    shared.CaptureStack(3),
	}
}

func NewConcurrentModificationError(orderID string) error {
	return &orderDomainError{
		sentinel: ErrConcurrentModification,
		kind:     shared.ErrConflict,
		message:  "order " + orderID + " was modified by another transaction",
		stack:    shared.CaptureStack(3),
	}
}

func NewInvalidTransitionError(orderID string, from, to Status) error {
	return &orderDomainError{
		sentinel: ErrInvalidTransition,
		kind:     shared.ErrConflict,
		message:  "order " + orderID + " cannot transition from " + string(from) + " to " + string(to),
		stack:    shared.CaptureStack(3),
	}
}

func NewOrderExpiredError(orderID string) error {
	return &orderDomainError{
		sentinel: ErrOrderExpired,
		kind:     shared.ErrConflict,
		message:  "order " + orderID + " has expired",
		stack:    shared.CaptureStack(3),
	}
}

func NewRefundRequiredError(orderID string) error {
	return &orderDomainError{
		sentinel: ErrRefundRequired,
		kind:     shared.ErrConflict,
		message:  "order " + orderID + " has a captured payment; refund it instead of cancelling",
		stack:    shared.CaptureStack(3),
	}
}

func NewNotOwnerError(orderID string) error {
	return &orderDomainError{
		sentinel: ErrNotOwner,
		kind:     shared.ErrForbidden,
		message:  "order " + orderID + " does not belong to the requesting user",
		stack:    shared.CaptureStack(3),
	}
}

// newInputError 业务校验失败，同时可用 errors.Is(err, shared.ErrInvalidInput) 判断
func newInputError(sentinel error) error {
	return &orderDomainError{
		sentinel: sentinel,
		kind:     shared.ErrInvalidInput,
		message:  sentinel.Error(),
		stack:    shared.CaptureStack(3),
	}
}

func newStateError(sentinel error) error {
	return &orderDomainError{
		sentinel: sentinel,
		kind:     shared.ErrConflict,
		message:  sentinel.Error(),
		stack:    shared.CaptureStack(3),
	}
}
