package errors

import (
	"errors"
	"fmt"

	"ordercore/domain/idempotency"
	"ordercore/domain/inventory"
	"ordercore/domain/order"
	"ordercore/domain/payment"
	"ordercore/domain/shared"
	"ordercore/domain/user"
)

// ErrorCode 错误码
type ErrorCode string

const (
	// 通用错误码
	CodeInternal        ErrorCode = "INTERNAL_ERROR"
	CodeBadRequest      ErrorCode = "BAD_REQUEST"
	CodeUnauthorized    ErrorCode = "UNAUTHORIZED"
	CodeForbidden       ErrorCode = "FORBIDDEN"
	CodeNotFound        ErrorCode = "NOT_FOUND"
	CodeConflict        ErrorCode = "CONFLICT"
	CodeTooManyRequests ErrorCode = "TOO_MANY_REQUESTS"
	CodeValidation      ErrorCode = "VALIDATION_ERROR"

	// 业务错误码 - 订单
	CodeOrderNotFound       ErrorCode = "ORDER_NOT_FOUND"
	CodeInvalidOrderState   ErrorCode = "INVALID_ORDER_STATE"
	CodeConcurrentModify    ErrorCode = "CONCURRENT_MODIFICATION"
	CodeOrderExpired        ErrorCode = "ORDER_EXPIRED"
	CodeRefundNotApplicable ErrorCode = "REFUND_NOT_APPLICABLE"
	CodeRefundRequired      ErrorCode = "REFUND_REQUIRED"

	// 业务错误码 - 库存
	CodeInsufficientStock ErrorCode = "INSUFFICIENT_STOCK"
	CodeVariantNotFound   ErrorCode = "VARIANT_NOT_FOUND"

	// 业务错误码 - 支付
	CodeUnknownPaymentMethod ErrorCode = "UNKNOWN_PAYMENT_METHOD"
	CodePaymentMethodOff     ErrorCode = "PAYMENT_METHOD_DISABLED"
	CodeInvalidSignature     ErrorCode = "INVALID_SIGNATURE"
	CodeGateway              ErrorCode = "PAYMENT_GATEWAY_ERROR"
	CodeNoPaymentSession     ErrorCode = "PAYMENT_SESSION_NOT_APPLICABLE"

	// 业务错误码 - 用户与幂等
	CodeUserNotFound       ErrorCode = "USER_NOT_FOUND"
	CodeUserNotActive      ErrorCode = "USER_NOT_ACTIVE"
	CodeInvalidIdempotency ErrorCode = "INVALID_IDEMPOTENCY_KEY"
)

// AppError 应用错误
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

func BadRequest(message string) *AppError      { return New(CodeBadRequest, message) }
func NotFound(message string) *AppError        { return New(CodeNotFound, message) }
func Internal(message string) *AppError        { return New(CodeInternal, message) }
func Unauthorized(message string) *AppError    { return New(CodeUnauthorized, message) }
func Forbidden(message string) *AppError       { return New(CodeForbidden, message) }
func Conflict(message string) *AppError        { return New(CodeConflict, message) }
func TooManyRequests(message string) *AppError { return New(CodeTooManyRequests, message) }
func Validation(message string) *AppError      { return New(CodeValidation, message) }

// Is 检查是否为特定错误码
func Is(err error, code ErrorCode) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// mapping 按顺序匹配，具体的业务哨兵在前，shared 分类兜底
var mapping = []struct {
	target error
	code   ErrorCode
}{
	{inventory.ErrInsufficientStock, CodeInsufficientStock},
	{inventory.ErrVariantNotFound, CodeVariantNotFound},
	{order.ErrOrderNotFound, CodeOrderNotFound},
	{order.ErrNotOwner, CodeForbidden},
	{order.ErrOrderExpired, CodeOrderExpired},
	{order.ErrInvalidTransition, CodeInvalidOrderState},
	{order.ErrConcurrentModification, CodeConcurrentModify},
	{order.ErrRefundNotApplicable, CodeRefundNotApplicable},
	{order.ErrRefundRequired, CodeRefundRequired},
	{payment.ErrUnknownMethod, CodeUnknownPaymentMethod},
	{payment.ErrMethodDisabled, CodePaymentMethodOff},
	{payment.ErrRefundNotSupported, CodeRefundNotApplicable},
	{payment.ErrInvalidSignature, CodeInvalidSignature},
	{payment.ErrNoSession, CodeNoPaymentSession},
	{payment.ErrGateway, CodeGateway},
	{user.ErrUserNotFound, CodeUserNotFound},
	{user.ErrUserNotActive, CodeUserNotActive},
	{idempotency.ErrInvalidKey, CodeInvalidIdempotency},
	{shared.ErrNotFound, CodeNotFound},
	{shared.ErrConflict, CodeConflict},
	{shared.ErrInvalidInput, CodeValidation},
	{shared.ErrUnauthorized, CodeUnauthorized},
	{shared.ErrForbidden, CodeForbidden},
	{shared.ErrAmountOverflow, CodeValidation},
}

// FromDomainError 将领域错误映射为应用错误，消息取自领域错误本身。
// 无法识别的错误一律视为内部错误。
func FromDomainError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	for _, m := range mapping {
		if errors.Is(err, m.target) {
			return Wrap(err, m.code, userMessage(err))
		}
	}
	return Wrap(err, CodeInternal, "internal server error")
}

// userMessage 优先使用最外层领域错误的消息，避免把包装前缀暴露给客户端
func userMessage(err error) string {
	var de *shared.DomainError
	if errors.As(err, &de) {
		return de.Message
	}
	var ise *inventory.InsufficientStockError
	if errors.As(err, &ise) {
		return ise.Error()
	}
	var ge *payment.GatewayError
	if errors.As(err, &ge) {
		return "payment gateway unavailable"
	}
	return err.Error()
}
