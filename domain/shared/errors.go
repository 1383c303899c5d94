// 领域层错误。哨兵错误供 errors.Is 判断，DomainError 携带实体和字段，
// 并在构造时记录调用点，API 层记录 5xx 时再格式化。
package shared

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict") // 并发修改、唯一约束
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

// DomainError 校验失败或业务冲突
type DomainError struct {
	Err     error
	Entity  string // order, variant, user, payment
	Field   string
	Message string
	stack   []uintptr
}

func (e *DomainError) Error() string { return e.Message }
func (e *DomainError) Unwrap() error { return e.Err }

func (e *DomainError) Stack() []string {
	return FormatStack(e.stack)
}

// CaptureStack skip 一般为 3，跳过 Callers、CaptureStack 和错误构造函数
func CaptureStack(skip int) []uintptr {
	var pcs [32]uintptr
	n := runtime.Callers(skip, pcs[:])
	return pcs[:n]
}

// FormatStack 去掉 runtime 帧，最多 10 帧
func FormatStack(stack []uintptr) []string {
	if len(stack) == 0 {
		return nil
	}
	frames := runtime.CallersFrames(stack)
	var out []string
	for len(out) < 10 {
		frame, more := frames.Next()
		if !strings.Contains(frame.File, "runtime/") {
			out = append(out, fmt.Sprintf("%s:%d %s", frame.File, frame.Line, frame.Function))
		}
		if !more {
			break
		}
	}
	return out
}

func NewConflictError(entity, message string) error {
	return &DomainError{Err: ErrConflict, Entity: entity, Message: message, stack: CaptureStack(3)}
}

// NewValidationError reason 直接作为返回给调用方的消息
func NewValidationError(entity, field, reason string) error {
	return &DomainError{Err: ErrInvalidInput, Entity: entity, Field: field, Message: reason, stack: CaptureStack(3)}
}

// Stacker 能提供调用栈的错误
type Stacker interface {
	Stack() []string
}
