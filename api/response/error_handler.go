package response

import (
	stdErrors "errors"
	"net/http"
	"runtime"

	"ordercore/domain/shared"
	"ordercore/pkg/errors"
	"ordercore/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var httpStatusMap = map[errors.ErrorCode]int{
	errors.CodeInternal:        http.StatusInternalServerError,
	errors.CodeBadRequest:      http.StatusBadRequest,
	errors.CodeUnauthorized:    http.StatusUnauthorized,
	errors.CodeNotFound:        http.StatusNotFound,
	errors.CodeConflict:        http.StatusConflict,
	errors.CodeForbidden:       http.StatusForbidden,
	errors.CodeTooManyRequests: http.StatusTooManyRequests,
	errors.CodeValidation:      http.StatusBadRequest,

	errors.CodeOrderNotFound:       http.StatusNotFound,
	errors.CodeInvalidOrderState:   http.StatusUnprocessableEntity,
	errors.CodeConcurrentModify:    http.StatusConflict,
	errors.CodeOrderExpired:        http.StatusGone,
	errors.CodeRefundNotApplicable: http.StatusUnprocessableEntity,
	errors.CodeRefundRequired:      http.StatusConflict,

	errors.CodeInsufficientStock: http.StatusConflict,
	errors.CodeVariantNotFound:   http.StatusNotFound,

	errors.CodeUnknownPaymentMethod: http.StatusBadRequest,
	errors.CodePaymentMethodOff:     http.StatusBadRequest,
	errors.CodeInvalidSignature:     http.StatusUnauthorized,
	errors.CodeGateway:              http.StatusBadGateway,
	errors.CodeNoPaymentSession:     http.StatusUnprocessableEntity,

	errors.CodeUserNotFound:       http.StatusNotFound,
	errors.CodeUserNotActive:      http.StatusForbidden,
	errors.CodeInvalidIdempotency: http.StatusBadRequest,
}

func mapErrorCodeToHTTPStatus(code errors.ErrorCode) int {
	if status, ok := httpStatusMap[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// GetRequestID 由 RequestIDMiddleware 写入
func GetRequestID(c *gin.Context) string {
	return getRequestID(c)
}

func getRequestID(c *gin.Context) string {
	id, _ := c.Get(RequestIDKey)
	s, _ := id.(string)
	return s
}

func fail(c *gin.Context, status int, code, message string) {
	c.JSON(status, &Response{
		Success:   false,
		Error:     code,
		Message:   message,
		Code:      status,
		RequestID: getRequestID(c),
	})
}

// HandleError 参数绑定等框架层错误，响应的 error 固定为 BAD_REQUEST
func HandleError(c *gin.Context, err error, message string, status int) {
	logger.FromContext(c.Request.Context()).Warn(message,
		zap.String("route", c.FullPath()),
		zap.Int("status", status),
		zap.Error(err))
	fail(c, status, string(errors.CodeBadRequest), message)
}

// HandleAppError 领域错误先转换为 AppError，再按错误码映射 HTTP 状态。
// 4xx 记 warn，5xx 记 error 并附调用栈；内部错误不向调用方暴露细节。
func HandleAppError(c *gin.Context, err error) {
	appErr := errors.FromDomainError(err)
	status := mapErrorCodeToHTTPStatus(appErr.Code)

	fields := []zap.Field{
		zap.String("route", c.FullPath()),
		zap.String("error_code", string(appErr.Code)),
		zap.Int("http_status", status),
	}
	if appErr.Err != nil {
		fields = append(fields, zap.Error(appErr.Err))
	}
	log := logger.FromContext(c.Request.Context())
	message := appErr.Message
	if status >= http.StatusInternalServerError {
		log.Error(appErr.Message, append(fields, zap.Strings("stack", extractStack(err)))...)
		if appErr.Code == errors.CodeInternal {
			message = "internal server error"
		}
	} else {
		log.Warn(appErr.Message, fields...)
	}
	fail(c, status, string(appErr.Code), message)
}

func extractStack(err error) []string {
	var stacker shared.Stacker
	if stdErrors.As(err, &stacker) {
		if stack := stacker.Stack(); len(stack) > 0 {
			return stack
		}
	}
	return captureStack(4)
}

func captureStack(skip int) []string {
	var pcs [16]uintptr
	frames := runtime.CallersFrames(pcs[:runtime.Callers(skip, pcs[:])])
	stack := make([]string, 0, 5)
	for len(stack) < 5 {
		frame, more := frames.Next()
		if frame.Function != "" {
			stack = append(stack, frame.Function)
		}
		if !more {
			break
		}
	}
	return stack
}
