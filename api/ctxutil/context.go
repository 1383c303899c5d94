// Package ctxutil 在 gin.Context 与 context.Context 之间传递请求范围的值
package ctxutil

import (
	"context"

	"ordercore/api/response"
	"ordercore/infrastructure/persistence"

	"github.com/gin-gonic/gin"
)

const (
	userIDKey = "identity.user_id"
	roleKey   = "identity.role"
)

// Role 调用方身份
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

// WithRequestID 返回带 request id 的请求上下文，传给应用服务
func WithRequestID(ctx *gin.Context) context.Context {
	requestID := response.GetRequestID(ctx)
	return persistence.ContextWithRequestID(ctx.Request.Context(), requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	return persistence.RequestIDFromContext(ctx)
}

// SetIdentity 由认证中间件调用
func SetIdentity(ctx *gin.Context, userID string, role Role) {
	ctx.Set(userIDKey, userID)
	ctx.Set(roleKey, role)
}

// Identity 返回已认证的调用方，未认证时 ok 为 false
func Identity(ctx *gin.Context) (userID string, role Role, ok bool) {
	userID = ctx.GetString(userIDKey)
	v, _ := ctx.Get(roleKey)
	role, _ = v.(Role)
	return userID, role, userID != ""
}

// UserID 已认证调用方的 id，管理员同样适用
func UserID(ctx *gin.Context) string {
	return ctx.GetString(userIDKey)
}
