/*
Package order - 订单 API 控制器

职责:
1. 接收 HTTP 请求，解析参数
2. 调用应用服务处理业务逻辑
3. 使用 response 包统一处理响应和错误

错误处理原则:
1. 参数绑定错误: 使用 response.HandleError 直接返回 400
2. 业务错误: 使用 response.HandleAppError 自动映射状态码
3. 调用方身份只取自认证中间件，请求体中的 user_id 一律不信任
*/
package order

import (
	"net/http"
	"strconv"

	"ordercore/api/ctxutil"
	"ordercore/api/response"
	orderapp "ordercore/application/order"
	"ordercore/domain/idempotency"

	"github.com/gin-gonic/gin"
)

// Controller 订单控制器
type Controller struct {
	orderService *orderapp.ApplicationService
}

func NewController(orderService *orderapp.ApplicationService) *Controller {
	return &Controller{orderService: orderService}
}

// RegisterRoutes 注册订单路由，auth 为用户认证中间件
func (c *Controller) RegisterRoutes(router *gin.RouterGroup, auth gin.HandlerFunc) {
	orderGroup := router.Group("/orders", auth)
	{
		orderGroup.POST("", c.CreateOrder)
		orderGroup.GET("", c.ListMyOrders)
		orderGroup.GET("/:id", c.GetOrder)
		orderGroup.POST("/:id/payment-session", c.CreatePaymentSession)
	}
}

// CreateOrder 下单
// POST /api/v1/orders
//
// 新订单返回 201；相同 Idempotency-Key 的重试返回 200 和原订单。
// 订单已提交但网关会话失败时仍返回成功，payment_session_error 提示客户端重试会话。
func (c *Controller) CreateOrder(ctx *gin.Context) {
	var req orderapp.CreateOrderRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.HandleError(ctx, err, "invalid request parameters", http.StatusBadRequest)
		return
	}

	result, err := c.orderService.CreateOrder(ctxutil.WithRequestID(ctx), orderapp.CreateOrderCommand{
		CreateOrderRequest: req,
		UserID:             ctxutil.UserID(ctx),
		IdempotencyKey:     ctx.GetHeader(idempotency.Header),
	})
	if err != nil {
		response.HandleAppError(ctx, err)
		return
	}

	if result.Reused {
		response.HandleSuccess(ctx, result, "order already placed")
		return
	}
	response.HandleCreated(ctx, result, "order created successfully")
}

// ListMyOrders 当前用户的订单
// GET /api/v1/orders?page=1&limit=20
func (c *Controller) ListMyOrders(ctx *gin.Context) {
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))

	result, err := c.orderService.GetUserOrders(ctxutil.WithRequestID(ctx), ctxutil.UserID(ctx), page, limit)
	if err != nil {
		response.HandleAppError(ctx, err)
		return
	}
	response.HandlePaginated(ctx, result.Orders, Pagination(result), "orders retrieved successfully")
}

// GetOrder 订单详情，非本人订单返回 403
// GET /api/v1/orders/:id
func (c *Controller) GetOrder(ctx *gin.Context) {
	order, err := c.orderService.GetOrderByID(ctxutil.WithRequestID(ctx), ctxutil.UserID(ctx), ctx.Param("id"))
	if err != nil {
		response.HandleAppError(ctx, err)
		return
	}
	response.HandleSuccess(ctx, order, "order retrieved successfully")
}

// CreatePaymentSession 重试创建网关支付会话，已有会话时直接返回
// POST /api/v1/orders/:id/payment-session
func (c *Controller) CreatePaymentSession(ctx *gin.Context) {
	session, err := c.orderService.AttachPaymentSession(ctxutil.WithRequestID(ctx), ctxutil.UserID(ctx), ctx.Param("id"))
	if err != nil {
		response.HandleAppError(ctx, err)
		return
	}
	response.HandleSuccess(ctx, session, "payment session ready")
}

// Pagination 分页信息
func Pagination(p *orderapp.OrderPage) response.Pagination {
	return response.NewPagination(p.Page, p.Limit, p.Total)
}
