// Package admin 后台订单接口：查询、状态变更、退款、主动对账
package admin

import (
	"net/http"

	"ordercore/api/ctxutil"
	apiorder "ordercore/api/order"
	"ordercore/api/response"
	orderapp "ordercore/application/order"

	"github.com/gin-gonic/gin"
)

type Controller struct {
	orderService *orderapp.ApplicationService
}

func NewController(orderService *orderapp.ApplicationService) *Controller {
	return &Controller{orderService: orderService}
}

// RegisterRoutes auth 为管理员认证中间件
func (c *Controller) RegisterRoutes(router *gin.RouterGroup, auth gin.HandlerFunc) {
	g := router.Group("/admin/orders", auth)
	{
		g.GET("", c.ListOrders)
		g.PUT("/:id/status", c.UpdateStatus)
		g.POST("/:id/refund", c.Refund)
		g.POST("/:id/reconcile", c.Reconcile)
	}
}

// ListOrders GET /api/v1/admin/orders?status=&payment_method=&user_id=&from=2026-10-01&to=2026-10-31
func (c *Controller) ListOrders(ctx *gin.Context) {
	var q orderapp.ListOrdersQuery
	if err := ctx.ShouldBindQuery(&q); err != nil {
		response.HandleError(ctx, err, "invalid query parameters", http.StatusBadRequest)
		return
	}
	result, err := c.orderService.ListOrders(ctxutil.WithRequestID(ctx), q)
	if err != nil {
		response.HandleAppError(ctx, err)
		return
	}
	response.HandlePaginated(ctx, result.Orders, apiorder.Pagination(result), "orders retrieved successfully")
}

// UpdateStatus PUT /api/v1/admin/orders/:id/status
func (c *Controller) UpdateStatus(ctx *gin.Context) {
	var req orderapp.UpdateStatusRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.HandleError(ctx, err, "invalid request parameters", http.StatusBadRequest)
		return
	}
	order, err := c.orderService.UpdateOrderStatus(ctxutil.WithRequestID(ctx), orderapp.UpdateStatusCommand{
		UpdateStatusRequest: req,
		AdminID:             ctxutil.UserID(ctx),
		OrderID:             ctx.Param("id"),
	})
	if err != nil {
		response.HandleAppError(ctx, err)
		return
	}
	response.HandleSuccess(ctx, order, "order status updated successfully")
}

// Refund POST /api/v1/admin/orders/:id/refund，amount 为空时退还剩余全部金额
func (c *Controller) Refund(ctx *gin.Context) {
	var req orderapp.RefundRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.HandleError(ctx, err, "invalid request parameters", http.StatusBadRequest)
		return
	}
	order, err := c.orderService.RefundOrder(ctxutil.WithRequestID(ctx), orderapp.RefundCommand{
		RefundRequest: req,
		AdminID:       ctxutil.UserID(ctx),
		OrderID:       ctx.Param("id"),
	})
	if err != nil {
		response.HandleAppError(ctx, err)
		return
	}
	response.HandleSuccess(ctx, order, "refund issued")
}

// Reconcile POST /api/v1/admin/orders/:id/reconcile
func (c *Controller) Reconcile(ctx *gin.Context) {
	result, err := c.orderService.ReconcilePayment(ctxutil.WithRequestID(ctx), ctxutil.UserID(ctx), ctx.Param("id"))
	if err != nil {
		response.HandleAppError(ctx, err)
		return
	}
	response.HandleSuccess(ctx, result, "payment reconciled")
}
