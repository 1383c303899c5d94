/*
Package webhook 支付网关回调入口。

签名校验基于原始请求体，因此这里读取字节后直接交给应用服务，不做 JSON 绑定。
开发环境的模拟支付完成接口也在这里注册，只有存在模拟网关时才会挂载。
*/
package webhook

import (
	"io"
	"net/http"

	"ordercore/api/ctxutil"
	"ordercore/api/response"
	orderapp "ordercore/application/order"
	"ordercore/domain/payment"
	"ordercore/infrastructure/gateway"
	apperrors "ordercore/pkg/errors"

	"github.com/gin-gonic/gin"
)

// maxBody 网关回调报文上限
const maxBody = 1 << 20

type Controller struct {
	orderService *orderapp.ApplicationService
	registry     *gateway.Registry
}

func NewController(orderService *orderapp.ApplicationService, registry *gateway.Registry) *Controller {
	return &Controller{orderService: orderService, registry: registry}
}

func (c *Controller) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/webhooks/:provider", c.Receive)

	if c.registry != nil && c.registry.HasSimulators() {
		dev := router.Group("/dev/payments/:provider")
		dev.GET("/complete", c.Complete)
		dev.POST("/complete", c.Complete)
	}
}

// Receive POST /api/v1/webhooks/:provider
//
// 已处理过的回调同样返回 200（applied=false），网关据此停止重试。
func (c *Controller) Receive(ctx *gin.Context) {
	method, err := payment.ParseMethod(ctx.Param("provider"))
	if err != nil {
		response.HandleAppError(ctx, err)
		return
	}
	raw, err := io.ReadAll(io.LimitReader(ctx.Request.Body, maxBody))
	if err != nil {
		response.HandleError(ctx, err, "failed to read webhook body", http.StatusBadRequest)
		return
	}

	result, err := c.orderService.HandleWebhook(ctxutil.WithRequestID(ctx), method, raw, ctx.GetHeader(gateway.SignatureHeader(method)))
	if err != nil {
		response.HandleAppError(ctx, err)
		return
	}
	response.HandleSuccess(ctx, result, "webhook processed")
}

// Complete 模拟用户在网关完成支付：生成签名回调并走正常 webhook 流程
// GET|POST /api/v1/dev/payments/:provider/complete?reference=...&outcome=captured|failed
func (c *Controller) Complete(ctx *gin.Context) {
	method, err := payment.ParseMethod(ctx.Param("provider"))
	if err != nil {
		response.HandleAppError(ctx, err)
		return
	}
	sim, ok := c.registry.Simulator(method)
	if !ok {
		response.HandleAppError(ctx, apperrors.NotFound("provider "+string(method)+" is not simulated"))
		return
	}
	outcome := payment.Outcome(ctx.DefaultQuery("outcome", string(payment.OutcomeCaptured)))
	raw, signature, err := sim.Complete(ctx.Query("reference"), outcome)
	if err != nil {
		response.HandleAppError(ctx, apperrors.Wrap(err, apperrors.CodeBadRequest, err.Error()))
		return
	}

	result, err := c.orderService.HandleWebhook(ctxutil.WithRequestID(ctx), method, raw, signature)
	if err != nil {
		response.HandleAppError(ctx, err)
		return
	}
	response.HandleSuccess(ctx, result, "simulated payment completed")
}
