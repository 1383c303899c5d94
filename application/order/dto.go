package order

import "time"

// LineInput 下单行项，variant_id 与 sku 二选一
type LineInput struct {
	VariantID string `json:"variant_id"`
	Sku       string `json:"sku"`
	Quantity  int    `json:"quantity" binding:"required,min=1"`
}

// AddressInput 收货地址
type AddressInput struct {
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	Line1      string `json:"line1" binding:"required"`
	Line2      string `json:"line2"`
	City       string `json:"city" binding:"required"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code" binding:"required"`
	Country    string `json:"country"`
}

// ContactInput 用户不在本地用户表时使用的联系方式
type ContactInput struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// CreateOrderRequest 下单请求体
type CreateOrderRequest struct {
	Items           []LineInput   `json:"items" binding:"required,min=1,dive"`
	ShippingAddress AddressInput  `json:"shipping_address" binding:"required"`
	PaymentMethod   string        `json:"payment_method" binding:"required"`
	Contact         *ContactInput `json:"contact,omitempty"`
}

// CreateOrderCommand 下单命令。UserID 来自认证，IdempotencyKey 来自请求头。
type CreateOrderCommand struct {
	CreateOrderRequest
	UserID         string
	IdempotencyKey string
}

// AmountResponse 金额：minor 为最小货币单位整数，display 仅用于展示
type AmountResponse struct {
	Minor   int64  `json:"minor"`
	Display string `json:"display"`
}

type OrderItemResponse struct {
	ID           string         `json:"id"`
	ProductID    string         `json:"product_id"`
	ProductName  string         `json:"product_name"`
	ProductImage string         `json:"product_image,omitempty"`
	Category     string         `json:"category,omitempty"`
	VariantID    string         `json:"variant_id"`
	Sku          string         `json:"sku"`
	Size         string         `json:"size,omitempty"`
	Quantity     int            `json:"quantity"`
	UnitPrice    AmountResponse `json:"unit_price"`
	MRP          AmountResponse `json:"mrp"`
	LineTotal    AmountResponse `json:"line_total"`
}

type TotalsResponse struct {
	Subtotal      AmountResponse `json:"subtotal"`
	TaxTotal      AmountResponse `json:"tax_total"`
	ShippingTotal AmountResponse `json:"shipping_total"`
	DiscountTotal AmountResponse `json:"discount_total"`
	CODCharge     AmountResponse `json:"cod_charge"`
	GrandTotal    AmountResponse `json:"grand_total"`
}

type RefundResponse struct {
	ID              string         `json:"id"`
	Amount          AmountResponse `json:"amount"`
	Reason          string         `json:"reason"`
	GatewayRefundID string         `json:"gateway_refund_id,omitempty"`
	Status          string         `json:"status"`
	By              string         `json:"by,omitempty"`
	At              time.Time      `json:"at"`
}

type PaymentResponse struct {
	Method           string           `json:"method"`
	Status           string           `json:"status"`
	GatewayOrderID   string           `json:"gateway_order_id,omitempty"`
	GatewayPaymentID string           `json:"gateway_payment_id,omitempty"`
	RefundedTotal    AmountResponse   `json:"refunded_total"`
	Refunds          []RefundResponse `json:"refunds"`
}

type HistoryResponse struct {
	Status string    `json:"status"`
	By     string    `json:"by,omitempty"`
	Note   string    `json:"note,omitempty"`
	At     time.Time `json:"at"`
}

// OrderResponse 订单返回模型
type OrderResponse struct {
	ID              string              `json:"id"`
	OrderNumber     string              `json:"order_number"`
	UserID          string              `json:"user_id"`
	Status          string              `json:"status"`
	Currency        string              `json:"currency"`
	Contact         ContactInput        `json:"contact"`
	ShippingAddress AddressInput        `json:"shipping_address"`
	Items           []OrderItemResponse `json:"items"`
	Totals          TotalsResponse      `json:"totals"`
	Payment         PaymentResponse     `json:"payment"`
	History         []HistoryResponse   `json:"history"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

// SessionResponse 网关会话，客户端据此跳转或拉起支付
type SessionResponse struct {
	OrderID          string         `json:"order_id"`
	Provider         string         `json:"provider"`
	GatewayReference string         `json:"gateway_reference"`
	RedirectURL      string         `json:"redirect_url,omitempty"`
	PublicKey        string         `json:"public_key,omitempty"`
	Amount           AmountResponse `json:"amount"`
	Currency         string         `json:"currency"`
}

// CreateOrderResult 订单已提交时 SessionError 非空表示网关会话创建失败，可重试
type CreateOrderResult struct {
	Order        *OrderResponse   `json:"order"`
	Session      *SessionResponse `json:"payment_session,omitempty"`
	Reused       bool             `json:"reused"`
	SessionError string           `json:"payment_session_error,omitempty"`
}

type OrderPage struct {
	Orders []*OrderResponse `json:"orders"`
	Page   int              `json:"page"`
	Limit  int              `json:"limit"`
	Total  int64            `json:"total"`
}

// WebhookResult Applied 为 false 表示通知已处理过或订单已不在待支付状态
type WebhookResult struct {
	OrderID string `json:"order_id,omitempty"`
	Outcome string `json:"outcome"`
	Applied bool   `json:"applied"`
	Status  string `json:"status,omitempty"`
}

// ListOrdersQuery 后台订单查询
type ListOrdersQuery struct {
	Page   int       `form:"page"`
	Limit  int       `form:"limit"`
	Status string    `form:"status"`
	Method string    `form:"payment_method"`
	UserID string    `form:"user_id"`
	From   time.Time `form:"from" time_format:"2006-01-02"`
	To     time.Time `form:"to" time_format:"2006-01-02"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Note   string `json:"note"`
}

type UpdateStatusCommand struct {
	UpdateStatusRequest
	AdminID string
	OrderID string
}

// RefundRequest Amount 为主单位字符串（"410.00"），为空表示退还剩余全部金额
type RefundRequest struct {
	Amount string `json:"amount"`
	Reason string `json:"reason" binding:"required"`
}

type RefundCommand struct {
	RefundRequest
	AdminID string
	OrderID string
}
