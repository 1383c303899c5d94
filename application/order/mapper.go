package order

import (
	"ordercore/domain/inventory"
	"ordercore/domain/order"
	"ordercore/domain/payment"
	"ordercore/pkg/money"
)

func amount(minor int64) AmountResponse {
	return AmountResponse{Minor: minor, Display: money.Format(minor)}
}

func toLineRequests(items []LineInput) []order.LineRequest {
	lines := make([]order.LineRequest, len(items))
	for i, item := range items {
		ref := inventory.BySku(item.Sku)
		if item.VariantID != "" {
			ref = inventory.ByID(item.VariantID)
		}
		lines[i] = order.LineRequest{Ref: ref, Quantity: item.Quantity}
	}
	return lines
}

func toAddress(a AddressInput) order.Address {
	return order.Address{
		Name:       a.Name,
		Phone:      a.Phone,
		Line1:      a.Line1,
		Line2:      a.Line2,
		City:       a.City,
		State:      a.State,
		PostalCode: a.PostalCode,
		Country:    a.Country,
	}
}

func toOrderResponse(o *order.Order) *OrderResponse {
	items := o.Items()
	itemResp := make([]OrderItemResponse, len(items))
	for i, item := range items {
		itemResp[i] = OrderItemResponse{
			ID:           item.ID(),
			ProductID:    item.ProductID(),
			ProductName:  item.ProductName(),
			ProductImage: item.ProductImage(),
			Category:     item.Category(),
			VariantID:    item.VariantID(),
			Sku:          item.Sku(),
			Size:         item.Size(),
			Quantity:     item.Quantity(),
			UnitPrice:    amount(item.UnitPrice()),
			MRP:          amount(item.MRP()),
			LineTotal:    amount(item.LineTotal()),
		}
	}

	pay := o.Payment()
	refunds := make([]RefundResponse, len(pay.Refunds))
	for i, r := range pay.Refunds {
		refunds[i] = RefundResponse{
			ID:              r.ID,
			Amount:          amount(r.Amount),
			Reason:          r.Reason,
			GatewayRefundID: r.GatewayRefundID,
			Status:          r.Status,
			By:              r.By,
			At:              r.At,
		}
	}

	history := o.History()
	historyResp := make([]HistoryResponse, len(history))
	for i, h := range history {
		historyResp[i] = HistoryResponse{Status: string(h.Status), By: h.By, Note: h.Note, At: h.At}
	}

	t := o.Totals()
	addr := o.ShippingAddress()
	contact := o.Contact()
	return &OrderResponse{
		ID:          o.ID(),
		OrderNumber: o.OrderNumber(),
		UserID:      o.UserID(),
		Status:      string(o.Status()),
		Currency:    o.Currency(),
		Contact:     ContactInput{Name: contact.Name, Email: contact.Email, Phone: contact.Phone},
		ShippingAddress: AddressInput{
			Name:       addr.Name,
			Phone:      addr.Phone,
			Line1:      addr.Line1,
			Line2:      addr.Line2,
			City:       addr.City,
			State:      addr.State,
			PostalCode: addr.PostalCode,
			Country:    addr.Country,
		},
		Items: itemResp,
		Totals: TotalsResponse{
			Subtotal:      amount(t.Subtotal),
			TaxTotal:      amount(t.TaxTotal),
			ShippingTotal: amount(t.ShippingTotal),
			DiscountTotal: amount(t.DiscountTotal),
			CODCharge:     amount(t.CODCharge),
			GrandTotal:    amount(t.GrandTotal),
		},
		Payment: PaymentResponse{
			Method:           string(pay.Method),
			Status:           string(pay.Status),
			GatewayOrderID:   pay.GatewayOrderID,
			GatewayPaymentID: pay.GatewayPaymentID,
			RefundedTotal:    amount(pay.RefundedTotal),
			Refunds:          refunds,
		},
		History:   historyResp,
		CreatedAt: o.CreatedAt(),
		UpdatedAt: o.UpdatedAt(),
	}
}

func toSessionResponse(orderID string, s *payment.Session) *SessionResponse {
	if s == nil {
		return nil
	}
	return &SessionResponse{
		OrderID:          orderID,
		Provider:         string(s.Provider),
		GatewayReference: s.GatewayReference,
		RedirectURL:      s.RedirectURL,
		PublicKey:        s.PublicKey,
		Amount:           amount(s.Amount),
		Currency:         s.Currency,
	}
}
