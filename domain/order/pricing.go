package order

import (
	"ordercore/domain/payment"
	"ordercore/domain/shared"
)

// Totals are minor units.
// GrandTotal = Subtotal + ShippingTotal + CODCharge + TaxTotal - DiscountTotal
type Totals struct {
	Subtotal      int64 `json:"subtotal"`
	TaxTotal      int64 `json:"tax_total"`
	ShippingTotal int64 `json:"shipping_total"`
	DiscountTotal int64 `json:"discount_total"`
	CODCharge     int64 `json:"cod_charge"`
	GrandTotal    int64 `json:"grand_total"`
}

func (t Totals) Consistent() bool {
	return t.GrandTotal == t.Subtotal+t.ShippingTotal+t.CODCharge+t.TaxTotal-t.DiscountTotal
}

// TaxRule computes tax for one line. NoTax is the only rule shipped.
type TaxRule interface {
	LineTax(item Item) int64
}

// DiscountRule computes discount for one line. NoDiscount is the only rule shipped.
type DiscountRule interface {
	LineDiscount(item Item) int64
}

type NoTax struct{}

func (NoTax) LineTax(Item) int64 { return 0 }

type NoDiscount struct{}

func (NoDiscount) LineDiscount(Item) int64 { return 0 }

// PricingPolicy computes order totals. Amounts are minor units.
// FreeDeliveryThreshold <= 0 disables free delivery.
type PricingPolicy struct {
	Currency              string
	DeliveryFee           int64
	FreeDeliveryThreshold int64
	CODFee                int64
	Tax                   TaxRule
	Discount              DiscountRule
}

// Price fills per-line tax and discount and returns the totals.
func (p PricingPolicy) Price(items []Item, method payment.Method) (Totals, error) {
	tax := p.Tax
	if tax == nil {
		tax = NoTax{}
	}
	discount := p.Discount
	if discount == nil {
		discount = NoDiscount{}
	}

	subtotal := shared.Zero(p.Currency)
	var taxTotal, discountTotal int64
	for i := range items {
		var err error
		subtotal, err = subtotal.Add(shared.NewMoney(items[i].lineTotal, p.Currency))
		if err != nil {
			return Totals{}, err
		}
		items[i].taxAmount = tax.LineTax(items[i])
		items[i].discountAmount = discount.LineDiscount(items[i])
		taxTotal += items[i].taxAmount
		discountTotal += items[i].discountAmount
	}

	t := Totals{
		Subtotal:      subtotal.Amount(),
		TaxTotal:      taxTotal,
		DiscountTotal: discountTotal,
	}
	if p.FreeDeliveryThreshold <= 0 || t.Subtotal < p.FreeDeliveryThreshold {
		t.ShippingTotal = p.DeliveryFee
	}
	if method == payment.MethodCOD {
		t.CODCharge = p.CODFee
	}
	t.GrandTotal = t.Subtotal + t.ShippingTotal + t.CODCharge + t.TaxTotal - t.DiscountTotal
	if t.GrandTotal <= 0 {
		return Totals{}, newInputError(ErrOrderTotalNotPositive)
	}
	return t, nil
}
