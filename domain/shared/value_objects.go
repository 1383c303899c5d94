package shared

import (
	"errors"
	"math"
)

var (
	ErrCurrencyMismatch = errors.New("currency mismatch")
	ErrAmountOverflow   = errors.New("amount overflow")
)

// Money 金额值对象，amount 为最小货币单位（paise/cents）
type Money struct {
	amount   int64
	currency string
}

func NewMoney(amount int64, currency string) Money {
	return Money{amount: amount, currency: currency}
}

func Zero(currency string) Money {
	return Money{currency: currency}
}

func (m Money) Amount() int64 {
	return m.amount
}

func (m Money) Currency() string {
	return m.currency
}

func (m Money) IsZero() bool {
	return m.amount == 0
}

func (m Money) Add(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, ErrCurrencyMismatch
	}
	if (other.amount > 0 && m.amount > math.MaxInt64-other.amount) ||
		(other.amount < 0 && m.amount < math.MinInt64-other.amount) {
		return Money{}, ErrAmountOverflow
	}
	return Money{amount: m.amount + other.amount, currency: m.currency}, nil
}

func (m Money) Subtract(other Money) (Money, error) {
	if other.amount == math.MinInt64 {
		return Money{}, ErrAmountOverflow
	}
	return m.Add(Money{amount: -other.amount, currency: other.currency})
}

// Multiply 乘以数量，带溢出检查
func (m Money) Multiply(qty int) (Money, error) {
	if qty < 0 {
		return Money{}, errors.New("quantity cannot be negative")
	}
	if qty == 0 || m.amount == 0 {
		return Money{currency: m.currency}, nil
	}
	q := int64(qty)
	if m.amount > math.MaxInt64/q || m.amount < math.MinInt64/q {
		return Money{}, ErrAmountOverflow
	}
	return Money{amount: m.amount * q, currency: m.currency}, nil
}

func (m Money) IsGreaterThan(other Money) bool {
	return m.amount > other.amount
}

func (m Money) Equals(other Money) bool {
	return m.amount == other.amount && m.currency == other.currency
}
