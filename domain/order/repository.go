package order

import (
	"context"
	"time"

	"ordercore/domain/payment"
	"ordercore/domain/shared"
)

// Transition is a conditional status update: it applies only while the
// stored status still equals From, and appends Entry to the history.
// PaymentStatus and GatewayPaymentID are written with it when non-empty.
type Transition struct {
	OrderID          string
	From             Status
	To               Status
	Entry            HistoryEntry
	PaymentStatus    payment.Status
	GatewayPaymentID string
}

// Page is an offset window, newest orders first.
type Page struct {
	Offset int
	Limit  int
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// NewPage converts a 1-based page number.
func NewPage(page, size int) Page {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return Page{Offset: (page - 1) * size, Limit: size}
}

// Repository Order repository interface
//
// Save inserts a new aggregate. Every later change is a conditional update
// returning applied=false when its guard did not match, so concurrent
// writers (webhook, sweeper, admin) never overwrite each other.
// All methods join the transaction carried by ctx.
type Repository interface {
	Save(ctx context.Context, order *Order) error

	FindByID(ctx context.Context, id string) (*Order, error)

	// FindByGatewayReference finds the order whose session has ref.
	FindByGatewayReference(ctx context.Context, method payment.Method, ref string) (*Order, error)

	// FindBySpecification returns one page and the total match count.
	FindBySpecification(ctx context.Context, spec shared.Specification[*Order], page Page) ([]*Order, int64, error)

	// FindExpiredPending lists pending_payment orders created before cutoff, oldest first.
	FindExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]*Order, error)

	TransitionStatus(ctx context.Context, t Transition) (applied bool, err error)

	// AttachGatewaySession stores the session while the order is still
	// pending_payment and has no gateway reference.
	AttachGatewaySession(ctx context.Context, orderID string, session *payment.Session) (applied bool, err error)

	// MarkPaymentFailed sets the payment status to failed while the order is pending_payment.
	MarkPaymentFailed(ctx context.Context, orderID, gatewayPaymentID string) (applied bool, err error)

	// ReserveRefund adds amount to the refunded total only if the result
	// stays within the grand total and the order is in a refundable status.
	ReserveRefund(ctx context.Context, orderID string, amount int64) (applied bool, err error)

	// ReleaseRefund undoes a reservation after a provider failure.
	ReleaseRefund(ctx context.Context, orderID string, amount int64) error

	// AppendRefund logs a completed refund and sets the payment status.
	AppendRefund(ctx context.Context, orderID string, refund Refund, status payment.Status) error
}
