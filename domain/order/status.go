package order

import "sort"

// Status Order status
type Status string

const (
	StatusPendingPayment Status = "pending_payment"
	StatusProcessing     Status = "processing"
	StatusShipped        Status = "shipped"
	StatusDelivered      Status = "delivered"
	StatusCancelled      Status = "cancelled"
	StatusExpired        Status = "expired"
	StatusRefunded       Status = "refunded"
)

// transitions is the whitelist of legal moves. Terminal states have no entry.
var transitions = map[Status][]Status{
	StatusPendingPayment: {StatusProcessing, StatusCancelled, StatusExpired},
	StatusProcessing:     {StatusShipped, StatusCancelled, StatusRefunded},
	StatusShipped:        {StatusDelivered, StatusRefunded},
}

// adminTargets are the states an administrator may set directly.
// expired belongs to the sweeper and refunded to the refund flow.
var adminTargets = map[Status]bool{
	StatusProcessing: true,
	StatusShipped:    true,
	StatusDelivered:  true,
	StatusCancelled:  true,
}

func ParseStatus(s string) (Status, bool) {
	switch st := Status(s); st {
	case StatusPendingPayment, StatusProcessing, StatusShipped, StatusDelivered,
		StatusCancelled, StatusExpired, StatusRefunded:
		return st, true
	}
	return "", false
}

// CanTransition reports whether from -> to is whitelisted.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (s Status) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// AdminSettable reports whether an administrator may request s.
func (s Status) AdminSettable() bool {
	return adminTargets[s]
}

// ReleasesStock reports whether entering s returns reserved units to stock.
func (s Status) ReleasesStock() bool {
	return s == StatusCancelled || s == StatusExpired
}

// Refundable reports whether a refund may be issued while in s.
func (s Status) Refundable() bool {
	return CanTransition(s, StatusRefunded)
}

// RefundableStatuses lists every status Refundable accepts.
func RefundableStatuses() []Status {
	var out []Status
	for from := range transitions {
		if from.Refundable() {
			out = append(out, from)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
