package order

import (
	"context"
	"fmt"
	"time"
)

// Sequence is the atomic per-period counter behind order numbers.
// Next joins the transaction carried by ctx when one is present.
type Sequence interface {
	Next(ctx context.Context, counterID string) (int64, error)
}

// Numbering formats order numbers as PREFIX-YYYYMM-NNNNNN.
type Numbering struct {
	Prefix   string
	Location *time.Location
}

func (n Numbering) period(at time.Time) string {
	loc := n.Location
	if loc == nil {
		loc = time.UTC
	}
	return at.In(loc).Format("200601")
}

// CounterID is the counter document id for the period containing at.
func (n Numbering) CounterID(at time.Time) string {
	return "order_" + n.period(at)
}

func (n Numbering) Format(at time.Time, seq int64) string {
	return fmt.Sprintf("%s-%s-%06d", n.Prefix, n.period(at), seq)
}

// Next draws from seq and formats the result.
func (n Numbering) Next(ctx context.Context, seq Sequence, at time.Time) (string, error) {
	v, err := seq.Next(ctx, n.CounterID(at))
	if err != nil {
		return "", fmt.Errorf("next order sequence: %w", err)
	}
	return n.Format(at, v), nil
}
