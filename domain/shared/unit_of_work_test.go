package shared

import (
	"testing"
	"time"
)

type stubEvent struct{ name, id string }

func (e stubEvent) EventName() string      { return e.name }
func (e stubEvent) OccurredOn() time.Time  { return time.Time{} }
func (e stubEvent) GetAggregateID() string { return e.id }

type stubAggregate struct {
	id     string
	events []DomainEvent
}

func (a *stubAggregate) ID() string   { return a.id }
func (a *stubAggregate) Version() int { return 1 }
func (a *stubAggregate) PullEvents() []DomainEvent {
	out := a.events
	a.events = nil
	return out
}

func TestEventLedgerSurvivesRetry(t *testing.T) {
	agg := &stubAggregate{id: "o1", events: []DomainEvent{stubEvent{"order.placed", "o1"}}}
	var l EventLedger

	// 第一次尝试：取出事件后事务回滚
	l.Begin()
	l.Register(agg)
	l.Register(agg)
	if got := l.Events(); len(got) != 1 {
		t.Fatalf("first attempt events = %d, want 1", len(got))
	}

	// 重跑：聚合已空，事件仍由 ledger 给出
	l.Begin()
	l.Register(agg)
	got := l.Events()
	if len(got) != 1 || got[0].EventName() != "order.placed" {
		t.Fatalf("retry events = %v", got)
	}

	l.Committed()
	l.Begin()
	l.Register(agg)
	if got := l.Events(); len(got) != 0 {
		t.Errorf("events after commit = %v", got)
	}
}

func TestEventLedgerOnlyFlushesRegisteredInAttempt(t *testing.T) {
	a := &stubAggregate{id: "a", events: []DomainEvent{stubEvent{"x", "a"}}}
	b := &stubAggregate{id: "b", events: []DomainEvent{stubEvent{"y", "b"}}}
	var l EventLedger

	l.Register(a)
	l.Register(b)
	if got := l.Events(); len(got) != 2 || got[0].GetAggregateID() != "a" {
		t.Fatalf("events = %v", got)
	}

	l.Begin()
	l.Register(b)
	got := l.Events()
	if len(got) != 1 || got[0].GetAggregateID() != "b" {
		t.Errorf("second attempt events = %v", got)
	}
}
