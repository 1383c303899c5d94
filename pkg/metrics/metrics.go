/*
Package metrics 提供 Prometheus 指标。

每个 Metrics 拥有独立的 Registry，测试可以反复创建而不会重复注册。
*/
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ordercore"

type Metrics struct {
	registry *prometheus.Registry

	Requests  *prometheus.CounterVec
	LatencyMS *prometheus.HistogramVec

	OrdersPlaced      *prometheus.CounterVec
	IdempotentReplays prometheus.Counter
	StockRejections   prometheus.Counter
	Transitions       *prometheus.CounterVec
	Webhooks          *prometheus.CounterVec
	GatewayCalls      *prometheus.CounterVec
	SweptOrders       prometheus.Counter
	SweepFailures     prometheus.Counter
	OutboxPublished   *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"route", "method", "status"}),
		LatencyMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"route"}),
		OrdersPlaced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_placed_total",
			Help:      "Orders committed, by payment method.",
		}, []string{"method"}),
		IdempotentReplays: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "idempotent_replays_total",
			Help:      "Checkout requests answered from an existing idempotency record.",
		}),
		StockRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_rejections_total",
			Help:      "Checkouts rolled back because a reservation guard failed.",
		}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_transitions_total",
			Help:      "Applied order status transitions.",
		}, []string{"from", "to"}),
		Webhooks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_webhooks_total",
			Help:      "Inbound payment webhooks by provider and result.",
		}, []string{"provider", "result"}),
		GatewayCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_gateway_calls_total",
			Help:      "Outbound payment provider calls.",
		}, []string{"provider", "op", "result"}),
		SweptOrders: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expired_orders_total",
			Help:      "Pending orders expired by the sweeper.",
		}),
		SweepFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expiry_failures_total",
			Help:      "Orders the sweeper failed to expire.",
		}),
		OutboxPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_events_total",
			Help:      "Outbox events relayed, by result.",
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Requests, m.LatencyMS,
		m.OrdersPlaced, m.IdempotentReplays, m.StockRejections, m.Transitions,
		m.Webhooks, m.GatewayCalls, m.SweptOrders, m.SweepFailures, m.OutboxPublished,
	)
	return m
}

// Registry exposes the underlying registry (tests gather from it).
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Nil-safe recorders. A nil *Metrics records nothing.

func (m *Metrics) OrderPlaced(method string) {
	if m != nil {
		m.OrdersPlaced.WithLabelValues(method).Inc()
	}
}

func (m *Metrics) Replayed() {
	if m != nil {
		m.IdempotentReplays.Inc()
	}
}

func (m *Metrics) StockRejected() {
	if m != nil {
		m.StockRejections.Inc()
	}
}

func (m *Metrics) Transitioned(from, to string) {
	if m != nil {
		m.Transitions.WithLabelValues(from, to).Inc()
	}
}

func (m *Metrics) Webhook(provider, result string) {
	if m != nil {
		m.Webhooks.WithLabelValues(provider, result).Inc()
	}
}

func (m *Metrics) GatewayCall(provider, op string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.GatewayCalls.WithLabelValues(provider, op, result).Inc()
}

func (m *Metrics) Swept(expired, failed int) {
	if m != nil {
		m.SweptOrders.Add(float64(expired))
		m.SweepFailures.Add(float64(failed))
	}
}

func (m *Metrics) OutboxRelayed(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.OutboxPublished.WithLabelValues("published").Inc()
		return
	}
	m.OutboxPublished.WithLabelValues("failed").Inc()
}
