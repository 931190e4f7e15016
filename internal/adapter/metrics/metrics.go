package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cropchain"

type ServerMetrics struct {
	Requests     *prometheus.CounterVec
	LatencyMS    *prometheus.HistogramVec
	Orders       *prometheus.CounterVec
	ChatSessions prometheus.Gauge
	ChatMessages prometheus.Counter
	gatherer     prometheus.Gatherer
}

// NewServerMetrics registers the service collectors on reg. Passing a fresh
// prometheus.NewRegistry keeps tests isolated from the default registry.
func NewServerMetrics(reg *prometheus.Registry) *ServerMetrics {
	m := &ServerMetrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"route", "status"}),
		LatencyMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"route"}),
		Orders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_total",
			Help:      "Order placement outcomes by result.",
		}, []string{"result"}),
		ChatSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "chat_connections_active",
			Help:      "Open chat sessions.",
		}),
		ChatMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_messages_total",
			Help:      "Chat messages appended.",
		}),
		gatherer: reg,
	}

	reg.MustRegister(m.Requests, m.LatencyMS, m.Orders, m.ChatSessions, m.ChatMessages)
	return m
}

func (m *ServerMetrics) ObserveRequest(route string, status int, elapsed time.Duration) {
	m.Requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.LatencyMS.WithLabelValues(route).Observe(float64(elapsed.Microseconds()) / 1000)
}

func (m *ServerMetrics) ObserveOrder(result string) {
	m.Orders.WithLabelValues(result).Inc()
}

func (m *ServerMetrics) SessionOpened()   { m.ChatSessions.Inc() }
func (m *ServerMetrics) SessionClosed()   { m.ChatSessions.Dec() }
func (m *ServerMetrics) MessageAppended() { m.ChatMessages.Inc() }

func (m *ServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
