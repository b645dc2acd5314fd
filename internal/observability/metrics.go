package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "console_http_requests_total",
			Help: "Total number of HTTP requests processed by the admin console gateway.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "console_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	wsActiveConnections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "console_ws_active_connections",
			Help: "Number of active console browser websocket connections.",
		},
		[]string{"kind"},
	)
	wsEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "console_ws_events_total",
			Help: "Total number of console websocket events.",
		},
		[]string{"kind", "event"},
	)
	channelEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backend_channel_events_total",
			Help: "Total number of events on the backend duplex channel.",
		},
		[]string{"direction", "event"},
	)
	channelReconnectsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "backend_channel_reconnects_total",
			Help: "Total number of successful backend channel reconnects.",
		},
	)
	syncReconciliationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_sync_reconciliations_total",
			Help: "Total number of sync-client reconciliation outcomes.",
		},
		[]string{"outcome"},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "console_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		wsActiveConnections,
		wsEventsTotal,
		channelEventsTotal,
		channelReconnectsTotal,
		syncReconciliationsTotal,
		amqpPublishErrorsTotal,
	)
}

func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func IncWSActive(kind string) {
	wsActiveConnections.WithLabelValues(kind).Inc()
}

func DecWSActive(kind string) {
	wsActiveConnections.WithLabelValues(kind).Dec()
}

func IncWSEvent(kind, event string) {
	wsEventsTotal.WithLabelValues(kind, event).Inc()
}

func IncChannelEvent(direction, event string) {
	channelEventsTotal.WithLabelValues(direction, event).Inc()
}

func IncChannelReconnect() {
	channelReconnectsTotal.Inc()
}

func IncSyncReconciliation(outcome string) {
	syncReconciliationsTotal.WithLabelValues(outcome).Inc()
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}
