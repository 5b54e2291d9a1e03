package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_api_http_requests_total",
			Help: "HTTP requests by route, status code and calling client",
		},
		[]string{"method", "route", "code", "client"},
	)

	httpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "order_api_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{.005, .01, .025, .05, .1, .2, .4, .8, 1.6, 5},
		},
		[]string{"method", "route"},
	)

	httpInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "order_api_http_in_flight",
		Help: "Requests currently being served",
	})

	webhookRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_api_webhook_rejected_total",
			Help: "Gateway webhooks refused before reaching the handler",
		},
		[]string{"reason"},
	)
)

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		httpInFlight.Inc()
		start := time.Now()
		c.Next()
		httpInFlight.Dec()

		// unmatched paths share one label so scanners cannot blow up cardinality
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		client := c.GetString(ClientIDKey)
		if client == "" {
			client = "anonymous"
		}
		httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), client).Inc()
		httpDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
