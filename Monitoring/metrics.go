package Monitoring

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	ResponseTimeHistogram = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_response_time_seconds",
			Help:    "Histogram of response times",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	WebhookDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_deliveries_total",
			Help: "Outbound webhook delivery attempts by result",
		},
		[]string{"event", "result"},
	)

	WebhookQueueOverflow = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "webhook_queue_overflow_total",
			Help: "Webhook jobs delivered outside the worker pool because the queue was full",
		},
	)

	CommissionCalculations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "commission_calculations_total",
			Help: "Commission engine runs by source and result",
		},
		[]string{"source", "result"},
	)

	EarningsDriftCorrections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "affiliate_earnings_drift_corrections_total",
			Help: "Affiliates whose stored earnings were corrected by reconciliation",
		},
	)
)

func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
