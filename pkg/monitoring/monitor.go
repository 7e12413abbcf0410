package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	// 业务指标
	TurnsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tutor_turns_processed_total",
			Help: "Total number of chat turns processed",
		},
		[]string{"session_type"},
	)

	DegradedReplies = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tutor_degraded_replies_total",
			Help: "Total number of degraded (fallback) tutor replies",
		},
	)

	ReportsGenerated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tutor_reports_generated_total",
			Help: "Total number of progress reports generated",
		},
	)
)

func Init() {
	prometheus.MustRegister(RequestCounter)
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(TurnsProcessed)
	prometheus.MustRegister(DegradedReplies)
	prometheus.MustRegister(ReportsGenerated)
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		RequestCounter.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
