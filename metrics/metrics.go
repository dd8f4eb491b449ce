package metrics

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
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	SessionsStarted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exam_sessions_started_total",
			Help: "Sessions moved from setup to active",
		},
		[]string{"mode"},
	)

	SessionsSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exam_sessions_submitted_total",
			Help: "Sessions moved to submitted, by trigger",
		},
		[]string{"mode", "trigger"},
	)

	SessionsHydrated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exam_sessions_hydrated_total",
			Help: "Progress record lookups on session open, by outcome",
		},
		[]string{"mode", "outcome"},
	)

	ResultSubmissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exam_result_submissions_total",
			Help: "Mock exam results sent to the result store",
		},
		[]string{"status"},
	)
)

func Init() {
	prometheus.MustRegister(
		RequestCounter,
		RequestDuration,
		SessionsStarted,
		SessionsSubmitted,
		SessionsHydrated,
		ResultSubmissions,
	)
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
