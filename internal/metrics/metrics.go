// Package metrics holds the Prometheus collectors exported by LingoLoop.
package metrics

import (
	"strconv"
	"sync"
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

	MessagesProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whatsapp_messages_total",
			Help: "Inbound WhatsApp messages by routed intent",
		},
		[]string{"intent"},
	)

	MessagesDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "whatsapp_messages_dropped_total",
			Help: "Inbound messages dropped because the dispatch queue was full or the sender was rate limited",
		},
	)

	PlacementTestsCompleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "placement_tests_completed_total",
			Help: "Completed placement tests by recommended level",
		},
		[]string{"level"},
	)

	CurriculumExercises = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "curriculum_exercises_total",
			Help: "Generated curriculum exercises by judge outcome",
		},
		[]string{"result"},
	)

	LLMRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_requests_total",
			Help: "LLM provider calls by purpose and outcome",
		},
		[]string{"provider", "purpose", "outcome"},
	)

	LLMRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_request_duration_seconds",
			Help:    "Latency of a single LLM provider call",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"provider", "purpose"},
	)

	LLMTokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_tokens_total",
			Help: "Tokens consumed by LLM calls",
		},
		[]string{"provider", "direction"},
	)
)

var registerOnce sync.Once

// Init registers all collectors with the default registry. Safe to call
// more than once.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			RequestCounter,
			RequestDuration,
			MessagesProcessed,
			MessagesDropped,
			PlacementTestsCompleted,
			CurriculumExercises,
			LLMRequests,
			LLMRequestDuration,
			LLMTokens,
		)
	})
}

// Middleware records request counts and latencies per route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		RequestCounter.WithLabelValues(c.Request.Method, endpoint, strconv.Itoa(c.Writer.Status())).Inc()
		RequestDuration.WithLabelValues(c.Request.Method, endpoint).Observe(time.Since(start).Seconds())
	}
}

// Handler exposes the default registry.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
