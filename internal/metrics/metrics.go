// Package metrics exposes Prometheus counters for the HTTP surface and
// domain events, adapted from the teacher's registry/handler/metrics.go.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	agentsTotal = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "moltcities_agents_total",
		Help: "Total number of registered agents.",
	}, []string{"status"})

	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "moltcities_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "moltcities_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	jobsTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "moltcities_job_transitions_total",
		Help: "Total job status transitions by resulting status.",
	}, []string{"status"})

	escrowWebhooksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "moltcities_escrow_webhooks_total",
		Help: "Total escrow webhook events ingested, by whether they matched a known job.",
	}, []string{"result"})

	sweeperRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "moltcities_sweeper_runs_total",
		Help: "Total reconciliation sweeper ticks, by outcome.",
	}, []string{"result"})
)

// Middleware returns Gin middleware recording per-request counters.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		requestsTotal.WithLabelValues(method, path, status).Inc()
		requestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// Handler returns a Gin handler serving the Prometheus exposition format.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// SetAgentsGauge sets the registered-agent count gauge.
func SetAgentsGauge(count float64) {
	agentsTotal.WithLabelValues("registered").Set(count)
}

// RecordJobTransition records a job moving to status.
func RecordJobTransition(status string) {
	jobsTransitionsTotal.WithLabelValues(status).Inc()
}

// RecordEscrowWebhook records an inbound webhook event, tagged by whether it
// matched a known escrow address ("matched") or not ("unmatched").
func RecordEscrowWebhook(matched bool) {
	if matched {
		escrowWebhooksTotal.WithLabelValues("matched").Inc()
	} else {
		escrowWebhooksTotal.WithLabelValues("unmatched").Inc()
	}
}

// RecordSweeperRun records a sweeper tick outcome ("ok" or "error").
func RecordSweeperRun(success bool) {
	if success {
		sweeperRunsTotal.WithLabelValues("ok").Inc()
	} else {
		sweeperRunsTotal.WithLabelValues("error").Inc()
	}
}
