package server

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of one server instance. Unlike
// the sample collector it counts every request, whether or not a run is
// active.
type Metrics struct {
	registry       *prometheus.Registry
	requests       *prometheus.CounterVec
	latency        *prometheus.HistogramVec
	testActive     prometheus.Gauge
	runsStarted    prometheus.Counter
	reportsWritten prometheus.Counter
}

// NewMetrics registers the server collectors on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "loadlab_http_requests_total",
			Help: "Number of HTTP requests by endpoint and status.",
		}, []string{"endpoint", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "loadlab_http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		testActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "loadlab_test_active",
			Help: "1 while a stress test run is being tracked.",
		}),
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "loadlab_runs_started_total",
			Help: "Number of stress test runs started.",
		}),
		reportsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "loadlab_report_rows_written_total",
			Help: "Number of rows appended to the scalability report log.",
		}),
	}
	m.registry.MustRegister(
		m.requests,
		m.latency,
		m.testActive,
		m.runsStarted,
		m.reportsWritten,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Middleware counts and times every request.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()

		ctx.Next()

		endpoint := EndpointOf(ctx)
		m.requests.WithLabelValues(endpoint, strconv.Itoa(ctx.Writer.Status())).Inc()
		m.latency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{DisableCompression: true})
	return gin.WrapH(h)
}

func (m *Metrics) setActive(active bool) {
	if active {
		m.testActive.Set(1)
		return
	}
	m.testActive.Set(0)
}
