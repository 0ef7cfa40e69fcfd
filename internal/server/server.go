// Package server hosts the service under test: the attendance endpoints,
// the stress test control routes and the request interceptor that feeds
// the sample collector.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/netmark/loadlab/internal/attendance"
	"github.com/netmark/loadlab/internal/control"
	"github.com/netmark/loadlab/internal/metrics"
	"github.com/netmark/loadlab/internal/output"
)

const (
	ServiceName     = "loadlab-server"
	shutdownTimeout = 10 * time.Second
)

// Options configures a Server.
type Options struct {
	Addr       string
	DataDir    string
	ReportFile string // empty disables the CSV log
	Logger     *zap.Logger
	// TracerProvider enables a server span per request when set.
	TracerProvider trace.TracerProvider
}

// Server wires the HTTP surface together.
type Server struct {
	opts       Options
	engine     *gin.Engine
	controller *control.Controller
	sink       *output.CSVSink
	metrics    *Metrics
	logger     *zap.Logger
}

// New builds a server with a fresh, inactive collector.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		opts:       opts,
		controller: control.New(metrics.NewCollector()),
		metrics:    NewMetrics(),
		logger:     logger,
	}
	if opts.ReportFile != "" {
		s.sink = output.NewCSVSink(opts.ReportFile)
	}
	s.engine = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()

	// The interceptor wraps recovery so panics are recorded as 500 samples.
	r.Use(Interceptor(s.controller.Collector(), StartPath, StopPath, MetricsPath, ReportPath, PrometheusPath))
	r.Use(gin.Recovery())
	if s.opts.TracerProvider != nil {
		r.Use(otelgin.Middleware(ServiceName, otelgin.WithTracerProvider(s.opts.TracerProvider)))
	}
	r.Use(AccessLog(s.logger))
	r.Use(s.metrics.Middleware())

	r.POST(StartPath, s.startTest)
	r.POST(StopPath, s.stopTest)
	r.GET(MetricsPath, s.liveMetrics)
	r.GET(ReportPath, s.report)
	r.GET(PrometheusPath, s.metrics.Handler())

	attendance.NewHandler(attendance.NewStore(s.opts.DataDir), s.logger).Register(r)

	return r
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Controller returns the test controller driving the collector.
func (s *Server) Controller() *control.Controller {
	return s.controller
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Server listening", zap.String("addr", s.opts.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
