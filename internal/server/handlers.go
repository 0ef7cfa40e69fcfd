package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/netmark/loadlab/internal/control"
	"github.com/netmark/loadlab/internal/metrics"
	"github.com/netmark/loadlab/internal/output"
)

const (
	StartPath      = "/stress_test/start"
	StopPath       = "/stress_test/stop"
	MetricsPath    = "/scalability_metrics"
	ReportPath     = "/scalability_report"
	PrometheusPath = "/prometheus"

	defaultConcurrentUsers = 10
)

type startRequest struct {
	ConcurrentUsers *int `json:"concurrentUsers"`
}

func (s *Server) startTest(ctx *gin.Context) {
	var req startRequest
	if ctx.Request.Body != nil && ctx.Request.ContentLength != 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "concurrentUsers must be an integer: " + err.Error()})
			return
		}
	}
	users := defaultConcurrentUsers
	if req.ConcurrentUsers != nil {
		users = *req.ConcurrentUsers
	}

	st, err := s.controller.Start(users)
	if err != nil {
		var vErr *control.ValidationError
		if errors.As(err, &vErr) {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": vErr.Error()})
			return
		}
		_ = ctx.Error(err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Error starting stress test: " + err.Error()})
		return
	}

	s.metrics.runsStarted.Inc()
	s.metrics.setActive(true)
	s.logger.Info("Stress test tracking started",
		zap.String("run_id", st.RunID),
		zap.Int("concurrent_users", st.ConcurrentUsers),
	)

	ctx.JSON(http.StatusOK, gin.H{
		"message":         "Stress test tracking started",
		"concurrentUsers": st.ConcurrentUsers,
		"status":          "tracking",
		"run_id":          st.RunID,
		"instructions":    "Send requests to any endpoint. Metrics will be tracked automatically.",
	})
}

func (s *Server) stopTest(ctx *gin.Context) {
	st := s.controller.Stop()
	s.metrics.setActive(false)
	s.logger.Info("Stress test tracking stopped", zap.String("run_id", st.RunID))

	ctx.JSON(http.StatusOK, gin.H{
		"message":           "Stress test tracking stopped",
		"status":            "stopped",
		"run_id":            st.RunID,
		"metrics_available": MetricsPath,
		"report_available":  ReportPath,
	})
}

func (s *Server) liveMetrics(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, output.NewMetricsDocument(s.controller.Collector().Snapshot()))
}

func (s *Server) report(ctx *gin.Context) {
	report, err := metrics.Reduce(s.controller.Collector().Snapshot())
	if errors.Is(err, metrics.ErrNoData) {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "No metrics collected yet. Run stress test first."})
		return
	}
	if err != nil {
		_ = ctx.Error(err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Error generating report: " + err.Error()})
		return
	}

	if s.sink != nil {
		n, err := s.sink.Append(ctx.Request.Context(), report)
		if err != nil {
			s.logger.Warn("Error saving scalability report", zap.String("file", s.sink.Path()), zap.Error(err))
		} else {
			s.metrics.reportsWritten.Add(float64(n))
			s.logger.Info("Scalability report saved", zap.String("file", s.sink.Path()), zap.Int("rows", n))
		}
	}

	ctx.JSON(http.StatusOK, output.NewReportDocument(report))
}
