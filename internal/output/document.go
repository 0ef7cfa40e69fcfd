package output

import (
	"time"

	"github.com/netmark/loadlab/internal/metrics"
)

// TimestampLayout is the timestamp format shared by report documents and
// CSV rows.
const TimestampLayout = "2006-01-02T15:04:05.000000"

// FormatTimestamp renders t in TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// EndpointMetrics is the per-endpoint entry of the live metrics document.
type EndpointMetrics struct {
	Count    int     `json:"count"`
	MeanMs   float64 `json:"mean_ms"`
	MedianMs float64 `json:"median_ms"`
	MinMs    float64 `json:"min_ms"`
	MaxMs    float64 `json:"max_ms"`
	P95Ms    float64 `json:"p95_ms"`
	P99Ms    float64 `json:"p99_ms"`
}

// MetricsDocument is the body served by the live metrics endpoint.
type MetricsDocument struct {
	RunID           string                     `json:"run_id,omitempty"`
	ConcurrentUsers int                        `json:"concurrent_users"`
	TotalRequests   int64                      `json:"total_requests"`
	FailedRequests  int64                      `json:"failed_requests"`
	SuccessRate     float64                    `json:"success_rate"`
	TestActive      bool                       `json:"test_active"`
	ElapsedTime     float64                    `json:"elapsed_time"`
	EndpointMetrics map[string]EndpointMetrics `json:"endpoint_metrics"`
}

// NewMetricsDocument builds the live metrics view of snap. A run without
// samples yields empty endpoint metrics rather than an error.
func NewMetricsDocument(snap metrics.Snapshot) MetricsDocument {
	doc := MetricsDocument{
		RunID:           snap.RunID,
		ConcurrentUsers: snap.ConcurrentTarget,
		TotalRequests:   snap.Total,
		FailedRequests:  snap.Failed,
		SuccessRate:     snap.SuccessRate(),
		TestActive:      snap.Active,
		ElapsedTime:     snap.Elapsed.Seconds(),
		EndpointMetrics: make(map[string]EndpointMetrics, len(snap.Endpoints)),
	}
	for _, name := range snap.Endpoints {
		s := metrics.Summarize(snap.Durations(name))
		if s.Empty() {
			continue
		}
		doc.EndpointMetrics[name] = EndpointMetrics{
			Count:    s.Count,
			MeanMs:   metrics.Ms(s.Mean),
			MedianMs: metrics.Ms(s.Median),
			MinMs:    metrics.Ms(s.Min),
			MaxMs:    metrics.Ms(s.Max),
			P95Ms:    metrics.Ms(s.P95),
			P99Ms:    metrics.Ms(s.P99),
		}
	}
	return doc
}

// TestSummary is the run-wide section of a report document.
type TestSummary struct {
	RunID           string  `json:"run_id"`
	ConcurrentUsers int     `json:"concurrent_users"`
	TotalRequests   int64   `json:"total_requests"`
	FailedRequests  int64   `json:"failed_requests"`
	SuccessRate     float64 `json:"success_rate"`
	ElapsedTime     float64 `json:"elapsed_time"`
	TestActive      bool    `json:"test_active"`
}

// EndpointAnalysis is the per-endpoint section of a report document.
type EndpointAnalysis struct {
	TotalRequests  int     `json:"total_requests"`
	FailedRequests int64   `json:"failed_requests"`
	MeanMs         float64 `json:"mean_response_time_ms"`
	MedianMs       float64 `json:"median_response_time_ms"`
	StdDevMs       float64 `json:"std_dev_ms"`
	MinMs          float64 `json:"min_response_time_ms"`
	MaxMs          float64 `json:"max_response_time_ms"`
	P95Ms          float64 `json:"p95_response_time_ms"`
	P99Ms          float64 `json:"p99_response_time_ms"`
	ThroughputRPS  float64 `json:"throughput_rps"`
	ErrorRate      float64 `json:"error_rate"`
}

// ReportDocument is the structured form of a reduced report.
type ReportDocument struct {
	Timestamp        string                      `json:"timestamp"`
	TestSummary      TestSummary                 `json:"test_summary"`
	EndpointAnalysis map[string]EndpointAnalysis `json:"endpoint_analysis"`
}

// NewReportDocument converts report into its structured form.
func NewReportDocument(report metrics.Report) ReportDocument {
	doc := ReportDocument{
		Timestamp: FormatTimestamp(report.GeneratedAt),
		TestSummary: TestSummary{
			RunID:           report.RunID,
			ConcurrentUsers: report.ConcurrentUsers,
			TotalRequests:   report.TotalRequests,
			FailedRequests:  report.FailedRequests,
			SuccessRate:     report.SuccessRate,
			ElapsedTime:     report.Elapsed.Seconds(),
			TestActive:      report.Active,
		},
		EndpointAnalysis: make(map[string]EndpointAnalysis, len(report.Endpoints)),
	}
	for _, ep := range report.Endpoints {
		doc.EndpointAnalysis[ep.Endpoint] = analysisOf(ep)
	}
	return doc
}

func analysisOf(ep metrics.EndpointReport) EndpointAnalysis {
	s := ep.Summary
	return EndpointAnalysis{
		TotalRequests:  s.Count,
		FailedRequests: ep.Failed,
		MeanMs:         metrics.Ms(s.Mean),
		MedianMs:       metrics.Ms(s.Median),
		StdDevMs:       metrics.Ms(s.StdDev),
		MinMs:          metrics.Ms(s.Min),
		MaxMs:          metrics.Ms(s.Max),
		P95Ms:          metrics.Ms(s.P95),
		P99Ms:          metrics.Ms(s.P99),
		ThroughputRPS:  ep.RequestsPerSec,
		ErrorRate:      ep.ErrorRate,
	}
}
