package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/netmark/loadlab/internal/metrics"
	"github.com/netmark/loadlab/internal/threshold"
)

// MaxPersistedErrors caps the error records written to a results file.
const MaxPersistedErrors = 100

// TestConfig echoes the generator settings into the results file.
type TestConfig struct {
	BaseURL         string  `json:"base_url" yaml:"base_url"`
	Endpoint        string  `json:"endpoint" yaml:"endpoint"`
	Method          string  `json:"method" yaml:"method"`
	ConcurrentUsers int     `json:"concurrent_users" yaml:"concurrent_users"`
	RequestsPerUser int     `json:"requests_per_user" yaml:"requests_per_user"`
	DelaySeconds    float64 `json:"delay_seconds" yaml:"delay_seconds"`
	ServerTracking  bool    `json:"server_tracking" yaml:"server_tracking"`
}

// ResultStats is the client-side statistics block.
type ResultStats struct {
	TotalRequests      int64   `json:"total_requests" yaml:"total_requests"`
	SuccessfulRequests int64   `json:"successful_requests" yaml:"successful_requests"`
	FailedRequests     int64   `json:"failed_requests" yaml:"failed_requests"`
	SuccessRate        float64 `json:"success_rate" yaml:"success_rate"`
	TotalTimeSeconds   float64 `json:"total_time_seconds" yaml:"total_time_seconds"`
	ThroughputRPS      float64 `json:"throughput_rps" yaml:"throughput_rps"`
	MeanMs             float64 `json:"mean_response_time_ms" yaml:"mean_response_time_ms"`
	MedianMs           float64 `json:"median_response_time_ms" yaml:"median_response_time_ms"`
	MinMs              float64 `json:"min_response_time_ms" yaml:"min_response_time_ms"`
	MaxMs              float64 `json:"max_response_time_ms" yaml:"max_response_time_ms"`
	StdDevMs           float64 `json:"std_dev_ms" yaml:"std_dev_ms"`
	P95Ms              float64 `json:"p95_response_time_ms" yaml:"p95_response_time_ms"`
	P99Ms              float64 `json:"p99_response_time_ms" yaml:"p99_response_time_ms"`
}

// Results is the structured results file of one generator run.
type Results struct {
	RunID           string                 `json:"run_id" yaml:"run_id"`
	Timestamp       string                 `json:"timestamp" yaml:"timestamp"`
	TestConfig      TestConfig             `json:"test_config" yaml:"test_config"`
	Results         ResultStats            `json:"results" yaml:"results"`
	StatusCodes     []metrics.StatusBucket `json:"status_codes,omitempty" yaml:"status_codes,omitempty"`
	ErrorKinds      map[string]int64       `json:"error_kinds,omitempty" yaml:"error_kinds,omitempty"`
	Errors          []metrics.ErrorRecord  `json:"errors" yaml:"errors"`
	ErrorsTotal     int64                  `json:"errors_total" yaml:"errors_total"`
	ErrorsTruncated bool                   `json:"errors_truncated" yaml:"errors_truncated"`
	Thresholds      []threshold.Result     `json:"thresholds,omitempty" yaml:"thresholds,omitempty"`
}

// NewResults assembles the results document for a finished run.
func NewResults(cfg TestConfig, report metrics.Report, thresholds []threshold.Result) Results {
	o := report.Overall
	errs := report.Errors
	if len(errs) > MaxPersistedErrors {
		errs = errs[:MaxPersistedErrors]
	}
	if errs == nil {
		errs = []metrics.ErrorRecord{}
	}
	return Results{
		RunID:      report.RunID,
		Timestamp:  FormatTimestamp(report.GeneratedAt),
		TestConfig: cfg,
		Results: ResultStats{
			TotalRequests:      report.TotalRequests,
			SuccessfulRequests: report.TotalRequests - report.FailedRequests,
			FailedRequests:     report.FailedRequests,
			SuccessRate:        report.SuccessRate,
			TotalTimeSeconds:   report.Elapsed.Seconds(),
			ThroughputRPS:      report.RequestsPerSec,
			MeanMs:             metrics.Ms(o.Mean),
			MedianMs:           metrics.Ms(o.Median),
			MinMs:              metrics.Ms(o.Min),
			MaxMs:              metrics.Ms(o.Max),
			StdDevMs:           metrics.Ms(o.StdDev),
			P95Ms:              metrics.Ms(o.P95),
			P99Ms:              metrics.Ms(o.P99),
		},
		StatusCodes:     report.StatusCodes,
		ErrorKinds:      report.ErrorKinds,
		Errors:          errs,
		ErrorsTotal:     report.ErrorsTotal,
		ErrorsTruncated: report.ErrorsTotal > int64(len(errs)),
		Thresholds:      thresholds,
	}
}

// IsYAMLPath reports whether path names a YAML file.
func IsYAMLPath(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// EncodeResults writes res to w as indented JSON, or YAML when asYAML is set.
func EncodeResults(w io.Writer, res Results, asYAML bool) error {
	if asYAML {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(res); err != nil {
			return err
		}
		return enc.Close()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

// WriteResults persists res to path, choosing the format from the extension.
func WriteResults(path string, res Results) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create results directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create results file: %w", err)
	}
	if err := EncodeResults(f, res, IsYAMLPath(path)); err != nil {
		f.Close()
		return fmt.Errorf("encode results: %w", err)
	}
	return f.Close()
}
