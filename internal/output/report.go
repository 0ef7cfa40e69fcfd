package output

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/netmark/loadlab/internal/metrics"
	"github.com/netmark/loadlab/internal/threshold"
)

// MaxPrintedErrors caps the error records listed in the summary.
const MaxPrintedErrors = 5

var rule = strings.Repeat("=", 60)

// SummaryLines renders the human-readable summary of a report, one line per
// element, so callers can route each line through their own logger.
func SummaryLines(report metrics.Report) []string {
	o := report.Overall
	lines := []string{
		rule,
		"LOAD TEST RESULTS",
		rule,
		fmt.Sprintf("Total Requests: %d", report.TotalRequests),
		fmt.Sprintf("Successful: %d", report.TotalRequests-report.FailedRequests),
		fmt.Sprintf("Failed: %d", report.FailedRequests),
		fmt.Sprintf("Success Rate: %.2f%%", report.SuccessRate*100),
		"",
		"Response Time Statistics:",
		fmt.Sprintf("  Mean: %.2f ms", metrics.Ms(o.Mean)),
		fmt.Sprintf("  Median: %.2f ms", metrics.Ms(o.Median)),
		fmt.Sprintf("  Min: %.2f ms", metrics.Ms(o.Min)),
		fmt.Sprintf("  Max: %.2f ms", metrics.Ms(o.Max)),
		fmt.Sprintf("  Std Dev: %.2f ms", metrics.Ms(o.StdDev)),
		fmt.Sprintf("  P95: %.2f ms", metrics.Ms(o.P95)),
		fmt.Sprintf("  P99: %.2f ms", metrics.Ms(o.P99)),
		"",
		fmt.Sprintf("Throughput: %.2f requests/second", report.RequestsPerSec),
		fmt.Sprintf("Total Time: %.2f seconds", report.Elapsed.Seconds()),
	}

	if len(report.ErrorKinds) > 0 {
		lines = append(lines, "", "Error Types:")
		kinds := make([]string, 0, len(report.ErrorKinds))
		for kind := range report.ErrorKinds {
			kinds = append(kinds, kind)
		}
		sort.Slice(kinds, func(i, j int) bool {
			if report.ErrorKinds[kinds[i]] == report.ErrorKinds[kinds[j]] {
				return kinds[i] < kinds[j]
			}
			return report.ErrorKinds[kinds[i]] > report.ErrorKinds[kinds[j]]
		})
		for _, kind := range kinds {
			lines = append(lines, fmt.Sprintf("  %s: %d", kind, report.ErrorKinds[kind]))
		}
	}

	if report.ErrorsTotal > 0 {
		lines = append(lines, "", fmt.Sprintf("Errors (%d):", report.ErrorsTotal))
		shown := report.Errors
		if len(shown) > MaxPrintedErrors {
			shown = shown[:MaxPrintedErrors]
		}
		for _, rec := range shown {
			lines = append(lines, "  - "+describeError(rec))
		}
		if rest := report.ErrorsTotal - int64(len(shown)); rest > 0 {
			lines = append(lines, fmt.Sprintf("  ... and %d more errors", rest))
		}
	}

	return append(lines, rule)
}

func describeError(rec metrics.ErrorRecord) string {
	reason := rec.Error
	if reason == "" {
		reason = fmt.Sprintf("HTTP %d", rec.Status)
	}
	if rec.RequestID != "" {
		return fmt.Sprintf("request %s: %s (%.2f ms)", rec.RequestID, reason, rec.ElapsedMs)
	}
	return fmt.Sprintf("%s: %s (%.2f ms)", rec.Endpoint, reason, rec.ElapsedMs)
}

// ThresholdLines renders threshold outcomes.
func ThresholdLines(results []threshold.Result) []string {
	if len(results) == 0 {
		return nil
	}
	lines := []string{"Thresholds:"}
	for _, r := range results {
		lines = append(lines, "  "+r.Message)
	}
	return lines
}

// PrintJSONReport writes the results document to w as JSON.
func PrintJSONReport(w io.Writer, res Results) error {
	return EncodeResults(w, res, false)
}
