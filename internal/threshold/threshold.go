// Package threshold turns "metric:aggregate op value" assertions into
// pass/fail results over a reduced report.
//
// An assertion may be scoped to one endpoint by naming it in braces after
// the aggregate:
//
//	response_time:p95 < 500
//	response_time:p99{/students} <= 800
//	errors:rate{/attendance_stats} < 0.01
//	requests:rate > 100
package threshold

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/netmark/loadlab/internal/metrics"
)

// Threshold is one parsed assertion.
type Threshold struct {
	Metric    string
	Aggregate string
	Endpoint  string // empty for the whole run
	Operator  string
	Value     float64
	Raw       string
}

// Result is the outcome of evaluating a Threshold.
type Result struct {
	Threshold Threshold `json:"-" yaml:"-"`
	Raw       string    `json:"threshold" yaml:"threshold"`
	Actual    float64   `json:"actual" yaml:"actual"`
	Pass      bool      `json:"pass" yaml:"pass"`
	Message   string    `json:"message" yaml:"message"`
}

// scope is the slice of a report a threshold reads from.
type scope struct {
	summary metrics.Summary
	total   int64
	failed  int64
	rps     float64
}

type extractor func(scope) float64

func latency(pick func(metrics.Summary) float64) extractor {
	return func(s scope) float64 { return pick(s.summary) }
}

var registry = map[string]map[string]extractor{
	"response_time": {
		"p50":     latency(func(s metrics.Summary) float64 { return metrics.Ms(s.Median) }),
		"median":  latency(func(s metrics.Summary) float64 { return metrics.Ms(s.Median) }),
		"mean":    latency(func(s metrics.Summary) float64 { return metrics.Ms(s.Mean) }),
		"p95":     latency(func(s metrics.Summary) float64 { return metrics.Ms(s.P95) }),
		"p99":     latency(func(s metrics.Summary) float64 { return metrics.Ms(s.P99) }),
		"min":     latency(func(s metrics.Summary) float64 { return metrics.Ms(s.Min) }),
		"max":     latency(func(s metrics.Summary) float64 { return metrics.Ms(s.Max) }),
		"std_dev": latency(func(s metrics.Summary) float64 { return metrics.Ms(s.StdDev) }),
	},
	"errors": {
		"count": func(s scope) float64 { return float64(s.failed) },
		"rate": func(s scope) float64 {
			if s.total == 0 {
				return 0
			}
			return float64(s.failed) / float64(s.total)
		},
	},
	"requests": {
		"count": func(s scope) float64 { return float64(s.total) },
		"rate":  func(s scope) float64 { return s.rps },
	},
}

var comparisons = map[string]func(actual, expected float64) bool{
	"<":  func(a, e float64) bool { return a < e },
	"<=": func(a, e float64) bool { return a < e || nearlyEqual(a, e) },
	">":  func(a, e float64) bool { return a > e },
	">=": func(a, e float64) bool { return a > e || nearlyEqual(a, e) },
	"==": nearlyEqual,
}

func nearlyEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

var pattern = regexp.MustCompile(`^([a-z_]+):([a-z0-9_]+)(?:\{(/[^}]*)\})?\s*([<>=!]+)\s*(\S+)$`)

// Parse parses a single assertion.
func Parse(s string) (Threshold, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Threshold{}, fmt.Errorf("empty threshold string")
	}

	m := pattern.FindStringSubmatch(s)
	if m == nil {
		return Threshold{}, fmt.Errorf("invalid threshold format: %q (expected metric:aggregate[{/endpoint}] operator value, e.g. 'response_time:p95 < 500')", s)
	}
	metric, aggregate, endpoint, operator, raw := m[1], m[2], m[3], m[4], m[5]

	aggregates, ok := registry[metric]
	if !ok {
		return Threshold{}, fmt.Errorf("unsupported metric %q (supported: %s)", metric, strings.Join(keys(registry), ", "))
	}
	if _, ok := aggregates[aggregate]; !ok {
		return Threshold{}, fmt.Errorf("unsupported aggregate %q for %s (supported: %s)", aggregate, metric, strings.Join(keys(aggregates), ", "))
	}
	if _, ok := comparisons[operator]; !ok {
		return Threshold{}, fmt.Errorf("unsupported operator %q (supported: <, <=, >, >=, ==)", operator)
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return Threshold{}, fmt.Errorf("invalid threshold value %q", raw)
	}

	return Threshold{
		Metric:    metric,
		Aggregate: aggregate,
		Endpoint:  endpoint,
		Operator:  operator,
		Value:     value,
		Raw:       s,
	}, nil
}

// ParseMultiple parses every assertion and reports all failures at once.
func ParseMultiple(raw []string) ([]Threshold, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	out := make([]Threshold, 0, len(raw))
	var errs []string
	for i, s := range raw {
		t, err := Parse(s)
		if err != nil {
			errs = append(errs, fmt.Sprintf("threshold[%d]: %v", i, err))
			continue
		}
		out = append(out, t)
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("threshold parsing errors: %s", strings.Join(errs, "; "))
	}
	return out, nil
}

func keys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Evaluator checks a fixed set of thresholds against reports.
type Evaluator struct {
	thresholds []Threshold
}

// NewEvaluator creates an evaluator for thresholds.
func NewEvaluator(thresholds []Threshold) *Evaluator {
	return &Evaluator{thresholds: thresholds}
}

// Evaluate returns one result per threshold, in order, or nil when there
// are none.
func (e *Evaluator) Evaluate(report metrics.Report) []Result {
	if len(e.thresholds) == 0 {
		return nil
	}
	results := make([]Result, 0, len(e.thresholds))
	for _, t := range e.thresholds {
		results = append(results, evaluate(t, report))
	}
	return results
}

// AllPassed reports whether every result passed.
func AllPassed(results []Result) bool {
	for _, r := range results {
		if !r.Pass {
			return false
		}
	}
	return true
}

func evaluate(t Threshold, report metrics.Report) Result {
	actual, err := Measure(t, report)
	if err != nil {
		return Result{Threshold: t, Raw: t.Raw, Message: fmt.Sprintf("FAIL %s: %v", t.Raw, err)}
	}

	pass := comparisons[t.Operator](actual, t.Value)
	verdict := "PASS"
	if !pass {
		verdict = "FAIL"
	}
	return Result{
		Threshold: t,
		Raw:       t.Raw,
		Actual:    actual,
		Pass:      pass,
		Message:   fmt.Sprintf("%s %s: %.2f %s %.2f", verdict, t.Raw, actual, t.Operator, t.Value),
	}
}

// Measure extracts the value t asserts on from report.
func Measure(t Threshold, report metrics.Report) (float64, error) {
	extract, ok := registry[t.Metric][t.Aggregate]
	if !ok {
		return 0, fmt.Errorf("unsupported metric %s:%s", t.Metric, t.Aggregate)
	}
	s, err := scopeOf(report, t.Endpoint)
	if err != nil {
		return 0, err
	}
	return extract(s), nil
}

func scopeOf(report metrics.Report, endpoint string) (scope, error) {
	if endpoint == "" {
		return scope{
			summary: report.Overall,
			total:   report.TotalRequests,
			failed:  report.FailedRequests,
			rps:     report.RequestsPerSec,
		}, nil
	}
	ep, ok := report.Endpoint(endpoint)
	if !ok {
		return scope{}, fmt.Errorf("no samples for endpoint %s", endpoint)
	}
	return scope{
		summary: ep.Summary,
		total:   int64(ep.Summary.Count),
		failed:  ep.Failed,
		rps:     ep.RequestsPerSec,
	}, nil
}
