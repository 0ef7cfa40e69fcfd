package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/netmark/loadlab/internal/config"
	"github.com/netmark/loadlab/internal/httpclient"
	"github.com/netmark/loadlab/internal/logging"
	"github.com/netmark/loadlab/internal/metrics"
	"github.com/netmark/loadlab/internal/output"
	"github.com/netmark/loadlab/internal/runner"
	"github.com/netmark/loadlab/internal/threshold"
	"github.com/netmark/loadlab/internal/tracing"
)

const (
	progressInterval   = time.Second
	defaultLogDir      = "stress_test_logs"
	logFileTimeLayout  = "20060102_150405"
	startTimeLayout    = "2006-01-02T15:04:05.000000"
	tracerShutdownWait = 5 * time.Second
)

var errThresholdsFailed = errors.New("one or more thresholds failed")

var rule = strings.Repeat("=", 60)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cfg, err := config.NewLoader().Load(args)
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return nil
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	thresholds, err := threshold.ParseMultiple(cfg.Thresholds)
	if err != nil {
		return err
	}

	builder, err := httpclient.NewRequestBuilder(cfg)
	if err != nil {
		return err
	}

	startTime := time.Now()
	if cfg.LogFile == "" {
		cfg.LogFile = defaultLogFile(cfg.Users, startTime)
	}

	// JSON output owns stdout; human lines move to stderr.
	console := stdout
	if cfg.JSONOutput {
		console = stderr
	}
	runLog := logging.NewRunLog(console, cfg.LogLevel)
	defer saveRunLog(runLog, cfg.LogFile, stderr)

	provider, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), tracerShutdownWait)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			runLog.Warn("Could not flush traces: " + err.Error())
		}
	}()

	logBanner(runLog, cfg, startTime)

	var tracker *httpclient.TrackingClient
	if cfg.ServerTracking {
		tracker = httpclient.NewTrackingClient(cfg.BaseURL, cfg.TrackingTimeout)
		if st, err := tracker.Start(ctx, cfg.Users); err != nil {
			runLog.Warn("⚠️  Could not start server tracking: " + err.Error())
			tracker = nil
		} else {
			runLog.Info("✅ Server-side metrics tracking started", zap.String("run_id", st.RunID))
		}
	}

	collector := metrics.NewCollector()
	requester := &httpRequester{
		client:    httpclient.NewClient(cfg.Timeout),
		builder:   builder,
		collector: collector,
		tracer:    provider.Tracer(),
		propagate: provider.ShouldPropagate(),
	}
	var wrapped runner.Requester = requester
	if cfg.LogErrors {
		wrapped = runner.OnFailure(wrapped, failureReporter(runLog.Logger))
	}

	r := runner.New(runner.Options{
		Users:           cfg.Users,
		RequestsPerUser: cfg.RequestsPerUser,
		Delay:           cfg.Delay,
		RatePerSecond:   cfg.Rate,
		Requester:       wrapped,
	})

	collector.Reset(cfg.Users)
	stopProgress := func() {}
	if cfg.Progress {
		expected := int64(cfg.Users) * int64(cfg.RequestsPerUser)
		stopProgress = output.NewProgress(collector, expected, progressInterval, console).Start(ctx)
	}
	result := r.Run(ctx)
	collector.Freeze()
	stopProgress()

	if tracker != nil {
		if _, err := tracker.Stop(context.WithoutCancel(ctx)); err != nil {
			runLog.Warn("⚠️  Could not stop server tracking: " + err.Error())
		} else {
			runLog.Info("✅ Server-side metrics tracking stopped")
			runLog.Info("📊 View server metrics: " + tracker.URL("/scalability_metrics"))
			runLog.Info("📄 Generate report: " + tracker.URL("/scalability_report"))
		}
	}

	endTime := time.Now()
	runLog.Info("")
	runLog.Info("Test completed at: " + endTime.Format(startTimeLayout))
	runLog.Info(fmt.Sprintf("Total duration: %.2f seconds", endTime.Sub(startTime).Seconds()))
	runLog.Debug("Runner finished",
		zap.Int64("issued", result.Total),
		zap.Int64("errors", result.Errors),
		zap.Duration("duration", result.Duration),
	)

	report, err := metrics.Reduce(collector.Snapshot())
	if errors.Is(err, metrics.ErrNoData) {
		runLog.Error("No data collected!")
		runLog.Error("Test failed - no data collected")
		return nil
	}
	if err != nil {
		return err
	}

	results := threshold.NewEvaluator(thresholds).Evaluate(report)
	doc := output.NewResults(testConfig(cfg), report, results)

	if cfg.JSONOutput {
		if err := output.PrintJSONReport(stdout, doc); err != nil {
			return err
		}
	} else {
		for _, line := range output.SummaryLines(report) {
			runLog.Info(line)
		}
	}
	for _, line := range output.ThresholdLines(results) {
		runLog.Info(line)
	}

	if err := output.WriteResults(cfg.OutputFile, doc); err != nil {
		runLog.Warn(fmt.Sprintf("⚠️  Could not save results to %s: %v", cfg.OutputFile, err))
	} else {
		runLog.Info("✅ Results saved to " + cfg.OutputFile)
	}

	if cfg.ReportCSV != "" {
		sink := output.NewCSVSink(cfg.ReportCSV)
		if n, err := sink.Append(context.WithoutCancel(ctx), report); err != nil {
			runLog.Warn(fmt.Sprintf("⚠️  Could not append report to %s: %v", sink.Path(), err))
		} else {
			runLog.Info(fmt.Sprintf("✅ Appended %d report rows to %s", n, sink.Path()))
		}
	}

	if !threshold.AllPassed(results) {
		return errThresholdsFailed
	}
	return nil
}

func defaultLogFile(users int, at time.Time) string {
	return filepath.Join(defaultLogDir, fmt.Sprintf("load_test_%dusers_%s.log", users, at.Format(logFileTimeLayout)))
}

func logBanner(log *logging.RunLog, cfg *config.Config, start time.Time) {
	lines := []string{
		rule,
		"LOAD TEST STARTED",
		rule,
		"Base URL: " + cfg.BaseURL,
		"Endpoint: " + cfg.Endpoint,
		fmt.Sprintf("Concurrent Users: %d", cfg.Users),
		fmt.Sprintf("Requests per User: %d", cfg.RequestsPerUser),
		fmt.Sprintf("Total Requests: %d", cfg.Users*cfg.RequestsPerUser),
		"Start Time: " + start.Format(startTimeLayout),
		rule,
	}
	for _, line := range lines {
		log.Info(line)
	}
}

func saveRunLog(log *logging.RunLog, path string, stderr io.Writer) {
	if err := log.Save(path); err != nil {
		fmt.Fprintf(stderr, "⚠️  Could not save logs to file: %v\n", err)
		return
	}
	log.Info("✅ Test logs saved to " + path)
}

func testConfig(cfg *config.Config) output.TestConfig {
	return output.TestConfig{
		BaseURL:         cfg.BaseURL,
		Endpoint:        cfg.Endpoint,
		Method:          cfg.Method,
		ConcurrentUsers: cfg.Users,
		RequestsPerUser: cfg.RequestsPerUser,
		DelaySeconds:    cfg.Delay.Seconds(),
		ServerTracking:  cfg.ServerTracking,
	}
}

// failureReporter prints failed requests through the run log.
func failureReporter(log *zap.Logger) func(context.Context, error) {
	return func(ctx context.Context, err error) {
		if info, ok := runner.RequestInfoFrom(ctx); ok {
			log.Warn(fmt.Sprintf("Request %s failed: %v", info.ID, err))
			return
		}
		log.Warn("Request failed: " + err.Error())
	}
}
