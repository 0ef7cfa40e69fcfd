package config

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

func newFlagCommand(use string, configure func(*pflag.FlagSet)) *cobra.Command {
	cmd := &cobra.Command{
		Use:           use,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	configure(cmd.Flags())
	return cmd
}

// configureFlags sets up the generator flags on the provided flag set.
func configureFlags(flags *pflag.FlagSet) {
	// Target flags
	flags.String("url", DefaultBaseURL, "Base URL of the service under test")
	flags.String("endpoint", DefaultEndpoint, "Endpoint path every simulated user requests")
	flags.String("method", DefaultMethod, "HTTP method to use")
	flags.StringSlice("header", nil, "Additional request header in key=value form")
	flags.String("body", "", "Inline request body payload")
	flags.String("body-file", "", "Path to file containing the request body")

	// Load shape flags
	flags.IntP("users", "u", DefaultUsers, "Number of concurrent simulated users")
	flags.IntP("requests", "n", DefaultRequestsPerUser, "Sequential requests issued by each user")
	flags.String("delay", DefaultDelay.String(), "Delay between a user's requests (e.g. 100ms, or 0.1 for seconds)")
	flags.Duration("timeout", DefaultTimeout, "Per-request timeout")
	flags.IntP("rate", "r", 0, "Global requests per second cap across all users (0 means unlimited)")

	// Output flags
	flags.StringP("output", "o", DefaultOutputFile, "Results file (.json, .yaml or .yml)")
	flags.String("log-file", "", "Run log file (default stress_test_logs/load_test_<users>users_<timestamp>.log)")
	flags.String("report-csv", "", "Append per-endpoint client statistics to this CSV file")
	flags.Bool("json-output", false, "Print the results document as JSON instead of the summary")
	flags.Bool("progress", false, "Print a live progress line every second")
	flags.Bool("log-errors", false, "Log each failed request as it happens")
	flags.String("log-level", DefaultLogLevel, "Run log level (debug, info, warn, error)")
	flags.String("config", "", "Path to configuration file (JSON, YAML or TOML)")

	// Server correlation flags
	flags.Bool("server-tracking", false, "Ask the service to start and stop its own tracking around the run")
	flags.Duration("tracking-timeout", DefaultTrackingTimeout, "Timeout for the tracking start and stop calls")

	// Threshold flags
	flags.StringSlice("threshold", nil, "Performance thresholds (repeatable, e.g. 'response_time:p95 < 500')")

	configureTracingFlags(flags)
}

// configureServerFlags sets up the server flags on the provided flag set.
func configureServerFlags(flags *pflag.FlagSet) {
	flags.String("listen", DefaultListen, "Address to listen on")
	flags.String("data-dir", DefaultDataDir, "Directory holding the attendance CSV files")
	flags.String("report-file", DefaultReportFile, "Append-only CSV file receiving report rows")
	flags.String("log-level", DefaultLogLevel, "Log level (debug, info, warn, error)")
	flags.String("log-format", DefaultLogFormat, "Log format: console or json")
	flags.String("log-file", "", "Also write logs to this file, rotated by size")
	flags.String("config", "", "Path to configuration file (JSON, YAML or TOML)")

	configureTracingFlags(flags)
}

func configureTracingFlags(flags *pflag.FlagSet) {
	flags.String("tracing-endpoint", "", "OTLP collector endpoint (enables tracing)")
	flags.String("tracing-protocol", "grpc", "OTLP protocol: grpc or http")
	flags.Bool("tracing-insecure", false, "Disable TLS for the OTLP exporter")
	flags.Float64("tracing-sample-rate", 1.0, "Fraction of traces sampled (0.0 to 1.0)")
}

// displayHelp prints the help message for a command.
func displayHelp(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Usage: %s\n\nFlags:\n", cmd.UseLine())
	fs := cmd.Flags()
	fs.SetOutput(out)
	fs.PrintDefaults()
}

// override hands the value of flag name to apply when the flag was given on
// the command line.
func override[T any](fs *pflag.FlagSet, name string, get func(string) (T, error), apply func(T)) func() error {
	return func() error {
		if !fs.Changed(name) {
			return nil
		}
		val, err := get(name)
		if err != nil {
			return fmt.Errorf("--%s: %w", name, err)
		}
		apply(val)
		return nil
	}
}

func firstError(steps ...func() error) error {
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

func setTrimmed(dst *string) func(string) { return func(v string) { *dst = strings.TrimSpace(v) } }
func setLower(dst *string) func(string) { return func(v string) { *dst = strings.ToLower(strings.TrimSpace(v)) } }

func set[T any](dst *T) func(T) { return func(v T) { *dst = v } }

// applyFlagOverrides applies command-line flag values on top of the config
// file and the environment.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	// --delay accepts bare seconds, so it is parsed like a config value.
	getDelay := func(name string) (time.Duration, error) {
		raw, err := fs.GetString(name)
		if err != nil {
			return 0, err
		}
		return asDuration(raw)
	}

	err := firstError(
		override(fs, "url", fs.GetString, setTrimmed(&cfg.BaseURL)),
		override(fs, "endpoint", fs.GetString, setTrimmed(&cfg.Endpoint)),
		override(fs, "method", fs.GetString, setTrimmed(&cfg.Method)),
		override(fs, "body", fs.GetString, func(v string) { cfg.Body, cfg.BodyFile = v, "" }),
		override(fs, "body-file", fs.GetString, func(v string) { cfg.BodyFile, cfg.Body = v, "" }),
		override(fs, "users", fs.GetInt, set(&cfg.Users)),
		override(fs, "requests", fs.GetInt, set(&cfg.RequestsPerUser)),
		override(fs, "delay", getDelay, set(&cfg.Delay)),
		override(fs, "timeout", fs.GetDuration, set(&cfg.Timeout)),
		override(fs, "rate", fs.GetInt, set(&cfg.Rate)),
		override(fs, "output", fs.GetString, setTrimmed(&cfg.OutputFile)),
		override(fs, "log-file", fs.GetString, setTrimmed(&cfg.LogFile)),
		override(fs, "report-csv", fs.GetString, setTrimmed(&cfg.ReportCSV)),
		override(fs, "json-output", fs.GetBool, set(&cfg.JSONOutput)),
		override(fs, "progress", fs.GetBool, set(&cfg.Progress)),
		override(fs, "log-errors", fs.GetBool, set(&cfg.LogErrors)),
		override(fs, "log-level", fs.GetString, setTrimmed(&cfg.LogLevel)),
		override(fs, "server-tracking", fs.GetBool, set(&cfg.ServerTracking)),
		override(fs, "tracking-timeout", fs.GetDuration, set(&cfg.TrackingTimeout)),
		override(fs, "threshold", fs.GetStringSlice, func(v []string) {
			cfg.Thresholds = append([]string(nil), v...)
		}),
	)
	if err != nil {
		return err
	}

	entries, err := fs.GetStringSlice("header")
	if err != nil {
		return err
	}
	if err := mergeHeaderFlags(cfg, entries); err != nil {
		return err
	}
	return applyTracingFlagOverrides(&cfg.Tracing, fs)
}

func mergeHeaderFlags(cfg *Config, entries []string) error {
	if len(entries) == 0 {
		return nil
	}
	if cfg.Headers == nil {
		cfg.Headers = map[string]string{}
	}
	for _, entry := range entries {
		key, value, ok := strings.Cut(entry, "=")
		if !ok {
			return fmt.Errorf("header must be in key=value format: %s", entry)
		}
		key = http.CanonicalHeaderKey(strings.TrimSpace(key))
		if key == "" {
			return fmt.Errorf("header key cannot be empty")
		}
		cfg.Headers[key] = strings.TrimSpace(value)
	}
	return nil
}

func applyServerFlagOverrides(cfg *ServerConfig, fs *pflag.FlagSet) error {
	err := firstError(
		override(fs, "listen", fs.GetString, setTrimmed(&cfg.Listen)),
		override(fs, "data-dir", fs.GetString, setTrimmed(&cfg.DataDir)),
		override(fs, "report-file", fs.GetString, setTrimmed(&cfg.ReportFile)),
		override(fs, "log-level", fs.GetString, setTrimmed(&cfg.LogLevel)),
		override(fs, "log-format", fs.GetString, setLower(&cfg.LogFormat)),
		override(fs, "log-file", fs.GetString, setTrimmed(&cfg.LogFile)),
	)
	if err != nil {
		return err
	}
	return applyTracingFlagOverrides(&cfg.Tracing, fs)
}

func applyTracingFlagOverrides(t *TracingConfig, fs *pflag.FlagSet) error {
	return firstError(
		override(fs, "tracing-endpoint", fs.GetString, setTrimmed(&t.Endpoint)),
		override(fs, "tracing-protocol", fs.GetString, setLower(&t.Protocol)),
		override(fs, "tracing-insecure", fs.GetBool, set(&t.Insecure)),
		override(fs, "tracing-sample-rate", fs.GetFloat64, set(&t.SampleRate)),
	)
}
