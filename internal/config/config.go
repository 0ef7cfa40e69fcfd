package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"
)

const (
	DefaultBaseURL         = "http://127.0.0.1:5000"
	DefaultEndpoint        = "/attendance_stats"
	DefaultMethod          = "GET"
	DefaultUsers           = 10
	DefaultRequestsPerUser = 10
	DefaultDelay           = 100 * time.Millisecond
	DefaultTimeout         = 10 * time.Second
	DefaultOutputFile      = "load_test_results.json"
	DefaultTrackingTimeout = 5 * time.Second
	DefaultLogLevel        = "info"

	DefaultListen     = ":5000"
	DefaultDataDir    = "."
	DefaultReportFile = "scalability_metrics.csv"
	DefaultLogFormat  = "console"

	// EnvPrefix prefixes environment overrides, e.g. LOADLAB_USERS.
	EnvPrefix = "LOADLAB"
)

// Config holds the traffic generator settings.
type Config struct {
	BaseURL         string            `mapstructure:"url"`
	Endpoint        string            `mapstructure:"endpoint"`
	Method          string            `mapstructure:"method"`
	Headers         map[string]string `mapstructure:"headers"`
	Body            string            `mapstructure:"body"`
	BodyFile        string            `mapstructure:"body_file"`
	Users           int               `mapstructure:"users"`
	RequestsPerUser int               `mapstructure:"requests"`
	Delay           time.Duration     `mapstructure:"delay"`
	Timeout         time.Duration     `mapstructure:"timeout"`
	Rate            int               `mapstructure:"rate"`
	OutputFile      string            `mapstructure:"output"`
	LogFile         string            `mapstructure:"log_file"`
	ServerTracking  bool              `mapstructure:"server_tracking"`
	TrackingTimeout time.Duration     `mapstructure:"tracking_timeout"`
	ReportCSV       string            `mapstructure:"report_csv"`
	Thresholds      []string          `mapstructure:"thresholds"`
	JSONOutput      bool              `mapstructure:"json_output"`
	Progress        bool              `mapstructure:"progress"`
	LogErrors       bool              `mapstructure:"log_errors"`
	LogLevel        string            `mapstructure:"log_level"`
	Tracing         TracingConfig     `mapstructure:"tracing"`
	ConfigFile      string            `mapstructure:"-"`
}

// Defaults returns a generator configuration with every default applied.
func Defaults() Config {
	return Config{
		BaseURL:         DefaultBaseURL,
		Endpoint:        DefaultEndpoint,
		Method:          DefaultMethod,
		Headers:         map[string]string{},
		Users:           DefaultUsers,
		RequestsPerUser: DefaultRequestsPerUser,
		Delay:           DefaultDelay,
		Timeout:         DefaultTimeout,
		OutputFile:      DefaultOutputFile,
		TrackingTimeout: DefaultTrackingTimeout,
		LogLevel:        DefaultLogLevel,
		Tracing:         TracingConfig{SampleRate: 1.0},
	}
}

// Target is the full URL simulated users request.
func (c Config) Target() string {
	return strings.TrimRight(c.BaseURL, "/") + c.Endpoint
}

// TracingConfig configures OTLP trace export.
type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	Protocol    string  `mapstructure:"protocol"` // "grpc" or "http"
	ServiceName string  `mapstructure:"service_name"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	Insecure    bool    `mapstructure:"insecure"`
	Propagate   *bool   `mapstructure:"propagate"`
}

// Enabled reports whether an exporter endpoint is configured, either
// explicitly or through OTEL_EXPORTER_OTLP_ENDPOINT.
func (t TracingConfig) Enabled() bool {
	return strings.TrimSpace(t.Endpoint) != "" || os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != ""
}

// ShouldPropagate reports whether W3C trace headers go out with requests.
// Unless overridden it follows Enabled.
func (t TracingConfig) ShouldPropagate() bool {
	if t.Propagate != nil {
		return *t.Propagate
	}
	return t.Enabled()
}

// ServerConfig holds the settings of the service under test.
type ServerConfig struct {
	Listen     string        `mapstructure:"listen"`
	DataDir    string        `mapstructure:"data_dir"`
	ReportFile string        `mapstructure:"report_file"`
	LogLevel   string        `mapstructure:"log_level"`
	LogFormat  string        `mapstructure:"log_format"`
	LogFile    string        `mapstructure:"log_file"`
	Tracing    TracingConfig `mapstructure:"tracing"`
	ConfigFile string        `mapstructure:"-"`
}

// ServerDefaults returns a server configuration with every default applied.
func ServerDefaults() ServerConfig {
	return ServerConfig{
		Listen:     DefaultListen,
		DataDir:    DefaultDataDir,
		ReportFile: DefaultReportFile,
		LogLevel:   DefaultLogLevel,
		LogFormat:  DefaultLogFormat,
		Tracing:    TracingConfig{SampleRate: 1.0},
	}
}

type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

func (c Config) Validate() error {
	var issues []string

	issues = append(issues, validateBaseURL(c.BaseURL)...)
	if !strings.HasPrefix(c.Endpoint, "/") {
		issues = append(issues, "endpoint must begin with /")
	}
	if strings.TrimSpace(c.Method) == "" {
		issues = append(issues, "method is required")
	}

	if c.Users > 500 {
		fmt.Fprintf(os.Stderr, "WARNING: High concurrency configured (%d users). Ensure you have authorization to test the target system.\n", c.Users)
	}

	if c.Users < 1 {
		issues = append(issues, "users must be >= 1")
	}
	if c.RequestsPerUser < 1 {
		issues = append(issues, "requests must be >= 1")
	}
	if c.Delay < 0 {
		issues = append(issues, "delay must be >= 0")
	}
	if c.Timeout <= 0 {
		issues = append(issues, "timeout must be > 0")
	}
	if c.Rate < 0 {
		issues = append(issues, "rate must be >= 0")
	}
	if c.ServerTracking && c.TrackingTimeout <= 0 {
		issues = append(issues, "tracking timeout must be > 0")
	}
	if strings.TrimSpace(c.OutputFile) == "" {
		issues = append(issues, "output is required")
	}
	if strings.TrimSpace(c.Body) != "" && strings.TrimSpace(c.BodyFile) != "" {
		issues = append(issues, "body and bodyFile are mutually exclusive")
	}
	if c.Progress && c.JSONOutput {
		issues = append(issues, "progress and json-output are mutually exclusive")
	}
	issues = append(issues, validateTracing(c.Tracing)...)

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}

func (c ServerConfig) Validate() error {
	var issues []string

	if strings.TrimSpace(c.Listen) == "" {
		issues = append(issues, "listen address is required")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		issues = append(issues, "data dir is required")
	}
	switch strings.ToLower(c.LogFormat) {
	case "console", "json":
	default:
		issues = append(issues, fmt.Sprintf("log format must be console or json, got %q", c.LogFormat))
	}
	issues = append(issues, validateTracing(c.Tracing)...)

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}

func validateBaseURL(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{"url is required (use --help for usage information)"}
	}
	u, err := url.Parse(raw)
	if err != nil {
		return []string{fmt.Sprintf("url is invalid: %v", err)}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return []string{fmt.Sprintf("url scheme must be http or https, got %q", u.Scheme)}
	}
	if u.Host == "" {
		return []string{"url must include a host"}
	}
	return nil
}

func validateTracing(t TracingConfig) []string {
	var issues []string
	switch strings.ToLower(t.Protocol) {
	case "", "grpc", "http":
	default:
		issues = append(issues, fmt.Sprintf("tracing protocol must be grpc or http, got %q", t.Protocol))
	}
	if t.SampleRate < 0 || t.SampleRate > 1 {
		issues = append(issues, "tracing sample rate must be between 0.0 and 1.0")
	}
	return issues
}
