package config

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ErrHelpRequested is returned when the user requests help via --help flag.
var ErrHelpRequested = errors.New("help requested")

var generatorEnvKeys = []string{
	"url", "endpoint", "method", "body", "body_file",
	"users", "requests", "delay", "timeout", "rate",
	"output", "log_file", "report_csv", "json_output", "progress", "log_errors", "log_level",
	"server_tracking", "tracking_timeout",
	"tracing.endpoint", "tracing.protocol", "tracing.service_name", "tracing.sample_rate",
	"tracing.insecure", "tracing.propagate",
}

var serverEnvKeys = []string{
	"listen", "data_dir", "report_file", "log_level", "log_format", "log_file",
	"tracing.endpoint", "tracing.protocol", "tracing.service_name", "tracing.sample_rate",
	"tracing.insecure", "tracing.propagate",
}

// Loader handles loading generator configuration from files, the
// environment and command-line arguments, in increasing precedence.
type Loader struct{}

// NewLoader creates a new configuration Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses command-line arguments and configuration files to produce a Config.
func (Loader) Load(args []string) (*Config, error) {
	flagSet, configPath, err := parseArgs("loadlab", configureFlags, args)
	if err != nil {
		return nil, err
	}

	settings, err := readSettings(configPath, generatorEnvKeys)
	if err != nil {
		return nil, err
	}

	cfg := Defaults()
	cfg.ConfigFile = configPath
	if err := applyConfigSettings(&cfg, settings); err != nil {
		return nil, err
	}
	if err := applyFlagOverrides(&cfg, flagSet); err != nil {
		return nil, err
	}

	cfg.Method = strings.ToUpper(strings.TrimSpace(cfg.Method))
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	cfg.Endpoint = strings.TrimSpace(cfg.Endpoint)
	cfg.BodyFile = strings.TrimSpace(cfg.BodyFile)
	if cfg.Headers == nil {
		cfg.Headers = map[string]string{}
	}
	return &cfg, nil
}

// ServerLoader handles loading the server configuration.
type ServerLoader struct{}

// NewServerLoader creates a new ServerLoader.
func NewServerLoader() *ServerLoader {
	return &ServerLoader{}
}

// Load parses command-line arguments and configuration files to produce a ServerConfig.
func (ServerLoader) Load(args []string) (*ServerConfig, error) {
	flagSet, configPath, err := parseArgs("loadlab-server", configureServerFlags, args)
	if err != nil {
		return nil, err
	}

	settings, err := readSettings(configPath, serverEnvKeys)
	if err != nil {
		return nil, err
	}

	cfg := ServerDefaults()
	cfg.ConfigFile = configPath
	if err := applyServerSettings(&cfg, settings); err != nil {
		return nil, err
	}
	if err := applyServerFlagOverrides(&cfg, flagSet); err != nil {
		return nil, err
	}
	cfg.LogFormat = strings.ToLower(cfg.LogFormat)
	return &cfg, nil
}

func parseArgs(use string, configure func(*pflag.FlagSet), args []string) (*pflag.FlagSet, string, error) {
	cmd := newFlagCommand(use, configure)
	if err := cmd.Flags().Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			displayHelp(cmd)
			return nil, "", ErrHelpRequested
		}
		return nil, "", err
	}

	flagSet := cmd.Flags()
	if wantsHelp(cmd) {
		displayHelp(cmd)
		return nil, "", ErrHelpRequested
	}
	return flagSet, flagSet.Lookup("config").Value.String(), nil
}

func wantsHelp(cmd *cobra.Command) bool {
	helpFlag := cmd.Flags().Lookup("help")
	if helpFlag == nil {
		return false
	}
	want, err := strconv.ParseBool(helpFlag.Value.String())
	return err == nil && want
}

// readSettings merges the config file, if any, with LOADLAB_ environment
// variables bound for keys. Environment values win over the file.
func readSettings(configPath string, keys []string) (map[string]interface{}, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}
	return v.AllSettings(), nil
}

// setting hands the converted value of the first of keys present in
// settings to apply. name labels conversion errors.
func setting[T any](settings map[string]interface{}, name string, conv func(interface{}) (T, error), apply func(T), keys ...string) func() error {
	if len(keys) == 0 {
		keys = []string{name}
	}
	return func() error {
		raw, ok := lookupSetting(settings, keys...)
		if !ok {
			return nil
		}
		val, err := conv(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		apply(val)
		return nil
	}
}

// nonBlank keeps dst when the configured string is blank.
func nonBlank(dst *string) func(string) {
	return func(v string) {
		if v = strings.TrimSpace(v); v != "" {
			*dst = v
		}
	}
}

// applyConfigSettings applies settings from a config file and the
// environment to cfg.
func applyConfigSettings(cfg *Config, settings map[string]interface{}) error {
	if len(settings) == 0 {
		return nil
	}
	return firstError(
		setting(settings, "url", asString, nonBlank(&cfg.BaseURL), "url", "base_url", "baseurl", "target"),
		setting(settings, "endpoint", asString, nonBlank(&cfg.Endpoint)),
		setting(settings, "method", asString, nonBlank(&cfg.Method)),
		setting(settings, "headers", asStringMap, func(hdrs map[string]string) {
			if cfg.Headers == nil {
				cfg.Headers = map[string]string{}
			}
			for k, v := range hdrs {
				cfg.Headers[http.CanonicalHeaderKey(k)] = v
			}
		}),
		setting(settings, "body", asString, set(&cfg.Body)),
		setting(settings, "bodyFile", asString, nonBlank(&cfg.BodyFile), "bodyfile", "body_file", "body-file"),
		setting(settings, "users", asInt, set(&cfg.Users), "users", "concurrent_users", "concurrentusers"),
		setting(settings, "requests", asInt, set(&cfg.RequestsPerUser), "requests", "requests_per_user", "requestsperuser"),
		setting(settings, "delay", asDuration, set(&cfg.Delay)),
		setting(settings, "timeout", asDuration, set(&cfg.Timeout)),
		setting(settings, "rate", asInt, set(&cfg.Rate)),
		setting(settings, "output", asString, nonBlank(&cfg.OutputFile), "output", "output_file", "outputfile"),
		setting(settings, "logFile", asString, nonBlank(&cfg.LogFile), "log_file", "logfile"),
		setting(settings, "reportCSV", asString, nonBlank(&cfg.ReportCSV), "report_csv", "reportcsv"),
		setting(settings, "jsonOutput", asBool, set(&cfg.JSONOutput), "json_output", "jsonoutput"),
		setting(settings, "progress", asBool, set(&cfg.Progress)),
		setting(settings, "logErrors", asBool, set(&cfg.LogErrors), "log_errors", "logerrors"),
		setting(settings, "logLevel", asString, nonBlank(&cfg.LogLevel), "log_level", "loglevel"),
		setting(settings, "serverTracking", asBool, set(&cfg.ServerTracking), "server_tracking", "servertracking"),
		setting(settings, "trackingTimeout", asDuration, set(&cfg.TrackingTimeout), "tracking_timeout", "trackingtimeout"),
		setting(settings, "thresholds", asStringSlice, set(&cfg.Thresholds)),
		func() error { return applyTracingSection(&cfg.Tracing, settings) },
	)
}

func applyServerSettings(cfg *ServerConfig, settings map[string]interface{}) error {
	if len(settings) == 0 {
		return nil
	}
	return firstError(
		setting(settings, "listen", asString, nonBlank(&cfg.Listen), "listen", "addr"),
		setting(settings, "dataDir", asString, nonBlank(&cfg.DataDir), "data_dir", "datadir"),
		setting(settings, "reportFile", asString, nonBlank(&cfg.ReportFile), "report_file", "reportfile"),
		setting(settings, "logLevel", asString, nonBlank(&cfg.LogLevel), "log_level", "loglevel"),
		setting(settings, "logFormat", asString, nonBlank(&cfg.LogFormat), "log_format", "logformat"),
		setting(settings, "logFile", asString, nonBlank(&cfg.LogFile), "log_file", "logfile"),
		func() error { return applyTracingSection(&cfg.Tracing, settings) },
	)
}

func applyTracingSection(t *TracingConfig, settings map[string]interface{}) error {
	raw, ok := lookupSetting(settings, "tracing")
	if !ok {
		return nil
	}
	section, err := toStringKeyMap(raw)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	err = firstError(
		setting(section, "endpoint", asString, nonBlank(&t.Endpoint)),
		setting(section, "protocol", asString, func(v string) {
			if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
				t.Protocol = v
			}
		}),
		setting(section, "service_name", asString, nonBlank(&t.ServiceName), "service_name", "servicename"),
		setting(section, "sample_rate", asFloat64, set(&t.SampleRate), "sample_rate", "samplerate"),
		setting(section, "insecure", asBool, set(&t.Insecure)),
		setting(section, "propagate", asBool, func(v bool) { t.Propagate = &v }),
	)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	return nil
}
