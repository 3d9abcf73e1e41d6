package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Loader handles loading configuration from files and command-line arguments.
type Loader struct{}

// ErrHelpRequested is returned when the user requests help via --help flag.
var ErrHelpRequested = errors.New("help requested")

// NewLoader creates a new configuration Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses command-line arguments and configuration files to produce a Config.
func (l Loader) Load(args []string) (*Config, error) {
	cmd := newFlagCommand()
	if err := cmd.Flags().Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
		return nil, err
	}

	flagSet := cmd.Flags()
	if helpFlag := flagSet.Lookup("help"); helpFlag != nil {
		if wantsHelp, err := strconv.ParseBool(helpFlag.Value.String()); err == nil && wantsHelp {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
	}

	return l.FromFlags(flagSet)
}

// FromFlags builds a Config from an already parsed flag set, reading the
// --config file first when one is given.
func (Loader) FromFlags(flagSet *pflag.FlagSet) (*Config, error) {
	configPath := ""
	if f := flagSet.Lookup("config"); f != nil {
		configPath = strings.TrimSpace(f.Value.String())
	}

	cfgViper := viper.New()
	if configPath != "" {
		cfgViper.SetConfigFile(configPath)
		if err := cfgViper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configPath, err)
		}
	}

	cfg := Default()
	cfg.ConfigFile = configPath

	if err := applyConfigSettings(cfg, cfgViper.AllSettings()); err != nil {
		return nil, err
	}

	if err := applyFlagOverrides(cfg, flagSet); err != nil {
		return nil, err
	}

	cfg.Method = strings.ToUpper(strings.TrimSpace(cfg.Method))
	cfg.URL = strings.TrimSpace(cfg.URL)
	cfg.SessionFile = strings.TrimSpace(cfg.SessionFile)
	cfg.SessionCookieName = strings.TrimSpace(cfg.SessionCookieName)
	cfg.SessionHeaderName = strings.TrimSpace(cfg.SessionHeaderName)
	cfg.Output = strings.TrimSpace(cfg.Output)
	cfg.SaveDir = strings.TrimSpace(cfg.SaveDir)

	return cfg, nil
}

// Default returns a Config populated with the same defaults as the CLI flags.
func Default() *Config {
	return &Config{
		Method:          "GET",
		NamePrefix:      "req",
		Concurrency:     10,
		Retries:         2,
		BackoffMs:       200,
		BackoffStrategy: BackoffExponential,
		RetryStatus:     "5xx",
		Timeout:         30 * time.Second,
		ReportFormat:    ReportFormatText,
		Log:             LogConfig{Level: "info", Format: "console"},
		Tracing:         TracingConfig{Protocol: "grpc", SampleRate: 1.0},
	}
}

// applyConfigSettings applies settings from a config file to the Config struct.
func applyConfigSettings(cfg *Config, settings map[string]interface{}) error {
	if len(settings) == 0 {
		return nil
	}

	stringSettings := []struct {
		dst  *string
		keys []string
	}{
		{&cfg.URL, []string{"url", "target"}},
		{&cfg.Method, []string{"method"}},
		{&cfg.JSON, []string{"json"}},
		{&cfg.Data, []string{"data"}},
		{&cfg.SessionFile, []string{"sessionfile", "session_file", "session-file"}},
		{&cfg.SessionCookieName, []string{"sessioncookiename", "session_cookie_name", "session-cookie-name"}},
		{&cfg.SessionHeaderName, []string{"sessionheadername", "session_header_name", "session-header-name"}},
		{&cfg.Name, []string{"name"}},
		{&cfg.NamePrefix, []string{"nameprefix", "name_prefix", "name-prefix"}},
		{&cfg.RetryStatus, []string{"retrystatus", "retry_status", "retry-status"}},
		{&cfg.Proxy, []string{"proxy"}},
		{&cfg.Output, []string{"output"}},
		{&cfg.SaveDir, []string{"savedir", "save_dir", "save-dir"}},
		{&cfg.ResultsDB, []string{"resultsdb", "results_db", "results-db"}},
	}
	for _, s := range stringSettings {
		raw, ok := lookupSetting(settings, s.keys...)
		if !ok {
			continue
		}
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", s.keys[0], err)
		}
		*s.dst = val
	}

	intSettings := []struct {
		dst  *int
		keys []string
	}{
		{&cfg.Concurrency, []string{"concurrency"}},
		{&cfg.Rate, []string{"rate"}},
		{&cfg.Retries, []string{"retries"}},
		{&cfg.BackoffMs, []string{"backoffms", "backoff_ms", "backoff-ms"}},
		{&cfg.DelayMs, []string{"delayms", "delay_ms", "delay-ms"}},
	}
	for _, s := range intSettings {
		raw, ok := lookupSetting(settings, s.keys...)
		if !ok {
			continue
		}
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", s.keys[0], err)
		}
		*s.dst = val
	}

	boolSettings := []struct {
		dst  *bool
		keys []string
	}{
		{&cfg.NoVerify, []string{"noverify", "no_verify", "no-verify"}},
		{&cfg.FollowRedirects, []string{"followredirects", "follow_redirects", "follow-redirects"}},
		{&cfg.SaveBody, []string{"savebody", "save_body", "save-body"}},
		{&cfg.Progress, []string{"progress"}},
		{&cfg.Quiet, []string{"quiet"}},
	}
	for _, s := range boolSettings {
		raw, ok := lookupSetting(settings, s.keys...)
		if !ok {
			continue
		}
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", s.keys[0], err)
		}
		*s.dst = val
	}

	if raw, ok := lookupSetting(settings, "timeout"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("timeout: %w", err)
		}
		cfg.Timeout = dur
	}

	if raw, ok := lookupSetting(settings, "maxbackoff", "max_backoff", "max-backoff"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("maxBackoff: %w", err)
		}
		cfg.MaxBackoff = dur
	}

	if raw, ok := lookupSetting(settings, "backoffstrategy", "backoff_strategy", "backoff-strategy"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("backoffStrategy: %w", err)
		}
		cfg.BackoffStrategy = BackoffStrategy(strings.ToLower(strings.TrimSpace(val)))
	}

	if raw, ok := lookupSetting(settings, "reportformat", "report_format", "report-format"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("reportFormat: %w", err)
		}
		cfg.ReportFormat = ReportFormat(strings.ToLower(strings.TrimSpace(val)))
	}

	if raw, ok := lookupSetting(settings, "headers"); ok {
		pairs, err := asPairs(raw, ParseHeader)
		if err != nil {
			return fmt.Errorf("headers: %w", err)
		}
		cfg.Headers = pairs
	}

	if raw, ok := lookupSetting(settings, "params"); ok {
		pairs, err := asPairs(raw, ParseKeyValue)
		if err != nil {
			return fmt.Errorf("params: %w", err)
		}
		cfg.Params = pairs
	}

	if raw, ok := lookupSetting(settings, "cookies"); ok {
		pairs, err := asPairs(raw, ParseKeyValue)
		if err != nil {
			return fmt.Errorf("cookies: %w", err)
		}
		cfg.Cookies = pairs
	}

	if raw, ok := lookupSetting(settings, "log"); ok {
		logCfg, err := parseLogConfig(raw, cfg.Log)
		if err != nil {
			return fmt.Errorf("log: %w", err)
		}
		cfg.Log = logCfg
	}

	if raw, ok := lookupSetting(settings, "tracing"); ok {
		tracingCfg, err := parseTracingConfig(raw, cfg.Tracing)
		if err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
		cfg.Tracing = tracingCfg
	}

	return nil
}

func parseLogConfig(value interface{}, base LogConfig) (LogConfig, error) {
	settings, err := toStringKeyMap(value)
	if err != nil {
		return base, err
	}
	out := base
	if raw, ok := lookupSetting(settings, "level"); ok {
		if out.Level, err = asString(raw); err != nil {
			return base, fmt.Errorf("level: %w", err)
		}
	}
	if raw, ok := lookupSetting(settings, "format"); ok {
		if out.Format, err = asString(raw); err != nil {
			return base, fmt.Errorf("format: %w", err)
		}
	}
	if raw, ok := lookupSetting(settings, "file"); ok {
		if out.File, err = asString(raw); err != nil {
			return base, fmt.Errorf("file: %w", err)
		}
	}
	return out, nil
}

func parseTracingConfig(value interface{}, base TracingConfig) (TracingConfig, error) {
	settings, err := toStringKeyMap(value)
	if err != nil {
		return base, err
	}
	out := base
	if raw, ok := lookupSetting(settings, "endpoint"); ok {
		if out.Endpoint, err = asString(raw); err != nil {
			return base, fmt.Errorf("endpoint: %w", err)
		}
	}
	if raw, ok := lookupSetting(settings, "protocol"); ok {
		if out.Protocol, err = asString(raw); err != nil {
			return base, fmt.Errorf("protocol: %w", err)
		}
	}
	if raw, ok := lookupSetting(settings, "servicename", "service_name", "service-name"); ok {
		if out.ServiceName, err = asString(raw); err != nil {
			return base, fmt.Errorf("service_name: %w", err)
		}
	}
	if raw, ok := lookupSetting(settings, "samplerate", "sample_rate", "sample-rate"); ok {
		if out.SampleRate, err = asFloat64(raw); err != nil {
			return base, fmt.Errorf("sample_rate: %w", err)
		}
	}
	if raw, ok := lookupSetting(settings, "insecure"); ok {
		if out.Insecure, err = asBool(raw); err != nil {
			return base, fmt.Errorf("insecure: %w", err)
		}
	}
	if raw, ok := lookupSetting(settings, "propagate"); ok {
		if out.Propagate, err = asBool(raw); err != nil {
			return base, fmt.Errorf("propagate: %w", err)
		}
	}
	return out, nil
}
