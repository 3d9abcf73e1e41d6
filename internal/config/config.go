package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Pair is an ordered key/value entry. Headers, params and cookies keep their
// command-line order and may repeat a key.
type Pair struct {
	Key   string `mapstructure:"key"`
	Value string `mapstructure:"value"`
}

type BackoffStrategy string

const (
	BackoffFixed       BackoffStrategy = "fixed"
	BackoffLinear      BackoffStrategy = "linear"
	BackoffExponential BackoffStrategy = "exponential"
)

type ReportFormat string

const (
	ReportFormatText ReportFormat = "text"
	ReportFormatJSON ReportFormat = "json"
	ReportFormatYAML ReportFormat = "yaml"
)

var allowedMethods = map[string]struct{}{
	"GET":     {},
	"POST":    {},
	"PUT":     {},
	"DELETE":  {},
	"PATCH":   {},
	"HEAD":    {},
	"OPTIONS": {},
}

type Config struct {
	URL     string `mapstructure:"url"`
	Method  string `mapstructure:"method"`
	Headers []Pair `mapstructure:"headers"`
	Params  []Pair `mapstructure:"params"`
	Cookies []Pair `mapstructure:"cookies"`
	JSON    string `mapstructure:"json"`
	Data    string `mapstructure:"data"`

	SessionFile       string `mapstructure:"session_file"`
	SessionCookieName string `mapstructure:"session_cookie_name"`
	SessionHeaderName string `mapstructure:"session_header_name"`
	Name              string `mapstructure:"name"`
	NamePrefix        string `mapstructure:"name_prefix"`

	Concurrency     int             `mapstructure:"concurrency"`
	Rate            int             `mapstructure:"rate"`
	Retries         int             `mapstructure:"retries"`
	BackoffMs       int             `mapstructure:"backoff_ms"`
	BackoffStrategy BackoffStrategy `mapstructure:"backoff_strategy"`
	MaxBackoff      time.Duration   `mapstructure:"max_backoff"`
	RetryStatus     string          `mapstructure:"retry_status"`
	DelayMs         int             `mapstructure:"delay_ms"`

	Timeout         time.Duration `mapstructure:"timeout"`
	Proxy           string        `mapstructure:"proxy"`
	NoVerify        bool          `mapstructure:"no_verify"`
	FollowRedirects bool          `mapstructure:"follow_redirects"`

	Output       string       `mapstructure:"output"`
	SaveDir      string       `mapstructure:"save_dir"`
	SaveBody     bool         `mapstructure:"save_body"`
	ResultsDB    string       `mapstructure:"results_db"`
	ReportFormat ReportFormat `mapstructure:"report_format"`
	Progress     bool         `mapstructure:"progress"`
	Quiet        bool         `mapstructure:"quiet"`

	Log        LogConfig     `mapstructure:"log"`
	Tracing    TracingConfig `mapstructure:"tracing"`
	ConfigFile string        `mapstructure:"-"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // console or json
	File   string `mapstructure:"file"`   // rotated with lumberjack when set
}

// TracingConfig controls OpenTelemetry export for per-item spans.
type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	Protocol    string  `mapstructure:"protocol"` // grpc or http
	ServiceName string  `mapstructure:"service_name"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	Insecure    bool    `mapstructure:"insecure"`
	Propagate   bool    `mapstructure:"propagate"`
}

// Enabled reports whether spans should be exported.
func (t TracingConfig) Enabled() bool {
	return strings.TrimSpace(t.Endpoint) != ""
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

	if strings.TrimSpace(c.URL) == "" {
		issues = append(issues, "url is required (use --help for usage information)")
	} else if err := validateTargetURL(c.URL); err != nil {
		issues = append(issues, err.Error())
	}

	if _, ok := allowedMethods[strings.ToUpper(c.Method)]; !ok {
		issues = append(issues, fmt.Sprintf("method %q is not supported", c.Method))
	}

	if c.JSON != "" && c.Data != "" {
		issues = append(issues, "json and data are mutually exclusive")
	}

	if c.Concurrency < 1 {
		issues = append(issues, "concurrency must be >= 1")
	}
	if c.Rate < 0 {
		issues = append(issues, "rate must be >= 0")
	}
	if c.Retries < 0 {
		issues = append(issues, "retries must be >= 0")
	}
	if c.BackoffMs < 0 {
		issues = append(issues, "backoff-ms must be >= 0")
	}
	if c.DelayMs < 0 {
		issues = append(issues, "delay-ms must be >= 0")
	}
	if c.MaxBackoff < 0 {
		issues = append(issues, "max-backoff must be >= 0")
	}
	if c.Timeout < 0 {
		issues = append(issues, "timeout must be >= 0")
	}

	switch c.BackoffStrategy {
	case "", BackoffFixed, BackoffLinear, BackoffExponential:
	default:
		issues = append(issues, fmt.Sprintf("backoff strategy %q is not supported (fixed, linear, exponential)", c.BackoffStrategy))
	}

	switch c.ReportFormat {
	case "", ReportFormatText, ReportFormatJSON, ReportFormatYAML:
	default:
		issues = append(issues, fmt.Sprintf("report format %q is not supported (text, json, yaml)", c.ReportFormat))
	}

	if strings.TrimSpace(c.Proxy) != "" {
		if u, err := url.Parse(c.Proxy); err != nil || u.Scheme == "" || u.Host == "" {
			issues = append(issues, fmt.Sprintf("proxy %q must be an absolute URL", c.Proxy))
		}
	}

	if strings.TrimSpace(c.SessionFile) != "" &&
		strings.TrimSpace(c.SessionCookieName) == "" &&
		strings.TrimSpace(c.SessionHeaderName) == "" {
		issues = append(issues, "session-file requires session-cookie-name or session-header-name")
	}

	if c.SaveBody && strings.TrimSpace(c.SaveDir) == "" {
		issues = append(issues, "save-body requires save-dir")
	}

	issues = append(issues, validatePairs("header", c.Headers)...)
	issues = append(issues, validatePairs("param", c.Params)...)
	issues = append(issues, validatePairs("cookie", c.Cookies)...)
	issues = append(issues, validateLogConfig(c.Log)...)
	issues = append(issues, validateTracingConfig(c.Tracing)...)

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}

// Warnings lists non-fatal concerns worth surfacing before a run starts.
func (c Config) Warnings() []string {
	var warnings []string
	if c.Concurrency > 500 {
		warnings = append(warnings, fmt.Sprintf("high concurrency configured (%d workers); ensure you have authorization to test the target system", c.Concurrency))
	}
	if c.Rate > 1000 {
		warnings = append(warnings, fmt.Sprintf("high rate limit configured (%d RPS); ensure you have authorization to test the target system", c.Rate))
	}
	if c.NoVerify {
		warnings = append(warnings, "TLS verification is disabled; man-in-the-middle attacks are possible")
	}
	return warnings
}

func validateTargetURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("url %q is invalid: %v", raw, err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("url %q must use http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("url %q has no host", raw)
	}
	return nil
}

func validatePairs(kind string, pairs []Pair) []string {
	var issues []string
	for idx, p := range pairs {
		if strings.TrimSpace(p.Key) == "" {
			issues = append(issues, fmt.Sprintf("%s[%d]: key cannot be empty", kind, idx))
		}
		if strings.ContainsAny(p.Key, "\r\n") || strings.ContainsAny(p.Value, "\r\n") {
			issues = append(issues, fmt.Sprintf("%s[%d]: must not contain line breaks", kind, idx))
		}
	}
	return issues
}

func validateLogConfig(l LogConfig) []string {
	var issues []string
	switch strings.ToLower(l.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		issues = append(issues, fmt.Sprintf("log level %q is not supported", l.Level))
	}
	switch strings.ToLower(l.Format) {
	case "", "console", "json":
	default:
		issues = append(issues, fmt.Sprintf("log format %q is not supported (console, json)", l.Format))
	}
	return issues
}

func validateTracingConfig(t TracingConfig) []string {
	var issues []string
	if t.SampleRate < 0 || t.SampleRate > 1.0 {
		issues = append(issues, fmt.Sprintf("tracing sample rate must be between 0.0 and 1.0, got %g", t.SampleRate))
	}
	switch strings.ToLower(t.Protocol) {
	case "", "grpc", "http":
	default:
		issues = append(issues, fmt.Sprintf("tracing protocol %q is not supported (grpc, http)", t.Protocol))
	}
	return issues
}
