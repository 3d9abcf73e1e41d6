package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// RegisterFlags registers all run flags on a cobra command.
func RegisterFlags(cmd *cobra.Command) {
	configureFlags(cmd.Flags())
}

// newFlagCommand creates a cobra command with all flags configured.
func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "volley run",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	configureFlags(cmd.Flags())
	return cmd
}

func configureFlags(flags *pflag.FlagSet) {
	// Request flags
	flags.String("url", "", "Target URL")
	flags.StringP("method", "X", "GET", "HTTP method (GET, POST, PUT, DELETE, PATCH, HEAD, OPTIONS)")
	flags.StringArrayP("header", "H", nil, "Request header as 'Name: Value' (repeatable)")
	flags.StringArray("param", nil, "Query param as key=value (repeatable)")
	flags.StringArray("cookie", nil, "Cookie as key=value (repeatable)")
	flags.String("json", "", "Inline JSON or path to a JSON file for the request body")
	flags.String("data", "", "Raw data string or path to a file for the request body")

	// Session flags
	flags.String("session-file", "", "File with one session token per line ('-' reads stdin)")
	flags.String("session-cookie-name", "", "Cookie name that carries each session token")
	flags.String("session-header-name", "", "Header name that carries each session token")
	flags.String("name", "", "Result name in single-request mode")
	flags.String("name-prefix", "req", "Prefix for index-derived result names")

	// Execution flags
	flags.IntP("concurrency", "c", 10, "Number of concurrent requests")
	flags.Int("rate", 0, "Dispatch rate limit in requests per second (0 means unlimited)")
	flags.Int("retries", 2, "Retries per request on retryable failures")
	flags.Int("backoff-ms", 200, "Base backoff between retries in milliseconds")
	flags.String("backoff-strategy", string(BackoffExponential), "Backoff strategy: fixed, linear or exponential")
	flags.Duration("max-backoff", 0, "Upper bound for a single backoff wait (0 means no cap)")
	flags.String("retry-status", "5xx", "Retryable HTTP statuses, e.g. '5xx,429' (empty disables status retries)")
	flags.Int("delay-ms", 0, "Delay before every attempt in milliseconds")

	// Transport flags
	flags.Duration("timeout", 30*time.Second, "Per-request timeout")
	flags.String("proxy", "", "Proxy URL applied to HTTP and HTTPS")
	flags.Bool("no-verify", false, "Disable TLS certificate verification")
	flags.Bool("follow-redirects", false, "Follow HTTP redirects")

	// Output flags
	flags.StringP("output", "o", "", "Write JSONL results to this path")
	flags.String("save-dir", "", "Directory for per-request meta and body files")
	flags.Bool("save-body", false, "Save response bodies when --save-dir is used")
	flags.String("results-db", "", "Also record results in this SQLite database")
	flags.String("report-format", string(ReportFormatText), "Summary format: text, json or yaml")
	flags.Bool("progress", false, "Print periodic progress to stderr")
	flags.BoolP("quiet", "q", false, "Suppress per-request result lines")
	flags.String("config", "", "Path to configuration file (JSON or YAML)")

	// Logging flags
	flags.String("log-level", "info", "Log level: debug, info, warn or error")
	flags.String("log-format", "console", "Log format: console or json")
	flags.String("log-file", "", "Write logs to this file with rotation instead of stderr")

	// Tracing flags
	flags.String("tracing-endpoint", "", "OTLP endpoint for request spans (empty disables tracing)")
	flags.String("tracing-protocol", "grpc", "OTLP protocol: grpc or http")
	flags.Bool("tracing-insecure", false, "Use an insecure connection to the OTLP endpoint")
	flags.Float64("tracing-sample-rate", 1.0, "Trace sampling ratio between 0.0 and 1.0")
	flags.String("tracing-service-name", "", "Service name reported with spans")
	flags.Bool("tracing-propagate", false, "Inject W3C trace context headers into requests")
}

// displayHelp prints the help message for a command.
func displayHelp(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Usage: %s\n\nFlags:\n", cmd.UseLine())
	fs := cmd.Flags()
	fs.SetOutput(out)
	fs.PrintDefaults()
}

// applyFlagOverrides applies explicitly set flags on top of config file values.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	stringFlags := map[string]*string{
		"url":                  &cfg.URL,
		"method":               &cfg.Method,
		"json":                 &cfg.JSON,
		"data":                 &cfg.Data,
		"session-file":         &cfg.SessionFile,
		"session-cookie-name":  &cfg.SessionCookieName,
		"session-header-name":  &cfg.SessionHeaderName,
		"name":                 &cfg.Name,
		"name-prefix":          &cfg.NamePrefix,
		"retry-status":         &cfg.RetryStatus,
		"proxy":                &cfg.Proxy,
		"output":               &cfg.Output,
		"save-dir":             &cfg.SaveDir,
		"results-db":           &cfg.ResultsDB,
		"log-level":            &cfg.Log.Level,
		"log-format":           &cfg.Log.Format,
		"log-file":             &cfg.Log.File,
		"tracing-endpoint":     &cfg.Tracing.Endpoint,
		"tracing-protocol":     &cfg.Tracing.Protocol,
		"tracing-service-name": &cfg.Tracing.ServiceName,
	}
	for name, dst := range stringFlags {
		if !fs.Changed(name) {
			continue
		}
		val, err := fs.GetString(name)
		if err != nil {
			return err
		}
		*dst = val
	}

	intFlags := map[string]*int{
		"concurrency": &cfg.Concurrency,
		"rate":        &cfg.Rate,
		"retries":     &cfg.Retries,
		"backoff-ms":  &cfg.BackoffMs,
		"delay-ms":    &cfg.DelayMs,
	}
	for name, dst := range intFlags {
		if !fs.Changed(name) {
			continue
		}
		val, err := fs.GetInt(name)
		if err != nil {
			return err
		}
		*dst = val
	}

	boolFlags := map[string]*bool{
		"no-verify":         &cfg.NoVerify,
		"follow-redirects":  &cfg.FollowRedirects,
		"save-body":         &cfg.SaveBody,
		"progress":          &cfg.Progress,
		"quiet":             &cfg.Quiet,
		"tracing-insecure":  &cfg.Tracing.Insecure,
		"tracing-propagate": &cfg.Tracing.Propagate,
	}
	for name, dst := range boolFlags {
		if !fs.Changed(name) {
			continue
		}
		val, err := fs.GetBool(name)
		if err != nil {
			return err
		}
		*dst = val
	}

	if fs.Changed("timeout") {
		val, err := fs.GetDuration("timeout")
		if err != nil {
			return err
		}
		cfg.Timeout = val
	}
	if fs.Changed("max-backoff") {
		val, err := fs.GetDuration("max-backoff")
		if err != nil {
			return err
		}
		cfg.MaxBackoff = val
	}
	if fs.Changed("tracing-sample-rate") {
		val, err := fs.GetFloat64("tracing-sample-rate")
		if err != nil {
			return err
		}
		cfg.Tracing.SampleRate = val
	}
	if fs.Changed("backoff-strategy") {
		val, err := fs.GetString("backoff-strategy")
		if err != nil {
			return err
		}
		cfg.BackoffStrategy = BackoffStrategy(strings.ToLower(strings.TrimSpace(val)))
	}
	if fs.Changed("report-format") {
		val, err := fs.GetString("report-format")
		if err != nil {
			return err
		}
		cfg.ReportFormat = ReportFormat(strings.ToLower(strings.TrimSpace(val)))
	}

	if fs.Changed("header") {
		vals, err := fs.GetStringArray("header")
		if err != nil {
			return err
		}
		for _, entry := range vals {
			p, err := ParseHeader(entry)
			if err != nil {
				return err
			}
			cfg.Headers = append(cfg.Headers, p)
		}
	}
	if fs.Changed("param") {
		vals, err := fs.GetStringArray("param")
		if err != nil {
			return err
		}
		for _, entry := range vals {
			p, err := ParseKeyValue(entry)
			if err != nil {
				return fmt.Errorf("param: %w", err)
			}
			cfg.Params = append(cfg.Params, p)
		}
	}
	if fs.Changed("cookie") {
		vals, err := fs.GetStringArray("cookie")
		if err != nil {
			return err
		}
		for _, entry := range vals {
			p, err := ParseKeyValue(entry)
			if err != nil {
				return fmt.Errorf("cookie: %w", err)
			}
			cfg.Cookies = append(cfg.Cookies, p)
		}
	}

	return nil
}
