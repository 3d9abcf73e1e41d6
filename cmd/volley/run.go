package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/torosent/volley/internal/batch"
	"github.com/torosent/volley/internal/commands"
	"github.com/torosent/volley/internal/config"
	"github.com/torosent/volley/internal/httpclient"
	"github.com/torosent/volley/internal/logging"
	"github.com/torosent/volley/internal/metrics"
	"github.com/torosent/volley/internal/output"
	"github.com/torosent/volley/internal/runner"
	"github.com/torosent/volley/internal/session"
	"github.com/torosent/volley/internal/tracing"
)

const (
	progressInterval = time.Second
	shutdownTimeout  = 5 * time.Second
)

func runHandler(std streams) commands.Handler {
	return commands.Handler{
		Name:  "run",
		Short: "Send one request per session token and record every result",
		Bind:  config.RegisterFlags,
		Run: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.NewLoader().FromFlags(cmd.Flags())
			if err != nil {
				return withCode(exitConfig, err)
			}
			return runBatch(cmd.Context(), cfg, std)
		},
	}
}

// plan is everything derived from the configuration before any output is
// opened or request sent.
type plan struct {
	items  []batch.WorkItem
	policy runner.RetryPolicy
	client httpclient.ClientOptions
}

func buildPlan(cfg *config.Config, stdin io.Reader) (*plan, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	spec, err := httpclient.NewRequestSpec(cfg)
	if err != nil {
		return nil, err
	}

	pool := session.Pool{
		CookieName: cfg.SessionCookieName,
		HeaderName: cfg.SessionHeaderName,
	}
	if cfg.SessionFile != "" {
		tokens, err := session.LoadFile(cfg.SessionFile, stdin)
		if err != nil {
			return nil, err
		}
		pool.Tokens = tokens
	}

	items, err := batch.Generate(*spec, pool, batch.Options{Name: cfg.Name, NamePrefix: cfg.NamePrefix})
	if err != nil {
		return nil, err
	}

	statuses, err := runner.ParseStatusSet(cfg.RetryStatus)
	if err != nil {
		return nil, fmt.Errorf("retry-status: %w", err)
	}

	return &plan{
		items: items,
		policy: runner.RetryPolicy{
			MaxRetries:      cfg.Retries,
			Backoff:         time.Duration(cfg.BackoffMs) * time.Millisecond,
			Strategy:        runner.BackoffStrategy(cfg.BackoffStrategy),
			MaxBackoff:      cfg.MaxBackoff,
			RetryableStatus: statuses,
			PreAttemptDelay: time.Duration(cfg.DelayMs) * time.Millisecond,
		},
		client: httpclient.ClientOptions{
			Timeout:            cfg.Timeout,
			Proxy:              cfg.Proxy,
			InsecureSkipVerify: cfg.NoVerify,
			FollowRedirects:    cfg.FollowRedirects,
			MaxConnsPerHost:    cfg.Concurrency,
		},
	}, nil
}

// sinks are the outputs opened for one run.
type sinks struct {
	primary   output.Sink
	secondary []output.Sink
	artifacts output.Artifacts
}

func openSinks(cfg *config.Config, log zerolog.Logger) (*sinks, error) {
	s := &sinks{}
	if cfg.Output != "" {
		jsonl, err := output.OpenJSONL(cfg.Output)
		if err != nil {
			return nil, err
		}
		s.primary = jsonl
		log.Debug().Str("path", jsonl.Path()).Msg("writing results")
	}
	if cfg.SaveDir != "" {
		store, err := output.NewArtifactStore(cfg.SaveDir, cfg.SaveBody)
		if err != nil {
			if s.primary != nil {
				_ = s.primary.Close()
			}
			return nil, err
		}
		s.artifacts = store
	}
	if cfg.ResultsDB != "" {
		db, err := output.OpenDB(cfg.ResultsDB, log.With().Str("component", "results-db").Logger())
		if err != nil {
			log.Warn().Err(err).Str("path", cfg.ResultsDB).Msg("results database disabled")
		} else {
			s.secondary = append(s.secondary, db)
		}
	}
	return s, nil
}

func runBatch(ctx context.Context, cfg *config.Config, std streams) error {
	if ctx == nil {
		ctx = context.Background()
	}

	log, logCloser, err := logging.New(cfg.Log, std.err)
	if err != nil {
		return withCode(exitConfig, err)
	}
	defer logCloser.Close()

	p, err := buildPlan(cfg, std.in)
	if err != nil {
		var verr config.ValidationError
		if errors.As(err, &verr) {
			for _, issue := range verr.Issues() {
				log.Error().Str("issue", issue).Msg("invalid configuration")
			}
		}
		return withCode(exitConfig, err)
	}
	for _, w := range cfg.Warnings() {
		log.Warn().Msg(w)
	}

	httpClient, err := httpclient.NewClient(p.client)
	if err != nil {
		return withCode(exitConfig, err)
	}

	runID := ulid.Make().String()
	log = log.With().Str("run_id", runID).Logger()

	provider, err := tracing.Init(ctx, cfg.Tracing, tracing.RunInfo{
		ID:          runID,
		Items:       len(p.items),
		Concurrency: cfg.Concurrency,
		Target:      cfg.URL,
	})
	if err != nil {
		return withCode(exitConfig, err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("tracing shutdown failed")
		}
	}()

	out, err := openSinks(cfg, log)
	if err != nil {
		return withCode(exitWrite, err)
	}

	runCtx, cancelRun := context.WithCancelCause(ctx)
	defer cancelRun(nil)

	collector := metrics.NewCollector()
	observers := []output.Observer{collector}
	if !cfg.Quiet {
		observers = append(observers, output.NewConsoleObserver(std.out))
	}
	writer := output.NewWriter(output.WriterOptions{
		RunID:     runID,
		Artifacts: out.artifacts,
		Primary:   out.primary,
		Secondary: out.secondary,
		Observers: observers,
		Logger:    log,
		OnFatal:   func(err error) { cancelRun(err) },
		Buffer:    cfg.Concurrency,
	})
	writer.Start()

	var doerOpts []httpclient.DoerOption
	if provider.ShouldPropagate() {
		doerOpts = append(doerOpts, httpclient.WithHeaderInjector(tracing.InjectHTTPHeaders))
	}
	executor := runner.NewExecutor(
		httpclient.NewDoer(httpClient, doerOpts...),
		p.policy,
		runner.WithTracer(provider.Tracer()),
		runner.WithTransitions(logTransition(log)),
	)

	var progress *output.ProgressReporter
	if cfg.Progress {
		progress = output.NewProgressReporter(collector, len(p.items), progressInterval, std.err)
		progress.Start()
	}

	policy := executor.Policy()
	log.Info().
		Int("items", len(p.items)).
		Int("concurrency", cfg.Concurrency).
		Int("max_retries", policy.MaxRetries).
		Str("backoff_strategy", string(policy.Strategy)).
		Str("retry_status", policy.RetryableStatus.String()).
		Msg("starting batch")

	r := runner.New(runner.Options{
		Concurrency:   cfg.Concurrency,
		RatePerSecond: cfg.Rate,
		Executor:      executor,
		OnResult:      writer.Submit,
	})
	stats := r.Run(runCtx, p.items)

	writeErr := writer.Close()
	if progress != nil {
		progress.Stop()
	}

	summary := collector.Summary(stats.Total, stats.Duration)
	summary.RunID = runID
	if err := output.WriteReport(std.out, cfg.ReportFormat, summary); err != nil {
		log.Error().Err(err).Msg("report failed")
	}

	log.Info().
		Int("succeeded", summary.Succeeded).
		Int("failed", summary.Failed).
		Int("not_attempted", summary.NotAttempted).
		Dur("elapsed", stats.Duration).
		Msg("batch finished")

	switch {
	case writeErr != nil:
		return withCode(exitWrite, writeErr)
	case ctx.Err() != nil:
		return withCode(exitInterrupted, errors.New("interrupted"))
	case !summary.AllSucceeded():
		return withCode(exitFailures, nil)
	}
	return nil
}

func logTransition(log zerolog.Logger) runner.TransitionFunc {
	if log.GetLevel() > zerolog.DebugLevel {
		return nil
	}
	return func(t runner.Transition) {
		ev := log.Debug().
			Str("item", t.Item).
			Str("from", t.From.String()).
			Str("to", t.To.String()).
			Int("attempt", t.Attempt).
			Bool("terminal", t.To.Terminal())
		if t.Wait > 0 {
			ev = ev.Dur("wait", t.Wait)
		}
		if t.Err != nil {
			ev = ev.Str("error", strings.TrimSpace(t.Err.Error()))
		}
		ev.Msg("transition")
	}
}
