package runner

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/torosent/volley/internal/batch"
	"github.com/torosent/volley/internal/httpclient"
	"github.com/torosent/volley/internal/tracing"
)

// Attempter performs a single HTTP exchange for a request spec.
type Attempter interface {
	Attempt(ctx context.Context, spec *httpclient.RequestSpec) (*httpclient.Response, error)
}

// AttempterFunc adapts a function to the Attempter interface.
type AttempterFunc func(ctx context.Context, spec *httpclient.RequestSpec) (*httpclient.Response, error)

func (f AttempterFunc) Attempt(ctx context.Context, spec *httpclient.RequestSpec) (*httpclient.Response, error) {
	return f(ctx, spec)
}

// Executor drives one work item through the retry state machine.
// It is safe for concurrent use; all per-item state lives on the stack.
type Executor struct {
	attempter    Attempter
	policy       RetryPolicy
	tracer       trace.Tracer
	onTransition TransitionFunc
}

// ExecutorOption customizes an Executor.
type ExecutorOption func(*Executor)

// WithTracer wraps every item in a span from tracer.
func WithTracer(tracer trace.Tracer) ExecutorOption {
	return func(e *Executor) {
		if tracer != nil {
			e.tracer = tracer
		}
	}
}

// WithTransitions reports every state change to fn.
func WithTransitions(fn TransitionFunc) ExecutorOption {
	return func(e *Executor) {
		e.onTransition = fn
	}
}

// NewExecutor creates an Executor. An empty RetryableStatus set disables
// status-based retries; transport errors and timeouts stay retryable.
func NewExecutor(attempter Attempter, policy RetryPolicy, opts ...ExecutorOption) *Executor {
	if policy.MaxRetries < 0 {
		policy.MaxRetries = 0
	}
	if policy.Strategy == "" {
		policy.Strategy = BackoffExponential
	}
	e := &Executor{
		attempter: attempter,
		policy:    policy,
		tracer:    noop.NewTracerProvider().Tracer("volley"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Policy returns the effective retry policy.
func (e *Executor) Policy() RetryPolicy {
	return e.policy
}

// Execute runs item to a terminal state and returns its single Result.
//
// Cancelling ctx never aborts an attempt in flight: the HTTP call runs on a
// context detached from cancellation and is bounded by the client timeout.
// Cancellation is observed before each attempt and during backoff; an item
// stopped that way ends Failed with Interrupted set, or Skipped when no
// attempt was made.
func (e *Executor) Execute(ctx context.Context, item batch.WorkItem) Result {
	start := time.Now()
	ctx, span := tracing.StartItemSpan(ctx, e.tracer, item.Name, item.Spec.Method, item.Spec.URL)

	res := Result{Item: item}
	state := StatePending
	move := func(to State, wait time.Duration, err error) {
		if e.onTransition != nil {
			e.onTransition(Transition{
				Item:    item.Name,
				From:    state,
				To:      to,
				Attempt: res.Attempts,
				Wait:    wait,
				Err:     err,
			})
		}
		state = to
	}
	interrupt := func() {
		res.Interrupted = true
		if res.Attempts == 0 {
			res.Outcome = OutcomeSkipped
			res.ErrorKind = ErrorKindCancelled
			res.Err = context.Cause(ctx)
		} else {
			res.Outcome = OutcomeFailed
		}
		move(StateFailed, 0, res.Err)
	}

	for {
		if err := sleepContext(ctx, e.policy.PreAttemptDelay); err != nil {
			interrupt()
			break
		}

		res.Attempts++
		move(StateAttempting, 0, nil)

		resp, err := e.attempter.Attempt(context.WithoutCancel(ctx), &item.Spec)
		if resp != nil {
			res.Response = resp
		}
		verdict := e.policy.Classify(resp, err)
		tracing.RecordAttempt(span, res.Attempts, statusOf(resp), string(verdict.Kind))

		if verdict.Success {
			res.Outcome = OutcomeSucceeded
			res.ErrorKind = ErrorKindNone
			res.Err = nil
			move(StateSucceeded, 0, nil)
			break
		}

		res.ErrorKind = verdict.Kind
		res.Err = verdict.Err
		if !verdict.Retryable || res.Attempts > e.policy.MaxRetries {
			res.Outcome = OutcomeFailed
			move(StateFailed, 0, res.Err)
			break
		}
		if ctx.Err() != nil {
			interrupt()
			break
		}

		wait := e.policy.Delay(res.Attempts)
		move(StateRetryScheduled, wait, res.Err)
		if err := sleepContext(ctx, wait); err != nil {
			interrupt()
			break
		}
	}

	res.Elapsed = time.Since(start)
	tracing.EndSpan(span, res.Err,
		attribute.Int("volley.attempts", res.Attempts),
		attribute.String("volley.outcome", string(res.Outcome)),
		attribute.Bool("volley.interrupted", res.Interrupted),
	)
	return res
}

func statusOf(resp *httpclient.Response) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode
}

// sleepContext waits for d or until ctx is done. A zero wait still reports
// a cancelled context.
func sleepContext(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
