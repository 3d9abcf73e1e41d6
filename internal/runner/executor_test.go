package runner_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/torosent/volley/internal/batch"
	"github.com/torosent/volley/internal/httpclient"
	"github.com/torosent/volley/internal/runner"
)

// scriptedAttempter returns statuses (or errors) in order, repeating the last entry.
type scriptedAttempter struct {
	mu     sync.Mutex
	script []scriptStep
	calls  int
}

type scriptStep struct {
	status int
	err    error
}

func (s *scriptedAttempter) Attempt(ctx context.Context, spec *httpclient.RequestSpec) (*httpclient.Response, error) {
	s.mu.Lock()
	idx := s.calls
	if idx >= len(s.script) {
		idx = len(s.script) - 1
	}
	s.calls++
	step := s.script[idx]
	s.mu.Unlock()

	if step.err != nil {
		return nil, step.err
	}
	return &httpclient.Response{StatusCode: step.status, Body: []byte("ok")}, nil
}

func (s *scriptedAttempter) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func testItem(name string) batch.WorkItem {
	return batch.WorkItem{
		Name: name,
		Spec: httpclient.RequestSpec{Method: http.MethodGet, URL: "http://example.invalid/"},
	}
}

func TestExecutorSucceedsFirstAttempt(t *testing.T) {
	att := &scriptedAttempter{script: []scriptStep{{status: 200}}}
	exec := runner.NewExecutor(att, runner.RetryPolicy{MaxRetries: 3, RetryableStatus: runner.DefaultRetryableStatus()})

	res := exec.Execute(context.Background(), testItem("req0"))
	if res.Outcome != runner.OutcomeSucceeded {
		t.Fatalf("Outcome = %q, want succeeded", res.Outcome)
	}
	if res.Attempts != 1 || res.Retries() != 0 {
		t.Errorf("Attempts = %d, want 1", res.Attempts)
	}
	if res.StatusCode() != 200 || res.Err != nil || res.ErrorKind != runner.ErrorKindNone {
		t.Errorf("result = %+v", res)
	}
}

func TestExecutorRetriesThenSucceeds(t *testing.T) {
	att := &scriptedAttempter{script: []scriptStep{
		{err: errors.New("connection reset")},
		{status: 502},
		{status: 201},
	}}
	var transitions []runner.Transition
	exec := runner.NewExecutor(att, runner.RetryPolicy{
		MaxRetries:      2,
		Backoff:         time.Millisecond,
		Strategy:        runner.BackoffLinear,
		RetryableStatus: runner.DefaultRetryableStatus(),
	}, runner.WithTransitions(func(tr runner.Transition) {
		transitions = append(transitions, tr)
	}))

	res := exec.Execute(context.Background(), testItem("req0"))
	if res.Outcome != runner.OutcomeSucceeded || res.Attempts != 3 {
		t.Fatalf("Outcome/Attempts = %q/%d, want succeeded/3", res.Outcome, res.Attempts)
	}
	if res.StatusCode() != 201 {
		t.Errorf("StatusCode() = %d, want 201", res.StatusCode())
	}

	want := []runner.State{
		runner.StateAttempting, runner.StateRetryScheduled,
		runner.StateAttempting, runner.StateRetryScheduled,
		runner.StateAttempting, runner.StateSucceeded,
	}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %d, want %d", len(transitions), len(want))
	}
	if transitions[0].From != runner.StatePending {
		t.Errorf("first transition from %s, want pending", transitions[0].From)
	}
	for i, tr := range transitions {
		if tr.To != want[i] {
			t.Errorf("transition %d to %s, want %s", i, tr.To, want[i])
		}
	}
	if transitions[3].Wait != 2*time.Millisecond {
		t.Errorf("second backoff = %s, want 2ms", transitions[3].Wait)
	}
}

func TestExecutorExhaustsRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	var calls int64
	doer := httpclient.NewDoer(server.Client())
	att := runner.AttempterFunc(func(ctx context.Context, spec *httpclient.RequestSpec) (*httpclient.Response, error) {
		atomic.AddInt64(&calls, 1)
		return doer.Attempt(ctx, spec)
	})
	exec := runner.NewExecutor(att, runner.RetryPolicy{
		MaxRetries:      2,
		Backoff:         100 * time.Millisecond,
		Strategy:        runner.BackoffFixed,
		RetryableStatus: runner.DefaultRetryableStatus(),
	})

	item := batch.WorkItem{Name: "req0", Spec: httpclient.RequestSpec{Method: http.MethodGet, URL: server.URL}}
	res := exec.Execute(context.Background(), item)

	if res.Outcome != runner.OutcomeFailed {
		t.Fatalf("Outcome = %q, want failed", res.Outcome)
	}
	if res.Attempts != 3 || atomic.LoadInt64(&calls) != 3 {
		t.Errorf("Attempts = %d, calls = %d, want 3", res.Attempts, calls)
	}
	if res.Elapsed < 200*time.Millisecond {
		t.Errorf("Elapsed = %s, want >= 200ms", res.Elapsed)
	}
	if res.ErrorKind != runner.ErrorKindProtocol || res.StatusCode() != 503 {
		t.Errorf("ErrorKind/Status = %q/%d", res.ErrorKind, res.StatusCode())
	}
	var httpErr *runner.HTTPError
	if !errors.As(res.Err, &httpErr) || httpErr.StatusCode != 503 {
		t.Errorf("Err = %v, want HTTPError 503", res.Err)
	}
	if res.Interrupted {
		t.Error("Interrupted = true, want false")
	}
}

func TestExecutorNonRetryableStopsImmediately(t *testing.T) {
	tests := []struct {
		name     string
		step     scriptStep
		wantKind runner.ErrorKind
	}{
		{"client error", scriptStep{status: 404}, runner.ErrorKindClient},
		{"request error", scriptStep{err: &httpclient.RequestError{Err: errors.New("bad")}}, runner.ErrorKindRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			att := &scriptedAttempter{script: []scriptStep{tt.step}}
			exec := runner.NewExecutor(att, runner.RetryPolicy{MaxRetries: 5, Backoff: time.Millisecond, RetryableStatus: runner.DefaultRetryableStatus()})
			res := exec.Execute(context.Background(), testItem("x"))
			if res.Outcome != runner.OutcomeFailed || res.Attempts != 1 {
				t.Fatalf("Outcome/Attempts = %q/%d, want failed/1", res.Outcome, res.Attempts)
			}
			if res.ErrorKind != tt.wantKind {
				t.Errorf("ErrorKind = %q, want %q", res.ErrorKind, tt.wantKind)
			}
		})
	}
}

func TestExecutorAttemptCountBounds(t *testing.T) {
	for maxRetries := 0; maxRetries <= 3; maxRetries++ {
		att := &scriptedAttempter{script: []scriptStep{{err: errors.New("refused")}}}
		exec := runner.NewExecutor(att, runner.RetryPolicy{MaxRetries: maxRetries, Strategy: runner.BackoffFixed})
		res := exec.Execute(context.Background(), testItem("x"))
		if res.Attempts != maxRetries+1 {
			t.Errorf("maxRetries=%d: Attempts = %d, want %d", maxRetries, res.Attempts, maxRetries+1)
		}
		if res.ErrorKind != runner.ErrorKindTransport {
			t.Errorf("maxRetries=%d: ErrorKind = %q", maxRetries, res.ErrorKind)
		}
	}
}

func TestExecutorInterruptedDuringBackoff(t *testing.T) {
	att := &scriptedAttempter{script: []scriptStep{{status: 500}}}
	exec := runner.NewExecutor(att, runner.RetryPolicy{
		MaxRetries:      5,
		Backoff:         time.Hour,
		Strategy:        runner.BackoffFixed,
		RetryableStatus: runner.DefaultRetryableStatus(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	done := make(chan runner.Result, 1)
	go func() { done <- exec.Execute(ctx, testItem("x")) }()

	select {
	case res := <-done:
		if res.Outcome != runner.OutcomeFailed || !res.Interrupted {
			t.Fatalf("result = %+v, want failed and interrupted", res)
		}
		if res.Attempts != 1 {
			t.Errorf("Attempts = %d, want 1", res.Attempts)
		}
		if res.StatusCode() != 500 {
			t.Errorf("StatusCode() = %d, want last response 500", res.StatusCode())
		}
	case <-time.After(2 * time.Second):
		t.Fatal("executor did not observe cancellation during backoff")
	}
}

func TestExecutorInFlightAttemptIgnoresCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	att := runner.AttempterFunc(func(actx context.Context, spec *httpclient.RequestSpec) (*httpclient.Response, error) {
		cancel()
		time.Sleep(10 * time.Millisecond)
		if actx.Err() != nil {
			return nil, actx.Err()
		}
		return &httpclient.Response{StatusCode: 200}, nil
	})
	exec := runner.NewExecutor(att, runner.RetryPolicy{})
	res := exec.Execute(ctx, testItem("x"))
	if res.Outcome != runner.OutcomeSucceeded {
		t.Fatalf("Outcome = %q, want succeeded: attempt context must not be cancelled", res.Outcome)
	}
}

func TestExecutorSkippedWhenCancelledBeforeFirstAttempt(t *testing.T) {
	att := &scriptedAttempter{script: []scriptStep{{status: 200}}}
	exec := runner.NewExecutor(att, runner.RetryPolicy{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := exec.Execute(ctx, testItem("x"))
	if res.Outcome != runner.OutcomeSkipped || res.Attempts != 0 || !res.Interrupted {
		t.Fatalf("result = %+v, want skipped", res)
	}
	if att.Calls() != 0 {
		t.Errorf("attempter called %d times, want 0", att.Calls())
	}
}

func TestExecutorRecordsSpan(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	att := &scriptedAttempter{script: []scriptStep{{status: 503}, {status: 200}}}
	exec := runner.NewExecutor(att, runner.RetryPolicy{MaxRetries: 1, RetryableStatus: runner.DefaultRetryableStatus()},
		runner.WithTracer(tp.Tracer("test")))

	exec.Execute(context.Background(), testItem("req7"))

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("spans = %d, want 1", len(spans))
	}
	if spans[0].Name != "GET req7" {
		t.Errorf("span name = %q", spans[0].Name)
	}
	if len(spans[0].Events) != 2 {
		t.Errorf("attempt events = %d, want 2", len(spans[0].Events))
	}
}
