package runner

import (
	"fmt"
	"net/http"
	"time"

	"github.com/torosent/volley/internal/batch"
	"github.com/torosent/volley/internal/httpclient"
)

// Outcome is the terminal state of a work item.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	// OutcomeSkipped marks an item that was dispatched but cancelled before
	// its first attempt. It is counted as not attempted.
	OutcomeSkipped Outcome = "skipped"
)

// ErrorKind classifies why an attempt failed.
type ErrorKind string

const (
	ErrorKindNone      ErrorKind = ""
	ErrorKindTransport ErrorKind = "transport"
	ErrorKindTimeout   ErrorKind = "timeout"
	ErrorKindProtocol  ErrorKind = "protocol"
	ErrorKindClient    ErrorKind = "client"
	ErrorKindRequest   ErrorKind = "request"
	ErrorKindCancelled ErrorKind = "cancelled"
)

// State is a step of the per-item retry state machine.
type State int

const (
	StatePending State = iota
	StateAttempting
	StateRetryScheduled
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateAttempting:
		return "attempting"
	case StateRetryScheduled:
		return "retry_scheduled"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further transitions can follow s.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// Transition describes one state change of an item.
type Transition struct {
	Item    string
	From    State
	To      State
	Attempt int
	Wait    time.Duration // backoff before the next attempt, set on RetryScheduled
	Err     error
}

// TransitionFunc observes state changes. It runs on the executing goroutine.
type TransitionFunc func(Transition)

// HTTPError represents a response whose status was treated as a failure.
type HTTPError struct {
	StatusCode int
}

func (e *HTTPError) Error() string {
	if text := http.StatusText(e.StatusCode); text != "" {
		return fmt.Sprintf("HTTP %d %s", e.StatusCode, text)
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// Result is the single terminal record produced for a work item.
type Result struct {
	Item      batch.WorkItem
	Outcome   Outcome
	Response  *httpclient.Response // last response received, if any
	ErrorKind ErrorKind
	Err       error
	// Elapsed runs from the first attempt to the terminal state, backoff included.
	Elapsed     time.Duration
	Attempts    int
	Interrupted bool
}

// StatusCode returns the last received status, or 0 when none arrived.
func (r Result) StatusCode() int {
	if r.Response == nil {
		return 0
	}
	return r.Response.StatusCode
}

// Retries returns the number of attempts beyond the first.
func (r Result) Retries() int {
	if r.Attempts <= 1 {
		return 0
	}
	return r.Attempts - 1
}

// Succeeded reports whether the item ended in the Succeeded state.
func (r Result) Succeeded() bool {
	return r.Outcome == OutcomeSucceeded
}
