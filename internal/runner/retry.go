package runner

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/torosent/volley/internal/httpclient"
)

// BackoffStrategy selects how the wait grows between attempts.
type BackoffStrategy string

const (
	BackoffFixed       BackoffStrategy = "fixed"
	BackoffLinear      BackoffStrategy = "linear"
	BackoffExponential BackoffStrategy = "exponential"
)

const maxDuration = time.Duration(1<<63 - 1)

// RetryPolicy configures the per-item retry state machine.
type RetryPolicy struct {
	MaxRetries      int             // retries after the first attempt
	Backoff         time.Duration   // base wait
	Strategy        BackoffStrategy // defaults to exponential
	MaxBackoff      time.Duration   // 0 means no cap
	RetryableStatus StatusSet
	PreAttemptDelay time.Duration // slept before every attempt
}

// Delay returns the wait after the given failed attempt (1-based).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if p.Backoff <= 0 || attempt < 1 {
		return 0
	}

	var d time.Duration
	switch p.Strategy {
	case BackoffFixed:
		d = p.Backoff
	case BackoffLinear:
		d = p.Backoff * time.Duration(attempt)
	default:
		shift := uint(attempt - 1)
		if shift > 62 || p.Backoff > maxDuration>>shift {
			d = maxDuration
		} else {
			d = p.Backoff << shift
		}
	}

	if p.MaxBackoff > 0 && d > p.MaxBackoff {
		d = p.MaxBackoff
	}
	return d
}

// Verdict is the classification of one attempt.
type Verdict struct {
	Success   bool
	Kind      ErrorKind
	Retryable bool
	Err       error
}

// Classify decides whether an attempt succeeded and, if not, whether it may
// be retried. Exactly one of resp and err is expected to be non-nil.
func (p RetryPolicy) Classify(resp *httpclient.Response, err error) Verdict {
	if err != nil {
		var reqErr *httpclient.RequestError
		switch {
		case errors.As(err, &reqErr):
			return Verdict{Kind: ErrorKindRequest, Err: err}
		case isTimeout(err):
			return Verdict{Kind: ErrorKindTimeout, Retryable: true, Err: err}
		default:
			return Verdict{Kind: ErrorKindTransport, Retryable: true, Err: err}
		}
	}
	if resp == nil {
		return Verdict{Kind: ErrorKindTransport, Retryable: true, Err: errors.New("no response")}
	}

	status := resp.StatusCode
	retryable := p.RetryableStatus.Contains(status)
	if !retryable && status < 400 {
		return Verdict{Success: true}
	}

	kind := ErrorKindProtocol
	if status >= 400 && status < 500 {
		kind = ErrorKindClient
	}
	return Verdict{Kind: kind, Retryable: retryable, Err: &HTTPError{StatusCode: status}}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// statusRange is an inclusive range of HTTP status codes.
type statusRange struct {
	lo, hi int
}

// StatusSet is a set of HTTP status codes built from expressions such as
// "5xx,429" or "500-504".
type StatusSet struct {
	ranges []statusRange
}

// DefaultRetryableStatus is the set used when none is configured.
func DefaultRetryableStatus() StatusSet {
	return StatusSet{ranges: []statusRange{{500, 599}}}
}

// ParseStatusSet parses a comma separated list of codes, classes ("5xx") and
// ranges ("500-504"). An empty expression yields an empty set.
func ParseStatusSet(expr string) (StatusSet, error) {
	var set StatusSet
	for _, raw := range strings.Split(expr, ",") {
		token := strings.ToLower(strings.TrimSpace(raw))
		if token == "" {
			continue
		}

		switch {
		case len(token) == 3 && strings.HasSuffix(token, "xx"):
			class, err := strconv.Atoi(token[:1])
			if err != nil || class < 1 || class > 5 {
				return StatusSet{}, fmt.Errorf("invalid status class %q", raw)
			}
			set.ranges = append(set.ranges, statusRange{class * 100, class*100 + 99})
		case strings.Contains(token, "-"):
			loStr, hiStr, _ := strings.Cut(token, "-")
			lo, err1 := parseStatusCode(loStr)
			hi, err2 := parseStatusCode(hiStr)
			if err1 != nil || err2 != nil || lo > hi {
				return StatusSet{}, fmt.Errorf("invalid status range %q", raw)
			}
			set.ranges = append(set.ranges, statusRange{lo, hi})
		default:
			code, err := parseStatusCode(token)
			if err != nil {
				return StatusSet{}, fmt.Errorf("invalid status code %q", raw)
			}
			set.ranges = append(set.ranges, statusRange{code, code})
		}
	}
	sort.Slice(set.ranges, func(i, j int) bool { return set.ranges[i].lo < set.ranges[j].lo })
	return set, nil
}

func parseStatusCode(s string) (int, error) {
	code, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	if code < 100 || code > 599 {
		return 0, fmt.Errorf("status %d out of range", code)
	}
	return code, nil
}

// Contains reports whether code is in the set.
func (s StatusSet) Contains(code int) bool {
	for _, r := range s.ranges {
		if code >= r.lo && code <= r.hi {
			return true
		}
	}
	return false
}

// Empty reports whether the set matches no status.
func (s StatusSet) Empty() bool {
	return len(s.ranges) == 0
}

func (s StatusSet) String() string {
	parts := make([]string, 0, len(s.ranges))
	for _, r := range s.ranges {
		switch {
		case r.lo == r.hi:
			parts = append(parts, strconv.Itoa(r.lo))
		case r.lo%100 == 0 && r.hi == r.lo+99:
			parts = append(parts, fmt.Sprintf("%dxx", r.lo/100))
		default:
			parts = append(parts, fmt.Sprintf("%d-%d", r.lo, r.hi))
		}
	}
	return strings.Join(parts, ",")
}
