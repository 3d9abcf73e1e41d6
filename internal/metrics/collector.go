package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/torosent/volley/internal/runner"
)

// Collector records terminal results in a thread-safe manner.
type Collector struct {
	mu             sync.Mutex
	hist           *hdrhistogram.Histogram
	observed       int
	succeeded      int
	failed         int
	retries        int
	interrupted    int
	artifactErrors int
	minLatency     time.Duration
	maxLatency     time.Duration
	sumLatency     time.Duration
	statusCodes    map[string]int
	errorKinds     map[string]int
}

// Summary is the aggregate view of a finished (or cancelled) batch.
type Summary struct {
	RunID          string        `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Total          int           `json:"total" yaml:"total"`
	Succeeded      int           `json:"succeeded" yaml:"succeeded"`
	Failed         int           `json:"failed" yaml:"failed"`
	NotAttempted   int           `json:"not_attempted" yaml:"not_attempted"`
	Retries        int           `json:"retries" yaml:"retries"`
	Interrupted    int           `json:"interrupted" yaml:"interrupted"`
	ArtifactErrors int           `json:"artifact_errors" yaml:"artifact_errors"`
	MinLatency     time.Duration `json:"-" yaml:"-"`
	MaxLatency     time.Duration `json:"-" yaml:"-"`
	MeanLatency    time.Duration `json:"-" yaml:"-"`
	P50Latency     time.Duration `json:"-" yaml:"-"`
	P90Latency     time.Duration `json:"-" yaml:"-"`
	P99Latency     time.Duration `json:"-" yaml:"-"`
	Duration       time.Duration `json:"-" yaml:"-"`
	ItemsPerSec    float64       `json:"items_per_sec" yaml:"items_per_sec"`

	// Serialization-friendly millisecond fields.
	MinLatencyMs  float64        `json:"min_latency_ms" yaml:"min_latency_ms"`
	MaxLatencyMs  float64        `json:"max_latency_ms" yaml:"max_latency_ms"`
	MeanLatencyMs float64        `json:"mean_latency_ms" yaml:"mean_latency_ms"`
	P50LatencyMs  float64        `json:"p50_latency_ms" yaml:"p50_latency_ms"`
	P90LatencyMs  float64        `json:"p90_latency_ms" yaml:"p90_latency_ms"`
	P99LatencyMs  float64        `json:"p99_latency_ms" yaml:"p99_latency_ms"`
	DurationMs    float64        `json:"duration_ms" yaml:"duration_ms"`
	StatusCodes   map[string]int `json:"status_codes,omitempty" yaml:"status_codes,omitempty"`
	ErrorKinds    map[string]int `json:"error_kinds,omitempty" yaml:"error_kinds,omitempty"`
}

// AllSucceeded reports whether every item in the batch succeeded.
func (s Summary) AllSucceeded() bool {
	return s.Failed == 0 && s.NotAttempted == 0 && s.Succeeded == s.Total
}

func NewCollector() *Collector {
	// Track latencies from 1µs up to 1h with 3 significant figures.
	h := hdrhistogram.New(1, 3_600_000_000, 3)
	return &Collector{
		hist:        h,
		statusCodes: make(map[string]int),
		errorKinds:  make(map[string]int),
	}
}

// ObserveResult records one terminal result. artifactErr is the artifact
// store failure for the item, if any.
func (c *Collector) ObserveResult(res runner.Result, artifactErr error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.observed++
	latency := res.Elapsed
	us := latency.Microseconds()
	if us < c.hist.LowestTrackableValue() {
		us = c.hist.LowestTrackableValue()
	}
	if us > c.hist.HighestTrackableValue() {
		us = c.hist.HighestTrackableValue()
	}
	_ = c.hist.RecordValue(us)
	c.sumLatency += latency
	if c.observed == 1 || latency < c.minLatency {
		c.minLatency = latency
	}
	if latency > c.maxLatency {
		c.maxLatency = latency
	}

	if res.Succeeded() {
		c.succeeded++
	} else {
		c.failed++
	}
	c.retries += res.Retries()
	if res.Interrupted {
		c.interrupted++
	}
	if artifactErr != nil {
		c.artifactErrors++
	}
	if code := res.StatusCode(); code > 0 {
		c.statusCodes[strconv.Itoa(code)]++
	}
	if res.ErrorKind != runner.ErrorKindNone {
		c.errorKinds[string(res.ErrorKind)]++
	}
}

// Summary computes the aggregate for a batch of total items that ran for elapsed.
func (c *Collector) Summary(total int, elapsed time.Duration) Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	if total < c.observed {
		total = c.observed
	}
	s := Summary{
		Total:          total,
		Succeeded:      c.succeeded,
		Failed:         c.failed,
		NotAttempted:   total - c.observed,
		Retries:        c.retries,
		Interrupted:    c.interrupted,
		ArtifactErrors: c.artifactErrors,
		MinLatency:     c.minLatency,
		MaxLatency:     c.maxLatency,
	}

	if c.observed > 0 {
		s.MeanLatency = time.Duration(int64(c.sumLatency) / int64(c.observed))
	}
	if c.hist.TotalCount() > 0 {
		s.P50Latency = time.Duration(c.hist.ValueAtQuantile(50)) * time.Microsecond
		s.P90Latency = time.Duration(c.hist.ValueAtQuantile(90)) * time.Microsecond
		s.P99Latency = time.Duration(c.hist.ValueAtQuantile(99)) * time.Microsecond
	}

	s.MinLatencyMs = toMs(s.MinLatency)
	s.MaxLatencyMs = toMs(s.MaxLatency)
	s.MeanLatencyMs = toMs(s.MeanLatency)
	s.P50LatencyMs = toMs(s.P50Latency)
	s.P90LatencyMs = toMs(s.P90Latency)
	s.P99LatencyMs = toMs(s.P99Latency)

	s.Duration = elapsed
	s.DurationMs = toMs(elapsed)
	if elapsed > 0 && c.observed > 0 {
		s.ItemsPerSec = float64(c.observed) / elapsed.Seconds()
	}

	if len(c.statusCodes) > 0 {
		s.StatusCodes = make(map[string]int, len(c.statusCodes))
		for k, v := range c.statusCodes {
			s.StatusCodes[k] = v
		}
	}
	if len(c.errorKinds) > 0 {
		s.ErrorKinds = make(map[string]int, len(c.errorKinds))
		for k, v := range c.errorKinds {
			s.ErrorKinds[k] = v
		}
	}
	return s
}

// Observed returns how many results have been recorded so far.
func (c *Collector) Observed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.observed
}

func toMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
