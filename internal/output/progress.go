package output

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/torosent/volley/internal/metrics"
)

// ProgressReporter periodically prints batch progress on one line.
type ProgressReporter struct {
	collector *metrics.Collector
	total     int
	interval  time.Duration
	done      chan struct{}
	finished  chan struct{}
	writer    io.Writer
	active    int32
	start     time.Time
}

// NewProgressReporter creates a progress reporter that updates at the given interval.
func NewProgressReporter(collector *metrics.Collector, total int, interval time.Duration, writer io.Writer) *ProgressReporter {
	if writer == nil {
		writer = io.Discard
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &ProgressReporter{
		collector: collector,
		total:     total,
		interval:  interval,
		done:      make(chan struct{}),
		finished:  make(chan struct{}),
		writer:    writer,
		start:     time.Now(),
	}
}

// Start begins displaying progress updates in a background goroutine.
func (p *ProgressReporter) Start() {
	if !atomic.CompareAndSwapInt32(&p.active, 0, 1) {
		return // already running
	}
	go p.run()
}

// Stop halts progress updates and prints a final line.
func (p *ProgressReporter) Stop() {
	if atomic.CompareAndSwapInt32(&p.active, 1, 2) {
		close(p.done)
		<-p.finished
		p.print()
		fmt.Fprintln(p.writer)
	}
}

func (p *ProgressReporter) run() {
	defer close(p.finished)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.print()
		case <-p.done:
			return
		}
	}
}

func (p *ProgressReporter) print() {
	elapsed := time.Since(p.start)
	s := p.collector.Summary(p.total, elapsed)
	done := s.Succeeded + s.Failed
	fmt.Fprintf(p.writer, "\rItems: %d/%d | Succeeded: %d | Failed: %d | Retries: %d | %.1f items/s",
		done, p.total, s.Succeeded, s.Failed, s.Retries, s.ItemsPerSec)
}
