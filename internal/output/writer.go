package output

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/torosent/volley/internal/runner"
)

// Sink persists records. Sinks are only ever called from the writer's
// consumer goroutine.
type Sink interface {
	Write(rec Record) error
	Close() error
}

// Artifacts saves per-item files before the record is written.
type Artifacts interface {
	Save(rec Record, res runner.Result) error
}

// Observer sees every result after it has been persisted.
type Observer interface {
	ObserveResult(res runner.Result, artifactErr error)
}

// WriterOptions configure a Writer.
type WriterOptions struct {
	RunID     string
	Artifacts Artifacts // optional
	Primary   Sink      // optional; failures are fatal
	Secondary []Sink    // failures are logged only
	Observers []Observer
	Logger    zerolog.Logger
	// OnFatal is called once, from the consumer goroutine, when the primary
	// sink fails.
	OnFatal func(error)
	Buffer  int
}

// Writer serializes results from many workers onto a single consumer
// goroutine, which is the only code touching the sinks.
type Writer struct {
	opts      WriterOptions
	results   chan runner.Result
	done      chan struct{}
	startOnce sync.Once
	closeOnce sync.Once
	fatalErr  error
	closeErr  error
}

func NewWriter(opts WriterOptions) *Writer {
	if opts.Buffer <= 0 {
		opts.Buffer = 64
	}
	return &Writer{
		opts:    opts,
		results: make(chan runner.Result, opts.Buffer),
		done:    make(chan struct{}),
	}
}

// Start launches the consumer goroutine.
func (w *Writer) Start() {
	w.startOnce.Do(func() {
		go w.run()
	})
}

// Submit hands a result to the consumer. It is safe for concurrent use and
// must not be called after Close.
func (w *Writer) Submit(res runner.Result) {
	w.results <- res
}

// Close drains pending results, closes every sink and returns the first
// fatal error of the primary sink.
func (w *Writer) Close() error {
	w.closeOnce.Do(func() {
		w.Start()
		close(w.results)
		<-w.done

		if w.opts.Primary != nil {
			if err := w.opts.Primary.Close(); err != nil && w.fatalErr == nil {
				w.fatalErr = fmt.Errorf("close primary output: %w", err)
			}
		}
		for _, s := range w.opts.Secondary {
			if err := s.Close(); err != nil {
				w.opts.Logger.Warn().Err(err).Msg("closing secondary output failed")
			}
		}
		w.closeErr = w.fatalErr
	})
	return w.closeErr
}

func (w *Writer) run() {
	defer close(w.done)
	log := w.opts.Logger

	for res := range w.results {
		rec := NewRecord(w.opts.RunID, res)

		var artifactErr error
		if w.opts.Artifacts != nil {
			if err := w.opts.Artifacts.Save(rec, res); err != nil {
				artifactErr = err
				rec.ArtifactError = err.Error()
				log.Warn().Err(err).Str("item", rec.Name).Msg("artifact not saved")
			}
		}

		if w.opts.Primary != nil && w.fatalErr == nil {
			if err := w.opts.Primary.Write(rec); err != nil {
				w.fatalErr = fmt.Errorf("write primary output: %w", err)
				log.Error().Err(err).Str("item", rec.Name).Msg("primary output failed; stopping dispatch")
				if w.opts.OnFatal != nil {
					w.opts.OnFatal(w.fatalErr)
				}
			}
		}

		for _, s := range w.opts.Secondary {
			if err := s.Write(rec); err != nil {
				log.Warn().Err(err).Str("item", rec.Name).Msg("secondary output write failed")
			}
		}

		for _, o := range w.opts.Observers {
			o.ObserveResult(res, artifactErr)
		}
	}
}
