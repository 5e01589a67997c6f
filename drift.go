package ghWeb

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/ghWeb/binding"
	"github.com/rs/zerolog"
)

// DriftReport is one drift observation: the endpoint whose response no
// longer matches its binding, the detector's findings, and enough
// context to reproduce.
type DriftReport struct {
	Timestamp time.Time      `json:"timestamp"`
	Endpoint  string         `json:"endpoint"`
	RequestID string         `json:"request_id"`
	Report    binding.Report `json:"report"`
	// BodySnippet is a bounded slice of the offending body.
	BodySnippet string `json:"body_snippet,omitempty"`
	// Fatal distinguishes shape violations (the call failed) from
	// informational extra-field reports (the call succeeded).
	Fatal bool `json:"fatal"`
}

// DriftSink receives drift reports. Emit runs on the dispatcher
// goroutine, never on a calling goroutine, so a slow sink delays other
// reports but never a call.
type DriftSink interface {
	Emit(ctx context.Context, report DriftReport)
}

// NoOpSink discards reports.
type NoOpSink struct{}

// Emit discards the report.
func (NoOpSink) Emit(context.Context, DriftReport) {}

// ChannelSink forwards reports to a channel for test and pipeline
// consumption.
type ChannelSink struct {
	reports chan DriftReport
}

// NewChannelSink builds a ChannelSink with the given buffer.
func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{reports: make(chan DriftReport, buffer)}
}

// Emit forwards the report, giving up on context cancellation.
func (s *ChannelSink) Emit(ctx context.Context, report DriftReport) {
	select {
	case s.reports <- report:
	case <-ctx.Done():
	}
}

// Reports exposes the receiving side.
func (s *ChannelSink) Reports() <-chan DriftReport {
	return s.reports
}

// JSONWriterSink writes one JSON line per report.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

// NewJSONWriterSink builds a sink over w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{writer: w}
}

// Emit marshals and writes the report.
func (s *JSONWriterSink) Emit(_ context.Context, report DriftReport) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(report)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(data)
	_, _ = s.writer.Write([]byte("\n"))
}

// LoggerSink emits reports through a zerolog logger, warn for fatal
// violations and info for extra-field notes.
type LoggerSink struct {
	log zerolog.Logger
}

// NewLoggerSink builds a sink over log.
func NewLoggerSink(log zerolog.Logger) *LoggerSink {
	return &LoggerSink{log: log}
}

// Emit logs the report.
func (s *LoggerSink) Emit(_ context.Context, report DriftReport) {
	event := s.log.Info()
	if report.Fatal {
		event = s.log.Warn()
	}
	event.
		Str("endpoint", report.Endpoint).
		Str("request_id", report.RequestID).
		Str("drift", report.Report.Summary()).
		Msg("response shape drift")
}

// driftDispatcher decouples report delivery from the calling goroutine:
// reports go into a buffered channel and a single goroutine drains it
// into the sink. When the buffer is full the report is dropped and
// counted; drift reporting must never add latency to a call.
type driftDispatcher struct {
	sink      DriftSink
	ch        chan DriftReport
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

func newDriftDispatcher(cfg DriftConfig, sink DriftSink) *driftDispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &driftDispatcher{
		sink: sink,
		ch:   make(chan DriftReport, cfg.BufferSize),
		done: make(chan struct{}),
	}

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *driftDispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case report := <-d.ch:
			d.sink.Emit(context.Background(), report)
		case <-d.done:
			// Drain what was already queued, then stop.
			for {
				select {
				case report := <-d.ch:
					d.sink.Emit(context.Background(), report)
				default:
					return
				}
			}
		}
	}
}

func (d *driftDispatcher) report(r DriftReport) {
	if d == nil || d.closed.Load() {
		return
	}
	select {
	case d.ch <- r:
	default:
		d.dropped.Add(1)
	}
}

// Dropped returns how many reports were discarded on a full buffer.
func (d *driftDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

func (d *driftDispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}
