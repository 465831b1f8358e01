// Package worker drains the scan feed and runs each scan through the pipeline.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strconv"
	"sync"
	"time"

	"rollcall/internal/attendance"
)

const (
	defaultWorkerMultiplier = 4
	writebackTimeout        = 5 * time.Second
)

// Processor decides the outcome of one scan.
type Processor interface {
	Process(ctx context.Context, evt attendance.ScanEvent) attendance.Outcome
}

// Source delivers scans and accepts outcome write-backs.
type Source interface {
	Subscribe(ctx context.Context) (<-chan attendance.ScanEvent, error)
	WriteOutcome(ctx context.Context, id string, out attendance.Outcome) error
}

// Recorder receives worker-level metrics.
type Recorder interface {
	ScanStarted()
	ScanFinished()
	WritebackFailed()
}

type nopRecorder struct{}

func (nopRecorder) ScanStarted()     {}
func (nopRecorder) ScanFinished()    {}
func (nopRecorder) WritebackFailed() {}

// Pool runs a fixed number of workers over one subscription.
type Pool struct {
	size      int
	source    Source
	processor Processor
	recorder  Recorder
	logger    *slog.Logger
}

// Option configures a Pool.
type Option func(*Pool)

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(p *Pool) {
		if r != nil {
			p.recorder = r
		}
	}
}

// WithLogger sets a custom logger for the pool.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pool) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewPool creates a pool of size workers. A size below one picks a default
// based on the CPU count.
func NewPool(size int, source Source, processor Processor, opts ...Option) *Pool {
	if size < 1 {
		size = runtime.NumCPU() * defaultWorkerMultiplier
	}
	p := &Pool{
		size:      size,
		source:    source,
		processor: processor,
		recorder:  nopRecorder{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run subscribes and processes scans until ctx is canceled. Scans already
// taken off the feed are finished and written back before Run returns.
func (p *Pool) Run(ctx context.Context) error {
	scans, err := p.source.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	p.logger.InfoContext(ctx, "worker pool started", slog.Int("workers", p.size))
	var wg sync.WaitGroup
	for i := 0; i < p.size; i++ {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			p.work(ctx, name, scans)
		}("worker-" + strconv.Itoa(i))
	}
	wg.Wait()
	p.logger.Info("worker pool stopped")
	return nil
}

func (p *Pool) work(ctx context.Context, name string, scans <-chan attendance.ScanEvent) {
	for evt := range scans {
		p.handle(context.WithoutCancel(ctx), name, evt)
	}
}

// handle processes one scan and writes its outcome back exactly once.
func (p *Pool) handle(ctx context.Context, name string, evt attendance.ScanEvent) {
	p.recorder.ScanStarted()
	defer p.recorder.ScanFinished()

	out := p.processor.Process(ctx, evt)

	wctx, cancel := context.WithTimeout(ctx, writebackTimeout)
	defer cancel()
	if err := p.source.WriteOutcome(wctx, evt.ID, out); err != nil {
		p.recorder.WritebackFailed()
		p.logger.WarnContext(ctx, "outcome write-back failed",
			slog.String("worker", name),
			slog.String("scan_id", evt.ID),
			slog.String("status", string(out.Status)),
			slog.Any("error", err),
		)
		return
	}
	p.logger.DebugContext(ctx, "scan handled",
		slog.String("worker", name),
		slog.String("scan_id", evt.ID),
		slog.String("status", string(out.Status)),
		slog.String("reason", out.Reason),
	)
}
