package parallel

import (
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// RunInfo describes one completed Pool dispatch.
type RunInfo struct {
	StartedAt time.Time     `json:"started_at"`
	Begin     int           `json:"begin"`
	End       int           `json:"end"`
	Workers   int           `json:"workers"`
	Spans     []Span        `json:"spans"`
	Duration  time.Duration `json:"duration_ns"`
}

// Observer receives a RunInfo after every non-empty dispatch. It is called
// from the goroutine that called Run, after the barrier.
type Observer interface {
	ObserveRun(RunInfo)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(RunInfo)

func (f ObserverFunc) ObserveRun(ri RunInfo) { f(ri) }

// Stats are cumulative counters for a Pool.
type Stats struct {
	Runs    uint64 `json:"runs"`
	Indices uint64 `json:"indices"`
	Killed  bool   `json:"killed"`
}

// Option configures a Pool (and the Pool owned by a Map).
type Option func(*Pool)

// WithLogger sets the lifecycle logger. The default discards output.
func WithLogger(l *log.Logger) Option {
	return func(p *Pool) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithObserver registers an observer for completed runs.
func WithObserver(o Observer) Option {
	return func(p *Pool) { p.observer = o }
}

type task struct {
	span Span
	work Work
	done *sync.WaitGroup
}

// Pool is a fixed set of persistent workers. Each Run splits its range over
// the workers and blocks until all of them are done. Runs on the same Pool
// are serialised.
type Pool struct {
	workers  int
	logger   *log.Logger
	observer Observer

	// mu is held for the whole of a dispatch and by Kill.
	mu     sync.Mutex
	killed atomic.Bool
	tasks  []chan task
	wg     sync.WaitGroup

	runs    atomic.Uint64
	indices atomic.Uint64
}

// NewPool starts n workers; n == 0 uses DefaultWorkers.
func NewPool(n int, opts ...Option) (*Pool, error) {
	n, err := resolveWorkers(n)
	if err != nil {
		return nil, err
	}
	p := &Pool{
		workers: n,
		logger:  log.New(io.Discard, "", 0),
		tasks:   make([]chan task, n),
	}
	for _, opt := range opts {
		opt(p)
	}
	for w := range p.tasks {
		ch := make(chan task, 1)
		p.tasks[w] = ch
		p.wg.Add(1)
		go p.loop(ch)
	}
	p.logger.Printf("pool start workers=%d", n)
	return p, nil
}

// Workers returns the size of the worker set.
func (p *Pool) Workers() int { return p.workers }

// Stats returns a snapshot of the pool counters. It does not wait for an
// in-flight Run.
func (p *Pool) Stats() Stats {
	return Stats{
		Runs:    p.runs.Load(),
		Indices: p.indices.Load(),
		Killed:  p.killed.Load(),
	}
}

// Run calls work for every i in [begin, end). Worker w handles the w-th span
// of Partition(begin, end, Workers()).
//
// Concurrent Runs on one Pool are serialised: a second caller blocks until
// the first run's barrier completes. Calling Run or Kill on the same Pool
// from inside work therefore deadlocks.
func (p *Pool) Run(work Work, begin, end int) error {
	if err := checkRange(begin, end); err != nil {
		return err
	}
	return p.dispatch(work, begin, end, nil)
}

func (p *Pool) dispatch(work Work, begin, end int, spans []Span) error {
	p.mu.Lock()
	if p.killed.Load() {
		p.mu.Unlock()
		return ErrLifecycle
	}
	if begin == end {
		p.mu.Unlock()
		return nil
	}
	if spans == nil {
		spans = Partition(begin, end, p.workers)
	}

	start := time.Now()
	var done sync.WaitGroup
	for w, sp := range spans {
		if sp.Len() == 0 {
			continue
		}
		done.Add(1)
		p.tasks[w] <- task{span: sp, work: work, done: &done}
	}
	done.Wait()
	elapsed := time.Since(start)

	p.runs.Add(1)
	p.indices.Add(uint64(end - begin))
	p.mu.Unlock()

	if p.observer != nil {
		p.observer.ObserveRun(RunInfo{
			StartedAt: start.UTC(),
			Begin:     begin,
			End:       end,
			Workers:   p.workers,
			Spans:     append([]Span(nil), spans...),
			Duration:  elapsed,
		})
	}
	return nil
}

// Kill stops every worker once its current span (if any) is finished and
// waits for them to exit. Later calls to Run return ErrLifecycle. Kill on a
// killed pool does nothing.
func (p *Pool) Kill() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.killed.Load() {
		return
	}
	p.killed.Store(true)
	for _, ch := range p.tasks {
		close(ch)
	}
	p.wg.Wait()
	p.tasks = nil
	p.logger.Printf("pool killed runs=%d indices=%d", p.runs.Load(), p.indices.Load())
}

func (p *Pool) loop(ch <-chan task) {
	defer p.wg.Done()
	for t := range ch {
		runSpan(t.span, t.work)
		t.done.Done()
	}
}
