// Package pool provides the bounded worker pool that runs participant turns
// and media side effects, plus pooled byte buffers.
package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

var (
	ErrPoolClosed = errors.New("pool is closed")
	ErrPoolFull   = errors.New("pool is full")
)

// Task represents a unit of work.
type Task func(ctx context.Context) error

// PanicError is returned for a task that panicked.
type PanicError struct {
	Task  string
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("task %s panicked: %v", e.Task, e.Value)
}

// Config configures the pool.
type Config struct {
	MaxWorkers int `json:"max_workers" yaml:"max_workers"`
	QueueSize  int `json:"queue_size" yaml:"queue_size"`
}

// DefaultConfig sizes the pool for one round of up to five participants.
func DefaultConfig() Config {
	return Config{
		MaxWorkers: 8,
		QueueSize:  32,
	}
}

// EffectsConfig sizes a side-effect pool. The queue is short so that
// TrySubmit rejects work instead of piling up behind long video jobs.
func EffectsConfig() Config {
	return Config{
		MaxWorkers: 2,
		QueueSize:  4,
	}
}

// Pool runs named tasks on a fixed set of workers.
type Pool struct {
	cfg    Config
	queue  chan job
	logger *zap.Logger

	mu     sync.RWMutex // guards closed against concurrent sends
	closed bool
	wg     sync.WaitGroup

	workers atomic.Int32
	active  atomic.Int32

	submitted atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	rejected  atomic.Int64
	panicked  atomic.Int64

	// OnDone is called after each task with its name and result. Set it
	// before the first Submit.
	OnDone func(name string, err error, elapsed time.Duration)
}

type job struct {
	name string
	task Task
	ctx  context.Context
}

// New creates a pool. Zero config fields take DefaultConfig values.
func New(cfg Config, logger *zap.Logger) *Pool {
	def := DefaultConfig()
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = def.MaxWorkers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pool{
		cfg:    cfg,
		queue:  make(chan job, cfg.QueueSize),
		logger: logger.With(zap.String("component", "worker_pool")),
	}
	p.wg.Add(cfg.MaxWorkers)
	for i := 0; i < cfg.MaxWorkers; i++ {
		go p.work()
	}
	p.workers.Store(int32(cfg.MaxWorkers))
	return p
}

// Submit queues a task, blocking while the queue is full until ctx is done.
func (p *Pool) Submit(ctx context.Context, name string, task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.queue <- job{name: name, task: task, ctx: ctx}:
		p.submitted.Add(1)
		return nil
	case <-ctx.Done():
		p.rejected.Add(1)
		return ctx.Err()
	}
}

// TrySubmit queues a task without blocking. Fire-and-forget work uses it so a
// saturated pool drops the task instead of stalling the caller.
func (p *Pool) TrySubmit(ctx context.Context, name string, task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.queue <- job{name: name, task: task, ctx: ctx}:
		p.submitted.Add(1)
		return nil
	default:
		p.rejected.Add(1)
		return ErrPoolFull
	}
}

func (p *Pool) work() {
	defer p.wg.Done()
	defer p.workers.Add(-1)

	for j := range p.queue {
		p.active.Add(1)
		p.run(j)
		p.active.Add(-1)
	}
}

func (p *Pool) run(j job) {
	start := time.Now()
	err := p.execute(j)
	elapsed := time.Since(start)

	if err != nil {
		p.failed.Add(1)
		p.logger.Debug("task failed", zap.String("task", j.name), zap.Error(err))
	} else {
		p.completed.Add(1)
	}
	if p.OnDone != nil {
		p.OnDone(j.name, err, elapsed)
	}
}

func (p *Pool) execute(j job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			p.panicked.Add(1)
			p.logger.Error("task panicked", zap.String("task", j.name), zap.Any("panic", r), zap.Stack("stack"))
			err = &PanicError{Task: j.name, Value: r}
		}
	}()
	if cerr := j.ctx.Err(); cerr != nil {
		return cerr
	}
	return j.task(j.ctx)
}

// Close stops accepting tasks, lets queued tasks drain and waits for the
// workers until ctx is done.
func (p *Pool) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats contains pool statistics.
type Stats struct {
	Workers   int   `json:"workers"`
	Active    int   `json:"active"`
	Queued    int   `json:"queued"`
	Submitted int64 `json:"submitted"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Rejected  int64 `json:"rejected"`
	Panicked  int64 `json:"panicked"`
}

// Stats returns pool statistics.
func (p *Pool) Stats() Stats {
	return Stats{
		Workers:   int(p.workers.Load()),
		Active:    int(p.active.Load()),
		Queued:    len(p.queue),
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
		Rejected:  p.rejected.Load(),
		Panicked:  p.panicked.Load(),
	}
}
