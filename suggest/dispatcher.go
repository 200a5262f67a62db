package suggest

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
)

type workUnit struct {
	ctx context.Context
	f   func(context.Context)
}

type workQueue chan workUnit

// Dispatcher runs suggester work on a fixed pool of workers fed by a bounded queue, apart from
// the goroutines serving HTTP. It is the one place where job failures and panics are caught.
type Dispatcher struct {
	name    string
	workers int
	wq      workQueue

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	logger *log.Logger

	submitted atomic.Uint64
	completed atomic.Uint64
	failed    atomic.Uint64
	rejected  atomic.Uint64
}

// DispatcherStats is a snapshot of the dispatcher counters
type DispatcherStats struct {
	Name      string `json:"name"`
	Workers   int    `json:"workers"`
	Queue     int    `json:"queue"`
	Submitted uint64 `json:"submitted"`
	Completed uint64 `json:"completed"`
	Failed    uint64 `json:"failed"`
	Rejected  uint64 `json:"rejected"`
}

// NewDispatcher starts a pool of numWorkers workers (NumCPU if <= 0) over a queue of
// queueSize pending jobs
func NewDispatcher(name string, numWorkers, queueSize int, logger *log.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	if queueSize < 0 {
		queueSize = 0
	}
	if logger == nil {
		logger = log.Default()
	}
	d := &Dispatcher{
		name:    name,
		workers: numWorkers,
		wq:      make(workQueue, queueSize),
		logger:  logger.WithPrefix(name),
	}
	for i := 0; i < numWorkers; i++ {
		d.wg.Add(1)
		go d.poolWorker()
	}
	return d
}

func (d *Dispatcher) poolWorker() {
	defer d.wg.Done()
	for work := range d.wq {
		work.f(work.ctx)
	}
}

// Submit queues f on the dispatcher and returns its future. When the queue is full the job is
// rejected with ErrQueueFull instead of blocking the caller.
func Submit[T any](d *Dispatcher, ctx context.Context, f func(context.Context) (T, error)) *Future[T] {
	fut := newFuture[T]()
	unit := workUnit{
		ctx: ctx,
		f: func(ctx context.Context) {
			var v T
			err := d.run(ctx, func(ctx context.Context) (err error) {
				v, err = f(ctx)
				return err
			})
			if err != nil {
				var zero T
				v = zero
			}
			fut.complete(v, err)
		},
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return Failed[T](ErrPoolClosed)
	}
	select {
	case d.wq <- unit:
		d.submitted.Add(1)
		return fut
	default:
		d.rejected.Add(1)
		return Failed[T](fmt.Errorf("%w: %s", ErrQueueFull, d.name))
	}
}

// run executes one job, turning a panic into an error
func (d *Dispatcher) run(ctx context.Context, f func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s job panicked: %v", d.name, r)
		}
		if err != nil {
			d.failed.Add(1)
			d.logger.Debug("Failed to process the request.", "err", err)
			return
		}
		d.completed.Add(1)
	}()
	return f(ctx)
}

// Close stops accepting jobs and waits for the queued ones to finish
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.wq)
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) Stats() DispatcherStats {
	return DispatcherStats{
		Name:      d.name,
		Workers:   d.workers,
		Queue:     len(d.wq),
		Submitted: d.submitted.Load(),
		Completed: d.completed.Load(),
		Failed:    d.failed.Load(),
		Rejected:  d.rejected.Load(),
	}
}
