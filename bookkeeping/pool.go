package bookkeeping

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.uber.org/atomic"
)

// Task is a fire-and-forget write. Its error is only logged.
type Task struct {
	Name  string
	Attrs []any
	Run   func(ctx context.Context) error
}

// Observer is notified of every task outcome: "ok", "failed" or "dropped".
type Observer func(task string, status string)

// Pool runs bookkeeping tasks on a fixed set of workers fed by a bounded queue.
// Submit never blocks: when the queue is full the task is dropped.
type Pool struct {
	taskChan    chan Task
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	taskTimeout time.Duration
	log         *slog.Logger
	observe     Observer

	mu     sync.RWMutex
	closed bool

	submitted *atomic.Int64
	completed *atomic.Int64
	failed    *atomic.Int64
	dropped   *atomic.Int64
}

// Stats is a snapshot of pool counters.
type Stats struct {
	Submitted int64
	Completed int64
	Failed    int64
	Dropped   int64
}

// New starts workerCount workers reading from a queue of bufferSize tasks.
func New(bufferSize int, workerCount int, taskTimeout time.Duration, log *slog.Logger, observe Observer) *Pool {
	ctx, cancel := context.WithCancel(context.Background())
	if observe == nil {
		observe = func(string, string) {}
	}
	p := &Pool{
		taskChan:    make(chan Task, bufferSize),
		ctx:         ctx,
		cancel:      cancel,
		taskTimeout: taskTimeout,
		log:         log,
		observe:     observe,
		submitted:   atomic.NewInt64(0),
		completed:   atomic.NewInt64(0),
		failed:      atomic.NewInt64(0),
		dropped:     atomic.NewInt64(0),
	}
	p.start(workerCount)
	return p
}

// Submit queues task without waiting. It reports false when the task was dropped.
func (p *Pool) Submit(task Task) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.drop(task, "pool closed")
		return false
	}

	select {
	case p.taskChan <- task:
		p.submitted.Inc()
		return true
	default:
		p.drop(task, "queue full")
		return false
	}
}

// Shutdown stops accepting tasks, runs everything already queued and waits
// for the workers to exit.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.taskChan)
	p.mu.Unlock()

	p.log.Info("draining bookkeeping queue", "pending", len(p.taskChan))
	p.wg.Wait()
	p.cancel()
	p.log.Info("bookkeeping pool stopped")
}

func (p *Pool) Stats() Stats {
	return Stats{
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
		Dropped:   p.dropped.Load(),
	}
}

func (p *Pool) start(workerCount int) {
	for i := 0; i < workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	p.log.Debug("started bookkeeping workers", "count", workerCount)
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for task := range p.taskChan {
		p.process(id, task)
	}
}

func (p *Pool) process(worker int, task Task) {
	ctx, cancel := context.WithTimeout(p.ctx, p.taskTimeout)
	defer cancel()

	err := p.run(ctx, task)
	if err != nil {
		p.failed.Inc()
		p.observe(task.Name, "failed")
		attrs := append([]any{"task", task.Name, "worker", worker, "error", err}, task.Attrs...)
		p.log.Error("bookkeeping task failed", attrs...)
		return
	}
	p.completed.Inc()
	p.observe(task.Name, "ok")
}

// run shields the worker from a panicking task.
func (p *Pool) run(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()
	return task.Run(ctx)
}

func (p *Pool) drop(task Task, reason string) {
	p.dropped.Inc()
	p.observe(task.Name, "dropped")
	attrs := append([]any{"task", task.Name, "reason", reason}, task.Attrs...)
	p.log.Warn("bookkeeping task dropped", attrs...)
}

// PanicError reports a task that panicked.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return "bookkeeping task panicked"
}
