package batchworker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/wolfman30/sms-dispatch-gateway/pkg/logging"
)

var (
	// ErrQueueFull is returned when every worker is busy and the queue has no free slot.
	ErrQueueFull = errors.New("batchworker: queue full")
	// ErrPoolClosed is returned after Stop or before Start.
	ErrPoolClosed = errors.New("batchworker: pool not running")
)

// Task is one unit of work. Run receives a context that is cancelled by
// Cancel(ID) or when the pool stops.
type Task struct {
	ID   string
	Name string
	Run  func(ctx context.Context) error
}

// Pool runs tasks on a fixed number of goroutines fed by a bounded queue.
type Pool struct {
	workers int
	queue   chan queued
	logger  *logging.Logger

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	running bool
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// NewPool builds a pool. workers and queueSize fall back to 1 when not positive.
func NewPool(workers, queueSize int, logger *logging.Logger) *Pool {
	if logger == nil {
		logger = logging.Default()
	}
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	return &Pool{
		workers: workers,
		queue:   make(chan queued, queueSize),
		logger:  logger,
		cancels: make(map[string]context.CancelFunc),
	}
}

// Start launches the workers. Tasks inherit ctx.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}
	p.ctx, p.cancel = context.WithCancel(ctx)
	p.running = true
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.loop(i)
	}
	p.logger.Info("batch worker pool started", "workers", p.workers, "queue_size", cap(p.queue))
}

// Submit enqueues a task without blocking.
func (p *Pool) Submit(task Task) error {
	if task.Run == nil {
		return fmt.Errorf("batchworker: task %q has no Run func", task.ID)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return ErrPoolClosed
	}
	taskCtx, cancel := context.WithCancel(p.ctx)
	if task.ID != "" {
		p.cancels[task.ID] = cancel
	}
	select {
	case p.queue <- queued{task: task, ctx: taskCtx, cancel: cancel}:
		return nil
	default:
		delete(p.cancels, task.ID)
		cancel()
		return ErrQueueFull
	}
}

// Cancel cancels a queued or running task. It reports whether the id was known.
func (p *Pool) Cancel(id string) bool {
	p.mu.Lock()
	cancel, ok := p.cancels[id]
	p.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// Pending returns the number of tasks waiting for a worker.
func (p *Pool) Pending() int { return len(p.queue) }

// Stop cancels every task and waits for the workers to return.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.cancel()
	p.mu.Unlock()

	p.wg.Wait()
	p.logger.Info("batch worker pool stopped")
}

func (p *Pool) loop(n int) {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			p.drainCancelled()
			return
		case q := <-p.queue:
			p.run(n, q)
		}
	}
}

func (p *Pool) run(n int, q queued) {
	task := q.task
	defer p.forget(task.ID)
	defer q.cancel()
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("batch task panicked", "worker", n, "task_id", task.ID, "panic", r)
		}
	}()
	if err := task.Run(q.ctx); err != nil {
		p.logger.Warn("batch task finished with error", "worker", n, "task_id", task.ID, "task", task.Name, "error", err)
		return
	}
	p.logger.Debug("batch task finished", "worker", n, "task_id", task.ID, "task", task.Name)
}

// drainCancelled still runs queued tasks so they observe their cancelled
// context and can report back.
func (p *Pool) drainCancelled() {
	for {
		select {
		case q := <-p.queue:
			p.run(-1, q)
		default:
			return
		}
	}
}

func (p *Pool) forget(id string) {
	if id == "" {
		return
	}
	p.mu.Lock()
	cancel, ok := p.cancels[id]
	delete(p.cancels, id)
	p.mu.Unlock()
	if ok {
		cancel()
	}
}

type queued struct {
	task   Task
	ctx    context.Context
	cancel context.CancelFunc
}
