// Package workpool implements the shared cooperative task queue used by
// both server and client: the per-peer and per-connection read/dispatch
// loops, replay-log compaction/upload, and debounced banlist-file reload
// processing each submit to a Pool (one per owning component) rather than
// spawning ad hoc goroutines.
//
// Tasks are functions returning bool: true means "run me again", false
// means "done, drop me". This mirrors the original WorkPool's handleWork
// contract (pop a task, run it, re-push it if it wants to keep running)
// generalized from the teacher's bounded executionPool.
package workpool

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/temdog007/temstream-go/internal/logger"
)

// Task is a unit of cooperative work. Returning true re-enqueues it for a
// later run (e.g. a read loop that wants to be called again); returning
// false removes it permanently.
type Task func() bool

// Pool runs Tasks on a bounded set of worker goroutines draining one shared
// queue, exactly as the teacher's executionPool bounds concurrent hook
// execution with a buffered semaphore channel.
type Pool struct {
	tasks   chan Task
	workers int
	log     *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

const defaultQueueSize = 256

// New starts a Pool with the given number of worker goroutines; a
// non-positive count starts 4.
func New(workers int) *Pool {
	if workers <= 0 {
		workers = 4
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		tasks:   make(chan Task, defaultQueueSize),
		workers: workers,
		log:     logger.Logger(),
		ctx:     ctx,
		cancel:  cancel,
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case task, ok := <-p.tasks:
			if !ok {
				return
			}
			p.run(task)
		}
	}
}

func (p *Pool) run(task Task) {
	again := task()
	if !again {
		return
	}
	select {
	case <-p.ctx.Done():
		return
	case p.tasks <- task:
	default:
		p.log.Warn("workpool: queue full, dropping re-enqueued task")
	}
}

// Add submits a Task to the pool. It blocks briefly if the queue is
// momentarily full. It drops the task silently if the pool has been
// stopped, and with a log entry if the queue stays full past a 200ms
// deadline.
func (p *Pool) Add(task Task) {
	select {
	case <-p.ctx.Done():
		return
	case p.tasks <- task:
		return
	default:
	}
	timer := time.NewTimer(200 * time.Millisecond)
	defer timer.Stop()
	select {
	case <-p.ctx.Done():
	case p.tasks <- task:
	case <-timer.C:
		p.log.Warn("workpool: add timed out, queue full")
	}
}

// Stop cancels all workers and waits for them to exit. In-flight tasks are
// allowed to finish their current call; pending re-enqueues are dropped.
func (p *Pool) Stop() {
	p.cancel()
	p.wg.Wait()
}
