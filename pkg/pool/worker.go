// Package pool provides the bounded worker pool the traditional transfer
// path runs on. Workers stop picking up new tasks once the pool context is
// cancelled; the task currently in hand finishes or aborts on its own.
package pool

import (
	"context"
	"sync"
	"sync/atomic"
)

// Task is one unit of transfer work.
type Task func(ctx context.Context) error

// WorkerPool fans tasks out to a fixed number of workers.
type WorkerPool struct {
	workers     int
	tasks       chan Task
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	activeCount atomic.Int32
	totalTasks  atomic.Int64
	failedTasks atomic.Int64
}

// New starts a pool of the given size. Sizes below one are clamped so a
// misconfigured request cannot deadlock the batch.
func New(ctx context.Context, workers int) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	poolCtx, cancel := context.WithCancel(ctx)

	wp := &WorkerPool{
		workers: workers,
		tasks:   make(chan Task, workers*2),
		ctx:     poolCtx,
		cancel:  cancel,
	}

	for i := 0; i < workers; i++ {
		wp.wg.Add(1)
		go wp.worker()
	}
	return wp
}

func (wp *WorkerPool) worker() {
	defer wp.wg.Done()

	for {
		select {
		case task, ok := <-wp.tasks:
			if !ok {
				return
			}
			wp.activeCount.Add(1)
			wp.totalTasks.Add(1)
			if err := task(wp.ctx); err != nil {
				wp.failedTasks.Add(1)
			}
			wp.activeCount.Add(-1)

		case <-wp.ctx.Done():
			return
		}
	}
}

// Submit queues a task. Returns false once the pool is cancelled; callers
// treat that as "descriptor never started".
func (wp *WorkerPool) Submit(task Task) bool {
	select {
	case wp.tasks <- task:
		return true
	case <-wp.ctx.Done():
		return false
	}
}

// Wait closes the queue and blocks until queued tasks drain.
func (wp *WorkerPool) Wait() {
	close(wp.tasks)
	wp.wg.Wait()
}

// Shutdown cancels workers without draining the queue.
func (wp *WorkerPool) Shutdown() {
	wp.cancel()
	wp.wg.Wait()
}

// Stats describes what the pool has processed so far.
type Stats struct {
	Workers     int
	Active      int32
	TotalTasks  int64
	FailedTasks int64
}

// Stats returns a snapshot of pool counters.
func (wp *WorkerPool) Stats() Stats {
	return Stats{
		Workers:     wp.workers,
		Active:      wp.activeCount.Load(),
		TotalTasks:  wp.totalTasks.Load(),
		FailedTasks: wp.failedTasks.Load(),
	}
}
