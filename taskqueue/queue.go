/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package taskqueue

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/xid"
	"go.uber.org/atomic"

	"github.com/acronis/go-corekit/log"
)

// ErrTaskDiscarded is the error with which futures of pending tasks are settled by Queue.Clear.
var ErrTaskDiscarded = errors.New("task was discarded before execution")

// ErrFutureNotSettled is returned by Future.Result when the future is not settled yet.
var ErrFutureNotSettled = errors.New("future is not settled yet")

// TaskFunc is a unit of work executed by the queue.
type TaskFunc[V any] func(ctx context.Context) (V, error)

// TaskInfo describes a pending task.
type TaskInfo struct {
	ID         string
	Priority   int
	EnqueuedAt time.Time
}

type task[V any] struct {
	id         string
	priority   int
	run        TaskFunc[V]
	future     *Future[V]
	ctx        context.Context
	enqueuedAt time.Time
}

// Queue is a priority task queue with a bounded number of concurrently running tasks.
//
// Pending tasks are kept in descending priority order, FIFO within the same priority.
// Whenever a running slot frees up, the highest-priority pending task is started on its own goroutine.
// Running tasks are never preempted.
type Queue[V any] struct {
	maxConcurrent    int
	logger           log.FieldLogger
	metricsCollector MetricsCollector

	mu      sync.Mutex
	pending *list.List // of *task[V]
	active  int

	completed atomic.Int64
	failed    atomic.Int64
}

// Opts represents options for the queue.
type Opts struct {
	// Logger is used for logging task failures. If nil, logging is disabled.
	Logger log.FieldLogger

	// MetricsCollector is a collector of the queue metrics. If nil, metrics are disabled.
	MetricsCollector MetricsCollector
}

// SubmitOpts represents options for a single submitted task.
type SubmitOpts struct {
	// Priority of the task. Higher values run earlier.
	Priority int

	// ID identifies the task in QueueItems and logs. If empty, a new xid is generated.
	ID string
}

// New creates a new queue running at most maxConcurrent tasks at a time.
func New[V any](maxConcurrent int) (*Queue[V], error) {
	return NewWithOpts[V](maxConcurrent, Opts{})
}

// NewWithOpts creates a new queue running at most maxConcurrent tasks at a time with the provided options.
func NewWithOpts[V any](maxConcurrent int, opts Opts) (*Queue[V], error) {
	if maxConcurrent <= 0 {
		return nil, fmt.Errorf("maxConcurrent must be greater than 0")
	}
	if opts.Logger == nil {
		opts.Logger = log.NewDisabledLogger()
	}
	if opts.MetricsCollector == nil {
		opts.MetricsCollector = disabledMetricsCollector
	}
	return &Queue[V]{
		maxConcurrent:    maxConcurrent,
		logger:           opts.Logger,
		metricsCollector: opts.MetricsCollector,
		pending:          list.New(),
	}, nil
}

// NewFromConfig creates a new queue from the passed configuration.
func NewFromConfig[V any](cfg *Config, opts Opts) (*Queue[V], error) {
	return NewWithOpts[V](cfg.MaxConcurrent, opts)
}

// Submit enqueues a task with the provided priority and returns its future.
// The task starts immediately if a running slot is free, otherwise it waits
// behind all pending tasks with the same or higher priority.
func (q *Queue[V]) Submit(ctx context.Context, run TaskFunc[V], priority int) *Future[V] {
	return q.SubmitWithOpts(ctx, run, SubmitOpts{Priority: priority})
}

// SubmitWithOpts enqueues a task with the provided options and returns its future.
func (q *Queue[V]) SubmitWithOpts(ctx context.Context, run TaskFunc[V], opts SubmitOpts) *Future[V] {
	if opts.ID == "" {
		opts.ID = xid.New().String()
	}
	tsk := &task[V]{
		id:         opts.ID,
		priority:   opts.Priority,
		run:        run,
		future:     newFuture[V](),
		ctx:        ctx,
		enqueuedAt: time.Now(),
	}

	q.mu.Lock()
	q.insertLocked(tsk)
	q.dispatchLocked()
	q.metricsCollector.SetQueueSize(q.pending.Len())
	q.mu.Unlock()

	return tsk.future
}

// insertLocked puts the task before the first pending task with a strictly lower priority,
// keeping tasks of the same priority in submission order.
func (q *Queue[V]) insertLocked(tsk *task[V]) {
	for elem := q.pending.Front(); elem != nil; elem = elem.Next() {
		if elem.Value.(*task[V]).priority < tsk.priority {
			q.pending.InsertBefore(tsk, elem)
			return
		}
	}
	q.pending.PushBack(tsk)
}

// dispatchLocked starts pending tasks while free running slots remain.
func (q *Queue[V]) dispatchLocked() {
	for q.active < q.maxConcurrent && q.pending.Len() > 0 {
		elem := q.pending.Front()
		q.pending.Remove(elem)
		q.active++
		go q.runTask(elem.Value.(*task[V]))
	}
	q.metricsCollector.SetActiveWorkers(q.active)
}

func (q *Queue[V]) runTask(tsk *task[V]) {
	val, err := q.safeRun(tsk)

	q.mu.Lock()
	q.active--
	if err != nil {
		q.failed.Inc()
		q.metricsCollector.IncFailedTasks()
	} else {
		q.completed.Inc()
		q.metricsCollector.IncCompletedTasks()
	}
	q.dispatchLocked()
	q.metricsCollector.SetQueueSize(q.pending.Len())
	q.mu.Unlock()

	if err != nil {
		q.logger.Error("task failed", log.String("task_id", tsk.id), log.Int("priority", tsk.priority), log.Error(err))
	}
	tsk.future.settle(val, err)
}

func (q *Queue[V]) safeRun(tsk *task[V]) (val V, err error) {
	defer func() {
		if p := recover(); p != nil {
			stack := debug.Stack()
			q.logger.Error("panic in task",
				log.String("task_id", tsk.id), log.String("stack", string(stack)))
			err = fmt.Errorf("task panic: %v", p)
		}
	}()
	return tsk.run(tsk.ctx)
}

// Clear discards all pending (not yet started) tasks and returns their number.
// Futures of the discarded tasks are settled with ErrTaskDiscarded so that waiters are not left hanging.
// Running tasks are not affected.
func (q *Queue[V]) Clear() int {
	q.mu.Lock()
	discarded := make([]*task[V], 0, q.pending.Len())
	for elem := q.pending.Front(); elem != nil; elem = elem.Next() {
		discarded = append(discarded, elem.Value.(*task[V]))
	}
	q.pending.Init()
	q.metricsCollector.SetQueueSize(0)
	q.mu.Unlock()

	var zero V
	for _, tsk := range discarded {
		tsk.future.settle(zero, ErrTaskDiscarded)
	}
	return len(discarded)
}

// QueueItems returns a snapshot of pending tasks in their execution order.
func (q *Queue[V]) QueueItems() []TaskInfo {
	q.mu.Lock()
	defer q.mu.Unlock()

	items := make([]TaskInfo, 0, q.pending.Len())
	for elem := q.pending.Front(); elem != nil; elem = elem.Next() {
		tsk := elem.Value.(*task[V])
		items = append(items, TaskInfo{ID: tsk.id, Priority: tsk.priority, EnqueuedAt: tsk.enqueuedAt})
	}
	return items
}

// Stats returns a snapshot of the queue statistics.
func (q *Queue[V]) Stats() Stats {
	q.mu.Lock()
	queueSize := q.pending.Len()
	active := q.active
	q.mu.Unlock()

	completed := q.completed.Load()
	failed := q.failed.Load()
	return Stats{
		QueueSize:      queueSize,
		ActiveWorkers:  active,
		MaxConcurrent:  q.maxConcurrent,
		CompletedTasks: completed,
		FailedTasks:    failed,
		TotalProcessed: completed + failed,
	}
}
