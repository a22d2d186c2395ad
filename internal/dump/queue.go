// Package dump implements the Dump Driver (C2): a streaming XML dump
// reader, the add_page ingest callback, the C8 analysis trigger, and a
// worker-pool replay phase.
package dump

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/danielledeleo/wikiforge/internal/store"
)

// ErrQueueClosed is returned when Submit is called on a closed queue.
var ErrQueueClosed = errors.New("dump: replay queue is closed")

// Job is one page waiting to be replayed through the user handler.
type Job struct {
	Title       string
	Model       store.ContentModel
	Body        string
	SubmittedAt time.Time
	heapIndex   int
}

// Result is the outcome of one replayed page.
type Result struct {
	Value any   // the handler's return value, or nil
	Err   error // the handler's error, or a recovered panic formatted as one
}

// Handler is spec.md §6's page handler callback: (model, title, text) ->
// result. It is invoked by worker goroutines and must be pure with
// respect to any state outside what it's given (spec.md §5).
type Handler func(model store.ContentModel, title, body string) (any, error)

// Queue is the replay worker pool (spec.md §4.2/§5), adapted from
// periwiki's internal/renderqueue.Queue: "article" becomes "page title",
// the render tiers collapse to a single replay tier since dump replay has
// no interactive/background distinction, and RenderFunc becomes Handler.
type Queue struct {
	handle      Handler
	mu          sync.Mutex
	heap        *jobHeap
	pageJobs    map[string]*Job
	waiters     map[string][]chan Result
	jobReady    chan struct{}
	closed      bool
	closeCh     chan struct{}
	wg          sync.WaitGroup
	workerCount int
}

// NewQueue creates a replay queue with workerCount worker goroutines,
// each calling handle for jobs it pops.
func NewQueue(workerCount int, handle Handler) *Queue {
	if workerCount < 1 {
		workerCount = 1
	}

	q := &Queue{
		handle:      handle,
		heap:        &jobHeap{},
		pageJobs:    make(map[string]*Job),
		waiters:     make(map[string][]chan Result),
		jobReady:    make(chan struct{}, 1),
		closeCh:     make(chan struct{}),
		workerCount: workerCount,
	}
	heap.Init(q.heap)

	q.wg.Add(workerCount)
	for i := 0; i < workerCount; i++ {
		go q.worker()
	}

	return q
}

// Submit enqueues one page for replay. waitCh, if non-nil, receives the
// job's Result when it completes. A second Submit for the same title
// before the first runs replaces the job's body in place, keeping its
// queue position (matches spec.md's idempotent-add_page spirit applied to
// replay scheduling).
func (q *Queue) Submit(job Job, waitCh chan Result) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	if existing, ok := q.pageJobs[job.Title]; ok {
		existing.Model = job.Model
		existing.Body = job.Body
	} else {
		jobCopy := job
		if jobCopy.SubmittedAt.IsZero() {
			jobCopy.SubmittedAt = time.Now()
		}
		q.pageJobs[job.Title] = &jobCopy
		heap.Push(q.heap, &jobCopy)
	}

	if waitCh != nil {
		q.waiters[job.Title] = append(q.waiters[job.Title], waitCh)
	}

	select {
	case q.jobReady <- struct{}{}:
	default:
	}

	return nil
}

// Shutdown stops accepting new jobs, drains whatever is queued, and waits
// for in-flight jobs to finish, up to ctx's deadline.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.closeCh)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) worker() {
	defer q.wg.Done()

	for {
		select {
		case <-q.closeCh:
			for q.processOneJob() {
			}
			return
		case <-q.jobReady:
			q.processOneJob()
		}
	}
}

func (q *Queue) processOneJob() bool {
	q.mu.Lock()
	if q.heap.Len() == 0 {
		q.mu.Unlock()
		return false
	}

	job := heap.Pop(q.heap).(*Job)
	title := job.Title
	model := job.Model
	body := job.Body
	delete(q.pageJobs, title)

	jobWaiters := q.waiters[title]
	delete(q.waiters, title)

	if q.heap.Len() > 0 {
		select {
		case q.jobReady <- struct{}{}:
		default:
		}
	}
	q.mu.Unlock()

	result := q.executeHandler(model, title, body)

	for _, ch := range jobWaiters {
		if ch != nil {
			select {
			case ch <- result:
			default:
			}
		}
	}

	return true
}

// executeHandler calls the page handler with panic recovery, formatting a
// recovered panic with the page title per spec.md §4.2's failure
// semantics ("caught, formatted with title and traceback, and
// surfaced"), the same shape as renderqueue.Queue.executeRender.
func (q *Queue) executeHandler(model store.ContentModel, title, body string) Result {
	var result Result

	func() {
		defer func() {
			if r := recover(); r != nil {
				result = Result{Err: fmt.Errorf("page handler panic on %q: %v", title, r)}
			}
		}()

		value, err := q.handle(model, title, body)
		if err != nil {
			err = fmt.Errorf("page handler error on %q: %w", title, err)
		}
		result = Result{Value: value, Err: err}
	}()

	return result
}
