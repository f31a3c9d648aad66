// File: core/concurrency/executor.go
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Executor runs tasks on a fixed set of worker goroutines fed from one
// bounded lock-free queue. When the queue is full the rejection policy
// decides: fail, run on the caller, or wait for space. Close stops
// intake, lets workers finish everything already queued, then returns.

package concurrency

import (
	"fmt"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

// RejectPolicy selects what Submit does with a full queue.
type RejectPolicy uint8

const (
	// RejectAbort fails the submission with ErrPoolSaturated.
	RejectAbort RejectPolicy = iota
	// RejectCallerRuns executes the task on the submitting goroutine.
	RejectCallerRuns
	// RejectBlock waits until a worker frees a slot.
	RejectBlock
)

func (p RejectPolicy) String() string {
	switch p {
	case RejectAbort:
		return "abort"
	case RejectCallerRuns:
		return "caller-runs"
	case RejectBlock:
		return "block"
	}
	return fmt.Sprintf("RejectPolicy(%d)", uint8(p))
}

// ParseRejectPolicy maps a config string to a policy.
func ParseRejectPolicy(s string) (RejectPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "abort", "reject":
		return RejectAbort, nil
	case "caller-runs", "caller_runs", "callerruns", "":
		return RejectCallerRuns, nil
	case "block", "wait":
		return RejectBlock, nil
	}
	return RejectAbort, fmt.Errorf("concurrency: unknown reject policy %q", s)
}

// Stats is a snapshot of executor counters.
type Stats struct {
	Submitted  uint64
	Completed  uint64
	Rejected   uint64
	CallerRuns uint64
	Panics     uint64
	Queued     int
}

type counters struct {
	submitted  atomic.Uint64
	_          cpu.CacheLinePad
	completed  atomic.Uint64
	_          cpu.CacheLinePad
	rejected   atomic.Uint64
	callerRuns atomic.Uint64
	panics     atomic.Uint64
}

// Executor manages a pool of worker goroutines.
type Executor struct {
	queue   *LockFreeQueue[func()]
	ready   chan struct{} // one token per queued task
	space   chan struct{} // pulsed when a slot frees up
	closeCh chan struct{}
	policy  RejectPolicy
	workers int

	mu     sync.RWMutex // guards closed against in-flight enqueues
	closed bool
	once   sync.Once
	wg     sync.WaitGroup
	stats  counters
}

// NewExecutor starts workers goroutines sharing a queue of queueSize tasks.
// Non-positive workers defaults to runtime.NumCPU().
func NewExecutor(workers, queueSize int, policy RejectPolicy) *Executor {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if queueSize <= 0 {
		queueSize = workers * 4
	}
	q := NewLockFreeQueue[func()](queueSize)
	e := &Executor{
		queue:   q,
		ready:   make(chan struct{}, q.Cap()),
		space:   make(chan struct{}, 1),
		closeCh: make(chan struct{}),
		policy:  policy,
		workers: workers,
	}
	e.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go e.run()
	}
	return e
}

// Submit schedules task. It returns ErrExecutorClosed after Close and,
// under RejectAbort, ErrPoolSaturated when the queue is full.
func (e *Executor) Submit(task func()) error {
	for {
		ok, err := e.tryEnqueue(task)
		if err != nil {
			e.stats.rejected.Add(1)
			return err
		}
		if ok {
			e.stats.submitted.Add(1)
			return nil
		}
		switch e.policy {
		case RejectCallerRuns:
			e.stats.submitted.Add(1)
			e.stats.callerRuns.Add(1)
			e.execute(task)
			return nil
		case RejectBlock:
			select {
			case <-e.space:
			case <-e.closeCh:
				e.stats.rejected.Add(1)
				return ErrExecutorClosed
			}
		default:
			e.stats.rejected.Add(1)
			return ErrPoolSaturated
		}
	}
}

func (e *Executor) tryEnqueue(task func()) (bool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return false, ErrExecutorClosed
	}
	if !e.queue.Enqueue(task) {
		return false, nil
	}
	e.ready <- struct{}{}
	return true, nil
}

// NumWorkers returns the worker count.
func (e *Executor) NumWorkers() int { return e.workers }

// Policy returns the rejection policy.
func (e *Executor) Policy() RejectPolicy { return e.policy }

// Stats returns a snapshot of the counters.
func (e *Executor) Stats() Stats {
	return Stats{
		Submitted:  e.stats.submitted.Load(),
		Completed:  e.stats.completed.Load(),
		Rejected:   e.stats.rejected.Load(),
		CallerRuns: e.stats.callerRuns.Load(),
		Panics:     e.stats.panics.Load(),
		Queued:     e.queue.Len(),
	}
}

// Close rejects new work, waits for queued tasks to finish and stops the
// workers. It is safe to call more than once.
func (e *Executor) Close() {
	e.once.Do(func() {
		e.mu.Lock()
		e.closed = true
		e.mu.Unlock()
		close(e.closeCh)
	})
	e.wg.Wait()
}

func (e *Executor) run() {
	defer e.wg.Done()
	for {
		select {
		case <-e.ready:
			e.next()
		case <-e.closeCh:
			for {
				task, ok := e.queue.Dequeue()
				if !ok {
					return
				}
				e.finish(task)
			}
		}
	}
}

// next runs one task. A token guarantees an item was published, though a
// slower producer ahead of it in the ring may still be finishing its write.
func (e *Executor) next() {
	for {
		if task, ok := e.queue.Dequeue(); ok {
			e.finish(task)
			return
		}
		select {
		case <-e.closeCh:
			return
		default:
			runtime.Gosched()
		}
	}
}

func (e *Executor) finish(task func()) {
	select {
	case e.space <- struct{}{}:
	default:
	}
	e.execute(task)
}

func (e *Executor) execute(task func()) {
	defer func() {
		if r := recover(); r != nil {
			e.stats.panics.Add(1)
		}
		e.stats.completed.Add(1)
	}()
	task()
}
