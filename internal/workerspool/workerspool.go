// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package workerspool implements a soft-limited pool of goroutines used to parallelize independent rows of work
// (e.g. the batch rows of a transform) inside one rank.
package workerspool

import (
	"runtime"
	"sync"
)

// Pool limits the number of goroutines running tasks concurrently.
//
// The zero value is not usable, use New.
type Pool struct {
	// maxParallelism is a soft target on the limit of parallel work to do.
	maxParallelism int
	mu             sync.Mutex
	numRunning     int
}

// New return a new Pool of workers with the default parallelism (runtime.NumCPU()).
func New() *Pool {
	w := &Pool{}
	w.maxParallelism = runtime.NumCPU()
	return w
}

// IsEnabled returns whether parallelism is enabled (maxParallelism is != 0)
func (w *Pool) IsEnabled() bool {
	return w.maxParallelism != 0
}

// IsUnlimited returns whether parallelism is unlimited (maxParallelism < 0)
func (w *Pool) IsUnlimited() bool {
	return w.maxParallelism < 0
}

// MaxParallelism is a soft-target for parallelism.
// If set to 0 parallelism is disabled.
// If set to -1 parallelism is unlimited.
func (w *Pool) MaxParallelism() int {
	return w.maxParallelism
}

// SetMaxParallelism sets the maxParallelism.
//
// You should only change the parallelism before any workers start running. If changed during the execution
// the behavior is undefined.
func (w *Pool) SetMaxParallelism(maxParallelism int) {
	w.maxParallelism = maxParallelism
}

// goroutineToParallelismRatio is the number of workers started by ParallelFor per CPU, when parallelism is unlimited.
const goroutineToParallelismRatio = 2

// lockedIsFull returns whether all available workers are in use.
//
// It must be called with Pool.mu acquired.
func (w *Pool) lockedIsFull() bool {
	if w.maxParallelism == 0 {
		return true
	} else if w.maxParallelism < 0 {
		return false
	}
	return w.numRunning >= w.maxParallelism
}

// lockedRunTaskInGoroutine and keep tabs on w.numRunning.
//
// It must be called with Pool.mu acquired.
func (w *Pool) lockedRunTaskInGoroutine(task func()) {
	w.numRunning++
	go func() {
		task()
		w.mu.Lock()
		w.numRunning--
		w.mu.Unlock()
	}()
}

// StartIfAvailable runs the task in a separate goroutine, if there are enough workers left.
// It returns true if it found workers to run the function, false otherwise.
//
// It's up to the client to synchronize the end of the function execution.
func (w *Pool) StartIfAvailable(task func()) bool {
	if w.IsUnlimited() {
		go task()
		return true
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.lockedIsFull() {
		return false
	}
	w.lockedRunTaskInGoroutine(task)
	return true
}

func (w *Pool) numWorkers() int {
	if w.IsUnlimited() {
		return goroutineToParallelismRatio * runtime.NumCPU()
	}
	return max(w.maxParallelism, 1)
}

// saturateN runs task in up to numWorkers workers, including the calling goroutine, and waits for all of them to
// finish. The calling goroutine always runs one copy of the task, so it never blocks waiting for free workers.
func (w *Pool) saturateN(numWorkers int, task func()) {
	var wg sync.WaitGroup
	for range numWorkers - 1 {
		wg.Add(1)
		if !w.StartIfAvailable(func() {
			defer wg.Done()
			task()
		}) {
			wg.Done()
			break
		}
	}
	task()
	wg.Wait()
}

// ParallelFor calls fn(ii) for every ii in [0, n), distributing the indices among the available workers,
// and returns when all calls finished. fn must be safe to call concurrently for different indices.
//
// A nil Pool runs everything sequentially in the calling goroutine.
func (w *Pool) ParallelFor(n int, fn func(ii int)) {
	if w == nil || !w.IsEnabled() || n <= 1 {
		for ii := range n {
			fn(ii)
		}
		return
	}
	work := make(chan int, n)
	for ii := range n {
		work <- ii
	}
	close(work)
	w.saturateN(min(n, w.numWorkers()), func() {
		for ii := range work {
			fn(ii)
		}
	})
}
