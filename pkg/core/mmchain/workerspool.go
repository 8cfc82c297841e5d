// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package mmchain

import (
	"runtime"
	"sync"
)

// workersPool bounds the number of goroutines running kernel tasks.
type workersPool struct {
	// maxParallelism is the limit of tasks running at the same time.
	// If 0 parallelism is disabled and tasks are run inline.
	maxParallelism int
	mu             sync.Mutex
	cond           sync.Cond // Should be signaled whenever numRunning is decreased.
	numRunning     int
}

// newWorkersPool creates a pool with the given degree of parallelism.
// If maxParallelism < 0, it uses runtime.NumCPU().
func newWorkersPool(maxParallelism int) *workersPool {
	if maxParallelism < 0 {
		maxParallelism = runtime.NumCPU()
	}
	w := &workersPool{maxParallelism: maxParallelism}
	w.cond = sync.Cond{L: &w.mu}
	return w
}

// IsEnabled returns whether parallelism is enabled (maxParallelism is != 0)
func (w *workersPool) IsEnabled() bool {
	return w.maxParallelism != 0
}

// lockedIsFull returns whether all available workers are in use.
//
// It must be called with workerPool.mu acquired.
func (w *workersPool) lockedIsFull() bool {
	return w.numRunning >= w.maxParallelism
}

// WaitToStart waits until there is a worker available to run the task, and starts it in a goroutine.
//
// If parallelism is disabled (maxParallelism is 0), it runs the task inline and returns when it is finished.
func (w *workersPool) WaitToStart(task func()) {
	if !w.IsEnabled() {
		task()
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	for w.lockedIsFull() {
		w.cond.Wait()
	}
	w.numRunning++
	go func() {
		task()
		w.mu.Lock()
		w.numRunning--
		w.cond.Signal()
		w.mu.Unlock()
	}()
}
