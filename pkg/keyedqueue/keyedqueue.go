// Copyright (c) 2019 Cisco and/or its affiliates.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at:
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package keyedqueue serializes jobs per key: jobs submitted under the same
// key run one at a time in submission order, jobs of different keys run
// concurrently. Each key with pending jobs is served by its own goroutine,
// which exits once the key has no more work.
package keyedqueue

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

// ErrClosed is returned for jobs submitted into (or pending in) a closed queue.
var ErrClosed = errors.New("keyed queue was closed")

// Job is a unit of work executed by the queue.
type Job func(ctx context.Context) error

// Queue maps keys to single-consumer FIFOs of jobs.
type Queue struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// mu guards only the worker map and FIFOs, never held while a job runs
	mu      sync.Mutex
	closed  bool
	workers map[string]*worker
}

type worker struct {
	jobs []*pendingJob
	busy bool
}

type pendingJob struct {
	job    Job
	result chan error
}

// NewQueue creates a new keyed queue.
func NewQueue() *Queue {
	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		ctx:     ctx,
		cancel:  cancel,
		workers: make(map[string]*worker),
	}
}

// Submit appends the job to the FIFO of the key. The returned channel
// receives the result of the job. Submit never blocks.
func (q *Queue) Submit(key string, job Job) <-chan error {
	result := make(chan error, 1)

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		result <- ErrClosed
		return result
	}
	w, running := q.workers[key]
	if !running {
		w = &worker{}
		q.workers[key] = w
		q.wg.Add(1)
		go q.serve(key, w)
	}
	w.jobs = append(w.jobs, &pendingJob{job: job, result: result})
	return result
}

// Do submits the job and waits for its result.
func (q *Queue) Do(key string, job Job) error {
	return <-q.Submit(key, job)
}

// Pending returns the number of jobs queued or running for the key.
func (q *Queue) Pending(key string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	w, running := q.workers[key]
	if !running {
		return 0
	}
	if w.busy {
		return len(w.jobs) + 1
	}
	return len(w.jobs)
}

// Close cancels pending jobs and waits for running jobs to finish.
// A running job is not interrupted; it only sees its context canceled.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cancel()
	q.wg.Wait()
}

func (q *Queue) serve(key string, w *worker) {
	defer q.wg.Done()
	for {
		q.mu.Lock()
		w.busy = false
		if len(w.jobs) == 0 {
			delete(q.workers, key)
			q.mu.Unlock()
			return
		}
		next := w.jobs[0]
		w.jobs[0] = nil
		w.jobs = w.jobs[1:]
		w.busy = true
		q.mu.Unlock()

		if q.ctx.Err() != nil {
			next.result <- ErrClosed
			continue
		}
		next.result <- q.run(key, next.job)
	}
}

func (q *Queue) run(key string, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("job for key %s panicked: %v", key, r)
		}
	}()
	return job(q.ctx)
}
