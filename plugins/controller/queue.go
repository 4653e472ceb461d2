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

package controller

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/contiv/ifmgr/plugins/controller/api"
)

// resourceQueue is a bounded multi-producer single-consumer queue of
// operation groups for one resource class.
type resourceQueue struct {
	class     api.ResourceClass
	capacity  int // max. number of queued operations
	threshold int // depth at which the consumer is signalled to flush

	sync.Mutex
	groups []*queuedGroup
	depth  int
	closed bool

	flushCh chan struct{}
}

// queuedGroup is a group of operations enqueued together.
type queuedGroup struct {
	ops        []api.Operation
	completion *api.Completion
}

func newResourceQueue(class api.ResourceClass, capacity, threshold int) *resourceQueue {
	return &resourceQueue{
		class:     class,
		capacity:  capacity,
		threshold: threshold,
		flushCh:   make(chan struct{}, 1),
	}
}

// push appends the group at the end of the queue. It never blocks.
func (q *resourceQueue) push(ops []api.Operation) (*api.Completion, error) {
	q.Lock()
	defer q.Unlock()

	if q.closed {
		return nil, api.ErrClosed
	}
	if q.depth+len(ops) > q.capacity {
		return nil, errors.Wrapf(api.ErrQueueFull, "%s queue (depth %d, capacity %d, group of %d)",
			q.class, q.depth, q.capacity, len(ops))
	}
	group := &queuedGroup{ops: ops, completion: api.NewCompletion()}
	q.groups = append(q.groups, group)
	q.depth += len(ops)
	if q.depth >= q.threshold {
		q.signal()
	}
	return group.completion, nil
}

// drain removes and returns all currently queued groups.
func (q *resourceQueue) drain() (groups []*queuedGroup) {
	q.Lock()
	defer q.Unlock()
	groups = q.groups
	q.groups = nil
	q.depth = 0
	return groups
}

// requeue puts groups of a batch that could not be committed back at the head
// of the queue, before the groups pushed meanwhile. Capacity is not checked,
// the groups were already accounted for.
func (q *resourceQueue) requeue(groups []*queuedGroup) {
	q.Lock()
	defer q.Unlock()
	q.groups = append(groups[:len(groups):len(groups)], q.groups...)
	for _, group := range groups {
		q.depth += len(group.ops)
	}
}

// close rejects all further pushes. Queued groups stay for the final drain.
func (q *resourceQueue) close() {
	q.Lock()
	defer q.Unlock()
	q.closed = true
}

// getDepth returns the number of queued operations.
func (q *resourceQueue) getDepth() int {
	q.Lock()
	defer q.Unlock()
	return q.depth
}

// signal wakes up the consumer. Never blocks.
func (q *resourceQueue) signal() {
	select {
	case q.flushCh <- struct{}{}:
	default:
	}
}
