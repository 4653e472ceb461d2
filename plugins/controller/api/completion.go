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

package api

import (
	"context"
	"sync"
)

// Completion is the asynchronous result of a request. It is resolved
// exactly once; the first call to Done wins.
type Completion struct {
	once sync.Once
	done chan struct{}
	err  error
}

// NewCompletion is a constructor for unresolved Completion.
func NewCompletion() *Completion {
	return &Completion{done: make(chan struct{})}
}

// Completed returns already resolved completion.
func Completed(err error) *Completion {
	c := NewCompletion()
	c.Done(err)
	return c
}

// Done propagates result to the waiting producer.
func (c *Completion) Done(err error) {
	c.once.Do(func() {
		c.err = err
		close(c.done)
	})
}

// Ready returns channel closed once the completion is resolved.
func (c *Completion) Ready() <-chan struct{} {
	return c.done
}

// Wait waits for the result.
func (c *Completion) Wait() error {
	<-c.done
	return c.err
}

// WaitContext waits for the result or until the context is done.
func (c *Completion) WaitContext(ctx context.Context) error {
	select {
	case <-c.done:
		return c.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err returns the result of a resolved completion (nil if not resolved yet).
func (c *Completion) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// JoinCompletions returns completion resolved when all the given completions
// are resolved, with the first error encountered (in the order of arguments).
func JoinCompletions(completions ...*Completion) *Completion {
	joined := NewCompletion()
	go func() {
		var firstErr error
		for _, c := range completions {
			if c == nil {
				continue
			}
			if err := c.Wait(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		joined.Done(firstErr)
	}()
	return joined
}
