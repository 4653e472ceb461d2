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

package keyedqueue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/onsi/gomega"
	"github.com/pkg/errors"
)

func TestOrderPerKey(t *testing.T) {
	gomega.RegisterTestingT(t)
	q := NewQueue()
	defer q.Close()

	var (
		mu    sync.Mutex
		order []int
	)
	var results []<-chan error
	for i := 0; i < 50; i++ {
		i := i
		results = append(results, q.Submit("if0", func(ctx context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, i)
			return nil
		}))
	}
	for _, result := range results {
		gomega.Expect(<-result).To(gomega.BeNil())
	}
	for i := 0; i < 50; i++ {
		gomega.Expect(order[i]).To(gomega.Equal(i))
	}
	gomega.Eventually(func() int { return q.Pending("if0") }).Should(gomega.BeZero())
}

func TestKeysRunConcurrently(t *testing.T) {
	gomega.RegisterTestingT(t)
	q := NewQueue()
	defer q.Close()

	release := make(chan struct{})
	blocked := q.Submit("if0", func(ctx context.Context) error {
		<-release
		return nil
	})
	// job of another key completes while if0 is blocked
	gomega.Expect(q.Do("if1", func(ctx context.Context) error {
		return nil
	})).To(gomega.BeNil())

	// job of the same key waits behind the blocked one
	second := q.Submit("if0", func(ctx context.Context) error {
		return errors.New("second")
	})
	gomega.Expect(q.Pending("if0")).To(gomega.Equal(2))
	gomega.Consistently(second, 20*time.Millisecond).ShouldNot(gomega.Receive())

	close(release)
	gomega.Eventually(blocked).Should(gomega.Receive(gomega.BeNil()))
	gomega.Eventually(second).Should(gomega.Receive(gomega.MatchError("second")))
}

func TestPanicIsReported(t *testing.T) {
	gomega.RegisterTestingT(t)
	q := NewQueue()
	defer q.Close()

	err := q.Do("if0", func(ctx context.Context) error {
		panic("boom")
	})
	gomega.Expect(err).To(gomega.MatchError("job for key if0 panicked: boom"))
	gomega.Expect(q.Do("if0", func(ctx context.Context) error { return nil })).To(gomega.BeNil())
}

func TestClose(t *testing.T) {
	gomega.RegisterTestingT(t)
	q := NewQueue()

	started := make(chan struct{})
	running := q.Submit("if0", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})
	pending := q.Submit("if0", func(ctx context.Context) error {
		return nil
	})
	<-started
	q.Close()

	gomega.Expect(<-running).To(gomega.Equal(context.Canceled))
	gomega.Expect(<-pending).To(gomega.Equal(ErrClosed))
	gomega.Expect(<-q.Submit("if1", func(ctx context.Context) error { return nil })).To(gomega.Equal(ErrClosed))
}
