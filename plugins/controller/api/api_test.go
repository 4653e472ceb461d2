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
	"testing"
	"time"

	"github.com/onsi/gomega"
	"github.com/pkg/errors"

	"github.com/contiv/ifmgr/plugins/ifmgr/model"
)

func TestCompletion(t *testing.T) {
	gomega.RegisterTestingT(t)

	c := NewCompletion()
	gomega.Expect(c.Err()).To(gomega.BeNil())
	gomega.Consistently(c.Ready(), 20*time.Millisecond).ShouldNot(gomega.BeClosed())

	err := errors.New("failed")
	c.Done(err)
	c.Done(nil) // ignored
	gomega.Eventually(c.Ready()).Should(gomega.BeClosed())
	gomega.Expect(c.Wait()).To(gomega.Equal(err))
	gomega.Expect(c.Err()).To(gomega.Equal(err))
	gomega.Expect(Completed(nil).Wait()).To(gomega.BeNil())
}

func TestCompletionWaitContext(t *testing.T) {
	gomega.RegisterTestingT(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	gomega.Expect(NewCompletion().WaitContext(ctx)).To(gomega.Equal(context.DeadlineExceeded))
}

func TestJoinCompletions(t *testing.T) {
	gomega.RegisterTestingT(t)

	c1, c2 := NewCompletion(), NewCompletion()
	joined := JoinCompletions(c1, nil, c2)
	c2.Done(ErrQueueFull)
	gomega.Consistently(joined.Ready(), 20*time.Millisecond).ShouldNot(gomega.BeClosed())
	c1.Done(nil)
	gomega.Expect(joined.Wait()).To(gomega.Equal(ErrQueueFull))
	gomega.Expect(JoinCompletions().Wait()).To(gomega.BeNil())
}

func TestErrorPredicates(t *testing.T) {
	gomega.RegisterTestingT(t)

	cause := errors.New("duplicate priority")
	cfgErr := NewConfigError(cause)
	gomega.Expect(IsConfigError(cfgErr)).To(gomega.BeTrue())
	gomega.Expect(IsRetriable(cfgErr)).To(gomega.BeFalse())
	gomega.Expect(errors.Cause(cfgErr)).To(gomega.Equal(cause))

	exhausted := NewRetriesExhaustedError(3, 5, cause)
	gomega.Expect(IsRetriable(exhausted)).To(gomega.BeTrue())
	gomega.Expect(exhausted.Error()).To(gomega.Equal("batch #3 not applied after 5 attempts: duplicate priority"))

	gomega.Expect(IsRetriable(errors.Wrap(ErrQueueFull, "records"))).To(gomega.BeTrue())
	gomega.Expect(IsDeferred(NewDeferredError(cause))).To(gomega.BeTrue())
	gomega.Expect(IsFatal(NewFatalError(cause))).To(gomega.BeTrue())

	txnErr := NewTransactionError(cause, []string{"a", "b"})
	gomega.Expect(txnErr.Error()).To(gomega.Equal("duplicate priority (keys: [a, b])"))
}

func TestPutAllDeleteAll(t *testing.T) {
	gomega.RegisterTestingT(t)

	kvs := KeyValuePairs{
		"b": &model.Counter{Name: "b"},
		"a": &model.Counter{Name: "a"},
	}
	puts := PutAll(kvs)
	gomega.Expect(puts).To(gomega.HaveLen(2))
	gomega.Expect(puts[0].Key).To(gomega.Equal("a"))
	gomega.Expect(puts[0].Kind).To(gomega.Equal(Update))
	dels := DeleteAll(kvs)
	gomega.Expect(dels[1]).To(gomega.Equal(Operation{Kind: Delete, Key: "b"}))
	gomega.Expect(dels[1].String()).To(gomega.Equal("delete b"))
}
