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

package memstore

import (
	"context"
	"testing"

	"github.com/ligato/cn-infra/logging/logrus"
	"github.com/onsi/gomega"
	"github.com/pkg/errors"

	"github.com/contiv/ifmgr/plugins/ifmgr/model"
	"github.com/contiv/ifmgr/plugins/kvstore/api"
)

func counter(name string, value uint64) *model.Counter {
	return &model.Counter{Name: name, Value: value}
}

func TestPutGetDelete(t *testing.T) {
	gomega.RegisterTestingT(t)
	store := NewStore(logrus.DefaultLogger())

	txn := store.NewTxn()
	txn.Put("a/1", counter("one", 1))
	txn.Put("a/2", counter("two", 2))
	txn.Put("b/1", counter("other", 3))
	gomega.Expect(txn.Get("a/1")).To(gomega.Equal(counter("one", 1)))
	result := txn.Commit(context.Background())
	gomega.Expect(result.Status).To(gomega.Equal(api.Ok))
	gomega.Expect(result.Rev).To(gomega.BeEquivalentTo(1))

	value, rev, found := store.Get("a/2")
	gomega.Expect(found).To(gomega.BeTrue())
	gomega.Expect(rev).To(gomega.BeEquivalentTo(1))
	gomega.Expect(value).To(gomega.Equal(counter("two", 2)))
	gomega.Expect(store.List("a/")).To(gomega.HaveLen(2))

	txn = store.NewTxn()
	txn.Delete("a/1")
	gomega.Expect(txn.Get("a/1")).To(gomega.BeNil())
	gomega.Expect(txn.Commit(context.Background()).Status).To(gomega.Equal(api.Ok))
	_, _, found = store.Get("a/1")
	gomega.Expect(found).To(gomega.BeFalse())
	gomega.Expect(store.Revision()).To(gomega.BeEquivalentTo(2))
}

func TestMerge(t *testing.T) {
	gomega.RegisterTestingT(t)
	store := NewStore(logrus.DefaultLogger())

	txn := store.NewTxn()
	txn.Put("if", &model.InterfaceState{Name: "if0", Device: "dev1"})
	gomega.Expect(txn.Commit(context.Background()).Status).To(gomega.Equal(api.Ok))

	txn = store.NewTxn()
	txn.Merge("if", &model.InterfaceState{PortNo: 7})
	gomega.Expect(txn.Commit(context.Background()).Status).To(gomega.Equal(api.Ok))

	value, _, _ := store.Get("if")
	gomega.Expect(value).To(gomega.Equal(&model.InterfaceState{Name: "if0", Device: "dev1", PortNo: 7}))
}

func TestOptimisticLockConflict(t *testing.T) {
	gomega.RegisterTestingT(t)
	store := NewStore(logrus.DefaultLogger())

	txn1 := store.NewTxn()
	txn2 := store.NewTxn()
	gomega.Expect(txn1.Get("k")).To(gomega.BeNil())
	gomega.Expect(txn2.Get("k")).To(gomega.BeNil())

	txn1.Put("k", counter("k", 1))
	txn1.Put("x", counter("x", 1))
	gomega.Expect(txn1.Commit(context.Background()).Status).To(gomega.Equal(api.Ok))

	txn2.Put("k", counter("k", 2))
	txn2.Put("y", counter("y", 2))
	result := txn2.Commit(context.Background())
	gomega.Expect(result.Status).To(gomega.Equal(api.Conflict))
	gomega.Expect(errors.Cause(result.Err)).To(gomega.Equal(ErrConflict))

	// nothing from the failed transaction was applied
	_, _, found := store.Get("y")
	gomega.Expect(found).To(gomega.BeFalse())
	value, _, _ := store.Get("k")
	gomega.Expect(value).To(gomega.Equal(counter("k", 1)))
}

func TestDisjointTransactionsDoNotConflict(t *testing.T) {
	gomega.RegisterTestingT(t)
	store := NewStore(logrus.DefaultLogger())

	txn1 := store.NewTxn()
	txn2 := store.NewTxn()
	txn1.Put("if0/rule", counter("a", 1))
	txn2.Put("if1/rule", counter("b", 1))
	gomega.Expect(txn1.Commit(context.Background()).Status).To(gomega.Equal(api.Ok))
	gomega.Expect(txn2.Commit(context.Background()).Status).To(gomega.Equal(api.Ok))
}

func TestWatch(t *testing.T) {
	gomega.RegisterTestingT(t)
	store := NewStore(logrus.DefaultLogger())

	var events []api.ChangeEvent
	cancel := store.Watch("a/", func(ev api.ChangeEvent) {
		events = append(events, ev)
	})

	txn := store.NewTxn()
	txn.Put("a/1", counter("one", 1))
	txn.Put("b/1", counter("ignored", 1))
	txn.Commit(context.Background())

	// unchanged value does not produce an event
	txn = store.NewTxn()
	txn.Put("a/1", counter("one", 1))
	txn.Commit(context.Background())

	txn = store.NewTxn()
	txn.Delete("a/1")
	txn.Delete("a/missing")
	txn.Commit(context.Background())

	gomega.Expect(events).To(gomega.HaveLen(2))
	gomega.Expect(events[0].Key).To(gomega.Equal("a/1"))
	gomega.Expect(events[0].Prev).To(gomega.BeNil())
	gomega.Expect(events[0].IsDelete()).To(gomega.BeFalse())
	gomega.Expect(events[1].IsDelete()).To(gomega.BeTrue())
	gomega.Expect(events[1].Prev).To(gomega.Equal(counter("one", 1)))

	cancel()
	txn = store.NewTxn()
	txn.Put("a/2", counter("two", 2))
	txn.Commit(context.Background())
	gomega.Expect(events).To(gomega.HaveLen(2))
}

func TestInjectedFailures(t *testing.T) {
	gomega.RegisterTestingT(t)
	store := NewStore(logrus.DefaultLogger())

	store.InjectFailures(2, api.Conflict)
	for i := 0; i < 2; i++ {
		txn := store.NewTxn()
		txn.Put("k", counter("k", 1))
		gomega.Expect(txn.Commit(context.Background()).Status).To(gomega.Equal(api.Conflict))
	}
	txn := store.NewTxn()
	txn.Put("k", counter("k", 1))
	gomega.Expect(txn.Commit(context.Background()).Status).To(gomega.Equal(api.Ok))

	store.InjectFailures(1, api.Fatal)
	txn = store.NewTxn()
	txn.Put("k", counter("k", 2))
	result := txn.Commit(context.Background())
	gomega.Expect(result.Status).To(gomega.Equal(api.Fatal))
	gomega.Expect(result.Err).To(gomega.Equal(ErrInjected))
}

func TestCommitHookSimulatesConcurrentWriter(t *testing.T) {
	gomega.RegisterTestingT(t)
	store := NewStore(logrus.DefaultLogger())

	interfered := false
	store.SetCommitHook(func(s *Store, keys []string) {
		if interfered {
			return
		}
		interfered = true
		other := s.NewTxn()
		other.Put(keys[0], counter("other-writer", 9))
		gomega.Expect(other.Commit(context.Background()).Status).To(gomega.Equal(api.Ok))
	})

	txn := store.NewTxn()
	txn.Put("k", counter("k", 1))
	gomega.Expect(txn.Commit(context.Background()).Status).To(gomega.Equal(api.Conflict))

	txn = store.NewTxn()
	txn.Put("k", counter("k", 1))
	gomega.Expect(txn.Commit(context.Background()).Status).To(gomega.Equal(api.Ok))
}

func TestCanceledContext(t *testing.T) {
	gomega.RegisterTestingT(t)
	store := NewStore(logrus.DefaultLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	txn := store.NewTxn()
	txn.Put("k", counter("k", 1))
	gomega.Expect(txn.Commit(ctx).Status).To(gomega.Equal(api.Fatal))
}
