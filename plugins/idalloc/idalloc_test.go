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

package idalloc

import (
	"context"
	"testing"

	"github.com/ligato/cn-infra/logging"
	"github.com/ligato/cn-infra/logging/logrus"
	"github.com/onsi/gomega"
	"github.com/pkg/errors"

	"github.com/contiv/ifmgr/mock/servicelabel"
	"github.com/contiv/ifmgr/plugins/idalloc/idallocation"
	kvstore "github.com/contiv/ifmgr/plugins/kvstore/api"
	"github.com/contiv/ifmgr/plugins/kvstore/memstore"
)

// plugin logger shared by the tests of the package
var testLog = logging.ForPlugin("idalloc-test")

func newAllocator(store *memstore.Store, agent string) *IDAllocator {
	a := NewPlugin(UseDeps(func(deps *Deps) {
		deps.Log = testLog
		deps.ServiceLabel = servicelabel.NewMockServiceLabel(agent)
		deps.Store = store
	}))
	gomega.Expect(a.Init()).To(gomega.Succeed())
	return a
}

func TestAllocateAndRelease(t *testing.T) {
	gomega.RegisterTestingT(t)
	store := memstore.NewStore(logrus.DefaultLogger())
	a := newAllocator(store, "agent1")

	poolRange := &idallocation.AllocationPool_Range{MinId: 1, MaxId: 3, Reserved: []uint32{2}}
	gomega.Expect(a.InitPool("port-tags", poolRange)).To(gomega.Succeed())
	// repeated init with the same range is a no-op
	gomega.Expect(a.InitPool("port-tags", poolRange)).To(gomega.Succeed())
	err := a.InitPool("port-tags", &idallocation.AllocationPool_Range{MinId: 1, MaxId: 4})
	gomega.Expect(errors.Cause(err)).To(gomega.Equal(ErrPoolMismatch))

	id, err := a.GetOrAllocateID("port-tags", "if0")
	gomega.Expect(err).To(gomega.BeNil())
	gomega.Expect(id).To(gomega.BeEquivalentTo(1))

	// idempotent per label
	id, err = a.GetOrAllocateID("port-tags", "if0")
	gomega.Expect(err).To(gomega.BeNil())
	gomega.Expect(id).To(gomega.BeEquivalentTo(1))
	gomega.Expect(a.GetID("port-tags", "if0")).To(gomega.BeEquivalentTo(1))

	// 2 is reserved
	id, err = a.GetOrAllocateID("port-tags", "if1")
	gomega.Expect(err).To(gomega.BeNil())
	gomega.Expect(id).To(gomega.BeEquivalentTo(3))

	_, err = a.GetOrAllocateID("port-tags", "if2")
	gomega.Expect(errors.Cause(err)).To(gomega.Equal(ErrPoolExhausted))

	// release twice, the second release is a no-op
	gomega.Expect(a.ReleaseID("port-tags", "if0")).To(gomega.Succeed())
	gomega.Expect(a.ReleaseID("port-tags", "if0")).To(gomega.Succeed())
	gomega.Expect(a.GetID("port-tags", "if0")).To(gomega.BeZero())

	id, err = a.GetOrAllocateID("port-tags", "if2")
	gomega.Expect(err).To(gomega.BeNil())
	gomega.Expect(id).To(gomega.BeEquivalentTo(1))

	// persisted
	value, _, found := store.Get(idallocation.Key("port-tags"))
	gomega.Expect(found).To(gomega.BeTrue())
	pool := value.(*idallocation.AllocationPool)
	gomega.Expect(pool.IdAllocations).To(gomega.HaveLen(2))
	gomega.Expect(pool.IdAllocations["if2"].Owner).To(gomega.Equal("agent1"))

	_, err = a.GetOrAllocateID("unknown", "if0")
	gomega.Expect(errors.Cause(err)).To(gomega.Equal(ErrPoolNotFound))
	gomega.Expect(a.ReleaseID("unknown", "if0")).To(gomega.Succeed())
}

func TestAllocationRetriesOnConcurrentWriter(t *testing.T) {
	gomega.RegisterTestingT(t)
	store := memstore.NewStore(logrus.DefaultLogger())
	a1 := newAllocator(store, "agent1")
	gomega.Expect(a1.InitPool("group-ids", &idallocation.AllocationPool_Range{MinId: 10, MaxId: 20})).To(gomega.Succeed())

	// second allocator loads the pool from the store
	a2 := newAllocator(store, "agent2")
	id, err := a2.GetOrAllocateID("group-ids", "grp-a")
	gomega.Expect(err).To(gomega.BeNil())
	gomega.Expect(id).To(gomega.BeEquivalentTo(10))

	// a1 has stale cache, must re-read and pick the next free ID
	id, err = a1.GetOrAllocateID("group-ids", "grp-b")
	gomega.Expect(err).To(gomega.BeNil())
	gomega.Expect(id).To(gomega.BeEquivalentTo(11))

	// injected conflicts are retried
	store.InjectFailures(2, kvstore.Conflict)
	id, err = a1.GetOrAllocateID("group-ids", "grp-c")
	gomega.Expect(err).To(gomega.BeNil())
	gomega.Expect(id).To(gomega.BeEquivalentTo(12))

	// store failure is reported
	store.InjectFailures(1, kvstore.Fatal)
	_, err = a1.GetOrAllocateID("group-ids", "grp-d")
	gomega.Expect(errors.Cause(err)).To(gomega.Equal(memstore.ErrInjected))
}

func TestResync(t *testing.T) {
	gomega.RegisterTestingT(t)
	store := memstore.NewStore(logrus.DefaultLogger())

	txn := store.NewTxn()
	txn.Put(idallocation.Key("port-tags"), &idallocation.AllocationPool{
		Name:  "port-tags",
		Range: &idallocation.AllocationPool_Range{MinId: 1, MaxId: 100},
		IdAllocations: map[string]*idallocation.AllocationPool_Allocation{
			"if5": {Id: 5, Owner: "agent1"},
		},
	})
	gomega.Expect(txn.Commit(context.Background()).Status).To(gomega.Equal(kvstore.Ok))

	a := newAllocator(store, "agent1")
	gomega.Expect(a.GetID("port-tags", "if5")).To(gomega.BeEquivalentTo(5))
	id, err := a.GetOrAllocateID("port-tags", "if6")
	gomega.Expect(err).To(gomega.BeNil())
	gomega.Expect(id).To(gomega.BeEquivalentTo(1))
}
