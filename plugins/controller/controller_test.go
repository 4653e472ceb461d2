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
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ligato/cn-infra/infra"
	"github.com/ligato/cn-infra/logging"
	"github.com/onsi/gomega"
	"github.com/unrolled/render"

	"github.com/contiv/ifmgr/plugins/controller/api"
	"github.com/contiv/ifmgr/plugins/ifmgr/model"
	kvstore "github.com/contiv/ifmgr/plugins/kvstore/api"
	"github.com/contiv/ifmgr/plugins/kvstore/memstore"
)

// plugin logger shared by the tests of the package
var testLog = logging.ForPlugin("controller-test")

// mockStats records statistics reported by the controller.
type mockStats struct {
	sync.Mutex
	committed map[string]int
	failed    map[string]int
	retries   map[string]int
	depth     map[string]int
}

func newMockStats() *mockStats {
	return &mockStats{
		committed: make(map[string]int),
		failed:    make(map[string]int),
		retries:   make(map[string]int),
		depth:     make(map[string]int),
	}
}

func (m *mockStats) BatchCommitted(class string, operations int, attempts int) {
	m.Lock()
	defer m.Unlock()
	m.committed[class]++
}

func (m *mockStats) BatchFailed(class string, reason string) {
	m.Lock()
	defer m.Unlock()
	m.failed[class+"/"+reason]++
}

func (m *mockStats) ConflictRetried(class string) {
	m.Lock()
	defer m.Unlock()
	m.retries[class]++
}

func (m *mockStats) QueueDepth(class string, depth int) {
	m.Lock()
	defer m.Unlock()
	m.depth[class] = depth
}

func (m *mockStats) InterfaceStates(counts map[string]int) {}

func (m *mockStats) BoundServices(count int) {}

func (m *mockStats) get(values map[string]int, key string) int {
	m.Lock()
	defer m.Unlock()
	return values[key]
}

type fixture struct {
	controller *Controller
	store      *memstore.Store
	stats      *mockStats
}

func newFixture(configure func(config *Config)) *fixture {
	config := DefaultConfig()
	config.FlushInterval = time.Hour // flush on demand only
	config.DelayRetry = 0
	config.DisableBanners = true
	if configure != nil {
		configure(config)
	}

	log := testLog
	store := memstore.NewStore(log)
	stats := newMockStats()
	c := &Controller{
		Deps: Deps{
			PluginDeps: infra.PluginDeps{
				PluginName: "controller",
				Log:        log,
			},
			Store: store,
			Stats: stats,
		},
		config: config,
	}
	gomega.Expect(c.Init()).To(gomega.Succeed())
	return &fixture{controller: c, store: store, stats: stats}
}

func counterOp(ifName, name string, value uint64) api.Operation {
	return api.Operation{
		Kind:  api.Update,
		Key:   model.CounterKey(ifName, name),
		Value: &model.Counter{Name: name, Value: value},
	}
}

func stateOp(ifName string, state model.InterfaceState_State) api.Operation {
	return api.Operation{
		Kind:  api.Update,
		Key:   model.InterfaceStateKey(ifName),
		Value: &model.InterfaceState{Name: ifName, State: state},
	}
}

func waitFor(completion *api.Completion) error {
	select {
	case <-completion.Ready():
		return completion.Err()
	case <-time.After(5 * time.Second):
		panic("completion not resolved in time")
	}
}

func TestGroupsCommittedInOneBatch(t *testing.T) {
	gomega.RegisterTestingT(t)
	f := newFixture(nil)
	defer f.controller.Close()

	c1, err := f.controller.Enqueue(stateOp("eth0", model.InterfaceState_PENDING))
	gomega.Expect(err).ToNot(gomega.HaveOccurred())
	c2, err := f.controller.Enqueue(
		stateOp("eth0", model.InterfaceState_BOUND),
		stateOp("eth1", model.InterfaceState_PENDING))
	gomega.Expect(err).ToNot(gomega.HaveOccurred())
	gomega.Expect(f.controller.QueueDepth(api.Records)).To(gomega.Equal(3))
	gomega.Expect(c1.Ready()).ToNot(gomega.BeClosed())

	f.controller.Flush()
	gomega.Expect(waitFor(c1)).To(gomega.Succeed())
	gomega.Expect(waitFor(c2)).To(gomega.Succeed())

	// later operation on the same key wins
	value, _, found := f.store.Get(model.InterfaceStateKey("eth0"))
	gomega.Expect(found).To(gomega.BeTrue())
	gomega.Expect(value.(*model.InterfaceState).State).To(gomega.Equal(model.InterfaceState_BOUND))
	_, _, found = f.store.Get(model.InterfaceStateKey("eth1"))
	gomega.Expect(found).To(gomega.BeTrue())
	gomega.Expect(f.store.Revision()).To(gomega.BeEquivalentTo(1))

	f.controller.historyLock.Lock()
	defer f.controller.historyLock.Unlock()
	gomega.Expect(f.controller.batchHistory).To(gomega.HaveLen(1))
	record := f.controller.batchHistory[0]
	gomega.Expect(record.Groups).To(gomega.Equal(2))
	gomega.Expect(record.Operations).To(gomega.HaveLen(3))
	gomega.Expect(record.Attempts).To(gomega.Equal(1))
	gomega.Expect(record.Revision).To(gomega.BeEquivalentTo(1))
	gomega.Expect(f.stats.get(f.stats.committed, "records")).To(gomega.Equal(1))
}

func TestSeparateQueuesPerClass(t *testing.T) {
	gomega.RegisterTestingT(t)
	f := newFixture(nil)
	defer f.controller.Close()

	records, err := f.controller.Enqueue(stateOp("eth0", model.InterfaceState_PENDING))
	gomega.Expect(err).ToNot(gomega.HaveOccurred())
	counters, err := f.controller.Enqueue(counterOp("eth0", "rx-packets", 10))
	gomega.Expect(err).ToNot(gomega.HaveOccurred())
	gomega.Expect(f.controller.QueueDepth(api.Records)).To(gomega.Equal(1))
	gomega.Expect(f.controller.QueueDepth(api.Counters)).To(gomega.Equal(1))

	f.controller.Flush()
	gomega.Expect(waitFor(records)).To(gomega.Succeed())
	gomega.Expect(waitFor(counters)).To(gomega.Succeed())
	gomega.Expect(f.stats.get(f.stats.committed, "records")).To(gomega.Equal(1))
	gomega.Expect(f.stats.get(f.stats.committed, "counters")).To(gomega.Equal(1))
}

func TestInvalidGroups(t *testing.T) {
	gomega.RegisterTestingT(t)
	f := newFixture(nil)
	defer f.controller.Close()

	// mixed classes
	_, err := f.controller.Enqueue(
		stateOp("eth0", model.InterfaceState_PENDING),
		counterOp("eth0", "rx-packets", 1))
	gomega.Expect(api.IsConfigError(err)).To(gomega.BeTrue())

	// value of a wrong type
	_, err = f.controller.Enqueue(api.Operation{
		Kind:  api.Update,
		Key:   model.InterfaceStateKey("eth0"),
		Value: &model.Counter{Name: "x"},
	})
	gomega.Expect(api.IsConfigError(err)).To(gomega.BeTrue())

	// put without value
	_, err = f.controller.Enqueue(api.Operation{Kind: api.Create, Key: model.InterfaceStateKey("eth0")})
	gomega.Expect(api.IsConfigError(err)).To(gomega.BeTrue())

	// empty group completes immediately
	completion, err := f.controller.Enqueue()
	gomega.Expect(err).ToNot(gomega.HaveOccurred())
	gomega.Expect(completion.Wait()).To(gomega.Succeed())
	gomega.Expect(f.controller.QueueDepth(api.Records)).To(gomega.BeZero())
}

func TestQueueFull(t *testing.T) {
	gomega.RegisterTestingT(t)
	f := newFixture(func(config *Config) {
		config.RecordQueueCapacity = 2
	})
	defer f.controller.Close()

	_, err := f.controller.Enqueue(
		stateOp("eth0", model.InterfaceState_PENDING),
		stateOp("eth1", model.InterfaceState_PENDING),
		stateOp("eth2", model.InterfaceState_PENDING))
	gomega.Expect(err).To(gomega.HaveOccurred())
	gomega.Expect(api.IsRetriable(err)).To(gomega.BeTrue())

	completion, err := f.controller.Enqueue(stateOp("eth0", model.InterfaceState_PENDING))
	gomega.Expect(err).ToNot(gomega.HaveOccurred())
	f.controller.Flush()
	gomega.Expect(waitFor(completion)).To(gomega.Succeed())
}

func TestFlushOnBatchSize(t *testing.T) {
	gomega.RegisterTestingT(t)
	f := newFixture(func(config *Config) {
		config.MaxBatchSize = 2
	})
	defer f.controller.Close()

	completion, err := f.controller.Enqueue(
		stateOp("eth0", model.InterfaceState_PENDING),
		stateOp("eth1", model.InterfaceState_PENDING))
	gomega.Expect(err).ToNot(gomega.HaveOccurred())

	// no explicit flush, no tick
	gomega.Expect(waitFor(completion)).To(gomega.Succeed())
	gomega.Expect(f.store.List(model.InterfaceStateKeyPrefix())).To(gomega.HaveLen(2))
}

func TestConflictRetried(t *testing.T) {
	gomega.RegisterTestingT(t)
	f := newFixture(func(config *Config) {
		config.RetryCeiling = 3
	})
	defer f.controller.Close()

	f.store.InjectFailures(2, kvstore.Conflict)
	completion, err := f.controller.Enqueue(stateOp("eth0", model.InterfaceState_BOUND))
	gomega.Expect(err).ToNot(gomega.HaveOccurred())
	f.controller.Flush()
	gomega.Expect(waitFor(completion)).To(gomega.Succeed())

	_, _, found := f.store.Get(model.InterfaceStateKey("eth0"))
	gomega.Expect(found).To(gomega.BeTrue())
	gomega.Expect(f.stats.get(f.stats.retries, "records")).To(gomega.Equal(2))

	f.controller.historyLock.Lock()
	defer f.controller.historyLock.Unlock()
	gomega.Expect(f.controller.batchHistory[0].Attempts).To(gomega.Equal(3))
}

func TestConcurrentWriterConflict(t *testing.T) {
	gomega.RegisterTestingT(t)
	f := newFixture(nil)
	defer f.controller.Close()

	// a concurrent writer modifies the same key once, between the time
	// the batch is built and committed
	var once sync.Once
	f.store.SetCommitHook(func(store *memstore.Store, keys []string) {
		once.Do(func() {
			txn := store.NewTxn()
			txn.Put(model.InterfaceStateKey("eth0"),
				&model.InterfaceState{Name: "eth0", State: model.InterfaceState_TOMBSTONED})
			txn.Commit(context.Background())
		})
	})

	completion, err := f.controller.Enqueue(stateOp("eth0", model.InterfaceState_BOUND))
	gomega.Expect(err).ToNot(gomega.HaveOccurred())
	f.controller.Flush()
	gomega.Expect(waitFor(completion)).To(gomega.Succeed())

	value, _, _ := f.store.Get(model.InterfaceStateKey("eth0"))
	gomega.Expect(value.(*model.InterfaceState).State).To(gomega.Equal(model.InterfaceState_BOUND))
	gomega.Expect(f.stats.get(f.stats.retries, "records")).To(gomega.Equal(1))
}

func TestRetriesExhausted(t *testing.T) {
	gomega.RegisterTestingT(t)
	f := newFixture(func(config *Config) {
		config.RetryCeiling = 2
	})
	defer f.controller.Close()

	f.store.InjectFailures(100, kvstore.Conflict)
	c1, err := f.controller.Enqueue(stateOp("eth0", model.InterfaceState_BOUND))
	gomega.Expect(err).ToNot(gomega.HaveOccurred())
	c2, err := f.controller.Enqueue(stateOp("eth1", model.InterfaceState_BOUND))
	gomega.Expect(err).ToNot(gomega.HaveOccurred())
	f.controller.Flush()

	err = waitFor(c1)
	gomega.Expect(err).To(gomega.HaveOccurred())
	gomega.Expect(api.IsRetriable(err)).To(gomega.BeTrue())
	exhausted, isExhausted := err.(*api.RetriesExhaustedError)
	gomega.Expect(isExhausted).To(gomega.BeTrue())
	gomega.Expect(exhausted.Attempts).To(gomega.Equal(3))
	gomega.Expect(waitFor(c2)).To(gomega.Equal(err))

	// nothing of the batch was applied
	gomega.Expect(f.store.List(model.InterfaceStateKeyPrefix())).To(gomega.BeEmpty())
	gomega.Expect(f.stats.get(f.stats.failed, "records/conflict")).To(gomega.Equal(1))
}

func TestStoreOutage(t *testing.T) {
	gomega.RegisterTestingT(t)
	f := newFixture(func(config *Config) {
		config.OutageRetryDelay = 10 * time.Millisecond
		config.EnableExpBackoffRetry = false
	})
	defer f.controller.Close()

	// store stays down until the failures are cleared below
	f.store.InjectFailures(1000, kvstore.Fatal)
	c1, err := f.controller.Enqueue(stateOp("eth0", model.InterfaceState_BOUND))
	gomega.Expect(err).ToNot(gomega.HaveOccurred())
	f.controller.Flush()
	gomega.Eventually(func() int {
		return f.stats.get(f.stats.failed, "records/fatal")
	}).Should(gomega.BeNumerically(">=", 2))

	// the batch is back in the queue, nothing is resolved
	gomega.Expect(c1.Ready()).ToNot(gomega.BeClosed())
	gomega.Expect(f.controller.QueueDepth(api.Records)).To(gomega.Equal(1))

	// groups enqueued during the outage go behind the requeued batch
	c2, err := f.controller.Enqueue(stateOp("eth0", model.InterfaceState_ABSENT))
	gomega.Expect(err).ToNot(gomega.HaveOccurred())
	gomega.Expect(f.controller.QueueDepth(api.Records)).To(gomega.Equal(2))
	f.controller.historyLock.Lock()
	gomega.Expect(f.controller.batchHistory).ToNot(gomega.BeEmpty())
	gomega.Expect(f.controller.batchHistory[0].Requeued).To(gomega.BeTrue())
	gomega.Expect(api.IsFatal(f.controller.batchHistory[0].Error)).To(gomega.BeTrue())
	f.controller.historyLock.Unlock()

	// store recovers
	f.store.InjectFailures(0, kvstore.Ok)
	gomega.Expect(waitFor(c1)).To(gomega.Succeed())
	gomega.Expect(waitFor(c2)).To(gomega.Succeed())
	value, _, found := f.store.Get(model.InterfaceStateKey("eth0"))
	gomega.Expect(found).To(gomega.BeTrue())
	gomega.Expect(value.(*model.InterfaceState).State).To(gomega.Equal(model.InterfaceState_ABSENT))
	gomega.Expect(f.controller.QueueDepth(api.Records)).To(gomega.BeZero())
	gomega.Expect(f.stats.get(f.stats.retries, "records")).To(gomega.BeZero())
}

func TestCloseDuringOutage(t *testing.T) {
	gomega.RegisterTestingT(t)
	f := newFixture(func(config *Config) {
		config.OutageRetryDelay = time.Hour
	})

	f.store.InjectFailures(1000, kvstore.Fatal)
	completion, err := f.controller.Enqueue(stateOp("eth0", model.InterfaceState_BOUND))
	gomega.Expect(err).ToNot(gomega.HaveOccurred())
	f.controller.Flush()
	gomega.Eventually(func() int {
		return f.stats.get(f.stats.failed, "records/fatal")
	}).Should(gomega.Equal(1))
	gomega.Consistently(completion.Ready(), 50*time.Millisecond).ShouldNot(gomega.BeClosed())

	// the final flush fails as well and resolves the completion
	gomega.Expect(f.controller.Close()).To(gomega.Succeed())
	gomega.Expect(completion.Ready()).To(gomega.BeClosed())
	gomega.Expect(api.IsFatal(completion.Err())).To(gomega.BeTrue())
	gomega.Expect(f.stats.get(f.stats.failed, "records/fatal")).To(gomega.Equal(2))
}

func TestOutageDelay(t *testing.T) {
	gomega.RegisterTestingT(t)
	config := DefaultConfig()
	config.OutageRetryDelay = time.Second

	config.EnableExpBackoffRetry = false
	gomega.Expect(config.outageDelay(0)).To(gomega.Equal(time.Second))
	gomega.Expect(config.outageDelay(time.Second)).To(gomega.Equal(time.Second))

	config.EnableExpBackoffRetry = true
	gomega.Expect(config.outageDelay(time.Second)).To(gomega.Equal(2 * time.Second))
	gomega.Expect(config.outageDelay(4 * time.Second)).To(gomega.Equal(maxOutageRetryDelay))

	config.OutageRetryDelay = 0
	gomega.Expect(config.Validate()).ToNot(gomega.Succeed())
}

func TestCloseFlushesQueue(t *testing.T) {
	gomega.RegisterTestingT(t)
	f := newFixture(nil)

	completion, err := f.controller.Enqueue(stateOp("eth0", model.InterfaceState_PENDING))
	gomega.Expect(err).ToNot(gomega.HaveOccurred())
	gomega.Expect(f.controller.Close()).To(gomega.Succeed())
	gomega.Expect(completion.Ready()).To(gomega.BeClosed())
	gomega.Expect(completion.Err()).ToNot(gomega.HaveOccurred())

	_, err = f.controller.Enqueue(stateOp("eth1", model.InterfaceState_PENDING))
	gomega.Expect(err).To(gomega.Equal(api.ErrClosed))
}

func TestHistoryLength(t *testing.T) {
	gomega.RegisterTestingT(t)
	f := newFixture(func(config *Config) {
		config.HistoryLength = 2
	})
	defer f.controller.Close()

	for i := 0; i < 3; i++ {
		completion, err := f.controller.Enqueue(counterOp("eth0", "rx-packets", uint64(i)))
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		f.controller.Flush()
		gomega.Expect(waitFor(completion)).To(gomega.Succeed())
	}

	f.controller.historyLock.Lock()
	defer f.controller.historyLock.Unlock()
	gomega.Expect(f.controller.batchHistory).To(gomega.HaveLen(2))
	gomega.Expect(f.controller.batchHistory[0].SeqNum).To(gomega.BeEquivalentTo(1))
	gomega.Expect(f.controller.batchHistory[1].SeqNum).To(gomega.BeEquivalentTo(2))
}

func TestConfigValidate(t *testing.T) {
	gomega.RegisterTestingT(t)

	gomega.Expect(DefaultConfig().Validate()).To(gomega.Succeed())

	config := DefaultConfig()
	config.MaxBatchSize = 0
	gomega.Expect(config.Validate()).ToNot(gomega.Succeed())

	config = DefaultConfig()
	config.RetryCeiling = -1
	gomega.Expect(config.Validate()).ToNot(gomega.Succeed())

	config = DefaultConfig()
	config.DelayRetry = 10 * time.Millisecond
	gomega.Expect(config.retryDelay(1)).To(gomega.Equal(10 * time.Millisecond))
	gomega.Expect(config.retryDelay(3)).To(gomega.Equal(40 * time.Millisecond))
	gomega.Expect(config.retryDelay(20)).To(gomega.Equal(maxDelayRetry))
	config.EnableExpBackoffRetry = false
	gomega.Expect(config.retryDelay(20)).To(gomega.Equal(10 * time.Millisecond))
}

func TestSplitLongLines(t *testing.T) {
	gomega.RegisterTestingT(t)

	lines := splitLongLines([]string{"short", "aaa bbb ccc"}, 7, 2)
	gomega.Expect(lines).To(gomega.Equal([]string{"short", "aaa bbb", "  ccc"}))
}

func TestBatchHistoryQuery(t *testing.T) {
	gomega.RegisterTestingT(t)
	f := newFixture(nil)
	defer f.controller.Close()

	start := time.Now()
	f.controller.historyLock.Lock()
	f.controller.batchHistory = []*BatchRecord{
		{SeqNum: 1, Class: "records", ProcessingStart: start, ProcessingEnd: start},
		{SeqNum: 2, Class: "counters", ProcessingStart: start, ProcessingEnd: start},
		{SeqNum: 3, Class: "records", ProcessingStart: start, ProcessingEnd: start,
			Error: api.ErrClosed, ErrorStr: api.ErrClosed.Error()},
		{SeqNum: 4, Class: "records", ProcessingStart: start, ProcessingEnd: start},
	}
	f.controller.historyLock.Unlock()
	handler := f.controller.batchHistoryGetHandler(render.New())
	query := func(rawQuery string) (int, []uint64) {
		rec := httptest.NewRecorder()
		handler(rec, httptest.NewRequest("GET", batchHistoryURL+"?"+rawQuery, nil))
		if rec.Code != http.StatusOK {
			return rec.Code, nil
		}
		var records []BatchRecord
		if rawQuery != "" && strings.HasPrefix(rawQuery, seqNumArg) {
			var record BatchRecord
			gomega.Expect(json.Unmarshal(rec.Body.Bytes(), &record)).To(gomega.Succeed())
			records = append(records, record)
		} else {
			gomega.Expect(json.Unmarshal(rec.Body.Bytes(), &records)).To(gomega.Succeed())
		}
		var seqNums []uint64
		for _, record := range records {
			seqNums = append(seqNums, record.SeqNum)
		}
		return rec.Code, seqNums
	}

	code, seqNums := query("")
	gomega.Expect(code).To(gomega.Equal(http.StatusOK))
	gomega.Expect(seqNums).To(gomega.Equal([]uint64{1, 2, 3, 4}))

	_, seqNums = query("class=records&last=2")
	gomega.Expect(seqNums).To(gomega.Equal([]uint64{3, 4}))
	_, seqNums = query("failed=true")
	gomega.Expect(seqNums).To(gomega.Equal([]uint64{3}))
	_, seqNums = query("seq-num=2")
	gomega.Expect(seqNums).To(gomega.Equal([]uint64{2}))
	_, seqNums = query("until=" + strconv.FormatInt(start.Add(-time.Hour).Unix(), 10))
	gomega.Expect(seqNums).To(gomega.BeEmpty())

	code, _ = query("seq-num=7")
	gomega.Expect(code).To(gomega.Equal(http.StatusNotFound))
	code, _ = query("class=bogus")
	gomega.Expect(code).To(gomega.Equal(http.StatusBadRequest))
	code, _ = query("last=-1")
	gomega.Expect(code).To(gomega.Equal(http.StatusBadRequest))
}
