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
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/ligato/cn-infra/health/statuscheck"
	"github.com/ligato/cn-infra/infra"
	"github.com/ligato/cn-infra/rpc/rest"

	"github.com/contiv/ifmgr/plugins/controller/api"
	"github.com/contiv/ifmgr/plugins/dbresources"
	kvstore "github.com/contiv/ifmgr/plugins/kvstore/api"
	"github.com/contiv/ifmgr/plugins/statscollector"
)

// Controller decouples producers of configuration changes from the store.
//
// Producers enqueue groups of operations via Enqueue (api.ResourceQueue).
// Operations are split by resource class (see dbresources.ClassOf) into
// independent bounded queues. Each queue has a single consumer which, either
// periodically (FlushInterval) or once the queue holds MaxBatchSize operations,
// drains everything queued so far and commits it as one store transaction
// (a batch). A batch that fails with Conflict is rebuilt and retried up to
// RetryCeiling times. Completions of all groups of a batch are resolved
// with the outcome of the batch:
//   - nil when committed,
//   - api.RetriesExhaustedError when every attempt conflicted,
//   - api.FatalError when the store failed.
//
// A group of operations is therefore always applied atomically: either all
// of its operations are committed or none of them. Groups are committed in
// the order of enqueueing.
type Controller struct {
	Deps

	config *Config
	queues map[api.ResourceClass]*resourceQueue

	batchSeqNum uint64
	seqNumLock  sync.Mutex

	healthLock sync.Mutex
	lastFatal  error

	historyLock  sync.Mutex
	batchHistory []*BatchRecord

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// Deps lists dependencies of the Controller.
type Deps struct {
	infra.PluginDeps

	Store        kvstore.Store
	StatusCheck  statuscheck.PluginStatusWriter
	HTTPHandlers rest.HTTPHandlers
	Stats        statscollector.API // optional
}

// BatchRecord is a record of a processed batch, added into the history of batches,
// available via REST interface.
type BatchRecord struct {
	SeqNum          uint64
	Class           string
	Groups          int
	Operations      []string
	Attempts        int
	Revision        uint64
	ProcessingStart time.Time
	ProcessingEnd   time.Time
	Requeued        bool   // store failed, operations were put back into the queue
	Error           error  `json:"-"`
	ErrorStr        string // string representation of the error (if any)
}

// Init loads config file and starts the dispatch loops.
func (c *Controller) Init() error {
	if c.Store == nil {
		return errors.New("controller requires store")
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())

	// default configuration
	if c.config == nil {
		c.config = DefaultConfig()

		// load configuration
		if err := c.loadConfig(c.config); err != nil {
			c.Log.Error(err)
		}
	}
	if err := c.config.Validate(); err != nil {
		return api.NewConfigError(err)
	}
	c.Log.Infof("Controller configuration: %+v", *c.config)

	// register controller with status check
	if c.StatusCheck != nil {
		c.StatusCheck.Register(c.PluginName, nil)
	}

	// create one queue per resource class and start its consumer
	c.queues = make(map[api.ResourceClass]*resourceQueue)
	for _, class := range api.ResourceClasses {
		capacity := c.config.RecordQueueCapacity
		if class == api.Counters {
			capacity = c.config.CounterQueueCapacity
		}
		queue := newResourceQueue(class, capacity, c.config.MaxBatchSize)
		c.queues[class] = queue
		c.wg.Add(1)
		go c.dispatchLoop(queue)
	}

	// register REST API handlers
	c.registerHandlers()
	return nil
}

// Enqueue appends the operations as one group into the queue of their
// resource class. All operations of a group must belong to the same class.
func (c *Controller) Enqueue(ops ...api.Operation) (*api.Completion, error) {
	if len(ops) == 0 {
		return api.Completed(nil), nil
	}
	class := dbresources.ClassOf(ops[0].Key)
	for _, op := range ops {
		if err := validateOperation(op); err != nil {
			return nil, api.NewConfigError(err)
		}
		if opClass := dbresources.ClassOf(op.Key); opClass != class {
			return nil, api.NewConfigError(
				errors.Errorf("group mixes resource classes %s and %s (key %s)", class, opClass, op.Key))
		}
	}
	queue, hasQueue := c.queues[class]
	if !hasQueue {
		return nil, api.ErrClosed
	}
	group := make([]api.Operation, len(ops))
	copy(group, ops)
	completion, err := queue.push(group)
	if err != nil {
		return nil, err
	}
	c.reportDepth(queue)
	return completion, nil
}

// Flush asks all queues to commit what is queued without waiting
// for the next tick.
func (c *Controller) Flush() {
	for _, queue := range c.queues {
		queue.signal()
	}
}

// QueueDepth returns the number of operations waiting in the queue
// of the given class.
func (c *Controller) QueueDepth(class api.ResourceClass) int {
	queue, hasQueue := c.queues[class]
	if !hasQueue {
		return 0
	}
	return queue.getDepth()
}

// Close rejects new operations, commits what is still queued and stops
// the dispatch loops.
func (c *Controller) Close() error {
	if c.cancel == nil {
		return nil
	}
	for _, queue := range c.queues {
		queue.close()
	}
	c.cancel()
	c.wg.Wait()
	return nil
}

// dispatchLoop is the single consumer of the given queue.
func (c *Controller) dispatchLoop(queue *resourceQueue) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.FlushInterval)
	defer ticker.Stop()

	var (
		outage time.Duration    // current delay while the store keeps failing
		retry  <-chan time.Time // fires when the requeued batch is due
	)
	for {
		select {
		case <-c.ctx.Done():
			// final flush of what was enqueued before close
			c.flush(queue, true)
			return
		case <-ticker.C:
		case <-queue.flushCh:
		case <-retry:
			retry = nil
		}
		if retry != nil {
			// requeued batch waits for its retry
			continue
		}
		if c.flush(queue, false) {
			outage = c.config.outageDelay(outage)
			retry = time.After(outage)
			c.Log.Warnf("Store failure, %s queue will be flushed again in %v", queue.class, outage)
		} else {
			outage = 0
		}
	}
}

// flush drains the queue and commits everything as one batch.
// If the store fails, the batch is put back into the queue with completions
// left pending and true is returned. The <final> flush (on close) resolves
// the completions of a failed batch with FatalError instead.
func (c *Controller) flush(queue *resourceQueue, final bool) (requeued bool) {
	groups := queue.drain()
	c.reportDepth(queue)
	if len(groups) == 0 {
		return false
	}

	var ops []api.Operation
	for _, group := range groups {
		ops = append(ops, group.ops...)
	}
	record := &BatchRecord{
		SeqNum:          c.nextSeqNum(),
		Class:           queue.class.String(),
		Groups:          len(groups),
		ProcessingStart: time.Now(),
	}
	for _, op := range ops {
		record.Operations = append(record.Operations, op.String())
	}
	if !c.config.DisableBanners {
		c.printNewBatch(record)
	}

	description := fmt.Sprintf("batch %s (%s)", batchSeqNumToStr(record.SeqNum), record.Class)
	txn := newBatchTxn(c.Store, description, ops)
	result, attempts := c.commitWithRetry(txn, queue.class)
	record.Attempts = attempts

	var batchErr error
	switch result.Status {
	case kvstore.Ok:
		record.Revision = result.Rev
		if c.Stats != nil {
			c.Stats.BatchCommitted(record.Class, len(ops), attempts)
		}
	case kvstore.Conflict:
		batchErr = api.NewRetriesExhaustedError(record.SeqNum, attempts,
			api.NewTransactionError(result.Err, txn.Keys()))
		if c.Stats != nil {
			c.Stats.BatchFailed(record.Class, statscollector.FailureConflict)
		}
	default:
		batchErr = api.NewFatalError(api.NewTransactionError(result.Err, txn.Keys()))
		if c.Stats != nil {
			c.Stats.BatchFailed(record.Class, statscollector.FailureFatal)
		}
		requeued = !final
	}
	c.reportHealth(result, batchErr)

	if requeued {
		queue.requeue(groups)
		c.reportDepth(queue)
		record.Requeued = true
	} else {
		for _, group := range groups {
			group.completion.Done(batchErr)
		}
	}

	record.ProcessingEnd = time.Now()
	if batchErr != nil {
		record.Error = batchErr
		record.ErrorStr = batchErr.Error()
		c.Log.Warnf("Batch %s failed (requeued=%t): %v", batchSeqNumToStr(record.SeqNum), requeued, batchErr)
	}
	if !c.config.DisableBanners {
		c.printFinalizedBatch(record)
	}
	c.recordBatch(record)
	return requeued
}

// commitWithRetry commits the transaction, retrying on conflict up to the
// retry ceiling. Returns the last result and the number of attempts.
func (c *Controller) commitWithRetry(txn *batchTxn, class api.ResourceClass) (result kvstore.CommitResult, attempts int) {
	for retry := 0; ; retry++ {
		result = txn.Commit(context.Background())
		attempts++
		if result.Status != kvstore.Conflict || retry >= c.config.RetryCeiling {
			return result, attempts
		}
		c.Log.Debugf("Batch %s conflicted (attempt %d): %v", txn.description, attempts, result.Err)
		if c.Stats != nil {
			c.Stats.ConflictRetried(class.String())
		}
		delay := c.config.retryDelay(retry + 1)
		if delay == 0 {
			continue
		}
		select {
		case <-c.ctx.Done():
			// closing - retry immediately
		case <-time.After(delay):
		}
	}
}

// reportHealth reports fatal store failures to the status check and clears
// the error with the next successful commit.
func (c *Controller) reportHealth(result kvstore.CommitResult, batchErr error) {
	c.healthLock.Lock()
	defer c.healthLock.Unlock()

	switch result.Status {
	case kvstore.Fatal:
		c.lastFatal = batchErr
		if c.StatusCheck != nil {
			c.StatusCheck.ReportStateChange(c.PluginName, statuscheck.Error, batchErr)
		}
	case kvstore.Ok:
		if c.lastFatal != nil && c.StatusCheck != nil {
			c.StatusCheck.ReportStateChange(c.PluginName, statuscheck.OK, nil)
		}
		c.lastFatal = nil
	}
}

// reportDepth updates the queue depth statistics.
func (c *Controller) reportDepth(queue *resourceQueue) {
	if c.Stats != nil {
		c.Stats.QueueDepth(queue.class.String(), queue.getDepth())
	}
}

// nextSeqNum returns sequence number for a new batch.
func (c *Controller) nextSeqNum() uint64 {
	c.seqNumLock.Lock()
	defer c.seqNumLock.Unlock()
	seqNum := c.batchSeqNum
	c.batchSeqNum++
	return seqNum
}

// recordBatch adds the batch into the history, trimmed to HistoryLength.
func (c *Controller) recordBatch(record *BatchRecord) {
	c.historyLock.Lock()
	defer c.historyLock.Unlock()
	if c.config.HistoryLength == 0 {
		return
	}
	c.batchHistory = append(c.batchHistory, record)
	if overflow := len(c.batchHistory) - c.config.HistoryLength; overflow > 0 {
		c.batchHistory = c.batchHistory[overflow:]
	}
}

// selectBatches returns the history records matching the filter.
func (c *Controller) selectBatches(filter historyFilter) []*BatchRecord {
	c.historyLock.Lock()
	defer c.historyLock.Unlock()
	return filter.apply(c.batchHistory)
}

// loadConfig loads configuration file.
func (c *Controller) loadConfig(config *Config) error {
	if c.Cfg == nil {
		return nil
	}
	found, err := c.Cfg.LoadValue(config)
	if err != nil {
		return err
	} else if !found {
		c.Log.Debugf("%v config not found", c.PluginName)
		return nil
	}
	c.Log.Debugf("%v config found: %+v", c.PluginName, config)
	return nil
}
