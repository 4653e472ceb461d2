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

// Package memstore implements the transactional key-value store API
// in memory, with revisions for optimistic locking, ordered change
// notifications and failure injection for tests.
package memstore

import (
	"context"
	"reflect"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gogo/protobuf/proto"
	"github.com/ligato/cn-infra/logging"
	"github.com/pkg/errors"

	scheduler "github.com/ligato/vpp-agent/plugins/kvscheduler/api"

	"github.com/contiv/ifmgr/plugins/kvstore/api"
)

var (
	// ErrConflict is returned in the commit result when a key touched
	// by the transaction was changed by another writer.
	ErrConflict = errors.New("optimistic lock conflict")

	// ErrInjected is returned for failures injected via InjectFailures.
	ErrInjected = errors.New("injected commit failure")
)

// CommitHook is called before a transaction is validated, with the keys
// the transaction touches. The hook may commit into the store (simulating
// a concurrent writer); commits made from the hook do not invoke it again.
type CommitHook func(store *Store, keys []string)

// Store is an in-memory implementation of api.Store.
type Store struct {
	log logging.Logger

	mu       sync.Mutex
	rev      uint64
	data     map[string]*entry
	watchers map[int]*watcher
	watchID  int

	// injected failures
	failures   int
	failStatus api.CommitStatus

	hook        CommitHook
	hookRunning int32

	// notifyMu serializes watcher notifications in commit order
	notifyMu sync.Mutex
}

type entry struct {
	value proto.Message
	rev   uint64
}

type watcher struct {
	prefix string
	cb     func(ev api.ChangeEvent)
}

// NewStore creates an empty store.
func NewStore(log logging.Logger) *Store {
	return &Store{
		log:      log,
		data:     make(map[string]*entry),
		watchers: make(map[int]*watcher),
	}
}

// Revision returns the current revision of the store.
func (s *Store) Revision() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rev
}

// InjectFailures makes the next <count> commits fail with the given status
// without applying anything.
func (s *Store) InjectFailures(count int, status api.CommitStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = count
	s.failStatus = status
}

// SetCommitHook installs (or with nil removes) the commit hook.
func (s *Store) SetCommitHook(hook CommitHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hook = hook
}

// NewTxn starts a new transaction.
func (s *Store) NewTxn() api.Txn {
	return &txn{
		store: s,
		revs:  make(map[string]uint64),
		view:  make(map[string]proto.Message),
	}
}

// Get returns a copy of the current value of the key.
func (s *Store) Get(key string) (value proto.Message, rev uint64, found bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, found := s.data[key]
	if !found {
		return nil, 0, false
	}
	return proto.Clone(e.value), e.rev, true
}

// List returns copies of all values under the given prefix.
func (s *Store) List(prefix string) api.KeyValuePairs {
	s.mu.Lock()
	defer s.mu.Unlock()
	kvs := make(api.KeyValuePairs)
	for key, e := range s.data {
		if strings.HasPrefix(key, prefix) {
			kvs[key] = proto.Clone(e.value)
		}
	}
	return kvs
}

// Watch registers callback for changes under the given prefix.
// Values passed to the callback must not be modified.
func (s *Store) Watch(prefix string, cb func(ev api.ChangeEvent)) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watchID++
	id := s.watchID
	s.watchers[id] = &watcher{prefix: prefix, cb: cb}
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.watchers, id)
	}
}

// revision returns the current revision of the key (0 if absent).
// Requires s.mu to be locked.
func (s *Store) revision(key string) uint64 {
	if e, ok := s.data[key]; ok {
		return e.rev
	}
	return 0
}

func (s *Store) commit(ctx context.Context, t *txn) api.CommitResult {
	if err := ctx.Err(); err != nil {
		return api.CommitFatal(err)
	}
	s.runHook(t.keys())

	s.mu.Lock()
	if s.failures > 0 {
		s.failures--
		status := s.failStatus
		s.mu.Unlock()
		if status == api.Conflict {
			return api.CommitConflict(errors.Wrap(ErrInjected, ErrConflict.Error()))
		}
		return api.CommitFatal(ErrInjected)
	}

	// validate
	for key, rev := range t.revs {
		if cur := s.revision(key); cur != rev {
			s.mu.Unlock()
			return api.CommitConflict(errors.Wrapf(ErrConflict,
				"key %s modified (rev %d -> %d)", key, rev, cur))
		}
	}

	// apply
	s.rev++
	rev := s.rev
	var events []api.ChangeEvent
	for _, key := range t.order {
		var prev proto.Message
		if e, ok := s.data[key]; ok {
			prev = e.value
		}
		next := t.view[key]
		if next == nil {
			if prev == nil {
				continue
			}
			delete(s.data, key)
		} else {
			if prev != nil && proto.Equal(prev, next) {
				continue
			}
			s.data[key] = &entry{value: next, rev: rev}
		}
		events = append(events, api.ChangeEvent{Key: key, Prev: prev, Value: next, Rev: rev})
	}
	watchers := s.sortedWatchers()

	// hand over to notification before releasing the data lock
	// to preserve commit order
	s.notifyMu.Lock()
	s.mu.Unlock()
	defer s.notifyMu.Unlock()

	if s.log != nil {
		description, withDescription := scheduler.IsWithDescription(ctx)
		if !withDescription {
			description = "-"
		}
		s.log.Debugf("Committed rev=%d (%s): %d change(s)", rev, description, len(events))
	}
	for _, ev := range events {
		for _, w := range watchers {
			if strings.HasPrefix(ev.Key, w.prefix) {
				w.cb(ev)
			}
		}
	}
	return api.CommitOk(rev)
}

func (s *Store) runHook(keys []string) {
	s.mu.Lock()
	hook := s.hook
	s.mu.Unlock()
	if hook == nil || !atomic.CompareAndSwapInt32(&s.hookRunning, 0, 1) {
		return
	}
	defer atomic.StoreInt32(&s.hookRunning, 0)
	hook(s, keys)
}

// sortedWatchers returns watchers in the order of registration.
// Requires s.mu to be locked.
func (s *Store) sortedWatchers() []*watcher {
	var ids []int
	for id := range s.watchers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	watchers := make([]*watcher, 0, len(ids))
	for _, id := range ids {
		watchers = append(watchers, s.watchers[id])
	}
	return watchers
}

// txn implements api.Txn.
type txn struct {
	store *Store

	// revision of every touched key at the time of the first touch
	revs map[string]uint64

	// values as seen by the transaction (nil = deleted), written keys only
	view  map[string]proto.Message
	order []string
}

func (t *txn) touch(key string) (current proto.Message) {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, touched := t.revs[key]; !touched {
		t.revs[key] = s.revision(key)
	}
	if e, ok := s.data[key]; ok {
		return e.value
	}
	return nil
}

func (t *txn) write(key string, value proto.Message) {
	if _, written := t.view[key]; !written {
		t.order = append(t.order, key)
	}
	t.view[key] = value
}

// Get returns the value as seen by the transaction.
func (t *txn) Get(key string) proto.Message {
	current := t.touch(key)
	if value, written := t.view[key]; written {
		if value == nil {
			return nil
		}
		return proto.Clone(value)
	}
	if current == nil {
		return nil
	}
	return proto.Clone(current)
}

// Put sets the value of the key.
func (t *txn) Put(key string, value proto.Message) {
	if value == nil {
		panic("Put nil value for key '" + key + "'")
	}
	t.touch(key)
	t.write(key, proto.Clone(value))
}

// Merge merges value into the value of the key as seen by the transaction.
func (t *txn) Merge(key string, value proto.Message) {
	if value == nil {
		panic("Merge nil value for key '" + key + "'")
	}
	current := t.touch(key)
	if pending, written := t.view[key]; written {
		current = pending
	}
	if current == nil || reflect.TypeOf(current) != reflect.TypeOf(value) {
		t.write(key, proto.Clone(value))
		return
	}
	merged := proto.Clone(current)
	proto.Merge(merged, value)
	t.write(key, merged)
}

// Delete removes the key.
func (t *txn) Delete(key string) {
	t.touch(key)
	t.write(key, nil)
}

// Commit applies all changes atomically.
func (t *txn) Commit(ctx context.Context) api.CommitResult {
	return t.store.commit(ctx, t)
}

func (t *txn) keys() []string {
	keys := make([]string, 0, len(t.revs))
	for key := range t.revs {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
