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

// Package api defines the transactional key-value store consumed by the
// dispatcher, the ID allocator and the southbound rule mirror.
package api

import (
	"context"
	"fmt"

	"github.com/gogo/protobuf/proto"
)

// KeyValuePairs is a set of key-value pairs.
type KeyValuePairs map[string]proto.Message

// Store is a versioned key-value store with optimistic locking.
type Store interface {
	// NewTxn starts a new transaction.
	NewTxn() Txn

	// Get returns the current value of the key together with its revision.
	Get(key string) (value proto.Message, rev uint64, found bool)

	// List returns all key-value pairs under the given prefix.
	List(prefix string) KeyValuePairs

	// Watch registers callback for changes of keys under the given prefix.
	// Callbacks are called after commit, in commit order, and must not
	// commit into the store themselves.
	Watch(prefix string, cb func(ev ChangeEvent)) (cancel func())
}

// Txn is a transaction with optimistic locking: the revision of every key
// is recorded when the key is first touched by the transaction and the
// commit fails with Conflict if any of those revisions changed meanwhile.
type Txn interface {
	// Get returns the value as seen by the transaction (pending changes
	// included). Returns nil if the value does not exist or is set to be
	// deleted.
	Get(key string) proto.Message

	// Put sets the value of the key. <value> cannot be nil.
	Put(key string, value proto.Message)

	// Merge merges value into the current value of the key (put if missing).
	Merge(key string, value proto.Message)

	// Delete removes the key.
	Delete(key string)

	// Commit applies all changes atomically.
	Commit(ctx context.Context) CommitResult
}

// CommitStatus is the outcome of a commit.
type CommitStatus int

const (
	// Ok means that all changes were applied.
	Ok CommitStatus = iota

	// Conflict means that a key touched by the transaction was modified
	// by another writer. Nothing was applied.
	Conflict

	// Fatal means that the store failed. Nothing was applied.
	Fatal
)

// String returns human-readable representation of the commit status.
func (s CommitStatus) String() string {
	switch s {
	case Ok:
		return "ok"
	case Conflict:
		return "conflict"
	case Fatal:
		return "fatal"
	}
	return "unknown"
}

// CommitResult is the tagged result of Txn.Commit.
type CommitResult struct {
	Status CommitStatus
	Err    error
	// Rev is the store revision after a successful commit.
	Rev uint64
}

// String describes the commit result.
func (r CommitResult) String() string {
	if r.Status == Ok {
		return fmt.Sprintf("%s (rev=%d)", r.Status, r.Rev)
	}
	return fmt.Sprintf("%s: %v", r.Status, r.Err)
}

// CommitOk returns successful commit result.
func CommitOk(rev uint64) CommitResult {
	return CommitResult{Status: Ok, Rev: rev}
}

// CommitConflict returns commit result for optimistic-lock failure.
func CommitConflict(err error) CommitResult {
	return CommitResult{Status: Conflict, Err: err}
}

// CommitFatal returns commit result for store failure.
func CommitFatal(err error) CommitResult {
	return CommitResult{Status: Fatal, Err: err}
}

// ChangeEvent describes a single committed change of a key.
type ChangeEvent struct {
	Key   string
	Prev  proto.Message // nil if the key was created
	Value proto.Message // nil if the key was deleted
	Rev   uint64
}

// IsDelete returns true if the key was removed.
func (ev ChangeEvent) IsDelete() bool {
	return ev.Value == nil
}
