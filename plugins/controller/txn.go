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

	"github.com/gogo/protobuf/proto"
	"github.com/pkg/errors"

	scheduler "github.com/ligato/vpp-agent/plugins/kvscheduler/api"

	"github.com/contiv/ifmgr/plugins/controller/api"
	"github.com/contiv/ifmgr/plugins/dbresources"
	kvstore "github.com/contiv/ifmgr/plugins/kvstore/api"
)

// batchTxn applies operations of one batch within a single store transaction.
type batchTxn struct {
	store kvstore.Store

	// operations in the order of enqueueing
	ops []api.Operation

	// description passed to the store with the commit context
	description string
}

// newBatchTxn creates new transaction for the given batch of operations.
func newBatchTxn(store kvstore.Store, description string, ops []api.Operation) *batchTxn {
	return &batchTxn{
		store:       store,
		ops:         ops,
		description: description,
	}
}

// Commit applies all operations atomically. Later operations for the same
// key override earlier ones.
func (txn *batchTxn) Commit(ctx context.Context) kvstore.CommitResult {
	storeTxn := txn.store.NewTxn()
	for _, op := range txn.ops {
		switch op.Kind {
		case api.Create, api.Update:
			storeTxn.Put(op.Key, op.Value)
		case api.Merge:
			storeTxn.Merge(op.Key, op.Value)
		case api.Delete:
			storeTxn.Delete(op.Key)
		}
	}
	if txn.description != "" {
		ctx = scheduler.WithDescription(ctx, txn.description)
	}
	return storeTxn.Commit(ctx)
}

// Keys returns keys touched by the transaction, without duplicates.
func (txn *batchTxn) Keys() (keys []string) {
	seen := make(map[string]struct{})
	for _, op := range txn.ops {
		if _, dup := seen[op.Key]; dup {
			continue
		}
		seen[op.Key] = struct{}{}
		keys = append(keys, op.Key)
	}
	return keys
}

// validateOperation checks that the operation can be applied to the store.
func validateOperation(op api.Operation) error {
	if op.Key == "" {
		return errors.Errorf("operation %s with empty key", op.Kind)
	}
	switch op.Kind {
	case api.Create, api.Update, api.Merge:
		if op.Value == nil {
			return errors.Errorf("operation %s with nil value", op)
		}
	case api.Delete:
		return nil
	default:
		return errors.Errorf("operation %s of unknown kind", op)
	}
	if resource := dbresources.GetDBResource(op.Key); resource != nil {
		if msgName := proto.MessageName(op.Value); msgName != resource.ProtoMessageName {
			return errors.Errorf("operation %s: value of type %s, expected %s",
				op, msgName, resource.ProtoMessageName)
		}
	}
	return nil
}
