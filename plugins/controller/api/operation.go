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

// Package api defines the operations accepted by the resource queues,
// the completion signal returned to producers and the error taxonomy
// of the batch dispatcher.
package api

import (
	"fmt"

	"github.com/gogo/protobuf/proto"
)

// OperationKind is the type of a pending write.
type OperationKind int

const (
	// Create adds a new value.
	Create OperationKind = iota

	// Update replaces an existing value.
	Update

	// Merge merges the value into the existing one.
	Merge

	// Delete removes the value.
	Delete
)

// String returns human-readable representation of the operation kind.
func (k OperationKind) String() string {
	switch k {
	case Create:
		return "create"
	case Update:
		return "update"
	case Merge:
		return "merge"
	case Delete:
		return "delete"
	}
	return "unknown"
}

// Operation is a single pending write of a resource.
type Operation struct {
	Kind  OperationKind
	Key   string
	Value proto.Message // nil for Delete
}

// String describes the operation.
func (op Operation) String() string {
	return fmt.Sprintf("%s %s", op.Kind, op.Key)
}

// ResourceClass separates resource streams into independent queues.
type ResourceClass int

const (
	// Records are structured values (rules, bindings, interface state).
	Records ResourceClass = iota

	// Counters are small scalar statistics updated at high rate.
	Counters
)

// ResourceClasses lists all resource classes.
var ResourceClasses = []ResourceClass{Records, Counters}

// String returns name of the resource class.
func (c ResourceClass) String() string {
	switch c {
	case Records:
		return "records"
	case Counters:
		return "counters"
	}
	return "unknown"
}

// ResourceQueue is implemented by the dispatcher and used by producers.
type ResourceQueue interface {
	// Enqueue appends the operations into the queue of their resource class
	// as one group: the group is committed within a single batch, in the given
	// order. Enqueue never blocks; ErrQueueFull is returned when the group
	// does not fit. The returned completion is resolved once the batch with
	// the group is committed or has failed.
	Enqueue(ops ...Operation) (*Completion, error)
}

// DBResource describes one kind of value kept in the store.
type DBResource struct {
	Keyword          string
	ProtoMessageName string
	KeyPrefix        string
	Class            ResourceClass
}
