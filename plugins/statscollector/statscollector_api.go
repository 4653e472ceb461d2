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

package statscollector

// API defines the statistics reported by the dispatcher and the reconciler.
type API interface {
	// BatchCommitted records a successfully committed batch.
	BatchCommitted(class string, operations int, attempts int)

	// BatchFailed records a batch that was not applied.
	BatchFailed(class string, reason string)

	// ConflictRetried records one retry of a conflicting batch.
	ConflictRetried(class string)

	// QueueDepth updates the number of operations waiting in a queue.
	QueueDepth(class string, depth int)

	// InterfaceStates updates the number of interfaces per reconciler state.
	InterfaceStates(counts map[string]int)

	// BoundServices updates the number of services bound to all interfaces.
	BoundServices(count int)
}

const (
	// FailureConflict is the reason of a batch failed due to exhausted retries.
	FailureConflict = "conflict"

	// FailureFatal is the reason of a batch failed due to a store failure.
	FailureFatal = "fatal"
)
