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
	"sort"

	"github.com/gogo/protobuf/proto"
)

// KeyValuePairs is a set of key-value pairs.
type KeyValuePairs map[string]proto.Message

// SortedKeys returns keys of the pairs in ascending order.
func (kvs KeyValuePairs) SortedKeys() []string {
	keys := make([]string, 0, len(kvs))
	for key := range kvs {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// PutAll is a helper function to prepare Update operation for multiple
// key-value pairs (ordered by key).
func PutAll(values KeyValuePairs) (ops []Operation) {
	for _, key := range values.SortedKeys() {
		ops = append(ops, Operation{Kind: Update, Key: key, Value: values[key]})
	}
	return ops
}

// DeleteAll is a helper function to prepare Delete operation for multiple
// key-value pairs (ordered by key).
func DeleteAll(values KeyValuePairs) (ops []Operation) {
	for _, key := range values.SortedKeys() {
		ops = append(ops, Operation{Kind: Delete, Key: key})
	}
	return ops
}
