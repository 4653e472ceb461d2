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

package chain

import (
	"sort"

	controller "github.com/contiv/ifmgr/plugins/controller/api"
	"github.com/contiv/ifmgr/plugins/ifmgr/model"
)

// Rules maps store keys to rules.
type Rules map[string]*model.Rule

// SortedKeys returns keys of the rules in ascending order.
func (r Rules) SortedKeys() []string {
	keys := make([]string, 0, len(r))
	for key := range r {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// ChangeSet is a set of rule updates. A key is either put or deleted, the last
// request for a key wins.
type ChangeSet struct {
	Put    Rules
	Delete map[string]struct{}
}

// PutRule adds request to put the rule under the given key.
func (cs *ChangeSet) PutRule(key string, rule *model.Rule) {
	if cs.Put == nil {
		cs.Put = make(Rules)
	}
	delete(cs.Delete, key)
	cs.Put[key] = rule
}

// DeleteRule adds request to remove the rule under the given key.
func (cs *ChangeSet) DeleteRule(key string) {
	if cs.Delete == nil {
		cs.Delete = make(map[string]struct{})
	}
	delete(cs.Put, key)
	cs.Delete[key] = struct{}{}
}

// Merge applies the later change set on top of this one.
func (cs *ChangeSet) Merge(later ChangeSet) {
	for key := range later.Delete {
		cs.DeleteRule(key)
	}
	for key, rule := range later.Put {
		cs.PutRule(key, rule)
	}
}

// Size returns the number of rules put or deleted.
func (cs ChangeSet) Size() int {
	return len(cs.Put) + len(cs.Delete)
}

// Empty returns true if the change set contains no change.
func (cs ChangeSet) Empty() bool {
	return cs.Size() == 0
}

// DeletedKeys returns keys of deleted rules in ascending order.
func (cs ChangeSet) DeletedKeys() []string {
	keys := make([]string, 0, len(cs.Delete))
	for key := range cs.Delete {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Operations converts the change set into store operations: deletes
// first, then puts, each ordered by key.
func (cs ChangeSet) Operations() (ops []controller.Operation) {
	for _, key := range cs.DeletedKeys() {
		ops = append(ops, controller.Operation{Kind: controller.Delete, Key: key})
	}
	for _, key := range cs.Put.SortedKeys() {
		ops = append(ops, controller.Operation{Kind: controller.Update, Key: key, Value: cs.Put[key]})
	}
	return ops
}

// Apply applies the change set to the given rules.
func (cs ChangeSet) Apply(rules Rules) {
	for key := range cs.Delete {
		delete(rules, key)
	}
	for key, rule := range cs.Put {
		rules[key] = rule
	}
}
