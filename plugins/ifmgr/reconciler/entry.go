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

package reconciler

import (
	"github.com/gogo/protobuf/proto"

	"github.com/contiv/ifmgr/plugins/ifmgr/api"
	"github.com/contiv/ifmgr/plugins/ifmgr/chain"
	"github.com/contiv/ifmgr/plugins/ifmgr/model"
)

const (
	counterBindRequests      = "bind-requests"
	counterUnbindRequests    = "unbind-requests"
	counterStateTransitions  = "state-transitions"
	counterOperStatusChanges = "oper-status-changes"
)

var directions = []model.Direction{model.Direction_INGRESS, model.Direction_EGRESS}

// entry is the reconciler state of one interface.
type entry struct {
	name   string
	record *model.Interface // nil while the interface is not declared
	state  model.InterfaceState_State

	port    api.PortInfo
	portTag uint32
	groupID uint32

	// services bound to the interface, kept also while the interface is absent
	chains map[model.Direction]*chain.Chain

	// values written into the store for this interface
	rendered map[string]proto.Message

	counters      map[string]uint64
	dirtyCounters map[string]struct{}
}

func newEntry(name string, config *Config) *entry {
	e := &entry{
		name:          name,
		state:         model.InterfaceState_ABSENT,
		chains:        make(map[model.Direction]*chain.Chain),
		rendered:      make(map[string]proto.Message),
		counters:      make(map[string]uint64),
		dirtyCounters: make(map[string]struct{}),
	}
	for _, dir := range directions {
		e.chains[dir] = chain.New(e.chainParams(config, dir))
	}
	return e
}

// clone returns a copy of the entry that is safe to restore after a failed commit.
func (e *entry) clone() *entry {
	c := *e
	c.chains = make(map[model.Direction]*chain.Chain)
	for dir, ch := range e.chains {
		c.chains[dir] = ch.Clone()
	}
	c.rendered = make(map[string]proto.Message, len(e.rendered))
	for key, value := range e.rendered {
		c.rendered[key] = value
	}
	c.counters = make(map[string]uint64, len(e.counters))
	for name, value := range e.counters {
		c.counters[name] = value
	}
	c.dirtyCounters = make(map[string]struct{}, len(e.dirtyCounters))
	for name := range e.dirtyCounters {
		c.dirtyCounters[name] = struct{}{}
	}
	return &c
}

// assignIDs sets the allocated identifiers the entry does not have yet.
func (e *entry) assignIDs(ids identifiers) {
	if e.portTag == 0 {
		e.portTag = ids.portTag
	}
	if e.groupID == 0 {
		e.groupID = ids.groupID
	}
}

// device returns the name of the device the interface is on.
func (e *entry) device() string {
	if e.record != nil && e.record.Device != "" {
		return e.record.Device
	}
	return e.port.Device
}

func (e *entry) isType(ifType model.Interface_Type) bool {
	return e.record != nil && e.record.Type == ifType
}

func (e *entry) boundServices() (count int) {
	for _, ch := range e.chains {
		count += ch.Len()
	}
	return count
}

// unused returns true if nothing is kept for the interface.
func (e *entry) unused() bool {
	return e.record == nil && e.boundServices() == 0 && len(e.rendered) == 0
}

func (e *entry) count(counter string) {
	e.counters[counter]++
	e.dirtyCounters[counter] = struct{}{}
}

func (e *entry) chainParams(config *Config, dir model.Direction) chain.Params {
	params := chain.Params{
		Interface:            e.name,
		Device:               e.device(),
		Direction:            dir,
		PortTag:              e.portTag,
		RulePriority:         config.ChainRulePriority,
		SplitHorizonPriority: config.SplitHorizonRulePriority,
	}
	if dir == model.Direction_INGRESS {
		params.TableID = config.IngressTable
		params.NextTable = config.IngressNextTable
	} else {
		params.TableID = config.EgressTable
		params.NextTable = config.EgressNextTable
		params.SplitHorizon = e.record != nil && e.record.External
	}
	return params
}

// syncChains propagates the interface attributes into chain parameters.
func (e *entry) syncChains(config *Config) error {
	for _, dir := range directions {
		if err := e.chains[dir].SetParams(e.chainParams(config, dir)); err != nil {
			return err
		}
	}
	return nil
}

// stateRecord returns the record describing the interface state.
func (e *entry) stateRecord() *model.InterfaceState {
	state := &model.InterfaceState{
		Name:    e.name,
		State:   e.state,
		Device:  e.device(),
		PortNo:  e.port.PortNo,
		PortTag: e.portTag,
		GroupId: e.groupID,
	}
	if e.record != nil {
		state.Record = proto.Clone(e.record).(*model.Interface)
	}
	return state
}

// applyChangeSet updates the rendered values with changed chain rules.
func (e *entry) applyChangeSet(cs chain.ChangeSet) {
	for key := range cs.Delete {
		delete(e.rendered, key)
	}
	for key, rule := range cs.Put {
		e.rendered[key] = rule
	}
}
