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
	"sort"

	"github.com/gogo/protobuf/proto"

	controller "github.com/contiv/ifmgr/plugins/controller/api"
	"github.com/contiv/ifmgr/plugins/ifmgr/model"
	"github.com/contiv/ifmgr/plugins/ifmgr/tag"
)

// desired returns all values that should be in the store for the entry.
// Requires the reconciler to be locked.
func (r *Reconciler) desired(e *entry) (map[string]proto.Message, error) {
	values := make(map[string]proto.Message)
	switch e.state {
	case model.InterfaceState_ABSENT:
		return values, nil

	case model.InterfaceState_TOMBSTONED:
		// writes are suppressed, only the state changes
		for key, value := range e.rendered {
			values[key] = value
		}

	case model.InterfaceState_BOUND:
		for _, dir := range directions {
			rules, err := e.chains[dir].Render()
			if err != nil {
				return nil, err
			}
			for key, rule := range rules {
				values[key] = rule
			}
		}
		if !e.isType(model.Interface_LOGICAL_TUNNEL_GROUP) {
			classifier, err := r.classifierRule(e)
			if err != nil {
				return nil, err
			}
			values[model.ClassifierRuleKey(e.name)] = classifier
		} else {
			values[model.TunnelGroupKey(e.name)] = r.tunnelGroup(e)
		}
		values[model.EgressOutputRuleKey(e.name)] = r.egressOutputRule(e)
	}
	values[model.InterfaceStateKey(e.name)] = e.stateRecord()
	return values, nil
}

// classifierRule tags packets received on the interface and sends them
// into the ingress chain.
func (r *Reconciler) classifierRule(e *entry) (*model.Rule, error) {
	var flags tag.Flags
	if e.record.External && e.record.Type == model.Interface_TUNNEL {
		flags |= tag.SplitHorizon
	}
	value, mask, err := tag.Encode(e.portTag, 0, flags)
	if err != nil {
		return nil, err
	}

	rule := &model.Rule{
		Interface: e.name,
		Device:    e.device(),
		TableId:   r.Config.ClassifierTable,
		Priority:  r.Config.ClassifierPriority,
		Kind:      model.Rule_CLASSIFIER,
		Match:     &model.Match{InPort: e.port.PortNo},
	}
	if e.record.Type == model.Interface_VLAN_MEMBER {
		// more specific than the rule of the trunk
		rule.Priority++
		rule.Match.VlanId = e.record.VlanId
		rule.Actions = append(rule.Actions, &model.Action{Type: model.Action_POP_VLAN})
	}
	rule.Actions = append(rule.Actions,
		&model.Action{Type: model.Action_WRITE_TAG, Value: value, Mask: mask},
		&model.Action{Type: model.Action_GOTO_TABLE, Table: r.Config.IngressTable})
	return rule, nil
}

// egressOutputRule sends packets that passed the egress chain of the interface
// out of the device.
func (r *Reconciler) egressOutputRule(e *entry) *model.Rule {
	value, mask := tag.Port(e.portTag)
	rule := &model.Rule{
		Interface: e.name,
		Device:    e.device(),
		TableId:   r.Config.EgressNextTable,
		Priority:  r.Config.EgressOutputPriority,
		Kind:      model.Rule_EGRESS_OUTPUT,
		Match:     &model.Match{TagValue: value, TagMask: mask},
	}
	switch e.record.Type {
	case model.Interface_LOGICAL_TUNNEL_GROUP:
		rule.Actions = []*model.Action{{Type: model.Action_GROUP, Group: e.groupID}}
	case model.Interface_VLAN_MEMBER:
		rule.Actions = []*model.Action{
			{Type: model.Action_PUSH_VLAN, VlanId: e.record.VlanId},
			{Type: model.Action_OUTPUT, Port: e.port.PortNo},
		}
	default:
		rule.Actions = []*model.Action{{Type: model.Action_OUTPUT, Port: e.port.PortNo}}
	}
	return rule
}

// tunnelGroup builds the selection group of a logical tunnel group from its
// bound member tunnels that are not down.
func (r *Reconciler) tunnelGroup(e *entry) *model.TunnelGroup {
	group := &model.TunnelGroup{
		Name:    e.name,
		Device:  e.device(),
		GroupId: e.groupID,
	}
	for _, name := range r.groupMembers(e.name) {
		member := r.entries[name]
		if member.state != model.InterfaceState_BOUND ||
			member.record.OperStatus == model.Interface_DOWN {
			continue
		}
		weight := member.record.Weight
		if weight == 0 {
			weight = 1
		}
		group.Buckets = append(group.Buckets, &model.TunnelGroup_Bucket{
			Tunnel: name,
			Port:   member.port.PortNo,
			Weight: weight,
		})
	}
	return group
}

// groupMembers returns sorted names of tunnels declared as members of the group.
func (r *Reconciler) groupMembers(group string) []string {
	return r.children(group, model.Interface_TUNNEL)
}

// vlanMembers returns sorted names of VLAN members declared on the trunk.
func (r *Reconciler) vlanMembers(trunk string) []string {
	return r.children(trunk, model.Interface_VLAN_MEMBER)
}

func (r *Reconciler) children(parent string, ifType model.Interface_Type) (names []string) {
	for name, e := range r.entries {
		if e.isType(ifType) && e.record.Parent == parent {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// diffOps returns operations changing <current> into <desired>: deletes first,
// then puts, each ordered by key.
func diffOps(current, desired map[string]proto.Message) (ops []controller.Operation) {
	var deletes, puts []string
	for key := range current {
		if _, keep := desired[key]; !keep {
			deletes = append(deletes, key)
		}
	}
	for key, value := range desired {
		if prev, exists := current[key]; !exists || !proto.Equal(prev, value) {
			puts = append(puts, key)
		}
	}
	sort.Strings(deletes)
	sort.Strings(puts)
	for _, key := range deletes {
		ops = append(ops, controller.Operation{Kind: controller.Delete, Key: key})
	}
	for _, key := range puts {
		ops = append(ops, controller.Operation{Kind: controller.Update, Key: key, Value: desired[key]})
	}
	return ops
}
