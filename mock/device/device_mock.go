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

package device

import (
	"fmt"
	"sort"
	"sync"

	"github.com/gogo/protobuf/proto"
	"github.com/pkg/errors"

	"github.com/contiv/ifmgr/plugins/ifmgr/api"
	"github.com/contiv/ifmgr/plugins/ifmgr/model"
)

// MockPorts is a mock implementation of api.PortLookup backed by a map.
type MockPorts struct {
	sync.Mutex
	ports   map[string]api.PortInfo
	lookups int
}

// NewMockPorts is a constructor for MockPorts.
func NewMockPorts() *MockPorts {
	return &MockPorts{ports: make(map[string]api.PortInfo)}
}

// SetPort makes the interface known on the given device port.
func (mp *MockPorts) SetPort(ifName string, device string, portNo uint32) {
	mp.Lock()
	defer mp.Unlock()
	mp.ports[ifName] = api.PortInfo{Device: device, PortNo: portNo, OperStatus: model.Interface_UP}
}

// RemovePort makes the interface unknown.
func (mp *MockPorts) RemovePort(ifName string) {
	mp.Lock()
	defer mp.Unlock()
	delete(mp.ports, ifName)
}

// LookupPort returns the port set for the interface or api.ErrPortUnknown.
func (mp *MockPorts) LookupPort(ifName string) (api.PortInfo, error) {
	mp.Lock()
	defer mp.Unlock()
	mp.lookups++
	port, known := mp.ports[ifName]
	if !known {
		return api.PortInfo{}, errors.Wrapf(api.ErrPortUnknown, "interface %s", ifName)
	}
	return port, nil
}

// Lookups returns the number of LookupPort calls.
func (mp *MockPorts) Lookups() int {
	mp.Lock()
	defer mp.Unlock()
	return mp.lookups
}

// MockProgrammer is a mock implementation of api.RuleProgrammer keeping
// the content of device tables in memory.
type MockProgrammer struct {
	sync.Mutex
	unreachable map[string]bool
	rules       map[string]map[string]*model.Rule        // device -> rule ID -> rule
	groups      map[string]map[uint32]*model.TunnelGroup // device -> group ID -> group
	calls       int
}

// NewMockProgrammer is a constructor for MockProgrammer.
func NewMockProgrammer() *MockProgrammer {
	return &MockProgrammer{
		unreachable: make(map[string]bool),
		rules:       make(map[string]map[string]*model.Rule),
		groups:      make(map[string]map[uint32]*model.TunnelGroup),
	}
}

// SetReachable changes reachability of the device. Calls for unreachable
// devices fail with api.ErrDeviceUnreachable.
func (mp *MockProgrammer) SetReachable(device string, reachable bool) {
	mp.Lock()
	defer mp.Unlock()
	if reachable {
		delete(mp.unreachable, device)
	} else {
		mp.unreachable[device] = true
	}
}

// InstallRule adds or replaces the rule in the table of the device.
func (mp *MockProgrammer) InstallRule(device string, rule *model.Rule) error {
	mp.Lock()
	defer mp.Unlock()
	if err := mp.call(device); err != nil {
		return err
	}
	if mp.rules[device] == nil {
		mp.rules[device] = make(map[string]*model.Rule)
	}
	mp.rules[device][RuleID(rule)] = proto.Clone(rule).(*model.Rule)
	return nil
}

// RemoveRule removes the rule from the table of the device.
func (mp *MockProgrammer) RemoveRule(device string, rule *model.Rule) error {
	mp.Lock()
	defer mp.Unlock()
	if err := mp.call(device); err != nil {
		return err
	}
	delete(mp.rules[device], RuleID(rule))
	return nil
}

// InstallGroup adds or replaces the group on the device.
func (mp *MockProgrammer) InstallGroup(device string, group *model.TunnelGroup) error {
	mp.Lock()
	defer mp.Unlock()
	if err := mp.call(device); err != nil {
		return err
	}
	if mp.groups[device] == nil {
		mp.groups[device] = make(map[uint32]*model.TunnelGroup)
	}
	mp.groups[device][group.GroupId] = proto.Clone(group).(*model.TunnelGroup)
	return nil
}

// RemoveGroup removes the group from the device.
func (mp *MockProgrammer) RemoveGroup(device string, group *model.TunnelGroup) error {
	mp.Lock()
	defer mp.Unlock()
	if err := mp.call(device); err != nil {
		return err
	}
	delete(mp.groups[device], group.GroupId)
	return nil
}

// Rules returns rules installed on the device ordered by table, priority
// and match.
func (mp *MockProgrammer) Rules(device string) []*model.Rule {
	mp.Lock()
	defer mp.Unlock()
	var ids []string
	for id := range mp.rules[device] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	rules := make([]*model.Rule, 0, len(ids))
	for _, id := range ids {
		rules = append(rules, mp.rules[device][id])
	}
	return rules
}

// Group returns the group installed on the device (nil if none).
func (mp *MockProgrammer) Group(device string, groupID uint32) *model.TunnelGroup {
	mp.Lock()
	defer mp.Unlock()
	return mp.groups[device][groupID]
}

// Calls returns the number of successful calls.
func (mp *MockProgrammer) Calls() int {
	mp.Lock()
	defer mp.Unlock()
	return mp.calls
}

func (mp *MockProgrammer) call(device string) error {
	if mp.unreachable[device] {
		return errors.Wrapf(api.ErrDeviceUnreachable, "device %s", device)
	}
	mp.calls++
	return nil
}

// RuleID identifies the rule within the tables of a device.
func RuleID(rule *model.Rule) string {
	return fmt.Sprintf("%03d/%05d/%s", rule.TableId, rule.Priority, proto.CompactTextString(rule.GetMatch()))
}
