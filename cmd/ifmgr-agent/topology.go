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

package main

import (
	"io/ioutil"
	"strings"
	"sync"

	"github.com/ghodss/yaml"
	"github.com/ligato/cn-infra/logging"
	"github.com/pkg/errors"

	controller "github.com/contiv/ifmgr/plugins/controller/api"
	"github.com/contiv/ifmgr/plugins/ifmgr/api"
	"github.com/contiv/ifmgr/plugins/ifmgr/model"
)

// Topology is the content of the topology file: device ports known at start,
// interfaces to announce and service bindings to apply on them.
type Topology struct {
	Ports      []PortSpec      `json:"ports"`
	Interfaces []InterfaceSpec `json:"interfaces"`
	Bindings   []BindingSpec   `json:"bindings"`
}

// PortSpec maps an interface onto a device port.
type PortSpec struct {
	Interface string `json:"interface"`
	Device    string `json:"device"`
	Port      uint32 `json:"port"`
	Down      bool   `json:"down"`
}

// InterfaceSpec describes an interface announced at start.
type InterfaceSpec struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Parent   string `json:"parent"`
	Device   string `json:"device"`
	External bool   `json:"external"`
	VlanID   uint32 `json:"vlan-id"`
	Weight   uint32 `json:"weight"`
}

// BindingSpec describes a service bound at start.
type BindingSpec struct {
	Interface string       `json:"interface"`
	Direction string       `json:"direction"`
	Service   string       `json:"service"`
	Priority  uint32       `json:"priority"`
	Cookie    uint64       `json:"cookie"`
	NextTable uint32       `json:"next-table"`
	Actions   []ActionSpec `json:"actions"`
}

// ActionSpec describes a single service action.
type ActionSpec struct {
	Type   string `json:"type"`
	Port   uint32 `json:"port"`
	Group  uint32 `json:"group"`
	Table  uint32 `json:"table"`
	VlanID uint32 `json:"vlan-id"`
	Queue  uint32 `json:"queue"`
	Meter  uint32 `json:"meter"`
}

// loadTopology reads and converts the topology file.
func loadTopology(path string) (*Topology, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read topology file")
	}
	return parseTopology(data)
}

func parseTopology(data []byte) (*Topology, error) {
	topo := &Topology{}
	if err := yaml.Unmarshal(data, topo); err != nil {
		return nil, errors.Wrapf(err, "failed to parse topology")
	}
	// validate enum names early, before anything gets announced
	for _, spec := range topo.Interfaces {
		if _, err := spec.record(); err != nil {
			return nil, err
		}
	}
	for _, spec := range topo.Bindings {
		if _, _, err := spec.service(); err != nil {
			return nil, err
		}
	}
	return topo, nil
}

// announce adds all interfaces (parents first, in the file order) and then
// binds the services. Bindings deferred until a port appears are not errors.
func (t *Topology) announce(ifMgr api.InterfaceManager, log logging.Logger) error {
	for _, spec := range t.Interfaces {
		record, _ := spec.record()
		err := ifMgr.OnInterfaceAdded(record).Wait()
		if err != nil && !controller.IsDeferred(err) {
			return errors.Wrapf(err, "failed to add interface %s", spec.Name)
		}
	}
	for _, spec := range t.Bindings {
		dir, svc, _ := spec.service()
		err := ifMgr.BindService(spec.Interface, dir, svc).Wait()
		if controller.IsDeferred(err) {
			log.Infof("Binding of %s to %s deferred: %v", spec.Service, spec.Interface, err)
			continue
		}
		if err != nil {
			return errors.Wrapf(err, "failed to bind service %s to %s", spec.Service, spec.Interface)
		}
	}
	return nil
}

func (s InterfaceSpec) record() (*model.Interface, error) {
	ifType, err := enumValue(model.Interface_Type_value, s.Type, "interface type")
	if err != nil {
		return nil, err
	}
	return &model.Interface{
		Name:     s.Name,
		Type:     model.Interface_Type(ifType),
		Parent:   s.Parent,
		Device:   s.Device,
		External: s.External,
		VlanId:   s.VlanID,
		Weight:   s.Weight,
	}, nil
}

func (s BindingSpec) service() (model.Direction, *model.BoundService, error) {
	dir, err := enumValue(model.Direction_value, s.Direction, "direction")
	if err != nil {
		return 0, nil, err
	}
	svc := &model.BoundService{
		Name:      s.Service,
		Priority:  s.Priority,
		Direction: model.Direction(dir),
		Cookie:    s.Cookie,
		NextTable: s.NextTable,
	}
	for _, a := range s.Actions {
		actionType, err := enumValue(model.Action_Type_value, a.Type, "action type")
		if err != nil {
			return 0, nil, err
		}
		svc.Actions = append(svc.Actions, &model.Action{
			Type:   model.Action_Type(actionType),
			Port:   a.Port,
			Group:  a.Group,
			Table:  a.Table,
			VlanId: a.VlanID,
			Queue:  a.Queue,
			Meter:  a.Meter,
		})
	}
	return model.Direction(dir), svc, nil
}

// enumValue accepts enum names case-insensitively, with dashes in place of
// underscores. Empty name selects the zero value.
func enumValue(values map[string]int32, name, what string) (int32, error) {
	if name == "" {
		return 0, nil
	}
	value, known := values[strings.ToUpper(strings.Replace(name, "-", "_", -1))]
	if !known {
		return 0, errors.Errorf("unknown %s %q", what, name)
	}
	return value, nil
}

// staticPorts is a PortLookup backed by the ports listed in the topology file.
type staticPorts struct {
	sync.RWMutex
	ports map[string]api.PortInfo
}

func newStaticPorts() *staticPorts {
	return &staticPorts{ports: make(map[string]api.PortInfo)}
}

// Set replaces the known ports.
func (sp *staticPorts) Set(ports []PortSpec) {
	sp.Lock()
	defer sp.Unlock()
	sp.ports = make(map[string]api.PortInfo)
	for _, port := range ports {
		status := model.Interface_UP
		if port.Down {
			status = model.Interface_DOWN
		}
		sp.ports[port.Interface] = api.PortInfo{
			Device:     port.Device,
			PortNo:     port.Port,
			OperStatus: status,
		}
	}
}

// LookupPort returns the port of the interface.
func (sp *staticPorts) LookupPort(ifName string) (api.PortInfo, error) {
	sp.RLock()
	defer sp.RUnlock()
	port, found := sp.ports[ifName]
	if !found {
		return api.PortInfo{}, errors.Wrapf(api.ErrPortUnknown, "interface %s", ifName)
	}
	return port, nil
}

// loggingProgrammer only logs the rules and groups it is asked to program.
type loggingProgrammer struct {
	log logging.Logger
}

func (lp *loggingProgrammer) InstallRule(device string, rule *model.Rule) error {
	lp.log.Infof("Install rule on %s: %s", device, rule)
	return nil
}

func (lp *loggingProgrammer) RemoveRule(device string, rule *model.Rule) error {
	lp.log.Infof("Remove rule from %s: %s", device, rule)
	return nil
}

func (lp *loggingProgrammer) InstallGroup(device string, group *model.TunnelGroup) error {
	lp.log.Infof("Install group on %s: %s", device, group)
	return nil
}

func (lp *loggingProgrammer) RemoveGroup(device string, group *model.TunnelGroup) error {
	lp.log.Infof("Remove group from %s: %s", device, group)
	return nil
}
